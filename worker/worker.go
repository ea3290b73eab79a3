// Package worker implements the single-threaded message workers the router
// dispatches to. Each worker processes messages sequentially through a
// mailbox (inbox channel); multiple workers run concurrently with respect
// to each other. Processing errors and panics are handled by a per-worker
// supervision policy: the processor is rebuilt and processing resumes, up
// to a bounded number of restarts within a rolling window, after which the
// worker stops.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/amp-labs/amp-dispatch/channels"
	"github.com/amp-labs/amp-dispatch/logger"
	"github.com/amp-labs/amp-dispatch/try"
	"go.uber.org/atomic"
)

const (
	// metricsTickerTime is the interval at which mailbox depth is reported.
	metricsTickerTime = 10 * time.Second
	// panicReturnTimeout bounds the wait when returning panic errors to callers.
	panicReturnTimeout = 5 * time.Second
)

var (
	// ErrDeadWorker is returned when interacting with a stopped worker.
	ErrDeadWorker = errors.New("worker is dead")
	// ErrWorkerPanic is returned when a worker's processor panics during
	// message processing.
	ErrWorkerPanic = errors.New("panic in worker")
)

// Worker is a concurrent entity that processes messages of type Request
// sequentially and produces responses of type Response. Workers are created
// with New and started with Run.
type Worker[Request, Response any] struct {
	factory func(ref *Ref[Request, Response]) Processor[Request, Response]
	policy  RestartPolicy
}

// Option configures a Worker.
type Option[Request, Response any] func(*Worker[Request, Response])

// WithRestartPolicy overrides the default supervision policy.
func WithRestartPolicy[Request, Response any](policy RestartPolicy) Option[Request, Response] {
	return func(w *Worker[Request, Response]) {
		w.policy = policy
	}
}

// New creates a worker with the given processor factory. The factory is
// called when the worker starts, and again on every supervised restart,
// receiving a reference to the worker itself.
func New[Request, Response any](
	processorFactory func(ref *Ref[Request, Response]) Processor[Request, Response],
	opts ...Option[Request, Response],
) *Worker[Request, Response] {
	w := &Worker[Request, Response]{
		factory: processorFactory,
		policy:  DefaultRestartPolicy,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// getPanicErr wraps a panic value into an error, preserving the original
// error if possible.
func getPanicErr(name string, err any) error {
	if e, ok := err.(error); ok {
		return fmt.Errorf("%w %s: %w", ErrWorkerPanic, name, e)
	}

	return fmt.Errorf("%w %s: %v", ErrWorkerPanic, name, err)
}

// informCallerOfPanic attempts to send a panic error to a message's
// response channel if one exists, with a timeout so a departed caller
// cannot block the worker.
func informCallerOfPanic[Request, Response any](
	ctx context.Context,
	name string,
	msg Message[Request, Response],
	err any,
) {
	if msg.ResponseChan == nil {
		return
	}

	timer := time.NewTimer(panicReturnTimeout)

	defer func() {
		// A panic here means the channel was already closed, which is
		// fine; no further action needed.
		_ = recover()

		timer.Stop()
	}()

	rsp := try.Fail[Response](getPanicErr(name, err))

	select {
	case <-ctx.Done():
	case msg.ResponseChan <- rsp: // might panic
	case <-timer.C:
	}

	channels.CloseIgnorePanic(msg.ResponseChan)
}

// runProcessor executes the processor with panic recovery. Panics are
// logged with a stack trace, reported to the caller, and returned as
// errors so the supervision loop can account for them.
func (w *Worker[Request, Response]) runProcessor(
	ctx context.Context,
	proc Processor[Request, Response],
	msg Message[Request, Response],
	name string,
) (errOut error) {
	defer func() {
		if err := recover(); err != nil {
			log := logger.Get(ctx)
			subsystem := logger.GetSubsystem(ctx)

			workerPanic.WithLabelValues(subsystem, name).Inc()

			log.Error("worker recovered from panic",
				"worker", name,
				"correlation_id", msg.CorrelationId,
				"error", err,
				"stack", string(debug.Stack()))

			informCallerOfPanic(ctx, name, msg, err)

			errOut = getPanicErr(name, err)
		}
	}()

	return proc.Process(ctx, msg)
}

// Run starts the worker and returns a reference used to send messages to
// it. The depth parameter sets the mailbox buffer size (0 for unbuffered).
// The worker runs until the context is canceled, Stop is called on the
// reference, or its restart budget is exhausted. Canceling the context is
// a forced stop: messages still queued in the mailbox are discarded.
func (w *Worker[Request, Response]) Run(ctx context.Context, name string, depth int) *Ref[Request, Response] {
	write, read, count := channels.Create[Message[Request, Response]](depth)

	ref := &Ref[Request, Response]{
		inboxRead:  read,
		inboxWrite: write,
		getCount:   count,
		dead:       atomic.NewBool(false),
		name:       name,
	}

	ref.wg.Add(1)

	proc := w.factory(ref)
	restarts := newRestartWindow(w.policy)
	ticker := time.NewTicker(metricsTickerTime)

	subsystem := logger.GetSubsystem(ctx)

	processedMessages.WithLabelValues(subsystem, name).Add(0)
	enqueuedMessages.WithLabelValues(subsystem, name).Set(0)
	workerPanic.WithLabelValues(subsystem, name).Add(0)
	workerFailures.WithLabelValues(subsystem, name).Add(0)
	workerRestarts.WithLabelValues(subsystem, name).Add(0)
	aliveWorkers.WithLabelValues(subsystem, name).Inc()

	go func() {
		workerStarted.Inc()

		defer ref.wg.Done()
		defer ticker.Stop()
		defer aliveWorkers.WithLabelValues(subsystem, name).Dec()
		defer workerStopped.Inc()

		for {
			select {
			case <-ctx.Done():
				// Forced stop: close intake and drop whatever is
				// still queued.
				channels.CloseIgnorePanic(ref.inboxWrite)
				ref.dead.Store(true)

				return
			case <-ticker.C:
				if depth > 0 {
					enqueuedMessages.WithLabelValues(subsystem, name).Set(float64(ref.getCount()))
				}
			case msg, ok := <-ref.inboxRead:
				if !ok {
					return
				}

				start := time.Now()

				err := w.runProcessor(ctx, proc, msg, name)

				processedMessages.WithLabelValues(subsystem, name).Inc()
				processingTime.WithLabelValues(subsystem, name).Observe(time.Since(start).Seconds())

				if err == nil {
					continue
				}

				workerFailures.WithLabelValues(subsystem, name).Inc()

				if restarts.Allow(time.Now()) {
					logger.Get(ctx).Warn("restarting worker processor after failure",
						"worker", name,
						"error", err)

					workerRestarts.WithLabelValues(subsystem, name).Inc()

					proc = w.factory(ref)

					continue
				}

				logger.Get(ctx).Error("worker restart budget exhausted, stopping",
					"worker", name,
					"error", err)

				ref.Stop()
			}
		}
	}()

	return ref
}

// Ref is a reference to a running worker. It provides methods to send
// messages, make requests, and control the worker's lifecycle.
type Ref[Request, Response any] struct {
	wg         sync.WaitGroup
	inboxRead  <-chan Message[Request, Response]
	inboxWrite chan<- Message[Request, Response]
	getCount   func() int
	dead       *atomic.Bool
	name       string
}

// Name returns the worker's name.
func (r *Ref[Request, Response]) Name() string {
	return r.name
}

// Alive returns true if the worker is still accepting messages.
func (r *Ref[Request, Response]) Alive() bool {
	return !r.dead.Load()
}

// Stop signals the worker to shut down by closing its mailbox. Messages
// already queued are still processed. Safe to call multiple times.
func (r *Ref[Request, Response]) Stop() {
	if !r.dead.CompareAndSwap(false, true) {
		return
	}

	channels.CloseIgnorePanic(r.inboxWrite)
}

// Wait blocks until the worker has fully stopped processing messages.
func (r *Ref[Request, Response]) Wait() {
	r.wg.Wait()
}

// QueueLength returns the current mailbox depth.
func (r *Ref[Request, Response]) QueueLength() int {
	return r.getCount()
}

// submit sends a message to the worker's mailbox, tracking submission
// metrics and respecting context cancellation.
func (r *Ref[Request, Response]) submit(ctx context.Context, message Message[Request, Response]) (errOut error) {
	if r.dead.Load() {
		return ErrDeadWorker
	}

	// The intake can close concurrently with a submit; the resulting send
	// panic means the worker died underneath us.
	defer func() {
		if err := recover(); err != nil {
			errOut = ErrDeadWorker
		}
	}()

	subsystem := logger.GetSubsystem(ctx)

	submitCount.WithLabelValues(subsystem, r.name).Inc()

	begin := time.Now()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case r.inboxWrite <- message:
	}

	submitTime.WithLabelValues(subsystem, r.name).Observe(time.Since(begin).Seconds())

	return nil
}

// Send sends a fire-and-forget message to the worker. Errors are logged
// but not returned. Uses context.Background().
func (r *Ref[Request, Response]) Send(message Message[Request, Response]) {
	err := r.submit(context.Background(), message)
	if err != nil {
		logger.Get().Error("Send: error sending worker message", "worker", r.name, "error", err)
	}
}

// SendCtx sends a fire-and-forget message to the worker, respecting the
// provided context for cancellation. The error is returned so callers can
// surface unavailable workers.
func (r *Ref[Request, Response]) SendCtx(ctx context.Context, message Message[Request, Response]) error {
	return r.submit(ctx, message)
}

// Request sends a request and blocks until a response is received.
// Uses context.Background(). Returns ErrDeadWorker if the worker stopped.
func (r *Ref[Request, Response]) Request(request Request) (Response, error) { //nolint:ireturn
	return r.RequestCtx(context.Background(), request)
}

// RequestCtx sends a request and blocks until a response is received or
// the context is canceled.
func (r *Ref[Request, Response]) RequestCtx(ctx context.Context, request Request) (Response, error) { //nolint:ireturn
	if r.dead.Load() {
		var zero Response

		return zero, ErrDeadWorker
	}

	responseChan := make(chan try.Try[Response])

	err := r.submit(ctx, Message[Request, Response]{
		Request:      request,
		ResponseChan: responseChan,
	})
	if err != nil {
		channels.CloseIgnorePanic(responseChan)

		var zero Response

		return zero, err
	}

	select {
	case <-ctx.Done():
		var zero Response

		return zero, ctx.Err()
	case val, ok := <-responseChan:
		if !ok {
			var zero Response

			return zero, ErrDeadWorker
		}

		return val.Get()
	}
}
