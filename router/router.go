// Package router forwards inbound forecast messages to the worker owning
// each variant. The router is a small state machine: it starts in
// Initializing, creates every worker eagerly, serves dispatches while
// Ready, refuses new intake while Draining, and ends in Stopped. Dispatch
// is fire-and-forget; delivery order is FIFO per variant and unspecified
// across variants.
package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amp-labs/amp-dispatch/forecast"
	"github.com/amp-labs/amp-dispatch/logger"
	"github.com/amp-labs/amp-dispatch/registry"
	"github.com/amp-labs/amp-dispatch/worker"
	"go.uber.org/atomic"
)

var (
	// ErrRouterStopped is returned by Dispatch after the router reached
	// Stopped. The message is not forwarded and has no side effects.
	ErrRouterStopped = errors.New("router is stopped")
	// ErrRouterDraining is returned by Dispatch while a drain is in
	// progress. Messages already queued still complete.
	ErrRouterDraining = errors.New("router is draining")
	// ErrRouterNotReady is returned by Dispatch before Start has been
	// called, and by Start when called twice.
	ErrRouterNotReady = errors.New("router is not ready")
	// ErrForcedShutdown is reported by Drain when queued messages did not
	// finish within the grace period and were discarded.
	ErrForcedShutdown = errors.New("forced shutdown, queued messages discarded")
)

// State is the router lifecycle state.
type State int32

const (
	Initializing State = iota
	Ready
	Draining
	Stopped
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case Draining:
		return "draining"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// DefaultDrainGrace bounds how long Drain waits for queued messages when
// the caller does not say otherwise.
const DefaultDrainGrace = 10 * time.Second

// Router owns the dispatch path from message to variant worker.
type Router struct {
	reg   *registry.Registry
	state *atomic.Int32

	// runCtx governs worker lifetimes; canceling it is a forced stop.
	runCtx    context.Context //nolint:containedctx
	cancelRun context.CancelFunc
}

// New builds a router over the given registry. The router starts in
// Initializing; call Start before dispatching.
func New(reg *registry.Registry) *Router {
	return &Router{
		reg:   reg,
		state: atomic.NewInt32(int32(Initializing)),
	}
}

// State returns the router's current lifecycle state.
func (r *Router) State() State {
	return State(r.state.Load())
}

// Start creates one worker per catalog variant and moves the router to
// Ready. Worker run lifetimes are bound to the router, not to the passed
// context. Under the FailFast fault policy a construction error moves the
// router straight to Stopped and is returned.
func (r *Router) Start(ctx context.Context) error {
	if r.State() != Initializing {
		return fmt.Errorf("%w: state %s", ErrRouterNotReady, r.State())
	}

	r.runCtx, r.cancelRun = context.WithCancel(context.WithoutCancel(ctx))

	if err := r.reg.CreateAll(r.runCtx); err != nil {
		r.state.Store(int32(Stopped))
		r.cancelRun()

		return fmt.Errorf("starting router: %w", err)
	}

	r.state.Store(int32(Ready))

	logger.Get(ctx).Info("router ready", "kinds", len(r.reg.Kinds()))

	return nil
}

// Dispatch forwards a message to the worker owning its variant and returns
// without waiting for processing. Safe for concurrent producers. The
// message's correlation id travels with it into the worker's logging
// context.
func (r *Router) Dispatch(ctx context.Context, msg forecast.Message) error {
	switch r.State() {
	case Ready:
	case Draining:
		rejectedDispatches.WithLabelValues(logger.GetSubsystem(ctx), "draining").Inc()

		return ErrRouterDraining
	case Stopped:
		rejectedDispatches.WithLabelValues(logger.GetSubsystem(ctx), "stopped").Inc()

		return ErrRouterStopped
	case Initializing:
		rejectedDispatches.WithLabelValues(logger.GetSubsystem(ctx), "not_ready").Inc()

		return ErrRouterNotReady
	}

	ctx, span := startDispatchSpan(ctx, msg)
	defer span.End()

	begin := time.Now()

	ref, err := r.reg.GetOrCreate(r.runCtx, msg.Kind)
	if err != nil {
		rejectedDispatches.WithLabelValues(logger.GetSubsystem(ctx), "worker_unavailable").Inc()
		recordSpanError(span, err)

		return err
	}

	err = ref.SendCtx(ctx, worker.Message[forecast.Message, struct{}]{
		Request:       msg,
		CorrelationId: msg.CorrelationId,
	})
	if err != nil {
		rejectedDispatches.WithLabelValues(logger.GetSubsystem(ctx), "send_failed").Inc()
		recordSpanError(span, err)

		return fmt.Errorf("%w: %q: %w", registry.ErrWorkerUnavailable, msg.Kind, err)
	}

	subsystem := logger.GetSubsystem(ctx)

	dispatchedMessages.WithLabelValues(subsystem, msg.Kind.String()).Inc()
	dispatchTime.WithLabelValues(subsystem, msg.Kind.String()).Observe(time.Since(begin).Seconds())

	return nil
}

// DispatchRaw parses an untyped kind tag at the boundary and dispatches
// the resulting message. An unrecognized tag fails with ErrUnknownKind
// before reaching any worker; the router's state is unaffected.
func (r *Router) DispatchRaw(ctx context.Context, rawKind string) error {
	msg, err := forecast.FromRaw(rawKind)
	if err != nil {
		rejectedDispatches.WithLabelValues(logger.GetSubsystem(ctx), "unknown_kind").Inc()

		return err
	}

	return r.Dispatch(ctx, msg)
}

// Drain stops intake and waits for queued messages to finish, bounded by
// the grace period (DefaultDrainGrace if zero). If the queue does not
// empty in time, remaining messages are discarded and ErrForcedShutdown is
// returned. The router ends in Stopped either way.
func (r *Router) Drain(ctx context.Context, grace time.Duration) error {
	if !r.state.CompareAndSwap(int32(Ready), int32(Draining)) {
		switch r.State() {
		case Stopped:
			return ErrRouterStopped
		case Draining:
			return ErrRouterDraining
		default:
			return fmt.Errorf("%w: state %s", ErrRouterNotReady, r.State())
		}
	}

	if grace <= 0 {
		grace = DefaultDrainGrace
	}

	logger.Get(ctx).Info("router draining", "grace", grace.String())

	r.reg.StopAll()

	drained := make(chan struct{})

	go func() {
		r.reg.WaitAll()
		close(drained)
	}()

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-drained:
		r.cancelRun()
		r.state.Store(int32(Stopped))

		logger.Get(ctx).Info("router stopped")

		return nil
	case <-ctx.Done():
	case <-timer.C:
	}

	// Grace elapsed with messages still queued. Cancel the run context so
	// workers drop their queues, then wait for them to exit.
	r.cancelRun()
	r.reg.WaitAll()
	r.state.Store(int32(Stopped))

	logger.Get(ctx).Warn("router force-stopped with messages still queued")

	return ErrForcedShutdown
}

// Stop is an immediate forced stop: queued messages are discarded. Prefer
// Drain when losing queued work matters.
func (r *Router) Stop() {
	state := State(r.state.Swap(int32(Stopped)))
	if state == Stopped {
		return
	}

	if r.cancelRun != nil {
		r.cancelRun()
		r.reg.WaitAll()
	}
}
