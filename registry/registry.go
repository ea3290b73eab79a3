// Package registry owns the mapping from message-variant tag to worker
// instance: one long-lived, single-threaded worker per catalog variant, no
// pooling. Workers are constructed from static descriptors, resolving their
// constructor dependencies through the dependency provider at construction
// time. Construction never uses Scoped dependencies; a handler that needs
// one opens a scope inside its handling path instead.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/amp-labs/amp-dispatch/errs"
	"github.com/amp-labs/amp-dispatch/forecast"
	"github.com/amp-labs/amp-dispatch/logger"
	"github.com/amp-labs/amp-dispatch/provider"
	"github.com/amp-labs/amp-dispatch/worker"
)

var (
	// ErrWorkerUnavailable is returned when dispatching to a variant whose
	// worker failed construction (quarantined) or exhausted its restart
	// budget. Not fatal to the router.
	ErrWorkerUnavailable = errors.New("worker unavailable")
	// ErrNoDescriptor is returned when no descriptor covers a variant.
	ErrNoDescriptor = errors.New("no descriptor for message kind")
	// ErrDuplicateDescriptor is returned when two descriptors claim the
	// same variant.
	ErrDuplicateDescriptor = errors.New("duplicate descriptor")
	// ErrNilConstructor is returned when a descriptor has no constructor.
	ErrNilConstructor = errors.New("descriptor constructor is nil")
)

// Handler processes one forecast message. Implementations are selected by
// variant tag through a table lookup; a returned error counts against the
// owning worker's restart budget.
type Handler interface {
	Handle(ctx context.Context, msg forecast.Message) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, msg forecast.Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg forecast.Message) error {
	return f(ctx, msg)
}

// Deps holds constructor dependencies resolved from the provider, keyed by
// service key.
type Deps map[string]any

// As extracts a typed dependency from the resolved set.
func As[T any](deps Deps, key string) (T, error) { //nolint:ireturn
	var zero T

	value, ok := deps[key]
	if !ok {
		return zero, fmt.Errorf("%w: %q", provider.ErrNotRegistered, key)
	}

	typed, ok := value.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %q resolved to %T", errs.ErrWrongType, key, value)
	}

	return typed, nil
}

// Descriptor maps one message variant to its worker construction recipe.
// Descriptors are built once at startup and immutable thereafter.
type Descriptor struct {
	// Kind is the variant this worker owns.
	Kind forecast.Kind
	// Mailbox is the worker's mailbox buffer depth.
	Mailbox int
	// Dependencies lists the service keys resolved at construction time.
	// Only Singleton and Transient lifetimes are valid here; a Scoped key
	// fails construction with ErrInvalidLifetimeUsage.
	Dependencies []string
	// Restart is the supervision policy for the worker.
	Restart worker.RestartPolicy
	// New constructs the variant's handler from its resolved dependencies.
	New func(ctx context.Context, deps Deps) (Handler, error)
}

// FaultPolicy decides what a worker construction failure does to startup.
type FaultPolicy string

const (
	// FailFast propagates the construction error: the process does not
	// start serving. This is the default.
	FailFast FaultPolicy = "failfast"
	// Quarantine isolates the failed variant: later dispatches to it fail
	// with ErrWorkerUnavailable while other variants keep working.
	Quarantine FaultPolicy = "quarantine"
)

// WorkerRef is the worker handle type held per variant. Responses are
// unused on the dispatch path (fire-and-forget); request-response is used
// by tests.
type WorkerRef = worker.Ref[forecast.Message, struct{}]

// Option configures a Registry.
type Option func(*Registry)

// WithFaultPolicy overrides the default FailFast construction fault policy.
func WithFaultPolicy(policy FaultPolicy) Option {
	return func(r *Registry) {
		r.policy = policy
	}
}

// Registry holds one worker per message variant, created lazily on first
// dispatch or eagerly via CreateAll. The worker map is mutated only during
// initialization; dispatch-path reads go through a read lock.
type Registry struct {
	prov        *provider.Provider
	descriptors map[forecast.Kind]Descriptor
	order       []forecast.Kind
	policy      FaultPolicy

	mu          sync.RWMutex
	workers     map[forecast.Kind]*WorkerRef
	quarantined map[forecast.Kind]error
}

// New builds a registry over the given descriptor table.
func New(prov *provider.Provider, descriptors []Descriptor, opts ...Option) (*Registry, error) {
	reg := &Registry{
		prov:        prov,
		descriptors: make(map[forecast.Kind]Descriptor, len(descriptors)),
		policy:      FailFast,
		workers:     make(map[forecast.Kind]*WorkerRef, len(descriptors)),
		quarantined: make(map[forecast.Kind]error),
	}

	for _, desc := range descriptors {
		if !desc.Kind.Valid() {
			return nil, fmt.Errorf("%w: %q", forecast.ErrUnknownKind, desc.Kind)
		}

		if desc.New == nil {
			return nil, fmt.Errorf("%w: %q", ErrNilConstructor, desc.Kind)
		}

		if _, exists := reg.descriptors[desc.Kind]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateDescriptor, desc.Kind)
		}

		reg.descriptors[desc.Kind] = desc
		reg.order = append(reg.order, desc.Kind)
	}

	for _, opt := range opts {
		opt(reg)
	}

	return reg, nil
}

// Kinds returns the variants covered by the descriptor table, in
// registration order.
func (r *Registry) Kinds() []forecast.Kind {
	return r.order
}

// GetOrCreate returns the worker owning the given variant, constructing it
// on first call. Repeated calls return the same handle. The context passed
// to the first call governs the worker's run lifetime; canceling it is a
// forced stop.
func (r *Registry) GetOrCreate(ctx context.Context, kind forecast.Kind) (*WorkerRef, error) {
	r.mu.RLock()
	ref, ok := r.workers[kind]
	cause, isQuarantined := r.quarantined[kind]
	r.mu.RUnlock()

	if isQuarantined {
		return nil, fmt.Errorf("%w: %q: %w", ErrWorkerUnavailable, kind, cause)
	}

	if ok {
		if !ref.Alive() {
			return nil, fmt.Errorf("%w: %q: restart budget exhausted", ErrWorkerUnavailable, kind)
		}

		return ref, nil
	}

	return r.create(ctx, kind)
}

// create constructs the variant's worker under the write lock.
func (r *Registry) create(ctx context.Context, kind forecast.Kind) (*WorkerRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Another caller may have won the race.
	if ref, ok := r.workers[kind]; ok {
		return ref, nil
	}

	if cause, isQuarantined := r.quarantined[kind]; isQuarantined {
		return nil, fmt.Errorf("%w: %q: %w", ErrWorkerUnavailable, kind, cause)
	}

	desc, ok := r.descriptors[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoDescriptor, kind)
	}

	handler, err := r.construct(ctx, desc)
	if err != nil {
		return nil, r.faulted(ctx, kind, err)
	}

	wk := worker.New(
		func(ref *WorkerRef) worker.Processor[forecast.Message, struct{}] {
			return worker.NewProcessor(func(ctx context.Context, msg worker.Message[forecast.Message, struct{}]) error {
				ctx = logger.WithCorrelationId(ctx, msg.CorrelationId)

				return handler.Handle(ctx, msg.Request)
			})
		},
		worker.WithRestartPolicy[forecast.Message, struct{}](desc.Restart),
	)

	ref := wk.Run(ctx, "worker-"+kind.String(), desc.Mailbox)

	r.workers[kind] = ref

	logger.Get(ctx).Info("worker created", "kind", kind.String(), "mailbox", desc.Mailbox)

	return ref, nil
}

// construct resolves the descriptor's dependencies and invokes its
// constructor. The context carries no open scope, so Scoped service keys
// fail here with ErrInvalidLifetimeUsage.
func (r *Registry) construct(ctx context.Context, desc Descriptor) (Handler, error) { //nolint:ireturn
	deps := make(Deps, len(desc.Dependencies))

	for _, key := range desc.Dependencies {
		value, err := r.prov.Resolve(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("constructing worker for %q: %w", desc.Kind, err)
		}

		deps[key] = value
	}

	handler, err := desc.New(ctx, deps)
	if err != nil {
		return nil, fmt.Errorf("constructing worker for %q: %w", desc.Kind, err)
	}

	return handler, nil
}

// faulted applies the configured fault policy to a construction error.
// Construction failures are never retried silently.
func (r *Registry) faulted(ctx context.Context, kind forecast.Kind, err error) error {
	if r.policy == Quarantine {
		r.quarantined[kind] = err

		logger.Get(ctx).Error("worker construction failed, variant quarantined",
			"kind", kind.String(),
			"error", err)

		return fmt.Errorf("%w: %q: %w", ErrWorkerUnavailable, kind, err)
	}

	logger.Get(ctx).Error("worker construction failed",
		"kind", kind.String(),
		"error", err)

	return err
}

// CreateAll eagerly constructs one worker per descriptor, in registration
// order. Under FailFast the first construction error aborts; under
// Quarantine failed variants are isolated and the rest are still created.
func (r *Registry) CreateAll(ctx context.Context) error {
	for _, kind := range r.order {
		_, err := r.GetOrCreate(ctx, kind)
		if err != nil {
			if r.policy == Quarantine && errors.Is(err, ErrWorkerUnavailable) {
				continue
			}

			return err
		}
	}

	return nil
}

// Quarantined returns the construction error that quarantined a variant,
// if any.
func (r *Registry) Quarantined(kind forecast.Kind) (error, bool) { //nolint:revive
	r.mu.RLock()
	defer r.mu.RUnlock()

	err, ok := r.quarantined[kind]

	return err, ok
}

// StopAll closes every worker's mailbox. Queued messages still drain.
func (r *Registry) StopAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, ref := range r.workers {
		ref.Stop()
	}
}

// WaitAll blocks until every worker has stopped processing.
func (r *Registry) WaitAll() {
	r.mu.RLock()
	refs := make([]*WorkerRef, 0, len(r.workers))

	for _, ref := range r.workers {
		refs = append(refs, ref)
	}
	r.mu.RUnlock()

	for _, ref := range refs {
		ref.Wait()
	}
}
