// Package provider implements a dependency provider with three lifetime
// scopes: Singleton (one shared instance), Transient (fresh instance per
// resolution), and Scoped (valid only inside a bounded acquisition opened
// with InScope).
//
// The provider is an explicit object constructed once at startup and passed
// to whatever needs to resolve dependencies; there is no ambient or global
// lookup. Resolving a Scoped dependency outside an open scope is a
// configuration error and fails fast with ErrInvalidLifetimeUsage rather
// than handing out an instance that would outlive its scope.
package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/amp-labs/amp-dispatch/errs"
	"github.com/amp-labs/amp-dispatch/lazy"
	"go.uber.org/atomic"
)

var (
	// ErrNotRegistered is returned when resolving a service key that has
	// no registration.
	ErrNotRegistered = errors.New("dependency not registered")
	// ErrAlreadyRegistered is returned when registering a key twice.
	ErrAlreadyRegistered = errors.New("dependency already registered")
	// ErrProviderSealed is returned when registering after the first
	// resolution. The registration table is immutable once in use.
	ErrProviderSealed = errors.New("provider is sealed")
	// ErrProviderClosed is returned when resolving through a closed provider.
	ErrProviderClosed = errors.New("provider is closed")
	// ErrInvalidLifetimeUsage is returned when a Scoped dependency is
	// resolved outside a bounded scope. A long-lived owner must never
	// capture a scoped instance.
	ErrInvalidLifetimeUsage = errors.New("invalid lifetime usage")
)

// Lifetime controls how long a resolved instance lives.
type Lifetime string

const (
	// Singleton dependencies are constructed once and shared by all callers.
	Singleton Lifetime = "singleton"
	// Transient dependencies are constructed fresh on every resolution.
	Transient Lifetime = "transient"
	// Scoped dependencies are valid only within a bounded acquisition
	// opened with InScope; the scope memoizes them per key and runs their
	// closers at release.
	Scoped Lifetime = "scoped"
)

// Closer releases a resolved instance. It follows io.Closer's signature.
type Closer func() error

// Factory constructs a dependency instance. The returned Closer may be nil
// when the instance needs no cleanup.
type Factory func(ctx context.Context) (any, Closer, error)

// registration is one entry in the provider's immutable service table.
type registration struct {
	lifetime Lifetime
	factory  Factory
	// single memoizes the instance for Singleton registrations.
	single *lazy.OfErr[any]
}

// Provider resolves named service instances with lifetime semantics.
// It is safe for concurrent use.
type Provider struct {
	mu            sync.RWMutex
	registrations map[string]*registration

	sealed atomic.Bool
	closed atomic.Bool

	closerMu sync.Mutex
	closers  []Closer
}

// New creates an empty provider. Register all dependencies before the
// first resolution; the table seals itself once in use.
func New() *Provider {
	return &Provider{
		registrations: make(map[string]*registration),
	}
}

// RegisterSingleton registers a dependency constructed once and shared
// across all resolutions. Its closer runs when the provider is closed.
func (p *Provider) RegisterSingleton(key string, factory Factory) error {
	return p.register(key, Singleton, factory)
}

// RegisterTransient registers a dependency constructed fresh per
// resolution. When resolved inside a scope, its closer runs at scope
// release; outside a scope the closer is discarded, so transient factories
// that need cleanup should only be resolved in scoped paths.
func (p *Provider) RegisterTransient(key string, factory Factory) error {
	return p.register(key, Transient, factory)
}

// RegisterScoped registers a dependency valid only within a bounded scope.
func (p *Provider) RegisterScoped(key string, factory Factory) error {
	return p.register(key, Scoped, factory)
}

func (p *Provider) register(key string, lifetime Lifetime, factory Factory) error {
	if p.sealed.Load() {
		return fmt.Errorf("%w: cannot register %q", ErrProviderSealed, key)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.registrations[key]; exists {
		return fmt.Errorf("%w: %q", ErrAlreadyRegistered, key)
	}

	reg := &registration{
		lifetime: lifetime,
		factory:  factory,
	}

	if lifetime == Singleton {
		reg.single = lazy.NewErr(func() (any, error) {
			value, closer, err := factory(context.Background())
			if err != nil {
				return nil, err
			}

			if closer != nil {
				p.addCloser(closer)
			}

			return value, nil
		})
	}

	p.registrations[key] = reg

	return nil
}

// Lifetime returns the registered lifetime for a key.
func (p *Provider) Lifetime(key string) (Lifetime, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	reg, ok := p.registrations[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNotRegistered, key)
	}

	return reg.lifetime, nil
}

// Resolve returns an instance for the given service key.
//
//   - Singleton: the same instance across all calls.
//   - Transient: a fresh instance per call.
//   - Scoped: only valid when ctx carries a scope opened with InScope;
//     otherwise fails with ErrInvalidLifetimeUsage.
func (p *Provider) Resolve(ctx context.Context, key string) (any, error) {
	if p.closed.Load() {
		return nil, ErrProviderClosed
	}

	p.sealed.Store(true)

	p.mu.RLock()
	reg, ok := p.registrations[key]
	p.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotRegistered, key)
	}

	switch reg.lifetime {
	case Singleton:
		return reg.single.Get()
	case Transient:
		value, closer, err := reg.factory(ctx)
		if err != nil {
			return nil, err
		}

		if closer != nil {
			if scope := scopeFrom(ctx); scope != nil {
				scope.addCloser(closer)
			}
		}

		return value, nil
	case Scoped:
		scope := scopeFrom(ctx)
		if scope == nil {
			return nil, fmt.Errorf(
				"%w: %q has a scoped lifetime and must be resolved inside an open scope",
				ErrInvalidLifetimeUsage, key)
		}

		return scope.resolve(ctx, key, reg.factory)
	default:
		return nil, fmt.Errorf("%w: %q has unknown lifetime %q", ErrNotRegistered, key, reg.lifetime)
	}
}

// addCloser records a closer to run when the provider is closed.
func (p *Provider) addCloser(closer Closer) {
	p.closerMu.Lock()
	defer p.closerMu.Unlock()

	p.closers = append(p.closers, closer)
}

// Close releases all singleton instances. The provider cannot be used
// afterwards. Safe to call multiple times.
func (p *Provider) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}

	p.closerMu.Lock()
	closers := p.closers
	p.closers = nil
	p.closerMu.Unlock()

	var col errs.Collection

	// Close in reverse registration order, dependents before dependencies.
	for i := len(closers) - 1; i >= 0; i-- {
		col.Add(closers[i]())
	}

	return col.GetError()
}

// As resolves a service key and asserts its type.
func As[T any](ctx context.Context, p *Provider, key string) (T, error) { //nolint:ireturn
	var zero T

	value, err := p.Resolve(ctx, key)
	if err != nil {
		return zero, err
	}

	typed, ok := value.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %q resolved to %T", errs.ErrWrongType, key, value)
	}

	return typed, nil
}
