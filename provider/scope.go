package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/amp-labs/amp-dispatch/errs"
	"github.com/google/uuid"
)

// ErrScopeReleased is returned when resolving through a scope after it has
// been released. A released scope's instances are disposed; handing them
// out again would be a stale-dependency bug.
var ErrScopeReleased = errors.New("scope has been released")

// scopeKey is the context key carrying the open scope.
type scopeKey struct{}

// Scope is one bounded acquisition window. Scoped instances are memoized
// per service key for the scope's lifetime and released together when the
// scope closes.
type Scope struct {
	id string

	mu       sync.Mutex
	values   map[string]any
	closers  []Closer
	released bool
}

func newScope() *Scope {
	return &Scope{
		id:     uuid.New().String(),
		values: make(map[string]any),
	}
}

// Id returns the scope's unique identifier, useful for log correlation.
func (s *Scope) Id() string {
	return s.id
}

// resolve memoizes one scoped instance per key within the scope.
func (s *Scope) resolve(ctx context.Context, key string, factory Factory) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return nil, fmt.Errorf("%w: cannot resolve %q", ErrScopeReleased, key)
	}

	if value, ok := s.values[key]; ok {
		return value, nil
	}

	value, closer, err := factory(ctx)
	if err != nil {
		return nil, err
	}

	s.values[key] = value

	if closer != nil {
		s.closers = append(s.closers, closer)
	}

	return value, nil
}

// addCloser attaches a transient instance's closer to the scope.
func (s *Scope) addCloser(closer Closer) {
	s.mu.Lock()
	released := s.released

	if !released {
		s.closers = append(s.closers, closer)
	}

	s.mu.Unlock()

	if released {
		// Late closer on a released scope: run it immediately rather
		// than leaking the resource.
		_ = closer()
	}
}

// release disposes all instances held by the scope, in reverse acquisition
// order, and invalidates the scope.
func (s *Scope) release() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return nil
	}

	s.released = true

	var col errs.Collection

	for i := len(s.closers) - 1; i >= 0; i-- {
		col.Add(s.closers[i]())
	}

	s.closers = nil
	s.values = nil

	return col.GetError()
}

// withScope embeds an open scope in the context.
func withScope(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// scopeFrom extracts the open scope from the context, or nil.
func scopeFrom(ctx context.Context) *Scope {
	if ctx == nil {
		return nil
	}

	s, _ := ctx.Value(scopeKey{}).(*Scope)

	return s
}

// InScope runs fn inside a bounded acquisition window: open scope, use,
// release. Scoped dependencies resolved through fn's context are memoized
// for the duration of the call and disposed when fn returns, even on error.
// Errors from fn and from the release are collected together.
//
// This is the only supported way to consume Scoped dependencies; capturing
// one at construction time in a long-lived owner is rejected by Resolve.
func (p *Provider) InScope(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.closed.Load() {
		return ErrProviderClosed
	}

	scope := newScope()

	var col errs.Collection

	col.Add(fn(withScope(ctx, scope)))
	col.Add(scope.release())

	return col.GetError()
}
