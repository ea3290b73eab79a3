package lazy

import "sync"

// OfErr is a value initialized at most once by a fallible initializer.
// A successful result is memoized; errors are NOT memoized, so a failed
// initializer runs again on the next Get. This is what singleton dependency
// resolution needs: a registration whose factory failed at startup can be
// retried, but a constructed instance is shared forever.
type OfErr[T any] struct {
	create func() (T, error)
	value  T

	mu   sync.Mutex
	done bool
}

// NewErr creates a lazy value with a fallible initializer.
func NewErr[T any](f func() (T, error)) *OfErr[T] {
	return &OfErr[T]{create: f}
}

// Get returns the value, running the initializer if it has not yet
// succeeded. Concurrent callers serialize on the first initialization.
func (t *OfErr[T]) Get() (T, error) { //nolint:ireturn
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return t.value, nil
	}

	value, err := t.create()
	if err != nil {
		var zero T

		return zero, err
	}

	t.value = value
	t.done = true
	t.create = nil

	return t.value, nil
}

// Set overwrites the value, bypassing the initializer.
func (t *OfErr[T]) Set(value T) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.value = value
	t.done = true
	t.create = nil
}

// Initialized reports whether the value has been produced.
func (t *OfErr[T]) Initialized() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.done
}
