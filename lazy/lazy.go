// Package lazy provides values that are initialized at most once, on first
// access. The provider package uses it to back singleton lifetimes, and the
// logger uses it for process-level facts like the hostname.
package lazy

import (
	"sync"

	"go.uber.org/atomic"
)

// Of is a value initialized at most once, on first Get.
type Of[T any] struct {
	create      func() T
	once        sync.Once
	value       T
	initialized atomic.Bool
}

// New creates a lazy value. The callback runs on the first call to Get.
func New[T any](f func() T) *Of[T] {
	return &Of[T]{create: f}
}

// Get returns the value, initializing it if necessary.
func (t *Of[T]) Get() T { //nolint:ireturn
	t.once.Do(func() {
		if t.create != nil {
			t.value = t.create()
			t.initialized.Store(true)
			t.create = nil
		}
	})

	return t.value
}

// Set overwrites the value, bypassing the initializer.
func (t *Of[T]) Set(value T) {
	t.create = nil
	t.value = value
	t.initialized.Store(true)
}

// Initialized reports whether the value has been produced. Intended for
// tests and diagnostics only.
func (t *Of[T]) Initialized() bool {
	return t.initialized.Load()
}
