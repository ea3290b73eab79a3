// Package errs holds small error utilities shared across the module.
package errs

import "errors"

// ErrWrongType is returned when a resolved dependency does not have the
// type the caller asked for.
var ErrWrongType = errors.New("wrong type")

// Collection accumulates errors from multiple operations so they can be
// returned together. It is not safe for concurrent use; guard it with the
// owner's lock if needed.
type Collection struct {
	errors []error
}

// Add appends an error to the collection. Nil errors are ignored.
func (c *Collection) Add(err error) {
	if err != nil {
		c.errors = append(c.errors, err)
	}
}

// Clear resets the collection to an empty state.
func (c *Collection) Clear() {
	c.errors = nil
}

// HasError returns true if at least one error has been collected.
func (c *Collection) HasError() bool {
	return len(c.errors) > 0
}

// GetError returns nil for an empty collection, the error itself when there
// is exactly one, and an errors.Join of all of them otherwise.
func (c *Collection) GetError() error {
	switch len(c.errors) {
	case 0:
		return nil
	case 1:
		return c.errors[0]
	default:
		return errors.Join(c.errors...)
	}
}
