// Package try provides a result envelope carried on worker reply channels.
package try

// Try holds either a value or an error.
type Try[A any] struct {
	Value A
	Error error
}

// Ok wraps a successful value.
func Ok[A any](value A) Try[A] {
	return Try[A]{Value: value}
}

// Fail wraps an error.
func Fail[A any](err error) Try[A] {
	return Try[A]{Error: err}
}

func (t Try[A]) IsSuccess() bool {
	return t.Error == nil
}

func (t Try[A]) IsFailure() bool {
	return t.Error != nil
}

// Get unpacks the envelope into Go's usual (value, error) shape.
func (t Try[A]) Get() (A, error) { //nolint:ireturn
	if t.IsFailure() {
		var zero A

		return zero, t.Error
	}

	return t.Value, nil
}

// GetOrElse returns the value, or the given default on failure.
func (t Try[A]) GetOrElse(defaultValue A) A { //nolint:ireturn
	if t.IsSuccess() {
		return t.Value
	}

	return defaultValue
}
