// Package channels holds the channel plumbing shared by the worker mailboxes.
package channels

// Create makes a mailbox channel with the given buffer depth and returns its
// write end, read end, and a function reporting the current queue length.
// A depth of 0 produces an unbuffered (rendezvous) mailbox.
func Create[T any](depth int) (chan<- T, <-chan T, func() int) {
	ch := make(chan T, depth)

	return ch, ch, func() int {
		return len(ch)
	}
}

// CloseIgnorePanic closes a channel, suppressing the panic that results
// from closing an already-closed channel. Worker shutdown can race with
// context cancellation, so double-close must be harmless.
func CloseIgnorePanic[T any](ch chan<- T) {
	if ch == nil {
		return
	}

	defer func() {
		_ = recover()
	}()

	close(ch)
}
