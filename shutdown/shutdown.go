// Package shutdown coordinates process shutdown. Hooks registered with
// Before run when a termination signal arrives (or Trigger is called), with
// a bounded grace period: each hook receives a context that expires when the
// grace runs out, so draining work cannot stall the exit indefinitely.
package shutdown

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// DefaultGrace is the grace period used when SetupHandler is given zero.
const DefaultGrace = 10 * time.Second

var (
	mut     sync.Mutex     //nolint:gochecknoglobals
	hooks   []func(context.Context) //nolint:gochecknoglobals
	channel chan os.Signal //nolint:gochecknoglobals
)

// Before registers a hook to run when shutdown begins. Hooks run in
// registration order, each with the shared grace-period context.
func Before(h func(ctx context.Context)) {
	mut.Lock()
	defer mut.Unlock()

	hooks = append(hooks, h)
}

// Trigger starts the shutdown process programmatically, as if a termination
// signal had been received.
func Trigger() {
	mut.Lock()
	ch := channel
	mut.Unlock()

	if ch != nil {
		ch <- os.Interrupt
	}
}

// SetupHandler installs a SIGINT/SIGTERM handler and returns a context that
// is canceled once all hooks have run (or the grace period expired). Pass
// zero for the default grace.
func SetupHandler(grace time.Duration) context.Context {
	if grace <= 0 {
		grace = DefaultGrace
	}

	mut.Lock()
	channel = make(chan os.Signal, 1)
	ch := channel
	mut.Unlock()

	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		for c := range ch {
			slog.Warn("Received " + c.String() + ", shutting down...")
			close(ch)

			mut.Lock()
			channel = nil
			mut.Unlock()

			runHooks(grace)
			cancel()
		}
	}()

	return ctx
}

// runHooks executes all registered hooks under a single grace deadline.
func runHooks(grace time.Duration) {
	mut.Lock()
	pending := hooks
	hooks = nil
	mut.Unlock()

	graceCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	for _, h := range pending {
		h(graceCtx)
	}
}
