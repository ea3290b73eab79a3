// Package bgworker provides a shared background worker pool for boundary
// producers and side effects that should not run on a dispatch path.
package bgworker

import (
	"context"
	"log/slog"
	"os"
	"strconv"

	"github.com/alitto/pond/v2"
	"github.com/amp-labs/amp-dispatch/lazy"
	"github.com/amp-labs/amp-dispatch/shutdown"
)

const defaultWorkerCount = 10

// workerPool is a lazy-initialized background worker pool. It is stopped
// (draining queued tasks) during process shutdown.
var workerPool = lazy.New[pond.Pool](func() pond.Pool { //nolint:gochecknoglobals
	count := defaultWorkerCount

	if raw := os.Getenv("BACKGROUND_WORKER_COUNT"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			count = parsed
		}
	}

	slog.Debug("Initializing background worker pool", "count", count)

	pool := pond.NewPool(count)

	shutdown.Before(func(ctx context.Context) {
		slog.Debug("Stopping background worker pool")
		pool.StopAndWait()
		slog.Debug("Background worker pool stopped")
	})

	return pool
})

// Submit submits a function to the background worker pool and returns a
// Task that can be used to wait for completion.
func Submit(f func()) pond.Task { //nolint:ireturn
	return workerPool.Get().Submit(f)
}

// Go submits a function to the background worker pool and returns
// immediately. It returns an error if the pool is stopped.
func Go(f func()) error {
	return workerPool.Get().Go(f)
}
