package worker

import "time"

// RestartPolicy bounds how often a worker's processor may be restarted
// after a processing error or panic. Restarts beyond MaxRestarts within a
// rolling Window stop the worker instead.
type RestartPolicy struct {
	// MaxRestarts is the maximum number of restarts allowed within Window.
	// Zero (or negative) disables restarts: the first failure stops the
	// worker.
	MaxRestarts int
	// Window is the rolling time window the restart count applies to.
	Window time.Duration
}

// DefaultRestartPolicy resumes a worker after ordinary processing errors,
// but gives up on a tight crash loop.
var DefaultRestartPolicy = RestartPolicy{ //nolint:gochecknoglobals
	MaxRestarts: 3,
	Window:      time.Minute,
}

// restartWindow tracks restart timestamps over a rolling window.
// It is only touched from the worker's message loop, so no locking.
type restartWindow struct {
	policy   RestartPolicy
	restarts []time.Time
}

func newRestartWindow(policy RestartPolicy) *restartWindow {
	return &restartWindow{policy: policy}
}

// Allow reports whether another restart fits the budget at the given time,
// recording it if so.
func (rw *restartWindow) Allow(now time.Time) bool {
	if rw.policy.MaxRestarts <= 0 {
		return false
	}

	cutoff := now.Add(-rw.policy.Window)

	kept := rw.restarts[:0]

	for _, t := range rw.restarts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	rw.restarts = kept

	if len(rw.restarts) >= rw.policy.MaxRestarts {
		return false
	}

	rw.restarts = append(rw.restarts, now)

	return true
}
