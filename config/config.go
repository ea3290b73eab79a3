// Package config loads the YAML configuration describing the dispatch
// setup: one worker entry per catalog variant plus router-level settings.
// Loading validates eagerly; a config that parses but names an unknown
// variant or an unparsable duration never reaches the router.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/amp-labs/amp-dispatch/forecast"
	"github.com/amp-labs/amp-dispatch/registry"
	"github.com/amp-labs/amp-dispatch/worker"
	"gopkg.in/yaml.v3"
)

var (
	// ErrNoWorkers is returned when the config declares no workers.
	ErrNoWorkers = errors.New("config: at least one worker is required")
	// ErrWorkerKindRequired is returned when a worker entry has no kind.
	ErrWorkerKindRequired = errors.New("config: worker kind is required")
	// ErrDuplicateWorker is returned when two entries name the same kind.
	ErrDuplicateWorker = errors.New("config: duplicate worker kind")
	// ErrBadMailbox is returned for a negative mailbox depth.
	ErrBadMailbox = errors.New("config: mailbox depth must not be negative")
	// ErrBadRestarts is returned for a negative restart budget.
	ErrBadRestarts = errors.New("config: max restarts must not be negative")
	// ErrBadDuration is returned for an unparsable duration string.
	ErrBadDuration = errors.New("config: invalid duration")
	// ErrBadFaultPolicy is returned for an unknown fault policy name.
	ErrBadFaultPolicy = errors.New("config: unknown fault policy")
)

// Config is the root dispatch configuration.
type Config struct {
	// Subsystem names the process in log lines and metric labels.
	Subsystem string `json:"subsystem" yaml:"subsystem"`
	// FaultPolicy is "failfast" (default) or "quarantine".
	FaultPolicy string `json:"faultPolicy" yaml:"faultPolicy"`
	// DrainGrace bounds how long Drain waits for queued messages,
	// e.g. "10s". Empty means the router default.
	DrainGrace string `json:"drainGrace" yaml:"drainGrace"`
	// Workers holds one entry per catalog variant.
	Workers []WorkerConfig `json:"workers" yaml:"workers"`
}

// WorkerConfig configures the worker owning one variant.
type WorkerConfig struct {
	Kind    string `json:"kind"    yaml:"kind"`
	Mailbox int    `json:"mailbox" yaml:"mailbox"`
	// MaxRestarts and RestartWindow set the supervision budget: at most
	// MaxRestarts processor restarts within a rolling RestartWindow
	// (e.g. "1m"). Zero values fall back to worker.DefaultRestartPolicy.
	MaxRestarts   int    `json:"maxRestarts"   yaml:"maxRestarts"`
	RestartWindow string `json:"restartWindow" yaml:"restartWindow"`
}

// LoadFile loads and validates a config from a YAML file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Intentional path-based loading
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
	}

	return LoadFromBytes(data)
}

// LoadFromBytes loads and validates a config from YAML bytes.
func LoadFromBytes(data []byte) (*Config, error) {
	var cfg Config

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch registry.FaultPolicy(c.FaultPolicy) {
	case "", registry.FailFast, registry.Quarantine:
	default:
		return fmt.Errorf("%w: %q", ErrBadFaultPolicy, c.FaultPolicy)
	}

	if _, err := parseDuration(c.DrainGrace); err != nil {
		return fmt.Errorf("drainGrace: %w", err)
	}

	if len(c.Workers) == 0 {
		return ErrNoWorkers
	}

	seen := make(map[forecast.Kind]bool)

	for i, wc := range c.Workers {
		if wc.Kind == "" {
			return fmt.Errorf("worker %d: %w", i, ErrWorkerKindRequired)
		}

		kind, err := forecast.Parse(wc.Kind)
		if err != nil {
			return fmt.Errorf("worker %d: %w", i, err)
		}

		if seen[kind] {
			return fmt.Errorf("worker %d: %w: %q", i, ErrDuplicateWorker, kind)
		}

		seen[kind] = true

		if wc.Mailbox < 0 {
			return fmt.Errorf("worker %q: %w", kind, ErrBadMailbox)
		}

		if wc.MaxRestarts < 0 {
			return fmt.Errorf("worker %q: %w", kind, ErrBadRestarts)
		}

		if _, err := parseDuration(wc.RestartWindow); err != nil {
			return fmt.Errorf("worker %q: %w", kind, err)
		}
	}

	return nil
}

// Policy returns the configured fault policy, defaulting to FailFast.
func (c *Config) Policy() registry.FaultPolicy {
	if c.FaultPolicy == "" {
		return registry.FailFast
	}

	return registry.FaultPolicy(c.FaultPolicy)
}

// Grace returns the configured drain grace, or zero when unset (callers
// fall back to the router default).
func (c *Config) Grace() (time.Duration, error) {
	return parseDuration(c.DrainGrace)
}

// Restart returns the supervision policy for a worker entry, falling back
// to worker.DefaultRestartPolicy when unset.
func (w *WorkerConfig) Restart() (worker.RestartPolicy, error) {
	window, err := parseDuration(w.RestartWindow)
	if err != nil {
		return worker.RestartPolicy{}, err
	}

	if w.MaxRestarts == 0 && window == 0 {
		return worker.DefaultRestartPolicy, nil
	}

	if window == 0 {
		window = worker.DefaultRestartPolicy.Window
	}

	return worker.RestartPolicy{MaxRestarts: w.MaxRestarts, Window: window}, nil
}

// Apply overlays the config's per-worker settings onto a descriptor table:
// mailbox depth and restart policy for each kind the config mentions.
// Descriptors for kinds absent from the config are returned unchanged.
// Validate must have passed before calling Apply.
func (c *Config) Apply(descriptors []registry.Descriptor) ([]registry.Descriptor, error) {
	byKind := make(map[forecast.Kind]WorkerConfig, len(c.Workers))

	for _, wc := range c.Workers {
		kind, err := forecast.Parse(wc.Kind)
		if err != nil {
			return nil, err
		}

		byKind[kind] = wc
	}

	out := make([]registry.Descriptor, len(descriptors))

	for i, desc := range descriptors {
		wc, ok := byKind[desc.Kind]
		if !ok {
			out[i] = desc

			continue
		}

		restart, err := wc.Restart()
		if err != nil {
			return nil, err
		}

		desc.Mailbox = wc.Mailbox
		desc.Restart = restart
		out[i] = desc
	}

	return out, nil
}

// parseDuration parses an optional duration string; empty means zero.
func parseDuration(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadDuration, raw)
	}

	return d, nil
}
