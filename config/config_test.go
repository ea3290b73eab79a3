package config_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/amp-labs/amp-dispatch/config"
	"github.com/amp-labs/amp-dispatch/forecast"
	"github.com/amp-labs/amp-dispatch/registry"
	"github.com/amp-labs/amp-dispatch/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
subsystem: dispatch
faultPolicy: quarantine
drainGrace: 15s
workers:
  - kind: high
    mailbox: 32
    maxRestarts: 5
    restartWindow: 2m
  - kind: medium
    mailbox: 16
  - kind: low
    mailbox: 8
`

func TestLoadFromBytes(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromBytes([]byte(validYAML))
	require.NoError(t, err)

	assert.Equal(t, "dispatch", cfg.Subsystem)
	assert.Equal(t, registry.Quarantine, cfg.Policy())

	grace, err := cfg.Grace()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, grace)

	require.Len(t, cfg.Workers, 3)

	restart, err := cfg.Workers[0].Restart()
	require.NoError(t, err)
	assert.Equal(t, worker.RestartPolicy{MaxRestarts: 5, Window: 2 * time.Minute}, restart)

	// Unset restart settings fall back to the default policy.
	restart, err = cfg.Workers[1].Restart()
	require.NoError(t, err)
	assert.Equal(t, worker.DefaultRestartPolicy, restart)
}

func TestLoadFromBytesRejectsBadYAML(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromBytes([]byte("workers: [unclosed"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tcs := []struct {
		name    string
		yaml    string
		wantErr error
	}{
		{
			name:    "no workers",
			yaml:    "subsystem: x",
			wantErr: config.ErrNoWorkers,
		},
		{
			name:    "missing kind",
			yaml:    "workers:\n  - mailbox: 4",
			wantErr: config.ErrWorkerKindRequired,
		},
		{
			name:    "unknown kind",
			yaml:    "workers:\n  - kind: sideways",
			wantErr: forecast.ErrUnknownKind,
		},
		{
			name:    "duplicate kind",
			yaml:    "workers:\n  - kind: high\n  - kind: HIGH",
			wantErr: config.ErrDuplicateWorker,
		},
		{
			name:    "negative mailbox",
			yaml:    "workers:\n  - kind: high\n    mailbox: -1",
			wantErr: config.ErrBadMailbox,
		},
		{
			name:    "negative restarts",
			yaml:    "workers:\n  - kind: high\n    maxRestarts: -2",
			wantErr: config.ErrBadRestarts,
		},
		{
			name:    "bad window",
			yaml:    "workers:\n  - kind: high\n    restartWindow: soon",
			wantErr: config.ErrBadDuration,
		},
		{
			name:    "bad grace",
			yaml:    "drainGrace: never\nworkers:\n  - kind: high",
			wantErr: config.ErrBadDuration,
		},
		{
			name:    "bad fault policy",
			yaml:    "faultPolicy: shrug\nworkers:\n  - kind: high",
			wantErr: config.ErrBadFaultPolicy,
		},
	}

	for _, tc := range tcs {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := config.LoadFromBytes([]byte(tc.yaml))
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestApplyOverlaysDescriptors(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromBytes([]byte(validYAML))
	require.NoError(t, err)

	noop := func(ctx context.Context, deps registry.Deps) (registry.Handler, error) {
		return registry.HandlerFunc(func(ctx context.Context, msg forecast.Message) error {
			return nil
		}), nil
	}

	descriptors := []registry.Descriptor{
		{Kind: forecast.High, Mailbox: 1, Restart: worker.DefaultRestartPolicy, New: noop},
		{Kind: forecast.Low, Mailbox: 1, Restart: worker.DefaultRestartPolicy, New: noop},
	}

	applied, err := cfg.Apply(descriptors)
	require.NoError(t, err)
	require.Len(t, applied, 2)

	assert.Equal(t, 32, applied[0].Mailbox)
	assert.Equal(t, worker.RestartPolicy{MaxRestarts: 5, Window: 2 * time.Minute}, applied[0].Restart)

	assert.Equal(t, 8, applied[1].Mailbox)
	assert.Equal(t, worker.DefaultRestartPolicy, applied[1].Restart)

	// The input table is not mutated.
	assert.Equal(t, 1, descriptors[0].Mailbox)
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := t.TempDir() + "/dispatch.yaml"
	require.NoError(t, os.WriteFile(path, []byte(validYAML), 0o600))

	cfg, err := config.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "dispatch", cfg.Subsystem)

	_, err = config.LoadFile(t.TempDir() + "/missing.yaml")
	require.Error(t, err)
}
