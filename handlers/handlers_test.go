package handlers_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/amp-labs/amp-dispatch/forecast"
	"github.com/amp-labs/amp-dispatch/handlers"
	"github.com/amp-labs/amp-dispatch/logger"
	"github.com/amp-labs/amp-dispatch/provider"
	"github.com/amp-labs/amp-dispatch/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureLogs redirects the default logger into a buffer. Tests using it
// mutate global logging state and must not run in parallel.
func captureLogs(opts logger.Options) *bytes.Buffer {
	var buf bytes.Buffer

	opts.JSON = true
	opts.MinLevel = slog.LevelDebug
	opts.Output = &buf

	logger.ConfigureLoggingWithOptions(opts)

	return &buf
}

func TestHighHandlerLogsOneLine(t *testing.T) { //nolint:paralleltest
	buf := captureLogs(logger.Options{Subsystem: "handlers-test"})

	handler := handlers.NewHighHandler()
	require.NoError(t, handler.Handle(context.Background(), forecast.New(forecast.High)))

	out := buf.String()
	assert.Contains(t, out, "High temperature forecast")
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("\n")))
}

func TestLowHandlerReportsWeather(t *testing.T) { //nolint:paralleltest
	buf := captureLogs(logger.Options{Subsystem: "handlers-test"})

	handler := handlers.NewLowHandler(handlers.StaticWeather("Sunny"))
	require.NoError(t, handler.Handle(context.Background(), forecast.New(forecast.Low)))

	out := buf.String()
	assert.Contains(t, out, "Low temperature forecast")
	assert.Contains(t, out, "The weather is Sunny")
}

func TestMediumHandlerUsesScopedReading(t *testing.T) { //nolint:paralleltest
	buf := captureLogs(logger.Options{Subsystem: "handlers-test"})

	released := false

	p := provider.New()
	require.NoError(t, p.RegisterScoped(handlers.CurrentWeatherKey,
		func(ctx context.Context) (any, provider.Closer, error) {
			return handlers.StaticWeather("Overcast"), func() error {
				released = true

				return nil
			}, nil
		}))

	handler := handlers.NewMediumHandler(p)
	require.NoError(t, handler.Handle(context.Background(), forecast.New(forecast.Medium)))

	assert.Contains(t, buf.String(), "Current conditions: Overcast")
	// The per-message reading is disposed when handling finishes.
	assert.True(t, released)
}

func TestMediumHandlerFailsWithoutScopedRegistration(t *testing.T) { //nolint:paralleltest
	captureLogs(logger.Options{Subsystem: "handlers-test"})

	handler := handlers.NewMediumHandler(provider.New())

	err := handler.Handle(context.Background(), forecast.New(forecast.Medium))
	require.ErrorIs(t, err, provider.ErrNotRegistered)
}

func TestDescriptorsCoverTheCatalog(t *testing.T) {
	t.Parallel()

	p := provider.New()
	require.NoError(t, p.RegisterSingleton(handlers.WeatherKey,
		func(ctx context.Context) (any, provider.Closer, error) {
			return handlers.StaticWeather("Sunny"), nil, nil
		}))

	reg, err := registry.New(p, handlers.Descriptors(p))
	require.NoError(t, err)

	covered := make(map[forecast.Kind]bool)
	for _, kind := range reg.Kinds() {
		covered[kind] = true
	}

	for _, kind := range forecast.Kinds() {
		assert.True(t, covered[kind], "no descriptor for %q", kind)
	}
}
