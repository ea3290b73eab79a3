package forecast_test

import (
	"testing"

	"github.com/amp-labs/amp-dispatch/forecast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()

	kind, err := forecast.Parse("high")
	require.NoError(t, err)
	assert.Equal(t, forecast.High, kind)

	// Matching is case-insensitive and tolerant of whitespace.
	kind, err = forecast.Parse("  MEDIUM ")
	require.NoError(t, err)
	assert.Equal(t, forecast.Medium, kind)

	kind, err = forecast.Parse("Low")
	require.NoError(t, err)
	assert.Equal(t, forecast.Low, kind)
}

func TestParseUnknownKind(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "extreme", "hig h", "highh"} {
		_, err := forecast.Parse(raw)
		require.ErrorIs(t, err, forecast.ErrUnknownKind, "raw=%q", raw)
	}
}

func TestKindsClosedSet(t *testing.T) {
	t.Parallel()

	kinds := forecast.Kinds()
	require.Len(t, kinds, 3)

	for _, kind := range kinds {
		assert.True(t, kind.Valid())
	}

	assert.False(t, forecast.Kind("extreme").Valid())
}

func TestNew(t *testing.T) {
	t.Parallel()

	msg := forecast.New(forecast.High)

	assert.Equal(t, forecast.High, msg.Kind)
	assert.Equal(t, "High temperature forecast", msg.ForecastType)
	assert.NotEmpty(t, msg.CorrelationId)

	// Every message gets its own correlation id.
	other := forecast.New(forecast.High)
	assert.NotEqual(t, msg.CorrelationId, other.CorrelationId)
}

func TestFromRaw(t *testing.T) {
	t.Parallel()

	msg, err := forecast.FromRaw("low")
	require.NoError(t, err)
	assert.Equal(t, forecast.Low, msg.Kind)
	assert.Equal(t, "Low temperature forecast", msg.ForecastType)

	_, err = forecast.FromRaw("sideways")
	require.ErrorIs(t, err, forecast.ErrUnknownKind)
}
