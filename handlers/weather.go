// Package handlers provides the forecast handlers covering the message
// catalog, one per variant. Handlers are selected by variant tag through
// the registry's descriptor table; each implements registry.Handler and
// its observable effect is structured log output.
package handlers

import "context"

// Service keys under which handler dependencies are registered with the
// provider.
const (
	// WeatherKey names the process-wide weather service (Singleton).
	WeatherKey = "weather"
	// CurrentWeatherKey names the per-message weather reading (Scoped).
	// It is resolved inside a handling scope, never at construction.
	CurrentWeatherKey = "weather.current"
)

// Weather reports current conditions.
type Weather interface {
	Report(ctx context.Context) (string, error)
}

// StaticWeather is a Weather that always reports the same conditions.
type StaticWeather string

func (w StaticWeather) Report(_ context.Context) (string, error) {
	return string(w), nil
}
