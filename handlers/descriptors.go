package handlers

import (
	"context"

	"github.com/amp-labs/amp-dispatch/forecast"
	"github.com/amp-labs/amp-dispatch/provider"
	"github.com/amp-labs/amp-dispatch/registry"
	"github.com/amp-labs/amp-dispatch/worker"
)

// DefaultMailbox is the mailbox depth used by Descriptors.
const DefaultMailbox = 64

// Descriptors returns the descriptor table covering the whole catalog:
// one worker per variant. The Low handler declares the Weather singleton
// as a constructor dependency; the Medium handler takes the provider
// itself and resolves its scoped reading per message.
func Descriptors(prov *provider.Provider) []registry.Descriptor {
	return []registry.Descriptor{
		{
			Kind:    forecast.High,
			Mailbox: DefaultMailbox,
			Restart: worker.DefaultRestartPolicy,
			New: func(ctx context.Context, deps registry.Deps) (registry.Handler, error) {
				return NewHighHandler(), nil
			},
		},
		{
			Kind:    forecast.Medium,
			Mailbox: DefaultMailbox,
			Restart: worker.DefaultRestartPolicy,
			New: func(ctx context.Context, deps registry.Deps) (registry.Handler, error) {
				return NewMediumHandler(prov), nil
			},
		},
		{
			Kind:         forecast.Low,
			Mailbox:      DefaultMailbox,
			Dependencies: []string{WeatherKey},
			Restart:      worker.DefaultRestartPolicy,
			New: func(ctx context.Context, deps registry.Deps) (registry.Handler, error) {
				weather, err := registry.As[Weather](deps, WeatherKey)
				if err != nil {
					return nil, err
				}

				return NewLowHandler(weather), nil
			},
		},
	}
}
