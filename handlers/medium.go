package handlers

import (
	"context"

	"github.com/amp-labs/amp-dispatch/forecast"
	"github.com/amp-labs/amp-dispatch/logger"
	"github.com/amp-labs/amp-dispatch/provider"
)

// MediumHandler handles Medium forecast messages. Its weather reading has a
// Scoped lifetime: the handler keeps the provider, not the reading, and
// opens a fresh scope per message. The reading is acquired, used, and
// released inside the handling path, so the long-lived handler never holds
// an instance past its scope.
type MediumHandler struct {
	prov *provider.Provider
}

// NewMediumHandler constructs the Medium variant handler around the
// dependency provider.
func NewMediumHandler(prov *provider.Provider) *MediumHandler {
	return &MediumHandler{prov: prov}
}

func (h *MediumHandler) Handle(ctx context.Context, msg forecast.Message) error {
	log := logger.Get(ctx)

	log.Info("received "+msg.ForecastType, "kind", msg.Kind.String())

	return h.prov.InScope(ctx, func(ctx context.Context) error {
		current, err := provider.As[Weather](ctx, h.prov, CurrentWeatherKey)
		if err != nil {
			return err
		}

		report, err := current.Report(ctx)
		if err != nil {
			return err
		}

		log.Info("Current conditions: " + report)

		return nil
	})
}
