package handlers

import (
	"context"

	"github.com/amp-labs/amp-dispatch/forecast"
	"github.com/amp-labs/amp-dispatch/logger"
)

// LowHandler handles Low forecast messages. It holds the process-wide
// Weather service, injected at construction (Singleton lifetime), and logs
// the forecast followed by the current conditions.
type LowHandler struct {
	weather Weather
}

// NewLowHandler constructs the Low variant handler around a Weather service.
func NewLowHandler(weather Weather) *LowHandler {
	return &LowHandler{weather: weather}
}

func (h *LowHandler) Handle(ctx context.Context, msg forecast.Message) error {
	log := logger.Get(ctx)

	log.Info("received "+msg.ForecastType, "kind", msg.Kind.String())

	report, err := h.weather.Report(ctx)
	if err != nil {
		return err
	}

	log.Info("The weather is " + report)

	return nil
}
