package handlers

import (
	"context"

	"github.com/amp-labs/amp-dispatch/forecast"
	"github.com/amp-labs/amp-dispatch/logger"
)

// HighHandler handles High forecast messages. It has no dependencies; its
// effect is exactly one log line referencing the forecast.
type HighHandler struct{}

// NewHighHandler constructs the High variant handler.
func NewHighHandler() *HighHandler {
	return &HighHandler{}
}

func (h *HighHandler) Handle(ctx context.Context, msg forecast.Message) error {
	logger.Get(ctx).Info("received "+msg.ForecastType, "kind", msg.Kind.String())

	return nil
}
