package router

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/amp-labs/amp-dispatch/forecast"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// startDispatchSpan creates a span covering one dispatch. Uses the global
// tracer; a no-op tracer applies when none is installed. The caller is
// responsible for calling span.End().
//
//nolint:spancheck // Span lifecycle managed by caller
func startDispatchSpan(ctx context.Context, msg forecast.Message) (context.Context, trace.Span) {
	tracer := otel.Tracer("router")
	ctx, span := tracer.Start(ctx, "router.dispatch")
	span.SetAttributes(
		attribute.String("kind", msg.Kind.String()),
		attribute.String("correlation_id_hash", hashID(msg.CorrelationId)),
	)

	return ctx, span
}

// recordSpanError marks the span failed with the given error.
func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// hashID creates a short hash of an ID for span attributes (privacy).
func hashID(id string) string {
	if id == "" {
		return ""
	}

	h := sha256.Sum256([]byte(id))

	return hex.EncodeToString(h[:4]) // First 8 chars
}
