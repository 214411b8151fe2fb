// Package telemetry opens one OpenTelemetry span per graph node execution,
// tagging it with the node name and investigation ID. Grounded on the
// otel.Tracer()/trace.Tracer wiring in the retrieved
// kubilitics-backend/internal/pkg/tracing package; only the API packages
// (go.opentelemetry.io/otel{,/attribute,/codes,/trace}) are in scope here, so span
// export (OTLP, stdout) is left to whatever SDK the wrapping service
// configures as the global TracerProvider.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/olorin-ai/hybrid-investigator/investigation/executor"

// Tracer returns the package-scoped tracer sourced from whatever
// TracerProvider is globally registered (a no-op one if none is).
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// StartNodeSpan opens a span named after node, tagged with the
// investigation ID, for the duration of a single executor step. Callers
// must invoke the returned EndFunc with the step's outcome error (nil on
// success).
func StartNodeSpan(ctx context.Context, node, investigationID string) (context.Context, EndFunc) {
	ctx, span := Tracer().Start(ctx, node, trace.WithAttributes(
		attribute.String("investigation_id", investigationID),
		attribute.String("node", node),
	))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

// EndFunc closes the span a StartNodeSpan call opened.
type EndFunc func(err error)
