package cmd

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"github.com/dukex/casegate/pkg/otelhelper"
)

// NewTracer exports spans over OTLP/HTTP when enabled and returns a no-op tracer otherwise.
//
// nolint:ireturn // Returning interface is intentional for OpenTelemetry tracing
func NewTracer(ctx context.Context, enabled bool, serviceName string) (trace.Tracer, otelhelper.ShutdownFunc, error) {
	if !enabled {
		return otelhelper.NoopTracer(serviceName), func(context.Context) error { return nil }, nil
	}

	return otelhelper.NewTracer(ctx, serviceName)
}
