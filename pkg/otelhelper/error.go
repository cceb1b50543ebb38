package otelhelper

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.AddEvent("error_occurred", trace.WithAttributes(
		attrs...,
	))
}

// SetTransition records the status change an operation produced.
func SetTransition(span trace.Span, from, to string) {
	span.SetAttributes(
		attribute.String(FromStatusKey, from),
		attribute.String(ToStatusKey, to),
	)
}
