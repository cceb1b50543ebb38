package otelhelper

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestCaseAttributes(t *testing.T) {
	assert.Equal(t, []attribute.KeyValue{attribute.String(CaseIDKey, "case-1")}, CaseAttributes("case-1", ""))
	assert.Equal(t, []attribute.KeyValue{
		attribute.String(CaseIDKey, "case-1"),
		attribute.String(StageKey, "cost"),
	}, CaseAttributes("case-1", "cost"))
}

func TestSpanRecording(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := provider.Tracer("test")

	_, span := StartSpan(context.Background(), tracer, "orchestrator.approve", CaseAttributes("case-1", "design")...)
	SetTransition(span, "design_pending_review", "design_approved")
	SetError(span, errors.New("boom"))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)

	recorded := spans[0]
	assert.Equal(t, "orchestrator.approve", recorded.Name())
	assert.Equal(t, codes.Error, recorded.Status().Code)
	assert.Contains(t, recorded.Attributes(), attribute.String(ToStatusKey, "design_approved"))
	assert.Contains(t, recorded.Attributes(), attribute.String(StageKey, "design"))
}

func TestNoopTracer(t *testing.T) {
	_, span := StartSpan(context.Background(), NoopTracer("test"), "noop")
	defer span.End()

	assert.False(t, span.SpanContext().IsValid())
}
