package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// ReportSpanName is the span wrapping one full report evaluation.
const ReportSpanName = "health.report"

// Tracer wraps OpenTelemetry tracing with check-specific span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for a check execution.
	StartSpan(ctx context.Context, meta CheckMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording status and failure cause.
	EndSpan(span trace.Span, outcome CheckOutcome)

	// StartReport starts the span covering a whole report.
	StartReport(ctx context.Context) (context.Context, trace.Span)

	// EndReport ends the report span with the overall status.
	EndReport(span trace.Span, status string, checks int)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	if t == nil {
		return newNoopTracer()
	}
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, meta CheckMeta) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("check.name", meta.Name),
		attribute.Int64("check.timeout_ms", meta.Timeout.Milliseconds()),
	}
	if meta.Description != "" {
		attrs = append(attrs, attribute.String("check.description", meta.Description))
	}

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, outcome CheckOutcome) {
	span.SetAttributes(attribute.String("check.status", outcome.Status))
	if outcome.Err != nil {
		span.SetStatus(codes.Error, outcome.Err.Error())
		span.RecordError(outcome.Err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func (t *tracerImpl) StartReport(ctx context.Context) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, ReportSpanName, trace.WithSpanKind(trace.SpanKindInternal))
}

func (t *tracerImpl) EndReport(span trace.Span, status string, checks int) {
	span.SetAttributes(
		attribute.String("report.status", status),
		attribute.Int("report.checks", checks),
	)
	span.End()
}

type noopTracer struct {
	noop trace.Tracer
}

func newNoopTracer() Tracer {
	return &noopTracer{noop: tracenoop.NewTracerProvider().Tracer("noop")}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta CheckMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, _ CheckOutcome) {
	span.End()
}

func (t *noopTracer) StartReport(ctx context.Context) (context.Context, trace.Span) {
	return t.noop.Start(ctx, ReportSpanName)
}

func (t *noopTracer) EndReport(span trace.Span, _ string, _ int) {
	span.End()
}
