package operations

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"rfmseg/internal/infrastructure"
)

const (
	TracerName = "rfmseg/operations"
)

// OperationTracer provides OpenTelemetry instrumentation for runs and steps
type OperationTracer struct {
	tracer  trace.Tracer
	metrics *infrastructure.PipelineMetrics
}

// NewOperationTracer creates a tracer recording into metrics. A nil metrics
// value records spans only.
func NewOperationTracer(metrics *infrastructure.PipelineMetrics) *OperationTracer {
	return &OperationTracer{
		tracer:  otel.Tracer(TracerName),
		metrics: metrics,
	}
}

// TraceRun creates the span enclosing a whole run
func (t *OperationTracer) TraceRun(ctx context.Context, runID string, req Request) (context.Context, trace.Span) {
	mode := "full"
	if req.Step != "" {
		mode = "single_step"
	}
	return t.tracer.Start(ctx, "operations.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("run.mode", mode),
			attribute.String("run.step", req.Step),
		),
	)
}

// TraceStep creates a span for one step execution
func (t *OperationTracer) TraceStep(ctx context.Context, runID, stepID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "operations.step."+stepID,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("step.id", stepID),
		),
	)
}

// RecordStepCompletion ends the step span and records the step metrics
func (t *OperationTracer) RecordStepCompletion(ctx context.Context, span trace.Span, stepID string, duration time.Duration, status StepStatus, err error) {
	span.SetAttributes(
		attribute.String("step.status", string(status)),
		attribute.Float64("step.duration_seconds", duration.Seconds()),
	)
	if err != nil {
		infrastructure.RecordError(span, err, "step failed")
	} else {
		span.SetStatus(codes.Ok, "step completed")
	}
	span.End()

	t.metrics.RecordStep(ctx, stepID, string(status), duration)
}

// RecordRunCompletion ends the run span and records the run metrics
func (t *OperationTracer) RecordRunCompletion(ctx context.Context, span trace.Span, duration time.Duration, status OperationStatusValue, err error) {
	span.SetAttributes(
		attribute.String("run.status", string(status)),
		attribute.Float64("run.duration_seconds", duration.Seconds()),
	)
	if err != nil {
		infrastructure.RecordError(span, err, "run failed")
	} else {
		span.SetStatus(codes.Ok, "run completed")
	}
	span.End()

	t.metrics.RecordRun(ctx, string(status), duration)
}
