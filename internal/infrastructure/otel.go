package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"

	"rfmseg/internal/config"
	"rfmseg/pkg/contracts"
)

const (
	ServiceName = "rfmseg"
	MeterName   = "rfmseg"
)

// OTelProviders holds the OpenTelemetry providers
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	PrometheusHTTP http.Handler
	Logger         *slog.Logger
}

// InitializeOTel initializes tracing and metrics from the telemetry section.
// Disabled signals fall back to no-op implementations so callers never need
// nil checks.
func InitializeOTel(cfg config.TelemetryConfig, logger *slog.Logger) (*OTelProviders, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ctx := context.Background()

	logger.InfoContext(ctx, "Initializing OpenTelemetry",
		slog.String("service", ServiceName),
		slog.String("version", contracts.Version),
		slog.Bool("tracing_enabled", cfg.EnableTracing),
		slog.Bool("metrics_enabled", cfg.EnableMetrics))

	res := createResource()
	providers := &OTelProviders{
		Logger: logger,
		Tracer: otel.Tracer(MeterName),
		Meter:  noop.NewMeterProvider().Meter(MeterName),
	}

	if cfg.EnableTracing {
		if err := initializeTracing(ctx, cfg, res, providers); err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
	}

	if cfg.EnableMetrics {
		if err := initializeMetrics(ctx, res, providers); err != nil {
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
	}

	return providers, nil
}

// createResource creates the OpenTelemetry resource
func createResource() *resource.Resource {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(ServiceName),
		semconv.ServiceVersion(contracts.Version),
		attribute.String("service.instance.id", generateInstanceID()),
	)
}

// initializeTracing sets up OpenTelemetry tracing
func initializeTracing(ctx context.Context, cfg config.TelemetryConfig, res *resource.Resource, providers *OTelProviders) error {
	var exporter sdktrace.SpanExporter
	var err error

	switch cfg.TraceExporter {
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "none", "":
		return nil
	default:
		return fmt.Errorf("unsupported trace exporter: %s", cfg.TraceExporter)
	}
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRatio)),
	)

	providers.TracerProvider = tp
	providers.Tracer = tp.Tracer(MeterName, trace.WithInstrumentationVersion(contracts.Version))
	otel.SetTracerProvider(tp)

	providers.Logger.InfoContext(ctx, "Tracing initialized",
		slog.String("exporter", cfg.TraceExporter),
		slog.Float64("sample_ratio", cfg.SampleRatio))

	return nil
}

// initializeMetrics sets up a Prometheus-backed meter provider with its own
// registry so repeated initialization never collides on registration.
func initializeMetrics(ctx context.Context, res *resource.Resource, providers *OTelProviders) error {
	registry := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)

	providers.MeterProvider = mp
	providers.Meter = mp.Meter(MeterName, metric.WithInstrumentationVersion(contracts.Version))
	providers.PrometheusHTTP = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	otel.SetMeterProvider(mp)

	providers.Logger.InfoContext(ctx, "Metrics initialized", slog.String("exporter", "prometheus"))
	return nil
}

// PipelineMetrics holds the instruments recorded by a segmentation run
type PipelineMetrics struct {
	RunsTotal           metric.Int64Counter
	RunDuration         metric.Float64Histogram
	StepsTotal          metric.Int64Counter
	StepErrors          metric.Int64Counter
	StepDuration        metric.Float64Histogram
	CustomersProcessed  metric.Int64Counter
	CandidatesEvaluated metric.Int64Counter
	RestartsTotal       metric.Int64Counter
}

// CreatePipelineMetrics creates the pipeline instruments on meter
func CreatePipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter(MeterName)
	}

	runsTotal, err := meter.Int64Counter(
		"rfmseg_runs_total",
		metric.WithDescription("Total number of pipeline runs"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create runs counter: %w", err)
	}

	runDuration, err := meter.Float64Histogram(
		"rfmseg_run_duration_seconds",
		metric.WithDescription("Duration of pipeline runs"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run duration histogram: %w", err)
	}

	stepsTotal, err := meter.Int64Counter(
		"rfmseg_steps_total",
		metric.WithDescription("Total number of pipeline steps executed"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create steps counter: %w", err)
	}

	stepErrors, err := meter.Int64Counter(
		"rfmseg_step_errors_total",
		metric.WithDescription("Total number of failed pipeline steps"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create step errors counter: %w", err)
	}

	stepDuration, err := meter.Float64Histogram(
		"rfmseg_step_duration_seconds",
		metric.WithDescription("Duration of individual pipeline steps"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create step duration histogram: %w", err)
	}

	customers, err := meter.Int64Counter(
		"rfmseg_customers_processed_total",
		metric.WithDescription("Customers written by the RFM step"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create customers counter: %w", err)
	}

	candidates, err := meter.Int64Counter(
		"rfmseg_candidates_evaluated_total",
		metric.WithDescription("Candidate cluster counts evaluated by the sweep"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create candidates counter: %w", err)
	}

	restarts, err := meter.Int64Counter(
		"rfmseg_kmeans_restarts_total",
		metric.WithDescription("Seeded k-means restarts executed"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create restarts counter: %w", err)
	}

	return &PipelineMetrics{
		RunsTotal:           runsTotal,
		RunDuration:         runDuration,
		StepsTotal:          stepsTotal,
		StepErrors:          stepErrors,
		StepDuration:        stepDuration,
		CustomersProcessed:  customers,
		CandidatesEvaluated: candidates,
		RestartsTotal:       restarts,
	}, nil
}

// RecordStep records the outcome of a single pipeline step
func (m *PipelineMetrics) RecordStep(ctx context.Context, stepID, status string, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("step_id", stepID),
		attribute.String("status", status),
	)
	m.StepsTotal.Add(ctx, 1, attrs)
	m.StepDuration.Record(ctx, duration.Seconds(), attrs)
	if status == "failed" {
		m.StepErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("step_id", stepID)))
	}
}

// RecordRun records the outcome of a whole pipeline run
func (m *PipelineMetrics) RecordRun(ctx context.Context, status string, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.RunsTotal.Add(ctx, 1, attrs)
	m.RunDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordCustomers counts customers entering the clustering stages
func (m *PipelineMetrics) RecordCustomers(ctx context.Context, n int) {
	if m == nil {
		return
	}
	m.CustomersProcessed.Add(ctx, int64(n))
}

// RecordSweep counts the candidates of a k sweep and the k-means restarts it ran
func (m *PipelineMetrics) RecordSweep(ctx context.Context, candidates, restartsPerCandidate int) {
	if m == nil {
		return
	}
	m.CandidatesEvaluated.Add(ctx, int64(candidates))
	m.RestartsTotal.Add(ctx, int64(candidates*restartsPerCandidate))
}

// RecordRestarts counts k-means restarts run outside a sweep
func (m *PipelineMetrics) RecordRestarts(ctx context.Context, n int) {
	if m == nil {
		return
	}
	m.RestartsTotal.Add(ctx, int64(n))
}

// Shutdown gracefully shuts down OpenTelemetry providers
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var errs []error

	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown tracer provider: %w", err))
		}
	}

	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown meter provider: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	p.Logger.InfoContext(ctx, "OpenTelemetry shutdown complete")
	return nil
}

// generateInstanceID generates a unique instance ID
func generateInstanceID() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
}

// RecordError records an error on the span and marks it failed
func RecordError(span trace.Span, err error, description string) {
	if err == nil || span == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, description)
}

// SetSpanAttributes sets multiple attributes on a span
func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span == nil {
		return
	}
	span.SetAttributes(attrs...)
}
