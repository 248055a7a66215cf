package clustering

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "rfmseg/internal/errors"
	"rfmseg/pkg/contracts/domain"
)

// Fitter labels every customer with the cluster of its nearest final center
type Fitter struct {
	opts   Options
	logger *slog.Logger
	tracer trace.Tracer
}

// NewFitter creates a fitter using the same restart policy as the selector
func NewFitter(opts Options, logger *slog.Logger) *Fitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fitter{
		opts:   opts,
		logger: logger,
		tracer: otel.Tracer(tracerName),
	}
}

// Fit clusters the features into k groups. Assignments keep the row order of features.
func (f *Fitter) Fit(ctx context.Context, features []domain.ScaledFeatures, k int) ([]domain.Assignment, *Model, error) {
	const op = "clustering.Fit"

	if len(features) == 0 {
		return nil, nil, apperrors.NewInputError(op, "scaled feature table is empty", nil)
	}
	if k < 2 || k > len(features) {
		return nil, nil, apperrors.NewConfigError(op, fmt.Sprintf("k must be in [2, %d], got %d", len(features), k), nil)
	}

	ctx, span := f.tracer.Start(ctx, "clustering.fit",
		trace.WithAttributes(
			attribute.Int("k", k),
			attribute.Int("points", len(features)),
		))
	defer span.End()

	model, err := FitKMeans(ctx, Matrix(features), k, f.opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "k-means failed")
		return nil, nil, err
	}

	assignments := make([]domain.Assignment, len(features))
	for i, feat := range features {
		assignments[i] = domain.Assignment{CustomerID: feat.CustomerID, ClusterLabel: model.Labels[i]}
	}

	sizes := model.ClusterSizes()
	attrs := []any{
		slog.Int("k", k),
		slog.Float64("inertia", model.Inertia),
		slog.Int("best_restart", model.Restart),
	}
	for c, size := range sizes {
		attrs = append(attrs, slog.Int(fmt.Sprintf("cluster_%d", c), size))
	}
	f.logger.InfoContext(ctx, "Final clusters fitted", attrs...)
	span.SetAttributes(attribute.IntSlice("cluster_sizes", sizes))

	return assignments, model, nil
}
