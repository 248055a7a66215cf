package clustering

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "rfmseg/internal/errors"
	"rfmseg/pkg/contracts/domain"
)

const tracerName = "rfmseg/clustering"

// Selector sweeps candidate cluster counts and scores each one
type Selector struct {
	opts   Options
	logger *slog.Logger
	tracer trace.Tracer
}

// NewSelector creates a selector using the given restart policy
func NewSelector(opts Options, logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{
		opts:   opts,
		logger: logger,
		tracer: otel.Tracer(tracerName),
	}
}

// Evaluate fits k-means for every k in [kMin, kMax] and reports its inertia
// and mean silhouette, in sweep order. It does not pick a k.
func (s *Selector) Evaluate(ctx context.Context, features []domain.ScaledFeatures, kMin, kMax int) ([]domain.EvaluationResult, error) {
	const op = "clustering.Evaluate"

	n := len(features)
	if n == 0 {
		return nil, apperrors.NewInputError(op, "scaled feature table is empty", nil)
	}
	if kMin < 2 || kMin > kMax {
		return nil, apperrors.NewConfigError(op, fmt.Sprintf("invalid k range [%d, %d]: need 2 <= k_min <= k_max", kMin, kMax), nil)
	}
	if kMax >= n {
		return nil, apperrors.NewConfigError(op, fmt.Sprintf("k_max %d must be less than the number of customers %d", kMax, n), nil)
	}

	points := Matrix(features)
	results := make([]domain.EvaluationResult, 0, kMax-kMin+1)
	for k := kMin; k <= kMax; k++ {
		res, err := s.evaluateK(ctx, points, k)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}

	if best, ok := BestByCohesion(results); ok {
		s.logger.InfoContext(ctx, "Sweep complete",
			slog.Int("k_min", kMin),
			slog.Int("k_max", kMax),
			slog.Int("highest_silhouette_k", best.K),
			slog.Float64("highest_silhouette", best.CohesionScore))
	}
	return results, nil
}

func (s *Selector) evaluateK(ctx context.Context, points [][]float64, k int) (domain.EvaluationResult, error) {
	ctx, span := s.tracer.Start(ctx, "clustering.evaluate_k",
		trace.WithAttributes(
			attribute.Int("k", k),
			attribute.Int("points", len(points)),
			attribute.Int("restarts", s.opts.Restarts),
		))
	defer span.End()

	start := time.Now()
	model, err := FitKMeans(ctx, points, k, s.opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "k-means failed")
		return domain.EvaluationResult{}, err
	}

	cohesion, err := Silhouette(ctx, points, model.Labels, k, s.opts.Workers)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "silhouette failed")
		return domain.EvaluationResult{}, err
	}

	span.SetAttributes(
		attribute.Float64("inertia", model.Inertia),
		attribute.Float64("silhouette", cohesion),
		attribute.Int("best_restart", model.Restart))

	s.logger.InfoContext(ctx, "Candidate evaluated",
		slog.Int("k", k),
		slog.Float64("inertia", model.Inertia),
		slog.Float64("silhouette", cohesion),
		slog.Int("best_restart", model.Restart),
		slog.Int("iterations", model.Iterations),
		slog.Duration("duration", time.Since(start)))

	return domain.EvaluationResult{K: k, Distortion: model.Inertia, CohesionScore: cohesion}, nil
}

// BestByCohesion returns the result with the highest silhouette, the lowest k
// on ties. It is a hint for operators; the final k stays an external choice.
func BestByCohesion(results []domain.EvaluationResult) (domain.EvaluationResult, bool) {
	if len(results) == 0 {
		return domain.EvaluationResult{}, false
	}
	best := results[0]
	for _, r := range results[1:] {
		if r.CohesionScore > best.CohesionScore {
			best = r
		}
	}
	return best, true
}
