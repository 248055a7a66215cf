// Package features turns RFM rows into log-compressed, standardized vectors
// suitable for distance-based clustering.
package features

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	apperrors "rfmseg/internal/errors"
	"rfmseg/internal/stats"
	"rfmseg/pkg/contracts/domain"
)

// Column names used in errors and logs
const (
	ColumnRecency   = "Recency"
	ColumnFrequency = "Frequency"
	ColumnMonetary  = "Monetary"
)

// Transformer applies log1p followed by population standardization
type Transformer struct {
	logger *slog.Logger
}

// NewTransformer creates a new transformer
func NewTransformer(logger *slog.Logger) *Transformer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transformer{logger: logger}
}

// Transform fits the scaler over the whole population of rows and applies it
// to every row. The returned params are the ones that were applied.
func (t *Transformer) Transform(ctx context.Context, rows []domain.CustomerRFM) ([]domain.ScaledFeatures, domain.ScalerParams, error) {
	const op = "features.Transform"

	if len(rows) == 0 {
		return nil, domain.ScalerParams{}, apperrors.NewInputError(op, "RFM table is empty", nil)
	}

	n := len(rows)
	rLog := make([]float64, n)
	fLog := make([]float64, n)
	mLog := make([]float64, n)
	for i, row := range rows {
		var err error
		if rLog[i], err = logCompress(op, row.CustomerID, ColumnRecency, float64(row.Recency)); err != nil {
			return nil, domain.ScalerParams{}, err
		}
		if fLog[i], err = logCompress(op, row.CustomerID, ColumnFrequency, float64(row.Frequency)); err != nil {
			return nil, domain.ScalerParams{}, err
		}
		if mLog[i], err = logCompress(op, row.CustomerID, ColumnMonetary, row.Monetary); err != nil {
			return nil, domain.ScalerParams{}, err
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, domain.ScalerParams{}, apperrors.NewCancelledError(op, err)
	}

	var params domain.ScalerParams
	var err error
	if params.Recency, err = fit(op, ColumnRecency, rLog); err != nil {
		return nil, domain.ScalerParams{}, err
	}
	if params.Frequency, err = fit(op, ColumnFrequency, fLog); err != nil {
		return nil, domain.ScalerParams{}, err
	}
	if params.Monetary, err = fit(op, ColumnMonetary, mLog); err != nil {
		return nil, domain.ScalerParams{}, err
	}

	out := make([]domain.ScaledFeatures, n)
	for i, row := range rows {
		out[i] = domain.ScaledFeatures{
			CustomerID: row.CustomerID,
			RLog:       rLog[i],
			FLog:       fLog[i],
			MLog:       mLog[i],
			RScaled:    params.Recency.Apply(rLog[i]),
			FScaled:    params.Frequency.Apply(fLog[i]),
			MScaled:    params.Monetary.Apply(mLog[i]),
		}
	}

	t.logger.InfoContext(ctx, "Features standardized",
		slog.Int("customers", n),
		slog.Float64("recency_log_mean", params.Recency.Mean),
		slog.Float64("recency_log_std", params.Recency.StdDev),
		slog.Float64("frequency_log_mean", params.Frequency.Mean),
		slog.Float64("frequency_log_std", params.Frequency.StdDev),
		slog.Float64("monetary_log_mean", params.Monetary.Mean),
		slog.Float64("monetary_log_std", params.Monetary.StdDev),
		slog.Float64("recency_log_skew", stats.Skewness(rLog)),
		slog.Float64("frequency_log_skew", stats.Skewness(fLog)),
		slog.Float64("monetary_log_skew", stats.Skewness(mLog)))

	return out, params, nil
}

func logCompress(op, customerID, column string, x float64) (float64, error) {
	if math.IsNaN(x) || math.IsInf(x, 0) || x < 0 {
		return 0, apperrors.NewValidationError(op,
			fmt.Sprintf("customer %s: %s must be a finite value >= 0, got %v", customerID, column, x))
	}
	return math.Log1p(x), nil
}

// fit computes the population mean and standard deviation of a column.
// A constant column cannot be standardized.
func fit(op, column string, values []float64) (domain.ColumnStats, error) {
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	mean := stats.Mean(values)
	std := stats.PopulationStdDev(values, mean)
	if lo == hi || std == 0 || math.IsNaN(std) {
		return domain.ColumnStats{}, apperrors.NewNumericError(op,
			fmt.Sprintf("column %s has zero variance and cannot be standardized", column)).
			WithContext("column", column)
	}
	return domain.ColumnStats{Mean: mean, StdDev: std}, nil
}
