package rfm

import (
	"context"
	"log/slog"

	"rfmseg/internal/stats"
	"rfmseg/pkg/contracts/domain"
)

// Diagnostics is a describe-style digest of each metric column
type Diagnostics struct {
	Recency   stats.Summary
	Frequency stats.Summary
	Monetary  stats.Summary
}

// Describe summarizes the RFM columns
func Describe(rows []domain.CustomerRFM) Diagnostics {
	r := make([]float64, len(rows))
	f := make([]float64, len(rows))
	m := make([]float64, len(rows))
	for i, row := range rows {
		r[i] = float64(row.Recency)
		f[i] = float64(row.Frequency)
		m[i] = row.Monetary
	}
	return Diagnostics{
		Recency:   stats.Describe(r),
		Frequency: stats.Describe(f),
		Monetary:  stats.Describe(m),
	}
}

// Log writes one record per metric
func (d Diagnostics) Log(ctx context.Context, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, metric := range []struct {
		name    string
		summary stats.Summary
	}{
		{"recency", d.Recency},
		{"frequency", d.Frequency},
		{"monetary", d.Monetary},
	} {
		s := metric.summary
		logger.InfoContext(ctx, "RFM distribution",
			slog.String("metric", metric.name),
			slog.Int("count", s.Count),
			slog.Float64("mean", s.Mean),
			slog.Float64("std", s.Std),
			slog.Float64("min", s.Min),
			slog.Float64("p50", s.P50),
			slog.Float64("p90", s.P90),
			slog.Float64("p95", s.P95),
			slog.Float64("p99", s.P99),
			slog.Float64("max", s.Max),
			slog.Float64("skew", s.Skew))
	}
}
