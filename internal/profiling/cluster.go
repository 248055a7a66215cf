// Package profiling summarizes labeled customers: RFM statistics per cluster
// and cluster activity per time slot.
package profiling

import (
	"context"
	"log/slog"
	"sort"

	apperrors "rfmseg/internal/errors"
	"rfmseg/internal/stats"
	"rfmseg/pkg/contracts/domain"
)

// Profiler builds the cluster and temporal profiles
type Profiler struct {
	logger *slog.Logger
}

// NewProfiler creates a new profiler
func NewProfiler(logger *slog.Logger) *Profiler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Profiler{logger: logger}
}

func labelIndex(assignments []domain.Assignment) map[string]int {
	labels := make(map[string]int, len(assignments))
	for _, a := range assignments {
		labels[a.CustomerID] = a.ClusterLabel
	}
	return labels
}

// ClusterProfiles inner-joins rows with assignments on customer ID and returns
// count, mean and median of each metric per cluster, highest mean monetary first.
func (p *Profiler) ClusterProfiles(ctx context.Context, rows []domain.CustomerRFM, assignments []domain.Assignment) ([]domain.ClusterProfile, error) {
	const op = "profiling.ClusterProfiles"

	labels := labelIndex(assignments)
	type columns struct{ r, f, m []float64 }
	groups := make(map[int]*columns)
	for _, row := range rows {
		label, ok := labels[row.CustomerID]
		if !ok {
			continue
		}
		g, ok := groups[label]
		if !ok {
			g = &columns{}
			groups[label] = g
		}
		g.r = append(g.r, float64(row.Recency))
		g.f = append(g.f, float64(row.Frequency))
		g.m = append(g.m, row.Monetary)
	}
	if len(groups) == 0 {
		return nil, apperrors.NewValidationError(op, "no customer of the RFM table has a cluster assignment")
	}

	profiles := make([]domain.ClusterProfile, 0, len(groups))
	for label, g := range groups {
		profiles = append(profiles, domain.ClusterProfile{
			Cluster:         label,
			Customers:       len(g.m),
			RecencyMean:     stats.Mean(g.r),
			RecencyMedian:   stats.Median(g.r),
			FrequencyMean:   stats.Mean(g.f),
			FrequencyMedian: stats.Median(g.f),
			MonetaryMean:    stats.Mean(g.m),
			MonetaryMedian:  stats.Median(g.m),
		})
	}
	sort.Slice(profiles, func(i, j int) bool {
		if profiles[i].MonetaryMean != profiles[j].MonetaryMean {
			return profiles[i].MonetaryMean > profiles[j].MonetaryMean
		}
		return profiles[i].Cluster < profiles[j].Cluster
	})

	for _, pr := range profiles {
		p.logger.InfoContext(ctx, "Cluster profile",
			slog.Int("cluster", pr.Cluster),
			slog.Int("customers", pr.Customers),
			slog.Float64("recency_mean", pr.RecencyMean),
			slog.Float64("frequency_mean", pr.FrequencyMean),
			slog.Float64("monetary_mean", pr.MonetaryMean))
	}
	return profiles, nil
}
