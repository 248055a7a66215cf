package profiling

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"rfmseg/internal/cleaning"
	apperrors "rfmseg/internal/errors"
	"rfmseg/pkg/contracts/domain"
)

type slot struct {
	cluster int
	weekday time.Weekday
	hour    int
	period  domain.MonthPeriod
}

// mondayFirst orders weekdays Monday through Sunday
func mondayFirst(d time.Weekday) int {
	return (int(d) + 6) % 7
}

func periodRank(p domain.MonthPeriod) int {
	switch p {
	case domain.MonthPeriodEarly:
		return 0
	case domain.MonthPeriodMid:
		return 1
	default:
		return 2
	}
}

// TemporalProfiles inner-joins transactions with assignments and counts
// transactions and distinct customers per cluster, weekday, hour and month period.
func (p *Profiler) TemporalProfiles(ctx context.Context, txs []domain.Transaction, assignments []domain.Assignment) ([]domain.TemporalProfile, error) {
	const op = "profiling.TemporalProfiles"

	labels := labelIndex(assignments)
	counts := make(map[slot]int)
	customers := make(map[slot]map[string]struct{})
	for _, tx := range txs {
		id := cleaning.NormalizeCustomerID(tx.CustomerID)
		label, ok := labels[id]
		if !ok {
			continue
		}
		key := slot{
			cluster: label,
			weekday: tx.Timestamp.Weekday(),
			hour:    tx.Timestamp.Hour(),
			period:  domain.PeriodOfDay(tx.Timestamp.Day()),
		}
		counts[key]++
		if customers[key] == nil {
			customers[key] = make(map[string]struct{})
		}
		customers[key][id] = struct{}{}
	}
	if len(counts) == 0 {
		return nil, apperrors.NewValidationError(op, "no transaction belongs to an assigned customer")
	}

	keys := make([]slot, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.cluster != b.cluster {
			return a.cluster < b.cluster
		}
		if a.weekday != b.weekday {
			return mondayFirst(a.weekday) < mondayFirst(b.weekday)
		}
		if a.hour != b.hour {
			return a.hour < b.hour
		}
		return periodRank(a.period) < periodRank(b.period)
	})

	profiles := make([]domain.TemporalProfile, len(keys))
	for i, k := range keys {
		profiles[i] = domain.TemporalProfile{
			Cluster:         k.cluster,
			DayOfWeek:       k.weekday.String(),
			Hour:            k.hour,
			MonthPeriod:     k.period,
			Transactions:    counts[k],
			UniqueCustomers: len(customers[k]),
		}
	}

	for _, pref := range TopPreferences(profiles, DimensionDayOfWeek, 1) {
		p.logger.InfoContext(ctx, "Peak weekday",
			slog.Int("cluster", pref.Cluster),
			slog.String("day_of_week", pref.Value),
			slog.Float64("share", pref.Share))
	}
	for _, pref := range TopPreferences(profiles, DimensionHour, 1) {
		p.logger.InfoContext(ctx, "Peak hour",
			slog.Int("cluster", pref.Cluster),
			slog.String("hour", pref.Value),
			slog.Float64("share", pref.Share))
	}
	return profiles, nil
}
