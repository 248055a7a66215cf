package profiling

import (
	"sort"
	"strconv"

	"rfmseg/pkg/contracts/domain"
)

// Dimension selects the time attribute preferences are ranked by
type Dimension string

const (
	DimensionDayOfWeek   Dimension = "day_of_week"
	DimensionHour        Dimension = "hour"
	DimensionMonthPeriod Dimension = "month_period"
)

// Preference is the share of a cluster's transactions falling on one value of a dimension
type Preference struct {
	Cluster      int
	Value        string
	Transactions int
	Share        float64
}

func (d Dimension) value(p domain.TemporalProfile) string {
	switch d {
	case DimensionHour:
		return strconv.Itoa(p.Hour)
	case DimensionMonthPeriod:
		return string(p.MonthPeriod)
	default:
		return p.DayOfWeek
	}
}

// TopPreferences returns, per cluster, the n values of dim with the largest
// share of the cluster's transactions. Clusters are ascending; ties keep the
// lexically smaller value.
func TopPreferences(profiles []domain.TemporalProfile, dim Dimension, n int) []Preference {
	type key struct {
		cluster int
		value   string
	}
	counts := make(map[key]int)
	totals := make(map[int]int)
	for _, p := range profiles {
		counts[key{p.Cluster, dim.value(p)}] += p.Transactions
		totals[p.Cluster] += p.Transactions
	}

	all := make([]Preference, 0, len(counts))
	for k, c := range counts {
		all = append(all, Preference{
			Cluster:      k.cluster,
			Value:        k.value,
			Transactions: c,
			Share:        float64(c) / float64(totals[k.cluster]),
		})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Cluster != all[j].Cluster {
			return all[i].Cluster < all[j].Cluster
		}
		if all[i].Transactions != all[j].Transactions {
			return all[i].Transactions > all[j].Transactions
		}
		return all[i].Value < all[j].Value
	})

	var top []Preference
	taken := make(map[int]int)
	for _, p := range all {
		if taken[p.Cluster] < n {
			top = append(top, p)
			taken[p.Cluster]++
		}
	}
	return top
}
