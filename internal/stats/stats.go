// Package stats provides the descriptive statistics shared by the feature,
// diagnostics and profiling code.
package stats

import (
	"math"
	"sort"
)

// Mean returns the arithmetic mean of values, or 0 for an empty slice
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// PopulationStdDev returns the ddof=0 standard deviation around mean
func PopulationStdDev(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sumSquares := 0.0
	for _, v := range values {
		diff := v - mean
		sumSquares += diff * diff
	}
	return math.Sqrt(sumSquares / float64(len(values)))
}

// SampleStdDev returns the ddof=1 standard deviation around mean
func SampleStdDev(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	sumSquares := 0.0
	for _, v := range values {
		diff := v - mean
		sumSquares += diff * diff
	}
	return math.Sqrt(sumSquares / float64(len(values)-1))
}

// Variance returns the population variance of values
func Variance(values []float64) float64 {
	sd := PopulationStdDev(values, Mean(values))
	return sd * sd
}

// Median returns the middle value, averaging the two central values for even lengths
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return Percentile(sortedCopy(values), 0.5)
}

// Percentile returns the linearly interpolated percentile p in [0, 1] of an
// already sorted slice.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	index := p * float64(n-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))
	if lower == upper {
		return sorted[lower]
	}

	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// Skewness returns the adjusted Fisher-Pearson sample skewness.
// Fewer than three values or a constant series yield 0.
func Skewness(values []float64) float64 {
	n := float64(len(values))
	if n < 3 {
		return 0
	}
	mean := Mean(values)
	var m2, m3 float64
	for _, v := range values {
		d := v - mean
		m2 += d * d
		m3 += d * d * d
	}
	m2 /= n
	m3 /= n
	if m2 == 0 {
		return 0
	}
	g1 := m3 / math.Pow(m2, 1.5)
	return g1 * math.Sqrt(n*(n-1)) / (n - 2)
}

// Summary is a describe-style digest of one numeric column
type Summary struct {
	Count int
	Mean  float64
	Std   float64
	Min   float64
	P50   float64
	P90   float64
	P95   float64
	P99   float64
	Max   float64
	Skew  float64
}

// Describe summarizes values. Std is the sample standard deviation.
func Describe(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	sorted := sortedCopy(values)
	mean := Mean(values)
	return Summary{
		Count: len(values),
		Mean:  mean,
		Std:   SampleStdDev(values, mean),
		Min:   sorted[0],
		P50:   Percentile(sorted, 0.50),
		P90:   Percentile(sorted, 0.90),
		P95:   Percentile(sorted, 0.95),
		P99:   Percentile(sorted, 0.99),
		Max:   sorted[len(sorted)-1],
		Skew:  Skewness(values),
	}
}

func sortedCopy(values []float64) []float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return sorted
}
