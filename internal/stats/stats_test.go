package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMeanAndStdDev(t *testing.T) {
	tests := []struct {
		name       string
		values     []float64
		wantMean   float64
		wantPopStd float64
		wantSmpStd float64
	}{
		{"empty", nil, 0, 0, 0},
		{"single", []float64{4}, 4, 0, 0},
		{"constant", []float64{2, 2, 2}, 2, 0, 0},
		{"simple", []float64{2, 4, 4, 4, 5, 5, 7, 9}, 5, 2, math.Sqrt(32.0 / 7.0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mean := Mean(tt.values)
			assert.InDelta(t, tt.wantMean, mean, 1e-12)
			assert.InDelta(t, tt.wantPopStd, PopulationStdDev(tt.values, mean), 1e-12)
			assert.InDelta(t, tt.wantSmpStd, SampleStdDev(tt.values, mean), 1e-12)
		})
	}
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 0.0, Median(nil))
	assert.Equal(t, 3.0, Median([]float64{5, 1, 3}))
	assert.Equal(t, 2.5, Median([]float64{4, 1, 3, 2}))

	values := []float64{3, 1, 2}
	Median(values)
	assert.Equal(t, []float64{3, 1, 2}, values, "input must not be reordered")
}

func TestPercentile(t *testing.T) {
	sorted := []float64{10, 20, 30, 40, 50}
	assert.Equal(t, 10.0, Percentile(sorted, 0))
	assert.Equal(t, 50.0, Percentile(sorted, 1))
	assert.Equal(t, 30.0, Percentile(sorted, 0.5))
	assert.InDelta(t, 46.0, Percentile(sorted, 0.9), 1e-12)
	assert.Equal(t, 0.0, Percentile(nil, 0.5))
}

func TestSkewness(t *testing.T) {
	assert.Equal(t, 0.0, Skewness([]float64{1, 2}))
	assert.Equal(t, 0.0, Skewness([]float64{3, 3, 3, 3}))
	assert.InDelta(t, 0.0, Skewness([]float64{1, 2, 3, 4, 5}), 1e-12)
	assert.Greater(t, Skewness([]float64{1, 1, 1, 1, 2, 2, 3, 50}), 0.0)
	assert.Less(t, Skewness([]float64{-50, 1, 1, 1, 1, 2, 2, 3}), 0.0)
}

func TestDescribe(t *testing.T) {
	s := Describe([]float64{5, 1, 4, 2, 3})
	assert.Equal(t, 5, s.Count)
	assert.Equal(t, 3.0, s.Mean)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 5.0, s.Max)
	assert.Equal(t, 3.0, s.P50)
	assert.InDelta(t, math.Sqrt(2.5), s.Std, 1e-12)

	assert.Equal(t, Summary{}, Describe(nil))
}
