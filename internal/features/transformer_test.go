package features

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "rfmseg/internal/errors"
	"rfmseg/internal/stats"
	"rfmseg/pkg/contracts/domain"
)

func randomRFM(n int, seed int64) []domain.CustomerRFM {
	rng := rand.New(rand.NewSource(seed))
	rows := make([]domain.CustomerRFM, n)
	for i := range rows {
		rows[i] = domain.CustomerRFM{
			CustomerID: fmt.Sprintf("C%04d", i),
			Recency:    rng.Intn(365),
			Frequency:  1 + int(rng.ExpFloat64()*4),
			Monetary:   1 + rng.ExpFloat64()*500,
		}
	}
	return rows
}

func TestTransform_Standardizes(t *testing.T) {
	rows := randomRFM(500, 3)

	out, params, err := NewTransformer(nil).Transform(context.Background(), rows)
	require.NoError(t, err)
	require.Len(t, out, len(rows))

	columns := map[string]func(domain.ScaledFeatures) float64{
		"r": func(s domain.ScaledFeatures) float64 { return s.RScaled },
		"f": func(s domain.ScaledFeatures) float64 { return s.FScaled },
		"m": func(s domain.ScaledFeatures) float64 { return s.MScaled },
	}
	for name, get := range columns {
		values := make([]float64, len(out))
		for i, s := range out {
			values[i] = get(s)
		}
		mean := stats.Mean(values)
		assert.InDelta(t, 0, mean, 1e-9, "column %s mean", name)
		assert.InDelta(t, 1, stats.PopulationStdDev(values, mean), 1e-6, "column %s std", name)
	}

	for i, s := range out {
		assert.Equal(t, rows[i].CustomerID, s.CustomerID)
		assert.Equal(t, math.Log1p(float64(rows[i].Recency)), s.RLog)
		assert.Equal(t, math.Log1p(float64(rows[i].Frequency)), s.FLog)
		assert.Equal(t, math.Log1p(rows[i].Monetary), s.MLog)
		assert.Equal(t, params.Monetary.Apply(s.MLog), s.MScaled, "same parameters for every row")
	}
}

func TestTransform_KnownValues(t *testing.T) {
	rows := []domain.CustomerRFM{
		{CustomerID: "a", Recency: 0, Frequency: 1, Monetary: math.E - 1},
		{CustomerID: "b", Recency: 0, Frequency: 3, Monetary: math.E*math.E*math.E - 1},
		{CustomerID: "c", Recency: 2, Frequency: 1, Monetary: math.E - 1},
		{CustomerID: "d", Recency: 2, Frequency: 3, Monetary: math.E*math.E*math.E - 1},
	}

	out, params, err := NewTransformer(nil).Transform(context.Background(), rows)
	require.NoError(t, err)

	assert.InDelta(t, 2.0, params.Monetary.Mean, 1e-12)
	assert.InDelta(t, 1.0, params.Monetary.StdDev, 1e-12, "population std, not sample")
	assert.InDelta(t, -1.0, out[0].MScaled, 1e-12)
	assert.InDelta(t, 1.0, out[1].MScaled, 1e-12)
	assert.InDelta(t, -1.0, out[0].RScaled, 1e-12)
	assert.InDelta(t, 1.0, out[3].FScaled, 1e-12)
}

func TestTransform_Errors(t *testing.T) {
	tests := []struct {
		name       string
		rows       []domain.CustomerRFM
		wantType   apperrors.ErrorType
		wantColumn string
	}{
		{
			name:     "empty",
			wantType: apperrors.ErrTypeInput,
		},
		{
			name: "zero variance frequency",
			rows: []domain.CustomerRFM{
				{CustomerID: "a", Recency: 1, Frequency: 2, Monetary: 10},
				{CustomerID: "b", Recency: 5, Frequency: 2, Monetary: 20},
				{CustomerID: "c", Recency: 9, Frequency: 2, Monetary: 40},
			},
			wantType:   apperrors.ErrTypeNumeric,
			wantColumn: ColumnFrequency,
		},
		{
			name: "single customer",
			rows: []domain.CustomerRFM{
				{CustomerID: "a", Recency: 1, Frequency: 2, Monetary: 10},
			},
			wantType:   apperrors.ErrTypeNumeric,
			wantColumn: ColumnRecency,
		},
		{
			name: "negative recency",
			rows: []domain.CustomerRFM{
				{CustomerID: "a", Recency: -1, Frequency: 2, Monetary: 10},
				{CustomerID: "b", Recency: 3, Frequency: 1, Monetary: 20},
			},
			wantType:   apperrors.ErrTypeValidation,
			wantColumn: ColumnRecency,
		},
		{
			name: "nan monetary",
			rows: []domain.CustomerRFM{
				{CustomerID: "a", Recency: 1, Frequency: 2, Monetary: math.NaN()},
				{CustomerID: "b", Recency: 3, Frequency: 1, Monetary: 20},
			},
			wantType:   apperrors.ErrTypeValidation,
			wantColumn: ColumnMonetary,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := NewTransformer(nil).Transform(context.Background(), tt.rows)
			require.Error(t, err)
			assert.Nil(t, out)
			assert.Equal(t, tt.wantType, apperrors.TypeOf(err))
			if tt.wantColumn != "" {
				assert.Contains(t, err.Error(), tt.wantColumn)
			}
		})
	}
}

func TestTransform_DoesNotMutateInput(t *testing.T) {
	rows := randomRFM(20, 1)
	before := make([]domain.CustomerRFM, len(rows))
	copy(before, rows)

	_, _, err := NewTransformer(nil).Transform(context.Background(), rows)
	require.NoError(t, err)
	assert.Equal(t, before, rows)
}
