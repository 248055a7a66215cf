package domain

import (
	"time"
)

// CustomerRFM holds the behavioral metrics of one customer
type CustomerRFM struct {
	CustomerID string  `json:"customer_id" validate:"required"`
	Recency    int     `json:"recency" validate:"min=0"`
	Frequency  int     `json:"frequency" validate:"min=1"`
	Monetary   float64 `json:"monetary" validate:"gt=0"`
}

// RFMTable is the output of the RFM builder together with the snapshot it was measured against
type RFMTable struct {
	SnapshotDate time.Time     `json:"snapshot_date"`
	Rows         []CustomerRFM `json:"rows"`
}

// ScaledFeatures is the log-compressed and standardized feature vector of a customer
type ScaledFeatures struct {
	CustomerID string  `json:"customer_id"`
	RLog       float64 `json:"r_log"`
	FLog       float64 `json:"f_log"`
	MLog       float64 `json:"m_log"`
	RScaled    float64 `json:"r_scaled"`
	FScaled    float64 `json:"f_scaled"`
	MScaled    float64 `json:"m_scaled"`
}

// Vector returns the standardized values in R, F, M order
func (s ScaledFeatures) Vector() []float64 {
	return []float64{s.RScaled, s.FScaled, s.MScaled}
}

// ColumnStats are the standardization parameters of one log-transformed column
type ColumnStats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

// ScalerParams are fit once per run over the whole customer population
type ScalerParams struct {
	Recency   ColumnStats `json:"recency"`
	Frequency ColumnStats `json:"frequency"`
	Monetary  ColumnStats `json:"monetary"`
}

// Apply standardizes one value with these parameters
func (c ColumnStats) Apply(x float64) float64 {
	return (x - c.Mean) / c.StdDev
}
