package domain

// EvaluationResult scores one candidate cluster count of the sweep
type EvaluationResult struct {
	K             int     `json:"k"`
	Distortion    float64 `json:"distortion"`
	CohesionScore float64 `json:"cohesion_score"`
}

// Assignment maps a customer to its final cluster.
// Label identity is only stable for identical input, k, seed and restart count.
type Assignment struct {
	CustomerID   string `json:"customer_id"`
	ClusterLabel int    `json:"cluster_label"`
}

// ClusterProfile summarizes the raw RFM metrics of one cluster
type ClusterProfile struct {
	Cluster         int     `json:"cluster"`
	Customers       int     `json:"customers"`
	RecencyMean     float64 `json:"recency_mean"`
	RecencyMedian   float64 `json:"recency_median"`
	FrequencyMean   float64 `json:"frequency_mean"`
	FrequencyMedian float64 `json:"frequency_median"`
	MonetaryMean    float64 `json:"monetary_mean"`
	MonetaryMedian  float64 `json:"monetary_median"`
}

// MonthPeriod buckets the day of month
type MonthPeriod string

const (
	MonthPeriodEarly MonthPeriod = "Early"
	MonthPeriodMid   MonthPeriod = "Mid"
	MonthPeriodLate  MonthPeriod = "Late"
)

// PeriodOfDay returns the month period for a day of month (1-31)
func PeriodOfDay(day int) MonthPeriod {
	switch {
	case day <= 10:
		return MonthPeriodEarly
	case day <= 20:
		return MonthPeriodMid
	default:
		return MonthPeriodLate
	}
}

// TemporalProfile counts cluster activity in one time slot
type TemporalProfile struct {
	Cluster         int         `json:"cluster"`
	DayOfWeek       string      `json:"day_of_week"`
	Hour            int         `json:"hour"`
	MonthPeriod     MonthPeriod `json:"month_period"`
	Transactions    int         `json:"transactions"`
	UniqueCustomers int         `json:"unique_customers"`
}
