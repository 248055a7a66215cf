package operations

// Step identifiers
const (
	StepIDCleaning   = "cleaning"
	StepIDRFM        = "rfm"
	StepIDFeatures   = "features"
	StepIDEvaluation = "evaluation"
	StepIDClustering = "clustering"
	StepIDProfiling  = "profiling"
)

// Step names
const (
	StepNameCleaning   = "Transaction Cleaning"
	StepNameRFM        = "RFM Table"
	StepNameFeatures   = "Feature Scaling"
	StepNameEvaluation = "Cluster Count Sweep"
	StepNameClustering = "Final Clustering"
	StepNameProfiling  = "Cluster Profiling"
)

// Context keys for tables exchanged between steps
const (
	ContextKeyTransactions     = "transactions"
	ContextKeyCleaningReport   = "cleaning_report"
	ContextKeyRFM              = "rfm"
	ContextKeySnapshotDate     = "snapshot_date"
	ContextKeyScaled           = "scaled"
	ContextKeyScalerParams     = "scaler_params"
	ContextKeyEvaluation       = "evaluation"
	ContextKeyAssignments      = "assignments"
	ContextKeyModel            = "model"
	ContextKeyClusterProfiles  = "cluster_profiles"
	ContextKeyTemporalProfiles = "temporal_profiles"
)

// Request selects what a run executes. An empty Step runs every registered
// step in dependency order.
type Request struct {
	ID   string `json:"id"`
	Step string `json:"step,omitempty"`
}

// StepReport is the externally visible state of one step
type StepReport struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Status     StepStatus `json:"status"`
	Progress   float64    `json:"progress"`
	Message    string     `json:"message,omitempty"`
	Error      string     `json:"error,omitempty"`
	DurationMS int64      `json:"duration_ms"`
}

// RunReport is a point-in-time snapshot of a run
type RunReport struct {
	RunID      string               `json:"run_id"`
	Status     OperationStatusValue `json:"status"`
	Steps      []StepReport         `json:"steps"`
	DurationMS int64                `json:"duration_ms"`
	Error      string               `json:"error,omitempty"`
	Err        error                `json:"-"`
}
