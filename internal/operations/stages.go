package operations

import (
	"context"
	"log/slog"
	"time"

	"rfmseg/internal/cleaning"
	"rfmseg/internal/clustering"
	"rfmseg/internal/config"
	"rfmseg/internal/features"
	"rfmseg/internal/infrastructure"
	"rfmseg/internal/profiling"
	"rfmseg/internal/rfm"
	"rfmseg/internal/tabular"
	"rfmseg/pkg/contracts/domain"
)

// StepOptions carries the dependencies shared by the pipeline steps
type StepOptions struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *infrastructure.PipelineMetrics
}

func (o StepOptions) logger(stepID string) *slog.Logger {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(slog.String("step", stepID))
}

func (o StepOptions) path(p string) string {
	return o.Config.Paths.Resolve(p)
}

func (o StepOptions) readTransactions(state *OperationState) ([]domain.Transaction, error) {
	return loadOrRead(state, ContextKeyTransactions, func() ([]domain.Transaction, error) {
		return tabular.ReadTransactions(o.path(o.Config.Paths.Transactions), o.Config.Columns)
	})
}

func (o StepOptions) readRFM(state *OperationState) ([]domain.CustomerRFM, error) {
	return loadOrRead(state, ContextKeyRFM, func() ([]domain.CustomerRFM, error) {
		return tabular.ReadRFM(o.path(o.Config.Paths.RFM))
	})
}

func (o StepOptions) readScaled(state *OperationState) ([]domain.ScaledFeatures, error) {
	return loadOrRead(state, ContextKeyScaled, func() ([]domain.ScaledFeatures, error) {
		return tabular.ReadScaled(o.path(o.Config.Paths.Scaled))
	})
}

func (o StepOptions) readEvaluation(state *OperationState) ([]domain.EvaluationResult, error) {
	return loadOrRead(state, ContextKeyEvaluation, func() ([]domain.EvaluationResult, error) {
		return tabular.ReadEvaluation(o.path(o.Config.Paths.Evaluation))
	})
}

func (o StepOptions) readAssignments(state *OperationState) ([]domain.Assignment, error) {
	return loadOrRead(state, ContextKeyAssignments, func() ([]domain.Assignment, error) {
		return tabular.ReadAssignments(o.path(o.Config.Paths.Assignments))
	})
}

// CleaningStep filters the raw export into the transaction table
type CleaningStep struct {
	BaseStep
	opts   StepOptions
	logger *slog.Logger
}

// NewCleaningStep creates the cleaning step
func NewCleaningStep(opts StepOptions) *CleaningStep {
	return &CleaningStep{
		BaseStep: NewBaseStep(StepIDCleaning, StepNameCleaning, nil),
		opts:     opts,
		logger:   opts.logger(StepIDCleaning),
	}
}

// Execute reads the raw export, cleans it and writes the transaction table
func (s *CleaningStep) Execute(ctx context.Context, state *OperationState) error {
	stepState := state.GetStage(s.ID())
	paths := s.opts.Config.Paths

	raw, err := tabular.ReadRawTransactions(s.opts.path(paths.RawInput), paths.RawSheet, s.opts.Config.Columns)
	if err != nil {
		return err
	}
	stepState.UpdateProgress(30, "Raw export loaded")

	txs, report, err := cleaning.NewCleaner(s.opts.Config.Cleaning, s.logger).Clean(ctx, raw)
	if err != nil {
		return err
	}
	stepState.UpdateProgress(70, "Rows cleaned")

	if err := tabular.WriteTransactions(s.opts.path(paths.Transactions), s.opts.Config.Columns, txs, s.logger); err != nil {
		return err
	}

	state.SetContext(ContextKeyTransactions, txs)
	state.SetContext(ContextKeyCleaningReport, report)
	stepState.SetMetadata("input_rows", report.InputRows)
	stepState.SetMetadata("output_rows", report.OutputRows)
	return nil
}

// RFMStep aggregates transactions into one RFM row per customer
type RFMStep struct {
	BaseStep
	opts   StepOptions
	logger *slog.Logger
}

// NewRFMStep creates the RFM step. deps lists the steps producing its input
// in this pipeline, if any.
func NewRFMStep(opts StepOptions, deps []string) *RFMStep {
	return &RFMStep{
		BaseStep: NewBaseStep(StepIDRFM, StepNameRFM, deps),
		opts:     opts,
		logger:   opts.logger(StepIDRFM),
	}
}

// Execute builds and writes the RFM table
func (s *RFMStep) Execute(ctx context.Context, state *OperationState) error {
	stepState := state.GetStage(s.ID())

	txs, err := s.opts.readTransactions(state)
	if err != nil {
		return err
	}
	stepState.UpdateProgress(30, "Transactions loaded")

	table, err := rfm.NewBuilder(s.opts.Config.RFM.SnapshotOffsetDays, s.logger).Build(ctx, txs)
	if err != nil {
		return err
	}
	rfm.Describe(table.Rows).Log(ctx, s.logger)

	if err := tabular.WriteRFM(s.opts.path(s.opts.Config.Paths.RFM), table.Rows, s.logger); err != nil {
		return err
	}

	s.opts.Metrics.RecordCustomers(ctx, len(table.Rows))
	state.SetContext(ContextKeyRFM, table.Rows)
	state.SetContext(ContextKeySnapshotDate, table.SnapshotDate)
	stepState.SetMetadata("customers", len(table.Rows))
	stepState.SetMetadata("snapshot_date", table.SnapshotDate.Format(time.DateOnly))
	return nil
}

// FeaturesStep log-compresses and standardizes the RFM table
type FeaturesStep struct {
	BaseStep
	opts   StepOptions
	logger *slog.Logger
}

// NewFeaturesStep creates the feature scaling step
func NewFeaturesStep(opts StepOptions) *FeaturesStep {
	return &FeaturesStep{
		BaseStep: NewBaseStep(StepIDFeatures, StepNameFeatures, []string{StepIDRFM}),
		opts:     opts,
		logger:   opts.logger(StepIDFeatures),
	}
}

// Execute transforms and writes the scaled feature table
func (s *FeaturesStep) Execute(ctx context.Context, state *OperationState) error {
	rows, err := s.opts.readRFM(state)
	if err != nil {
		return err
	}

	scaled, params, err := features.NewTransformer(s.logger).Transform(ctx, rows)
	if err != nil {
		return err
	}

	if err := tabular.WriteScaled(s.opts.path(s.opts.Config.Paths.Scaled), scaled, s.logger); err != nil {
		return err
	}

	state.SetContext(ContextKeyScaled, scaled)
	state.SetContext(ContextKeyScalerParams, params)
	state.GetStage(s.ID()).SetMetadata("rows", len(scaled))
	return nil
}

// EvaluationStep sweeps the configured k range
type EvaluationStep struct {
	BaseStep
	opts   StepOptions
	logger *slog.Logger
}

// NewEvaluationStep creates the k sweep step
func NewEvaluationStep(opts StepOptions) *EvaluationStep {
	return &EvaluationStep{
		BaseStep: NewBaseStep(StepIDEvaluation, StepNameEvaluation, []string{StepIDFeatures}),
		opts:     opts,
		logger:   opts.logger(StepIDEvaluation),
	}
}

// Execute scores every candidate k and writes the evaluation table
func (s *EvaluationStep) Execute(ctx context.Context, state *OperationState) error {
	cfg := s.opts.Config.Clustering

	scaled, err := s.opts.readScaled(state)
	if err != nil {
		return err
	}

	selector := clustering.NewSelector(clustering.OptionsFromConfig(cfg), s.logger)
	results, err := selector.Evaluate(ctx, scaled, cfg.KMin, cfg.KMax)
	if err != nil {
		return err
	}

	if err := tabular.WriteEvaluation(s.opts.path(s.opts.Config.Paths.Evaluation), results, s.logger); err != nil {
		return err
	}

	s.opts.Metrics.RecordSweep(ctx, len(results), cfg.Restarts)
	state.SetContext(ContextKeyEvaluation, results)
	if best, ok := clustering.BestByCohesion(results); ok {
		s.logger.InfoContext(ctx, "Highest cohesion candidate",
			slog.Int("k", best.K),
			slog.Float64("silhouette_score", best.CohesionScore),
			slog.Int("configured_k", cfg.FinalK))
		state.GetStage(s.ID()).SetMetadata("best_cohesion_k", best.K)
	}
	return nil
}

// ClusteringStep fits the final model at the configured k
type ClusteringStep struct {
	BaseStep
	opts   StepOptions
	logger *slog.Logger
}

// NewClusteringStep creates the final clustering step
func NewClusteringStep(opts StepOptions) *ClusteringStep {
	return &ClusteringStep{
		BaseStep: NewBaseStep(StepIDClustering, StepNameClustering, []string{StepIDFeatures}),
		opts:     opts,
		logger:   opts.logger(StepIDClustering),
	}
}

// Execute labels every customer and writes the assignment table
func (s *ClusteringStep) Execute(ctx context.Context, state *OperationState) error {
	cfg := s.opts.Config.Clustering

	scaled, err := s.opts.readScaled(state)
	if err != nil {
		return err
	}

	assignments, model, err := clustering.NewFitter(clustering.OptionsFromConfig(cfg), s.logger).Fit(ctx, scaled, cfg.FinalK)
	if err != nil {
		return err
	}

	if err := tabular.WriteAssignments(s.opts.path(s.opts.Config.Paths.Assignments), assignments, s.logger); err != nil {
		return err
	}

	s.opts.Metrics.RecordRestarts(ctx, cfg.Restarts)
	state.SetContext(ContextKeyAssignments, assignments)
	state.SetContext(ContextKeyModel, model)
	state.GetStage(s.ID()).SetMetadata("cluster_sizes", model.ClusterSizes())
	return nil
}

// ProfilingStep summarizes the clusters and exports the workbook
type ProfilingStep struct {
	BaseStep
	opts   StepOptions
	logger *slog.Logger
}

// NewProfilingStep creates the profiling step. The workbook carries the
// evaluation table, so configuring one adds a dependency on the evaluation step.
func NewProfilingStep(opts StepOptions) *ProfilingStep {
	deps := []string{StepIDRFM, StepIDClustering}
	if opts.Config.Paths.Workbook != "" {
		deps = append(deps, StepIDEvaluation)
	}
	return &ProfilingStep{
		BaseStep: NewBaseStep(StepIDProfiling, StepNameProfiling, deps),
		opts:     opts,
		logger:   opts.logger(StepIDProfiling),
	}
}

// Execute writes the cluster and temporal profiles, then the workbook when configured
func (s *ProfilingStep) Execute(ctx context.Context, state *OperationState) error {
	paths := s.opts.Config.Paths
	profiler := profiling.NewProfiler(s.logger)

	rows, err := s.opts.readRFM(state)
	if err != nil {
		return err
	}
	assignments, err := s.opts.readAssignments(state)
	if err != nil {
		return err
	}

	clusterProfiles, err := profiler.ClusterProfiles(ctx, rows, assignments)
	if err != nil {
		return err
	}
	if paths.ClusterProfile != "" {
		if err := tabular.WriteClusterProfiles(s.opts.path(paths.ClusterProfile), clusterProfiles, s.logger); err != nil {
			return err
		}
	}
	state.SetContext(ContextKeyClusterProfiles, clusterProfiles)

	if paths.TemporalProfile != "" {
		txs, err := s.opts.readTransactions(state)
		if err != nil {
			return err
		}
		temporal, err := profiler.TemporalProfiles(ctx, txs, assignments)
		if err != nil {
			return err
		}
		if err := tabular.WriteTemporalProfiles(s.opts.path(paths.TemporalProfile), temporal, s.logger); err != nil {
			return err
		}
		state.SetContext(ContextKeyTemporalProfiles, temporal)
	}

	if paths.Workbook != "" {
		results, err := s.opts.readEvaluation(state)
		if err != nil {
			return err
		}
		if err := tabular.WriteSegmentationWorkbook(s.opts.path(paths.Workbook), results, clusterProfiles, s.logger); err != nil {
			return err
		}
	}

	state.GetStage(s.ID()).SetMetadata("clusters", len(clusterProfiles))
	return nil
}
