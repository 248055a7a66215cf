package operations

import (
	"log/slog"

	"rfmseg/internal/config"
	apperrors "rfmseg/internal/errors"
	"rfmseg/internal/infrastructure"
)

// NewPipeline builds a manager with every segmentation step registered.
// The cleaning step is registered only when a raw input path is configured;
// without it the rfm step reads the transaction table from file.
func NewPipeline(cfg *config.Config, logger *slog.Logger, metrics *infrastructure.PipelineMetrics) (*Manager, error) {
	if cfg == nil {
		return nil, apperrors.NewConfigError("operations.NewPipeline", "configuration is required", nil)
	}

	opts := StepOptions{Config: cfg, Logger: logger, Metrics: metrics}
	registry := NewRegistry()

	var rfmDeps []string
	steps := make([]Step, 0, 6)
	if cfg.Paths.RawInput != "" {
		steps = append(steps, NewCleaningStep(opts))
		rfmDeps = []string{StepIDCleaning}
	}
	steps = append(steps,
		NewRFMStep(opts, rfmDeps),
		NewFeaturesStep(opts),
		NewEvaluationStep(opts),
		NewClusteringStep(opts),
		NewProfilingStep(opts),
	)

	for _, step := range steps {
		if err := registry.Register(step); err != nil {
			return nil, err
		}
	}
	if err := registry.ValidateDependencies(); err != nil {
		return nil, err
	}

	return NewManager(registry, NewOperationTracer(metrics), logger), nil
}
