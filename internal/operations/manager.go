package operations

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	apperrors "rfmseg/internal/errors"
	"rfmseg/internal/infrastructure"
)

// Manager orchestrates run execution
type Manager struct {
	registry *Registry
	tracer   *OperationTracer
	logger   *slog.Logger

	mu      sync.RWMutex
	current *OperationState
}

// NewManager creates a new run manager
func NewManager(registry *Registry, tracer *OperationTracer, logger *slog.Logger) *Manager {
	if registry == nil {
		registry = NewRegistry()
	}
	if tracer == nil {
		tracer = NewOperationTracer(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		registry: registry,
		tracer:   tracer,
		logger:   infrastructure.WithComponent(logger, "operations"),
	}
}

// RegisterStep registers a step with the manager
func (m *Manager) RegisterStep(step Step) error {
	return m.registry.Register(step)
}

// GetRegistry returns the registry for accessing registered steps
func (m *Manager) GetRegistry() *Registry {
	return m.registry
}

// Report returns a snapshot of the current or most recent run, nil before the first run
func (m *Manager) Report() *RunReport {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil
	}
	return m.current.Report()
}

// Execute runs the requested steps sequentially. The returned report is
// always non-nil; the error is the failing step's error, if any.
func (m *Manager) Execute(ctx context.Context, req Request) (*RunReport, error) {
	if req.ID == "" {
		req.ID = infrastructure.GetRunID(ctx)
	}
	if req.ID == "" {
		req.ID = infrastructure.GenerateRunID()
	}
	ctx = infrastructure.WithRunID(ctx, req.ID)

	state := NewOperationState(req.ID)
	m.mu.Lock()
	m.current = state
	m.mu.Unlock()

	ctx, span := m.tracer.TraceRun(ctx, req.ID, req)

	steps, err := m.plan(ctx, req)
	if err != nil {
		state.Fail(err)
		m.tracer.RecordRunCompletion(ctx, span, state.Duration(), OperationStatusFailed, err)
		return state.Report(), err
	}
	for _, step := range steps {
		state.SetStage(step.ID(), NewStepState(step.ID(), step.Name()))
	}

	state.Start()
	err = m.executeSequential(ctx, state, steps)

	status := OperationStatusCompleted
	switch {
	case err == nil:
		state.Complete()
		m.logger.InfoContext(ctx, "Run completed",
			slog.Int("step_count", len(steps)),
			slog.Duration("duration", state.Duration()))
	case apperrors.IsType(err, apperrors.ErrTypeCancelled):
		status = OperationStatusCancelled
		state.Cancel(err)
		m.logger.WarnContext(ctx, "Run cancelled", slog.String("error", err.Error()))
	default:
		status = OperationStatusFailed
		state.Fail(err)
		m.logger.ErrorContext(ctx, "Run failed", slog.String("error", err.Error()))
	}
	m.tracer.RecordRunCompletion(ctx, span, state.Duration(), status, err)

	return state.Report(), err
}

// plan resolves the steps a request executes
func (m *Manager) plan(ctx context.Context, req Request) ([]Step, error) {
	if req.Step != "" {
		step, err := m.registry.Get(req.Step)
		if err != nil {
			return nil, err
		}
		m.logger.InfoContext(ctx, "Executing single step", slog.String("step_id", req.Step))
		return []Step{step}, nil
	}

	steps, err := m.registry.GetDependencyOrder()
	if err != nil {
		return nil, err
	}
	m.logger.InfoContext(ctx, "Executing full pipeline", slog.Int("step_count", len(steps)))
	return steps, nil
}

// executeSequential executes steps one by one and stops at the first failure
func (m *Manager) executeSequential(ctx context.Context, state *OperationState, steps []Step) error {
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			m.skipRemaining(state, steps[i:], "run cancelled")
			return NewStepError(step.ID(), err)
		}

		m.logger.InfoContext(ctx, "Executing step",
			slog.String("step_id", step.ID()),
			slog.Int("step_number", i+1),
			slog.Int("total_steps", len(steps)))

		if err := m.executeStep(ctx, state, step); err != nil {
			m.skipRemaining(state, steps[i+1:], fmt.Sprintf("step %s failed", step.ID()))
			return err
		}
	}
	return nil
}

// executeStep runs a single step inside its own span
func (m *Manager) executeStep(ctx context.Context, state *OperationState, step Step) error {
	stepState := state.GetStage(step.ID())

	ctx, span := m.tracer.TraceStep(ctx, state.ID, step.ID())
	stepState.Start()
	start := time.Now()

	err := m.checkDependencies(state, step)
	if err == nil {
		err = step.Validate(state)
	}
	if err == nil {
		err = step.Execute(ctx, state)
	}
	duration := time.Since(start)

	if err != nil {
		stepErr := NewStepError(step.ID(), err)
		stepState.Fail(stepErr.Err)
		m.tracer.RecordStepCompletion(ctx, span, step.ID(), duration, StepStatusFailed, stepErr)
		m.logger.ErrorContext(ctx, "Step failed",
			slog.String("step_id", step.ID()),
			slog.Duration("duration", duration),
			slog.String("error", stepErr.Err.Error()))
		return stepErr
	}

	stepState.Complete()
	m.tracer.RecordStepCompletion(ctx, span, step.ID(), duration, StepStatusCompleted, nil)
	m.logger.InfoContext(ctx, "Step completed",
		slog.String("step_id", step.ID()),
		slog.Duration("duration", duration))
	return nil
}

// checkDependencies fails when a dependency scheduled in this run has not completed
func (m *Manager) checkDependencies(state *OperationState, step Step) error {
	for _, dep := range step.GetDependencies() {
		depState := state.GetStage(dep)
		if depState == nil {
			// Not part of this run; the step reads its input from file
			continue
		}
		if depState.GetStatus() != StepStatusCompleted {
			return apperrors.NewValidationError("operations."+step.ID(),
				fmt.Sprintf("dependency %s is %s", dep, depState.GetStatus()))
		}
	}
	return nil
}

// skipRemaining marks steps that will not run as skipped
func (m *Manager) skipRemaining(state *OperationState, steps []Step, reason string) {
	for _, step := range steps {
		if s := state.GetStage(step.ID()); s != nil && s.GetStatus() == StepStatusPending {
			s.Skip(reason)
		}
	}
}
