package operations

import (
	"sync"
	"time"
)

// OperationStatusValue represents the overall run status
type OperationStatusValue string

const (
	OperationStatusPending   OperationStatusValue = "pending"
	OperationStatusRunning   OperationStatusValue = "running"
	OperationStatusCompleted OperationStatusValue = "completed"
	OperationStatusFailed    OperationStatusValue = "failed"
	OperationStatusCancelled OperationStatusValue = "cancelled"
)

// OperationState represents the complete state of a run
type OperationState struct {
	mu sync.RWMutex

	ID        string
	Status    OperationStatusValue
	StartTime time.Time
	EndTime   *time.Time

	// Step states, keyed by ID; order keeps the execution order for reports
	Steps map[string]*StepState
	order []string

	// Tables passed between steps
	Context map[string]interface{}

	Error error
}

// NewOperationState creates a new run state
func NewOperationState(id string) *OperationState {
	return &OperationState{
		ID:        id,
		Status:    OperationStatusPending,
		StartTime: time.Now(),
		Steps:     make(map[string]*StepState),
		Context:   make(map[string]interface{}),
	}
}

// Start marks the run as running
func (p *OperationState) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Status = OperationStatusRunning
	p.StartTime = time.Now()
}

// Complete marks the run as completed
func (p *OperationState) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	p.EndTime = &now
	p.Status = OperationStatusCompleted
}

// Fail marks the run as failed
func (p *OperationState) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	p.EndTime = &now
	p.Status = OperationStatusFailed
	p.Error = err
}

// Cancel marks the run as cancelled
func (p *OperationState) Cancel(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	p.EndTime = &now
	p.Status = OperationStatusCancelled
	p.Error = err
}

// GetStage returns the state of a specific step
func (p *OperationState) GetStage(stepID string) *StepState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.Steps[stepID]
}

// SetStage updates the state of a specific step
func (p *OperationState) SetStage(stepID string, state *StepState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.Steps[stepID]; !exists {
		p.order = append(p.order, stepID)
	}
	p.Steps[stepID] = state
}

// GetContext retrieves a value from the run context
func (p *OperationState) GetContext(key string) (interface{}, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	val, ok := p.Context[key]
	return val, ok
}

// SetContext sets a value in the run context
func (p *OperationState) SetContext(key string, value interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Context[key] = value
}

// Duration returns the duration of the run
func (p *OperationState) Duration() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.EndTime != nil {
		return p.EndTime.Sub(p.StartTime)
	}
	return time.Since(p.StartTime)
}

// Report returns a snapshot of the run and its steps in execution order
func (p *OperationState) Report() *RunReport {
	p.mu.RLock()
	defer p.mu.RUnlock()

	report := &RunReport{
		RunID:  p.ID,
		Status: p.Status,
		Steps:  make([]StepReport, 0, len(p.order)),
		Err:    p.Error,
	}
	end := time.Now()
	if p.EndTime != nil {
		end = *p.EndTime
	}
	report.DurationMS = end.Sub(p.StartTime).Milliseconds()
	if p.Error != nil {
		report.Error = p.Error.Error()
	}
	for _, id := range p.order {
		report.Steps = append(report.Steps, p.Steps[id].report())
	}
	return report
}

// lookup returns the typed context value stored under key
func lookup[T any](state *OperationState, key string) (T, bool) {
	var zero T
	v, ok := state.GetContext(key)
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	return typed, ok
}

// loadOrRead returns the context value stored under key, falling back to read
// when no earlier step of this run produced it.
func loadOrRead[T any](state *OperationState, key string, read func() (T, error)) (T, error) {
	if v, ok := lookup[T](state, key); ok {
		return v, nil
	}
	v, err := read()
	if err != nil {
		return v, err
	}
	state.SetContext(key, v)
	return v, nil
}
