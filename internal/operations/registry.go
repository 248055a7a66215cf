package operations

import (
	"fmt"
	"sync"

	apperrors "rfmseg/internal/errors"
)

// Registry manages registered steps
type Registry struct {
	mu    sync.RWMutex
	steps map[string]Step
	order []string // Maintains registration order
}

// NewRegistry creates an empty step registry
func NewRegistry() *Registry {
	return &Registry{
		steps: make(map[string]Step),
		order: make([]string, 0),
	}
}

// Register adds a step to the registry
func (r *Registry) Register(step Step) error {
	const op = "operations.Register"

	if step == nil {
		return apperrors.NewConfigError(op, "cannot register nil step", nil)
	}

	id := step.ID()
	if id == "" {
		return apperrors.NewConfigError(op, "step ID cannot be empty", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.steps[id]; exists {
		return apperrors.NewConfigError(op, fmt.Sprintf("step %s already registered", id), nil)
	}

	r.steps[id] = step
	r.order = append(r.order, id)
	return nil
}

// Get retrieves a step by ID
func (r *Registry) Get(id string) (Step, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	step, exists := r.steps[id]
	if !exists {
		return nil, apperrors.NewConfigError("operations.Get",
			fmt.Sprintf("unknown step %q, registered steps: %v", id, r.order), nil)
	}

	return step, nil
}

// Has checks if a step is registered
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.steps[id]
	return exists
}

// List returns all registered steps in registration order
func (r *Registry) List() []Step {
	r.mu.RLock()
	defer r.mu.RUnlock()

	steps := make([]Step, 0, len(r.order))
	for _, id := range r.order {
		steps = append(steps, r.steps[id])
	}
	return steps
}

// ListIDs returns all registered step IDs in registration order
func (r *Registry) ListIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

// Count returns the number of registered steps
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.steps)
}

// GetDependencyOrder returns steps ordered by dependencies. Steps that become
// ready together keep their registration order.
func (r *Registry) GetDependencyOrder() ([]Step, error) {
	const op = "operations.GetDependencyOrder"

	r.mu.RLock()
	defer r.mu.RUnlock()

	position := make(map[string]int, len(r.order))
	for i, id := range r.order {
		position[id] = i
	}

	dependents := make(map[string][]string)
	inDegree := make(map[string]int, len(r.steps))
	for _, id := range r.order {
		for _, dep := range r.steps[id].GetDependencies() {
			if _, exists := r.steps[dep]; !exists {
				return nil, apperrors.NewConfigError(op, fmt.Sprintf("step %s depends on unregistered step %s", id, dep), nil)
			}
			dependents[dep] = append(dependents[dep], id)
			inDegree[id]++
		}
	}

	// Kahn's algorithm; ready is kept sorted by registration position
	ready := make([]string, 0)
	for _, id := range r.order {
		if inDegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	ordered := make([]Step, 0, len(r.steps))
	for len(ready) > 0 {
		current := ready[0]
		ready = ready[1:]
		ordered = append(ordered, r.steps[current])

		for _, dependent := range dependents[current] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				ready = insertByPosition(ready, dependent, position)
			}
		}
	}

	if len(ordered) != len(r.steps) {
		return nil, apperrors.NewConfigError(op, "dependency cycle detected", nil)
	}
	return ordered, nil
}

func insertByPosition(queue []string, id string, position map[string]int) []string {
	i := 0
	for i < len(queue) && position[queue[i]] < position[id] {
		i++
	}
	queue = append(queue, "")
	copy(queue[i+1:], queue[i:])
	queue[i] = id
	return queue
}

// ValidateDependencies checks that every dependency is registered and acyclic
func (r *Registry) ValidateDependencies() error {
	_, err := r.GetDependencyOrder()
	return err
}

// GetDependents returns steps that depend directly on the given step
func (r *Registry) GetDependents(stepID string) []Step {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dependents := make([]Step, 0)
	for _, id := range r.order {
		for _, dep := range r.steps[id].GetDependencies() {
			if dep == stepID {
				dependents = append(dependents, r.steps[id])
				break
			}
		}
	}
	return dependents
}
