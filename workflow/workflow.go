package workflow

import "fmt"

// Step is a single capability invocation within a workflow. Input values may
// reference earlier step outputs with $variable tokens; OutputVariable, when
// set, stores this step's output for later substitution.
type Step struct {
	ID             string         `json:"id" yaml:"id"`
	Capability     string         `json:"capability" yaml:"capability"`
	Input          map[string]any `json:"input,omitempty" yaml:"input,omitempty"`
	OutputVariable string         `json:"outputVariable,omitempty" yaml:"outputVariable,omitempty"`
}

// Definition is an ordered list of steps. Step order is significant: steps
// execute strictly sequentially, never in parallel.
type Definition struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Steps       []Step `json:"steps" yaml:"steps"`
}

// Validate checks the structural invariants that must hold before execution
// starts. An invalid definition is an infrastructure fault and fails
// synchronously; it is not recorded as a step error.
func (d *Definition) Validate() error {
	if d == nil {
		return fmt.Errorf("workflow definition is nil")
	}
	if d.ID == "" {
		return fmt.Errorf("workflow is missing an id")
	}
	if len(d.Steps) == 0 {
		return fmt.Errorf("workflow %s has no steps", d.ID)
	}
	seen := make(map[string]bool, len(d.Steps))
	for i, step := range d.Steps {
		if step.ID == "" {
			return fmt.Errorf("workflow %s: step %d is missing an id", d.ID, i)
		}
		if seen[step.ID] {
			return fmt.Errorf("workflow %s: duplicate step id %s", d.ID, step.ID)
		}
		seen[step.ID] = true
		if step.Capability == "" {
			return fmt.Errorf("workflow %s: step %s is missing a capability", d.ID, step.ID)
		}
	}
	return nil
}

// Result is the aggregate outcome of one workflow execution. Immutable after
// the run completes. Success is true iff every step completed without error.
type Result struct {
	WorkflowID string         `json:"workflow_id"`
	Success    bool           `json:"success"`
	Results    map[string]any `json:"results"`
	Errors     []string       `json:"errors,omitempty"`
}
