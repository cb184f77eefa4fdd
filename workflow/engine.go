package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/capmesh/capmesh/core"
	"github.com/capmesh/capmesh/event"
	"github.com/capmesh/capmesh/logging"
	"github.com/capmesh/capmesh/registry"
	"github.com/capmesh/capmesh/router"
)

// engineSender is the sender id workflow-issued requests carry.
const engineSender = "workflow-engine"

// Options configures an Engine.
type Options struct {
	// Logger receives execution diagnostics. Defaults to NoOpLogger.
	Logger logging.Logger

	// StepTimeout bounds each step's request. Zero falls back to the
	// router's default timeout.
	StepTimeout time.Duration
}

// Engine executes workflow definitions against the registered agent set.
type Engine struct {
	registry    *registry.Registry
	router      *router.Router
	bus         *event.Bus
	logger      logging.Logger
	stepTimeout time.Duration
}

// NewEngine constructs a workflow engine dispatching through rt and
// resolving capability owners via reg.
func NewEngine(reg *registry.Registry, rt *router.Router, bus *event.Bus, optFns ...func(o *Options)) *Engine {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Engine{
		registry:    reg,
		router:      rt,
		bus:         bus,
		logger:      logging.OrDefault(opts.Logger),
		stepTimeout: opts.StepTimeout,
	}
}

// Execute runs the definition's steps strictly in order and reports the
// aggregate result. Step failures (missing capability, application error,
// timeout) are accumulated into the result's error list and do not abort the
// remaining steps; the workflow always finishes and always emits
// workflowCompleted. Only an invalid definition fails synchronously before
// the first step.
func (e *Engine) Execute(ctx context.Context, def *Definition) (*Result, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	e.logger.Info("workflow started", "workflow_id", def.ID, "name", def.Name, "steps", len(def.Steps))
	e.bus.Emit(event.WorkflowStarted, event.WorkflowStartedPayload{WorkflowID: def.ID, Name: def.Name})

	result := &Result{
		WorkflowID: def.ID,
		Results:    make(map[string]any),
	}
	vars := make(map[string]any) // outputVariable -> value, scoped to this run

	for _, step := range def.Steps {
		e.executeStep(ctx, step, vars, result)
	}

	result.Success = len(result.Errors) == 0

	e.logger.Info("workflow completed", "workflow_id", def.ID, "success", result.Success, "errors", len(result.Errors))
	e.bus.Emit(event.WorkflowCompleted, event.WorkflowCompletedPayload{
		WorkflowID: def.ID,
		Success:    result.Success,
		Result:     result,
	})

	return result, nil
}

// executeStep substitutes variables, resolves the capability owner,
// dispatches the request and records the outcome on result.
func (e *Engine) executeStep(ctx context.Context, step Step, vars map[string]any, result *Result) {
	for _, name := range unresolved(step.Input, vars) {
		e.logger.Warn("unresolved variable reference passes through", "workflow_id", result.WorkflowID, "step_id", step.ID, "variable", name)
	}
	input := Substitute(step.Input, vars)

	agent, ok := e.registry.FindByCapability(step.Capability)
	if !ok {
		result.Errors = append(result.Errors, fmt.Sprintf("No agent found with capability: %s", step.Capability))
		return
	}

	msg := core.NewRequest(engineSender, agent.ID(), step.Capability, input)
	msg.Timeout = e.stepTimeout

	resp, err := e.router.Send(ctx, msg)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("step %s: %v", step.ID, err))
		return
	}
	if resp == nil {
		result.Errors = append(result.Errors, fmt.Sprintf("step %s: no response", step.ID))
		return
	}
	if resp.IsError() {
		result.Errors = append(result.Errors, fmt.Sprintf("step %s: %s", step.ID, resp.ErrorText()))
		return
	}

	var output any = resp.Payload
	result.Results[step.ID] = output
	if step.OutputVariable != "" {
		vars[step.OutputVariable] = output
	}
}
