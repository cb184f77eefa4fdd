package workflow

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capmesh/capmesh/agent"
	"github.com/capmesh/capmesh/core"
	"github.com/capmesh/capmesh/event"
	"github.com/capmesh/capmesh/registry"
	"github.com/capmesh/capmesh/router"
)

type testEnv struct {
	bus    *event.Bus
	reg    *registry.Registry
	engine *Engine
}

func newTestEnv(t *testing.T, agents ...core.Agent) *testEnv {
	t.Helper()
	bus := event.NewBus()
	reg := registry.New(bus)
	rt := router.New(reg)
	for _, a := range agents {
		require.NoError(t, reg.Register(context.Background(), a))
	}
	return &testEnv{bus: bus, reg: reg, engine: NewEngine(reg, rt, bus)}
}

// fetchAgent returns {"value": 42} for the fetch capability.
func fetchAgent() core.Agent {
	a := agent.New("fetcher", "Fetcher")
	a.Handle(core.Capability{Name: "fetch"}, func(context.Context, *core.Message) (map[string]any, error) {
		return map[string]any{"value": 42}, nil
	})
	return a
}

func TestExecute_SingleStepSuccess(t *testing.T) {
	env := newTestEnv(t, fetchAgent())

	result, err := env.engine.Execute(context.Background(), &Definition{
		ID:    "wf-1",
		Name:  "single",
		Steps: []Step{{ID: "s1", Capability: "fetch"}},
	})

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Empty(t, result.Errors)
	require.Contains(t, result.Results, "s1")
	output := result.Results["s1"].(map[string]any)
	assert.Equal(t, 42, output["value"])
}

func TestExecute_MissingCapability(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.engine.Execute(context.Background(), &Definition{
		ID:    "wf-2",
		Steps: []Step{{ID: "s1", Capability: "does-not-exist"}},
	})

	require.NoError(t, err)
	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "No agent found with capability")
	assert.Contains(t, result.Errors[0], "does-not-exist")
}

func TestExecute_VariablePassingBetweenSteps(t *testing.T) {
	var consumed any
	consumer := agent.New("consumer", "Consumer")
	consumer.Handle(core.Capability{Name: "consume"}, func(_ context.Context, msg *core.Message) (map[string]any, error) {
		input := msg.Input().(map[string]any)
		consumed = input["data"]
		return map[string]any{"done": true}, nil
	})

	env := newTestEnv(t, fetchAgent(), consumer)

	result, err := env.engine.Execute(context.Background(), &Definition{
		ID: "wf-3",
		Steps: []Step{
			{ID: "s1", Capability: "fetch", OutputVariable: "result1"},
			{ID: "s2", Capability: "consume", Input: map[string]any{"data": "$result1"}},
		},
	})

	require.NoError(t, err)
	assert.True(t, result.Success)
	require.NotNil(t, consumed)
	assert.Equal(t, 42, consumed.(map[string]any)["value"], "step 2 must receive step 1's output")
}

func TestExecute_StepFailureDoesNotAbortRemainingSteps(t *testing.T) {
	failing := agent.New("failer", "Failer")
	failing.Handle(core.Capability{Name: "fail"}, func(context.Context, *core.Message) (map[string]any, error) {
		return nil, errors.New("step blew up")
	})

	env := newTestEnv(t, failing, fetchAgent())

	result, err := env.engine.Execute(context.Background(), &Definition{
		ID: "wf-4",
		Steps: []Step{
			{ID: "s1", Capability: "fail"},
			{ID: "s2", Capability: "fetch"},
		},
	})

	require.NoError(t, err)
	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "step blew up")
	assert.Contains(t, result.Results, "s2", "later steps must still run")
}

func TestExecute_StepTimeoutRecorded(t *testing.T) {
	stuck := agent.New("stuck", "Stuck")
	stuck.Handle(core.Capability{Name: "slow"}, func(ctx context.Context, _ *core.Message) (map[string]any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	bus := event.NewBus()
	reg := registry.New(bus)
	rt := router.New(reg)
	require.NoError(t, reg.Register(context.Background(), stuck))
	eng := NewEngine(reg, rt, bus, func(o *Options) { o.StepTimeout = 30 * time.Millisecond })

	result, err := eng.Execute(context.Background(), &Definition{
		ID:    "wf-5",
		Steps: []Step{{ID: "s1", Capability: "slow"}},
	})

	require.NoError(t, err)
	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "timed out")
}

func TestExecute_EmitsLifecycleEvents(t *testing.T) {
	env := newTestEnv(t, fetchAgent())

	var started []event.WorkflowStartedPayload
	var completed []event.WorkflowCompletedPayload
	env.bus.On(event.WorkflowStarted, func(p any) {
		started = append(started, p.(event.WorkflowStartedPayload))
	})
	env.bus.On(event.WorkflowCompleted, func(p any) {
		completed = append(completed, p.(event.WorkflowCompletedPayload))
	})

	// A failing run still completes and still reports.
	_, err := env.engine.Execute(context.Background(), &Definition{
		ID:    "wf-6",
		Name:  "events",
		Steps: []Step{{ID: "s1", Capability: "nope"}},
	})
	require.NoError(t, err)

	require.Len(t, started, 1)
	assert.Equal(t, "wf-6", started[0].WorkflowID)
	require.Len(t, completed, 1)
	assert.False(t, completed[0].Success)
	assert.Equal(t, "wf-6", completed[0].WorkflowID)
	res, ok := completed[0].Result.(*Result)
	require.True(t, ok)
	assert.Equal(t, "wf-6", res.WorkflowID)
}

func TestExecute_InvalidDefinitionFailsBeforeStart(t *testing.T) {
	env := newTestEnv(t)

	startedCount := 0
	env.bus.On(event.WorkflowStarted, func(any) { startedCount++ })

	cases := []*Definition{
		nil,
		{Name: "no id", Steps: []Step{{ID: "s1", Capability: "x"}}},
		{ID: "wf", Steps: nil},
		{ID: "wf", Steps: []Step{{Capability: "x"}}},
		{ID: "wf", Steps: []Step{{ID: "s1"}}},
		{ID: "wf", Steps: []Step{{ID: "s1", Capability: "x"}, {ID: "s1", Capability: "y"}}},
	}
	for i, def := range cases {
		_, err := env.engine.Execute(context.Background(), def)
		assert.Error(t, err, fmt.Sprintf("case %d", i))
	}
	assert.Equal(t, 0, startedCount, "invalid definitions must fail before workflowStarted")
}
