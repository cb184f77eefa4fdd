package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/capmesh/capmesh/core"
	"github.com/capmesh/capmesh/llm"
)

// ModelAgentOptions configures NewModelAgent.
type ModelAgentOptions struct {
	// CapabilityName is the routing key the agent answers to.
	CapabilityName string
	// Instruction is passed to the model as the system prompt.
	Instruction string
	// Cost and EstimatedDuration feed the capability descriptor used for
	// discovery and planning.
	Cost              float64
	EstimatedDuration time.Duration
}

// NewModelAgent builds an agent that exposes a text-generation capability
// backed by the given model. The capability input may be a plain string
// prompt or a map with a "prompt" key.
func NewModelAgent(id, name string, model llm.Model, optFns ...func(o *ModelAgentOptions)) *BaseAgent {
	opts := ModelAgentOptions{CapabilityName: "generate-text"}
	for _, fn := range optFns {
		fn(&opts)
	}

	info := model.Info()
	a := New(id, name, func(o *Options) {
		o.Type = "llm"
		o.Description = fmt.Sprintf("Text generation backed by %s (%s)", info.Name, info.Provider)
	})

	a.Handle(core.Capability{
		Name:              opts.CapabilityName,
		Description:       "Generate text from a prompt",
		Inputs:            []string{"prompt"},
		Outputs:           []string{"text"},
		Cost:              opts.Cost,
		EstimatedDuration: opts.EstimatedDuration,
	}, func(ctx context.Context, msg *core.Message) (map[string]any, error) {
		prompt, err := promptFromInput(msg.Input())
		if err != nil {
			return nil, err
		}

		resp, err := model.Generate(ctx, llm.Request{System: opts.Instruction, Prompt: prompt})
		if err != nil {
			return nil, err
		}

		return map[string]any{
			"text":     resp.Text,
			"model":    info.Name,
			"provider": info.Provider,
		}, nil
	})

	return a
}

// promptFromInput accepts either a bare string or a {"prompt": "..."} map.
func promptFromInput(input any) (string, error) {
	switch v := input.(type) {
	case string:
		if v != "" {
			return v, nil
		}
	case map[string]any:
		if p, ok := v["prompt"].(string); ok && p != "" {
			return p, nil
		}
	}
	return "", fmt.Errorf("input must carry a non-empty prompt")
}
