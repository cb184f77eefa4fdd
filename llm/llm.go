// Package llm defines the minimal model interface used by LLM-backed agents
// plus a deterministic mock for tests. Vendor adapters live in the
// subpackages anthropic and openai.
package llm

import (
	"context"
	"fmt"
	"sync"
)

// Request is a single-shot generation request. The orchestrator's agents do
// not carry conversational state, so one system instruction plus one prompt
// is the whole input.
type Request struct {
	System string `json:"system,omitempty"`
	Prompt string `json:"prompt"`
}

// Response is the completed generation.
type Response struct {
	Text string `json:"text"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "anthropic", "openai", "mock", ...
}

// Model is the minimal interface an LLM-backed agent needs.
type Model interface {
	Generate(ctx context.Context, req Request) (*Response, error)

	// Info returns information about the model implementation.
	Info() Info
}

// MockModel is a lightweight in-memory Model useful for tests & examples.
// Prompts without a canned response get a deterministic echo.
type MockModel struct {
	mu        sync.Mutex
	info      Info
	responses map[string]string
}

// NewMockModel constructs a MockModel.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: "mock"},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for a prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// Generate implements Model.
func (m *MockModel) Generate(_ context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if text, ok := m.responses[req.Prompt]; ok {
		return &Response{Text: text}, nil
	}
	return &Response{Text: fmt.Sprintf("Mock response to: %s", req.Prompt)}, nil
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }
