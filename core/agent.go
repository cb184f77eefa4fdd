package core

import (
	"context"
	"time"
)

// AgentStatus describes the coarse operational state an agent reports
// through its metadata. The health monitor treats StatusOffline (or a stale
// heartbeat) as unhealthy.
type AgentStatus string

const (
	// StatusIdle indicates the agent is registered and ready for work.
	StatusIdle AgentStatus = "idle"
	// StatusBusy indicates the agent is currently processing a message.
	StatusBusy AgentStatus = "busy"
	// StatusOffline indicates the agent is not accepting work.
	StatusOffline AgentStatus = "offline"
)

// Capability declares a named operation an agent can perform. The name is
// the routing key for message dispatch and workflow steps; it is expected to
// be unique across the registered agent set. Immutable once declared.
type Capability struct {
	Name              string        `json:"name"`
	Description       string        `json:"description,omitempty"`
	Inputs            []string      `json:"inputs,omitempty"`
	Outputs           []string      `json:"outputs,omitempty"`
	Cost              float64       `json:"cost,omitempty"`
	EstimatedDuration time.Duration `json:"estimated_duration,omitempty"`
}

// Metadata carries identifying and operational details about an agent. ID is
// caller-supplied, stable for the agent's registered lifetime and the sole
// routing key. Status and LastSeen are mutated by the agent itself and read
// by the registry's health monitor.
type Metadata struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Type         string       `json:"type,omitempty"`
	Description  string       `json:"description,omitempty"`
	Capabilities []Capability `json:"capabilities,omitempty"`
	Version      string       `json:"version,omitempty"`
	Status       AgentStatus  `json:"status"`
	LastSeen     time.Time    `json:"last_seen"`
}

// Agent is the contract every capability provider implements.
//
// Implementations must:
//   - Keep ID stable for the registered lifetime
//   - Be safe for concurrent ProcessMessage calls (the router dispatches
//     many requests in flight without head-of-line blocking)
//   - Respect context cancellation inside ProcessMessage
//
// ProcessMessage returns the response message for the request, or nil when
// the agent produces no response (for example an unknown capability). A nil
// response to a request that requires one is surfaced to the caller as a
// timeout by the router. A returned error is converted by the router into an
// error-typed message; it never escapes to the caller as a raw failure.
type Agent interface {
	// ID returns the unique caller-supplied identifier.
	ID() string

	// Metadata returns a snapshot of the agent's current metadata.
	Metadata() Metadata

	// Capabilities returns the declared capability set.
	Capabilities() []Capability

	// Initialize prepares the agent for work. Called by the registry before
	// the agent becomes visible; a failure prevents registration.
	Initialize(ctx context.Context) error

	// Shutdown releases agent resources. Called by the registry on
	// unregistration and orchestrator shutdown.
	Shutdown(ctx context.Context) error

	// ProcessMessage is the single processing entry point.
	ProcessMessage(ctx context.Context, msg *Message) (*Message, error)
}
