// Package event provides the orchestrator's lifecycle notification bus: a
// synchronous, in-process publish/subscribe facility scoped to one
// orchestrator instance. Handlers attached at emission time are invoked in
// registration order with the event payload; there is no persistence, replay
// or delivery guarantee beyond that.
package event

import "sync"

// Name identifies a lifecycle or outcome notification.
type Name string

const (
	// AgentRegistered fires after an agent is indexed by the registry.
	AgentRegistered Name = "agentRegistered"
	// AgentUnregistered fires after an agent is removed from the registry.
	AgentUnregistered Name = "agentUnregistered"
	// AgentUnhealthy fires once per transition into the unhealthy state.
	AgentUnhealthy Name = "agentUnhealthy"
	// WorkflowStarted fires before the first step of a workflow executes.
	WorkflowStarted Name = "workflowStarted"
	// WorkflowCompleted fires after every step ran, whether or not the
	// workflow succeeded.
	WorkflowCompleted Name = "workflowCompleted"
)

// Handler receives the payload of an emitted event.
type Handler func(payload any)

// Bus is an owned publish/subscribe object held by the orchestrator
// instance. Safe for concurrent use; emission is synchronous.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Name][]Handler
}

// NewBus constructs an empty event bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[Name][]Handler)}
}

// On registers a handler for the named event. Handlers are invoked in
// registration order.
func (b *Bus) On(name Name, h Handler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], h)
}

// Emit synchronously invokes all handlers currently attached to the named
// event. The handler list is copied under the lock so handlers may subscribe
// from within a callback without deadlocking.
func (b *Bus) Emit(name Name, payload any) {
	b.mu.RLock()
	hs := make([]Handler, len(b.handlers[name]))
	copy(hs, b.handlers[name])
	b.mu.RUnlock()

	for _, h := range hs {
		h(payload)
	}
}
