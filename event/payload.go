package event

import "github.com/capmesh/capmesh/core"

// RegisteredPayload accompanies AgentRegistered.
type RegisteredPayload struct {
	AgentID      string
	AgentName    string
	Capabilities []core.Capability
}

// UnregisteredPayload accompanies AgentUnregistered.
type UnregisteredPayload struct {
	AgentID   string
	AgentName string
}

// UnhealthyPayload accompanies AgentUnhealthy.
type UnhealthyPayload struct {
	AgentID string
}

// WorkflowStartedPayload accompanies WorkflowStarted.
type WorkflowStartedPayload struct {
	WorkflowID string
	Name       string
}

// WorkflowCompletedPayload accompanies WorkflowCompleted. Result is a
// *workflow.Result; it is declared as any here to keep the event package
// free of a dependency cycle with the workflow engine.
type WorkflowCompletedPayload struct {
	WorkflowID string
	Success    bool
	Result     any
}
