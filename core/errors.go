package core

import "fmt"

var (
	// ErrInvalidMessage is returned when a message fails validation before
	// any routing attempt.
	ErrInvalidMessage = fmt.Errorf("invalid message")

	// ErrAgentNotFound is returned when the target agent of a message that
	// requires a response is not registered.
	ErrAgentNotFound = fmt.Errorf("agent not found")

	// ErrDuplicateAgent is returned when registering an agent whose id is
	// already present in the registry.
	ErrDuplicateAgent = fmt.Errorf("agent already registered")

	// ErrTimeout is returned when no response arrives before the request
	// deadline. The pending correlation is retired exactly once.
	ErrTimeout = fmt.Errorf("request timed out")

	// ErrShutdown is returned to callers whose pending requests are drained
	// by an orchestrator shutdown.
	ErrShutdown = fmt.Errorf("orchestrator shut down")
)
