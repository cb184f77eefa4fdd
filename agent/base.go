package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/capmesh/capmesh/core"
)

// HandlerFunc processes one request for a single capability and returns the
// response payload. A nil error with a nil payload still produces an empty
// response; returning an error produces an error-typed message for the
// caller.
type HandlerFunc func(ctx context.Context, msg *core.Message) (map[string]any, error)

// Options configures a BaseAgent.
type Options struct {
	// Type categorizes the implementation (e.g. "worker", "connector").
	Type string
	// Description is a human-readable summary of the agent's purpose.
	Description string
	// Version identifies the agent implementation version.
	Version string
}

// BaseAgent is a ready-to-use implementation of core.Agent that dispatches
// incoming messages to capability handlers registered with Handle. All
// exported methods are goroutine-safe; ProcessMessage may be called
// concurrently for independent requests.
type BaseAgent struct {
	mu       sync.Mutex
	meta     core.Metadata
	handlers map[string]HandlerFunc
	inflight int
}

// New constructs a BaseAgent with the given id and name. The agent reports
// StatusOffline until Initialize runs.
func New(id, name string, optFns ...func(o *Options)) *BaseAgent {
	opts := Options{
		Type:        "worker",
		Description: fmt.Sprintf("Agent %s", name),
		Version:     "1.0.0",
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &BaseAgent{
		meta: core.Metadata{
			ID:          id,
			Name:        name,
			Type:        opts.Type,
			Description: opts.Description,
			Version:     opts.Version,
			Status:      core.StatusOffline,
		},
		handlers: make(map[string]HandlerFunc),
	}
}

// Handle declares a capability and registers its handler. Declaring the same
// capability name twice panics: capability names are routing keys and a
// silent overwrite would hide a wiring bug.
func (b *BaseAgent) Handle(cap core.Capability, fn HandlerFunc) *BaseAgent {
	if cap.Name == "" {
		panic("agent: capability name is required")
	}
	if fn == nil {
		panic("agent: handler is required")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.handlers[cap.Name]; exists {
		panic(fmt.Sprintf("agent: handler already registered for %s", cap.Name))
	}
	b.handlers[cap.Name] = fn
	b.meta.Capabilities = append(b.meta.Capabilities, cap)
	return b
}

// ID returns the unique caller-supplied identifier.
func (b *BaseAgent) ID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.meta.ID
}

// Metadata returns a snapshot of the agent's current metadata.
func (b *BaseAgent) Metadata() core.Metadata {
	b.mu.Lock()
	defer b.mu.Unlock()
	md := b.meta
	md.Capabilities = append([]core.Capability(nil), b.meta.Capabilities...)
	return md
}

// Capabilities returns the declared capability set.
func (b *BaseAgent) Capabilities() []core.Capability {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]core.Capability(nil), b.meta.Capabilities...)
}

// Initialize marks the agent idle and records a first heartbeat.
func (b *BaseAgent) Initialize(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.meta.Status = core.StatusIdle
	b.meta.LastSeen = time.Now()
	return nil
}

// Shutdown marks the agent offline.
func (b *BaseAgent) Shutdown(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.meta.Status = core.StatusOffline
	return nil
}

// Heartbeat refreshes the agent's LastSeen timestamp. ProcessMessage calls
// it implicitly; long-idle agents should call it periodically to stay
// healthy.
func (b *BaseAgent) Heartbeat() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.meta.LastSeen = time.Now()
}

// SetStatus overrides the reported status. Mostly useful for tests and for
// agents that take themselves offline.
func (b *BaseAgent) SetStatus(s core.AgentStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.meta.Status = s
}

// ProcessMessage dispatches the message to the handler registered for its
// capability. An unknown capability yields (nil, nil): no response, so a
// caller that required one times out at the router. The agent reports
// StatusBusy while at least one request is in flight.
func (b *BaseAgent) ProcessMessage(ctx context.Context, msg *core.Message) (*core.Message, error) {
	name := msg.Capability()

	b.mu.Lock()
	b.meta.LastSeen = time.Now()
	fn, ok := b.handlers[name]
	if !ok {
		b.mu.Unlock()
		return nil, nil
	}
	b.inflight++
	b.meta.Status = core.StatusBusy
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.inflight--
		if b.inflight == 0 && b.meta.Status == core.StatusBusy {
			b.meta.Status = core.StatusIdle
		}
		b.mu.Unlock()
	}()

	payload, err := fn(ctx, msg)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		payload = map[string]any{}
	}
	return core.NewResponse(msg, b.ID(), payload), nil
}
