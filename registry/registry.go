// Package registry tracks the orchestrator's registered agents: an id index,
// a capability index used for routing, and a periodic health monitor that
// reports agents whose heartbeat has gone stale.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/capmesh/capmesh/core"
	"github.com/capmesh/capmesh/event"
	"github.com/capmesh/capmesh/logging"
)

// Options configures a Registry.
type Options struct {
	// Logger receives registry diagnostics. Defaults to NoOpLogger.
	Logger logging.Logger

	// HealthInterval is how often the health monitor scans registered
	// agents.
	HealthInterval time.Duration

	// HealthThreshold is the maximum heartbeat age before an agent counts
	// as unhealthy.
	HealthThreshold time.Duration
}

// Registry indexes agents by id and by declared capability name. Capability
// names are expected to be unique across agents; when duplicated, the
// first-registered agent wins and keeps winning until it is unregistered.
type Registry struct {
	logger logging.Logger
	bus    *event.Bus

	healthInterval  time.Duration
	healthThreshold time.Duration

	mu           sync.RWMutex
	agents       map[string]core.Agent
	order        []string          // registration order, drives tie-breaks
	capabilities map[string]string // capability name -> owning agent id
	unhealthy    map[string]bool   // transition tracking for agentUnhealthy
}

// New constructs an empty registry publishing lifecycle events to bus.
func New(bus *event.Bus, optFns ...func(o *Options)) *Registry {
	opts := Options{
		HealthInterval:  30 * time.Second,
		HealthThreshold: 2 * time.Minute,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Registry{
		logger:          logging.OrDefault(opts.Logger),
		bus:             bus,
		healthInterval:  opts.HealthInterval,
		healthThreshold: opts.HealthThreshold,
		agents:          make(map[string]core.Agent),
		capabilities:    make(map[string]string),
		unhealthy:       make(map[string]bool),
	}
}

// Register initializes the agent and, on success, indexes it by id and by
// each declared capability name, then emits agentRegistered. An
// initialization failure propagates unchanged and leaves the agent absent
// from the registry; there is no partial registration.
func (r *Registry) Register(ctx context.Context, agent core.Agent) error {
	id := agent.ID()
	if id == "" {
		return fmt.Errorf("%w: empty agent id", core.ErrInvalidMessage)
	}

	r.mu.Lock()
	if _, exists := r.agents[id]; exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", core.ErrDuplicateAgent, id)
	}
	r.mu.Unlock()

	// Initialize outside the lock; agent startup may block.
	if err := agent.Initialize(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	if _, exists := r.agents[id]; exists {
		r.mu.Unlock()
		// Lost a registration race; undo our initialization.
		if serr := agent.Shutdown(ctx); serr != nil {
			r.logger.Warn("shutdown after lost registration race failed", "agent_id", id, "error", serr)
		}
		return fmt.Errorf("%w: %s", core.ErrDuplicateAgent, id)
	}
	r.agents[id] = agent
	r.order = append(r.order, id)
	for _, cap := range agent.Capabilities() {
		if _, taken := r.capabilities[cap.Name]; !taken {
			r.capabilities[cap.Name] = id
		}
	}
	r.mu.Unlock()

	md := agent.Metadata()
	r.logger.Info("agent registered", "agent_id", id, "agent_name", md.Name, "capabilities", len(md.Capabilities))
	r.bus.Emit(event.AgentRegistered, event.RegisteredPayload{
		AgentID:      id,
		AgentName:    md.Name,
		Capabilities: agent.Capabilities(),
	})

	return nil
}

// Unregister removes the agent from all indexes, invokes its shutdown hook
// and emits agentUnregistered. Unregistering an unknown id is a no-op.
func (r *Registry) Unregister(ctx context.Context, id string) error {
	r.mu.Lock()
	agent, ok := r.agents[id]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	delete(r.agents, id)
	delete(r.unhealthy, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.rebuildCapabilityIndexLocked()
	r.mu.Unlock()

	if err := agent.Shutdown(ctx); err != nil {
		r.logger.Warn("agent shutdown hook failed", "agent_id", id, "error", err)
	}

	md := agent.Metadata()
	r.logger.Info("agent unregistered", "agent_id", id, "agent_name", md.Name)
	r.bus.Emit(event.AgentUnregistered, event.UnregisteredPayload{
		AgentID:   id,
		AgentName: md.Name,
	})

	return nil
}

// rebuildCapabilityIndexLocked reassigns capability ownership in surviving
// registration order so a previously shadowed duplicate takes over
// deterministically. Caller must hold the write lock.
func (r *Registry) rebuildCapabilityIndexLocked() {
	r.capabilities = make(map[string]string)
	for _, id := range r.order {
		for _, cap := range r.agents[id].Capabilities() {
			if _, taken := r.capabilities[cap.Name]; !taken {
				r.capabilities[cap.Name] = id
			}
		}
	}
}

// IsRegistered reports whether an agent with the given id is registered.
func (r *Registry) IsRegistered(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.agents[id]
	return ok
}

// Agent returns the registered agent with the given id.
func (r *Registry) Agent(id string) (core.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	agent, ok := r.agents[id]
	return agent, ok
}

// Agents returns all registered agents in registration order.
func (r *Registry) Agents() []core.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.Agent, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.agents[id])
	}
	return out
}

// Count returns the number of registered agents.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// FindByCapability returns the agent owning the named capability
// (first-registered wins), or false when no registered agent declares it.
func (r *Registry) FindByCapability(name string) (core.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.capabilities[name]
	if !ok {
		return nil, false
	}
	return r.agents[id], true
}

// AgentCapabilities returns the capability set declared by the agent with
// the given id.
func (r *Registry) AgentCapabilities(id string) ([]core.Capability, bool) {
	r.mu.RLock()
	agent, ok := r.agents[id]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return agent.Capabilities(), true
}

// AllCapabilities returns a map from agent id to its declared capability
// list.
func (r *Registry) AllCapabilities() map[string][]core.Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string][]core.Capability, len(r.agents))
	for id, agent := range r.agents {
		out[id] = agent.Capabilities()
	}
	return out
}

// StartHealthMonitor runs the periodic health scan until ctx is cancelled.
// It is intended to run in its own goroutine.
func (r *Registry) StartHealthMonitor(ctx context.Context) {
	ticker := time.NewTicker(r.healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweepHealth()
		}
	}
}

// sweepHealth scans all registered agents and emits agentUnhealthy exactly
// once per transition into the unhealthy state. Recovered agents are cleared
// so a later relapse fires again.
func (r *Registry) sweepHealth() {
	now := time.Now()

	r.mu.Lock()
	var transitions []string
	for _, id := range r.order {
		md := r.agents[id].Metadata()
		bad := md.Status == core.StatusOffline || now.Sub(md.LastSeen) > r.healthThreshold
		switch {
		case bad && !r.unhealthy[id]:
			r.unhealthy[id] = true
			transitions = append(transitions, id)
		case !bad:
			delete(r.unhealthy, id)
		}
	}
	r.mu.Unlock()

	for _, id := range transitions {
		r.logger.Warn("agent unhealthy", "agent_id", id)
		r.bus.Emit(event.AgentUnhealthy, event.UnhealthyPayload{AgentID: id})
	}
}

// Shutdown unregisters every agent (invoking each shutdown hook) and leaves
// the registry empty and reusable.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.RLock()
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	r.mu.RUnlock()

	var firstErr error
	for _, id := range ids {
		if err := r.Unregister(ctx, id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
