// Package capmesh provides a high-level façade over the registry, router,
// workflow engine and event bus, enabling a set of independently implemented
// capability agents to be coordinated behind a single dispatch point. Most
// applications interact with this package by:
//  1. Creating an Orchestrator via New() (optionally overriding defaults)
//  2. Registering one or more agents (agent.BaseAgent, agent.NewModelAgent,
//     or any custom core.Agent)
//  3. Sending messages (SendMessage/Broadcast) or running workflows
//     (ExecuteWorkflow)
//
// The façade owns the shared state: the agent index, the pending-correlation
// table and the subscriber lists all live inside one Orchestrator instance;
// there is no package-level mutable state. All defaults are safe for local
// development and testing.
package capmesh

import (
	"context"
	"time"

	"github.com/capmesh/capmesh/core"
	"github.com/capmesh/capmesh/event"
	"github.com/capmesh/capmesh/logging"
	"github.com/capmesh/capmesh/registry"
	"github.com/capmesh/capmesh/router"
	"github.com/capmesh/capmesh/workflow"
)

// Options configures the Orchestrator instance.
type Options struct {
	// Logger defaults to NoOp logger if nil.
	Logger logging.Logger

	// DefaultTimeout applies to requests that require a response and carry
	// no explicit timeout.
	DefaultTimeout time.Duration

	// HealthInterval is how often registered agents are health-checked.
	HealthInterval time.Duration

	// HealthThreshold is the maximum heartbeat age before an agent counts
	// as unhealthy.
	HealthThreshold time.Duration

	// StepTimeout bounds each workflow step's request; zero falls back to
	// DefaultTimeout.
	StepTimeout time.Duration
}

// Orchestrator is the single dispatch point callers use to invoke named
// capabilities without knowing which agent implements them.
type Orchestrator struct {
	logger   logging.Logger
	bus      *event.Bus
	registry *registry.Registry
	router   *router.Router
	engine   *workflow.Engine

	stopHealth context.CancelFunc
}

// New creates an Orchestrator with optional overrides and starts its health
// monitor. Call Shutdown to stop the monitor and release all agents.
func New(optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		Logger:          logging.NoOpLogger{},
		DefaultTimeout:  router.DefaultTimeout,
		HealthInterval:  30 * time.Second,
		HealthThreshold: 2 * time.Minute,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	bus := event.NewBus()
	reg := registry.New(bus, func(o *registry.Options) {
		o.Logger = opts.Logger
		o.HealthInterval = opts.HealthInterval
		o.HealthThreshold = opts.HealthThreshold
	})
	rt := router.New(reg, func(o *router.Options) {
		o.Logger = opts.Logger
		o.DefaultTimeout = opts.DefaultTimeout
	})
	eng := workflow.NewEngine(reg, rt, bus, func(o *workflow.Options) {
		o.Logger = opts.Logger
		o.StepTimeout = opts.StepTimeout
	})

	healthCtx, stopHealth := context.WithCancel(context.Background())
	go reg.StartHealthMonitor(healthCtx)

	return &Orchestrator{
		logger:     logging.OrDefault(opts.Logger),
		bus:        bus,
		registry:   reg,
		router:     rt,
		engine:     eng,
		stopHealth: stopHealth,
	}
}

// RegisterAgent initializes and registers an agent. An initialization
// failure propagates unchanged and leaves the agent unregistered.
func (o *Orchestrator) RegisterAgent(ctx context.Context, a core.Agent) error {
	return o.registry.Register(ctx, a)
}

// UnregisterAgent removes an agent and invokes its shutdown hook. Unknown
// ids are a no-op.
func (o *Orchestrator) UnregisterAgent(ctx context.Context, id string) error {
	return o.registry.Unregister(ctx, id)
}

// IsAgentRegistered reports whether the agent id is registered.
func (o *Orchestrator) IsAgentRegistered(id string) bool {
	return o.registry.IsRegistered(id)
}

// RegisteredAgents returns all registered agents in registration order.
func (o *Orchestrator) RegisteredAgents() []core.Agent {
	return o.registry.Agents()
}

// FindAgentByCapability returns the agent owning the named capability
// (first-registered wins).
func (o *Orchestrator) FindAgentByCapability(name string) (core.Agent, bool) {
	return o.registry.FindByCapability(name)
}

// AgentCapabilities returns the capability set of a registered agent.
func (o *Orchestrator) AgentCapabilities(id string) ([]core.Capability, bool) {
	return o.registry.AgentCapabilities(id)
}

// AllCapabilities returns a map from agent id to its capability list.
func (o *Orchestrator) AllCapabilities() map[string][]core.Capability {
	return o.registry.AllCapabilities()
}

// SendMessage routes a single message to its target agent. See router.Send
// for the blocking, timeout and error-conversion semantics.
func (o *Orchestrator) SendMessage(ctx context.Context, msg *core.Message) (*core.Message, error) {
	return o.router.Send(ctx, msg)
}

// Broadcast delivers the payload to every registered agent except from and
// returns the responses produced.
func (o *Orchestrator) Broadcast(ctx context.Context, from string, payload map[string]any) []*core.Message {
	return o.router.Broadcast(ctx, from, payload)
}

// ExecuteWorkflow runs a workflow definition to completion and reports the
// aggregate result.
func (o *Orchestrator) ExecuteWorkflow(ctx context.Context, def *workflow.Definition) (*workflow.Result, error) {
	return o.engine.Execute(ctx, def)
}

// QueueSize returns the number of in-flight request correlations.
func (o *Orchestrator) QueueSize() int {
	return o.router.PendingCount()
}

// On subscribes a handler to a lifecycle event. Handlers run synchronously
// at emission time, in registration order.
func (o *Orchestrator) On(name event.Name, handler event.Handler) {
	o.bus.On(name, handler)
}

// Shutdown stops the health monitor, unregisters every agent (invoking each
// shutdown hook) and drains all pending correlations. Afterwards the
// registered-agent count and queue size are both zero and the orchestrator
// is reusable.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.stopHealth()
	err := o.registry.Shutdown(ctx)
	o.router.Shutdown()
	o.logger.Info("orchestrator shut down", "agents", o.registry.Count(), "pending", o.router.PendingCount())
	return err
}
