package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capmesh/capmesh/core"
	"github.com/capmesh/capmesh/event"
)

// stubAgent is a minimal controllable core.Agent for registry tests.
type stubAgent struct {
	mu        sync.Mutex
	id        string
	name      string
	caps      []core.Capability
	status    core.AgentStatus
	lastSeen  time.Time
	initErr   error
	initCount int
	downCount int
}

func newStubAgent(id string, caps ...string) *stubAgent {
	a := &stubAgent{id: id, name: "Agent " + id, status: core.StatusIdle, lastSeen: time.Now()}
	for _, c := range caps {
		a.caps = append(a.caps, core.Capability{Name: c})
	}
	return a
}

func (a *stubAgent) ID() string { return a.id }

func (a *stubAgent) Metadata() core.Metadata {
	a.mu.Lock()
	defer a.mu.Unlock()
	return core.Metadata{
		ID: a.id, Name: a.name, Capabilities: a.caps,
		Status: a.status, LastSeen: a.lastSeen,
	}
}

func (a *stubAgent) Capabilities() []core.Capability { return a.caps }

func (a *stubAgent) Initialize(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.initCount++
	return a.initErr
}

func (a *stubAgent) Shutdown(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.downCount++
	return nil
}

func (a *stubAgent) ProcessMessage(context.Context, *core.Message) (*core.Message, error) {
	return nil, nil
}

func (a *stubAgent) setHealth(status core.AgentStatus, lastSeen time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status = status
	a.lastSeen = lastSeen
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	bus := event.NewBus()
	reg := New(bus)
	ctx := context.Background()

	a := newStubAgent("a1", "search", "summarize")
	require.NoError(t, reg.Register(ctx, a))

	assert.True(t, reg.IsRegistered("a1"))
	assert.Equal(t, 1, a.initCount)
	assert.Equal(t, 1, reg.Count())

	found, ok := reg.FindByCapability("summarize")
	require.True(t, ok)
	assert.Equal(t, "a1", found.ID())

	caps, ok := reg.AgentCapabilities("a1")
	require.True(t, ok)
	assert.Len(t, caps, 2)

	all := reg.AllCapabilities()
	assert.Len(t, all["a1"], 2)
}

func TestRegistry_RegisterEmitsEvent(t *testing.T) {
	bus := event.NewBus()
	reg := New(bus)

	var events []event.RegisteredPayload
	bus.On(event.AgentRegistered, func(payload any) {
		events = append(events, payload.(event.RegisteredPayload))
	})

	require.NoError(t, reg.Register(context.Background(), newStubAgent("a1", "search")))

	require.Len(t, events, 1)
	assert.Equal(t, "a1", events[0].AgentID)
	require.Len(t, events[0].Capabilities, 1)
	assert.Equal(t, "search", events[0].Capabilities[0].Name)
}

func TestRegistry_InitializeFailurePropagatesUnchanged(t *testing.T) {
	bus := event.NewBus()
	reg := New(bus)

	boom := errors.New("init exploded")
	a := newStubAgent("a1", "search")
	a.initErr = boom

	err := reg.Register(context.Background(), a)
	assert.Same(t, boom, err)
	assert.False(t, reg.IsRegistered("a1"))
	_, ok := reg.FindByCapability("search")
	assert.False(t, ok)
}

func TestRegistry_DuplicateIDRejected(t *testing.T) {
	bus := event.NewBus()
	reg := New(bus)
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, newStubAgent("a1")))
	err := reg.Register(ctx, newStubAgent("a1"))
	assert.ErrorIs(t, err, core.ErrDuplicateAgent)
	assert.Equal(t, 1, reg.Count())
}

func TestRegistry_FirstRegisteredWinsCapability(t *testing.T) {
	bus := event.NewBus()
	reg := New(bus)
	ctx := context.Background()

	first := newStubAgent("a1", "search")
	second := newStubAgent("a2", "search")
	require.NoError(t, reg.Register(ctx, first))
	require.NoError(t, reg.Register(ctx, second))

	found, ok := reg.FindByCapability("search")
	require.True(t, ok)
	assert.Equal(t, "a1", found.ID())

	// After the owner leaves, the shadowed duplicate takes over.
	require.NoError(t, reg.Unregister(ctx, "a1"))
	found, ok = reg.FindByCapability("search")
	require.True(t, ok)
	assert.Equal(t, "a2", found.ID())
}

func TestRegistry_UnregisterInvokesShutdownAndEmits(t *testing.T) {
	bus := event.NewBus()
	reg := New(bus)
	ctx := context.Background()

	var events []event.UnregisteredPayload
	bus.On(event.AgentUnregistered, func(payload any) {
		events = append(events, payload.(event.UnregisteredPayload))
	})

	a := newStubAgent("a1", "search")
	require.NoError(t, reg.Register(ctx, a))
	require.NoError(t, reg.Unregister(ctx, "a1"))

	assert.False(t, reg.IsRegistered("a1"))
	assert.Equal(t, 1, a.downCount)
	require.Len(t, events, 1)
	assert.Equal(t, "a1", events[0].AgentID)
}

func TestRegistry_UnregisterUnknownIsNoOp(t *testing.T) {
	reg := New(event.NewBus())
	assert.NoError(t, reg.Unregister(context.Background(), "ghost"))
}

func TestRegistry_AgentsPreserveRegistrationOrder(t *testing.T) {
	reg := New(event.NewBus())
	ctx := context.Background()

	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, reg.Register(ctx, newStubAgent(id)))
	}

	var ids []string
	for _, agent := range reg.Agents() {
		ids = append(ids, agent.ID())
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
}

func TestRegistry_HealthSweepEmitsOncePerTransition(t *testing.T) {
	bus := event.NewBus()
	reg := New(bus, func(o *Options) {
		o.HealthThreshold = time.Minute
	})
	ctx := context.Background()

	var unhealthy []event.UnhealthyPayload
	bus.On(event.AgentUnhealthy, func(payload any) {
		unhealthy = append(unhealthy, payload.(event.UnhealthyPayload))
	})

	a := newStubAgent("a1", "search")
	require.NoError(t, reg.Register(ctx, a))

	reg.sweepHealth()
	assert.Empty(t, unhealthy, "healthy agent must not fire")

	a.setHealth(core.StatusIdle, time.Now().Add(-5*time.Minute))
	reg.sweepHealth()
	reg.sweepHealth()
	assert.Len(t, unhealthy, 1, "exactly once per transition, not per sweep")
	assert.Equal(t, "a1", unhealthy[0].AgentID)

	// Recovery then relapse fires again.
	a.setHealth(core.StatusIdle, time.Now())
	reg.sweepHealth()
	a.setHealth(core.StatusOffline, time.Now())
	reg.sweepHealth()
	assert.Len(t, unhealthy, 2)
}

func TestRegistry_ShutdownEmptiesRegistry(t *testing.T) {
	reg := New(event.NewBus())
	ctx := context.Background()

	agents := []*stubAgent{newStubAgent("a1", "x"), newStubAgent("a2", "y")}
	for _, a := range agents {
		require.NoError(t, reg.Register(ctx, a))
	}

	require.NoError(t, reg.Shutdown(ctx))

	assert.Equal(t, 0, reg.Count())
	for _, a := range agents {
		assert.Equal(t, 1, a.downCount)
	}
}
