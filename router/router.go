// Package router delivers messages to registered agents. It tracks pending
// request/response correlations, enforces per-request deadlines, converts
// agent failures into structured error messages, and fans broadcasts out to
// every registered agent except the sender.
package router

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/capmesh/capmesh/core"
	"github.com/capmesh/capmesh/logging"
	"github.com/capmesh/capmesh/registry"
)

// DefaultTimeout bounds requests that carry no explicit timeout.
const DefaultTimeout = 30 * time.Second

// Options configures a Router.
type Options struct {
	// Logger receives delivery diagnostics. Defaults to NoOpLogger.
	Logger logging.Logger

	// DefaultTimeout applies to requests whose Timeout field is zero.
	DefaultTimeout time.Duration
}

// Router owns the pending-correlation table: one entry per in-flight request
// that requires a response, resolved exactly once by whichever of response,
// error or deadline arrives first. Many sends may be in flight concurrently;
// responses never cross-deliver between correlations.
type Router struct {
	registry       *registry.Registry
	logger         logging.Logger
	defaultTimeout time.Duration

	mu      sync.Mutex
	pending map[string]chan *core.Message
}

// New constructs a Router dispatching through the given registry.
func New(reg *registry.Registry, optFns ...func(o *Options)) *Router {
	opts := Options{DefaultTimeout: DefaultTimeout}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Router{
		registry:       reg,
		logger:         logging.OrDefault(opts.Logger),
		defaultTimeout: opts.DefaultTimeout,
		pending:        make(map[string]chan *core.Message),
	}
}

// Send validates, resolves and delivers a single message.
//
// When the message requires a response, Send blocks until the correlated
// response or error message arrives or the deadline elapses, whichever is
// first; a deadline failure is reported as core.ErrTimeout. When no response
// is required, Send returns (nil, nil) as soon as delivery is under way, and
// an unregistered target is logged and suppressed rather than reported.
//
// Delivered requests never surface a raw agent failure: processing errors
// and panics come back as error-typed messages.
func (r *Router) Send(ctx context.Context, msg *core.Message) (*core.Message, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		msg.ID = core.NewID()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	agent, ok := r.registry.Agent(msg.To)
	if !ok {
		if !msg.RequiresResponse {
			r.logger.Warn("dropping message for unregistered agent", "to", msg.To, "message_id", msg.ID)
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s", core.ErrAgentNotFound, msg.To)
	}

	if !msg.RequiresResponse {
		go func() {
			if _, err := r.process(ctx, agent, msg); err != nil {
				r.logger.Warn("fire-and-forget processing failed", "to", msg.To, "message_id", msg.ID, "error", err)
			}
		}()
		return nil, nil
	}

	done, err := r.track(msg.ID)
	if err != nil {
		return nil, err
	}

	go r.deliver(ctx, agent, msg)

	timeout := msg.Timeout
	if timeout <= 0 {
		timeout = r.defaultTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp, ok := <-done:
		if !ok {
			return nil, fmt.Errorf("%w: request %s to %s abandoned", core.ErrShutdown, msg.ID, msg.To)
		}
		return resp, nil
	case <-timer.C:
		r.abandon(msg.ID)
		return nil, fmt.Errorf("%w: request %s to %s exceeded %s", core.ErrTimeout, msg.ID, msg.To, timeout)
	case <-ctx.Done():
		r.abandon(msg.ID)
		return nil, ctx.Err()
	}
}

// deliver runs the agent's processing entry point and resolves the pending
// correlation with either a response or an error message. An agent that
// produces neither a response nor an error leaves the correlation pending so
// the caller's deadline fires.
func (r *Router) deliver(ctx context.Context, agent core.Agent, msg *core.Message) {
	resp, err := r.process(ctx, agent, msg)
	switch {
	case err != nil:
		r.resolve(msg.ID, core.NewErrorMessage(msg, agent.ID(), err))
	case resp != nil:
		resp.CorrelationID = msg.ID
		if resp.Type == "" {
			resp.Type = core.TypeResponse
		}
		if resp.To == "" {
			resp.To = msg.From
		}
		r.resolve(msg.ID, resp)
	}
}

// process invokes ProcessMessage with panic containment so a misbehaving
// agent cannot take down the router.
func (r *Router) process(ctx context.Context, agent core.Agent, msg *core.Message) (resp *core.Message, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			resp = nil
			err = fmt.Errorf("agent %s panicked: %v", agent.ID(), rec)
		}
	}()
	return agent.ProcessMessage(ctx, msg)
}

// track creates the pending correlation for a request id.
func (r *Router) track(id string) (chan *core.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.pending[id]; exists {
		return nil, fmt.Errorf("%w: duplicate correlation id %s", core.ErrInvalidMessage, id)
	}
	ch := make(chan *core.Message, 1)
	r.pending[id] = ch
	return ch, nil
}

// resolve completes the pending correlation for id. A response with no
// waiting correlation (late arrival after timeout or shutdown) is a no-op.
func (r *Router) resolve(id string, msg *core.Message) {
	r.mu.Lock()
	ch, ok := r.pending[id]
	if ok {
		delete(r.pending, id)
	}
	r.mu.Unlock()
	if !ok {
		r.logger.Debug("discarding response with no waiting correlation", "correlation_id", id)
		return
	}
	ch <- msg
}

// abandon retires the pending correlation for id without delivering a
// result. Used by the timeout and cancellation paths.
func (r *Router) abandon(id string) {
	r.mu.Lock()
	delete(r.pending, id)
	r.mu.Unlock()
}

// PendingCount returns the number of in-flight correlations.
func (r *Router) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Shutdown drains every pending correlation; blocked callers fail with
// core.ErrShutdown. The pending table is left empty and the router remains
// usable afterwards.
func (r *Router) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, ch := range r.pending {
		close(ch)
		delete(r.pending, id)
	}
}
