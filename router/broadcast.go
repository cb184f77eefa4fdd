package router

import (
	"context"
	"sync"
	"time"

	"github.com/capmesh/capmesh/core"
)

// Broadcast delivers the payload to every registered agent except the one
// whose id equals from, concurrently, and returns whatever responses are
// produced. Agents without a matching capability simply contribute no
// response; partial participation is expected and not an error. Response
// order is completion order, not registration order.
func (r *Router) Broadcast(ctx context.Context, from string, payload map[string]any) []*core.Message {
	agents := r.registry.Agents()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		responses []*core.Message
	)

	for _, agent := range agents {
		if agent.ID() == from {
			continue
		}

		msg := &core.Message{
			ID:        core.NewID(),
			Type:      core.TypeBroadcast,
			From:      from,
			To:        agent.ID(),
			Timestamp: time.Now().UTC(),
			Payload:   payload,
		}

		wg.Add(1)
		go func(agent core.Agent, msg *core.Message) {
			defer wg.Done()
			resp, err := r.process(ctx, agent, msg)
			if err != nil {
				r.logger.Warn("broadcast processing failed", "agent_id", agent.ID(), "error", err)
				return
			}
			if resp == nil {
				return
			}
			resp.CorrelationID = msg.ID
			if resp.Type == "" {
				resp.Type = core.TypeResponse
			}
			mu.Lock()
			responses = append(responses, resp)
			mu.Unlock()
		}(agent, msg)
	}

	wg.Wait()
	return responses
}
