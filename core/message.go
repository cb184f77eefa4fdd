package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MessageType discriminates the four message envelopes exchanged through
// the router.
type MessageType string

const (
	// TypeRequest asks a target agent to perform a capability.
	TypeRequest MessageType = "request"
	// TypeResponse carries an agent's result, correlated to a request.
	TypeResponse MessageType = "response"
	// TypeError carries a structured processing failure, correlated to a request.
	TypeError MessageType = "error"
	// TypeBroadcast is delivered to every registered agent except the sender.
	TypeBroadcast MessageType = "broadcast"
)

// PayloadKeyCapability and PayloadKeyInput are the only payload keys the
// orchestrator itself interprets; everything else is opaque to the core and
// owned by the receiving agent.
const (
	PayloadKeyCapability = "capability"
	PayloadKeyInput      = "input"
)

// Message is the envelope for all communication between callers and agents.
// Created by a caller, consumed exactly once by the router, and (when
// RequiresResponse is set) answered by exactly one correlated response or
// error message.
type Message struct {
	ID               string         `json:"id"`
	Type             MessageType    `json:"type"`
	From             string         `json:"from"`
	To               string         `json:"to"`
	Timestamp        time.Time      `json:"timestamp"`
	Payload          map[string]any `json:"payload,omitempty"`
	CorrelationID    string         `json:"correlation_id,omitempty"`
	RequiresResponse bool           `json:"requires_response,omitempty"`
	Timeout          time.Duration  `json:"timeout,omitempty"`
}

// Validate checks the routing invariants that must hold before any dispatch
// attempt. Violations are reported as ErrInvalidMessage and never reach an
// agent.
func (m *Message) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: message is nil", ErrInvalidMessage)
	}
	if m.From == "" {
		return fmt.Errorf("%w: missing sender", ErrInvalidMessage)
	}
	if m.To == "" {
		return fmt.Errorf("%w: missing recipient", ErrInvalidMessage)
	}
	return nil
}

// Capability returns the capability name carried in the payload, if any.
func (m *Message) Capability() string {
	if m.Payload == nil {
		return ""
	}
	name, _ := m.Payload[PayloadKeyCapability].(string)
	return name
}

// Input returns the capability input carried in the payload, if any.
func (m *Message) Input() any {
	if m.Payload == nil {
		return nil
	}
	return m.Payload[PayloadKeyInput]
}

// IsError reports whether the payload marks this message as an error result.
func (m *Message) IsError() bool {
	if m.Type == TypeError {
		return true
	}
	if m.Payload == nil {
		return false
	}
	flag, _ := m.Payload["error"].(bool)
	return flag
}

// ErrorText returns the error text of an error-typed message, or "".
func (m *Message) ErrorText() string {
	if m.Payload == nil {
		return ""
	}
	text, _ := m.Payload["message"].(string)
	return text
}

// NewID generates a process-unique message identifier with a time-ordered
// prefix and a random suffix, e.g. "msg_1724580000123_1a2b3c4d".
func NewID() string {
	return fmt.Sprintf("msg_%d_%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}

// NewRequest builds a request message invoking the named capability on the
// target agent. The returned message requires a response; callers that only
// want fire-and-forget delivery clear RequiresResponse.
func NewRequest(from, to, capability string, input any) *Message {
	return &Message{
		ID:        NewID(),
		Type:      TypeRequest,
		From:      from,
		To:        to,
		Timestamp: time.Now().UTC(),
		Payload: map[string]any{
			PayloadKeyCapability: capability,
			PayloadKeyInput:      input,
		},
		RequiresResponse: true,
	}
}

// NewResponse builds a response message correlated to the given request,
// authored by the processing agent.
func NewResponse(req *Message, from string, payload map[string]any) *Message {
	return &Message{
		ID:            NewID(),
		Type:          TypeResponse,
		From:          from,
		To:            req.From,
		Timestamp:     time.Now().UTC(),
		Payload:       payload,
		CorrelationID: req.ID,
	}
}

// NewErrorMessage builds an error-typed message correlated to the given
// request, carrying the failure text in a structured payload.
func NewErrorMessage(req *Message, from string, err error) *Message {
	return &Message{
		ID:            NewID(),
		Type:          TypeError,
		From:          from,
		To:            req.From,
		Timestamp:     time.Now().UTC(),
		Payload:       map[string]any{"error": true, "message": err.Error()},
		CorrelationID: req.ID,
	}
}
