// Package transport defines the outbound boundary between the runtime and a
// chat front-end: streamed response fragments, turn completion markers and
// terminal failure notices.
package transport

import (
	"context"

	"github.com/lingobridge/lingobridge/core"
)

// EventType discriminates outbound transport events.
type EventType string

const (
	// EventFragment carries one chunk of a streamed agent response.
	EventFragment EventType = "fragment"
	// EventTurnComplete marks the end of the current agent response.
	EventTurnComplete EventType = "turn_complete"
	// EventSessionFailed reports a terminal session failure. It carries the
	// stable error kind, never a raw error.
	EventSessionFailed EventType = "session_failed"
)

// Event is one outbound delivery to the front-end.
type Event struct {
	Type      EventType      `json:"type"`
	SessionID string         `json:"session_id"`
	Chunk     string         `json:"chunk,omitempty"`
	ErrorKind core.ErrorKind `json:"error_kind,omitempty"`
}

// Adapter is the outbound half of the front-end protocol. Implementations
// must tolerate slow consumers without blocking the orchestrator forever;
// each send is bounded by the context deadline.
//
// For any one session the orchestrator guarantees: fragments of a response
// arrive in order, TurnComplete follows the last fragment of a response, and
// SessionFailed is delivered at most once and is terminal.
type Adapter interface {
	// SendFragment delivers one chunk of an in-progress agent response.
	SendFragment(ctx context.Context, sessionID, chunk string) error

	// TurnComplete signals that the current agent response is finished.
	TurnComplete(ctx context.Context, sessionID string) error

	// SessionFailed reports a terminal failure by its stable kind.
	SessionFailed(ctx context.Context, sessionID string, kind core.ErrorKind) error
}
