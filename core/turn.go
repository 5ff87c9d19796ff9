package core

import (
	"time"

	"github.com/google/uuid"
)

// Turn is one atomic unit of conversation history. Concrete turn types
// implement the unexported isTurn marker enabling a closed variant set: a
// user message, an agent message, a tool call or a tool result. Turns are
// immutable once appended to a session; insertion order is causal order.
type Turn interface {
	isTurn()

	// TurnID returns the unique identifier of the turn.
	TurnID() string

	// When returns the UTC creation timestamp of the turn.
	When() time.Time
}

// UserTurn is an inbound message from the chat front-end.
type UserTurn struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
}

func (UserTurn) isTurn() {}

// TurnID returns the unique identifier of the turn.
func (t UserTurn) TurnID() string { return t.ID }

// When returns the creation timestamp of the turn.
func (t UserTurn) When() time.Time { return t.Timestamp }

// AgentTurn is a final answer produced by the reasoning engine.
type AgentTurn struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
}

func (AgentTurn) isTurn() {}

// TurnID returns the unique identifier of the turn.
func (t AgentTurn) TurnID() string { return t.ID }

// When returns the creation timestamp of the turn.
func (t AgentTurn) When() time.Time { return t.Timestamp }

// ToolCallTurn records the reasoning engine requesting execution of a named
// tool. CallID correlates the call with its ToolResultTurn.
type ToolCallTurn struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	CallID    string    `json:"call_id"`
	Tool      string    `json:"tool"`
	Arguments string    `json:"arguments,omitempty"` // serialized JSON argument payload
}

func (ToolCallTurn) isTurn() {}

// TurnID returns the unique identifier of the turn.
func (t ToolCallTurn) TurnID() string { return t.ID }

// When returns the creation timestamp of the turn.
func (t ToolCallTurn) When() time.Time { return t.Timestamp }

// ToolResultTurn records the outcome of a previously appended ToolCallTurn.
// Exactly one of Result or Error is meaningful; failed invocations carry the
// error message plus its stable kind so the reasoning engine can react to the
// failure as data.
type ToolResultTurn struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	CallID    string    `json:"call_id"`
	Tool      string    `json:"tool"`
	Result    any       `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
}

func (ToolResultTurn) isTurn() {}

// TurnID returns the unique identifier of the turn.
func (t ToolResultTurn) TurnID() string { return t.ID }

// When returns the creation timestamp of the turn.
func (t ToolResultTurn) When() time.Time { return t.Timestamp }

// Failed reports whether the underlying tool invocation failed.
func (t ToolResultTurn) Failed() bool { return t.Error != "" }

// NewID generates a new unique identifier for turns and tool calls.
func NewID() string { return uuid.NewString() }

// NewUserTurn creates a user-authored message turn.
func NewUserTurn(text string) UserTurn {
	return UserTurn{ID: NewID(), Timestamp: time.Now().UTC(), Text: text}
}

// NewAgentTurn creates an agent-authored message turn.
func NewAgentTurn(text string) AgentTurn {
	return AgentTurn{ID: NewID(), Timestamp: time.Now().UTC(), Text: text}
}

// NewToolCallTurn creates a tool invocation request turn. An empty callID is
// replaced with a fresh identifier.
func NewToolCallTurn(callID, tool, arguments string) ToolCallTurn {
	if callID == "" {
		callID = NewID()
	}
	return ToolCallTurn{ID: NewID(), Timestamp: time.Now().UTC(), CallID: callID, Tool: tool, Arguments: arguments}
}

// NewToolResultTurn records a successful tool invocation outcome.
func NewToolResultTurn(callID, tool string, result any) ToolResultTurn {
	return ToolResultTurn{ID: NewID(), Timestamp: time.Now().UTC(), CallID: callID, Tool: tool, Result: result}
}

// NewToolErrorTurn records a failed tool invocation outcome. The error is
// surfaced to the reasoning engine as data, not thrown.
func NewToolErrorTurn(callID, tool string, err error) ToolResultTurn {
	return ToolResultTurn{
		ID:        NewID(),
		Timestamp: time.Now().UTC(),
		CallID:    callID,
		Tool:      tool,
		Error:     err.Error(),
		ErrorKind: KindOf(err),
	}
}
