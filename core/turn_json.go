package core

import (
	"encoding/json"
	"fmt"
)

// Turn type tags used by the persistence envelope. Stored data depends on
// these strings staying stable.
const (
	turnTypeUser       = "user"
	turnTypeAgent      = "agent"
	turnTypeToolCall   = "tool_call"
	turnTypeToolResult = "tool_result"
)

// turnEnvelope is the tagged serialization form of the closed Turn variant
// set. SQLite and Redis stores persist turns through this envelope.
type turnEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// MarshalTurn encodes a turn as a tagged JSON envelope.
func MarshalTurn(t Turn) ([]byte, error) {
	var typ string
	switch t.(type) {
	case UserTurn:
		typ = turnTypeUser
	case AgentTurn:
		typ = turnTypeAgent
	case ToolCallTurn:
		typ = turnTypeToolCall
	case ToolResultTurn:
		typ = turnTypeToolResult
	default:
		return nil, fmt.Errorf("unsupported turn type %T", t)
	}

	payload, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s turn: %w", typ, err)
	}

	return json.Marshal(turnEnvelope{Type: typ, Payload: payload})
}

// UnmarshalTurn decodes a tagged JSON envelope back into its concrete turn
// variant. Unknown tags are an error so stores never silently drop history.
func UnmarshalTurn(data []byte) (Turn, error) {
	var env turnEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal turn envelope: %w", err)
	}

	switch env.Type {
	case turnTypeUser:
		var t UserTurn
		if err := json.Unmarshal(env.Payload, &t); err != nil {
			return nil, err
		}
		return t, nil
	case turnTypeAgent:
		var t AgentTurn
		if err := json.Unmarshal(env.Payload, &t); err != nil {
			return nil, err
		}
		return t, nil
	case turnTypeToolCall:
		var t ToolCallTurn
		if err := json.Unmarshal(env.Payload, &t); err != nil {
			return nil, err
		}
		return t, nil
	case turnTypeToolResult:
		var t ToolResultTurn
		if err := json.Unmarshal(env.Payload, &t); err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unknown turn type %q", env.Type)
	}
}
