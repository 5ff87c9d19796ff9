// Package tool implements the capability subsystem that lets the agent act
// beyond pure reasoning: a closed registry of named tools with schema
// validated arguments, bounded execution and consistent error handling.
package tool

import (
	"context"

	"github.com/lingobridge/lingobridge/core"
)

// Tool defines one callable capability exposed to the reasoning engine.
//
// Tool implementations should:
//   - Provide clear, descriptive names (snake_case recommended) and
//     descriptions; both are shown to the reasoning engine
//   - Define a JSON schema for parameters
//   - Respect ctx cancellation in Call
//   - Be safe for concurrent use across sessions
type Tool interface {
	// Name returns the unique identifier for this tool within a registry.
	Name() string

	// Description returns a human-readable description of what this tool does.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	Parameters() map[string]any

	// Idempotent reports whether repeating the call with the same arguments
	// is safe. Part of the execution contract surfaced by ToolSpec.
	Idempotent() bool

	// Call executes the tool with already-validated arguments. The context
	// carries the per-invocation deadline.
	Call(ctx context.Context, args map[string]any) (any, error)
}

// Spec is the read-only registration record of a tool.
type Spec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
	Idempotent  bool           `json:"idempotent"`
}

// SpecOf extracts the registration record from a tool.
func SpecOf(t Tool) Spec {
	return Spec{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  t.Parameters(),
		Idempotent:  t.Idempotent(),
	}
}

// ValidationError reports tool arguments failing schema validation.
type ValidationError = core.ValidationError
