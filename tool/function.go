package tool

import (
	"context"

	"github.com/lingobridge/lingobridge/internal/schema"
)

// FunctionTool is a generic adapter that exposes a plain Go function as a
// tool. It holds a lightweight JSON-Schema-like parameter specification and
// delegates validation to the registry before execution.
//
// A FunctionTool has no internal mutable state after construction and is safe
// for concurrent use by multiple goroutines. The returned result can be any
// JSON-serializable Go value.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	idempotent  bool
	fn          func(ctx context.Context, args map[string]any) (any, error)
}

// FunctionToolOptions configures optional FunctionTool behavior.
type FunctionToolOptions struct {
	// Idempotent declares that repeated calls with identical arguments are
	// safe. Defaults to true; mark side-effecting tools explicitly.
	Idempotent bool
}

// NewFunctionTool constructs a FunctionTool from explicit schema and function.
//
// Example:
//
//	sumTool := NewFunctionTool(
//	  "calculate_sum",
//	  "Calculate the sum of two numbers",
//	  map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{
//	      "a": map[string]any{"type": "number"},
//	      "b": map[string]any{"type": "number"},
//	    },
//	    "required": []string{"a", "b"},
//	  },
//	  func(_ context.Context, args map[string]any) (any, error) {
//	    return args["a"].(float64) + args["b"].(float64), nil
//	  },
//	)
func NewFunctionTool(
	name, description string,
	parameters map[string]any,
	fn func(ctx context.Context, args map[string]any) (any, error),
	optFns ...func(o *FunctionToolOptions),
) *FunctionTool {
	opts := FunctionToolOptions{Idempotent: true}
	for _, optFn := range optFns {
		optFn(&opts)
	}

	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		idempotent:  opts.Idempotent,
		fn:          fn,
	}
}

// NewFunctionToolFromStruct derives the parameter schema from a struct using
// reflection. It is a convenience for simple argument containers.
//
// Example:
//
//	type SumArgs struct {
//	  A float64 `json:"a" description:"First addend"`
//	  B float64 `json:"b" description:"Second addend"`
//	}
//
//	sumTool := NewFunctionToolFromStruct("calculate_sum", "Calculate the sum", SumArgs{}, fn)
func NewFunctionToolFromStruct(
	name, description string,
	structType any,
	fn func(ctx context.Context, args map[string]any) (any, error),
	optFns ...func(o *FunctionToolOptions),
) *FunctionTool {
	return NewFunctionTool(name, description, schema.Create(structType), fn, optFns...)
}

// Name returns the unique tool name used in tool call turns and routing.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the short natural language description exposed to the
// reasoning engine.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the JSON schema describing expected arguments.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Idempotent reports the declared execution contract.
func (t *FunctionTool) Idempotent() bool { return t.idempotent }

// Call invokes the underlying function. Argument validation happens in the
// registry before dispatch.
func (t *FunctionTool) Call(ctx context.Context, args map[string]any) (any, error) {
	return t.fn(ctx, args)
}
