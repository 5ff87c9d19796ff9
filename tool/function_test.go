package tool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFunctionToolDefaults(t *testing.T) {
	ft := echoTool()

	assert.Equal(t, "echo", ft.Name())
	assert.Equal(t, "Echo the input back", ft.Description())
	assert.True(t, ft.Idempotent())
	assert.Equal(t, "object", ft.Parameters()["type"])
}

func TestNewFunctionToolNonIdempotent(t *testing.T) {
	ft := NewFunctionTool("writer", "Appends a row",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(context.Context, map[string]any) (any, error) { return nil, nil },
		func(o *FunctionToolOptions) { o.Idempotent = false },
	)

	assert.False(t, ft.Idempotent())
	assert.False(t, SpecOf(ft).Idempotent)
}

func TestNewFunctionToolFromStruct(t *testing.T) {
	type sumArgs struct {
		A float64 `json:"a" description:"First addend"`
		B float64 `json:"b" description:"Second addend"`
	}

	ft := NewFunctionToolFromStruct("calculate_sum", "Calculate the sum", sumArgs{},
		func(_ context.Context, args map[string]any) (any, error) {
			return args["a"].(float64) + args["b"].(float64), nil
		},
	)

	params := ft.Parameters()
	props := params["properties"].(map[string]any)
	require.Contains(t, props, "a")
	require.Contains(t, props, "b")
	assert.ElementsMatch(t, []string{"a", "b"}, params["required"])

	result, err := ft.Call(context.Background(), map[string]any{"a": 2.0, "b": 3.0})
	require.NoError(t, err)
	assert.Equal(t, 5.0, result)
}
