// Package reason defines the reasoning step contract: given a context window
// snapshot and the declared tool set, one backend call produces either a
// final answer or a request to invoke a single tool.
package reason

import (
	"context"
	"fmt"
	"sync"

	"github.com/lingobridge/lingobridge/core"
)

// ToolDefinition declaratively exposes a callable tool to the backend.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// Request captures the normalized backend input for one reasoning step: the
// system instructions, the bounded turn snapshot and the available tools.
type Request struct {
	Instructions string           `json:"instructions"`
	Turns        []core.Turn      `json:"turns"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
}

// FinalAnswer carries the completed agent response for the current user turn.
type FinalAnswer struct {
	Text string `json:"text"`
}

// ToolRequest asks the orchestrator to invoke one registered tool.
type ToolRequest struct {
	CallID    string `json:"call_id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"` // serialized JSON payload
}

// StepResult is the tagged outcome of one reasoning step: exactly one of
// Answer or Tool is set.
type StepResult struct {
	Answer *FinalAnswer `json:"answer,omitempty"`
	Tool   *ToolRequest `json:"tool,omitempty"`
}

// Valid reports whether the result carries exactly one branch.
func (r StepResult) Valid() bool {
	return (r.Answer != nil) != (r.Tool != nil)
}

// Info contains metadata about a reasoning backend implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "scripted", ...
	SupportsTools bool   `json:"supports_tools"`
}

// Engine is the minimal interface a reasoning backend must implement. Step is
// a pure function of the given request; implementations hold no per-session
// state.
type Engine interface {
	Step(ctx context.Context, req Request) (StepResult, error)

	// Info returns information about the backend implementation.
	Info() Info
}

// ScriptedEngine is a deterministic in-memory Engine useful for tests and
// examples. It replays a queued sequence of results and errors and records
// every request it receives.
type ScriptedEngine struct {
	mu       sync.Mutex
	script   []scriptEntry
	requests []Request
}

type scriptEntry struct {
	result StepResult
	err    error
}

// NewScriptedEngine constructs an empty scripted engine.
func NewScriptedEngine() *ScriptedEngine {
	return &ScriptedEngine{}
}

// EnqueueAnswer queues a final answer result.
func (e *ScriptedEngine) EnqueueAnswer(text string) *ScriptedEngine {
	return e.enqueue(scriptEntry{result: StepResult{Answer: &FinalAnswer{Text: text}}})
}

// EnqueueToolRequest queues a tool invocation request.
func (e *ScriptedEngine) EnqueueToolRequest(name, arguments string) *ScriptedEngine {
	return e.enqueue(scriptEntry{result: StepResult{Tool: &ToolRequest{CallID: core.NewID(), Name: name, Arguments: arguments}}})
}

// EnqueueError queues a backend failure.
func (e *ScriptedEngine) EnqueueError(err error) *ScriptedEngine {
	return e.enqueue(scriptEntry{err: err})
}

func (e *ScriptedEngine) enqueue(entry scriptEntry) *ScriptedEngine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.script = append(e.script, entry)
	return e
}

// Requests returns a copy of every request observed so far.
func (e *ScriptedEngine) Requests() []Request {
	e.mu.Lock()
	defer e.mu.Unlock()
	reqs := make([]Request, len(e.requests))
	copy(reqs, e.requests)
	return reqs
}

// Step implements Engine by replaying the next scripted entry.
func (e *ScriptedEngine) Step(ctx context.Context, req Request) (StepResult, error) {
	if err := ctx.Err(); err != nil {
		return StepResult{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.requests = append(e.requests, req)

	if len(e.script) == 0 {
		return StepResult{}, fmt.Errorf("scripted engine exhausted after %d steps", len(e.requests)-1)
	}

	entry := e.script[0]
	e.script = e.script[1:]
	if entry.err != nil {
		return StepResult{}, entry.err
	}
	return entry.result, nil
}

// Info implements Engine.
func (e *ScriptedEngine) Info() Info {
	return Info{Name: "scripted", Provider: "scripted", SupportsTools: true}
}
