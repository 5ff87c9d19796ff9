package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/lingobridge/lingobridge/core"
	"github.com/lingobridge/lingobridge/internal/schema"
	"github.com/lingobridge/lingobridge/logging"
)

// Registry holds the finite set of callable capabilities available to the
// agent. Tools are registered at process start and the set is read-only
// thereafter; Invoke is the only runtime entry point and is side-effect-free
// except for dispatch.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	timeout time.Duration
	logger  logging.Logger
}

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	// Timeout bounds each tool invocation. Zero disables the deadline.
	Timeout time.Duration
	// Logger receives structured invocation records.
	Logger logging.Logger
}

// NewRegistry constructs an empty registry.
func NewRegistry(optFns ...func(o *RegistryOptions)) *Registry {
	opts := RegistryOptions{
		Timeout: 15 * time.Second,
		Logger:  logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Registry{
		tools:   make(map[string]Tool),
		timeout: opts.Timeout,
		logger:  opts.Logger,
	}
}

// Register adds a tool, failing with DuplicateToolError if the name is taken.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name()]; exists {
		return &core.DuplicateToolError{Tool: t.Name()}
	}
	r.tools[t.Name()] = t
	return nil
}

// MustRegister registers tools, panicking on collision. Intended for process
// startup wiring only.
func (r *Registry) MustRegister(tools ...Tool) {
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
}

// Get retrieves a registered tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Specs returns the registration records of all tools, for exposure to the
// reasoning engine.
func (r *Registry) Specs() []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]Spec, 0, len(r.tools))
	for _, t := range r.tools {
		specs = append(specs, SpecOf(t))
	}
	return specs
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

type invokeOutcome struct {
	result any
	err    error
}

// Invoke dispatches a tool by name with a serialized JSON argument payload.
//
// Error semantics:
//
//	absent name            -> *core.UnknownToolError
//	malformed / bad args   -> *core.ValidationError
//	tool failure or panic  -> *core.ExecutionError
//	deadline exceeded      -> *core.TimeoutError
//	parent ctx cancelled   -> ctx.Err() (the caller decides session fate)
func (r *Registry) Invoke(ctx context.Context, name, rawArgs string) (any, error) {
	t, ok := r.Get(name)
	if !ok {
		r.logger.Warn("tool.invoke.unknown", "tool", name)
		return nil, &core.UnknownToolError{Tool: name}
	}

	args := map[string]any{}
	if rawArgs != "" {
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			return nil, &core.ValidationError{
				Field:   "arguments",
				Value:   rawArgs,
				Message: fmt.Sprintf("failed to unmarshal arguments: %v", err),
			}
		}
	}

	if err := schema.Validate(args, t.Parameters()); err != nil {
		r.logger.Warn("tool.invoke.validation_failed", "tool", name, "error", err.Error())
		return nil, err
	}

	callCtx := ctx
	var cancel context.CancelFunc
	if r.timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	done := make(chan invokeOutcome, 1)

	// The tool runs in its own goroutine so a deadline fires even when the
	// implementation ignores ctx. The goroutine is leaked at worst until the
	// tool returns; its buffered channel send never blocks.
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("tool.invoke.panic", "tool", name, "recover", rec, "stack", string(debug.Stack()))
				done <- invokeOutcome{err: &core.ExecutionError{Tool: name, Cause: fmt.Errorf("panic: %v", rec)}}
			}
		}()
		result, err := t.Call(callCtx, args)
		done <- invokeOutcome{result: result, err: err}
	}()

	select {
	case <-callCtx.Done():
		if ctx.Err() != nil {
			// Parent cancellation, e.g. a front-end disconnect.
			return nil, ctx.Err()
		}
		r.logger.Warn("tool.invoke.timeout", "tool", name, "timeout_ms", r.timeout.Milliseconds())
		return nil, &core.TimeoutError{Op: fmt.Sprintf("tool %q", name), Timeout: r.timeout}
	case out := <-done:
		dur := time.Since(start)
		if out.err != nil {
			r.logger.Error("tool.invoke.error", "tool", name, "duration_ms", dur.Milliseconds(), "error", out.err.Error())
			return nil, wrapToolError(name, out.err)
		}
		r.logger.Info("tool.invoke.success", "tool", name, "duration_ms", dur.Milliseconds())
		return out.result, nil
	}
}

// wrapToolError normalizes tool failures: already-typed errors pass through,
// everything else becomes an ExecutionError.
func wrapToolError(name string, err error) error {
	var (
		validationErr *core.ValidationError
		execErr       *core.ExecutionError
		timeoutErr    *core.TimeoutError
	)
	if errors.As(err, &validationErr) || errors.As(err, &execErr) || errors.As(err, &timeoutErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &core.TimeoutError{Op: fmt.Sprintf("tool %q", name)}
	}
	return &core.ExecutionError{Tool: name, Cause: err}
}
