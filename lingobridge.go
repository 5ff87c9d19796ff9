// Package lingobridge provides a high-level façade over the single-task agent
// runtime: sessions, the tool registry, the reasoning executor and the
// streaming transport. Most applications interact with this package by:
//  1. Creating a Runtime via New() around a reasoning engine
//  2. Registering tools
//  3. Subscribing to a session's event stream and sending user messages
//
// The façade delegates the execution loop to orchestrator.Service while
// keeping setup ergonomics concise. All defaults are safe for local
// development; production deployments typically supply a durable session
// store and a structured logger.
package lingobridge

import (
	"context"

	"github.com/lingobridge/lingobridge/core"
	"github.com/lingobridge/lingobridge/logging"
	"github.com/lingobridge/lingobridge/orchestrator"
	"github.com/lingobridge/lingobridge/reason"
	"github.com/lingobridge/lingobridge/session"
	"github.com/lingobridge/lingobridge/tool"
	"github.com/lingobridge/lingobridge/transport"
)

// Options configures the Runtime instance.
type Options struct {
	// Config holds the execution limits (step budget, context budget,
	// timeouts, streaming fragment size).
	Config core.Config

	// Instructions is the system prompt applied to every session.
	Instructions string

	// SessionStore defaults to an in-memory implementation if not provided.
	SessionStore core.SessionStore

	// Logger defaults to the NoOp logger if nil.
	Logger logging.Logger
}

// Runtime is the high-level façade aggregating the orchestrator service, the
// tool registry and the in-process transport.
type Runtime struct {
	opts     Options
	registry *tool.Registry
	adapter  *transport.ChannelAdapter
	service  *orchestrator.Service
}

// New creates a Runtime around the given reasoning engine with optional
// overrides. Any unset service is initialized with an in-memory
// implementation.
func New(engine reason.Engine, optFns ...func(o *Options)) *Runtime {
	opts := Options{
		Config:       core.DefaultConfig(),
		SessionStore: session.NewInMemoryStore(),
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	registry := tool.NewRegistry(func(o *tool.RegistryOptions) {
		o.Timeout = opts.Config.ToolTimeout
		o.Logger = opts.Logger
	})

	adapter := transport.NewChannelAdapter(func(o *transport.ChannelAdapterOptions) {
		o.SendTimeout = opts.Config.SendTimeout
		o.Logger = opts.Logger
	})

	executor := reason.NewExecutor(engine, func(o *reason.ExecutorOptions) {
		o.Timeout = opts.Config.ReasoningTimeout
		o.Retries = opts.Config.RetryCount
		o.Backoff = opts.Config.RetryBackoff
		o.Logger = opts.Logger
	})

	service := orchestrator.NewService(opts.Config, executor, registry, opts.SessionStore, adapter,
		func(o *orchestrator.ServiceOptions) {
			o.Instructions = opts.Instructions
			o.Logger = opts.Logger
		},
	)

	return &Runtime{
		opts:     opts,
		registry: registry,
		adapter:  adapter,
		service:  service,
	}
}

// RegisterTool adds tools to the registry, panicking on name collision.
// Intended for process startup wiring.
func (r *Runtime) RegisterTool(tools ...tool.Tool) {
	r.registry.MustRegister(tools...)
}

// Subscribe returns a session's outbound event stream and a cancel function
// releasing the subscription.
func (r *Runtime) Subscribe(sessionID string) (<-chan transport.Event, func()) {
	return r.adapter.Subscribe(sessionID)
}

// Send routes one user message to its session and blocks until the turn
// completes or terminally fails.
func (r *Runtime) Send(ctx context.Context, sessionID, text string) error {
	return r.service.Send(ctx, sessionID, text)
}

// Cancel aborts a session's in-flight turn, failing the session.
func (r *Runtime) Cancel(sessionID string) {
	r.service.Cancel(sessionID)
}

// EndSession completes a session normally.
func (r *Runtime) EndSession(sessionID string) error {
	return r.service.EndSession(sessionID)
}

// Close shuts down the service and every live session.
func (r *Runtime) Close() error {
	return r.service.Close()
}
