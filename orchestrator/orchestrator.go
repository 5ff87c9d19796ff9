// Package orchestrator drives the per-session execution loop: it accepts user
// messages, runs reasoning steps, dispatches tool calls, enforces the step
// budget and streams the final answer to the transport.
package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/lingobridge/lingobridge/core"
	"github.com/lingobridge/lingobridge/logging"
	"github.com/lingobridge/lingobridge/reason"
	"github.com/lingobridge/lingobridge/tool"
	"github.com/lingobridge/lingobridge/transport"
	"github.com/lingobridge/lingobridge/window"
)

// State is the orchestrator's position in the per-session state machine.
type State string

const (
	// StateAwaitingInput accepts the next user message.
	StateAwaitingInput State = "awaiting_input"
	// StateReasoning has a backend call in flight.
	StateReasoning State = "reasoning"
	// StateToolPending has a tool invocation in flight.
	StateToolPending State = "tool_pending"
	// StateResponding streams the final answer to the transport.
	StateResponding State = "responding"
	// StateFailed is terminal; no further messages are accepted.
	StateFailed State = "failed"
)

// Orchestrator runs the execution loop for exactly one session. At most one
// message is processed at a time; concurrent HandleMessage calls fail fast
// instead of queueing.
//
// Loop shape per user turn: reasoning produces either a final answer, which
// ends the turn, or a tool request, which is dispatched and fed back as a
// result turn before reasoning again. The step counter resets on each user
// message and each tool round trip consumes one step.
type Orchestrator struct {
	sessionID    string
	cfg          core.Config
	executor     *reason.Executor
	registry     *tool.Registry
	store        core.SessionStore
	out          transport.Adapter
	win          *window.Window
	instructions string
	logger       logging.Logger

	mu          sync.Mutex
	busy        bool
	state       State
	steps       int
	lastUnknown string
}

// Options configures optional orchestrator behavior.
type Options struct {
	// Instructions is the system prompt handed to the reasoning engine.
	Instructions string
	// Logger receives structured loop records.
	Logger logging.Logger
}

// New constructs an orchestrator for the given session, seeding the context
// window from any persisted history.
func New(
	sessionID string,
	cfg core.Config,
	executor *reason.Executor,
	registry *tool.Registry,
	store core.SessionStore,
	out transport.Adapter,
	optFns ...func(o *Options),
) (*Orchestrator, error) {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sess, err := store.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %q: %w", sessionID, err)
	}

	o := &Orchestrator{
		sessionID:    sessionID,
		cfg:          cfg,
		executor:     executor,
		registry:     registry,
		store:        store,
		out:          out,
		win:          window.New(cfg.ContextBudget, cfg.KeepRecent),
		instructions: opts.Instructions,
		logger:       opts.Logger,
		state:        StateAwaitingInput,
	}
	o.win.Reset(sess.Turns())

	if sess.Status == core.StatusFailed {
		o.state = StateFailed
	}

	return o, nil
}

// SessionID returns the session this orchestrator drives.
func (o *Orchestrator) SessionID() string { return o.sessionID }

// State returns the current state machine position.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Steps returns the step counter of the current user turn.
func (o *Orchestrator) Steps() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.steps
}

// HandleMessage processes one inbound user message end to end: it appends the
// user turn, loops reasoning and tool dispatch until a final answer, streams
// the answer and returns. Slash commands are intercepted before reasoning and
// consume no step budget.
//
// A terminal failure marks the session failed, emits exactly one
// session_failed event and returns the causing error.
func (o *Orchestrator) HandleMessage(ctx context.Context, text string) error {
	o.mu.Lock()
	if o.state == StateFailed {
		o.mu.Unlock()
		return fmt.Errorf("session %q has terminally failed", o.sessionID)
	}
	if o.busy {
		o.mu.Unlock()
		return fmt.Errorf("session %q is already processing a message", o.sessionID)
	}
	o.busy = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.busy = false
		o.mu.Unlock()
	}()

	if reply, handled, err := o.runCommand(text); handled {
		if err != nil {
			return err
		}
		return o.stream(ctx, reply)
	}

	userTurn := core.NewUserTurn(text)
	if err := o.store.AppendTurn(o.sessionID, userTurn); err != nil {
		return o.fail(ctx, fmt.Errorf("failed to persist user turn: %w", err))
	}
	o.win.Append(userTurn)

	o.mu.Lock()
	o.steps = 0
	o.lastUnknown = ""
	o.mu.Unlock()

	return o.runLoop(ctx)
}

// runLoop drives reasoning and tool dispatch until a final answer or a
// terminal failure.
func (o *Orchestrator) runLoop(ctx context.Context) error {
	for {
		o.setState(StateReasoning)

		req := reason.Request{
			Instructions: o.instructions,
			Turns:        o.win.Snapshot(),
			Tools:        o.toolDefinitions(),
		}

		result, err := o.executor.Step(ctx, req)
		if err != nil {
			return o.fail(ctx, err)
		}

		if result.Answer != nil {
			return o.respond(ctx, result.Answer.Text)
		}

		if err := o.dispatchTool(ctx, result.Tool); err != nil {
			return err
		}
	}
}

// dispatchTool consumes one step and runs the requested tool, feeding the
// outcome back as a result turn. Recoverable failures return nil so the loop
// reasons again; terminal failures fail the session.
func (o *Orchestrator) dispatchTool(ctx context.Context, req *reason.ToolRequest) error {
	o.mu.Lock()
	o.steps++
	steps := o.steps
	o.mu.Unlock()

	if steps > o.cfg.MaxSteps {
		return o.fail(ctx, &core.StepBudgetExceededError{Steps: steps, MaxSteps: o.cfg.MaxSteps})
	}
	o.store.SetSteps(o.sessionID, steps)

	callTurn := core.NewToolCallTurn(req.CallID, req.Name, req.Arguments)
	if err := o.store.AppendTurn(o.sessionID, callTurn); err != nil {
		return o.fail(ctx, fmt.Errorf("failed to persist tool call: %w", err))
	}
	o.win.Append(callTurn)

	o.setState(StateToolPending)
	o.logger.Info("orchestrator.tool.dispatch", "session_id", o.sessionID, "tool", req.Name, "step", steps)

	result, err := o.registry.Invoke(ctx, req.Name, req.Arguments)
	if err != nil {
		return o.handleToolError(ctx, callTurn, req.Name, err)
	}

	resultTurn := core.NewToolResultTurn(callTurn.CallID, req.Name, result)
	if err := o.store.AppendTurn(o.sessionID, resultTurn); err != nil {
		return o.fail(ctx, fmt.Errorf("failed to persist tool result: %w", err))
	}
	o.win.Append(resultTurn)
	return nil
}

// handleToolError classifies a failed invocation. Recoverable kinds become a
// result turn the engine sees as data; an unknown tool gets one retry before
// failing; everything else is terminal.
func (o *Orchestrator) handleToolError(ctx context.Context, callTurn core.ToolCallTurn, name string, err error) error {
	if ctx.Err() != nil {
		// Front-end disconnect; no partial agent turn is recorded.
		return o.fail(ctx, ctx.Err())
	}

	kind := core.KindOf(err)

	if kind == core.KindUnknownTool {
		o.mu.Lock()
		repeated := o.lastUnknown == name
		o.lastUnknown = name
		o.mu.Unlock()
		if repeated {
			return o.fail(ctx, err)
		}
	}

	if !kind.Recoverable() {
		return o.fail(ctx, err)
	}

	resultTurn := core.NewToolErrorTurn(callTurn.CallID, name, err)
	if perr := o.store.AppendTurn(o.sessionID, resultTurn); perr != nil {
		return o.fail(ctx, fmt.Errorf("failed to persist tool result: %w", perr))
	}
	o.win.Append(resultTurn)
	return nil
}

// respond streams the final answer, records the agent turn and returns the
// session to awaiting input.
func (o *Orchestrator) respond(ctx context.Context, text string) error {
	o.setState(StateResponding)

	if err := o.stream(ctx, text); err != nil {
		return o.fail(ctx, err)
	}

	agentTurn := core.NewAgentTurn(text)
	if err := o.store.AppendTurn(o.sessionID, agentTurn); err != nil {
		return o.fail(ctx, fmt.Errorf("failed to persist agent turn: %w", err))
	}
	o.win.Append(agentTurn)

	o.setState(StateAwaitingInput)
	o.logger.Info("orchestrator.turn.complete", "session_id", o.sessionID, "steps", o.Steps())
	return nil
}

// stream delivers a response as ordered rune fragments followed by a turn
// completion marker. Each delivery is bounded by the configured send timeout.
func (o *Orchestrator) stream(ctx context.Context, text string) error {
	for _, chunk := range splitRunes(text, o.cfg.FragmentSize) {
		sendCtx, cancel := context.WithTimeout(ctx, o.cfg.SendTimeout)
		err := o.out.SendFragment(sendCtx, o.sessionID, chunk)
		cancel()
		if err != nil {
			return err
		}
	}

	sendCtx, cancel := context.WithTimeout(ctx, o.cfg.SendTimeout)
	defer cancel()
	return o.out.TurnComplete(sendCtx, o.sessionID)
}

// fail transitions to the terminal failed state, persists the status and
// emits exactly one session_failed event carrying the stable error kind.
func (o *Orchestrator) fail(ctx context.Context, cause error) error {
	o.mu.Lock()
	alreadyFailed := o.state == StateFailed
	o.state = StateFailed
	o.mu.Unlock()

	if alreadyFailed {
		return cause
	}

	kind := core.KindOf(cause)
	o.logger.Error("orchestrator.session.failed", "session_id", o.sessionID, "kind", string(kind), "error", cause.Error())

	o.store.SetStatus(o.sessionID, core.StatusFailed)

	// The notification must go out even when the causing context is gone.
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.SendTimeout)
	defer cancel()
	if err := o.out.SessionFailed(notifyCtx, o.sessionID, kind); err != nil {
		o.logger.Error("orchestrator.session.failed_notify", "session_id", o.sessionID, "error", err.Error())
	}

	return cause
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// toolDefinitions projects the registry onto the backend contract.
func (o *Orchestrator) toolDefinitions() []reason.ToolDefinition {
	specs := o.registry.Specs()
	defs := make([]reason.ToolDefinition, len(specs))
	for i, s := range specs {
		defs[i] = reason.ToolDefinition{
			Name:        s.Name,
			Description: s.Description,
			Parameters:  s.Parameters,
		}
	}
	return defs
}

// splitRunes cuts text into chunks of at most size runes, preserving order
// and multi-byte characters.
func splitRunes(text string, size int) []string {
	if text == "" {
		return []string{""}
	}

	runes := []rune(text)
	chunks := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
