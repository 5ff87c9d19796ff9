package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingobridge/lingobridge/core"
	"github.com/lingobridge/lingobridge/reason"
	"github.com/lingobridge/lingobridge/session"
	"github.com/lingobridge/lingobridge/tool"
	"github.com/lingobridge/lingobridge/transport"
)

type fixture struct {
	orch    *Orchestrator
	store   *session.InMemoryStore
	events  <-chan transport.Event
	cleanup func()
}

func testConfig() core.Config {
	cfg := core.DefaultConfig()
	cfg.MaxSteps = 3
	cfg.FragmentSize = 4
	cfg.RetryBackoff = time.Millisecond
	cfg.SendTimeout = time.Second
	return cfg
}

func newFixture(t *testing.T, cfg core.Config, engine reason.Engine, tools ...tool.Tool) *fixture {
	t.Helper()

	registry := tool.NewRegistry(func(o *tool.RegistryOptions) {
		o.Timeout = cfg.ToolTimeout
	})
	registry.MustRegister(tools...)

	executor := reason.NewExecutor(engine, func(o *reason.ExecutorOptions) {
		o.Retries = cfg.RetryCount
		o.Backoff = cfg.RetryBackoff
		o.Timeout = cfg.ReasoningTimeout
	})

	store := session.NewInMemoryStore()
	adapter := transport.NewChannelAdapter(func(o *transport.ChannelAdapterOptions) {
		o.Buffer = 256
		o.SendTimeout = cfg.SendTimeout
	})

	events, unsubscribe := adapter.Subscribe("sess-1")

	orch, err := New("sess-1", cfg, executor, registry, store, adapter)
	require.NoError(t, err)

	return &fixture{orch: orch, store: store, events: events, cleanup: unsubscribe}
}

// drain collects every event already delivered.
func (f *fixture) drain() []transport.Event {
	var out []transport.Event
	for {
		select {
		case ev := <-f.events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func fragmentText(events []transport.Event) string {
	var s string
	for _, ev := range events {
		if ev.Type == transport.EventFragment {
			s += ev.Chunk
		}
	}
	return s
}

func failureKinds(events []transport.Event) []core.ErrorKind {
	var kinds []core.ErrorKind
	for _, ev := range events {
		if ev.Type == transport.EventSessionFailed {
			kinds = append(kinds, ev.ErrorKind)
		}
	}
	return kinds
}

func calculatorTool() tool.Tool {
	return tool.NewFunctionTool("calculator", "Add two numbers",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"a": map[string]any{"type": "number"},
				"b": map[string]any{"type": "number"},
			},
			"required": []string{"a", "b"},
		},
		func(_ context.Context, args map[string]any) (any, error) {
			return args["a"].(float64) + args["b"].(float64), nil
		},
	)
}

func TestHandleMessageDirectAnswer(t *testing.T) {
	engine := reason.NewScriptedEngine().EnqueueAnswer("Hello there!")
	f := newFixture(t, testConfig(), engine)
	defer f.cleanup()

	require.NoError(t, f.orch.HandleMessage(context.Background(), "hi"))

	events := f.drain()
	assert.Equal(t, "Hello there!", fragmentText(events))
	assert.Equal(t, transport.EventTurnComplete, events[len(events)-1].Type)

	sess, err := f.store.Get("sess-1")
	require.NoError(t, err)
	turns := sess.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, "hi", turns[0].(core.UserTurn).Text)
	assert.Equal(t, "Hello there!", turns[1].(core.AgentTurn).Text)

	assert.Equal(t, StateAwaitingInput, f.orch.State())
	assert.Zero(t, f.orch.Steps())
}

func TestHandleMessageStreamsInFragmentSizedChunks(t *testing.T) {
	engine := reason.NewScriptedEngine().EnqueueAnswer("HelloWorld")
	f := newFixture(t, testConfig(), engine)
	defer f.cleanup()

	require.NoError(t, f.orch.HandleMessage(context.Background(), "hi"))

	var chunks []string
	for _, ev := range f.drain() {
		if ev.Type == transport.EventFragment {
			chunks = append(chunks, ev.Chunk)
		}
	}
	assert.Equal(t, []string{"Hell", "oWor", "ld"}, chunks)
}

func TestHandleMessageToolRoundTrips(t *testing.T) {
	engine := reason.NewScriptedEngine().
		EnqueueToolRequest("calculator", `{"a":2,"b":3}`).
		EnqueueToolRequest("calculator", `{"a":5,"b":8}`).
		EnqueueToolRequest("calculator", `{"a":13,"b":1}`).
		EnqueueAnswer("The final result is 14.")
	f := newFixture(t, testConfig(), engine, calculatorTool())
	defer f.cleanup()

	require.NoError(t, f.orch.HandleMessage(context.Background(), "add things up"))

	assert.Equal(t, 3, f.orch.Steps(), "three tool round trips fit in max steps 3")
	assert.Equal(t, "The final result is 14.", fragmentText(f.drain()))

	sess, err := f.store.Get("sess-1")
	require.NoError(t, err)
	turns := sess.Turns()
	// user + 3*(call+result) + agent
	require.Len(t, turns, 8)

	// Every tool call is immediately followed by its matching result.
	for i, tn := range turns {
		call, ok := tn.(core.ToolCallTurn)
		if !ok {
			continue
		}
		require.Less(t, i+1, len(turns))
		result, ok := turns[i+1].(core.ToolResultTurn)
		require.True(t, ok, "tool call at %d must be followed by a result", i)
		assert.Equal(t, call.CallID, result.CallID)
		assert.False(t, result.Failed())
	}
}

func TestHandleMessageStepBudgetExceeded(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSteps = 1

	engine := reason.NewScriptedEngine().
		EnqueueToolRequest("calculator", `{"a":1,"b":1}`).
		EnqueueToolRequest("calculator", `{"a":2,"b":2}`).
		EnqueueAnswer("never reached")
	f := newFixture(t, cfg, engine, calculatorTool())
	defer f.cleanup()

	err := f.orch.HandleMessage(context.Background(), "loop forever")

	var budgetErr *core.StepBudgetExceededError
	require.ErrorAs(t, err, &budgetErr)
	assert.Equal(t, 1, budgetErr.MaxSteps)

	assert.Equal(t, []core.ErrorKind{core.KindStepBudgetExceeded}, failureKinds(f.drain()))
	assert.Equal(t, StateFailed, f.orch.State())

	sess, serr := f.store.Get("sess-1")
	require.NoError(t, serr)
	assert.Equal(t, core.StatusFailed, sess.Status)

	// A failed session accepts no further messages.
	assert.Error(t, f.orch.HandleMessage(context.Background(), "still there?"))
}

func TestHandleMessageUnknownToolRetryThenFail(t *testing.T) {
	engine := reason.NewScriptedEngine().
		EnqueueToolRequest("imaginary", `{}`).
		EnqueueToolRequest("imaginary", `{}`)
	f := newFixture(t, testConfig(), engine)
	defer f.cleanup()

	err := f.orch.HandleMessage(context.Background(), "use the imaginary tool")

	var unknownErr *core.UnknownToolError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, []core.ErrorKind{core.KindUnknownTool}, failureKinds(f.drain()))

	// The first request was fed back as an error result before the repeat
	// failed the session.
	sess, serr := f.store.Get("sess-1")
	require.NoError(t, serr)
	var errorResults int
	for _, tn := range sess.Turns() {
		if result, ok := tn.(core.ToolResultTurn); ok && result.Failed() {
			assert.Equal(t, core.KindUnknownTool, result.ErrorKind)
			errorResults++
		}
	}
	assert.Equal(t, 1, errorResults)
}

func TestHandleMessageUnknownToolRecovers(t *testing.T) {
	engine := reason.NewScriptedEngine().
		EnqueueToolRequest("imaginary", `{}`).
		EnqueueToolRequest("calculator", `{"a":1,"b":2}`).
		EnqueueAnswer("3")
	f := newFixture(t, testConfig(), engine, calculatorTool())
	defer f.cleanup()

	require.NoError(t, f.orch.HandleMessage(context.Background(), "try again"))
	assert.Equal(t, "3", fragmentText(f.drain()))
	assert.Equal(t, StateAwaitingInput, f.orch.State())
}

func TestHandleMessageToolFailureIsRecoverable(t *testing.T) {
	failing := tool.NewFunctionTool("flaky", "Always fails",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(context.Context, map[string]any) (any, error) {
			return nil, errors.New("backend hiccup")
		},
	)

	engine := reason.NewScriptedEngine().
		EnqueueToolRequest("flaky", `{}`).
		EnqueueAnswer("I could not reach the backend, sorry.")
	f := newFixture(t, testConfig(), engine, failing)
	defer f.cleanup()

	require.NoError(t, f.orch.HandleMessage(context.Background(), "go"))

	sess, err := f.store.Get("sess-1")
	require.NoError(t, err)

	var sawError bool
	for _, tn := range sess.Turns() {
		if result, ok := tn.(core.ToolResultTurn); ok && result.Failed() {
			assert.Equal(t, core.KindExecution, result.ErrorKind)
			sawError = true
		}
	}
	assert.True(t, sawError, "the failure must be recorded as a result turn")
	assert.Empty(t, failureKinds(f.drain()))
}

func TestHandleMessageToolTimeoutIsRecoverable(t *testing.T) {
	cfg := testConfig()
	cfg.ToolTimeout = 20 * time.Millisecond

	slow := tool.NewFunctionTool("slow", "Ignores its deadline",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(context.Context, map[string]any) (any, error) {
			time.Sleep(500 * time.Millisecond)
			return "late", nil
		},
	)

	engine := reason.NewScriptedEngine().
		EnqueueToolRequest("slow", `{}`).
		EnqueueAnswer("The tool timed out, try again later.")
	f := newFixture(t, cfg, engine, slow)
	defer f.cleanup()

	require.NoError(t, f.orch.HandleMessage(context.Background(), "go"))

	sess, err := f.store.Get("sess-1")
	require.NoError(t, err)
	var sawTimeout bool
	for _, tn := range sess.Turns() {
		if result, ok := tn.(core.ToolResultTurn); ok && result.Failed() {
			assert.Equal(t, core.KindTimeout, result.ErrorKind)
			sawTimeout = true
		}
	}
	assert.True(t, sawTimeout)
	assert.Equal(t, StateAwaitingInput, f.orch.State())
}

func TestHandleMessageReasoningUnavailable(t *testing.T) {
	engine := reason.NewScriptedEngine().
		EnqueueError(errors.New("down")).
		EnqueueError(errors.New("down")).
		EnqueueError(errors.New("down"))
	f := newFixture(t, testConfig(), engine)
	defer f.cleanup()

	err := f.orch.HandleMessage(context.Background(), "hello?")

	var unavailable *core.ReasoningUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, []core.ErrorKind{core.KindReasoningUnavailable}, failureKinds(f.drain()))
	assert.Equal(t, StateFailed, f.orch.State())
}

func TestHandleMessageCancellation(t *testing.T) {
	engine := reason.NewScriptedEngine().EnqueueAnswer("never delivered")
	f := newFixture(t, testConfig(), engine)
	defer f.cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.orch.HandleMessage(ctx, "hi")
	require.Error(t, err)
	assert.Equal(t, []core.ErrorKind{core.KindCancelled}, failureKinds(f.drain()))

	// No partial agent turn is recorded.
	sess, serr := f.store.Get("sess-1")
	require.NoError(t, serr)
	for _, tn := range sess.Turns() {
		_, isAgent := tn.(core.AgentTurn)
		assert.False(t, isAgent)
	}
}

func TestStepCounterResetsPerUserTurn(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSteps = 1

	engine := reason.NewScriptedEngine().
		EnqueueToolRequest("calculator", `{"a":1,"b":1}`).
		EnqueueAnswer("2").
		EnqueueToolRequest("calculator", `{"a":2,"b":2}`).
		EnqueueAnswer("4")
	f := newFixture(t, cfg, engine, calculatorTool())
	defer f.cleanup()

	require.NoError(t, f.orch.HandleMessage(context.Background(), "first"))
	require.NoError(t, f.orch.HandleMessage(context.Background(), "second"))
	assert.Equal(t, 1, f.orch.Steps())
}

func TestSlashCommandHistory(t *testing.T) {
	engine := reason.NewScriptedEngine().EnqueueAnswer("Hi!")
	f := newFixture(t, testConfig(), engine)
	defer f.cleanup()

	require.NoError(t, f.orch.HandleMessage(context.Background(), "/history"))
	assert.Equal(t, "No conversation history yet.", fragmentText(f.drain()))

	require.NoError(t, f.orch.HandleMessage(context.Background(), "hello"))
	f.drain()

	require.NoError(t, f.orch.HandleMessage(context.Background(), "/history"))
	history := fragmentText(f.drain())
	assert.Contains(t, history, "[user]: hello")
	assert.Contains(t, history, "[agent]: Hi!")

	// Commands are not recorded as turns and consume no steps.
	sess, err := f.store.Get("sess-1")
	require.NoError(t, err)
	assert.Equal(t, 2, sess.Len())
	assert.Zero(t, f.orch.Steps())
}

func TestSlashCommandClear(t *testing.T) {
	engine := reason.NewScriptedEngine().EnqueueAnswer("Hi!").EnqueueAnswer("Fresh start!")
	f := newFixture(t, testConfig(), engine)
	defer f.cleanup()

	require.NoError(t, f.orch.HandleMessage(context.Background(), "hello"))
	f.drain()

	require.NoError(t, f.orch.HandleMessage(context.Background(), "/clear"))
	assert.Equal(t, "Conversation history cleared.", fragmentText(f.drain()))

	sess, err := f.store.Get("sess-1")
	require.NoError(t, err)
	assert.Zero(t, sess.Len())

	// The next reasoning request starts from an empty window plus the new
	// user turn.
	require.NoError(t, f.orch.HandleMessage(context.Background(), "again"))
	f.drain()
	requests := engine.Requests()
	last := requests[len(requests)-1]
	require.Len(t, last.Turns, 1)
	assert.Equal(t, "again", last.Turns[0].(core.UserTurn).Text)
}

func TestSlashCommandUnknown(t *testing.T) {
	engine := reason.NewScriptedEngine()
	f := newFixture(t, testConfig(), engine)
	defer f.cleanup()

	require.NoError(t, f.orch.HandleMessage(context.Background(), "/teleport home"))
	reply := fragmentText(f.drain())
	assert.Contains(t, reply, "Unknown command: /teleport")
	assert.Contains(t, reply, "/history")
}

func TestSessionFailedEmittedExactlyOnce(t *testing.T) {
	engine := reason.NewScriptedEngine().
		EnqueueError(errors.New("down")).
		EnqueueError(errors.New("down")).
		EnqueueError(errors.New("down"))
	f := newFixture(t, testConfig(), engine)
	defer f.cleanup()

	require.Error(t, f.orch.HandleMessage(context.Background(), "hi"))
	require.Error(t, f.orch.HandleMessage(context.Background(), "hi again"))

	assert.Len(t, failureKinds(f.drain()), 1)
}

func TestSplitRunesPreservesMultibyte(t *testing.T) {
	chunks := splitRunes("سلام دنیا", 4)
	var rebuilt string
	for _, c := range chunks {
		rebuilt += c
	}
	assert.Equal(t, "سلام دنیا", rebuilt)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 4)
	}
}

func TestOrchestratorResumesPersistedHistory(t *testing.T) {
	store := session.NewInMemoryStore()
	require.NoError(t, store.AppendTurn("sess-1", core.NewUserTurn("earlier question")))
	require.NoError(t, store.AppendTurn("sess-1", core.NewAgentTurn("earlier answer")))

	engine := reason.NewScriptedEngine().EnqueueAnswer("welcome back")
	registry := tool.NewRegistry()
	executor := reason.NewExecutor(engine, func(o *reason.ExecutorOptions) {
		o.Backoff = time.Millisecond
	})
	adapter := transport.NewChannelAdapter()

	orch, err := New("sess-1", testConfig(), executor, registry, store, adapter)
	require.NoError(t, err)

	require.NoError(t, orch.HandleMessage(context.Background(), "back again"))

	requests := engine.Requests()
	require.Len(t, requests, 1)
	require.Len(t, requests[0].Turns, 3, "persisted turns precede the new user turn")
	assert.Equal(t, "earlier question", requests[0].Turns[0].(core.UserTurn).Text)
}
