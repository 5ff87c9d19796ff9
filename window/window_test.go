package window

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingobridge/lingobridge/core"
)

// Eight-character texts cost exactly two budget units (len/4).
func user(text string) core.UserTurn   { return core.NewUserTurn(text) }
func agent(text string) core.AgentTurn { return core.NewAgentTurn(text) }

func toolPair(callID string) (core.ToolCallTurn, core.ToolResultTurn) {
	call := core.NewToolCallTurn(callID, "t", "abc")
	result := core.NewToolResultTurn(callID, "t", "abc")
	return call, result
}

func texts(turns []core.Turn) []string {
	out := make([]string, 0, len(turns))
	for _, t := range turns {
		switch turn := t.(type) {
		case core.UserTurn:
			out = append(out, turn.Text)
		case core.AgentTurn:
			out = append(out, turn.Text)
		case core.ToolCallTurn:
			out = append(out, "call:"+turn.CallID)
		case core.ToolResultTurn:
			out = append(out, "result:"+turn.CallID)
		}
	}
	return out
}

func TestSnapshotWithinBudget(t *testing.T) {
	w := New(100, 0)
	w.Append(user("abcdefgh"))
	w.Append(agent("hgfedcba"))

	snapshot := w.Snapshot()
	assert.Equal(t, []string{"abcdefgh", "hgfedcba"}, texts(snapshot))
}

func TestSnapshotEvictsToolPairsFirst(t *testing.T) {
	w := New(4, 0)
	w.Append(user("abcdefgh")) // cost 2
	call, result := toolPair("c1")
	w.Append(call)   // cost 1
	w.Append(result) // cost 1
	w.Append(user("ijklmnop")) // cost 2

	// Total 6 over budget 4: the pair goes before any dialogue.
	snapshot := w.Snapshot()
	assert.Equal(t, []string{"abcdefgh", "ijklmnop"}, texts(snapshot))
}

func TestSnapshotNeverSplitsToolPair(t *testing.T) {
	w := New(5, 2)
	w.Append(user("abcdefgh")) // cost 2
	call, result := toolPair("c1")
	w.Append(call)
	w.Append(result)
	w.Append(agent("ijklmnop")) // cost 2

	snapshot := w.Snapshot()
	for _, s := range texts(snapshot) {
		assert.NotEqual(t, "call:c1", s, "a dangling tool call must never survive alone")
		assert.NotEqual(t, "result:c1", s, "a dangling tool result must never survive alone")
	}
	assert.Equal(t, []string{"abcdefgh", "ijklmnop"}, texts(snapshot))
}

func TestSnapshotEvictsOldestDialogue(t *testing.T) {
	w := New(4, 1)
	w.Append(user("abcdefgh"))
	w.Append(agent("ijklmnop"))
	w.Append(user("qrstuvwx"))

	snapshot := w.Snapshot()
	assert.Equal(t, []string{"ijklmnop", "qrstuvwx"}, texts(snapshot))
}

func TestSnapshotProtectsRecentDialogue(t *testing.T) {
	// Budget far too small, but both turns are protected: neither is evicted.
	w := New(1, 2)
	w.Append(user("abcdefgh"))
	w.Append(agent("ijklmnop"))

	snapshot := w.Snapshot()
	assert.Equal(t, []string{"abcdefgh", "ijklmnop"}, texts(snapshot))
}

func TestSnapshotDoesNotMutateHistory(t *testing.T) {
	w := New(4, 0)
	w.Append(user("abcdefgh"))
	call, result := toolPair("c1")
	w.Append(call)
	w.Append(result)
	w.Append(user("ijklmnop"))

	first := w.Snapshot()
	second := w.Snapshot()

	assert.Equal(t, texts(first), texts(second), "derivation must be deterministic")
	assert.Equal(t, 4, w.Len(), "eviction must never touch the recorded history")
}

func TestSnapshotAfterBudgetRelief(t *testing.T) {
	call, result := toolPair("c1")
	history := []core.Turn{user("abcdefgh"), call, result, user("ijklmnop")}

	tight := New(4, 0)
	tight.Reset(history)
	require.Len(t, tight.Snapshot(), 2)

	// The same history under a bigger budget re-derives the full view: the
	// earlier eviction lost nothing.
	relaxed := New(100, 0)
	relaxed.Reset(history)
	assert.Len(t, relaxed.Snapshot(), 4)
}

func TestReset(t *testing.T) {
	w := New(100, 0)
	w.Append(user("abcdefgh"))

	w.Reset([]core.Turn{agent("ijklmnop")})
	assert.Equal(t, []string{"ijklmnop"}, texts(w.Snapshot()))

	w.Reset(nil)
	assert.Zero(t, w.Len())
	assert.Empty(t, w.Snapshot())
}
