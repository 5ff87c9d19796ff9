// Package window maintains the ordered conversation history handed to the
// reasoning engine and enforces a bounded size.
package window

import (
	"fmt"
	"sync"

	"github.com/lingobridge/lingobridge/core"
)

// Window records the full ordered turn sequence of a session and derives a
// bounded snapshot for reasoning. Append always succeeds; the budget is
// applied when Snapshot recomputes the within-budget view, so eviction can
// never corrupt the recorded history and a tool call is never separated from
// its paired result.
//
// Eviction order, oldest first: tool call/result pairs before raw dialogue;
// the most recent keepRecent user/agent turns are never evicted. The
// derivation is deterministic given the same turn sequence and budget.
type Window struct {
	mu         sync.RWMutex
	turns      []core.Turn
	budget     int
	keepRecent int
}

// New constructs a window with the given approximate token budget and number
// of protected recent user/agent turns.
func New(budget, keepRecent int) *Window {
	return &Window{budget: budget, keepRecent: keepRecent}
}

// Append records a turn in insertion order.
func (w *Window) Append(t core.Turn) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.turns = append(w.turns, t)
}

// Reset replaces the recorded sequence, used when seeding from a persisted
// session or after /clear.
func (w *Window) Reset(turns []core.Turn) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.turns = make([]core.Turn, len(turns))
	copy(w.turns, turns)
}

// Len returns the number of recorded turns.
func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.turns)
}

// block is an atomic eviction unit: either a single dialogue turn or a tool
// call with its paired result.
type block struct {
	turns     []core.Turn
	cost      int
	toolPair  bool
	dialogue  bool
	protected bool
}

// Snapshot derives the ordered sequence of turns currently within budget.
func (w *Window) Snapshot() []core.Turn {
	w.mu.RLock()
	defer w.mu.RUnlock()

	blocks := w.buildBlocks()

	total := 0
	for i := range blocks {
		total += blocks[i].cost
	}

	// First pass: drop oldest tool pairs.
	for i := 0; total > w.budget && i < len(blocks); i++ {
		if blocks[i].toolPair && blocks[i].turns != nil {
			total -= blocks[i].cost
			blocks[i].turns = nil
		}
	}

	// Second pass: drop oldest unprotected dialogue turns.
	for i := 0; total > w.budget && i < len(blocks); i++ {
		if blocks[i].dialogue && !blocks[i].protected && blocks[i].turns != nil {
			total -= blocks[i].cost
			blocks[i].turns = nil
		}
	}

	snapshot := make([]core.Turn, 0, len(w.turns))
	for i := range blocks {
		snapshot = append(snapshot, blocks[i].turns...)
	}
	return snapshot
}

// buildBlocks groups the turn sequence into eviction units and marks the
// most recent keepRecent dialogue blocks as protected. Caller holds the lock.
func (w *Window) buildBlocks() []block {
	blocks := make([]block, 0, len(w.turns))
	for i := 0; i < len(w.turns); i++ {
		switch t := w.turns[i].(type) {
		case core.ToolCallTurn:
			b := block{turns: []core.Turn{t}, cost: turnCost(t), toolPair: true}
			if i+1 < len(w.turns) {
				if res, ok := w.turns[i+1].(core.ToolResultTurn); ok && res.CallID == t.CallID {
					b.turns = append(b.turns, res)
					b.cost += turnCost(res)
					i++
				}
			}
			blocks = append(blocks, b)
		case core.ToolResultTurn:
			// An unpaired result (history seeded mid-pair) evicts like a pair.
			blocks = append(blocks, block{turns: []core.Turn{t}, cost: turnCost(t), toolPair: true})
		default:
			blocks = append(blocks, block{turns: []core.Turn{t}, cost: turnCost(t), dialogue: true})
		}
	}

	protected := w.keepRecent
	for i := len(blocks) - 1; i >= 0 && protected > 0; i-- {
		if blocks[i].dialogue {
			blocks[i].protected = true
			protected--
		}
	}
	return blocks
}

// turnCost approximates the token cost of a turn as len/4 of its textual
// payload, minimum one.
func turnCost(t core.Turn) int {
	var n int
	switch turn := t.(type) {
	case core.UserTurn:
		n = len(turn.Text)
	case core.AgentTurn:
		n = len(turn.Text)
	case core.ToolCallTurn:
		n = len(turn.Tool) + len(turn.Arguments)
	case core.ToolResultTurn:
		n = len(turn.Tool) + len(turn.Error)
		if turn.Result != nil {
			n += len(fmt.Sprintf("%v", turn.Result))
		}
	}
	cost := n / 4
	if cost < 1 {
		cost = 1
	}
	return cost
}
