package orchestrator

import (
	"fmt"
	"strings"

	"github.com/lingobridge/lingobridge/core"
)

// Slash commands are intercepted before reasoning, consume no step budget and
// are not recorded in the turn history.

// runCommand recognizes and executes a slash command. handled is false for
// ordinary messages.
func (o *Orchestrator) runCommand(text string) (reply string, handled bool, err error) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "/") {
		return "", false, nil
	}

	cmd := strings.Fields(trimmed)[0]
	switch cmd {
	case "/history":
		reply, err = o.formatHistory()
	case "/clear":
		reply, err = o.clearHistory()
	default:
		reply = fmt.Sprintf("Unknown command: %s. Available commands: /history, /clear", cmd)
	}

	if err != nil {
		return "", true, err
	}

	o.logger.Debug("orchestrator.command", "session_id", o.sessionID, "command", cmd)
	return reply, true, nil
}

// formatHistory renders the recorded dialogue, one line per user or agent
// turn.
func (o *Orchestrator) formatHistory() (string, error) {
	sess, err := o.store.Get(o.sessionID)
	if err != nil {
		return "", fmt.Errorf("failed to load history: %w", err)
	}

	var b strings.Builder
	for _, t := range sess.Turns() {
		switch turn := t.(type) {
		case core.UserTurn:
			fmt.Fprintf(&b, "%s [user]: %s\n", turn.Timestamp.Format("2006-01-02 15:04:05"), turn.Text)
		case core.AgentTurn:
			fmt.Fprintf(&b, "%s [agent]: %s\n", turn.Timestamp.Format("2006-01-02 15:04:05"), turn.Text)
		}
	}

	if b.Len() == 0 {
		return "No conversation history yet.", nil
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// clearHistory drops the persisted turns and resets the context window.
func (o *Orchestrator) clearHistory() (string, error) {
	if err := o.store.ClearTurns(o.sessionID); err != nil {
		return "", fmt.Errorf("failed to clear history: %w", err)
	}
	o.win.Reset(nil)

	o.mu.Lock()
	o.steps = 0
	o.lastUnknown = ""
	o.mu.Unlock()

	return "Conversation history cleared.", nil
}
