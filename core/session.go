package core

import (
	"sync"
	"time"
)

// Status is the lifecycle state of a session.
type Status string

const (
	// StatusActive marks a session accepting and processing messages.
	StatusActive Status = "active"
	// StatusCompleted marks a session ended by the front-end or idle timeout.
	StatusCompleted Status = "completed"
	// StatusFailed marks a terminally failed session. No further messages are
	// accepted.
	StatusFailed Status = "failed"
)

// Session is one end-to-end conversation between a user and the agent. It
// tracks the ordered turn history, the per-user-turn step counter and the
// lifecycle status. It is safe for concurrent access, though the orchestrator
// additionally enforces at most one active step per session.
//
// Contract:
//   - Turns are immutable once appended; insertion order is causal order
//   - Turns returns a defensive copy
//   - Clone performs a deep copy safe for independent mutation
type Session struct {
	ID         string
	Status     Status
	StepsTaken int
	Created    time.Time
	Updated    time.Time

	turns []Turn
	mu    sync.RWMutex
}

// NewSession creates an active session with the given ID.
func NewSession(id string) *Session {
	now := time.Now().UTC()
	return &Session{ID: id, Status: StatusActive, Created: now, Updated: now}
}

// AppendTurn appends a turn to the history updating the Updated timestamp.
func (s *Session) AppendTurn(t Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, t)
	s.Updated = time.Now().UTC()
}

// Turns returns a defensive copy of the full ordered turn history.
func (s *Session) Turns() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns := make([]Turn, len(s.turns))
	copy(turns, s.turns)
	return turns
}

// Len returns the number of turns recorded.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// SetStatus updates the lifecycle status.
func (s *Session) SetStatus(st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = st
	s.Updated = time.Now().UTC()
}

// SetSteps records the step counter value.
func (s *Session) SetSteps(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StepsTaken = n
	s.Updated = time.Now().UTC()
}

// ClearTurns drops the recorded history, keeping identity and status.
func (s *Session) ClearTurns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = nil
	s.Updated = time.Now().UTC()
}

// Clone returns a deep copy of the session safe for independent mutation.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := &Session{
		ID:         s.ID,
		Status:     s.Status,
		StepsTaken: s.StepsTaken,
		Created:    s.Created,
		Updated:    s.Updated,
		turns:      make([]Turn, len(s.turns)),
	}
	copy(clone.turns, s.turns)
	return clone
}

// SessionStore persists sessions and their evolving turn history. Stores
// return cloned sessions so callers can never mutate persisted state through
// a snapshot.
type SessionStore interface {
	// Create allocates a new active session, failing if the id is taken.
	Create(id string) (*Session, error)

	// Get returns the session or creates it lazily when absent.
	Get(id string) (*Session, error)

	// AppendTurn appends a turn to the session's history.
	AppendTurn(sessionID string, t Turn) error

	// SetStatus updates the session's lifecycle status.
	SetStatus(sessionID string, st Status) error

	// SetSteps records the session's current step counter.
	SetSteps(sessionID string, steps int) error

	// ClearTurns drops the session's turn history.
	ClearTurns(sessionID string) error

	// Delete removes the session entirely.
	Delete(sessionID string) error
}
