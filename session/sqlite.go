package session

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lingobridge/lingobridge/core"
)

// SQLiteStore is a durable SessionStore backed by a local SQLite database.
// Sessions and turns live in separate tables; turns are persisted through the
// tagged JSON envelope so the closed variant set round-trips losslessly.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id                 TEXT PRIMARY KEY,
	status             TEXT NOT NULL,
	steps              INTEGER NOT NULL DEFAULT 0,
	created_at_unix_ms INTEGER NOT NULL,
	updated_at_unix_ms INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS turns (
	seq                INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id         TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	turn_json          TEXT NOT NULL,
	created_at_unix_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, seq);
`

// OpenSQLite opens (creating if necessary) a SQLite-backed store at path.
// Use ":memory:" for an ephemeral database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// Single writer; concurrent readers go through WAL.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set pragmas: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Create allocates a new active session, failing if the id is already taken.
func (s *SQLiteStore) Create(sessionID string) (*core.Session, error) {
	now := time.Now().UTC().UnixMilli()
	_, err := s.db.Exec(
		`INSERT INTO sessions (id, status, steps, created_at_unix_ms, updated_at_unix_ms) VALUES (?, ?, 0, ?, ?)`,
		sessionID, string(core.StatusActive), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session %q: %w", sessionID, err)
	}
	return s.load(sessionID)
}

// Get returns an existing session or creates a new one lazily.
func (s *SQLiteStore) Get(sessionID string) (*core.Session, error) {
	sess, err := s.load(sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return s.Create(sessionID)
	}
	return sess, err
}

// AppendTurn appends a turn to the session's history.
func (s *SQLiteStore) AppendTurn(sessionID string, t core.Turn) error {
	if err := s.ensure(sessionID); err != nil {
		return err
	}

	data, err := core.MarshalTurn(t)
	if err != nil {
		return err
	}

	now := time.Now().UTC().UnixMilli()
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO turns (session_id, turn_json, created_at_unix_ms) VALUES (?, ?, ?)`,
		sessionID, string(data), now,
	); err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}
	if _, err := tx.Exec(
		`UPDATE sessions SET updated_at_unix_ms = ? WHERE id = ?`, now, sessionID,
	); err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return tx.Commit()
}

// SetStatus updates the session's lifecycle status.
func (s *SQLiteStore) SetStatus(sessionID string, st core.Status) error {
	if err := s.ensure(sessionID); err != nil {
		return err
	}
	_, err := s.db.Exec(
		`UPDATE sessions SET status = ?, updated_at_unix_ms = ? WHERE id = ?`,
		string(st), time.Now().UTC().UnixMilli(), sessionID,
	)
	return err
}

// SetSteps records the session's current step counter.
func (s *SQLiteStore) SetSteps(sessionID string, steps int) error {
	if err := s.ensure(sessionID); err != nil {
		return err
	}
	_, err := s.db.Exec(
		`UPDATE sessions SET steps = ?, updated_at_unix_ms = ? WHERE id = ?`,
		steps, time.Now().UTC().UnixMilli(), sessionID,
	)
	return err
}

// ClearTurns drops the session's turn history.
func (s *SQLiteStore) ClearTurns(sessionID string) error {
	if err := s.ensure(sessionID); err != nil {
		return err
	}
	_, err := s.db.Exec(`DELETE FROM turns WHERE session_id = ?`, sessionID)
	return err
}

// Delete removes the session and its turns.
func (s *SQLiteStore) Delete(sessionID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM turns WHERE session_id = ?`, sessionID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM sessions WHERE id = ?`, sessionID); err != nil {
		return err
	}
	return tx.Commit()
}

// ensure lazily creates the session row when absent.
func (s *SQLiteStore) ensure(sessionID string) error {
	now := time.Now().UTC().UnixMilli()
	_, err := s.db.Exec(
		`INSERT INTO sessions (id, status, steps, created_at_unix_ms, updated_at_unix_ms)
		 VALUES (?, ?, 0, ?, ?) ON CONFLICT(id) DO NOTHING`,
		sessionID, string(core.StatusActive), now, now,
	)
	return err
}

// load reads one session row and its ordered turns.
func (s *SQLiteStore) load(sessionID string) (*core.Session, error) {
	row := s.db.QueryRow(
		`SELECT status, steps, created_at_unix_ms, updated_at_unix_ms FROM sessions WHERE id = ?`,
		sessionID,
	)

	var (
		status             string
		steps              int
		createdMS, updated int64
	)
	if err := row.Scan(&status, &steps, &createdMS, &updated); err != nil {
		return nil, err
	}

	sess := core.NewSession(sessionID)
	sess.Status = core.Status(status)
	sess.StepsTaken = steps
	sess.Created = time.UnixMilli(createdMS).UTC()

	rows, err := s.db.Query(
		`SELECT turn_json FROM turns WHERE session_id = ? ORDER BY seq`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		t, err := core.UnmarshalTurn([]byte(data))
		if err != nil {
			return nil, fmt.Errorf("corrupt turn for session %q: %w", sessionID, err)
		}
		sess.AppendTurn(t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// AppendTurn touches Updated; restore the persisted timestamp last.
	sess.Updated = time.UnixMilli(updated).UTC()

	return sess, nil
}
