// Package db implements the session store on PostgreSQL.  Transition
// serialization relies on a row lock per session: compare-and-transition
// runs SELECT ... FOR UPDATE inside a transaction, so concurrent attempts on
// the same session queue up and observe each other's commits.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"triageroom/internal/engine"
	"triageroom/pkg"
)

// Store wraps session and message persistence over a single Postgres
// database.  The caller owns the *sql.DB lifecycle.
type Store struct {
	DB *sql.DB
}

// NewStore constructs a Store from an existing sql.DB.
func NewStore(db *sql.DB) *Store { return &Store{DB: db} }

const sessionColumns = `id, subject, state, intake_answers, summary,
	is_urgent, unread_by_nurse, nurse_joined, created_at, last_activity_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*pkg.Session, error) {
	var s pkg.Session
	var answers []byte
	err := row.Scan(&s.ID, &s.Subject, &s.State, &answers, &s.Summary,
		&s.Urgent, &s.UnreadByNurse, &s.NurseJoined, &s.CreatedAt, &s.LastActivityAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(answers, &s.IntakeAnswers); err != nil {
		return nil, fmt.Errorf("decode intake answers for %s: %w", s.ID, err)
	}
	return &s, nil
}

// Get returns the session or engine.ErrNotFound.
func (st *Store) Get(ctx context.Context, id string) (*pkg.Session, error) {
	row := st.DB.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, engine.ErrNotFound)
	}
	return s, err
}

// CreateIntake inserts a fresh session in the intake state.
func (st *Store) CreateIntake(ctx context.Context, subject string) (*pkg.Session, error) {
	now := time.Now().UTC()
	s := pkg.Session{
		ID:             uuid.NewString(),
		Subject:        subject,
		State:          pkg.StateIntake,
		IntakeAnswers:  []pkg.IntakeAnswer{},
		CreatedAt:      now,
		LastActivityAt: now,
	}
	_, err := st.DB.ExecContext(ctx,
		`INSERT INTO sessions (id, subject, state, intake_answers, created_at, last_activity_at)
         VALUES ($1, $2, $3, '[]'::jsonb, $4, $4)`,
		s.ID, s.Subject, s.State, now)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CompareAndTransition locks the session row, verifies the expected state
// and applies mutate before writing the result back.  A state mismatch fails
// with engine.ErrConflict; an error from mutate aborts the transaction.
func (st *Store) CompareAndTransition(ctx context.Context, id string, expected pkg.State, mutate func(*pkg.Session) error) (*pkg.Session, error) {
	tx, err := st.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1 FOR UPDATE`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, engine.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if expected != engine.AnyState && s.State != expected {
		return nil, fmt.Errorf("session %s is %s, expected %s: %w", id, s.State, expected, engine.ErrConflict)
	}
	if err := mutate(s); err != nil {
		return nil, err
	}
	answers, err := json.Marshal(s.IntakeAnswers)
	if err != nil {
		return nil, fmt.Errorf("encode intake answers: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE sessions
         SET state = $2, intake_answers = $3, summary = $4, is_urgent = $5,
             unread_by_nurse = $6, nurse_joined = $7, last_activity_at = $8
         WHERE id = $1`,
		s.ID, s.State, answers, s.Summary, s.Urgent,
		s.UnreadByNurse, s.NurseJoined, s.LastActivityAt)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s, nil
}

// ListNonTerminal returns every session that has not reached a terminal
// state, oldest first.
func (st *Store) ListNonTerminal(ctx context.Context) ([]pkg.Session, error) {
	rows, err := st.DB.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions
         WHERE state NOT IN ($1, $2)
         ORDER BY created_at ASC`,
		pkg.StateCompleted, pkg.StateClosed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []pkg.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// AppendMessage stores a new log entry for the session.
func (st *Store) AppendMessage(ctx context.Context, m pkg.Message) (*pkg.Message, error) {
	err := st.DB.QueryRowContext(ctx,
		`INSERT INTO messages (session_id, role, content, phase, created_at)
         VALUES ($1, $2, $3, $4, $5)
         RETURNING id`,
		m.SessionID, m.Role, m.Content, m.Phase, m.CreatedAt).Scan(&m.ID)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Messages returns the session's log ordered chronologically.
func (st *Store) Messages(ctx context.Context, sessionID string) ([]pkg.Message, error) {
	rows, err := st.DB.QueryContext(ctx,
		`SELECT id, session_id, role, content, phase, created_at
         FROM messages
         WHERE session_id = $1
         ORDER BY created_at ASC, id ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []pkg.Message
	for rows.Next() {
		var m pkg.Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.Phase, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
