// Package store provides an in-memory engine.Store, suitable for tests and
// single-node development runs without a database.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"triageroom/internal/engine"
	"triageroom/pkg"
)

// entry owns one session.  Its lock serializes every transition on that
// session; the map lock only guards membership.
type entry struct {
	mu      sync.Mutex
	session pkg.Session
}

// Memory is a mutex-guarded engine.Store.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	messages map[string][]pkg.Message
	nextMsg  int64
	now      func() time.Time
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[string]*entry),
		messages: make(map[string][]pkg.Message),
		now:      time.Now,
	}
}

// SetNowFunc overrides the clock used for creation timestamps.
func (m *Memory) SetNowFunc(now func() time.Time) { m.now = now }

func (m *Memory) lookup(id string) (*entry, error) {
	m.mu.RLock()
	e, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, engine.ErrNotFound)
	}
	return e, nil
}

func clone(s pkg.Session) pkg.Session {
	out := s
	out.IntakeAnswers = make([]pkg.IntakeAnswer, len(s.IntakeAnswers))
	copy(out.IntakeAnswers, s.IntakeAnswers)
	return out
}

// Get returns a copy of the session.
func (m *Memory) Get(_ context.Context, id string) (*pkg.Session, error) {
	e, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	s := clone(e.session)
	return &s, nil
}

// CreateIntake creates a fresh session in the intake state.
func (m *Memory) CreateIntake(_ context.Context, subject string) (*pkg.Session, error) {
	now := m.now()
	s := pkg.Session{
		ID:             uuid.NewString(),
		Subject:        subject,
		State:          pkg.StateIntake,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	m.mu.Lock()
	m.sessions[s.ID] = &entry{session: s}
	m.mu.Unlock()
	out := clone(s)
	return &out, nil
}

// CompareAndTransition applies mutate under the session's lock.  A state
// mismatch against expected fails with ErrConflict before mutate runs.
func (m *Memory) CompareAndTransition(_ context.Context, id string, expected pkg.State, mutate func(*pkg.Session) error) (*pkg.Session, error) {
	e, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if expected != engine.AnyState && e.session.State != expected {
		return nil, fmt.Errorf("session %s is %s, expected %s: %w", id, e.session.State, expected, engine.ErrConflict)
	}
	work := clone(e.session)
	if err := mutate(&work); err != nil {
		return nil, err
	}
	e.session = work
	out := clone(work)
	return &out, nil
}

// ListNonTerminal returns a snapshot of every live session, oldest first.
func (m *Memory) ListNonTerminal(_ context.Context) ([]pkg.Session, error) {
	m.mu.RLock()
	entries := make([]*entry, 0, len(m.sessions))
	for _, e := range m.sessions {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	out := make([]pkg.Session, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.session.State.Terminal() {
			out = append(out, clone(e.session))
		}
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// AppendMessage appends to the session's message log.
func (m *Memory) AppendMessage(_ context.Context, msg pkg.Message) (*pkg.Message, error) {
	if _, err := m.lookup(msg.SessionID); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextMsg++
	msg.ID = m.nextMsg
	m.messages[msg.SessionID] = append(m.messages[msg.SessionID], msg)
	return &msg, nil
}

// Messages returns the session's log in append order.
func (m *Memory) Messages(_ context.Context, sessionID string) ([]pkg.Message, error) {
	if _, err := m.lookup(sessionID); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := m.messages[sessionID]
	out := make([]pkg.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}
