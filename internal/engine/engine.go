// Package engine validates and applies every session state transition.  All
// components mutate sessions exclusively through the engine so that the
// transition table, actor guards and timeout policy hold everywhere.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"triageroom/internal/core"
	"triageroom/internal/escalation"
	"triageroom/pkg"
)

// AnyState can be passed to Store.CompareAndTransition to serialize a write
// without pinning the current state.  The mutator is still responsible for
// validating what it finds.
const AnyState pkg.State = ""

// Store is the durable record of sessions.  Implementations must serialize
// CompareAndTransition per session id: "read, mutate, write" is atomic
// relative to any other transition attempt on the same session.
type Store interface {
	// Get returns the session or ErrNotFound.
	Get(ctx context.Context, id string) (*pkg.Session, error)
	// CreateIntake creates a fresh session in the intake state.
	CreateIntake(ctx context.Context, subject string) (*pkg.Session, error)
	// CompareAndTransition applies mutate to the session under the store's
	// per-session lock.  If expected is not AnyState and the stored state
	// differs, it fails with ErrConflict without calling mutate.  An error
	// returned by mutate aborts the write and is passed through.
	CompareAndTransition(ctx context.Context, id string, expected pkg.State, mutate func(*pkg.Session) error) (*pkg.Session, error)
	// ListNonTerminal returns a snapshot of every session that has not
	// reached a terminal state.
	ListNonTerminal(ctx context.Context) ([]pkg.Session, error)
	// AppendMessage appends to the session's message log.
	AppendMessage(ctx context.Context, m pkg.Message) (*pkg.Message, error)
	// Messages returns the session's message log in chronological order.
	Messages(ctx context.Context, sessionID string) ([]pkg.Message, error)
}

// Summarizer produces the nurse-facing intake note.  It may fail with
// ErrSummaryUnavailable; the engine never lets that block a transition.
type Summarizer interface {
	Summarize(ctx context.Context, answers []pkg.IntakeAnswer) (string, error)
}

// Alerter is notified whenever a session escalates to urgent, so the nurse
// dashboard can be pinged out of band.  Failures are logged, never fatal.
type Alerter interface {
	UrgentAlert(ctx context.Context, sessionID string) error
}

// Engine drives the session lifecycle.  Now is injectable for tests and
// defaults to time.Now.
type Engine struct {
	Store       Store
	Detector    *escalation.Detector
	Summarizer  Summarizer
	Alerter     Alerter
	SoftTimeout time.Duration
	GracePeriod time.Duration
	Now         func() time.Time
}

// New constructs an engine over the given store and detector.  Summarizer
// and Alerter are optional and may be set on the returned value.
func New(store Store, detector *escalation.Detector, softTimeout, gracePeriod time.Duration) *Engine {
	return &Engine{
		Store:       store,
		Detector:    detector,
		SoftTimeout: softTimeout,
		GracePeriod: gracePeriod,
		Now:         time.Now,
	}
}

// touch advances LastActivityAt, never moving it backwards.
func touch(s *pkg.Session, now time.Time) {
	if now.After(s.LastActivityAt) {
		s.LastActivityAt = now
	}
}

// transition loads the session, validates the source state against from and
// applies mutate under the store's per-session serialization.  Attempts from
// a terminal state are rejected idempotently with ErrInvalidTransition.
func (e *Engine) transition(ctx context.Context, id string, from []pkg.State, mutate func(*pkg.Session) error) (*pkg.Session, error) {
	s, err := e.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.State.Terminal() {
		return nil, fmt.Errorf("session %s is %s: %w", id, s.State, ErrInvalidTransition)
	}
	allowed := false
	for _, st := range from {
		if s.State == st {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, fmt.Errorf("trigger not valid from %s: %w", s.State, ErrInvalidTransition)
	}
	return e.Store.CompareAndTransition(ctx, id, s.State, mutate)
}

// StartIntake creates a new session for the patient and asks the first
// intake question.
func (e *Engine) StartIntake(ctx context.Context, subject string) (*pkg.Session, error) {
	s, err := e.Store.CreateIntake(ctx, subject)
	if err != nil {
		return nil, err
	}
	if q := core.NextQuestion(0); q != nil {
		e.systemMessage(ctx, s.ID, q.Text, pkg.PhaseIntake)
	}
	return s, nil
}

// CurrentQuestion returns the next unanswered intake question, or nil once
// the questionnaire is finished or the session has left intake.
func (e *Engine) CurrentQuestion(s *pkg.Session) *core.Question {
	if s.State != pkg.StateIntake {
		return nil
	}
	return core.NextQuestion(len(s.IntakeAnswers))
}

// SubmitAnswer records the patient's answer to the current intake question.
// It scans the answer for emergency signals and, when the questionnaire is
// complete, finishes intake automatically.  The next question is returned
// while intake is still in progress.
func (e *Engine) SubmitAnswer(ctx context.Context, id, answer string) (*pkg.Session, *core.Question, error) {
	now := e.Now()
	s, err := e.transition(ctx, id, []pkg.State{pkg.StateIntake}, func(s *pkg.Session) error {
		q := core.NextQuestion(len(s.IntakeAnswers))
		if q == nil {
			return fmt.Errorf("questionnaire already finished: %w", ErrInvalidTransition)
		}
		s.IntakeAnswers = append(s.IntakeAnswers, pkg.IntakeAnswer{
			QuestionID: q.ID,
			Question:   q.Text,
			Answer:     answer,
			CreatedAt:  now,
		})
		s.UnreadByNurse = true
		touch(s, now)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	e.appendMessage(ctx, id, pkg.RolePatient, answer, pkg.PhaseIntake)

	if e.Detector != nil && e.Detector.Detect(answer) {
		s, err = e.Escalate(ctx, id, false)
		return s, nil, err
	}
	if core.IntakeFinished(len(s.IntakeAnswers)) {
		s, err = e.FinishIntake(ctx, id)
		return s, nil, err
	}
	next := core.NextQuestion(len(s.IntakeAnswers))
	if next != nil {
		e.systemMessage(ctx, id, next.Text, pkg.PhaseIntake)
	}
	return s, next, nil
}

// FinishIntake moves a fully answered session into the nurse queue.  The
// transition commits first; summary generation is a secondary write that
// never blocks or fails triage queuing.
func (e *Engine) FinishIntake(ctx context.Context, id string) (*pkg.Session, error) {
	now := e.Now()
	s, err := e.transition(ctx, id, []pkg.State{pkg.StateIntake}, func(s *pkg.Session) error {
		if !core.IntakeFinished(len(s.IntakeAnswers)) {
			return fmt.Errorf("intake incomplete (%d answers): %w", len(s.IntakeAnswers), ErrInvalidTransition)
		}
		s.State = pkg.StateWaitingForNurse
		s.UnreadByNurse = true
		touch(s, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.systemMessage(ctx, id, core.MsgIntakeComplete, pkg.PhaseSystem)
	if err := e.attachSummary(ctx, id, s.IntakeAnswers); err != nil {
		log.Printf("session %s: %v", id, err)
	}
	return s, nil
}

// attachSummary generates the intake note and stores it with a write that is
// serialized independently of the intake-finished transition.  The summary
// is set at most once; a terminal session is left untouched.
func (e *Engine) attachSummary(ctx context.Context, id string, answers []pkg.IntakeAnswer) error {
	if e.Summarizer == nil {
		return nil
	}
	text, sumErr := e.Summarizer.Summarize(ctx, answers)
	if sumErr != nil {
		// Summary stays unset so a later attempt can still fill it;
		// the nurse sees the manual-review note instead.
		e.systemMessage(ctx, id, core.SummaryFallback, pkg.PhaseSystem)
		return fmt.Errorf("generate summary: %w", sumErr)
	}
	_, err := e.Store.CompareAndTransition(ctx, id, AnyState, func(s *pkg.Session) error {
		if s.State.Terminal() || s.Summary != "" {
			return nil
		}
		s.Summary = text
		return nil
	})
	if err != nil {
		return fmt.Errorf("store summary: %w", err)
	}
	e.appendMessage(ctx, id, pkg.RoleAssistant, text, pkg.PhaseSummary)
	return nil
}

// Escalate marks the session urgent.  The urgent flag is authoritative and,
// once set, exempts the session from the timeout sweep until a nurse
// completes the case.  Escalating an already urgent session is a no-op.
func (e *Engine) Escalate(ctx context.Context, id string, manual bool) (*pkg.Session, error) {
	cur, err := e.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur.Urgent {
		return cur, nil
	}
	if manual && cur.State == pkg.StateInactive {
		// The emergency button counts as patient activity: resume
		// first, then escalate the resumed session.
		if _, err := e.Resume(ctx, id); err != nil {
			return nil, err
		}
	}
	now := e.Now()
	from := []pkg.State{pkg.StateIntake, pkg.StateWaitingForNurse, pkg.StateNurseActive}
	s, err := e.transition(ctx, id, from, func(s *pkg.Session) error {
		s.State = pkg.StateUrgent
		s.Urgent = true
		s.UnreadByNurse = true
		touch(s, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if manual {
		e.systemMessage(ctx, id, core.MsgEmergencyButton, pkg.PhaseSystem)
	} else {
		e.systemMessage(ctx, id, core.MsgUrgentDetected, pkg.PhaseSystem)
	}
	if e.Alerter != nil {
		if err := e.Alerter.UrgentAlert(ctx, id); err != nil {
			log.Printf("session %s: urgent alert: %v", id, err)
		}
	}
	return s, nil
}

// NurseOpen acknowledges a nurse opening the session.  A waiting session
// becomes nurse-active; an urgent session keeps its state and records the
// acknowledgment.  Re-opening an already active session only clears the
// unread flag.
func (e *Engine) NurseOpen(ctx context.Context, id string, role pkg.Role) (*pkg.Session, error) {
	if role != pkg.RoleNurse {
		return nil, fmt.Errorf("only a nurse may open a session: %w", ErrForbidden)
	}
	now := e.Now()
	firstJoin := false
	from := []pkg.State{pkg.StateWaitingForNurse, pkg.StateNurseActive, pkg.StateUrgent}
	s, err := e.transition(ctx, id, from, func(s *pkg.Session) error {
		firstJoin = !s.NurseJoined
		if s.State == pkg.StateWaitingForNurse {
			s.State = pkg.StateNurseActive
		}
		s.NurseJoined = true
		s.UnreadByNurse = false
		touch(s, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if firstJoin {
		e.systemMessage(ctx, id, core.MsgNurseJoined, pkg.PhaseSystem)
	}
	return s, nil
}

// RecordMessage appends a chat message and registers the activity.  A
// patient message to an inactive session resumes it first, and every patient
// message is re-scanned for emergency signals.
func (e *Engine) RecordMessage(ctx context.Context, id string, role pkg.Role, content string) (*pkg.Session, error) {
	cur, err := e.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur.State == pkg.StateClosed {
		return nil, fmt.Errorf("session %s: %w", id, ErrSessionClosed)
	}
	if cur.State.Terminal() {
		return nil, fmt.Errorf("session %s is %s: %w", id, cur.State, ErrInvalidTransition)
	}
	if cur.State == pkg.StateInactive {
		if role != pkg.RolePatient {
			return nil, fmt.Errorf("inactive session awaits patient resume: %w", ErrInvalidTransition)
		}
		if cur, err = e.Resume(ctx, id); err != nil {
			return nil, err
		}
	}

	now := e.Now()
	phase := pkg.PhaseChat
	if cur.State == pkg.StateIntake {
		phase = pkg.PhaseIntake
	}
	s, err := e.Store.CompareAndTransition(ctx, id, cur.State, func(s *pkg.Session) error {
		s.UnreadByNurse = role == pkg.RolePatient
		touch(s, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.appendMessage(ctx, id, role, content, phase)

	if role == pkg.RolePatient && e.Detector != nil && e.Detector.Detect(content) {
		return e.Escalate(ctx, id, false)
	}
	return s, nil
}

// Resume returns an inactive session to the nurse queue, provided the grace
// period has not elapsed.  Past the resumability window the session is
// closed and ErrSessionClosed is returned.  A resume racing the hard-expiry
// sweep is first-committer-wins: exactly one side succeeds.
func (e *Engine) Resume(ctx context.Context, id string) (*pkg.Session, error) {
	cur, err := e.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur.State == pkg.StateClosed {
		return nil, fmt.Errorf("session %s: %w", id, ErrSessionClosed)
	}
	if cur.State != pkg.StateInactive {
		return nil, fmt.Errorf("resume not valid from %s: %w", cur.State, ErrInvalidTransition)
	}

	now := e.Now()
	if now.Sub(cur.LastActivityAt) >= e.SoftTimeout+e.GracePeriod {
		// Past the window: close instead of resuming.  Losing this
		// race to the sweep is equivalent.
		_, err := e.Store.CompareAndTransition(ctx, id, pkg.StateInactive, func(s *pkg.Session) error {
			s.State = pkg.StateClosed
			return nil
		})
		if err == nil {
			e.systemMessage(ctx, id, core.MsgClosed, pkg.PhaseSystem)
		} else if !errors.Is(err, ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("resumability window elapsed: %w", ErrSessionClosed)
	}

	s, err := e.Store.CompareAndTransition(ctx, id, pkg.StateInactive, func(s *pkg.Session) error {
		s.State = pkg.StateWaitingForNurse
		s.NurseJoined = false
		s.UnreadByNurse = true
		touch(s, now)
		return nil
	})
	if errors.Is(err, ErrConflict) {
		fresh, ferr := e.Store.Get(ctx, id)
		if ferr == nil && fresh.State == pkg.StateClosed {
			return nil, fmt.Errorf("session %s: %w", id, ErrSessionClosed)
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	e.systemMessage(ctx, id, core.MsgResumed, pkg.PhaseSystem)
	return s, nil
}

// Close ends a non-urgent session at the request of the patient or a nurse.
// Urgent sessions can only leave the board through nurse completion.
func (e *Engine) Close(ctx context.Context, id string, role pkg.Role) (*pkg.Session, error) {
	if role != pkg.RolePatient && role != pkg.RoleNurse {
		return nil, fmt.Errorf("close requires a patient or nurse actor: %w", ErrForbidden)
	}
	now := e.Now()
	from := []pkg.State{pkg.StateWaitingForNurse, pkg.StateNurseActive}
	s, err := e.transition(ctx, id, from, func(s *pkg.Session) error {
		if s.Urgent {
			return fmt.Errorf("urgent session requires nurse completion: %w", ErrInvalidTransition)
		}
		s.State = pkg.StateClosed
		touch(s, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.systemMessage(ctx, id, core.MsgClosed, pkg.PhaseSystem)
	return s, nil
}

// Complete finishes a case with nurse documentation.  This is the only
// transition that may end an urgent session, and the only point where the
// urgent flag is cleared.
func (e *Engine) Complete(ctx context.Context, id string, role pkg.Role, note string) (*pkg.Session, error) {
	if role != pkg.RoleNurse {
		return nil, fmt.Errorf("only a nurse may complete a session: %w", ErrForbidden)
	}
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, fmt.Errorf("completion requires documentation: %w", ErrInvalidTransition)
	}
	now := e.Now()
	from := []pkg.State{pkg.StateNurseActive, pkg.StateUrgent}
	s, err := e.transition(ctx, id, from, func(s *pkg.Session) error {
		s.State = pkg.StateCompleted
		s.Urgent = false
		s.UnreadByNurse = false
		touch(s, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.appendMessage(ctx, id, pkg.RoleNurse, note, pkg.PhaseChat)
	e.systemMessage(ctx, id, core.MsgCompleted, pkg.PhaseSystem)
	return s, nil
}

func (e *Engine) appendMessage(ctx context.Context, id string, role pkg.Role, content string, phase pkg.Phase) {
	_, err := e.Store.AppendMessage(ctx, pkg.Message{
		SessionID: id,
		Role:      role,
		Content:   content,
		Phase:     phase,
		CreatedAt: e.Now(),
	})
	if err != nil {
		log.Printf("session %s: append message: %v", id, err)
	}
}

func (e *Engine) systemMessage(ctx context.Context, id, text string, phase pkg.Phase) {
	e.appendMessage(ctx, id, pkg.RoleAssistant, text, phase)
}
