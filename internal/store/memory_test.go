package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"triageroom/internal/engine"
	"triageroom/pkg"
)

func TestGetUnknownSession(t *testing.T) {
	m := NewMemory()
	if _, err := m.Get(context.Background(), "missing"); !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("got %v want ErrNotFound", err)
	}
}

func TestCompareAndTransitionStateMismatch(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	s, err := m.CreateIntake(ctx, "p1")
	if err != nil {
		t.Fatalf("CreateIntake: %v", err)
	}

	_, err = m.CompareAndTransition(ctx, s.ID, pkg.StateInactive, func(s *pkg.Session) error {
		t.Fatal("mutator must not run on state mismatch")
		return nil
	})
	if !errors.Is(err, engine.ErrConflict) {
		t.Fatalf("got %v want ErrConflict", err)
	}
}

func TestCompareAndTransitionMutatorErrorAborts(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	s, _ := m.CreateIntake(ctx, "p1")

	boom := errors.New("boom")
	_, err := m.CompareAndTransition(ctx, s.ID, pkg.StateIntake, func(s *pkg.Session) error {
		s.State = pkg.StateClosed
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v want mutator error", err)
	}
	got, _ := m.Get(ctx, s.ID)
	if got.State != pkg.StateIntake {
		t.Fatalf("aborted mutation leaked: state %s", got.State)
	}
}

// TestResumeExpiryInterleaving emulates the sweep reading its snapshot, a
// resume committing, and the sweep's compare-and-set then failing.
func TestResumeExpiryInterleaving(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	s, _ := m.CreateIntake(ctx, "p1")
	if _, err := m.CompareAndTransition(ctx, s.ID, pkg.StateIntake, func(s *pkg.Session) error {
		s.State = pkg.StateInactive
		return nil
	}); err != nil {
		t.Fatalf("park session: %v", err)
	}

	// Sweep takes its snapshot here, seeing the session inactive.
	snapshot, err := m.ListNonTerminal(ctx)
	if err != nil || len(snapshot) != 1 {
		t.Fatalf("snapshot: %v (%d sessions)", err, len(snapshot))
	}

	// Patient resume commits first.
	if _, err := m.CompareAndTransition(ctx, s.ID, pkg.StateInactive, func(s *pkg.Session) error {
		s.State = pkg.StateWaitingForNurse
		return nil
	}); err != nil {
		t.Fatalf("resume: %v", err)
	}

	// The sweep's stale expiry attempt must lose.
	_, err = m.CompareAndTransition(ctx, s.ID, pkg.StateInactive, func(s *pkg.Session) error {
		s.State = pkg.StateClosed
		return nil
	})
	if !errors.Is(err, engine.ErrConflict) {
		t.Fatalf("stale expiry: got %v want ErrConflict", err)
	}
	got, _ := m.Get(ctx, s.ID)
	if got.State != pkg.StateWaitingForNurse {
		t.Fatalf("state: got %s want %s", got.State, pkg.StateWaitingForNurse)
	}
}

func TestReturnedSessionsAreCopies(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	s, _ := m.CreateIntake(ctx, "p1")

	got, _ := m.Get(ctx, s.ID)
	got.State = pkg.StateClosed
	got.IntakeAnswers = append(got.IntakeAnswers, pkg.IntakeAnswer{QuestionID: "x"})

	fresh, _ := m.Get(ctx, s.ID)
	if fresh.State != pkg.StateIntake || len(fresh.IntakeAnswers) != 0 {
		t.Fatalf("caller mutation leaked into store: %+v", fresh)
	}
}

func TestConcurrentTransitionsSerialize(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	s, _ := m.CreateIntake(ctx, "p1")

	const workers = 16
	var wg sync.WaitGroup
	wins := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.CompareAndTransition(ctx, s.ID, pkg.StateIntake, func(s *pkg.Session) error {
				s.State = pkg.StateUrgent
				s.Urgent = true
				return nil
			})
			if err == nil {
				wins <- struct{}{}
			} else if !errors.Is(err, engine.ErrConflict) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	if count != 1 {
		t.Fatalf("exactly one transition must win, got %d", count)
	}
}

func TestListNonTerminalFiltersAndSorts(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	a, _ := m.CreateIntake(ctx, "p1")
	b, _ := m.CreateIntake(ctx, "p2")
	if _, err := m.CompareAndTransition(ctx, a.ID, pkg.StateIntake, func(s *pkg.Session) error {
		s.State = pkg.StateClosed
		return nil
	}); err != nil {
		t.Fatalf("close: %v", err)
	}

	live, err := m.ListNonTerminal(ctx)
	if err != nil {
		t.Fatalf("ListNonTerminal: %v", err)
	}
	if len(live) != 1 || live[0].ID != b.ID {
		t.Fatalf("unexpected live set: %+v", live)
	}
}

func TestMessageLog(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	s, _ := m.CreateIntake(ctx, "p1")

	for _, content := range []string{"first", "second"} {
		if _, err := m.AppendMessage(ctx, pkg.Message{SessionID: s.ID, Role: pkg.RolePatient, Content: content, Phase: pkg.PhaseChat}); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
	}
	msgs, err := m.Messages(ctx, s.ID)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Content != "first" || msgs[1].Content != "second" {
		t.Fatalf("unexpected log: %+v", msgs)
	}
	if msgs[0].ID == msgs[1].ID {
		t.Fatal("message ids must be unique")
	}
}
