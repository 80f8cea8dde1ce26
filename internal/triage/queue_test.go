package triage

import (
	"testing"
	"time"

	"triageroom/pkg"
)

func at(t *testing.T, clock string) time.Time {
	t.Helper()
	ts, err := time.Parse("15:04", clock)
	if err != nil {
		t.Fatal(err)
	}
	return ts
}

func TestProjectOrdersUrgentFirstThenOldestActivity(t *testing.T) {
	sessions := []pkg.Session{
		{ID: "plain", State: pkg.StateWaitingForNurse, LastActivityAt: at(t, "09:50")},
		{ID: "urgent-late", State: pkg.StateUrgent, Urgent: true, LastActivityAt: at(t, "10:05")},
		{ID: "urgent-early", State: pkg.StateUrgent, Urgent: true, LastActivityAt: at(t, "10:00")},
	}

	q := Project(sessions)
	want := []string{"urgent-early", "urgent-late", "plain"}
	if len(q.Entries) != len(want) {
		t.Fatalf("entries: got %d want %d", len(q.Entries), len(want))
	}
	for i, id := range want {
		if q.Entries[i].SessionID != id {
			t.Fatalf("position %d: got %s want %s", i, q.Entries[i].SessionID, id)
		}
	}
	if q.UrgentCount != 2 {
		t.Fatalf("urgent count: got %d want 2", q.UrgentCount)
	}
}

func TestProjectExcludesTerminalSessions(t *testing.T) {
	sessions := []pkg.Session{
		{ID: "open", State: pkg.StateWaitingForNurse, LastActivityAt: at(t, "10:00")},
		{ID: "done", State: pkg.StateCompleted, LastActivityAt: at(t, "09:00")},
		{ID: "gone", State: pkg.StateClosed, LastActivityAt: at(t, "08:00")},
		{ID: "parked", State: pkg.StateInactive, LastActivityAt: at(t, "09:30")},
	}

	q := Project(sessions)
	if len(q.Entries) != 2 {
		t.Fatalf("entries: got %d want 2", len(q.Entries))
	}
	if q.Entries[0].SessionID != "parked" || q.Entries[1].SessionID != "open" {
		t.Fatalf("unexpected order: %s, %s", q.Entries[0].SessionID, q.Entries[1].SessionID)
	}
}

func TestProjectEmpty(t *testing.T) {
	q := Project(nil)
	if len(q.Entries) != 0 || q.UrgentCount != 0 {
		t.Fatalf("empty projection: %+v", q)
	}
}
