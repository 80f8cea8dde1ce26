// Package triage derives the nurse-facing queue from the session store.  It
// is a read-only projection recomputed on every read.
package triage

import (
	"context"
	"sort"

	"triageroom/internal/engine"
	"triageroom/pkg"
)

// Queue is the ordered triage view plus the urgent-case count surfaced as a
// dashboard badge.
type Queue struct {
	Entries     []pkg.QueueEntry `json:"entries"`
	UrgentCount int              `json:"urgent_count"`
}

// Project orders the given non-terminal sessions for nurse display: urgent
// cases first, then everything else, each group oldest activity first.
func Project(sessions []pkg.Session) Queue {
	entries := make([]pkg.QueueEntry, 0, len(sessions))
	urgent := 0
	for _, s := range sessions {
		if s.State.Terminal() {
			continue
		}
		if s.Urgent {
			urgent++
		}
		entries = append(entries, pkg.QueueEntry{
			SessionID:      s.ID,
			Subject:        s.Subject,
			State:          s.State,
			Urgent:         s.Urgent,
			UnreadByNurse:  s.UnreadByNurse,
			Summary:        s.Summary,
			LastActivityAt: s.LastActivityAt,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Urgent != entries[j].Urgent {
			return entries[i].Urgent
		}
		return entries[i].LastActivityAt.Before(entries[j].LastActivityAt)
	})
	return Queue{Entries: entries, UrgentCount: urgent}
}

// Load reads the store and projects the current queue.
func Load(ctx context.Context, store engine.Store) (Queue, error) {
	sessions, err := store.ListNonTerminal(ctx)
	if err != nil {
		return Queue{}, err
	}
	return Project(sessions), nil
}
