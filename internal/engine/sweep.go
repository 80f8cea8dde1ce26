package engine

import (
	"context"
	"errors"
	"log"

	"triageroom/internal/core"
	"triageroom/pkg"
)

// SweepStats summarises one pass of the timeout sweep.
type SweepStats struct {
	Scanned  int
	TimedOut int
	Expired  int
	Skipped  int
	Errors   int
}

// Sweep evaluates the timeout policy over every non-terminal session.  A
// session whose urgent flag is set is skipped unconditionally, whatever its
// nominal state.  Per-session failures are logged and never halt the sweep;
// losing a race to a user-triggered transition is expected and benign.
// Re-running the sweep is idempotent: a session already inactive and still
// within its grace period is left alone.
func (e *Engine) Sweep(ctx context.Context) (SweepStats, error) {
	sessions, err := e.Store.ListNonTerminal(ctx)
	if err != nil {
		return SweepStats{}, err
	}
	now := e.Now()
	var stats SweepStats
	for i := range sessions {
		s := &sessions[i]
		stats.Scanned++
		if s.Urgent {
			stats.Skipped++
			continue
		}
		idle := now.Sub(s.LastActivityAt)
		switch s.State {
		case pkg.StateIntake, pkg.StateWaitingForNurse, pkg.StateNurseActive:
			if idle < e.SoftTimeout {
				continue
			}
			// Scheduler transitions read but never advance
			// LastActivityAt, so the hard-expiry clock keeps
			// counting from the last real activity.
			_, err := e.Store.CompareAndTransition(ctx, s.ID, s.State, func(s *pkg.Session) error {
				if s.Urgent {
					return nil
				}
				s.State = pkg.StateInactive
				return nil
			})
			if err != nil {
				stats.Errors++
				if !errors.Is(err, ErrConflict) {
					log.Printf("sweep: session %s: soft timeout: %v", s.ID, err)
				}
				continue
			}
			stats.TimedOut++
			e.systemMessage(ctx, s.ID, core.MsgMarkedInactive, pkg.PhaseSystem)
		case pkg.StateInactive:
			if idle < e.SoftTimeout+e.GracePeriod {
				continue
			}
			_, err := e.Store.CompareAndTransition(ctx, s.ID, pkg.StateInactive, func(s *pkg.Session) error {
				if s.Urgent {
					return nil
				}
				s.State = pkg.StateClosed
				return nil
			})
			if err != nil {
				stats.Errors++
				if !errors.Is(err, ErrConflict) {
					log.Printf("sweep: session %s: hard expiry: %v", s.ID, err)
				}
				continue
			}
			stats.Expired++
			e.systemMessage(ctx, s.ID, core.MsgClosed, pkg.PhaseSystem)
		}
	}
	return stats, nil
}
