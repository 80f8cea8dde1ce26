// Package sweep drives the periodic timeout evaluation.  It carries no
// business knowledge: each tick delegates to the engine and reports what
// happened.
package sweep

import (
	"context"
	"log"
	"time"

	"triageroom/internal/engine"
)

// Sweeper triggers engine.Sweep on a fixed interval until its context is
// cancelled.
type Sweeper struct {
	Engine   *engine.Engine
	Interval time.Duration
}

// New constructs a sweeper over the engine with the given tick interval.
func New(eng *engine.Engine, interval time.Duration) *Sweeper {
	return &Sweeper{Engine: eng, Interval: interval}
}

// Run blocks, sweeping once per interval.  A failed pass is logged and the
// loop keeps going; a partial pass simply resumes on the next tick.
func (w *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats, err := w.Engine.Sweep(ctx)
			if err != nil {
				log.Printf("sweep: %v", err)
				continue
			}
			if stats.TimedOut > 0 || stats.Expired > 0 || stats.Errors > 0 {
				log.Printf("sweep: scanned=%d inactive=%d closed=%d skipped=%d errors=%d",
					stats.Scanned, stats.TimedOut, stats.Expired, stats.Skipped, stats.Errors)
			}
		}
	}
}
