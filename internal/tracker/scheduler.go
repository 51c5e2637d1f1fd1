package tracker

import (
	"context"
	"time"
)

const tickInterval = time.Minute

// RunFlushLoop flushes all active sessions once a minute until ctx is
// cancelled. A failed tick is logged and retried on the next interval.
func (t *Tracker) RunFlushLoop(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := t.SyncActiveSessions(""); err != nil {
				t.logger.Error("session flush failed", "error", err)
			}
		}
	}
}

// RunResetLoop runs the periodic reset check once a minute until ctx is
// cancelled. A failed tick is logged and retried on the next interval.
func (t *Tracker) RunResetLoop(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := t.HandlePeriodicResets(); err != nil {
				t.logger.Error("periodic reset check failed", "error", err)
			}
		}
	}
}
