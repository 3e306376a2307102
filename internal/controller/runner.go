// internal/controller/runner.go
package controller

import (
	"context"
	"time"
)

// Run starts the ticker loop. One goroutine, no overlap: each tick runs
// to completion before the next fires.
func (c *Controller) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(c.cfg.Control.TickIntervalMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.Tick(now)
		}
	}
}
