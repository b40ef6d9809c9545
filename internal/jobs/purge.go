// Package jobs holds the periodic maintenance work run by the worker.
package jobs

import (
	"context"
	"time"

	"learncenter/internal/logger"
)

// Purger deletes access codes that expired more than retention ago.
type Purger interface {
	Purge(ctx context.Context, retention time.Duration) (int, error)
}

// CodePurge is the expired access code cleanup job.
type CodePurge struct {
	Codes     Purger
	Interval  time.Duration
	Retention time.Duration
	Timeout   time.Duration
	Log       *logger.Logger
}

// Run purges once immediately and then on every tick until ctx is done.
func (j CodePurge) Run(ctx context.Context) {
	interval := j.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.tick(ctx)
		}
	}
}

func (j CodePurge) tick(ctx context.Context) {
	timeout := j.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	tickCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	n, err := j.Codes.Purge(tickCtx, j.Retention)
	if err != nil {
		j.Log.Error("access code purge failed", err)
		return
	}
	if n > 0 {
		j.Log.Info("purged expired access codes", logger.Fields{"count": n})
	}
}
