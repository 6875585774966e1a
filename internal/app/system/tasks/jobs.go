// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper forgets idle dashboard sessions. *dashsession.Manager satisfies it.
type Sweeper interface {
	Sweep(idle time.Duration) int
}

// Pruner deletes usage documents older than a cutoff.
// *usagestore.Store satisfies it.
type Pruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// SessionSweepJob closes dashboard sessions that have not been opened
// within idle, cancelling any fetch they still have in flight.
func SessionSweepJob(s Sweeper, idle time.Duration, logger *zap.Logger) Job {
	return Job{
		Name:     "dashboard-session-sweep",
		Interval: time.Minute,
		Run: func(ctx context.Context) error {
			if n := s.Sweep(idle); n > 0 {
				logger.Info("swept idle dashboard sessions",
					zap.Int("removed", n),
					zap.Duration("idle", idle))
			}
			return nil
		},
	}
}

// UsageRetentionJob deletes usage counters older than retain.
func UsageRetentionJob(p Pruner, retain time.Duration, logger *zap.Logger) Job {
	return Job{
		Name:     "usage-retention",
		Interval: 6 * time.Hour,
		Timeout:  time.Minute,
		Run: func(ctx context.Context) error {
			n, err := p.DeleteOlderThan(ctx, time.Now().Add(-retain))
			if err != nil {
				return err
			}
			if n > 0 {
				logger.Info("pruned old usage stats",
					zap.Int64("deleted", n),
					zap.Duration("retain", retain))
			}
			return nil
		},
	}
}
