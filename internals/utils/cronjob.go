package utils

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/sirupsen/logrus"
)

// SweepWorkspaces removes stale request workspaces, left over when a
// process died mid request.
func SweepWorkspaces(w *Workspaces, maxAge time.Duration, log logrus.FieldLogger) {
	removed, err := w.Sweep(maxAge)
	if err != nil {
		log.WithError(err).Error("Failed to sweep workspaces")
		return
	}
	if removed > 0 {
		log.WithField("removed", removed).Info("Removed stale workspaces")
	}
}

// PruneVisitors drops rate limiter entries idle for longer than idle.
func PruneVisitors(rl *RateLimiter, idle time.Duration, log logrus.FieldLogger) {
	if removed := rl.Prune(idle); removed > 0 {
		log.WithField("removed", removed).Debug("Pruned rate limiter visitors")
	}
}

// StartScheduler runs the housekeeping jobs every interval. The caller
// stops the returned scheduler on shutdown.
func StartScheduler(w *Workspaces, rl *RateLimiter, interval, maxAge, idle time.Duration, log logrus.FieldLogger) (*gocron.Scheduler, error) {
	scheduler := gocron.NewScheduler(time.Local)

	if _, err := scheduler.Every(interval).Do(SweepWorkspaces, w, maxAge, log); err != nil {
		return nil, fmt.Errorf("failed to schedule workspace sweep: %w", err)
	}
	if rl != nil {
		if _, err := scheduler.Every(interval).Do(PruneVisitors, rl, idle, log); err != nil {
			return nil, fmt.Errorf("failed to schedule visitor pruning: %w", err)
		}
	}

	scheduler.StartAsync()
	return scheduler, nil
}
