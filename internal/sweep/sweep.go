// Package sweep prunes old journal entries on a cron schedule.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Journal is the pruning capability the sweeper needs.
type Journal interface {
	Prune(cutoff time.Time) (int64, error)
}

// Sweeper runs a daily retention pass over the job journal.
type Sweeper struct {
	cron      *cron.Cron
	journal   Journal
	retention time.Duration
	logger    *slog.Logger
}

// New creates a sweeper that keeps entries younger than retention.
func New(journal Journal, retention time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		cron:      cron.New(),
		journal:   journal,
		retention: retention,
		logger:    logger,
	}
}

// Start schedules the daily sweep and blocks until context is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc("@daily", s.runOnce); err != nil {
		return fmt.Errorf("sweep: schedule: %w", err)
	}
	s.cron.Start()
	s.logger.Info("journal sweep scheduled", "retention", s.retention)

	<-ctx.Done()
	s.cron.Stop()
	s.logger.Info("journal sweep stopped")
	return ctx.Err()
}

func (s *Sweeper) runOnce() {
	cutoff := time.Now().Add(-s.retention)
	n, err := s.journal.Prune(cutoff)
	if err != nil {
		s.logger.Error("journal prune failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("journal pruned", "removed", n, "cutoff", cutoff)
	}
}
