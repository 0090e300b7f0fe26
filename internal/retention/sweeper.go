// SPDX-License-Identifier: AGPL-3.0-only
package retention

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sligter/canctool/internal/config"
	"github.com/sligter/canctool/internal/logging"
	"github.com/sligter/canctool/internal/model"
)

// Sweeper prunes old usage rows on a cron schedule
type Sweeper struct {
	cron   *cron.Cron
	store  model.UsageStore
	maxAge time.Duration
	logger *logging.Logger
}

// NewSweeper creates a retention sweeper for the given store
func NewSweeper(cfg *config.RetentionConfig, store model.UsageStore, logger *logging.Logger) *Sweeper {
	if logger == nil {
		logger = logging.GetDefaultLogger()
	}
	return &Sweeper{
		cron: cron.New(
			cron.WithChain(
				cron.Recover(cron.DefaultLogger),
			),
		),
		store:  store,
		maxAge: cfg.MaxAge,
		logger: logger,
	}
}

// Start schedules the prune job and begins the cron loop. The sweeper stops
// when ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context, schedule string) error {
	if _, err := s.cron.AddFunc(schedule, s.sweep); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Infof("Usage retention sweeper started (schedule %q, max age %s)", schedule, s.maxAge)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop halts the cron loop and waits for a running sweep to finish
func (s *Sweeper) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
}

func (s *Sweeper) sweep() {
	cutoff := time.Now().Add(-s.maxAge)
	removed, err := s.store.PruneBefore(cutoff)
	if err != nil {
		s.logger.Errorf("Usage prune failed: %v", err)
		return
	}
	if removed > 0 {
		s.logger.Infof("Pruned %d usage rows older than %s", removed, cutoff.Format(time.RFC3339))
	}
}
