package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/peritus-ai/peritus/internal/common"
	"github.com/peritus-ai/peritus/internal/interfaces"
	"github.com/peritus-ai/peritus/internal/models"
)

// Scheduler periodically rebuilds dataset indexes that are pending or
// failed, so heavy index work happens off the consult path. Builds go
// through the consult service's coordination, so a scheduled build and a
// consult-triggered build of the same dataset never run twice.
type Scheduler struct {
	config  *common.ProcessingConfig
	storage interfaces.StorageManager
	consult interfaces.ConsultService
	cron    *cron.Cron
	mu      sync.Mutex
	running bool
	logger  arbor.ILogger
}

// NewScheduler creates a new reindex scheduler
func NewScheduler(config *common.ProcessingConfig, storage interfaces.StorageManager, consult interfaces.ConsultService, logger arbor.ILogger) *Scheduler {
	return &Scheduler{
		config:  config,
		storage: storage,
		consult: consult,
		cron:    cron.New(),
		logger:  logger,
	}
}

// Start registers the cron entry and begins scheduling
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.config.Enabled {
		s.logger.Info().Msg("Reindex scheduler disabled")
		return nil
	}
	if s.running {
		return nil
	}

	schedule := s.config.Schedule
	if schedule == "" {
		schedule = "0 */6 * * *"
	}

	if _, err := s.cron.AddFunc(schedule, s.runOnce); err != nil {
		return fmt.Errorf("invalid reindex schedule %q: %w", schedule, err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info().Str("schedule", schedule).Msg("Reindex scheduler started")
	return nil
}

// Stop halts scheduling and waits for a running pass to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false
	s.logger.Info().Msg("Reindex scheduler stopped")
}

// runOnce walks every user's datasets and rebuilds the ones whose index
// is absent or stale, up to the configured per-pass limit.
func (s *Scheduler) runOnce() {
	ctx := context.Background()

	users, err := s.storage.UserStorage().ListUsers(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Reindex pass failed to list users")
		return
	}

	built := 0
	failed := 0
	for _, user := range users {
		datasets, err := s.storage.DatasetStorage().ListDatasets(ctx, user.ID)
		if err != nil {
			s.logger.Error().Err(err).Str("user_id", user.ID).Msg("Reindex pass failed to list datasets")
			continue
		}

		for _, dataset := range datasets {
			if dataset.Status == models.DatasetStatusIndexed {
				continue
			}
			if len(dataset.Sources) == 0 {
				continue
			}
			if s.config.Limit > 0 && built+failed >= s.config.Limit {
				s.logger.Info().Int("limit", s.config.Limit).Msg("Reindex pass hit build limit")
				s.logPass(built, failed)
				return
			}

			if err := s.consult.BuildDataset(ctx, user.ID, dataset.Name); err != nil {
				failed++
				s.logger.Warn().Err(err).Str("user_id", user.ID).Str("dataset", dataset.Name).Msg("Scheduled index build failed")
				continue
			}
			built++
		}
	}

	s.logPass(built, failed)
}

func (s *Scheduler) logPass(built, failed int) {
	if built == 0 && failed == 0 {
		s.logger.Debug().Msg("Reindex pass found nothing to build")
		return
	}
	s.logger.Info().Int("built", built).Int("failed", failed).Msg("Reindex pass complete")
}
