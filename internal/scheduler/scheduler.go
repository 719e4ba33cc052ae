package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/prodwatch/veriscan/internal/interfaces"
	"github.com/prodwatch/veriscan/internal/models"
	"github.com/prodwatch/veriscan/internal/pipeline"
)

// Scheduler enqueues periodic validation jobs per platform from cron
// expressions. It only produces jobs; the worker loops consume them.
type Scheduler struct {
	cron   *cron.Cron
	queue  interfaces.JobQueue
	logger arbor.ILogger
}

// New builds an empty scheduler.
func New(queue interfaces.JobQueue, logger arbor.ILogger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		queue:  queue,
		logger: logger,
	}
}

// AddPlatformSchedule registers a cron entry that enqueues one
// product-validation job for the platform on each tick.
func (s *Scheduler) AddPlatformSchedule(platform, spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		job := models.NewJob(pipeline.WorkflowProductValidation, platform, 0, nil)
		if err := s.queue.EnqueueJob(context.Background(), job); err != nil {
			s.logger.Error().Err(err).
				Str("platform", platform).
				Msg("Scheduled enqueue failed")
			return
		}
		s.logger.Info().
			Str("platform", platform).
			Str("job_id", job.JobID).
			Msg("Scheduled validation job enqueued")
	})
	if err != nil {
		return fmt.Errorf("add schedule for %s: %w", platform, err)
	}
	return nil
}

// Configure registers every platform schedule from the config map.
func (s *Scheduler) Configure(schedules map[string]string) error {
	for platform, spec := range schedules {
		if err := s.AddPlatformSchedule(platform, spec); err != nil {
			return err
		}
	}
	return nil
}

// Start begins firing schedules.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Int("entries", len(s.cron.Entries())).Msg("Scheduler started")
}

// Stop halts the schedules and waits for running enqueue callbacks.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("Scheduler stopped")
}
