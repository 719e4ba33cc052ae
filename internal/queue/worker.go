package queue

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/prodwatch/veriscan/internal/interfaces"
	"github.com/prodwatch/veriscan/internal/models"
)

// JobRunner executes a dequeued job. The pipeline executor satisfies this
// through a thin adapter in cmd.
type JobRunner interface {
	Run(ctx context.Context, job *models.Job) error
}

// Worker is a single per-platform dequeue loop. Platforms never share a
// worker, so jobs for one platform run strictly one at a time while other
// platforms proceed independently.
type Worker struct {
	platform     string
	cfg          *models.PlatformConfig
	queue        interfaces.JobQueue
	runner       JobRunner
	pollInterval time.Duration
	logger       arbor.ILogger
}

// NewWorker builds a dequeue loop for one platform.
func NewWorker(platform string, cfg *models.PlatformConfig, queue interfaces.JobQueue, runner JobRunner, pollInterval time.Duration, logger arbor.ILogger) *Worker {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	return &Worker{
		platform:     platform,
		cfg:          cfg,
		queue:        queue,
		runner:       runner,
		pollInterval: pollInterval,
		logger:       logger,
	}
}

// Run polls until ctx is cancelled. A job in flight always finishes: the
// runner gets a context detached from the loop's cancellation.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info().Str("platform", w.platform).Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Str("platform", w.platform).Msg("Worker stopped")
			return
		default:
		}

		job, err := w.queue.DequeueJobByPlatform(ctx, w.platform)
		if err != nil {
			w.logger.Error().Err(err).Str("platform", w.platform).Msg("Dequeue failed")
			w.sleep(ctx, w.pollInterval)
			continue
		}
		if job == nil {
			w.sleep(ctx, w.pollInterval)
			continue
		}

		if !w.waitForRateLimit(ctx) {
			// Shutdown hit before the job started; requeue it so a later
			// worker can pick it up.
			if reErr := w.queue.EnqueueJob(context.WithoutCancel(ctx), job); reErr != nil {
				w.logger.Warn().Err(reErr).Str("job_id", job.JobID).Msg("Failed to requeue job on shutdown")
			}
			return
		}

		w.execute(context.WithoutCancel(ctx), job)
	}
}

// waitForRateLimit enforces the per-platform spacing against the shared
// tracker and advances it before the job starts, so a second worker (or a
// restart) measures from this job's start rather than its end.
func (w *Worker) waitForRateLimit(ctx context.Context) bool {
	waitTime := w.cfg.WaitTime()
	if waitTime > 0 {
		last, err := w.queue.GetRateLimitTracker(ctx, w.platform)
		if err != nil {
			w.logger.Warn().Err(err).Str("platform", w.platform).Msg("Rate limit tracker read failed")
		} else if last > 0 {
			elapsed := time.Duration(time.Now().UnixMilli()-last) * time.Millisecond
			if remaining := waitTime - elapsed; remaining > 0 {
				w.logger.Debug().
					Str("platform", w.platform).
					Dur("wait", remaining).
					Msg("Rate limit wait before job")
				if !w.sleep(ctx, remaining) {
					return false
				}
			}
		}
	}

	if err := w.queue.SetRateLimitTracker(ctx, w.platform, time.Now().UnixMilli()); err != nil {
		w.logger.Warn().Err(err).Str("platform", w.platform).Msg("Rate limit tracker write failed")
	}
	return true
}

func (w *Worker) execute(ctx context.Context, job *models.Job) {
	start := time.Now()

	job.Status = models.JobStatusRunning
	if err := w.queue.UpdateJob(ctx, job); err != nil {
		w.logger.Warn().Err(err).Str("job_id", job.JobID).Msg("Failed to mark job running")
	}

	w.logger.Info().
		Str("job_id", job.JobID).
		Str("platform", w.platform).
		Str("workflow_id", job.WorkflowID).
		Msg("Job started")

	runErr := w.runner.Run(ctx, job)
	if runErr != nil {
		job.Status = models.JobStatusFailed
		job.Error = runErr.Error()
		w.logger.Error().Err(runErr).
			Str("job_id", job.JobID).
			Str("platform", w.platform).
			Dur("duration", time.Since(start)).
			Msg("Job failed")
	} else {
		job.Status = models.JobStatusCompleted
		job.Error = ""
		w.logger.Info().
			Str("job_id", job.JobID).
			Str("platform", w.platform).
			Dur("duration", time.Since(start)).
			Msg("Job completed")
	}

	if err := w.queue.UpdateJob(ctx, job); err != nil {
		w.logger.Error().Err(err).Str("job_id", job.JobID).Msg("Failed to persist job status")
	}
}

// sleep waits for d or until ctx is cancelled; returns false on cancel.
func (w *Worker) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Manager runs one Worker per configured platform.
type Manager struct {
	workers []*Worker
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	logger  arbor.ILogger
}

// NewManager builds workers for every platform in configs.
func NewManager(configs map[string]*models.PlatformConfig, queue interfaces.JobQueue, runner JobRunner, pollInterval time.Duration, logger arbor.ILogger) *Manager {
	m := &Manager{logger: logger}
	for platform, cfg := range configs {
		m.workers = append(m.workers, NewWorker(platform, cfg, queue, runner, pollInterval, logger))
	}
	return m
}

// Start launches every worker loop.
func (m *Manager) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	for _, w := range m.workers {
		m.wg.Add(1)
		go func(w *Worker) {
			defer m.wg.Done()
			w.Run(ctx)
		}(w)
	}
	m.logger.Info().Int("workers", len(m.workers)).Msg("Worker manager started")
}

// Stop cancels the loops and waits for in-flight jobs to finish.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.logger.Info().Msg("Worker manager stopped")
}
