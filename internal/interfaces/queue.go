package interfaces

import (
	"context"

	"github.com/prodwatch/veriscan/internal/models"
)

// JobQueue is the per-platform priority queue backed by the KV store.
// Dequeue is compare-and-delete: under contention each enqueued job is
// returned by exactly one caller.
type JobQueue interface {
	EnqueueJob(ctx context.Context, job *models.Job) error
	DequeueJobByPlatform(ctx context.Context, platform string) (*models.Job, error)
	GetJob(ctx context.Context, jobID string) (*models.Job, error)
	UpdateJob(ctx context.Context, job *models.Job) error
	ClearQueue(ctx context.Context, platform string) error
	QueueLength(ctx context.Context, platform string) (int64, error)

	// Rate-limit anchor: wall-clock ms of the last dequeued job's start.
	GetRateLimitTracker(ctx context.Context, platform string) (int64, error)
	SetRateLimitTracker(ctx context.Context, platform string, ms int64) error
}
