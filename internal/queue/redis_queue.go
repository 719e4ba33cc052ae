package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/ternarybob/arbor"

	"github.com/prodwatch/veriscan/internal/interfaces"
	"github.com/prodwatch/veriscan/internal/models"
)

// KV layout: sorted set per platform ordered by priority, job payload in a
// hash under one "data" field, rate-limit anchor as a millisecond string.
const (
	queueKeyPrefix   = "workflow:queue:platform:"
	jobKeyPrefix     = "workflow:job:"
	trackerKeyPrefix = "workflow:tracker:ratelimit:"
)

// RedisQueue implements the per-platform priority queue on Redis sorted
// sets. All mutations go through pipelines; dequeue is compare-and-delete.
type RedisQueue struct {
	rdb    *redis.Client
	logger arbor.ILogger
}

var _ interfaces.JobQueue = (*RedisQueue)(nil)

// NewRedisQueue wires the queue on an existing client.
func NewRedisQueue(rdb *redis.Client, logger arbor.ILogger) *RedisQueue {
	return &RedisQueue{rdb: rdb, logger: logger}
}

func queueKey(platform string) string { return queueKeyPrefix + platform }
func jobKey(jobID string) string      { return jobKeyPrefix + jobID }
func trackerKey(platform string) string {
	return trackerKeyPrefix + platform
}

// EnqueueJob adds (job_id, priority) to the platform set and writes the
// payload with the PENDING TTL, atomically.
func (q *RedisQueue) EnqueueJob(ctx context.Context, job *models.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	pipe := q.rdb.TxPipeline()
	pipe.ZAdd(ctx, queueKey(job.Platform), redis.Z{
		Score:  float64(job.Priority),
		Member: job.JobID,
	})
	pipe.HSet(ctx, jobKey(job.JobID), "data", payload)
	pipe.Expire(ctx, jobKey(job.JobID), job.TTL())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("enqueue job %s: %w", job.JobID, err)
	}

	q.logger.Debug().
		Str("job_id", job.JobID).
		Str("platform", job.Platform).
		Int("priority", job.Priority).
		Msg("Job enqueued")
	return nil
}

// DequeueJobByPlatform pops the highest-priority job. ZRem returning 0 means
// another worker won the race; the caller just polls again.
func (q *RedisQueue) DequeueJobByPlatform(ctx context.Context, platform string) (*models.Job, error) {
	members, err := q.rdb.ZRevRangeWithScores(ctx, queueKey(platform), 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("peek queue %s: %w", platform, err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	jobID, ok := members[0].Member.(string)
	if !ok {
		return nil, fmt.Errorf("unexpected member type in queue %s", platform)
	}

	removed, err := q.rdb.ZRem(ctx, queueKey(platform), jobID).Result()
	if err != nil {
		return nil, fmt.Errorf("remove job %s: %w", jobID, err)
	}
	if removed == 0 {
		// Lost the race to another worker.
		return nil, nil
	}

	data, err := q.rdb.HGet(ctx, jobKey(jobID), "data").Result()
	if err == redis.Nil {
		// Payload expired while queued; treat as an empty poll.
		q.logger.Warn().Str("job_id", jobID).Msg("Dequeued job payload already expired")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", jobID, err)
	}

	var job models.Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", jobID, err)
	}
	return &job, nil
}

// GetJob loads a job payload by id.
func (q *RedisQueue) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	data, err := q.rdb.HGet(ctx, jobKey(jobID), "data").Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", jobID, err)
	}
	var job models.Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", jobID, err)
	}
	return &job, nil
}

// UpdateJob rewrites the payload in place and adjusts the TTL to the job's
// current status.
func (q *RedisQueue) UpdateJob(ctx context.Context, job *models.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	pipe := q.rdb.TxPipeline()
	pipe.HSet(ctx, jobKey(job.JobID), "data", payload)
	pipe.Expire(ctx, jobKey(job.JobID), job.TTL())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("update job %s: %w", job.JobID, err)
	}
	return nil
}

// ClearQueue drains the platform set and deletes every queued payload.
func (q *RedisQueue) ClearQueue(ctx context.Context, platform string) error {
	jobIDs, err := q.rdb.ZRange(ctx, queueKey(platform), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("list queue %s: %w", platform, err)
	}

	pipe := q.rdb.TxPipeline()
	for _, jobID := range jobIDs {
		pipe.Del(ctx, jobKey(jobID))
	}
	pipe.Del(ctx, queueKey(platform))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("clear queue %s: %w", platform, err)
	}

	q.logger.Info().
		Str("platform", platform).
		Int("jobs", len(jobIDs)).
		Msg("Queue cleared")
	return nil
}

// QueueLength returns the number of queued jobs for a platform.
func (q *RedisQueue) QueueLength(ctx context.Context, platform string) (int64, error) {
	return q.rdb.ZCard(ctx, queueKey(platform)).Result()
}

// GetRateLimitTracker returns the ms timestamp of the last dequeued job's
// start, or 0 when no job has run yet.
func (q *RedisQueue) GetRateLimitTracker(ctx context.Context, platform string) (int64, error) {
	val, err := q.rdb.Get(ctx, trackerKey(platform)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get rate limit tracker %s: %w", platform, err)
	}
	ms, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse rate limit tracker %s: %w", platform, err)
	}
	return ms, nil
}

// SetRateLimitTracker records the start of the latest dequeued job.
func (q *RedisQueue) SetRateLimitTracker(ctx context.Context, platform string, ms int64) error {
	if err := q.rdb.Set(ctx, trackerKey(platform), strconv.FormatInt(ms, 10), 0).Err(); err != nil {
		return fmt.Errorf("set rate limit tracker %s: %w", platform, err)
	}
	return nil
}
