package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/prodwatch/veriscan/internal/common"
	"github.com/prodwatch/veriscan/internal/models"
)

type recordingRunner struct {
	mu   sync.Mutex
	runs []string
	errs map[string]error
	done chan string
}

func newRecordingRunner() *recordingRunner {
	return &recordingRunner{errs: map[string]error{}, done: make(chan string, 16)}
}

func (r *recordingRunner) Run(_ context.Context, job *models.Job) error {
	r.mu.Lock()
	r.runs = append(r.runs, job.JobID)
	r.mu.Unlock()
	r.done <- job.JobID
	return r.errs[job.JobID]
}

func (r *recordingRunner) ran() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.runs...)
}

func workerFixture(t *testing.T, waitTimeMs int) (*RedisQueue, *models.PlatformConfig, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := &models.PlatformConfig{Platform: "oliveyoung"}
	cfg.Workflow.RateLimit.WaitTimeMs = waitTimeMs
	return NewRedisQueue(rdb, common.GetLogger()), cfg, mr
}

func waitForJob(t *testing.T, runner *recordingRunner, jobID string) {
	t.Helper()
	select {
	case id := <-runner.done:
		assert.Equal(t, jobID, id)
	case <-time.After(5 * time.Second):
		t.Fatalf("job %s never ran", jobID)
	}
}

func TestWorkerExecutesJob(t *testing.T) {
	q, cfg, _ := workerFixture(t, 0)
	runner := newRecordingRunner()

	job := models.NewJob("product-validation", "oliveyoung", 0, nil)
	require.NoError(t, q.EnqueueJob(context.Background(), job))

	ctx, cancel := context.WithCancel(context.Background())
	w := NewWorker("oliveyoung", cfg, q, runner, 10*time.Millisecond, common.GetLogger())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.Run(ctx)
	}()

	waitForJob(t, runner, job.JobID)
	cancel()
	wg.Wait()

	stored, err := q.GetJob(context.Background(), job.JobID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, models.JobStatusCompleted, stored.Status)
	assert.Empty(t, stored.Error)
}

func TestWorkerMarksFailedJob(t *testing.T) {
	q, cfg, _ := workerFixture(t, 0)
	runner := newRecordingRunner()

	job := models.NewJob("product-validation", "oliveyoung", 0, nil)
	runner.errs[job.JobID] = errors.New("all scan batches failed")
	require.NoError(t, q.EnqueueJob(context.Background(), job))

	ctx, cancel := context.WithCancel(context.Background())
	w := NewWorker("oliveyoung", cfg, q, runner, 10*time.Millisecond, common.GetLogger())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.Run(ctx)
	}()

	waitForJob(t, runner, job.JobID)
	cancel()
	wg.Wait()

	stored, err := q.GetJob(context.Background(), job.JobID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, models.JobStatusFailed, stored.Status)
	assert.Equal(t, "all scan batches failed", stored.Error)
}

func TestWorkerAdvancesRateTrackerAtStart(t *testing.T) {
	q, cfg, _ := workerFixture(t, 60_000)
	runner := newRecordingRunner()

	job := models.NewJob("product-validation", "oliveyoung", 0, nil)
	require.NoError(t, q.EnqueueJob(context.Background(), job))

	before := time.Now().UnixMilli()

	ctx, cancel := context.WithCancel(context.Background())
	w := NewWorker("oliveyoung", cfg, q, runner, 10*time.Millisecond, common.GetLogger())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.Run(ctx)
	}()

	waitForJob(t, runner, job.JobID)
	cancel()
	wg.Wait()

	// With no prior tracker there is no wait, and the tracker records this
	// job's start.
	ms, err := q.GetRateLimitTracker(context.Background(), "oliveyoung")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, ms, before)
	assert.LessOrEqual(t, ms, time.Now().UnixMilli())
}

func TestWorkerRequeuesWhenCancelledDuringRateWait(t *testing.T) {
	q, cfg, _ := workerFixture(t, 60_000)
	runner := newRecordingRunner()
	ctx := context.Background()

	// A fresh tracker forces a near-full wait before the next job.
	require.NoError(t, q.SetRateLimitTracker(ctx, "oliveyoung", time.Now().UnixMilli()))

	job := models.NewJob("product-validation", "oliveyoung", 0, nil)
	require.NoError(t, q.EnqueueJob(ctx, job))

	runCtx, cancel := context.WithCancel(ctx)
	w := NewWorker("oliveyoung", cfg, q, runner, 10*time.Millisecond, common.GetLogger())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.Run(runCtx)
	}()

	// Give the loop time to dequeue and enter the rate wait, then shut down.
	time.Sleep(200 * time.Millisecond)
	cancel()
	wg.Wait()

	assert.Empty(t, runner.ran())
	n, err := q.QueueLength(ctx, "oliveyoung")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestManagerRunsPlatformsIndependently(t *testing.T) {
	q, cfg, _ := workerFixture(t, 0)
	runner := newRecordingRunner()

	ablyCfg := &models.PlatformConfig{Platform: "ably"}
	configs := map[string]*models.PlatformConfig{
		"oliveyoung": cfg,
		"ably":       ablyCfg,
	}

	ctx := context.Background()
	jobA := models.NewJob("product-validation", "oliveyoung", 0, nil)
	jobB := models.NewJob("product-validation", "ably", 0, nil)
	require.NoError(t, q.EnqueueJob(ctx, jobA))
	require.NoError(t, q.EnqueueJob(ctx, jobB))

	m := NewManager(configs, q, runner, 10*time.Millisecond, common.GetLogger())
	m.Start(ctx)

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case id := <-runner.done:
			seen[id] = true
		case <-time.After(5 * time.Second):
			t.Fatal("jobs did not run")
		}
	}
	m.Stop()

	assert.True(t, seen[jobA.JobID])
	assert.True(t, seen[jobB.JobID])
}
