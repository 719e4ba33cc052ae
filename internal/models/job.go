package models

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of a queued job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusFailed    JobStatus = "FAILED"
	JobStatusCancelled JobStatus = "CANCELLED"
)

// IsTerminal reports whether the status is a final state.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Job is one unit of work in the per-platform queue. The payload is stored
// JSON-encoded in the KV store and the (job_id, priority) pair in the
// platform's sorted set.
type Job struct {
	JobID      string                 `json:"job_id"`
	WorkflowID string                 `json:"workflow_id"`
	Platform   string                 `json:"platform"`
	Priority   int                    `json:"priority"`
	Status     JobStatus              `json:"status"`
	Params     map[string]interface{} `json:"params"`
	CreatedAt  time.Time              `json:"created_at"`
	Error      string                 `json:"error,omitempty"`
}

// NewJob creates a pending job for a workflow on a platform.
func NewJob(workflowID, platform string, priority int, params map[string]interface{}) *Job {
	if params == nil {
		params = make(map[string]interface{})
	}
	return &Job{
		JobID:      uuid.New().String(),
		WorkflowID: workflowID,
		Platform:   platform,
		Priority:   priority,
		Status:     JobStatusPending,
		Params:     params,
		CreatedAt:  time.Now(),
	}
}

// TTL returns how long the job payload should live in the KV store for the
// job's current status. Bounds the lifetime of abandoned payloads.
func (j *Job) TTL() time.Duration {
	switch j.Status {
	case JobStatusPending:
		return time.Hour
	case JobStatusRunning:
		return 2 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// ParamString returns a string param and whether it was present.
func (j *Job) ParamString(key string) (string, bool) {
	v, ok := j.Params[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// ParamInt returns an int param and whether it was present. JSON round
// tripping stores numbers as float64, so both forms are accepted.
func (j *Job) ParamInt(key string) (int, bool) {
	switch v := j.Params[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// ParamBool returns a bool param, defaulting to false when absent.
func (j *Job) ParamBool(key string) bool {
	v, ok := j.Params[key].(bool)
	return ok && v
}
