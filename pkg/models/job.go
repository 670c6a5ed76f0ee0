package models

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of a job
type JobStatus string

// JobType identifies the handler that executes a job
type JobType string

// Built-in job types
const (
	JobTypeSleep     JobType = "sleep"
	JobTypeWordCount JobType = "word_count"
	JobTypeThumbnail JobType = "thumbnail"
)

// Defaults applied at submission time
const (
	DefaultPriority          = 5
	DefaultEstimatedDuration = 1.0
	DefaultMaxRetries        = 3
	MinPriority              = 1
	MaxPriority              = 10
)

// Job is the unit of work tracked by the store
type Job struct {
	ID                string                 `json:"id"`
	Name              string                 `json:"name"`
	JobType           JobType                `json:"job_type"`
	Payload           map[string]interface{} `json:"payload,omitempty"`
	Priority          int                    `json:"priority"`
	EstimatedDuration float64                `json:"estimated_duration"`
	Status            JobStatus              `json:"status"`
	RetryCount        int                    `json:"retry_count"`
	MaxRetries        int                    `json:"max_retries"`
	Error             string                 `json:"error,omitempty"`
	Result            map[string]interface{} `json:"result,omitempty"`
	CreatedAt         time.Time              `json:"created_at"`
	ScheduledAt       *time.Time             `json:"scheduled_at,omitempty"`
	StartedAt         *time.Time             `json:"started_at,omitempty"`
	FinishedAt        *time.Time             `json:"finished_at,omitempty"`
}

// NewJob builds a PENDING job from a normalized request
func NewJob(req *NormalizedRequest) *Job {
	return &Job{
		ID:                uuid.New().String(),
		Name:              req.Name,
		JobType:           req.JobType,
		Payload:           req.Payload,
		Priority:          req.Priority,
		EstimatedDuration: req.EstimatedDuration,
		Status:            JobStatusPending,
		RetryCount:        0,
		MaxRetries:        req.MaxRetries,
		CreatedAt:         time.Now().UTC(),
	}
}

// ScheduleSummary is the slim view of a job that scheduling policies order.
// Policies never see the full row; the engine builds summaries from
// ClaimPending results.
type ScheduleSummary struct {
	ID                string
	JobType           JobType
	Priority          int
	EstimatedDuration float64
	CreatedAt         time.Time
}

// Summary extracts the scheduling view of a job
func (j *Job) Summary() ScheduleSummary {
	return ScheduleSummary{
		ID:                j.ID,
		JobType:           j.JobType,
		Priority:          j.Priority,
		EstimatedDuration: j.EstimatedDuration,
		CreatedAt:         j.CreatedAt,
	}
}

// CanCancel reports whether the job may still be removed by the user.
// Once a job is RUNNING or terminal it is past the point of cancellation.
func (j *Job) CanCancel() bool {
	return j.Status == JobStatusPending || j.Status == JobStatusScheduled
}

// RetriesExhausted reports whether another retry would exceed max_retries
func (j *Job) RetriesExhausted() bool {
	return j.RetryCount+1 > j.MaxRetries
}
