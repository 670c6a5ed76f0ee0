package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/srivatsav09/JobScheduler/pkg/logging"
	"github.com/srivatsav09/JobScheduler/pkg/metrics"
	"github.com/srivatsav09/JobScheduler/pkg/models"
	"github.com/srivatsav09/JobScheduler/pkg/queue"
	"github.com/srivatsav09/JobScheduler/pkg/store"
)

// RetryHandler decides the fate of a failed RUNNING job: another retry
// through the PENDING pool, or permanent failure plus a dead letter.
type RetryHandler struct {
	store     store.Store
	transport queue.Transport
	logger    *logging.Logger
	metrics   *metrics.Collector
}

// NewRetryHandler creates a retry handler
func NewRetryHandler(s store.Store, t queue.Transport, logger *logging.Logger, m *metrics.Collector) *RetryHandler {
	return &RetryHandler{store: s, transport: t, logger: logger, metrics: m}
}

// HandleFailure routes a failed job. permanent forces the dead letter
// path regardless of remaining retries (unknown job type, poison input).
func (r *RetryHandler) HandleFailure(ctx context.Context, job *models.Job, execErr error, permanent bool) error {
	if permanent || job.RetriesExhausted() {
		return r.failPermanently(ctx, job, execErr)
	}
	return r.scheduleRetry(job, execErr)
}

// scheduleRetry walks the job through the visible RETRIED state and back
// into the PENDING pool with an incremented retry count
func (r *RetryHandler) scheduleRetry(job *models.Job, execErr error) error {
	retryCount := job.RetryCount + 1
	errMsg := execErr.Error()

	err := r.store.Transition(job.ID, models.JobStatusRunning, models.JobStatusRetried,
		&store.TransitionPatch{RetryCount: &retryCount, Error: &errMsg})
	if err != nil {
		return fmt.Errorf("failed to mark job RETRIED: %w", err)
	}
	if err := r.store.Transition(job.ID, models.JobStatusRetried, models.JobStatusPending, nil); err != nil {
		return fmt.Errorf("failed to requeue retried job: %w", err)
	}

	r.metrics.JobRetried()
	r.logger.Warn("Job failed, retrying", map[string]interface{}{
		"job_id": job.ID,
		"name":   job.Name,
		"retry":  fmt.Sprintf("%d/%d", retryCount, job.MaxRetries),
		"error":  errMsg,
	})
	return nil
}

// failPermanently marks the job FAILED and records a dead letter
func (r *RetryHandler) failPermanently(ctx context.Context, job *models.Job, execErr error) error {
	finished := time.Now().UTC()
	errMsg := execErr.Error()

	err := r.store.Transition(job.ID, models.JobStatusRunning, models.JobStatusFailed,
		&store.TransitionPatch{FinishedAt: &finished, Error: &errMsg})
	if err != nil {
		return fmt.Errorf("failed to mark job FAILED: %w", err)
	}

	entry := queue.DeadLetterEntry{
		JobID:      job.ID,
		JobType:    string(job.JobType),
		Name:       job.Name,
		Error:      errMsg,
		RetryCount: job.RetryCount,
		FailedAt:   finished.Format(time.RFC3339),
	}
	if err := r.transport.PushDeadLetter(ctx, entry); err != nil {
		// The store already holds the FAILED status; losing the dead
		// letter is logged but does not undo the transition
		r.logger.Error("Failed to push dead letter", map[string]interface{}{
			"job_id": job.ID, "error": err.Error(),
		})
	}

	r.metrics.JobFailed()
	r.metrics.JobDeadLettered()
	r.logger.Error("Job failed permanently", map[string]interface{}{
		"job_id":      job.ID,
		"name":        job.Name,
		"retry_count": job.RetryCount,
		"error":       errMsg,
	})
	return nil
}
