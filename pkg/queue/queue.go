package queue

import (
	"context"
	"errors"
	"time"
)

// ErrEmpty is returned by PopReady when the timeout elapses with nothing
// to hand out. Workers treat it as an idle loop, not a failure.
var ErrEmpty = errors.New("ready queue empty")

// DeadLetterEntry is the record pushed for a permanently failed job
type DeadLetterEntry struct {
	JobID      string `json:"job_id"`
	JobType    string `json:"job_type"`
	Name       string `json:"name"`
	Error      string `json:"error"`
	RetryCount int    `json:"retry_count"`
	FailedAt   string `json:"failed_at"`
}

// Transport is the shared coordination layer between the scheduler engine,
// the workers and the API: the ready queue, the active policy cell and the
// dead letter queue. Redis in production, an in-memory implementation in
// tests.
type Transport interface {
	// PushReady appends a job ID to the tail of the ready queue
	PushReady(ctx context.Context, jobID string) error
	// PopReady blocks up to timeout for the next ready job ID.
	// Returns ErrEmpty when the timeout elapses.
	PopReady(ctx context.Context, timeout time.Duration) (string, error)
	// QueueDepth returns the current ready queue length
	QueueDepth(ctx context.Context) (int64, error)

	// SetPolicy stores the active scheduling policy name
	SetPolicy(ctx context.Context, name string) error
	// ActivePolicy returns the stored policy name, or "" when unset
	ActivePolicy(ctx context.Context) (string, error)

	// PushDeadLetter appends a permanently failed job record
	PushDeadLetter(ctx context.Context, entry DeadLetterEntry) error
	// DeadLetters returns a page of dead letter records, oldest first
	DeadLetters(ctx context.Context, offset, limit int64) ([]DeadLetterEntry, error)
	// DeadLetterCount returns the dead letter queue length
	DeadLetterCount(ctx context.Context) (int64, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}
