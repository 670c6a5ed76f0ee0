package queue

import (
	"context"
	"sync"
	"time"
)

// MemoryTransport is a channel-backed Transport used by tests and local
// development. Semantics mirror the Redis implementation: FIFO ready
// queue, blocking pop with timeout, append-only dead letter list.
type MemoryTransport struct {
	ready chan string

	mu          sync.RWMutex
	policy      string
	deadLetters []DeadLetterEntry
	closed      bool
}

// NewMemoryTransport creates an in-memory transport
func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{
		ready: make(chan string, 4096),
	}
}

// PushReady appends a job ID to the ready queue
func (t *MemoryTransport) PushReady(ctx context.Context, jobID string) error {
	select {
	case t.ready <- jobID:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PopReady blocks up to timeout for the next ready job ID
func (t *MemoryTransport) PopReady(ctx context.Context, timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case jobID := <-t.ready:
		return jobID, nil
	case <-timer.C:
		return "", ErrEmpty
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// QueueDepth returns the current ready queue length
func (t *MemoryTransport) QueueDepth(ctx context.Context) (int64, error) {
	return int64(len(t.ready)), nil
}

// SetPolicy stores the active scheduling policy name
func (t *MemoryTransport) SetPolicy(ctx context.Context, name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.policy = name
	return nil
}

// ActivePolicy returns the stored policy name, or "" when unset
func (t *MemoryTransport) ActivePolicy(ctx context.Context) (string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.policy, nil
}

// PushDeadLetter appends a permanently failed job record
func (t *MemoryTransport) PushDeadLetter(ctx context.Context, entry DeadLetterEntry) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deadLetters = append(t.deadLetters, entry)
	return nil
}

// DeadLetters returns a page of dead letter records, oldest first
func (t *MemoryTransport) DeadLetters(ctx context.Context, offset, limit int64) ([]DeadLetterEntry, error) {
	if limit < 1 {
		limit = 20
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	total := int64(len(t.deadLetters))
	if offset >= total {
		return []DeadLetterEntry{}, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}

	page := make([]DeadLetterEntry, end-offset)
	copy(page, t.deadLetters[offset:end])
	return page, nil
}

// DeadLetterCount returns the dead letter queue length
func (t *MemoryTransport) DeadLetterCount(ctx context.Context) (int64, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return int64(len(t.deadLetters)), nil
}

// Ping always succeeds for the in-memory transport
func (t *MemoryTransport) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (t *MemoryTransport) Close() error {
	return nil
}
