package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis key layout, shared by every process pointed at the same instance
const (
	readyKey      = "jobscheduler:ready"
	policyKey     = "jobscheduler:policy"
	deadLetterKey = "jobscheduler:dead_letter"
)

// RedisTransport implements Transport over a Redis list (ready queue),
// a string cell (active policy) and a second list (dead letters).
type RedisTransport struct {
	client *redis.Client
}

// NewRedisTransport connects to Redis using a redis:// URL
func NewRedisTransport(url string) (*RedisTransport, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return &RedisTransport{client: redis.NewClient(opts)}, nil
}

// PushReady appends a job ID to the tail of the ready queue
func (t *RedisTransport) PushReady(ctx context.Context, jobID string) error {
	if err := t.client.RPush(ctx, readyKey, jobID).Err(); err != nil {
		return fmt.Errorf("failed to push ready job: %w", err)
	}
	return nil
}

// PopReady blocks up to timeout for the next ready job ID
func (t *RedisTransport) PopReady(ctx context.Context, timeout time.Duration) (string, error) {
	res, err := t.client.BLPop(ctx, timeout, readyKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrEmpty
	}
	if err != nil {
		return "", fmt.Errorf("failed to pop ready job: %w", err)
	}
	// BLPOP returns [key, value]
	if len(res) != 2 {
		return "", fmt.Errorf("unexpected BLPOP reply length %d", len(res))
	}
	return res[1], nil
}

// QueueDepth returns the current ready queue length
func (t *RedisTransport) QueueDepth(ctx context.Context) (int64, error) {
	depth, err := t.client.LLen(ctx, readyKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read queue depth: %w", err)
	}
	return depth, nil
}

// SetPolicy stores the active scheduling policy name
func (t *RedisTransport) SetPolicy(ctx context.Context, name string) error {
	if err := t.client.Set(ctx, policyKey, name, 0).Err(); err != nil {
		return fmt.Errorf("failed to set policy: %w", err)
	}
	return nil
}

// ActivePolicy returns the stored policy name, or "" when unset
func (t *RedisTransport) ActivePolicy(ctx context.Context) (string, error) {
	name, err := t.client.Get(ctx, policyKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get policy: %w", err)
	}
	return name, nil
}

// PushDeadLetter appends a permanently failed job record
func (t *RedisTransport) PushDeadLetter(ctx context.Context, entry DeadLetterEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter: %w", err)
	}
	if err := t.client.RPush(ctx, deadLetterKey, data).Err(); err != nil {
		return fmt.Errorf("failed to push dead letter: %w", err)
	}
	return nil
}

// DeadLetters returns a page of dead letter records, oldest first
func (t *RedisTransport) DeadLetters(ctx context.Context, offset, limit int64) ([]DeadLetterEntry, error) {
	if limit < 1 {
		limit = 20
	}
	raw, err := t.client.LRange(ctx, deadLetterKey, offset, offset+limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read dead letters: %w", err)
	}

	entries := make([]DeadLetterEntry, 0, len(raw))
	for _, item := range raw {
		var entry DeadLetterEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal dead letter: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// DeadLetterCount returns the dead letter queue length
func (t *RedisTransport) DeadLetterCount(ctx context.Context) (int64, error) {
	count, err := t.client.LLen(ctx, deadLetterKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count dead letters: %w", err)
	}
	return count, nil
}

// Ping checks the Redis connection
func (t *RedisTransport) Ping(ctx context.Context) error {
	return t.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (t *RedisTransport) Close() error {
	return t.client.Close()
}
