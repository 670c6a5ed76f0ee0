package store

import (
	"sort"
	"sync"

	"github.com/srivatsav09/JobScheduler/pkg/models"
)

// MemoryStore is an in-memory implementation of the job store.
// Used by tests and local development; it honors the same transition
// semantics as the SQL backends.
type MemoryStore struct {
	jobs map[string]*models.Job
	mu   sync.RWMutex
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: make(map[string]*models.Job),
	}
}

// CreateJob persists a new job
func (s *MemoryStore) CreateJob(job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

// GetJob retrieves a job by ID
func (s *MemoryStore) GetJob(id string) (*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

// ListJobs returns a filtered page of jobs, newest first
func (s *MemoryStore) ListJobs(filter ListFilter) ([]*models.Job, int, error) {
	filter.Normalize()

	s.mu.RLock()
	matched := make([]*models.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		if filter.JobType != "" && job.JobType != filter.JobType {
			continue
		}
		cp := *job
		matched = append(matched, &cp)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := (filter.Page - 1) * filter.PageSize
	if start >= total {
		return []*models.Job{}, total, nil
	}
	end := start + filter.PageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

// Transition atomically moves a job between states
func (s *MemoryStore) Transition(id string, from, to models.JobStatus, patch *TransitionPatch) error {
	if err := models.ValidateTransition(from, to); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if job.Status != from {
		return ErrConflict
	}

	job.Status = to
	applyPatch(job, patch)
	return nil
}

func applyPatch(job *models.Job, patch *TransitionPatch) {
	if patch == nil {
		return
	}
	if patch.ScheduledAt != nil {
		job.ScheduledAt = patch.ScheduledAt
	}
	if patch.StartedAt != nil {
		job.StartedAt = patch.StartedAt
	}
	if patch.FinishedAt != nil {
		job.FinishedAt = patch.FinishedAt
	}
	if patch.Error != nil {
		job.Error = *patch.Error
	}
	if patch.Result != nil {
		job.Result = patch.Result
	}
	if patch.RetryCount != nil {
		job.RetryCount = *patch.RetryCount
	}
}

// DeleteJob removes a job that has not started running
func (s *MemoryStore) DeleteJob(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if !job.CanCancel() {
		return ErrConflict
	}

	delete(s.jobs, id)
	return nil
}

// ClaimPending returns up to limit PENDING jobs, oldest first
func (s *MemoryStore) ClaimPending(limit int) ([]*models.Job, error) {
	s.mu.RLock()
	pending := make([]*models.Job, 0)
	for _, job := range s.jobs {
		if job.Status == models.JobStatusPending {
			cp := *job
			pending = append(pending, &cp)
		}
	}
	s.mu.RUnlock()

	sort.Slice(pending, func(i, j int) bool {
		if pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return pending[i].ID < pending[j].ID
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})

	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

// Recover flips in-flight jobs back to PENDING
func (s *MemoryStore) Recover() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	swept := 0
	for _, job := range s.jobs {
		if job.Status == models.JobStatusScheduled || job.Status == models.JobStatusRunning {
			job.Status = models.JobStatusPending
			swept++
		}
	}
	return swept, nil
}

// Stats aggregates job counts by status
func (s *MemoryStore) Stats() (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Stats{ByStatus: make(map[models.JobStatus]int)}
	var execTotal float64
	var execCount int
	for _, job := range s.jobs {
		stats.Total++
		stats.ByStatus[job.Status]++
		if job.Status == models.JobStatusCompleted && job.StartedAt != nil && job.FinishedAt != nil {
			execTotal += float64(job.FinishedAt.Sub(*job.StartedAt).Milliseconds())
			execCount++
		}
	}
	if execCount > 0 {
		stats.AvgExecutionTimeMs = execTotal / float64(execCount)
	}
	return stats, nil
}

// HealthCheck always succeeds for the in-memory store
func (s *MemoryStore) HealthCheck() error {
	return nil
}

// Close is a no-op
func (s *MemoryStore) Close() error {
	return nil
}
