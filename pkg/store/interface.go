package store

import (
	"errors"
	"time"

	"github.com/srivatsav09/JobScheduler/pkg/models"
)

var (
	ErrJobNotFound = errors.New("job not found")
	// ErrConflict means the job exists but its current status does not match
	// the expected from-status of a transition (or delete precondition).
	// Callers use this to tell a lost race from a missing row.
	ErrConflict            = errors.New("job status conflict")
	ErrUnsupportedDatabase = errors.New("unsupported database type")
)

// MaxPageSize caps list pagination
const MaxPageSize = 100

// TransitionPatch carries the optional field updates applied atomically
// with a status transition. Nil fields are left untouched.
type TransitionPatch struct {
	ScheduledAt *time.Time
	StartedAt   *time.Time
	FinishedAt  *time.Time
	Error       *string
	Result      map[string]interface{}
	RetryCount  *int
}

// ListFilter selects and pages job listings
type ListFilter struct {
	Status   models.JobStatus
	JobType  models.JobType
	Page     int
	PageSize int
}

// Normalize applies pagination defaults and the page size cap
func (f *ListFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = 20
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
}

// Stats aggregates job counts by status
type Stats struct {
	Total              int                      `json:"total"`
	ByStatus           map[models.JobStatus]int `json:"by_status"`
	AvgExecutionTimeMs float64                  `json:"avg_execution_time_ms"`
}

// Store defines the durable job store.
// PostgreSQL, SQLite and the in-memory store implement this interface.
type Store interface {
	// CreateJob persists a new job in PENDING state
	CreateJob(job *models.Job) error
	// GetJob retrieves a job by ID
	GetJob(id string) (*models.Job, error)
	// ListJobs returns a filtered page of jobs (created_at DESC) plus the
	// total matching count
	ListJobs(filter ListFilter) ([]*models.Job, int, error)
	// Transition atomically moves a job from one status to another,
	// applying the patch in the same update. Returns ErrConflict when the
	// job is no longer in the from status, ErrJobNotFound when it is gone.
	Transition(id string, from, to models.JobStatus, patch *TransitionPatch) error
	// DeleteJob removes a job that is still PENDING or SCHEDULED
	DeleteJob(id string) error
	// ClaimPending returns up to limit PENDING jobs ordered by created_at.
	// It does not modify the rows; dispatch claims them one by one via
	// Transition.
	ClaimPending(limit int) ([]*models.Job, error)
	// Recover flips SCHEDULED and RUNNING jobs back to PENDING after a
	// crash, without touching retry counts. Returns the number of rows
	// swept.
	Recover() (int, error)
	// Stats aggregates job counts by status
	Stats() (*Stats, error)

	// Lifecycle
	HealthCheck() error
	Close() error
}

// Config holds database configuration
type Config struct {
	Type string // "sqlite" or "postgres"
	DSN  string // Connection string (or file path for SQLite)

	// PostgreSQL pool tuning
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// New creates a store based on configuration
func New(config Config) (Store, error) {
	switch config.Type {
	case "postgres", "postgresql":
		return NewPostgresStore(config)
	case "sqlite", "":
		path := config.DSN
		if path == "" {
			path = "jobs.db"
		}
		return NewSQLiteStore(path)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, ErrUnsupportedDatabase
	}
}
