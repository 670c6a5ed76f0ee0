package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/srivatsav09/JobScheduler/pkg/models"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(config Config) (*PostgresStore, error) {
	if config.DSN == "" {
		return nil, fmt.Errorf("PostgreSQL DSN is required")
	}

	db, err := sql.Open("postgres", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	} else {
		db.SetMaxOpenConns(25)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	} else {
		db.SetMaxIdleConns(5)
	}
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	} else {
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// initSchema creates the jobs table if it doesn't exist
func (s *PostgresStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		job_type TEXT NOT NULL,
		payload JSONB,
		priority INTEGER NOT NULL DEFAULT 5,
		estimated_duration DOUBLE PRECISION NOT NULL DEFAULT 1.0,
		status TEXT NOT NULL,
		retry_count INTEGER NOT NULL DEFAULT 0,
		max_retries INTEGER NOT NULL DEFAULT 3,
		error TEXT,
		result JSONB,
		created_at TIMESTAMPTZ NOT NULL,
		scheduled_at TIMESTAMPTZ,
		started_at TIMESTAMPTZ,
		finished_at TIMESTAMPTZ
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_status_created ON jobs(status, created_at);
	CREATE INDEX IF NOT EXISTS idx_jobs_type ON jobs(job_type);
	`
	_, err := s.db.Exec(schema)
	return err
}

const jobColumns = `id, name, job_type, payload, priority, estimated_duration, status,
	retry_count, max_retries, error, result, created_at, scheduled_at, started_at, finished_at`

// rowScanner abstracts *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*models.Job, error) {
	var job models.Job
	var payload, result []byte
	var errMsg sql.NullString
	var scheduledAt, startedAt, finishedAt sql.NullTime

	err := row.Scan(&job.ID, &job.Name, &job.JobType, &payload, &job.Priority,
		&job.EstimatedDuration, &job.Status, &job.RetryCount, &job.MaxRetries,
		&errMsg, &result, &job.CreatedAt, &scheduledAt, &startedAt, &finishedAt)
	if err != nil {
		return nil, err
	}

	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &job.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
	}
	if len(result) > 0 {
		if err := json.Unmarshal(result, &job.Result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result: %w", err)
		}
	}
	if errMsg.Valid {
		job.Error = errMsg.String
	}
	if scheduledAt.Valid {
		job.ScheduledAt = &scheduledAt.Time
	}
	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if finishedAt.Valid {
		job.FinishedAt = &finishedAt.Time
	}
	return &job, nil
}

// CreateJob persists a new job
func (s *PostgresStore) CreateJob(job *models.Job) error {
	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO jobs (id, name, job_type, payload, priority, estimated_duration,
			status, retry_count, max_retries, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		job.ID, job.Name, job.JobType, payload, job.Priority, job.EstimatedDuration,
		job.Status, job.RetryCount, job.MaxRetries, job.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID
func (s *PostgresStore) GetJob(id string) (*models.Job, error) {
	row := s.db.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// ListJobs returns a filtered page of jobs, newest first
func (s *PostgresStore) ListJobs(filter ListFilter) ([]*models.Job, int, error) {
	filter.Normalize()

	where := " WHERE 1=1"
	args := []interface{}{}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.JobType != "" {
		args = append(args, filter.JobType)
		where += fmt.Sprintf(" AND job_type = $%d", len(args))
	}

	var total int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM jobs"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count jobs: %w", err)
	}

	args = append(args, filter.PageSize, (filter.Page-1)*filter.PageSize)
	query := fmt.Sprintf("SELECT %s FROM jobs%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d",
		jobColumns, where, len(args)-1, len(args))

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]*models.Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, total, rows.Err()
}

// Transition atomically moves a job between states using a compare-and-set
// on the current status
func (s *PostgresStore) Transition(id string, from, to models.JobStatus, patch *TransitionPatch) error {
	if err := models.ValidateTransition(from, to); err != nil {
		return err
	}

	set := "status = $1"
	args := []interface{}{to}
	if patch != nil {
		if patch.ScheduledAt != nil {
			args = append(args, *patch.ScheduledAt)
			set += fmt.Sprintf(", scheduled_at = $%d", len(args))
		}
		if patch.StartedAt != nil {
			args = append(args, *patch.StartedAt)
			set += fmt.Sprintf(", started_at = $%d", len(args))
		}
		if patch.FinishedAt != nil {
			args = append(args, *patch.FinishedAt)
			set += fmt.Sprintf(", finished_at = $%d", len(args))
		}
		if patch.Error != nil {
			args = append(args, *patch.Error)
			set += fmt.Sprintf(", error = $%d", len(args))
		}
		if patch.Result != nil {
			result, err := json.Marshal(patch.Result)
			if err != nil {
				return fmt.Errorf("failed to marshal result: %w", err)
			}
			args = append(args, result)
			set += fmt.Sprintf(", result = $%d", len(args))
		}
		if patch.RetryCount != nil {
			args = append(args, *patch.RetryCount)
			set += fmt.Sprintf(", retry_count = $%d", len(args))
		}
	}

	args = append(args, id, from)
	query := fmt.Sprintf("UPDATE jobs SET %s WHERE id = $%d AND status = $%d", set, len(args)-1, len(args))

	res, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to transition job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return s.conflictOrMissing(id)
	}
	return nil
}

// conflictOrMissing distinguishes a lost CAS race from a deleted row
func (s *PostgresStore) conflictOrMissing(id string) error {
	var exists bool
	if err := s.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM jobs WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check job existence: %w", err)
	}
	if !exists {
		return ErrJobNotFound
	}
	return ErrConflict
}

// DeleteJob removes a job that has not started running
func (s *PostgresStore) DeleteJob(id string) error {
	res, err := s.db.Exec(`DELETE FROM jobs WHERE id = $1 AND status IN ($2, $3)`,
		id, models.JobStatusPending, models.JobStatusScheduled)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return s.conflictOrMissing(id)
	}
	return nil
}

// ClaimPending returns up to limit PENDING jobs, oldest first
func (s *PostgresStore) ClaimPending(limit int) ([]*models.Job, error) {
	rows, err := s.db.Query(`SELECT `+jobColumns+` FROM jobs
		WHERE status = $1 ORDER BY created_at ASC, id ASC LIMIT $2`,
		models.JobStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]*models.Job, 0, limit)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Recover flips in-flight jobs back to PENDING after a crash.
// Retry counts stay as they were; a crash is not the job's fault.
func (s *PostgresStore) Recover() (int, error) {
	res, err := s.db.Exec(`UPDATE jobs SET status = $1 WHERE status IN ($2, $3)`,
		models.JobStatusPending, models.JobStatusScheduled, models.JobStatusRunning)
	if err != nil {
		return 0, fmt.Errorf("failed to recover jobs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return int(affected), nil
}

// Stats aggregates job counts by status
func (s *PostgresStore) Stats() (*Stats, error) {
	stats := &Stats{ByStatus: make(map[models.JobStatus]int)}

	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate jobs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status models.JobStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan stats: %w", err)
		}
		stats.ByStatus[status] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var avgMs sql.NullFloat64
	err = s.db.QueryRow(`
		SELECT AVG(EXTRACT(EPOCH FROM (finished_at - started_at)) * 1000)
		FROM jobs
		WHERE status = $1 AND started_at IS NOT NULL AND finished_at IS NOT NULL`,
		models.JobStatusCompleted).Scan(&avgMs)
	if err != nil {
		return nil, fmt.Errorf("failed to compute avg execution time: %w", err)
	}
	if avgMs.Valid {
		stats.AvgExecutionTimeMs = avgMs.Float64
	}
	return stats, nil
}

// HealthCheck pings the database
func (s *PostgresStore) HealthCheck() error {
	return s.db.Ping()
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
