package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/srivatsav09/JobScheduler/pkg/models"
)

// SQLiteStore implements Store using SQLite. Suited for single-node
// deployments and local development.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store at the given path
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite handles one writer at a time
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		job_type TEXT NOT NULL,
		payload TEXT,
		priority INTEGER NOT NULL DEFAULT 5,
		estimated_duration REAL NOT NULL DEFAULT 1.0,
		status TEXT NOT NULL,
		retry_count INTEGER NOT NULL DEFAULT 0,
		max_retries INTEGER NOT NULL DEFAULT 3,
		error TEXT,
		result TEXT,
		created_at TIMESTAMP NOT NULL,
		scheduled_at TIMESTAMP,
		started_at TIMESTAMP,
		finished_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_status_created ON jobs(status, created_at);
	CREATE INDEX IF NOT EXISTS idx_jobs_type ON jobs(job_type);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateJob persists a new job
func (s *SQLiteStore) CreateJob(job *models.Job) error {
	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO jobs (id, name, job_type, payload, priority, estimated_duration,
			status, retry_count, max_retries, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Name, job.JobType, payload, job.Priority, job.EstimatedDuration,
		job.Status, job.RetryCount, job.MaxRetries, job.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID
func (s *SQLiteStore) GetJob(id string) (*models.Job, error) {
	row := s.db.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
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
func (s *SQLiteStore) ListJobs(filter ListFilter) ([]*models.Job, int, error) {
	filter.Normalize()

	where := " WHERE 1=1"
	args := []interface{}{}
	if filter.Status != "" {
		where += " AND status = ?"
		args = append(args, filter.Status)
	}
	if filter.JobType != "" {
		where += " AND job_type = ?"
		args = append(args, filter.JobType)
	}

	var total int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM jobs"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count jobs: %w", err)
	}

	query := "SELECT " + jobColumns + " FROM jobs" + where + " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, filter.PageSize, (filter.Page-1)*filter.PageSize)

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

// Transition atomically moves a job between states
func (s *SQLiteStore) Transition(id string, from, to models.JobStatus, patch *TransitionPatch) error {
	if err := models.ValidateTransition(from, to); err != nil {
		return err
	}

	set := "status = ?"
	args := []interface{}{to}
	if patch != nil {
		if patch.ScheduledAt != nil {
			set += ", scheduled_at = ?"
			args = append(args, *patch.ScheduledAt)
		}
		if patch.StartedAt != nil {
			set += ", started_at = ?"
			args = append(args, *patch.StartedAt)
		}
		if patch.FinishedAt != nil {
			set += ", finished_at = ?"
			args = append(args, *patch.FinishedAt)
		}
		if patch.Error != nil {
			set += ", error = ?"
			args = append(args, *patch.Error)
		}
		if patch.Result != nil {
			result, err := json.Marshal(patch.Result)
			if err != nil {
				return fmt.Errorf("failed to marshal result: %w", err)
			}
			set += ", result = ?"
			args = append(args, result)
		}
		if patch.RetryCount != nil {
			set += ", retry_count = ?"
			args = append(args, *patch.RetryCount)
		}
	}

	args = append(args, id, from)
	res, err := s.db.Exec("UPDATE jobs SET "+set+" WHERE id = ? AND status = ?", args...)
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

func (s *SQLiteStore) conflictOrMissing(id string) error {
	var exists bool
	if err := s.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM jobs WHERE id = ?)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check job existence: %w", err)
	}
	if !exists {
		return ErrJobNotFound
	}
	return ErrConflict
}

// DeleteJob removes a job that has not started running
func (s *SQLiteStore) DeleteJob(id string) error {
	res, err := s.db.Exec(`DELETE FROM jobs WHERE id = ? AND status IN (?, ?)`,
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
func (s *SQLiteStore) ClaimPending(limit int) ([]*models.Job, error) {
	rows, err := s.db.Query(`SELECT `+jobColumns+` FROM jobs
		WHERE status = ? ORDER BY created_at ASC, id ASC LIMIT ?`,
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

// Recover flips in-flight jobs back to PENDING after a crash
func (s *SQLiteStore) Recover() (int, error) {
	res, err := s.db.Exec(`UPDATE jobs SET status = ? WHERE status IN (?, ?)`,
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
func (s *SQLiteStore) Stats() (*Stats, error) {
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
		SELECT AVG((julianday(finished_at) - julianday(started_at)) * 86400000.0)
		FROM jobs
		WHERE status = ? AND started_at IS NOT NULL AND finished_at IS NOT NULL`,
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
func (s *SQLiteStore) HealthCheck() error {
	return s.db.Ping()
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
