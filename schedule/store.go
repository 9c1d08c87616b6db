package schedule

import (
	"database/sql"
	"time"

	"github.com/Renagang21/o4o-platform-sub086/errors"
)

// Store handles persistence of scheduled jobs
type Store struct {
	db *sql.DB
}

// NewStore creates a new schedule store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateJob inserts a new scheduled job
func (s *Store) CreateJob(job *Job) error {
	query := `
		INSERT INTO scheduled_jobs (
			id, name, cron_expression, timezone,
			target_service, action_type, config, status, organization_id,
			execution_count, failure_count,
			last_executed_at, last_execution_result,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		job.ID,
		job.Name,
		job.CronExpression,
		job.Timezone,
		job.TargetService,
		job.ActionType,
		nullableString(job.Config),
		job.Status,
		nullableString(job.OrganizationID),
		job.ExecutionCount,
		job.FailureCount,
		formatTimePtr(job.LastExecutedAt),
		nullableString(job.LastExecutionResult),
		formatTime(job.CreatedAt),
		formatTime(job.UpdatedAt),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to create scheduled job %s", job.ID)
	}

	return nil
}

// GetJob retrieves a scheduled job by ID
func (s *Store) GetJob(id string) (*Job, error) {
	query := `SELECT ` + jobColumns() + ` FROM scheduled_jobs WHERE id = ?`

	var job Job
	args := &jobScanArgs{}
	err := s.db.QueryRow(query, id).Scan(jobScanTargets(&job, args)...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Wrapf(errors.ErrNotFound, "scheduled job %s", id)
		}
		return nil, errors.Wrapf(err, "failed to get scheduled job %s", id)
	}

	if err := processJobScanArgs(&job, args); err != nil {
		return nil, err
	}

	return &job, nil
}

// UpdateJob persists the job's mutable fields. Counters and execution
// bookkeeping are owned by RecordExecution and are not written here.
func (s *Store) UpdateJob(job *Job) error {
	query := `
		UPDATE scheduled_jobs
		SET name = ?,
		    cron_expression = ?,
		    timezone = ?,
		    target_service = ?,
		    action_type = ?,
		    config = ?,
		    status = ?,
		    organization_id = ?,
		    updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.Exec(query,
		job.Name,
		job.CronExpression,
		job.Timezone,
		job.TargetService,
		job.ActionType,
		nullableString(job.Config),
		job.Status,
		nullableString(job.OrganizationID),
		formatTime(job.UpdatedAt),
		job.ID,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to update scheduled job %s", job.ID)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.Wrapf(errors.ErrNotFound, "scheduled job %s", job.ID)
	}

	return nil
}

// UpdateJobStatus updates only the status of a scheduled job
func (s *Store) UpdateJobStatus(id, status string) error {
	query := `
		UPDATE scheduled_jobs
		SET status = ?,
		    updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.Exec(query, status, formatTime(time.Now()), id)
	if err != nil {
		return errors.Wrapf(err, "failed to update status for scheduled job %s", id)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.Wrapf(errors.ErrNotFound, "scheduled job %s", id)
	}

	return nil
}

// DeleteJob removes a scheduled job. Execution history rows are removed
// by the cascading foreign key; failure queue items are intentionally
// kept for audit.
func (s *Store) DeleteJob(id string) error {
	result, err := s.db.Exec(`DELETE FROM scheduled_jobs WHERE id = ?`, id)
	if err != nil {
		return errors.Wrapf(err, "failed to delete scheduled job %s", id)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.Wrapf(errors.ErrNotFound, "scheduled job %s", id)
	}

	return nil
}

// ListJobs returns jobs ordered by creation time (newest first),
// optionally filtered by status.
func (s *Store) ListJobs(status string, limit int) ([]*Job, error) {
	query := `SELECT ` + jobColumns() + ` FROM scheduled_jobs`
	var args []interface{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list scheduled jobs")
	}
	defer rows.Close()

	return scanJobs(rows, "scheduled jobs")
}

// ListActiveJobs returns every active job, ordered by ID for
// deterministic scheduler reconciliation.
func (s *Store) ListActiveJobs() ([]*Job, error) {
	query := `SELECT ` + jobColumns() + ` FROM scheduled_jobs WHERE status = ? ORDER BY id ASC`

	rows, err := s.db.Query(query, StatusActive)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list active jobs")
	}
	defer rows.Close()

	return scanJobs(rows, "active jobs")
}

// CountJobs returns the number of jobs, optionally filtered by status.
func (s *Store) CountJobs(status string) (int, error) {
	query := `SELECT COUNT(*) FROM scheduled_jobs`
	var args []interface{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}

	var count int
	if err := s.db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count scheduled jobs")
	}

	return count, nil
}

// RecordExecution updates the job's execution bookkeeping after an
// attempt completes. Counter increments happen inside the UPDATE itself
// so concurrent cron and manual triggers never lose a count.
func (s *Store) RecordExecution(id string, at time.Time, result string) error {
	query := `
		UPDATE scheduled_jobs
		SET execution_count = execution_count + 1,
		    failure_count = failure_count + CASE WHEN ? = ? THEN 1 ELSE 0 END,
		    last_executed_at = ?,
		    last_execution_result = ?,
		    updated_at = ?
		WHERE id = ?
	`

	res, err := s.db.Exec(query,
		result,
		ResultFailure,
		formatTime(at),
		result,
		formatTime(at),
		id,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to record execution for job %s", id)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.Wrapf(errors.ErrNotFound, "scheduled job %s", id)
	}

	return nil
}
