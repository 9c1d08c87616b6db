package schedule

import (
	"database/sql"
	"time"

	"github.com/Renagang21/o4o-platform-sub086/errors"
)

// ExecutionStore handles persistence of job execution history
type ExecutionStore struct {
	db *sql.DB
}

// NewExecutionStore creates a new execution store
func NewExecutionStore(db *sql.DB) *ExecutionStore {
	return &ExecutionStore{db: db}
}

func executionColumns() string {
	return `id, job_id, started_at, completed_at, duration_ms,
		is_manual_trigger, triggered_by, result,
		items_processed, items_succeeded, items_failed,
		summary, error_message, error_stack, details,
		created_at, updated_at`
}

// CreateExecution inserts the provisional record for an attempt that
// has just started.
func (s *ExecutionStore) CreateExecution(exec *Execution) error {
	query := `
		INSERT INTO job_executions (
			id, job_id, started_at, completed_at, duration_ms,
			is_manual_trigger, triggered_by, result,
			items_processed, items_succeeded, items_failed,
			summary, error_message, error_stack, details,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var durationMs interface{}
	if exec.DurationMs != nil {
		durationMs = *exec.DurationMs
	}

	_, err := s.db.Exec(query,
		exec.ID,
		exec.JobID,
		formatTime(exec.StartedAt),
		formatTimePtr(exec.CompletedAt),
		durationMs,
		exec.IsManualTrigger,
		nullableString(exec.TriggeredBy),
		exec.Result,
		exec.ItemsProcessed,
		exec.ItemsSucceeded,
		exec.ItemsFailed,
		nullableString(exec.Summary),
		nullableString(exec.ErrorMessage),
		nullableString(exec.ErrorStack),
		nullableString(exec.Details),
		formatTime(exec.CreatedAt),
		formatTime(exec.UpdatedAt),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to create execution %s", exec.ID)
	}

	return nil
}

// FinalizeExecution writes the attempt's outcome. This is the only
// update the record ever receives.
func (s *ExecutionStore) FinalizeExecution(exec *Execution) error {
	query := `
		UPDATE job_executions
		SET completed_at = ?,
		    duration_ms = ?,
		    result = ?,
		    items_processed = ?,
		    items_succeeded = ?,
		    items_failed = ?,
		    summary = ?,
		    error_message = ?,
		    error_stack = ?,
		    details = ?,
		    updated_at = ?
		WHERE id = ?
	`

	var durationMs interface{}
	if exec.DurationMs != nil {
		durationMs = *exec.DurationMs
	}

	result, err := s.db.Exec(query,
		formatTimePtr(exec.CompletedAt),
		durationMs,
		exec.Result,
		exec.ItemsProcessed,
		exec.ItemsSucceeded,
		exec.ItemsFailed,
		nullableString(exec.Summary),
		nullableString(exec.ErrorMessage),
		nullableString(exec.ErrorStack),
		nullableString(exec.Details),
		formatTime(exec.UpdatedAt),
		exec.ID,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to finalize execution %s", exec.ID)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.Wrapf(errors.ErrNotFound, "execution %s", exec.ID)
	}

	return nil
}

// GetExecution retrieves an execution by ID
func (s *ExecutionStore) GetExecution(id string) (*Execution, error) {
	query := `SELECT ` + executionColumns() + ` FROM job_executions WHERE id = ?`

	var exec Execution
	args := &executionScanArgs{}
	err := s.db.QueryRow(query, id).Scan(executionScanTargets(&exec, args)...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Wrapf(errors.ErrNotFound, "execution %s", id)
		}
		return nil, errors.Wrapf(err, "failed to get execution %s", id)
	}

	if err := processExecutionScanArgs(&exec, args); err != nil {
		return nil, err
	}

	return &exec, nil
}

// ListExecutionsForJob returns a job's execution history, newest first.
func (s *ExecutionStore) ListExecutionsForJob(jobID string, limit int) ([]*Execution, error) {
	query := `SELECT ` + executionColumns() + `
		FROM job_executions
		WHERE job_id = ?
		ORDER BY started_at DESC
		LIMIT ?`

	rows, err := s.db.Query(query, jobID, limit)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list executions for job %s", jobID)
	}
	defer rows.Close()

	var execs []*Execution
	for rows.Next() {
		var exec Execution
		args := &executionScanArgs{}
		if err := rows.Scan(executionScanTargets(&exec, args)...); err != nil {
			return nil, errors.Wrap(err, "failed to scan execution")
		}
		if err := processExecutionScanArgs(&exec, args); err != nil {
			return nil, err
		}
		execs = append(execs, &exec)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating executions")
	}

	return execs, nil
}

// executionScanArgs holds the intermediate variables needed when
// scanning an execution from a database row.
type executionScanArgs struct {
	StartedAt    string
	CompletedAt  sql.NullString
	DurationMs   sql.NullInt64
	TriggeredBy  sql.NullString
	Summary      sql.NullString
	ErrorMessage sql.NullString
	ErrorStack   sql.NullString
	Details      sql.NullString
	CreatedAt    string
	UpdatedAt    string
}

func executionScanTargets(exec *Execution, args *executionScanArgs) []interface{} {
	return []interface{}{
		&exec.ID,
		&exec.JobID,
		&args.StartedAt,
		&args.CompletedAt,
		&args.DurationMs,
		&exec.IsManualTrigger,
		&args.TriggeredBy,
		&exec.Result,
		&exec.ItemsProcessed,
		&exec.ItemsSucceeded,
		&exec.ItemsFailed,
		&args.Summary,
		&args.ErrorMessage,
		&args.ErrorStack,
		&args.Details,
		&args.CreatedAt,
		&args.UpdatedAt,
	}
}

func processExecutionScanArgs(exec *Execution, args *executionScanArgs) error {
	if args.DurationMs.Valid {
		d := args.DurationMs.Int64
		exec.DurationMs = &d
	}
	if args.TriggeredBy.Valid {
		exec.TriggeredBy = args.TriggeredBy.String
	}
	if args.Summary.Valid {
		exec.Summary = args.Summary.String
	}
	if args.ErrorMessage.Valid {
		exec.ErrorMessage = args.ErrorMessage.String
	}
	if args.ErrorStack.Valid {
		exec.ErrorStack = args.ErrorStack.String
	}
	if args.Details.Valid {
		exec.Details = args.Details.String
	}

	var err error
	if exec.StartedAt, err = time.Parse(timeLayout, args.StartedAt); err != nil {
		return errors.Wrapf(err, "failed to parse started_at for execution %s", exec.ID)
	}
	if exec.CreatedAt, err = time.Parse(timeLayout, args.CreatedAt); err != nil {
		return errors.Wrapf(err, "failed to parse created_at for execution %s", exec.ID)
	}
	if exec.UpdatedAt, err = time.Parse(timeLayout, args.UpdatedAt); err != nil {
		return errors.Wrapf(err, "failed to parse updated_at for execution %s", exec.ID)
	}
	if args.CompletedAt.Valid {
		t, err := time.Parse(timeLayout, args.CompletedAt.String)
		if err != nil {
			return errors.Wrapf(err, "failed to parse completed_at for execution %s", exec.ID)
		}
		exec.CompletedAt = &t
	}

	return nil
}
