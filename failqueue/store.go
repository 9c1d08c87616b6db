package failqueue

import (
	"database/sql"
	"time"

	"github.com/Renagang21/o4o-platform-sub086/errors"
)

// Store handles persistence of failure-queue items
type Store struct {
	db *sql.DB
}

// NewStore creates a new failure-queue store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateItem inserts a new item into the database
func (s *Store) CreateItem(item *Item) error {
	historyJSON, err := MarshalErrorHistory(item.ErrorHistory)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO job_failure_queue (
			id, job_id, execution_log_id,
			target_service, action_type, target_entity_id, target_entity_type,
			last_error, error_history, failed_at,
			retry_count, max_retries, next_retry_at, priority,
			status, resolution_notes, resolved_at,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.Exec(query,
		item.ID,
		nullableString(item.JobID),
		nullableString(item.ExecutionLogID),
		item.TargetService,
		item.ActionType,
		item.TargetEntityID,
		item.TargetEntityType,
		item.LastError,
		historyJSON,
		formatTime(item.FailedAt),
		item.RetryCount,
		item.MaxRetries,
		formatTime(item.NextRetryAt),
		item.Priority,
		string(item.Status),
		nullableString(item.ResolutionNotes),
		formatTimePtr(item.ResolvedAt),
		formatTime(item.CreatedAt),
		formatTime(item.UpdatedAt),
	)

	if err != nil {
		return errors.Wrap(err, "failed to create failure queue item")
	}

	return nil
}

// GetItem retrieves an item by ID
func (s *Store) GetItem(id string) (*Item, error) {
	query := `SELECT ` + selectColumns() + ` FROM job_failure_queue WHERE id = ?`

	var item Item
	args := &itemScanArgs{}
	err := s.db.QueryRow(query, id).Scan(scanTargets(&item, args)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(errors.ErrNotFound, "failure queue item %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get failure queue item")
	}

	if err := processScanArgs(&item, args); err != nil {
		return nil, err
	}

	return &item, nil
}

// UpdateItem updates an existing item in the database
func (s *Store) UpdateItem(item *Item) error {
	historyJSON, err := MarshalErrorHistory(item.ErrorHistory)
	if err != nil {
		return err
	}

	query := `
		UPDATE job_failure_queue
		SET last_error = ?,
		    error_history = ?,
		    retry_count = ?,
		    max_retries = ?,
		    next_retry_at = ?,
		    priority = ?,
		    status = ?,
		    resolution_notes = ?,
		    resolved_at = ?,
		    updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.Exec(query,
		item.LastError,
		historyJSON,
		item.RetryCount,
		item.MaxRetries,
		formatTime(item.NextRetryAt),
		item.Priority,
		string(item.Status),
		nullableString(item.ResolutionNotes),
		formatTimePtr(item.ResolvedAt),
		formatTime(item.UpdatedAt),
		item.ID,
	)

	if err != nil {
		return errors.Wrap(err, "failed to update failure queue item")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.Wrapf(errors.ErrNotFound, "failure queue item %s", item.ID)
	}

	return nil
}

// ListPending returns up to limit pending items ordered by priority
// (ascending, lower is more urgent) then next_retry_at (oldest first).
// This is the batch the retry processor filters for due items; the
// time-bound is applied by the caller, not the query.
func (s *Store) ListPending(limit int) ([]*Item, error) {
	query := `SELECT ` + selectColumns() + `
		FROM job_failure_queue
		WHERE status = ?
		ORDER BY priority ASC, next_retry_at ASC
		LIMIT ?`

	rows, err := s.db.Query(query, string(StatusPending), limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list pending items")
	}
	defer rows.Close()

	return scanItems(rows, "pending items")
}

// ListItems returns items, optionally filtered by status, newest first
func (s *Store) ListItems(status *Status, limit int) ([]*Item, error) {
	var query string
	var args []interface{}

	baseQuery := `SELECT ` + selectColumns() + ` FROM job_failure_queue`
	if status != nil {
		query = baseQuery + ` WHERE status = ? ORDER BY created_at DESC LIMIT ?`
		args = []interface{}{string(*status), limit}
	} else {
		query = baseQuery + ` ORDER BY created_at DESC LIMIT ?`
		args = []interface{}{limit}
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list items")
	}
	defer rows.Close()

	return scanItems(rows, "items")
}

// ListItemsForJob returns all items back-referencing a job, oldest first
func (s *Store) ListItemsForJob(jobID string) ([]*Item, error) {
	query := `SELECT ` + selectColumns() + `
		FROM job_failure_queue
		WHERE job_id = ?
		ORDER BY created_at ASC`

	rows, err := s.db.Query(query, jobID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list items for job")
	}
	defer rows.Close()

	return scanItems(rows, "job items")
}

// CountByStatus returns the number of items in each status
func (s *Store) CountByStatus() (map[Status]int, error) {
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM job_failure_queue GROUP BY status`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count items by status")
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, errors.Wrap(err, "failed to scan status count")
		}
		counts[Status(status)] = count
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating status counts")
	}

	return counts, nil
}

// DeleteResolvedBefore removes resolved and cancelled items older than the
// cutoff. Exhausted items are kept; they require operator attention.
func (s *Store) DeleteResolvedBefore(cutoff time.Time) (int, error) {
	query := `
		DELETE FROM job_failure_queue
		WHERE status IN (?, ?)
		  AND updated_at < ?
	`

	result, err := s.db.Exec(query, string(StatusResolved), string(StatusCancelled), formatTime(cutoff))
	if err != nil {
		return 0, errors.Wrap(err, "failed to delete resolved items")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get rows affected")
	}

	return int(rows), nil
}
