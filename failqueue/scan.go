package failqueue

import (
	"database/sql"
	"time"

	"github.com/Renagang21/o4o-platform-sub086/errors"
)

// Timestamps are persisted as UTC RFC3339 strings so that range queries on
// next_retry_at compare lexicographically.
const timeLayout = time.RFC3339

// itemScanArgs holds the intermediate variables needed when scanning an
// item from a database row.
type itemScanArgs struct {
	JobID           sql.NullString
	ExecutionLogID  sql.NullString
	ErrorHistory    string
	FailedAt        string
	NextRetryAt     string
	Status          string
	ResolutionNotes sql.NullString
	ResolvedAt      sql.NullString
	CreatedAt       string
	UpdatedAt       string
}

// scanTargets returns scan destinations for the item and args, in the
// order of selectColumns.
func scanTargets(item *Item, args *itemScanArgs) []interface{} {
	return []interface{}{
		&item.ID,
		&args.JobID,
		&args.ExecutionLogID,
		&item.TargetService,
		&item.ActionType,
		&item.TargetEntityID,
		&item.TargetEntityType,
		&item.LastError,
		&args.ErrorHistory,
		&args.FailedAt,
		&item.RetryCount,
		&item.MaxRetries,
		&args.NextRetryAt,
		&item.Priority,
		&args.Status,
		&args.ResolutionNotes,
		&args.ResolvedAt,
		&args.CreatedAt,
		&args.UpdatedAt,
	}
}

// processScanArgs populates the item from the scanned intermediates.
func processScanArgs(item *Item, args *itemScanArgs) error {
	if args.JobID.Valid {
		item.JobID = args.JobID.String
	}
	if args.ExecutionLogID.Valid {
		item.ExecutionLogID = args.ExecutionLogID.String
	}
	if args.ResolutionNotes.Valid {
		item.ResolutionNotes = args.ResolutionNotes.String
	}
	item.Status = Status(args.Status)

	history, err := UnmarshalErrorHistory(args.ErrorHistory)
	if err != nil {
		return errors.Wrapf(err, "item %s", item.ID)
	}
	item.ErrorHistory = history

	if item.FailedAt, err = time.Parse(timeLayout, args.FailedAt); err != nil {
		return errors.Wrapf(err, "failed to parse failed_at for item %s", item.ID)
	}
	if item.NextRetryAt, err = time.Parse(timeLayout, args.NextRetryAt); err != nil {
		return errors.Wrapf(err, "failed to parse next_retry_at for item %s", item.ID)
	}
	if item.CreatedAt, err = time.Parse(timeLayout, args.CreatedAt); err != nil {
		return errors.Wrapf(err, "failed to parse created_at for item %s", item.ID)
	}
	if item.UpdatedAt, err = time.Parse(timeLayout, args.UpdatedAt); err != nil {
		return errors.Wrapf(err, "failed to parse updated_at for item %s", item.ID)
	}
	if args.ResolvedAt.Valid {
		t, err := time.Parse(timeLayout, args.ResolvedAt.String)
		if err != nil {
			return errors.Wrapf(err, "failed to parse resolved_at for item %s", item.ID)
		}
		item.ResolvedAt = &t
	}

	return nil
}

// selectColumns is the standard column list for item SELECT queries.
func selectColumns() string {
	return `id, job_id, execution_log_id,
		target_service, action_type, target_entity_id, target_entity_type,
		last_error, error_history, failed_at,
		retry_count, max_retries, next_retry_at, priority,
		status, resolution_notes, resolved_at,
		created_at, updated_at`
}

// scanItems scans all items from query rows.
func scanItems(rows *sql.Rows, context string) ([]*Item, error) {
	var items []*Item
	for rows.Next() {
		var item Item
		args := &itemScanArgs{}
		if err := rows.Scan(scanTargets(&item, args)...); err != nil {
			return nil, errors.Wrap(err, "failed to scan failure queue item")
		}
		if err := processScanArgs(&item, args); err != nil {
			return nil, err
		}
		items = append(items, &item)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "error iterating %s", context)
	}

	return items, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
