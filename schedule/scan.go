package schedule

import (
	"database/sql"
	"time"

	"github.com/Renagang21/o4o-platform-sub086/errors"
)

// Timestamps are persisted as UTC RFC3339 strings so that ordering and
// range comparisons in SQL stay lexicographically correct.
const timeLayout = time.RFC3339

// jobScanArgs holds the intermediate variables needed when scanning a
// job from a database row.
type jobScanArgs struct {
	Timezone            sql.NullString
	Config              sql.NullString
	OrganizationID      sql.NullString
	LastExecutedAt      sql.NullString
	LastExecutionResult sql.NullString
	CreatedAt           string
	UpdatedAt           string
}

// jobScanTargets returns scan destinations for the job and args, in the
// order of jobColumns.
func jobScanTargets(job *Job, args *jobScanArgs) []interface{} {
	return []interface{}{
		&job.ID,
		&job.Name,
		&job.CronExpression,
		&args.Timezone,
		&job.TargetService,
		&job.ActionType,
		&args.Config,
		&job.Status,
		&args.OrganizationID,
		&job.ExecutionCount,
		&job.FailureCount,
		&args.LastExecutedAt,
		&args.LastExecutionResult,
		&args.CreatedAt,
		&args.UpdatedAt,
	}
}

// processJobScanArgs populates the job from the scanned intermediates.
func processJobScanArgs(job *Job, args *jobScanArgs) error {
	if args.Timezone.Valid {
		job.Timezone = args.Timezone.String
	}
	if args.Config.Valid {
		job.Config = args.Config.String
	}
	if args.OrganizationID.Valid {
		job.OrganizationID = args.OrganizationID.String
	}
	if args.LastExecutionResult.Valid {
		job.LastExecutionResult = args.LastExecutionResult.String
	}

	var err error
	if job.CreatedAt, err = time.Parse(timeLayout, args.CreatedAt); err != nil {
		return errors.Wrapf(err, "failed to parse created_at for job %s", job.ID)
	}
	if job.UpdatedAt, err = time.Parse(timeLayout, args.UpdatedAt); err != nil {
		return errors.Wrapf(err, "failed to parse updated_at for job %s", job.ID)
	}
	if args.LastExecutedAt.Valid {
		t, err := time.Parse(timeLayout, args.LastExecutedAt.String)
		if err != nil {
			return errors.Wrapf(err, "failed to parse last_executed_at for job %s", job.ID)
		}
		job.LastExecutedAt = &t
	}

	return nil
}

// jobColumns is the standard column list for job SELECT queries.
func jobColumns() string {
	return `id, name, cron_expression, timezone,
		target_service, action_type, config, status, organization_id,
		execution_count, failure_count,
		last_executed_at, last_execution_result,
		created_at, updated_at`
}

// scanJobs scans all jobs from query rows.
func scanJobs(rows *sql.Rows, context string) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		var job Job
		args := &jobScanArgs{}
		if err := rows.Scan(jobScanTargets(&job, args)...); err != nil {
			return nil, errors.Wrap(err, "failed to scan scheduled job")
		}
		if err := processJobScanArgs(&job, args); err != nil {
			return nil, err
		}
		jobs = append(jobs, &job)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "error iterating %s", context)
	}

	return jobs, nil
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
