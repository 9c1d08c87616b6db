// Package schedule provides cron-driven job scheduling, execution logging
// and failure recovery for platform automation jobs.
package schedule

import (
	"encoding/json"
	"time"

	"github.com/Renagang21/o4o-platform-sub086/errors"
)

// Job represents a registered automation job executed on a cron schedule.
type Job struct {
	ID                  string
	Name                string
	CronExpression      string
	Timezone            string // IANA zone name; empty means UTC
	TargetService       string
	ActionType          string
	Config              string // JSON document passed to the handler
	Status              string
	OrganizationID      string
	ExecutionCount      int
	FailureCount        int
	LastExecutedAt      *time.Time
	LastExecutionResult string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Status constants for scheduled jobs
const (
	StatusActive   = "active"   // Job runs on its cron schedule
	StatusPaused   = "paused"   // Job is temporarily paused by an operator
	StatusDisabled = "disabled" // Job is kept for history but never scheduled
)

// IsValidJobStatus reports whether s is a recognized job status.
func IsValidJobStatus(s string) bool {
	switch s {
	case StatusActive, StatusPaused, StatusDisabled:
		return true
	}
	return false
}

// HandlerKey returns the (service, action) pair the job dispatches to.
func (j *Job) HandlerKey() (string, string) {
	return j.TargetService, j.ActionType
}

// Location resolves the job's timezone, defaulting to UTC.
func (j *Job) Location() (*time.Location, error) {
	if j.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(j.Timezone)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidSchedule, "unknown timezone %q", j.Timezone)
	}
	return loc, nil
}

// ConfigMap decodes the job's JSON config. An empty config yields an
// empty, non-nil map so handlers can read keys without nil checks.
func (j *Job) ConfigMap() (map[string]interface{}, error) {
	if j.Config == "" {
		return map[string]interface{}{}, nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(j.Config), &m); err != nil {
		return nil, errors.Wrapf(err, "invalid config for job %s", j.ID)
	}
	if m == nil {
		m = map[string]interface{}{}
	}
	return m, nil
}
