package schedule

import "time"

// Execution is the immutable log of a single execution attempt.
//
// Exactly one record exists per attempt, scheduled or manual, whether
// the handler succeeded, partially failed, failed outright, panicked,
// or was never found. The record is created when the attempt starts and
// finalized exactly once when it completes; it is never rewritten after
// that.
type Execution struct {
	ID    string
	JobID string

	// Timing
	StartedAt   time.Time
	CompletedAt *time.Time
	DurationMs  *int64

	// Trigger provenance
	IsManualTrigger bool
	TriggeredBy     string // user or system identifier for manual triggers

	// Outcome
	Result         string
	ItemsProcessed int
	ItemsSucceeded int
	ItemsFailed    int
	Summary        string
	ErrorMessage   string
	ErrorStack     string
	Details        string // JSON document of handler-specific output

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Execution result constants
const (
	ResultRunning = "running" // Provisional, set while the attempt is in flight
	ResultSuccess = "success" // Handler completed with no failed items
	ResultPartial = "partial" // Handler completed but some items failed
	ResultFailure = "failure" // Handler errored, panicked, or was not found
)

// Succeeded reports whether the attempt finished without failure.
// Partial results count as succeeded at the job level; item-level
// failures go through the failure queue instead.
func (e *Execution) Succeeded() bool {
	return e.Result == ResultSuccess || e.Result == ResultPartial
}
