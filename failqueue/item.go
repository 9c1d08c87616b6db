// Package failqueue provides the persistent, priority-ordered retry queue
// for per-item failures reported by automation job handlers.
//
// Queue items are deliberately decoupled from job identity: a single failed
// item inside a larger batch can be retried on its own schedule without
// re-running the whole job, and it survives deletion of the job that
// spawned it.
package failqueue

import (
	"encoding/json"
	"time"

	"github.com/Renagang21/o4o-platform-sub086/errors"
)

// Status represents the current state of a failure-queue item
type Status string

const (
	// StatusPending means the item is waiting for its next retry window
	StatusPending Status = "pending"
	// StatusRetrying means a retry attempt is in flight
	StatusRetrying Status = "retrying"
	// StatusResolved means a retry attempt succeeded
	StatusResolved Status = "resolved"
	// StatusCancelled means an operator cancelled the item
	StatusCancelled Status = "cancelled"
	// StatusExhausted means the retry budget is used up; the item never
	// re-enters the due-set and requires operator resolution
	StatusExhausted Status = "exhausted"
)

// IsValidStatus returns true if the status string is a valid Status
func IsValidStatus(s string) bool {
	switch Status(s) {
	case StatusPending, StatusRetrying, StatusResolved, StatusCancelled, StatusExhausted:
		return true
	default:
		return false
	}
}

const (
	// DefaultMaxRetries is applied when an item is enqueued without an
	// explicit retry budget
	DefaultMaxRetries = 3
	// DefaultPriority is the default urgency; lower values are more urgent
	DefaultPriority = 5
)

// ErrorEvent is one entry of an item's ordered error history
type ErrorEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// Item represents one retryable unit of failed work
type Item struct {
	ID             string `json:"id"`
	JobID          string `json:"job_id,omitempty"`           // Optional back-reference
	ExecutionLogID string `json:"execution_log_id,omitempty"` // Optional back-reference

	// What failed, not just which job
	TargetService    string `json:"target_service"`
	ActionType       string `json:"action_type"`
	TargetEntityID   string `json:"target_entity_id"`
	TargetEntityType string `json:"target_entity_type"`

	LastError    string       `json:"last_error"`
	ErrorHistory []ErrorEvent `json:"error_history"`
	FailedAt     time.Time    `json:"failed_at"`
	RetryCount   int          `json:"retry_count"`
	MaxRetries   int          `json:"max_retries"`
	NextRetryAt  time.Time    `json:"next_retry_at"`
	Priority     int          `json:"priority"`

	Status          Status     `json:"status"`
	ResolutionNotes string     `json:"resolution_notes,omitempty"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CanRetry reports whether the item is eligible for an automatic retry:
// the status must be retryable and the retry budget not yet used up.
func (i *Item) CanRetry() bool {
	return i.Status == StatusPending && i.RetryCount < i.MaxRetries
}

// IsDue reports whether the item's retry window has opened.
func (i *Item) IsDue(now time.Time) bool {
	return !i.NextRetryAt.After(now)
}

// BeginRetry marks the item as having a retry attempt in flight.
func (i *Item) BeginRetry(now time.Time) {
	i.Status = StatusRetrying
	i.UpdatedAt = now
}

// RecordAttemptFailure records one failed retry attempt: appends to the
// error history, advances the retry counter, recomputes the backoff window,
// and moves the item back to pending or, when the budget is spent, to the
// terminal exhausted state.
func (i *Item) RecordAttemptFailure(message string, now time.Time) {
	i.LastError = message
	i.ErrorHistory = append(i.ErrorHistory, ErrorEvent{Timestamp: now, Message: message})
	i.RetryCount++
	i.NextRetryAt = now.Add(Backoff(i.RetryCount))
	if i.RetryCount < i.MaxRetries {
		i.Status = StatusPending
	} else {
		i.Status = StatusExhausted
	}
	i.UpdatedAt = now
}

// Resolve marks the item as successfully retried.
func (i *Item) Resolve(notes string, now time.Time) {
	i.Status = StatusResolved
	i.ResolutionNotes = notes
	i.ResolvedAt = &now
	i.UpdatedAt = now
}

// Cancel marks the item as cancelled by an operator. Terminal and
// idempotent: cancelling an already-cancelled item keeps the original
// resolution timestamp and notes.
func (i *Item) Cancel(reason string, now time.Time) {
	if i.Status == StatusCancelled {
		return
	}
	i.Status = StatusCancelled
	i.ResolutionNotes = reason
	i.ResolvedAt = &now
	i.UpdatedAt = now
}

// MarshalErrorHistory converts an error history to its JSON column value.
func MarshalErrorHistory(history []ErrorEvent) (string, error) {
	if len(history) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(history)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal error history")
	}
	return string(data), nil
}

// UnmarshalErrorHistory converts a JSON column value to an error history.
func UnmarshalErrorHistory(data string) ([]ErrorEvent, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var history []ErrorEvent
	if err := json.Unmarshal([]byte(data), &history); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal error history")
	}
	return history, nil
}
