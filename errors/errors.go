// Package errors provides error handling for the o4o automation engine.
//
// It re-exports github.com/cockroachdb/errors, providing stack traces,
// error wrapping, and structured detail attachment, plus the sentinel
// errors shared across the scheduling subsystem.
//
// Usage:
//
//	// Create new error
//	err := errors.New("something went wrong")
//
//	// Wrap with context
//	if err := store.CreateJob(job); err != nil {
//	    return errors.Wrap(err, "failed to create job")
//	}
//
//	// Check sentinels
//	if errors.Is(err, errors.ErrNotFound) {
//	    // handle not found
//	}
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef

	// Mark ties an error to a sentinel for errors.Is without changing
	// its message.
	Mark = crdb.Mark
)

// Structured details and hints
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is            = crdb.Is
	As            = crdb.As
	Unwrap        = crdb.Unwrap
	GetAllDetails = crdb.GetAllDetails
	GetAllHints   = crdb.GetAllHints
)

// Sentinel errors for the scheduling subsystem.
// Use these with errors.Is() for type-safe error checking and wrap them
// with errors.Wrap() to add context while preserving the type.
var (
	// ErrNotFound indicates the requested job, execution, or queue item
	// does not exist
	ErrNotFound = New("not found")

	// ErrInvalidSchedule indicates a cron expression or timezone that
	// failed eager validation at create/update time
	ErrInvalidSchedule = New("invalid schedule")

	// ErrNoHandler indicates no handler is registered for a job's
	// (target service, action type) pair
	ErrNoHandler = New("no handler registered")

	// ErrNotRetryable indicates a failure-queue item whose status or
	// retry budget excludes it from further automatic retries
	ErrNotRetryable = New("item is not retryable")

	// ErrInvalidRequest indicates a malformed management call
	ErrInvalidRequest = New("invalid request")
)

// IsNotFound checks if an error is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsInvalidSchedule checks if an error is or wraps ErrInvalidSchedule.
func IsInvalidSchedule(err error) bool {
	return err != nil && Is(err, ErrInvalidSchedule)
}

// WrapNotFound wraps an error as a not-found error with context.
func WrapNotFound(err error, context string) error {
	return Wrap(Wrap(ErrNotFound, err.Error()), context)
}
