package failqueue

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Renagang21/o4o-platform-sub086/errors"
)

// Queue is the failure-queue API used by the execution engine (enqueue),
// the retry processor (due-set and state transitions), and the management
// surface (list/cancel). It serializes writes over the underlying store.
type Queue struct {
	store *Store
	mu    sync.Mutex
	now   func() time.Time
	id    func() string
}

// NewQueue creates a new failure queue over the given database
func NewQueue(db *sql.DB) *Queue {
	return &Queue{
		store: NewStore(db),
		now:   time.Now,
		id:    func() string { return "FQ_" + uuid.NewString() },
	}
}

// Enqueue records a new item-level failure. Missing bookkeeping fields are
// seeded: the error history starts with the item's first error, the first
// retry window is computed from the backoff function, and retry budget and
// priority fall back to their defaults.
func (q *Queue) Enqueue(item *Item) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	if item.ID == "" {
		item.ID = q.id()
	}
	if item.TargetService == "" || item.ActionType == "" {
		return errors.Wrap(errors.ErrInvalidRequest, "failure item requires target service and action type")
	}
	if item.TargetEntityID == "" {
		return errors.Wrap(errors.ErrInvalidRequest, "failure item requires a target entity id")
	}
	if item.MaxRetries <= 0 {
		item.MaxRetries = DefaultMaxRetries
	}
	if item.Priority <= 0 {
		item.Priority = DefaultPriority
	}
	if item.FailedAt.IsZero() {
		item.FailedAt = now
	}
	if len(item.ErrorHistory) == 0 {
		item.ErrorHistory = []ErrorEvent{{Timestamp: item.FailedAt, Message: item.LastError}}
	}
	item.Status = StatusPending
	item.RetryCount = 0
	item.NextRetryAt = item.FailedAt.Add(Backoff(0))
	item.CreatedAt = now
	item.UpdatedAt = now

	if err := q.store.CreateItem(item); err != nil {
		err = errors.Wrap(err, "failed to enqueue failure item")
		err = errors.WithDetail(err, fmt.Sprintf("Item ID: %s", item.ID))
		err = errors.WithDetail(err, fmt.Sprintf("Target: %s.%s", item.TargetService, item.ActionType))
		err = errors.WithDetail(err, fmt.Sprintf("Entity: %s/%s", item.TargetEntityType, item.TargetEntityID))
		return err
	}

	return nil
}

// Get retrieves an item by ID
func (q *Queue) Get(id string) (*Item, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.store.GetItem(id)
}

// List returns items, optionally filtered by status
func (q *Queue) List(status *Status, limit int) ([]*Item, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.store.ListItems(status, limit)
}

// ListForJob returns items back-referencing the given job
func (q *Queue) ListForJob(jobID string) ([]*Item, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.store.ListItemsForJob(jobID)
}

// Due returns the due-set: up to limit pending items ordered by priority
// then next_retry_at, filtered to those whose retry window has opened.
// Ordering is preserved by the underlying query.
func (q *Queue) Due(now time.Time, limit int) ([]*Item, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	batch, err := q.store.ListPending(limit)
	if err != nil {
		return nil, err
	}

	due := make([]*Item, 0, len(batch))
	for _, item := range batch {
		if item.IsDue(now) && item.CanRetry() {
			due = append(due, item)
		}
	}
	return due, nil
}

// BeginRetry transitions an item to retrying and returns the refreshed
// item. Returns ErrNotRetryable (with the unchanged item) when the item's
// status or retry budget excludes it from retrying.
func (q *Queue) BeginRetry(id string) (*Item, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	item, err := q.store.GetItem(id)
	if err != nil {
		return nil, err
	}

	if !item.CanRetry() {
		err := errors.Wrapf(errors.ErrNotRetryable, "item %s", id)
		err = errors.WithDetail(err, fmt.Sprintf("Status: %s", item.Status))
		err = errors.WithDetail(err, fmt.Sprintf("Retries: %d/%d", item.RetryCount, item.MaxRetries))
		return item, err
	}

	item.BeginRetry(q.now())
	if err := q.store.UpdateItem(item); err != nil {
		return nil, errors.Wrapf(err, "failed to mark item %s retrying", id)
	}

	return item, nil
}

// MakeDue pulls a pending item's next retry time up to now so the next
// sweep picks it up, skipping the remaining backoff. Returns
// ErrNotRetryable for items outside their retry budget.
func (q *Queue) MakeDue(id string) (*Item, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	item, err := q.store.GetItem(id)
	if err != nil {
		return nil, err
	}

	if !item.CanRetry() {
		err := errors.Wrapf(errors.ErrNotRetryable, "item %s", id)
		err = errors.WithDetail(err, fmt.Sprintf("Status: %s", item.Status))
		err = errors.WithDetail(err, fmt.Sprintf("Retries: %d/%d", item.RetryCount, item.MaxRetries))
		return item, err
	}

	now := q.now()
	item.NextRetryAt = now
	item.UpdatedAt = now
	if err := q.store.UpdateItem(item); err != nil {
		return nil, errors.Wrapf(err, "failed to make item %s due", id)
	}

	return item, nil
}

// RecordFailure records one failed retry attempt and returns the updated
// item (pending again, or exhausted once the budget is spent).
func (q *Queue) RecordFailure(id, message string) (*Item, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	item, err := q.store.GetItem(id)
	if err != nil {
		return nil, err
	}

	item.RecordAttemptFailure(message, q.now())
	if err := q.store.UpdateItem(item); err != nil {
		return nil, errors.Wrapf(err, "failed to record retry failure for item %s", id)
	}

	return item, nil
}

// Resolve marks an item as successfully retried
func (q *Queue) Resolve(id, notes string) (*Item, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	item, err := q.store.GetItem(id)
	if err != nil {
		return nil, err
	}

	item.Resolve(notes, q.now())
	if err := q.store.UpdateItem(item); err != nil {
		return nil, errors.Wrapf(err, "failed to resolve item %s", id)
	}

	return item, nil
}

// Cancel marks an item as cancelled. Idempotent: cancelling an already
// cancelled item succeeds without modifying it.
func (q *Queue) Cancel(id, reason string) (*Item, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	item, err := q.store.GetItem(id)
	if err != nil {
		return nil, err
	}

	if item.Status == StatusCancelled {
		return item, nil
	}

	item.Cancel(reason, q.now())
	if err := q.store.UpdateItem(item); err != nil {
		return nil, errors.Wrapf(err, "failed to cancel item %s", id)
	}

	return item, nil
}

// Counts returns the number of items per status
func (q *Queue) Counts() (map[Status]int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.store.CountByStatus()
}

// Cleanup removes resolved and cancelled items older than the duration
func (q *Queue) Cleanup(olderThan time.Duration) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.store.DeleteResolvedBefore(q.now().Add(-olderThan))
}
