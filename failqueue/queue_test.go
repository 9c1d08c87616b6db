package failqueue

import (
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Renagang21/o4o-platform-sub086/errors"
	o4otest "github.com/Renagang21/o4o-platform-sub086/internal/testing"
)

func testQueue(t *testing.T, clock func() time.Time) *Queue {
	t.Helper()
	q := NewQueue(o4otest.CreateTestDB(t))
	if clock != nil {
		q.now = clock
	}
	return q
}

func TestEnqueueSeedsDefaults(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	q := testQueue(t, func() time.Time { return now })

	item := &Item{
		TargetService:    "commission",
		ActionType:       "recalculate",
		TargetEntityID:   "ORD_42",
		TargetEntityType: "order",
		LastError:        "vendor rate missing",
	}
	require.NoError(t, q.Enqueue(item))
	require.NotEmpty(t, item.ID)

	got, err := q.Get(item.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
	assert.Equal(t, DefaultMaxRetries, got.MaxRetries)
	assert.Equal(t, DefaultPriority, got.Priority)
	assert.Equal(t, 0, got.RetryCount)
	assert.Equal(t, now, got.FailedAt.UTC())
	assert.Equal(t, now.Add(Backoff(0)), got.NextRetryAt.UTC())
	require.Len(t, got.ErrorHistory, 1)
	assert.Equal(t, "vendor rate missing", got.ErrorHistory[0].Message)
}

func TestEnqueueRejectsIncompleteItems(t *testing.T) {
	q := testQueue(t, nil)

	err := q.Enqueue(&Item{TargetService: "content"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))

	err = q.Enqueue(&Item{TargetService: "content", ActionType: "expire"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestDueFiltersBatch(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	q := testQueue(t, func() time.Time { return now })

	early := &Item{
		TargetService: "content", ActionType: "expire",
		TargetEntityID: "CNT_due", TargetEntityType: "content",
		LastError: "boom", FailedAt: now.Add(-time.Hour),
	}
	require.NoError(t, q.Enqueue(early))

	late := &Item{
		TargetService: "content", ActionType: "expire",
		TargetEntityID: "CNT_later", TargetEntityType: "content",
		LastError: "boom", FailedAt: now,
	}
	require.NoError(t, q.Enqueue(late))

	due, err := q.Due(now, 10)
	require.NoError(t, err)
	require.Len(t, due, 1, "only items past their retry window are due")
	assert.Equal(t, "CNT_due", due[0].TargetEntityID)
}

func TestBeginRetryRejectsNonRetryable(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	q := testQueue(t, func() time.Time { return now })

	item := &Item{
		TargetService: "content", ActionType: "expire",
		TargetEntityID: "CNT_1", TargetEntityType: "content",
		LastError: "boom", MaxRetries: 1,
	}
	require.NoError(t, q.Enqueue(item))

	// First retry is allowed
	got, err := q.BeginRetry(item.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRetrying, got.Status)

	// The attempt fails and spends the whole budget
	got, err = q.RecordFailure(item.ID, "still broken")
	require.NoError(t, err)
	assert.Equal(t, StatusExhausted, got.Status)

	// A further retry is rejected without state changes
	got, err = q.BeginRetry(item.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotRetryable))
	assert.Equal(t, StatusExhausted, got.Status)
}

func TestExhaustedItemLeavesDueSet(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	q := testQueue(t, func() time.Time { return now })

	item := &Item{
		TargetService: "content", ActionType: "expire",
		TargetEntityID: "CNT_flaky", TargetEntityType: "content",
		LastError: "boom", FailedAt: now.Add(-24 * time.Hour),
	}
	require.NoError(t, q.Enqueue(item))

	// Retry and fail three times; far-future clock keeps the item due
	for attempt := 1; attempt <= 3; attempt++ {
		due, err := q.Due(now.Add(100*time.Hour), 10)
		require.NoError(t, err)
		require.Len(t, due, 1, "attempt %d should find the item due", attempt)

		_, err = q.BeginRetry(item.ID)
		require.NoError(t, err)
		got, err := q.RecordFailure(item.ID, "handler failed again")
		require.NoError(t, err)
		assert.Equal(t, attempt, got.RetryCount)
	}

	got, err := q.Get(item.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExhausted, got.Status)
	require.Len(t, got.ErrorHistory, 4, "seed error plus three attempts")

	due, err := q.Due(now.Add(1000*time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, due, "exhausted items never re-enter the due-set")
}

func TestMakeDueSkipsBackoff(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	q := testQueue(t, func() time.Time { return now })

	item := &Item{
		TargetService: "content", ActionType: "expire",
		TargetEntityID: "CNT_1", TargetEntityType: "content",
		LastError: "boom",
	}
	require.NoError(t, q.Enqueue(item))

	due, err := q.Due(now, 10)
	require.NoError(t, err)
	require.Empty(t, due, "fresh item waits out its backoff")

	got, err := q.MakeDue(item.ID)
	require.NoError(t, err)
	assert.Equal(t, now, got.NextRetryAt.UTC())

	due, err = q.Due(now, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)

	// Cancelled items cannot be forced due
	_, err = q.Cancel(item.ID, "superseded")
	require.NoError(t, err)
	_, err = q.MakeDue(item.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotRetryable))
}

func TestResolve(t *testing.T) {
	q := testQueue(t, nil)

	item := &Item{
		TargetService: "content", ActionType: "expire",
		TargetEntityID: "CNT_ok", TargetEntityType: "content",
		LastError: "boom",
	}
	require.NoError(t, q.Enqueue(item))

	got, err := q.Resolve(item.ID, "retried successfully")
	require.NoError(t, err)
	assert.Equal(t, StatusResolved, got.Status)
	assert.Equal(t, "retried successfully", got.ResolutionNotes)
	require.NotNil(t, got.ResolvedAt)
}

func TestCleanupRemovesOldSettledItems(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	q := testQueue(t, func() time.Time { return clock })

	enqueue := func(entity string) *Item {
		item := &Item{
			TargetService: "content", ActionType: "expire",
			TargetEntityID: entity, TargetEntityType: "content",
			LastError: "boom",
		}
		require.NoError(t, q.Enqueue(item))
		return item
	}

	oldResolved := enqueue("CNT_old_resolved")
	oldCancelled := enqueue("CNT_old_cancelled")
	freshResolved := enqueue("CNT_fresh")
	pending := enqueue("CNT_pending")

	_, err := q.Resolve(oldResolved.ID, "fixed")
	require.NoError(t, err)
	_, err = q.Cancel(oldCancelled.ID, "superseded")
	require.NoError(t, err)

	// Settle one more item 40 days later, then clean up with a 30-day
	// retention from that point
	clock = now.Add(40 * 24 * time.Hour)
	_, err = q.Resolve(freshResolved.ID, "fixed")
	require.NoError(t, err)

	removed, err := q.Cleanup(30 * 24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	for _, id := range []string{oldResolved.ID, oldCancelled.ID} {
		_, err := q.Get(id)
		assert.True(t, errors.IsNotFound(err))
	}
	for _, id := range []string{freshResolved.ID, pending.ID} {
		_, err := q.Get(id)
		require.NoError(t, err, "recent and pending items survive cleanup")
	}
}

func TestCancelTwice(t *testing.T) {
	q := testQueue(t, nil)

	item := &Item{
		TargetService: "content", ActionType: "expire",
		TargetEntityID: "CNT_skip", TargetEntityType: "content",
		LastError: "boom",
	}
	require.NoError(t, q.Enqueue(item))

	first, err := q.Cancel(item.ID, "superseded by manual fix")
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, first.Status)
	require.NotNil(t, first.ResolvedAt)

	second, err := q.Cancel(item.ID, "again")
	require.NoError(t, err, "cancel is idempotent")
	assert.Equal(t, StatusCancelled, second.Status)
	assert.Equal(t, first.ResolvedAt.UTC(), second.ResolvedAt.UTC())
	assert.Equal(t, "superseded by manual fix", second.ResolutionNotes)
}
