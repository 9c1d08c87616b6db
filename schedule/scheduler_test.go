package schedule

import (
	"context"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Renagang21/o4o-platform-sub086/errors"
	"github.com/Renagang21/o4o-platform-sub086/failqueue"
	o4otest "github.com/Renagang21/o4o-platform-sub086/internal/testing"
)

func newTestScheduler(t *testing.T) (*Scheduler, *Store, *Registry) {
	t.Helper()
	database := o4otest.CreateTestDB(t)
	store := NewStore(database)
	execStore := NewExecutionStore(database)
	registry := NewRegistry()
	queue := failqueue.NewQueue(database)
	engine := NewEngine(database, store, execStore, registry, queue,
		EngineConfig{}, zap.NewNop().Sugar())
	return NewScheduler(store, engine, zap.NewNop().Sugar()), store, registry
}

func TestValidateSpec(t *testing.T) {
	assert.NoError(t, ValidateSpec("0 3 * * *", ""))
	assert.NoError(t, ValidateSpec("*/5 * * * *", "Asia/Seoul"))
	assert.NoError(t, ValidateSpec("30 0 3 * * *", "UTC"), "optional seconds field")

	err := ValidateSpec("", "UTC")
	assert.True(t, errors.IsInvalidSchedule(err))

	err = ValidateSpec("not a cron", "UTC")
	assert.True(t, errors.IsInvalidSchedule(err))

	err = ValidateSpec("99 * * * *", "UTC")
	assert.True(t, errors.IsInvalidSchedule(err), "minute out of range")

	err = ValidateSpec("0 3 * * *", "Mars/Olympus")
	assert.True(t, errors.IsInvalidSchedule(err))
}

func TestCronSpecCarriesTimezone(t *testing.T) {
	job := testJob("SJ_1", func(j *Job) {
		j.Timezone = "Asia/Seoul"
	})
	assert.Equal(t, "CRON_TZ=Asia/Seoul 0 3 * * *", cronSpec(job))

	job.Timezone = ""
	assert.Equal(t, "0 3 * * *", cronSpec(job))
}

func TestNextRunEvaluatesInJobTimezone(t *testing.T) {
	job := testJob("SJ_1", func(j *Job) {
		j.Timezone = "Asia/Seoul"
	})

	// After 09:00 KST the next daily 03:00 KST fire is the following day
	after := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	next, err := job.NextRun(after)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 1, 18, 0, 0, 0, time.UTC), next.UTC())

	job.Timezone = "Not/AZone"
	_, err = job.NextRun(after)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidSchedule(err))
}

func TestScheduleUnschedule(t *testing.T) {
	scheduler, store, _ := newTestScheduler(t)
	ctx := context.Background()

	job := testJob("SJ_1", nil)
	require.NoError(t, store.CreateJob(job))

	require.NoError(t, scheduler.Schedule(ctx, job))
	assert.True(t, scheduler.IsScheduled("SJ_1"))
	assert.Equal(t, 1, scheduler.EntryCount())

	// Scheduling again replaces the entry instead of stacking timers
	job.CronExpression = "0 4 * * *"
	require.NoError(t, scheduler.Reschedule(ctx, job))
	assert.Equal(t, 1, scheduler.EntryCount())

	scheduler.Unschedule("SJ_1")
	assert.False(t, scheduler.IsScheduled("SJ_1"))
	assert.Equal(t, 0, scheduler.EntryCount())

	// Unscheduling an unknown job is a no-op
	scheduler.Unschedule("SJ_1")
	assert.Equal(t, 0, scheduler.EntryCount())
}

func TestScheduleRejectsInvalidExpression(t *testing.T) {
	scheduler, _, _ := newTestScheduler(t)

	job := testJob("SJ_1", func(j *Job) {
		j.CronExpression = "every day at noon"
	})
	err := scheduler.Schedule(context.Background(), job)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidSchedule(err))
	assert.False(t, scheduler.IsScheduled("SJ_1"))
}

func TestStartSchedulesOnlyActiveJobs(t *testing.T) {
	scheduler, store, _ := newTestScheduler(t)

	require.NoError(t, store.CreateJob(testJob("SJ_active1", nil)))
	require.NoError(t, store.CreateJob(testJob("SJ_active2", nil)))
	require.NoError(t, store.CreateJob(testJob("SJ_paused", func(j *Job) {
		j.Status = StatusPaused
	})))
	require.NoError(t, store.CreateJob(testJob("SJ_disabled", func(j *Job) {
		j.Status = StatusDisabled
	})))

	require.NoError(t, scheduler.Start(context.Background()))
	defer scheduler.StopAll()

	assert.Equal(t, 2, scheduler.EntryCount())
	assert.True(t, scheduler.IsScheduled("SJ_active1"))
	assert.True(t, scheduler.IsScheduled("SJ_active2"))
	assert.False(t, scheduler.IsScheduled("SJ_paused"))
	assert.False(t, scheduler.IsScheduled("SJ_disabled"))
}

func TestStartSkipsCorruptSchedules(t *testing.T) {
	scheduler, store, _ := newTestScheduler(t)

	// A job whose stored expression no longer parses must not block the
	// rest of the schedule from loading.
	require.NoError(t, store.CreateJob(testJob("SJ_bad", func(j *Job) {
		j.CronExpression = "garbage"
	})))
	require.NoError(t, store.CreateJob(testJob("SJ_good", nil)))

	require.NoError(t, scheduler.Start(context.Background()))
	defer scheduler.StopAll()

	assert.Equal(t, 1, scheduler.EntryCount())
	assert.True(t, scheduler.IsScheduled("SJ_good"))
}

func TestStopAllClearsEntries(t *testing.T) {
	scheduler, store, _ := newTestScheduler(t)

	require.NoError(t, store.CreateJob(testJob("SJ_1", nil)))
	require.NoError(t, scheduler.Start(context.Background()))
	require.Equal(t, 1, scheduler.EntryCount())

	scheduler.StopAll()
	assert.Equal(t, 0, scheduler.EntryCount())

	// The scheduler can be rebuilt from the store after a stop
	require.NoError(t, scheduler.Start(context.Background()))
	defer scheduler.StopAll()
	assert.Equal(t, 1, scheduler.EntryCount())
}
