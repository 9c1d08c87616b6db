package schedule

import (
	"context"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Renagang21/o4o-platform-sub086/errors"
	"github.com/Renagang21/o4o-platform-sub086/failqueue"
	o4otest "github.com/Renagang21/o4o-platform-sub086/internal/testing"
)

type serviceEnv struct {
	service   *Service
	store     *Store
	scheduler *Scheduler
	registry  *Registry
}

func newServiceEnv(t *testing.T) *serviceEnv {
	t.Helper()
	database := o4otest.CreateTestDB(t)
	store := NewStore(database)
	execStore := NewExecutionStore(database)
	registry := NewRegistry()
	queue := failqueue.NewQueue(database)
	log := zap.NewNop().Sugar()
	engine := NewEngine(database, store, execStore, registry, queue, EngineConfig{}, log)
	scheduler := NewScheduler(store, engine, log)
	return &serviceEnv{
		service:   NewService(store, execStore, engine, scheduler, log),
		store:     store,
		scheduler: scheduler,
		registry:  registry,
	}
}

func validInput() CreateJobInput {
	return CreateJobInput{
		Name:           "Recalculate commissions",
		CronExpression: "0 2 * * *",
		Timezone:       "Asia/Seoul",
		TargetService:  "commission",
		ActionType:     "recalculate",
		Config:         `{"period":"daily"}`,
	}
}

func TestCreateJobDefaultsAndSchedules(t *testing.T) {
	env := newServiceEnv(t)

	job, err := env.service.CreateJob(context.Background(), validInput())
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, StatusActive, job.Status, "status defaults to active")
	assert.True(t, env.scheduler.IsScheduled(job.ID))

	stored, err := env.store.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, "Asia/Seoul", stored.Timezone)
}

func TestCreateJobPausedIsNotScheduled(t *testing.T) {
	env := newServiceEnv(t)

	input := validInput()
	input.Status = StatusPaused
	job, err := env.service.CreateJob(context.Background(), input)
	require.NoError(t, err)
	assert.False(t, env.scheduler.IsScheduled(job.ID))
}

func TestCreateJobValidation(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*CreateJobInput)
		verify func(t *testing.T, err error)
	}{
		{"empty name", func(in *CreateJobInput) { in.Name = "" },
			func(t *testing.T, err error) { assert.True(t, errors.Is(err, errors.ErrInvalidRequest)) }},
		{"missing handler key", func(in *CreateJobInput) { in.TargetService = "" },
			func(t *testing.T, err error) { assert.True(t, errors.Is(err, errors.ErrInvalidRequest)) }},
		{"invalid cron", func(in *CreateJobInput) { in.CronExpression = "61 * * * *" },
			func(t *testing.T, err error) { assert.True(t, errors.IsInvalidSchedule(err)) }},
		{"invalid timezone", func(in *CreateJobInput) { in.Timezone = "Nowhere/Land" },
			func(t *testing.T, err error) { assert.True(t, errors.IsInvalidSchedule(err)) }},
		{"invalid config JSON", func(in *CreateJobInput) { in.Config = `{broken` },
			func(t *testing.T, err error) { assert.True(t, errors.Is(err, errors.ErrInvalidRequest)) }},
		{"invalid status", func(in *CreateJobInput) { in.Status = "sleeping" },
			func(t *testing.T, err error) { assert.True(t, errors.Is(err, errors.ErrInvalidRequest)) }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := validInput()
			tc.mutate(&input)
			_, err := env.service.CreateJob(ctx, input)
			require.Error(t, err)
			tc.verify(t, err)
		})
	}

	// Nothing was persisted by the rejected creates
	count, err := env.store.CountJobs("")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestUpdateJobRevalidatesSchedule(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	job, err := env.service.CreateJob(ctx, validInput())
	require.NoError(t, err)

	bad := "not a schedule"
	_, err = env.service.UpdateJob(ctx, job.ID, JobUpdate{CronExpression: &bad})
	require.Error(t, err)
	assert.True(t, errors.IsInvalidSchedule(err))

	// The stored job still carries the old, valid schedule
	stored, err := env.store.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, "0 2 * * *", stored.CronExpression)

	good := "0 5 * * *"
	updated, err := env.service.UpdateJob(ctx, job.ID, JobUpdate{CronExpression: &good})
	require.NoError(t, err)
	assert.Equal(t, good, updated.CronExpression)
	assert.True(t, env.scheduler.IsScheduled(job.ID))
}

func TestPauseResume(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	job, err := env.service.CreateJob(ctx, validInput())
	require.NoError(t, err)
	require.True(t, env.scheduler.IsScheduled(job.ID))

	paused, err := env.service.PauseJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPaused, paused.Status)
	assert.False(t, env.scheduler.IsScheduled(job.ID))

	resumed, err := env.service.ResumeJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, resumed.Status)
	assert.True(t, env.scheduler.IsScheduled(job.ID))
}

func TestDeleteJobUnschedulesFirst(t *testing.T) {
	env := newServiceEnv(t)

	job, err := env.service.CreateJob(context.Background(), validInput())
	require.NoError(t, err)

	require.NoError(t, env.service.DeleteJob(job.ID))
	assert.False(t, env.scheduler.IsScheduled(job.ID))

	_, err = env.service.GetJob(job.ID)
	assert.True(t, errors.IsNotFound(err))
}

func TestTriggerJobRunsPausedJobs(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	env.registry.Register(&stubHandler{service: "commission", action: "recalculate"})

	input := validInput()
	input.Status = StatusPaused
	job, err := env.service.CreateJob(ctx, input)
	require.NoError(t, err)

	exec, err := env.service.TriggerJob(ctx, job.ID, "ops@o4o")
	require.NoError(t, err)
	assert.Equal(t, ResultSuccess, exec.Result)
	assert.True(t, exec.IsManualTrigger)
	assert.Equal(t, "ops@o4o", exec.TriggeredBy)

	history, err := env.service.ListExecutions(job.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, exec.ID, history[0].ID)
}

func TestTriggerJobNotFound(t *testing.T) {
	env := newServiceEnv(t)

	_, err := env.service.TriggerJob(context.Background(), "SJ_missing", "ops@o4o")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestListJobsRejectsUnknownStatus(t *testing.T) {
	env := newServiceEnv(t)

	_, err := env.service.ListJobs("sleeping", 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}
