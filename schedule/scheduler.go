package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/Renagang21/o4o-platform-sub086/errors"
)

// cronParser accepts standard 5-field cron expressions plus an optional
// leading seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// ValidateSpec eagerly validates a cron expression and timezone. The
// same validation runs at job create and update so an invalid schedule
// is rejected before it is ever persisted.
func ValidateSpec(expression, timezone string) error {
	if expression == "" {
		return errors.Wrap(errors.ErrInvalidSchedule, "cron expression is empty")
	}
	if timezone != "" {
		if _, err := time.LoadLocation(timezone); err != nil {
			return errors.Wrapf(errors.ErrInvalidSchedule, "unknown timezone %q", timezone)
		}
	}
	if _, err := cronParser.Parse(expression); err != nil {
		return errors.Wrapf(errors.ErrInvalidSchedule, "invalid cron expression %q: %v", expression, err)
	}
	return nil
}

// cronSpec builds the spec string handed to the cron runtime, carrying
// the job's timezone as a CRON_TZ prefix.
func cronSpec(job *Job) string {
	if job.Timezone == "" {
		return job.CronExpression
	}
	return "CRON_TZ=" + job.Timezone + " " + job.CronExpression
}

// NextRun computes the job's next fire time after the given instant,
// evaluated in the job's timezone.
func (j *Job) NextRun(after time.Time) (time.Time, error) {
	loc, err := j.Location()
	if err != nil {
		return time.Time{}, err
	}
	sched, err := cronParser.Parse(j.CronExpression)
	if err != nil {
		return time.Time{}, errors.Wrapf(errors.ErrInvalidSchedule, "invalid cron expression %q: %v", j.CronExpression, err)
	}
	return sched.Next(after.In(loc)), nil
}

// Scheduler keeps one live cron entry per active job. It can always be
// rebuilt from the store: Start reconciles the entry map against the
// active jobs, and Schedule/Unschedule keep it current afterwards.
type Scheduler struct {
	store  *Store
	engine *Engine
	cron   *cron.Cron
	logger *zap.SugaredLogger

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// NewScheduler creates a scheduler. Call Start to load active jobs and
// begin firing.
func NewScheduler(store *Store, engine *Engine, logger *zap.SugaredLogger) *Scheduler {
	return &Scheduler{
		store:  store,
		engine: engine,
		cron: cron.New(
			cron.WithParser(cronParser),
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.Recover(cronLogger{logger})),
		),
		logger:  logger,
		entries: make(map[string]cron.EntryID),
	}
}

// Start loads every active job from the store, schedules each, and
// starts the cron runtime. Jobs whose stored schedule no longer parses
// are logged and skipped rather than failing startup.
func (s *Scheduler) Start(ctx context.Context) error {
	jobs, err := s.store.ListActiveJobs()
	if err != nil {
		return errors.Wrap(err, "failed to load active jobs")
	}

	for _, job := range jobs {
		if err := s.Schedule(ctx, job); err != nil {
			s.logger.Errorw("Skipping unschedulable job at startup",
				"job_id", job.ID,
				"cron_expression", job.CronExpression,
				"error", err)
		}
	}

	s.cron.Start()
	s.logger.Infow("Scheduler started", "scheduled_jobs", s.EntryCount())

	return nil
}

// Schedule registers a live cron entry for the job, replacing any
// existing entry. On each fire the job is re-read from the store so
// config edits apply to the next run and a job paused mid-flight does
// not fire again.
func (s *Scheduler) Schedule(ctx context.Context, job *Job) error {
	if err := ValidateSpec(job.CronExpression, job.Timezone); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, ok := s.entries[job.ID]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, job.ID)
	}

	jobID := job.ID
	entryID, err := s.cron.AddFunc(cronSpec(job), func() {
		s.fire(ctx, jobID)
	})
	if err != nil {
		return errors.Wrapf(errors.ErrInvalidSchedule, "failed to schedule job %s: %v", job.ID, err)
	}

	s.entries[job.ID] = entryID
	s.logger.Infow("Job scheduled",
		"job_id", job.ID,
		"cron_expression", job.CronExpression,
		"timezone", job.Timezone)

	return nil
}

// Unschedule removes the job's live cron entry if one exists.
func (s *Scheduler) Unschedule(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID, ok := s.entries[jobID]
	if !ok {
		return
	}
	s.cron.Remove(entryID)
	delete(s.entries, jobID)
	s.logger.Infow("Job unscheduled", "job_id", jobID)
}

// Reschedule replaces the job's cron entry with one reflecting its
// current schedule.
func (s *Scheduler) Reschedule(ctx context.Context, job *Job) error {
	return s.Schedule(ctx, job)
}

// IsScheduled reports whether the job has a live cron entry.
func (s *Scheduler) IsScheduled(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.entries[jobID]
	return ok
}

// EntryCount returns the number of live cron entries.
func (s *Scheduler) EntryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries)
}

// StopAll stops the cron runtime and waits for in-flight executions to
// finish. The entry map is cleared; a later Start rebuilds it from the
// store.
func (s *Scheduler) StopAll() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()

	s.mu.Lock()
	for _, entryID := range s.entries {
		s.cron.Remove(entryID)
	}
	s.entries = make(map[string]cron.EntryID)
	s.mu.Unlock()

	s.logger.Infow("Scheduler stopped")
}

// fire runs one scheduled execution. The job is re-read so the entry
// map never holds stale job state.
func (s *Scheduler) fire(ctx context.Context, jobID string) {
	job, err := s.store.GetJob(jobID)
	if err != nil {
		s.logger.Errorw("Scheduled job vanished before firing",
			"job_id", jobID,
			"error", err)
		return
	}
	if job.Status != StatusActive {
		s.logger.Debugw("Skipping fire for non-active job",
			"job_id", jobID,
			"status", job.Status)
		return
	}

	s.engine.Execute(ctx, job, false, "")
}

// cronLogger adapts the zap logger to the cron runtime's logging
// interface, used by the panic-recovery chain.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Infow(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
