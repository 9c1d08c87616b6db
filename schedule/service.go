package schedule

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Renagang21/o4o-platform-sub086/errors"
)

// DefaultListLimit bounds list queries when the caller passes no limit.
const DefaultListLimit = 100

// CreateJobInput carries the fields for registering a new job.
type CreateJobInput struct {
	Name           string
	CronExpression string
	Timezone       string
	TargetService  string
	ActionType     string
	Config         string // JSON document; empty allowed
	Status         string // defaults to active
	OrganizationID string
}

// JobUpdate carries a partial update; nil fields are left unchanged.
type JobUpdate struct {
	Name           *string
	CronExpression *string
	Timezone       *string
	TargetService  *string
	ActionType     *string
	Config         *string
	Status         *string
	OrganizationID *string
}

// Service is the management surface over jobs: create, update, delete,
// pause/resume, manual trigger, and history. It keeps the scheduler's
// live entries consistent with the store on every mutation.
type Service struct {
	store     *Store
	execStore *ExecutionStore
	engine    *Engine
	scheduler *Scheduler
	logger    *zap.SugaredLogger

	now func() time.Time
	id  func() string
}

// NewService creates a management service.
func NewService(store *Store, execStore *ExecutionStore, engine *Engine, scheduler *Scheduler, logger *zap.SugaredLogger) *Service {
	return &Service{
		store:     store,
		execStore: execStore,
		engine:    engine,
		scheduler: scheduler,
		logger:    logger,
		now:       time.Now,
		id:        func() string { return "SJ_" + uuid.NewString() },
	}
}

// CreateJob validates and registers a new job. The cron expression and
// timezone are validated before anything is persisted; an active job
// gets its live cron entry before CreateJob returns.
func (s *Service) CreateJob(ctx context.Context, input CreateJobInput) (*Job, error) {
	if input.Name == "" {
		return nil, errors.Wrap(errors.ErrInvalidRequest, "job name is required")
	}
	if input.TargetService == "" || input.ActionType == "" {
		return nil, errors.Wrap(errors.ErrInvalidRequest, "target service and action type are required")
	}
	if err := ValidateSpec(input.CronExpression, input.Timezone); err != nil {
		return nil, err
	}
	if input.Config != "" && !json.Valid([]byte(input.Config)) {
		return nil, errors.Wrap(errors.ErrInvalidRequest, "config is not valid JSON")
	}

	status := input.Status
	if status == "" {
		status = StatusActive
	}
	if !IsValidJobStatus(status) {
		return nil, errors.Wrapf(errors.ErrInvalidRequest, "invalid job status %q", status)
	}

	now := s.now().UTC()
	job := &Job{
		ID:             s.id(),
		Name:           input.Name,
		CronExpression: input.CronExpression,
		Timezone:       input.Timezone,
		TargetService:  input.TargetService,
		ActionType:     input.ActionType,
		Config:         input.Config,
		Status:         status,
		OrganizationID: input.OrganizationID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.store.CreateJob(job); err != nil {
		return nil, err
	}

	if job.Status == StatusActive {
		if err := s.scheduler.Schedule(ctx, job); err != nil {
			return nil, err
		}
	}

	s.logger.Infow("Job created",
		"job_id", job.ID,
		"name", job.Name,
		"target", job.TargetService+"."+job.ActionType,
		"status", job.Status)

	return job, nil
}

// UpdateJob applies a partial update. Schedule fields are re-validated
// when changed, and the live cron entry is rebuilt or removed so the
// scheduler always reflects the stored job.
func (s *Service) UpdateJob(ctx context.Context, id string, update JobUpdate) (*Job, error) {
	job, err := s.store.GetJob(id)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		if *update.Name == "" {
			return nil, errors.Wrap(errors.ErrInvalidRequest, "job name cannot be empty")
		}
		job.Name = *update.Name
	}
	if update.CronExpression != nil {
		job.CronExpression = *update.CronExpression
	}
	if update.Timezone != nil {
		job.Timezone = *update.Timezone
	}
	if update.CronExpression != nil || update.Timezone != nil {
		if err := ValidateSpec(job.CronExpression, job.Timezone); err != nil {
			return nil, err
		}
	}
	if update.TargetService != nil {
		if *update.TargetService == "" {
			return nil, errors.Wrap(errors.ErrInvalidRequest, "target service cannot be empty")
		}
		job.TargetService = *update.TargetService
	}
	if update.ActionType != nil {
		if *update.ActionType == "" {
			return nil, errors.Wrap(errors.ErrInvalidRequest, "action type cannot be empty")
		}
		job.ActionType = *update.ActionType
	}
	if update.Config != nil {
		if *update.Config != "" && !json.Valid([]byte(*update.Config)) {
			return nil, errors.Wrap(errors.ErrInvalidRequest, "config is not valid JSON")
		}
		job.Config = *update.Config
	}
	if update.Status != nil {
		if !IsValidJobStatus(*update.Status) {
			return nil, errors.Wrapf(errors.ErrInvalidRequest, "invalid job status %q", *update.Status)
		}
		job.Status = *update.Status
	}
	if update.OrganizationID != nil {
		job.OrganizationID = *update.OrganizationID
	}

	job.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateJob(job); err != nil {
		return nil, err
	}

	if job.Status == StatusActive {
		if err := s.scheduler.Reschedule(ctx, job); err != nil {
			return nil, err
		}
	} else {
		s.scheduler.Unschedule(job.ID)
	}

	s.logger.Infow("Job updated", "job_id", job.ID, "status", job.Status)

	return job, nil
}

// DeleteJob removes the job's live cron entry first, then deletes it.
// Failure queue items for the job survive deletion for audit.
func (s *Service) DeleteJob(id string) error {
	s.scheduler.Unschedule(id)
	if err := s.store.DeleteJob(id); err != nil {
		return err
	}

	s.logger.Infow("Job deleted", "job_id", id)

	return nil
}

// PauseJob stops scheduled firing without losing the job.
func (s *Service) PauseJob(id string) (*Job, error) {
	status := StatusPaused
	return s.UpdateJob(context.Background(), id, JobUpdate{Status: &status})
}

// ResumeJob re-activates a paused or disabled job and restores its
// cron entry.
func (s *Service) ResumeJob(ctx context.Context, id string) (*Job, error) {
	status := StatusActive
	return s.UpdateJob(ctx, id, JobUpdate{Status: &status})
}

// GetJob retrieves a job by ID
func (s *Service) GetJob(id string) (*Job, error) {
	return s.store.GetJob(id)
}

// ListJobs returns jobs newest first, optionally filtered by status.
func (s *Service) ListJobs(status string, limit int) ([]*Job, error) {
	if status != "" && !IsValidJobStatus(status) {
		return nil, errors.Wrapf(errors.ErrInvalidRequest, "invalid job status %q", status)
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return s.store.ListJobs(status, limit)
}

// TriggerJob executes the job immediately, outside its cron schedule.
// Manual triggers run regardless of job status so operators can test
// paused jobs; the execution log records who triggered it.
func (s *Service) TriggerJob(ctx context.Context, id, triggeredBy string) (*Execution, error) {
	job, err := s.store.GetJob(id)
	if err != nil {
		return nil, err
	}

	s.logger.Infow("Manual trigger", "job_id", id, "triggered_by", triggeredBy)

	return s.engine.Execute(ctx, job, true, triggeredBy), nil
}

// ListExecutions returns a job's execution history, newest first.
func (s *Service) ListExecutions(jobID string, limit int) ([]*Execution, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return s.execStore.ListExecutionsForJob(jobID, limit)
}
