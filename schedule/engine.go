package schedule

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Renagang21/o4o-platform-sub086/errors"
	"github.com/Renagang21/o4o-platform-sub086/failqueue"
)

// errNoHandler builds the error recorded when no handler is registered
// for a (service, action) pair. Marked with ErrNoHandler so callers can
// match it with errors.Is.
func errNoHandler(service, action string) error {
	return errors.Mark(errors.Newf("no handler registered for %s.%s", service, action), errors.ErrNoHandler)
}

// DefaultExecutionTimeout bounds a single handler invocation unless
// overridden through EngineConfig.
const DefaultExecutionTimeout = 15 * time.Minute

// EngineConfig tunes engine behavior.
type EngineConfig struct {
	// ExecutionTimeout caps each handler invocation. Zero means no
	// timeout beyond the caller's context.
	ExecutionTimeout time.Duration
}

// Engine executes jobs and writes their execution logs. Execute never
// returns an error to the caller: every outcome, including a missing
// handler or a handler panic, becomes a finalized Execution record.
type Engine struct {
	db        *sql.DB
	store     *Store
	execStore *ExecutionStore
	registry  *Registry
	queue     *failqueue.Queue
	timeout   time.Duration
	logger    *zap.SugaredLogger

	now func() time.Time
	id  func() string
}

// NewEngine creates an execution engine.
func NewEngine(db *sql.DB, store *Store, execStore *ExecutionStore, registry *Registry, queue *failqueue.Queue, cfg EngineConfig, logger *zap.SugaredLogger) *Engine {
	timeout := cfg.ExecutionTimeout
	if timeout == 0 {
		timeout = DefaultExecutionTimeout
	}
	return &Engine{
		db:        db,
		store:     store,
		execStore: execStore,
		registry:  registry,
		queue:     queue,
		timeout:   timeout,
		logger:    logger,
		now:       time.Now,
		id:        func() string { return "JX_" + uuid.NewString() },
	}
}

// Execute runs one attempt of the job and returns its finalized
// execution log. Outcomes map to the execution result as follows:
// handler error, panic, or missing handler is a failure; a reported
// non-success with some succeeded items is partial; a reported success
// is success even when individual items failed (those go through the
// failure queue).
func (e *Engine) Execute(ctx context.Context, job *Job, isManual bool, triggeredBy string) *Execution {
	startedAt := e.now().UTC()
	exec := &Execution{
		ID:              e.id(),
		JobID:           job.ID,
		StartedAt:       startedAt,
		IsManualTrigger: isManual,
		TriggeredBy:     triggeredBy,
		Result:          ResultRunning,
		CreatedAt:       startedAt,
		UpdatedAt:       startedAt,
	}

	if err := e.execStore.CreateExecution(exec); err != nil {
		e.logger.Errorw("Failed to create execution record",
			"job_id", job.ID,
			"execution_id", exec.ID,
			"error", err)
	}

	handler, ok := e.registry.Resolve(job.HandlerKey())
	if !ok {
		e.logger.Warnw("No handler registered for job",
			"job_id", job.ID,
			"target_service", job.TargetService,
			"action_type", job.ActionType)
		e.finalize(exec, nil, errNoHandler(job.HandlerKey()), "")
		e.record(job, exec)
		return exec
	}

	config, err := job.ConfigMap()
	if err != nil {
		e.finalize(exec, nil, err, "")
		e.record(job, exec)
		return exec
	}

	result, handlerErr, stack := e.invoke(ctx, job, exec, handler, config)
	e.finalize(exec, result, handlerErr, stack)
	e.record(job, exec)

	e.logger.Infow("Job execution completed",
		"job_id", job.ID,
		"execution_id", exec.ID,
		"result", exec.Result,
		"duration_ms", exec.DurationMs,
		"manual", isManual)

	return exec
}

// invoke runs the handler inside an execution-scoped transaction with
// panic recovery. The transaction commits when the handler returns and
// rolls back on error or panic.
func (e *Engine) invoke(ctx context.Context, job *Job, exec *Execution, handler Handler, config map[string]interface{}) (result *Result, err error, stack string) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	tx, txErr := e.db.BeginTx(ctx, nil)
	if txErr != nil {
		return nil, txErr, ""
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
			stack = string(debug.Stack())
			result = nil
			e.logger.Errorw("Handler panicked",
				"job_id", job.ID,
				"execution_id", exec.ID,
				"panic", r)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				e.logger.Warnw("Failed to roll back execution transaction",
					"execution_id", exec.ID,
					"error", rbErr)
			}
			return
		}
		if cmErr := tx.Commit(); cmErr != nil {
			err = cmErr
			result = nil
		}
	}()

	run := &Run{
		ExecutionID:     exec.ID,
		Job:             job,
		Config:          config,
		IsManualTrigger: exec.IsManualTrigger,
		TriggeredBy:     exec.TriggeredBy,
		Tx:              tx,
		FailureQueue:    e.queue,
	}

	result, err = handler.Execute(ctx, run)
	return result, err, stack
}

// finalize writes the outcome into the execution record. Store write
// failures are logged and swallowed; the in-memory record returned to
// the caller always reflects the real outcome.
func (e *Engine) finalize(exec *Execution, result *Result, handlerErr error, stack string) {
	completedAt := e.now().UTC()
	durationMs := completedAt.Sub(exec.StartedAt).Milliseconds()
	exec.CompletedAt = &completedAt
	exec.DurationMs = &durationMs
	exec.UpdatedAt = completedAt
	exec.ErrorStack = stack

	switch {
	case handlerErr != nil:
		exec.Result = ResultFailure
		exec.ErrorMessage = handlerErr.Error()
	case result == nil:
		exec.Result = ResultFailure
		exec.ErrorMessage = "handler returned no result"
	default:
		exec.ItemsProcessed = result.ItemsProcessed
		exec.ItemsSucceeded = result.ItemsSucceeded
		exec.ItemsFailed = result.ItemsFailed
		exec.Summary = result.Summary
		exec.ErrorMessage = result.Error
		if len(result.Details) > 0 {
			if details, err := json.Marshal(result.Details); err == nil {
				exec.Details = string(details)
			} else {
				e.logger.Warnw("Failed to serialize execution details",
					"execution_id", exec.ID,
					"error", err)
			}
		}
		switch {
		case result.Success:
			exec.Result = ResultSuccess
		case result.ItemsSucceeded > 0:
			exec.Result = ResultPartial
		default:
			exec.Result = ResultFailure
			if exec.ErrorMessage == "" {
				exec.ErrorMessage = "handler reported failure"
			}
		}
	}

	if err := e.execStore.FinalizeExecution(exec); err != nil {
		e.logger.Errorw("Failed to finalize execution record",
			"execution_id", exec.ID,
			"result", exec.Result,
			"error", err)
	}
}

// record updates the job's counters and last-execution bookkeeping.
func (e *Engine) record(job *Job, exec *Execution) {
	at := exec.StartedAt
	if exec.CompletedAt != nil {
		at = *exec.CompletedAt
	}
	if err := e.store.RecordExecution(job.ID, at, exec.Result); err != nil {
		e.logger.Errorw("Failed to record execution on job",
			"job_id", job.ID,
			"execution_id", exec.ID,
			"error", err)
	}
}
