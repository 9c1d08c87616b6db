package schedule

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Renagang21/o4o-platform-sub086/errors"
	"github.com/Renagang21/o4o-platform-sub086/failqueue"
)

// Retry processor defaults
const (
	DefaultRetryInterval  = 60 * time.Second
	DefaultRetryBatchSize = 10
)

// RetryProcessorConfig contains configuration for the retry processor
type RetryProcessorConfig struct {
	Interval  time.Duration // How often to sweep the failure queue
	BatchSize int           // Max pending items fetched per sweep

	// RetryLimit optionally bounds handler re-invocations across
	// sweeps. Nil means unlimited.
	RetryLimit *rate.Limiter

	// CleanupAfter retains resolved and cancelled items for this long
	// before the periodic cleanup deletes them. Zero disables cleanup.
	CleanupAfter time.Duration
}

// DefaultRetryProcessorConfig returns sensible defaults
func DefaultRetryProcessorConfig() RetryProcessorConfig {
	return RetryProcessorConfig{
		Interval:  DefaultRetryInterval,
		BatchSize: DefaultRetryBatchSize,
	}
}

// RetryProcessor periodically sweeps the failure queue and re-invokes
// handlers for due items, one item at a time. Anything that fails again
// goes back into the queue with its backoff advanced; items that spend
// their retry budget are left exhausted for an operator.
type RetryProcessor struct {
	db           *sql.DB
	queue        *failqueue.Queue
	registry     *Registry
	interval     time.Duration
	batch        int
	limiter      *rate.Limiter
	cleanupAfter time.Duration
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	logger       *zap.SugaredLogger

	now func() time.Time
}

// NewRetryProcessor creates a retry processor
func NewRetryProcessor(db *sql.DB, queue *failqueue.Queue, registry *Registry, cfg RetryProcessorConfig, logger *zap.SugaredLogger) *RetryProcessor {
	return NewRetryProcessorWithContext(context.Background(), db, queue, registry, cfg, logger)
}

// NewRetryProcessorWithContext creates a retry processor with a parent context
func NewRetryProcessorWithContext(ctx context.Context, db *sql.DB, queue *failqueue.Queue, registry *Registry, cfg RetryProcessorConfig, logger *zap.SugaredLogger) *RetryProcessor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultRetryInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultRetryBatchSize
	}
	procCtx, cancel := context.WithCancel(ctx)

	return &RetryProcessor{
		db:           db,
		queue:        queue,
		registry:     registry,
		interval:     cfg.Interval,
		batch:        cfg.BatchSize,
		limiter:      cfg.RetryLimit,
		cleanupAfter: cfg.CleanupAfter,
		ctx:          procCtx,
		cancel:       cancel,
		logger:       logger,
		now:          time.Now,
	}
}

// Start begins the sweep loop
func (p *RetryProcessor) Start() {
	p.wg.Add(1)
	go p.run()
	p.logger.Infow("Retry processor started",
		"interval", p.interval,
		"batch_size", p.batch)
}

// Stop gracefully stops the sweep loop, waiting for an in-flight sweep
// to finish.
func (p *RetryProcessor) Stop() {
	p.cancel()
	p.wg.Wait()
	p.logger.Infow("Retry processor stopped")
}

// cleanupInterval is how often resolved and cancelled items past their
// retention are purged.
const cleanupInterval = time.Hour

// run is the main sweep loop
func (p *RetryProcessor) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	cleanupTicker := time.NewTicker(cleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.ProcessQueue(p.ctx); err != nil {
				p.logger.Errorw("Failure queue sweep failed", "error", err)
			}
		case <-cleanupTicker.C:
			p.cleanup()
		}
	}
}

// cleanup purges resolved and cancelled items past the configured
// retention. A no-op when retention is disabled.
func (p *RetryProcessor) cleanup() {
	if p.cleanupAfter <= 0 {
		return
	}

	removed, err := p.queue.Cleanup(p.cleanupAfter)
	if err != nil {
		p.logger.Errorw("Failure queue cleanup failed", "error", err)
		return
	}
	if removed > 0 {
		p.logger.Infow("Cleaned up settled failure items",
			"removed", removed,
			"retention", p.cleanupAfter)
	}
}

// ProcessQueue runs one sweep: fetch the due batch and retry each item
// sequentially. Returns the number of items attempted. Per-item
// failures advance that item's backoff and never abort the sweep.
func (p *RetryProcessor) ProcessQueue(ctx context.Context) (int, error) {
	due, err := p.queue.Due(p.now(), p.batch)
	if err != nil {
		return 0, errors.Wrap(err, "failed to load due failure items")
	}
	if len(due) == 0 {
		return 0, nil
	}

	p.logger.Infow("Processing failure queue", "due_items", len(due))

	processed := 0
	for _, item := range due {
		select {
		case <-ctx.Done():
			return processed, ctx.Err()
		default:
		}

		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return processed, err
			}
		}

		p.retryItem(ctx, item)
		processed++
	}

	return processed, nil
}

// retryItem re-invokes the handler for a single failed item. The item
// is marked retrying first so a crash mid-retry is visible; the outcome
// either resolves the item or records another failed attempt.
func (p *RetryProcessor) retryItem(ctx context.Context, item *failqueue.Item) {
	if _, err := p.queue.BeginRetry(item.ID); err != nil {
		p.logger.Warnw("Skipping non-retryable item",
			"item_id", item.ID,
			"error", err)
		return
	}

	handler, ok := p.registry.Resolve(item.TargetService, item.ActionType)
	if !ok {
		p.logger.Warnw("No handler registered for failure item",
			"item_id", item.ID,
			"target_service", item.TargetService,
			"action_type", item.ActionType)
		p.recordFailure(item.ID, errNoHandler(item.TargetService, item.ActionType).Error())
		return
	}

	result, err := p.invoke(ctx, handler, item)
	switch {
	case err != nil:
		p.recordFailure(item.ID, err.Error())
	case result == nil || !result.Success:
		msg := "retry reported failure"
		if result != nil && result.Error != "" {
			msg = result.Error
		}
		p.recordFailure(item.ID, msg)
	default:
		notes := "retried successfully"
		if result.Summary != "" {
			notes = result.Summary
		}
		if _, err := p.queue.Resolve(item.ID, notes); err != nil {
			p.logger.Errorw("Failed to resolve retried item",
				"item_id", item.ID,
				"error", err)
			return
		}
		p.logger.Infow("Failure item resolved",
			"item_id", item.ID,
			"retry_count", item.RetryCount)
	}
}

// invoke runs the handler against a single-item run scoped to the
// failed entity, inside a retry-scoped transaction. The transaction
// commits when the handler returns and rolls back on error or panic,
// matching the contract handlers see on scheduled runs.
func (p *RetryProcessor) invoke(ctx context.Context, handler Handler, item *failqueue.Item) (result *Result, err error) {
	tx, txErr := p.db.BeginTx(ctx, nil)
	if txErr != nil {
		return nil, errors.Wrap(txErr, "failed to begin retry transaction")
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = errors.Newf("handler panic: %v", r)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				p.logger.Warnw("Failed to roll back retry transaction",
					"item_id", item.ID,
					"error", rbErr)
			}
			return
		}
		if cmErr := tx.Commit(); cmErr != nil {
			result = nil
			err = cmErr
		}
	}()

	run := &Run{
		Config: map[string]interface{}{
			"singleItemId":   item.TargetEntityID,
			"singleItemType": item.TargetEntityType,
		},
		TriggeredBy:  "retry-processor",
		Tx:           tx,
		FailureQueue: p.queue,
	}

	return handler.Execute(ctx, run)
}

// recordFailure appends the attempt to the item's history; logging aside,
// a write failure here leaves the item in retrying for a later operator.
func (p *RetryProcessor) recordFailure(id, message string) {
	item, err := p.queue.RecordFailure(id, message)
	if err != nil {
		p.logger.Errorw("Failed to record retry failure",
			"item_id", id,
			"error", err)
		return
	}

	p.logger.Infow("Retry attempt failed",
		"item_id", id,
		"retry_count", item.RetryCount,
		"status", item.Status,
		"error", message)
}
