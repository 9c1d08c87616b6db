package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/Renagang21/o4o-platform-sub086/failqueue"
	"github.com/Renagang21/o4o-platform-sub086/logger"
	"github.com/Renagang21/o4o-platform-sub086/schedule"
)

// StartCmd runs the scheduler daemon in foreground
var StartCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the scheduler daemon",
	Long: `Run the scheduler daemon in foreground mode.

The daemon will:
- Load active jobs and schedule them on their cron expressions
- Execute jobs through registered handlers, logging every attempt
- Sweep the failure queue and retry failed items with backoff
- Run until interrupted (Ctrl+C) with graceful shutdown

The daemon itself registers no business handlers; embedding
applications build their own binary around the schedule package and
register handlers before starting.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		database, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		store := schedule.NewStore(database)
		execStore := schedule.NewExecutionStore(database)
		registry := schedule.NewRegistry()
		queue := failqueue.NewQueue(database)

		engine := schedule.NewEngine(database, store, execStore, registry, queue,
			schedule.EngineConfig{ExecutionTimeout: cfg.Scheduler.ExecutionTimeout()},
			logger.Logger)

		scheduler := schedule.NewScheduler(store, engine, logger.Logger)
		if err := scheduler.Start(ctx); err != nil {
			return err
		}

		retryCfg := schedule.RetryProcessorConfig{
			Interval:     cfg.Retry.RetryInterval(),
			BatchSize:    cfg.Retry.BatchSize,
			CleanupAfter: cfg.Retry.CleanupAfter(),
		}
		if cfg.Retry.RatePerMinute > 0 {
			retryCfg.RetryLimit = rate.NewLimiter(rate.Limit(float64(cfg.Retry.RatePerMinute)/60.0), 1)
		}
		processor := schedule.NewRetryProcessorWithContext(ctx, database, queue, registry, retryCfg, logger.Logger)
		processor.Start()

		fmt.Printf("o4o-scheduler started\n")
		fmt.Printf("  Database: %s\n", cfg.Database.Path)
		fmt.Printf("  Scheduled jobs: %d\n", scheduler.EntryCount())
		fmt.Printf("  Retry sweep: every %v, batch %d\n", retryCfg.Interval, retryCfg.BatchSize)
		fmt.Printf("\nPress Ctrl+C for graceful shutdown\n\n")

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		fmt.Printf("\nShutting down...\n")

		// Stop components in reverse order of startup
		processor.Stop()
		scheduler.StopAll()
		cancel()
		logger.Sync()

		fmt.Printf("o4o-scheduler stopped\n")
		return nil
	},
}
