// Package commands implements the o4o-scheduler CLI.
package commands

import (
	"database/sql"

	"github.com/spf13/cobra"

	"github.com/Renagang21/o4o-platform-sub086/config"
	"github.com/Renagang21/o4o-platform-sub086/db"
	"github.com/Renagang21/o4o-platform-sub086/errors"
	"github.com/Renagang21/o4o-platform-sub086/logger"
)

var (
	configPath string
	dbPath     string
)

// RootCmd is the o4o-scheduler command tree root
var RootCmd = &cobra.Command{
	Use:   "o4o-scheduler",
	Short: "o4o platform job scheduler and failure-recovery engine",
	Long: `o4o-scheduler runs cron-driven automation jobs and retries their failures.

Available commands:
  start    - Run the scheduler daemon in foreground
  jobs     - List, trigger, pause and resume scheduled jobs
  failures - Inspect, retry and cancel failure queue items

Examples:
  o4o-scheduler start                     # Run the daemon
  o4o-scheduler jobs list                 # Show registered jobs
  o4o-scheduler jobs trigger SJ_abc       # Run a job immediately
  o4o-scheduler failures list --status pending
  o4o-scheduler failures cancel FQ_abc --reason "fixed manually"`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return logger.Initialize(cfg.Logging.JSON)
	},
}

func init() {
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to TOML config file")
	RootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path (overrides config)")

	RootCmd.AddCommand(StartCmd)
	RootCmd.AddCommand(JobsCmd)
	RootCmd.AddCommand(FailuresCmd)
}

// loadConfig resolves the daemon configuration, honoring --config and
// the --db override.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	return cfg, nil
}

// openDatabase opens and migrates the scheduler database.
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	database, err := db.Open(cfg.Database.Path, logger.Logger)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database %s", cfg.Database.Path)
	}
	if err := db.Migrate(database, logger.Logger); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}
