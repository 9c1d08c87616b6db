package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Renagang21/o4o-platform-sub086/failqueue"
)

var (
	failuresStatus string
	failuresLimit  int
	cancelReason   string
	resolveNotes   string
)

// FailuresCmd groups failure queue management commands
var FailuresCmd = &cobra.Command{
	Use:   "failures",
	Short: "Manage the job failure queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// FailuresListCmd lists failure queue items
var FailuresListCmd = &cobra.Command{
	Use:   "list",
	Short: "List failure queue items",
	RunE: func(cmd *cobra.Command, args []string) error {
		queue, cleanup, err := newQueueEnv()
		if err != nil {
			return err
		}
		defer cleanup()

		var status *failqueue.Status
		if failuresStatus != "" {
			if !failqueue.IsValidStatus(failuresStatus) {
				return fmt.Errorf("unknown status %q", failuresStatus)
			}
			s := failqueue.Status(failuresStatus)
			status = &s
		}

		items, err := queue.List(status, failuresLimit)
		if err != nil {
			return err
		}

		if len(items) == 0 {
			fmt.Println("No failure items found")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTARGET\tENTITY\tPRIO\tRETRIES\tNEXT RETRY\tSTATUS\tLAST ERROR")
		for _, item := range items {
			fmt.Fprintf(w, "%s\t%s.%s\t%s/%s\t%d\t%d/%d\t%s\t%s\t%s\n",
				item.ID, item.TargetService, item.ActionType,
				item.TargetEntityType, item.TargetEntityID,
				item.Priority, item.RetryCount, item.MaxRetries,
				item.NextRetryAt.Format("2006-01-02 15:04"),
				item.Status, item.LastError)
		}
		return w.Flush()
	},
}

// FailuresRetryCmd forces an item back into the due-set
var FailuresRetryCmd = &cobra.Command{
	Use:   "retry <item-id>",
	Short: "Make a failure item due for the next retry sweep",
	Long: `Make a failure item due for the next retry sweep.

The item's next retry time is pulled up to now; the running daemon's
retry processor re-invokes the handler on its next sweep. Items that
have spent their retry budget cannot be retried.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		queue, cleanup, err := newQueueEnv()
		if err != nil {
			return err
		}
		defer cleanup()

		item, err := queue.MakeDue(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Item %s due for retry %d/%d on the next sweep\n",
			item.ID, item.RetryCount+1, item.MaxRetries)
		return nil
	},
}

// FailuresResolveCmd marks an item resolved by hand
var FailuresResolveCmd = &cobra.Command{
	Use:   "resolve <item-id>",
	Short: "Mark a failure item resolved",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		queue, cleanup, err := newQueueEnv()
		if err != nil {
			return err
		}
		defer cleanup()

		item, err := queue.Resolve(args[0], resolveNotes)
		if err != nil {
			return err
		}

		fmt.Printf("Item %s resolved\n", item.ID)
		return nil
	},
}

// FailuresCancelCmd cancels an item permanently
var FailuresCancelCmd = &cobra.Command{
	Use:   "cancel <item-id>",
	Short: "Cancel a failure item so it is never retried",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		queue, cleanup, err := newQueueEnv()
		if err != nil {
			return err
		}
		defer cleanup()

		item, err := queue.Cancel(args[0], cancelReason)
		if err != nil {
			return err
		}

		fmt.Printf("Item %s cancelled\n", item.ID)
		return nil
	},
}

// newQueueEnv wires a failure queue over the configured database.
func newQueueEnv() (*failqueue.Queue, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	database, err := openDatabase(cfg)
	if err != nil {
		return nil, nil, err
	}
	return failqueue.NewQueue(database), func() { database.Close() }, nil
}

func init() {
	FailuresListCmd.Flags().StringVar(&failuresStatus, "status", "", "Filter by status (pending, retrying, resolved, cancelled, exhausted)")
	FailuresListCmd.Flags().IntVar(&failuresLimit, "limit", 50, "Maximum items to list")
	FailuresResolveCmd.Flags().StringVar(&resolveNotes, "notes", "resolved manually", "Resolution notes")
	FailuresCancelCmd.Flags().StringVar(&cancelReason, "reason", "", "Why the item is being cancelled")

	FailuresCmd.AddCommand(FailuresListCmd)
	FailuresCmd.AddCommand(FailuresRetryCmd)
	FailuresCmd.AddCommand(FailuresResolveCmd)
	FailuresCmd.AddCommand(FailuresCancelCmd)
}
