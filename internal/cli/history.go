package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/elipriaulx/azdo-review-bot/internal/config"
	"github.com/elipriaulx/azdo-review-bot/internal/history"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent review runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cfg.HistoryPath == "" {
			return fmt.Errorf("history_path is not configured")
		}
		store, err := history.Open(cfg.HistoryPath)
		if err != nil {
			return fmt.Errorf("open history store: %w", err)
		}
		defer store.Close()

		runs, err := store.RecentRuns(context.Background(), historyLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No review runs recorded.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "WHEN\tREPO\tPR\tREVISION\tSTATUS\tCOMMENTS\tDURATION")
		for _, run := range runs {
			rev := run.Revision
			if len(rev) > 10 {
				rev = rev[:10]
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%d\t%s\n",
				run.CreatedAt.Local().Format("2006-01-02 15:04"),
				run.Repository, run.PullRequestID, rev,
				run.Status, run.CommentCount, run.Duration.Round(100*time.Millisecond))
		}
		return w.Flush()
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to show")
}
