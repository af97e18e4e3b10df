package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-qualify/internal/resilience"
)

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Inspect and retry dead-lettered lead steps",
}

var (
	dlqErrorType string
	dlqBatchID   string
	dlqLimit     int
)

func dlqFilter() resilience.DLQFilter {
	return resilience.DLQFilter{ErrorType: dlqErrorType, BatchID: dlqBatchID, Limit: dlqLimit}
}

var dlqListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dead-letter entries",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		entries, err := st.ListDLQ(ctx, dlqFilter())
		if err != nil {
			return eris.Wrap(err, "dlq list")
		}
		if len(entries) == 0 {
			fmt.Fprintln(os.Stderr, "Dead-letter queue is empty.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tLEAD\tBATCH\tSTEP\tTYPE\tRETRIES\tNEXT RETRY\tERROR")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d/%d\t%s\t%s\n",
				e.ID, e.LeadID, e.BatchID, e.FailedStep, e.ErrorType,
				e.RetryCount, e.MaxRetries, e.NextRetryAt.Format(time.RFC3339), e.Error)
		}
		return w.Flush()
	},
}

var dlqRetryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Retry due transient entries",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "")
		if err != nil {
			return err
		}
		defer env.Close()

		stats, err := env.Pipeline.RetryDLQ(ctx, env.Store, dlqFilter(), cfg.BatchOptions())
		if err != nil {
			return eris.Wrap(err, "dlq retry")
		}
		zap.L().Info("dlq retry complete",
			zap.Int("attempted", stats.Attempted),
			zap.Int("recovered", stats.Recovered),
			zap.Int("requeued", stats.Requeued),
			zap.Int("exhausted", stats.Exhausted),
			zap.Int("skipped", stats.Skipped),
		)
		return printJSON(os.Stdout, stats)
	},
}

func init() {
	for _, c := range []*cobra.Command{dlqListCmd, dlqRetryCmd} {
		c.Flags().StringVar(&dlqErrorType, "error-type", "", "filter by error type (transient, permanent)")
		c.Flags().StringVar(&dlqBatchID, "batch", "", "filter by batch id")
		c.Flags().IntVar(&dlqLimit, "limit", 100, "maximum entries")
	}
	dlqCmd.AddCommand(dlqListCmd, dlqRetryCmd)
	rootCmd.AddCommand(dlqCmd)
}
