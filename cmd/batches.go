package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/lead-qualify/internal/model"
	"github.com/sells-group/lead-qualify/internal/store"
)

var batchesCmd = &cobra.Command{
	Use:   "batches",
	Short: "Inspect batches",
}

// -- batches list --

var batchesListLimit int

var batchesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent batches",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		batches, err := st.ListBatches(ctx, batchesListLimit)
		if err != nil {
			return eris.Wrap(err, "batches list")
		}
		if len(batches) == 0 {
			fmt.Fprintln(os.Stderr, "No batches found.")
			return nil
		}
		return writeBatchTable(os.Stdout, batches)
	},
}

func writeBatchTable(out io.Writer, batches []model.ExecutionBatch) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTAGE\tSTATUS\tLEADS\tOK\tFAILED\tUPDATED")
	for _, b := range batches {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			b.ID, b.Name, b.Stage, b.Status,
			b.TotalLeads, b.SuccessCount, b.FailCount,
			b.UpdatedAt.Format(time.RFC3339),
		)
	}
	return w.Flush()
}

// -- batches show --

var batchesShowLeads bool

var batchesShowCmd = &cobra.Command{
	Use:   "show <batch-id>",
	Short: "Show one batch as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		b, err := st.GetBatch(ctx, args[0])
		if err != nil {
			return err
		}
		if !batchesShowLeads {
			return printJSON(os.Stdout, b)
		}
		leads, err := st.ListLeads(ctx, store.LeadFilter{BatchID: b.ID})
		if err != nil {
			return eris.Wrap(err, "batches show")
		}
		return printJSON(os.Stdout, map[string]any{"batch": b, "leads": leads})
	},
}

func init() {
	batchesListCmd.Flags().IntVar(&batchesListLimit, "limit", 20, "maximum batches to list")
	batchesShowCmd.Flags().BoolVar(&batchesShowLeads, "leads", false, "include the batch's leads")
	batchesCmd.AddCommand(batchesListCmd, batchesShowCmd)
	rootCmd.AddCommand(batchesCmd)
}
