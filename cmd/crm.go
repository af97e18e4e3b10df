package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-qualify/internal/crm"
	"github.com/sells-group/lead-qualify/internal/model"
	"github.com/sells-group/lead-qualify/internal/store"
)

var (
	crmBatch     string
	crmLeadStage string
)

var crmCmd = &cobra.Command{
	Use:   "crm",
	Short: "Mirror leads into Salesforce",
}

var crmSyncCmd = &cobra.Command{
	Use:   "sync [lead-id...]",
	Short: "Create or update Salesforce leads",
	Long: "Matches each lead to an open Salesforce Lead by stored record id or phone, updates " +
		"matches and creates the rest. Pass lead ids or --batch.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 && crmBatch == "" {
			return eris.New("crm sync: pass lead ids or --batch")
		}
		ctx := cmd.Context()
		env, err := initEnv(ctx, "crm")
		if err != nil {
			return err
		}
		defer env.Close()

		var leads []*model.EnrichedLead
		if crmBatch != "" {
			leads, err = env.Store.ListLeads(ctx, store.LeadFilter{
				BatchID:   crmBatch,
				LeadStage: model.LeadStage(crmLeadStage),
			})
			if err != nil {
				return eris.Wrap(err, "crm sync: list leads")
			}
		}
		for _, id := range args {
			l, err := env.Store.GetLead(ctx, id)
			if err != nil {
				return err
			}
			leads = append(leads, l)
		}
		if len(leads) == 0 {
			fmt.Fprintln(os.Stderr, "No leads to sync.")
			return nil
		}

		results, err := env.CRM.SyncLeads(ctx, leads)
		if err != nil {
			return err
		}
		failed := saveRecordIDs(cmd, env.Store, leads, results)
		if err := writeSyncTable(os.Stdout, results); err != nil {
			return err
		}
		if failed > 0 {
			return eris.Errorf("crm sync: %d of %d leads failed", failed, len(leads))
		}
		return nil
	},
}

// saveRecordIDs stores new record ids on the leads and returns the number
// of leads that did not sync.
func saveRecordIDs(cmd *cobra.Command, st store.Store, leads []*model.EnrichedLead, results []crm.Result) int {
	failed := 0
	for i, r := range results {
		if r.Error != "" {
			failed++
			continue
		}
		if r.RecordID == leads[i].Meta.CRMRecordID {
			continue
		}
		id := r.RecordID
		if err := st.PatchLead(cmd.Context(), r.LeadID, store.LeadPatch{Meta: &store.MetaPatch{CRMRecordID: &id}}); err != nil {
			zap.L().Error("crm sync: save record id", zap.String("lead_id", r.LeadID), zap.Error(err))
		}
	}
	return failed
}

func writeSyncTable(out io.Writer, results []crm.Result) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LEAD\tRECORD\tACTION\tERROR")
	for _, r := range results {
		action := "updated"
		switch {
		case r.Error != "":
			action = "failed"
		case r.Created:
			action = "created"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.LeadID, r.RecordID, action, r.Error)
	}
	return w.Flush()
}

func init() {
	crmSyncCmd.Flags().StringVar(&crmBatch, "batch", "", "sync every lead of this batch")
	crmSyncCmd.Flags().StringVar(&crmLeadStage, "lead-stage", "", "only leads at this lead stage (e.g. contacted)")
	crmCmd.AddCommand(crmSyncCmd)
	rootCmd.AddCommand(crmCmd)
}
