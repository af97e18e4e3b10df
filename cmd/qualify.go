package main

import (
	"fmt"
	"os"
	"sync/atomic"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/lead-qualify/internal/cost"
	"github.com/sells-group/lead-qualify/internal/enrich"
	"github.com/sells-group/lead-qualify/internal/model"
	"github.com/sells-group/lead-qualify/internal/store"
)

var qualifyBatch string

var qualifyCmd = &cobra.Command{
	Use:   "qualify [lead-id...]",
	Short: "Validate phones and score contactability",
	Long: "Runs real-contact validation on each lead's best phone and stores the contactability " +
		"profile, risk tier and outreach route. Pass lead ids or --batch.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 && qualifyBatch == "" {
			return eris.New("qualify: pass lead ids or --batch")
		}
		ctx := cmd.Context()
		env, err := initEnv(ctx, "")
		if err != nil {
			return err
		}
		defer env.Close()
		if env.Validator == nil {
			return eris.New("qualify: trestle.key is required")
		}

		var leads []*model.EnrichedLead
		if qualifyBatch != "" {
			leads, err = env.Store.ListLeads(ctx, store.LeadFilter{BatchID: qualifyBatch})
			if err != nil {
				return eris.Wrap(err, "qualify: list leads")
			}
		}
		for _, id := range args {
			l, err := env.Store.GetLead(ctx, id)
			if err != nil {
				return err
			}
			leads = append(leads, l)
		}

		results := make([]*enrich.Result, len(leads))
		var failed atomic.Int64
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(max(cfg.Batch.Concurrency, 1))
		for i, lead := range leads {
			g.Go(func() error {
				res := env.Pipeline.Qualify(gctx, lead)
				results[i] = res
				if err := env.Store.PatchLead(gctx, lead.ID, enrich.PatchFor(lead)); err != nil {
					failed.Add(1)
					zap.L().Error("qualify: save lead", zap.String("lead_id", lead.ID), zap.Error(err))
				}
				return nil
			})
		}
		_ = g.Wait()

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "LEAD\tNAME\tSCORE\tTIER\tROUTE\tERROR")
		for _, res := range results {
			l := res.Lead
			score, tier, route := "-", "-", "-"
			if q := l.Qualification; q != nil {
				score = fmt.Sprintf("%d", q.Profile.OverallContactabilityScore)
				tier = string(q.Profile.RiskTier)
				route = string(q.Route.Route)
			}
			errText := ""
			if err, ok := res.Errors[model.StepValidate]; ok {
				errText = err.Error()
			}
			fmt.Fprintf(w, "%s\t%s %s\t%s\t%s\t%s\t%s\n", l.ID, l.FirstName, l.LastName, score, tier, route, errText)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if n := failed.Load(); n > 0 {
			return eris.Errorf("qualify: %d leads could not be saved", n)
		}
		return nil
	},
}

// -- estimate --

var (
	estimateTier     string
	estimateValidate bool
	estimateResearch bool
)

var estimateCmd = &cobra.Command{
	Use:   "estimate <leads>",
	Short: "Project the enrichment spend for a number of leads",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var n int
		if _, err := fmt.Sscanf(args[0], "%d", &n); err != nil || n < 0 {
			return eris.Errorf("estimate: %q is not a lead count", args[0])
		}
		calc := cost.NewCalculator(cfg.Pricing)
		return printJSON(os.Stdout, calc.EstimateEnrichment(n, estimateTier, estimateValidate, estimateResearch))
	},
}

func init() {
	qualifyCmd.Flags().StringVar(&qualifyBatch, "batch", "", "qualify every lead of a batch")
	rootCmd.AddCommand(qualifyCmd)

	estimateCmd.Flags().StringVar(&estimateTier, "tier", cost.TierNormal, "skip-trace tier (normal, enhanced)")
	estimateCmd.Flags().BoolVar(&estimateValidate, "validate", true, "include phone validation")
	estimateCmd.Flags().BoolVar(&estimateResearch, "research", false, "include business research")
	rootCmd.AddCommand(estimateCmd)
}
