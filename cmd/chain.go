package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-qualify/internal/chain"
	"github.com/sells-group/lead-qualify/internal/model"
	"github.com/sells-group/lead-qualify/internal/template"
	"github.com/sells-group/lead-qualify/pkg/tracerfy"
)

var chainCmd = &cobra.Command{
	Use:   "chain",
	Short: "Run one execution-chain stage on a stored batch",
	Long: "Each subcommand runs a single stage and records the outcome on the batch. " +
		"Stages must run in order; --fail-forward lets a stage follow one that failed.",
}

var chainFailForward bool

// runStage runs stage on batchID and prints the result.
func runStage(cmd *cobra.Command, mode, batchID string, stage model.ExecutionStage, opts chain.StageOptions) error {
	ctx := cmd.Context()
	env, err := initEnv(ctx, mode)
	if err != nil {
		return err
	}
	defer env.Close()

	opts.FailForward = chainFailForward
	res, err := env.Chain.Run(ctx, batchID, stage, opts)
	if err != nil {
		return err
	}
	zap.L().Info("stage complete",
		zap.String("batch_id", batchID),
		zap.String("stage", string(stage)),
		zap.Bool("success", res.Success),
		zap.Int("succeeded", res.Succeeded),
		zap.Int("failed", res.Failed),
	)
	return printJSON(os.Stdout, res)
}

func pollOptions() []tracerfy.PollOption {
	interval, ceiling, timeout := cfg.Enrich.Poll()
	return []tracerfy.PollOption{
		tracerfy.WithPollInterval(interval),
		tracerfy.WithPollCap(ceiling),
		tracerfy.WithPollTimeout(timeout),
	}
}

// -- chain enrich --

var (
	enrichSkipTrace bool
	enrichVerify    bool
	enrichResolve   bool
	enrichAwait     bool
)

var chainEnrichCmd = &cobra.Command{
	Use:   "enrich <batch-id>",
	Short: "Queue or run enrichment for a batch",
	Long: "Without --resolve, skip-trace is queued with the vendor and the batch records the queue id; " +
		"use --await (or 'chain await') to fold the results in. With --resolve every lead is enriched inline.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(cmd, "", args[0], model.StageEnrich, chain.StageOptions{
			Enrich: chain.EnrichOptions{
				SkipTrace:      enrichSkipTrace,
				VerifyBusiness: enrichVerify,
				Resolve:        enrichResolve,
				Await:          enrichAwait,
				Poll:           pollOptions(),
			},
		})
	},
}

// -- chain await --

var chainAwaitCmd = &cobra.Command{
	Use:   "await <batch-id>",
	Short: "Wait for a queued skip-trace and apply its results",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Chain.AwaitTrace(ctx, args[0], pollOptions()...)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, res)
	},
}

// -- chain contactability --

var chainContactabilityCmd = &cobra.Command{
	Use:   "contactability <batch-id>",
	Short: "Classify each lead's primary line type",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(cmd, "", args[0], model.StageContactability, chain.StageOptions{})
	},
}

// -- chain prep --

var (
	prepPersona       string
	prepTemplateStage string
	prepCampaign      string
)

var chainPrepCmd = &cobra.Command{
	Use:   "prep <batch-id>",
	Short: "Assign persona and template to contactable leads",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(cmd, "", args[0], model.StageCampaignPrep, chain.StageOptions{
			Prep: chain.PrepOptions{
				PersonaID:     prepPersona,
				TemplateStage: template.Stage(prepTemplateStage),
				CampaignID:    prepCampaign,
			},
		})
	},
}

// -- chain preview --

var chainPreviewCmd = &cobra.Command{
	Use:   "preview <batch-id>",
	Short: "Show what a deploy would send, without sending",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "")
		if err != nil {
			return err
		}
		defer env.Close()

		if _, err := env.Chain.Batch(ctx, args[0]); err != nil {
			return err
		}
		p, err := env.Chain.Preview(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, p)
	},
}

// -- chain deploy --

var (
	deployDryRun bool
	deployLimit  int
)

var chainDeployCmd = &cobra.Command{
	Use:   "deploy <batch-id>",
	Short: "Text every campaign-ready lead of a batch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode := "deploy"
		if deployDryRun {
			mode = ""
		}
		return runStage(cmd, mode, args[0], model.StageDeploy, chain.StageOptions{
			Deploy: chain.DeployOptions{DryRun: deployDryRun, Limit: deployLimit},
		})
	},
}

func init() {
	chainCmd.PersistentFlags().BoolVar(&chainFailForward, "fail-forward", false, "run even if the previous stage failed")

	chainEnrichCmd.Flags().BoolVar(&enrichSkipTrace, "skip-trace", true, "skip-trace owners")
	chainEnrichCmd.Flags().BoolVar(&enrichVerify, "verify", false, "verify businesses with the research provider")
	chainEnrichCmd.Flags().BoolVar(&enrichResolve, "resolve", false, "enrich inline instead of queueing")
	chainEnrichCmd.Flags().BoolVar(&enrichAwait, "await", false, "wait for a queued skip-trace to finish")

	chainPrepCmd.Flags().StringVar(&prepPersona, "persona", "busy_ceo", "persona id")
	chainPrepCmd.Flags().StringVar(&prepTemplateStage, "template-stage", string(template.StageOpener), "template stage (opener, nudge, value, close)")
	chainPrepCmd.Flags().StringVar(&prepCampaign, "campaign", "", "campaign id")

	chainDeployCmd.Flags().BoolVar(&deployDryRun, "dry-run", false, "report counts without sending")
	chainDeployCmd.Flags().IntVar(&deployLimit, "limit", 0, "maximum leads to text (0 = all)")

	chainCmd.AddCommand(chainEnrichCmd, chainAwaitCmd, chainContactabilityCmd, chainPrepCmd, chainPreviewCmd, chainDeployCmd)
	rootCmd.AddCommand(chainCmd)
}
