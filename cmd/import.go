package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-qualify/internal/chain"
	"github.com/sells-group/lead-qualify/internal/leadfile"
	"github.com/sells-group/lead-qualify/internal/model"
	"github.com/sells-group/lead-qualify/internal/template"
)

var (
	importName       string
	importSource     string
	importCampaignID string
	importIndustryID string
	importBlueprint  string
	importRun        bool
	importDryRun     bool
	importPersona    string
	importResolve    bool
	importSkipTrace  bool
	importVerify     bool
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a CSV or XLSX lead file as a new batch",
	Long: "Reads every row of the file into a new batch at DATA_IMPORT. With --run the batch " +
		"is driven through enrichment, contactability, campaign prep, preview and deploy.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		path := args[0]

		rows, err := leadfile.ReadFile(ctx, path)
		if err != nil {
			return eris.Wrapf(err, "import: read %s", path)
		}
		if len(rows) == 0 {
			return eris.Errorf("import: %s has no data rows", path)
		}

		mode := ""
		if importRun && !importDryRun {
			mode = "deploy"
		}
		env, err := initEnv(ctx, mode)
		if err != nil {
			return err
		}
		defer env.Close()

		opts := chain.ImportOptions{
			Name:       importName,
			Source:     importSource,
			CampaignID: importCampaignID,
			IndustryID: importIndustryID,
			Blueprint:  model.Blueprint(strings.ToUpper(importBlueprint)),
		}
		if opts.Name == "" {
			opts.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}

		if !importRun {
			res, err := env.Chain.Import(ctx, rows, opts)
			if err != nil {
				return err
			}
			zap.L().Info("import complete",
				zap.String("batch_id", res.BatchID),
				zap.Int("succeeded", res.Succeeded),
				zap.Int("failed", res.Failed),
			)
			return printJSON(os.Stdout, res)
		}

		out, err := env.Chain.RunFull(ctx, rows, chain.FullOptions{
			Import: opts,
			Enrich: chain.EnrichOptions{
				Resolve:        importResolve,
				SkipTrace:      importSkipTrace,
				VerifyBusiness: importVerify,
			},
			Prep:   chain.PrepOptions{PersonaID: importPersona, TemplateStage: template.StageOpener},
			DryRun: importDryRun,
		})
		if err != nil {
			return err
		}
		zap.L().Info("chain complete",
			zap.String("batch_id", out.BatchID),
			zap.Bool("success", out.Success),
			zap.Int("stages", len(out.Stages)),
		)
		return printJSON(os.Stdout, out)
	},
}

func init() {
	f := importCmd.Flags()
	f.StringVar(&importName, "name", "", "batch name (default: file name)")
	f.StringVar(&importSource, "source", "csv", "lead source recorded on the batch")
	f.StringVar(&importCampaignID, "campaign", "", "campaign id")
	f.StringVar(&importIndustryID, "industry", "", "industry id")
	f.StringVar(&importBlueprint, "blueprint", "", "campaign blueprint (COLD, WARM, RETENTION)")
	f.BoolVar(&importRun, "run", false, "run the full chain after import")
	f.BoolVar(&importDryRun, "dry-run", false, "with --run, stop short of sending messages")
	f.StringVar(&importPersona, "persona", "busy_ceo", "with --run, persona for campaign prep")
	f.BoolVar(&importResolve, "resolve", true, "with --run, enrich leads inline")
	f.BoolVar(&importSkipTrace, "skip-trace", false, "with --run, skip-trace owners")
	f.BoolVar(&importVerify, "verify", false, "with --run, verify businesses with the research provider")
	rootCmd.AddCommand(importCmd)
}
