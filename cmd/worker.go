package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/sells-group/lead-qualify/internal/chain"
	"github.com/sells-group/lead-qualify/internal/model"
	"github.com/sells-group/lead-qualify/internal/template"
	wf "github.com/sells-group/lead-qualify/internal/workflow"
)

func dialTemporal() (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    wf.NewLogger(zap.L()),
	})
	if err != nil {
		return nil, eris.Wrapf(err, "dial temporal %s", cfg.Temporal.HostPort)
	}
	return c, nil
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the durable chain worker",
	Long:  "Polls the Temporal task queue and executes chain workflows and their stage activities.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := initEnv(cmd.Context(), "worker")
		if err != nil {
			return err
		}
		defer env.Close()

		c, err := dialTemporal()
		if err != nil {
			return err
		}
		defer c.Close()

		w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
		wf.Register(w, &wf.Activities{Exec: env.Chain})

		zap.L().Info("worker started",
			zap.String("task_queue", cfg.Temporal.TaskQueue),
			zap.String("namespace", cfg.Temporal.Namespace),
		)
		return eris.Wrap(w.Run(worker.InterruptCh()), "worker")
	},
}

// -- workflow start --

var (
	startPersona string
	startDryRun  bool
	startResolve bool
	startLimit   int
	startStop    string
	startWait    bool
)

var workflowCmd = &cobra.Command{
	Use:   "workflow",
	Short: "Start durable chain runs",
}

var workflowStartCmd = &cobra.Command{
	Use:   "start <batch-id>",
	Short: "Start a chain workflow for a stored batch",
	Long:  "Resumes the batch after its current stage and runs it through DEPLOY (or --stop) on the worker.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("worker"); err != nil {
			return err
		}
		in := wf.ChainInput{
			BatchID: args[0],
			Enrich:  chain.EnrichOptions{Resolve: startResolve, SkipTrace: !startResolve, Await: !startResolve},
			Prep:    chain.PrepOptions{PersonaID: startPersona, TemplateStage: template.StageOpener},
			DryRun:  startDryRun,
			Limit:   startLimit,
		}
		if startStop != "" {
			stop, err := model.ParseStage(startStop)
			if err != nil {
				return err
			}
			in.Stop = stop
		}

		c, err := dialTemporal()
		if err != nil {
			return err
		}
		defer c.Close()

		ctx := cmd.Context()
		run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
			ID:        "chain-" + in.BatchID,
			TaskQueue: cfg.Temporal.TaskQueue,
		}, wf.ChainWorkflow, in)
		if err != nil {
			return eris.Wrap(err, "start workflow")
		}
		zap.L().Info("workflow started",
			zap.String("workflow_id", run.GetID()),
			zap.String("run_id", run.GetRunID()),
		)
		if !startWait {
			return printJSON(os.Stdout, map[string]string{"workflow_id": run.GetID(), "run_id": run.GetRunID()})
		}

		var out wf.ChainResult
		if err := run.Get(ctx, &out); err != nil {
			return eris.Wrap(err, "workflow failed")
		}
		return printJSON(os.Stdout, out)
	},
}

func init() {
	f := workflowStartCmd.Flags()
	f.StringVar(&startPersona, "persona", "busy_ceo", "persona for campaign prep")
	f.BoolVar(&startDryRun, "dry-run", false, "stop after PREVIEW")
	f.BoolVar(&startResolve, "resolve", true, "enrich inline instead of queueing a skip-trace")
	f.IntVar(&startLimit, "limit", 0, "maximum leads to text (0 = all)")
	f.StringVar(&startStop, "stop", "", "last stage to run (default DEPLOY)")
	f.BoolVar(&startWait, "wait", false, "wait for the workflow to finish")

	workflowCmd.AddCommand(workflowStartCmd)
	rootCmd.AddCommand(workerCmd, workflowCmd)
}
