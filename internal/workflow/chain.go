// Package workflow runs the execution chain as a durable Temporal workflow.
// Each stage is one activity, so a worker restart resumes the chain at the
// stage that was in flight instead of starting the batch over.
package workflow

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap"

	"github.com/sells-group/lead-qualify/internal/chain"
	"github.com/sells-group/lead-qualify/internal/leadfile"
	"github.com/sells-group/lead-qualify/internal/model"
)

// DefaultTaskQueue is used when no task queue is configured.
const DefaultTaskQueue = "lead-qualify"

// ChainInput starts a chain run. When BatchID is empty the rows are
// imported first; otherwise the run resumes after the batch's current stage.
type ChainInput struct {
	BatchID string               `json:"batch_id,omitempty"`
	Rows    []leadfile.Row       `json:"rows,omitempty"`
	Import  chain.ImportOptions  `json:"import"`
	Enrich  chain.EnrichOptions  `json:"enrich"`
	Prep    chain.PrepOptions    `json:"prep"`
	DryRun  bool                 `json:"dry_run"`
	Limit   int                  `json:"limit,omitempty"`
	Stop    model.ExecutionStage `json:"stop,omitempty"` // last stage to run; empty runs through DEPLOY
}

// ChainResult is the outcome of ChainWorkflow.
type ChainResult struct {
	Success bool                     `json:"success"`
	BatchID string                   `json:"batch_id"`
	Stages  []*model.ExecutionResult `json:"stages"`
}

// StageInput is the argument of the RunStage activity.
type StageInput struct {
	BatchID string               `json:"batch_id"`
	Stage   model.ExecutionStage `json:"stage"`
	Options chain.StageOptions   `json:"options"`
}

// ImportInput is the argument of the Import activity.
type ImportInput struct {
	Rows    []leadfile.Row      `json:"rows"`
	Options chain.ImportOptions `json:"options"`
}

// Activities wraps a chain executor for use by Temporal workers.
type Activities struct {
	Exec *chain.Executor
}

// Import imports rows into a new batch.
func (a *Activities) Import(ctx context.Context, in ImportInput) (*model.ExecutionResult, error) {
	return a.Exec.Import(ctx, in.Rows, in.Options)
}

// BatchStage returns the stage a stored batch has reached.
func (a *Activities) BatchStage(ctx context.Context, batchID string) (model.ExecutionStage, error) {
	b, err := a.Exec.Batch(ctx, batchID)
	if err != nil {
		return "", err
	}
	return b.Stage, nil
}

// RunStage runs one stage on a batch. Misconfiguration and ordering errors
// are not retryable.
func (a *Activities) RunStage(ctx context.Context, in StageInput) (*model.ExecutionResult, error) {
	res, err := a.Exec.Run(ctx, in.BatchID, in.Stage, in.Options)
	if err != nil {
		if nonRetryable(err) {
			return res, temporal.NewNonRetryableApplicationError(err.Error(), "chain", err)
		}
		return res, err
	}
	return res, nil
}

func nonRetryable(err error) bool {
	for _, target := range []error{
		chain.ErrNotConfigured,
		chain.ErrNotRunnable,
		model.ErrStageRegression,
		model.ErrStageSkipped,
		model.ErrUnknownStage,
	} {
		if eris.Is(err, target) {
			return true
		}
	}
	return false
}

func activityOptions(stage model.ExecutionStage) workflow.ActivityOptions {
	timeout := 30 * time.Minute
	if stage == model.StageEnrich || stage == model.StageDeploy {
		// Skip-trace polling and paced sends can run for hours.
		timeout = 6 * time.Hour
	}
	return workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    10 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    5 * time.Minute,
			MaximumAttempts:    3,
		},
	}
}

// ChainWorkflow drives a batch through ENRICH, CONTACTABILITY,
// CAMPAIGN_PREP and PREVIEW, then deploys when the preview is ready. Stages
// after ENRICH run fail-forward; the chain stops when import or campaign
// prep does not succeed. A dry run stops after PREVIEW.
func ChainWorkflow(ctx workflow.Context, in ChainInput) (*ChainResult, error) {
	log := workflow.GetLogger(ctx)
	var a *Activities
	out := &ChainResult{BatchID: in.BatchID}

	from := model.StageDataImport
	if in.BatchID == "" {
		actx := workflow.WithActivityOptions(ctx, activityOptions(model.StageDataImport))
		var imp *model.ExecutionResult
		if err := workflow.ExecuteActivity(actx, a.Import, ImportInput{Rows: in.Rows, Options: in.Import}).Get(ctx, &imp); err != nil {
			return out, eris.Wrap(err, "workflow: import")
		}
		out.BatchID = imp.BatchID
		out.Stages = append(out.Stages, imp)
		if !imp.Success {
			return out, nil
		}
	} else {
		actx := workflow.WithActivityOptions(ctx, activityOptions(model.StageDataImport))
		if err := workflow.ExecuteActivity(actx, a.BatchStage, in.BatchID).Get(ctx, &from); err != nil {
			return out, eris.Wrapf(err, "workflow: load batch %s", in.BatchID)
		}
	}

	opts := chain.StageOptions{
		Enrich:      in.Enrich,
		Prep:        in.Prep,
		Deploy:      chain.DeployOptions{Limit: in.Limit},
		FailForward: true,
	}
	stop := in.Stop
	if stop == "" {
		stop = model.StageDeploy
	}

	for _, stage := range []model.ExecutionStage{
		model.StageEnrich,
		model.StageContactability,
		model.StageCampaignPrep,
		model.StagePreview,
		model.StageDeploy,
	} {
		if stage.Index() <= from.Index() {
			continue
		}
		if stage.Index() > stop.Index() {
			break
		}
		if stage == model.StageDeploy && in.DryRun {
			break
		}

		actx := workflow.WithActivityOptions(ctx, activityOptions(stage))
		var res *model.ExecutionResult
		err := workflow.ExecuteActivity(actx, a.RunStage, StageInput{
			BatchID: out.BatchID,
			Stage:   stage,
			Options: opts,
		}).Get(ctx, &res)
		if res != nil {
			out.Stages = append(out.Stages, res)
		}
		if err != nil {
			return out, eris.Wrapf(err, "workflow: stage %s", stage)
		}
		log.Info("workflow: stage complete",
			"batch_id", out.BatchID,
			"stage", string(stage),
			"success", res.Success,
		)

		switch stage {
		case model.StageCampaignPrep:
			if !res.Success {
				return out, nil
			}
		case model.StagePreview:
			// Preview success means ready to deploy.
			out.Success = true
			if !res.Success {
				return out, nil
			}
		case model.StageDeploy:
			out.Success = res.Success
		}
	}
	if stop.Index() < model.StagePreview.Index() {
		out.Success = true
		for _, s := range out.Stages {
			out.Success = out.Success && s.Success
		}
	}
	return out, nil
}

// Register adds the chain workflow and its activities to w.
func Register(w worker.Registry, acts *Activities) {
	w.RegisterWorkflow(ChainWorkflow)
	w.RegisterActivity(acts)
	zap.L().Debug("workflow: registered chain workflow")
}
