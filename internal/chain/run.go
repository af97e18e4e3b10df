package chain

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-qualify/internal/leadfile"
	"github.com/sells-group/lead-qualify/internal/model"
)

// ErrNotRunnable is returned (wrapped) by Run for stages that act on single
// leads rather than batches, such as DATA_IMPORT or CAPTURE.
var ErrNotRunnable = eris.New("chain: stage cannot be run on a batch")

// StageOptions carries the options of every stage Run can dispatch.
type StageOptions struct {
	Enrich EnrichOptions `json:"enrich"`
	Prep   PrepOptions   `json:"prep"`
	Deploy DeployOptions `json:"deploy"`
	// FailForward lets a stage run even though an earlier stage did not
	// succeed. Backward moves are still rejected.
	FailForward bool `json:"fail_forward"`
}

// Run executes one stage on a stored batch and records the outcome. The
// batch stage advances only when the stage reports success; otherwise the
// batch is marked failed and keeps its stage. Dry-run deploys are not
// recorded.
func (e *Executor) Run(ctx context.Context, batchID string, stage model.ExecutionStage, opts StageOptions) (*model.ExecutionResult, error) {
	b, err := e.Batch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if _, err := model.AdvanceStage(b.Stage, stage); err != nil {
		if !opts.FailForward || !errors.Is(err, model.ErrStageSkipped) {
			return nil, eris.Wrapf(err, "chain: batch %s", batchID)
		}
	}

	var res *model.ExecutionResult
	switch stage {
	case model.StageEnrich:
		res, err = e.Enrich(ctx, batchID, opts.Enrich)
	case model.StageContactability:
		res, err = e.Contactability(ctx, batchID)
	case model.StageCampaignPrep:
		res, err = e.CampaignPrep(ctx, batchID, opts.Prep)
	case model.StagePreview:
		var p *model.DeploymentPreview
		p, err = e.Preview(ctx, batchID)
		if p != nil {
			res = PreviewResult(p)
		}
	case model.StageDeploy:
		res, err = e.Deploy(ctx, batchID, opts.Deploy)
	default:
		return nil, eris.Wrapf(ErrNotRunnable, "stage %s", stage)
	}
	if err != nil {
		return res, err
	}
	if stage == model.StageDeploy && opts.Deploy.DryRun {
		return res, nil
	}
	return res, e.record(ctx, b, res)
}

// PreviewResult folds a preview into a stage result. Warnings become errors
// so an unready preview is reported like any other failed stage.
func PreviewResult(p *model.DeploymentPreview) *model.ExecutionResult {
	res := newResult(model.StagePreview, p.BatchID)
	res.Processed = p.TotalLeads
	res.Errors = append(res.Errors, p.Warnings...)
	res.Success = p.ReadyToDeploy
	if p.ReadyToDeploy {
		res.Succeeded = p.TotalLeads
	}
	res.Data["preview"] = p
	return res
}

// record folds a stage result into the batch and persists it.
func (e *Executor) record(ctx context.Context, b *model.ExecutionBatch, res *model.ExecutionResult) error {
	b.ProcessedLeads = res.Processed
	b.SuccessCount = res.Succeeded
	b.FailCount = res.Failed

	if res.Success {
		if next, err := model.AdvanceStage(b.Stage, res.Stage); err == nil {
			b.Stage = next
		} else {
			// fail-forward run: jump to the stage that just succeeded
			b.Stage = res.Stage
		}
		b.Status = model.BatchProcessing
		if res.Stage == model.StageDeploy {
			b.Status = model.BatchCompleted
		}
	} else {
		b.Status = model.BatchFailed
	}

	switch res.Stage {
	case model.StageEnrich:
		if c, ok := res.Data["enrichment_cost"].(float64); ok {
			b.Metadata.EnrichmentCost += c
		}
	case model.StageCampaignPrep:
		if id, ok := res.Data["persona_id"].(string); ok && res.Success {
			b.Metadata.PersonaID = id
		}
		if id, ok := res.Data["template_id"].(string); ok && res.Success {
			b.Metadata.TemplateID = id
		}
		if id, ok := res.Data["campaign_id"].(string); ok && res.Success {
			b.Metadata.CampaignID = id
		}
	}

	b.UpdatedAt = e.now()
	if err := e.store.UpdateBatch(ctx, b); err != nil {
		return eris.Wrapf(err, "chain: update batch %s", b.ID)
	}
	zap.L().Debug("chain: batch recorded",
		zap.String("batch_id", b.ID),
		zap.String("stage", string(b.Stage)),
		zap.String("status", string(b.Status)),
	)
	return nil
}

// FullOptions configures RunFull.
type FullOptions struct {
	Import ImportOptions `json:"import"`
	Enrich EnrichOptions `json:"enrich"`
	Prep   PrepOptions   `json:"prep"`
	DryRun bool          `json:"dry_run"`
}

// FullResult is the outcome of RunFull.
type FullResult struct {
	Success bool                     `json:"success"`
	BatchID string                   `json:"batch_id"`
	Stages  []*model.ExecutionResult `json:"stages"`
	Preview *model.DeploymentPreview `json:"preview,omitempty"`
}

// RunFull imports rows and drives the new batch through every stage up to
// PREVIEW, then deploys when the preview is ready. A dry run deploys in
// dry-run mode so the counts are still reported. The chain stops early only
// when the import or campaign prep fails.
func (e *Executor) RunFull(ctx context.Context, rows []leadfile.Row, opts FullOptions) (*FullResult, error) {
	imp, err := e.Import(ctx, rows, opts.Import)
	if err != nil {
		return nil, err
	}
	out := &FullResult{BatchID: imp.BatchID, Stages: []*model.ExecutionResult{imp}}
	if !imp.Success {
		return out, nil
	}

	so := StageOptions{Enrich: opts.Enrich, Prep: opts.Prep, FailForward: true}
	for _, stage := range []model.ExecutionStage{model.StageEnrich, model.StageContactability, model.StageCampaignPrep} {
		res, err := e.Run(ctx, out.BatchID, stage, so)
		if res != nil {
			out.Stages = append(out.Stages, res)
		}
		if err != nil {
			return out, err
		}
		if stage == model.StageCampaignPrep && !res.Success {
			return out, nil
		}
	}

	res, err := e.Run(ctx, out.BatchID, model.StagePreview, so)
	if err != nil {
		return out, err
	}
	out.Stages = append(out.Stages, res)
	out.Preview = res.Data["preview"].(*model.DeploymentPreview)
	out.Success = true
	if !out.Preview.ReadyToDeploy {
		return out, nil
	}

	so.Deploy = DeployOptions{DryRun: opts.DryRun}
	dep, err := e.Run(ctx, out.BatchID, model.StageDeploy, so)
	if dep != nil {
		out.Stages = append(out.Stages, dep)
		out.Success = dep.Success
	}
	return out, err
}
