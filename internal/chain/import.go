package chain

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-qualify/internal/leadfile"
	"github.com/sells-group/lead-qualify/internal/model"
	"github.com/sells-group/lead-qualify/internal/template"
)

// ImportOptions describes where an import came from.
type ImportOptions struct {
	Name       string          `json:"name,omitempty"`
	Source     string          `json:"source"`
	CampaignID string          `json:"campaign_id,omitempty"`
	IndustryID string          `json:"industry_id,omitempty"`
	Blueprint  model.Blueprint `json:"blueprint,omitempty"`
}

// CreateBlocks splits ids into consecutive blocks of at most size.
func CreateBlocks[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = DefaultBlockSize
	}
	blocks := make([][]T, 0, (len(items)+size-1)/size)
	for i := 0; i < len(items); i += size {
		blocks = append(blocks, items[i:min(i+size, len(items))])
	}
	return blocks
}

// Import creates a batch and inserts rows into it block by block. A failing
// block is recorded and counted as failed; later blocks still run. Only a
// failure to create the batch itself is returned as an error.
func (e *Executor) Import(ctx context.Context, rows []leadfile.Row, opts ImportOptions) (*model.ExecutionResult, error) {
	now := e.now()
	b := &model.ExecutionBatch{
		ID:        "batch_" + e.newID(),
		Name:      opts.Name,
		Stage:     model.StageDataImport,
		Blueprint: opts.Blueprint,
		Status:    model.BatchProcessing,
		Metadata: model.BatchMetadata{
			Source:     opts.Source,
			CampaignID: opts.CampaignID,
			IndustryID: opts.IndustryID,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if b.Blueprint == "" {
		b.Blueprint = template.BlueprintFor(model.LeadStageNew)
	}
	if b.Name == "" {
		b.Name = opts.Source + " " + now.Format(time.DateOnly)
	}
	if err := e.store.CreateBatch(ctx, b); err != nil {
		return nil, eris.Wrap(err, "chain: create batch")
	}

	log := e.logger(model.StageDataImport, b.ID)
	log.Info("chain: import started", zap.Int("rows", len(rows)))

	res := newResult(model.StageDataImport, b.ID)
	rec := &recorder{res: res}
	res.Processed = len(rows)

	for i, block := range CreateBlocks(rows, e.cfg.BlockSize) {
		n := i + 1
		if err := ctx.Err(); err != nil {
			res.Failed += len(block)
			rec.errorf("block %d failed: %v", n, err)
			continue
		}
		leads := e.blockLeads(block, b, n, now)
		if err := e.store.InsertLeads(ctx, leads); err != nil {
			res.Failed += len(block)
			rec.errorf("block %d failed: %v", n, err)
			log.Error("chain: import block failed", zap.Int("block", n), zap.Error(err))
			continue
		}
		res.Succeeded += len(block)
		log.Debug("chain: import block done", zap.Int("block", n), zap.Int("leads", len(block)))
	}

	res.Data["source"] = opts.Source
	res.Data["campaign_id"] = opts.CampaignID
	res.Data["industry_id"] = opts.IndustryID
	res.Data["blocks"] = (len(rows) + e.cfg.BlockSize - 1) / e.cfg.BlockSize
	finish(res)

	b.TotalLeads = res.Succeeded
	if err := e.record(ctx, b, res); err != nil {
		return res, err
	}
	log.Info("chain: import complete",
		zap.Int("succeeded", res.Succeeded),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

func (e *Executor) blockLeads(rows []leadfile.Row, b *model.ExecutionBatch, block int, at time.Time) []*model.EnrichedLead {
	leads := make([]*model.EnrichedLead, 0, len(rows))
	for _, row := range rows {
		raw := leadfile.ToRawLead(row, model.LeadSource(b.Metadata.Source))
		lead := model.NewEnrichedLead("lead_"+e.newID(), raw)
		lead.BatchID = b.ID
		lead.LeadStage = model.LeadStageDataPrep
		lead.CreatedAt, lead.UpdatedAt = at, at
		importedAt := at
		lead.Meta = model.LeadMeta{
			BatchID:        b.ID,
			BlockNumber:    block,
			IndustryID:     b.Metadata.IndustryID,
			CampaignID:     b.Metadata.CampaignID,
			ImportedAt:     &importedAt,
			ExecutionStage: model.StageDataImport,
		}
		lead.Meta.Industry = extraString(raw.Extra, "industry")
		leads = append(leads, lead)
	}
	return leads
}

// extraString looks up an unmapped column by case-insensitive header.
func extraString(extra map[string]any, key string) string {
	for k, v := range extra {
		if s, ok := v.(string); ok && strings.EqualFold(strings.TrimSpace(k), key) {
			return s
		}
	}
	return ""
}
