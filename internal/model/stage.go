package model

import (
	"github.com/rotisserie/eris"
)

// ExecutionStage is a stage of the batch execution chain.
type ExecutionStage string

const (
	StageDataImport     ExecutionStage = "DATA_IMPORT"
	StageEnrich         ExecutionStage = "ENRICH"
	StageContactability ExecutionStage = "CONTACTABILITY"
	StageCampaignPrep   ExecutionStage = "CAMPAIGN_PREP"
	StagePreview        ExecutionStage = "PREVIEW"
	StageDeploy         ExecutionStage = "DEPLOY"
	StageInbound        ExecutionStage = "INBOUND"
	StageCapture        ExecutionStage = "CAPTURE"
	StageConversion     ExecutionStage = "CONVERSION"
)

// ExecutionStages is the fixed forward order of the chain.
var ExecutionStages = []ExecutionStage{
	StageDataImport,
	StageEnrich,
	StageContactability,
	StageCampaignPrep,
	StagePreview,
	StageDeploy,
	StageInbound,
	StageCapture,
	StageConversion,
}

var (
	// ErrStageRegression is returned when a transition would move backward.
	ErrStageRegression = eris.New("stage regression")
	// ErrStageSkipped is returned when a transition would skip a required stage.
	ErrStageSkipped = eris.New("stage skipped")
	// ErrUnknownStage is returned for a stage outside the fixed sequence.
	ErrUnknownStage = eris.New("unknown stage")
)

// Index returns the position of s in ExecutionStages, or -1.
func (s ExecutionStage) Index() int {
	for i, st := range ExecutionStages {
		if st == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s is a known stage.
func (s ExecutionStage) Valid() bool { return s.Index() >= 0 }

// Next returns the stage after s, or "" at the end of the sequence.
func (s ExecutionStage) Next() ExecutionStage {
	i := s.Index()
	if i < 0 || i+1 >= len(ExecutionStages) {
		return ""
	}
	return ExecutionStages[i+1]
}

// ParseStage parses a stage name case-sensitively.
func ParseStage(s string) (ExecutionStage, error) {
	st := ExecutionStage(s)
	if !st.Valid() {
		return "", eris.Wrapf(ErrUnknownStage, "stage %q", s)
	}
	return st, nil
}

// AdvanceStage validates a batch transition. Staying in place is allowed so
// that stages can be re-run idempotently; anything else must be the next stage.
func AdvanceStage(from, to ExecutionStage) (ExecutionStage, error) {
	fi, ti := from.Index(), to.Index()
	if fi < 0 {
		return from, eris.Wrapf(ErrUnknownStage, "from %q", from)
	}
	if ti < 0 {
		return from, eris.Wrapf(ErrUnknownStage, "to %q", to)
	}
	switch {
	case ti < fi:
		return from, eris.Wrapf(ErrStageRegression, "%s -> %s", from, to)
	case ti > fi+1:
		return from, eris.Wrapf(ErrStageSkipped, "%s -> %s", from, to)
	}
	return to, nil
}

// PipelineStage is the per-lead enrichment stage.
type PipelineStage string

const (
	PipelineStageImport   PipelineStage = "import"
	PipelineStageVerify   PipelineStage = "verify"
	PipelineStageEnrich   PipelineStage = "enrich"
	PipelineStageValidate PipelineStage = "validate"
	PipelineStageReady    PipelineStage = "ready"
	PipelineStageInLoop   PipelineStage = "in_loop"
)

var pipelineOrder = map[PipelineStage]int{
	PipelineStageImport:   0,
	PipelineStageVerify:   1,
	PipelineStageEnrich:   2,
	PipelineStageValidate: 3,
	PipelineStageReady:    4,
	PipelineStageInLoop:   5,
}

// AdvancePipelineStage moves a lead's pipeline stage forward. Unlike batch
// stages, per-lead steps may be skipped, so only regression is rejected.
func AdvancePipelineStage(from, to PipelineStage) (PipelineStage, error) {
	fi, ok := pipelineOrder[from]
	if !ok {
		return from, eris.Wrapf(ErrUnknownStage, "pipeline stage %q", from)
	}
	ti, ok := pipelineOrder[to]
	if !ok {
		return from, eris.Wrapf(ErrUnknownStage, "pipeline stage %q", to)
	}
	if ti < fi {
		return from, eris.Wrapf(ErrStageRegression, "%s -> %s", from, to)
	}
	return to, nil
}

var enrichmentRank = map[EnrichmentStatus]int{
	EnrichmentPending:  0,
	EnrichmentFailed:   1,
	EnrichmentVerified: 2,
	EnrichmentEnriched: 3,
}

// MergeEnrichmentStatus returns the stronger of two statuses so a later,
// weaker outcome never erases an earlier, stronger one.
func MergeEnrichmentStatus(cur, next EnrichmentStatus) EnrichmentStatus {
	if enrichmentRank[next] >= enrichmentRank[cur] {
		return next
	}
	return cur
}
