package store

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-qualify/internal/model"
)

func TestLeadPatch_Empty(t *testing.T) {
	assert.True(t, LeadPatch{}.Empty())
	assert.True(t, LeadPatch{Meta: &MetaPatch{}}.Empty())
	assert.False(t, LeadPatch{Email: Ptr("")}.Empty())
	assert.False(t, LeadPatch{Meta: &MetaPatch{BlockNumber: Ptr(0)}}.Empty())
}

func TestLeadPatch_Apply(t *testing.T) {
	l := model.NewEnrichedLead("l1", model.RawLead{FirstName: "Ann", Email: "old@x.co"})
	l.Meta.Industry = "dental"

	LeadPatch{
		Email:         Ptr("new@x.co"),
		PipelineStage: Ptr(model.PipelineStageEnrich),
		Meta:          &MetaPatch{BatchID: Ptr("b9"), PersonaID: Ptr("busy_ceo")},
	}.Apply(l)

	assert.Equal(t, "Ann", l.FirstName)
	assert.Equal(t, "new@x.co", l.Email)
	assert.Equal(t, model.PipelineStageEnrich, l.PipelineStage)
	assert.Equal(t, "b9", l.BatchID)
	assert.Equal(t, "b9", l.Meta.BatchID)
	assert.Equal(t, "busy_ceo", l.Meta.PersonaID)
	assert.Equal(t, "dental", l.Meta.Industry)
}

func TestLeadPatch_MergeDocument(t *testing.T) {
	doc, err := LeadPatch{
		FirstName: Ptr("Ann"),
		Meta:      &MetaPatch{BatchID: Ptr("b1"), BlockNumber: Ptr(2)},
	}.mergeDocument()
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(doc, &got))
	assert.Equal(t, "Ann", got["first_name"])
	assert.Equal(t, "b1", got["batch_id"])
	meta, ok := got["meta"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "b1", meta["batch_id"])
	assert.InDelta(t, 2, meta["block_number"], 0)
}

func TestLeadPatch_MergeDocumentWithoutMeta(t *testing.T) {
	doc, err := LeadPatch{LeadStage: Ptr(model.LeadStageCampaignReady)}.mergeDocument()
	require.NoError(t, err)
	assert.JSONEq(t, `{"lead_stage":"campaign_ready"}`, string(doc))
}
