package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-qualify/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Migrate(context.Background()))
	require.NoError(t, st.Ping(context.Background()))
}

func TestSQLite_InsertLeads_DuplicateRollsBack(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.InsertLeads(ctx, []*model.EnrichedLead{
		model.NewEnrichedLead("dup", model.RawLead{FirstName: "A"}),
	}))

	err := st.InsertLeads(ctx, []*model.EnrichedLead{
		model.NewEnrichedLead("fresh", model.RawLead{FirstName: "B"}),
		model.NewEnrichedLead("dup", model.RawLead{FirstName: "C"}),
	})
	require.Error(t, err)

	n, err := st.CountLeads(ctx, LeadFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLite_PatchLead_ReplacesValidation(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.InsertLeads(ctx, []*model.EnrichedLead{
		model.NewEnrichedLead("l1", model.RawLead{FirstName: "Ann"}),
	}))

	first := &model.ContactabilityValidation{PhoneNumber: "5125550142", PhoneActivityScore: 40, IsLitigatorRisk: true}
	second := &model.ContactabilityValidation{PhoneNumber: "5125550142", PhoneActivityScore: 85}
	require.NoError(t, st.PatchLead(ctx, "l1", LeadPatch{Validation: first}))
	require.NoError(t, st.PatchLead(ctx, "l1", LeadPatch{Validation: second}))

	got, err := st.GetLead(ctx, "l1")
	require.NoError(t, err)
	require.NotNil(t, got.Validation)
	assert.Equal(t, 85, got.Validation.PhoneActivityScore)
	assert.False(t, got.Validation.IsLitigatorRisk)
}

func TestSQLite_ListLeads_ByBlock(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	var leads []*model.EnrichedLead
	for i := range 30 {
		l := model.NewEnrichedLead(fmt.Sprintf("l%02d", i), model.RawLead{FirstName: "X"})
		l.BatchID = "b1"
		l.Meta.BatchID = "b1"
		leads = append(leads, l)
	}
	require.NoError(t, st.InsertLeads(ctx, leads))

	got, err := st.ListLeads(ctx, LeadFilter{BatchID: "b1", Limit: 10, Offset: 20})
	require.NoError(t, err)
	require.Len(t, got, 10)
	assert.Equal(t, "l20", got[0].ID)
	assert.Equal(t, "l29", got[9].ID)
}
