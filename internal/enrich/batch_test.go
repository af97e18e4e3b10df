package enrich

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-qualify/internal/model"
	"github.com/sells-group/lead-qualify/internal/resilience"
	"github.com/sells-group/lead-qualify/internal/store"
	"github.com/sells-group/lead-qualify/pkg/trestle"
	trestlemocks "github.com/sells-group/lead-qualify/pkg/trestle/mocks"
)

func seedLeads(t *testing.T, st store.Store, n int) []*model.EnrichedLead {
	t.Helper()
	leads := make([]*model.EnrichedLead, n)
	for i := range leads {
		leads[i] = model.NewEnrichedLead(fmt.Sprintf("lead-%d", i), model.RawLead{
			FirstName: "Ann",
			LastName:  "Lee",
			Phone:     fmt.Sprintf("51255501%02d", i),
		})
		leads[i].BatchID = "b1"
	}
	require.NoError(t, st.InsertLeads(context.Background(), leads))
	return leads
}

func validateOnly() Config {
	cfg := testConfig()
	cfg.VerifyBusiness = false
	cfg.ResearchOwner = false
	cfg.SkipTrace = false
	return cfg
}

func TestEnrichBatch_PersistsAndDeadLetters(t *testing.T) {
	st := store.NewMemory()
	leads := seedLeads(t, st, 6)

	val := trestlemocks.NewMockClient(t)
	val.On("RealContact", mock.Anything, mock.MatchedBy(func(r trestle.RealContactRequest) bool {
		return r.Phone == "+15125550103"
	})).Return(nil, &resilience.TransientError{Err: errors.New("trestle: 503"), StatusCode: 503}).Once()
	val.On("RealContact", mock.Anything, mock.Anything).Return(contactResponse(t, safeContact), nil).Times(5)

	p := New(validateOnly(), Deps{Validator: val})
	out, err := p.EnrichBatch(context.Background(), st, leads, BatchOptions{Concurrency: 3, MaxRetries: 2, RetryBackoff: time.Minute})
	require.NoError(t, err)

	assert.Equal(t, 6, out.Total)
	// The failed lead still has its imported phone, so it counts as enriched.
	assert.Equal(t, 6, out.Succeeded)
	assert.Equal(t, 0, out.Failed)
	assert.Equal(t, 1, out.DeadLettered)
	assert.InDelta(t, 5*0.03, out.Cost, 1e-9)

	got, err := st.GetLead(context.Background(), "lead-0")
	require.NoError(t, err)
	require.NotNil(t, got.Qualification)
	assert.Equal(t, model.RiskSafe, got.Qualification.Profile.RiskTier)
	assert.Nil(t, got.Meta.Contactable)
	assert.Equal(t, model.EnrichmentEnriched, got.EnrichmentStatus)

	entries, err := st.ListDLQ(context.Background(), resilience.DLQFilter{BatchID: "b1"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "lead-3", entries[0].LeadID)
	assert.Equal(t, model.StepValidate, entries[0].FailedStep)
	assert.Equal(t, resilience.ErrorTypeTransient, entries[0].ErrorType)
	assert.True(t, entries[0].CanRetry())
}

func TestEnrichBatch_Empty(t *testing.T) {
	t.Parallel()
	out, err := New(testConfig(), Deps{}).EnrichBatch(context.Background(), store.NewMemory(), nil, BatchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, out.Total)
}

func dueEntry(leadID string, err error) resilience.DLQEntry {
	e := resilience.NewDLQEntry(leadID, "b1", model.StepValidate, err, 2, 0)
	e.NextRetryAt = time.Now().Add(-time.Second)
	return e
}

func TestRetryDLQ(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	seedLeads(t, st, 3)

	transient := &resilience.TransientError{Err: errors.New("trestle: 503"), StatusCode: 503}
	require.NoError(t, st.EnqueueDLQ(ctx, dueEntry("lead-0", transient)))
	require.NoError(t, st.EnqueueDLQ(ctx, dueEntry("lead-1", transient)))
	require.NoError(t, st.EnqueueDLQ(ctx, dueEntry("lead-2", errors.New("bad request"))))
	future := dueEntry("lead-0", transient)
	future.NextRetryAt = time.Now().Add(time.Hour)
	require.NoError(t, st.EnqueueDLQ(ctx, future))

	val := trestlemocks.NewMockClient(t)
	val.On("RealContact", mock.Anything, mock.MatchedBy(func(r trestle.RealContactRequest) bool {
		return r.Phone == "+15125550100"
	})).Return(contactResponse(t, safeContact), nil).Once()
	val.On("RealContact", mock.Anything, mock.MatchedBy(func(r trestle.RealContactRequest) bool {
		return r.Phone == "+15125550101"
	})).Return(nil, transient).Once()

	p := New(validateOnly(), Deps{Validator: val})
	stats, err := p.RetryDLQ(ctx, st, resilience.DLQFilter{}, BatchOptions{RetryBackoff: time.Minute})
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Attempted)
	assert.Equal(t, 1, stats.Recovered)
	assert.Equal(t, 1, stats.Requeued)
	// permanent entry and the not-yet-due entry
	assert.Equal(t, 2, stats.Skipped)

	recovered, err := st.GetLead(ctx, "lead-0")
	require.NoError(t, err)
	require.NotNil(t, recovered.Validation)

	left, err := st.ListDLQ(ctx, resilience.DLQFilter{})
	require.NoError(t, err)
	require.Len(t, left, 3)
	for _, e := range left {
		if e.LeadID == "lead-1" {
			assert.Equal(t, 1, e.RetryCount)
			assert.True(t, e.NextRetryAt.After(time.Now()))
		}
	}
}

func TestPatchFor(t *testing.T) {
	t.Parallel()

	lead := annLee()
	lead.Meta.LineType = "Mobile"
	lead.Qualification = &model.Qualification{IsContactable: true}
	p := PatchFor(lead)

	assert.Equal(t, "Ann", *p.FirstName)
	require.NotNil(t, p.Meta)
	assert.Equal(t, "Mobile", *p.Meta.LineType)
	assert.Nil(t, p.Meta.Contactable)
	assert.Nil(t, p.Meta.SkipTraceQueueID)
	assert.Nil(t, p.Meta.BatchID)
}
