package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-qualify/internal/model"
	"github.com/sells-group/lead-qualify/internal/research"
	researchmocks "github.com/sells-group/lead-qualify/internal/research/mocks"
	"github.com/sells-group/lead-qualify/internal/resilience"
	"github.com/sells-group/lead-qualify/pkg/tracerfy"
	tracerfymocks "github.com/sells-group/lead-qualify/pkg/tracerfy/mocks"
	"github.com/sells-group/lead-qualify/pkg/trestle"
	trestlemocks "github.com/sells-group/lead-qualify/pkg/trestle/mocks"
)

const safeContact = `{
	"id": "rc_123",
	"phone.is_valid": true,
	"phone.activity_score": 90,
	"phone.line_type": "Mobile",
	"phone.name_match": true,
	"phone.contact_grade": "A",
	"email.is_valid": true,
	"email.contact_grade": "A",
	"add_ons": {
		"litigator_checks": {"phone.is_litigator_risk": false},
		"email_checks": {"email.is_deliverable": true}
	}
}`

const litigatorContact = `{
	"id": "rc_456",
	"phone.is_valid": true,
	"phone.activity_score": 90,
	"phone.line_type": "NonFixedVOIP",
	"phone.contact_grade": "A",
	"add_ons": {"litigator_checks": {"phone.is_litigator_risk": true}}
}`

func contactResponse(t *testing.T, raw string) *trestle.RealContactResponse {
	t.Helper()
	var r trestle.RealContactResponse
	require.NoError(t, json.Unmarshal([]byte(raw), &r))
	return &r
}

func annLee() *model.EnrichedLead {
	return model.NewEnrichedLead("lead-1", model.RawLead{
		FirstName: "Ann",
		LastName:  "Lee",
		Phone:     "512-555-0142",
		Email:     "ann@leeplumbing.com",
		Company:   "Lee Plumbing",
		Address:   "100 Congress Ave",
		City:      "Austin",
		State:     "TX",
		Zip:       "78701",
	})
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ResearchRPS = 0
	cfg.ValidateRPS = 0
	cfg.PollInterval = time.Millisecond
	cfg.PollCap = time.Millisecond
	cfg.PollTimeout = time.Second
	return cfg
}

func expectTrace(tr *tracerfymocks.MockClient, result tracerfy.TraceResult) {
	tr.On("BeginTrace", mock.Anything, mock.MatchedBy(func(recs []tracerfy.TraceRecord) bool {
		return len(recs) == 1 && recs[0].FirstName != "" && recs[0].MailAddress == recs[0].Address
	}), tracerfy.TraceNormal).Return(&tracerfy.TraceJobResponse{QueueID: 77}, nil).Once()
	tr.On("GetQueues", mock.Anything).Return([]tracerfy.Queue{{ID: 77, DownloadURL: "https://x/77.csv"}}, nil).Once()
	tr.On("GetQueueResults", mock.Anything, 77).Return([]tracerfy.TraceResult{result}, nil).Once()
}

func TestEnrich_FullPipeline(t *testing.T) {
	res := researchmocks.NewMockResearcher(t)
	tr := tracerfymocks.NewMockClient(t)
	val := trestlemocks.NewMockClient(t)

	res.On("VerifyBusiness", mock.Anything, mock.MatchedBy(func(q research.Query) bool {
		return q.Company == "Lee Plumbing" && q.City == "Austin"
	})).Return(&research.BusinessResult{IsActive: true, Confidence: 0.9, Reasoning: "open on maps", Cost: 0.005}, nil).Once()
	res.On("ResearchOwner", mock.Anything, mock.Anything).
		Return(&research.OwnerResult{Found: true, OwnerName: "Annabel Lee", OwnerTitle: "Owner", Confidence: 0.8, Cost: 0.005}, nil).Once()

	expectTrace(tr, tracerfy.TraceResult{
		PrimaryPhone:     "5125550190",
		PrimaryPhoneType: "Landline",
		Mobile1:          "5125550191",
		Email1:           "annabel@leeplumbing.com",
		MailAddress:      "PO Box 9",
		MailCity:         "Austin",
		MailState:        "TX",
	})
	val.On("RealContact", mock.Anything, mock.MatchedBy(func(r trestle.RealContactRequest) bool {
		return r.Phone == "+15125550191" && r.Name == "Annabel Lee" && r.Address != nil
	})).Return(contactResponse(t, safeContact), nil).Once()

	p := New(testConfig(), Deps{Researcher: res, Tracer: tr, Validator: val})
	lead := annLee()
	out := p.Enrich(context.Background(), lead)

	require.Empty(t, out.Errors)
	assert.True(t, out.Success())
	require.Len(t, out.Report.Steps, 4)
	for _, s := range out.Report.Steps {
		assert.Equal(t, model.StepSuccess, s.Status, s.Step)
	}

	assert.Equal(t, "Annabel", lead.FirstName)
	assert.Equal(t, "Lee", lead.LastName)
	require.NotNil(t, lead.IsBusinessActive)
	assert.True(t, *lead.IsBusinessActive)
	assert.Equal(t, "Owner", lead.BusinessVerification.OwnerTitle)

	require.Len(t, lead.Phones, 2)
	assert.Equal(t, "+15125550191", lead.Phones[0].Number)
	assert.True(t, lead.Phones[0].IsPrimary)
	assert.Equal(t, model.PhoneMobile, lead.Phones[0].Type)
	assert.Equal(t, "Mobile", lead.Meta.LineType)
	assert.Empty(t, lead.Meta.SkipTraceQueueID)
	assert.Equal(t, "77", out.Report.Steps[2].Details["queue_id"])
	assert.Equal(t, []string{"ann@leeplumbing.com", "annabel@leeplumbing.com"}, lead.Emails)
	require.NotNil(t, lead.MailingAddress)
	assert.Equal(t, "PO Box 9", lead.MailingAddress.Address)

	require.NotNil(t, lead.Validation)
	assert.Equal(t, "rc_123", lead.Validation.ResponseID)
	require.NotNil(t, lead.Validation.EmailIsDeliverable)
	assert.True(t, *lead.Validation.EmailIsDeliverable)
	require.NotNil(t, lead.Qualification)
	assert.True(t, lead.Qualification.IsContactable)
	assert.Equal(t, model.RiskSafe, lead.Qualification.Profile.RiskTier)
	assert.Equal(t, model.RouteFullOutreach, lead.Qualification.Route.Route)

	assert.Equal(t, model.EnrichmentEnriched, lead.EnrichmentStatus)
	assert.Equal(t, model.PipelineStageReady, lead.PipelineStage)
	// 2 research queries + normal trace + one validation
	assert.InDelta(t, 0.005+0.005+0.02+0.03, lead.CostToEnrich, 1e-9)
	assert.InDelta(t, lead.CostToEnrich, out.Report.TotalCost, 1e-9)
}

func TestEnrich_LowConfidenceOwnerKeepsImportedName(t *testing.T) {
	res := researchmocks.NewMockResearcher(t)
	res.On("VerifyBusiness", mock.Anything, mock.Anything).
		Return(&research.BusinessResult{IsActive: true, Confidence: 0.7}, nil).Once()
	res.On("ResearchOwner", mock.Anything, mock.Anything).
		Return(&research.OwnerResult{Found: true, OwnerName: "Bob Stone", Confidence: 0.4}, nil).Once()

	cfg := testConfig()
	cfg.SkipTrace = false
	cfg.Validate = false
	lead := annLee()
	New(cfg, Deps{Researcher: res}).Enrich(context.Background(), lead)

	assert.Equal(t, "Ann", lead.FirstName)
	assert.Equal(t, "Bob Stone", lead.BusinessVerification.OwnerName)
}

func TestEnrich_SkipsWithoutInputs(t *testing.T) {
	t.Parallel()

	lead := model.NewEnrichedLead("lead-2", model.RawLead{FirstName: "Ann", Phone: "5125550142"})
	p := New(testConfig(), Deps{
		Researcher: researchmocks.NewMockResearcher(t),
		Tracer:     tracerfymocks.NewMockClient(t),
	})
	out := p.Enrich(context.Background(), lead)

	require.Len(t, out.Report.Steps, 4)
	for _, s := range out.Report.Steps {
		assert.Equal(t, model.StepSkipped, s.Status, s.Step)
	}
	assert.Equal(t, model.EnrichmentEnriched, lead.EnrichmentStatus)
	require.Len(t, lead.Phones, 1)
	assert.Equal(t, model.PhoneSourceImport, lead.Phones[0].Source)
}

func TestEnrich_StepFailureDoesNotAbort(t *testing.T) {
	tr := tracerfymocks.NewMockClient(t)
	val := trestlemocks.NewMockClient(t)

	tr.On("BeginTrace", mock.Anything, mock.Anything, tracerfy.TraceNormal).
		Return(nil, &resilience.TransientError{Err: errors.New("tracerfy: 503")}).Once()
	val.On("RealContact", mock.Anything, mock.MatchedBy(func(r trestle.RealContactRequest) bool {
		return r.Phone == "+15125550142"
	})).Return(contactResponse(t, litigatorContact), nil).Once()

	cfg := testConfig()
	cfg.VerifyBusiness = false
	cfg.ResearchOwner = false
	lead := annLee()
	out := New(cfg, Deps{Tracer: tr, Validator: val}).Enrich(context.Background(), lead)

	require.Contains(t, out.Errors, model.StepSkipTrace)
	assert.True(t, resilience.IsTransient(out.Errors[model.StepSkipTrace]))
	assert.Len(t, out.Report.Failed(), 1)

	require.NotNil(t, lead.Qualification)
	assert.Equal(t, model.RiskBlock, lead.Qualification.Profile.RiskTier)
	assert.Equal(t, model.RouteDoNotContact, lead.Qualification.Route.Route)
	assert.Equal(t, model.PhoneLandline, lead.Phones[0].Type)
	assert.Equal(t, model.EnrichmentEnriched, lead.EnrichmentStatus)
}

func TestEnrich_SkipTraceNoMatchIsCharged(t *testing.T) {
	tr := tracerfymocks.NewMockClient(t)
	tr.On("BeginTrace", mock.Anything, mock.Anything, tracerfy.TraceNormal).
		Return(&tracerfy.TraceJobResponse{QueueID: 78}, nil).Once()
	tr.On("GetQueues", mock.Anything).Return([]tracerfy.Queue{{ID: 78, DownloadURL: "https://x/78.csv"}}, nil).Once()
	tr.On("GetQueueResults", mock.Anything, 78).Return([]tracerfy.TraceResult{}, nil).Once()

	cfg := testConfig()
	cfg.VerifyBusiness = false
	cfg.ResearchOwner = false
	cfg.Validate = false
	lead := annLee()
	out := New(cfg, Deps{Tracer: tr}).Enrich(context.Background(), lead)

	failed := out.Report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, model.StepSkipTrace, failed[0].Step)
	assert.Equal(t, "no match", failed[0].Error)
	assert.NotContains(t, out.Errors, model.StepSkipTrace)
	assert.InDelta(t, 0.02, lead.CostToEnrich, 1e-9)
	assert.InDelta(t, 0.02, out.Report.TotalCost, 1e-9)
	// the imported phone still makes the lead usable
	assert.True(t, out.Success())
}

func TestEnrich_ResearchOnlyIsVerified(t *testing.T) {
	res := researchmocks.NewMockResearcher(t)
	res.On("VerifyBusiness", mock.Anything, mock.Anything).
		Return(&research.BusinessResult{IsActive: false, Confidence: 0.95}, nil).Once()
	res.On("ResearchOwner", mock.Anything, mock.Anything).
		Return(&research.OwnerResult{}, nil).Once()

	lead := model.NewEnrichedLead("lead-3", model.RawLead{Company: "Closed Diner"})
	out := New(testConfig(), Deps{Researcher: res}).Enrich(context.Background(), lead)

	assert.True(t, out.Success())
	assert.Equal(t, model.EnrichmentVerified, lead.EnrichmentStatus)
	require.NotNil(t, lead.IsBusinessActive)
	assert.False(t, *lead.IsBusinessActive)
}

func TestEnrich_NothingLearnedFails(t *testing.T) {
	t.Parallel()

	lead := model.NewEnrichedLead("lead-4", model.RawLead{FirstName: "Nobody"})
	out := New(testConfig(), Deps{}).Enrich(context.Background(), lead)

	assert.False(t, out.Success())
	assert.Equal(t, model.EnrichmentFailed, lead.EnrichmentStatus)
}

func TestQualify_ValidatesImportedPhone(t *testing.T) {
	val := trestlemocks.NewMockClient(t)
	val.On("RealContact", mock.Anything, mock.MatchedBy(func(r trestle.RealContactRequest) bool {
		return r.AddOns == nil && r.Email == "ann@leeplumbing.com"
	})).Return(contactResponse(t, safeContact), nil).Once()

	cfg := testConfig()
	cfg.AddOns = nil
	lead := annLee()
	out := New(cfg, Deps{Validator: val}).Qualify(context.Background(), lead)

	require.Len(t, out.Report.Steps, 1)
	assert.Equal(t, model.StepValidate, out.Report.Steps[0].Step)
	assert.Equal(t, model.RiskSafe, lead.Qualification.Profile.RiskTier)
	assert.Equal(t, model.PipelineStageReady, lead.PipelineStage)
	assert.True(t, lead.Phones[0].Verified)
}

func TestValidationFromResponse_NullFields(t *testing.T) {
	t.Parallel()

	v := ValidationFromResponse("+15125550142", &trestle.RealContactResponse{ID: "rc_0"})
	assert.False(t, v.PhoneIsValid)
	assert.Equal(t, 0, v.PhoneActivityScore)
	assert.Equal(t, model.GradeF, v.PhoneContactGrade)
	assert.Empty(t, v.EmailContactGrade)
	assert.Nil(t, v.EmailIsDeliverable)
	assert.False(t, v.IsLitigatorRisk)
}

func TestWith_SharesLimiters(t *testing.T) {
	t.Parallel()

	p := New(DefaultConfig(), Deps{})
	cfg := p.Config()
	cfg.SkipTrace = false
	q := p.With(cfg)

	assert.True(t, p.Config().SkipTrace)
	assert.False(t, q.Config().SkipTrace)
	assert.Same(t, p.researchLimit, q.researchLimit)
	assert.Same(t, p.validateLimit, q.validateLimit)
}
