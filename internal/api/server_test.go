package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-qualify/internal/chain"
	"github.com/sells-group/lead-qualify/internal/enrich"
	"github.com/sells-group/lead-qualify/internal/model"
	"github.com/sells-group/lead-qualify/internal/monitoring"
	"github.com/sells-group/lead-qualify/internal/resilience"
	"github.com/sells-group/lead-qualify/internal/store"
	"github.com/sells-group/lead-qualify/internal/template"
	"github.com/sells-group/lead-qualify/pkg/trestle"
	trestlemocks "github.com/sells-group/lead-qualify/pkg/trestle/mocks"
)

type downStore struct {
	store.Store
}

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

func newTestDeps(t *testing.T) Deps {
	t.Helper()
	st := store.NewMemory()
	catalog, err := template.DefaultCatalog()
	require.NoError(t, err)
	exec, err := chain.New(chain.Config{}, chain.Deps{Store: st, Catalog: catalog})
	require.NoError(t, err)
	return Deps{Store: st, Chain: exec}
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	t.Parallel()

	d := newTestDeps(t)
	rr := do(t, NewRouter(d), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
	assert.Equal(t, "ok", decode[map[string]string](t, rr)["status"])

	d.Store = downStore{Store: d.Store}
	rr = do(t, NewRouter(d), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "unavailable", decode[map[string]string](t, rr)["status"])
}

func TestCreateBatch(t *testing.T) {
	t.Parallel()

	d := newTestDeps(t)
	h := NewRouter(d)

	rr := do(t, h, http.MethodPost, "/v1/batches", map[string]any{
		"name":        "Austin plumbers",
		"industry_id": "plumbing",
		"rows": []map[string]string{
			{"First Name": "Ann", "Last Name": "Lee", "Phone": "5125550142", "Company": "Lee Plumbing"},
			{"First Name": "Bo", "Last Name": "Diaz", "Phone": "5125550143", "Company": "Diaz Pipes"},
		},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	res := decode[model.ExecutionResult](t, rr)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.Succeeded)
	require.NotEmpty(t, res.BatchID)

	rr = do(t, h, http.MethodGet, "/v1/batches/"+res.BatchID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	b := decode[model.ExecutionBatch](t, rr)
	assert.Equal(t, "Austin plumbers", b.Name)
	assert.Equal(t, "api", b.Metadata.Source)
	assert.Equal(t, 2, b.TotalLeads)

	rr = do(t, h, http.MethodGet, "/v1/batches?limit=10", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]model.ExecutionBatch](t, rr), 1)
}

func TestCreateBatch_BadRequests(t *testing.T) {
	t.Parallel()

	h := NewRouter(newTestDeps(t))
	tests := []struct {
		name string
		body any
	}{
		{name: "invalid json", body: "{not json"},
		{name: "no rows", body: map[string]any{"name": "empty"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rr := do(t, h, http.MethodPost, "/v1/batches", tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.NotEmpty(t, decode[map[string]string](t, rr)["error"])
		})
	}
}

func TestListBatches_BadLimit(t *testing.T) {
	t.Parallel()

	rr := do(t, NewRouter(newTestDeps(t)), http.MethodGet, "/v1/batches?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRunStage_Statuses(t *testing.T) {
	t.Parallel()

	d := newTestDeps(t)
	ctx := context.Background()
	for id, stage := range map[string]model.ExecutionStage{
		"imported":  model.StageDataImport,
		"previewed": model.StagePreview,
	} {
		require.NoError(t, d.Store.CreateBatch(ctx, &model.ExecutionBatch{
			ID: id, Name: id, Stage: stage, Status: model.BatchProcessing,
		}))
	}
	h := NewRouter(d)

	tests := []struct {
		name   string
		path   string
		body   any
		status int
	}{
		{name: "unknown stage", path: "/v1/batches/imported/stages/LAUNCH", status: http.StatusBadRequest},
		{name: "lead stage", path: "/v1/batches/imported/stages/DATA_IMPORT", status: http.StatusBadRequest},
		{name: "skipped stage", path: "/v1/batches/imported/stages/CONTACTABILITY", status: http.StatusConflict},
		{name: "backward stage", path: "/v1/batches/previewed/stages/ENRICH", status: http.StatusConflict},
		{name: "missing batch", path: "/v1/batches/ghost/stages/ENRICH", status: http.StatusNotFound},
		{name: "no sms client", path: "/v1/batches/previewed/stages/DEPLOY", status: http.StatusServiceUnavailable},
		{name: "bad options", path: "/v1/batches/imported/stages/ENRICH", body: "[", status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rr := do(t, h, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, rr.Code, rr.Body.String())
		})
	}
}

func TestRunStage_Contactability(t *testing.T) {
	t.Parallel()

	d := newTestDeps(t)
	ctx := context.Background()
	require.NoError(t, d.Store.CreateBatch(ctx, &model.ExecutionBatch{
		ID: "b1", Name: "b1", Stage: model.StageEnrich, Status: model.BatchProcessing, TotalLeads: 1,
	}))
	l := model.NewEnrichedLead("l1", model.RawLead{FirstName: "Ann", Phone: "5125550142"})
	l.BatchID = "b1"
	l.Meta.BatchID = "b1"
	l.Phones = []model.EnrichedPhone{{Number: "5125550142", Type: model.PhoneMobile, IsPrimary: true}}
	require.NoError(t, d.Store.InsertLeads(ctx, []*model.EnrichedLead{l}))

	rr := do(t, NewRouter(d), http.MethodPost, "/v1/batches/b1/stages/CONTACTABILITY", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	res := decode[model.ExecutionResult](t, rr)
	assert.True(t, res.Success)
	assert.Equal(t, model.StageContactability, res.Stage)

	b, err := d.Store.GetBatch(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, model.StageContactability, b.Stage)
}

func TestPreview_MissingBatch(t *testing.T) {
	t.Parallel()

	rr := do(t, NewRouter(newTestDeps(t)), http.MethodGet, "/v1/batches/ghost/preview", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestQualify(t *testing.T) {
	t.Parallel()

	d := newTestDeps(t)
	ctx := context.Background()
	l := model.NewEnrichedLead("l1", model.RawLead{FirstName: "Ann", LastName: "Lee", Phone: "(512) 555-0142"})
	require.NoError(t, d.Store.InsertLeads(ctx, []*model.EnrichedLead{l}))

	rr := do(t, NewRouter(d), http.MethodPost, "/v1/leads/l1/qualify", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	var resp trestle.RealContactResponse
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": "rc_1",
		"phone.is_valid": true,
		"phone.activity_score": 85,
		"phone.line_type": "Mobile",
		"phone.contact_grade": "B",
		"add_ons": {"litigator_checks": {"phone.is_litigator_risk": false}}
	}`), &resp))
	val := trestlemocks.NewMockClient(t)
	val.On("RealContact", mock.Anything, mock.Anything).Return(&resp, nil).Once()

	cfg := enrich.DefaultConfig()
	cfg.ValidateRPS = 0
	cfg.ResearchRPS = 0
	d.Pipeline = enrich.New(cfg, enrich.Deps{Validator: val})

	rr = do(t, NewRouter(d), http.MethodPost, "/v1/leads/l1/qualify", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	out := decode[qualifyResponse](t, rr)
	assert.True(t, out.Success)
	assert.Empty(t, out.Errors)
	require.NotNil(t, out.Lead.Qualification)
	assert.Equal(t, model.RiskSafe, out.Lead.Qualification.Profile.RiskTier)

	stored, err := d.Store.GetLead(ctx, "l1")
	require.NoError(t, err)
	require.NotNil(t, stored.Qualification)
	assert.Equal(t, model.RouteFullOutreach, stored.Qualification.Route.Route)

	rr = do(t, NewRouter(d), http.MethodPost, "/v1/leads/ghost/qualify", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCapture(t *testing.T) {
	t.Parallel()

	d := newTestDeps(t)
	ctx := context.Background()
	require.NoError(t, d.Store.InsertLeads(ctx, []*model.EnrichedLead{
		model.NewEnrichedLead("l1", model.RawLead{FirstName: "Ann"}),
	}))
	h := NewRouter(d)

	rr := do(t, h, http.MethodPost, "/v1/leads/l1/capture", map[string]any{
		"email":              "ann@leeplumbing.com",
		"mobile_confirmed":   true,
		"permission_granted": true,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.True(t, decode[model.ExecutionResult](t, rr).Success)

	got, err := d.Store.GetLead(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, "ann@leeplumbing.com", got.Email)

	rr = do(t, h, http.MethodPost, "/v1/leads/ghost/capture", map[string]any{"mobile_confirmed": true})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = do(t, h, http.MethodPost, "/v1/leads/l1/capture", "nope")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestFeedback(t *testing.T) {
	t.Parallel()

	d := newTestDeps(t)
	rr := do(t, NewRouter(d), http.MethodPost, "/v1/feedback", map[string]any{"phone": "5125550142"})
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	fb := trestlemocks.NewMockClient(t)
	fb.On("SendFeedback", mock.Anything, mock.MatchedBy(func(r trestle.FeedbackRequest) bool {
		return r.Phone == "5125550142" && r.PhoneStatus == trestle.PhoneConnected
	})).Return(nil).Once()
	fb.On("SendFeedback", mock.Anything, mock.MatchedBy(func(r trestle.FeedbackRequest) bool {
		return r.Phone == "5125550199"
	})).Return(errors.New("trestle: 500")).Once()
	d.Feedback = fb
	h := NewRouter(d)

	rr = do(t, h, http.MethodPost, "/v1/feedback", map[string]any{
		"response_id":  "rc_1",
		"phone":        "5125550142",
		"phone_status": "Connected",
	})
	assert.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())

	rr = do(t, h, http.MethodPost, "/v1/feedback", map[string]any{"phone": "5125550199"})
	assert.Equal(t, http.StatusBadGateway, rr.Code)

	rr = do(t, h, http.MethodPost, "/v1/feedback", map[string]any{"response_id": "rc_1"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestListDLQ(t *testing.T) {
	t.Parallel()

	d := newTestDeps(t)
	ctx := context.Background()
	require.NoError(t, d.Store.EnqueueDLQ(ctx, resilience.NewDLQEntry("l1", "b1", model.StepValidate,
		&resilience.TransientError{Err: errors.New("503")}, 3, 0)))
	require.NoError(t, d.Store.EnqueueDLQ(ctx, resilience.NewDLQEntry("l2", "b2", model.StepSkipTrace,
		errors.New("bad input"), 3, 0)))
	h := NewRouter(d)

	rr := do(t, h, http.MethodGet, "/v1/dlq", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]resilience.DLQEntry](t, rr), 2)

	rr = do(t, h, http.MethodGet, "/v1/dlq?error_type=transient", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	entries := decode[[]resilience.DLQEntry](t, rr)
	require.Len(t, entries, 1)
	assert.Equal(t, "l1", entries[0].LeadID)

	rr = do(t, h, http.MethodGet, "/v1/dlq?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestMetrics(t *testing.T) {
	t.Parallel()

	d := newTestDeps(t)
	ctx := context.Background()
	require.NoError(t, d.Store.EnqueueDLQ(ctx, resilience.NewDLQEntry("l1", "b1", model.StepValidate,
		errors.New("bad input"), 3, 0)))
	h := NewRouter(d)

	rr := do(t, h, http.MethodGet, "/v1/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	snap := decode[monitoring.Snapshot](t, rr)
	assert.Equal(t, 1, snap.DLQDepth)
	assert.Equal(t, 24, snap.LookbackHours)

	rr = do(t, h, http.MethodGet, "/v1/metrics?hours=6", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 6, decode[monitoring.Snapshot](t, rr).LookbackHours)

	rr = do(t, h, http.MethodGet, "/v1/metrics?hours=soon", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()

	d := newTestDeps(t)
	d.AllowedOrigins = []string{"https://app.example.com"}
	req := httptest.NewRequest(http.MethodOptions, "/v1/batches", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	NewRouter(d).ServeHTTP(rr, req)

	assert.Equal(t, "https://app.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
}
