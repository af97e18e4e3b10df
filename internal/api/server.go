// Package api exposes batches, stages and lead qualification over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-qualify/internal/chain"
	"github.com/sells-group/lead-qualify/internal/enrich"
	"github.com/sells-group/lead-qualify/internal/leadfile"
	"github.com/sells-group/lead-qualify/internal/model"
	"github.com/sells-group/lead-qualify/internal/monitoring"
	"github.com/sells-group/lead-qualify/internal/resilience"
	"github.com/sells-group/lead-qualify/internal/store"
	"github.com/sells-group/lead-qualify/pkg/trestle"
)

// Deps holds the collaborators the handlers call. Pipeline and Feedback
// are optional; their routes answer 503 when unset. Metrics defaults to a
// collector over Store.
type Deps struct {
	Store          store.Store
	Chain          *chain.Executor
	Pipeline       *enrich.Pipeline
	Feedback       trestle.Client
	Metrics        *monitoring.Collector
	AllowedOrigins []string
}

type server struct {
	Deps
}

// NewRouter builds the HTTP handler for the API.
func NewRouter(d Deps) http.Handler {
	if d.Metrics == nil {
		d.Metrics = monitoring.NewCollector(d.Store, 0)
	}
	s := &server{Deps: d}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/batches", s.listBatches)
		r.Post("/batches", s.createBatch)
		r.Get("/batches/{id}", s.getBatch)
		r.Get("/batches/{id}/preview", s.preview)
		r.Post("/batches/{id}/stages/{stage}", s.runStage)

		r.Post("/leads/{id}/qualify", s.qualify)
		r.Post("/leads/{id}/capture", s.capture)

		r.Post("/feedback", s.feedback)
		r.Get("/dlq", s.listDLQ)
		r.Get("/metrics", s.metrics)
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, chain.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, model.ErrStageRegression), errors.Is(err, model.ErrStageSkipped):
		return http.StatusConflict
	case errors.Is(err, model.ErrUnknownStage), errors.Is(err, chain.ErrNotRunnable):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		zap.L().Error("api: request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeError(w, status, err.Error())
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createBatchRequest struct {
	Rows []leadfile.Row `json:"rows"`
	chain.ImportOptions
}

func (s *server) createBatch(w http.ResponseWriter, r *http.Request) {
	var req createBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Rows) == 0 {
		writeError(w, http.StatusBadRequest, "rows are required")
		return
	}
	if req.Source == "" {
		req.Source = "api"
	}

	res, err := s.Chain.Import(r.Context(), req.Rows, req.ImportOptions)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *server) listBatches(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	batches, err := s.Store.ListBatches(r.Context(), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, batches)
}

func (s *server) getBatch(w http.ResponseWriter, r *http.Request) {
	b, err := s.Store.GetBatch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *server) preview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.Store.GetBatch(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := s.Chain.Preview(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *server) runStage(w http.ResponseWriter, r *http.Request) {
	stage, err := model.ParseStage(chi.URLParam(r, "stage"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var opts chain.StageOptions
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	res, err := s.Chain.Run(r.Context(), chi.URLParam(r, "id"), stage, opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type qualifyResponse struct {
	Lead    *model.EnrichedLead    `json:"lead"`
	Report  model.EnrichmentReport `json:"report"`
	Success bool                   `json:"success"`
	Errors  map[string]string      `json:"errors,omitempty"`
}

func (s *server) qualify(w http.ResponseWriter, r *http.Request) {
	if s.Pipeline == nil {
		s.fail(w, r, eris.Wrap(chain.ErrNotConfigured, "enrichment pipeline"))
		return
	}
	lead, err := s.Store.GetLead(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	res := s.Pipeline.Qualify(r.Context(), lead)
	if err := s.Store.PatchLead(r.Context(), lead.ID, enrich.PatchFor(res.Lead)); err != nil {
		s.fail(w, r, eris.Wrapf(err, "api: save lead %s", lead.ID))
		return
	}

	out := qualifyResponse{Lead: res.Lead, Report: res.Report, Success: res.Success()}
	if len(res.Errors) > 0 {
		out.Errors = make(map[string]string, len(res.Errors))
		for step, e := range res.Errors {
			out.Errors[step] = e.Error()
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) capture(w http.ResponseWriter, r *http.Request) {
	var data model.CapturedData
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if data.CapturedAt.IsZero() {
		data.CapturedAt = time.Now().UTC()
	}

	res := s.Chain.Capture(r.Context(), chi.URLParam(r, "id"), data)
	status := http.StatusOK
	if !res.Success {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, res)
}

func (s *server) feedback(w http.ResponseWriter, r *http.Request) {
	if s.Feedback == nil {
		s.fail(w, r, eris.Wrap(chain.ErrNotConfigured, "phone validation"))
		return
	}
	var req trestle.FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Phone == "" {
		writeError(w, http.StatusBadRequest, "phone is required")
		return
	}

	if err := s.Feedback.SendFeedback(r.Context(), req); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *server) listDLQ(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := resilience.DLQFilter{
		ErrorType: q.Get("error_type"),
		BatchID:   q.Get("batch_id"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}

	entries, err := s.Store.ListDLQ(r.Context(), filter)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *server) metrics(w http.ResponseWriter, r *http.Request) {
	hours := 24
	if v := r.URL.Query().Get("hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "hours must be a non-negative integer")
			return
		}
		hours = n
	}
	snap, err := s.Metrics.Collect(r.Context(), hours)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
