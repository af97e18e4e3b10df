// Package enrich runs the per-lead enrichment pipeline: business and owner
// research, skip-trace, real-contact validation and qualification.
package enrich

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/lead-qualify/internal/cost"
	"github.com/sells-group/lead-qualify/internal/model"
	"github.com/sells-group/lead-qualify/internal/qualify"
	"github.com/sells-group/lead-qualify/internal/research"
	"github.com/sells-group/lead-qualify/internal/resilience"
	"github.com/sells-group/lead-qualify/pkg/tracerfy"
	"github.com/sells-group/lead-qualify/pkg/trestle"
)

// Config toggles pipeline steps and tunes their behaviour.
type Config struct {
	VerifyBusiness         bool
	ResearchOwner          bool
	SkipTrace              bool
	Validate               bool
	TraceType              tracerfy.TraceType
	PreferMobile           bool
	ImportedNameConfidence float64
	AddOns                 []string
	ResearchRPS            float64
	ValidateRPS            float64
	PollInterval           time.Duration
	PollCap                time.Duration
	PollTimeout            time.Duration
	Thresholds             qualify.Thresholds
}

// DefaultConfig enables every step with production defaults.
func DefaultConfig() Config {
	return Config{
		VerifyBusiness:         true,
		ResearchOwner:          true,
		SkipTrace:              true,
		Validate:               true,
		TraceType:              tracerfy.TraceNormal,
		PreferMobile:           true,
		ImportedNameConfidence: 0.5,
		AddOns:                 trestle.DefaultAddOns,
		ResearchRPS:            1,
		ValidateRPS:            5,
		PollInterval:           3 * time.Second,
		PollCap:                15 * time.Second,
		PollTimeout:            60 * time.Second,
		Thresholds:             qualify.DefaultThresholds(),
	}
}

// Deps are the collaborators of a Pipeline. Nil collaborators disable the
// steps that need them; those steps are recorded as skipped.
type Deps struct {
	Researcher research.Researcher
	Tracer     tracerfy.Client
	Validator  trestle.Client
	Guard      *resilience.Guard
	Costs      *cost.Calculator
}

// Pipeline enriches one lead at a time. It is safe for concurrent use; the
// rate limiters are shared across goroutines.
type Pipeline struct {
	cfg        Config
	researcher research.Researcher
	tracer     tracerfy.Client
	validator  trestle.Client
	guard      *resilience.Guard
	costs      *cost.Calculator

	researchLimit *rate.Limiter
	validateLimit *rate.Limiter
}

// New creates a Pipeline.
func New(cfg Config, deps Deps) *Pipeline {
	if deps.Costs == nil {
		deps.Costs = cost.NewCalculator(cost.DefaultRates())
	}
	if cfg.TraceType == "" {
		cfg.TraceType = tracerfy.TraceNormal
	}
	if cfg.Thresholds.PassingGrades == nil {
		cfg.Thresholds = qualify.DefaultThresholds()
	}
	return &Pipeline{
		cfg:           cfg,
		researcher:    deps.Researcher,
		tracer:        deps.Tracer,
		validator:     deps.Validator,
		guard:         deps.Guard,
		costs:         deps.Costs,
		researchLimit: newLimiter(cfg.ResearchRPS),
		validateLimit: newLimiter(cfg.ValidateRPS),
	}
}

// newLimiter returns a limiter with burst 1, or an unlimited one for rps <= 0.
func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// With returns a pipeline running cfg's step toggles against the same
// collaborators. Rate limiters are shared with p, so both respect one
// aggregate vendor rate.
func (p *Pipeline) With(cfg Config) *Pipeline {
	c := *p
	if cfg.TraceType == "" {
		cfg.TraceType = p.cfg.TraceType
	}
	if cfg.Thresholds.PassingGrades == nil {
		cfg.Thresholds = p.cfg.Thresholds
	}
	c.cfg = cfg
	return &c
}

// Result is the outcome of enriching one lead.
type Result struct {
	Lead   *model.EnrichedLead
	Report model.EnrichmentReport
	// Errors holds the error of every failed step, keyed by step name.
	Errors map[string]error
}

// Success reports whether the lead ended with usable data.
func (r *Result) Success() bool {
	return r.Lead.EnrichmentStatus != model.EnrichmentFailed
}

func (r *Result) record(s model.StepResult, err error) {
	r.Report.Add(s)
	r.Lead.Steps = append(r.Lead.Steps, s)
	if err != nil {
		r.Errors[s.Step] = err
	}
}

// Enrich runs every enabled step against lead, mutating it in place. Step
// failures are recorded on the result and never abort later steps. Only
// context cancellation stops the pipeline early.
func (p *Pipeline) Enrich(ctx context.Context, lead *model.EnrichedLead) *Result {
	start := time.Now()
	log := zap.L().With(zap.String("lead_id", lead.ID), zap.String("batch_id", lead.BatchID))
	res := &Result{
		Lead:   lead,
		Report: model.EnrichmentReport{LeadID: lead.ID},
		Errors: make(map[string]error),
	}

	seed(lead)

	steps := []func(context.Context, *model.EnrichedLead) (model.StepResult, error){
		p.verifyBusiness,
		p.researchOwner,
		p.skipTrace,
		p.validate,
	}
	for _, step := range steps {
		if ctx.Err() != nil {
			break
		}
		s, err := step(ctx, lead)
		if err != nil {
			log.Warn("enrich: step failed", zap.String("step", s.Step), zap.Error(err))
		}
		res.record(s, err)
	}

	p.finalize(lead)
	res.Report.Duration = model.Since(start)
	lead.UpdatedAt = time.Now().UTC()

	log.Info("enrich: lead complete",
		zap.String("status", string(lead.EnrichmentStatus)),
		zap.String("pipeline_stage", string(lead.PipelineStage)),
		zap.Int("phones", len(lead.Phones)),
		zap.Float64("cost", res.Report.TotalCost),
	)
	return res
}

// Qualify validates lead and derives its qualification without research or
// skip-trace.
func (p *Pipeline) Qualify(ctx context.Context, lead *model.EnrichedLead) *Result {
	res := &Result{
		Lead:   lead,
		Report: model.EnrichmentReport{LeadID: lead.ID},
		Errors: make(map[string]error),
	}
	seed(lead)
	s, err := p.validate(ctx, lead)
	res.record(s, err)
	p.finalize(lead)
	return res
}

// seed turns the imported phone and email into the first contact
// candidates when the lead has none yet.
func seed(lead *model.EnrichedLead) {
	if len(lead.Phones) == 0 {
		if ph, ok := ImportPhone(lead.Phone); ok {
			lead.Phones = []model.EnrichedPhone{ph}
		}
	}
	if lead.Email != "" {
		lead.Emails = MergeEmails([]string{lead.Email}, lead.Emails)
	}
}

// finalize settles the terminal status: any contact data means enriched
// and ready; research alone means verified; nothing means failed.
func (p *Pipeline) finalize(lead *model.EnrichedLead) {
	var status model.EnrichmentStatus
	switch {
	case len(lead.Phones) > 0 || len(lead.Emails) > 0:
		status = model.EnrichmentEnriched
		advance(lead, model.PipelineStageReady)
	case lead.BusinessVerification != nil:
		status = model.EnrichmentVerified
	default:
		status = model.EnrichmentFailed
	}
	lead.EnrichmentStatus = model.MergeEnrichmentStatus(lead.EnrichmentStatus, status)
}

// advance moves the lead's pipeline stage forward, ignoring regressions.
func advance(lead *model.EnrichedLead, to model.PipelineStage) {
	if next, err := model.AdvancePipelineStage(lead.PipelineStage, to); err == nil {
		lead.PipelineStage = next
	}
}

func failed(step string, start time.Time, err error) model.StepResult {
	return model.StepResult{
		Step:     step,
		Status:   model.StepFailed,
		Duration: model.Since(start),
		Error:    err.Error(),
	}
}
