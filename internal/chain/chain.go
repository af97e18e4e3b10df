// Package chain drives batches of leads through the execution stages:
// DATA_IMPORT, ENRICH, CONTACTABILITY, CAMPAIGN_PREP, PREVIEW and DEPLOY,
// plus the inbound CAPTURE hook.
package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/lead-qualify/internal/cost"
	"github.com/sells-group/lead-qualify/internal/crm"
	"github.com/sells-group/lead-qualify/internal/enrich"
	"github.com/sells-group/lead-qualify/internal/model"
	"github.com/sells-group/lead-qualify/internal/quota"
	"github.com/sells-group/lead-qualify/internal/resilience"
	"github.com/sells-group/lead-qualify/internal/store"
	"github.com/sells-group/lead-qualify/internal/template"
	"github.com/sells-group/lead-qualify/pkg/signalhouse"
	"github.com/sells-group/lead-qualify/pkg/tracerfy"
)

// ErrNotConfigured is returned (wrapped) when a stage needs a collaborator
// or setting that is missing. The stage does not start.
var ErrNotConfigured = eris.New("chain: not configured")

const (
	// DefaultBlockSize is the number of rows inserted per import block.
	DefaultBlockSize = 1000
	// DefaultSendInterval keeps deploys under 75 messages per minute.
	DefaultSendInterval = time.Second
	// DefaultLink is rendered into templates that ask for a booking link.
	DefaultLink = "https://calendly.com/nextier"
	// PreviewSamples is the number of messages rendered by Preview.
	PreviewSamples = 5
)

// Config tunes the executor.
type Config struct {
	BlockSize    int                `yaml:"block_size" mapstructure:"block_size"`
	SendInterval time.Duration      `yaml:"send_interval" mapstructure:"send_interval"`
	FromNumber   string             `yaml:"from_number" mapstructure:"from_number"`
	Link         string             `yaml:"link" mapstructure:"link"`
	TraceType    tracerfy.TraceType `yaml:"trace_type" mapstructure:"trace_type"`
	Concurrency  int                `yaml:"concurrency" mapstructure:"concurrency"`
	MaxRetries   int                `yaml:"max_retries" mapstructure:"max_retries"`
}

// DefaultConfig returns production defaults. FromNumber has no default.
func DefaultConfig() Config {
	return Config{
		BlockSize:    DefaultBlockSize,
		SendInterval: DefaultSendInterval,
		Link:         DefaultLink,
		TraceType:    tracerfy.TraceNormal,
		Concurrency:  10,
		MaxRetries:   3,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BlockSize <= 0 {
		c.BlockSize = d.BlockSize
	}
	if c.SendInterval < 0 {
		c.SendInterval = 0
	}
	if c.Link == "" {
		c.Link = d.Link
	}
	if c.TraceType == "" {
		c.TraceType = d.TraceType
	}
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	return c
}

// CRM mirrors leads and their SMS activity into the customer's CRM.
type CRM interface {
	SyncLead(ctx context.Context, l *model.EnrichedLead) (crm.Result, error)
	LogSMS(ctx context.Context, a crm.Activity) (string, error)
}

// Deps are the executor's collaborators. Store and Catalog are required;
// the rest are checked by the stages that need them.
type Deps struct {
	Store    store.Store
	Catalog  *template.Catalog
	Tracer   tracerfy.Client
	Pipeline *enrich.Pipeline
	SMS      signalhouse.Client
	Quota    quota.Limiter
	Guard    *resilience.Guard
	Costs    *cost.Calculator
	CRM      CRM
}

// Executor runs chain stages against stored batches.
type Executor struct {
	cfg      Config
	store    store.Store
	catalog  *template.Catalog
	tracer   tracerfy.Client
	pipeline *enrich.Pipeline
	sms      signalhouse.Client
	quota    quota.Limiter
	guard    *resilience.Guard
	costs    *cost.Calculator
	crm      CRM
	sendRate *rate.Limiter
	newID    func() string
	now      func() time.Time
}

// New creates an Executor.
func New(cfg Config, deps Deps) (*Executor, error) {
	if deps.Store == nil {
		return nil, eris.Wrap(ErrNotConfigured, "chain: store is required")
	}
	if deps.Catalog == nil {
		return nil, eris.Wrap(ErrNotConfigured, "chain: template catalog is required")
	}
	if deps.Costs == nil {
		deps.Costs = cost.NewCalculator(cost.DefaultRates())
	}
	if deps.Quota == nil {
		deps.Quota = quota.NewMemory(quota.DefaultDailyLimit)
	}
	cfg = cfg.withDefaults()

	limit := rate.Inf
	if cfg.SendInterval > 0 {
		limit = rate.Every(cfg.SendInterval)
	}
	return &Executor{
		cfg:      cfg,
		store:    deps.Store,
		catalog:  deps.Catalog,
		tracer:   deps.Tracer,
		pipeline: deps.Pipeline,
		sms:      deps.SMS,
		quota:    deps.Quota,
		guard:    deps.Guard,
		costs:    deps.Costs,
		crm:      deps.CRM,
		sendRate: rate.NewLimiter(limit, 1),
		newID:    uuid.NewString,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Config returns the effective configuration.
func (e *Executor) Config() Config { return e.cfg }

// Batch loads a stored batch.
func (e *Executor) Batch(ctx context.Context, id string) (*model.ExecutionBatch, error) {
	b, err := e.store.GetBatch(ctx, id)
	if err != nil {
		return nil, eris.Wrapf(err, "chain: load batch %s", id)
	}
	return b, nil
}

func newResult(stage model.ExecutionStage, batchID string) *model.ExecutionResult {
	return &model.ExecutionResult{
		Stage:     stage,
		BatchID:   batchID,
		Errors:    []string{},
		NextStage: stage.Next(),
		Data:      map[string]any{},
	}
}

// finish settles Success from the failure count.
func finish(res *model.ExecutionResult) *model.ExecutionResult {
	res.Success = res.Failed == 0
	return res
}

// recorder accumulates per-lead outcomes for one stage run.
type recorder struct {
	res *model.ExecutionResult
}

func (r *recorder) ok() { r.res.Succeeded++ }

func (r *recorder) fail(format string, args ...any) {
	r.res.Failed++
	r.errorf(format, args...)
}

func (r *recorder) errorf(format string, args ...any) {
	r.res.Errors = append(r.res.Errors, fmt.Sprintf(format, args...))
}

// batchLeads lists every lead of a batch in import order.
func (e *Executor) batchLeads(ctx context.Context, batchID string, stage model.LeadStage) ([]*model.EnrichedLead, error) {
	leads, err := e.store.ListLeads(ctx, store.LeadFilter{BatchID: batchID, LeadStage: stage})
	if err != nil {
		return nil, eris.Wrapf(err, "chain: list leads of batch %s", batchID)
	}
	return leads, nil
}

func (e *Executor) logger(stage model.ExecutionStage, batchID string) *zap.Logger {
	return zap.L().With(zap.String("stage", string(stage)), zap.String("batch_id", batchID))
}
