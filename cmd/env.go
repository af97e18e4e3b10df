package main

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-qualify/internal/chain"
	"github.com/sells-group/lead-qualify/internal/cost"
	"github.com/sells-group/lead-qualify/internal/crm"
	"github.com/sells-group/lead-qualify/internal/enrich"
	"github.com/sells-group/lead-qualify/internal/quota"
	"github.com/sells-group/lead-qualify/internal/research"
	"github.com/sells-group/lead-qualify/internal/resilience"
	"github.com/sells-group/lead-qualify/internal/store"
	"github.com/sells-group/lead-qualify/internal/template"
	"github.com/sells-group/lead-qualify/pkg/salesforce"
	"github.com/sells-group/lead-qualify/pkg/signalhouse"
	"github.com/sells-group/lead-qualify/pkg/tracerfy"
	"github.com/sells-group/lead-qualify/pkg/trestle"
)

// leadEnv holds the store, vendor clients, pipeline and chain executor
// needed by the commands.
type leadEnv struct {
	Store     store.Store
	Costs     *cost.Calculator
	Pipeline  *enrich.Pipeline
	Chain     *chain.Executor
	Validator trestle.Client // may be nil
	CRM       *crm.Syncer    // may be nil

	closers []func() error
}

// Close releases resources held by the environment.
func (le *leadEnv) Close() {
	for i := len(le.closers) - 1; i >= 0; i-- {
		if err := le.closers[i](); err != nil {
			zap.L().Debug("close env resource", zap.Error(err))
		}
	}
}

// initStore opens and migrates the configured store.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initEnv validates the config for mode and wires every collaborator.
// Vendors without credentials are left unset; the stages that need them
// report chain.ErrNotConfigured. Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*leadEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	env := &leadEnv{Store: st, closers: []func() error{st.Close}}

	limiter, closeQuota, err := quota.Open(ctx, quota.Config{
		DailyLimit: cfg.Redis.DailyLimit,
		RedisAddr:  cfg.Redis.Addr,
		KeyPrefix:  cfg.Redis.KeyPrefix,
	})
	if err != nil {
		env.Close()
		return nil, eris.Wrap(err, "open send quota")
	}
	env.closers = append(env.closers, closeQuota)

	env.Costs = cost.NewCalculator(cfg.Pricing)
	guard := resilience.NewGuard(cfg.Retry, cfg.Circuit)

	researcher, err := research.New(ctx, cfg.ResearchConfig(), env.Costs)
	switch {
	case errors.Is(err, research.ErrNoCredentials):
		zap.L().Debug("research provider not configured, business verification disabled",
			zap.String("provider", cfg.Research.Provider))
		researcher = nil
	case err != nil:
		env.Close()
		return nil, eris.Wrap(err, "init research provider")
	}

	var tracer tracerfy.Client
	if cfg.Tracerfy.Token != "" {
		tracer = tracerfy.NewClient(cfg.Tracerfy.Token, tracerfy.WithBaseURL(cfg.Tracerfy.BaseURL))
	} else {
		zap.L().Debug("LEADQ_TRACERFY_TOKEN not set, skip-trace disabled")
	}

	if cfg.Trestle.Key != "" {
		env.Validator = trestle.NewClient(cfg.Trestle.Key, trestle.WithBaseURL(cfg.Trestle.BaseURL))
	} else {
		zap.L().Debug("LEADQ_TRESTLE_KEY not set, phone validation disabled")
	}

	var sms signalhouse.Client
	if cfg.SignalHouse.Key != "" {
		sms = signalhouse.NewClient(cfg.SignalHouse.Key, cfg.SignalHouse.AuthToken,
			signalhouse.WithBaseURL(cfg.SignalHouse.BaseURL))
	}

	var crmSync chain.CRM
	if cfg.Salesforce.Enabled() {
		sf, err := salesforce.Dial(cfg.Salesforce)
		if err != nil {
			env.Close()
			return nil, eris.Wrap(err, "connect salesforce")
		}
		env.CRM = crm.New(sf, crm.WithMapping(cfg.CRM.Mapping), crm.WithSource(cfg.CRM.Source))
		crmSync = env.CRM
	}

	catalog, err := template.LoadCatalog(cfg.Templates.CatalogPath)
	if err != nil {
		env.Close()
		return nil, eris.Wrap(err, "load template catalog")
	}

	env.Pipeline = enrich.New(cfg.PipelineConfig(), enrich.Deps{
		Researcher: researcher,
		Tracer:     tracer,
		Validator:  env.Validator,
		Guard:      guard,
		Costs:      env.Costs,
	})

	env.Chain, err = chain.New(cfg.Chain, chain.Deps{
		Store:    st,
		Catalog:  catalog,
		Tracer:   tracer,
		Pipeline: env.Pipeline,
		SMS:      sms,
		Quota:    limiter,
		Guard:    guard,
		Costs:    env.Costs,
		CRM:      crmSync,
	})
	if err != nil {
		env.Close()
		return nil, err
	}

	zap.L().Debug("environment ready",
		zap.String("store", cfg.Store.Driver),
		zap.Bool("research", researcher != nil),
		zap.Bool("skip_trace", tracer != nil),
		zap.Bool("validation", env.Validator != nil),
		zap.Bool("sms", sms != nil),
		zap.Bool("crm", env.CRM != nil),
	)
	return env, nil
}
