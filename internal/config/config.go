package config

import (
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/lead-qualify/internal/chain"
	"github.com/sells-group/lead-qualify/internal/cost"
	"github.com/sells-group/lead-qualify/internal/crm"
	"github.com/sells-group/lead-qualify/internal/enrich"
	"github.com/sells-group/lead-qualify/internal/monitoring"
	"github.com/sells-group/lead-qualify/internal/qualify"
	"github.com/sells-group/lead-qualify/internal/research"
	"github.com/sells-group/lead-qualify/internal/resilience"
	"github.com/sells-group/lead-qualify/internal/store"
	"github.com/sells-group/lead-qualify/pkg/salesforce"
	"github.com/sells-group/lead-qualify/pkg/tracerfy"
	"github.com/sells-group/lead-qualify/pkg/trestle"
)

// Config holds the full application configuration.
type Config struct {
	Store       store.Config             `yaml:"store" mapstructure:"store"`
	Log         LogConfig                `yaml:"log" mapstructure:"log"`
	Server      ServerConfig             `yaml:"server" mapstructure:"server"`
	Batch       BatchConfig              `yaml:"batch" mapstructure:"batch"`
	Research    ResearchConfig           `yaml:"research" mapstructure:"research"`
	Perplexity  PerplexityConfig         `yaml:"perplexity" mapstructure:"perplexity"`
	Gemini      GeminiConfig             `yaml:"gemini" mapstructure:"gemini"`
	Anthropic   AnthropicConfig          `yaml:"anthropic" mapstructure:"anthropic"`
	Google      GoogleConfig             `yaml:"google" mapstructure:"google"`
	Tracerfy    TracerfyConfig           `yaml:"tracerfy" mapstructure:"tracerfy"`
	Trestle     TrestleConfig            `yaml:"trestle" mapstructure:"trestle"`
	SignalHouse SignalHouseConfig        `yaml:"signalhouse" mapstructure:"signalhouse"`
	Salesforce  salesforce.Config        `yaml:"salesforce" mapstructure:"salesforce"`
	CRM         CRMConfig                `yaml:"crm" mapstructure:"crm"`
	Redis       RedisConfig              `yaml:"redis" mapstructure:"redis"`
	Temporal    TemporalConfig           `yaml:"temporal" mapstructure:"temporal"`
	Pricing     cost.Rates               `yaml:"pricing" mapstructure:"pricing"`
	Qualify     qualify.Thresholds       `yaml:"qualify" mapstructure:"qualify"`
	Enrich      EnrichConfig             `yaml:"enrich" mapstructure:"enrich"`
	Chain       chain.Config             `yaml:"chain" mapstructure:"chain"`
	Templates   TemplatesConfig          `yaml:"templates" mapstructure:"templates"`
	Watch       WatchConfig              `yaml:"watch" mapstructure:"watch"`
	Retry       resilience.RetryPolicy   `yaml:"retry" mapstructure:"retry"`
	Circuit     resilience.CircuitPolicy `yaml:"circuit" mapstructure:"circuit"`
	Monitoring  monitoring.Config        `yaml:"monitoring" mapstructure:"monitoring"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// BatchConfig configures per-lead concurrency and dead-lettering.
type BatchConfig struct {
	Concurrency      int `yaml:"concurrency" mapstructure:"concurrency"`
	MaxRetries       int `yaml:"max_retries" mapstructure:"max_retries"`
	RetryBackoffMins int `yaml:"retry_backoff_mins" mapstructure:"retry_backoff_mins"`
}

// ResearchConfig selects the business/owner research backend.
type ResearchConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"` // perplexity, gemini, anthropic
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// GeminiConfig holds Gemini API settings.
type GeminiConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// GoogleConfig holds the Places key used for the closure pre-check.
type GoogleConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// TracerfyConfig holds skip-trace API settings.
type TracerfyConfig struct {
	Token   string `yaml:"token" mapstructure:"token"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// TrestleConfig holds real-contact API settings.
type TrestleConfig struct {
	Key     string   `yaml:"key" mapstructure:"key"`
	BaseURL string   `yaml:"base_url" mapstructure:"base_url"`
	AddOns  []string `yaml:"add_ons" mapstructure:"add_ons"`
}

// SignalHouseConfig holds SMS gateway settings.
type SignalHouseConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	AuthToken string `yaml:"auth_token" mapstructure:"auth_token"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
}

// CRMConfig controls how leads are mirrored into Salesforce.
type CRMConfig struct {
	Source  string           `yaml:"source" mapstructure:"source"`
	Mapping crm.FieldMapping `yaml:"mapping" mapstructure:"mapping"`
}

// RedisConfig backs the daily send quota. An empty address keeps the quota
// in process.
type RedisConfig struct {
	Addr       string `yaml:"addr" mapstructure:"addr"`
	KeyPrefix  string `yaml:"key_prefix" mapstructure:"key_prefix"`
	DailyLimit int    `yaml:"daily_limit" mapstructure:"daily_limit"`
}

// TemporalConfig configures the durable chain worker.
type TemporalConfig struct {
	HostPort  string `yaml:"host_port" mapstructure:"host_port"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
	TaskQueue string `yaml:"task_queue" mapstructure:"task_queue"`
}

// EnrichConfig toggles pipeline steps and tunes their vendors.
type EnrichConfig struct {
	VerifyBusiness         bool    `yaml:"verify_business" mapstructure:"verify_business"`
	ResearchOwner          bool    `yaml:"research_owner" mapstructure:"research_owner"`
	SkipTrace              bool    `yaml:"skip_trace" mapstructure:"skip_trace"`
	Validate               bool    `yaml:"validate" mapstructure:"validate"`
	TraceType              string  `yaml:"trace_type" mapstructure:"trace_type"` // normal, enhanced
	PreferMobile           bool    `yaml:"prefer_mobile" mapstructure:"prefer_mobile"`
	ImportedNameConfidence float64 `yaml:"imported_name_confidence" mapstructure:"imported_name_confidence"`
	ResearchRPS            float64 `yaml:"research_rps" mapstructure:"research_rps"`
	ValidateRPS            float64 `yaml:"validate_rps" mapstructure:"validate_rps"`
	PollIntervalSecs       int     `yaml:"poll_interval_secs" mapstructure:"poll_interval_secs"`
	PollCapSecs            int     `yaml:"poll_cap_secs" mapstructure:"poll_cap_secs"`
	PollTimeoutSecs        int     `yaml:"poll_timeout_secs" mapstructure:"poll_timeout_secs"`
}

// TemplatesConfig points at an optional catalog file.
type TemplatesConfig struct {
	CatalogPath string `yaml:"catalog_path" mapstructure:"catalog_path"`
}

// WatchConfig configures the lead-file inbox watcher.
type WatchConfig struct {
	Dir          string `yaml:"dir" mapstructure:"dir"`
	ProcessedDir string `yaml:"processed_dir" mapstructure:"processed_dir"`
	FailedDir    string `yaml:"failed_dir" mapstructure:"failed_dir"`
	DebounceMs   int    `yaml:"debounce_ms" mapstructure:"debounce_ms"`
	Source       string `yaml:"source" mapstructure:"source"`
}

// Poll returns the skip-trace polling durations.
func (c EnrichConfig) Poll() (interval, ceiling, timeout time.Duration) {
	return time.Duration(c.PollIntervalSecs) * time.Second,
		time.Duration(c.PollCapSecs) * time.Second,
		time.Duration(c.PollTimeoutSecs) * time.Second
}

// PipelineConfig converts the enrich section into pipeline settings.
func (c *Config) PipelineConfig() enrich.Config {
	interval, ceiling, timeout := c.Enrich.Poll()
	return enrich.Config{
		VerifyBusiness:         c.Enrich.VerifyBusiness,
		ResearchOwner:          c.Enrich.ResearchOwner,
		SkipTrace:              c.Enrich.SkipTrace,
		Validate:               c.Enrich.Validate,
		TraceType:              tracerfy.TraceType(c.Enrich.TraceType),
		PreferMobile:           c.Enrich.PreferMobile,
		ImportedNameConfidence: c.Enrich.ImportedNameConfidence,
		AddOns:                 c.Trestle.AddOns,
		ResearchRPS:            c.Enrich.ResearchRPS,
		ValidateRPS:            c.Enrich.ValidateRPS,
		PollInterval:           interval,
		PollCap:                ceiling,
		PollTimeout:            timeout,
		Thresholds:             c.Qualify,
	}
}

// ResearchConfig converts the research credentials into backend settings.
func (c *Config) ResearchConfig() research.Config {
	return research.Config{
		Provider:        c.Research.Provider,
		PerplexityKey:   c.Perplexity.Key,
		PerplexityModel: c.Perplexity.Model,
		GeminiKey:       c.Gemini.Key,
		GeminiModel:     c.Gemini.Model,
		AnthropicKey:    c.Anthropic.Key,
		AnthropicModel:  c.Anthropic.Model,
		GooglePlacesKey: c.Google.Key,
	}
}

// BatchOptions converts the batch section into enrichment batch options.
func (c *Config) BatchOptions() enrich.BatchOptions {
	return enrich.BatchOptions{
		Concurrency:  c.Batch.Concurrency,
		MaxRetries:   c.Batch.MaxRetries,
		RetryBackoff: time.Duration(c.Batch.RetryBackoffMins) * time.Minute,
	}
}

var (
	storeDrivers      = []string{"postgres", "sqlite", "memory"}
	logFormats        = []string{"json", "console"}
	researchProviders = []string{"perplexity", "gemini", "anthropic"}
	traceTypes        = []string{"normal", "enhanced"}
)

// Validate checks the settings a command mode depends on. Enum-valued
// settings and numeric bounds are checked in every mode; credentials only
// for the vendors the mode calls. All problems are reported together.
func (c *Config) Validate(mode string) error {
	var errs []string

	if !slices.Contains(storeDrivers, c.Store.Driver) {
		errs = append(errs, "store.driver must be one of "+strings.Join(storeDrivers, ", "))
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required for postgres")
	}
	if c.Log.Format != "" && !slices.Contains(logFormats, c.Log.Format) {
		errs = append(errs, "log.format must be one of "+strings.Join(logFormats, ", "))
	}
	if !slices.Contains(researchProviders, c.Research.Provider) {
		errs = append(errs, "research.provider must be one of "+strings.Join(researchProviders, ", "))
	}
	if !slices.Contains(traceTypes, c.Enrich.TraceType) {
		errs = append(errs, "enrich.trace_type must be one of "+strings.Join(traceTypes, ", "))
	}
	if c.Batch.Concurrency < 1 || c.Batch.Concurrency > 50 {
		errs = append(errs, "batch.concurrency must be between 1 and 50")
	}
	if c.Enrich.ImportedNameConfidence < 0 || c.Enrich.ImportedNameConfidence > 1 {
		errs = append(errs, "enrich.imported_name_confidence must be between 0 and 1")
	}
	if c.Salesforce.ClientID != "" && c.CRM.Mapping.LastName == "" {
		errs = append(errs, "crm.mapping.last_name is required when salesforce is enabled")
	}
	if c.Qualify.ElevatedMinScore > c.Qualify.SafeMinScore {
		errs = append(errs, "qualify.elevated_min_score must be <= qualify.safe_min_score")
	}

	switch mode {
	case "enrichment":
		errs = append(errs, c.enrichmentErrors()...)
	case "deploy":
		if c.SignalHouse.Key == "" {
			errs = append(errs, "signalhouse.key is required")
		}
		if c.Chain.FromNumber == "" {
			errs = append(errs, "chain.from_number is required")
		}
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "worker":
		if c.Temporal.HostPort == "" {
			errs = append(errs, "temporal.host_port is required")
		}
		if c.Temporal.TaskQueue == "" {
			errs = append(errs, "temporal.task_queue is required")
		}
	case "crm":
		if c.Salesforce.ClientID == "" {
			errs = append(errs, "salesforce.client_id is required")
		}
		if c.Salesforce.KeyPath == "" {
			errs = append(errs, "salesforce.key_path is required")
		}
	case "watch":
		if c.Watch.Dir == "" {
			errs = append(errs, "watch.dir is required")
		}
	case "":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: invalid for %s: %s", mode, strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) enrichmentErrors() []string {
	var errs []string
	if c.Enrich.SkipTrace && c.Tracerfy.Token == "" {
		errs = append(errs, "tracerfy.token is required")
	}
	if c.Enrich.Validate && c.Trestle.Key == "" {
		errs = append(errs, "trestle.key is required")
	}
	if c.Enrich.VerifyBusiness || c.Enrich.ResearchOwner {
		switch c.Research.Provider {
		case "perplexity":
			if c.Perplexity.Key == "" {
				errs = append(errs, "perplexity.key is required")
			}
		case "gemini":
			if c.Gemini.Key == "" {
				errs = append(errs, "gemini.key is required")
			}
		case "anthropic":
			if c.Anthropic.Key == "" {
				errs = append(errs, "anthropic.key is required")
			}
		}
	}
	return errs
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Secrets have empty defaults so env-only values still unmarshal.
	for _, key := range []string{
		"perplexity.key", "gemini.key", "anthropic.key", "google.key",
		"tracerfy.token", "trestle.key", "signalhouse.key", "signalhouse.auth_token",
		"redis.addr", "chain.from_number", "templates.catalog_path",
		"salesforce.client_id", "salesforce.username", "salesforce.key_path",
	} {
		v.SetDefault(key, "")
	}

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "leadq.db")
	v.SetDefault("store.pool.max_conns", 10)
	v.SetDefault("store.pool.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("batch.concurrency", 10)
	v.SetDefault("batch.max_retries", 3)
	v.SetDefault("batch.retry_backoff_mins", 5)
	v.SetDefault("research.provider", "perplexity")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("tracerfy.base_url", "https://tracerfy.com/v1/api")
	v.SetDefault("trestle.base_url", "https://api.trestleiq.com")
	v.SetDefault("trestle.add_ons", trestle.DefaultAddOns)
	v.SetDefault("signalhouse.base_url", "https://api.signalhouse.io")
	v.SetDefault("salesforce.login_url", "login.salesforce.com")
	v.SetDefault("salesforce.rps", 5.0)
	v.SetDefault("crm.source", "leadq")
	sfMap := crm.SalesforceMapping()
	v.SetDefault("crm.mapping.phone", sfMap.Phone)
	v.SetDefault("crm.mapping.mobile_phone", sfMap.MobilePhone)
	v.SetDefault("crm.mapping.email", sfMap.Email)
	v.SetDefault("crm.mapping.first_name", sfMap.FirstName)
	v.SetDefault("crm.mapping.last_name", sfMap.LastName)
	v.SetDefault("crm.mapping.company", sfMap.Company)
	v.SetDefault("crm.mapping.status", sfMap.Status)
	v.SetDefault("crm.mapping.source", sfMap.Source)
	v.SetDefault("crm.mapping.notes", sfMap.Notes)
	v.SetDefault("crm.mapping.sms_opt_in", "")
	v.SetDefault("redis.key_prefix", "leadq:quota")
	v.SetDefault("redis.daily_limit", 2000)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "leadq-chain")

	rates := cost.DefaultRates()
	v.SetDefault("pricing.perplexity.per_query", rates.Perplexity.PerQuery)
	v.SetDefault("pricing.gemini.per_query", rates.Gemini.PerQuery)
	v.SetDefault("pricing.tracerfy.normal", rates.Tracerfy.Normal)
	v.SetDefault("pricing.tracerfy.enhanced", rates.Tracerfy.Enhanced)
	v.SetDefault("pricing.tracerfy.normal_credits", rates.Tracerfy.NormalCredits)
	v.SetDefault("pricing.tracerfy.enhanced_credits", rates.Tracerfy.EnhancedCredits)
	v.SetDefault("pricing.trestle.per_contact", rates.Trestle.PerContact)
	v.SetDefault("pricing.sms.per_segment", rates.SMS.PerSegment)

	th := qualify.DefaultThresholds()
	v.SetDefault("qualify.min_activity_score", th.MinActivityScore)
	v.SetDefault("qualify.passing_grades", []string{"A", "B", "C"})
	v.SetDefault("qualify.safe_min_score", th.SafeMinScore)
	v.SetDefault("qualify.elevated_min_score", th.ElevatedMinScore)

	v.SetDefault("enrich.verify_business", true)
	v.SetDefault("enrich.research_owner", true)
	v.SetDefault("enrich.skip_trace", true)
	v.SetDefault("enrich.validate", true)
	v.SetDefault("enrich.trace_type", "normal")
	v.SetDefault("enrich.prefer_mobile", true)
	v.SetDefault("enrich.imported_name_confidence", 0.5)
	v.SetDefault("enrich.research_rps", 1.0)
	v.SetDefault("enrich.validate_rps", 5.0)
	v.SetDefault("enrich.poll_interval_secs", 3)
	v.SetDefault("enrich.poll_cap_secs", 15)
	v.SetDefault("enrich.poll_timeout_secs", 60)

	v.SetDefault("chain.block_size", chain.DefaultBlockSize)
	v.SetDefault("chain.send_interval", chain.DefaultSendInterval)
	v.SetDefault("chain.link", chain.DefaultLink)
	v.SetDefault("chain.trace_type", "normal")
	v.SetDefault("chain.concurrency", 10)
	v.SetDefault("chain.max_retries", 3)

	v.SetDefault("watch.dir", "inbox")
	v.SetDefault("watch.processed_dir", "inbox/processed")
	v.SetDefault("watch.failed_dir", "inbox/failed")
	v.SetDefault("watch.debounce_ms", 500)
	v.SetDefault("watch.source", "csv")

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 10000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.2)
	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.reset_timeout_secs", 30)

	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.min_leads_for_rate", 20)
	v.SetDefault("monitoring.cost_threshold_usd", 0.0)
	v.SetDefault("monitoring.dlq_depth_threshold", 100)
	v.SetDefault("monitoring.stall_after_mins", 120)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
