package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/lead-qualify/internal/model"
	"github.com/sells-group/lead-qualify/pkg/tracerfy"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "leadq.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Batch.Concurrency)
	assert.Equal(t, "perplexity", cfg.Research.Provider)
	assert.Equal(t, "sonar-pro", cfg.Perplexity.Model)
	assert.Equal(t, 2000, cfg.Redis.DailyLimit)
	assert.Equal(t, "leadq-chain", cfg.Temporal.TaskQueue)
	assert.InDelta(t, 0.02, cfg.Pricing.Tracerfy.Normal, 1e-9)
	assert.InDelta(t, 0.15, cfg.Pricing.Tracerfy.Enhanced, 1e-9)
	assert.Equal(t, 70, cfg.Qualify.MinActivityScore)
	assert.Equal(t, []model.ContactGrade{model.GradeA, model.GradeB, model.GradeC}, cfg.Qualify.PassingGrades)
	assert.Equal(t, 1000, cfg.Chain.BlockSize)
	assert.Equal(t, time.Second, cfg.Chain.SendInterval)
	assert.Equal(t, tracerfy.TraceNormal, cfg.Chain.TraceType)
	assert.True(t, cfg.Enrich.SkipTrace)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 5, cfg.Circuit.FailureThreshold)
	assert.False(t, cfg.Salesforce.Enabled())
	assert.Equal(t, "LeadSource", cfg.CRM.Mapping.Source)
	assert.Empty(t, cfg.CRM.Mapping.SMSOptIn)
	assert.False(t, cfg.Monitoring.Enabled())
	assert.Equal(t, 0.25, cfg.Monitoring.FailureRateThreshold)
	assert.Equal(t, 2*time.Hour, cfg.Monitoring.StallAfter())
	assert.NoError(t, cfg.Validate(""))
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/leadq
log:
  level: debug
  format: console
server:
  port: 9090
chain:
  from_number: "+15125550000"
  send_interval: 2s
qualify:
  passing_grades: [A, B]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "+15125550000", cfg.Chain.FromNumber)
	assert.Equal(t, 2*time.Second, cfg.Chain.SendInterval)
	assert.Equal(t, []model.ContactGrade{model.GradeA, model.GradeB}, cfg.Qualify.PassingGrades)
	// Defaults still apply for unset values
	assert.Equal(t, 1000, cfg.Chain.BlockSize)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("LEADQ_STORE_DRIVER", "memory")
	t.Setenv("LEADQ_LOG_LEVEL", "warn")
	t.Setenv("LEADQ_TRESTLE_KEY", "trestle-key")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "trestle-key", cfg.Trestle.Key)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with the enum settings populated for
// validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Log.Format = "json"
	cfg.Research.Provider = "perplexity"
	cfg.Enrich.TraceType = "normal"
	cfg.Enrich.ImportedNameConfidence = 0.5
	cfg.Batch.Concurrency = 10
	cfg.Qualify.SafeMinScore = 50
	cfg.Qualify.ElevatedMinScore = 25
	cfg.Server.Port = 8080
	return cfg
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mode    string
		mutate  func(c *Config)
		wantErr []string
	}{
		{name: "defaults", mode: ""},
		{name: "bad driver", mutate: func(c *Config) { c.Store.Driver = "mongo" }, wantErr: []string{"store.driver"}},
		{name: "postgres without url", mutate: func(c *Config) { c.Store.Driver = "postgres" }, wantErr: []string{"store.database_url is required"}},
		{name: "bad log format", mutate: func(c *Config) { c.Log.Format = "xml" }, wantErr: []string{"log.format"}},
		{name: "bad provider", mutate: func(c *Config) { c.Research.Provider = "bing" }, wantErr: []string{"research.provider"}},
		{name: "bad trace type", mutate: func(c *Config) { c.Enrich.TraceType = "deluxe" }, wantErr: []string{"enrich.trace_type"}},
		{name: "concurrency bounds", mutate: func(c *Config) { c.Batch.Concurrency = 51 }, wantErr: []string{"batch.concurrency must be between 1 and 50"}},
		{name: "tier bounds", mutate: func(c *Config) { c.Qualify.ElevatedMinScore = 60 }, wantErr: []string{"elevated_min_score"}},
		{
			name: "enrichment missing keys",
			mode: "enrichment",
			mutate: func(c *Config) {
				c.Enrich.SkipTrace, c.Enrich.Validate, c.Enrich.VerifyBusiness = true, true, true
			},
			wantErr: []string{"tracerfy.token is required", "trestle.key is required", "perplexity.key is required"},
		},
		{
			name: "enrichment gemini",
			mode: "enrichment",
			mutate: func(c *Config) {
				c.Research.Provider = "gemini"
				c.Enrich.ResearchOwner = true
			},
			wantErr: []string{"gemini.key is required"},
		},
		{
			name: "enrichment all present",
			mode: "enrichment",
			mutate: func(c *Config) {
				c.Enrich.SkipTrace, c.Enrich.Validate = true, true
				c.Tracerfy.Token, c.Trestle.Key = "t", "k"
			},
		},
		{name: "deploy", mode: "deploy", wantErr: []string{"signalhouse.key is required", "chain.from_number is required"}},
		{name: "serve bad port", mode: "serve", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: []string{"server.port must be > 0"}},
		{name: "worker", mode: "worker", wantErr: []string{"temporal.host_port is required"}},
		{name: "watch", mode: "watch", wantErr: []string{"watch.dir is required"}},
		{name: "crm", mode: "crm", wantErr: []string{"salesforce.client_id is required", "salesforce.key_path is required"}},
		{
			name: "crm unmapped last name",
			mode: "crm",
			mutate: func(c *Config) {
				c.Salesforce.ClientID, c.Salesforce.KeyPath = "3MVG", "sf.pem"
				c.CRM.Mapping.LastName = ""
			},
			wantErr: []string{"crm.mapping.last_name"},
		},
		{name: "unknown mode", mode: "fax", wantErr: []string{"unknown mode"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validDefaults()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			err := cfg.Validate(tt.mode)
			if len(tt.wantErr) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestPipelineConfig(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	pc := cfg.PipelineConfig()
	assert.True(t, pc.Validate)
	assert.Equal(t, tracerfy.TraceNormal, pc.TraceType)
	assert.Equal(t, 3*time.Second, pc.PollInterval)
	assert.Equal(t, 15*time.Second, pc.PollCap)
	assert.Equal(t, time.Minute, pc.PollTimeout)
	assert.Equal(t, 70, pc.Thresholds.MinActivityScore)
	assert.NotEmpty(t, pc.AddOns)

	opts := cfg.BatchOptions()
	assert.Equal(t, 10, opts.Concurrency)
	assert.Equal(t, 5*time.Minute, opts.RetryBackoff)

	rc := cfg.ResearchConfig()
	assert.Equal(t, "perplexity", rc.Provider)
	assert.Equal(t, "sonar-pro", rc.PerplexityModel)
}
