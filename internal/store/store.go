package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-qualify/internal/model"
	"github.com/sells-group/lead-qualify/internal/resilience"
)

// ErrNotFound is returned (wrapped) when a batch or lead does not exist.
var ErrNotFound = eris.New("store: not found")

// LeadFilter specifies criteria for listing leads.
type LeadFilter struct {
	BatchID        string               `json:"batch_id,omitempty"`
	LeadStage      model.LeadStage      `json:"lead_stage,omitempty"`
	ExecutionStage model.ExecutionStage `json:"execution_stage,omitempty"`
	Limit          int                  `json:"limit,omitempty"`
	Offset         int                  `json:"offset,omitempty"`
}

// Store defines the persistence interface for batches and leads.
type Store interface {
	// Batches
	CreateBatch(ctx context.Context, b *model.ExecutionBatch) error
	GetBatch(ctx context.Context, id string) (*model.ExecutionBatch, error)
	UpdateBatch(ctx context.Context, b *model.ExecutionBatch) error
	ListBatches(ctx context.Context, limit int) ([]model.ExecutionBatch, error)

	// Leads
	InsertLeads(ctx context.Context, leads []*model.EnrichedLead) error
	GetLead(ctx context.Context, id string) (*model.EnrichedLead, error)
	ListLeads(ctx context.Context, filter LeadFilter) ([]*model.EnrichedLead, error)
	CountLeads(ctx context.Context, filter LeadFilter) (int, error)
	// PatchLead merges the non-nil fields of patch into the stored lead.
	PatchLead(ctx context.Context, id string, patch LeadPatch) error

	// Dead letter queue
	EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error
	ListDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error)
	RemoveDLQ(ctx context.Context, id string) error
	CountDLQ(ctx context.Context) (int, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// Config selects and configures a store backend.
type Config struct {
	Driver      string     `yaml:"driver" mapstructure:"driver"` // postgres, sqlite, memory
	DatabaseURL string     `yaml:"database_url" mapstructure:"database_url"`
	Pool        PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// Open builds the store named by cfg.Driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, &cfg.Pool)
	case "sqlite":
		return NewSQLite(cfg.DatabaseURL)
	case "memory", "":
		return NewMemory(), nil
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

func notFound(entity, id string) error {
	return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
}

func limitOrDefault(n int) int {
	if n <= 0 {
		return 100_000
	}
	return n
}
