package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-qualify/internal/db"
	"github.com/sells-group/lead-qualify/internal/model"
	"github.com/sells-group/lead-qualify/internal/resilience"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

var leadColumns = []string{"id", "batch_id", "lead_stage", "execution_stage", "data", "created_at", "updated_at"}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS execution_batches (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	stage           TEXT NOT NULL,
	blueprint       TEXT NOT NULL DEFAULT 'COLD',
	status          TEXT NOT NULL DEFAULT 'pending',
	total_leads     INTEGER NOT NULL DEFAULT 0,
	processed_leads INTEGER NOT NULL DEFAULT 0,
	success_count   INTEGER NOT NULL DEFAULT 0,
	fail_count      INTEGER NOT NULL DEFAULT 0,
	metadata        JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS leads (
	id              TEXT PRIMARY KEY,
	batch_id        TEXT,
	lead_stage      TEXT NOT NULL DEFAULT 'new',
	execution_stage TEXT,
	data            JSONB NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_leads_batch_id ON leads(batch_id);
CREATE INDEX IF NOT EXISTS idx_leads_batch_stage ON leads(batch_id, lead_stage);

CREATE TABLE IF NOT EXISTS dead_letter_queue (
	id             TEXT PRIMARY KEY,
	lead_id        TEXT NOT NULL,
	batch_id       TEXT,
	error          TEXT NOT NULL,
	error_type     TEXT NOT NULL DEFAULT 'transient',
	failed_step    TEXT,
	retry_count    INTEGER NOT NULL DEFAULT 0,
	max_retries    INTEGER NOT NULL DEFAULT 3,
	next_retry_at  TIMESTAMPTZ NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_failed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_dlq_error_type ON dead_letter_queue(error_type);
CREATE INDEX IF NOT EXISTS idx_dlq_batch_id ON dead_letter_queue(batch_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Batches

func (s *PostgresStore) CreateBatch(ctx context.Context, b *model.ExecutionBatch) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now

	metaJSON, err := json.Marshal(b.Metadata)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal batch metadata")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO execution_batches
		 (id, name, stage, blueprint, status, total_leads, processed_leads, success_count, fail_count, metadata, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		b.ID, b.Name, string(b.Stage), string(b.Blueprint), string(b.Status),
		b.TotalLeads, b.ProcessedLeads, b.SuccessCount, b.FailCount, metaJSON, b.CreatedAt, b.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: insert batch %s", b.ID)
}

func (s *PostgresStore) GetBatch(ctx context.Context, id string) (*model.ExecutionBatch, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, stage, blueprint, status, total_leads, processed_leads, success_count, fail_count, metadata, created_at, updated_at
		 FROM execution_batches WHERE id = $1`,
		id,
	)
	b, err := scanPgBatch(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("batch", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get batch %s", id)
	}
	return b, nil
}

func (s *PostgresStore) UpdateBatch(ctx context.Context, b *model.ExecutionBatch) error {
	b.UpdatedAt = time.Now().UTC()
	metaJSON, err := json.Marshal(b.Metadata)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal batch metadata")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE execution_batches SET
		   name = $1, stage = $2, blueprint = $3, status = $4, total_leads = $5,
		   processed_leads = $6, success_count = $7, fail_count = $8, metadata = $9, updated_at = $10
		 WHERE id = $11`,
		b.Name, string(b.Stage), string(b.Blueprint), string(b.Status), b.TotalLeads,
		b.ProcessedLeads, b.SuccessCount, b.FailCount, metaJSON, b.UpdatedAt, b.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update batch %s", b.ID)
	}
	if tag.RowsAffected() == 0 {
		return notFound("batch", b.ID)
	}
	return nil
}

func (s *PostgresStore) ListBatches(ctx context.Context, limit int) ([]model.ExecutionBatch, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, stage, blueprint, status, total_leads, processed_leads, success_count, fail_count, metadata, created_at, updated_at
		 FROM execution_batches ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list batches")
	}
	defer rows.Close()

	var out []model.ExecutionBatch
	for rows.Next() {
		b, err := scanPgBatch(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan batch")
		}
		out = append(out, *b)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list batches iterate")
}

func scanPgBatch(row pgx.Row) (*model.ExecutionBatch, error) {
	var b model.ExecutionBatch
	var stage, blueprint, status string
	var metaJSON []byte
	if err := row.Scan(&b.ID, &b.Name, &stage, &blueprint, &status,
		&b.TotalLeads, &b.ProcessedLeads, &b.SuccessCount, &b.FailCount,
		&metaJSON, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.Stage = model.ExecutionStage(stage)
	b.Blueprint = model.Blueprint(blueprint)
	b.Status = model.BatchStatus(status)
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &b.Metadata); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal batch metadata")
		}
	}
	return &b, nil
}

// Leads

// InsertLeads bulk-loads new leads with COPY.
func (s *PostgresStore) InsertLeads(ctx context.Context, leads []*model.EnrichedLead) error {
	rows := make([][]any, 0, len(leads))
	for _, l := range leads {
		data, err := json.Marshal(l)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal lead %s", l.ID)
		}
		rows = append(rows, []any{
			l.ID, nullString(l.BatchID), string(l.LeadStage), nullString(string(l.Meta.ExecutionStage)),
			data, l.CreatedAt, l.UpdatedAt,
		})
	}
	_, err := db.CopyFrom(ctx, s.pool, "leads", leadColumns, rows)
	return eris.Wrap(err, "postgres: insert leads")
}

func (s *PostgresStore) GetLead(ctx context.Context, id string) (*model.EnrichedLead, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, batch_id, data, created_at, updated_at FROM leads WHERE id = $1`,
		id,
	)
	l, err := scanPgLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("lead", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get lead %s", id)
	}
	return l, nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, filter LeadFilter) ([]*model.EnrichedLead, error) {
	where, args := pgLeadWhere(filter)
	query := `SELECT id, batch_id, data, created_at, updated_at FROM leads` + where +
		` ORDER BY created_at, id`
	query += fmt.Sprintf(` LIMIT $%d`, len(args)+1)
	args = append(args, limitOrDefault(filter.Limit))
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, len(args)+1)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var out []*model.EnrichedLead
	for rows.Next() {
		l, err := scanPgLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		out = append(out, l)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list leads iterate")
}

func (s *PostgresStore) CountLeads(ctx context.Context, filter LeadFilter) (int, error) {
	where, args := pgLeadWhere(filter)
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM leads`+where, args...).Scan(&n)
	return n, eris.Wrap(err, "postgres: count leads")
}

// PatchLead merges the patch into the stored document: top-level keys with
// ||, and meta keys into the nested meta object.
func (s *PostgresStore) PatchLead(ctx context.Context, id string, patch LeadPatch) error {
	top, meta, err := patch.documents()
	if err != nil {
		return err
	}

	var batchID, execStage *string
	if patch.Meta != nil {
		batchID = patch.Meta.BatchID
		execStage = stringPtr(patch.Meta.ExecutionStage)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET
		   data = jsonb_set(data || $1::jsonb, '{meta}', COALESCE(data->'meta', '{}'::jsonb) || $2::jsonb),
		   batch_id = COALESCE($3, batch_id),
		   lead_stage = COALESCE($4, lead_stage),
		   execution_stage = COALESCE($5, execution_stage),
		   updated_at = $6
		 WHERE id = $7`,
		top, meta, batchID, stringPtr(patch.LeadStage), execStage, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: patch lead %s", id)
	}
	if tag.RowsAffected() == 0 {
		return notFound("lead", id)
	}
	return nil
}

func pgLeadWhere(f LeadFilter) (string, []any) {
	where := ` WHERE true`
	var args []any
	if f.BatchID != "" {
		args = append(args, f.BatchID)
		where += fmt.Sprintf(` AND batch_id = $%d`, len(args))
	}
	if f.LeadStage != "" {
		args = append(args, string(f.LeadStage))
		where += fmt.Sprintf(` AND lead_stage = $%d`, len(args))
	}
	if f.ExecutionStage != "" {
		args = append(args, string(f.ExecutionStage))
		where += fmt.Sprintf(` AND execution_stage = $%d`, len(args))
	}
	return where, args
}

func scanPgLead(row pgx.Row) (*model.EnrichedLead, error) {
	var id string
	var batchID *string
	var data []byte
	var createdAt, updatedAt time.Time
	if err := row.Scan(&id, &batchID, &data, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	var l model.EnrichedLead
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal lead")
	}
	l.ID = id
	if batchID != nil {
		l.BatchID = *batchID
	}
	l.CreatedAt = createdAt
	l.UpdatedAt = updatedAt
	return &l, nil
}

// Dead letter queue

func (s *PostgresStore) EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO dead_letter_queue
		 (id, lead_id, batch_id, error, error_type, failed_step, retry_count, max_retries, next_retry_at, created_at, last_failed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (id) DO UPDATE SET
		   error = $4, error_type = $5, failed_step = $6, retry_count = $7,
		   next_retry_at = $9, last_failed_at = $11`,
		entry.ID, entry.LeadID, nullString(entry.BatchID), entry.Error, entry.ErrorType,
		entry.FailedStep, entry.RetryCount, entry.MaxRetries,
		entry.NextRetryAt, entry.CreatedAt, entry.LastFailedAt,
	)
	return eris.Wrap(err, "postgres: enqueue dlq")
}

func (s *PostgresStore) ListDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	query := `SELECT id, lead_id, batch_id, error, error_type, failed_step, retry_count, max_retries, next_retry_at, created_at, last_failed_at
	          FROM dead_letter_queue WHERE true`
	args := []any{}
	argIdx := 1

	if filter.ErrorType != "" {
		query += fmt.Sprintf(` AND error_type = $%d`, argIdx)
		args = append(args, filter.ErrorType)
		argIdx++
	}
	if filter.BatchID != "" {
		query += fmt.Sprintf(` AND batch_id = $%d`, argIdx)
		args = append(args, filter.BatchID)
		argIdx++
	}

	query += ` ORDER BY created_at ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list dlq")
	}
	defer rows.Close()

	var entries []resilience.DLQEntry
	for rows.Next() {
		var e resilience.DLQEntry
		var batchID, failedStep *string
		if err := rows.Scan(&e.ID, &e.LeadID, &batchID, &e.Error, &e.ErrorType,
			&failedStep, &e.RetryCount, &e.MaxRetries,
			&e.NextRetryAt, &e.CreatedAt, &e.LastFailedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan dlq entry")
		}
		if batchID != nil {
			e.BatchID = *batchID
		}
		if failedStep != nil {
			e.FailedStep = *failedStep
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: list dlq iterate")
}

func (s *PostgresStore) RemoveDLQ(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM dead_letter_queue WHERE id = $1`, id)
	return eris.Wrap(err, "postgres: remove dlq")
}

func (s *PostgresStore) CountDLQ(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM dead_letter_queue`).Scan(&count)
	return count, eris.Wrap(err, "postgres: count dlq")
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func stringPtr[T ~string](p *T) *string {
	if p == nil {
		return nil
	}
	s := string(*p)
	return &s
}
