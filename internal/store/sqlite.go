package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/lead-qualify/internal/model"
	"github.com/sells-group/lead-qualify/internal/resilience"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
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
	metadata        TEXT NOT NULL DEFAULT '{}',
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS leads (
	id              TEXT PRIMARY KEY,
	batch_id        TEXT,
	lead_stage      TEXT NOT NULL DEFAULT 'new',
	execution_stage TEXT,
	data            TEXT NOT NULL,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
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
	next_retry_at  DATETIME NOT NULL,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	last_failed_at DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Batches

func (s *SQLiteStore) CreateBatch(ctx context.Context, b *model.ExecutionBatch) error {
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
		return eris.Wrap(err, "sqlite: marshal batch metadata")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO execution_batches
		 (id, name, stage, blueprint, status, total_leads, processed_leads, success_count, fail_count, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Name, string(b.Stage), string(b.Blueprint), string(b.Status),
		b.TotalLeads, b.ProcessedLeads, b.SuccessCount, b.FailCount, string(metaJSON), b.CreatedAt, b.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert batch %s", b.ID)
}

func (s *SQLiteStore) GetBatch(ctx context.Context, id string) (*model.ExecutionBatch, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, stage, blueprint, status, total_leads, processed_leads, success_count, fail_count, metadata, created_at, updated_at
		 FROM execution_batches WHERE id = ?`,
		id,
	)
	b, err := scanBatch(row)
	if err == sql.ErrNoRows {
		return nil, notFound("batch", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get batch %s", id)
	}
	return b, nil
}

func (s *SQLiteStore) UpdateBatch(ctx context.Context, b *model.ExecutionBatch) error {
	b.UpdatedAt = time.Now().UTC()
	metaJSON, err := json.Marshal(b.Metadata)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal batch metadata")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE execution_batches SET
		   name = ?, stage = ?, blueprint = ?, status = ?, total_leads = ?,
		   processed_leads = ?, success_count = ?, fail_count = ?, metadata = ?, updated_at = ?
		 WHERE id = ?`,
		b.Name, string(b.Stage), string(b.Blueprint), string(b.Status), b.TotalLeads,
		b.ProcessedLeads, b.SuccessCount, b.FailCount, string(metaJSON), b.UpdatedAt, b.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update batch %s", b.ID)
	}
	return checkRowsAffected(res, "batch", b.ID)
}

func (s *SQLiteStore) ListBatches(ctx context.Context, limit int) ([]model.ExecutionBatch, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, stage, blueprint, status, total_leads, processed_leads, success_count, fail_count, metadata, created_at, updated_at
		 FROM execution_batches ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list batches")
	}
	defer rows.Close()

	var out []model.ExecutionBatch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan batch")
		}
		out = append(out, *b)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list batches iterate")
}

// Leads

func (s *SQLiteStore) InsertLeads(ctx context.Context, leads []*model.EnrichedLead) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin insert leads")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO leads (id, batch_id, lead_stage, execution_stage, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert leads")
	}
	defer stmt.Close()

	for _, l := range leads {
		data, err := json.Marshal(l)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal lead %s", l.ID)
		}
		if _, err := stmt.ExecContext(ctx,
			l.ID, nullString(l.BatchID), string(l.LeadStage), nullString(string(l.Meta.ExecutionStage)),
			string(data), l.CreatedAt, l.UpdatedAt,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert lead %s", l.ID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit insert leads")
}

func (s *SQLiteStore) GetLead(ctx context.Context, id string) (*model.EnrichedLead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, batch_id, data, created_at, updated_at FROM leads WHERE id = ?`,
		id,
	)
	l, err := scanLead(row)
	if err == sql.ErrNoRows {
		return nil, notFound("lead", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get lead %s", id)
	}
	return l, nil
}

func (s *SQLiteStore) ListLeads(ctx context.Context, filter LeadFilter) ([]*model.EnrichedLead, error) {
	where, args := sqliteLeadWhere(filter)
	query := `SELECT id, batch_id, data, created_at, updated_at FROM leads` + where +
		` ORDER BY created_at, rowid LIMIT ?`
	args = append(args, limitOrDefault(filter.Limit))
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close()

	var out []*model.EnrichedLead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		out = append(out, l)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list leads iterate")
}

func (s *SQLiteStore) CountLeads(ctx context.Context, filter LeadFilter) (int, error) {
	where, args := sqliteLeadWhere(filter)
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leads`+where, args...).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count leads")
}

// PatchLead merges the patch into the stored document with json_patch.
// Whole-value objects such as the validation are removed first so the new
// value replaces the old one instead of merging into it.
func (s *SQLiteStore) PatchLead(ctx context.Context, id string, patch LeadPatch) error {
	doc, err := patch.mergeDocument()
	if err != nil {
		return err
	}

	var batchID, execStage *string
	if patch.Meta != nil {
		batchID = patch.Meta.BatchID
		execStage = stringPtr(patch.Meta.ExecutionStage)
	}

	target := "data"
	var args []any
	if keys := patch.replacedKeys(); len(keys) > 0 {
		target = "json_remove(data" + strings.Repeat(", ?", len(keys)) + ")"
		for _, k := range keys {
			args = append(args, "$."+k)
		}
	}
	args = append(args, string(doc), batchID, stringPtr(patch.LeadStage), execStage, time.Now().UTC(), id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET
		   data = json_patch(`+target+`, ?),
		   batch_id = COALESCE(?, batch_id),
		   lead_stage = COALESCE(?, lead_stage),
		   execution_stage = COALESCE(?, execution_stage),
		   updated_at = ?
		 WHERE id = ?`,
		args...,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: patch lead %s", id)
	}
	return checkRowsAffected(res, "lead", id)
}

func sqliteLeadWhere(f LeadFilter) (string, []any) {
	where := ` WHERE 1=1`
	var args []any
	if f.BatchID != "" {
		where += ` AND batch_id = ?`
		args = append(args, f.BatchID)
	}
	if f.LeadStage != "" {
		where += ` AND lead_stage = ?`
		args = append(args, string(f.LeadStage))
	}
	if f.ExecutionStage != "" {
		where += ` AND execution_stage = ?`
		args = append(args, string(f.ExecutionStage))
	}
	return where, args
}

// Dead letter queue

func (s *SQLiteStore) EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dead_letter_queue
		 (id, lead_id, batch_id, error, error_type, failed_step, retry_count, max_retries, next_retry_at, created_at, last_failed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   error = excluded.error, error_type = excluded.error_type, failed_step = excluded.failed_step,
		   retry_count = excluded.retry_count, next_retry_at = excluded.next_retry_at,
		   last_failed_at = excluded.last_failed_at`,
		entry.ID, entry.LeadID, nullString(entry.BatchID), entry.Error, entry.ErrorType,
		entry.FailedStep, entry.RetryCount, entry.MaxRetries,
		entry.NextRetryAt, entry.CreatedAt, entry.LastFailedAt,
	)
	return eris.Wrap(err, "sqlite: enqueue dlq")
}

func (s *SQLiteStore) ListDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	query := `SELECT id, lead_id, batch_id, error, error_type, failed_step, retry_count, max_retries, next_retry_at, created_at, last_failed_at
	          FROM dead_letter_queue WHERE 1=1`
	var args []any
	if filter.ErrorType != "" {
		query += ` AND error_type = ?`
		args = append(args, filter.ErrorType)
	}
	if filter.BatchID != "" {
		query += ` AND batch_id = ?`
		args = append(args, filter.BatchID)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` ORDER BY created_at ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list dlq")
	}
	defer rows.Close()

	var entries []resilience.DLQEntry
	for rows.Next() {
		var e resilience.DLQEntry
		var batchID, failedStep sql.NullString
		if err := rows.Scan(&e.ID, &e.LeadID, &batchID, &e.Error, &e.ErrorType,
			&failedStep, &e.RetryCount, &e.MaxRetries,
			&e.NextRetryAt, &e.CreatedAt, &e.LastFailedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan dlq entry")
		}
		e.BatchID = batchID.String
		e.FailedStep = failedStep.String
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: list dlq iterate")
}

func (s *SQLiteStore) RemoveDLQ(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM dead_letter_queue WHERE id = ?`, id)
	return eris.Wrap(err, "sqlite: remove dlq")
}

func (s *SQLiteStore) CountDLQ(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dead_letter_queue`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count dlq")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return notFound(entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanBatch(row scannable) (*model.ExecutionBatch, error) {
	var b model.ExecutionBatch
	var stage, blueprint, status, metaJSON string
	if err := row.Scan(&b.ID, &b.Name, &stage, &blueprint, &status,
		&b.TotalLeads, &b.ProcessedLeads, &b.SuccessCount, &b.FailCount,
		&metaJSON, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.Stage = model.ExecutionStage(stage)
	b.Blueprint = model.Blueprint(blueprint)
	b.Status = model.BatchStatus(status)
	if err := json.Unmarshal([]byte(metaJSON), &b.Metadata); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal batch metadata")
	}
	return &b, nil
}

func scanLead(row scannable) (*model.EnrichedLead, error) {
	var id, data string
	var batchID sql.NullString
	var createdAt, updatedAt time.Time
	if err := row.Scan(&id, &batchID, &data, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	var l model.EnrichedLead
	if err := json.Unmarshal([]byte(data), &l); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal lead")
	}
	l.ID = id
	l.BatchID = batchID.String
	l.CreatedAt = createdAt
	l.UpdatedAt = updatedAt
	return &l, nil
}
