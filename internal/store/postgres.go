package store

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/rbright/rehearse/internal/interview"
	"github.com/sethvargo/go-retry"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Postgres stores records as JSONB rows.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// OpenPostgres connects to dsn, retrying transient failures, and applies
// pending migrations.
func OpenPostgres(ctx context.Context, dsn string, logger *slog.Logger) (*Postgres, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is empty; set store.dsn or REHEARSE_DATABASE_URL")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	backoff := retry.WithMaxRetries(4, retry.NewExponential(200*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			logger.Warn("postgres not ready", "error", err.Error())
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := migrate(ctx, pool, logger); err != nil {
		pool.Close()
		return nil, err
	}
	return &Postgres{pool: pool, logger: logger}, nil
}

func migrate(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	migrations, err := fs.Sub(embeddedMigrations, "migrations")
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations)
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	for _, r := range results {
		logger.Info("applied migration", "version", r.Source.Version, "duration_ms", r.Duration.Milliseconds())
	}
	return nil
}

const upsertRecord = `
INSERT INTO interview_records (id, body, started_at, completed_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE
SET body = EXCLUDED.body, started_at = EXCLUDED.started_at, completed_at = EXCLUDED.completed_at`

func (p *Postgres) Save(ctx context.Context, record interview.Record) error {
	if err := ValidateID(record.ID); err != nil {
		return err
	}
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", record.ID, err)
	}
	if _, err := p.pool.Exec(ctx, upsertRecord, record.ID, body, record.StartTime, record.CompletedAt); err != nil {
		return fmt.Errorf("save record %s: %w", record.ID, err)
	}
	return nil
}

func (p *Postgres) Load(ctx context.Context, id string) (interview.Record, error) {
	if err := ValidateID(id); err != nil {
		return interview.Record{}, err
	}
	var body []byte
	err := p.pool.QueryRow(ctx, `SELECT body FROM interview_records WHERE id = $1`, id).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return interview.Record{}, ErrNotFound
	}
	if err != nil {
		return interview.Record{}, fmt.Errorf("load record %s: %w", id, err)
	}
	var record interview.Record
	if err := json.Unmarshal(body, &record); err != nil {
		return interview.Record{}, fmt.Errorf("decode record %s: %w", id, err)
	}
	return record, nil
}

const listRecords = `
SELECT r.id, r.started_at, r.completed_at,
       jsonb_array_length(COALESCE(NULLIF(r.body->'questions', 'null'::jsonb), '[]'::jsonb)),
       jsonb_array_length(COALESCE(NULLIF(r.body->'responses', 'null'::jsonb), '[]'::jsonb)),
       f.id IS NOT NULL
FROM interview_records r
LEFT JOIN interview_feedback f ON f.id = r.id
ORDER BY r.started_at DESC, r.id DESC`

func (p *Postgres) List(ctx context.Context) ([]Summary, error) {
	rows, err := p.pool.Query(ctx, listRecords)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	summaries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Summary, error) {
		var s Summary
		err := row.Scan(&s.ID, &s.StartTime, &s.CompletedAt, &s.Questions, &s.Responses, &s.HasFeedback)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan records: %w", err)
	}
	return summaries, nil
}

const upsertFeedback = `
INSERT INTO interview_feedback (id, body)
VALUES ($1, $2)
ON CONFLICT (id) DO UPDATE SET body = EXCLUDED.body, created_at = now()`

func (p *Postgres) SaveFeedback(ctx context.Context, id string, report json.RawMessage) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	var exists bool
	if err := p.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM interview_records WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check record %s: %w", id, err)
	}
	if !exists {
		return ErrNotFound
	}
	if _, err := p.pool.Exec(ctx, upsertFeedback, id, []byte(report)); err != nil {
		return fmt.Errorf("save feedback %s: %w", id, err)
	}
	return nil
}

func (p *Postgres) LoadFeedback(ctx context.Context, id string) (json.RawMessage, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	var body []byte
	err := p.pool.QueryRow(ctx, `SELECT body FROM interview_feedback WHERE id = $1`, id).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load feedback %s: %w", id, err)
	}
	return json.RawMessage(body), nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
