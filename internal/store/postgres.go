package store

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/JonMunkholm/sdtm/internal/core"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Postgres stores each run as one JSONB document in compliance_runs.
// Scalar columns duplicate the fields used for listing.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres creates a pool, verifies it and migrates the schema.
func OpenPostgres(ctx context.Context, opts Options) (*Postgres, error) {
	if opts.DatabaseURL == "" {
		return nil, fmt.Errorf("postgres store requires a database url")
	}

	cfg, err := pgxpool.ParseConfig(opts.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		cfg.MinConns = opts.MinConns
	}
	if opts.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = opts.MaxConnLifetime
	}
	if opts.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = opts.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Postgres{pool: pool}, nil
}

// NewPostgres wraps an existing, already migrated pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Migrate applies the embedded goose migrations.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

const upsertRun = `
	INSERT INTO compliance_runs (id, standard_id, started_at, completed_at, total, errors, warnings, summary)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (id) DO UPDATE SET
		standard_id = EXCLUDED.standard_id,
		started_at = EXCLUDED.started_at,
		completed_at = EXCLUDED.completed_at,
		total = EXCLUDED.total,
		errors = EXCLUDED.errors,
		warnings = EXCLUDED.warnings,
		summary = EXCLUDED.summary
`

func (p *Postgres) Save(ctx context.Context, summary *core.RunSummary) error {
	data, err := encode(summary)
	if err != nil {
		return err
	}
	c := summary.Summary
	_, err = p.pool.Exec(ctx, upsertRun,
		summary.ID, summary.StandardID, summary.StartedAt, summary.CompletedAt,
		c.Total, c.Errors, c.Warnings, data)
	if err != nil {
		return fmt.Errorf("save run %s: %w", summary.ID, err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, id string) (*core.RunSummary, error) {
	var data []byte
	err := p.pool.QueryRow(ctx, `SELECT summary FROM compliance_runs WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return decode(data)
}

func (p *Postgres) List(ctx context.Context, limit int) ([]*core.RunSummary, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT summary FROM compliance_runs ORDER BY completed_at DESC, id LIMIT $1`,
		normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	docs, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	out := make([]*core.RunSummary, 0, len(docs))
	for _, data := range docs {
		s, err := decode(data)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Ping checks connectivity; /healthz reports it via store.Ping.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
