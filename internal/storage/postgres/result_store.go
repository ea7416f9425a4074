// Package postgres records screenshot batch results in Postgres.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/webshot/internal/capture"
)

const defaultTable = "screenshot_results"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ResultStoreConfig controls the Postgres connection pool used for result rows.
type ResultStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Begin(context.Context) (pgx.Tx, error)
	Ping(context.Context) error
	Close()
}

// ResultStore appends one row per screenshot result.
//
//	CREATE TABLE screenshot_results (
//	    batch_id    uuid        NOT NULL,
//	    position    integer     NOT NULL,
//	    url         text        NOT NULL,
//	    status      text        NOT NULL,
//	    image_path  text,
//	    message     text,
//	    started_at  timestamptz NOT NULL,
//	    finished_at timestamptz NOT NULL,
//	    PRIMARY KEY (batch_id, position)
//	);
type ResultStore struct {
	pool  pool
	table string
}

// NewResultStore connects to Postgres using cfg.
func NewResultStore(ctx context.Context, cfg ResultStoreConfig) (*ResultStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &ResultStore{pool: p, table: table}, nil
}

// NewResultStoreWithPool constructs a store from an existing pool, mostly for tests.
func NewResultStoreWithPool(p pool, table string) (*ResultStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &ResultStore{pool: p, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// EnsureSchema creates the results table when it does not exist yet.
func (s *ResultStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	batch_id    uuid        NOT NULL,
	position    integer     NOT NULL,
	url         text        NOT NULL,
	status      text        NOT NULL,
	image_path  text,
	message     text,
	started_at  timestamptz NOT NULL,
	finished_at timestamptz NOT NULL,
	PRIMARY KEY (batch_id, position)
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// Ping checks that the database is reachable.
func (s *ResultStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *ResultStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// RecordBatch inserts every result of batch in a single transaction.
func (s *ResultStore) RecordBatch(ctx context.Context, batch capture.Batch) (err error) {
	if batch.ID == "" {
		return fmt.Errorf("batch id is required")
	}
	if len(batch.Results) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	query := fmt.Sprintf(`
INSERT INTO %s (
	batch_id,
	position,
	url,
	status,
	image_path,
	message,
	started_at,
	finished_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8
)`, s.table)

	for i, res := range batch.Results {
		if _, err = tx.Exec(ctx, query,
			batch.ID,
			i,
			res.URL,
			string(res.Status),
			nullable(res.ImagePath),
			nullable(res.Message),
			batch.StartedAt,
			batch.FinishedAt,
		); err != nil {
			return fmt.Errorf("insert result %d: %w", i, err)
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit results: %w", err)
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
