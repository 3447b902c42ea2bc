// Package postgres mirrors crawl datasets into Postgres.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/bank-content-crawler/internal/crawler"
	"github.com/JakeFAU/bank-content-crawler/internal/hash/sha256"
)

const defaultTable = "content_records"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// RecordStoreConfig controls the Postgres connection pool used for records.
type RecordStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Begin(context.Context) (pgx.Tx, error)
	Close()
}

// RecordStore writes dataset records into Postgres, one row per chunk.
type RecordStore struct {
	pool   pool
	table  string
	hasher *sha256.Hasher
}

// NewRecordStore creates a Postgres-backed RecordStore using the provided config.
func NewRecordStore(ctx context.Context, cfg RecordStoreConfig) (*RecordStore, error) {
	if cfg.DSN == "" {
		return nil, errors.New("db.dsn is required")
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
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &RecordStore{pool: p, table: table, hasher: sha256.New()}, nil
}

// NewRecordStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewRecordStoreWithPool(p pool, table string) (*RecordStore, error) {
	if p == nil {
		return nil, errors.New("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &RecordStore{pool: p, table: name, hasher: sha256.New()}, nil
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

// Close releases the underlying pool resources.
func (s *RecordStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Name identifies the sink in logs.
func (s *RecordStore) Name() string {
	return "postgres"
}

// EnsureSchema creates the records table when it does not exist.
func (s *RecordStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	run_id TEXT NOT NULL,
	domain TEXT NOT NULL,
	source_url TEXT NOT NULL,
	content_type TEXT NOT NULL,
	language TEXT NOT NULL,
	content TEXT NOT NULL,
	chunk_index INTEGER,
	total_chunks INTEGER,
	pdf_pages INTEGER,
	filename TEXT,
	content_hash TEXT NOT NULL,
	scraped_at TIMESTAMPTZ NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// Save inserts every record of the dataset in one transaction.
func (s *RecordStore) Save(ctx context.Context, dataset crawler.Dataset) (err error) {
	if s == nil || s.pool == nil {
		return errors.New("record store is not configured")
	}
	if len(dataset.Data) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
		}
	}()

	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	domain,
	source_url,
	content_type,
	language,
	content,
	chunk_index,
	total_chunks,
	pdf_pages,
	filename,
	content_hash,
	scraped_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
)`, s.table)

	for i, rec := range dataset.Data {
		args := []any{
			dataset.Summary.RunID,
			dataset.Summary.Domain,
			rec.SourceURL,
			string(rec.Type),
			string(rec.Language),
			rec.Content,
			rec.ChunkIndex,
			rec.TotalChunks,
			rec.PDFPages,
			rec.Filename,
			s.hasher.HashString(rec.Content),
			rec.ScrapedAt,
		}
		if _, err = tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("insert record %d: %w", i, err)
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit records: %w", err)
	}
	return nil
}
