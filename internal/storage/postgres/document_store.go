// Package postgres provides a Postgres-backed corpus store.
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

	"github.com/JakeFAU/topic-corpus/internal/corpus"
	"github.com/JakeFAU/topic-corpus/internal/crawler"
)

const defaultTable = "documents"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

var documentColumns = []string{"title", "revision_id", "summary", "url", "topic"}

// Config controls the Postgres connection pool used for corpus rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// pool is the subset of *pgxpool.Pool the store needs.
type pool interface {
	Begin(context.Context) (pgx.Tx, error)
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Close()
}

// DocumentStore keeps the corpus as rows of a single table. Save replaces the
// table contents in one transaction; Load returns rows in insertion order.
type DocumentStore struct {
	pool  pool
	table string
}

var _ corpus.Store = (*DocumentStore)(nil)

// NewDocumentStore connects to Postgres using the provided config.
func NewDocumentStore(ctx context.Context, cfg Config) (*DocumentStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage.dsn is required")
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
	return &DocumentStore{pool: p, table: table}, nil
}

// NewDocumentStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewDocumentStoreWithPool(p pool, table string) (*DocumentStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &DocumentStore{pool: p, table: name}, nil
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
func (s *DocumentStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the corpus table if it does not exist.
func (s *DocumentStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id          BIGSERIAL PRIMARY KEY,
	title       TEXT NOT NULL,
	revision_id TEXT NOT NULL,
	summary     TEXT NOT NULL,
	url         TEXT NOT NULL,
	topic       TEXT NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

// Save replaces the stored corpus with docs.
func (s *DocumentStore) Save(ctx context.Context, docs []crawler.Document) (_ corpus.Artifact, err error) {
	digest, err := corpus.Checksum(docs)
	if err != nil {
		return corpus.Artifact{}, err
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return corpus.Artifact{}, fmt.Errorf("begin: %w", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
	}()

	if _, err = tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s", s.table)); err != nil {
		return corpus.Artifact{}, fmt.Errorf("clear %s: %w", s.table, err)
	}
	rows := make([][]any, 0, len(docs))
	for _, d := range docs {
		rows = append(rows, []any{d.Title, d.RevisionID, d.Summary, d.URL, d.Topic})
	}
	n, err := tx.CopyFrom(ctx, pgx.Identifier{s.table}, documentColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return corpus.Artifact{}, fmt.Errorf("copy documents: %w", err)
	}
	if err = tx.Commit(ctx); err != nil {
		return corpus.Artifact{}, fmt.Errorf("commit: %w", err)
	}
	committed = true
	return corpus.Artifact{
		URI:       "postgres:///" + s.table,
		SHA256:    digest,
		Documents: int(n),
	}, nil
}

// Load returns every stored document in insertion order.
func (s *DocumentStore) Load(ctx context.Context) ([]crawler.Document, error) {
	query := fmt.Sprintf("SELECT title, revision_id, summary, url, topic FROM %s ORDER BY id", s.table)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []crawler.Document
	for rows.Next() {
		var d crawler.Document
		if err := rows.Scan(&d.Title, &d.RevisionID, &d.Summary, &d.URL, &d.Topic); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}
