// Package postgres persists search history in Postgres.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/product-search-crawler/internal/store"
)

// Schema creates the history tables when missing.
const Schema = `
CREATE TABLE IF NOT EXISTS search_runs (
	id            UUID PRIMARY KEY,
	keyword       TEXT NOT NULL,
	status        TEXT NOT NULL,
	started_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ,
	sites         BIGINT NOT NULL DEFAULT 0,
	products      BIGINT NOT NULL DEFAULT 0,
	error_message TEXT
);
CREATE TABLE IF NOT EXISTS search_sites (
	id           BIGSERIAL PRIMARY KEY,
	search_id    UUID NOT NULL REFERENCES search_runs (id) ON DELETE CASCADE,
	site         TEXT NOT NULL,
	url          TEXT NOT NULL,
	outcome      TEXT NOT NULL,
	status_class TEXT NOT NULL,
	rendered     BOOLEAN NOT NULL DEFAULT FALSE,
	products     BIGINT NOT NULL DEFAULT 0,
	duration_ms  BIGINT NOT NULL DEFAULT 0,
	note         TEXT NOT NULL DEFAULT '',
	recorded_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS search_runs_started_at_idx ON search_runs (started_at DESC);
CREATE INDEX IF NOT EXISTS search_sites_search_id_idx ON search_sites (search_id, id);
`

// Config controls the connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// HistoryStore implements store.HistoryRepository using Postgres.
type HistoryStore struct {
	pool pool
}

// NewHistoryStore connects to Postgres using cfg.
func NewHistoryStore(ctx context.Context, cfg Config) (*HistoryStore, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database.dsn is required")
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
	return &HistoryStore{pool: p}, nil
}

// NewHistoryStoreWithPool constructs a store from an existing pool.
func NewHistoryStoreWithPool(p pool) (*HistoryStore, error) {
	if p == nil {
		return nil, errors.New("pool is required")
	}
	return &HistoryStore{pool: p}, nil
}

// Migrate applies Schema.
func (s *HistoryStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply history schema: %w", err)
	}
	return nil
}

// Ping checks connectivity for readiness probes.
func (s *HistoryStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *HistoryStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// StartSearch inserts a running search or refreshes its site count.
func (s *HistoryStore) StartSearch(ctx context.Context, id uuid.UUID, keyword string, sites int64, startedAt time.Time) error {
	const query = `
		INSERT INTO search_runs (id, keyword, status, started_at, sites)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET sites = EXCLUDED.sites;`
	if _, err := s.pool.Exec(ctx, query, id, keyword, string(store.StatusRunning), startedAt.UTC(), sites); err != nil {
		return fmt.Errorf("insert search run: %w", err)
	}
	return nil
}

// RecordSite appends a site result row.
func (s *HistoryStore) RecordSite(ctx context.Context, r store.SiteResult) error {
	const query = `
		INSERT INTO search_sites
			(search_id, site, url, outcome, status_class, rendered, products, duration_ms, note, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);`
	_, err := s.pool.Exec(ctx, query,
		r.SearchID,
		r.Site,
		r.URL,
		r.Outcome,
		r.StatusClass,
		r.Rendered,
		r.Products,
		r.Duration.Milliseconds(),
		r.Note,
		r.RecordedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert search site: %w", err)
	}
	return nil
}

// CompleteSearch marks a search finished.
func (s *HistoryStore) CompleteSearch(ctx context.Context, id uuid.UUID, done store.SearchCompletion) error {
	const query = `
		UPDATE search_runs
		SET status = $1, finished_at = $2, sites = GREATEST(sites, $3), products = $4, error_message = $5
		WHERE id = $6;`
	tag, err := s.pool.Exec(ctx, query,
		string(done.Status),
		done.FinishedAt.UTC(),
		done.Sites,
		done.Products,
		done.Error,
		id,
	)
	if err != nil {
		return fmt.Errorf("complete search: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

const searchColumns = `id, keyword, status, started_at, finished_at, sites, products, error_message`

// GetSearch loads one search.
func (s *HistoryStore) GetSearch(ctx context.Context, id uuid.UUID) (store.SearchRun, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+searchColumns+` FROM search_runs WHERE id = $1;`, id)
	run, err := scanSearch(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.SearchRun{}, store.ErrNotFound
		}
		return store.SearchRun{}, fmt.Errorf("get search: %w", err)
	}
	return run, nil
}

// ListSearches returns searches newest first.
func (s *HistoryStore) ListSearches(
	ctx context.Context,
	status *store.SearchStatus,
	limit, offset int,
) ([]store.SearchRun, error) {
	var statusArg any
	if status != nil {
		statusArg = string(*status)
	}
	query := `SELECT ` + searchColumns + `
		FROM search_runs
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3;`
	rows, err := s.pool.Query(ctx, query, statusArg, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list searches: %w", err)
	}
	defer rows.Close()

	runs := []store.SearchRun{}
	for rows.Next() {
		run, err := scanSearch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate searches: %w", err)
	}
	return runs, nil
}

// ListSearchSites returns the site rows of a search in recording order.
func (s *HistoryStore) ListSearchSites(
	ctx context.Context,
	id uuid.UUID,
	limit, offset int,
) ([]store.SiteResult, error) {
	const query = `
		SELECT search_id, site, url, outcome, status_class, rendered, products, duration_ms, note, recorded_at
		FROM search_sites
		WHERE search_id = $1
		ORDER BY id
		LIMIT $2 OFFSET $3;`
	rows, err := s.pool.Query(ctx, query, id, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list search sites: %w", err)
	}
	defer rows.Close()

	sites := []store.SiteResult{}
	for rows.Next() {
		var (
			r  store.SiteResult
			ms int64
		)
		if err := rows.Scan(
			&r.SearchID,
			&r.Site,
			&r.URL,
			&r.Outcome,
			&r.StatusClass,
			&r.Rendered,
			&r.Products,
			&ms,
			&r.Note,
			&r.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("scan site row: %w", err)
		}
		r.Duration = time.Duration(ms) * time.Millisecond
		sites = append(sites, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search sites: %w", err)
	}
	return sites, nil
}

func scanSearch(row pgx.Row) (store.SearchRun, error) {
	var (
		run    store.SearchRun
		status string
	)
	err := row.Scan(
		&run.ID,
		&run.Keyword,
		&status,
		&run.StartedAt,
		&run.FinishedAt,
		&run.Sites,
		&run.Products,
		&run.Error,
	)
	if err != nil {
		return store.SearchRun{}, err //nolint:wrapcheck
	}
	run.Status = store.SearchStatus(status)
	return run, nil
}
