// Package postgres provides a Postgres-backed record sink.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storecrawl/storecrawl/internal/crawler"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for product rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Sink inserts product records into Postgres.
type Sink struct {
	pool  execCloser
	table string
}

var _ crawler.RecordSink = (*Sink)(nil)

// New creates a Postgres-backed Sink using the provided config.
func New(ctx context.Context, cfg Config) (*Sink, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "products"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
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
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Sink{pool: pool, table: table}, nil
}

// NewWithPool constructs a Sink from an existing pool (primarily for
// testing).
func NewWithPool(pool execCloser, table string) (*Sink, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "products"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Sink{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *Sink) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// AppendRecords inserts each record under the batch label.
func (s *Sink) AppendRecords(ctx context.Context, records []crawler.ProductRecord, label string) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("postgres sink is not configured")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	batch_label,
	title,
	price,
	rating,
	reviews_count,
	features,
	details,
	url,
	fetched_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`, s.table)

	for _, rec := range records {
		featuresJSON, err := json.Marshal(rec.Features)
		if err != nil {
			return fmt.Errorf("marshal features for %s: %w", rec.URL, err)
		}
		detailsJSON, err := json.Marshal(rec.Details)
		if err != nil {
			return fmt.Errorf("marshal details for %s: %w", rec.URL, err)
		}
		if _, err := s.pool.Exec(ctx, query,
			label,
			rec.Title,
			rec.Price,
			rec.Rating,
			rec.ReviewsCount,
			featuresJSON,
			detailsJSON,
			rec.URL,
			rec.FetchedAt,
		); err != nil {
			return fmt.Errorf("insert product row: %w", err)
		}
	}
	return nil
}
