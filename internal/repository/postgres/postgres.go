// Package postgres implements the durable Repository on top of PostgreSQL
// via the pgx/v5 stdlib driver.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"webharvest/internal/domain/entity"
	"webharvest/internal/repository"
	"webharvest/internal/resilience/circuitbreaker"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Schema is the DDL for the scraped_data table. Callers are expected to run
// it once at startup (or via an external migration tool); Repo itself never
// creates or alters schema.
const Schema = `
CREATE TABLE IF NOT EXISTS scraped_data (
	id         TEXT PRIMARY KEY,
	source     TEXT NOT NULL,
	url        TEXT NOT NULL,
	title      TEXT NOT NULL,
	content    TEXT NOT NULL DEFAULT '',
	price      DECIMAL(10,2),
	image_url  TEXT NOT NULL DEFAULT '',
	author     TEXT NOT NULL DEFAULT '',
	category   TEXT NOT NULL DEFAULT '',
	timestamp  TIMESTAMPTZ NOT NULL,
	metadata   JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_scraped_data_source ON scraped_data (source);
CREATE INDEX IF NOT EXISTS idx_scraped_data_timestamp ON scraped_data (timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_scraped_data_metadata ON scraped_data USING GIN (metadata);
CREATE INDEX IF NOT EXISTS idx_scraped_data_fulltext ON scraped_data USING GIN (to_tsvector('english', title || ' ' || content));
`

// Repo is the pgx-backed Repository implementation. All calls go through a
// circuit breaker so a struggling database degrades the harvest run instead
// of piling up blocked connections.
type Repo struct {
	db *sql.DB
	cb *circuitbreaker.DBCircuitBreaker
}

// New wraps an already-opened *sql.DB (see internal/infra/db.Open) as a
// Repository, guarding every call with a breaker sized for the durable-store
// write/read pattern rather than the package's generic DBConfig default.
func New(db *sql.DB) repository.Repository {
	return &Repo{db: db, cb: circuitbreaker.NewDBCircuitBreakerWithConfig(db, circuitbreaker.RepositoryConfig())}
}

// Save upserts batch by id. The whole batch runs inside one transaction,
// itself guarded by the circuit breaker: a database already failing open
// rejects the attempt immediately rather than hanging on BeginTx.
func (r *Repo) Save(ctx context.Context, batch []*entity.Record) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	const query = `
INSERT INTO scraped_data (id, source, url, title, content, price, image_url, author, category, timestamp, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (id) DO UPDATE SET
	source    = EXCLUDED.source,
	url       = EXCLUDED.url,
	title     = EXCLUDED.title,
	content   = EXCLUDED.content,
	price     = EXCLUDED.price,
	image_url = EXCLUDED.image_url,
	author    = EXCLUDED.author,
	category  = EXCLUDED.category,
	timestamp = EXCLUDED.timestamp,
	metadata  = EXCLUDED.metadata`

	result, err := r.cb.Execute(func() (interface{}, error) {
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("Save: begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		for _, rec := range batch {
			metadata, err := json.Marshal(rec.Metadata)
			if err != nil {
				return nil, fmt.Errorf("Save: marshal metadata for %s: %w", rec.ID, err)
			}
			if _, err := tx.ExecContext(ctx, query,
				rec.ID, rec.Source, rec.URL, rec.Title, rec.Content, rec.Price,
				rec.ImageURL, rec.Author, rec.Category, rec.Timestamp, metadata,
			); err != nil {
				return nil, fmt.Errorf("Save: upsert %s: %w", rec.ID, err)
			}
		}

		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("Save: commit: %w", err)
		}
		return len(batch), nil
	})
	if err != nil {
		return 0, err
	}
	return result.(int), nil
}

// List returns records matching filter, most recent first.
func (r *Repo) List(ctx context.Context, filter repository.Filter) ([]*entity.Record, error) {
	query := `
SELECT id, source, url, title, content, price, image_url, author, category, timestamp, metadata
FROM scraped_data`

	var where []string
	var args []interface{}
	idx := 1

	if filter.Source != nil {
		where = append(where, fmt.Sprintf("source = $%d", idx))
		args = append(args, *filter.Source)
		idx++
	}
	if filter.Category != nil {
		where = append(where, fmt.Sprintf("category = $%d", idx))
		args = append(args, *filter.Category)
		idx++
	}
	if filter.Query != nil {
		where = append(where, fmt.Sprintf("(title ILIKE $%d OR content ILIKE $%d)", idx, idx))
		args = append(args, "%"+*filter.Query+"%")
		idx++
	}
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	query += "\nORDER BY timestamp DESC"

	if filter.Limit != nil {
		query += fmt.Sprintf("\nLIMIT $%d", idx)
		args = append(args, *filter.Limit)
		idx++
	}
	if filter.Offset != nil {
		query += fmt.Sprintf("\nOFFSET $%d", idx)
		args = append(args, *filter.Offset)
		idx++
	}

	rows, err := r.cb.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]*entity.Record, 0, 100)
	for rows.Next() {
		rec, metadataRaw, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("List: %w", err)
		}
		if err := json.Unmarshal(metadataRaw, &rec.Metadata); err != nil {
			return nil, fmt.Errorf("List: unmarshal metadata for %s: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Count returns the total number of stored records.
func (r *Repo) Count(ctx context.Context) (uint64, error) {
	const query = `SELECT COUNT(*) FROM scraped_data`
	var count uint64
	if err := r.cb.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("Count: %w", err)
	}
	return count, nil
}

// Sources returns the distinct source names with at least one record.
func (r *Repo) Sources(ctx context.Context) ([]string, error) {
	const query = `SELECT DISTINCT source FROM scraped_data ORDER BY source`
	rows, err := r.cb.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("Sources: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sources []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("Sources: Scan: %w", err)
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

// Clear removes every stored record.
func (r *Repo) Clear(ctx context.Context) error {
	const query = `DELETE FROM scraped_data`
	if _, err := r.cb.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("Clear: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (*entity.Record, []byte, error) {
	rec := &entity.Record{Metadata: make(map[string]entity.MetaValue)}
	var metadataRaw []byte
	err := row.Scan(&rec.ID, &rec.Source, &rec.URL, &rec.Title, &rec.Content,
		&rec.Price, &rec.ImageURL, &rec.Author, &rec.Category, &rec.Timestamp, &metadataRaw)
	if err != nil {
		return nil, nil, fmt.Errorf("scan: %w", err)
	}
	return rec, metadataRaw, nil
}
