// Package postgres implements the memory store driver on PostgreSQL with the
// pgvector extension. Postgres has no native rank-fusion stage, so hybrid
// search runs the lexical and vector queries separately and fuses the ranked
// lists client-side with reciprocal-rank fusion.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Import the PostgreSQL driver.
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/memoraai/memora/internal/profile"
	"github.com/memoraai/memora/store"
)

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}

	db, err := sql.Open("postgres", profile.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database: %s", profile.DSN)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(2 * time.Hour)
	db.SetConnMaxIdleTime(15 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping database")
	}

	return &DB{db: db, profile: profile}, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

// EnsureSchema creates the memory_chunk table and its indexes if missing.
// Every statement is IF NOT EXISTS, so concurrent first writers are safe.
func (d *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS memory_chunk (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			content TEXT NOT NULL,
			tags TEXT[] NOT NULL DEFAULT '{}',
			embedding vector(%d) NOT NULL,
			created_ts BIGINT NOT NULL,
			tsv tsvector GENERATED ALWAYS AS (to_tsvector('english', content)) STORED
		)`, d.profile.EmbedDims),
		`CREATE INDEX IF NOT EXISTS idx_memory_chunk_project ON memory_chunk (project_id)`,
		`CREATE INDEX IF NOT EXISTS idx_memory_chunk_tsv ON memory_chunk USING GIN (tsv)`,
	}
	for _, stmt := range stmts {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to ensure memory schema")
		}
	}
	return nil
}
