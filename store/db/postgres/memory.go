package postgres

import (
	"context"
	"time"

	"github.com/lib/pq"
	"github.com/lithammer/shortuuid/v4"
	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/memoraai/memora/store"
)

// UpsertMemory inserts one memory chunk. Postgres does not hand out document
// ids the way the elastic backend does, so the id is minted client-side.
func (d *DB) UpsertMemory(ctx context.Context, create *store.MemoryChunk) (string, error) {
	if create.ID == "" {
		create.ID = shortuuid.New()
	}
	if create.CreatedTs == 0 {
		create.CreatedTs = time.Now().Unix()
	}
	tags := create.Tags
	if tags == nil {
		tags = []string{}
	}

	stmt := `
		INSERT INTO memory_chunk (id, project_id, content, tags, embedding, created_ts)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := d.db.ExecContext(ctx, stmt,
		create.ID,
		create.ProjectID,
		create.Text,
		pq.Array(tags),
		pgvector.NewVector(create.Embedding),
		create.CreatedTs,
	)
	if err != nil {
		return "", errors.Wrap(err, "failed to insert memory chunk")
	}
	return create.ID, nil
}

// VectorSearch returns up to k project-scoped hits by cosine similarity.
// The <=> operator computes cosine distance, so similarity is 1 - distance
// and ordering by distance ascending yields most similar first. Equal-score
// ordering is whatever the planner produces and is not deterministic.
func (d *DB) VectorSearch(ctx context.Context, projectID string, queryVector []float32, k int) ([]store.SearchHit, error) {
	query := `
		SELECT content, 1 - (embedding <=> $1) AS score
		FROM memory_chunk
		WHERE project_id = $2
		ORDER BY embedding <=> $1
		LIMIT $3
	`
	return d.queryHits(ctx, query, pgvector.NewVector(queryVector), projectID, k)
}

// lexicalSearch ranks project-scoped chunks by full-text relevance.
func (d *DB) lexicalSearch(ctx context.Context, projectID, queryText string, limit int) ([]store.SearchHit, error) {
	query := `
		SELECT content, ts_rank(tsv, plainto_tsquery('english', $1)) AS score
		FROM memory_chunk
		WHERE project_id = $2
			AND tsv @@ plainto_tsquery('english', $1)
		ORDER BY score DESC
		LIMIT $3
	`
	return d.queryHits(ctx, query, queryText, projectID, limit)
}

// HybridSearch runs the lexical and vector queries over the recall pool and
// fuses the two ranked lists with reciprocal-rank fusion, lexical weighted
// 2x over vector. There is no native fusion stage to probe here: client-side
// fusion is this driver's permanent path.
func (d *DB) HybridSearch(ctx context.Context, projectID, queryText string, queryVector []float32, k int) ([]store.SearchHit, error) {
	poolSize := store.PoolSize(k)

	lexical, err := d.lexicalSearch(ctx, projectID, queryText, poolSize)
	if err != nil {
		return nil, errors.Wrap(err, "hybrid search failed on lexical leg")
	}
	vector, err := d.VectorSearch(ctx, projectID, queryVector, poolSize)
	if err != nil {
		return nil, errors.Wrap(err, "hybrid search failed on vector leg")
	}

	fused := fuseRRF(lexical, vector, lexicalWeight, vectorWeight)
	if len(fused) > poolSize {
		fused = fused[:poolSize]
	}
	return fused, nil
}

func (d *DB) queryHits(ctx context.Context, query string, args ...any) ([]store.SearchHit, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query memory chunks")
	}
	defer rows.Close()

	hits := []store.SearchHit{}
	for rows.Next() {
		var hit store.SearchHit
		if err := rows.Scan(&hit.Text, &hit.Score); err != nil {
			return nil, errors.Wrap(err, "failed to scan search hit")
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return hits, nil
}
