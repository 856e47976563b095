// Package postgres implements the search.Index interface on a PostgreSQL
// exercise_embeddings table with a pgvector HNSW index.
//
// The query text is embedded via an [embeddings.Provider] and ranked by
// cosine distance against precomputed catalogue vectors. Similarity is
// reported as 1 − cosine distance so that callers compare against the
// configured acceptance floor directly.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/Zchasse63/voice-fit-sub008/pkg/provider/embeddings"
	"github.com/Zchasse63/voice-fit-sub008/pkg/search"
)

// Schema is the SQL DDL for the embeddings table. The vector dimension is
// interpolated from the configured embeddings provider at migration time.
const schemaTemplate = `
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS exercise_embeddings (
    exercise_id TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    embedding   vector(%d) NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_exercise_embeddings_hnsw
    ON exercise_embeddings USING hnsw (embedding vector_cosine_ops);
`

// Index is a [search.Index] backed by pgvector.
// All methods are safe for concurrent use.
type Index struct {
	pool     *pgxpool.Pool
	embedder embeddings.Provider
}

// Compile-time interface check.
var _ search.Index = (*Index)(nil)

// New creates an Index over the given pool, embedding queries with embedder.
func New(pool *pgxpool.Pool, embedder embeddings.Provider) *Index {
	return &Index{pool: pool, embedder: embedder}
}

// Migrate creates the exercise_embeddings table and HNSW index sized to the
// embedder's dimensionality.
func (ix *Index) Migrate(ctx context.Context) error {
	ddl := fmt.Sprintf(schemaTemplate, ix.embedder.Dimensions())
	if _, err := ix.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("search index: migrate: %w", err)
	}
	return nil
}

// Upsert embeds and stores the vectors for the given (exerciseID, name)
// pairs. Existing rows are replaced. Used by catalogue indexing tooling.
func (ix *Index) Upsert(ctx context.Context, ids []string, names []string) error {
	if len(ids) != len(names) {
		return fmt.Errorf("search index: ids/names length mismatch: %d vs %d", len(ids), len(names))
	}
	if len(ids) == 0 {
		return nil
	}

	vectors, err := ix.embedder.EmbedBatch(ctx, names)
	if err != nil {
		return fmt.Errorf("search index: embed batch: %w", err)
	}

	const q = `
		INSERT INTO exercise_embeddings (exercise_id, name, embedding, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (exercise_id) DO UPDATE SET
		    name       = EXCLUDED.name,
		    embedding  = EXCLUDED.embedding,
		    updated_at = now()`

	for i, id := range ids {
		vec := pgvector.NewVector(vectors[i])
		if _, err := ix.pool.Exec(ctx, q, id, names[i], vec); err != nil {
			return fmt.Errorf("search index: upsert %q: %w", id, err)
		}
	}
	return nil
}

// Query implements [search.Index]. The query text is embedded and the topK
// nearest catalogue vectors are returned ordered by descending similarity.
func (ix *Index) Query(ctx context.Context, text string, topK int) ([]search.Candidate, error) {
	if topK <= 0 {
		topK = 5
	}

	queryVec, err := ix.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("search index: embed query: %w", err)
	}

	const q = `
		SELECT exercise_id, name, 1 - (embedding <=> $1) AS similarity
		FROM   exercise_embeddings
		ORDER  BY embedding <=> $1
		LIMIT  $2`

	rows, err := ix.pool.Query(ctx, q, pgvector.NewVector(queryVec), topK)
	if err != nil {
		return nil, fmt.Errorf("search index: query: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (search.Candidate, error) {
		var c search.Candidate
		if err := row.Scan(&c.ExerciseID, &c.Name, &c.Similarity); err != nil {
			return search.Candidate{}, err
		}
		return c, nil
	})
	if err != nil {
		return nil, fmt.Errorf("search index: scan rows: %w", err)
	}
	if results == nil {
		results = []search.Candidate{}
	}
	return results, nil
}
