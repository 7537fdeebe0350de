package pg

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ModelSpec describes one embedding model whose sense vectors live in the
// store.
type ModelSpec struct {
	Name string // stored in sense_embedding_models.model
	Dims int    // fixed dims for the model
}

func indexSuffix(model string, dims int) string {
	h := sha1.Sum([]byte(fmt.Sprintf("%s:%d", model, dims)))
	return hex.EncodeToString(h[:8])
}

// UpsertModels syncs the configured model specs into
// `<schema>.sense_embedding_models` and prunes queue state for models that
// are no longer active.
func UpsertModels(ctx context.Context, pool *pgxpool.Pool, schema string, models []ModelSpec) error {
	if pool == nil {
		return fmt.Errorf("pool is required")
	}
	qs, err := quoteIdent(schema)
	if err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}

	var active []string
	for _, m := range models {
		name := strings.TrimSpace(m.Name)
		if name == "" {
			return fmt.Errorf("model name is required")
		}
		if m.Dims <= 0 {
			return fmt.Errorf("model %q dims must be > 0", name)
		}

		q := fmt.Sprintf(`
			INSERT INTO %s.sense_embedding_models (model, dims, created_at, updated_at)
			VALUES ($1, $2, now(), now())
			ON CONFLICT (model) DO UPDATE SET
				dims = EXCLUDED.dims,
				updated_at = now()
		`, qs)
		if _, err := pool.Exec(ctx, q, name, m.Dims); err != nil {
			return err
		}
		active = append(active, name)
	}

	// NOTE: stored sense_embeddings rows for removed models are left in
	// place; they can be large and lookups never touch inactive models.
	for _, table := range []string{"sense_embedding_models", "sense_embedding_tasks", "sense_embedding_dead_letters"} {
		q := fmt.Sprintf(`
			DELETE FROM %s.%s
			WHERE NOT (model = ANY($1::text[]))
		`, qs, table)
		if _, err := pool.Exec(ctx, q, active); err != nil {
			return err
		}
	}
	return nil
}

// EnsureModelIndexes creates per-model partial HNSW indexes for:
//   - cosine distance (1-stage KNN)
//   - binary quantize + Hamming distance (2-stage stage-1)
//
// This must NOT run inside a transaction because it uses CREATE INDEX
// CONCURRENTLY.
func EnsureModelIndexes(ctx context.Context, pool *pgxpool.Pool, schema string, model string, dims int) error {
	if pool == nil {
		return fmt.Errorf("pool is required")
	}
	qs, err := quoteIdent(schema)
	if err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return fmt.Errorf("model is required")
	}
	if dims <= 0 {
		return fmt.Errorf("dims must be > 0")
	}

	half := fmt.Sprintf("halfvec(%d)", dims)
	pred := "model = " + quoteLiteral(model) + " AND embedding IS NOT NULL"

	suffix := indexSuffix(model, dims)
	cosIdx := fmt.Sprintf("idx_sense_embeddings_hnsw_cosine__%s", suffix)
	binIdx := fmt.Sprintf("idx_sense_embeddings_hnsw_binary__%s", suffix)

	q1 := fmt.Sprintf(`
		CREATE INDEX CONCURRENTLY IF NOT EXISTS %s
		ON %s.%s
		USING hnsw ((embedding::%s) halfvec_cosine_ops)
		WHERE %s
	`, cosIdx, qs, senseEmbeddingsTable, half, pred)
	if _, err := pool.Exec(ctx, q1); err != nil {
		return err
	}

	q2 := fmt.Sprintf(`
		CREATE INDEX CONCURRENTLY IF NOT EXISTS %s
		ON %s.%s
		USING hnsw ((binary_quantize(embedding::%s)::bit(%d)) bit_hamming_ops)
		WHERE %s
	`, binIdx, qs, senseEmbeddingsTable, half, dims, pred)
	if _, err := pool.Exec(ctx, q2); err != nil {
		return err
	}
	return nil
}

// EnsureIndexesForModels ensures per-model cosine+binary indexes for every model spec.
func EnsureIndexesForModels(ctx context.Context, pool *pgxpool.Pool, schema string, models []ModelSpec) error {
	for _, m := range models {
		if err := EnsureModelIndexes(ctx, pool, schema, m.Name, m.Dims); err != nil {
			return err
		}
	}
	return nil
}
