// Package pg stores precomputed sense embeddings in Postgres/pgvector and
// serves batched lookups and nearest-neighbor queries over them.
package pg

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/open-wsd/wsdkit/embedding"
)

const senseEmbeddingsTable = "sense_embeddings"

// NewPool opens a pgx pool with the pgvector types registered on every
// connection, so halfvec columns scan directly into pgvector-go values.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	return pgxpool.NewWithConfig(ctx, cfg)
}

// Store reads and writes the sense embeddings of one model in
// `<schema>.sense_embeddings`. It implements embedding.Lookup.
type Store struct {
	pool   *pgxpool.Pool
	schema string
	model  string
	dims   int
}

var _ embedding.Lookup = (*Store)(nil)

func NewStore(pool *pgxpool.Pool, schema string, model string, dims int) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if strings.TrimSpace(schema) == "" {
		return nil, fmt.Errorf("schema is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("model is required")
	}
	if dims <= 0 {
		return nil, fmt.Errorf("dims must be > 0")
	}
	return &Store{pool: pool, schema: schema, model: model, dims: dims}, nil
}

// UpsertSenseEmbedding stores (or replaces) the embedding of one lemma-sense
// key for the store's model.
func (s *Store) UpsertSenseEmbedding(ctx context.Context, lemmaKey string, vec []float32) error {
	if strings.TrimSpace(lemmaKey) == "" {
		return fmt.Errorf("lemmaKey is required")
	}
	if len(vec) != s.dims {
		return fmt.Errorf("embedding has %d dims, store expects %d", len(vec), s.dims)
	}
	qs, err := quoteIdent(s.schema)
	if err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}

	q := fmt.Sprintf(`
		INSERT INTO %s.%s (lemma_key, model, embedding, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		ON CONFLICT (lemma_key, model) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			updated_at = now()
	`, qs, senseEmbeddingsTable)

	_, err = s.pool.Exec(ctx, q, lemmaKey, s.model, pgvector.NewHalfVector(vec))
	return err
}

// GetEmbeddings fetches one embedding row per requested lemma key, in
// request order. Any key without a stored embedding fails the call with
// embedding.ErrUnknownKey.
func (s *Store) GetEmbeddings(ctx context.Context, lemmaKeys []string) ([][]float32, error) {
	if len(lemmaKeys) == 0 {
		return nil, nil
	}
	qs, err := quoteIdent(s.schema)
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}

	half := fmt.Sprintf("halfvec(%d)", s.dims)
	q := fmt.Sprintf(`
		SELECT lemma_key, embedding::%s
		FROM %s.%s
		WHERE model = $1 AND lemma_key = ANY($2::text[]) AND embedding IS NOT NULL
	`, half, qs, senseEmbeddingsTable)

	rows, err := s.pool.Query(ctx, q, s.model, lemmaKeys)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byKey := make(map[string][]float32, len(lemmaKeys))
	for rows.Next() {
		var key string
		var vec pgvector.HalfVector
		if err := rows.Scan(&key, &vec); err != nil {
			return nil, err
		}
		byKey[key] = vec.Slice()
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([][]float32, len(lemmaKeys))
	for i, key := range lemmaKeys {
		vec, ok := byKey[key]
		if !ok {
			return nil, fmt.Errorf("%w: %q (model %s)", embedding.ErrUnknownKey, key, s.model)
		}
		out[i] = vec
	}
	return out, nil
}
