package pg

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

// Hit is one nearest-neighbor result over the sense-embedding table.
type Hit struct {
	LemmaKey   string
	Model      string
	Similarity float32
}

type KNNOptions struct {
	// ExcludeKeys removes specific lemma keys from the result set.
	ExcludeKeys []string

	// MinSimilarity drops hits below this cosine similarity.
	MinSimilarity float32

	// TwoStage enables binary-quantize oversampling followed by halfvec
	// rescoring, trading a little recall for a much cheaper stage 1.
	TwoStage bool

	// OversampleFactor controls how many candidates stage 1 pulls vs the
	// final limit. Only used when TwoStage=true. Defaults to 5.
	OversampleFactor int
}

type KNNQuery struct {
	Schema     string
	Model      string
	QueryVec   []float32
	Limit      int
	Dimensions int // defaults to len(QueryVec) when 0
	Options    KNNOptions
}

// NearestLemmaKeys runs a cosine KNN search over `<schema>.sense_embeddings`
// and returns lemma keys with similarities. This is the all-words candidate
// generator: callers typically restrict the result to the instance's
// candidate keys afterwards.
func NearestLemmaKeys(ctx context.Context, pool *pgxpool.Pool, q KNNQuery) ([]Hit, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if strings.TrimSpace(q.Schema) == "" {
		return nil, fmt.Errorf("schema is required")
	}
	if strings.TrimSpace(q.Model) == "" {
		return nil, fmt.Errorf("model is required")
	}
	if q.Limit <= 0 || len(q.QueryVec) == 0 {
		return []Hit{}, nil
	}

	dim := q.Dimensions
	if dim <= 0 {
		dim = len(q.QueryVec)
	}

	qs, err := quoteIdent(q.Schema)
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}

	half := fmt.Sprintf("halfvec(%d)", dim)
	table := qs + "." + senseEmbeddingsTable

	opts := q.Options
	if opts.OversampleFactor <= 1 {
		opts.OversampleFactor = 5
	}

	vec := pgvector.NewHalfVector(q.QueryVec)

	where := "WHERE model = $1 AND embedding IS NOT NULL"
	args := []any{q.Model}
	argN := 2
	if len(opts.ExcludeKeys) > 0 {
		where += fmt.Sprintf(" AND lemma_key <> ALL($%d::text[])", argN)
		args = append(args, opts.ExcludeKeys)
		argN++
	}

	var sql string
	if !opts.TwoStage {
		// 1-stage cosine KNN: similarity = 1 - cosine_distance.
		sql = fmt.Sprintf(`
			SELECT
				lemma_key,
				model,
				(1 - (embedding::%s <=> ($%d::%s)))::float4 AS similarity
			FROM %s
			%s
			ORDER BY embedding::%s <=> ($%d::%s)
			LIMIT $%d
		`, half, argN, half, table, where, half, argN, half, argN+1)
		args = append(args, vec, q.Limit)
	} else {
		oversample := q.Limit * opts.OversampleFactor

		// 2-stage:
		//  - stage 1: approx retrieval using binary quantize (Hamming distance)
		//  - stage 2: rescore by cosine distance
		sql = fmt.Sprintf(`
			WITH candidates AS (
				SELECT lemma_key, model, embedding
				FROM %s
				%s
				ORDER BY (binary_quantize(embedding::%s)::bit(%d)) <~> (binary_quantize($%d::%s)::bit(%d))
				LIMIT $%d
			)
			SELECT
				lemma_key,
				model,
				(1 - (embedding::%s <=> ($%d::%s)))::float4 AS similarity
			FROM candidates
			WHERE (1 - (embedding::%s <=> ($%d::%s))) >= $%d
			ORDER BY embedding::%s <=> ($%d::%s)
			LIMIT $%d
		`, table, where, half, dim, argN, half, dim, argN+1, half, argN+2, half, half, argN+2, half, argN+3, half, argN+2, half, argN+4)
		args = append(args, vec, oversample, vec, opts.MinSimilarity, q.Limit)
	}

	rows, err := pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.LemmaKey, &h.Model, &h.Similarity); err != nil {
			return nil, err
		}
		if opts.MinSimilarity > 0 && h.Similarity < opts.MinSimilarity {
			continue
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
