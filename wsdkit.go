// Package wsdkit ties the toolkit together: score a WSD instance's candidate
// senses against a context embedding, optionally re-rank the top candidates
// with a try-again variant, and pick the winner.
package wsdkit

import (
	"context"
	"fmt"

	"github.com/open-wsd/wsdkit/embedding"
	"github.com/open-wsd/wsdkit/rerank"
	"github.com/open-wsd/wsdkit/sense"
)

// Reranker re-scores a ranked candidate list. Satisfied by *rerank.TryAgain
// and *rerank.TryAgainCSI.
type Reranker interface {
	Rerank(ctx context.Context, query []float32, pos sense.PartOfSpeech, candidates []rerank.Candidate, topK int) ([]rerank.Candidate, error)
}

type DisambiguateRequest struct {
	// Query is the context embedding of the instance to disambiguate.
	Query []float32
	// POS is the instance's part of speech.
	POS sense.PartOfSpeech
	// CandidateKeys are the lemma-sense keys to score, usually every sense of
	// the target lemma. Output order follows this order.
	CandidateKeys []string

	// Metric defaults to cosine.
	Metric embedding.Metric

	// Reranker optionally re-scores the top candidates. Nil means plain
	// similarity ranking.
	Reranker Reranker
	// TopK is how many top candidates the re-ranker may adjust; <= 0 means
	// rerank.DefaultTopK.
	TopK int
}

// Disambiguate is the recommended entrypoint for scoring one instance.
//
// It scores every candidate key by query/sense similarity, then hands the
// list to the configured re-ranker. Candidates are returned in input order;
// use Best to pick the prediction.
func Disambiguate(ctx context.Context, lookup embedding.Lookup, req DisambiguateRequest) ([]rerank.Candidate, error) {
	if lookup == nil {
		return nil, fmt.Errorf("embedding lookup is required")
	}
	if len(req.CandidateKeys) == 0 {
		return nil, fmt.Errorf("at least one candidate key is required")
	}
	metric := req.Metric
	if metric == "" {
		metric = embedding.MetricCosine
	}
	if _, err := embedding.ParseMetric(string(metric)); err != nil {
		return nil, err
	}

	rows, err := lookup.GetEmbeddings(ctx, req.CandidateKeys)
	if err != nil {
		return nil, err
	}
	sims, err := embedding.Similarities(metric, req.Query, rows)
	if err != nil {
		return nil, err
	}

	candidates := make([]rerank.Candidate, len(req.CandidateKeys))
	for i, key := range req.CandidateKeys {
		candidates[i] = rerank.Candidate{LemmaKey: key, Score: sims[i]}
	}

	if req.Reranker == nil {
		return candidates, nil
	}
	return req.Reranker.Rerank(ctx, req.Query, req.POS, candidates, req.TopK)
}

// Best returns the highest-scoring candidate. Ties keep the earliest
// candidate, so a stable upstream ranking stays stable here.
func Best(candidates []rerank.Candidate) (rerank.Candidate, bool) {
	if len(candidates) == 0 {
		return rerank.Candidate{}, false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Score > best.Score {
			best = c
		}
	}
	return best, true
}
