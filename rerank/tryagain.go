// Package rerank implements the try-again mechanism: a heuristic that
// re-scores the top candidate senses of a WSD instance using the semantic
// neighborhood of each candidate synset ([Wang and Wang, EMNLP2020], with
// the unwritten rules taken from the ACL2021 follow-up).
package rerank

import (
	"context"
	"fmt"
	"log"
	"math"

	"github.com/open-wsd/wsdkit/embedding"
	"github.com/open-wsd/wsdkit/sense"
)

// Candidate is one ranked sense prediction for a WSD instance.
type Candidate struct {
	LemmaKey string
	Score    float64
}

// DefaultTopK is how many top candidates are re-scored when the caller does
// not say otherwise.
const DefaultTopK = 2

// Options configures the relation-walk variant. Start from DefaultOptions;
// the zero value disables every heuristic, which is rarely what you want.
type Options struct {
	// Metric is the query/sense similarity ("cosine" or "dot").
	Metric embedding.Metric

	// Relation selects which semantic relations expand a candidate synset.
	Relation string

	// ExcludeCommonRelated removes synsets related to every candidate from
	// all expansion sets: shared neighbors carry no discriminative signal.
	ExcludeCommonRelated bool

	// LookupFirstLemmaOnly scores only the first lemma key of each related
	// synset instead of all of its members.
	LookupFirstLemmaOnly bool

	// AverageSimilarityInSynset reduces a related synset's member
	// similarities to their mean before taking the overall max.
	AverageSimilarityInSynset bool

	// ExcludeCandidatesForNounVerb skips related synsets that are themselves
	// candidates when the instance is a noun or verb.
	ExcludeCandidatesForNounVerb bool

	// DoNotFixSynsetDegenerationBug preserves the original SREF behavior
	// when all top-k candidates collapse into one synset: the least similar
	// of them is boosted to rank 1 by adding +Inf. Kept bit-for-bit so runs
	// remain comparable with published numbers.
	DoNotFixSynsetDegenerationBug bool
}

// DefaultOptions mirrors the reference configuration.
func DefaultOptions() Options {
	return Options{
		Metric:                        embedding.MetricCosine,
		Relation:                      sense.RelationAll,
		ExcludeCommonRelated:          true,
		LookupFirstLemmaOnly:          true,
		AverageSimilarityInSynset:     false,
		ExcludeCandidatesForNounVerb:  true,
		DoNotFixSynsetDegenerationBug: true,
	}
}

// TryAgain is the relation-walk variant: candidate synsets are expanded
// through the sense-relation graph (plus same-lexname synsets when the
// candidates disagree on supersense).
type TryAgain struct {
	graph  sense.Graph
	lookup embedding.Lookup
	opts   Options
}

// NewTryAgain validates the configuration and builds a relation-walk
// re-ranker.
func NewTryAgain(graph sense.Graph, lookup embedding.Lookup, opts Options) (*TryAgain, error) {
	if graph == nil {
		return nil, fmt.Errorf("sense graph is required")
	}
	if lookup == nil {
		return nil, fmt.Errorf("embedding lookup is required")
	}
	if opts.Metric == "" {
		opts.Metric = embedding.MetricCosine
	}
	if _, err := embedding.ParseMetric(string(opts.Metric)); err != nil {
		return nil, err
	}
	if opts.Relation == "" {
		opts.Relation = sense.RelationAll
	}
	return &TryAgain{graph: graph, lookup: lookup, opts: opts}, nil
}

// Rerank adjusts the scores of the top-k candidates and returns the full
// candidate list in its original order. Keys are never reordered or dropped;
// only scores change. topK <= 0 means DefaultTopK.
func (t *TryAgain) Rerank(ctx context.Context, query []float32, pos sense.PartOfSpeech, candidates []Candidate, topK int) ([]Candidate, error) {
	out, w, err := prepare(candidates, topK)
	if err != nil || w == nil {
		return out, err
	}

	syn, err := candidateSynsets(t.graph, w)
	if err != nil {
		return nil, err
	}

	if len(syn.order) == 1 && t.opts.DoNotFixSynsetDegenerationBug {
		// All top-k keys collapse into one synset. The original SREF
		// implementation boosts the least similar of them to rank 1.
		log.Printf("wsdkit: single candidate synset; boosting least similar sense key to match original SREF behavior")
		least := w[len(w)-1].LemmaKey
		idx := indexOfKey(out, least)
		out[idx].Score += math.Inf(1)
		return out, nil
	}

	expansion := map[string]map[string]struct{}{}
	for _, s := range syn.order {
		related, err := t.graph.Related(s, t.opts.Relation)
		if err != nil {
			return nil, err
		}
		expansion[s] = toSet(related)
	}

	// Drop synsets related to every candidate: the union-then-intersection
	// of all expansion sets is their plain intersection.
	if t.opts.ExcludeCommonRelated && len(syn.order) > 1 {
		common := intersectAll(syn.order, expansion)
		for _, s := range syn.order {
			for id := range common {
				delete(expansion[s], id)
			}
		}
	}

	differentLexname, lexnames, err := t.candidateLexnames(syn.order)
	if err != nil {
		return nil, err
	}

	tryAgain := map[string]float64{}
	for i, s := range syn.order {
		if differentLexname {
			same, err := t.graph.LexnameSynsets(lexnames[i])
			if err != nil {
				return nil, err
			}
			for _, id := range same {
				expansion[s][id] = struct{}{}
			}
		}

		var sims []float64
		for _, r := range sortedSet(expansion[s]) {
			if t.opts.ExcludeCandidatesForNounVerb && (pos == sense.Noun || pos == sense.Verb) {
				if _, isCandidate := syn.similarity[r]; isCandidate {
					continue
				}
			}

			keys, err := t.graph.LemmaKeys(r)
			if err != nil {
				return nil, err
			}
			if t.opts.LookupFirstLemmaOnly && len(keys) > 1 {
				keys = keys[:1]
			}
			if len(keys) == 0 {
				continue
			}

			rows, err := t.lookup.GetEmbeddings(ctx, keys)
			if err != nil {
				return nil, err
			}
			rowSims, err := embedding.Similarities(t.opts.Metric, query, rows)
			if err != nil {
				return nil, err
			}

			if t.opts.AverageSimilarityInSynset {
				sims = append(sims, mean(rowSims))
			} else {
				sims = append(sims, rowSims...)
			}
		}
		tryAgain[s] = maxOrZero(sims)
	}

	applyAdjusted(out, w, syn.byLemmaKey, tryAgain)
	return out, nil
}

func (t *TryAgain) candidateLexnames(synsetIDs []string) (bool, []string, error) {
	lexnames := make([]string, len(synsetIDs))
	distinct := map[string]struct{}{}
	for i, s := range synsetIDs {
		name, err := t.graph.Lexname(s)
		if err != nil {
			return false, nil, err
		}
		lexnames[i] = name
		distinct[name] = struct{}{}
	}
	return len(distinct) > 1, lexnames, nil
}
