package rerank

import (
	"context"
	"fmt"

	"github.com/open-wsd/wsdkit/csi"
	"github.com/open-wsd/wsdkit/embedding"
	"github.com/open-wsd/wsdkit/sense"
)

// CSIOptions configures the coarse-sense-inventory variant. It carries far
// fewer knobs than the relation-walk variant: the inventory itself decides
// the neighborhood.
type CSIOptions struct {
	Metric embedding.Metric
}

// TryAgainCSI expands each candidate synset into every synset sharing one of
// its coarse sense labels ([Lacerra+, 2020] inventory, combined with the
// try-again mechanism per [Wang and Wang, ACL2021]).
//
// Unlike the relation-walk variant there is no degenerate-synset special
// case, no self-exclusion, and all member lemma keys of a related synset are
// scored.
type TryAgainCSI struct {
	inventory *csi.Inventory
	graph     sense.Graph
	lookup    embedding.Lookup
	metric    embedding.Metric
}

// NewTryAgainCSI validates the configuration and builds a CSI re-ranker.
// The inventory is mandatory: CSI similarity without a loaded table is a
// configuration error.
func NewTryAgainCSI(inventory *csi.Inventory, graph sense.Graph, lookup embedding.Lookup, opts CSIOptions) (*TryAgainCSI, error) {
	if inventory == nil {
		return nil, fmt.Errorf("coarse sense inventory is required")
	}
	if graph == nil {
		return nil, fmt.Errorf("sense graph is required")
	}
	if lookup == nil {
		return nil, fmt.Errorf("embedding lookup is required")
	}
	metric := opts.Metric
	if metric == "" {
		metric = embedding.MetricCosine
	}
	if _, err := embedding.ParseMetric(string(metric)); err != nil {
		return nil, err
	}
	return &TryAgainCSI{inventory: inventory, graph: graph, lookup: lookup, metric: metric}, nil
}

// Rerank adjusts the scores of the top-k candidates and returns the full
// candidate list in its original order. topK <= 0 means DefaultTopK.
func (t *TryAgainCSI) Rerank(ctx context.Context, query []float32, _ sense.PartOfSpeech, candidates []Candidate, topK int) ([]Candidate, error) {
	out, w, err := prepare(candidates, topK)
	if err != nil || w == nil {
		return out, err
	}

	syn, err := candidateSynsets(t.graph, w)
	if err != nil {
		return nil, err
	}

	tryAgain := map[string]float64{}
	for _, s := range syn.order {
		// A synset absent from the inventory expands to nothing and scores
		// a try-again similarity of zero.
		var sims []float64
		for _, r := range t.inventory.Expand(s) {
			keys, err := t.graph.LemmaKeys(r)
			if err != nil {
				return nil, err
			}
			if len(keys) == 0 {
				continue
			}
			rows, err := t.lookup.GetEmbeddings(ctx, keys)
			if err != nil {
				return nil, err
			}
			rowSims, err := embedding.Similarities(t.metric, query, rows)
			if err != nil {
				return nil, err
			}
			sims = append(sims, rowSims...)
		}
		tryAgain[s] = maxOrZero(sims)
	}

	applyAdjusted(out, w, syn.byLemmaKey, tryAgain)
	return out, nil
}
