package rerank

import (
	"fmt"
	"sort"

	"github.com/open-wsd/wsdkit/sense"
)

// prepare validates the candidate list and selects the top-k working set.
// It returns a scored copy of the input; a nil working set means the caller
// should return out as-is (singleton input).
func prepare(candidates []Candidate, topK int) (out []Candidate, working []Candidate, err error) {
	if len(candidates) == 0 {
		return nil, nil, fmt.Errorf("at least one candidate is required")
	}
	out = append([]Candidate(nil), candidates...)

	// A singleton carries no re-ranking signal.
	if len(out) == 1 {
		return out, nil, nil
	}

	if topK <= 0 {
		topK = DefaultTopK
	}
	working = append([]Candidate(nil), candidates...)
	sort.SliceStable(working, func(i, j int) bool {
		return working[i].Score > working[j].Score
	})
	if topK < len(working) {
		working = working[:topK]
	}
	return out, working, nil
}

type synsetMap struct {
	// order holds the distinct candidate synset ids in working-set order.
	order []string

	// similarity maps each candidate synset to the similarity of the last
	// working-set key resolving to it. When two top-k keys share a synset
	// the later (less similar) one wins; this mirrors the reference
	// implementation and is deliberately left as-is.
	similarity map[string]float64

	byLemmaKey map[string]string
}

func candidateSynsets(graph sense.Graph, working []Candidate) (*synsetMap, error) {
	m := &synsetMap{
		similarity: map[string]float64{},
		byLemmaKey: map[string]string{},
	}
	for _, c := range working {
		id, err := graph.SynsetOf(c.LemmaKey)
		if err != nil {
			return nil, err
		}
		if _, seen := m.similarity[id]; !seen {
			m.order = append(m.order, id)
		}
		m.similarity[id] = c.Score
		m.byLemmaKey[c.LemmaKey] = id
	}
	return m, nil
}

// applyAdjusted writes original+try-again scores for the working set back
// into out at each key's first position; keys outside the working set keep
// their original scores.
func applyAdjusted(out []Candidate, working []Candidate, synsetOf map[string]string, tryAgain map[string]float64) {
	for _, c := range working {
		idx := indexOfKey(out, c.LemmaKey)
		out[idx].Score = c.Score + tryAgain[synsetOf[c.LemmaKey]]
	}
}

func indexOfKey(candidates []Candidate, lemmaKey string) int {
	for i, c := range candidates {
		if c.LemmaKey == lemmaKey {
			return i
		}
	}
	return -1
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func intersectAll(order []string, sets map[string]map[string]struct{}) map[string]struct{} {
	common := map[string]struct{}{}
	for id := range sets[order[0]] {
		inAll := true
		for _, s := range order[1:] {
			if _, ok := sets[s][id]; !ok {
				inAll = false
				break
			}
		}
		if inAll {
			common[id] = struct{}{}
		}
	}
	return common
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func maxOrZero(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	max := values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
	}
	return max
}
