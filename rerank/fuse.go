package rerank

import "sort"

// FuseOptions tunes reciprocal rank fusion across re-ranker variants.
type FuseOptions struct {
	// K is the stabilizer constant; higher K flattens rank differences.
	// Defaults to 60 when <= 0.
	K int

	// Weights applied to each list. Empty => all 1.0.
	Weights []float64
}

// FuseRRF fuses the rankings produced by several re-ranker variants (e.g.
// relation-walk and CSI) into one ranked list without relying on raw score
// calibration:
//
//	score(key) = Σ (weight_i / (k + rank_i))
//
// Input lists are expected best-first; ties in the fused score break on
// lemma key so the result is deterministic.
func FuseRRF(lists [][]Candidate, opts FuseOptions) []Candidate {
	k := opts.K
	if k <= 0 {
		k = 60
	}
	weights := opts.Weights

	scores := map[string]float64{}
	for li, list := range lists {
		w := 1.0
		if li < len(weights) && weights[li] > 0 {
			w = weights[li]
		}
		for i, c := range list {
			rank := i + 1
			scores[c.LemmaKey] += w / float64(k+rank)
		}
	}

	out := make([]Candidate, 0, len(scores))
	for key, sc := range scores {
		out = append(out, Candidate{LemmaKey: key, Score: sc})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].LemmaKey < out[j].LemmaKey
		}
		return out[i].Score > out[j].Score
	})
	return out
}
