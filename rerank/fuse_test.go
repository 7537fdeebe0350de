package rerank

import (
	"math"
	"testing"
)

func TestFuseRRF(t *testing.T) {
	relWalk := []Candidate{
		{LemmaKey: "a", Score: 1.9},
		{LemmaKey: "b", Score: 0.5},
	}
	csiWalk := []Candidate{
		{LemmaKey: "b", Score: 1.2},
		{LemmaKey: "c", Score: 0.4},
	}

	out := FuseRRF([][]Candidate{relWalk, csiWalk}, FuseOptions{})
	if len(out) != 3 {
		t.Fatalf("len = %d, want 3", len(out))
	}

	// b appears in both lists (ranks 2 and 1) and must outrank both
	// single-list keys.
	if out[0].LemmaKey != "b" {
		t.Fatalf("out[0] = %+v", out[0])
	}
	wantB := 1.0/62 + 1.0/61
	if math.Abs(out[0].Score-wantB) > 1e-12 {
		t.Fatalf("score(b) = %v, want %v", out[0].Score, wantB)
	}
	if out[1].LemmaKey != "a" || out[2].LemmaKey != "c" {
		t.Fatalf("out = %v", out)
	}
}

func TestFuseRRF_TieBreaksOnKey(t *testing.T) {
	out := FuseRRF([][]Candidate{
		{{LemmaKey: "z"}, {LemmaKey: "a"}},
		{{LemmaKey: "a"}, {LemmaKey: "z"}},
	}, FuseOptions{})
	if out[0].LemmaKey != "a" || out[1].LemmaKey != "z" {
		t.Fatalf("out = %v", out)
	}
}

func TestFuseRRF_Weights(t *testing.T) {
	out := FuseRRF([][]Candidate{
		{{LemmaKey: "a"}},
		{{LemmaKey: "b"}},
	}, FuseOptions{Weights: []float64{1, 3}})
	if out[0].LemmaKey != "b" {
		t.Fatalf("out = %v", out)
	}
}
