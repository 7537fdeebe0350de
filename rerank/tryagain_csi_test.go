package rerank

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/open-wsd/wsdkit/csi"
	"github.com/open-wsd/wsdkit/embedding"
	"github.com/open-wsd/wsdkit/sense"
)

func TestNewTryAgainCSI_Validation(t *testing.T) {
	inv, err := csi.Load(strings.NewReader("s1\tANIMAL"), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := NewTryAgainCSI(nil, sense.NewIndex(), embedding.NewInMemory(), CSIOptions{}); err == nil {
		t.Fatalf("expected error for nil inventory")
	}
	if _, err := NewTryAgainCSI(inv, nil, embedding.NewInMemory(), CSIOptions{}); err == nil {
		t.Fatalf("expected error for nil graph")
	}
	if _, err := NewTryAgainCSI(inv, sense.NewIndex(), nil, CSIOptions{}); err == nil {
		t.Fatalf("expected error for nil lookup")
	}
	if _, err := NewTryAgainCSI(inv, sense.NewIndex(), embedding.NewInMemory(), CSIOptions{Metric: "euclidean"}); err == nil {
		t.Fatalf("expected error for invalid metric")
	}
}

func TestTryAgainCSI_Rerank(t *testing.T) {
	x := sense.NewIndex()
	mustAdd(t, x, sense.Synset{
		ID: "100-n", Lexname: "noun.animal",
		LemmaKeys: []string{"seal%1:05:00::"},
	})
	mustAdd(t, x, sense.Synset{
		ID: "200-n", Lexname: "noun.artifact",
		LemmaKeys: []string{"seal%1:06:00::"},
	})
	mustAdd(t, x, sense.Synset{
		ID: "300-n", Lexname: "noun.animal",
		LemmaKeys: []string{"pinniped%1:05:00::", "pinnatiped%1:05:00::"},
	})

	inv, err := csi.Load(strings.NewReader(strings.Join([]string{
		"100-n\tANIMAL",
		"300-n\tANIMAL",
		"200-n\tCRAFT",
	}, "\n")), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	lookup := embedding.NewInMemory()
	lookup.Set("seal%1:05:00::", []float32{0, 1})
	lookup.Set("seal%1:06:00::", []float32{0, 1})
	// All member keys of a related synset are scored: the second member is
	// the closest match and must win the max.
	lookup.Set("pinniped%1:05:00::", []float32{0, 1})
	lookup.Set("pinnatiped%1:05:00::", []float32{1, 0})

	ta, err := NewTryAgainCSI(inv, x, lookup, CSIOptions{})
	if err != nil {
		t.Fatalf("NewTryAgainCSI: %v", err)
	}

	out, err := ta.Rerank(context.Background(), []float32{1, 0}, sense.Noun, []Candidate{
		{LemmaKey: "seal%1:05:00::", Score: 0.6},
		{LemmaKey: "seal%1:06:00::", Score: 0.5},
	}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 100-n expands to {100-n, 300-n}: the candidate's own key scores 0 and
	// pinnatiped scores 1, so the try-again similarity is 1. 200-n expands to
	// itself only and scores 0.
	if math.Abs(out[0].Score-1.6) > 1e-9 {
		t.Fatalf("out[0].Score = %v, want 1.6", out[0].Score)
	}
	if math.Abs(out[1].Score-0.5) > 1e-9 {
		t.Fatalf("out[1].Score = %v, want 0.5", out[1].Score)
	}
}

func TestTryAgainCSI_NoDegenerateSpecialCase(t *testing.T) {
	x := sense.NewIndex()
	mustAdd(t, x, sense.Synset{
		ID: "100-n", Lexname: "noun.artifact",
		LemmaKeys: []string{"bank%1:17:00::", "bank%1:17:01::"},
	})
	inv, err := csi.Load(strings.NewReader("999-n\tANIMAL"), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	ta, err := NewTryAgainCSI(inv, x, embedding.NewInMemory(), CSIOptions{})
	if err != nil {
		t.Fatalf("NewTryAgainCSI: %v", err)
	}

	// Both keys share one synset; unlike the relation-walk variant nothing is
	// boosted to +Inf. The synset has no inventory entry, so it expands to
	// nothing and both scores survive unchanged.
	out, err := ta.Rerank(context.Background(), []float32{1, 0}, sense.Noun, []Candidate{
		{LemmaKey: "bank%1:17:00::", Score: 0.9},
		{LemmaKey: "bank%1:17:01::", Score: 0.85},
	}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0].Score != 0.9 || out[1].Score != 0.85 {
		t.Fatalf("out = %v", out)
	}
}
