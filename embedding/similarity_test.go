package embedding

import (
	"context"
	"errors"
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestParseMetric(t *testing.T) {
	for _, name := range []string{"cosine", "dot"} {
		m, err := ParseMetric(name)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		if string(m) != name {
			t.Fatalf("metric = %q", m)
		}
	}
	if _, err := ParseMetric("euclidean"); err == nil {
		t.Fatalf("expected error for unknown metric")
	}
}

func TestSimilarities_Cosine(t *testing.T) {
	query := []float32{1, 0}
	rows := [][]float32{
		{1, 0},
		{0, 1},
		{2, 0},
		{0, 0},
	}
	sims, err := Similarities(MetricCosine, query, rows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []float64{1, 0, 1, 0}
	for i := range want {
		if !almostEqual(sims[i], want[i]) {
			t.Fatalf("sims[%d] = %v, want %v", i, sims[i], want[i])
		}
	}
}

func TestSimilarities_Dot(t *testing.T) {
	sims, err := Similarities(MetricDot, []float32{1, 2}, [][]float32{{3, 4}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(sims[0], 11) {
		t.Fatalf("dot = %v, want 11", sims[0])
	}
}

func TestSimilarities_DimensionMismatch(t *testing.T) {
	if _, err := Similarities(MetricCosine, []float32{1, 0}, [][]float32{{1, 0, 0}}); err == nil {
		t.Fatalf("expected dimension mismatch error")
	}
}

func TestInMemoryLookup(t *testing.T) {
	m := NewInMemory()
	m.Set("a%1:05:00::", []float32{1, 0})
	m.Set("b%1:05:00::", []float32{0, 1})

	rows, err := m.GetEmbeddings(context.Background(), []string{"b%1:05:00::", "a%1:05:00::"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rows[0][1] != 1 || rows[1][0] != 1 {
		t.Fatalf("rows out of request order: %v", rows)
	}

	if _, err := m.GetEmbeddings(context.Background(), []string{"a%1:05:00::", "missing%1:05:00::"}); !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey, got %v", err)
	}
}
