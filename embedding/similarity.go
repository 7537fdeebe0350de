package embedding

import (
	"fmt"
	"math"
)

// Metric selects how query/sense similarity is computed.
type Metric string

const (
	MetricCosine Metric = "cosine"
	MetricDot    Metric = "dot"
)

// ParseMetric validates a similarity metric name.
func ParseMetric(name string) (Metric, error) {
	switch Metric(name) {
	case MetricCosine, MetricDot:
		return Metric(name), nil
	default:
		return "", fmt.Errorf("invalid similarity metric name: %q", name)
	}
}

// Similarities computes the similarity between query and every row of rows.
// All vectors must share the query's dimension.
func Similarities(metric Metric, query []float32, rows [][]float32) ([]float64, error) {
	out := make([]float64, len(rows))
	for i, row := range rows {
		if len(row) != len(query) {
			return nil, fmt.Errorf("embedding dimension mismatch: query has %d, row %d has %d", len(query), i, len(row))
		}
		switch metric {
		case MetricCosine:
			out[i] = cosine(query, row)
		case MetricDot:
			out[i] = dot(query, row)
		default:
			return nil, fmt.Errorf("invalid similarity metric name: %q", metric)
		}
	}
	return out, nil
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// cosine returns 0 when either vector has zero norm, matching the convention
// that an uninformative vector carries no similarity signal.
func cosine(a, b []float32) float64 {
	var num, na, nb float64
	for i := range a {
		fa, fb := float64(a[i]), float64(b[i])
		num += fa * fb
		na += fa * fa
		nb += fb * fb
	}
	if na <= 0 || nb <= 0 {
		return 0
	}
	return num / (math.Sqrt(na) * math.Sqrt(nb))
}
