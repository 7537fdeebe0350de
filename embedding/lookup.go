// Package embedding defines the precomputed sense-embedding capability and
// the similarity metrics computed over it.
package embedding

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnknownKey is returned when a lemma-sense key has no stored embedding.
var ErrUnknownKey = errors.New("no embedding for lemma-sense key")

// Lookup resolves lemma-sense keys to their precomputed embedding vectors.
//
// GetEmbeddings returns one row per requested key, in request order. A key
// without an embedding fails the whole call with ErrUnknownKey: partial
// results would silently skew similarity maxima downstream.
type Lookup interface {
	GetEmbeddings(ctx context.Context, lemmaKeys []string) ([][]float32, error)
}

// InMemory is a map-backed Lookup for tests and for preloaded embedding
// files that fit in memory.
type InMemory struct {
	vectors map[string][]float32
}

var _ Lookup = (*InMemory)(nil)

func NewInMemory() *InMemory {
	return &InMemory{vectors: map[string][]float32{}}
}

// Set stores (or replaces) the embedding for a lemma-sense key.
func (m *InMemory) Set(lemmaKey string, vec []float32) {
	m.vectors[lemmaKey] = append([]float32(nil), vec...)
}

func (m *InMemory) GetEmbeddings(_ context.Context, lemmaKeys []string) ([][]float32, error) {
	out := make([][]float32, len(lemmaKeys))
	for i, key := range lemmaKeys {
		vec, ok := m.vectors[key]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownKey, key)
		}
		out[i] = vec
	}
	return out, nil
}
