package embedder

import "context"

// Embedder generates text embeddings. wsdkit uses it to embed sense glosses
// (and, at inference time, query contexts) into the same vector space.
type Embedder interface {
	Model() string
	Dimensions() int
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}
