package interfaces

import "context"

// Vectorizer turns text into fixed length embedding vectors.
// Implementations load their model at most once and are safe for concurrent use.
type Vectorizer interface {
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per input text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	Dimension() int
	Model() string
}
