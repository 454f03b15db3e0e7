package embedding

import (
	"context"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

// EmbeddingClient is the part of gollem.LLMClient used for vectorization.
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error)
}

// ClientLoader creates the embedding client on first use.
type ClientLoader func(ctx context.Context) (EmbeddingClient, error)

// Gemini vectorizes text with a remote embedding model through gollem.
type Gemini struct {
	loader    ClientLoader
	model     string
	dimension int
	batchSize int

	once    sync.Once
	client  EmbeddingClient
	loadErr error
}

// GeminiOption configures Gemini.
type GeminiOption func(*Gemini)

// WithModelName sets the model name reported by Model.
func WithModelName(name string) GeminiOption {
	return func(g *Gemini) {
		g.model = name
	}
}

// WithDimension sets the requested embedding dimension.
func WithDimension(dimension int) GeminiOption {
	return func(g *Gemini) {
		g.dimension = dimension
	}
}

// WithBatchSize sets how many texts go into one GenerateEmbedding call.
func WithBatchSize(size int) GeminiOption {
	return func(g *Gemini) {
		g.batchSize = size
	}
}

// NewGemini creates a vectorizer that loads its client with loader on first use.
func NewGemini(loader ClientLoader, opts ...GeminiOption) (*Gemini, error) {
	if loader == nil {
		return nil, goerr.New("client loader is required")
	}

	g := &Gemini{
		loader:    loader,
		model:     "gemini-embedding-001",
		dimension: DefaultDimension,
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(g)
	}

	if g.dimension <= 0 {
		return nil, goerr.New("dimension must be positive", goerr.V("dimension", g.dimension))
	}
	return g, nil
}

func (g *Gemini) Dimension() int { return g.dimension }

func (g *Gemini) Model() string { return g.model }

// Warmup loads the client. A failed load is kept and returned on every call.
func (g *Gemini) Warmup(ctx context.Context) error {
	_, err := g.getClient(ctx)
	return err
}

func (g *Gemini) getClient(ctx context.Context) (EmbeddingClient, error) {
	g.once.Do(func() {
		logging.From(ctx).Info("loading embedding model", "model", g.model, "dimension", g.dimension)
		client, err := g.loader(ctx)
		if err != nil {
			g.loadErr = goerr.Wrap(err, "failed to load embedding client", goerr.V("model", g.model))
			return
		}
		if client == nil {
			g.loadErr = goerr.New("embedding client loader returned nil", goerr.V("model", g.model))
			return
		}
		g.client = client
	})
	return g.client, g.loadErr
}

func (g *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := g.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (g *Gemini) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	client, err := g.getClient(ctx)
	if err != nil {
		return nil, err
	}

	result := make([][]float32, len(texts))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(4)

	for _, span := range chunks(len(texts), g.batchSize) {
		start, end := span[0], span[1]
		eg.Go(func() error {
			embeddings, err := client.GenerateEmbedding(ctx, g.dimension, texts[start:end])
			if err != nil {
				return goerr.Wrap(err, "failed to generate embedding",
					goerr.V("model", g.model),
					goerr.V("batch_start", start),
					goerr.V("batch_size", end-start))
			}
			if len(embeddings) != end-start {
				return goerr.New("unexpected number of embeddings",
					goerr.V("expected", end-start),
					goerr.V("actual", len(embeddings)))
			}

			for i, emb := range embeddings {
				if len(emb) != g.dimension {
					return goerr.New("unexpected embedding dimension",
						goerr.V("expected", g.dimension),
						goerr.V("actual", len(emb)))
				}
				vec := make([]float32, len(emb))
				for j, v := range emb {
					vec[j] = float32(v)
				}
				result[start+i] = vec
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}
