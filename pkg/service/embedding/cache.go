package embedding

import (
	"context"

	"github.com/dgraph-io/ristretto"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
)

// Cached wraps a Vectorizer and keeps recent vectors in memory, keyed by the
// SHA-256 of the text.
type Cached struct {
	base  interfaces.Vectorizer
	cache *ristretto.Cache
}

// NewCached creates a caching decorator holding up to size vectors.
func NewCached(base interfaces.Vectorizer, size int64) (*Cached, error) {
	if base == nil {
		return nil, goerr.New("base vectorizer is required")
	}
	if size <= 0 {
		return nil, goerr.New("cache size must be positive", goerr.V("size", size))
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: size * 10,
		MaxCost:     size,
		BufferItems: 64,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create embedding cache")
	}

	return &Cached{base: base, cache: cache}, nil
}

func (c *Cached) Dimension() int { return c.base.Dimension() }

func (c *Cached) Model() string { return c.base.Model() }

func (c *Cached) Warmup(ctx context.Context) error {
	return Warmup(ctx, c.base)
}

// Close releases the cache.
func (c *Cached) Close() {
	c.cache.Close()
}

func (c *Cached) get(text string) ([]float32, bool) {
	v, ok := c.cache.Get(model.HashText(text))
	if !ok {
		return nil, false
	}
	vec, ok := v.([]float32)
	return vec, ok
}

func (c *Cached) set(text string, vec []float32) {
	if c.cache.Set(model.HashText(text), vec, 1) {
		c.cache.Wait()
	}
}

func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := c.get(text); ok {
		return vec, nil
	}

	vec, err := c.base.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.set(text, vec)
	return vec, nil
}

func (c *Cached) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	for i, text := range texts {
		if vec, ok := c.get(text); ok {
			result[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return result, nil
	}

	vectors, err := c.base.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missTexts) {
		return nil, goerr.New("unexpected number of embeddings",
			goerr.V("expected", len(missTexts)),
			goerr.V("actual", len(vectors)))
	}

	for i, idx := range missIdx {
		result[idx] = vectors[i]
		c.set(texts[idx], vectors[i])
	}
	return result, nil
}
