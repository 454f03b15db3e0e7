package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gollem/llm/gemini"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/service/embedding"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

const (
	VectorizerHash   = "hash"
	VectorizerGemini = "gemini"

	DefaultEmbeddingModel = "gemini-embedding-001"
	DefaultCacheSize      = 10000
)

// Vectorizer holds CLI flags for the embedding backend
type Vectorizer struct {
	backend   string
	model     string
	dimension int
	batchSize int
	cacheSize int
	projectID string
	location  string
}

// Flags returns CLI flags for vectorizer configuration
func (v *Vectorizer) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "vectorizer",
			Usage:       "Embedding backend (hash or gemini)",
			Value:       VectorizerHash,
			Category:    "Embedding",
			Sources:     cli.EnvVars("MNEMOSYNE_VECTORIZER"),
			Destination: &v.backend,
		},
		&cli.StringFlag{
			Name:        "embedding-model",
			Usage:       "Gemini embedding model",
			Value:       DefaultEmbeddingModel,
			Category:    "Embedding",
			Sources:     cli.EnvVars("MNEMOSYNE_EMBEDDING_MODEL"),
			Destination: &v.model,
		},
		&cli.IntFlag{
			Name:        "embedding-dimension",
			Usage:       "Embedding vector dimension",
			Value:       embedding.DefaultDimension,
			Category:    "Embedding",
			Sources:     cli.EnvVars("MNEMOSYNE_EMBEDDING_DIMENSION"),
			Destination: &v.dimension,
		},
		&cli.IntFlag{
			Name:        "embedding-batch-size",
			Usage:       "Number of texts per embedding request",
			Value:       embedding.DefaultBatchSize,
			Category:    "Embedding",
			Sources:     cli.EnvVars("MNEMOSYNE_EMBEDDING_BATCH_SIZE"),
			Destination: &v.batchSize,
		},
		&cli.IntFlag{
			Name:        "embedding-cache-size",
			Usage:       "Number of embeddings kept in memory (0 disables the cache)",
			Value:       DefaultCacheSize,
			Category:    "Embedding",
			Sources:     cli.EnvVars("MNEMOSYNE_EMBEDDING_CACHE_SIZE"),
			Destination: &v.cacheSize,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini API",
			Category:    "Embedding",
			Sources:     cli.EnvVars("MNEMOSYNE_GEMINI_PROJECT"),
			Destination: &v.projectID,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini API",
			Value:       "us-central1",
			Category:    "Embedding",
			Sources:     cli.EnvVars("MNEMOSYNE_GEMINI_LOCATION"),
			Destination: &v.location,
		},
	}
}

func (v Vectorizer) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("backend", v.backend),
		slog.String("model", v.model),
		slog.Int("dimension", v.dimension),
		slog.Int("batch_size", v.batchSize),
		slog.Int("cache_size", v.cacheSize),
		slog.String("gemini_project", v.projectID),
		slog.String("gemini_location", v.location),
	)
}

// Configure creates the vectorizer. The gemini client is not created until
// the first embedding request or an explicit warmup.
func (v *Vectorizer) Configure(ctx context.Context) (interfaces.Vectorizer, error) {
	base, err := v.configureBase()
	if err != nil {
		return nil, err
	}

	if v.cacheSize <= 0 {
		return base, nil
	}

	cached, err := embedding.NewCached(base, int64(v.cacheSize))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create embedding cache")
	}
	logging.From(ctx).Debug("Embedding cache enabled", "size", v.cacheSize)
	return cached, nil
}

// geminiModels selects the models of a Gemini client. Empty fields keep gollem's defaults.
type geminiModels struct {
	embedding string
	chat      string
}

// newGeminiClient creates a gollem Gemini client. Replaced in tests.
var newGeminiClient = func(ctx context.Context, projectID, location string, models geminiModels) (gollem.LLMClient, error) {
	var opts []gemini.Option
	if models.embedding != "" {
		opts = append(opts, gemini.WithEmbeddingModel(models.embedding))
	}
	if models.chat != "" {
		opts = append(opts, gemini.WithModel(models.chat))
	}

	client, err := gemini.New(ctx, projectID, location, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Gemini client",
			goerr.V("project", projectID),
			goerr.V("location", location))
	}
	return client, nil
}

func (v *Vectorizer) configureBase() (interfaces.Vectorizer, error) {
	switch v.backend {
	case VectorizerHash:
		h, err := embedding.NewHash(v.dimension)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create hash vectorizer")
		}
		return h, nil

	case VectorizerGemini:
		if v.projectID == "" {
			return nil, ErrMissingGemini
		}
		projectID, location, model := v.projectID, v.location, v.model
		loader := func(ctx context.Context) (embedding.EmbeddingClient, error) {
			return newGeminiClient(ctx, projectID, location, geminiModels{embedding: model})
		}

		g, err := embedding.NewGemini(loader,
			embedding.WithModelName(v.model),
			embedding.WithDimension(v.dimension),
			embedding.WithBatchSize(v.batchSize),
		)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create gemini vectorizer")
		}
		return g, nil

	default:
		return nil, goerr.Wrap(ErrInvalidConfig, "invalid vectorizer", goerr.V(VectorizerKey, v.backend))
	}
}
