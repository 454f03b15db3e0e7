package config

import (
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// Memory holds CLI flags for memory engine limits
type Memory struct {
	maxTextLength int
	searchLimit   int
	threshold     float64
}

// Flags returns CLI flags for memory engine configuration
func (m *Memory) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "max-text-length",
			Usage:       "Maximum number of characters in a saved memory",
			Value:       usecase.DefaultMaxTextLength,
			Category:    "Memory",
			Sources:     cli.EnvVars("MNEMOSYNE_MAX_TEXT_LENGTH"),
			Destination: &m.maxTextLength,
		},
		&cli.IntFlag{
			Name:        "default-search-limit",
			Usage:       "Number of search results when no limit is given",
			Value:       usecase.DefaultSearchLimit,
			Category:    "Memory",
			Sources:     cli.EnvVars("MNEMOSYNE_DEFAULT_SEARCH_LIMIT"),
			Destination: &m.searchLimit,
		},
		&cli.FloatFlag{
			Name:        "similarity-threshold",
			Usage:       "Minimum cosine similarity for search results when no threshold is given",
			Value:       usecase.DefaultSimilarityThreshold,
			Category:    "Memory",
			Sources:     cli.EnvVars("MNEMOSYNE_SIMILARITY_THRESHOLD"),
			Destination: &m.threshold,
		},
	}
}

func (m Memory) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("max_text_length", m.maxTextLength),
		slog.Int("default_search_limit", m.searchLimit),
		slog.Float64("similarity_threshold", m.threshold),
	)
}

// Configure validates the limits and returns them as use case options
func (m *Memory) Configure() ([]usecase.MemoryOption, error) {
	if m.maxTextLength <= 0 {
		return nil, goerr.Wrap(ErrInvalidConfig, "max-text-length must be positive", goerr.V("max_text_length", m.maxTextLength))
	}
	if m.searchLimit <= 0 {
		return nil, goerr.Wrap(ErrInvalidConfig, "default-search-limit must be positive", goerr.V("default_search_limit", m.searchLimit))
	}
	if m.threshold < 0 || m.threshold > 1 {
		return nil, goerr.Wrap(ErrInvalidConfig, "similarity-threshold must be between 0 and 1", goerr.V("similarity_threshold", m.threshold))
	}

	return []usecase.MemoryOption{
		usecase.WithMaxTextLength(m.maxTextLength),
		usecase.WithDefaultSearchLimit(m.searchLimit),
		usecase.WithSimilarityThreshold(m.threshold),
	}, nil
}
