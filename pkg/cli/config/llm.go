package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gollem/llm/gemini"
	"github.com/urfave/cli/v3"
)

// LLM holds CLI flags for the chat model. The Gemini project and location
// are shared with the Vectorizer flag group.
type LLM struct {
	model string
}

// Flags returns CLI flags for chat model configuration
func (l *LLM) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "chat-model",
			Usage:       "Gemini model used to answer and to summarize facts",
			Value:       gemini.DefaultModel,
			Category:    "Chat",
			Sources:     cli.EnvVars("MNEMOSYNE_CHAT_MODEL"),
			Destination: &l.model,
		},
	}
}

func (l LLM) LogValue() slog.Value {
	return slog.GroupValue(slog.String("model", l.model))
}

// Configure creates the chat client from the Gemini settings of gcp.
func (l *LLM) Configure(ctx context.Context, gcp *Vectorizer) (gollem.LLMClient, error) {
	if gcp.projectID == "" {
		return nil, ErrMissingGemini
	}
	return newGeminiClient(ctx, gcp.projectID, gcp.location, geminiModels{chat: l.model})
}
