package config

import (
	"context"

	"github.com/m-mizutani/gollem"
)

// NewRepositoryForTest creates a Repository config for testing purposes
func NewRepositoryForTest(backend, dbPath string) *Repository {
	return &Repository{
		backend: backend,
		dbPath:  dbPath,
	}
}

// NewVectorizerForTest creates a Vectorizer config for testing purposes
func NewVectorizerForTest(backend string, dimension, cacheSize int, projectID string) *Vectorizer {
	return &Vectorizer{
		backend:   backend,
		model:     DefaultEmbeddingModel,
		dimension: dimension,
		batchSize: 32,
		cacheSize: cacheSize,
		projectID: projectID,
		location:  "us-central1",
	}
}

// NewMemoryForTest creates a Memory config for testing purposes
func NewMemoryForTest(maxTextLength, searchLimit int, threshold float64) *Memory {
	return &Memory{
		maxTextLength: maxTextLength,
		searchLimit:   searchLimit,
		threshold:     threshold,
	}
}

// NewLoggerForTest creates a Logger config for testing purposes
func NewLoggerForTest(level, format, output string) *Logger {
	return &Logger{
		level:  level,
		format: format,
		output: output,
	}
}

// NewGeminiVectorizerForTest creates a gemini Vectorizer config without cache
func NewGeminiVectorizerForTest(model string) *Vectorizer {
	return &Vectorizer{
		backend:   VectorizerGemini,
		model:     model,
		dimension: 768,
		batchSize: 32,
		projectID: "test-project",
		location:  "us-central1",
	}
}

// NewLLMForTest creates an LLM config for testing purposes
func NewLLMForTest(model string) *LLM {
	return &LLM{model: model}
}

// ReplaceGeminiClient swaps the Gemini client factory and returns a function restoring it.
func ReplaceGeminiClient(fn func(projectID, location, embeddingModel, chatModel string) (gollem.LLMClient, error)) func() {
	orig := newGeminiClient
	newGeminiClient = func(ctx context.Context, projectID, location string, models geminiModels) (gollem.LLMClient, error) {
		return fn(projectID, location, models.embedding, models.chat)
	}
	return func() { newGeminiClient = orig }
}
