package usecase

import (
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
)

type UseCases struct {
	vectorizer    interfaces.Vectorizer
	memoryOptions []MemoryOption
	llmClient     gollem.LLMClient

	Memory *MemoryUseCase
	Chat   *ChatUseCase // nil unless an LLM client is configured
}

type Option func(*UseCases)

func WithMemoryOptions(opts ...MemoryOption) Option {
	return func(uc *UseCases) {
		uc.memoryOptions = append(uc.memoryOptions, opts...)
	}
}

func WithLLMClient(client gollem.LLMClient) Option {
	return func(uc *UseCases) {
		uc.llmClient = client
	}
}

func New(repo interfaces.Repository, vectorizer interfaces.Vectorizer, opts ...Option) *UseCases {
	uc := &UseCases{
		vectorizer: vectorizer,
	}

	for _, opt := range opts {
		opt(uc)
	}

	uc.Memory = NewMemoryUseCase(repo, vectorizer, uc.memoryOptions...)
	if uc.llmClient != nil {
		uc.Chat = NewChatUseCase(uc.Memory, uc.llmClient)
	}

	return uc
}

// Vectorizer returns the embedding backend, used to warm it up at startup.
func (uc *UseCases) Vectorizer() interfaces.Vectorizer {
	return uc.vectorizer
}
