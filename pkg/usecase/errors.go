package usecase

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
)

// Sentinel errors for use case layer. Each wraps a model sentinel so that
// callers can classify them with errors.Is.
var (
	ErrTextTooLong       = goerr.Wrap(model.ErrValidation, "text too long")
	ErrInvalidBeforeDate = goerr.Wrap(model.ErrValidation, "invalid before_date")
	ErrUnsupportedFormat = goerr.Wrap(model.ErrValidation, "unsupported export format")
	ErrInvalidSortOrder  = goerr.Wrap(model.ErrValidation, "invalid sort order")
	ErrEmptyMessage      = goerr.Wrap(model.ErrValidation, "chat message is empty")
	ErrMissingChatUser   = goerr.Wrap(model.ErrValidation, "chat requires a project to scope memories")
	ErrEmptyAnswer       = goerr.New("LLM returned no answer")
	ErrMemoryNotFound    = goerr.Wrap(model.ErrNotFound, "memory not found")
)

// Context keys for error values
const (
	TextLengthKey = "text_length"
	MaxLengthKey  = "max_length"
	SortKey       = "sort"
)
