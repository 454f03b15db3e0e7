package usecase_test

import (
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/usecase"
)

func TestErrors_Classification(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
	}{
		{"ErrTextTooLong", usecase.ErrTextTooLong, model.ErrValidation},
		{"ErrInvalidBeforeDate", usecase.ErrInvalidBeforeDate, model.ErrValidation},
		{"ErrUnsupportedFormat", usecase.ErrUnsupportedFormat, model.ErrValidation},
		{"ErrInvalidSortOrder", usecase.ErrInvalidSortOrder, model.ErrValidation},
		{"ErrMemoryNotFound", usecase.ErrMemoryNotFound, model.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gt.Error(t, tt.err).Is(tt.target)
		})
	}
}

func TestErrors_ErrorsAreDistinct(t *testing.T) {
	gt.Bool(t, errors.Is(usecase.ErrMemoryNotFound, model.ErrValidation)).False()
	gt.Bool(t, errors.Is(usecase.ErrTextTooLong, model.ErrNotFound)).False()
}
