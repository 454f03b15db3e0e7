package errutil

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
)

// InternalServerErrorMessage is returned to clients instead of the actual error text for 5xx responses.
const InternalServerErrorMessage = "Internal server error"

// Handle logs the error with a message and returns it unchanged.
func Handle(ctx context.Context, err error, msg string) error {
	if err == nil {
		return nil
	}

	logger := logging.From(ctx)

	var ge *goerr.Error
	if errors.As(err, &ge) {
		logger.Error(msg,
			"error", err.Error(),
			"values", ge.Values(),
			"stack", ge.Stacks(),
		)
	} else {
		logger.Error(msg, "error", err.Error())
	}

	return err
}

// StatusCode maps domain sentinel errors to an HTTP status code.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// HandleHTTP logs the error and writes a JSON error response with the given status.
// 5xx responses carry a generic message so that internal details are not exposed.
func HandleHTTP(ctx context.Context, w http.ResponseWriter, err error, statusCode int) {
	if err == nil {
		return
	}

	logger := logging.From(ctx)

	var ge *goerr.Error
	if errors.As(err, &ge) {
		attrs := []any{
			"status", statusCode,
			"error", err.Error(),
			"values", ge.Values(),
		}
		if statusCode >= http.StatusInternalServerError {
			attrs = append(attrs, "stack", ge.Stacks())
			logger.Error("HTTP error", attrs...)
		} else {
			logger.Warn("HTTP error", attrs...)
		}
	} else if statusCode >= http.StatusInternalServerError {
		logger.Error("HTTP error", "status", statusCode, "error", err.Error())
	} else {
		logger.Warn("HTTP error", "status", statusCode, "error", err.Error())
	}

	detail := InternalServerErrorMessage
	if statusCode < http.StatusInternalServerError {
		detail = err.Error()
	}
	WriteDetail(w, statusCode, detail)
}

// WriteDetail writes {"detail": msg} with the status code.
func WriteDetail(w http.ResponseWriter, statusCode int, msg string) {
	data, err := json.Marshal(map[string]string{"detail": msg})
	if err != nil {
		http.Error(w, msg, statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(data) //nolint:errcheck // header already committed
}
