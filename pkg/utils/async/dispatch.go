package async

import (
	"context"
	"time"

	"github.com/secmon-lab/mnemosyne/pkg/utils/errutil"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
)

// Dispatch runs handler as a named background task. The handler gets a fresh context
// that keeps the caller's logger, so it outlives the request or command that started it.
// Errors and panics are logged and never propagated.
func Dispatch(ctx context.Context, task string, handler func(ctx context.Context) error) {
	logger := logging.From(ctx).With("task", task)
	bgCtx := logging.With(context.Background(), logger)

	go func() {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic in async task", "panic", r)
			}
		}()

		if err := handler(bgCtx); err != nil {
			_ = errutil.Handle(bgCtx, err, "async task failed")
			return
		}
		logger.Debug("async task finished", "duration", time.Since(start).String())
	}()
}
