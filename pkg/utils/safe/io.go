package safe

import (
	"context"
	"io"
	"log/slog"

	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
)

// drainLimit caps how much of an unread request body is discarded before closing.
const drainLimit = 64 << 10

// Close closes c and logs a failure under name. A nil closer is ignored.
func Close(ctx context.Context, name string, c io.Closer) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		logging.From(ctx).Error("Failed to close", slog.String("target", name), slog.Any("error", err))
	}
}

// Drain discards the unread part of body and closes it so the connection can be reused.
func Drain(ctx context.Context, body io.ReadCloser) {
	if body == nil {
		return
	}
	if _, err := io.CopyN(io.Discard, body, drainLimit); err != nil && err != io.EOF {
		logging.From(ctx).Debug("Failed to drain body", slog.Any("error", err))
	}
	Close(ctx, "body", body)
}

// Write writes data to w. A failed write usually means the client went away.
func Write(ctx context.Context, w io.Writer, data []byte) {
	if w == nil {
		return
	}
	if _, err := w.Write(data); err != nil {
		logging.From(ctx).Warn("Failed to write response", slog.Int("size", len(data)), slog.Any("error", err))
	}
}
