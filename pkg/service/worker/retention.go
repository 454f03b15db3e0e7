package worker

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/usecase"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
)

// BulkDeleter is the part of the memory use case the retention worker needs.
type BulkDeleter interface {
	BulkDelete(ctx context.Context, input usecase.BulkDeleteInput) (int, error)
}

// RetentionWorker periodically removes memories older than maxAge from every project.
//
// Architecture assumptions:
// - Single server instance (no distributed locking)
// - Pruning is idempotent, so overlapping runs from several instances are harmless
type RetentionWorker struct {
	memory   BulkDeleter
	maxAge   time.Duration
	interval time.Duration
	now      func() time.Time
	stopCh   chan struct{}
	doneCh   chan struct{}
}

type RetentionOption func(*RetentionWorker)

// WithNow replaces the clock used to compute the cutoff.
func WithNow(now func() time.Time) RetentionOption {
	return func(w *RetentionWorker) {
		w.now = now
	}
}

// NewRetentionWorker creates a new worker pruning memories older than maxAge every interval
func NewRetentionWorker(memory BulkDeleter, maxAge, interval time.Duration, opts ...RetentionOption) *RetentionWorker {
	w := &RetentionWorker{
		memory:   memory,
		maxAge:   maxAge,
		interval: interval,
		now:      time.Now,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins the background prune loop without blocking the caller
func (w *RetentionWorker) Start(ctx context.Context) error {
	if w.maxAge <= 0 {
		return goerr.New("retention must be positive", goerr.V("max_age", w.maxAge.String()))
	}
	if w.interval <= 0 {
		return goerr.New("retention interval must be positive", goerr.V("interval", w.interval.String()))
	}

	logging.From(ctx).Info("Retention worker starting",
		"max_age", w.maxAge.String(),
		"interval", w.interval.String())

	go w.run(ctx)

	return nil
}

// Stop signals the worker to stop and waits for completion
func (w *RetentionWorker) Stop() {
	logging.Default().Info("Retention worker stopping")
	close(w.stopCh)
	<-w.doneCh
	logging.Default().Info("Retention worker stopped")
}

func (w *RetentionWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	if err := w.prune(ctx); err != nil {
		logging.From(ctx).Error("Initial retention prune failed (will retry next interval)",
			"error", err.Error())
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.prune(ctx); err != nil {
				logging.From(ctx).Error("Retention prune failed (will retry next interval)",
					"error", err.Error())
			}

		case <-w.stopCh:
			return

		case <-ctx.Done():
			logging.From(ctx).Info("Retention worker context cancelled")
			return
		}
	}
}

func (w *RetentionWorker) prune(ctx context.Context) error {
	cutoff := w.now().Add(-w.maxAge).Unix()
	before := model.FormatTimestamp(cutoff)

	deleted, err := w.memory.BulkDelete(ctx, usecase.BulkDeleteInput{BeforeDate: before})
	if err != nil {
		return goerr.Wrap(err, "failed to prune expired memories", goerr.V(model.DateKey, before))
	}

	logging.From(ctx).Info("Retention prune completed",
		"deleted", deleted,
		"before", before)
	return nil
}
