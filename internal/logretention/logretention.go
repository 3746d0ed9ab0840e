// Package logretention prunes delivery history rows older than the configured
// age. The core pipeline never deletes history itself; this worker is the
// retention hook around it.
package logretention

import (
	"context"
	"errors"
	"time"

	"github.com/ferriqa/ferriqa/internal/logging"
	"github.com/ferriqa/ferriqa/internal/logstore"
	"go.uber.org/zap"
)

type Worker struct {
	history  logstore.LogStore
	maxAge   time.Duration
	interval time.Duration
	logger   *logging.Logger

	now func() time.Time
}

func NewWorker(history logstore.LogStore, maxAge, interval time.Duration, logger *logging.Logger) (*Worker, error) {
	if maxAge <= 0 {
		return nil, errors.New("retention max age must be positive")
	}
	if interval <= 0 {
		return nil, errors.New("retention interval must be positive")
	}
	return &Worker{
		history:  history,
		maxAge:   maxAge,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Run prunes once immediately, then on every interval until the context is
// cancelled. A failed prune is logged and retried at the next interval.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.RunOnce(ctx); err != nil {
		w.logger.Ctx(ctx).Error("history retention prune failed", zap.Error(err))
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.RunOnce(ctx); err != nil {
				w.logger.Ctx(ctx).Error("history retention prune failed", zap.Error(err))
			}
		}
	}
}

func (w *Worker) RunOnce(ctx context.Context) error {
	cutoff := w.now().Add(-w.maxAge)
	deleted, err := w.history.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return err
	}
	if deleted > 0 {
		w.logger.Ctx(ctx).Info("pruned delivery history",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff))
	}
	return nil
}
