package main

import (
	"context"
	"time"

	"clinicledger/internal/config"
	"clinicledger/internal/core/idempotency"
	"clinicledger/pkg/logger"
)

const sweepInterval = time.Hour

// Outbox is the relay side of the transactional outbox.
type Outbox interface {
	ProcessBatch(ctx context.Context) (int, error)
	MoveToDLQ(ctx context.Context) (int64, error)
	PurgePublished(ctx context.Context, retention time.Duration) (int64, error)
}

// Worker drains the outbox and sweeps expired system rows.
type Worker struct {
	outbox      Outbox
	idempotency idempotency.Store
	cfg         config.OutboxConfig
	log         *logger.Logger
}

// NewWorker creates a worker.
func NewWorker(outbox Outbox, idem idempotency.Store, cfg config.OutboxConfig, log *logger.Logger) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Worker{
		outbox:      outbox,
		idempotency: idem,
		cfg:         cfg,
		log:         log.WithComponent("worker"),
	}
}

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	sweepTicker := time.NewTicker(sweepInterval)
	defer sweepTicker.Stop()

	w.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.drain(ctx)
		case <-sweepTicker.C:
			w.sweep(ctx)
		}
	}
}

// drain relays batches until one comes back short.
func (w *Worker) drain(ctx context.Context) int {
	total := 0
	for ctx.Err() == nil {
		n, err := w.outbox.ProcessBatch(ctx)
		if err != nil {
			w.log.Errorw("outbox batch failed", "error", err)
			return total
		}
		total += n
		if n < w.cfg.BatchSize {
			break
		}
	}
	if total > 0 {
		w.log.Debugw("relayed outbox messages", "count", total)
	}
	return total
}

func (w *Worker) sweep(ctx context.Context) {
	if moved, err := w.outbox.MoveToDLQ(ctx); err != nil {
		w.log.Errorw("move to DLQ failed", "error", err)
	} else if moved > 0 {
		w.log.Warnw("moved failed outbox messages to DLQ", "count", moved)
	}

	if w.cfg.PublishedRetention > 0 {
		if purged, err := w.outbox.PurgePublished(ctx, w.cfg.PublishedRetention); err != nil {
			w.log.Errorw("purge published outbox failed", "error", err)
		} else if purged > 0 {
			w.log.Infow("purged published outbox messages", "count", purged)
		}
	}

	if removed, err := w.idempotency.CleanupExpired(ctx); err != nil {
		w.log.Errorw("idempotency cleanup failed", "error", err)
	} else if removed > 0 {
		w.log.Infow("cleaned up idempotency keys", "count", removed)
	}
}
