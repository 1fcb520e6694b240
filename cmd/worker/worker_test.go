package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"clinicledger/internal/config"
	"clinicledger/internal/infrastructure/storage/memory"
	"clinicledger/pkg/logger"
)

type fakeOutbox struct {
	batches  []int
	calls    int
	batchErr error
	dlq      int
	purged   time.Duration
}

func (f *fakeOutbox) ProcessBatch(ctx context.Context) (int, error) {
	if f.batchErr != nil {
		return 0, f.batchErr
	}
	if f.calls >= len(f.batches) {
		return 0, nil
	}
	n := f.batches[f.calls]
	f.calls++
	return n, nil
}

func (f *fakeOutbox) MoveToDLQ(ctx context.Context) (int64, error) {
	f.dlq++
	return 0, nil
}

func (f *fakeOutbox) PurgePublished(ctx context.Context, retention time.Duration) (int64, error) {
	f.purged = retention
	return 3, nil
}

func TestDrainStopsOnShortBatch(t *testing.T) {
	outbox := &fakeOutbox{batches: []int{2, 2, 1, 2}}
	w := NewWorker(outbox, memory.New(), config.OutboxConfig{BatchSize: 2}, logger.Nop())

	total := w.drain(context.Background())

	assert.Equal(t, 5, total)
	assert.Equal(t, 3, outbox.calls)
}

func TestDrainStopsOnError(t *testing.T) {
	outbox := &fakeOutbox{batchErr: errors.New("redis down")}
	w := NewWorker(outbox, memory.New(), config.OutboxConfig{BatchSize: 2}, logger.Nop())

	assert.Equal(t, 0, w.drain(context.Background()))
}

func TestSweep(t *testing.T) {
	outbox := &fakeOutbox{}
	w := NewWorker(outbox, memory.New(), config.OutboxConfig{PublishedRetention: 48 * time.Hour}, logger.Nop())

	w.sweep(context.Background())

	assert.Equal(t, 1, outbox.dlq)
	assert.Equal(t, 48*time.Hour, outbox.purged)
}

func TestRunStopsOnCancel(t *testing.T) {
	outbox := &fakeOutbox{}
	w := NewWorker(outbox, memory.New(), config.OutboxConfig{PollInterval: time.Millisecond}, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
