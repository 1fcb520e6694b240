// Package locker runs maintenance jobs under a Redis lock so that only one
// instance touches folios or counters at a time.
package locker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"

	"clinicledger/pkg/logger"
)

// ErrBusy is returned when another process holds the lock.
var ErrBusy = errors.New("lock is held by another process")

// Locker obtains named locks.
type Locker struct {
	client *redislock.Client
	prefix string
	ttl    time.Duration
}

// New creates a locker over a redislock client. Lock keys are prefix+name.
func New(client *redislock.Client, prefix string, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Locker{client: client, prefix: prefix, ttl: ttl}
}

// Run executes fn while holding the lock name. The lock is refreshed every
// ttl/2 while fn runs; losing it cancels fn's context.
func (l *Locker) Run(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	key := l.prefix + name
	lock, err := l.client.Obtain(ctx, key, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return fmt.Errorf("%s: %w", key, ErrBusy)
	}
	if err != nil {
		return fmt.Errorf("obtain lock %s: %w", key, err)
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			logger.Warn(ctx, "release lock failed", "key", key, "error", err)
		}
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(l.ttl / 2)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := lock.Refresh(runCtx, l.ttl, nil); err != nil {
					logger.Error(ctx, "lost maintenance lock", "key", key, "error", err)
					cancel()
					return
				}
			}
		}
	}()

	return fn(runCtx)
}
