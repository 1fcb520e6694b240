//go:build integration

package locker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bsm/redislock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"

	"clinicledger/internal/infrastructure/eventbus"
	"clinicledger/internal/infrastructure/locker"
)

func newLocker(t *testing.T, ttl time.Duration) *locker.Locker {
	t.Helper()
	ctx := context.Background()

	rdC, err := tcRedis.RunContainer(ctx, testcontainers.WithImage("redis:7-alpine"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(ctx) })

	url, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)

	rdb, err := eventbus.NewRedis(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	return locker.New(redislock.New(rdb), "test:", ttl)
}

func TestRunIsExclusive(t *testing.T) {
	lk := newLocker(t, time.Second)
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	firstDone := make(chan error, 1)
	go func() {
		firstDone <- lk.Run(ctx, "backfill", func(ctx context.Context) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	err := lk.Run(ctx, "backfill", func(ctx context.Context) error { return nil })
	assert.True(t, errors.Is(err, locker.ErrBusy), "got %v", err)

	// Other names are independent.
	require.NoError(t, lk.Run(ctx, "reconcile", func(ctx context.Context) error { return nil }))

	close(release)
	require.NoError(t, <-firstDone)

	require.NoError(t, lk.Run(ctx, "backfill", func(ctx context.Context) error { return nil }))
}

func TestRunRefreshesLongJobs(t *testing.T) {
	lk := newLocker(t, 200*time.Millisecond)
	ctx := context.Background()

	err := lk.Run(ctx, "slow", func(ctx context.Context) error {
		select {
		case <-time.After(600 * time.Millisecond):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	require.NoError(t, err)
}

func TestRunReturnsFnError(t *testing.T) {
	lk := newLocker(t, time.Second)
	boom := errors.New("boom")

	err := lk.Run(context.Background(), "job", func(ctx context.Context) error { return boom })

	assert.ErrorIs(t, err, boom)
}
