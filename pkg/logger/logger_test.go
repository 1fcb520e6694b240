package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	appctx "clinicledger/internal/core/context"
)

func TestWithContext_AddsTraceAndActor(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	log := &Logger{zap.New(core).Sugar()}

	ctx := appctx.WithTrace(context.Background(), &appctx.TraceContext{TraceID: "t-1", RequestID: "r-1"})
	ctx = appctx.WithActor(ctx, &appctx.Actor{ID: "dr-ramos", Source: "http"})
	ctx = WithLogger(ctx, log)

	Info(ctx, "movement recorded", "item_id", "abc")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "t-1", fields["trace_id"])
	assert.Equal(t, "r-1", fields["request_id"])
	assert.Equal(t, "dr-ramos", fields["actor_id"])
	assert.Equal(t, "abc", fields["item_id"])
}

func TestNew_InvalidLevelFallsBackToInfo(t *testing.T) {
	log, err := New(Config{Level: "loud", OutputPaths: []string{"stdout"}})
	require.NoError(t, err)
	assert.True(t, log.Desugar().Core().Enabled(zap.InfoLevel))
	assert.False(t, log.Desugar().Core().Enabled(zap.DebugLevel))
}
