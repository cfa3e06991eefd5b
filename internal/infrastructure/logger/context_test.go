package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

func TestLoggerRoundTrip(t *testing.T) {
	base, _ := observedLogger()
	ctx := WithContext(context.Background(), base)
	assert.Same(t, base, FromContext(ctx))
}

func TestFromContextWithoutLogger(t *testing.T) {
	l := FromContext(context.Background())
	require.NotNil(t, l)
	// no-op loggers accept writes without panicking
	l.Info("ignored")
}

func TestEnrichment(t *testing.T) {
	base, logs := observedLogger()
	ctx := context.Background()

	ctx, l := WithRequestID(ctx, base, "req-7")
	ctx, l = WithTenantID(ctx, l, "tnt-1")
	ctx, l = WithUserID(ctx, l, "usr-9")

	l.Info("feature gate evaluated")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-7", fields["request_id"])
	assert.Equal(t, "tnt-1", fields["tenant_id"])
	assert.Equal(t, "usr-9", fields["user_id"])

	// the IDs are also readable from the context itself
	assert.Equal(t, "req-7", RequestID(ctx))
	assert.Equal(t, "tnt-1", TenantID(ctx))
	assert.Equal(t, "usr-9", UserID(ctx))

	// and the enriched logger is what FromContext now returns
	FromContext(ctx).Warn("quota check denied")
	assert.Equal(t, "tnt-1", logs.All()[1].ContextMap()["tenant_id"])
}

func TestAccessorsOnEmptyContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestID(ctx))
	assert.Empty(t, TenantID(ctx))
	assert.Empty(t, UserID(ctx))
}
