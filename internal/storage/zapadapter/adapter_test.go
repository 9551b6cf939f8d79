package zapadapter

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	pl := NewLogger(zap.New(core), "chat")

	ctx := NewContextWithID(context.Background(), "req-1")
	pl.Log(ctx, pgx.LogLevelWarn, "slow query", map[string]interface{}{"sql": "select 1"})

	entries := logs.AllUntimed()
	require.Len(t, entries, 1)
	require.Equal(t, zapcore.WarnLevel, entries[0].Level)
	require.Equal(t, "slow query", entries[0].Message)

	fields := entries[0].ContextMap()
	require.Equal(t, "chat", fields["database"])
	require.Equal(t, "req-1", fields["request_id"])
	require.Equal(t, "select 1", fields["sql"])
}

func TestLogger_Levels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	pl := NewLogger(zap.New(core), "chat")

	pl.Log(context.Background(), pgx.LogLevelTrace, "trace", nil)
	pl.Log(context.Background(), pgx.LogLevelInfo, "info", nil)
	pl.Log(context.Background(), pgx.LogLevelError, "error", nil)
	pl.Log(context.Background(), pgx.LogLevel(42), "unknown", nil)

	entries := logs.AllUntimed()
	require.Len(t, entries, 4)
	require.Equal(t, zapcore.DebugLevel, entries[0].Level)
	require.Contains(t, entries[0].ContextMap(), "pgx_level")
	require.Equal(t, zapcore.InfoLevel, entries[1].Level)
	require.NotContains(t, entries[1].ContextMap(), "request_id")
	require.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	require.Equal(t, zapcore.ErrorLevel, entries[3].Level)
	require.Contains(t, entries[3].ContextMap(), "pgx_level")
}

func TestLogger_BelowLevel(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	pl := NewLogger(zap.New(core), "chat")

	pl.Log(context.Background(), pgx.LogLevelDebug, "debug", nil)

	require.Zero(t, logs.Len())
}

func TestMongoSink(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ms := NewMongoSink(zap.New(core))

	ms.Info(0, "connection ready", "serverHost", "db", "serverPort", 27017)
	ms.Info(1, "command started")
	ms.Error(errors.New("refused"), "connection failed", "dangling")

	entries := logs.AllUntimed()
	require.Len(t, entries, 3)
	require.Equal(t, zapcore.InfoLevel, entries[0].Level)
	require.Equal(t, "db", entries[0].ContextMap()["serverHost"])
	require.Equal(t, zapcore.DebugLevel, entries[1].Level)
	require.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	require.Equal(t, "refused", entries[2].ContextMap()["error"])
}

func TestIDFromContext(t *testing.T) {
	_, ok := IDFromContext(context.Background())
	require.False(t, ok)

	id, ok := IDFromContext(NewContextWithID(context.Background(), "abc"))
	require.True(t, ok)
	require.Equal(t, "abc", id)
}
