package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  LogConfig
		wantErr bool
	}{
		{
			name:   "json to stdout",
			config: LogConfig{Level: "info", Format: "json", Output: "stdout"},
		},
		{
			name:   "console format",
			config: LogConfig{Level: "debug", Format: "console", Output: "stdout"},
		},
		{
			name:   "stderr output",
			config: LogConfig{Level: "warn", Format: "json", Output: "stderr"},
		},
		{
			name:    "invalid level",
			config:  LogConfig{Level: "loud", Format: "json", Output: "stdout"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			logger, err := NewLogger(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, logger)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func newObservedLogger() (Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewLoggerFromZap(zap.New(core)), logs
}

func TestZapLogger_Methods(t *testing.T) {
	t.Parallel()

	logger, logs := newObservedLogger()

	logger.Debug("debug", String("k", "v"))
	logger.Info("info")
	logger.Warn("warn")
	logger.Error("error", Int("code", 1))

	require.Equal(t, 4, logs.Len())
	entries := logs.All()
	assert.Equal(t, "debug", entries[0].Message)
	assert.Equal(t, "v", entries[0].ContextMap()["k"])
	assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
}

func TestZapLogger_WithAndNamed(t *testing.T) {
	t.Parallel()

	logger, logs := newObservedLogger()

	logger.With(String("component", "filter")).Named("fields").Info("hello")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "fields", entry.LoggerName)
	assert.Equal(t, "filter", entry.ContextMap()["component"])
}

func TestZapLogger_WithContext(t *testing.T) {
	t.Parallel()

	logger, logs := newObservedLogger()

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithTraceID(ctx, "trace-1")
	logger.WithContext(ctx).Info("with ids")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "trace-1", fields["trace_id"])
}

func TestZapLogger_WithContext_EmptyContext(t *testing.T) {
	t.Parallel()

	logger, _ := newObservedLogger()

	assert.Same(t, logger, logger.WithContext(context.Background()))
	//nolint:staticcheck // nil context is handled
	assert.Same(t, logger, logger.WithContext(nil))
}

func TestContextIDs_Empty(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	assert.Empty(t, RequestIDFromContext(ctx))
	assert.Empty(t, TraceIDFromContext(ctx))
}

func TestNopLogger(t *testing.T) {
	t.Parallel()

	logger := NopLogger()
	require.NotNil(t, logger)

	assert.NotPanics(t, func() {
		logger.Debug("d")
		logger.Info("i")
		logger.Warn("w")
		logger.Error("e")
		logger.With(String("a", "b")).Named("x").WithContext(context.Background()).Info("i")
		_ = logger.Sync()
	})
}

func TestNewEncoder(t *testing.T) {
	t.Parallel()

	entry := zapcore.Entry{Level: zapcore.InfoLevel, Message: "parsed"}
	fields := []zapcore.Field{zap.Duration("took", 1500*time.Millisecond)}

	buf, err := newEncoder("json").EncodeEntry(entry, fields)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"msg":"parsed"`)
	assert.Contains(t, buf.String(), `"took":"1.5s"`)
	assert.Contains(t, buf.String(), `"ts":`)

	buf, err = newEncoder("console").EncodeEntry(entry, nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "parsed")
	assert.NotContains(t, buf.String(), `"msg"`)
}

func TestNewLoggerFromZap_Nil(t *testing.T) {
	t.Parallel()

	assert.NotNil(t, NewLoggerFromZap(nil))
}
