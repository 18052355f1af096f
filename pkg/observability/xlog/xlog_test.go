package xlog_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/omeyang/xprioq/pkg/observability/xlog"
)

func build(t *testing.T, b *xlog.Builder) xlog.LoggerWithLevel {
	t.Helper()
	logger, cleanup, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, cleanup()) })
	return logger
}

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := build(t, xlog.New().SetOutput(&buf).SetLevel(xlog.LevelWarn))
	ctx := context.Background()

	logger.Debug(ctx, "debug message")
	logger.Info(ctx, "info message")
	logger.Warn(ctx, "warn message")
	logger.Error(ctx, "error message", xlog.Err(errors.New("boom")))

	out := buf.String()
	assert.NotContains(t, out, "debug message")
	assert.NotContains(t, out, "info message")
	assert.Contains(t, out, "warn message")
	assert.Contains(t, out, "error=boom")

	logger.SetLevel(xlog.LevelDebug)
	assert.Equal(t, xlog.LevelDebug, logger.GetLevel())
	assert.True(t, logger.Enabled(ctx, xlog.LevelDebug))
	logger.Debug(ctx, "now visible")
	assert.Contains(t, buf.String(), "now visible")
}

func TestLogger_WithSharesLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := build(t, xlog.New().SetOutput(&buf))
	child := logger.With(xlog.Queue("orders"))

	child.Debug(context.Background(), "hidden")
	logger.SetLevel(xlog.LevelDebug)
	child.Debug(context.Background(), "shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "queue=orders")
	assert.Same(t, logger, logger.With())
}

func TestLogger_JSONWithTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := build(t, xlog.New().SetOutput(&buf).SetFormat("JSON"))

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
		SpanID:     trace.SpanID{1, 2, 3, 4, 5, 6, 7, 8},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	logger.Info(ctx, "traced", xlog.Count(3), xlog.Duration(time.Second))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "traced", rec["msg"])
	assert.Equal(t, sc.TraceID().String(), rec[xlog.KeyTraceID])
	assert.Equal(t, sc.SpanID().String(), rec[xlog.KeySpanID])
	assert.EqualValues(t, 3, rec[xlog.KeyCount])
	assert.Equal(t, "1s", rec[xlog.KeyDuration])
}

func TestLogger_NoEnrich(t *testing.T) {
	var buf bytes.Buffer
	logger := build(t, xlog.New().SetOutput(&buf).SetEnrich(false))
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{1},
		SpanID:  trace.SpanID{1},
	})
	logger.Info(trace.ContextWithSpanContext(context.Background(), sc), "plain")
	assert.NotContains(t, buf.String(), xlog.KeyTraceID)
}

func TestBuilder_Errors(t *testing.T) {
	_, _, err := xlog.New().SetFormat("xml").Build()
	assert.ErrorIs(t, err, xlog.ErrUnknownFormat)

	_, _, err = xlog.New().SetLevelString("verbose").Build()
	assert.ErrorIs(t, err, xlog.ErrUnknownLevel)

	_, _, err = xlog.New().SetRotation("  ").Build()
	assert.ErrorIs(t, err, xlog.ErrEmptyFilename)

	// first-error-wins
	_, _, err = xlog.New().SetFormat("xml").SetLevelString("verbose").Build()
	assert.ErrorIs(t, err, xlog.ErrUnknownFormat)
}

func TestBuilder_Rotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	logger, cleanup, err := xlog.New().
		SetRotation(path, xlog.WithMaxSizeMB(1), xlog.WithMaxBackups(1), xlog.WithCompress(false)).
		Build()
	require.NoError(t, err)

	logger.Info(context.Background(), "to file")
	require.NoError(t, cleanup())
	require.NoError(t, cleanup())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want xlog.Level
	}{
		{"debug", xlog.LevelDebug},
		{" INFO ", xlog.LevelInfo},
		{"", xlog.LevelInfo},
		{"warning", xlog.LevelWarn},
		{"Error", xlog.LevelError},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := xlog.ParseLevel(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	var l xlog.Level
	require.NoError(t, l.UnmarshalText([]byte("warn")))
	assert.Equal(t, "WARN", l.String())
	assert.Error(t, l.UnmarshalText([]byte("nope")))
}

func TestDiscard(t *testing.T) {
	d := xlog.Discard()
	d.Info(context.Background(), "ignored", slog.String("k", "v"))
	assert.NotNil(t, d.With(slog.Int("n", 1)))
}
