package log

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewHandler(t *testing.T) {
	var buf bytes.Buffer

	slog.New(NewHandler(&buf, "warn", "json")).Warn("decided", "action_id", "a-1")
	assert.Contains(t, buf.String(), `"action_id":"a-1"`)

	buf.Reset()
	slog.New(NewHandler(&buf, "warn", "text")).Info("hidden")
	assert.Empty(t, buf.String())
}

func TestFromContext(t *testing.T) {
	assert.Equal(t, slog.Default(), FromContext(context.Background()))

	var buf bytes.Buffer

	logger := slog.New(slog.NewTextHandler(&buf, nil)).With("tenant_id", "acme")
	ctx := WithLogger(context.Background(), logger)

	FromContext(ctx).Info("decided")
	assert.Contains(t, buf.String(), "tenant_id=acme")
}

func TestFromContextOr(t *testing.T) {
	fallback := slog.New(slog.DiscardHandler)
	assert.Same(t, fallback, FromContextOr(context.Background(), fallback))

	scoped := slog.New(slog.DiscardHandler).With("instance_id", "i-1")
	assert.Same(t, scoped, FromContextOr(WithLogger(context.Background(), scoped), fallback))
}
