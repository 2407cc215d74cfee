package cmd

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePersistenceProvider(t *testing.T) {
	tests := []struct {
		url      string
		provider string
		rest     string
	}{
		{url: "postgres://u:p@localhost/hr", provider: "postgresql", rest: "u:p@localhost/hr"},
		{url: "postgresql://localhost/hr", provider: "postgresql", rest: "localhost/hr"},
		{url: "sqlite://hr.db", provider: "sqlite", rest: "hr.db"},
		{url: "redis://localhost:6379/0", provider: "redis", rest: "localhost:6379/0"},
		{url: "rediss://cache:6380", provider: "redis", rest: "cache:6380"},
		{url: "file:///var/lib/hrflow", provider: "file", rest: "/var/lib/hrflow"},
		{url: "./data", provider: "file", rest: "./data"},
		{url: "", provider: "file", rest: ""},
		{url: "mongodb://localhost", provider: "mongodb", rest: "localhost"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			provider, rest := parsePersistenceProvider(tt.url)
			assert.Equal(t, tt.provider, provider)
			assert.Equal(t, tt.rest, rest)
		})
	}
}

func TestNewPersistence(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	t.Run("file store", func(t *testing.T) {
		p, err := NewPersistence(context.Background(), logger, "file://"+t.TempDir())
		require.NoError(t, err)
		assert.NoError(t, p.HealthCheck(context.Background()))
	})

	t.Run("sqlite in memory", func(t *testing.T) {
		p, err := NewPersistence(context.Background(), logger, "sqlite://:memory:")
		require.NoError(t, err)
		t.Cleanup(func() { _ = p.Close(context.Background()) })
		assert.NoError(t, p.HealthCheck(context.Background()))
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := NewPersistence(context.Background(), logger, "mongodb://localhost")
		assert.ErrorContains(t, err, `unsupported persistence provider "mongodb"`)
	})
}

func TestNewEventBus(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	bus, err := NewEventBus("gochannel", logger, false)
	require.NoError(t, err)
	assert.NoError(t, bus.Close())

	t.Run("kafka without brokers", func(t *testing.T) {
		t.Setenv("KAFKA_BROKERS", "")

		_, err := NewEventBus("kafka", logger, false)
		assert.Error(t, err)
	})

	_, err = NewEventBus("nats", logger, false)
	assert.ErrorContains(t, err, "unsupported event bus provider")
}

func TestNewTracer_Disabled(t *testing.T) {
	tracer, shutdown, err := NewTracer(context.Background(), slog.New(slog.DiscardHandler), false, "hrflow")
	require.NoError(t, err)
	assert.NotNil(t, tracer)
	assert.NoError(t, shutdown(context.Background()))
}
