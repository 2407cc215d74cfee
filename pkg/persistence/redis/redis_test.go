package redis_test

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/hrflow/hrflow/pkg/persistence/persistencetest"
	"github.com/hrflow/hrflow/pkg/persistence/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	redisOnce sync.Once
	redisAddr string
	redisErr  error
)

func redisAddress(t *testing.T) string {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	redisOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
		defer cancel()

		container, err := testcontainers.Run(
			ctx, "redis:latest",
			testcontainers.WithExposedPorts("6379/tcp"),
			testcontainers.WithWaitStrategy(
				wait.ForListeningPort("6379/tcp"),
				wait.ForLog("Ready to accept connections"),
			),
		)
		if err != nil {
			redisErr = err

			return
		}

		redisAddr, redisErr = container.Endpoint(ctx, "")
	})

	require.NoError(t, redisErr)

	return redisAddr
}

func TestPersistence_Contract(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := redis.NewPersistence(t.Context(), logger, "redis://"+redisAddress(t)+"/0")
	require.NoError(t, err)

	t.Cleanup(func() { _ = p.Close(context.Background()) })

	persistencetest.Run(t, p)
}

func TestPersistence_PrefixIsolation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	addr := redisAddress(t)

	clientA := goredis.NewClient(&goredis.Options{Addr: addr})
	clientB := goredis.NewClient(&goredis.Options{Addr: addr})

	t.Cleanup(func() {
		_ = clientA.Close()
		_ = clientB.Close()
	})

	a := redis.NewPersistenceWithClient(logger, clientA, "hrflow:a:")
	b := redis.NewPersistenceWithClient(logger, clientB, "hrflow:b:")

	inst := persistencetest.NewInstance("acme")
	require.NoError(t, a.InstanceRepository().Save(t.Context(), inst, nil))

	_, err := b.InstanceRepository().GetByID(t.Context(), "acme", inst.ID)
	assert.Error(t, err)
}

func TestNewPersistence_BadURL(t *testing.T) {
	_, err := redis.NewPersistence(t.Context(), slog.Default(), "not-a-url")
	assert.Error(t, err)
}
