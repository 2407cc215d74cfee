// Package cmd holds the wiring shared by the hrflow binaries.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hrflow/hrflow/pkg/persistence"
	"github.com/hrflow/hrflow/pkg/persistence/file"
	"github.com/hrflow/hrflow/pkg/persistence/postgresql"
	"github.com/hrflow/hrflow/pkg/persistence/redis"
	"github.com/hrflow/hrflow/pkg/persistence/sqlite"
)

const defaultFileRoot = "./data"

// NewPersistence opens the backend named by the scheme of databaseURL. A bare path or file:// URL
// selects the JSON file store.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	provider, rest := parsePersistenceProvider(databaseURL)

	logger.InfoContext(ctx, "Opening persistence", "provider", provider)

	switch provider {
	case "postgresql":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	case "sqlite":
		return sqlite.NewPersistence(ctx, logger, databaseURL)
	case "redis":
		return redis.NewPersistence(ctx, logger, databaseURL)
	case "file":
		if rest == "" {
			rest = defaultFileRoot
		}

		return file.NewPersistence(rest), nil
	default:
		return nil, fmt.Errorf("unsupported persistence provider %q", provider)
	}
}

// parsePersistenceProvider returns the provider name and, for the file store, its root directory.
func parsePersistenceProvider(databaseURL string) (string, string) {
	scheme, rest, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file", databaseURL
	}

	switch scheme {
	case "postgres", "postgresql":
		return "postgresql", rest
	case "redis", "rediss":
		return "redis", rest
	default:
		return scheme, rest
	}
}
