package sqlbase

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hrflow/hrflow/pkg/persistence"
)

// Store implements persistence.Persistence over a database/sql handle. The postgresql and sqlite
// packages open the connection, run their migrations and wrap the handle in a Store.
type Store struct {
	db      *sql.DB
	logger  *slog.Logger
	dialect Dialect

	workflowRepo      *WorkflowRepository
	instanceRepo      *InstanceRepository
	pendingActionRepo *PendingActionRepository
	auditRepo         *AuditRepository
}

// NewStore wraps db. The schema must already be migrated.
func NewStore(db *sql.DB, logger *slog.Logger, dialect Dialect) *Store {
	s := &Store{db: db, logger: logger, dialect: dialect}

	s.workflowRepo = &WorkflowRepository{s: s}
	s.instanceRepo = &InstanceRepository{s: s}
	s.pendingActionRepo = &PendingActionRepository{s: s}
	s.auditRepo = &AuditRepository{s: s}

	return s
}

// DB exposes the underlying handle for tests and tooling.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close(_ context.Context) error {
	if s.db != nil {
		err := s.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (s *Store) HealthCheck(ctx context.Context) error {
	err := s.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (s *Store) WorkflowRepository() persistence.WorkflowRepository {
	return s.workflowRepo
}

func (s *Store) InstanceRepository() persistence.InstanceRepository {
	return s.instanceRepo
}

func (s *Store) PendingActionRepository() persistence.PendingActionRepository {
	return s.pendingActionRepo
}

func (s *Store) AuditRepository() persistence.AuditRepository {
	return s.auditRepo
}

func (s *Store) closeRows(ctx context.Context, rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		s.logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}

	utc := t.Time.UTC()

	return &utc
}

func toNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}

	return sql.NullTime{Time: t.UTC(), Valid: true}
}
