package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/hrflow/hrflow/pkg/eventbus"
	"github.com/hrflow/hrflow/pkg/events"
	"github.com/hrflow/hrflow/pkg/log"
	"github.com/hrflow/hrflow/pkg/models"
	"github.com/hrflow/hrflow/pkg/persistence"
)

// recorder writes the audit trail and lifecycle events that follow a committed state change.
// Both are best effort: the state change already happened, so failures are logged only.
type recorder struct {
	logger    *slog.Logger
	audit     persistence.AuditRepository
	publisher eventbus.EventPublisher
}

func (r recorder) audited(ctx context.Context, record *models.AuditRecord) {
	record.ID = newID()
	record.At = time.Now().UTC()

	if err := r.audit.Append(ctx, record); err != nil {
		log.FromContextOr(ctx, r.logger).ErrorContext(ctx, "Failed to append audit record",
			"instance_id", record.InstanceID,
			"action", record.Action,
			"error", err)
	}
}

func (r recorder) publish(ctx context.Context, event events.Event) {
	if r.publisher == nil || event == nil {
		return
	}

	if err := r.publisher.Publish(ctx, event.Key(), event); err != nil {
		log.FromContextOr(ctx, r.logger).ErrorContext(ctx, "Failed to publish event",
			"event_type", event.GetType(),
			"key", event.Key(),
			"error", err)
	}
}

// published emits the event describing where the instance stopped.
func (r recorder) published(ctx context.Context, instance *models.WorkflowInstance, action *models.PendingAction, actorID, reason string) {
	if action != nil {
		r.publish(ctx, events.NewInstanceSuspended(instance, action))

		return
	}

	if event := events.ForOutcome(instance, actorID, reason); event != nil {
		r.publish(ctx, event)
	}
}
