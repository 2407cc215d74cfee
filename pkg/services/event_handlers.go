package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/hrflow/hrflow/pkg/eventbus"
	"github.com/hrflow/hrflow/pkg/events"
	"github.com/hrflow/hrflow/pkg/log"
)

// HREventHandler starts workflows for inbound HR events consumed from the bus. Events that match
// no active workflow are acknowledged and dropped.
func (s *Instances) HREventHandler() eventbus.EventHandler {
	return func(ctx context.Context, event any) error {
		received, ok := event.(*events.HREventReceived)
		if !ok {
			return fmt.Errorf("unexpected event %T for %s", event, events.HREventReceivedEvent)
		}

		logger := s.logger.With(
			"tenant_id", received.TenantID,
			"event_id", received.ID,
			"event_type", received.EventType)

		if err := received.Validate(); err != nil {
			logger.WarnContext(ctx, "Dropping invalid HR event", "error", err)

			return nil
		}

		ctx = log.WithLogger(ctx, logger)

		instances, err := s.TriggerEvent(ctx, received.TenantID, received.ActorID, received.EventType, received.Payload)
		if errors.Is(err, ErrNoMatchingDefinition) {
			logger.InfoContext(ctx, "No active workflow for HR event")

			return nil
		}

		if err != nil {
			return err
		}

		logger.InfoContext(ctx, "Started workflows for HR event", "instances", len(instances))

		return nil
	}
}
