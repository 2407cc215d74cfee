// Package notify delivers the side effect of Notify nodes.
package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hrflow/hrflow/pkg/eventbus"
	"github.com/hrflow/hrflow/pkg/events"
)

// Notification is what a Notify node asks to send.
type Notification struct {
	TenantID   string
	InstanceID string
	NodeID     string
	Message    string
	Payload    map[string]any
}

// Notifier sends notifications. Delivery is at-least-once: a retried walk may send again.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the log.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(ctx context.Context, n Notification) error {
	l.logger.InfoContext(ctx, "Notification",
		"tenant_id", n.TenantID,
		"instance_id", n.InstanceID,
		"node_id", n.NodeID,
		"message", n.Message)

	return nil
}

// BusNotifier publishes notification.requested events for downstream delivery services.
type BusNotifier struct {
	publisher eventbus.EventPublisher
}

func NewBusNotifier(publisher eventbus.EventPublisher) *BusNotifier {
	return &BusNotifier{publisher: publisher}
}

func (b *BusNotifier) Notify(ctx context.Context, n Notification) error {
	event := events.NewNotificationRequested(n.TenantID, n.InstanceID, n.NodeID, n.Message, n.Payload)

	return b.publisher.Publish(ctx, event.Key(), event)
}

// Multi fans a notification out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error

	for _, notifier := range m {
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
