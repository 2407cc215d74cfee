package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/hrflow/hrflow/pkg/channels/gochannel"
	"github.com/hrflow/hrflow/pkg/channels/kafka"
	"github.com/hrflow/hrflow/pkg/eventbus"
)

const consumerGroup = "hrflow"

// NewEventBus builds the event bus for provider: "gochannel" for a single process, "kafka" for
// brokers listed in KAFKA_BROKERS.
func NewEventBus(provider string, logger *slog.Logger, otelEnabled bool) (eventbus.EventBus, error) {
	wmLogger := watermill.NewSlogLogger(logger)

	switch provider {
	case "gochannel", "":
		pub, sub, err := gochannel.CreateChannel(wmLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-process pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(logger, pub, sub), nil
	case "kafka":
		brokers, err := kafka.BrokersFromEnv()
		if err != nil {
			return nil, err
		}

		pub, sub, err := kafka.CreateChannel(wmLogger, kafka.Config{
			Brokers:       brokers,
			ConsumerGroup: consumerGroup,
			OTELEnabled:   otelEnabled,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(logger, pub, sub), nil
	default:
		return nil, fmt.Errorf("unsupported event bus provider %q", provider)
	}
}
