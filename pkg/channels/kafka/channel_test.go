package kafka

import (
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokersFromEnv(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")

	brokers, err := BrokersFromEnv()
	require.NoError(t, err)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, brokers)
}

func TestBrokersFromEnv_Empty(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "")

	_, err := BrokersFromEnv()
	assert.ErrorIs(t, err, ErrNoBrokers)
}

func TestCreateChannel_RequiresBrokers(t *testing.T) {
	_, _, err := CreateChannel(watermill.NopLogger{}, Config{})
	assert.ErrorIs(t, err, ErrNoBrokers)
}
