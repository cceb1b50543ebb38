package kafka

import (
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/dukex/casegate/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokers(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " kafka-1:9092, ,kafka-2:9092")

	brokers, err := Brokers()
	require.NoError(t, err)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, brokers)
}

func TestBrokers_Empty(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "")

	_, err := Brokers()
	require.ErrorIs(t, err, ErrNoBrokers)

	_, _, err = CreateChannel(watermill.NopLogger{}, "casegate")
	require.ErrorIs(t, err, ErrNoBrokers)
}

func TestPartitionKey(t *testing.T) {
	msg := message.NewMessage("msg-1", []byte("{}"))
	msg.Metadata.Set(events.EventMetadataKey, "case-42")

	key, err := PartitionKey(events.Topic, msg)
	require.NoError(t, err)
	assert.Equal(t, "case-42", key)
}
