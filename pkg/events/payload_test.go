package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOutboxEvent(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	event, err := NewOutboxEvent(EventTypeBidPlaced, map[string]any{
		"auction_id": "a1",
		"price":      int64(1550),
		"closed":     false,
	}, now)

	require.NoError(t, err)
	assert.Equal(t, EventTypeBidPlaced, event.EventType)
	assert.Equal(t, OutboxStatusPending, event.Status)
	assert.Equal(t, now, event.CreatedAt)
	assert.Nil(t, event.ProcessedAt)

	fields, err := DecodePayload(event.Payload)
	require.NoError(t, err)
	assert.Equal(t, "a1", fields["auction_id"])
	assert.Equal(t, float64(1550), fields["price"])
	assert.Equal(t, false, fields["closed"])
}

func TestEncodePayload_UnsupportedValue(t *testing.T) {
	_, err := EncodePayload(map[string]any{"when": time.Now()})

	assert.Error(t, err)
}

func TestDecodePayload_Garbage(t *testing.T) {
	_, err := DecodePayload([]byte{0xff, 0xff, 0xff})

	assert.Error(t, err)
}
