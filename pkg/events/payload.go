package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// NewOutboxEvent builds a pending outbox event whose payload is the
// protobuf encoding of fields as a google.protobuf.Struct.
func NewOutboxEvent(eventType string, fields map[string]any, now time.Time) (*OutboxEvent, error) {
	payload, err := EncodePayload(fields)
	if err != nil {
		return nil, err
	}

	return &OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   payload,
		Status:    OutboxStatusPending,
		CreatedAt: now,
	}, nil
}

// EncodePayload marshals fields into protobuf bytes.
func EncodePayload(fields map[string]any) ([]byte, error) {
	msg, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to build event payload: %w", err)
	}

	payload, err := proto.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return payload, nil
}

// DecodePayload is the inverse of EncodePayload. Numbers come back as float64.
func DecodePayload(payload []byte) (map[string]any, error) {
	var msg structpb.Struct
	if err := proto.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return msg.AsMap(), nil
}
