package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// ChannelName is the shared name of the cross-terminal channel.
const ChannelName = "georgetown_time_sync_channel"

// MessageType identifies a cross-terminal message.
type MessageType string

const (
	MessageDrawComplete     MessageType = "draw_complete"
	MessageTimeSync         MessageType = "time_sync"
	MessageSelectionChanged MessageType = "selection_changed"
)

// Message is the envelope carried on the channel.
type Message struct {
	Type          MessageType     `json:"type"`
	Origin        string          `json:"origin"`
	TransactionID string          `json:"transactionId,omitempty"`
	Timestamp     int64           `json:"timestamp"`
	Payload       json.RawMessage `json:"payload"`
}

// NewMessage builds an envelope stamped with now in unix milliseconds.
func NewMessage(t MessageType, origin, transactionID string, payload any, now time.Time) (Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("failed to marshal %s payload: %w", t, err)
	}
	return Message{
		Type:          t,
		Origin:        origin,
		TransactionID: transactionID,
		Timestamp:     now.UnixMilli(),
		Payload:       data,
	}, nil
}

// Decode unmarshals the payload into v.
func (m Message) Decode(v any) error {
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", m.Type, err)
	}
	return nil
}

// Handler consumes channel messages.
type Handler func(Message)

// Channel is a cross-terminal broadcast primitive. Publishers also receive
// their own messages; receivers drop them by Origin.
type Channel interface {
	Publish(ctx context.Context, msg Message) error
	Subscribe(ctx context.Context, h Handler) (unsubscribe func(), err error)
	Close() error
}

// IgnoreOrigin wraps h so messages sent by origin are dropped.
func IgnoreOrigin(origin string, h Handler) Handler {
	return func(m Message) {
		if m.Origin == origin {
			return
		}
		h(m)
	}
}
