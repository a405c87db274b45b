package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/cashier/go/internal/events"
)

// Screen identifies the kind of display attached to a connection.
type Screen string

const (
	ScreenTerminal Screen = "terminal"
	ScreenTV       Screen = "tv"
)

// ParseScreen maps the screen query parameter. An empty value is the
// cashier screen.
func ParseScreen(s string) (Screen, error) {
	switch Screen(s) {
	case "", ScreenTerminal:
		return ScreenTerminal, nil
	case ScreenTV:
		return ScreenTV, nil
	default:
		return "", fmt.Errorf("unknown screen %q", s)
	}
}

// TypeSnapshot is sent once to every new connection.
const TypeSnapshot events.Type = "snapshot"

// ScreenEvent is the envelope pushed to screens.
type ScreenEvent struct {
	ID        string          `json:"id"`
	Type      events.Type     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewScreenEvent wraps data in an envelope.
func NewScreenEvent(t events.Type, data any) (*ScreenEvent, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", t, err)
	}
	return &ScreenEvent{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: time.Now().UTC(),
		Data:      raw,
	}, nil
}

// ParseEventPayload decodes the event data into target.
func ParseEventPayload(event *ScreenEvent, target any) error {
	if err := json.Unmarshal(event.Data, target); err != nil {
		return fmt.Errorf("failed to parse %s payload: %w", event.Type, err)
	}
	return nil
}

// clientMessage is what screens send back.
type clientMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const clientDisplayText = "display_text"
