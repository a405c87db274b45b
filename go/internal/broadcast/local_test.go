package broadcast

import (
	"context"
	"testing"
	"time"
)

func TestLocalHubDeliversToOtherOrigins(t *testing.T) {
	ctx := context.Background()
	hub := NewLocalHub()

	var gotA, gotB []Message
	unsubA, _ := hub.Subscribe(ctx, IgnoreOrigin("a", func(m Message) { gotA = append(gotA, m) }))
	defer unsubA()
	unsubB, _ := hub.Subscribe(ctx, IgnoreOrigin("b", func(m Message) { gotB = append(gotB, m) }))
	defer unsubB()

	msg, err := NewMessage(MessageTimeSync, "a", "", map[string]int{"currentDrawNumber": 3}, time.Now())
	if err != nil {
		t.Fatalf("new message: %v", err)
	}
	if err := hub.Publish(ctx, msg); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if len(gotA) != 0 {
		t.Fatalf("sender should not see its own message, got %d", len(gotA))
	}
	if len(gotB) != 1 {
		t.Fatalf("expected 1 message for b, got %d", len(gotB))
	}

	var payload map[string]int
	if err := gotB[0].Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["currentDrawNumber"] != 3 {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestLocalHubUnsubscribe(t *testing.T) {
	ctx := context.Background()
	hub := NewLocalHub()
	count := 0
	unsub, _ := hub.Subscribe(ctx, func(Message) { count++ })
	unsub()

	_ = hub.Publish(ctx, Message{Type: MessageTimeSync, Origin: "x"})
	if count != 0 {
		t.Fatalf("expected no delivery after unsubscribe, got %d", count)
	}
}
