package drawsync

import (
	"testing"
	"time"

	"github.com/lib/pq"
)

func TestParseNotification(t *testing.T) {
	n, err := parseNotification(`{"currentDraw":41,"nextDraw":42}`)
	if err != nil {
		t.Fatal(err)
	}
	if n.CurrentDraw != 41 || n.NextDraw != 42 {
		t.Fatalf("unexpected notification %+v", n)
	}

	for _, extra := range []string{`not json`, `{"currentDraw":0,"nextDraw":1}`} {
		if _, err := parseNotification(extra); err == nil {
			t.Fatalf("expected error for %q", extra)
		}
	}
}

func TestListenerStopIsIdempotent(t *testing.T) {
	pl := pq.NewListener("postgres://cashier@127.0.0.1:1/cashier?sslmode=disable&connect_timeout=1", time.Second, time.Second, nil)
	l := &Listener{listener: pl, cfg: DefaultListenerConfig()}

	if err := l.Stop(); err != nil {
		t.Fatalf("first stop: %v", err)
	}
	if err := l.Stop(); err != nil {
		t.Fatalf("second stop closed the connection again: %v", err)
	}
}
