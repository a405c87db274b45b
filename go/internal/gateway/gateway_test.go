package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/cashier/go/internal/events"
	"github.com/mcdev12/cashier/go/internal/models"
	"github.com/mcdev12/cashier/go/internal/resolver"
	"github.com/shopspring/decimal"
)

type staticDraws models.DrawState

func (s staticDraws) State() models.DrawState { return models.DrawState(s) }

type staticResults []models.DrawResult

func (s staticResults) Recent(context.Context, int) ([]models.DrawResult, error) { return s, nil }

type staticLedger []models.Bet

func (s staticLedger) Bets() []models.Bet { return s }
func (s staticLedger) ComputeTotals() models.Totals {
	return models.Totals{Count: len(s)}
}

type testGateway struct {
	cm     *ConnectionManager
	server *httptest.Server
	bus    *events.Bus
}

func newTestGateway(t *testing.T) *testGateway {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cm := NewConnectionManager(DefaultConnectionConfig())
	sources := StateSources{
		Draws:   staticDraws{CurrentDrawNumber: 41, NextDrawNumber: 42},
		Results: staticResults{{DrawNumber: 41, WinningNumber: 7, Color: models.ColorRed}},
		Ledger:  staticLedger{{ID: "red", Amount: decimal.NewFromInt(5)}},
	}
	cm.SetStateProvider(sources)
	go cm.Start(ctx)

	bus := events.NewBus()
	t.Cleanup(Forward(bus, cm))

	mux := http.NewServeMux()
	NewWebSocketHandler(cm, NewStateHandler(sources)).RegisterRoutes(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &testGateway{cm: cm, server: server, bus: bus}
}

func (g *testGateway) dial(t *testing.T, screen Screen) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(g.server.URL, "http") + "/ws?screen=" + string(screen)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) ScreenEvent {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev ScreenEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatal(err)
	}
	return ev
}

func TestScreensReceiveSnapshotFirst(t *testing.T) {
	g := newTestGateway(t)

	tv := readEvent(t, g.dial(t, ScreenTV))
	var tvState ScreenState
	if err := ParseEventPayload(&tv, &tvState); err != nil {
		t.Fatal(err)
	}
	if tv.Type != TypeSnapshot || tvState.Draw.NextDrawNumber != 42 || len(tvState.Results) != 1 || tvState.Ledger != nil {
		t.Fatalf("unexpected tv snapshot %+v", tvState)
	}

	term := readEvent(t, g.dial(t, ScreenTerminal))
	var termState ScreenState
	if err := ParseEventPayload(&term, &termState); err != nil {
		t.Fatal(err)
	}
	if termState.Ledger == nil || len(termState.Ledger.Bets) != 1 || termState.Results != nil {
		t.Fatalf("unexpected terminal snapshot %+v", termState)
	}
}

func TestForwardRoutesByScreen(t *testing.T) {
	g := newTestGateway(t)
	tv := g.dial(t, ScreenTV)
	term := g.dial(t, ScreenTerminal)
	readEvent(t, tv)
	readEvent(t, term)

	g.bus.Publish(events.TypeLedgerChanged, events.LedgerPayload{Available: "10.00"})
	g.bus.Publish(events.TypeDrawState, models.DrawState{CurrentDrawNumber: 42, NextDrawNumber: 43})

	var got []events.Type
	for range 2 {
		got = append(got, readEvent(t, term).Type)
	}
	if diff := cmp.Diff([]events.Type{events.TypeLedgerChanged, events.TypeDrawState}, got); diff != "" {
		t.Fatalf("terminal events mismatch (-want +got):\n%s", diff)
	}

	// The TV skips the ledger update and sees the draw state next.
	ev := readEvent(t, tv)
	var state models.DrawState
	if err := ParseEventPayload(&ev, &state); err != nil {
		t.Fatal(err)
	}
	if ev.Type != events.TypeDrawState || state.NextDrawNumber != 43 {
		t.Fatalf("unexpected tv event %s %+v", ev.Type, state)
	}
}

func TestTerminalPushesChipsAndPrintJobs(t *testing.T) {
	g := newTestGateway(t)
	term := NewTerminal(g.cm)

	if err := term.Print(context.Background(), models.Receipt{}); !errors.Is(err, ErrNoScreen) {
		t.Fatalf("expected ErrNoScreen, got %v", err)
	}

	conn := g.dial(t, ScreenTerminal)
	readEvent(t, conn)

	term.RenderChip("regular17", decimal.NewFromInt(25), false)
	ev := readEvent(t, conn)
	var chip events.ChipPayload
	if err := ParseEventPayload(&ev, &chip); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(events.ChipPayload{Cell: "regular17", Amount: "25.00"}, chip); diff != "" {
		t.Fatalf("chip mismatch (-want +got):\n%s", diff)
	}

	receipt := models.Receipt{HTML: "<div>slip</div>"}
	if err := term.Print(context.Background(), receipt); err != nil {
		t.Fatal(err)
	}
	if ev := readEvent(t, conn); ev.Type != events.TypePrintJob {
		t.Fatalf("expected print job, got %s", ev.Type)
	}
}

func TestDisplayTextReports(t *testing.T) {
	g := newTestGateway(t)
	conn := g.dial(t, ScreenTerminal)
	readEvent(t, conn)

	report := map[string]any{
		"type": "display_text",
		"data": []resolver.DisplayText{{Selector: "#next-draw-number", Text: "Draw #812"}},
	}
	if err := conn.WriteJSON(report); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		texts := g.cm.DisplayTexts().DisplayTexts()
		if len(texts) == 1 && texts[0].Text == "Draw #812" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("display text not recorded: %+v", texts)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestDisplayTextCacheExpires(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cache := NewDisplayTextCache()
	cache.clock = clock

	if err := cache.Update(json.RawMessage(`[{"selector":".draw-number","text":"12"},{"selector":"","text":"x"}]`)); err != nil {
		t.Fatal(err)
	}
	if got := cache.DisplayTexts(); len(got) != 1 {
		t.Fatalf("expected one text, got %+v", got)
	}
	clock.Advance(displayTextMaxAge + time.Second)
	if got := cache.DisplayTexts(); got != nil {
		t.Fatalf("stale texts returned: %+v", got)
	}
	if err := cache.Update(json.RawMessage(`{"bad":true}`)); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestRejectsUnknownScreen(t *testing.T) {
	g := newTestGateway(t)
	resp, err := http.Get(g.server.URL + "/ws?screen=kiosk")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
