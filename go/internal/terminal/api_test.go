package terminal

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mcdev12/cashier/go/internal/ledger"
	"github.com/mcdev12/cashier/go/internal/models"
	"github.com/mcdev12/cashier/go/internal/slip"
	"github.com/mcdev12/cashier/go/internal/store"
	"github.com/mcdev12/cashier/go/internal/upcoming"
	"github.com/shopspring/decimal"
)

type fakePrinter struct {
	draws []int
	err   error
}

func (f *fakePrinter) Print(_ context.Context, drawCount int) (models.Receipt, error) {
	f.draws = append(f.draws, drawCount)
	if f.err != nil {
		return models.Receipt{}, f.err
	}
	return models.Receipt{Slip: models.Slip{SlipNumber: "240501000001"}}, nil
}

type fakeUpcoming struct {
	selected int
}

func (f *fakeUpcoming) Draws() []models.UpcomingDraw {
	return []models.UpcomingDraw{{DrawNumber: 42, Selected: f.selected == 42}}
}

func (f *fakeUpcoming) Select(_ context.Context, n int) error {
	if n <= 41 {
		return upcoming.ErrDrawNotSelectable
	}
	f.selected = n
	return nil
}

func (f *fakeUpcoming) ClearSelection(context.Context) error {
	f.selected = 0
	return nil
}

type testAPI struct {
	server  *httptest.Server
	ledger  *ledger.Ledger
	printer *fakePrinter
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	s := store.NewMemoryStore()
	led := ledger.New(ledger.NewWallet(s, decimal.NewFromInt(100)), nil)
	printer := &fakePrinter{}
	api := &API{
		Ledger:    led,
		Balance:   led.Wallet(),
		Slips:     printer,
		Upcoming:  &fakeUpcoming{},
		Store:     s,
		MaxDraws:  10,
		ChipValue: decimal.NewFromInt(5),
	}
	server := httptest.NewServer(api.Router())
	t.Cleanup(server.Close)
	return &testAPI{server: server, ledger: led, printer: printer}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, a.server.URL+path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestPlaceAndClickBets(t *testing.T) {
	a := newTestAPI(t)

	resp, body := a.do(t, http.MethodPut, "/bets", map[string]any{"position_id": "regular17", "amount": "20"})
	if resp.StatusCode != http.StatusOK || body["id"] != "regular17" {
		t.Fatalf("put bet: %d %v", resp.StatusCode, body)
	}

	resp, body = a.do(t, http.MethodPost, "/bets/click", map[string]any{"position_id": "red"})
	if resp.StatusCode != http.StatusOK || body["placed"] != true {
		t.Fatalf("click: %d %v", resp.StatusCode, body)
	}

	_, body = a.do(t, http.MethodGet, "/bets", nil)
	if body["available"] != "75.00" {
		t.Fatalf("available = %v", body["available"])
	}

	// A second click on the same position removes the chip.
	_, body = a.do(t, http.MethodPost, "/bets/click", map[string]any{"position_id": "red"})
	if body["placed"] != false || a.ledger.Len() != 1 {
		t.Fatalf("click toggle: %v, %d bets", body, a.ledger.Len())
	}

	resp, _ = a.do(t, http.MethodPatch, "/bets/regular17", map[string]any{"amount": 30})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update stake status %d", resp.StatusCode)
	}
	if bet, _ := a.ledger.Get("regular17"); !bet.Amount.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("stake = %s", bet.Amount)
	}

	_, body = a.do(t, http.MethodDelete, "/bets?refund=true", nil)
	if body["available"] != "100.00" || a.ledger.Len() != 0 {
		t.Fatalf("clear with refund: %v", body)
	}
}

func TestLedgerErrorsMapToStatus(t *testing.T) {
	a := newTestAPI(t)

	resp, body := a.do(t, http.MethodPut, "/bets", map[string]any{"position_id": "black", "amount": "500"})
	if resp.StatusCode != http.StatusUnprocessableEntity || body["error"] != ledger.ErrInsufficientFunds.Error() {
		t.Fatalf("insufficient funds: %d %v", resp.StatusCode, body)
	}

	resp, _ = a.do(t, http.MethodDelete, "/bets/regular5", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("remove missing bet status %d", resp.StatusCode)
	}

	resp, _ = a.do(t, http.MethodPut, "/bets", map[string]any{"amount": "5"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing position status %d", resp.StatusCode)
	}
}

func TestPrintSlip(t *testing.T) {
	a := newTestAPI(t)

	resp, body := a.do(t, http.MethodPost, "/slips/print", map[string]any{"draws": 3})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("print status %d %v", resp.StatusCode, body)
	}
	if len(a.printer.draws) != 1 || a.printer.draws[0] != 3 {
		t.Fatalf("printer calls %v", a.printer.draws)
	}

	resp, _ = a.do(t, http.MethodPost, "/slips/print", map[string]any{"draws": 11})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("out of range draws status %d", resp.StatusCode)
	}

	a.printer.err = slip.ErrEmptySlip
	resp, _ = a.do(t, http.MethodPost, "/slips/print", nil)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("empty slip status %d", resp.StatusCode)
	}
}

func TestDrawSelection(t *testing.T) {
	a := newTestAPI(t)

	resp, _ := a.do(t, http.MethodPut, "/draws/selection", map[string]any{"drawNumber": 41})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("past draw status %d", resp.StatusCode)
	}
	resp, _ = a.do(t, http.MethodPut, "/draws/selection", map[string]any{"drawNumber": 42})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("select status %d", resp.StatusCode)
	}
	resp, _ = a.do(t, http.MethodDelete, "/draws/selection", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("clear status %d", resp.StatusCode)
	}
}

func TestPreferences(t *testing.T) {
	a := newTestAPI(t)

	resp, _ := a.do(t, http.MethodGet, "/preferences/"+store.KeyCurrentDrawNumber, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("core key exposed: %d", resp.StatusCode)
	}

	resp, _ = a.do(t, http.MethodGet, "/preferences/"+store.KeyReprintButtonPosition, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unset preference status %d", resp.StatusCode)
	}

	pos := `{"x":10,"y":20}`
	a.do(t, http.MethodPut, "/preferences/"+store.KeyReprintButtonPosition, map[string]any{"value": pos})
	_, body := a.do(t, http.MethodGet, "/preferences/"+store.KeyReprintButtonPosition, nil)
	if body["value"] != pos {
		t.Fatalf("preference = %v", body)
	}
}
