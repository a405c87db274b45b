package terminal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mcdev12/cashier/go/clients/drawapi"
	"github.com/mcdev12/cashier/go/internal/ledger"
	"github.com/mcdev12/cashier/go/internal/models"
	"github.com/mcdev12/cashier/go/internal/resolver"
	"github.com/mcdev12/cashier/go/internal/slip"
	"github.com/mcdev12/cashier/go/internal/store"
	"github.com/mcdev12/cashier/go/internal/upcoming"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Ledger is the slip under construction.
type Ledger interface {
	DerivePositionID(classes []string) string
	AddOrUpdateBet(ctx context.Context, positionID string, amount decimal.Decimal) (models.Bet, error)
	Click(ctx context.Context, positionID string, chip decimal.Decimal) (models.Bet, bool, error)
	RemoveBet(ctx context.Context, positionID string) error
	UpdateStake(ctx context.Context, betID string, amount decimal.Decimal) error
	ClearAll(ctx context.Context, refund bool)
	Bets() []models.Bet
	ComputeTotals() models.Totals
}

type Balance interface {
	Available() decimal.Decimal
}

type Printer interface {
	Print(ctx context.Context, drawCount int) (models.Receipt, error)
}

type Reprinter interface {
	Lookup(ctx context.Context, slipNumber string) (*drawapi.SlipInfoResponse, error)
	Reprint(ctx context.Context, slipNumber string) (models.Receipt, error)
}

type DrawState interface {
	State() models.DrawState
}

type Upcoming interface {
	Draws() []models.UpcomingDraw
	Select(ctx context.Context, n int) error
	ClearSelection(ctx context.Context) error
}

type Resolver interface {
	Resolve(ctx context.Context) resolver.Result
}

type History interface {
	Recent(ctx context.Context, limit int) ([]models.DrawResult, error)
}

// API exposes the cashier operations to the terminal UI.
type API struct {
	Ledger    Ledger
	Balance   Balance
	Slips     Printer
	Reprints  Reprinter
	Draws     DrawState
	Upcoming  Upcoming
	Resolver  Resolver
	History   History
	Store     store.Store
	MaxDraws  int
	ChipValue decimal.Decimal
}

// Router returns the handler mounted at /api/terminal.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()

	r.Route("/bets", func(r chi.Router) {
		r.Get("/", a.listBets)
		r.Put("/", a.putBet)
		r.Delete("/", a.clearBets)
		r.Post("/click", a.click)
		r.Patch("/{id}", a.updateStake)
		r.Delete("/{id}", a.removeBet)
	})

	r.Route("/slips", func(r chi.Router) {
		r.Post("/print", a.printSlip)
		r.Post("/reprint", a.reprintSlip)
		r.Get("/{number}", a.getSlip)
	})

	r.Route("/draws", func(r chi.Router) {
		r.Get("/state", a.drawState)
		r.Get("/upcoming", a.upcomingDraws)
		r.Get("/resolve", a.resolveDraw)
		r.Put("/selection", a.selectDraw)
		r.Delete("/selection", a.clearSelection)
		r.Get("/history", a.drawHistory)
	})

	r.Get("/preferences/{key}", a.getPreference)
	r.Put("/preferences/{key}", a.putPreference)

	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decode(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// statusFor maps core errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrBetBelowMinimum),
		errors.Is(err, ledger.ErrBetAboveMaximum),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrUnknownPosition),
		errors.Is(err, slip.ErrEmptySlip),
		errors.Is(err, slip.ErrSlipRejected),
		errors.Is(err, upcoming.ErrDrawNotSelectable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrBetNotFound),
		errors.Is(err, slip.ErrSlipNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
