package gateway

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/mcdev12/cashier/go/internal/events"
	"github.com/mcdev12/cashier/go/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type DrawStateSource interface {
	State() models.DrawState
}

type UpcomingSource interface {
	Draws() []models.UpcomingDraw
}

type ResultSource interface {
	Recent(ctx context.Context, limit int) ([]models.DrawResult, error)
}

type LedgerSource interface {
	Bets() []models.Bet
	ComputeTotals() models.Totals
}

type BalanceSource interface {
	Available() decimal.Decimal
}

// ScreenState is the snapshot a screen renders on connect.
type ScreenState struct {
	Screen   Screen                `json:"screen"`
	Draw     models.DrawState      `json:"draw"`
	Upcoming []models.UpcomingDraw `json:"upcoming"`
	Results  []models.DrawResult   `json:"results,omitempty"`
	Ledger   *events.LedgerPayload `json:"ledger,omitempty"`
}

// StateSources builds ScreenState from the running services. Nil sources
// are skipped.
type StateSources struct {
	Draws        DrawStateSource
	Upcoming     UpcomingSource
	Results      ResultSource
	Ledger       LedgerSource
	Balance      BalanceSource
	ResultsLimit int
}

// Snapshot implements StateProvider. The TV gets the results strip, the
// cashier screen gets the open slip.
func (s StateSources) Snapshot(ctx context.Context, screen Screen) (any, error) {
	return s.build(ctx, screen)
}

func (s StateSources) build(ctx context.Context, screen Screen) (ScreenState, error) {
	state := ScreenState{Screen: screen}
	if s.Draws != nil {
		state.Draw = s.Draws.State()
	}
	if s.Upcoming != nil {
		state.Upcoming = s.Upcoming.Draws()
	}

	switch screen {
	case ScreenTV:
		if s.Results != nil {
			limit := s.ResultsLimit
			if limit <= 0 {
				limit = 10
			}
			results, err := s.Results.Recent(ctx, limit)
			if err != nil {
				return state, err
			}
			state.Results = results
		}
	case ScreenTerminal:
		if s.Ledger != nil {
			payload := &events.LedgerPayload{Bets: s.Ledger.Bets(), Totals: s.Ledger.ComputeTotals()}
			if s.Balance != nil {
				payload.Available = s.Balance.Available().StringFixed(2)
			}
			state.Ledger = payload
		}
	}
	return state, nil
}

// StateHandler serves screen snapshots over HTTP for screens that poll.
type StateHandler struct {
	sources StateSources
}

func NewStateHandler(sources StateSources) *StateHandler {
	return &StateHandler{sources: sources}
}

// HandleGetState handles GET /ws/state?screen=
func (h *StateHandler) HandleGetState(w http.ResponseWriter, r *http.Request) {
	screen, err := ParseScreen(r.URL.Query().Get("screen"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	state, err := h.sources.build(r.Context(), screen)
	if err != nil {
		log.Error().Err(err).Str("screen", string(screen)).Msg("failed to build screen state")
		http.Error(w, "failed to get state", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(state); err != nil {
		log.Error().Err(err).Msg("failed to encode screen state")
	}
}
