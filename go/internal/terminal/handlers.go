package terminal

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/mcdev12/cashier/go/internal/events"
	"github.com/mcdev12/cashier/go/internal/models"
	"github.com/mcdev12/cashier/go/internal/store"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type ledgerResponse struct {
	Bets      []models.Bet  `json:"bets"`
	Totals    models.Totals `json:"totals"`
	Available string        `json:"available"`
}

func (a *API) ledgerState() ledgerResponse {
	resp := ledgerResponse{Bets: a.Ledger.Bets(), Totals: a.Ledger.ComputeTotals()}
	if a.Balance != nil {
		resp.Available = a.Balance.Available().StringFixed(2)
	}
	return resp
}

func (a *API) listBets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.ledgerState())
}

type betRequest struct {
	PositionID string          `json:"position_id"`
	Classes    []string        `json:"classes"`
	Amount     decimal.Decimal `json:"amount"`
}

func (a *API) positionFor(req betRequest) (string, error) {
	if req.PositionID != "" {
		return req.PositionID, nil
	}
	if len(req.Classes) > 0 {
		return a.Ledger.DerivePositionID(req.Classes), nil
	}
	return "", errors.New("position_id or classes is required")
}

// putBet places or overwrites a stake.
func (a *API) putBet(w http.ResponseWriter, r *http.Request) {
	var req betRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	pos, err := a.positionFor(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	bet, err := a.Ledger.AddOrUpdateBet(r.Context(), pos, req.Amount)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, bet)
}

type clickResponse struct {
	Placed bool        `json:"placed"`
	Bet    *models.Bet `json:"bet,omitempty"`
}

// click toggles a chip. Without an amount the configured chip value is used.
func (a *API) click(w http.ResponseWriter, r *http.Request) {
	var req betRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	pos, err := a.positionFor(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	chip := req.Amount
	if chip.IsZero() {
		chip = a.ChipValue
	}

	bet, placed, err := a.Ledger.Click(r.Context(), pos, chip)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	resp := clickResponse{Placed: placed}
	if placed {
		resp.Bet = &bet
	}
	writeJSON(w, http.StatusOK, resp)
}

type stakeRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (a *API) updateStake(w http.ResponseWriter, r *http.Request) {
	var req stakeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := a.Ledger.UpdateStake(r.Context(), chi.URLParam(r, "id"), req.Amount); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, a.ledgerState())
}

func (a *API) removeBet(w http.ResponseWriter, r *http.Request) {
	if err := a.Ledger.RemoveBet(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, a.ledgerState())
}

// clearBets empties the slip. refund defaults to true for operator clears.
func (a *API) clearBets(w http.ResponseWriter, r *http.Request) {
	refund := true
	if v := r.URL.Query().Get("refund"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		refund = parsed
	}
	a.Ledger.ClearAll(r.Context(), refund)
	writeJSON(w, http.StatusOK, a.ledgerState())
}

type printRequest struct {
	Draws int `json:"draws"`
}

func (a *API) printSlip(w http.ResponseWriter, r *http.Request) {
	req := printRequest{Draws: 1}
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	if req.Draws < 1 || (a.MaxDraws > 0 && req.Draws > a.MaxDraws) {
		writeError(w, http.StatusBadRequest, errors.New("draws out of range"))
		return
	}

	receipt, err := a.Slips.Print(r.Context(), req.Draws)
	if err != nil {
		log.Warn().Err(err).Int("draws", req.Draws).Msg("slip print failed")
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (a *API) getSlip(w http.ResponseWriter, r *http.Request) {
	info, err := a.Reprints.Lookup(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

type reprintRequest struct {
	SlipNumber string `json:"slip_number"`
}

func (a *API) reprintSlip(w http.ResponseWriter, r *http.Request) {
	var req reprintRequest
	if err := decode(r, &req); err != nil || req.SlipNumber == "" {
		writeError(w, http.StatusBadRequest, errors.New("slip_number is required"))
		return
	}
	receipt, err := a.Reprints.Reprint(r.Context(), req.SlipNumber)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (a *API) drawState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Draws.State())
}

func (a *API) upcomingDraws(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Upcoming.Draws())
}

func (a *API) resolveDraw(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Resolver.Resolve(r.Context()))
}

func (a *API) selectDraw(w http.ResponseWriter, r *http.Request) {
	var req events.SelectionPayload
	if err := decode(r, &req); err != nil || req.DrawNumber == nil {
		writeError(w, http.StatusBadRequest, errors.New("drawNumber is required"))
		return
	}
	if err := a.Upcoming.Select(r.Context(), *req.DrawNumber); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, a.Upcoming.Draws())
}

func (a *API) clearSelection(w http.ResponseWriter, r *http.Request) {
	if err := a.Upcoming.ClearSelection(r.Context()); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, a.Upcoming.Draws())
}

func (a *API) drawHistory(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, errors.New("invalid limit"))
			return
		}
		limit = min(n, 500)
	}
	results, err := a.History.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

type preference struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (a *API) preferenceKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	key := chi.URLParam(r, "key")
	if !store.PreferenceKeys[key] {
		writeError(w, http.StatusNotFound, errors.New("unknown preference"))
		return "", false
	}
	return key, true
}

func (a *API) getPreference(w http.ResponseWriter, r *http.Request) {
	key, ok := a.preferenceKey(w, r)
	if !ok {
		return
	}
	value, err := a.Store.Get(r.Context(), key)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, preference{Key: key, Value: value})
}

func (a *API) putPreference(w http.ResponseWriter, r *http.Request) {
	key, ok := a.preferenceKey(w, r)
	if !ok {
		return
	}
	var req preference
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := a.Store.Set(r.Context(), key, req.Value); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, preference{Key: key, Value: req.Value})
}
