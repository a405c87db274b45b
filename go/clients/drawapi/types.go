package drawapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Int decodes PHP numbers that may arrive as JSON numbers, numeric strings
// or null.
type Int int

func (i *Int) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*i = 0
		return nil
	}
	s := strings.Trim(string(b), `"`)
	if s == "" {
		*i = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return fmt.Errorf("invalid integer %s", b)
		}
		n = int(f)
	}
	*i = Int(n)
	return nil
}

// Bool decodes PHP booleans: true/false, 1/0, "1"/"0", "true"/"false".
type Bool bool

func (v *Bool) UnmarshalJSON(b []byte) error {
	s := strings.ToLower(strings.Trim(string(bytes.TrimSpace(b)), `"`))
	switch s {
	case "true", "1", "yes":
		*v = true
	case "false", "0", "", "null", "no":
		*v = false
	default:
		return fmt.Errorf("invalid boolean %s", b)
	}
	return nil
}

type response interface {
	setFailure(msg string)
}

// NextDrawNumberResponse is returned by get_next_draw_number.php.
type NextDrawNumberResponse struct {
	Status            string `json:"status"`
	CurrentDrawNumber Int    `json:"current_draw_number"`
	NextDrawNumber    Int    `json:"next_draw_number"`
	Message           string `json:"message,omitempty"`
}

func (r *NextDrawNumberResponse) OK() bool { return r.Status == StatusSuccess }
func (r *NextDrawNumberResponse) setFailure(msg string) {
	r.Status, r.Message = StatusError, msg
}

// DrawSyncResponse is returned by draw_sync.php.
type DrawSyncResponse struct {
	Success     Bool   `json:"success"`
	CurrentDraw Int    `json:"currentDraw"`
	NextDraw    Int    `json:"nextDraw"`
	Message     string `json:"message,omitempty"`
}

func (r *DrawSyncResponse) setFailure(msg string) {
	r.Success, r.Message = false, msg
}

// UpdateDrawResponse is returned by update_draw.php.
type UpdateDrawResponse struct {
	Success Bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func (r *UpdateDrawResponse) setFailure(msg string) {
	r.Success, r.Message = false, msg
}

// SlipBet is the wire form of one bet on a slip.
type SlipBet struct {
	Position        string  `json:"position"`
	Type            string  `json:"type"`
	Description     string  `json:"description"`
	Numbers         []int   `json:"numbers,omitempty"`
	Amount          float64 `json:"amount"`
	Multiplier      int64   `json:"multiplier"`
	PotentialReturn float64 `json:"potential_return"`
}

// SaveBettingSlipRequest is the JSON body of save_betting_slip.php.
type SaveBettingSlipRequest struct {
	SlipNumber      string    `json:"slip_number"`
	Bets            []SlipBet `json:"bets"`
	TotalStake      float64   `json:"total_stake"`
	PotentialReturn float64   `json:"potential_return"`
	DrawNumber      int       `json:"draw_number"`
}

type SaveBettingSlipResponse struct {
	Status     string           `json:"status"`
	NewBalance *decimal.Decimal `json:"new_balance,omitempty"`
	SlipID     Int              `json:"slip_id,omitempty"`
	Message    string           `json:"message,omitempty"`
}

func (r *SaveBettingSlipResponse) OK() bool { return r.Status == StatusSuccess }
func (r *SaveBettingSlipResponse) setFailure(msg string) {
	r.Status, r.Message = StatusError, msg
}

// SaveSlipRequest is the form body of slip_api.php action=save_slip.
type SaveSlipRequest struct {
	Barcode         string
	Bets            []SlipBet
	TotalStakes     decimal.Decimal
	PotentialReturn decimal.Decimal
	Date            string
	DrawNumber      int
}

type SaveSlipResponse struct {
	Status  string `json:"status"`
	SlipID  Int    `json:"slip_id,omitempty"`
	Message string `json:"message,omitempty"`
}

func (r *SaveSlipResponse) OK() bool { return r.Status == StatusSuccess }
func (r *SaveSlipResponse) setFailure(msg string) {
	r.Status, r.Message = StatusError, msg
}

// SlipInfo is the slip header returned by get_slip_info.
type SlipInfo struct {
	SlipID          Int             `json:"slip_id"`
	SlipNumber      string          `json:"slip_number"`
	DrawNumber      Int             `json:"draw_number"`
	TotalStake      decimal.Decimal `json:"total_stake"`
	PotentialReturn decimal.Decimal `json:"potential_return"`
	CreatedAt       string          `json:"created_at"`
	Status          string          `json:"status"`
}

// SlipInfoBet is one bet line returned by get_slip_info.
type SlipInfoBet struct {
	BetType         string          `json:"bet_type"`
	BetDescription  string          `json:"bet_description"`
	BetAmount       decimal.Decimal `json:"bet_amount"`
	Multiplier      Int             `json:"multiplier"`
	PotentialReturn decimal.Decimal `json:"potential_return"`
}

type SlipInfoResponse struct {
	Status  string        `json:"status"`
	Slip    *SlipInfo     `json:"slip,omitempty"`
	Bets    []SlipInfoBet `json:"bets,omitempty"`
	Message string        `json:"message,omitempty"`
}

func (r *SlipInfoResponse) OK() bool { return r.Status == StatusSuccess }
func (r *SlipInfoResponse) setFailure(msg string) {
	r.Status, r.Message = StatusError, msg
}

type ReprintResponse struct {
	Status        string `json:"status"`
	NewSlipID     Int    `json:"new_slip_id"`
	NewSlipNumber string `json:"new_slip_number"`
	PrintURL      string `json:"print_url"`
	Message       string `json:"message,omitempty"`
}

func (r *ReprintResponse) OK() bool { return r.Status == StatusSuccess }
func (r *ReprintResponse) setFailure(msg string) {
	r.Status, r.Message = StatusError, msg
}

// BetCountsResponse is returned by get_draw_bet_counts.php. Older builds of
// the endpoint answer with "success" instead of "status".
type BetCountsResponse struct {
	Status  string         `json:"status"`
	Success Bool           `json:"success"`
	Counts  map[string]Int `json:"counts"`
	Message string         `json:"message,omitempty"`
}

func (r *BetCountsResponse) OK() bool { return r.Status == StatusSuccess || bool(r.Success) }
func (r *BetCountsResponse) setFailure(msg string) {
	r.Status, r.Success, r.Message = StatusError, false, msg
}

type CheckSlipResponse struct {
	Exists  Bool   `json:"exists"`
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
}

func (r *CheckSlipResponse) setFailure(msg string) {
	r.Exists, r.Status, r.Message = false, StatusError, msg
}

func decode(endpoint string, body []byte, out response) error {
	if err := json.Unmarshal(body, out); err != nil {
		out.setFailure("The server returned an invalid response. Please try again.")
		return fmt.Errorf("%w from %s: %v", ErrMalformedResponse, endpoint, err)
	}
	return nil
}
