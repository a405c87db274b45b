package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Slip is a recorded set of bets submitted together for one or more draws.
type Slip struct {
	SlipNumber      string          `json:"slip_number"`
	Barcode         string          `json:"barcode"`
	DrawNumbers     []int           `json:"draw_numbers"`
	Bets            []Bet           `json:"bets"`
	TotalStake      decimal.Decimal `json:"total_stake"`
	PotentialReturn decimal.Decimal `json:"potential_return"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Receipt is a rendered slip ready for the print frame.
type Receipt struct {
	Slip      Slip      `json:"slip"`
	HTML      string    `json:"html"`
	PrintURL  string    `json:"print_url,omitempty"`
	Reprint   bool      `json:"reprint"`
	PrintedAt time.Time `json:"printed_at"`
}
