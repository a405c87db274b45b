package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// BetType defines the closed set of board zones a bet can occupy.
type BetType string

const (
	BetTypeStraight  BetType = "straight"
	BetTypeSplit     BetType = "split"
	BetTypeStreet    BetType = "street"
	BetTypeSixLine   BetType = "sixline"
	BetTypeCorner    BetType = "corner"
	BetTypeColumn    BetType = "column"
	BetTypeDozen     BetType = "dozen"
	BetTypeEvenMoney BetType = "even-money"
	BetTypeUnknown   BetType = "unknown"
)

// payoutTable is the single authority for multipliers. Payout labels are
// derived from it rather than written by hand.
var payoutTable = map[BetType]int64{
	BetTypeStraight:  35,
	BetTypeSplit:     17,
	BetTypeStreet:    11,
	BetTypeCorner:    8,
	BetTypeSixLine:   5,
	BetTypeColumn:    2,
	BetTypeDozen:     2,
	BetTypeEvenMoney: 1,
	BetTypeUnknown:   0,
}

// Multiplier returns the payout multiplier fixed by the bet type.
func (t BetType) Multiplier() int64 {
	return payoutTable[t]
}

// PayoutLabel returns the "Pays N:1" text shown next to a zone.
func (t BetType) PayoutLabel() string {
	m := t.Multiplier()
	if m == 0 {
		return "No payout"
	}
	return fmt.Sprintf("Pays %d:1", m)
}

// Valid reports whether t is one of the known bet types.
func (t BetType) Valid() bool {
	_, ok := payoutTable[t]
	return ok
}

// Bet is one wager on a board position.
type Bet struct {
	ID              string          `json:"id"`
	Cells           []string        `json:"element_selector"`
	Type            BetType         `json:"type"`
	Description     string          `json:"description"`
	Numbers         []int           `json:"numbers,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	Multiplier      int64           `json:"multiplier"`
	PotentialReturn decimal.Decimal `json:"potential_return"`
	PlacedAt        time.Time       `json:"placed_at"`
}

// SetAmount changes the stake and recomputes the potential return.
func (b *Bet) SetAmount(amount decimal.Decimal) {
	b.Amount = amount
	b.PotentialReturn = PotentialReturn(amount, b.Multiplier)
}

// PotentialReturn is amount + amount*multiplier.
func PotentialReturn(amount decimal.Decimal, multiplier int64) decimal.Decimal {
	return amount.Add(amount.Mul(decimal.NewFromInt(multiplier)))
}

// Clone returns a deep copy safe to hand out of a locked section.
func (b Bet) Clone() Bet {
	out := b
	out.Cells = append([]string(nil), b.Cells...)
	out.Numbers = append([]int(nil), b.Numbers...)
	return out
}

// Totals holds the aggregate figures of a ledger.
type Totals struct {
	Count           int             `json:"count"`
	Stake           decimal.Decimal `json:"total_stake"`
	PotentialReturn decimal.Decimal `json:"potential_return"`
}
