package slip

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/cashier/go/clients/drawapi"
	"github.com/mcdev12/cashier/go/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var (
	ErrEmptySlip    = errors.New("no bets to print")
	ErrSlipRejected = errors.New("slip rejected by server")
	ErrSlipNotFound = errors.New("slip not found")
)

// Printer records a slip with the server. It returns the cashier's new
// balance when the server reports one.
type Printer interface {
	Name() string
	Save(ctx context.Context, slip *models.Slip) (*decimal.Decimal, error)
}

type SingleDrawAPI interface {
	SaveBettingSlip(ctx context.Context, req drawapi.SaveBettingSlipRequest) (*drawapi.SaveBettingSlipResponse, error)
}

type MultiDrawAPI interface {
	SaveSlip(ctx context.Context, req drawapi.SaveSlipRequest) (*drawapi.SaveSlipResponse, error)
}

// SingleDrawPrinter saves a slip for one draw through save_betting_slip.php.
type SingleDrawPrinter struct {
	api SingleDrawAPI
}

func NewSingleDrawPrinter(api SingleDrawAPI) *SingleDrawPrinter {
	return &SingleDrawPrinter{api: api}
}

func (p *SingleDrawPrinter) Name() string { return "single_draw" }

func (p *SingleDrawPrinter) Save(ctx context.Context, slip *models.Slip) (*decimal.Decimal, error) {
	if len(slip.DrawNumbers) != 1 {
		return nil, fmt.Errorf("single draw printer got %d draws", len(slip.DrawNumbers))
	}
	stake, _ := slip.TotalStake.Float64()
	ret, _ := slip.PotentialReturn.Float64()

	resp, err := p.api.SaveBettingSlip(ctx, drawapi.SaveBettingSlipRequest{
		SlipNumber:      slip.SlipNumber,
		Bets:            wireBets(slip.Bets),
		TotalStake:      stake,
		PotentialReturn: ret,
		DrawNumber:      slip.DrawNumbers[0],
	})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: %s", ErrSlipRejected, resp.Message)
		}
		return nil, fmt.Errorf("failed to save slip: %w", err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%w: %s", ErrSlipRejected, resp.Message)
	}
	return resp.NewBalance, nil
}

// MultiDrawPrinter saves the slip once per draw through slip_api.php.
type MultiDrawPrinter struct {
	api   MultiDrawAPI
	clock clockwork.Clock
}

func NewMultiDrawPrinter(api MultiDrawAPI, clock clockwork.Clock) *MultiDrawPrinter {
	return &MultiDrawPrinter{api: api, clock: clock}
}

func (p *MultiDrawPrinter) Name() string { return "multi_draw" }

func (p *MultiDrawPrinter) Save(ctx context.Context, slip *models.Slip) (*decimal.Decimal, error) {
	bets := wireBets(slip.Bets)
	date := p.clock.Now().Format(time.DateTime)

	for i, draw := range slip.DrawNumbers {
		resp, err := p.api.SaveSlip(ctx, drawapi.SaveSlipRequest{
			Barcode:         slip.Barcode,
			Bets:            bets,
			TotalStakes:     slip.TotalStake,
			PotentialReturn: slip.PotentialReturn,
			Date:            date,
			DrawNumber:      draw,
		})
		switch {
		case err != nil && resp == nil:
			return nil, fmt.Errorf("failed to save slip for draw %d: %w", draw, err)
		case err != nil || !resp.OK():
			if i > 0 {
				log.Error().
					Str("slip_number", slip.SlipNumber).
					Ints("saved_draws", slip.DrawNumbers[:i]).
					Int("failed_draw", draw).
					Msg("multi-draw slip partially saved")
			}
			return nil, fmt.Errorf("%w: draw %d: %s", ErrSlipRejected, draw, resp.Message)
		}
	}
	return nil, nil
}

// Printers picks the printer for a slip at call time.
type Printers struct {
	Single Printer
	Multi  Printer
}

func (p Printers) For(drawCount int) Printer {
	if drawCount > 1 {
		return p.Multi
	}
	return p.Single
}

func wireBets(bets []models.Bet) []drawapi.SlipBet {
	out := make([]drawapi.SlipBet, len(bets))
	for i, b := range bets {
		amount, _ := b.Amount.Float64()
		ret, _ := b.PotentialReturn.Float64()
		out[i] = drawapi.SlipBet{
			Position:        b.ID,
			Type:            string(b.Type),
			Description:     b.Description,
			Numbers:         b.Numbers,
			Amount:          amount,
			Multiplier:      b.Multiplier,
			PotentialReturn: ret,
		}
	}
	return out
}
