package slip

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/cashier/go/clients/drawapi"
	"github.com/mcdev12/cashier/go/internal/metrics"
	"github.com/mcdev12/cashier/go/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type ReprintAPI interface {
	GetSlipInfo(ctx context.Context, slipNumber string) (*drawapi.SlipInfoResponse, error)
	ReprintSlip(ctx context.Context, slipID, drawNumber int) (*drawapi.ReprintResponse, error)
	CheckSlipExists(ctx context.Context, slipID int) (bool, error)
}

// Reprinter reissues slips that were already recorded.
type Reprinter struct {
	api   ReprintAPI
	sink  PrintSink
	clock clockwork.Clock
}

func NewReprinter(api ReprintAPI, sink PrintSink, clock clockwork.Clock) *Reprinter {
	return &Reprinter{api: api, sink: sink, clock: clock}
}

// Lookup returns a recorded slip and its bets.
func (r *Reprinter) Lookup(ctx context.Context, slipNumber string) (*drawapi.SlipInfoResponse, error) {
	info, err := r.api.GetSlipInfo(ctx, slipNumber)
	if err != nil && info == nil {
		return nil, fmt.Errorf("failed to look up slip %s: %w", slipNumber, err)
	}
	if !info.OK() || info.Slip == nil {
		return nil, fmt.Errorf("%w: %s %s", ErrSlipNotFound, slipNumber, info.Message)
	}
	return info, nil
}

// Reprint reissues slipNumber and sends the new receipt to the printer.
func (r *Reprinter) Reprint(ctx context.Context, slipNumber string) (models.Receipt, error) {
	info, err := r.Lookup(ctx, slipNumber)
	if err != nil {
		return models.Receipt{}, err
	}

	resp, err := r.api.ReprintSlip(ctx, int(info.Slip.SlipID), int(info.Slip.DrawNumber))
	if err != nil && resp == nil {
		return models.Receipt{}, fmt.Errorf("failed to reprint slip %s: %w", slipNumber, err)
	}
	if !resp.OK() {
		return models.Receipt{}, fmt.Errorf("%w: %s", ErrSlipRejected, resp.Message)
	}

	exists, err := r.api.CheckSlipExists(ctx, int(resp.NewSlipID))
	if err != nil {
		return models.Receipt{}, fmt.Errorf("failed to confirm reprinted slip: %w", err)
	}
	if !exists {
		return models.Receipt{}, fmt.Errorf("%w: reprint %d", ErrSlipNotFound, int(resp.NewSlipID))
	}

	now := r.clock.Now()
	number := resp.NewSlipNumber
	if number == "" {
		number = info.Slip.SlipNumber
	}
	slip := models.Slip{
		SlipNumber:      number,
		Barcode:         Barcode(number),
		DrawNumbers:     []int{int(info.Slip.DrawNumber)},
		Bets:            betsFromInfo(info.Bets),
		TotalStake:      info.Slip.TotalStake,
		PotentialReturn: info.Slip.PotentialReturn,
		CreatedAt:       now,
	}
	html, err := RenderReceipt(slip, true)
	if err != nil {
		return models.Receipt{}, err
	}

	receipt := models.Receipt{Slip: slip, HTML: html, PrintURL: resp.PrintURL, Reprint: true, PrintedAt: now}
	if err := r.sink.Print(ctx, receipt); err != nil {
		return receipt, fmt.Errorf("failed to send reprint to printer: %w", err)
	}

	metrics.SlipsPrinted.WithLabelValues("reprint", "ok").Inc()
	log.Info().
		Str("original_slip", slipNumber).
		Str("slip_number", number).
		Int("draw_number", int(info.Slip.DrawNumber)).
		Msg("slip reprinted")
	return receipt, nil
}

func betsFromInfo(lines []drawapi.SlipInfoBet) []models.Bet {
	out := make([]models.Bet, len(lines))
	for i, line := range lines {
		out[i] = models.Bet{
			Type:            models.BetType(line.BetType),
			Description:     line.BetDescription,
			Amount:          line.BetAmount,
			Multiplier:      int64(line.Multiplier),
			PotentialReturn: line.PotentialReturn,
		}
		if out[i].PotentialReturn.Equal(decimal.Zero) {
			out[i].PotentialReturn = models.PotentialReturn(line.BetAmount, int64(line.Multiplier))
		}
	}
	return out
}
