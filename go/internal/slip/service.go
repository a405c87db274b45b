package slip

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/cashier/go/internal/metrics"
	"github.com/mcdev12/cashier/go/internal/models"
	"github.com/mcdev12/cashier/go/internal/resolver"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Ledger is the slip under construction.
type Ledger interface {
	Bets() []models.Bet
	ComputeTotals() models.Totals
	ClearAll(ctx context.Context, refund bool)
}

type Balance interface {
	SetBalance(amount decimal.Decimal)
}

type DrawResolver interface {
	Resolve(ctx context.Context) resolver.Result
}

// Selection is the operator's pinned draw. A pin applies to one slip.
type Selection interface {
	ClearSelection(ctx context.Context) error
}

// PrintSink delivers a rendered receipt to the printer.
type PrintSink interface {
	Print(ctx context.Context, receipt models.Receipt) error
}

// Service prints the slip held in the ledger.
type Service struct {
	ledger   Ledger
	balance  Balance
	resolver DrawResolver
	printers Printers
	sink     PrintSink
	clock    clockwork.Clock
	selected Selection

	// mu serializes prints so a slip is read, saved and cleared once.
	mu sync.Mutex
}

type Option func(*Service)

// WithSelection consumes the pinned draw after every saved slip.
func WithSelection(sel Selection) Option {
	return func(s *Service) { s.selected = sel }
}

func NewService(l Ledger, balance Balance, r DrawResolver, printers Printers, sink PrintSink, clock clockwork.Clock, opts ...Option) *Service {
	s := &Service{
		ledger:   l,
		balance:  balance,
		resolver: r,
		printers: printers,
		sink:     sink,
		clock:    clock,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Print records the current bets for drawCount consecutive draws starting
// at the resolved draw, sends the receipt to the printer and clears the
// ledger without refund. A rejected slip leaves the ledger untouched.
// Concurrent calls run one at a time; the later one finds an empty slip.
func (s *Service) Print(ctx context.Context, drawCount int) (models.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bets := s.ledger.Bets()
	if len(bets) == 0 {
		return models.Receipt{}, ErrEmptySlip
	}
	if drawCount < 1 {
		drawCount = 1
	}

	res := s.resolver.Resolve(ctx)
	draws := make([]int, drawCount)
	for i := range draws {
		draws[i] = res.DrawNumber + i
	}

	now := s.clock.Now()
	totals := s.ledger.ComputeTotals()
	number := NewSlipNumber(now)
	slip := models.Slip{
		SlipNumber:      number,
		Barcode:         Barcode(number),
		DrawNumbers:     draws,
		Bets:            bets,
		TotalStake:      totals.Stake,
		PotentialReturn: totals.PotentialReturn,
		CreatedAt:       now,
	}

	printer := s.printers.For(drawCount)
	newBalance, err := printer.Save(ctx, &slip)
	if err != nil {
		metrics.SlipsPrinted.WithLabelValues(printer.Name(), "rejected").Inc()
		log.Warn().Err(err).Str("slip_number", number).Ints("draws", draws).Msg("slip not saved")
		return models.Receipt{}, err
	}
	if newBalance != nil && s.balance != nil {
		s.balance.SetBalance(*newBalance)
	}
	if s.selected != nil {
		if err := s.selected.ClearSelection(ctx); err != nil {
			log.Warn().Err(err).Str("slip_number", number).Msg("failed to clear pinned draw after print")
		}
	}

	html, err := RenderReceipt(slip, false)
	if err != nil {
		return models.Receipt{}, fmt.Errorf("slip %s saved but not rendered: %w", number, err)
	}
	receipt := models.Receipt{Slip: slip, HTML: html, PrintedAt: now}
	if err := s.sink.Print(ctx, receipt); err != nil {
		log.Error().Err(err).Str("slip_number", number).Msg("slip saved but print job failed, reprint required")
	}

	s.ledger.ClearAll(ctx, false)

	metrics.SlipsPrinted.WithLabelValues(printer.Name(), "ok").Inc()
	log.Info().
		Str("slip_number", number).
		Ints("draws", draws).
		Str("resolver_tier", string(res.Tier)).
		Str("total_stake", totals.Stake.String()).
		Int("bets", len(bets)).
		Msg("slip printed")
	return receipt, nil
}
