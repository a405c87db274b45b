package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/cashier/go/internal/events"
	"github.com/mcdev12/cashier/go/internal/metrics"
	"github.com/mcdev12/cashier/go/internal/models"
	"github.com/mcdev12/cashier/go/internal/store"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrBetBelowMinimum   = errors.New("bet is below the table minimum")
	ErrBetAboveMaximum   = errors.New("bet is above the table maximum")
	ErrInvalidAmount     = errors.New("bet amount must be positive")
	ErrUnknownPosition   = errors.New("unknown board position")
	ErrBetNotFound       = errors.New("bet not found")
)

// BoardView renders chips on the board. The ledger is the source of truth;
// the view is only a rendering target.
type BoardView interface {
	RenderChip(cell string, amount decimal.Decimal, virtual bool)
	ClearChip(cell string, virtual bool)
}

type noopView struct{}

func (noopView) RenderChip(string, decimal.Decimal, bool) {}
func (noopView) ClearChip(string, bool)                   {}

// Limits are the table's bet bounds. A zero MaxBet means no maximum.
type Limits struct {
	MinBet decimal.Decimal
	MaxBet decimal.Decimal
}

type Option func(*Ledger)

func WithLimits(l Limits) Option {
	return func(led *Ledger) { led.limits = l }
}

func WithAliasGroups(groups []AliasGroup) Option {
	return func(led *Ledger) { led.aliases = NewAliasTable(groups) }
}

// WithRejectUnknown makes unclassifiable positions an error instead of a
// tracked zero-multiplier bet.
func WithRejectUnknown(reject bool) Option {
	return func(led *Ledger) { led.rejectUnknown = reject }
}

func WithBus(bus *events.Bus) Option {
	return func(led *Ledger) { led.bus = bus }
}

func WithClock(c clockwork.Clock) Option {
	return func(led *Ledger) { led.clock = c }
}

// WithStore persists the slip under construction.
func WithStore(s store.Store) Option {
	return func(led *Ledger) { led.store = s }
}

// Ledger is the ordered collection of bets for the slip being built.
type Ledger struct {
	mu    sync.Mutex
	bets  map[string]*models.Bet
	order []string

	wallet        *Wallet
	view          BoardView
	aliases       *AliasTable
	limits        Limits
	rejectUnknown bool
	bus           *events.Bus
	clock         clockwork.Clock
	store         store.Store
}

func New(wallet *Wallet, view BoardView, opts ...Option) *Ledger {
	if view == nil {
		view = noopView{}
	}
	l := &Ledger{
		bets:    make(map[string]*models.Bet),
		wallet:  wallet,
		view:    view,
		aliases: NewAliasTable(DefaultAliasGroups),
		limits:  Limits{MinBet: decimal.NewFromInt(1)},
		clock:   clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Wallet returns the cash wallet the ledger debits.
func (l *Ledger) Wallet() *Wallet {
	return l.wallet
}

// Position resolves aliases and classifies id.
func (l *Ledger) Position(id string) Position {
	canonical, _ := l.aliases.Resolve(id)
	return Classify(canonical)
}

// DerivePositionID derives the position id of a cell from its classes.
func (l *Ledger) DerivePositionID(classes []string) string {
	return DerivePositionID(classes, l.aliases)
}

func (l *Ledger) checkLimits(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if amount.LessThan(l.limits.MinBet) {
		return fmt.Errorf("%w: minimum is %s", ErrBetBelowMinimum, l.limits.MinBet)
	}
	if l.limits.MaxBet.IsPositive() && amount.GreaterThan(l.limits.MaxBet) {
		return fmt.Errorf("%w: maximum is %s", ErrBetAboveMaximum, l.limits.MaxBet)
	}
	return nil
}

// AddOrUpdateBet places amount on positionID, overwriting an existing stake.
func (l *Ledger) AddOrUpdateBet(ctx context.Context, positionID string, amount decimal.Decimal) (models.Bet, error) {
	pos := l.Position(positionID)
	if pos.Type == models.BetTypeUnknown {
		if l.rejectUnknown {
			metrics.LedgerOperations.WithLabelValues("add", "rejected").Inc()
			return models.Bet{}, fmt.Errorf("%w: %s", ErrUnknownPosition, positionID)
		}
		metrics.UnknownPositions.Inc()
		log.Warn().Str("position", positionID).Msg("bet placed on unclassified position, tracking with zero multiplier")
	}
	if err := l.checkLimits(amount); err != nil {
		metrics.LedgerOperations.WithLabelValues("add", "rejected").Inc()
		return models.Bet{}, err
	}

	l.mu.Lock()
	existing, ok := l.bets[pos.ID]
	delta := amount
	if ok {
		delta = amount.Sub(existing.Amount)
	}

	if delta.IsPositive() {
		if !l.wallet.CanAfford(delta) {
			l.mu.Unlock()
			metrics.LedgerOperations.WithLabelValues("add", "insufficient_funds").Inc()
			return models.Bet{}, ErrInsufficientFunds
		}
		if len(l.bets) == 0 {
			l.wallet.takeSnapshot(ctx)
		}
		if err := l.wallet.Debit(delta); err != nil {
			l.mu.Unlock()
			return models.Bet{}, err
		}
	} else if delta.IsNegative() {
		l.wallet.Credit(delta.Neg())
	}

	var bet *models.Bet
	if ok {
		bet = existing
		bet.SetAmount(amount)
	} else {
		bet = &models.Bet{
			ID:          pos.ID,
			Cells:       l.aliases.cellsFor(pos),
			Type:        pos.Type,
			Description: pos.Description,
			Numbers:     pos.Numbers,
			Multiplier:  pos.Type.Multiplier(),
			PlacedAt:    l.clock.Now(),
		}
		bet.SetAmount(amount)
		l.bets[pos.ID] = bet
		l.order = append(l.order, pos.ID)
	}
	l.renderLocked(bet, pos)
	out := bet.Clone()
	l.persistLocked(ctx)
	l.mu.Unlock()

	metrics.LedgerOperations.WithLabelValues("add", "ok").Inc()
	log.Debug().
		Str("position", pos.ID).
		Str("type", string(pos.Type)).
		Str("amount", amount.String()).
		Msg("bet placed")
	l.publish()
	return out, nil
}

// Click toggles a chip on positionID: an occupied position is removed and
// refunded, an empty one receives chip. placed reports which happened.
func (l *Ledger) Click(ctx context.Context, positionID string, chip decimal.Decimal) (bet models.Bet, placed bool, err error) {
	pos := l.Position(positionID)

	l.mu.Lock()
	_, occupied := l.bets[pos.ID]
	l.mu.Unlock()

	if occupied {
		return models.Bet{}, false, l.RemoveBet(ctx, pos.ID)
	}
	bet, err = l.AddOrUpdateBet(ctx, pos.ID, chip)
	return bet, err == nil, err
}

// RemoveBet deletes the bet at positionID and refunds its stake.
func (l *Ledger) RemoveBet(ctx context.Context, positionID string) error {
	pos := l.Position(positionID)

	l.mu.Lock()
	bet, ok := l.bets[pos.ID]
	if !ok {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrBetNotFound, positionID)
	}
	l.removeLocked(pos.ID)
	l.wallet.Credit(bet.Amount)
	l.clearLocked(bet, pos)
	if len(l.bets) == 0 {
		l.wallet.restoreSnapshot(ctx)
	}
	l.persistLocked(ctx)
	l.mu.Unlock()

	metrics.LedgerOperations.WithLabelValues("remove", "ok").Inc()
	log.Debug().Str("position", pos.ID).Str("refund", bet.Amount.String()).Msg("bet removed")
	l.publish()
	return nil
}

// UpdateStake changes the stake of an existing bet. On any validation
// failure the ledger and wallet are left untouched.
func (l *Ledger) UpdateStake(ctx context.Context, betID string, newAmount decimal.Decimal) error {
	if err := l.checkLimits(newAmount); err != nil {
		metrics.LedgerOperations.WithLabelValues("update", "rejected").Inc()
		return err
	}
	pos := l.Position(betID)

	l.mu.Lock()
	bet, ok := l.bets[pos.ID]
	if !ok {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrBetNotFound, betID)
	}

	delta := newAmount.Sub(bet.Amount)
	if delta.IsPositive() {
		if err := l.wallet.Debit(delta); err != nil {
			l.mu.Unlock()
			metrics.LedgerOperations.WithLabelValues("update", "insufficient_funds").Inc()
			return err
		}
	} else if delta.IsNegative() {
		l.wallet.Credit(delta.Neg())
	}

	bet.SetAmount(newAmount)
	l.renderLocked(bet, pos)
	l.persistLocked(ctx)
	l.mu.Unlock()

	metrics.LedgerOperations.WithLabelValues("update", "ok").Inc()
	l.publish()
	return nil
}

// ClearAll empties the ledger. With refund the pre-betting balance is
// restored; without it the sale is final and the balance is left alone.
func (l *Ledger) ClearAll(ctx context.Context, refund bool) {
	l.mu.Lock()
	for _, id := range l.order {
		bet := l.bets[id]
		if refund {
			l.wallet.Credit(bet.Amount)
		}
		l.clearLocked(bet, Classify(id))
	}
	l.bets = make(map[string]*models.Bet)
	l.order = nil

	if refund {
		l.wallet.restoreSnapshot(ctx)
	} else {
		l.wallet.dropSnapshot(ctx)
	}
	l.persistLocked(ctx)
	l.mu.Unlock()

	metrics.LedgerOperations.WithLabelValues("clear", "ok").Inc()
	log.Info().Bool("refund", refund).Msg("ledger cleared")
	l.publish()
}

// ComputeTotals sums stake and potential return over every bet.
func (l *Ledger) ComputeTotals() models.Totals {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalsLocked()
}

func (l *Ledger) totalsLocked() models.Totals {
	t := models.Totals{Stake: decimal.Zero, PotentialReturn: decimal.Zero}
	for _, id := range l.order {
		b := l.bets[id]
		t.Count++
		t.Stake = t.Stake.Add(b.Amount)
		t.PotentialReturn = t.PotentialReturn.Add(b.PotentialReturn)
	}
	return t
}

// Bets returns copies of the bets in placement order.
func (l *Ledger) Bets() []models.Bet {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.Bet, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.bets[id].Clone())
	}
	return out
}

// Get returns the bet at positionID.
func (l *Ledger) Get(positionID string) (models.Bet, bool) {
	pos := l.Position(positionID)
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.bets[pos.ID]
	if !ok {
		return models.Bet{}, false
	}
	return b.Clone(), true
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.bets)
}

// Restore rehydrates the slip saved by a previous run. Bets are re-debited
// in their saved order; a bet whose id resolves to an already restored
// position is a stale alias sibling and is dropped without charge. The
// dropped ids are returned.
func (l *Ledger) Restore(ctx context.Context) ([]string, error) {
	if l.store == nil {
		return nil, nil
	}
	raw, err := l.store.Get(ctx, store.KeyLedgerSnapshot)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger snapshot: %w", err)
	}

	var saved []models.Bet
	if err := json.Unmarshal([]byte(raw), &saved); err != nil {
		log.Warn().Err(err).Msg("discarding unreadable ledger snapshot")
		return nil, nil
	}

	var merged []string
	for _, b := range saved {
		pos := l.Position(b.ID)
		if _, ok := l.Get(pos.ID); ok {
			merged = append(merged, b.ID)
			log.Warn().
				Str("position", b.ID).
				Str("canonical", pos.ID).
				Str("refund", b.Amount.String()).
				Msg("dropping aliased duplicate bet from snapshot")
			continue
		}
		if _, err := l.AddOrUpdateBet(ctx, pos.ID, b.Amount); err != nil {
			log.Warn().Err(err).Str("position", b.ID).Msg("could not restore bet")
		}
	}
	return merged, nil
}

func (l *Ledger) removeLocked(id string) {
	delete(l.bets, id)
	for i, o := range l.order {
		if o == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}

func (l *Ledger) renderLocked(bet *models.Bet, pos Position) {
	for _, c := range bet.Cells {
		l.view.RenderChip(c, bet.Amount, false)
	}
	for _, c := range virtualCells(pos) {
		l.view.RenderChip(c, bet.Amount, true)
	}
}

func (l *Ledger) clearLocked(bet *models.Bet, pos Position) {
	for _, c := range bet.Cells {
		l.view.ClearChip(c, false)
	}
	for _, c := range virtualCells(pos) {
		l.view.ClearChip(c, true)
	}
}

func (l *Ledger) persistLocked(ctx context.Context) {
	if l.store == nil {
		return
	}
	if len(l.order) == 0 {
		if err := l.store.Delete(ctx, store.KeyLedgerSnapshot); err != nil {
			log.Error().Err(err).Msg("failed to delete ledger snapshot")
		}
		return
	}
	bets := make([]models.Bet, 0, len(l.order))
	for _, id := range l.order {
		bets = append(bets, *l.bets[id])
	}
	data, err := json.Marshal(bets)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal ledger snapshot")
		return
	}
	if err := l.store.Set(ctx, store.KeyLedgerSnapshot, string(data)); err != nil {
		metrics.StoreWriteFailures.WithLabelValues(store.KeyLedgerSnapshot).Inc()
		log.Error().Err(err).Msg("failed to persist ledger snapshot")
	}
}

func (l *Ledger) publish() {
	if l.bus == nil {
		return
	}
	l.mu.Lock()
	payload := events.LedgerPayload{Totals: l.totalsLocked()}
	for _, id := range l.order {
		payload.Bets = append(payload.Bets, l.bets[id].Clone())
	}
	l.mu.Unlock()
	payload.Available = l.wallet.Available().String()
	l.bus.Publish(events.TypeLedgerChanged, payload)
}
