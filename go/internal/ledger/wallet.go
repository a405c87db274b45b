package ledger

import (
	"context"
	"errors"
	"sync"

	"github.com/mcdev12/cashier/go/internal/metrics"
	"github.com/mcdev12/cashier/go/internal/store"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Wallet tracks the cash available to stake on this terminal.
type Wallet struct {
	mu        sync.Mutex
	available decimal.Decimal
	snapshot  *decimal.Decimal
	store     store.Store
}

func NewWallet(s store.Store, opening decimal.Decimal) *Wallet {
	return &Wallet{available: opening, store: s}
}

// Load rehydrates a pre-betting snapshot left by a previous run, so that a
// later refund restores the balance the slip started from.
func (w *Wallet) Load(ctx context.Context) error {
	if w.store == nil {
		return nil
	}
	raw, err := w.store.Get(ctx, store.KeyOriginalCashAmount)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		log.Warn().Err(err).Str("value", raw).Msg("discarding unreadable cash snapshot")
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.snapshot = &v
	w.available = v
	return nil
}

func (w *Wallet) Available() decimal.Decimal {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.available
}

// CanAfford reports whether amount can be debited.
func (w *Wallet) CanAfford(amount decimal.Decimal) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return amount.LessThanOrEqual(w.available)
}

func (w *Wallet) Debit(amount decimal.Decimal) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if amount.GreaterThan(w.available) {
		return ErrInsufficientFunds
	}
	w.available = w.available.Sub(amount)
	return nil
}

func (w *Wallet) Credit(amount decimal.Decimal) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.available = w.available.Add(amount)
}

// SetBalance replaces the balance with the server's authoritative figure.
func (w *Wallet) SetBalance(amount decimal.Decimal) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.available = amount
}

func (w *Wallet) takeSnapshot(ctx context.Context) {
	w.mu.Lock()
	if w.snapshot != nil {
		w.mu.Unlock()
		return
	}
	v := w.available
	w.snapshot = &v
	w.mu.Unlock()

	w.persist(ctx, v.String())
}

func (w *Wallet) restoreSnapshot(ctx context.Context) {
	w.mu.Lock()
	if w.snapshot == nil {
		w.mu.Unlock()
		return
	}
	w.available = *w.snapshot
	w.snapshot = nil
	w.mu.Unlock()

	w.forget(ctx)
}

func (w *Wallet) dropSnapshot(ctx context.Context) {
	w.mu.Lock()
	had := w.snapshot != nil
	w.snapshot = nil
	w.mu.Unlock()

	if had {
		w.forget(ctx)
	}
}

func (w *Wallet) persist(ctx context.Context, value string) {
	if w.store == nil {
		return
	}
	if err := w.store.Set(ctx, store.KeyOriginalCashAmount, value); err != nil {
		metrics.StoreWriteFailures.WithLabelValues(store.KeyOriginalCashAmount).Inc()
		log.Error().Err(err).Msg("failed to persist cash snapshot")
	}
}

func (w *Wallet) forget(ctx context.Context) {
	if w.store == nil {
		return
	}
	if err := w.store.Delete(ctx, store.KeyOriginalCashAmount); err != nil {
		log.Error().Err(err).Msg("failed to delete cash snapshot")
	}
}
