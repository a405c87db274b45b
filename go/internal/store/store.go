package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when a key has no value.
var ErrNotFound = errors.New("store: key not found")

// Store is the key/value persistence shared by terminals.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// Keys persisted by the cashier core.
const (
	KeyNextDrawTime          = "georgetown_next_draw_time"
	KeyCurrentDrawNumber     = "georgetown_current_draw_number"
	KeyAtomicUpdate          = "georgetown_atomic_update"
	KeyLastProcessedTxn      = "georgetown_last_processed_transaction"
	KeyTVDisplayCurrentDraw  = "tv_display_current_draw"
	KeyCountdownEndTime      = "roulette_countdown_end_time"
	KeySelectedDrawNumber    = "selected_draw_number"
	KeyOriginalCashAmount    = "originalCashAmount"
	KeyCompleteButtonPos     = "floating-complete-button-position"
	KeyReprintButtonPosition = "reprintSlipButtonPosition"
	KeyLedgerSnapshot        = "bet_ledger_snapshot"
)

// SelectionKeys lists every key that may hold a pinned draw selection.
var SelectionKeys = []string{
	KeySelectedDrawNumber,
	"selectedDrawNumber",
	"cashier_selected_draw",
	"upcoming_selected_draw",
	"tv_display_selected_draw",
}

// PreferenceKeys are opaque UI settings the terminal API may read and write.
var PreferenceKeys = map[string]bool{
	KeyCompleteButtonPos:     true,
	KeyReprintButtonPosition: true,
}
