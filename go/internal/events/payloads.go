package events

import (
	"time"

	"github.com/mcdev12/cashier/go/internal/models"
)

// Event payload types shared between the core services and the gateway

// Type identifies an in-process event.
type Type string

const (
	TypeDrawState          Type = "draw_state"
	TypeDrawCompleted      Type = "draw_complete"
	TypeDrawNumbersUpdated Type = "draw_numbers_updated"
	TypeSelectionChanged   Type = "selection_changed"
	TypeSelectionCleared   Type = "selection_cleared"
	TypeUpcomingDraws      Type = "upcoming_draws"
	TypeChipUpdate         Type = "chip_update"
	TypeLedgerChanged      Type = "ledger_changed"
	TypeOperatorNotice     Type = "operator_notice"
	TypePrintJob           Type = "print_job"
)

// DrawCompletePayload is broadcast when a terminal completes a draw.
type DrawCompletePayload struct {
	TransactionID       string    `json:"transactionId"`
	CompletedDrawNumber int       `json:"completedDrawNumber"`
	WinningNumber       int       `json:"winningNumber"`
	CurrentDrawNumber   int       `json:"currentDrawNumber"`
	NextDrawNumber      int       `json:"nextDrawNumber"`
	NextDrawTime        time.Time `json:"nextDrawTime"`
	CompletedAt         time.Time `json:"completedAt"`
	Origin              string    `json:"origin"`
	Remote              bool      `json:"-"`
}

// TimeSyncPayload is the periodic state heartbeat between terminals.
type TimeSyncPayload struct {
	CurrentDrawNumber int       `json:"currentDrawNumber"`
	NextDrawNumber    int       `json:"nextDrawNumber"`
	NextDrawTime      time.Time `json:"nextDrawTime"`
}

// DrawNumbersPayload carries numbers observed from the draw service.
type DrawNumbersPayload struct {
	CurrentDrawNumber int       `json:"currentDrawNumber"`
	NextDrawNumber    int       `json:"nextDrawNumber"`
	Source            string    `json:"source"`
	ObservedAt        time.Time `json:"observedAt"`
}

// SelectionPayload describes the operator's pinned draw. A nil DrawNumber
// means the pin was removed.
type SelectionPayload struct {
	DrawNumber *int `json:"drawNumber"`
}

// SelectionClearedPayload is emitted after a stale pin was purged.
type SelectionClearedPayload struct {
	InvalidDrawNumber int      `json:"invalidDrawNumber"`
	CurrentDrawNumber int      `json:"currentDrawNumber"`
	ClearedKeys       []string `json:"clearedKeys"`
}

// ChipPayload updates the chip rendered on one board cell.
type ChipPayload struct {
	Cell    string `json:"cell"`
	Amount  string `json:"amount,omitempty"`
	Virtual bool   `json:"virtual,omitempty"`
	Cleared bool   `json:"cleared,omitempty"`
}

// LedgerPayload summarises the slip being built.
type LedgerPayload struct {
	Bets      []models.Bet  `json:"bets"`
	Totals    models.Totals `json:"totals"`
	Available string        `json:"available"`
}

// NoticeLevel is the severity of an operator notice.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// NoticePayload is a message shown to the cashier.
type NoticePayload struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}
