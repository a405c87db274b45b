package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/cashier/go/internal/events"
	"github.com/mcdev12/cashier/go/internal/models"
	"github.com/mcdev12/cashier/go/internal/resolver"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ErrNoScreen is returned when a job needs the cashier screen and none is
// connected.
var ErrNoScreen = errors.New("no cashier screen connected")

// Terminal pushes ledger and operator traffic to the cashier screen. It is
// the board view, notifier and print sink of the core services.
type Terminal struct {
	cm *ConnectionManager
}

func NewTerminal(cm *ConnectionManager) *Terminal {
	return &Terminal{cm: cm}
}

func (t *Terminal) send(typ events.Type, data any) {
	event, err := NewScreenEvent(typ, data)
	if err != nil {
		log.Error().Err(err).Msg("failed to build screen event")
		return
	}
	t.cm.BroadcastToScreen(ScreenTerminal, event)
}

func (t *Terminal) RenderChip(cell string, amount decimal.Decimal, virtual bool) {
	t.send(events.TypeChipUpdate, events.ChipPayload{Cell: cell, Amount: amount.StringFixed(2), Virtual: virtual})
}

func (t *Terminal) ClearChip(cell string, virtual bool) {
	t.send(events.TypeChipUpdate, events.ChipPayload{Cell: cell, Virtual: virtual, Cleared: true})
}

func (t *Terminal) Notify(_ context.Context, level events.NoticeLevel, message string) {
	t.send(events.TypeOperatorNotice, events.NoticePayload{Level: level, Message: message})
}

// Print hands the receipt to the cashier screen, which owns the printer.
func (t *Terminal) Print(_ context.Context, receipt models.Receipt) error {
	if t.cm.GetConnectionStats().Screens[ScreenTerminal] == 0 {
		return ErrNoScreen
	}
	t.send(events.TypePrintJob, receipt)
	return nil
}

const displayTextMaxAge = 30 * time.Second

// DisplayTextCache holds the draw labels last reported by the cashier
// screen, keyed by selector.
type DisplayTextCache struct {
	mu     sync.RWMutex
	clock  clockwork.Clock
	texts  map[string]string
	seenAt time.Time
}

func NewDisplayTextCache() *DisplayTextCache {
	return &DisplayTextCache{clock: clockwork.NewRealClock(), texts: make(map[string]string)}
}

// Update replaces the cache with a display_text report.
func (c *DisplayTextCache) Update(raw json.RawMessage) error {
	var texts []resolver.DisplayText
	if err := json.Unmarshal(raw, &texts); err != nil {
		return fmt.Errorf("failed to decode display text: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts = make(map[string]string, len(texts))
	for _, t := range texts {
		if t.Selector == "" {
			continue
		}
		c.texts[t.Selector] = t.Text
	}
	c.seenAt = c.clock.Now()
	return nil
}

// DisplayTexts returns the last report, or nothing once it is stale.
func (c *DisplayTextCache) DisplayTexts() []resolver.DisplayText {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.seenAt.IsZero() || c.clock.Since(c.seenAt) > displayTextMaxAge {
		return nil
	}
	out := make([]resolver.DisplayText, 0, len(c.texts))
	for selector, text := range c.texts {
		out = append(out, resolver.DisplayText{Selector: selector, Text: text})
	}
	return out
}
