package gateway

import (
	"github.com/mcdev12/cashier/go/internal/events"
	"github.com/rs/zerolog/log"
)

// routes maps bus events to the screens that render them. Events sent
// directly by Terminal are not listed.
var routes = map[events.Type]Screen{
	events.TypeDrawState:          "",
	events.TypeDrawCompleted:      "",
	events.TypeUpcomingDraws:      "",
	events.TypeSelectionChanged:   "",
	events.TypeLedgerChanged:      ScreenTerminal,
	events.TypeSelectionCleared:   ScreenTerminal,
	events.TypeDrawNumbersUpdated: ScreenTerminal,
}

// Forward relays bus events to the connected screens until the returned
// func is called.
func Forward(bus *events.Bus, cm *ConnectionManager) func() {
	types := make([]events.Type, 0, len(routes))
	for t := range routes {
		types = append(types, t)
	}
	return bus.Subscribe(func(ev events.Event) {
		event, err := NewScreenEvent(ev.Type, ev.Data)
		if err != nil {
			log.Error().Err(err).Str("event_type", string(ev.Type)).Msg("failed to forward event")
			return
		}
		event.Timestamp = ev.Timestamp.UTC()
		if screen := routes[ev.Type]; screen != "" {
			cm.BroadcastToScreen(screen, event)
			return
		}
		cm.BroadcastAll(event)
	}, types...)
}
