package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ResolverTier = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cashier_resolver_resolutions_total",
		Help: "Draw number resolutions by the tier that answered",
	}, []string{"tier"})

	StaleSelectionsPurged = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cashier_resolver_stale_selections_total",
		Help: "Pinned draws discarded because the draw had already run",
	})

	DrawCompletions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cashier_draw_completions_total",
		Help: "Draw cycle completions applied, by source",
	}, []string{"source"})

	BroadcastMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cashier_broadcast_messages_total",
		Help: "Cross-terminal messages by type and outcome",
	}, []string{"type", "outcome"})

	LedgerOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cashier_ledger_operations_total",
		Help: "Bet ledger mutations by operation and outcome",
	}, []string{"op", "outcome"})

	UnknownPositions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cashier_ledger_unknown_positions_total",
		Help: "Bets placed on positions that could not be classified",
	})

	RemoteRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cashier_remote_requests_total",
		Help: "Draw service requests by endpoint and outcome",
	}, []string{"endpoint", "outcome"})

	StoreWriteFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cashier_store_write_failures_total",
		Help: "Failed persistence writes by key",
	}, []string{"key"})

	SlipsPrinted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cashier_slips_printed_total",
		Help: "Slips printed by printer variant and outcome",
	}, []string{"printer", "outcome"})

	CurrentDraw = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cashier_current_draw_number",
		Help: "Current draw number as seen by this terminal",
	})

	ScreenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cashier_screen_connections",
		Help: "Open WebSocket connections to terminal and TV screens",
	})
)

// MustRegister registers every collector on reg.
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		ResolverTier,
		StaleSelectionsPurged,
		DrawCompletions,
		BroadcastMessages,
		LedgerOperations,
		UnknownPositions,
		RemoteRequests,
		StoreWriteFailures,
		SlipsPrinted,
		CurrentDraw,
		ScreenConnections,
	)
}
