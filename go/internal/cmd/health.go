package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mcdev12/cashier/go/internal/drawsync"
	"github.com/mcdev12/cashier/go/internal/gateway"
	"github.com/mcdev12/cashier/go/internal/store"
	"github.com/mcdev12/cashier/go/internal/timesync"
	"github.com/rs/zerolog/log"
)

type HealthStatus struct {
	Healthy           bool      `json:"healthy"`
	StoreConnected    bool      `json:"store_connected"`
	CurrentDraw       int       `json:"current_draw"`
	NextDraw          int       `json:"next_draw"`
	NextDrawTime      time.Time `json:"next_draw_time"`
	LastDrawSync      time.Time `json:"last_draw_sync"`
	ScreenConnections int       `json:"screen_connections"`
	Errors            []string  `json:"errors"`
}

// HealthChecker reports whether the terminal can take bets. A stale draw
// feed is reported but does not fail the check; the local clock keeps
// running without it.
type HealthChecker struct {
	store       store.Store
	timeSync    *timesync.Service
	drawSync    *drawsync.Service
	connections *gateway.ConnectionManager
	threshold   time.Duration
}

func NewHealthChecker(services *Services, threshold time.Duration) *HealthChecker {
	return &HealthChecker{
		store:       services.Store,
		timeSync:    services.TimeSync,
		drawSync:    services.DrawSync,
		connections: services.Connections,
		threshold:   threshold,
	}
}

func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{Healthy: true, Errors: []string{}}

	if _, err := h.store.Get(ctx, store.KeyCurrentDrawNumber); err != nil && !errors.Is(err, store.ErrNotFound) {
		status.Healthy = false
		status.Errors = append(status.Errors, fmt.Sprintf("store read failed: %v", err))
	} else {
		status.StoreConnected = true
	}

	state := h.timeSync.State()
	status.CurrentDraw = state.CurrentDrawNumber
	status.NextDraw = state.NextDrawNumber
	status.NextDrawTime = state.NextDrawTime

	if snap, ok := h.drawSync.Latest(); ok {
		status.LastDrawSync = snap.ObservedAt
		if since := time.Since(snap.ObservedAt); since > h.threshold {
			status.Errors = append(status.Errors, fmt.Sprintf("no draw sync for %s", since.Round(time.Second)))
		}
	}

	status.ScreenConnections = h.connections.GetConnectionStats().TotalConnections
	return status
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Error().Err(err).Msg("failed to write health check response")
	}
}
