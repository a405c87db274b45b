package resolver

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/mcdev12/cashier/go/internal/events"
	"github.com/mcdev12/cashier/go/internal/metrics"
	"github.com/mcdev12/cashier/go/internal/store"
	"github.com/rs/zerolog/log"
)

// CleanupStaleSelection removes every persisted selection that is no
// longer in the future and returns the keys it deleted.
func (r *Resolver) CleanupStaleSelection(ctx context.Context, invalid, current int) []string {
	var cleared []string
	if r.store != nil {
		for _, key := range store.SelectionKeys {
			raw, err := r.store.Get(ctx, key)
			if err != nil {
				if !errors.Is(err, store.ErrNotFound) {
					log.Warn().Err(err).Str("key", key).Msg("failed to read selection key")
				}
				continue
			}
			n, err := strconv.Atoi(strings.TrimSpace(raw))
			if err != nil || n > current {
				continue
			}
			if err := r.store.Delete(ctx, key); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("failed to delete stale selection")
				continue
			}
			cleared = append(cleared, key)
		}
	}

	if r.selection != nil {
		r.selection.DropSelection()
	}

	metrics.StaleSelectionsPurged.Add(float64(len(cleared)))
	log.Warn().
		Int("selected_draw", invalid).
		Int("current_draw", current).
		Strs("cleared_keys", cleared).
		Msg("cleared stale draw selection")

	r.bus.Publish(events.TypeSelectionCleared, events.SelectionClearedPayload{
		InvalidDrawNumber: invalid,
		CurrentDrawNumber: current,
		ClearedKeys:       cleared,
	})
	return cleared
}
