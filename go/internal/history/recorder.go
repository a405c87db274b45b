package history

import (
	"context"
	"encoding/json"

	"github.com/mcdev12/cashier/go/internal/events"
	"github.com/mcdev12/cashier/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Recorder writes every completed draw to the history repository.
type Recorder struct {
	repo Repository
}

func NewRecorder(repo Repository) *Recorder {
	return &Recorder{repo: repo}
}

type drawMetadata struct {
	Remote         bool `json:"remote"`
	NextDrawNumber int  `json:"next_draw_number"`
}

// OnDrawComplete records the draw described by p. Failures are logged; the
// draw cycle never waits on history.
func (r *Recorder) OnDrawComplete(ctx context.Context, p events.DrawCompletePayload) {
	drawNumber := p.CompletedDrawNumber
	if drawNumber == 0 {
		drawNumber = p.CurrentDrawNumber
	}
	result := models.DrawResult{
		DrawNumber:    drawNumber,
		WinningNumber: p.WinningNumber,
		Color:         models.ColorOf(p.WinningNumber),
		TransactionID: p.TransactionID,
		Origin:        p.Origin,
		CompletedAt:   completedAt(p.CompletedAt),
	}

	meta, err := json.Marshal(drawMetadata{Remote: p.Remote, NextDrawNumber: p.NextDrawNumber})
	if err != nil {
		meta = nil
	}
	if err := r.repo.Record(ctx, result, meta); err != nil {
		log.Error().Err(err).Int("draw_number", drawNumber).Msg("failed to record draw result")
		return
	}
	log.Debug().
		Int("draw_number", drawNumber).
		Int("winning_number", p.WinningNumber).
		Str("color", string(result.Color)).
		Msg("draw result recorded")
}

// Recent returns the latest draws, newest first.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]models.DrawResult, error) {
	return r.repo.Recent(ctx, limit)
}
