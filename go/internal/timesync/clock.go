package timesync

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const (
	DefaultUTCOffset = -4 * time.Hour
	DefaultInterval  = 3 * time.Minute
	maxUTCOffset     = 14 * time.Hour
)

// GeorgetownClock reads wall-clock time at a fixed UTC offset, so every
// terminal computes the same draw grid regardless of its own timezone.
type GeorgetownClock struct {
	clock clockwork.Clock
	loc   *time.Location
}

// NewGeorgetownClock builds a clock at offset. An offset that is not a
// whole number of minutes or lies outside ±14h falls back to the host's
// local time.
func NewGeorgetownClock(c clockwork.Clock, offset time.Duration) *GeorgetownClock {
	if offset < -maxUTCOffset || offset > maxUTCOffset || offset%time.Minute != 0 {
		log.Warn().Dur("offset", offset).Msg("invalid UTC offset, falling back to local time")
		return &GeorgetownClock{clock: c, loc: time.Local}
	}
	return &GeorgetownClock{clock: c, loc: time.FixedZone("GYT", int(offset.Seconds()))}
}

func (g *GeorgetownClock) Now() time.Time {
	return g.clock.Now().In(g.loc)
}

func (g *GeorgetownClock) Location() *time.Location {
	return g.loc
}

// NextDrawTime returns the first instant strictly after now that lies on
// the interval grid counted from the Unix epoch.
func NextDrawTime(now time.Time, interval time.Duration) time.Time {
	if interval <= 0 {
		interval = DefaultInterval
	}
	step := interval.Milliseconds()
	ms := now.UnixMilli()
	next := (floorDiv(ms, step) + 1) * step
	return time.UnixMilli(next).In(now.Location())
}

// UpcomingDrawTimes lists n draw times starting at first.
func UpcomingDrawTimes(first time.Time, interval time.Duration, n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = first.Add(time.Duration(i) * interval)
	}
	return out
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
