package models

import "time"

// Color is the pocket colour of a wheel number.
type Color string

const (
	ColorGreen Color = "green"
	ColorRed   Color = "red"
	ColorBlack Color = "black"
)

var redNumbers = map[int]bool{
	1: true, 3: true, 5: true, 7: true, 9: true, 12: true, 14: true, 16: true, 18: true,
	19: true, 21: true, 23: true, 25: true, 27: true, 30: true, 32: true, 34: true, 36: true,
}

// ColorOf returns the pocket colour of n. Out of range numbers are green.
func ColorOf(n int) Color {
	if n <= 0 || n > 36 {
		return ColorGreen
	}
	if redNumbers[n] {
		return ColorRed
	}
	return ColorBlack
}

// IsRed reports whether n is a red pocket.
func IsRed(n int) bool {
	return ColorOf(n) == ColorRed
}

// DrawState is the countdown/draw-number state shared by every terminal.
type DrawState struct {
	CurrentDrawNumber int         `json:"currentDrawNumber"`
	NextDrawNumber    int         `json:"nextDrawNumber"`
	NextDrawTime      time.Time   `json:"nextDrawTime"`
	UpcomingDrawTimes []time.Time `json:"upcomingDrawTimes,omitempty"`
	LastWinningNumber *int        `json:"lastWinningNumber,omitempty"`
	UpdatedAt         time.Time   `json:"updatedAt"`
}

// Clone returns a copy that shares no slices or pointers with s.
func (s DrawState) Clone() DrawState {
	out := s
	out.UpcomingDrawTimes = append([]time.Time(nil), s.UpcomingDrawTimes...)
	if s.LastWinningNumber != nil {
		n := *s.LastWinningNumber
		out.LastWinningNumber = &n
	}
	return out
}

// DrawResult is one completed draw.
type DrawResult struct {
	DrawNumber    int       `json:"draw_number"`
	WinningNumber int       `json:"winning_number"`
	Color         Color     `json:"color"`
	TransactionID string    `json:"transaction_id"`
	Origin        string    `json:"origin"`
	CompletedAt   time.Time `json:"completed_at"`
}

// UpcomingDraw is one row of the upcoming draws widget.
type UpcomingDraw struct {
	DrawNumber int       `json:"draw_number"`
	DrawTime   time.Time `json:"draw_time"`
	BetCount   int       `json:"bet_count"`
	Selected   bool      `json:"selected"`
}
