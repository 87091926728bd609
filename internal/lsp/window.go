package lsp

import (
	"math"
	"time"
)

// YearWindow is the observation window for one per-year fit. Padding pulls in
// late-winter and early-winter observations from the neighboring years so the
// curve shoulders are constrained.
type YearWindow struct {
	Year  int
	Start time.Time
	End   time.Time
}

// NewYearWindow returns the window for year padded by padDays on each side.
func NewYearWindow(year, padDays int) YearWindow {
	jan1 := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	dec31 := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
	return YearWindow{
		Year:  year,
		Start: jan1.AddDate(0, 0, -padDays),
		End:   dec31.AddDate(0, 0, padDays),
	}
}

// Contains reports whether t falls inside the window, inclusive on both ends.
func (w YearWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// DayOfSeason converts a timestamp to the day coordinate used by the model:
// days since January 1 of the window year, with January 1 itself at 1. Padded
// observations from the previous December map to values at or below zero.
func DayOfSeason(t time.Time, year int) float64 {
	jan1 := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return t.Sub(jan1).Hours()/24 + 1
}

// FoldedDay collapses a timestamp onto the single pooled season used by the
// average fit, ignoring the year.
func FoldedDay(t time.Time) float64 {
	return float64(t.YearDay())
}

// DateOfDay converts a day coordinate back to a calendar date, rounding to
// the nearest whole day at midnight UTC.
func DateOfDay(year int, day float64) time.Time {
	jan1 := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return jan1.AddDate(0, 0, int(math.Round(day))-1)
}
