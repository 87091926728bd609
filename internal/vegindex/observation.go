// Package vegindex loads and prepares vegetation-index observation series
// for curve fitting: parsing from CSV or SQLite sources, validation against
// the physically plausible value range, chronological ordering, year
// filtering, and spike removal.
package vegindex

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Observation is one vegetation-index sample. Immutable once loaded.
type Observation struct {
	Time   time.Time
	Value  float64
	Source string
}

// Series is the chronologically sorted observation sequence for one site.
// Sorting is a postcondition of loading; nothing mutates a Series afterward.
type Series []Observation

// LoadStats describes what loading did to the raw rows.
type LoadStats struct {
	// Rows is the number of observations loaded.
	Rows int

	// Clamped counts values in [-1, 0) raised to 0. Snow and open water push
	// the index slightly negative; the documented range starts at 0.
	Clamped int
}

// normalizeValue validates a raw index value and clamps the slightly negative
// readings. Values outside [-1, 1] are physically impossible and rejected.
func normalizeValue(v float64) (value float64, clamped bool, err error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, fmt.Errorf("value %v is not a number", v)
	}
	if v < -1 || v > 1 {
		return 0, false, fmt.Errorf("value %g outside the physical range [-1, 1]", v)
	}
	if v < 0 {
		return 0, true, nil
	}
	return v, false, nil
}

// observationTimeFormats are the accepted date layouts, tried in order.
var observationTimeFormats = []string{
	"2006-01-02",
	time.RFC3339,
}

func parseObservationTime(s string) (time.Time, error) {
	for _, layout := range observationTimeFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

func sortSeries(s Series) {
	sort.SliceStable(s, func(i, j int) bool { return s[i].Time.Before(s[j].Time) })
}

// FilterYears returns the observations with calendar years in [minYear,
// maxYear], both inclusive. The input is never modified.
func FilterYears(s Series, minYear, maxYear int) Series {
	out := make(Series, 0, len(s))
	for _, o := range s {
		if y := o.Time.Year(); y >= minYear && y <= maxYear {
			out = append(out, o)
		}
	}
	return out
}

// Window returns the observations with timestamps in [from, to], both
// inclusive. The series is sorted, so the bounds are found by binary search.
func Window(s Series, from, to time.Time) Series {
	lo := sort.Search(len(s), func(i int) bool { return !s[i].Time.Before(from) })
	hi := sort.Search(len(s), func(i int) bool { return s[i].Time.After(to) })
	if lo >= hi {
		return Series{}
	}
	out := make(Series, hi-lo)
	copy(out, s[lo:hi])
	return out
}

// YearRange returns the first and last calendar years present in the series.
func YearRange(s Series) (minYear, maxYear int, ok bool) {
	if len(s) == 0 {
		return 0, 0, false
	}
	return s[0].Time.Year(), s[len(s)-1].Time.Year(), true
}
