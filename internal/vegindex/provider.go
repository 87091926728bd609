package vegindex

import (
	"fmt"
	"path/filepath"
	"strings"
)

// SeriesProvider loads one site's observation series from a data source.
type SeriesProvider interface {
	// LoadSeries reads, validates, and chronologically sorts the series.
	LoadSeries() (Series, LoadStats, error)

	// Describe names the source for logs and reports.
	Describe() string

	Close() error
}

// NewSeriesProvider picks a provider from the file extension: .csv for
// delimited text, .db/.sqlite/.sqlite3 for a SQLite database.
func NewSeriesProvider(path string) (SeriesProvider, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return NewCSVProvider(path), nil
	case ".db", ".sqlite", ".sqlite3":
		return NewSQLiteProvider(path)
	default:
		return nil, fmt.Errorf("unsupported series source %q: want .csv, .db, .sqlite, or .sqlite3", path)
	}
}

// RowError reports a malformed input row. Loading stops at the first one;
// there is no sensible fit on top of silently dropped rows.
type RowError struct {
	Source string
	Row    int
	Err    error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("%s: row %d: %v", e.Source, e.Row, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }
