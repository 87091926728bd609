package vegindex

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// CSVProvider loads a series from a delimited text file with columns
// date,evi2,source. The source column is optional and a header row is
// recognized and skipped.
type CSVProvider struct {
	path string
}

// NewCSVProvider creates a CSV-backed series provider.
func NewCSVProvider(path string) *CSVProvider {
	return &CSVProvider{path: path}
}

func (p *CSVProvider) Describe() string { return fmt.Sprintf("csv file %s", p.path) }

func (p *CSVProvider) Close() error { return nil }

// LoadSeries reads the whole file. Any malformed row fails the load with a
// RowError carrying the 1-based row number.
func (p *CSVProvider) LoadSeries() (Series, LoadStats, error) {
	f, err := os.Open(p.path)
	if err != nil {
		return nil, LoadStats{}, fmt.Errorf("failed to open series file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var series Series
	var stats LoadStats
	row := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, LoadStats{}, fmt.Errorf("failed to read series file %s: %w", p.path, err)
		}
		row++

		if row == 1 && isHeaderRow(record) {
			continue
		}
		if len(record) < 2 {
			return nil, LoadStats{}, &RowError{Source: p.path, Row: row, Err: fmt.Errorf("want at least date and value columns, got %d fields", len(record))}
		}

		ts, err := parseObservationTime(strings.TrimSpace(record[0]))
		if err != nil {
			return nil, LoadStats{}, &RowError{Source: p.path, Row: row, Err: err}
		}

		raw := strings.TrimSpace(record[1])
		if raw == "" {
			return nil, LoadStats{}, &RowError{Source: p.path, Row: row, Err: fmt.Errorf("missing value")}
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, LoadStats{}, &RowError{Source: p.path, Row: row, Err: fmt.Errorf("unparseable value %q", raw)}
		}
		value, clamped, err := normalizeValue(v)
		if err != nil {
			return nil, LoadStats{}, &RowError{Source: p.path, Row: row, Err: err}
		}
		if clamped {
			stats.Clamped++
		}

		obs := Observation{Time: ts, Value: value}
		if len(record) > 2 {
			obs.Source = strings.TrimSpace(record[2])
		}
		series = append(series, obs)
	}

	sortSeries(series)
	stats.Rows = len(series)
	return series, stats, nil
}

func isHeaderRow(record []string) bool {
	if len(record) == 0 {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(record[0]), "date")
}
