package vegindex

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteProvider loads a series from the observations table of a SQLite
// database. The database is an input format only; nothing is ever written
// back.
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteProvider opens the database read-only and verifies the connection.
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}
	return &SQLiteProvider{db: db, dbPath: dbPath}, nil
}

func (p *SQLiteProvider) Describe() string { return fmt.Sprintf("sqlite database %s", p.dbPath) }

func (p *SQLiteProvider) Close() error {
	if p.db == nil {
		return nil
	}
	return p.db.Close()
}

// LoadSeries reads every row of the observations table. A NULL or malformed
// column fails the load with a RowError carrying the 1-based result row.
func (p *SQLiteProvider) LoadSeries() (Series, LoadStats, error) {
	rows, err := p.db.Query(`SELECT date, evi2, source FROM observations ORDER BY date`)
	if err != nil {
		return nil, LoadStats{}, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	var series Series
	var stats LoadStats
	row := 0
	for rows.Next() {
		row++

		var date sql.NullString
		var value sql.NullFloat64
		var source sql.NullString
		if err := rows.Scan(&date, &value, &source); err != nil {
			return nil, LoadStats{}, fmt.Errorf("failed to scan observation row: %w", err)
		}

		if !date.Valid {
			return nil, LoadStats{}, &RowError{Source: p.dbPath, Row: row, Err: fmt.Errorf("null date")}
		}
		ts, err := parseObservationTime(date.String)
		if err != nil {
			return nil, LoadStats{}, &RowError{Source: p.dbPath, Row: row, Err: err}
		}

		if !value.Valid {
			return nil, LoadStats{}, &RowError{Source: p.dbPath, Row: row, Err: fmt.Errorf("null value")}
		}
		v, clamped, err := normalizeValue(value.Float64)
		if err != nil {
			return nil, LoadStats{}, &RowError{Source: p.dbPath, Row: row, Err: err}
		}
		if clamped {
			stats.Clamped++
		}

		obs := Observation{Time: ts, Value: v}
		if source.Valid {
			obs.Source = source.String
		}
		series = append(series, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, LoadStats{}, fmt.Errorf("failed to iterate observations: %w", err)
	}

	sortSeries(series)
	stats.Rows = len(series)
	return series, stats, nil
}
