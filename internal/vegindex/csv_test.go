package vegindex

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeSeriesFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "series.csv")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	return path
}

func TestCSVProviderLoadSeries(t *testing.T) {
	path := writeSeriesFile(t, `date,evi2,source
2012-06-02,0.45,MOD09Q1
2012-01-01,0.12,MOD09Q1
2012-02-10,-0.03,MOD09Q1
2012-09-14,0.31,MYD09Q1
`)

	provider := NewCSVProvider(path)
	defer provider.Close()

	series, stats, err := provider.LoadSeries()
	if err != nil {
		t.Fatalf("expected load to succeed, got %v", err)
	}

	if stats.Rows != 4 {
		t.Errorf("expected 4 rows, got %d", stats.Rows)
	}
	if stats.Clamped != 1 {
		t.Errorf("expected 1 clamped value, got %d", stats.Clamped)
	}

	// Chronological order regardless of file order.
	for i := 1; i < len(series); i++ {
		if series[i].Time.Before(series[i-1].Time) {
			t.Fatalf("expected sorted series, got %s before %s", series[i-1].Time, series[i].Time)
		}
	}
	if !series[0].Time.Equal(time.Date(2012, time.January, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("expected series to start on 2012-01-01, got %s", series[0].Time)
	}
	if series[1].Value != 0 {
		t.Errorf("expected clamped value 0, got %g", series[1].Value)
	}
	if series[3].Source != "MYD09Q1" {
		t.Errorf("expected source MYD09Q1, got %q", series[3].Source)
	}
}

func TestCSVProviderTwoColumns(t *testing.T) {
	path := writeSeriesFile(t, "2012-06-02,0.45\n2012-06-10,0.47\n")

	series, stats, err := NewCSVProvider(path).LoadSeries()
	if err != nil {
		t.Fatalf("expected load to succeed, got %v", err)
	}
	if stats.Rows != 2 || len(series) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(series))
	}
	if series[0].Source != "" {
		t.Errorf("expected empty source, got %q", series[0].Source)
	}
}

func TestCSVProviderRowErrors(t *testing.T) {
	tests := []struct {
		name     string
		contents string
		wantRow  int
	}{
		{
			name:     "unparseable date",
			contents: "2012-06-02,0.45\n06/10/2012,0.47\n",
			wantRow:  2,
		},
		{
			name:     "unparseable value",
			contents: "2012-06-02,abc\n",
			wantRow:  1,
		},
		{
			name:     "missing value",
			contents: "2012-06-02,0.45\n2012-06-10,\n",
			wantRow:  2,
		},
		{
			name:     "value above physical range",
			contents: "date,evi2\n2012-06-02,1.4\n",
			wantRow:  2,
		},
		{
			name:     "value below physical range",
			contents: "2012-06-02,-1.4\n",
			wantRow:  1,
		},
		{
			name:     "too few columns",
			contents: "2012-06-02\n",
			wantRow:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeSeriesFile(t, tt.contents)

			_, _, err := NewCSVProvider(path).LoadSeries()
			var rowErr *RowError
			if !errors.As(err, &rowErr) {
				t.Fatalf("expected a RowError, got %v", err)
			}
			if rowErr.Row != tt.wantRow {
				t.Errorf("expected row %d, got %d", tt.wantRow, rowErr.Row)
			}
		})
	}
}

func TestCSVProviderMissingFile(t *testing.T) {
	_, _, err := NewCSVProvider(filepath.Join(t.TempDir(), "absent.csv")).LoadSeries()
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestNewSeriesProvider(t *testing.T) {
	p, err := NewSeriesProvider("series.csv")
	if err != nil {
		t.Fatalf("expected a provider for .csv, got %v", err)
	}
	if _, ok := p.(*CSVProvider); !ok {
		t.Errorf("expected a CSVProvider, got %T", p)
	}

	if _, err := NewSeriesProvider("series.parquet"); err == nil {
		t.Error("expected an error for an unsupported extension")
	}
}
