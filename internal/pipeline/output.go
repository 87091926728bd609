package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/hu-forest/phenoflux/internal/lsp"
	"github.com/hu-forest/phenoflux/pkg/solar"
	"github.com/vmihailenco/msgpack/v5"
)

const dateLayout = "2006-01-02"

// Output file names inside the configured directory.
const (
	datesFileName   = "pheno_dates.csv"
	seasonsFileName = "season_lengths.csv"
	skipsFileName   = "skipped_years.csv"
	reportBaseName  = "results"
)

// WriteOutputs writes the CSV tables and, when configured, a machine-readable
// run report into the output directory.
func (p *Pipeline) WriteOutputs(res *Result) error {
	dir := p.cfg.Output.Directory
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := p.writeDates(res, filepath.Join(dir, datesFileName)); err != nil {
		return err
	}
	if err := writeSeasons(res, filepath.Join(dir, seasonsFileName)); err != nil {
		return err
	}
	if err := writeSkips(res, filepath.Join(dir, skipsFileName)); err != nil {
		return err
	}

	switch p.cfg.Output.Format {
	case "json":
		if err := writeJSONReport(p.BuildReport(res), filepath.Join(dir, reportBaseName+".json")); err != nil {
			return err
		}
	case "msgpack":
		if err := writeMsgpackReport(p.BuildReport(res), filepath.Join(dir, reportBaseName+".msgpack")); err != nil {
			return err
		}
	}

	p.logger.Infof("wrote results for %d years to %s", len(res.Dates), dir)
	return nil
}

// writeDates writes the transition-date table, one row per dated year. With
// day-length annotation enabled and site coordinates known, each transition
// date also gets its photoperiod in hours.
func (p *Pipeline) writeDates(res *Result, path string) error {
	withDayLength := p.cfg.Output.DayLength && res.Site != nil

	header := []string{
		"year",
		"greenup", "greenup_low", "greenup_high",
		"dormancy", "dormancy_low", "dormancy_high",
		"method",
	}
	if withDayLength {
		header = append(header, "greenup_daylength_h", "dormancy_daylength_h")
	}

	rows := make([][]string, 0, len(res.Dates))
	for _, year := range sortedYears(res.Dates) {
		d := res.Dates[year]
		row := []string{
			strconv.Itoa(year),
			d.Greenup.Format(dateLayout),
			d.GreenupLow.Format(dateLayout),
			d.GreenupHigh.Format(dateLayout),
			d.Dormancy.Format(dateLayout),
			d.DormancyLow.Format(dateLayout),
			d.DormancyHigh.Format(dateLayout),
			string(d.Method),
		}
		if withDayLength {
			row = append(row,
				strconv.FormatFloat(solar.DayLength(d.Greenup, res.Site.Latitude), 'f', 2, 64),
				strconv.FormatFloat(solar.DayLength(d.Dormancy, res.Site.Latitude), 'f', 2, 64))
		}
		rows = append(rows, row)
	}

	return writeCSV(path, header, rows)
}

func writeSeasons(res *Result, path string) error {
	rows := make([][]string, 0, len(res.Seasons))
	for _, s := range res.Seasons {
		rows = append(rows, []string{strconv.Itoa(s.Year), strconv.Itoa(s.Days)})
	}
	return writeCSV(path, []string{"year", "season_days"}, rows)
}

func writeSkips(res *Result, path string) error {
	rows := make([][]string, 0, len(res.Skipped))
	for _, s := range res.Skipped {
		detail := ""
		if s.Err != nil {
			detail = s.Err.Error()
		}
		rows = append(rows, []string{strconv.Itoa(s.Year), s.Reason, detail})
	}
	return writeCSV(path, []string{"year", "reason", "detail"}, rows)
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func writeJSONReport(report *RunReport, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func writeMsgpackReport(report *RunReport, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	enc := msgpack.NewEncoder(f)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

func sortedYears(dates map[int]lsp.PhenoDates) []int {
	years := make([]int, 0, len(dates))
	for y := range dates {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}
