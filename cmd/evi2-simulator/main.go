// evi2-simulator generates synthetic EVI2 observation series with realistic
// acquisition artifacts: cloud gaps, undetected-cloud outliers, sensor noise,
// and year-to-year shifts of the transition days. The output feeds the
// phenoflux pipeline as CSV or SQLite.
package main

import (
	"database/sql"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hu-forest/phenoflux/internal/lsp"
	_ "modernc.org/sqlite"
)

type observation struct {
	date   time.Time
	value  float64
	source string
}

func main() {
	output := flag.String("output", "evi2.csv", "Output file: .csv, .db, or .sqlite")
	startYear := flag.Int("start-year", 2015, "First calendar year to generate")
	years := flag.Int("years", 6, "Number of calendar years to generate")
	interval := flag.Int("interval", 8, "Days between acquisitions")
	seed := flag.Uint64("seed", 42, "Random seed; a fixed seed reproduces the series exactly")
	noise := flag.Float64("noise", 0.012, "Standard deviation of sensor noise")
	gapFraction := flag.Float64("gap-fraction", 0.12, "Fraction of acquisitions lost to flagged clouds")
	outlierFraction := flag.Float64("outlier-fraction", 0.03, "Fraction of acquisitions depressed by undetected clouds")
	yearJitter := flag.Float64("year-jitter", 4, "Standard deviation of per-year transition-day shifts")
	baseline := flag.Float64("baseline", 0.12, "Winter baseline EVI2")
	amplitude := flag.Float64("amplitude", 0.38, "Seasonal amplitude above the baseline")
	springDay := flag.Float64("spring-day", 120, "Mean spring inflection day of year")
	autumnDay := flag.Float64("autumn-day", 290, "Mean autumn inflection day of year")
	flag.Parse()

	if *years < 1 {
		log.Fatalf("need at least one year, got %d", *years)
	}
	if *interval < 1 {
		log.Fatalf("interval must be at least one day, got %d", *interval)
	}

	params := lsp.CurveParams{
		Baseline:   *baseline,
		Amplitude:  *amplitude,
		SpringDay:  *springDay,
		SpringRate: 7,
		AutumnDay:  *autumnDay,
		AutumnRate: 10,
		Greendown:  3e-4,
	}

	rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
	obs, gaps, outliers := generate(rng, params, *startYear, *years, *interval, *noise, *gapFraction, *outlierFraction, *yearJitter)

	var err error
	switch strings.ToLower(filepath.Ext(*output)) {
	case ".csv":
		err = writeCSV(*output, obs)
	case ".db", ".sqlite", ".sqlite3":
		err = writeSQLite(*output, obs)
	default:
		log.Fatalf("unsupported output type: %s", *output)
	}
	if err != nil {
		log.Fatalf("failed to write %s: %v", *output, err)
	}

	log.Printf("wrote %d observations to %s (%d cloud gaps, %d outliers, years %d-%d)",
		len(obs), *output, gaps, outliers, *startYear, *startYear+*years-1)
}

// generate walks the acquisition calendar and draws one noisy observation per
// surviving acquisition. Each year gets its own transition-day shifts so the
// series has real interannual variation for the per-year fits to find.
func generate(rng *rand.Rand, params lsp.CurveParams, startYear, years, interval int,
	noise, gapFraction, outlierFraction, yearJitter float64) (obs []observation, gaps, outliers int) {

	for year := startYear; year < startYear+years; year++ {
		p := params
		p.SpringDay += yearJitter * rng.NormFloat64()
		p.AutumnDay += yearJitter * rng.NormFloat64()

		jan1 := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		for day := 1; day <= 365; day += interval {
			if rng.Float64() < gapFraction {
				gaps++
				continue
			}

			v := lsp.Evaluate(p, float64(day)) + noise*rng.NormFloat64()
			source := "sim"
			if rng.Float64() < outlierFraction {
				// Undetected cloud: the index drops toward or below zero.
				v -= 0.15 + 0.35*rng.Float64()
				outliers++
				source = "sim-cloud"
			}
			if v < -1 {
				v = -1
			}
			if v > 1 {
				v = 1
			}

			obs = append(obs, observation{
				date:   jan1.AddDate(0, 0, day-1),
				value:  v,
				source: source,
			})
		}
	}
	return obs, gaps, outliers
}

func writeCSV(path string, obs []observation) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"date", "evi2", "source"}); err != nil {
		return err
	}
	for _, o := range obs {
		err := w.Write([]string{
			o.date.Format("2006-01-02"),
			strconv.FormatFloat(o.value, 'f', 4, 64),
			o.source,
		})
		if err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeSQLite(path string, obs []observation) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS observations (
		date TEXT NOT NULL,
		evi2 REAL,
		source TEXT
	)`)
	if err != nil {
		return fmt.Errorf("failed to create observations table: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare("INSERT INTO observations (date, evi2, source) VALUES (?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, o := range obs {
		if _, err := stmt.Exec(o.date.Format("2006-01-02"), o.value, o.source); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
