package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/hu-forest/phenoflux/internal/lsp"
	"github.com/hu-forest/phenoflux/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

// truthParams is the curve the synthetic series is generated from: greenup
// at day 100, dormancy at day 300, no summer greendown.
var truthParams = lsp.CurveParams{
	Baseline:   0.12,
	Amplitude:  0.40,
	SpringDay:  100,
	SpringRate: 8,
	AutumnDay:  300,
	AutumnRate: 10,
	Greendown:  0,
}

// writeSyntheticSeries writes a CSV with one observation every 8 days for
// 2018 through 2020 plus two lone winter observations in 2021. The noise is
// a fixed sine pattern so repeat runs see identical data.
func writeSyntheticSeries(t *testing.T, dir string) string {
	t.Helper()

	var b strings.Builder
	b.WriteString("date,evi2\n")
	i := 0
	writeObs := func(year, day int) {
		date := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, day-1)
		v := lsp.Evaluate(truthParams, float64(day)) + 0.008*math.Sin(2.1*float64(i))
		fmt.Fprintf(&b, "%s,%s\n", date.Format("2006-01-02"), strconv.FormatFloat(v, 'f', 4, 64))
		i++
	}
	for year := 2018; year <= 2020; year++ {
		for day := 1; day <= 361; day += 8 {
			writeObs(year, day)
		}
	}
	writeObs(2021, 20)
	writeObs(2021, 50)

	path := filepath.Join(dir, "evi2.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func writeSitesFile(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "sites.csv")
	contents := "site_id,name,latitude,longitude,land_cover\n" +
		"US-Ha1,Harvard Forest,42.5378,-72.1715,deciduous broadleaf\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func testConfig(t *testing.T, dir string) *config.Data {
	t.Helper()
	cfg := config.Default()
	cfg.Site.ID = "US-Ha1"
	cfg.Site.SitesFile = writeSitesFile(t, dir)
	cfg.Input.SeriesFile = writeSyntheticSeries(t, dir)
	cfg.Fit.Restarts = 4
	cfg.Fit.Seed = 5
	cfg.Sampler.Draws = 150
	cfg.Sampler.BurnIn = 400
	cfg.Sampler.Thin = 2
	cfg.Output.Directory = filepath.Join(dir, "out")
	cfg.Output.Format = "json"
	cfg.Output.DayLength = true
	cfg.WindowPadDays = 0
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestPipelineEndToEnd(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)
	p := New(cfg, zap.NewNop().Sugar())

	res, err := p.Run(context.Background())
	require.NoError(t, err)

	require.NotNil(t, res.Site)
	assert.Equal(t, "US-Ha1", res.Site.ID)
	assert.Equal(t, []int{2018, 2019, 2020, 2021}, res.Years)
	assert.Equal(t, 140, res.Observations)

	// The average fit sees three clean years pooled onto one season.
	assert.InDelta(t, truthParams.SpringDay, res.AverageFit.SpringDay, 5)
	assert.InDelta(t, truthParams.AutumnDay, res.AverageFit.AutumnDay, 5)
	assert.Greater(t, res.Diagnostics.Converged, 0)

	require.Len(t, res.Fits, 3)
	require.Len(t, res.Dates, 3)
	for year := 2018; year <= 2020; year++ {
		d, ok := res.Dates[year]
		require.True(t, ok, "expected dates for year %d", year)
		assert.Equal(t, year, d.Greenup.Year())
		assert.InDelta(t, 100, d.Greenup.YearDay(), 5, "greenup year %d", year)
		assert.InDelta(t, 300, d.Dormancy.YearDay(), 5, "dormancy year %d", year)
		assert.True(t, d.Greenup.Before(d.Dormancy))
		assert.True(t, !d.GreenupLow.After(d.GreenupHigh))
		assert.True(t, !d.DormancyLow.After(d.DormancyHigh))
	}

	require.Len(t, res.Seasons, 3)
	for _, s := range res.Seasons {
		assert.InDelta(t, 200, s.Days, 10, "season length year %d", s.Year)
	}

	// The two-observation year is skipped, never fitted.
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, 2021, res.Skipped[0].Year)
	assert.Equal(t, "insufficient data", res.Skipped[0].Reason)
}

func TestPipelineWritesOutputs(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)
	p := New(cfg, zap.NewNop().Sugar())

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, p.WriteOutputs(res))

	dates := readCSVLines(t, filepath.Join(cfg.Output.Directory, "pheno_dates.csv"))
	require.Len(t, dates, 4)
	header := strings.Split(dates[0], ",")
	assert.Contains(t, header, "greenup_daylength_h")
	firstRow := strings.Split(dates[1], ",")
	require.Len(t, firstRow, len(header))
	assert.Equal(t, "2018", firstRow[0])

	// Day length at 42.5N in April sits between the equinox and the solstice.
	daylength, err := strconv.ParseFloat(firstRow[len(firstRow)-2], 64)
	require.NoError(t, err)
	assert.Greater(t, daylength, 10.0)
	assert.Less(t, daylength, 16.0)

	seasons := readCSVLines(t, filepath.Join(cfg.Output.Directory, "season_lengths.csv"))
	require.Len(t, seasons, 4)
	assert.Equal(t, "year,season_days", seasons[0])

	skips := readCSVLines(t, filepath.Join(cfg.Output.Directory, "skipped_years.csv"))
	require.Len(t, skips, 2)
	assert.True(t, strings.HasPrefix(skips[1], "2021,insufficient data"))

	var report RunReport
	data, err := os.ReadFile(filepath.Join(cfg.Output.Directory, "results.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &report))

	assert.NotEmpty(t, report.RunID)
	assert.NotNil(t, report.Settings)
	require.NotNil(t, report.Site)
	assert.Equal(t, "US-Ha1", report.Site.ID)
	require.Len(t, report.Years, 4)
	for _, yr := range report.Years {
		switch yr.Year {
		case 2021:
			assert.Equal(t, "skipped", yr.Status)
			assert.Equal(t, "insufficient data", yr.Reason)
			assert.Nil(t, yr.Params)
		default:
			assert.Equal(t, "fitted", yr.Status)
			require.NotNil(t, yr.Params)
			assert.InDelta(t, 200, yr.SeasonDays, 10)
			assert.NotEmpty(t, yr.Greenup)
		}
	}
}

func TestPipelineYearBounds(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)
	p := New(cfg, zap.NewNop().Sugar())

	// Both bounds unset: every observed year is in scope.
	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{2018, 2019, 2020, 2021}, res.Years)

	// A lone lower bound leaves the upper end open.
	cfg.Input.MinYear = 2019
	res, err = New(cfg, zap.NewNop().Sugar()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{2019, 2020, 2021}, res.Years)
	for year := range res.Dates {
		assert.GreaterOrEqual(t, year, 2019)
	}
}

func TestPipelineRerunIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)
	p := New(cfg, zap.NewNop().Sugar())

	first, err := p.Run(context.Background())
	require.NoError(t, err)
	second, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.AverageFit, second.AverageFit)
	require.Len(t, second.Dates, len(first.Dates))
	for year, d := range first.Dates {
		assert.Equal(t, d.Greenup, second.Dates[year].Greenup, "greenup year %d", year)
		assert.Equal(t, d.Dormancy, second.Dates[year].Dormancy, "dormancy year %d", year)
	}
}

func TestPipelineCanceledContext(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)
	p := New(cfg, zap.NewNop().Sugar())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Run(ctx)
	require.Error(t, err)
}

func TestPipelineSiteNotFound(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)
	cfg.Site.ID = "US-MMS"
	p := New(cfg, zap.NewNop().Sugar())

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "US-MMS")
}

func TestBuildReportMsgpackRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)
	cfg.Output.Format = "msgpack"
	p := New(cfg, zap.NewNop().Sugar())

	greenup := time.Date(2018, time.April, 10, 0, 0, 0, 0, time.UTC)
	dormancy := time.Date(2018, time.October, 27, 0, 0, 0, 0, time.UTC)
	res := &Result{
		Source:       "test fixture",
		Observations: 46,
		Years:        []int{2018, 2019},
		AverageFit:   truthParams,
		Fits: map[int]lsp.YearFit{
			2018: {Year: 2018, Params: truthParams, ParamsLow: truthParams, ParamsHigh: truthParams, Acceptance: 0.3, Observations: 46},
		},
		Dates: map[int]lsp.PhenoDates{
			2018: {
				Year: 2018, Method: lsp.MethodThreshold,
				Greenup: greenup, GreenupLow: greenup, GreenupHigh: greenup,
				Dormancy: dormancy, DormancyLow: dormancy, DormancyHigh: dormancy,
			},
		},
		Seasons: []lsp.SeasonLength{{Year: 2018, Days: 200}},
		Skipped: []lsp.SkippedYear{{Year: 2019, Reason: "insufficient data"}},
		Started: time.Now(),
	}

	require.NoError(t, p.WriteOutputs(res))

	f, err := os.Open(filepath.Join(cfg.Output.Directory, "results.msgpack"))
	require.NoError(t, err)
	defer f.Close()

	dec := msgpack.NewDecoder(f)
	dec.SetCustomStructTag("json")
	var report RunReport
	require.NoError(t, dec.Decode(&report))

	assert.NotEmpty(t, report.RunID)
	require.Len(t, report.Years, 2)
	assert.Equal(t, "fitted", report.Years[0].Status)
	assert.Equal(t, "2018-04-10", report.Years[0].Greenup)
	assert.Equal(t, 200, report.Years[0].SeasonDays)
	assert.Equal(t, "skipped", report.Years[1].Status)
	assert.Equal(t, "insufficient data", report.Years[1].Reason)
}

func readCSVLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}
