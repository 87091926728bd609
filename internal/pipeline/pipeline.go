// Package pipeline runs the land-surface-phenology extraction end to end:
// load and condition a vegetation-index series, fit the multi-year average
// curve, refine each year against it, and reduce the fits to transition
// dates and season lengths.
package pipeline

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/hu-forest/phenoflux/internal/lsp"
	"github.com/hu-forest/phenoflux/internal/sites"
	"github.com/hu-forest/phenoflux/internal/vegindex"
	"github.com/hu-forest/phenoflux/pkg/config"
	"go.uber.org/zap"
)

// Pipeline holds the configuration and logger for one run.
type Pipeline struct {
	cfg    *config.Data
	logger *zap.SugaredLogger
}

// New creates a pipeline from validated configuration.
func New(cfg *config.Data, logger *zap.SugaredLogger) *Pipeline {
	return &Pipeline{
		cfg:    cfg,
		logger: logger,
	}
}

// Result collects everything one run produced.
type Result struct {
	Site         *sites.Site
	Source       string
	LoadStats    vegindex.LoadStats
	Despiked     int
	Observations int
	Years        []int

	AverageFit  lsp.CurveParams
	Diagnostics lsp.FitDiagnostics

	Fits    map[int]lsp.YearFit
	Dates   map[int]lsp.PhenoDates
	Seasons []lsp.SeasonLength
	Skipped []lsp.SkippedYear

	Started time.Time
	Elapsed time.Duration
}

// Run executes the pipeline and returns its result. Per-year problems become
// skip records; only input, configuration, average-fit, and cancellation
// errors abort the run.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	result := &Result{Started: time.Now()}

	if p.cfg.Site.SitesFile != "" && p.cfg.Site.ID != "" {
		siteList, err := sites.Load(p.cfg.Site.SitesFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load sites: %w", err)
		}
		site, ok := sites.Find(siteList, p.cfg.Site.ID)
		if !ok {
			return nil, fmt.Errorf("site %s not found in %s", p.cfg.Site.ID, p.cfg.Site.SitesFile)
		}
		result.Site = &site
		p.logger.Infow("processing site",
			"id", site.ID,
			"name", site.Name,
			"latitude", site.Latitude,
			"longitude", site.Longitude)
	}

	series, err := p.loadSeries(result)
	if err != nil {
		return nil, err
	}

	years := p.yearsToFit(series)
	if len(years) == 0 {
		return nil, fmt.Errorf("no observations in configured year range")
	}
	result.Years = years
	result.Observations = len(series)

	if err := p.fitAverage(ctx, series, result); err != nil {
		return nil, err
	}

	if err := p.fitYears(ctx, series, result); err != nil {
		return nil, err
	}

	p.extractDates(result)
	result.Seasons = lsp.AggregateSeasons(result.Dates)
	result.Elapsed = time.Since(result.Started)

	p.logger.Infow("run complete",
		"years", len(result.Years),
		"fitted", len(result.Fits),
		"dated", len(result.Dates),
		"skipped", len(result.Skipped),
		"elapsed", result.Elapsed.Round(time.Millisecond))
	return result, nil
}

// loadSeries reads the observation series and applies despiking and the
// configured year filter.
func (p *Pipeline) loadSeries(result *Result) (vegindex.Series, error) {
	provider, err := vegindex.NewSeriesProvider(p.cfg.Input.SeriesFile)
	if err != nil {
		return nil, err
	}
	defer provider.Close()

	series, stats, err := provider.LoadSeries()
	if err != nil {
		return nil, fmt.Errorf("failed to load observations: %w", err)
	}
	result.Source = provider.Describe()
	result.LoadStats = stats
	p.logger.Infof("loaded %d observations from %s", len(series), provider.Describe())
	if stats.Clamped > 0 {
		p.logger.Warnf("clamped %d slightly negative index values to zero", stats.Clamped)
	}

	if d := p.cfg.Input.Despike; d.Enabled {
		var removed int
		series, removed = vegindex.Despike(series, vegindex.DespikeOptions{
			Window:    d.Window,
			Threshold: d.Threshold,
		})
		result.Despiked = removed
		if removed > 0 {
			p.logger.Infof("despiking removed %d of %d observations", removed, removed+len(series))
		}
	}

	// A zero bound means unset, not year zero.
	if minYear, maxYear := p.cfg.Input.MinYear, p.cfg.Input.MaxYear; minYear != 0 || maxYear != 0 {
		if minYear == 0 {
			minYear = math.MinInt32
		}
		if maxYear == 0 {
			maxYear = math.MaxInt32
		}
		series = vegindex.FilterYears(series, minYear, maxYear)
	}
	return series, nil
}

// yearsToFit lists the calendar years the run covers, from configuration when
// both bounds are set and from the data otherwise.
func (p *Pipeline) yearsToFit(series vegindex.Series) []int {
	minYear, maxYear, ok := vegindex.YearRange(series)
	if !ok {
		return nil
	}
	if y := p.cfg.Input.MinYear; y != 0 && y > minYear {
		minYear = y
	}
	if y := p.cfg.Input.MaxYear; y != 0 && y < maxYear {
		maxYear = y
	}

	years := make([]int, 0, maxYear-minYear+1)
	for y := minYear; y <= maxYear; y++ {
		years = append(years, y)
	}
	return years
}

// fitAverage pools every observation onto a single season by day of year and
// fits the shared average curve.
func (p *Pipeline) fitAverage(ctx context.Context, series vegindex.Series, result *Result) error {
	pooled := make([]lsp.Point, len(series))
	for i, o := range series {
		pooled[i] = lsp.Point{Day: lsp.FoldedDay(o.Time), Value: o.Value}
	}

	avg, diag, err := lsp.FitAverage(ctx, pooled, p.fitOptions())
	if err != nil {
		return fmt.Errorf("average fit failed: %w", err)
	}
	result.AverageFit = avg
	result.Diagnostics = diag
	p.logger.Infow("average fit converged",
		"restarts", diag.Restarts,
		"converged", diag.Converged,
		"rss", diag.BestRSS,
		"residual_std_dev", diag.ResidualStdDev,
		"spring_day", avg.SpringDay,
		"autumn_day", avg.AutumnDay)
	return nil
}

// fitYears refines each year against the average fit. Years that cannot be
// fitted become skip records.
func (p *Pipeline) fitYears(ctx context.Context, series vegindex.Series, result *Result) error {
	yearData := make([]lsp.YearData, len(result.Years))
	for i, year := range result.Years {
		w := lsp.NewYearWindow(year, p.cfg.WindowPadDays)
		sub := vegindex.Window(series, w.Start, w.End)
		points := make([]lsp.Point, len(sub))
		for j, o := range sub {
			points[j] = lsp.Point{Day: lsp.DayOfSeason(o.Time, year), Value: o.Value}
		}
		yearData[i] = lsp.YearData{Year: year, Points: points}
	}

	fits, skipped, err := lsp.FitYears(ctx, yearData, result.AverageFit, p.sampleOptions(result.Diagnostics))
	if err != nil {
		return err
	}
	result.Fits = fits
	result.Skipped = skipped
	for _, s := range skipped {
		p.logger.Warnw("year skipped", "year", s.Year, "reason", s.Reason, "detail", s.Err)
	}
	return nil
}

// extractDates reduces each fitted year to transition dates. Extraction
// failures become skip records, never aborts.
func (p *Pipeline) extractDates(result *Result) {
	opts := lsp.TransitionOptions{
		Method:            lsp.Method(p.cfg.Transitions.Method),
		ThresholdFraction: p.cfg.Transitions.ThresholdFraction,
		MinAmplitude:      p.cfg.Transitions.MinAmplitude,
	}

	result.Dates = make(map[int]lsp.PhenoDates, len(result.Fits))
	for year, fit := range result.Fits {
		w := lsp.NewYearWindow(year, p.cfg.WindowPadDays)
		dates, err := lsp.DatesWithIntervals(fit, w, opts)
		if err != nil {
			result.Skipped = append(result.Skipped, lsp.SkippedYear{
				Year:   year,
				Reason: lsp.SkipReason(err),
				Err:    err,
			})
			p.logger.Warnw("year skipped", "year", year, "reason", lsp.SkipReason(err))
			continue
		}
		result.Dates[year] = dates
	}

	sort.Slice(result.Skipped, func(i, j int) bool {
		return result.Skipped[i].Year < result.Skipped[j].Year
	})
}

// fitOptions maps configuration onto average-fit options.
func (p *Pipeline) fitOptions() lsp.FitOptions {
	return lsp.FitOptions{
		Restarts:       p.cfg.Fit.Restarts,
		Seed:           p.cfg.Fit.Seed,
		MaxIterations:  p.cfg.Fit.MaxIterations,
		MaxEvaluations: p.cfg.Fit.MaxEvaluations,
		Workers:        p.cfg.Workers,
		NoiseScale:     p.cfg.Fit.NoiseScale,
		Residuals:      lsp.ResidualModel(p.cfg.Fit.Residuals),
		StudentNu:      p.cfg.Fit.StudentNu,
	}
}

// sampleOptions maps configuration onto per-year sampler options. The
// likelihood scale comes from the average-fit residuals unless configuration
// pins it.
func (p *Pipeline) sampleOptions(diag lsp.FitDiagnostics) lsp.SampleOptions {
	scale := p.cfg.Fit.NoiseScale
	if scale <= 0 {
		scale = diag.ResidualStdDev
	}
	return lsp.SampleOptions{
		Draws:           p.cfg.Sampler.Draws,
		BurnIn:          p.cfg.Sampler.BurnIn,
		Thin:            p.cfg.Sampler.Thin,
		PriorScale:      p.cfg.Sampler.PriorScale,
		StepScale:       p.cfg.Sampler.StepScale,
		MinObservations: p.cfg.Sampler.MinObservations,
		MinAcceptance:   p.cfg.Sampler.MinAcceptance,
		Workers:         p.cfg.Workers,
		Seed:            p.cfg.Fit.Seed,
		NoiseScale:      scale,
		Residuals:       lsp.ResidualModel(p.cfg.Fit.Residuals),
		StudentNu:       p.cfg.Fit.StudentNu,
	}
}
