package pipeline

import (
	"time"

	"github.com/google/uuid"
	"github.com/hu-forest/phenoflux/internal/constants"
	"github.com/hu-forest/phenoflux/internal/lsp"
	"github.com/hu-forest/phenoflux/pkg/config"
)

// RunReport is the machine-readable summary of one pipeline run, written as
// JSON or msgpack beside the CSV tables.
type RunReport struct {
	RunID     string    `json:"run_id"`
	Version   string    `json:"version"`
	StartedAt time.Time `json:"started_at"`
	ElapsedMS int64     `json:"elapsed_ms"`

	Site         *SiteReport       `json:"site,omitempty"`
	Source       string            `json:"source"`
	Settings     *config.Data      `json:"settings"`
	Observations ObservationReport `json:"observations"`
	AverageFit   AverageFitReport  `json:"average_fit"`
	Years        []YearReport      `json:"years"`
}

// SiteReport echoes the site metadata the run used.
type SiteReport struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	LandCover string  `json:"land_cover,omitempty"`
}

// ObservationReport counts observations through the conditioning stages.
type ObservationReport struct {
	Loaded   int `json:"loaded"`
	Clamped  int `json:"clamped"`
	Despiked int `json:"despiked"`
	Used     int `json:"used"`
}

// AverageFitReport holds the shared curve and its fit diagnostics.
type AverageFitReport struct {
	Params         ParamSet `json:"params"`
	Restarts       int      `json:"restarts"`
	Converged      int      `json:"converged"`
	BestRSS        float64  `json:"best_rss"`
	ResidualStdDev float64  `json:"residual_std_dev"`
}

// ParamSet is one double-logistic parameter vector in the report.
type ParamSet struct {
	Baseline   float64 `json:"baseline"`
	Amplitude  float64 `json:"amplitude"`
	SpringDay  float64 `json:"spring_day"`
	SpringRate float64 `json:"spring_rate"`
	AutumnDay  float64 `json:"autumn_day"`
	AutumnRate float64 `json:"autumn_rate"`
	Greendown  float64 `json:"greendown"`
}

func newParamSet(p lsp.CurveParams) ParamSet {
	return ParamSet{
		Baseline:   p.Baseline,
		Amplitude:  p.Amplitude,
		SpringDay:  p.SpringDay,
		SpringRate: p.SpringRate,
		AutumnDay:  p.AutumnDay,
		AutumnRate: p.AutumnRate,
		Greendown:  p.Greendown,
	}
}

// YearReport is one year's outcome: a dated fit, or a skip with its reason.
// A year that fitted but yielded no transition dates keeps its posterior
// summary alongside the skip reason.
type YearReport struct {
	Year         int       `json:"year"`
	Status       string    `json:"status"`
	Reason       string    `json:"reason,omitempty"`
	Observations int       `json:"observations,omitempty"`
	Acceptance   float64   `json:"acceptance,omitempty"`
	Params       *ParamSet `json:"params,omitempty"`
	ParamsLow    *ParamSet `json:"params_low,omitempty"`
	ParamsHigh   *ParamSet `json:"params_high,omitempty"`
	Greenup      string    `json:"greenup,omitempty"`
	GreenupLow   string    `json:"greenup_low,omitempty"`
	GreenupHigh  string    `json:"greenup_high,omitempty"`
	Dormancy     string    `json:"dormancy,omitempty"`
	DormancyLow  string    `json:"dormancy_low,omitempty"`
	DormancyHigh string    `json:"dormancy_high,omitempty"`
	SeasonDays   int       `json:"season_days,omitempty"`
}

// BuildReport assembles the run report for serialization.
func (p *Pipeline) BuildReport(res *Result) *RunReport {
	report := &RunReport{
		RunID:     uuid.New().String(),
		Version:   constants.Version,
		StartedAt: res.Started.UTC(),
		ElapsedMS: res.Elapsed.Milliseconds(),
		Source:    res.Source,
		Settings:  p.cfg,
		Observations: ObservationReport{
			Loaded:   res.LoadStats.Rows,
			Clamped:  res.LoadStats.Clamped,
			Despiked: res.Despiked,
			Used:     res.Observations,
		},
		AverageFit: AverageFitReport{
			Params:         newParamSet(res.AverageFit),
			Restarts:       res.Diagnostics.Restarts,
			Converged:      res.Diagnostics.Converged,
			BestRSS:        res.Diagnostics.BestRSS,
			ResidualStdDev: res.Diagnostics.ResidualStdDev,
		},
	}

	if res.Site != nil {
		report.Site = &SiteReport{
			ID:        res.Site.ID,
			Name:      res.Site.Name,
			Latitude:  res.Site.Latitude,
			Longitude: res.Site.Longitude,
			LandCover: res.Site.LandCover,
		}
	}

	reasons := make(map[int]string, len(res.Skipped))
	for _, s := range res.Skipped {
		reasons[s.Year] = s.Reason
	}
	seasonDays := make(map[int]int, len(res.Seasons))
	for _, s := range res.Seasons {
		seasonDays[s.Year] = s.Days
	}

	report.Years = make([]YearReport, 0, len(res.Years))
	for _, year := range res.Years {
		yr := YearReport{Year: year}

		if fit, ok := res.Fits[year]; ok {
			params := newParamSet(fit.Params)
			low := newParamSet(fit.ParamsLow)
			high := newParamSet(fit.ParamsHigh)
			yr.Params, yr.ParamsLow, yr.ParamsHigh = &params, &low, &high
			yr.Acceptance = fit.Acceptance
			yr.Observations = fit.Observations
		}

		if d, ok := res.Dates[year]; ok {
			yr.Status = "fitted"
			yr.Greenup = d.Greenup.Format(dateLayout)
			yr.GreenupLow = d.GreenupLow.Format(dateLayout)
			yr.GreenupHigh = d.GreenupHigh.Format(dateLayout)
			yr.Dormancy = d.Dormancy.Format(dateLayout)
			yr.DormancyLow = d.DormancyLow.Format(dateLayout)
			yr.DormancyHigh = d.DormancyHigh.Format(dateLayout)
			yr.SeasonDays = seasonDays[year]
		} else {
			yr.Status = "skipped"
			yr.Reason = reasons[year]
		}

		report.Years = append(report.Years, yr)
	}

	return report
}
