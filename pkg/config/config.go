// Package config loads and validates pipeline configuration from YAML
// sources behind a small provider interface.
package config

import (
	"fmt"
)

// Data is the complete pipeline configuration.
type Data struct {
	Site        SiteData       `json:"site"`
	Input       InputData      `json:"input"`
	Fit         FitData        `json:"fit"`
	Sampler     SamplerData    `json:"sampler"`
	Transitions TransitionData `json:"transitions"`
	Output      OutputData     `json:"output"`

	// Workers caps fit parallelism. Zero means one worker per CPU.
	Workers int `json:"workers,omitempty"`

	// WindowPadDays extends each per-year fit window into the neighboring
	// years so winter dormancy anchors both curve shoulders.
	WindowPadDays int `json:"window_pad_days"`
}

// SiteData names the site being processed and where its metadata lives.
type SiteData struct {
	ID        string `json:"id,omitempty"`
	SitesFile string `json:"sites_file,omitempty"`
}

// InputData locates and conditions the observation series.
type InputData struct {
	SeriesFile string      `json:"series_file"`
	MinYear    int         `json:"min_year,omitempty"`
	MaxYear    int         `json:"max_year,omitempty"`
	Despike    DespikeData `json:"despike"`
}

// DespikeData controls moving-median spike removal on the raw series.
type DespikeData struct {
	Enabled   bool    `json:"enabled"`
	Window    int     `json:"window"`
	Threshold float64 `json:"threshold"`
}

// FitData controls the average fit.
type FitData struct {
	Restarts       int     `json:"restarts"`
	Seed           uint64  `json:"seed"`
	MaxIterations  int     `json:"max_iterations"`
	MaxEvaluations int     `json:"max_evaluations"`
	NoiseScale     float64 `json:"noise_scale,omitempty"`
	Residuals      string  `json:"residuals"`
	StudentNu      float64 `json:"student_nu,omitempty"`
}

// SamplerData controls the per-year refinement chains.
type SamplerData struct {
	Draws           int     `json:"draws"`
	BurnIn          int     `json:"burn_in"`
	Thin            int     `json:"thin"`
	PriorScale      float64 `json:"prior_scale"`
	StepScale       float64 `json:"step_scale"`
	MinObservations int     `json:"min_observations"`
	MinAcceptance   float64 `json:"min_acceptance"`
}

// TransitionData controls transition-date extraction.
type TransitionData struct {
	Method            string  `json:"method"`
	ThresholdFraction float64 `json:"threshold_fraction"`
	MinAmplitude      float64 `json:"min_amplitude"`
}

// OutputData controls where and how results are written.
type OutputData struct {
	Directory string `json:"directory"`

	// Format selects the optional machine-readable report beside the CSV
	// tables: "json", "msgpack", or "" for none.
	Format string `json:"format,omitempty"`

	// DayLength adds photoperiod columns to the dates table. Requires site
	// coordinates.
	DayLength bool `json:"day_length,omitempty"`
}

// Default returns the configuration used when the YAML file leaves a value
// unset.
func Default() *Data {
	return &Data{
		Input: InputData{
			Despike: DespikeData{
				Enabled:   true,
				Window:    5,
				Threshold: 0.15,
			},
		},
		Fit: FitData{
			Restarts:       8,
			Seed:           1,
			MaxIterations:  2000,
			MaxEvaluations: 8000,
			Residuals:      "gaussian",
			StudentNu:      4,
		},
		Sampler: SamplerData{
			Draws:           600,
			BurnIn:          1500,
			Thin:            4,
			PriorScale:      1,
			StepScale:       0.08,
			MinObservations: 5,
			MinAcceptance:   0.005,
		},
		Transitions: TransitionData{
			Method:            "threshold",
			ThresholdFraction: 0.5,
			MinAmplitude:      0.05,
		},
		Output: OutputData{
			Directory: "out",
		},
		WindowPadDays: 45,
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (d *Data) Validate() error {
	if d.Input.SeriesFile == "" {
		return fmt.Errorf("input.series-file is required")
	}
	if d.Input.MinYear != 0 && d.Input.MaxYear != 0 && d.Input.MinYear > d.Input.MaxYear {
		return fmt.Errorf("input.min-year %d is after input.max-year %d", d.Input.MinYear, d.Input.MaxYear)
	}

	switch d.Fit.Residuals {
	case "gaussian", "student-t":
	default:
		return fmt.Errorf("fit.residuals must be gaussian or student-t, got %q", d.Fit.Residuals)
	}
	if d.Fit.Restarts < 1 {
		return fmt.Errorf("fit.restarts must be at least 1, got %d", d.Fit.Restarts)
	}
	if d.Fit.Residuals == "student-t" && d.Fit.StudentNu <= 1 {
		return fmt.Errorf("fit.student-nu must be above 1, got %g", d.Fit.StudentNu)
	}

	if d.Sampler.Draws < 1 {
		return fmt.Errorf("sampler.draws must be at least 1, got %d", d.Sampler.Draws)
	}
	if d.Sampler.BurnIn < 0 {
		return fmt.Errorf("sampler.burn-in must not be negative, got %d", d.Sampler.BurnIn)
	}
	if d.Sampler.Thin < 1 {
		return fmt.Errorf("sampler.thin must be at least 1, got %d", d.Sampler.Thin)
	}
	if d.Sampler.MinObservations < 1 {
		return fmt.Errorf("sampler.min-observations must be at least 1, got %d", d.Sampler.MinObservations)
	}

	switch d.Transitions.Method {
	case "threshold", "curvature":
	default:
		return fmt.Errorf("transitions.method must be threshold or curvature, got %q", d.Transitions.Method)
	}
	if f := d.Transitions.ThresholdFraction; f <= 0 || f >= 1 {
		return fmt.Errorf("transitions.threshold-fraction must be inside (0, 1), got %g", f)
	}
	if d.Transitions.MinAmplitude <= 0 {
		return fmt.Errorf("transitions.min-amplitude must be positive, got %g", d.Transitions.MinAmplitude)
	}

	switch d.Output.Format {
	case "", "json", "msgpack":
	default:
		return fmt.Errorf("output.format must be json or msgpack, got %q", d.Output.Format)
	}
	if d.Output.Directory == "" {
		return fmt.Errorf("output.directory is required")
	}
	if d.Output.DayLength && (d.Site.SitesFile == "" || d.Site.ID == "") {
		return fmt.Errorf("output.day-length requires site.id and site.sites-file")
	}

	if d.WindowPadDays < 0 || d.WindowPadDays > 180 {
		return fmt.Errorf("window-pad-days must be inside [0, 180], got %d", d.WindowPadDays)
	}
	if d.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", d.Workers)
	}
	return nil
}
