package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements Provider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *Data
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// YAML-tagged mirror structs. Optional sections are pointers so an absent
// section keeps its defaults.
type dataYAML struct {
	Site          *siteYAML       `yaml:"site,omitempty"`
	Input         inputYAML       `yaml:"input"`
	Fit           *fitYAML        `yaml:"fit,omitempty"`
	Sampler       *samplerYAML    `yaml:"sampler,omitempty"`
	Transitions   *transitionYAML `yaml:"transitions,omitempty"`
	Output        *outputYAML     `yaml:"output,omitempty"`
	Workers       *int            `yaml:"workers,omitempty"`
	WindowPadDays *int            `yaml:"window-pad-days,omitempty"`
}

type siteYAML struct {
	ID        string `yaml:"id,omitempty"`
	SitesFile string `yaml:"sites-file,omitempty"`
}

type inputYAML struct {
	SeriesFile string       `yaml:"series-file"`
	MinYear    int          `yaml:"min-year,omitempty"`
	MaxYear    int          `yaml:"max-year,omitempty"`
	Despike    *despikeYAML `yaml:"despike,omitempty"`
}

type despikeYAML struct {
	Enabled   *bool    `yaml:"enabled,omitempty"`
	Window    *int     `yaml:"window,omitempty"`
	Threshold *float64 `yaml:"threshold,omitempty"`
}

type fitYAML struct {
	Restarts       *int     `yaml:"restarts,omitempty"`
	Seed           *uint64  `yaml:"seed,omitempty"`
	MaxIterations  *int     `yaml:"max-iterations,omitempty"`
	MaxEvaluations *int     `yaml:"max-evaluations,omitempty"`
	NoiseScale     *float64 `yaml:"noise-scale,omitempty"`
	Residuals      string   `yaml:"residuals,omitempty"`
	StudentNu      *float64 `yaml:"student-nu,omitempty"`
}

type samplerYAML struct {
	Draws           *int     `yaml:"draws,omitempty"`
	BurnIn          *int     `yaml:"burn-in,omitempty"`
	Thin            *int     `yaml:"thin,omitempty"`
	PriorScale      *float64 `yaml:"prior-scale,omitempty"`
	StepScale       *float64 `yaml:"step-scale,omitempty"`
	MinObservations *int     `yaml:"min-observations,omitempty"`
	MinAcceptance   *float64 `yaml:"min-acceptance,omitempty"`
}

type transitionYAML struct {
	Method            string   `yaml:"method,omitempty"`
	ThresholdFraction *float64 `yaml:"threshold-fraction,omitempty"`
	MinAmplitude      *float64 `yaml:"min-amplitude,omitempty"`
}

type outputYAML struct {
	Directory string `yaml:"directory,omitempty"`
	Format    string `yaml:"format,omitempty"`
	DayLength bool   `yaml:"day-length,omitempty"`
}

// LoadConfig loads the complete configuration from the YAML file, applies
// defaults to anything left unset, and validates the result.
func (y *YAMLProvider) LoadConfig() (*Data, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	var yamlConfig dataYAML
	err = yaml.Unmarshal(cfgFile, &yamlConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", y.filename, err)
	}

	config := yamlConfig.toData()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", y.filename, err)
	}

	y.config = config
	return config, nil
}

// toData converts the YAML mirror into the internal format, filling defaults
// for absent fields.
func (yc *dataYAML) toData() *Data {
	config := Default()

	if yc.Site != nil {
		config.Site.ID = yc.Site.ID
		config.Site.SitesFile = yc.Site.SitesFile
	}

	config.Input.SeriesFile = yc.Input.SeriesFile
	config.Input.MinYear = yc.Input.MinYear
	config.Input.MaxYear = yc.Input.MaxYear
	if d := yc.Input.Despike; d != nil {
		if d.Enabled != nil {
			config.Input.Despike.Enabled = *d.Enabled
		}
		if d.Window != nil {
			config.Input.Despike.Window = *d.Window
		}
		if d.Threshold != nil {
			config.Input.Despike.Threshold = *d.Threshold
		}
	}

	if f := yc.Fit; f != nil {
		if f.Restarts != nil {
			config.Fit.Restarts = *f.Restarts
		}
		if f.Seed != nil {
			config.Fit.Seed = *f.Seed
		}
		if f.MaxIterations != nil {
			config.Fit.MaxIterations = *f.MaxIterations
		}
		if f.MaxEvaluations != nil {
			config.Fit.MaxEvaluations = *f.MaxEvaluations
		}
		if f.NoiseScale != nil {
			config.Fit.NoiseScale = *f.NoiseScale
		}
		if f.Residuals != "" {
			config.Fit.Residuals = f.Residuals
		}
		if f.StudentNu != nil {
			config.Fit.StudentNu = *f.StudentNu
		}
	}

	if s := yc.Sampler; s != nil {
		if s.Draws != nil {
			config.Sampler.Draws = *s.Draws
		}
		if s.BurnIn != nil {
			config.Sampler.BurnIn = *s.BurnIn
		}
		if s.Thin != nil {
			config.Sampler.Thin = *s.Thin
		}
		if s.PriorScale != nil {
			config.Sampler.PriorScale = *s.PriorScale
		}
		if s.StepScale != nil {
			config.Sampler.StepScale = *s.StepScale
		}
		if s.MinObservations != nil {
			config.Sampler.MinObservations = *s.MinObservations
		}
		if s.MinAcceptance != nil {
			config.Sampler.MinAcceptance = *s.MinAcceptance
		}
	}

	if t := yc.Transitions; t != nil {
		if t.Method != "" {
			config.Transitions.Method = t.Method
		}
		if t.ThresholdFraction != nil {
			config.Transitions.ThresholdFraction = *t.ThresholdFraction
		}
		if t.MinAmplitude != nil {
			config.Transitions.MinAmplitude = *t.MinAmplitude
		}
	}

	if o := yc.Output; o != nil {
		if o.Directory != "" {
			config.Output.Directory = o.Directory
		}
		config.Output.Format = o.Format
		config.Output.DayLength = o.DayLength
	}

	if yc.Workers != nil {
		config.Workers = *yc.Workers
	}
	if yc.WindowPadDays != nil {
		config.WindowPadDays = *yc.WindowPadDays
	}

	return config
}

// IsReadOnly returns true since YAML files are read-only configuration sources
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML providers
func (y *YAMLProvider) Close() error {
	return nil
}
