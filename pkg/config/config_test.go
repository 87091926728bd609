package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadConfigFull(t *testing.T) {
	path := writeConfig(t, `
site:
  id: US-Ha1
  sites-file: testdata/sites.csv
input:
  series-file: testdata/evi2.csv
  min-year: 2012
  max-year: 2019
  despike:
    enabled: false
    window: 7
    threshold: 0.2
fit:
  restarts: 4
  seed: 99
  residuals: student-t
  student-nu: 5
sampler:
  draws: 250
  burn-in: 500
  thin: 2
  step-scale: 0.2
transitions:
  method: curvature
  min-amplitude: 0.08
output:
  directory: results
  format: msgpack
  day-length: true
workers: 3
window-pad-days: 60
`)

	provider, err := NewProvider(path)
	require.NoError(t, err)
	defer provider.Close()

	assert.True(t, provider.IsReadOnly())

	cfg, err := provider.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "US-Ha1", cfg.Site.ID)
	assert.Equal(t, "testdata/evi2.csv", cfg.Input.SeriesFile)
	assert.Equal(t, 2012, cfg.Input.MinYear)
	assert.Equal(t, 2019, cfg.Input.MaxYear)
	assert.False(t, cfg.Input.Despike.Enabled)
	assert.Equal(t, 7, cfg.Input.Despike.Window)
	assert.Equal(t, 0.2, cfg.Input.Despike.Threshold)

	assert.Equal(t, 4, cfg.Fit.Restarts)
	assert.Equal(t, uint64(99), cfg.Fit.Seed)
	assert.Equal(t, "student-t", cfg.Fit.Residuals)
	assert.Equal(t, 5.0, cfg.Fit.StudentNu)

	assert.Equal(t, 250, cfg.Sampler.Draws)
	assert.Equal(t, 500, cfg.Sampler.BurnIn)
	assert.Equal(t, 2, cfg.Sampler.Thin)
	assert.Equal(t, 0.2, cfg.Sampler.StepScale)

	assert.Equal(t, "curvature", cfg.Transitions.Method)
	assert.Equal(t, 0.08, cfg.Transitions.MinAmplitude)

	assert.Equal(t, "results", cfg.Output.Directory)
	assert.Equal(t, "msgpack", cfg.Output.Format)
	assert.True(t, cfg.Output.DayLength)

	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 60, cfg.WindowPadDays)
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
input:
  series-file: testdata/evi2.csv
`)

	cfg, err := NewYAMLProvider(path).LoadConfig()
	require.NoError(t, err)

	want := Default()
	want.Input.SeriesFile = "testdata/evi2.csv"
	assert.Equal(t, want, cfg)
}

func TestLoadConfigPartialSections(t *testing.T) {
	path := writeConfig(t, `
input:
  series-file: testdata/evi2.csv
  despike:
    threshold: 0.1
sampler:
  draws: 100
`)

	cfg, err := NewYAMLProvider(path).LoadConfig()
	require.NoError(t, err)

	// Explicit values take effect; siblings keep defaults.
	assert.Equal(t, 0.1, cfg.Input.Despike.Threshold)
	assert.True(t, cfg.Input.Despike.Enabled)
	assert.Equal(t, 5, cfg.Input.Despike.Window)
	assert.Equal(t, 100, cfg.Sampler.Draws)
	assert.Equal(t, 1500, cfg.Sampler.BurnIn)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing series file",
			yaml:    "output:\n  directory: out\n",
			wantErr: "series-file",
		},
		{
			name:    "bad residual model",
			yaml:    "input:\n  series-file: a.csv\nfit:\n  residuals: cauchy\n",
			wantErr: "residuals",
		},
		{
			name:    "bad method",
			yaml:    "input:\n  series-file: a.csv\ntransitions:\n  method: wavelet\n",
			wantErr: "method",
		},
		{
			name:    "threshold fraction out of range",
			yaml:    "input:\n  series-file: a.csv\ntransitions:\n  threshold-fraction: 1.5\n",
			wantErr: "threshold-fraction",
		},
		{
			name:    "inverted year range",
			yaml:    "input:\n  series-file: a.csv\n  min-year: 2019\n  max-year: 2012\n",
			wantErr: "min-year",
		},
		{
			name:    "day length without site",
			yaml:    "input:\n  series-file: a.csv\noutput:\n  day-length: true\n",
			wantErr: "day-length",
		},
		{
			name:    "bad output format",
			yaml:    "input:\n  series-file: a.csv\noutput:\n  format: parquet\n",
			wantErr: "format",
		},
		{
			name:    "negative thin",
			yaml:    "input:\n  series-file: a.csv\nsampler:\n  thin: -1\n",
			wantErr: "thin",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.yaml)
			_, err := NewYAMLProvider(path).LoadConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewProviderRejectsUnknownExtension(t *testing.T) {
	_, err := NewProvider("config.toml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported config file type")
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := NewYAMLProvider(filepath.Join(t.TempDir(), "absent.yaml")).LoadConfig()
	require.Error(t, err)
}
