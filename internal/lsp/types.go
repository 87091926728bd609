package lsp

import "time"

// nParams is the size of the double-logistic parameter vector.
const nParams = 7

// CurveParams holds one fitted double-logistic curve: a baseline winter value,
// a seasonal amplitude, spring and autumn inflection days with their transition
// rates, and a summer greendown slope. Day-valued parameters are in the
// day-of-season coordinate (days since January 1 of the window year).
type CurveParams struct {
	Baseline   float64 // minimum vegetation-index value (m1)
	Amplitude  float64 // seasonal amplitude above baseline (m2)
	SpringDay  float64 // spring inflection day (m3)
	SpringRate float64 // spring transition rate in days (m4)
	AutumnDay  float64 // autumn inflection day (m5)
	AutumnRate float64 // autumn transition rate in days (m6)
	Greendown  float64 // linear summer greendown slope per day (m7)
}

// vector flattens the parameters for the optimizer and sampler.
func (p CurveParams) vector() []float64 {
	return []float64{p.Baseline, p.Amplitude, p.SpringDay, p.SpringRate, p.AutumnDay, p.AutumnRate, p.Greendown}
}

func fromVector(x []float64) CurveParams {
	return CurveParams{
		Baseline:   x[0],
		Amplitude:  x[1],
		SpringDay:  x[2],
		SpringRate: x[3],
		AutumnDay:  x[4],
		AutumnRate: x[5],
		Greendown:  x[6],
	}
}

// plausible reports whether the parameters describe a usable seasonal cycle:
// positive amplitude and rates, spring before autumn.
func (p CurveParams) plausible() bool {
	return p.Amplitude > 0 &&
		p.SpringRate > 0 && p.AutumnRate > 0 &&
		p.SpringDay < p.AutumnDay
}

// Point is one observation in the day-of-season coordinate.
type Point struct {
	Day   float64
	Value float64
}

// YearData is the input to a single per-year refinement fit.
type YearData struct {
	Year   int
	Points []Point
}

// YearFit is the posterior summary of one per-year refinement fit.
type YearFit struct {
	Year         int
	Params       CurveParams // per-parameter posterior median
	ParamsLow    CurveParams // 2.5% posterior quantile
	ParamsHigh   CurveParams // 97.5% posterior quantile
	Draws        []CurveParams
	Acceptance   float64
	Observations int
}

// PhenoDates holds the extracted transition dates for one year with their
// credible intervals. Greenup is always strictly before Dormancy.
type PhenoDates struct {
	Year         int
	Greenup      time.Time
	Dormancy     time.Time
	GreenupLow   time.Time
	GreenupHigh  time.Time
	DormancyLow  time.Time
	DormancyHigh time.Time
	Method       Method
}

// SeasonLength is the growing-season length for one year, in whole days.
type SeasonLength struct {
	Year int
	Days int
}

// SkippedYear records a year that produced no result and why.
type SkippedYear struct {
	Year   int
	Reason string
	Err    error
}

// ResidualModel selects the residual distribution used by the likelihood.
type ResidualModel string

const (
	// ResidualGaussian models residuals as additive Gaussian noise.
	ResidualGaussian ResidualModel = "gaussian"
	// ResidualStudentT models residuals with a Student's t distribution,
	// which downweights cloud- and snow-contaminated outliers.
	ResidualStudentT ResidualModel = "student-t"
)

// FitOptions controls the average fit over the whole multi-year series.
type FitOptions struct {
	// Restarts is the number of random-restart optimizations. Restart 0 uses
	// the unperturbed data-driven initial guess.
	Restarts int

	// Seed feeds the per-restart perturbation streams, so a fixed seed gives
	// bit-identical fits.
	Seed uint64

	// MaxIterations and MaxEvaluations cap each restart. A restart that hits
	// either cap counts as non-converged.
	MaxIterations  int
	MaxEvaluations int

	// Workers bounds restart parallelism. Zero means one worker per restart
	// up to the number of CPUs.
	Workers int

	// NoiseScale is the residual scale used by the likelihood. Zero means
	// the caller wants the scale estimated from the fit residuals.
	NoiseScale float64

	Residuals ResidualModel
	StudentNu float64
}

// DefaultFitOptions returns the average-fit settings used by the pipeline
// unless overridden in configuration.
func DefaultFitOptions() FitOptions {
	return FitOptions{
		Restarts:       8,
		Seed:           1,
		MaxIterations:  2000,
		MaxEvaluations: 8000,
		NoiseScale:     0.02,
		Residuals:      ResidualGaussian,
		StudentNu:      4,
	}
}

// SampleOptions controls the per-year Bayesian refinement fits.
type SampleOptions struct {
	// Draws is the number of kept posterior draws per year after burn-in
	// and thinning.
	Draws int

	// BurnIn is the number of discarded warm-up steps.
	BurnIn int

	// Thin keeps every Thin-th post-burn-in step.
	Thin int

	// PriorScale multiplies the default prior widths around the average-fit
	// parameters. Larger values loosen the pull toward the average fit.
	PriorScale float64

	// StepScale sets the random-walk proposal width as a fraction of the
	// prior width for each parameter.
	StepScale float64

	// MinObservations is the smallest usable number of observations in a
	// year window. Years below it are skipped, never fitted.
	MinObservations int

	// MinAcceptance is the acceptance-rate floor below which a year's chain
	// is reported as non-converged.
	MinAcceptance float64

	// Workers bounds per-year parallelism. Zero means one worker per year
	// up to the number of CPUs.
	Workers int

	// Seed is combined with the year so each chain has its own stream and
	// result maps do not depend on scheduling order.
	Seed uint64

	// NoiseScale is the residual scale for the likelihood, usually the
	// residual standard deviation of the average fit.
	NoiseScale float64

	Residuals ResidualModel
	StudentNu float64
}

// DefaultSampleOptions returns per-year sampler settings tuned for sparse
// satellite series: enough draws for stable 95% intervals without letting a
// single year dominate runtime.
func DefaultSampleOptions() SampleOptions {
	return SampleOptions{
		Draws:           600,
		BurnIn:          1500,
		Thin:            4,
		PriorScale:      1,
		StepScale:       0.08,
		MinObservations: 5,
		MinAcceptance:   0.005,
		Seed:            1,
		NoiseScale:      0.02,
		Residuals:       ResidualGaussian,
		StudentNu:       4,
	}
}

// priorWidths are the default prior standard deviations around the
// average-fit parameters, before PriorScale is applied. Day-valued widths are
// generous enough to follow real interannual shifts while still anchoring
// under-determined years.
var priorWidths = CurveParams{
	Baseline:   0.03,
	Amplitude:  0.08,
	SpringDay:  15,
	SpringRate: 4,
	AutumnDay:  15,
	AutumnRate: 5,
	Greendown:  0.0008,
}
