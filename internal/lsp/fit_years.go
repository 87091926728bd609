package lsp

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/samplemv"
)

// referenceNoiseScale is the residual scale the default proposal step size
// was tuned against.
const referenceNoiseScale = 0.02

// FitYear refines the average-fit curve against one year's observations with
// a random-walk Metropolis-Hastings chain. The chain starts at the
// average-fit parameters and is pulled toward them by the priors, so sparse
// years shrink to the long-term seasonal shape instead of wandering.
func FitYear(data YearData, center CurveParams, opts SampleOptions) (YearFit, error) {
	if opts.Thin < 1 {
		opts.Thin = 1
	}
	if opts.Draws < 1 {
		opts.Draws = 1
	}
	if opts.NoiseScale <= 0 {
		opts.NoiseScale = 0.02
	}
	if len(data.Points) < opts.MinObservations {
		return YearFit{}, &insufficientDataError{year: data.Year, have: len(data.Points), want: opts.MinObservations}
	}

	seed := chainSeed(opts.Seed, data.Year)
	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)

	// The posterior sharpens in proportion to the residual scale, so the
	// random-walk step shrinks with it below the reference scale the default
	// step size was tuned against.
	step := opts.StepScale
	if step <= 0 {
		step = 0.08
	}
	if r := opts.NoiseScale / referenceNoiseScale; r < 1 {
		step *= r
	}
	widths := scaledPriorWidths(opts.PriorScale).vector()
	sigma := mat.NewSymDense(nParams, nil)
	for i, w := range widths {
		sigma.SetSym(i, i, (step*w)*(step*w))
	}
	proposal, ok := samplemv.NewProposalNormal(sigma, src)
	if !ok {
		return YearFit{}, fmt.Errorf("year %d: proposal covariance is not positive definite", data.Year)
	}

	sampler := samplemv.MetropolisHastingser{
		Initial:  center.vector(),
		Target:   newPosterior(data.Points, center, opts),
		Proposal: proposal,
		Src:      src,
		BurnIn:   opts.BurnIn,
		Rate:     1,
	}

	// Keep the full post-burn-in chain so the acceptance rate can be read off
	// the kept rows, then thin manually.
	total := opts.Draws * opts.Thin
	batch := mat.NewDense(total, nParams, nil)
	sampler.Sample(batch)

	accepted := 0
	for i := 1; i < total; i++ {
		if !floats.Equal(batch.RawRowView(i), batch.RawRowView(i-1)) {
			accepted++
		}
	}
	acceptance := 1.0
	if total > 1 {
		acceptance = float64(accepted) / float64(total-1)
	}
	if acceptance < opts.MinAcceptance {
		return YearFit{}, &ConvergenceError{Stage: "year", Year: data.Year, Acceptance: acceptance}
	}

	fit := YearFit{
		Year:         data.Year,
		Draws:        make([]CurveParams, 0, opts.Draws),
		Acceptance:   acceptance,
		Observations: len(data.Points),
	}
	for i := opts.Thin - 1; i < total; i += opts.Thin {
		fit.Draws = append(fit.Draws, fromVector(batch.RawRowView(i)))
	}

	var med, lo, hi [nParams]float64
	col := make([]float64, len(fit.Draws))
	for j := 0; j < nParams; j++ {
		for i := range fit.Draws {
			col[i] = batch.At((i+1)*opts.Thin-1, j)
		}
		sort.Float64s(col)
		lo[j] = stat.Quantile(0.025, stat.Empirical, col, nil)
		med[j] = stat.Quantile(0.5, stat.Empirical, col, nil)
		hi[j] = stat.Quantile(0.975, stat.Empirical, col, nil)
	}
	fit.Params = fromVector(med[:])
	fit.ParamsLow = fromVector(lo[:])
	fit.ParamsHigh = fromVector(hi[:])

	if !fit.Params.plausible() {
		return YearFit{}, &ConvergenceError{Stage: "year", Year: data.Year, Acceptance: acceptance}
	}
	return fit, nil
}

// FitYears runs per-year refinement fits concurrently. A year that cannot be
// fitted is recorded as skipped and never aborts the remaining years; only
// context cancellation stops the whole batch.
func FitYears(ctx context.Context, years []YearData, center CurveParams, opts SampleOptions) (map[int]YearFit, []SkippedYear, error) {
	type outcome struct {
		fit YearFit
		err error
	}
	outcomes := make([]outcome, len(years))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fitWorkers(opts.Workers, len(years)))
	for i, yd := range years {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fit, err := FitYear(yd, center, opts)
			outcomes[i] = outcome{fit: fit, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	fits := make(map[int]YearFit, len(years))
	var skipped []SkippedYear
	for i, yd := range years {
		if err := outcomes[i].err; err != nil {
			skipped = append(skipped, SkippedYear{Year: yd.Year, Reason: SkipReason(err), Err: err})
			continue
		}
		fits[yd.Year] = outcomes[i].fit
	}
	sort.Slice(skipped, func(i, j int) bool { return skipped[i].Year < skipped[j].Year })
	return fits, skipped, nil
}

// chainSeed derives an independent stream seed for one year's chain, so
// per-year results do not depend on scheduling order.
func chainSeed(base uint64, year int) uint64 {
	z := base + 0x9e3779b97f4a7c15*uint64(int64(year)+1)
	z ^= z >> 30
	z *= 0xbf58476d1ce4e5b9
	z ^= z >> 27
	return z
}
