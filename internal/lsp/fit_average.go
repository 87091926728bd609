package lsp

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/optimize"
)

// minAverageObservations is the smallest pooled series worth fitting. Three
// points per parameter keeps the simplex away from degenerate optima.
const minAverageObservations = 3 * nParams

// FitDiagnostics summarizes how the average fit went.
type FitDiagnostics struct {
	Restarts       int
	Converged      int
	BestRestart    int
	BestRSS        float64
	ResidualStdDev float64
}

type restartResult struct {
	params CurveParams
	rss    float64
	ok     bool
}

// FitAverage fits one double-logistic curve to all observations pooled onto a
// single season by maximum likelihood. It runs independently perturbed
// Nelder-Mead restarts in parallel and keeps the converged restart with the
// lowest residual sum of squares, breaking ties toward the lower restart
// index so a fixed seed always returns the same curve.
func FitAverage(ctx context.Context, pts []Point, opts FitOptions) (CurveParams, FitDiagnostics, error) {
	diag := FitDiagnostics{Restarts: opts.Restarts}
	if len(pts) < minAverageObservations {
		return CurveParams{}, diag, fmt.Errorf("average fit: %d observations, need at least %d: %w",
			len(pts), minAverageObservations, ErrInsufficientData)
	}
	if opts.Restarts < 1 {
		opts.Restarts = 1
		diag.Restarts = 1
	}

	// The optimizer needs a positive scale, but with a fixed Gaussian scale
	// the likelihood ranking matches the RSS ranking, so the exact value does
	// not move the optimum.
	scale := opts.NoiseScale
	if scale <= 0 {
		scale = 0.02
	}

	guess := InitialGuess(pts)
	results := make([]restartResult, opts.Restarts)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fitWorkers(opts.Workers, opts.Restarts))
	for i := 0; i < opts.Restarts; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := guess
			if i > 0 {
				start = perturbGuess(guess, opts.Seed, uint64(i))
			}
			results[i] = runRestart(start, pts, scale, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return CurveParams{}, diag, err
	}

	best := -1
	for i, r := range results {
		if !r.ok {
			continue
		}
		diag.Converged++
		if best == -1 || r.rss < results[best].rss {
			best = i
		}
	}
	if best == -1 {
		return CurveParams{}, diag, &ConvergenceError{Stage: "average", Restarts: opts.Restarts}
	}

	diag.BestRestart = best
	diag.BestRSS = results[best].rss
	diag.ResidualStdDev = residualStdDev(results[best].params, pts)
	return results[best].params, diag, nil
}

// runRestart minimizes the penalized negative log-likelihood from one
// starting point. A restart only counts as converged when the converger
// fired, the optimum is finite, and the parameters describe a real cycle.
func runRestart(start CurveParams, pts []Point, scale float64, opts FitOptions) restartResult {
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			p := fromVector(x)
			if pen := boundsPenalty(p); pen > 0 {
				return pen
			}
			return -LogLikelihood(p, pts, scale, opts.Residuals, opts.StudentNu)
		},
	}
	settings := &optimize.Settings{
		MajorIterations: opts.MaxIterations,
		FuncEvaluations: opts.MaxEvaluations,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-10,
			Relative:   1e-8,
			Iterations: 100,
		},
	}

	result, err := optimize.Minimize(problem, start.vector(), settings, &optimize.NelderMead{})
	if err != nil || result == nil {
		return restartResult{}
	}
	switch result.Status {
	case optimize.FunctionConvergence, optimize.StepConvergence, optimize.MethodConverge, optimize.Success:
	default:
		// Iteration and evaluation limits count as non-converged.
		return restartResult{}
	}
	p := fromVector(result.X)
	if !p.plausible() || math.IsInf(result.F, 0) || math.IsNaN(result.F) {
		return restartResult{}
	}
	return restartResult{params: p, rss: rss(p, pts), ok: true}
}

// boundsPenalty returns a large finite objective value outside the plausible
// parameter region, growing with the violation so the simplex can walk back.
func boundsPenalty(p CurveParams) float64 {
	v := 0.0
	if p.Amplitude <= 0 {
		v += 1 - p.Amplitude
	}
	if p.SpringRate <= 0 {
		v += 1 - p.SpringRate
	}
	if p.AutumnRate <= 0 {
		v += 1 - p.AutumnRate
	}
	if p.SpringDay >= p.AutumnDay {
		v += 1 + p.SpringDay - p.AutumnDay
	}
	if v == 0 {
		return 0
	}
	return 1e9 * v
}

// perturbGuess jitters the data-driven guess for one restart. Each restart
// index gets its own stream from the seed, so restart k is reproducible
// regardless of how the restarts are scheduled.
func perturbGuess(p CurveParams, seed, restart uint64) CurveParams {
	rnd := rand.New(rand.NewPCG(seed, restart))
	p.Baseline += (rnd.Float64()*2 - 1) * 0.02
	p.Amplitude *= 0.7 + 0.6*rnd.Float64()
	p.SpringDay += (rnd.Float64()*2 - 1) * 20
	p.SpringRate *= 0.5 + 1.5*rnd.Float64()
	p.AutumnDay += (rnd.Float64()*2 - 1) * 20
	p.AutumnRate *= 0.5 + 1.5*rnd.Float64()
	p.Greendown += (rnd.Float64()*2 - 1) * 5e-4
	if p.SpringDay >= p.AutumnDay-10 {
		mid := (p.SpringDay + p.AutumnDay) / 2
		p.SpringDay, p.AutumnDay = mid-20, mid+20
	}
	return p
}

// fitWorkers bounds fit parallelism at the configured limit, the CPU count,
// and the amount of work available.
func fitWorkers(limit, n int) int {
	w := runtime.NumCPU()
	if limit > 0 && limit < w {
		w = limit
	}
	if w > n {
		w = n
	}
	if w < 1 {
		w = 1
	}
	return w
}
