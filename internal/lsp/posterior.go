package lsp

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// posterior is the unnormalized log-posterior for one year's curve:
// independent Normal priors centered on the average-fit parameters plus the
// residual log-likelihood of the year's observations. It satisfies
// distmv.LogProber for the Metropolis-Hastings sampler.
type posterior struct {
	pts    []Point
	priors [nParams]distuv.Normal
	scale  float64
	model  ResidualModel
	nu     float64
}

func newPosterior(pts []Point, center CurveParams, opts SampleOptions) *posterior {
	po := &posterior{
		pts:   pts,
		scale: opts.NoiseScale,
		model: opts.Residuals,
		nu:    opts.StudentNu,
	}
	c := center.vector()
	w := scaledPriorWidths(opts.PriorScale).vector()
	for i := range po.priors {
		po.priors[i] = distuv.Normal{Mu: c[i], Sigma: w[i]}
	}
	return po
}

// LogProb returns -Inf outside the plausible parameter region, which makes
// the sampler reject such proposals without touching the likelihood.
func (po *posterior) LogProb(x []float64) float64 {
	p := fromVector(x)
	if !p.plausible() {
		return math.Inf(-1)
	}
	lp := LogLikelihood(p, po.pts, po.scale, po.model, po.nu)
	if math.IsInf(lp, -1) {
		return lp
	}
	for i := range po.priors {
		lp += po.priors[i].LogProb(x[i])
	}
	return lp
}

func scaledPriorWidths(scale float64) CurveParams {
	if scale <= 0 {
		scale = 1
	}
	w := priorWidths
	w.Baseline *= scale
	w.Amplitude *= scale
	w.SpringDay *= scale
	w.SpringRate *= scale
	w.AutumnDay *= scale
	w.AutumnRate *= scale
	w.Greendown *= scale
	return w
}
