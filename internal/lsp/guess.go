package lsp

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// guessBinDays groups observations into composite-period bins when sketching
// the seasonal profile. Eight days matches the cadence of the usual
// vegetation-index products.
const guessBinDays = 8

// InitialGuess derives a data-driven starting point for the average fit.
// Baseline and amplitude come from value quantiles, the transition days from
// the first and last binned-median crossings of the half-amplitude level, and
// the rates start at typical temperate-forest values.
func InitialGuess(pts []Point) CurveParams {
	vals := make([]float64, len(pts))
	for i, pt := range pts {
		vals[i] = pt.Value
	}
	sort.Float64s(vals)

	base := stat.Quantile(0.10, stat.Empirical, vals, nil)
	peak := stat.Quantile(0.95, stat.Empirical, vals, nil)
	amp := peak - base
	if amp < 0.01 {
		amp = 0.01
	}

	spring, autumn := crossingDays(pts, base+amp/2)

	return CurveParams{
		Baseline:   base,
		Amplitude:  amp,
		SpringDay:  spring,
		SpringRate: 7,
		AutumnDay:  autumn,
		AutumnRate: 10,
		Greendown:  0,
	}
}

// crossingDays sketches the seasonal profile with per-bin medians and returns
// the first and last bin centers at or above the threshold. Falls back to
// mid-April and early October when the profile never reaches the threshold.
func crossingDays(pts []Point, threshold float64) (spring, autumn float64) {
	minDay, maxDay := pts[0].Day, pts[0].Day
	for _, pt := range pts[1:] {
		if pt.Day < minDay {
			minDay = pt.Day
		}
		if pt.Day > maxDay {
			maxDay = pt.Day
		}
	}

	nbins := int((maxDay-minDay)/guessBinDays) + 1
	bins := make([][]float64, nbins)
	for _, pt := range pts {
		i := int((pt.Day - minDay) / guessBinDays)
		bins[i] = append(bins[i], pt.Value)
	}

	spring, autumn = -1, -1
	for i, bin := range bins {
		if len(bin) == 0 {
			continue
		}
		sort.Float64s(bin)
		if stat.Quantile(0.5, stat.Empirical, bin, nil) < threshold {
			continue
		}
		center := minDay + (float64(i)+0.5)*guessBinDays
		if spring < 0 {
			spring = center
		}
		autumn = center
	}
	if spring < 0 || spring >= autumn {
		spring, autumn = 105, 280
	}
	return spring, autumn
}
