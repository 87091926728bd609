package lsp

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Method selects how transition dates are read off a fitted curve.
type Method string

const (
	// MethodThreshold takes the days the curve first rises above and last
	// falls below a fixed fraction of the seasonal amplitude.
	MethodThreshold Method = "threshold"
	// MethodCurvature takes the days of sharpest upward bending on the
	// rising and falling limbs, from the second derivative of the curve.
	MethodCurvature Method = "curvature"
)

// TransitionOptions controls transition-date extraction.
type TransitionOptions struct {
	Method Method

	// ThresholdFraction is the amplitude fraction for MethodThreshold.
	ThresholdFraction float64

	// MinAmplitude is the smallest seasonal amplitude that still counts as a
	// cycle. Flat curves below it yield ErrUndefinedTransition.
	MinAmplitude float64
}

// DefaultTransitionOptions returns the half-amplitude threshold extraction
// used unless configuration says otherwise.
func DefaultTransitionOptions() TransitionOptions {
	return TransitionOptions{
		Method:            MethodThreshold,
		ThresholdFraction: 0.5,
		MinAmplitude:      0.05,
	}
}

// ExtractDates reduces a fitted curve to its greenup and dormancy dates for
// the window year. The returned greenup is always strictly before dormancy.
func ExtractDates(p CurveParams, w YearWindow, opts TransitionOptions) (greenup, dormancy time.Time, err error) {
	g, d, err := transitionDays(p, w, opts)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return DateOfDay(w.Year, g), DateOfDay(w.Year, d), nil
}

// DatesWithIntervals reduces a per-year fit to transition dates with 95%
// credible intervals. The point dates come from the posterior-median curve;
// the intervals come from re-extracting dates on every posterior draw.
// Draws whose curves have no defined transition are left out of the
// intervals, which keeps a few degenerate draws from poisoning a good year.
func DatesWithIntervals(fit YearFit, w YearWindow, opts TransitionOptions) (PhenoDates, error) {
	g0, d0, err := transitionDays(fit.Params, w, opts)
	if err != nil {
		return PhenoDates{}, err
	}

	gs := make([]float64, 0, len(fit.Draws))
	ds := make([]float64, 0, len(fit.Draws))
	for _, draw := range fit.Draws {
		g, d, err := transitionDays(draw, w, opts)
		if err != nil {
			continue
		}
		gs = append(gs, g)
		ds = append(ds, d)
	}

	gLo, gHi := g0, g0
	dLo, dHi := d0, d0
	if len(gs) > 0 {
		sort.Float64s(gs)
		sort.Float64s(ds)
		// The draw quantiles can sit entirely to one side of the
		// median-curve date; the reported interval always covers it.
		gLo = math.Min(stat.Quantile(0.025, stat.Empirical, gs, nil), g0)
		gHi = math.Max(stat.Quantile(0.975, stat.Empirical, gs, nil), g0)
		dLo = math.Min(stat.Quantile(0.025, stat.Empirical, ds, nil), d0)
		dHi = math.Max(stat.Quantile(0.975, stat.Empirical, ds, nil), d0)
	}

	method := opts.Method
	if method == "" {
		method = MethodThreshold
	}
	return PhenoDates{
		Year:         w.Year,
		Greenup:      DateOfDay(w.Year, g0),
		Dormancy:     DateOfDay(w.Year, d0),
		GreenupLow:   DateOfDay(w.Year, gLo),
		GreenupHigh:  DateOfDay(w.Year, gHi),
		DormancyLow:  DateOfDay(w.Year, dLo),
		DormancyHigh: DateOfDay(w.Year, dHi),
		Method:       method,
	}, nil
}

// transitionDays evaluates the curve on a daily grid across the window and
// locates the greenup and dormancy days in the day-of-season coordinate.
func transitionDays(p CurveParams, w YearWindow, opts TransitionOptions) (greenup, dormancy float64, err error) {
	start := DayOfSeason(w.Start, w.Year)
	days, vals := dailyCurve(p, start, DayOfSeason(w.End, w.Year))
	if len(vals) < 3 {
		return 0, 0, &undefinedTransitionError{year: w.Year, reason: "window too short for extraction"}
	}

	peak := 0
	for i, v := range vals {
		if v > vals[peak] {
			peak = i
		}
	}
	amp := vals[peak] - p.Baseline
	if amp < opts.MinAmplitude {
		return 0, 0, &undefinedTransitionError{
			year:   w.Year,
			reason: fmt.Sprintf("seasonal amplitude %.4f below minimum %.4f", amp, opts.MinAmplitude),
		}
	}

	switch opts.Method {
	case MethodCurvature:
		greenup, dormancy, err = curvatureDays(days, vals, peak, w.Year)
	default:
		frac := opts.ThresholdFraction
		if frac <= 0 || frac >= 1 {
			frac = 0.5
		}
		greenup, dormancy, err = thresholdDays(days, vals, peak, p.Baseline+frac*amp, w.Year)
	}
	if err != nil {
		return 0, 0, err
	}
	if greenup >= dormancy {
		return 0, 0, &undefinedTransitionError{year: w.Year, reason: "greenup at or after dormancy"}
	}
	return greenup, dormancy, nil
}

// dailyCurve samples the curve at one-day steps from start to end inclusive.
func dailyCurve(p CurveParams, start, end float64) (days, vals []float64) {
	n := int(end-start) + 1
	if n < 0 {
		n = 0
	}
	days = make([]float64, n)
	vals = make([]float64, n)
	for i := 0; i < n; i++ {
		days[i] = start + float64(i)
		vals[i] = Evaluate(p, days[i])
	}
	return days, vals
}

// thresholdDays finds the first upward threshold crossing before the peak and
// the last downward crossing after it, linearly interpolated between grid
// days.
func thresholdDays(days, vals []float64, peak int, threshold float64, year int) (float64, float64, error) {
	greenup := -1.0
	for i := 1; i <= peak; i++ {
		if vals[i-1] < threshold && vals[i] >= threshold {
			greenup = days[i-1] + (threshold-vals[i-1])/(vals[i]-vals[i-1])
			break
		}
	}
	if greenup < 0 {
		return 0, 0, &undefinedTransitionError{year: year, reason: "curve never rises through the greenup threshold"}
	}

	dormancy := -1.0
	for i := len(vals) - 1; i > peak; i-- {
		if vals[i-1] >= threshold && vals[i] < threshold {
			dormancy = days[i-1] + (vals[i-1]-threshold)/(vals[i-1]-vals[i])
			break
		}
	}
	if dormancy < 0 {
		return 0, 0, &undefinedTransitionError{year: year, reason: "curve never falls through the dormancy threshold"}
	}
	return greenup, dormancy, nil
}

// curvatureDays finds the second-derivative maxima on the rising and falling
// limbs using central differences on the daily grid. Both limbs must bend
// upward somewhere, otherwise the curve is effectively monotone across the
// window.
func curvatureDays(days, vals []float64, peak int, year int) (float64, float64, error) {
	if peak < 2 || peak > len(vals)-3 {
		return 0, 0, &undefinedTransitionError{year: year, reason: "curve is monotone across the window"}
	}

	argmax := func(lo, hi int) (int, float64) {
		best, bestVal := -1, 0.0
		for i := lo; i <= hi; i++ {
			d2 := vals[i+1] - 2*vals[i] + vals[i-1]
			if best == -1 || d2 > bestVal {
				best, bestVal = i, d2
			}
		}
		return best, bestVal
	}

	gi, gv := argmax(1, peak-1)
	di, dv := argmax(peak+1, len(vals)-2)
	if gv <= 0 {
		return 0, 0, &undefinedTransitionError{year: year, reason: "rising limb has no curvature maximum"}
	}
	if dv <= 0 {
		return 0, 0, &undefinedTransitionError{year: year, reason: "falling limb has no curvature maximum"}
	}
	return days[gi], days[di], nil
}
