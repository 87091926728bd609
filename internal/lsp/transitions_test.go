package lsp

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestExtractDatesThreshold(t *testing.T) {
	w := NewYearWindow(2012, 0)

	greenup, dormancy, err := ExtractDates(testParams, w, DefaultTransitionOptions())
	if err != nil {
		t.Fatalf("expected extraction to succeed, got %v", err)
	}

	// The half-amplitude crossings sit near the logistic inflection days.
	assertDateNear(t, "greenup", greenup, time.Date(2012, time.May, 4, 0, 0, 0, 0, time.UTC), 6)
	assertDateNear(t, "dormancy", dormancy, time.Date(2012, time.October, 6, 0, 0, 0, 0, time.UTC), 8)
	if !greenup.Before(dormancy) {
		t.Errorf("expected greenup %s before dormancy %s", greenup, dormancy)
	}
}

func TestExtractDatesThresholdFraction(t *testing.T) {
	w := NewYearWindow(2012, 0)

	low := DefaultTransitionOptions()
	low.ThresholdFraction = 0.2
	high := DefaultTransitionOptions()
	high.ThresholdFraction = 0.8

	gLow, dLow, err := ExtractDates(testParams, w, low)
	if err != nil {
		t.Fatalf("expected 20%% extraction to succeed, got %v", err)
	}
	gHigh, dHigh, err := ExtractDates(testParams, w, high)
	if err != nil {
		t.Fatalf("expected 80%% extraction to succeed, got %v", err)
	}

	// A lower threshold is crossed earlier in spring and later in autumn.
	if !gLow.Before(gHigh) {
		t.Errorf("expected 20%% greenup %s before 80%% greenup %s", gLow, gHigh)
	}
	if !dLow.After(dHigh) {
		t.Errorf("expected 20%% dormancy %s after 80%% dormancy %s", dLow, dHigh)
	}
}

func TestExtractDatesCurvature(t *testing.T) {
	w := NewYearWindow(2012, 0)

	opts := DefaultTransitionOptions()
	opts.Method = MethodCurvature

	greenup, dormancy, err := ExtractDates(testParams, w, opts)
	if err != nil {
		t.Fatalf("expected extraction to succeed, got %v", err)
	}

	// Sharpest upward bending precedes the spring inflection and follows the
	// autumn inflection.
	gDay := DayOfSeason(greenup, 2012)
	dDay := DayOfSeason(dormancy, 2012)
	if gDay >= testParams.SpringDay || gDay < testParams.SpringDay-4*testParams.SpringRate {
		t.Errorf("expected greenup shortly before day %.0f, got day %.0f", testParams.SpringDay, gDay)
	}
	if dDay <= testParams.AutumnDay || dDay > testParams.AutumnDay+4*testParams.AutumnRate {
		t.Errorf("expected dormancy shortly after day %.0f, got day %.0f", testParams.AutumnDay, dDay)
	}
}

func TestExtractDatesUndefined(t *testing.T) {
	tests := []struct {
		name   string
		params CurveParams
	}{
		{
			name: "amplitude below minimum",
			params: CurveParams{
				Baseline: 0.2, Amplitude: 0.02,
				SpringDay: 125, SpringRate: 7, AutumnDay: 285, AutumnRate: 10,
			},
		},
		{
			name: "cycle entirely outside the window",
			params: CurveParams{
				Baseline: 0.12, Amplitude: 0.38,
				SpringDay: -150, SpringRate: 7, AutumnDay: 500, AutumnRate: 10,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ExtractDates(tt.params, NewYearWindow(2012, 0), DefaultTransitionOptions())
			if !errors.Is(err, ErrUndefinedTransition) {
				t.Fatalf("expected ErrUndefinedTransition, got %v", err)
			}
		})
	}
}

func TestDatesWithIntervals(t *testing.T) {
	w := NewYearWindow(2012, 0)

	fit := YearFit{Year: 2012, Params: testParams}
	for _, shift := range []float64{-3, -1.5, 0, 1.5, 3} {
		draw := testParams
		draw.SpringDay += shift
		draw.AutumnDay -= shift
		fit.Draws = append(fit.Draws, draw)
	}
	// One degenerate draw must not poison the intervals.
	fit.Draws = append(fit.Draws, CurveParams{
		Baseline: 0.2, Amplitude: 0.01,
		SpringDay: 125, SpringRate: 7, AutumnDay: 285, AutumnRate: 10,
	})

	dates, err := DatesWithIntervals(fit, w, DefaultTransitionOptions())
	if err != nil {
		t.Fatalf("expected extraction to succeed, got %v", err)
	}

	if dates.Year != 2012 {
		t.Errorf("expected year 2012, got %d", dates.Year)
	}
	if dates.Method != MethodThreshold {
		t.Errorf("expected method %q, got %q", MethodThreshold, dates.Method)
	}
	if dates.GreenupLow.After(dates.Greenup) || dates.Greenup.After(dates.GreenupHigh) {
		t.Errorf("expected greenup %s inside [%s, %s]", dates.Greenup, dates.GreenupLow, dates.GreenupHigh)
	}
	if dates.DormancyLow.After(dates.Dormancy) || dates.Dormancy.After(dates.DormancyHigh) {
		t.Errorf("expected dormancy %s inside [%s, %s]", dates.Dormancy, dates.DormancyLow, dates.DormancyHigh)
	}
	if !dates.Greenup.Before(dates.Dormancy) {
		t.Errorf("expected greenup %s before dormancy %s", dates.Greenup, dates.Dormancy)
	}
}

func TestDatesWithIntervalsCoverPointEstimate(t *testing.T) {
	w := NewYearWindow(2012, 0)

	// Every draw sits later than the median curve, so the raw draw quantiles
	// exclude the median-curve dates. The reported interval must still cover
	// the reported dates.
	fit := YearFit{Year: 2012, Params: testParams}
	for _, shift := range []float64{4, 5, 6} {
		draw := testParams
		draw.SpringDay += shift
		draw.AutumnDay += shift
		fit.Draws = append(fit.Draws, draw)
	}

	dates, err := DatesWithIntervals(fit, w, DefaultTransitionOptions())
	if err != nil {
		t.Fatalf("expected extraction to succeed, got %v", err)
	}
	if dates.GreenupLow.After(dates.Greenup) || dates.GreenupHigh.Before(dates.Greenup) {
		t.Errorf("expected greenup %s inside [%s, %s]", dates.Greenup, dates.GreenupLow, dates.GreenupHigh)
	}
	if dates.DormancyLow.After(dates.Dormancy) || dates.DormancyHigh.Before(dates.Dormancy) {
		t.Errorf("expected dormancy %s inside [%s, %s]", dates.Dormancy, dates.DormancyLow, dates.DormancyHigh)
	}
}

func TestExtractDatesIdempotent(t *testing.T) {
	w := NewYearWindow(2012, 0)
	opts := DefaultTransitionOptions()

	g1, d1, err := ExtractDates(testParams, w, opts)
	if err != nil {
		t.Fatalf("expected extraction to succeed, got %v", err)
	}
	g2, d2, err := ExtractDates(testParams, w, opts)
	if err != nil {
		t.Fatalf("expected repeat extraction to succeed, got %v", err)
	}
	if !g1.Equal(g2) || !d1.Equal(d2) {
		t.Errorf("expected identical dates on repeat extraction, got %s/%s and %s/%s", g1, d1, g2, d2)
	}
}

func TestThresholdRoundTrip(t *testing.T) {
	// The curve value at the extracted greenup day must sit on the threshold
	// that defined it, up to interpolation error on the daily grid.
	w := NewYearWindow(2012, 0)
	opts := DefaultTransitionOptions()

	greenupDay, _, err := transitionDays(testParams, w, opts)
	if err != nil {
		t.Fatalf("expected extraction to succeed, got %v", err)
	}

	_, vals := dailyCurve(testParams, DayOfSeason(w.Start, w.Year), DayOfSeason(w.End, w.Year))
	peak := vals[0]
	for _, v := range vals {
		if v > peak {
			peak = v
		}
	}
	threshold := testParams.Baseline + opts.ThresholdFraction*(peak-testParams.Baseline)

	got := Evaluate(testParams, greenupDay)
	if math.Abs(got-threshold) > 0.005 {
		t.Errorf("expected curve value %.4f at greenup day %.2f to sit near threshold %.4f", got, greenupDay, threshold)
	}
}

func TestDatesWithIntervalsUndefinedMedian(t *testing.T) {
	fit := YearFit{
		Year: 2012,
		Params: CurveParams{
			Baseline: 0.2, Amplitude: 0.02,
			SpringDay: 125, SpringRate: 7, AutumnDay: 285, AutumnRate: 10,
		},
	}
	_, err := DatesWithIntervals(fit, NewYearWindow(2012, 0), DefaultTransitionOptions())
	if !errors.Is(err, ErrUndefinedTransition) {
		t.Fatalf("expected ErrUndefinedTransition, got %v", err)
	}
}

func assertDateNear(t *testing.T, name string, got, want time.Time, days float64) {
	t.Helper()
	diff := got.Sub(want).Hours() / 24
	if diff < -days || diff > days {
		t.Errorf("%s: expected within %.0f days of %s, got %s", name, days, want.Format("2006-01-02"), got.Format("2006-01-02"))
	}
}
