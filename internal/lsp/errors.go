package lsp

import (
	"errors"
	"fmt"
)

// ErrInsufficientData marks a year window with too few usable observations
// to attempt a fit.
var ErrInsufficientData = errors.New("insufficient observations for fit")

// ErrUndefinedTransition marks a fitted curve with no detectable seasonal
// cycle, so greenup and dormancy dates cannot be extracted.
var ErrUndefinedTransition = errors.New("no detectable seasonal transition")

// ConvergenceError reports an estimation stage that produced no usable
// parameter set.
type ConvergenceError struct {
	// Stage is "average" or "year".
	Stage string

	// Year is set for per-year failures, zero for the average fit.
	Year int

	// Restarts and Converged describe the average fit: how many restarts ran
	// and how many reached an optimum.
	Restarts  int
	Converged int

	// Acceptance is the chain acceptance rate for per-year failures.
	Acceptance float64
}

func (e *ConvergenceError) Error() string {
	switch e.Stage {
	case "average":
		return fmt.Sprintf("average fit did not converge: 0 of %d restarts reached an optimum", e.Restarts)
	case "year":
		return fmt.Sprintf("year %d fit did not converge: acceptance rate %.4f", e.Year, e.Acceptance)
	default:
		return fmt.Sprintf("%s fit did not converge", e.Stage)
	}
}

// insufficientDataError carries the observation count alongside the sentinel.
type insufficientDataError struct {
	year int
	have int
	want int
}

func (e *insufficientDataError) Error() string {
	return fmt.Sprintf("year %d has %d usable observations, need at least %d", e.year, e.have, e.want)
}

func (e *insufficientDataError) Unwrap() error { return ErrInsufficientData }

// undefinedTransitionError carries the reason a curve yielded no dates.
type undefinedTransitionError struct {
	year   int
	reason string
}

func (e *undefinedTransitionError) Error() string {
	return fmt.Sprintf("year %d: %s", e.year, e.reason)
}

func (e *undefinedTransitionError) Unwrap() error { return ErrUndefinedTransition }

// SkipReason maps a per-year error to the short reason recorded in the skip
// report.
func SkipReason(err error) string {
	var conv *ConvergenceError
	switch {
	case errors.Is(err, ErrInsufficientData):
		return "insufficient data"
	case errors.Is(err, ErrUndefinedTransition):
		return "no seasonal transition"
	case errors.As(err, &conv):
		return "did not converge"
	default:
		return err.Error()
	}
}
