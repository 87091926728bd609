package vegindex

import (
	"math"
	"sort"
)

// DespikeOptions controls moving-median spike removal.
type DespikeOptions struct {
	// Window is the neighborhood size per point, including the point itself.
	// Must be odd; even values are widened by one.
	Window int

	// Threshold is the residual magnitude against the neighborhood median
	// beyond which a point counts as a spike.
	Threshold float64
}

// DefaultDespikeOptions returns the spike filter used unless configuration
// says otherwise. The threshold is well above composite-to-composite change
// in a real canopy but below a typical cloud-shadow spike.
func DefaultDespikeOptions() DespikeOptions {
	return DespikeOptions{
		Window:    5,
		Threshold: 0.15,
	}
}

// minNeighbors is the smallest neighborhood a spike test may run against. A
// median of fewer points is itself swayed by a single spike, so edge points
// below it pass through untested.
const minNeighbors = 3

// Despike removes isolated spikes: points whose value is further than the
// threshold from the median of their neighbors. The median excludes the point
// under test, so a single contaminated composite cannot mask itself. Returns
// the surviving series and the number of points removed.
func Despike(s Series, opts DespikeOptions) (Series, int) {
	if len(s) < 3 {
		return s, 0
	}
	window := opts.Window
	if window < 3 {
		window = 3
	}
	if window%2 == 0 {
		window++
	}
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = DefaultDespikeOptions().Threshold
	}

	half := window / 2
	out := make(Series, 0, len(s))
	removed := 0
	neighbors := make([]float64, 0, window)

	for i := range s {
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := i + half
		if hi > len(s)-1 {
			hi = len(s) - 1
		}

		neighbors = neighbors[:0]
		for j := lo; j <= hi; j++ {
			if j == i {
				continue
			}
			neighbors = append(neighbors, s[j].Value)
		}

		if len(neighbors) >= minNeighbors && math.Abs(s[i].Value-median(neighbors)) > threshold {
			removed++
			continue
		}
		out = append(out, s[i])
	}
	return out, removed
}

// median sorts its argument in place.
func median(vals []float64) float64 {
	sort.Float64s(vals)
	n := len(vals)
	if n%2 == 1 {
		return vals[n/2]
	}
	return (vals[n/2-1] + vals[n/2]) / 2
}
