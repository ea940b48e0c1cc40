// Package calibrate turns recorded angle series into reference ranges:
// smoothing, extremum-based repetition segmentation, per-rep statistics,
// and tolerant aggregation.
package calibrate

import "github.com/posefit/posefit/internal/geom"

// Smooth applies a centered moving average with reflective edge padding.
// A window below 2 returns a copy unchanged. Undefined samples contribute
// nothing to the window mean; a window with no defined samples stays
// undefined.
func Smooth(series []float64, window int) []float64 {
	out := make([]float64, len(series))
	copy(out, series)
	if window < 2 || len(series) == 0 {
		return out
	}
	if window > len(series) {
		window = len(series)
	}

	half := window / 2
	for i := range series {
		sum := 0.0
		n := 0
		for k := i - half; k <= i+half; k++ {
			v := series[reflectIndex(k, len(series))]
			if !geom.IsDefined(v) {
				continue
			}
			sum += v
			n++
		}
		if n == 0 {
			continue
		}
		out[i] = sum / float64(n)
	}
	return out
}

// reflectIndex mirrors an out-of-range index back into [0, n), matching
// reflective padding without materializing the padded series.
func reflectIndex(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * (n - 1)
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - i
	}
	return i
}
