package calibrate

import (
	"math"
	"sort"

	"github.com/posefit/posefit/internal/geom"
)

// findMaxima returns the indices of local maxima whose prominence is at
// least minProminence, thinned so accepted maxima are at least minDistance
// indices apart (taller peaks win). Indices are returned in ascending order.
func findMaxima(series []float64, minProminence float64, minDistance int) []int {
	var candidates []int
	for i := 1; i < len(series)-1; i++ {
		v := series[i]
		if !geom.IsDefined(v) {
			continue
		}
		left, right := series[i-1], series[i+1]
		if !geom.IsDefined(left) || !geom.IsDefined(right) {
			continue
		}
		// Plateaus credit their left edge only.
		if v > left && v >= right {
			candidates = append(candidates, i)
		}
	}

	var peaks []int
	for _, i := range candidates {
		if prominence(series, i) >= minProminence {
			peaks = append(peaks, i)
		}
	}
	return thinByDistance(series, peaks, minDistance)
}

// findMinima locates local minima by peak-finding the negated series.
func findMinima(series []float64, minProminence float64, minDistance int) []int {
	neg := make([]float64, len(series))
	for i, v := range series {
		neg[i] = -v
	}
	return findMaxima(neg, minProminence, minDistance)
}

// prominence measures how far the peak at i rises above its bases: on each
// side, walk until a strictly higher value (or the edge) and take the lowest
// point passed; the prominence is the peak height above the higher of the
// two bases.
func prominence(series []float64, i int) float64 {
	peak := series[i]

	leftBase := peak
	for k := i - 1; k >= 0; k-- {
		v := series[k]
		if !geom.IsDefined(v) {
			continue
		}
		if v > peak {
			break
		}
		if v < leftBase {
			leftBase = v
		}
	}

	rightBase := peak
	for k := i + 1; k < len(series); k++ {
		v := series[k]
		if !geom.IsDefined(v) {
			continue
		}
		if v > peak {
			break
		}
		if v < rightBase {
			rightBase = v
		}
	}

	return peak - math.Max(leftBase, rightBase)
}

// thinByDistance drops peaks closer than minDistance to an already accepted
// taller peak, processing tallest first.
func thinByDistance(series []float64, peaks []int, minDistance int) []int {
	if minDistance < 2 || len(peaks) < 2 {
		sorted := append([]int(nil), peaks...)
		sort.Ints(sorted)
		return sorted
	}

	byHeight := append([]int(nil), peaks...)
	sort.Slice(byHeight, func(a, b int) bool {
		if series[byHeight[a]] != series[byHeight[b]] {
			return series[byHeight[a]] > series[byHeight[b]]
		}
		return byHeight[a] < byHeight[b]
	})

	var kept []int
	for _, i := range byHeight {
		ok := true
		for _, j := range kept {
			if abs(i-j) < minDistance {
				ok = false
				break
			}
		}
		if ok {
			kept = append(kept, i)
		}
	}
	sort.Ints(kept)
	return kept
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
