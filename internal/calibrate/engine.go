package calibrate

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/posefit/posefit/internal/config"
	"github.com/posefit/posefit/internal/geom"
	"github.com/posefit/posefit/internal/monitoring"
	"github.com/posefit/posefit/internal/refstore"
)

// Calibration failure modes. A failed run persists nothing.
var (
	// ErrInsufficientData means too few valid samples were recorded.
	ErrInsufficientData = errors.New("insufficient calibration data")
	// ErrInsufficientMovement means the signal never moved enough to
	// contain a repetition.
	ErrInsufficientMovement = errors.New("insufficient movement")
	// ErrIncompleteCoverage means a tracked joint produced no usable data.
	ErrIncompleteCoverage = errors.New("incomplete joint coverage")
)

// Segment is one detected repetition as an inclusive index interval over
// the recorded series.
type Segment struct {
	Start int
	End   int
}

// JointStats is provenance carried alongside a calibrated range.
type JointStats struct {
	SampleCount int
	Mean        float64
	StdDev      float64
}

// Result is a successful calibration run.
type Result struct {
	// RunID uniquely identifies the run for provenance.
	RunID        string
	Exercise     string
	DrivingJoint string
	Online       bool
	// Segments are the detected repetitions on the driving joint.
	Segments []Segment
	// Ranges are the aggregated, tolerance-widened bands per joint.
	Ranges refstore.JointRanges
	// Stats carries per-joint provenance over the smoothed series.
	Stats map[string]JointStats
	// Smoothed retains the smoothed series for reporting.
	Smoothed map[string][]float64
}

// Engine runs offline calibration with parameters from the tuning config.
type Engine struct {
	tuning *config.TuningConfig
}

// NewEngine returns an Engine tuned from cfg.
func NewEngine(cfg *config.TuningConfig) *Engine {
	return &Engine{tuning: cfg}
}

// Calibrate derives reference ranges for exercise from recorded angle
// series, one series per tracked joint, all index-aligned. drivingJoint
// selects the series used for repetition segmentation. online widens the
// final tolerance for interactive captures, which are noisier than
// recorded video.
//
// Per-joint statistics run concurrently; aggregation waits for all of them.
// On any error no partial result is returned.
func (e *Engine) Calibrate(exercise, drivingJoint string, series map[string][]float64, online bool) (*Result, error) {
	drive, ok := series[drivingJoint]
	if !ok {
		return nil, fmt.Errorf("%w: no series for driving joint %s", ErrIncompleteCoverage, drivingJoint)
	}

	minSamples := e.tuning.GetMinSamples()
	if n := countDefined(drive); n < minSamples {
		return nil, fmt.Errorf("%w: %d valid samples of %s, need %d",
			ErrInsufficientData, n, drivingJoint, minSamples)
	}

	window := e.tuning.GetSmoothingWindow()
	smoothed := make(map[string][]float64, len(series))
	for joint, s := range series {
		smoothed[joint] = Smooth(s, window)
	}

	segments, err := e.segment(smoothed[drivingJoint])
	if err != nil {
		return nil, fmt.Errorf("segmenting %s/%s: %w", exercise, drivingJoint, err)
	}
	monitoring.Logf("calibration %s: %d repetition(s) detected on %s", exercise, len(segments), drivingJoint)

	type jointResult struct {
		joint string
		min   float64
		max   float64
		stats JointStats
		ok    bool
	}

	// Per-joint min/max are independent; fan out and join before
	// aggregation.
	results := make([]jointResult, 0, len(smoothed))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for joint, s := range smoothed {
		wg.Add(1)
		go func(joint string, s []float64) {
			defer wg.Done()
			r := jointResult{joint: joint}
			r.min, r.max, r.ok = aggregateSegments(s, segments)
			r.stats = jointStats(s)
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
		}(joint, s)
	}
	wg.Wait()

	tolerance := e.tuning.GetToleranceDeg()
	if online {
		tolerance = e.tuning.GetOnlineToleranceDeg()
	}

	ranges := refstore.JointRanges{}
	stats := map[string]JointStats{}
	var missing []string
	for _, r := range results {
		if !r.ok {
			missing = append(missing, r.joint)
			continue
		}
		ranges[r.joint] = refstore.Range{
			Min: geom.Clamp(r.min - tolerance),
			Max: geom.Clamp(r.max + tolerance),
		}
		stats[r.joint] = r.stats
		monitoring.Debugf("calibration %s/%s: range [%.1f, %.1f] from %d rep(s)",
			exercise, r.joint, r.min, r.max, len(segments))
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: no valid samples for %s", ErrIncompleteCoverage, strings.Join(missing, ", "))
	}

	return &Result{
		RunID:        uuid.NewString(),
		Exercise:     exercise,
		DrivingJoint: drivingJoint,
		Online:       online,
		Segments:     segments,
		Ranges:       ranges,
		Stats:        stats,
		Smoothed:     smoothed,
	}, nil
}

// segment detects repetitions on the smoothed driving series. The series
// must move at least the minimum-movement span. A repetition spans two
// consecutive prominent maxima with a detected minimum between them, or
// failing that a sufficient value drop inside the interval. Segments never
// overlap: a maximum bounding two repetitions belongs to the earlier one.
// Without two usable maxima the whole series counts as one repetition.
func (e *Engine) segment(drive []float64) ([]Segment, error) {
	lo, hi, ok := definedRange(drive)
	if !ok {
		return nil, ErrInsufficientMovement
	}
	span := hi - lo
	if span < e.tuning.GetMinMovementDeg() {
		return nil, fmt.Errorf("%w: range %.1f degrees", ErrInsufficientMovement, span)
	}

	prom := e.tuning.GetProminenceFraction() * span
	dist := e.tuning.GetMinPeakDistance()
	maxima := findMaxima(drive, prom, dist)
	minima := findMinima(drive, prom, dist)

	minDrop := e.tuning.GetMinDropDeg()
	var segments []Segment
	for i := 0; i+1 < len(maxima); i++ {
		a, b := maxima[i], maxima[i+1]
		if !hasMinimumBetween(minima, a, b) && !dropsWithin(drive, a, b, minDrop) {
			continue
		}
		start := a
		if n := len(segments); n > 0 && segments[n-1].End >= start {
			start = segments[n-1].End + 1
		}
		segments = append(segments, Segment{Start: start, End: b})
	}
	if len(segments) > 0 {
		return segments, nil
	}
	return []Segment{{Start: 0, End: len(drive) - 1}}, nil
}

// hasMinimumBetween reports whether any detected minimum lies strictly
// inside (a, b). minima is ascending.
func hasMinimumBetween(minima []int, a, b int) bool {
	i := sort.SearchInts(minima, a+1)
	return i < len(minima) && minima[i] < b
}

// dropsWithin reports whether the series dips at least drop below its value
// at a somewhere inside (a, b).
func dropsWithin(series []float64, a, b int, drop float64) bool {
	for i := a + 1; i < b; i++ {
		if geom.IsDefined(series[i]) && series[a]-series[i] >= drop {
			return true
		}
	}
	return false
}

// aggregateSegments returns the overall min of per-segment minima and max
// of per-segment maxima, ignoring undefined samples. Segments with no valid
// samples are skipped; ok is false when no segment had any.
func aggregateSegments(series []float64, segments []Segment) (min, max float64, ok bool) {
	min, max = math.Inf(1), math.Inf(-1)
	for _, seg := range segments {
		segMin, segMax, segOK := definedRange(series[seg.Start : seg.End+1])
		if !segOK {
			continue
		}
		if segMin < min {
			min = segMin
		}
		if segMax > max {
			max = segMax
		}
		ok = true
	}
	return min, max, ok
}

// jointStats computes provenance statistics over the defined samples.
func jointStats(series []float64) JointStats {
	valid := make([]float64, 0, len(series))
	for _, v := range series {
		if geom.IsDefined(v) {
			valid = append(valid, v)
		}
	}
	if len(valid) == 0 {
		return JointStats{}
	}
	mean, std := stat.MeanStdDev(valid, nil)
	if math.IsNaN(std) {
		std = 0
	}
	return JointStats{SampleCount: len(valid), Mean: mean, StdDev: std}
}

// definedRange returns the min and max of the defined samples; ok is false
// when the slice has none.
func definedRange(series []float64) (min, max float64, ok bool) {
	min, max = math.Inf(1), math.Inf(-1)
	for _, v := range series {
		if !geom.IsDefined(v) {
			continue
		}
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		ok = true
	}
	return min, max, ok
}

// countDefined counts the non-NaN samples.
func countDefined(series []float64) int {
	n := 0
	for _, v := range series {
		if geom.IsDefined(v) {
			n++
		}
	}
	return n
}
