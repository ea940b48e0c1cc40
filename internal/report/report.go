// Package report renders calibration runs for human review: a PNG of the
// angle series with detected repetitions, and a standalone HTML chart.
// Reporting is best-effort; callers log failures and move on.
package report

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/posefit/posefit/internal/calibrate"
	"github.com/posefit/posefit/internal/geom"
)

var seriesColors = []color.RGBA{
	{R: 31, G: 119, B: 180, A: 255},
	{R: 255, G: 127, B: 14, A: 255},
	{R: 44, G: 160, B: 44, A: 255},
	{R: 214, G: 39, B: 40, A: 255},
	{R: 148, G: 103, B: 189, A: 255},
}

// WriteSeriesPlot saves a PNG of the smoothed angle series, the raw driving
// series, and vertical markers at repetition boundaries.
func WriteSeriesPlot(path string, res *calibrate.Result, raw map[string][]float64) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create plot dir: %w", err)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s calibration (%d reps, run %s)",
		res.Exercise, len(res.Segments), res.RunID)
	p.X.Label.Text = "frame"
	p.Y.Label.Text = "angle (deg)"
	p.Y.Min, p.Y.Max = 0, 185

	if rawDrive, ok := raw[res.DrivingJoint]; ok {
		line, err := plotter.NewLine(definedXYs(rawDrive))
		if err != nil {
			return fmt.Errorf("failed to build raw series: %w", err)
		}
		line.Color = color.RGBA{R: 180, G: 180, B: 180, A: 255}
		line.Width = vg.Points(0.5)
		p.Add(line)
		p.Legend.Add(res.DrivingJoint+" raw", line)
	}

	for i, joint := range sortedJoints(res.Smoothed) {
		line, err := plotter.NewLine(definedXYs(res.Smoothed[joint]))
		if err != nil {
			return fmt.Errorf("failed to build %s series: %w", joint, err)
		}
		line.Color = seriesColors[i%len(seriesColors)]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(joint, line)
	}

	for _, seg := range res.Segments {
		for _, x := range []int{seg.Start, seg.End} {
			marker, err := plotter.NewLine(plotter.XYs{
				{X: float64(x), Y: 0},
				{X: float64(x), Y: 185},
			})
			if err != nil {
				return fmt.Errorf("failed to build rep marker: %w", err)
			}
			marker.Color = color.RGBA{R: 214, G: 39, B: 40, A: 120}
			marker.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
			p.Add(marker)
		}
	}

	if err := p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save plot: %w", err)
	}
	return nil
}

// WriteHTMLReport saves a standalone HTML line chart of the smoothed series
// with the calibrated ranges in the subtitle.
func WriteHTMLReport(path string, res *calibrate.Result) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report dir: %w", err)
	}

	n := 0
	for _, s := range res.Smoothed {
		if len(s) > n {
			n = len(s)
		}
	}
	x := make([]int, n)
	for i := range x {
		x[i] = i
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: fmt.Sprintf("%s calibration", res.Exercise),
			Width:     "1200px",
			Height:    "600px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("%s calibration", res.Exercise),
			Subtitle: subtitle(res),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "angle (deg)", Min: 0, Max: 185}),
	)
	line.SetXAxis(x)

	for _, joint := range sortedJoints(res.Smoothed) {
		data := make([]opts.LineData, n)
		for i := 0; i < n; i++ {
			s := res.Smoothed[joint]
			if i < len(s) && geom.IsDefined(s[i]) {
				data[i] = opts.LineData{Value: s[i]}
			} else {
				data[i] = opts.LineData{Value: nil}
			}
		}
		line.AddSeries(joint, data, charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()
	if err := line.Render(f); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	if _, err := f.WriteString(repTable(res)); err != nil {
		return fmt.Errorf("failed to write rep table: %w", err)
	}
	return nil
}

// repTable renders the per-repetition min/max of each joint as an HTML
// fragment appended below the chart.
func repTable(res *calibrate.Result) string {
	joints := sortedJoints(res.Smoothed)
	var b strings.Builder
	b.WriteString(`<table border="1" cellpadding="4" style="margin:20px;border-collapse:collapse;font-family:sans-serif">`)
	b.WriteString("<tr><th>rep</th><th>frames</th>")
	for _, joint := range joints {
		fmt.Fprintf(&b, "<th>%s min</th><th>%s max</th>", joint, joint)
	}
	b.WriteString("</tr>")
	for i, seg := range res.Segments {
		fmt.Fprintf(&b, "<tr><td>%d</td><td>%d&ndash;%d</td>", i+1, seg.Start, seg.End)
		for _, joint := range joints {
			min, max, ok := segmentRange(res.Smoothed[joint], seg)
			if !ok {
				b.WriteString("<td>-</td><td>-</td>")
				continue
			}
			fmt.Fprintf(&b, "<td>%.1f</td><td>%.1f</td>", min, max)
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</table>")
	return b.String()
}

// segmentRange is the NaN-aware min/max of series within the segment.
func segmentRange(series []float64, seg calibrate.Segment) (min, max float64, ok bool) {
	min, max = math.Inf(1), math.Inf(-1)
	for i := seg.Start; i <= seg.End && i < len(series); i++ {
		v := series[i]
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

// subtitle summarizes the run: rep count and calibrated range per joint.
func subtitle(res *calibrate.Result) string {
	s := fmt.Sprintf("run=%s reps=%d driving=%s", res.RunID, len(res.Segments), res.DrivingJoint)
	for _, joint := range sortedJoints(res.Smoothed) {
		if r, ok := res.Ranges[joint]; ok {
			s += fmt.Sprintf(" %s=[%.1f, %.1f]", joint, r.Min, r.Max)
		}
	}
	return s
}

// definedXYs converts a series to plot points, skipping undefined samples.
func definedXYs(series []float64) plotter.XYs {
	pts := make(plotter.XYs, 0, len(series))
	for i, v := range series {
		if !geom.IsDefined(v) {
			continue
		}
		pts = append(pts, plotter.XY{X: float64(i), Y: v})
	}
	return pts
}

func sortedJoints(series map[string][]float64) []string {
	joints := make([]string, 0, len(series))
	for joint := range series {
		joints = append(joints, joint)
	}
	sort.Strings(joints)
	return joints
}
