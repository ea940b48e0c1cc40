// Command trainer calibrates an exercise from a recorded landmark stream.
//
// The input is JSONL: one pose frame per line, each a mapping from landmark
// name to {x, y, z, visibility}. The tool derives joint angle series, runs
// the calibration engine, merges the resulting ranges into the reference
// file, and optionally records provenance and renders review artifacts.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/posefit/posefit/internal/calibrate"
	"github.com/posefit/posefit/internal/config"
	"github.com/posefit/posefit/internal/fsutil"
	"github.com/posefit/posefit/internal/geom"
	"github.com/posefit/posefit/internal/monitoring"
	"github.com/posefit/posefit/internal/pose"
	"github.com/posefit/posefit/internal/refstore"
	"github.com/posefit/posefit/internal/report"
	"github.com/posefit/posefit/internal/sessiondb"
	"github.com/posefit/posefit/internal/version"
)

var (
	input    = flag.String("input", "", "Recorded landmark JSONL file (required)")
	exercise = flag.String("exercise", "", "Exercise name to calibrate (required)")
	joint    = flag.String("joint", "", "Driving joint for segmentation, e.g. Elbow (required)")
	refs     = flag.String("refs", "references.json", "Reference file to merge results into")
	tuning   = flag.String("tuning", "", "Tuning config JSON (defaults built in)")
	dbPath   = flag.String("db", "", "Session database for run provenance (optional)")
	outDir   = flag.String("out", "calibration_output", "Directory for plot and report output")
	online   = flag.Bool("online", false, "Use the wider interactive-capture tolerance")
	debug    = flag.Bool("debug", false, "Log per-repetition calibration detail")
)

func main() {
	flag.Parse()
	if *input == "" || *exercise == "" || *joint == "" {
		flag.Usage()
		os.Exit(2)
	}
	monitoring.SetDebug(*debug)
	log.Printf("%s", version.String())

	tuningCfg := config.EmptyTuningConfig()
	if *tuning != "" {
		var err error
		tuningCfg, err = config.LoadTuningConfig(*tuning)
		if err != nil {
			log.Fatalf("Failed to load tuning config: %v", err)
		}
	}

	series, frames, err := readAngleSeries(*input, tuningCfg.GetVisibilityFloor())
	if err != nil {
		log.Fatalf("Failed to read %s: %v", *input, err)
	}
	log.Printf("Read %d frame(s) from %s", frames, *input)

	engine := calibrate.NewEngine(tuningCfg)
	res, err := engine.Calibrate(*exercise, *joint, series, *online)
	if err != nil {
		log.Fatalf("Calibration failed: %v", err)
	}
	log.Printf("Calibrated %s: %d rep(s) on %s", res.Exercise, len(res.Segments), res.DrivingJoint)

	store := refstore.NewStore(fsutil.OSFileSystem{}, *refs)
	if err := store.SaveJoints(res.Exercise, res.Ranges, provenance(res)); err != nil {
		log.Fatalf("Failed to save references: %v", err)
	}
	log.Printf("Merged %d joint range(s) into %s", len(res.Ranges), *refs)

	if *dbPath != "" {
		recordProvenance(*dbPath, res)
	}

	// Review artifacts are best-effort: a render failure does not undo a
	// successful calibration.
	plotPath := filepath.Join(*outDir, res.Exercise+".png")
	if err := report.WriteSeriesPlot(plotPath, res, series); err != nil {
		log.Printf("Plot failed: %v", err)
	} else {
		log.Printf("Wrote %s", plotPath)
	}
	htmlPath := filepath.Join(*outDir, res.Exercise+".html")
	if err := report.WriteHTMLReport(htmlPath, res); err != nil {
		log.Printf("Report failed: %v", err)
	} else {
		log.Printf("Wrote %s", htmlPath)
	}
}

// readAngleSeries derives per-joint angle series from a landmark JSONL file.
// Joints that never produce a defined angle are dropped so partial landmark
// coverage (e.g. upper-body-only video) still calibrates the joints it can.
func readAngleSeries(path string, visibilityFloor float64) (map[string][]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	extractor := pose.NewExtractor(visibilityFloor)
	series := map[string][]float64{}
	frames := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var frame pose.Frame
		if err := json.Unmarshal(line, &frame); err != nil {
			return nil, 0, fmt.Errorf("frame %d: %w", frames+1, err)
		}
		for jointName, angle := range extractor.Angles(frame) {
			series[jointName] = append(series[jointName], angle)
		}
		frames++
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, err
	}

	for jointName, s := range series {
		if !hasDefined(s) {
			delete(series, jointName)
		}
	}
	return series, frames, nil
}

func hasDefined(series []float64) bool {
	for _, v := range series {
		if geom.IsDefined(v) {
			return true
		}
	}
	return false
}

// provenance builds the metadata block persisted alongside the ranges.
func provenance(res *calibrate.Result) map[string]json.RawMessage {
	type jointAnalysis struct {
		SampleCount int     `json:"sample_count"`
		Mean        float64 `json:"mean"`
		StdDev      float64 `json:"stddev"`
	}
	analysis := struct {
		RunID    string                   `json:"run_id"`
		RepCount int                      `json:"rep_count"`
		Driving  string                   `json:"driving_joint"`
		Online   bool                     `json:"online"`
		Joints   map[string]jointAnalysis `json:"joints"`
	}{
		RunID:    res.RunID,
		RepCount: len(res.Segments),
		Driving:  res.DrivingJoint,
		Online:   res.Online,
		Joints:   map[string]jointAnalysis{},
	}
	for jointName, s := range res.Stats {
		analysis.Joints[jointName] = jointAnalysis{
			SampleCount: s.SampleCount,
			Mean:        s.Mean,
			StdDev:      s.StdDev,
		}
	}
	raw, err := json.Marshal(analysis)
	if err != nil {
		return nil
	}
	return map[string]json.RawMessage{"Analysis": raw}
}

func recordProvenance(path string, res *calibrate.Result) {
	db, err := sessiondb.Open(path)
	if err != nil {
		log.Printf("Session db unavailable: %v", err)
		return
	}
	defer db.Close()
	if err := db.RecordCalibration(context.Background(), res); err != nil {
		log.Printf("Failed to record calibration run: %v", err)
	}
}
