package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig holds the empirically-chosen detection and calibration
// parameters. All fields are optional; the Get* accessors supply defaults
// for anything omitted from the JSON file, so partial configs are safe.
//
// The tolerance constants here came out of demonstration-video analysis,
// not first principles. Do not assume they transfer between exercises
// without recalibrating.
type TuningConfig struct {
	// Live validation params
	FormToleranceDeg *float64 `json:"form_tolerance_deg,omitempty"`
	JerkThresholdDeg *float64 `json:"jerk_threshold_deg,omitempty"`
	VisibilityFloor  *float64 `json:"visibility_floor,omitempty"`

	// Calibration params
	SmoothingWindow    *int     `json:"smoothing_window,omitempty"`
	ProminenceFraction *float64 `json:"prominence_fraction,omitempty"`
	MinPeakDistance    *int     `json:"min_peak_distance,omitempty"`
	MinSamples         *int     `json:"min_samples,omitempty"`
	MinMovementDeg     *float64 `json:"min_movement_deg,omitempty"`
	MinDropDeg         *float64 `json:"min_drop_deg,omitempty"`
	ToleranceDeg       *float64 `json:"tolerance_deg,omitempty"`
	OnlineToleranceDeg *float64 `json:"online_tolerance_deg,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields unset.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file must have a .json extension and stay under the max file size.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from
// DefaultConfigPath, searching upward from the current directory.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/<pkg>/
		"../../../" + DefaultConfigPath,
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are usable.
func (c *TuningConfig) Validate() error {
	if c.VisibilityFloor != nil {
		if *c.VisibilityFloor < 0 || *c.VisibilityFloor > 1 {
			return fmt.Errorf("visibility_floor must be between 0 and 1, got %f", *c.VisibilityFloor)
		}
	}

	if c.ProminenceFraction != nil {
		if *c.ProminenceFraction < 0.15 || *c.ProminenceFraction > 0.3 {
			return fmt.Errorf("prominence_fraction must be between 0.15 and 0.3, got %f", *c.ProminenceFraction)
		}
	}

	if c.SmoothingWindow != nil && *c.SmoothingWindow < 0 {
		return fmt.Errorf("smoothing_window must be non-negative, got %d", *c.SmoothingWindow)
	}

	if c.MinPeakDistance != nil && *c.MinPeakDistance < 1 {
		return fmt.Errorf("min_peak_distance must be at least 1, got %d", *c.MinPeakDistance)
	}

	if c.MinSamples != nil && *c.MinSamples < 2 {
		return fmt.Errorf("min_samples must be at least 2, got %d", *c.MinSamples)
	}

	for name, v := range map[string]*float64{
		"form_tolerance_deg":   c.FormToleranceDeg,
		"jerk_threshold_deg":   c.JerkThresholdDeg,
		"min_movement_deg":     c.MinMovementDeg,
		"min_drop_deg":         c.MinDropDeg,
		"tolerance_deg":        c.ToleranceDeg,
		"online_tolerance_deg": c.OnlineToleranceDeg,
	} {
		if v != nil && (*v < 0 || *v > 180) {
			return fmt.Errorf("%s must be between 0 and 180 degrees, got %f", name, *v)
		}
	}

	return nil
}

// GetFormToleranceDeg returns the form tolerance or the default.
func (c *TuningConfig) GetFormToleranceDeg() float64 {
	if c.FormToleranceDeg == nil {
		return 15.0
	}
	return *c.FormToleranceDeg
}

// GetJerkThresholdDeg returns the per-frame jerk threshold or the default.
func (c *TuningConfig) GetJerkThresholdDeg() float64 {
	if c.JerkThresholdDeg == nil {
		return 20.0
	}
	return *c.JerkThresholdDeg
}

// GetVisibilityFloor returns the landmark visibility floor or the default.
func (c *TuningConfig) GetVisibilityFloor() float64 {
	if c.VisibilityFloor == nil {
		return 0.3
	}
	return *c.VisibilityFloor
}

// GetSmoothingWindow returns the moving-average window or the default.
func (c *TuningConfig) GetSmoothingWindow() int {
	if c.SmoothingWindow == nil {
		return 7
	}
	return *c.SmoothingWindow
}

// GetProminenceFraction returns the extremum prominence fraction or the default.
func (c *TuningConfig) GetProminenceFraction() float64 {
	if c.ProminenceFraction == nil {
		return 0.2
	}
	return *c.ProminenceFraction
}

// GetMinPeakDistance returns the minimum inter-extremum distance (samples)
// or the default.
func (c *TuningConfig) GetMinPeakDistance() int {
	if c.MinPeakDistance == nil {
		return 10
	}
	return *c.MinPeakDistance
}

// GetMinSamples returns the minimum valid sample count for calibration or
// the default.
func (c *TuningConfig) GetMinSamples() int {
	if c.MinSamples == nil {
		return 20
	}
	return *c.MinSamples
}

// GetMinMovementDeg returns the minimum signal range for the single-rep
// fallback or the default.
func (c *TuningConfig) GetMinMovementDeg() float64 {
	if c.MinMovementDeg == nil {
		return 10.0
	}
	return *c.MinMovementDeg
}

// GetMinDropDeg returns the drop accepted in place of an explicit valley
// between two maxima, or the default.
func (c *TuningConfig) GetMinDropDeg() float64 {
	if c.MinDropDeg == nil {
		return 5.0
	}
	return *c.MinDropDeg
}

// GetToleranceDeg returns the offline calibration widening margin or the default.
func (c *TuningConfig) GetToleranceDeg() float64 {
	if c.ToleranceDeg == nil {
		return 5.0
	}
	return *c.ToleranceDeg
}

// GetOnlineToleranceDeg returns the widening margin for interactive capture
// (noisier than offline video) or the default.
func (c *TuningConfig) GetOnlineToleranceDeg() float64 {
	if c.OnlineToleranceDeg == nil {
		return 10.0
	}
	return *c.OnlineToleranceDeg
}
