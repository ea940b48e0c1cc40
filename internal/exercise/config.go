// Package exercise drives live tracking: per-frame form validation and the
// rep/phase state machine, parameterized by a per-exercise Config.
package exercise

import (
	"errors"
	"fmt"
	"sort"

	"github.com/posefit/posefit/internal/refstore"
)

// ErrNoConfig means the requested exercise has no configuration.
var ErrNoConfig = errors.New("no exercise configuration")

// Mode selects the counting strategy for an exercise.
type Mode string

const (
	// ModeThreshold counts reps from a single joint angle crossing two
	// hysteretic thresholds.
	ModeThreshold Mode = "threshold"
	// ModePhaseMatch counts reps from transitions between named phases,
	// each defined by multi-joint angle ranges.
	ModePhaseMatch Mode = "phase-match"
)

// ThresholdConfig parameterizes ModeThreshold. The dead zone between
// FlexedDeg and ExtendedDeg provides the hysteresis that prevents
// oscillation-driven double counting.
type ThresholdConfig struct {
	// Joint is the single driving joint, e.g. "Elbow".
	Joint string
	// ExtendedDeg is the angle at or above which the arm counts as extended.
	ExtendedDeg float64
	// FlexedDeg is the angle at or below which the arm counts as flexed.
	// Must be strictly less than ExtendedDeg.
	FlexedDeg float64
	// MidpointDeg is informational (UI progress display); zero means unset.
	MidpointDeg float64
}

// Transition is a phase edge that increments the rep count when observed in
// the best-phase sequence.
type Transition struct {
	From string
	To   string
}

// Config describes one exercise to the tracker. Exactly one of Threshold or
// Phases is populated, matching Mode.
type Config struct {
	Name string
	Mode Mode

	// Threshold drives ModeThreshold.
	Threshold *ThresholdConfig

	// Joints optionally carries calibrated per-joint ranges used for form
	// validation in ModeThreshold.
	Joints refstore.JointRanges

	// Phases defines ModePhaseMatch: phase name to required joint bands.
	Phases refstore.PhaseRanges

	// Reps lists the phase transitions that count as a completed rep.
	Reps []Transition

	// HoldPhase names the phase whose continuous valid occupancy is timed
	// instead of counted. Empty for counted exercises.
	HoldPhase string
}

// Validate checks the config is internally consistent.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("exercise config missing name")
	}
	switch c.Mode {
	case ModeThreshold:
		t := c.Threshold
		if t == nil {
			return fmt.Errorf("%s: threshold mode requires threshold parameters", c.Name)
		}
		if t.Joint == "" {
			return fmt.Errorf("%s: threshold mode requires a driving joint", c.Name)
		}
		if t.ExtendedDeg <= t.FlexedDeg {
			return fmt.Errorf("%s: extended threshold %.1f must exceed flexed threshold %.1f",
				c.Name, t.ExtendedDeg, t.FlexedDeg)
		}
		for joint, r := range c.Joints {
			if !r.Valid() {
				return fmt.Errorf("%s: invalid reference range for %s", c.Name, joint)
			}
		}
	case ModePhaseMatch:
		if len(c.Phases) == 0 {
			return fmt.Errorf("%s: phase-match mode requires at least one phase", c.Name)
		}
		for phase, joints := range c.Phases {
			if len(joints) == 0 {
				return fmt.Errorf("%s: phase %s defines no joints", c.Name, phase)
			}
			for joint, r := range joints {
				if !r.Valid() {
					return fmt.Errorf("%s: invalid range for %s/%s", c.Name, phase, joint)
				}
			}
		}
		for _, tr := range c.Reps {
			if _, ok := c.Phases[tr.From]; !ok {
				return fmt.Errorf("%s: rep transition from unknown phase %q", c.Name, tr.From)
			}
			if _, ok := c.Phases[tr.To]; !ok {
				return fmt.Errorf("%s: rep transition to unknown phase %q", c.Name, tr.To)
			}
		}
		if c.HoldPhase != "" {
			if _, ok := c.Phases[c.HoldPhase]; !ok {
				return fmt.Errorf("%s: hold phase %q not defined", c.Name, c.HoldPhase)
			}
		}
	default:
		return fmt.Errorf("%s: unknown mode %q", c.Name, c.Mode)
	}
	return nil
}

// RequiredJoints returns every joint the exercise references, sorted.
func (c *Config) RequiredJoints() []string {
	seen := map[string]bool{}
	if c.Threshold != nil {
		seen[c.Threshold.Joint] = true
	}
	for joint := range c.Joints {
		seen[joint] = true
	}
	for _, joints := range c.Phases {
		for joint := range joints {
			seen[joint] = true
		}
	}
	out := make([]string, 0, len(seen))
	for joint := range seen {
		out = append(out, joint)
	}
	sort.Strings(out)
	return out
}

// phaseNames returns the configured phase names, sorted for deterministic
// scoring order.
func (c *Config) phaseNames() []string {
	names := make([]string, 0, len(c.Phases))
	for name := range c.Phases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ConfigFor returns the built-in config for name, or ErrNoConfig. Callers
// tracking an unconfigured exercise pass the nil config through to the
// tracker, which degrades to a no-feedback state instead of crashing.
func ConfigFor(name string) (*Config, error) {
	cfg, ok := Builtins()[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoConfig, name)
	}
	return cfg, nil
}

// Builtins returns the stock exercise set. Reference ranges mirror the
// built-in defaults of the reference store; a calibration run replaces the
// BicepCurl joint band.
func Builtins() map[string]*Config {
	defaults := refstore.Defaults()
	return map[string]*Config{
		"Squat": {
			Name:   "Squat",
			Mode:   ModePhaseMatch,
			Phases: defaults["Squat"].Phases,
			Reps:   []Transition{{From: "Down", To: "Up"}},
		},
		"Push-up": {
			Name:   "Push-up",
			Mode:   ModePhaseMatch,
			Phases: defaults["Push-up"].Phases,
			Reps:   []Transition{{From: "Down", To: "Up"}},
		},
		"Plank": {
			Name:      "Plank",
			Mode:      ModePhaseMatch,
			Phases:    defaults["Plank"].Phases,
			HoldPhase: "Hold",
		},
		"BicepCurl": {
			Name: "BicepCurl",
			Mode: ModeThreshold,
			Threshold: &ThresholdConfig{
				Joint:       "Elbow",
				ExtendedDeg: 160,
				FlexedDeg:   30,
				MidpointDeg: 90,
			},
			Joints: defaults["BicepCurl"].Joints,
		},
	}
}
