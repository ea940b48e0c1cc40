package exercise

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/posefit/posefit/internal/config"
	"github.com/posefit/posefit/internal/geom"
	"github.com/posefit/posefit/internal/refstore"
)

// Reason is the enumerated outcome of a form check.
type Reason string

const (
	ReasonOK          Reason = "ok"
	ReasonNotVisible  Reason = "not_visible"
	ReasonAdjust      Reason = "adjust"
	ReasonMoveSmooth  Reason = "move_smoothly"
	ReasonNoReference Reason = "no_reference"
)

// Validation is the result of checking one frame's angles against reference
// ranges. Joints lists the missing or offending joints for the negative
// reasons.
type Validation struct {
	Valid   bool
	Reason  Reason
	Message string
	Joints  []string
}

// FormValidator checks per-frame angles against reference ranges, with a
// widening tolerance and a per-frame jerk limit. It remembers the previous
// frame's angles for the jerk check, so one validator serves one session.
type FormValidator struct {
	toleranceDeg float64
	jerkDeg      float64
	prev         map[string]float64
}

// NewFormValidator returns a validator tuned from cfg.
func NewFormValidator(cfg *config.TuningConfig) *FormValidator {
	return &FormValidator{
		toleranceDeg: cfg.GetFormToleranceDeg(),
		jerkDeg:      cfg.GetJerkThresholdDeg(),
		prev:         map[string]float64{},
	}
}

// Reset clears the previous-angle memory.
func (v *FormValidator) Reset() {
	v.prev = map[string]float64{}
}

// Check validates one frame. required lists the joints that must be visible;
// ranges holds reference bands for the subset that has them. phase labels the
// positive message; pass "" when no phase applies. Undefined angles are a
// first-class outcome, never an error.
func (v *FormValidator) Check(required []string, ranges refstore.JointRanges, angles map[string]float64, phase string) Validation {
	defer v.remember(angles)

	var missing []string
	for _, joint := range required {
		if !geom.IsDefined(angles[joint]) {
			missing = append(missing, joint)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return Validation{
			Reason:  ReasonNotVisible,
			Message: fmt.Sprintf("cannot see %s, adjust position or camera", strings.Join(missing, ", ")),
			Joints:  missing,
		}
	}

	// Smoothness is independent of range compliance: a jerk inside the
	// accepted band is still flagged.
	var jerky []string
	for _, joint := range required {
		cur := angles[joint]
		prev, ok := v.prev[joint]
		if !ok || !geom.IsDefined(cur) {
			continue
		}
		if math.Abs(cur-prev) > v.jerkDeg {
			jerky = append(jerky, joint)
		}
	}
	if len(jerky) > 0 {
		sort.Strings(jerky)
		return Validation{
			Reason:  ReasonMoveSmooth,
			Message: "move smoothly",
			Joints:  jerky,
		}
	}

	var offending []string
	for _, joint := range required {
		r, ok := ranges[joint]
		if !ok {
			continue
		}
		if !r.Contains(angles[joint], v.toleranceDeg) {
			offending = append(offending, joint)
		}
	}
	if len(offending) > 0 {
		sort.Strings(offending)
		return Validation{
			Reason:  ReasonAdjust,
			Message: fmt.Sprintf("adjust %s", strings.Join(offending, ", ")),
			Joints:  offending,
		}
	}

	msg := "good form"
	if phase != "" && phase != PhaseUnknown {
		msg = fmt.Sprintf("good form, %s", phase)
	}
	return Validation{Valid: true, Reason: ReasonOK, Message: msg}
}

// remember stores the defined angles for the next frame's jerk check.
func (v *FormValidator) remember(angles map[string]float64) {
	for joint, angle := range angles {
		if geom.IsDefined(angle) {
			v.prev[joint] = angle
		}
	}
}
