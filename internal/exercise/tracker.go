package exercise

import (
	"time"

	"github.com/posefit/posefit/internal/config"
	"github.com/posefit/posefit/internal/geom"
	"github.com/posefit/posefit/internal/monitoring"
	"github.com/posefit/posefit/internal/pose"
	"github.com/posefit/posefit/internal/refstore"
	"github.com/posefit/posefit/internal/timeutil"
)

// Phase labels for threshold mode and the pre-observation state.
const (
	PhaseUnknown  = "unknown"
	PhaseExtended = "extended"
	PhaseFlexed   = "flexed"
)

// FrameResult is the observable state after processing one frame.
type FrameResult struct {
	Exercise    string
	Phase       string
	RepCount    int
	IsValidForm bool
	Reason      Reason
	Feedback    string
	HoldSeconds float64
}

// Tracker is the per-session rep/phase state machine. One session owns one
// Tracker; frames are processed one at a time, so no locking is needed.
type Tracker struct {
	cfg       *Config
	extractor *pose.Extractor
	validator *FormValidator
	hold      *timeutil.Stopwatch

	phase string
	count int
}

// NewTracker returns a tracker for cfg. A nil cfg is accepted and yields a
// tracker that reports "no feedback available" instead of crashing on an
// unconfigured exercise.
func NewTracker(cfg *Config, tuning *config.TuningConfig, clock timeutil.Clock) *Tracker {
	return &Tracker{
		cfg:       cfg,
		extractor: pose.NewExtractor(tuning.GetVisibilityFloor()),
		validator: NewFormValidator(tuning),
		hold:      timeutil.NewStopwatch(clock),
		phase:     PhaseUnknown,
	}
}

// RepCount returns the completed rep count. It never decreases except
// through Reset.
func (t *Tracker) RepCount() int { return t.count }

// Phase returns the current phase label.
func (t *Tracker) Phase() string { return t.phase }

// HoldElapsed returns the hold timer's measured duration: live while the
// session holds the hold phase with valid form, frozen otherwise.
func (t *Tracker) HoldElapsed() time.Duration { return t.hold.Elapsed() }

// Reset returns the tracker to its initial state: count 0, phase unknown,
// previous-angle memory cleared, hold timer cleared.
func (t *Tracker) Reset() {
	t.phase = PhaseUnknown
	t.count = 0
	t.validator.Reset()
	t.hold.Reset()
}

// ProcessFrame derives joint angles from the frame and advances the state
// machine.
func (t *Tracker) ProcessFrame(f pose.Frame) FrameResult {
	return t.Observe(t.extractor.Angles(f))
}

// Observe advances the state machine with one frame's angle measurements.
// Undefined angles never change the phase or the count.
func (t *Tracker) Observe(angles map[string]float64) FrameResult {
	if t.cfg == nil {
		return FrameResult{
			Phase:    PhaseUnknown,
			Reason:   ReasonNoReference,
			Feedback: "no feedback available",
		}
	}

	var v Validation
	switch t.cfg.Mode {
	case ModeThreshold:
		v = t.observeThreshold(angles)
	default:
		v = t.observePhaseMatch(angles)
	}

	t.updateHold(v)

	return FrameResult{
		Exercise:    t.cfg.Name,
		Phase:       t.phase,
		RepCount:    t.count,
		IsValidForm: v.Valid,
		Reason:      v.Reason,
		Feedback:    v.Message,
		HoldSeconds: t.hold.Elapsed().Seconds(),
	}
}

// observeThreshold applies the hysteretic two-threshold rule. The count
// increments exactly once per extended-to-flexed transition; the dead zone
// between the thresholds absorbs near-threshold oscillation.
func (t *Tracker) observeThreshold(angles map[string]float64) Validation {
	th := t.cfg.Threshold
	angle := angles[th.Joint]
	if geom.IsDefined(angle) {
		switch {
		case angle >= th.ExtendedDeg:
			t.phase = PhaseExtended
		case angle <= th.FlexedDeg:
			if t.phase == PhaseExtended {
				t.phase = PhaseFlexed
				t.count++
				monitoring.Debugf("%s: rep %d at %.1f deg", t.cfg.Name, t.count, angle)
			}
			// Already flexed, or never extended: no change.
		}
	}
	// Validation runs after the transition so phase-aware feedback names the
	// phase this frame's result reports.
	return t.validator.Check(t.cfg.RequiredJoints(), t.cfg.Joints, angles, t.phase)
}

// observePhaseMatch scores every configured phase by satisfied joint count,
// picks the best (ties broken in favor of a fully-satisfied phase), and
// counts reps on the configured phase transitions. A frame that satisfies no
// phase leaves the state untouched.
func (t *Tracker) observePhaseMatch(angles map[string]float64) Validation {
	bestPhase := ""
	bestScore := 0
	bestAll := false
	for _, name := range t.cfg.phaseNames() {
		joints := t.cfg.Phases[name]
		score := 0
		for joint, r := range joints {
			if r.Contains(angles[joint], 0) {
				score++
			}
		}
		all := score == len(joints)
		if score > bestScore || (score == bestScore && all && !bestAll) {
			bestPhase, bestScore, bestAll = name, score, all
		}
	}

	if bestScore > 0 && bestPhase != t.phase {
		for _, tr := range t.cfg.Reps {
			if tr.From == t.phase && tr.To == bestPhase {
				t.count++
				monitoring.Debugf("%s: rep %d on %s -> %s", t.cfg.Name, t.count, tr.From, tr.To)
				break
			}
		}
		t.phase = bestPhase
	}

	ranges := refstore.JointRanges{}
	if t.phase != PhaseUnknown {
		ranges = t.cfg.Phases[t.phase]
	}
	required := t.cfg.RequiredJoints()
	if len(ranges) > 0 {
		required = make([]string, 0, len(ranges))
		for joint := range ranges {
			required = append(required, joint)
		}
	}
	return t.validator.Check(required, ranges, angles, t.phase)
}

// updateHold runs the hold timer while the session sits in the hold phase
// with valid form, and freezes it otherwise.
func (t *Tracker) updateHold(v Validation) {
	if t.cfg.HoldPhase == "" {
		return
	}
	holding := t.phase == t.cfg.HoldPhase && v.Valid
	switch {
	case holding && !t.hold.Running():
		t.hold.Start()
	case !holding && t.hold.Running():
		t.hold.Stop()
	}
}
