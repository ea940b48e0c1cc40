// Package pose defines the landmark data consumed from the external pose
// extractor and derives named joint angles from it.
//
// The extractor itself (MediaPipe or equivalent) lives outside this module;
// the core only sees a Frame — a mapping from landmark name to a point with
// an optional visibility score.
package pose

import (
	"encoding/json"
	"math"

	"github.com/posefit/posefit/internal/geom"
)

// DefaultVisibilityFloor is the confidence below which a landmark is
// treated as missing.
const DefaultVisibilityFloor = 0.3

// Landmark is a single detected body point. X and Y use the session's 2D
// coordinate frame; Z is carried for completeness but unused by the 2D
// angle pipeline. Visibility is a confidence in [0, 1]; a negative value
// means the extractor did not report one.
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z,omitempty"`
	Visibility float64 `json:"visibility"`
}

// UnmarshalJSON decodes a landmark. An omitted visibility field maps to the
// negative not-reported sentinel, not to a zero confidence: extractors that
// emit no visibility must not have every landmark floored out.
func (l *Landmark) UnmarshalJSON(data []byte) error {
	aux := struct {
		X          float64  `json:"x"`
		Y          float64  `json:"y"`
		Z          float64  `json:"z"`
		Visibility *float64 `json:"visibility"`
	}{}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	l.X, l.Y, l.Z = aux.X, aux.Y, aux.Z
	l.Visibility = -1
	if aux.Visibility != nil {
		l.Visibility = *aux.Visibility
	}
	return nil
}

// Point returns the landmark's 2D projection.
func (l Landmark) Point() geom.Point2D {
	return geom.Point2D{X: l.X, Y: l.Y}
}

// Frame maps landmark names ("LEFT_SHOULDER", ...) to detected points for
// one video frame.
type Frame map[string]Landmark

// Side selects the left or right body side when resolving a joint triplet.
type Side string

const (
	SideLeft  Side = "LEFT"
	SideRight Side = "RIGHT"
)

// sidePriority is the order sides are tried when a joint can be measured on
// either; matches the extractor's tendency to track the camera-facing side.
var sidePriority = [2]Side{SideLeft, SideRight}

// Triplet names the three landmarks (A, B, C) whose angle is measured at B.
// Names are bare (no side prefix); the side is applied at lookup time.
type Triplet struct {
	A, B, C string
}

// JointDefinitions maps joint names to their landmark triplets.
var JointDefinitions = map[string]Triplet{
	"Knee":     {A: "HIP", B: "KNEE", C: "ANKLE"},
	"Hip":      {A: "SHOULDER", B: "HIP", C: "KNEE"},
	"Elbow":    {A: "SHOULDER", B: "ELBOW", C: "WRIST"},
	"Shoulder": {A: "ELBOW", B: "SHOULDER", C: "HIP"},
	"Back":     {A: "SHOULDER", B: "HIP", C: "KNEE"},
}

// JointNames returns the known joint names in a stable order.
func JointNames() []string {
	return []string{"Knee", "Hip", "Elbow", "Shoulder", "Back"}
}

// Extractor resolves joint angles from frames, applying a visibility floor.
type Extractor struct {
	visibilityFloor float64
}

// NewExtractor returns an Extractor with the given visibility floor.
// Pass DefaultVisibilityFloor unless the tuning config overrides it.
func NewExtractor(visibilityFloor float64) *Extractor {
	return &Extractor{visibilityFloor: visibilityFloor}
}

// lookup returns the 2D point for name, or ok=false when the landmark is
// absent or below the visibility floor. A negative visibility means the
// extractor reported none, and the point is accepted as-is.
func (e *Extractor) lookup(f Frame, name string) (geom.Point2D, bool) {
	lm, ok := f[name]
	if !ok {
		return geom.Point2D{}, false
	}
	if lm.Visibility >= 0 && lm.Visibility < e.visibilityFloor {
		return geom.Point2D{}, false
	}
	return lm.Point(), true
}

// JointAngle computes the named joint's angle on the given side. Returns
// NaN when the joint is unknown, any landmark of the triplet is missing or
// insufficiently visible, or the geometry is degenerate.
func (e *Extractor) JointAngle(f Frame, joint string, side Side) float64 {
	trip, ok := JointDefinitions[joint]
	if !ok {
		return math.NaN()
	}
	prefix := string(side) + "_"
	a, okA := e.lookup(f, prefix+trip.A)
	b, okB := e.lookup(f, prefix+trip.B)
	c, okC := e.lookup(f, prefix+trip.C)
	if !okA || !okB || !okC {
		return math.NaN()
	}
	return geom.Angle(a, b, c)
}

// Angles computes every known joint angle for the frame, trying the left
// side first and falling back to the right. Joints that cannot be measured
// on either side map to NaN.
func (e *Extractor) Angles(f Frame) map[string]float64 {
	angles := make(map[string]float64, len(JointDefinitions))
	for _, joint := range JointNames() {
		v := math.NaN()
		for _, side := range sidePriority {
			v = e.JointAngle(f, joint, side)
			if geom.IsDefined(v) {
				break
			}
		}
		angles[joint] = v
	}
	return angles
}
