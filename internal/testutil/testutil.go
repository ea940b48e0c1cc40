// Package testutil builds synthetic pose frames for tests: landmark
// layouts constructed so a joint measures an exact angle.
package testutil

import (
	"math"

	"github.com/posefit/posefit/internal/pose"
)

// JointFrame builds a frame whose named joint measures angleDeg on the
// given side, all landmarks fully visible. Only the joint's three landmarks
// are present.
//
// The middle landmark sits at (0.5, 0.5); the first arm points straight up
// and the second is rotated by angleDeg.
func JointFrame(side pose.Side, joint string, angleDeg float64) pose.Frame {
	trip, ok := pose.JointDefinitions[joint]
	if !ok {
		return pose.Frame{}
	}
	const armLen = 0.2
	rad := angleDeg * math.Pi / 180
	prefix := string(side) + "_"

	b := pose.Landmark{X: 0.5, Y: 0.5, Visibility: 1}
	a := pose.Landmark{X: b.X, Y: b.Y - armLen, Visibility: 1}
	c := pose.Landmark{
		X:          b.X + armLen*math.Sin(rad),
		Y:          b.Y - armLen*math.Cos(rad),
		Visibility: 1,
	}
	return pose.Frame{
		prefix + trip.A: a,
		prefix + trip.B: b,
		prefix + trip.C: c,
	}
}

// Merge combines frames into one; later frames win on landmark collisions.
// Joints with disjoint landmark triplets (e.g. Knee and Elbow) can be
// composed this way.
func Merge(frames ...pose.Frame) pose.Frame {
	out := pose.Frame{}
	for _, f := range frames {
		for name, lm := range f {
			out[name] = lm
		}
	}
	return out
}

// WithVisibility returns a copy of the frame with one landmark's visibility
// overridden.
func WithVisibility(f pose.Frame, landmark string, visibility float64) pose.Frame {
	out := Merge(f)
	if lm, ok := out[landmark]; ok {
		lm.Visibility = visibility
		out[landmark] = lm
	}
	return out
}
