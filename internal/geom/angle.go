// Package geom provides 2D angle computation for joint measurements.
//
// Angles are expressed in degrees in [0, 180]. A measurement that cannot be
// computed (degenerate geometry, missing input) is represented as NaN rather
// than a zero value, so downstream statistics can exclude it explicitly.
package geom

import "math"

// zeroLengthEps is the squared-magnitude floor below which a segment vector
// is treated as zero length.
const zeroLengthEps = 1e-9

// Point2D is a point in a stable 2D coordinate frame. Pixel and normalized
// units are both fine as long as one session uses them consistently.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Sub returns the vector p − q.
func (p Point2D) Sub(q Point2D) Point2D {
	return Point2D{X: p.X - q.X, Y: p.Y - q.Y}
}

// Norm returns the Euclidean length of p treated as a vector.
func (p Point2D) Norm() float64 {
	return math.Hypot(p.X, p.Y)
}

// Dot returns the dot product of p and q treated as vectors.
func (p Point2D) Dot(q Point2D) float64 {
	return p.X*q.X + p.Y*q.Y
}

// Angle returns the angle ABC at vertex b, in degrees in [0, 180].
//
// The cosine-law form is used: it is symmetric in a and c and needs no
// reflex-angle correction. Returns NaN when either BA or BC has ~zero
// length. The cosine is clamped to [-1, 1] before acos to absorb
// floating-point overshoot.
func Angle(a, b, c Point2D) float64 {
	ba := a.Sub(b)
	bc := c.Sub(b)

	normBA := ba.Norm()
	normBC := bc.Norm()
	if normBA < zeroLengthEps || normBC < zeroLengthEps {
		return math.NaN()
	}

	cos := ba.Dot(bc) / (normBA * normBC)
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return math.Acos(cos) * 180 / math.Pi
}

// InRange reports whether angle lies in the inclusive [low, high] band.
// NaN angles are never in range.
func InRange(angle, low, high float64) bool {
	if math.IsNaN(angle) {
		return false
	}
	return low <= angle && angle <= high
}

// IsDefined reports whether angle is a real measurement (not the NaN
// sentinel).
func IsDefined(angle float64) bool {
	return !math.IsNaN(angle)
}

// Clamp restricts v to the [0, 180] degree band. NaN passes through.
func Clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 180 {
		return 180
	}
	return v
}
