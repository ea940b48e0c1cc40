package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAngle(t *testing.T) {
	t.Parallel()

	t.Run("right angle", func(t *testing.T) {
		t.Parallel()
		a := Point2D{X: 1, Y: 0}
		b := Point2D{X: 0, Y: 0}
		c := Point2D{X: 0, Y: 1}
		assert.InDelta(t, 90, Angle(a, b, c), 1e-9)
	})

	t.Run("straight line is 180", func(t *testing.T) {
		t.Parallel()
		a := Point2D{X: -1, Y: 0}
		b := Point2D{X: 0, Y: 0}
		c := Point2D{X: 1, Y: 0}
		assert.InDelta(t, 180, Angle(a, b, c), 1e-9)
	})

	t.Run("collinear same side is 0", func(t *testing.T) {
		t.Parallel()
		a := Point2D{X: 2, Y: 2}
		b := Point2D{X: 0, Y: 0}
		c := Point2D{X: 5, Y: 5}
		assert.InDelta(t, 0, Angle(a, b, c), 1e-9)
	})

	t.Run("symmetric in endpoints", func(t *testing.T) {
		t.Parallel()
		a := Point2D{X: 3.2, Y: -1.5}
		b := Point2D{X: 0.4, Y: 2.1}
		c := Point2D{X: -2.7, Y: 0.9}
		assert.InDelta(t, Angle(a, b, c), Angle(c, b, a), 1e-12)
	})

	t.Run("always within 0 to 180", func(t *testing.T) {
		t.Parallel()
		pts := []Point2D{
			{1, 0}, {0, 1}, {-1, 0}, {0, -1},
			{0.5, 0.5}, {-0.5, 0.5}, {10, -3}, {-7, -9},
		}
		b := Point2D{X: 0, Y: 0}
		for _, a := range pts {
			for _, c := range pts {
				if a == c {
					continue
				}
				got := Angle(a, b, c)
				require.False(t, math.IsNaN(got))
				assert.GreaterOrEqual(t, got, 0.0)
				assert.LessOrEqual(t, got, 180.0)
			}
		}
	})

	t.Run("zero-length BA is undefined", func(t *testing.T) {
		t.Parallel()
		b := Point2D{X: 1, Y: 1}
		c := Point2D{X: 2, Y: 2}
		assert.True(t, math.IsNaN(Angle(b, b, c)))
	})

	t.Run("zero-length BC is undefined", func(t *testing.T) {
		t.Parallel()
		a := Point2D{X: 2, Y: 2}
		b := Point2D{X: 1, Y: 1}
		assert.True(t, math.IsNaN(Angle(a, b, b)))
	})

	t.Run("coincident A and C yields 0 not NaN", func(t *testing.T) {
		t.Parallel()
		// angle(A, B, A) with distinct A and B: both vectors are the
		// same non-zero vector, so the angle is defined and zero.
		a := Point2D{X: 4, Y: 1}
		b := Point2D{X: 0, Y: 0}
		assert.InDelta(t, 0, Angle(a, b, a), 1e-9)
	})

	t.Run("near-parallel vectors survive float overshoot", func(t *testing.T) {
		t.Parallel()
		// Constructed so the raw cosine can exceed 1 by a few ulps.
		a := Point2D{X: 1e8, Y: 1}
		b := Point2D{X: 0, Y: 0}
		c := Point2D{X: 2e8, Y: 2}
		got := Angle(a, b, c)
		require.False(t, math.IsNaN(got))
		assert.InDelta(t, 0, got, 1e-3)
	})
}

func TestInRange(t *testing.T) {
	t.Parallel()

	assert.True(t, InRange(90, 70, 100))
	assert.True(t, InRange(70, 70, 100))
	assert.True(t, InRange(100, 70, 100))
	assert.False(t, InRange(69.9, 70, 100))
	assert.False(t, InRange(100.1, 70, 100))
	assert.False(t, InRange(math.NaN(), 0, 180))
}

func TestClamp(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.0, Clamp(-4))
	assert.Equal(t, 180.0, Clamp(185))
	assert.Equal(t, 42.5, Clamp(42.5))
	assert.True(t, math.IsNaN(Clamp(math.NaN())))
}
