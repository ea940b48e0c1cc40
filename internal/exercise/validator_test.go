package exercise

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/posefit/posefit/internal/config"
	"github.com/posefit/posefit/internal/refstore"
)

func newValidator() *FormValidator {
	return NewFormValidator(config.EmptyTuningConfig())
}

func TestFormValidatorNotVisible(t *testing.T) {
	t.Parallel()

	v := newValidator()
	got := v.Check([]string{"Knee", "Hip"}, nil, map[string]float64{
		"Knee": math.NaN(),
		"Hip":  120,
	}, "Down")

	assert.False(t, got.Valid)
	assert.Equal(t, ReasonNotVisible, got.Reason)
	assert.Equal(t, []string{"Knee"}, got.Joints)
	assert.Contains(t, got.Message, "Knee")
}

func TestFormValidatorAdjustUsesTolerance(t *testing.T) {
	t.Parallel()

	ranges := refstore.JointRanges{"Knee": {Min: 70, Max: 100}}

	t.Run("inside widened band is valid", func(t *testing.T) {
		t.Parallel()
		v := newValidator()
		got := v.Check([]string{"Knee"}, ranges, map[string]float64{"Knee": 110}, "Down")
		assert.True(t, got.Valid)
		assert.Equal(t, ReasonOK, got.Reason)
		assert.Contains(t, got.Message, "Down")
	})

	t.Run("outside widened band is flagged", func(t *testing.T) {
		t.Parallel()
		v := newValidator()
		got := v.Check([]string{"Knee"}, ranges, map[string]float64{"Knee": 116}, "Down")
		assert.False(t, got.Valid)
		assert.Equal(t, ReasonAdjust, got.Reason)
		assert.Equal(t, []string{"Knee"}, got.Joints)
	})
}

func TestFormValidatorJerkOverridesRange(t *testing.T) {
	t.Parallel()

	// Both samples sit inside the band; the 30 degree jump between them is
	// still a smoothness failure.
	ranges := refstore.JointRanges{"Elbow": {Min: 0, Max: 180}}
	v := newValidator()

	got := v.Check([]string{"Elbow"}, ranges, map[string]float64{"Elbow": 60}, "")
	assert.True(t, got.Valid)

	got = v.Check([]string{"Elbow"}, ranges, map[string]float64{"Elbow": 90}, "")
	assert.False(t, got.Valid)
	assert.Equal(t, ReasonMoveSmooth, got.Reason)
	assert.Equal(t, []string{"Elbow"}, got.Joints)
}

func TestFormValidatorResetClearsHistory(t *testing.T) {
	t.Parallel()

	v := newValidator()
	v.Check([]string{"Elbow"}, nil, map[string]float64{"Elbow": 20}, "")
	v.Reset()

	// Without history the 140 degree jump cannot be observed.
	got := v.Check([]string{"Elbow"}, nil, map[string]float64{"Elbow": 160}, "")
	assert.True(t, got.Valid)
}

func TestFormValidatorUndefinedDoesNotPoisonHistory(t *testing.T) {
	t.Parallel()

	v := newValidator()
	v.Check([]string{"Elbow"}, nil, map[string]float64{"Elbow": 60}, "")
	// Dropped landmark: reported as not visible, history keeps 60.
	got := v.Check([]string{"Elbow"}, nil, map[string]float64{"Elbow": math.NaN()}, "")
	assert.Equal(t, ReasonNotVisible, got.Reason)

	// 65 is within jerk range of the last defined sample.
	got = v.Check([]string{"Elbow"}, nil, map[string]float64{"Elbow": 65}, "")
	assert.True(t, got.Valid)
}
