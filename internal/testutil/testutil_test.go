package testutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/posefit/posefit/internal/pose"
)

func TestJointFrameMeasuresRequestedAngle(t *testing.T) {
	t.Parallel()

	extractor := pose.NewExtractor(pose.DefaultVisibilityFloor)
	for _, angle := range []float64{0, 30, 90, 160, 180} {
		f := JointFrame(pose.SideLeft, "Elbow", angle)
		got := extractor.JointAngle(f, "Elbow", pose.SideLeft)
		assert.InDelta(t, angle, got, 1e-6, "angle %v", angle)
	}
}

func TestJointFrameUnknownJoint(t *testing.T) {
	t.Parallel()
	assert.Empty(t, JointFrame(pose.SideLeft, "Wing", 90))
}

func TestMergeComposesDisjointJoints(t *testing.T) {
	t.Parallel()

	extractor := pose.NewExtractor(pose.DefaultVisibilityFloor)
	f := Merge(
		JointFrame(pose.SideLeft, "Knee", 100),
		JointFrame(pose.SideLeft, "Elbow", 45),
	)
	assert.InDelta(t, 100, extractor.JointAngle(f, "Knee", pose.SideLeft), 1e-6)
	assert.InDelta(t, 45, extractor.JointAngle(f, "Elbow", pose.SideLeft), 1e-6)
}

func TestWithVisibilityHidesLandmark(t *testing.T) {
	t.Parallel()

	extractor := pose.NewExtractor(pose.DefaultVisibilityFloor)
	f := WithVisibility(JointFrame(pose.SideLeft, "Elbow", 90), "LEFT_WRIST", 0.1)
	assert.True(t, math.IsNaN(extractor.JointAngle(f, "Elbow", pose.SideLeft)))
}
