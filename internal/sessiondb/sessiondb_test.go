package sessiondb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/posefit/posefit/internal/calibrate"
	"github.com/posefit/posefit/internal/refstore"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenAppliesMigrations(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	version, err := db.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
}

func TestOpenIsIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sessions.db")
	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// Re-opening an already migrated database must not fail.
	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()
	version, err := db.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
}

func TestSessionRoundTrip(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	ctx := context.Background()
	start := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)

	id, err := db.RecordSession(ctx, Session{
		Exercise:   "Squat",
		RepCount:   12,
		ValidRatio: 0.92,
		StartedAt:  start,
		EndedAt:    start.Add(3 * time.Minute),
		Feedback:   "good form",
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	_, err = db.RecordSession(ctx, Session{
		Exercise:    "Plank",
		HoldSeconds: 45.5,
		StartedAt:   start.Add(5 * time.Minute),
		EndedAt:     start.Add(6 * time.Minute),
	})
	require.NoError(t, err)

	got, err := db.Sessions(ctx, "Squat", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, id, got[0].ID)
	assert.Equal(t, 12, got[0].RepCount)
	assert.InDelta(t, 0.92, got[0].ValidRatio, 1e-9)
	assert.Equal(t, "good form", got[0].Feedback)

	all, err := db.Sessions(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	// Newest first.
	assert.Equal(t, "Plank", all[0].Exercise)
	assert.InDelta(t, 45.5, all[0].HoldSeconds, 1e-9)
}

func TestCalibrationProvenance(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	ctx := context.Background()

	_, ok, err := db.LatestCalibration(ctx, "BicepCurl")
	require.NoError(t, err)
	assert.False(t, ok)

	res := &calibrate.Result{
		RunID:        "run-1",
		Exercise:     "BicepCurl",
		DrivingJoint: "Elbow",
		Online:       true,
		Segments:     []calibrate.Segment{{Start: 0, End: 40}, {Start: 40, End: 80}},
		Ranges:       refstore.JointRanges{"Elbow": {Min: 20, Max: 170}},
	}
	require.NoError(t, db.RecordCalibration(ctx, res))

	run, ok, err := db.LatestCalibration(ctx, "BicepCurl")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "run-1", run.RunID)
	assert.Equal(t, "Elbow", run.DrivingJoint)
	assert.Equal(t, 2, run.RepCount)
	assert.True(t, run.Online)
}
