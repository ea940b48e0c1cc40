package refstore

import (
	"encoding/json"
	"math"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/posefit/posefit/internal/fsutil"
)

const refPath = "refs/references.json"

func newMemStore(t *testing.T) (*Store, *fsutil.MemoryFileSystem) {
	t.Helper()
	fs := fsutil.NewMemoryFileSystem()
	return NewStore(fs, refPath), fs
}

func TestRange(t *testing.T) {
	t.Parallel()

	t.Run("contains with tolerance", func(t *testing.T) {
		t.Parallel()
		r := Range{Min: 70, Max: 100}
		assert.True(t, r.Contains(85, 0))
		assert.True(t, r.Contains(65, 5))
		assert.False(t, r.Contains(64, 5))
		assert.False(t, r.Contains(math.NaN(), 15))
	})

	t.Run("validity", func(t *testing.T) {
		t.Parallel()
		assert.True(t, Range{Min: 10, Max: 20}.Valid())
		assert.False(t, Range{Min: 20, Max: 20}.Valid())
		assert.False(t, Range{Min: -1, Max: 20}.Valid())
		assert.False(t, Range{Min: 10, Max: 181}.Valid())
		assert.False(t, Range{Min: math.NaN(), Max: 20}.Valid())
	})
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	store, _ := newMemStore(t)
	all, err := store.Load()
	require.NoError(t, err)

	// One exercise of each layout must be covered by the defaults.
	require.Contains(t, all, "Squat")
	require.Contains(t, all, "BicepCurl")
	assert.NotNil(t, all["Squat"].Phases)
	assert.NotNil(t, all["BicepCurl"].Joints)
	assert.Contains(t, all["Plank"].Phases, "Hold")
}

func TestLookup(t *testing.T) {
	t.Parallel()

	store, fs := newMemStore(t)
	doc := `{
  "BicepCurl": {"Elbow": {"Min": 12.5, "Max": 171.0}},
  "Squat": {
    "Down": {"Knee": [70, 100], "Hip": [150, 180]},
    "Up": {"Knee": [160, 180]}
  }
}`
	require.NoError(t, fs.WriteFile(refPath, []byte(doc), 0o644))

	t.Run("joint lookup", func(t *testing.T) {
		r, ok, err := store.JointRange("BicepCurl", "Elbow")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, Range{Min: 12.5, Max: 171.0}, r)
	})

	t.Run("phase lookup", func(t *testing.T) {
		jr, ok, err := store.PhaseRange("Squat", "Down")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, Range{Min: 70, Max: 100}, jr["Knee"])
		assert.Equal(t, Range{Min: 150, Max: 180}, jr["Hip"])
	})

	t.Run("missing joint reports no data", func(t *testing.T) {
		_, ok, err := store.JointRange("BicepCurl", "Knee")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("missing exercise reports no data", func(t *testing.T) {
		_, ok, err := store.PhaseRange("Deadlift", "Down")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestSaveMergePreservesOtherExercises(t *testing.T) {
	t.Parallel()

	store, fs := newMemStore(t)
	// Pre-existing document with an unrelated exercise whose value bytes
	// must survive a merge-save untouched (including the 7.4 literal).
	doc := `{"Push-up": {"Down": {"Elbow": [70, 100]}, "Up": {"Elbow": [160, 180]}}, "BicepCurl": {"Elbow": {"Min": 7.4, "Max": 180}}}`
	require.NoError(t, fs.WriteFile(refPath, []byte(doc), 0o644))

	require.NoError(t, store.SaveJoints("Squat", JointRanges{
		"Knee": {Min: 62.3, Max: 177.1},
		"Hip":  {Min: 95.0, Max: 180.0},
	}, nil))

	data, err := fs.ReadFile(refPath)
	require.NoError(t, err)

	var before, after map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(doc), &before))
	require.NoError(t, json.Unmarshal(data, &after))

	require.Contains(t, after, "Squat")
	for _, name := range []string{"Push-up", "BicepCurl"} {
		var want, got interface{}
		require.NoError(t, json.Unmarshal(before[name], &want))
		require.NoError(t, json.Unmarshal(after[name], &got))
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("exercise %s changed by unrelated save (-want +got):\n%s", name, diff)
		}
	}

	// The new entry is readable through the normal lookup path.
	r, ok, err := store.JointRange("Squat", "Knee")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Range{Min: 62.3, Max: 177.1}, r)
}

func TestSaveRejectsInvalidRanges(t *testing.T) {
	t.Parallel()

	store, fs := newMemStore(t)
	err := store.SaveJoints("Squat", JointRanges{"Knee": {Min: 100, Max: 90}}, nil)
	assert.ErrorContains(t, err, "invalid range")
	assert.False(t, fs.Exists(refPath))

	err = store.SavePhases("Squat", PhaseRanges{"Down": {"Knee": {Min: -5, Max: 90}}})
	assert.ErrorContains(t, err, "invalid range")
}

func TestSavePhasesRoundTrip(t *testing.T) {
	t.Parallel()

	store, _ := newMemStore(t)
	phases := PhaseRanges{
		"Down": {"Knee": {Min: 70, Max: 100}},
		"Up":   {"Knee": {Min: 160, Max: 180}},
	}
	require.NoError(t, store.SavePhases("Squat", phases))

	jr, ok, err := store.PhaseRange("Squat", "Up")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Range{Min: 160, Max: 180}, jr["Knee"])
}

func TestSaveJointsWithProvenance(t *testing.T) {
	t.Parallel()

	store, fs := newMemStore(t)
	extra := map[string]json.RawMessage{
		"Analysis": json.RawMessage(`{"sample_count": 240, "mean": 96.4, "stddev": 41.2, "source": "trainer_videos/biceps.jsonl"}`),
	}
	require.NoError(t, store.SaveJoints("BicepCurl", JointRanges{
		"Elbow": {Min: 9.1, Max: 176.2},
	}, extra))

	// Provenance must be persisted but ignored by lookups.
	data, err := fs.ReadFile(refPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "sample_count")

	r, ok, err := store.JointRange("BicepCurl", "Elbow")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Range{Min: 9.1, Max: 176.2}, r)
}

func TestConcurrentSavesDoNotInterleave(t *testing.T) {
	t.Parallel()

	store, _ := newMemStore(t)
	exercises := []string{"Squat", "Push-up", "BicepCurl", "Lunge", "Row"}

	var wg sync.WaitGroup
	for _, name := range exercises {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			err := store.SaveJoints(name, JointRanges{"Knee": {Min: 40, Max: 170}}, nil)
			assert.NoError(t, err)
		}(name)
	}
	wg.Wait()

	all, err := store.Load()
	require.NoError(t, err)
	for _, name := range exercises {
		assert.Contains(t, all, name)
	}
}
