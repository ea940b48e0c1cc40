// Package refstore persists per-exercise reference angle ranges.
//
// The on-disk document is JSON keyed by exercise name. Calibrated and
// threshold-mode exercises map joint names to {"Min": x, "Max": y} objects;
// phase-match exercises map phase names to joint ranges expressed as
// two-element [low, high] arrays. Saving merges: only the exercises being
// written are replaced, everything else in the document is preserved
// byte-for-byte.
package refstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"path/filepath"
	"sync"

	"github.com/posefit/posefit/internal/fsutil"
	"github.com/posefit/posefit/internal/geom"
)

// Range is an accepted angle band for one joint, degrees, Min < Max,
// both within [0, 180].
type Range struct {
	Min float64 `json:"Min"`
	Max float64 `json:"Max"`
}

// Contains reports whether angle falls inside the band, optionally widened
// by tolerance on both sides. NaN angles are never contained.
func (r Range) Contains(angle, tolerance float64) bool {
	return geom.InRange(angle, r.Min-tolerance, r.Max+tolerance)
}

// Valid reports whether the range is well-formed.
func (r Range) Valid() bool {
	return !math.IsNaN(r.Min) && !math.IsNaN(r.Max) &&
		r.Min < r.Max && r.Min >= 0 && r.Max <= 180
}

// JointRanges maps joint names to their accepted bands.
type JointRanges map[string]Range

// PhaseRanges maps phase names to the joint bands that define the phase.
type PhaseRanges map[string]JointRanges

// ExerciseEntry is the decoded reference data for one exercise: either
// per-joint ranges (calibrated/threshold exercises) or per-phase joint
// ranges (phase-match exercises). Exactly one of the two maps is non-nil.
type ExerciseEntry struct {
	Joints JointRanges
	Phases PhaseRanges
}

// Store loads and saves the reference document. Saves are serialized so
// concurrent calibration runs for different exercises cannot interleave
// their read-merge-write cycles.
type Store struct {
	mu   sync.Mutex
	fs   fsutil.FileSystem
	path string
}

// NewStore returns a Store reading and writing path through the given
// filesystem.
func NewStore(filesystem fsutil.FileSystem, path string) *Store {
	return &Store{fs: filesystem, path: path}
}

// rawDocument is the persisted form: exercise name to opaque JSON. Keeping
// entries raw is what lets a merge-save leave unrelated exercises
// untouched byte-for-byte.
type rawDocument map[string]json.RawMessage

func (s *Store) readDocument() (rawDocument, error) {
	data, err := s.fs.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return rawDocument{}, nil
		}
		return nil, fmt.Errorf("failed to read reference file %s: %w", s.path, err)
	}
	doc := rawDocument{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse reference file %s: %w", s.path, err)
	}
	return doc, nil
}

// Load returns the decoded reference data for every exercise in the
// document. A missing file yields the built-in defaults.
func (s *Store) Load() (map[string]ExerciseEntry, error) {
	if !s.fs.Exists(s.path) {
		return Defaults(), nil
	}

	doc, err := s.readDocument()
	if err != nil {
		return nil, err
	}

	out := make(map[string]ExerciseEntry, len(doc))
	for exercise, raw := range doc {
		entry, err := decodeEntry(raw)
		if err != nil {
			return nil, fmt.Errorf("exercise %q: %w", exercise, err)
		}
		out[exercise] = entry
	}
	return out, nil
}

// decodeEntry distinguishes the two exercise layouts. Joint layout values
// are {"Min":..,"Max":..} objects; phase layout values are maps of joint
// name to [low, high] arrays. Keys that decode as neither (e.g. provenance
// metadata blocks) are skipped.
func decodeEntry(raw json.RawMessage) (ExerciseEntry, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ExerciseEntry{}, fmt.Errorf("malformed exercise entry: %w", err)
	}

	joints := JointRanges{}
	phases := PhaseRanges{}
	for key, val := range probe {
		var r Range
		if err := json.Unmarshal(val, &r); err == nil && (r.Min != 0 || r.Max != 0) {
			joints[key] = r
			continue
		}
		var phase map[string][2]float64
		if err := json.Unmarshal(val, &phase); err == nil && len(phase) > 0 {
			jr := JointRanges{}
			for joint, pair := range phase {
				jr[joint] = Range{Min: pair[0], Max: pair[1]}
			}
			phases[key] = jr
			continue
		}
		// Unknown key (metadata etc.) — carried by the raw document on
		// save, ignored for lookups.
	}

	entry := ExerciseEntry{}
	if len(joints) > 0 {
		entry.Joints = joints
	}
	if len(phases) > 0 {
		entry.Phases = phases
	}
	return entry, nil
}

// JointRange looks up the band for (exercise, joint) in a joint-layout
// entry. ok is false when the exercise or joint has no data.
func (s *Store) JointRange(exercise, joint string) (Range, bool, error) {
	all, err := s.Load()
	if err != nil {
		return Range{}, false, err
	}
	entry, ok := all[exercise]
	if !ok || entry.Joints == nil {
		return Range{}, false, nil
	}
	r, ok := entry.Joints[joint]
	return r, ok, nil
}

// PhaseRange looks up the joint bands defining (exercise, phase). ok is
// false when the exercise or phase has no data.
func (s *Store) PhaseRange(exercise, phase string) (JointRanges, bool, error) {
	all, err := s.Load()
	if err != nil {
		return nil, false, err
	}
	entry, ok := all[exercise]
	if !ok || entry.Phases == nil {
		return nil, false, nil
	}
	jr, ok := entry.Phases[phase]
	return jr, ok, nil
}

// SaveJoints merges joint-layout ranges for one exercise into the document,
// replacing only that exercise's entry. extra carries optional provenance
// metadata blocks stored alongside the joint ranges.
func (s *Store) SaveJoints(exercise string, joints JointRanges, extra map[string]json.RawMessage) error {
	payload := make(map[string]interface{}, len(joints)+len(extra))
	for joint, r := range joints {
		if !r.Valid() {
			return fmt.Errorf("refusing to save invalid range for %s/%s: [%v, %v]",
				exercise, joint, r.Min, r.Max)
		}
		payload[joint] = r
	}
	for key, raw := range extra {
		payload[key] = raw
	}
	return s.saveEntry(exercise, payload)
}

// SavePhases merges phase-layout ranges for one exercise into the document.
func (s *Store) SavePhases(exercise string, phases PhaseRanges) error {
	payload := make(map[string]interface{}, len(phases))
	for phase, joints := range phases {
		enc := make(map[string][2]float64, len(joints))
		for joint, r := range joints {
			if !r.Valid() {
				return fmt.Errorf("refusing to save invalid range for %s/%s/%s: [%v, %v]",
					exercise, phase, joint, r.Min, r.Max)
			}
			enc[joint] = [2]float64{r.Min, r.Max}
		}
		payload[phase] = enc
	}
	return s.saveEntry(exercise, payload)
}

// saveEntry performs the serialized read-merge-write. The write goes to a
// temp file first and is renamed into place.
func (s *Store) saveEntry(exercise string, payload interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := rawDocument{}
	if s.fs.Exists(s.path) {
		var err error
		doc, err = s.readDocument()
		if err != nil {
			return err
		}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s entry: %w", exercise, err)
	}
	doc[exercise] = raw

	if dir := filepath.Dir(s.path); dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create reference dir: %w", err)
		}
	}

	encoded, err := marshalDocument(doc)
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := s.fs.WriteFile(tmp, encoded, 0o644); err != nil {
		return fmt.Errorf("failed to write reference file: %w", err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace reference file: %w", err)
	}
	return nil
}

// marshalDocument renders the document with two-space indentation,
// preserving each entry's raw value bytes. encoding/json sorts map keys,
// so output is deterministic.
func marshalDocument(doc rawDocument) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

// Defaults returns the built-in reference set used when no document exists:
// one hold exercise, two phase-match exercises, and one calibrated
// threshold exercise.
func Defaults() map[string]ExerciseEntry {
	return map[string]ExerciseEntry{
		"Squat": {
			Phases: PhaseRanges{
				"Down": {"Knee": {Min: 70, Max: 100}, "Hip": {Min: 150, Max: 180}},
				"Up":   {"Knee": {Min: 160, Max: 180}, "Hip": {Min: 165, Max: 180}},
			},
		},
		"Push-up": {
			Phases: PhaseRanges{
				"Down": {"Elbow": {Min: 70, Max: 100}, "Shoulder": {Min: 60, Max: 100}},
				"Up":   {"Elbow": {Min: 160, Max: 180}},
			},
		},
		"Plank": {
			Phases: PhaseRanges{
				"Hold": {"Back": {Min: 170, Max: 180}, "Hip": {Min: 160, Max: 180}},
			},
		},
		"BicepCurl": {
			Joints: JointRanges{
				"Elbow": {Min: 7.4, Max: 180},
			},
		},
	}
}
