// Package grid translates pointer-style editing intents (toggle a cell,
// drag out a note) into arrangement mutations, enforcing grid snap and
// the note-overlap policy. The editor itself only holds transient drag
// state; all note data lives in the arrangement.
package grid

import (
	"errors"
	"math"

	"github.com/ahlgreen/tonecraft/internal/arrange"
	"github.com/ahlgreen/tonecraft/internal/timebase"
)

var (
	ErrLaneMode = errors.New("operation does not apply to this lane type")
	ErrNoDrag   = errors.New("no drag in progress")
)

// ChordType selects the interval set inserted by a chord-lane toggle.
type ChordType string

const (
	ChordMajor      ChordType = "major"
	ChordMinor      ChordType = "minor"
	ChordDiminished ChordType = "diminished"
	ChordAugmented  ChordType = "augmented"
	ChordMajor7     ChordType = "major7"
	ChordMinor7     ChordType = "minor7"
	ChordDominant7  ChordType = "dominant7"
	ChordSus2       ChordType = "sus2"
	ChordSus4       ChordType = "sus4"
)

var chordIntervals = map[ChordType][]int{
	ChordMajor:      {0, 4, 7},
	ChordMinor:      {0, 3, 7},
	ChordDiminished: {0, 3, 6},
	ChordAugmented:  {0, 4, 8},
	ChordMajor7:     {0, 4, 7, 11},
	ChordMinor7:     {0, 3, 7, 10},
	ChordDominant7:  {0, 4, 7, 10},
	ChordSus2:       {0, 2, 7},
	ChordSus4:       {0, 5, 7},
}

// Intervals returns the semitone offsets for the chord type, or the
// major triad for an unknown type.
func (c ChordType) Intervals() []int {
	if iv, ok := chordIntervals[c]; ok {
		return iv
	}
	return chordIntervals[ChordMajor]
}

// sameBeat compares beat positions with a tolerance for float error.
func sameBeat(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

type dragState struct {
	laneID string
	pitch  int
	anchor int
	end    int
}

// Editor applies grid edits at its active subdivision. One editor serves
// the whole arrangement; drag state is per-gesture, not per-lane.
type Editor struct {
	sub   timebase.Subdivision
	chord ChordType
	drag  *dragState
}

func NewEditor() *Editor {
	return &Editor{sub: timebase.Sixteenth, chord: ChordMajor}
}

// SetSubdivision changes the active grid. Existing notes keep their beat
// positions; nothing is re-quantized.
func (e *Editor) SetSubdivision(sub timebase.Subdivision) {
	if sub.Valid() {
		e.sub = sub
	}
}

func (e *Editor) Subdivision() timebase.Subdivision { return e.sub }

func (e *Editor) SetChordType(c ChordType) { e.chord = c }
func (e *Editor) ChordType() ChordType     { return e.chord }

// Occupied reports whether a note in the lane covers the given
// (pitch, step) cell at the editor's subdivision. Used for rendering
// highlight state and for delete-on-press.
func (e *Editor) Occupied(a *arrange.Arrangement, laneID string, pitch, step int) bool {
	return e.noteAt(a, laneID, pitch, step) != ""
}

// noteAt returns the id of the note covering the cell, or "".
func (e *Editor) noteAt(a *arrange.Arrangement, laneID string, pitch, step int) string {
	lane := a.Lane(laneID)
	if lane == nil {
		return ""
	}
	stepDur := timebase.StepDuration(e.sub)
	cellStart := timebase.StepToBeat(step, e.sub)
	for _, n := range lane.Notes {
		if n.Pitch != pitch {
			continue
		}
		if n.StartBeat < cellStart+stepDur-1e-6 && n.StartBeat+n.Duration > cellStart+1e-6 {
			return n.ID
		}
	}
	return ""
}

// Toggle is the click gesture on drums and chord lanes: remove the note
// at the exact (voice, step) position if present, insert otherwise. On
// chord lanes the whole note-group sharing the start beat is removed,
// and insertion expands the selected chord type from the root.
func (e *Editor) Toggle(a *arrange.Arrangement, laneID string, voice, step int) (*arrange.Arrangement, error) {
	lane := a.Lane(laneID)
	if lane == nil {
		return nil, arrange.ErrLaneNotFound
	}
	start := timebase.StepToBeat(step, e.sub)
	stepDur := timebase.StepDuration(e.sub)

	switch lane.Type {
	case arrange.LaneDrums:
		notes, removed := removeExact(lane.Notes, voice, start)
		if !removed {
			notes = append(notes, arrange.NewNote(voice, start, stepDur))
		}
		return a.WithLaneNotes(laneID, notes)

	case arrange.LaneChord:
		if hasExact(lane.Notes, voice, start) {
			// A chord is a note-group keyed by shared start time; drop
			// the whole group, not just the root.
			notes := lane.Notes[:0:0]
			for _, n := range lane.Notes {
				if !sameBeat(n.StartBeat, start) {
					notes = append(notes, n)
				}
			}
			return a.WithLaneNotes(laneID, notes)
		}
		notes := append([]arrange.Note(nil), lane.Notes...)
		for _, iv := range e.chord.Intervals() {
			if hasExact(notes, voice+iv, start) {
				continue // duplicate (pitch, start) is never inserted
			}
			notes = append(notes, arrange.NewNote(voice+iv, start, stepDur))
		}
		return a.WithLaneNotes(laneID, notes)

	default:
		return nil, ErrLaneMode
	}
}

// BeginDrag is mouse-down on a melody lane. On an empty cell it anchors
// a drag and returns the arrangement unchanged; on an occupied cell it
// deletes the covering note and starts no drag.
func (e *Editor) BeginDrag(a *arrange.Arrangement, laneID string, pitch, step int) (*arrange.Arrangement, error) {
	lane := a.Lane(laneID)
	if lane == nil {
		return nil, arrange.ErrLaneNotFound
	}
	if lane.Type != arrange.LaneMelody {
		return nil, ErrLaneMode
	}
	if id := e.noteAt(a, laneID, pitch, step); id != "" {
		notes := lane.Notes[:0:0]
		for _, n := range lane.Notes {
			if n.ID != id {
				notes = append(notes, n)
			}
		}
		return a.WithLaneNotes(laneID, notes)
	}
	e.drag = &dragState{laneID: laneID, pitch: pitch, anchor: step, end: step}
	return a, nil
}

// ExtendDrag moves the provisional end step. The drag is locked to its
// origin pitch row; movement on other rows is ignored.
func (e *Editor) ExtendDrag(pitch, step int) {
	if e.drag == nil || pitch != e.drag.pitch {
		return
	}
	if step < e.drag.anchor {
		step = e.drag.anchor
	}
	e.drag.end = step
}

// CommitDrag is mouse-up: it materializes the dragged span as a single
// note covering [anchor, end] inclusive and clears the drag.
func (e *Editor) CommitDrag(a *arrange.Arrangement) (*arrange.Arrangement, error) {
	d := e.drag
	if d == nil {
		return nil, ErrNoDrag
	}
	e.drag = nil
	lane := a.Lane(d.laneID)
	if lane == nil {
		return nil, arrange.ErrLaneNotFound
	}
	start := timebase.StepToBeat(d.anchor, e.sub)
	duration := float64(d.end-d.anchor+1) * timebase.StepDuration(e.sub)
	if hasExact(lane.Notes, d.pitch, start) {
		return a, nil
	}
	notes := append([]arrange.Note(nil), lane.Notes...)
	notes = append(notes, arrange.NewNote(d.pitch, start, duration))
	return a.WithLaneNotes(d.laneID, notes)
}

// CancelDrag abandons the in-progress drag, if any.
func (e *Editor) CancelDrag() { e.drag = nil }

// DragSpan exposes the provisional drag for rendering. Active is false
// when no drag is in progress.
func (e *Editor) DragSpan() (laneID string, pitch, from, to int, active bool) {
	if e.drag == nil {
		return "", 0, 0, 0, false
	}
	return e.drag.laneID, e.drag.pitch, e.drag.anchor, e.drag.end, true
}

func hasExact(notes []arrange.Note, pitch int, start float64) bool {
	for _, n := range notes {
		if n.Pitch == pitch && sameBeat(n.StartBeat, start) {
			return true
		}
	}
	return false
}

func removeExact(notes []arrange.Note, pitch int, start float64) ([]arrange.Note, bool) {
	out := notes[:0:0]
	removed := false
	for _, n := range notes {
		if !removed && n.Pitch == pitch && sameBeat(n.StartBeat, start) {
			removed = true
			continue
		}
		out = append(out, n)
	}
	return out, removed
}
