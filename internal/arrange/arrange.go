// Package arrange owns the arrangement data model: an Arrangement holds
// ordered Lanes, each lane holds Notes. Mutations are copy-on-write and
// return a fresh value, so a caller can publish the result as an atomic
// snapshot while the previous value stays valid for concurrent readers.
package arrange

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Tempo and length domains. Mutations outside these ranges are rejected
// with no partial change.
const (
	MinBPM  = 40
	MaxBPM  = 300
	MinBars = 1
	MaxBars = 16
)

// DefaultVelocity is assigned to editor-created notes. Velocity is a
// reserved expressive hint; the synth currently reads it only coarsely.
const DefaultVelocity = 100

var (
	ErrBPMRange     = fmt.Errorf("bpm out of range %d-%d", MinBPM, MaxBPM)
	ErrBarsRange    = fmt.Errorf("bars out of range %d-%d", MinBars, MaxBars)
	ErrLastLane     = errors.New("cannot remove the last lane")
	ErrLaneNotFound = errors.New("lane not found")
	ErrLaneType     = errors.New("unknown lane type")
)

// LaneType selects the synth voice family and the editor interaction mode.
// It is fixed for the lane's lifetime.
type LaneType string

const (
	LaneMelody LaneType = "melody"
	LaneDrums  LaneType = "drums"
	LaneChord  LaneType = "chord"
)

func (t LaneType) Valid() bool {
	switch t {
	case LaneMelody, LaneDrums, LaneChord:
		return true
	}
	return false
}

// TimeSignature is (beats per bar, beat unit), e.g. 4/4.
type TimeSignature struct {
	BeatsPerBar int `json:"beatsPerBar" yaml:"beatsPerBar"`
	BeatUnit    int `json:"beatUnit" yaml:"beatUnit"`
}

// Note is one scheduled event. For drums lanes Pitch is a drum voice code
// rather than a pitch. StartBeat is grid-snapped at creation but is not
// re-quantized when the display grid changes later.
type Note struct {
	ID        string  `json:"id" yaml:"id"`
	Pitch     int     `json:"pitch" yaml:"pitch"`
	StartBeat float64 `json:"startBeat" yaml:"startBeat"`
	Duration  float64 `json:"duration" yaml:"duration"`
	Velocity  int     `json:"velocity" yaml:"velocity"`
}

// Lane is one track of the arrangement.
type Lane struct {
	ID    string   `json:"id" yaml:"id"`
	Type  LaneType `json:"type" yaml:"type"`
	Name  string   `json:"name" yaml:"name"`
	Color string   `json:"color" yaml:"color"`
	Muted bool     `json:"muted" yaml:"muted"`
	Solo  bool     `json:"solo" yaml:"solo"`
	Notes []Note   `json:"notes" yaml:"notes"`
}

// Arrangement is the root aggregate a user edits and plays.
type Arrangement struct {
	ID            string        `json:"id" yaml:"id"`
	Name          string        `json:"name" yaml:"name"`
	BPM           int           `json:"bpm" yaml:"bpm"`
	Bars          int           `json:"bars" yaml:"bars"`
	TimeSignature TimeSignature `json:"timeSignature" yaml:"timeSignature"`
	Lanes         []Lane        `json:"lanes" yaml:"lanes"`
	UpdatedAt     time.Time     `json:"updatedAt" yaml:"updatedAt"`
}

// laneColors is a display palette cycled as lanes are added. Colors carry
// no semantic meaning.
var laneColors = []string{"#e05d5d", "#5d9de0", "#5de08c", "#e0c95d", "#b05de0", "#e08f5d"}

// NewID returns a fresh opaque identifier.
func NewID() string { return uuid.NewString() }

// New creates an in-memory arrangement with one default melody lane.
func New(name string) *Arrangement {
	a := &Arrangement{
		ID:            NewID(),
		Name:          name,
		BPM:           120,
		Bars:          2,
		TimeSignature: TimeSignature{BeatsPerBar: 4, BeatUnit: 4},
		UpdatedAt:     time.Now(),
	}
	a.Lanes = []Lane{{
		ID:    NewID(),
		Type:  LaneMelody,
		Name:  "Melody",
		Color: laneColors[0],
		Notes: []Note{},
	}}
	return a
}

// NewNote creates a note with a fresh id and the default velocity.
func NewNote(pitch int, startBeat, duration float64) Note {
	return Note{
		ID:        NewID(),
		Pitch:     pitch,
		StartBeat: startBeat,
		Duration:  duration,
		Velocity:  DefaultVelocity,
	}
}

// Clone returns a deep copy. The copy shares nothing with the receiver.
func (a *Arrangement) Clone() *Arrangement {
	out := *a
	out.Lanes = make([]Lane, len(a.Lanes))
	for i, l := range a.Lanes {
		out.Lanes[i] = l
		out.Lanes[i].Notes = append([]Note(nil), l.Notes...)
	}
	return &out
}

// Lane returns the lane with the given id, or nil.
func (a *Arrangement) Lane(id string) *Lane {
	for i := range a.Lanes {
		if a.Lanes[i].ID == id {
			return &a.Lanes[i]
		}
	}
	return nil
}

func (a *Arrangement) touch() { a.UpdatedAt = time.Now() }

// WithName returns a copy with the display name changed.
func (a *Arrangement) WithName(name string) *Arrangement {
	out := a.Clone()
	out.Name = name
	out.touch()
	return out
}

// WithBPM returns a copy with the tempo changed, or an error if bpm is
// outside the 40-300 domain.
func (a *Arrangement) WithBPM(bpm int) (*Arrangement, error) {
	if bpm < MinBPM || bpm > MaxBPM {
		return nil, ErrBPMRange
	}
	out := a.Clone()
	out.BPM = bpm
	out.touch()
	return out, nil
}

// WithBars returns a copy with the length changed, or an error if bars is
// outside the 1-16 domain.
func (a *Arrangement) WithBars(bars int) (*Arrangement, error) {
	if bars < MinBars || bars > MaxBars {
		return nil, ErrBarsRange
	}
	out := a.Clone()
	out.Bars = bars
	out.touch()
	return out, nil
}

// WithLaneAdded returns a copy with a new empty lane of the given type
// appended, and the new lane's id.
func (a *Arrangement) WithLaneAdded(t LaneType, name string) (*Arrangement, string, error) {
	if !t.Valid() {
		return nil, "", ErrLaneType
	}
	out := a.Clone()
	lane := Lane{
		ID:    NewID(),
		Type:  t,
		Name:  name,
		Color: laneColors[len(out.Lanes)%len(laneColors)],
		Notes: []Note{},
	}
	out.Lanes = append(out.Lanes, lane)
	out.touch()
	return out, lane.ID, nil
}

// WithLaneRemoved returns a copy without the given lane. Removing the
// last lane is refused.
func (a *Arrangement) WithLaneRemoved(laneID string) (*Arrangement, error) {
	if len(a.Lanes) <= 1 {
		return nil, ErrLastLane
	}
	idx := -1
	for i := range a.Lanes {
		if a.Lanes[i].ID == laneID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrLaneNotFound
	}
	out := a.Clone()
	out.Lanes = append(out.Lanes[:idx], out.Lanes[idx+1:]...)
	out.touch()
	return out, nil
}

// WithLaneUpdated returns a copy with the lane's mutable fields (name,
// color, mute, solo) replaced. Type and notes are not changed here; the
// lane type is fixed for life and notes go through WithLaneNotes.
func (a *Arrangement) WithLaneUpdated(laneID string, name, color string, muted, solo bool) (*Arrangement, error) {
	out := a.Clone()
	lane := out.Lane(laneID)
	if lane == nil {
		return nil, ErrLaneNotFound
	}
	lane.Name = name
	lane.Color = color
	lane.Muted = muted
	lane.Solo = solo
	out.touch()
	return out, nil
}

// WithLaneNotes returns a copy with the lane's note set replaced.
func (a *Arrangement) WithLaneNotes(laneID string, notes []Note) (*Arrangement, error) {
	out := a.Clone()
	lane := out.Lane(laneID)
	if lane == nil {
		return nil, ErrLaneNotFound
	}
	lane.Notes = append([]Note(nil), notes...)
	out.touch()
	return out, nil
}

// LengthBeats returns the loop length in beats.
func (a *Arrangement) LengthBeats() float64 {
	return float64(a.Bars * a.TimeSignature.BeatsPerBar)
}

// SoloActive reports whether any lane has solo enabled.
func (a *Arrangement) SoloActive() bool {
	for i := range a.Lanes {
		if a.Lanes[i].Solo {
			return true
		}
	}
	return false
}

// Audible resolves the mute/solo policy for one lane: a muted lane is
// never audible, and when any lane is soloed only soloed lanes sound.
func (a *Arrangement) Audible(l *Lane) bool {
	if l.Muted {
		return false
	}
	if a.SoloActive() {
		return l.Solo
	}
	return true
}
