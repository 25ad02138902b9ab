package arrange

import (
	"errors"
	"testing"
)

func TestNewHasOneMelodyLane(t *testing.T) {
	a := New("untitled")
	if len(a.Lanes) != 1 {
		t.Fatalf("expected 1 lane, got %d", len(a.Lanes))
	}
	if a.Lanes[0].Type != LaneMelody {
		t.Fatalf("expected melody lane, got %s", a.Lanes[0].Type)
	}
	if a.ID == "" || a.Lanes[0].ID == "" {
		t.Fatal("ids must be assigned at creation")
	}
	if a.BPM < MinBPM || a.BPM > MaxBPM {
		t.Fatalf("default bpm %d outside domain", a.BPM)
	}
}

func TestWithBPMRejectsOutOfRange(t *testing.T) {
	a := New("x")
	for _, bpm := range []int{39, 301, -1, 0} {
		if _, err := a.WithBPM(bpm); !errors.Is(err, ErrBPMRange) {
			t.Errorf("WithBPM(%d): expected ErrBPMRange, got %v", bpm, err)
		}
	}
	out, err := a.WithBPM(300)
	if err != nil {
		t.Fatalf("WithBPM(300): %v", err)
	}
	if out.BPM != 300 {
		t.Fatalf("expected 300, got %d", out.BPM)
	}
	if a.BPM == 300 {
		t.Fatal("mutation must not touch the original value")
	}
}

func TestWithBarsRejectsOutOfRange(t *testing.T) {
	a := New("x")
	for _, bars := range []int{0, 17, -3} {
		if _, err := a.WithBars(bars); !errors.Is(err, ErrBarsRange) {
			t.Errorf("WithBars(%d): expected ErrBarsRange, got %v", bars, err)
		}
	}
}

func TestWithLaneRemovedRefusesLastLane(t *testing.T) {
	a := New("x")
	if _, err := a.WithLaneRemoved(a.Lanes[0].ID); !errors.Is(err, ErrLastLane) {
		t.Fatalf("expected ErrLastLane, got %v", err)
	}
	a2, laneID, err := a.WithLaneAdded(LaneDrums, "Drums")
	if err != nil {
		t.Fatalf("WithLaneAdded: %v", err)
	}
	a3, err := a2.WithLaneRemoved(laneID)
	if err != nil {
		t.Fatalf("WithLaneRemoved: %v", err)
	}
	if len(a3.Lanes) != 1 {
		t.Fatalf("expected 1 lane after removal, got %d", len(a3.Lanes))
	}
}

func TestWithLaneRemovedUnknownLane(t *testing.T) {
	a, _, _ := New("x").WithLaneAdded(LaneChord, "Chords")
	if _, err := a.WithLaneRemoved("nope"); !errors.Is(err, ErrLaneNotFound) {
		t.Fatalf("expected ErrLaneNotFound, got %v", err)
	}
}

func TestWithLaneAddedRejectsUnknownType(t *testing.T) {
	if _, _, err := New("x").WithLaneAdded(LaneType("vocals"), "Vox"); !errors.Is(err, ErrLaneType) {
		t.Fatalf("expected ErrLaneType, got %v", err)
	}
}

func TestWithLaneNotesIsolation(t *testing.T) {
	a := New("x")
	notes := []Note{NewNote(60, 0, 0.25)}
	a2, err := a.WithLaneNotes(a.Lanes[0].ID, notes)
	if err != nil {
		t.Fatalf("WithLaneNotes: %v", err)
	}
	notes[0].Pitch = 72
	if a2.Lanes[0].Notes[0].Pitch != 60 {
		t.Fatal("stored notes must not alias the caller's slice")
	}
	if len(a.Lanes[0].Notes) != 0 {
		t.Fatal("original arrangement must be unchanged")
	}
}

func TestUpdatedAtRefreshesOnMutation(t *testing.T) {
	a := New("x")
	before := a.UpdatedAt
	a2, err := a.WithBPM(90)
	if err != nil {
		t.Fatalf("WithBPM: %v", err)
	}
	if a2.UpdatedAt.Before(before) {
		t.Fatal("UpdatedAt must be refreshed on mutation")
	}
}

func TestAudibleMuteSoloResolution(t *testing.T) {
	a := New("x")
	a, drumsID, _ := a.WithLaneAdded(LaneDrums, "Drums")
	a, chordID, _ := a.WithLaneAdded(LaneChord, "Chords")
	melodyID := a.Lanes[0].ID

	// L1 solo, L2 plain, L3 muted: only L1 audible.
	a, _ = a.WithLaneUpdated(melodyID, "Melody", "", false, true)
	a, _ = a.WithLaneUpdated(chordID, "Chords", "", true, false)

	want := map[string]bool{melodyID: true, drumsID: false, chordID: false}
	for i := range a.Lanes {
		l := &a.Lanes[i]
		if got := a.Audible(l); got != want[l.ID] {
			t.Errorf("lane %s audible = %v, want %v", l.Name, got, want[l.ID])
		}
	}
}

func TestAudibleMuteWinsOverSoloOnSameLane(t *testing.T) {
	a := New("x")
	id := a.Lanes[0].ID
	a, _ = a.WithLaneUpdated(id, "Melody", "", true, true)
	if a.Audible(&a.Lanes[0]) {
		t.Fatal("a lane that is both soloed and muted must be silent")
	}
}

func TestCloneIsDeep(t *testing.T) {
	a := New("x")
	a, _ = a.WithLaneNotes(a.Lanes[0].ID, []Note{NewNote(64, 1, 0.5)})
	b := a.Clone()
	b.Lanes[0].Notes[0].Pitch = 65
	if a.Lanes[0].Notes[0].Pitch != 64 {
		t.Fatal("clone must not share note storage")
	}
}
