package midifile

import (
	"path/filepath"
	"testing"

	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/ahlgreen/tonecraft/internal/arrange"
)

func buildArrangement(t *testing.T) *arrange.Arrangement {
	t.Helper()
	a := arrange.New("Export Test")
	a, err := a.WithBars(1)
	if err != nil {
		t.Fatalf("WithBars: %v", err)
	}
	a, err = a.WithLaneNotes(a.Lanes[0].ID, []arrange.Note{
		arrange.NewNote(60, 0, 1),
		arrange.NewNote(64, 1, 0.5),
	})
	if err != nil {
		t.Fatalf("WithLaneNotes: %v", err)
	}
	a, drumID, err := a.WithLaneAdded(arrange.LaneDrums, "Drums")
	if err != nil {
		t.Fatalf("WithLaneAdded: %v", err)
	}
	a, err = a.WithLaneNotes(drumID, []arrange.Note{
		arrange.NewNote(36, 0, 0.25),
		arrange.NewNote(38, 2, 0.25),
	})
	if err != nil {
		t.Fatalf("WithLaneNotes: %v", err)
	}
	return a
}

type noteOn struct {
	tick         uint32
	ch, key, vel uint8
}

// collect flattens a track into absolute-tick note-on events.
func collect(tr smf.Track) []noteOn {
	var ons []noteOn
	var at uint32
	for _, ev := range tr {
		at += ev.Delta
		var ch, key, vel uint8
		if ev.Message.GetNoteOn(&ch, &key, &vel) && vel > 0 {
			ons = append(ons, noteOn{tick: at, ch: ch, key: key, vel: vel})
		}
	}
	return ons
}

func TestExportTracksAndTiming(t *testing.T) {
	a := buildArrangement(t)
	sm, err := Export(a)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	tracks := sm.Tracks
	if len(tracks) != 3 {
		t.Fatalf("expected meta + 2 lane tracks, got %d", len(tracks))
	}

	melody := collect(tracks[1])
	if len(melody) != 2 {
		t.Fatalf("melody track: %d note-ons, want 2", len(melody))
	}
	if melody[0].tick != 0 || melody[0].key != 60 {
		t.Fatalf("first melody note %+v, want key 60 at tick 0", melody[0])
	}
	if melody[1].tick != ticksPerBeat || melody[1].key != 64 {
		t.Fatalf("second melody note %+v, want key 64 at tick %d", melody[1], ticksPerBeat)
	}
	if melody[0].ch == drumChannel {
		t.Fatal("melody lanes must not use the percussion channel")
	}

	drums := collect(tracks[2])
	if len(drums) != 2 {
		t.Fatalf("drum track: %d note-ons, want 2", len(drums))
	}
	for _, on := range drums {
		if on.ch != drumChannel {
			t.Fatalf("drum note on channel %d, want %d", on.ch, drumChannel)
		}
	}
	if drums[1].tick != 2*ticksPerBeat || drums[1].key != 38 {
		t.Fatalf("snare %+v, want key 38 at tick %d", drums[1], 2*ticksPerBeat)
	}
}

func TestExportSkipsMutedLanes(t *testing.T) {
	a := buildArrangement(t)
	a, err := a.WithLaneUpdated(a.Lanes[1].ID, "Drums", "", true, false)
	if err != nil {
		t.Fatalf("WithLaneUpdated: %v", err)
	}
	sm, err := Export(a)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if got := len(sm.Tracks); got != 2 {
		t.Fatalf("muted lane must be dropped from the export, got %d tracks", got)
	}
}

func TestExportBoundsKeysAndVelocities(t *testing.T) {
	a := arrange.New("range")
	a, err := a.WithBars(1)
	if err != nil {
		t.Fatalf("WithBars: %v", err)
	}
	loud := arrange.NewNote(64, 1, 0.5)
	loud.Velocity = 300
	a, err = a.WithLaneNotes(a.Lanes[0].ID, []arrange.Note{
		arrange.NewNote(-3, 0, 0.5),
		arrange.NewNote(200, 0, 0.5),
		arrange.NewNote(60, 0, 0.5),
		loud,
	})
	if err != nil {
		t.Fatalf("WithLaneNotes: %v", err)
	}

	sm, err := Export(a)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	ons := collect(sm.Tracks[1])
	if len(ons) != 2 {
		t.Fatalf("expected only the representable keys, got %d note-ons", len(ons))
	}
	for _, on := range ons {
		switch on.key {
		case 60:
		case 64:
			if on.vel != 127 {
				t.Fatalf("overdriven velocity exported as %d, want clamp to 127", on.vel)
			}
		default:
			t.Fatalf("unexpected key %d in export", on.key)
		}
	}
}

func TestWriteFileRoundTrip(t *testing.T) {
	a := buildArrangement(t)
	path := filepath.Join(t.TempDir(), "export.mid")
	if err := WriteFile(a, path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	rd, err := smf.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got := len(rd.Tracks); got != 3 {
		t.Fatalf("read back %d tracks, want 3", got)
	}
	tempos := rd.TempoChanges()
	if len(tempos) == 0 || int(tempos[0].BPM) != a.BPM {
		t.Fatalf("tempo not preserved: %+v", tempos)
	}
}
