package store

import (
	"encoding/json"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/ahlgreen/tonecraft/internal/arrange"
)

func testArrangement(t *testing.T) *arrange.Arrangement {
	t.Helper()
	a := arrange.New("Sketch")
	a, laneID, err := a.WithLaneAdded(arrange.LaneDrums, "Drums")
	if err != nil {
		t.Fatalf("WithLaneAdded: %v", err)
	}
	a, err = a.WithLaneNotes(laneID, []arrange.Note{
		arrange.NewNote(36, 0, 0.25),
		arrange.NewNote(38, 1, 0.25),
	})
	if err != nil {
		t.Fatalf("WithLaneNotes: %v", err)
	}
	return a
}

// stripTime clears the field that Save legitimately rewrites, so the
// rest of the record can be compared exactly.
func stripTime(a *arrange.Arrangement) *arrange.Arrangement {
	out := a.Clone()
	out.UpdatedAt = time.Time{}
	return out
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := New(&MemoryBackend{})
	a := testArrangement(t)

	stored, err := s.Save(a)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if stored.UpdatedAt.Before(a.UpdatedAt) {
		t.Fatal("Save must refresh UpdatedAt")
	}

	loaded, err := s.Load(a.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(stripTime(loaded), stripTime(a)) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", loaded, a)
	}
}

func TestSaveIsAnUpsert(t *testing.T) {
	s := New(&MemoryBackend{})
	a := testArrangement(t)
	if _, err := s.Save(a); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := s.Save(a.WithName("Renamed")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	entries, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("saving the same id twice must keep one record, got %d", len(entries))
	}
	if entries[0].Name != "Renamed" {
		t.Fatalf("entry name = %q, want the newer save", entries[0].Name)
	}
}

func TestLoadMissingReturnsErrNotFound(t *testing.T) {
	s := New(&MemoryBackend{})
	if _, err := s.Load("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := New(&MemoryBackend{})
	a := testArrangement(t)
	if _, err := s.Save(a); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Delete(a.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(a.ID); err != nil {
		t.Fatalf("second Delete must succeed, got %v", err)
	}
	if _, err := s.Load(a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestListOrdersNewestFirst(t *testing.T) {
	backend := &MemoryBackend{}
	s := New(backend)

	old := testArrangement(t)
	recent := testArrangement(t)
	if _, err := s.Save(old); err != nil {
		t.Fatalf("Save: %v", err)
	}
	// Force a visibly older stamp on the first record; Save rewrites
	// UpdatedAt with the wall clock, which may tie within one test run.
	doc := &document{}
	if err := json.Unmarshal(backend.Data, doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	stale := old.Clone()
	stale.UpdatedAt = time.Now().Add(-time.Hour)
	raw, err := json.Marshal(stale)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	doc.Arrangements[old.ID] = raw
	if backend.Data, err = json.Marshal(doc); err != nil {
		t.Fatalf("encode: %v", err)
	}

	if _, err := s.Save(recent); err != nil {
		t.Fatalf("Save: %v", err)
	}

	entries, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ID != recent.ID || entries[1].ID != old.ID {
		t.Fatalf("wrong order: %v then %v", entries[0].ID, entries[1].ID)
	}
}

func TestListSkipsCorruptRecords(t *testing.T) {
	backend := &MemoryBackend{}
	s := New(backend)
	a := testArrangement(t)
	if _, err := s.Save(a); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// The record is valid JSON (so the document still parses) but does
	// not decode as an arrangement.
	doc := &document{}
	if err := json.Unmarshal(backend.Data, doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	doc.Arrangements["broken"] = json.RawMessage(`{"id": 12}`)
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	backend.Data = data

	entries, err := s.List()
	if err != nil {
		t.Fatalf("List must not fail on one corrupt record: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != a.ID {
		t.Fatalf("expected the intact record only, got %+v", entries)
	}
}

func TestVersionHandling(t *testing.T) {
	a := testArrangement(t)
	raw, _ := json.Marshal(a)

	t.Run("absent version reads as current", func(t *testing.T) {
		data, _ := json.Marshal(map[string]any{
			"arrangements": map[string]json.RawMessage{a.ID: raw},
		})
		s := New(&MemoryBackend{Data: data})
		if _, err := s.Load(a.ID); err != nil {
			t.Fatalf("Load: %v", err)
		}
	})

	t.Run("future version is refused", func(t *testing.T) {
		data, _ := json.Marshal(map[string]any{
			"version":      FormatVersion + 1,
			"arrangements": map[string]json.RawMessage{a.ID: raw},
		})
		s := New(&MemoryBackend{Data: data})
		if _, err := s.Load(a.ID); !errors.Is(err, ErrFutureVersion) {
			t.Fatalf("expected ErrFutureVersion, got %v", err)
		}
	})
}

func TestFileBackendPersistsAcrossStores(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arrangements.json")
	a := testArrangement(t)
	if _, err := NewFileStore(path).Save(a); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := NewFileStore(path).Load(a.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Name != a.Name || len(loaded.Lanes) != len(a.Lanes) {
		t.Fatalf("file round trip mismatch: %+v", loaded)
	}
}

func TestYAMLRoundTrip(t *testing.T) {
	a := testArrangement(t)
	data, err := ExportYAML(a)
	if err != nil {
		t.Fatalf("ExportYAML: %v", err)
	}
	back, err := ImportYAML(data)
	if err != nil {
		t.Fatalf("ImportYAML: %v", err)
	}
	if !reflect.DeepEqual(stripTime(back), stripTime(a)) {
		t.Fatalf("yaml round trip mismatch:\n got %+v\nwant %+v", back, a)
	}
}

func TestYAMLImportValidates(t *testing.T) {
	if _, err := ImportYAML([]byte("bpm: 999\nbars: 2\nlanes: [{type: melody}]")); !errors.Is(err, arrange.ErrBPMRange) {
		t.Fatalf("expected ErrBPMRange, got %v", err)
	}
	if _, err := ImportYAML([]byte("bpm: 120\nbars: 2")); err == nil {
		t.Fatal("an arrangement without lanes must be refused")
	}
}

func TestYAMLImportAssignsMissingID(t *testing.T) {
	back, err := ImportYAML([]byte("name: x\nbpm: 120\nbars: 1\nlanes: [{type: melody, name: M}]"))
	if err != nil {
		t.Fatalf("ImportYAML: %v", err)
	}
	if back.ID == "" {
		t.Fatal("import must assign an id when the document has none")
	}
}
