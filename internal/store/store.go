// Package store persists arrangements as one versioned JSON document
// mapping arrangement id to the full record. The document lives behind a
// byte-level Backend so the same codec serves a file on disk or an
// in-memory buffer in tests. Nothing here ever runs on the audio path.
package store

import (
	"encoding/json"
	"log"
	"os"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/ahlgreen/tonecraft/internal/arrange"
)

// FormatVersion is the current document schema version. Documents
// without a version field predate versioning and are read as version 1.
const FormatVersion = 1

var (
	ErrNotFound      = errors.New("arrangement not found")
	ErrFutureVersion = errors.New("stored document uses a newer format version")
)

// Backend reads and writes the single persisted document.
type Backend interface {
	Read() ([]byte, error) // empty slice when nothing is stored yet
	Write([]byte) error
}

// FileBackend keeps the document in one file.
type FileBackend struct {
	Path string
}

func (b FileBackend) Read() ([]byte, error) {
	data, err := os.ReadFile(b.Path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read arrangement store")
	}
	return data, nil
}

func (b FileBackend) Write(data []byte) error {
	return errors.Wrap(os.WriteFile(b.Path, data, 0o644), "write arrangement store")
}

// MemoryBackend holds the document in memory, for tests.
type MemoryBackend struct {
	Data []byte
}

func (b *MemoryBackend) Read() ([]byte, error) { return b.Data, nil }
func (b *MemoryBackend) Write(d []byte) error  { b.Data = d; return nil }

// IndexEntry is the listing projection: enough to show a saved
// arrangement without loading its notes.
type IndexEntry struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// document is the external representation. Entries stay raw until
// decoded individually, so one corrupt record cannot poison the rest.
type document struct {
	Version      int                        `json:"version"`
	Arrangements map[string]json.RawMessage `json:"arrangements"`
}

type Store struct {
	backend Backend
}

func New(backend Backend) *Store {
	return &Store{backend: backend}
}

func NewFileStore(path string) *Store {
	return New(FileBackend{Path: path})
}

func (s *Store) readDocument() (*document, error) {
	data, err := s.backend.Read()
	if err != nil {
		return nil, err
	}
	doc := &document{Version: FormatVersion, Arrangements: map[string]json.RawMessage{}}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, errors.Wrap(err, "decode arrangement store")
	}
	if doc.Version == 0 {
		doc.Version = 1 // pre-versioning document
	}
	if doc.Version > FormatVersion {
		return nil, errors.Wrapf(ErrFutureVersion, "version %d", doc.Version)
	}
	if doc.Arrangements == nil {
		doc.Arrangements = map[string]json.RawMessage{}
	}
	return doc, nil
}

func (s *Store) writeDocument(doc *document) error {
	doc.Version = FormatVersion
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode arrangement store")
	}
	return s.backend.Write(data)
}

// Save upserts the arrangement, refreshing its UpdatedAt stamp, and
// returns the stored value.
func (s *Store) Save(a *arrange.Arrangement) (*arrange.Arrangement, error) {
	doc, err := s.readDocument()
	if err != nil {
		return nil, err
	}
	stored := a.Clone()
	stored.UpdatedAt = time.Now()
	raw, err := json.Marshal(stored)
	if err != nil {
		return nil, errors.Wrap(err, "encode arrangement")
	}
	doc.Arrangements[stored.ID] = raw
	if err := s.writeDocument(doc); err != nil {
		return nil, err
	}
	return stored, nil
}

// Load returns the full arrangement, or ErrNotFound.
func (s *Store) Load(id string) (*arrange.Arrangement, error) {
	doc, err := s.readDocument()
	if err != nil {
		return nil, err
	}
	raw, ok := doc.Arrangements[id]
	if !ok {
		return nil, ErrNotFound
	}
	var a arrange.Arrangement
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, errors.Wrapf(err, "decode arrangement %s", id)
	}
	return &a, nil
}

// List returns index entries ordered newest first. Records that fail to
// decode are logged and skipped rather than failing the whole listing.
func (s *Store) List() ([]IndexEntry, error) {
	doc, err := s.readDocument()
	if err != nil {
		return nil, err
	}
	entries := make([]IndexEntry, 0, len(doc.Arrangements))
	for id, raw := range doc.Arrangements {
		var e IndexEntry
		if err := json.Unmarshal(raw, &e); err != nil || e.ID == "" {
			log.Printf("store: skipping corrupt arrangement record %s", id)
			continue
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].UpdatedAt.After(entries[j].UpdatedAt)
	})
	return entries, nil
}

// Delete removes the arrangement from the store. Deleting an absent id
// is not an error.
func (s *Store) Delete(id string) error {
	doc, err := s.readDocument()
	if err != nil {
		return err
	}
	if _, ok := doc.Arrangements[id]; !ok {
		return nil
	}
	delete(doc.Arrangements, id)
	return s.writeDocument(doc)
}
