// Package tonecraft is a multi-lane arrangement sequencer with built-in
// synthesis: melody, drum, and chord lanes edited on a beat grid and
// played back through a fixed-polyphony synth driven by the audio clock.
package tonecraft

import (
	"log"
	"sync"

	"github.com/pkg/errors"

	"github.com/ahlgreen/tonecraft/internal/arrange"
	"github.com/ahlgreen/tonecraft/internal/audio"
	"github.com/ahlgreen/tonecraft/internal/grid"
	"github.com/ahlgreen/tonecraft/internal/midifile"
	"github.com/ahlgreen/tonecraft/internal/store"
	"github.com/ahlgreen/tonecraft/internal/synth"
	"github.com/ahlgreen/tonecraft/internal/timebase"
	"github.com/ahlgreen/tonecraft/internal/transport"
)

// ErrNoStore is returned by persistence operations when the studio was
// built without a backing store.
var ErrNoStore = errors.New("no arrangement store configured")

type StudioOption func(*studioConfig)

type studioConfig struct {
	synthParams synth.Params
	store       *store.Store
	silent      bool
}

func defaultStudioConfig() studioConfig {
	return studioConfig{synthParams: synth.DefaultParams()}
}

func WithSynthParams(p synth.Params) StudioOption {
	return func(cfg *studioConfig) { cfg.synthParams = p }
}

// WithStore attaches a persistence backend for Save/Load/List/Delete.
func WithStore(s *store.Store) StudioOption {
	return func(cfg *studioConfig) { cfg.store = s }
}

// WithoutDevice skips opening the audio device. Everything else works;
// used by tests and offline tooling.
func WithoutDevice() StudioOption {
	return func(cfg *studioConfig) { cfg.silent = true }
}

// Studio ties the pieces together: it owns the current arrangement
// snapshot, the grid editor, the transport, and the audio output. All
// mutation goes through the studio's lock; the render side only ever
// sees immutable snapshots.
type Studio struct {
	mu         sync.Mutex
	sampleRate int

	engine    *synth.Engine
	transport *transport.Transport
	output    *audio.Output
	editor    *grid.Editor
	store     *store.Store

	current  *arrange.Arrangement
	selected string // lane id

	baseGain float64
	volume   float64
}

func NewStudio(sampleRate int, opts ...StudioOption) (*Studio, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	cfg := defaultStudioConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	engine := synth.New(sampleRate, cfg.synthParams)
	tr := transport.New(sampleRate, engine)
	s := &Studio{
		sampleRate: sampleRate,
		engine:     engine,
		transport:  tr,
		editor:     grid.NewEditor(),
		store:      cfg.store,
		baseGain:   cfg.synthParams.MasterGain,
		volume:     1,
	}
	s.replaceArrangement(arrange.New("Untitled"))
	if !cfg.silent {
		out, err := audio.NewOutput(sampleRate, tr)
		if err != nil {
			// No device is not fatal: editing and persistence still work,
			// playback is just inaudible.
			log.Printf("studio: audio device unavailable, running silent: %v", err)
		} else {
			// The device runs for the studio's lifetime; the transport
			// gates whether anything is dispatched into the synth.
			out.Start()
			s.output = out
		}
	}
	return s, nil
}

// Close releases the audio device. The studio is unusable afterwards.
func (s *Studio) Close() error {
	s.transport.Stop()
	if s.output != nil {
		return s.output.Close()
	}
	return nil
}

// replaceArrangement swaps the whole working state. Caller holds mu,
// or is the constructor.
func (s *Studio) replaceArrangement(a *arrange.Arrangement) {
	s.current = a
	s.selected = a.Lanes[0].ID
	s.transport.SetArrangement(a)
}

// publish installs a mutated snapshot as current and hands it to the
// transport. Caller holds mu.
func (s *Studio) publish(a *arrange.Arrangement) {
	s.current = a
	s.transport.SetArrangement(a)
}

// Arrangement returns the current snapshot. Treat it as read-only; all
// edits go through studio methods.
func (s *Studio) Arrangement() *arrange.Arrangement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Studio) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publish(s.current.WithName(name))
}

func (s *Studio) SetBPM(bpm int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.current.WithBPM(bpm)
	if err != nil {
		return err
	}
	s.publish(a)
	return nil
}

func (s *Studio) SetBars(bars int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.current.WithBars(bars)
	if err != nil {
		return err
	}
	s.publish(a)
	return nil
}

// AddLane appends a lane and selects it.
func (s *Studio) AddLane(t arrange.LaneType, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, laneID, err := s.current.WithLaneAdded(t, name)
	if err != nil {
		return "", err
	}
	s.publish(a)
	s.selected = laneID
	return laneID, nil
}

// RemoveLane deletes a lane; removing the last one is refused. When the
// selected lane goes away, selection falls back to the first lane.
func (s *Studio) RemoveLane(laneID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.current.WithLaneRemoved(laneID)
	if err != nil {
		return err
	}
	s.publish(a)
	if s.selected == laneID {
		s.selected = a.Lanes[0].ID
	}
	return nil
}

func (s *Studio) UpdateLane(laneID, name, color string, muted, solo bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.current.WithLaneUpdated(laneID, name, color, muted, solo)
	if err != nil {
		return err
	}
	s.publish(a)
	return nil
}

// SetLaneNotes replaces a lane's note set wholesale, for callers that
// edit outside the grid gestures.
func (s *Studio) SetLaneNotes(laneID string, notes []arrange.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.current.WithLaneNotes(laneID, notes)
	if err != nil {
		return err
	}
	s.publish(a)
	return nil
}

func (s *Studio) SelectLane(laneID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current.Lane(laneID) == nil {
		return arrange.ErrLaneNotFound
	}
	s.selected = laneID
	return nil
}

func (s *Studio) SelectedLane() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Grid editing. All gestures operate on the selected lane.

func (s *Studio) SetSubdivision(sub timebase.Subdivision) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editor.SetSubdivision(sub)
}

func (s *Studio) Subdivision() timebase.Subdivision {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editor.Subdivision()
}

func (s *Studio) SetChordType(c grid.ChordType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editor.SetChordType(c)
}

func (s *Studio) ChordType() grid.ChordType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editor.ChordType()
}

// ToggleStep is the click gesture on the selected drums or chord lane.
// An insertion is auditioned so editing is audible even when stopped.
func (s *Studio) ToggleStep(voice, step int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.current.Lane(s.selected).Notes)
	a, err := s.editor.Toggle(s.current, s.selected, voice, step)
	if err != nil {
		return err
	}
	s.publish(a)
	if len(a.Lane(s.selected).Notes) > before {
		lane := s.current.Lane(s.selected)
		beats := timebase.StepDuration(s.editor.Subdivision())
		if lane.Type == arrange.LaneChord {
			// Preview what playback will produce: the full interval set,
			// not just the root.
			for _, iv := range s.editor.ChordType().Intervals() {
				s.auditionLocked(lane, voice+iv, beats)
			}
		} else {
			s.auditionLocked(lane, voice, beats)
		}
	}
	return nil
}

// BeginNoteDrag starts the melody drag gesture, or deletes the covering
// note when the cell is occupied.
func (s *Studio) BeginNoteDrag(pitch, step int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.editor.BeginDrag(s.current, s.selected, pitch, step)
	if err != nil {
		return err
	}
	s.publish(a)
	return nil
}

func (s *Studio) ExtendNoteDrag(pitch, step int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editor.ExtendDrag(pitch, step)
}

// CommitNoteDrag materializes the dragged note and auditions it.
func (s *Studio) CommitNoteDrag() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, pitch, from, to, active := s.editor.DragSpan()
	a, err := s.editor.CommitDrag(s.current)
	if err != nil {
		return err
	}
	s.publish(a)
	if active {
		beats := float64(to-from+1) * timebase.StepDuration(s.editor.Subdivision())
		s.auditionLocked(s.current.Lane(s.selected), pitch, beats)
	}
	return nil
}

func (s *Studio) CancelNoteDrag() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editor.CancelDrag()
}

func (s *Studio) Occupied(pitch, step int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editor.Occupied(s.current, s.selected, pitch, step)
}

// auditionLocked previews one voice of the lane's type. Caller holds mu.
func (s *Studio) auditionLocked(lane *arrange.Lane, voice int, beats float64) {
	if lane == nil {
		return
	}
	if lane.Type == arrange.LaneDrums {
		s.engine.Audition(synth.Trigger{
			Kind:     synth.TriggerDrumHit,
			Drum:     voice,
			Velocity: arrange.DefaultVelocity,
		})
		return
	}
	s.engine.Audition(synth.Trigger{
		Kind:        synth.TriggerPitched,
		Pitch:       voice,
		Velocity:    arrange.DefaultVelocity,
		DurationSec: timebase.BeatToSeconds(beats, s.current.BPM),
	})
}

// Audition previews a pitch on the selected lane's voice without
// touching the arrangement.
func (s *Studio) Audition(pitch int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditionLocked(s.current.Lane(s.selected), pitch, timebase.StepDuration(s.editor.Subdivision()))
}

// Transport control.

// PlayPause toggles playback and reports whether the transport is
// playing afterwards. Playback always restarts from the top.
func (s *Studio) PlayPause() bool { return s.transport.Toggle() }

func (s *Studio) Stop()                { s.transport.Stop() }
func (s *Studio) Playing() bool        { return s.transport.Playing() }
func (s *Studio) CurrentStep() int     { return s.transport.CurrentStep() }
func (s *Studio) CurrentBeat() float64 { return s.transport.CurrentBeat() }

// SetMasterVolume scales output level; 1.0 is the default. Applied on
// the audio thread without blocking it.
func (s *Studio) SetMasterVolume(volume float64) {
	if volume < 0 {
		volume = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = volume
	s.engine.SetMasterGain(s.baseGain * volume)
}

func (s *Studio) MasterVolume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// Persistence.

// Save writes the current arrangement to the store and adopts the
// stored copy (with its refreshed UpdatedAt) as current.
func (s *Studio) Save() (*arrange.Arrangement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		return nil, ErrNoStore
	}
	stored, err := s.store.Save(s.current)
	if err != nil {
		return nil, err
	}
	s.publish(stored)
	return stored, nil
}

// LoadArrangement replaces the working state with a stored arrangement.
// Playback stops and the selection resets to the first lane.
func (s *Studio) LoadArrangement(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		return ErrNoStore
	}
	a, err := s.store.Load(id)
	if err != nil {
		return err
	}
	s.transport.Stop()
	s.replaceArrangement(a)
	return nil
}

// UseArrangement replaces the working state with the given arrangement,
// same semantics as LoadArrangement but without touching the store.
func (s *Studio) UseArrangement(a *arrange.Arrangement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transport.Stop()
	s.replaceArrangement(a.Clone())
}

func (s *Studio) ListArrangements() ([]store.IndexEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		return nil, ErrNoStore
	}
	return s.store.List()
}

func (s *Studio) DeleteArrangement(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		return ErrNoStore
	}
	return s.store.Delete(id)
}

// ExportMIDI writes the current arrangement as a standard MIDI file.
func (s *Studio) ExportMIDI(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return midifile.WriteFile(s.current, path)
}

// ExportYAML serializes the current arrangement for interchange.
func (s *Studio) ExportYAML() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return store.ExportYAML(s.current)
}

// ImportYAML replaces the working state with a YAML document's
// arrangement, same semantics as LoadArrangement.
func (s *Studio) ImportYAML(data []byte) error {
	a, err := store.ImportYAML(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transport.Stop()
	s.replaceArrangement(a)
	return nil
}
