// Package transport is the playback engine: a step counter advanced at
// the tempo-derived rate inside the audio render callback, dispatching
// due notes to the synth. Driving the counter from the sample clock keeps
// scheduling glued to what the listener hears; there is no wall-clock
// timer to drift under load.
package transport

import (
	"math"
	"sync/atomic"

	"github.com/ahlgreen/tonecraft/internal/arrange"
	"github.com/ahlgreen/tonecraft/internal/synth"
)

// StepsPerBeat is the fixed transport grid (sixteenth notes). It is
// independent of the editor's display subdivision, which only affects
// how notes are created.
const StepsPerBeat = 4

// beatEpsilon is the tolerance when matching a note's start beat against
// the current step. Covers float error, not off-grid placement.
const beatEpsilon = 1e-4

// Engine is the synthesis sink the transport dispatches into. NoteOn is
// only ever called from the render goroutine, inside Process.
type Engine interface {
	NoteOn(synth.Trigger)
	RenderFrame() (float32, float32)
}

type Transport struct {
	sampleRate float64
	engine     Engine

	snapshot atomic.Pointer[arrange.Arrangement]
	playing  atomic.Bool
	reset    atomic.Bool
	step     atomic.Int64 // display position; -1 when stopped

	// Render-goroutine state.
	stepInt         int
	samplesUntilTck float64
}

func New(sampleRate int, engine Engine) *Transport {
	t := &Transport{
		sampleRate: float64(sampleRate),
		engine:     engine,
	}
	t.step.Store(-1)
	return t
}

// SetArrangement publishes the arrangement the transport reads on its
// next tick. The value must not be mutated after publishing; editors
// hand over fresh copy-on-write snapshots.
func (t *Transport) SetArrangement(a *arrange.Arrangement) {
	t.snapshot.Store(a)
}

// Toggle flips between playing and stopped, the play-button semantics.
// It reports whether the transport is playing afterwards.
func (t *Transport) Toggle() bool {
	if t.playing.Load() {
		t.Stop()
		return false
	}
	t.Play()
	return true
}

// Play starts playback from step 0. No-op when already playing.
func (t *Transport) Play() {
	if t.playing.CompareAndSwap(false, true) {
		t.reset.Store(true)
		t.step.Store(0)
	}
}

// Stop halts dispatch immediately and moves the position indicator back
// before the start. Voices already triggered ring out on their own.
func (t *Transport) Stop() {
	t.playing.Store(false)
	t.step.Store(-1)
}

func (t *Transport) Playing() bool { return t.playing.Load() }

// CurrentStep returns the transport-grid step being played, or -1 when
// stopped. Display only; dispatch never derives from it.
func (t *Transport) CurrentStep() int { return int(t.step.Load()) }

// CurrentBeat returns the playback position in beats for display, or a
// negative value when stopped.
func (t *Transport) CurrentBeat() float64 {
	s := t.step.Load()
	if s < 0 {
		return -1
	}
	return float64(s) / StepsPerBeat
}

// Process implements the audio source: per frame it runs due tick logic,
// then renders the synth. Ticks re-read the live snapshot, so tempo,
// length, and note edits take effect on the next tick.
func (t *Transport) Process(dst []float32) {
	for f := 0; f+1 < len(dst); f += 2 {
		t.tickFrame()
		dst[f], dst[f+1] = t.engine.RenderFrame()
	}
}

func (t *Transport) tickFrame() {
	if !t.playing.Load() {
		return
	}
	if t.reset.CompareAndSwap(true, false) {
		t.stepInt = 0
		t.samplesUntilTck = 0
	}
	if t.samplesUntilTck > 0 {
		t.samplesUntilTck--
		return
	}
	a := t.snapshot.Load()
	if a == nil {
		t.samplesUntilTck += t.sampleRate // idle; retry in a second
		return
	}
	t.dispatchStep(a, t.stepInt)
	t.step.Store(int64(t.stepInt))

	total := a.Bars * a.TimeSignature.BeatsPerBar * StepsPerBeat
	t.stepInt++
	if t.stepInt >= total {
		t.stepInt = 0
	}
	t.samplesUntilTck += t.sampleRate * 60.0 / float64(a.BPM) / StepsPerBeat - 1
}

func (t *Transport) dispatchStep(a *arrange.Arrangement, step int) {
	beat := float64(step) / StepsPerBeat
	for i := range a.Lanes {
		lane := &a.Lanes[i]
		if !a.Audible(lane) {
			continue
		}
		for _, n := range lane.Notes {
			if math.Abs(n.StartBeat-beat) > beatEpsilon {
				continue
			}
			durSec := n.Duration * 60.0 / float64(a.BPM)
			if lane.Type == arrange.LaneDrums {
				t.engine.NoteOn(synth.Trigger{
					Kind:     synth.TriggerDrumHit,
					Drum:     n.Pitch,
					Velocity: n.Velocity,
				})
				continue
			}
			// Melody and chord lanes share the pitched voice; a chord is
			// just several notes with the same start beat, so the group
			// triggers together here with no special casing.
			t.engine.NoteOn(synth.Trigger{
				Kind:        synth.TriggerPitched,
				Pitch:       n.Pitch,
				Velocity:    n.Velocity,
				DurationSec: durSec,
			})
		}
	}
}
