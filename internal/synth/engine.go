// Package synth turns note triggers into audio. Each trigger allocates a
// voice from a fixed pool; voices render themselves to silence and free
// their slot, so lifetime is explicit rather than garbage-collected.
package synth

import (
	"math"
	"sync/atomic"
)

const twoPi = math.Pi * 2

type Params struct {
	Polyphony  int
	MasterGain float64
}

func DefaultParams() Params {
	return Params{
		Polyphony:  32,
		MasterGain: 0.5,
	}
}

// Trigger is one synthesis request. Drum is consulted when Kind is
// TriggerDrum; Pitch and DurationSec drive the pitched recipe otherwise.
type Trigger struct {
	Kind        TriggerKind
	Pitch       int
	Drum        int
	Velocity    int
	DurationSec float64
}

type TriggerKind int

const (
	TriggerPitched TriggerKind = iota
	TriggerDrumHit
)

type Engine struct {
	sampleRate float64
	params     Params
	voices     []voice
	nextID     int
	masterGain uint64 // float64 bits, atomic
	noise      noiseGen

	// auditions hands preview triggers from the control thread to the
	// render thread. Bounded; sends never block (drop on full).
	auditions chan Trigger
}

func New(sampleRate int, params Params) *Engine {
	if params.Polyphony <= 0 {
		params.Polyphony = 32
	}
	return &Engine{
		sampleRate: float64(sampleRate),
		params:     params,
		voices:     make([]voice, params.Polyphony),
		masterGain: math.Float64bits(params.MasterGain),
		noise:      newNoiseGen(),
		auditions:  make(chan Trigger, 16),
	}
}

// NoteOn starts a voice for the trigger. It must be called from the
// render goroutine (the transport's dispatch path); use Audition from
// anywhere else.
func (e *Engine) NoteOn(t Trigger) {
	slot := e.stealVoice()
	id := e.nextID
	e.nextID++
	v := &e.voices[slot]
	*v = voice{active: true, id: id}
	switch t.Kind {
	case TriggerDrumHit:
		v.initDrum(e.sampleRate, t.Drum, t.Velocity)
	default:
		v.initPitched(e.sampleRate, t.Pitch, t.Velocity, t.DurationSec)
	}
}

// Audition queues a trigger for immediate playback without the transport,
// e.g. when the editor places a note. Safe from any goroutine; drops the
// trigger if the queue is full rather than blocking.
func (e *Engine) Audition(t Trigger) {
	select {
	case e.auditions <- t:
	default:
	}
}

// RenderFrame produces one stereo frame, advancing every active voice.
func (e *Engine) RenderFrame() (float32, float32) {
	e.drainAuditions()
	var sig float64
	for i := range e.voices {
		v := &e.voices[i]
		if !v.active {
			continue
		}
		if v.kind == kindPitched {
			sig += v.renderPitched()
		} else {
			sig += v.renderDrum(e.sampleRate, &e.noise)
		}
		v.age++
	}
	sig *= e.masterGainValue()
	s := float32(clamp(sig, -1, 1))
	return s, s
}

// Process renders interleaved stereo into dst, for offline use.
func (e *Engine) Process(dst []float32) {
	for f := 0; f+1 < len(dst); f += 2 {
		dst[f], dst[f+1] = e.RenderFrame()
	}
}

func (e *Engine) drainAuditions() {
	for {
		select {
		case t := <-e.auditions:
			e.NoteOn(t)
		default:
			return
		}
	}
}

func (e *Engine) stealVoice() int {
	for i := range e.voices {
		if !e.voices[i].active {
			return i
		}
	}
	// All busy: steal the quietest voice.
	quiet := 0
	minLevel := e.voices[0].currentLevel()
	for i := 1; i < len(e.voices); i++ {
		if lvl := e.voices[i].currentLevel(); lvl < minLevel {
			minLevel = lvl
			quiet = i
		}
	}
	return quiet
}

func (v *voice) currentLevel() float64 {
	if v.kind == kindPitched {
		return v.env
	}
	return v.envLevel
}

func (e *Engine) ActiveVoiceCount() int {
	n := 0
	for i := range e.voices {
		if e.voices[i].active {
			n++
		}
	}
	return n
}

func (e *Engine) SetMasterGain(gain float64) {
	if gain < 0 {
		gain = 0
	}
	atomic.StoreUint64(&e.masterGain, math.Float64bits(gain))
}

func (e *Engine) masterGainValue() float64 {
	return math.Float64frombits(atomic.LoadUint64(&e.masterGain))
}
