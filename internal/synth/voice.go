package synth

import "math"

// DrumVoice identifies one of the fixed percussion recipes. The numeric
// values follow the general MIDI percussion convention the arrangements
// were written against, but membership is explicit: codes outside the map
// fall back to a generic tone instead of being guessed from ranges.
type DrumVoice int

const (
	DrumKick      DrumVoice = 36
	DrumSnare     DrumVoice = 38
	DrumClosedHat DrumVoice = 42
	DrumLowTom    DrumVoice = 45
	DrumOpenHat   DrumVoice = 46
	DrumCrash     DrumVoice = 49
	DrumHighTom   DrumVoice = 50
	DrumRide      DrumVoice = 51
)

// DrumVoices lists the mapped percussion codes in kit order.
var DrumVoices = []DrumVoice{
	DrumKick, DrumSnare, DrumClosedHat, DrumOpenHat,
	DrumCrash, DrumRide, DrumLowTom, DrumHighTom,
}

func (d DrumVoice) String() string {
	switch d {
	case DrumKick:
		return "kick"
	case DrumSnare:
		return "snare"
	case DrumClosedHat:
		return "closed-hat"
	case DrumOpenHat:
		return "open-hat"
	case DrumCrash:
		return "crash"
	case DrumRide:
		return "ride"
	case DrumLowTom:
		return "low-tom"
	case DrumHighTom:
		return "high-tom"
	}
	return "tone"
}

// Mapped reports whether the code has a dedicated recipe.
func (d DrumVoice) Mapped() bool {
	switch d {
	case DrumKick, DrumSnare, DrumClosedHat, DrumOpenHat,
		DrumCrash, DrumRide, DrumLowTom, DrumHighTom:
		return true
	}
	return false
}

type voiceKind int

const (
	kindPitched voiceKind = iota
	kindKick
	kindSnare
	kindClosedHat
	kindOpenHat
	kindCrash
	kindRide
	kindLowTom
	kindHighTom
	kindFallback
)

type envStage int

const (
	stageAttack envStage = iota
	stageDecay
	stageSustain
	stageRelease
	stageOff
)

// partial is one sinusoidal component of the pitched recipe.
type partial struct {
	phase float64
	inc   float64 // radians per sample
	amp   float64
	level float64 // per-partial decay state, starts at 1
	decay float64 // per-sample multiplier on level
}

type voice struct {
	active bool
	id     int
	kind   voiceKind
	vel    float64

	age    int
	length int // hard stop in samples (drums and fallback)

	// Pitched envelope state.
	stage       envStage
	env         float64
	attackStep  float64
	decayCoef   float64
	sustain     float64
	releaseCoef float64
	holdSamples int
	partials    [4]partial

	// Oscillator state shared by the drum recipes.
	phase, phase2   float64
	freqBase        float64 // sweep floor in Hz
	freqOffset      float64 // decaying distance above the floor
	sweepCoef       float64
	envLevel        float64
	envCoef         float64
	toneLevel       float64
	toneCoef        float64
	toneInc         float64
	tone2Inc        float64
	hp              onePole
	bp              svFilter
	noiseAmp        float64
	toneAmp         float64
}

const silenceFloor = 1e-4

// initPitched configures the layered pitched-instrument recipe: the
// fundamental, a slightly detuned second harmonic, a fast-decaying third
// harmonic, and a very short inharmonic attack transient. Higher pitches
// come in quieter and with faster harmonic decay.
func (v *voice) initPitched(sampleRate float64, pitch int, velocity int, durationSec float64) {
	freq := midiToFreq(pitch)
	above := float64(pitch - 60)
	if above < 0 {
		above = 0
	}
	atten := math.Pow(2, -above/18.0)
	decayScale := 1.0 + above/12.0

	v.kind = kindPitched
	v.vel = (0.25 + 0.75*clamp(float64(velocity)/127.0, 0, 1)) * atten

	set := func(i int, mul, amp, tauSec float64) {
		p := &v.partials[i]
		p.phase = 0
		p.inc = twoPi * freq * mul / sampleRate
		p.amp = amp
		p.level = 1
		if tauSec <= 0 {
			p.decay = 1
		} else {
			p.decay = math.Exp(-1.0 / (tauSec * sampleRate))
		}
	}
	set(0, 1.0, 1.0, 0)
	set(1, 2.003, 0.45, 0.5/decayScale)
	set(2, 3.0, 0.22, 0.12/decayScale)
	set(3, 6.27, 0.35, 0.008)

	v.stage = stageAttack
	v.env = 0
	v.attackStep = 1.0 / (0.005 * sampleRate)
	v.decayCoef = math.Exp(-1.0 / (0.13 * sampleRate))
	v.sustain = 0.6
	v.holdSamples = int(durationSec * sampleRate)

	// Release is at most 1.5 s, and long enough that the note sounds for
	// at least 1 s in total.
	releaseSec := 1.0 - durationSec
	if releaseSec < 0.3 {
		releaseSec = 0.3
	}
	if releaseSec > 1.5 {
		releaseSec = 1.5
	}
	v.releaseCoef = math.Exp(-6.0 / (releaseSec * sampleRate))
	v.length = v.holdSamples + int((releaseSec+0.1)*sampleRate)
}

func (v *voice) renderPitched() float64 {
	switch v.stage {
	case stageAttack:
		v.env += v.attackStep
		if v.env >= 1 {
			v.env = 1
			v.stage = stageDecay
		}
	case stageDecay:
		v.env = v.sustain + (v.env-v.sustain)*v.decayCoef
		if v.env-v.sustain < 0.01 {
			v.stage = stageSustain
		}
	case stageSustain:
		// Hold at the plateau until the nominal duration elapses.
	case stageRelease:
		v.env *= v.releaseCoef
		if v.env < silenceFloor {
			v.stage = stageOff
			v.active = false
			return 0
		}
	case stageOff:
		v.active = false
		return 0
	}
	if v.stage != stageRelease && v.age >= v.holdSamples {
		v.stage = stageRelease
	}

	var sig float64
	for i := range v.partials {
		p := &v.partials[i]
		sig += math.Sin(p.phase) * p.amp * p.level
		p.phase += p.inc
		if p.phase > twoPi {
			p.phase -= twoPi
		}
		p.level *= p.decay
	}
	return sig * v.env * v.vel * 0.5
}

func expCoef(tauSec, sampleRate float64) float64 {
	return math.Exp(-1.0 / (tauSec * sampleRate))
}

func (v *voice) initDrum(sampleRate float64, code int, velocity int) {
	v.vel = 0.25 + 0.75*clamp(float64(velocity)/127.0, 0, 1)
	v.envLevel = 1
	switch DrumVoice(code) {
	case DrumKick:
		v.kind = kindKick
		v.freqBase = 50
		v.freqOffset = 100 // sweeps 150 -> 50 Hz
		v.sweepCoef = expCoef(0.06, sampleRate)
		v.envCoef = expCoef(0.08, sampleRate)
		v.length = int(0.3 * sampleRate)
	case DrumSnare:
		v.kind = kindSnare
		v.hp = newOnePole(sampleRate, 1800)
		v.envCoef = expCoef(0.05, sampleRate)
		v.noiseAmp = 0.8
		v.toneInc = twoPi * 185 / sampleRate
		v.toneLevel = 1
		v.toneCoef = expCoef(0.03, sampleRate)
		v.toneAmp = 0.5
		v.length = int(0.18 * sampleRate)
	case DrumClosedHat:
		v.kind = kindClosedHat
		v.bp = newSVFilter(sampleRate, 8000, 6)
		v.envCoef = expCoef(0.012, sampleRate)
		v.noiseAmp = 0.7
		v.length = int(0.05 * sampleRate)
	case DrumOpenHat:
		v.kind = kindOpenHat
		v.bp = newSVFilter(sampleRate, 7500, 1.5)
		v.envCoef = expCoef(0.09, sampleRate)
		v.noiseAmp = 0.55
		v.length = int(0.3 * sampleRate)
	case DrumCrash:
		v.kind = kindCrash
		v.hp = newOnePole(sampleRate, 5000)
		v.envCoef = expCoef(0.45, sampleRate)
		v.noiseAmp = 0.6
		v.length = int(1.4 * sampleRate)
	case DrumRide:
		v.kind = kindRide
		v.toneInc = twoPi * 547 / sampleRate
		v.tone2Inc = twoPi * 823.6 / sampleRate
		v.envCoef = expCoef(0.25, sampleRate)
		v.length = int(0.8 * sampleRate)
	case DrumLowTom:
		v.kind = kindLowTom
		v.freqBase = 75
		v.freqOffset = 45 // 120 -> 75 Hz
		v.sweepCoef = expCoef(0.1, sampleRate)
		v.envCoef = expCoef(0.12, sampleRate)
		v.length = int(0.45 * sampleRate)
	case DrumHighTom:
		v.kind = kindHighTom
		v.freqBase = 140
		v.freqOffset = 80 // 220 -> 140 Hz
		v.sweepCoef = expCoef(0.08, sampleRate)
		v.envCoef = expCoef(0.09, sampleRate)
		v.length = int(0.3 * sampleRate)
	default:
		// Unmapped code: generic short tone so every code makes a sound.
		v.kind = kindFallback
		v.freqBase = 60 + 8*float64(code)
		v.envCoef = expCoef(0.06, sampleRate)
		v.length = int(0.2 * sampleRate)
	}
}

func (v *voice) renderDrum(sampleRate float64, noise *noiseGen) float64 {
	if v.age >= v.length {
		v.active = false
		return 0
	}
	var sig float64
	switch v.kind {
	case kindKick, kindLowTom, kindHighTom, kindFallback:
		freq := v.freqBase + v.freqOffset
		v.freqOffset *= v.sweepCoef
		v.phase += twoPi * freq / sampleRate
		if v.phase > twoPi {
			v.phase -= twoPi
		}
		sig = math.Sin(v.phase) * v.envLevel
		v.envLevel *= v.envCoef
	case kindSnare:
		sig = v.hp.highpass(noise.next()) * v.envLevel * v.noiseAmp
		sig += math.Sin(v.phase) * v.toneLevel * v.toneAmp
		v.phase += v.toneInc
		if v.phase > twoPi {
			v.phase -= twoPi
		}
		v.envLevel *= v.envCoef
		v.toneLevel *= v.toneCoef
	case kindClosedHat, kindOpenHat:
		sig = v.bp.bandpass(noise.next()) * v.envLevel * v.noiseAmp
		v.envLevel *= v.envCoef
	case kindCrash:
		sig = v.hp.highpass(noise.next()) * v.envLevel * v.noiseAmp
		v.envLevel *= v.envCoef
	case kindRide:
		sig = (math.Sin(v.phase) + 0.7*math.Sin(v.phase2)) * v.envLevel * 0.4
		v.phase += v.toneInc
		v.phase2 += v.tone2Inc
		if v.phase > twoPi {
			v.phase -= twoPi
		}
		if v.phase2 > twoPi {
			v.phase2 -= twoPi
		}
		v.envLevel *= v.envCoef
	}
	return sig * v.vel
}

func midiToFreq(note int) float64 {
	return 440 * math.Pow(2, float64(note-69)/12)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
