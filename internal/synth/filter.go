package synth

import "math"

// onePole is a one-pole filter usable in low-pass or high-pass form.
// Same RC/alpha formulation as a simple analog RC stage.
type onePole struct {
	alpha float64
	state float64
}

func newOnePole(sampleRate float64, cutoffHz float64) onePole {
	rc := 1.0 / (twoPi * cutoffHz)
	dt := 1.0 / sampleRate
	return onePole{alpha: dt / (rc + dt)}
}

func (f *onePole) lowpass(x float64) float64 {
	f.state += f.alpha * (x - f.state)
	return f.state
}

func (f *onePole) highpass(x float64) float64 {
	f.state += f.alpha * (x - f.state)
	return x - f.state
}

// svFilter is a Chamberlin state-variable filter. Only the band-pass
// output is used; Q sets how narrow the band is.
type svFilter struct {
	f    float64
	q    float64
	low  float64
	band float64
}

func newSVFilter(sampleRate, centerHz, q float64) svFilter {
	if centerHz > sampleRate/4 {
		// Chamberlin form goes unstable near Nyquist; clamp the tuning.
		centerHz = sampleRate / 4
	}
	return svFilter{
		f: 2 * math.Sin(math.Pi*centerHz/sampleRate),
		q: 1.0 / q,
	}
}

func (f *svFilter) bandpass(x float64) float64 {
	f.low += f.f * f.band
	high := x - f.low - f.q*f.band
	f.band += f.f * high
	return f.band
}

// noiseGen is a 15-bit LFSR, the same generator the chip-style engines use.
type noiseGen struct {
	lfsr uint32
}

func newNoiseGen() noiseGen {
	return noiseGen{lfsr: 0x7FFF}
}

func (n *noiseGen) next() float64 {
	n.lfsr = (n.lfsr >> 1) ^ (-(n.lfsr & 1) & 0xB400)
	return float64(n.lfsr)/float64(0x7FFF)*2.0 - 1.0
}
