package tonecraft

import (
	"encoding/binary"
	"math"

	"github.com/ahlgreen/tonecraft/internal/arrange"
	"github.com/ahlgreen/tonecraft/internal/synth"
	"github.com/ahlgreen/tonecraft/internal/timebase"
	"github.com/ahlgreen/tonecraft/internal/transport"
)

// RenderArrangement renders an arrangement offline to interleaved stereo
// float32 samples. With seconds <= 0 it renders exactly one loop plus a
// two second tail so releases ring out.
func RenderArrangement(a *arrange.Arrangement, sampleRate int, seconds float64) []float32 {
	if seconds <= 0 {
		seconds = timebase.BeatToSeconds(a.LengthBeats(), a.BPM) + 2
	}
	engine := synth.New(sampleRate, synth.DefaultParams())
	tr := transport.New(sampleRate, engine)
	tr.SetArrangement(a)
	tr.Play()
	out := make([]float32, int(float64(sampleRate)*seconds)*2)
	tr.Process(out)
	return out
}

// EncodeWAVFloat32LE wraps samples in a WAV container (IEEE float
// format, little endian).
func EncodeWAVFloat32LE(samples []float32, sampleRate, channels int) []byte {
	dataSize := len(samples) * 4
	out := make([]byte, 44+dataSize)
	copy(out[0:], "RIFF")
	binary.LittleEndian.PutUint32(out[4:], uint32(36+dataSize))
	copy(out[8:], "WAVE")
	copy(out[12:], "fmt ")
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 3) // IEEE float
	binary.LittleEndian.PutUint16(out[22:], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(sampleRate*channels*4))
	binary.LittleEndian.PutUint16(out[32:], uint16(channels*4))
	binary.LittleEndian.PutUint16(out[34:], 32)
	copy(out[36:], "data")
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[44+i*4:], math.Float32bits(s))
	}
	return out
}
