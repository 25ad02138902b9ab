// Package audio bridges a float32 sample source to the platform audio
// device. The device context is created once per process and shared; a
// second output at a different sample rate is refused rather than
// resampled.
package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// Source produces interleaved stereo float32 frames. Process is called
// from the audio driver's goroutine and must not block.
type Source interface {
	Process(dst []float32)
}

// stream adapts a Source to the io.Reader the driver consumes:
// little-endian float32 stereo frames, 8 bytes per frame.
type stream struct {
	mu     sync.Mutex
	source Source
	buf    []float32
}

func (s *stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frames := len(p) / 8
	if frames == 0 {
		return 0, nil
	}
	need := frames * 2
	if cap(s.buf) < need {
		s.buf = make([]float32, need)
	}
	s.buf = s.buf[:need]
	s.source.Process(s.buf)
	for i := 0; i < need; i++ {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(s.buf[i]))
	}
	return frames * 8, nil
}

var (
	contextOnce sync.Once
	context     *ebitaudio.Context
	contextRate int
)

func sharedContext(sampleRate int) (*ebitaudio.Context, error) {
	contextOnce.Do(func() {
		contextRate = sampleRate
		context = ebitaudio.NewContext(sampleRate)
	})
	if contextRate != sampleRate {
		return nil, fmt.Errorf("audio device already opened at %d Hz (requested %d Hz)", contextRate, sampleRate)
	}
	return context, nil
}

// Output owns one device player fed by a Source. The source keeps
// producing for as long as the output is open; silence is the source's
// business, not the output's.
type Output struct {
	player *ebitaudio.Player
}

func NewOutput(sampleRate int, source Source) (*Output, error) {
	ctx, err := sharedContext(sampleRate)
	if err != nil {
		return nil, err
	}
	pl, err := ctx.NewPlayerF32(&stream{source: source})
	if err != nil {
		return nil, err
	}
	return &Output{player: pl}, nil
}

func (o *Output) Start() { o.player.Play() }
func (o *Output) Pause() { o.player.Pause() }

func (o *Output) Running() bool { return o.player.IsPlaying() }

// Position reports how much audio the listener has actually heard.
func (o *Output) Position() time.Duration { return o.player.Position() }

func (o *Output) Close() error {
	o.player.Pause()
	return o.player.Close()
}
