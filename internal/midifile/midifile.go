// Package midifile exports arrangements as standard MIDI files so a
// sketch can move on to a DAW. One SMF track per lane; drums land on
// MIDI channel 10 where their codes double as General MIDI percussion.
package midifile

import (
	"sort"

	"github.com/pkg/errors"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/ahlgreen/tonecraft/internal/arrange"
)

const ticksPerBeat = 960

const drumChannel = 9 // channel 10 in 1-based MIDI speak

// event is one note edge at an absolute tick position. Ons sort before
// offs at the same tick only by the off-first rule below.
type event struct {
	tick uint32
	off  bool
	key  uint8
	vel  uint8
}

// Export builds the SMF document for an arrangement. Muted lanes and
// lanes silenced by another lane's solo are left out, matching what
// playback would have sounded like.
func Export(a *arrange.Arrangement) (*smf.SMF, error) {
	sm := smf.New()
	sm.TimeFormat = smf.MetricTicks(ticksPerBeat)

	var meta smf.Track
	meta.Add(0, smf.MetaTrackSequenceName(a.Name))
	meta.Add(0, smf.MetaMeter(uint8(a.TimeSignature.BeatsPerBar), uint8(a.TimeSignature.BeatUnit)))
	meta.Add(0, smf.MetaTempo(float64(a.BPM)))
	meta.Close(0)
	if err := sm.Add(meta); err != nil {
		return nil, errors.Wrap(err, "add tempo track")
	}

	for i := range a.Lanes {
		lane := &a.Lanes[i]
		if !a.Audible(lane) {
			continue
		}
		ch := uint8(i % 16)
		if lane.Type == arrange.LaneDrums {
			ch = drumChannel
		} else if ch == drumChannel {
			ch++
		}

		events := make([]event, 0, 2*len(lane.Notes))
		for _, n := range lane.Notes {
			if n.Pitch < 0 || n.Pitch > 127 {
				// The model does not bound pitch; keys outside the MIDI
				// range cannot be represented, so leave them out.
				continue
			}
			on := uint32(n.StartBeat * ticksPerBeat)
			off := uint32((n.StartBeat + n.Duration) * ticksPerBeat)
			if off <= on {
				off = on + 1
			}
			v := n.Velocity
			if v <= 0 {
				v = arrange.DefaultVelocity
			}
			if v > 127 {
				v = 127
			}
			vel := uint8(v)
			events = append(events,
				event{tick: on, key: uint8(n.Pitch), vel: vel},
				event{tick: off, off: true, key: uint8(n.Pitch)},
			)
		}
		// Offs precede ons at the same tick so retriggered pitches do not
		// cancel themselves.
		sort.Slice(events, func(x, y int) bool {
			if events[x].tick != events[y].tick {
				return events[x].tick < events[y].tick
			}
			return events[x].off && !events[y].off
		})

		var track smf.Track
		track.Add(0, smf.MetaTrackSequenceName(lane.Name))
		var at uint32
		for _, ev := range events {
			delta := ev.tick - at
			at = ev.tick
			if ev.off {
				track.Add(delta, midi.NoteOff(ch, ev.key))
			} else {
				track.Add(delta, midi.NoteOn(ch, ev.key, ev.vel))
			}
		}
		end := uint32(a.LengthBeats() * ticksPerBeat)
		if end > at {
			track.Close(end - at)
		} else {
			track.Close(0)
		}
		if err := sm.Add(track); err != nil {
			return nil, errors.Wrapf(err, "add track for lane %s", lane.Name)
		}
	}
	return sm, nil
}

// WriteFile exports the arrangement to path as a type-1 MIDI file.
func WriteFile(a *arrange.Arrangement, path string) error {
	sm, err := Export(a)
	if err != nil {
		return err
	}
	return errors.Wrapf(sm.WriteFile(path), "write midi file %s", path)
}
