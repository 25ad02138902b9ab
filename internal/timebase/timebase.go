// Package timebase converts between beats, grid steps, and wall-clock
// seconds for a given tempo and time signature. All functions are pure.
package timebase

// Subdivision is the active grid resolution in steps per beat.
type Subdivision int

const (
	Quarter      Subdivision = 1
	Eighth       Subdivision = 2
	Sixteenth    Subdivision = 4
	ThirtySecond Subdivision = 8
)

// Subdivisions lists the supported grid resolutions in display order.
var Subdivisions = []Subdivision{Quarter, Eighth, Sixteenth, ThirtySecond}

func (s Subdivision) Valid() bool {
	switch s {
	case Quarter, Eighth, Sixteenth, ThirtySecond:
		return true
	}
	return false
}

func (s Subdivision) String() string {
	switch s {
	case Quarter:
		return "1/4"
	case Eighth:
		return "1/8"
	case Sixteenth:
		return "1/16"
	case ThirtySecond:
		return "1/32"
	}
	return "?"
}

// StepDuration returns the length of one grid step in beats.
func StepDuration(sub Subdivision) float64 {
	return 1.0 / float64(sub)
}

// BeatToSeconds converts a beat offset to seconds at the given tempo.
func BeatToSeconds(beat float64, bpm int) float64 {
	return beat * 60.0 / float64(bpm)
}

// SecondsToBeat converts seconds to a beat offset at the given tempo.
func SecondsToBeat(sec float64, bpm int) float64 {
	return sec * float64(bpm) / 60.0
}

// TotalSteps returns the number of grid steps in an arrangement of the
// given length at the given subdivision.
func TotalSteps(bars, beatsPerBar int, sub Subdivision) int {
	return bars * beatsPerBar * int(sub)
}

// StepToBeat returns the beat offset of a step index at the given subdivision.
func StepToBeat(step int, sub Subdivision) float64 {
	return float64(step) * StepDuration(sub)
}
