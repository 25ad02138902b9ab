package timebase

import (
	"math"
	"testing"
)

func TestStepDuration(t *testing.T) {
	cases := []struct {
		sub  Subdivision
		want float64
	}{
		{Quarter, 1.0},
		{Eighth, 0.5},
		{Sixteenth, 0.25},
		{ThirtySecond, 0.125},
	}
	for _, c := range cases {
		if got := StepDuration(c.sub); got != c.want {
			t.Errorf("StepDuration(%v) = %v, want %v", c.sub, got, c.want)
		}
	}
}

func TestBeatToSeconds(t *testing.T) {
	cases := []struct {
		beat float64
		bpm  int
		want float64
	}{
		{1, 60, 1.0},
		{4, 120, 2.0},
		{0, 120, 0},
		{2, 90, 4.0 / 3.0},
	}
	for _, c := range cases {
		if got := BeatToSeconds(c.beat, c.bpm); math.Abs(got-c.want) > 1e-9 {
			t.Errorf("BeatToSeconds(%v, %d) = %v, want %v", c.beat, c.bpm, got, c.want)
		}
	}
}

func TestSecondsToBeatRoundTrip(t *testing.T) {
	for _, bpm := range []int{40, 120, 300} {
		beat := 3.25
		sec := BeatToSeconds(beat, bpm)
		if got := SecondsToBeat(sec, bpm); math.Abs(got-beat) > 1e-9 {
			t.Errorf("round trip at %d bpm: got %v, want %v", bpm, got, beat)
		}
	}
}

func TestTotalSteps(t *testing.T) {
	cases := []struct {
		bars, beats int
		sub         Subdivision
		want        int
	}{
		{1, 4, Sixteenth, 16},
		{4, 4, Sixteenth, 64},
		{2, 3, Eighth, 12},
		{16, 4, ThirtySecond, 512},
	}
	for _, c := range cases {
		if got := TotalSteps(c.bars, c.beats, c.sub); got != c.want {
			t.Errorf("TotalSteps(%d, %d, %v) = %d, want %d", c.bars, c.beats, c.sub, got, c.want)
		}
	}
}

func TestSubdivisionValid(t *testing.T) {
	for _, sub := range Subdivisions {
		if !sub.Valid() {
			t.Errorf("%v should be valid", sub)
		}
	}
	if Subdivision(3).Valid() {
		t.Error("3 steps/beat should not be valid")
	}
}
