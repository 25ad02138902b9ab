// Command tonecraft plays a demo arrangement (or one loaded from a
// store file) with a live terminal playhead and keyboard transport
// control. It doubles as an offline renderer via -render and -midi.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/eiannone/keyboard"
	"github.com/gosuri/uilive"

	"github.com/ahlgreen/tonecraft"
	"github.com/ahlgreen/tonecraft/internal/arrange"
	"github.com/ahlgreen/tonecraft/internal/midifile"
	"github.com/ahlgreen/tonecraft/internal/store"
	"github.com/ahlgreen/tonecraft/internal/synth"
	"github.com/ahlgreen/tonecraft/internal/transport"
)

func main() {
	var (
		sampleRate = flag.Int("sample-rate", 48000, "output sample rate")
		storePath  = flag.String("store", "", "path to an arrangement store file")
		loadID     = flag.String("load", "", "arrangement id to load from the store")
		list       = flag.Bool("list", false, "list stored arrangements and exit")
		renderPath = flag.String("render", "", "render to a WAV file instead of playing")
		midiPath   = flag.String("midi", "", "export to a MIDI file instead of playing")
		seconds    = flag.Float64("seconds", 0, "render length in seconds (0 = one loop)")
		volume     = flag.Float64("volume", 1.0, "master volume scalar")
	)
	flag.Parse()

	var st *store.Store
	if *storePath != "" {
		st = store.NewFileStore(*storePath)
	}

	if *list {
		if st == nil {
			log.Fatal("-list requires -store")
		}
		entries, err := st.List()
		if err != nil {
			log.Fatal(err)
		}
		for _, e := range entries {
			fmt.Printf("%s  %-24s %s\n", e.ID, e.Name, e.UpdatedAt.Format(time.RFC3339))
		}
		return
	}

	a, err := resolveArrangement(st, *loadID)
	if err != nil {
		log.Fatal(err)
	}

	if *midiPath != "" {
		if err := midifile.WriteFile(a, *midiPath); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("wrote %s\n", *midiPath)
		return
	}

	if *renderPath != "" {
		samples := tonecraft.RenderArrangement(a, *sampleRate, *seconds)
		wav := tonecraft.EncodeWAVFloat32LE(samples, *sampleRate, 2)
		if err := os.WriteFile(*renderPath, wav, 0o644); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("wrote %s (%.1fs)\n", *renderPath, float64(len(samples)/2)/float64(*sampleRate))
		return
	}

	opts := []tonecraft.StudioOption{}
	if st != nil {
		opts = append(opts, tonecraft.WithStore(st))
	}
	s, err := tonecraft.NewStudio(*sampleRate, opts...)
	if err != nil {
		log.Fatal(err)
	}
	defer s.Close()

	s.UseArrangement(a)
	s.SetMasterVolume(*volume)
	s.PlayPause()

	if err := runUI(s); err != nil {
		log.Fatal(err)
	}
}

// resolveArrangement loads the requested arrangement or falls back to
// the built-in demo.
func resolveArrangement(st *store.Store, id string) (*arrange.Arrangement, error) {
	if id == "" {
		return demoArrangement()
	}
	if st == nil {
		return nil, fmt.Errorf("-load requires -store")
	}
	return st.Load(id)
}

// runUI drives the live playhead display and keyboard transport until
// the user quits.
func runUI(s *tonecraft.Studio) error {
	if err := keyboard.Open(); err != nil {
		return err
	}
	defer keyboard.Close()

	writer := uilive.New()
	writer.Start()
	defer writer.Stop()

	keys := make(chan rune, 4)
	quit := make(chan struct{})
	go func() {
		for {
			char, key, err := keyboard.GetKey()
			if err != nil {
				close(quit)
				return
			}
			switch key {
			case keyboard.KeyEsc, keyboard.KeyCtrlC:
				close(quit)
				return
			case keyboard.KeySpace:
				char = ' '
			}
			keys <- char
		}
	}()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-quit:
			fmt.Fprintln(writer, "bye")
			return nil
		case char := <-keys:
			switch char {
			case ' ':
				s.PlayPause()
			case 's':
				s.Stop()
			case '+', '=':
				_ = s.SetBPM(s.Arrangement().BPM + 5)
			case '-', '_':
				_ = s.SetBPM(s.Arrangement().BPM - 5)
			case 'q':
				fmt.Fprintln(writer, "bye")
				return nil
			}
		case <-ticker.C:
			fmt.Fprint(writer, statusLine(s))
		}
	}
}

func statusLine(s *tonecraft.Studio) string {
	a := s.Arrangement()
	total := a.Bars * a.TimeSignature.BeatsPerBar * transport.StepsPerBeat
	step := s.CurrentStep()

	var b strings.Builder
	fmt.Fprintf(&b, "%s  %d BPM  %d bars\n", a.Name, a.BPM, a.Bars)
	state := "stopped"
	if s.Playing() {
		state = "playing"
	}
	fmt.Fprintf(&b, "[%s] ", state)
	for i := 0; i < total; i++ {
		if i == step {
			b.WriteString("|")
		} else if i%transport.StepsPerBeat == 0 {
			b.WriteString("+")
		} else {
			b.WriteString("-")
		}
	}
	b.WriteString("\n")
	b.WriteString("space play/pause  s stop  +/- tempo  q quit\n")
	return b.String()
}

// demoArrangement is a small four-bar groove touching every lane type.
func demoArrangement() (*arrange.Arrangement, error) {
	a := arrange.New("Demo Groove")
	a, err := a.WithBars(4)
	if err != nil {
		return nil, err
	}

	melodyID := a.Lanes[0].ID
	melody := []arrange.Note{
		arrange.NewNote(72, 0, 0.5),
		arrange.NewNote(76, 1, 0.5),
		arrange.NewNote(79, 2, 1),
		arrange.NewNote(76, 3.5, 0.5),
		arrange.NewNote(74, 4, 1),
		arrange.NewNote(72, 6, 2),
		arrange.NewNote(72, 8, 0.5),
		arrange.NewNote(74, 9, 0.5),
		arrange.NewNote(76, 10, 1.5),
		arrange.NewNote(79, 12, 2),
		arrange.NewNote(77, 14, 2),
	}
	if a, err = a.WithLaneNotes(melodyID, melody); err != nil {
		return nil, err
	}

	a, drumsID, err := a.WithLaneAdded(arrange.LaneDrums, "Drums")
	if err != nil {
		return nil, err
	}
	var drums []arrange.Note
	for bar := 0; bar < 4; bar++ {
		base := float64(bar * 4)
		drums = append(drums,
			arrange.NewNote(int(synth.DrumKick), base, 0.25),
			arrange.NewNote(int(synth.DrumKick), base+2.5, 0.25),
			arrange.NewNote(int(synth.DrumSnare), base+1, 0.25),
			arrange.NewNote(int(synth.DrumSnare), base+3, 0.25),
		)
		for eighth := 0; eighth < 8; eighth++ {
			drums = append(drums, arrange.NewNote(int(synth.DrumClosedHat), base+float64(eighth)*0.5, 0.25))
		}
	}
	drums = append(drums, arrange.NewNote(int(synth.DrumCrash), 0, 0.25))
	if a, err = a.WithLaneNotes(drumsID, drums); err != nil {
		return nil, err
	}

	a, chordsID, err := a.WithLaneAdded(arrange.LaneChord, "Chords")
	if err != nil {
		return nil, err
	}
	chord := func(root int, beat float64, intervals ...int) []arrange.Note {
		notes := make([]arrange.Note, 0, len(intervals))
		for _, iv := range intervals {
			notes = append(notes, arrange.NewNote(root+iv, beat, 2))
		}
		return notes
	}
	var chords []arrange.Note
	chords = append(chords, chord(48, 0, 0, 4, 7)...)   // C
	chords = append(chords, chord(55, 4, 0, 4, 7)...)   // G
	chords = append(chords, chord(57, 8, 0, 3, 7)...)   // Am
	chords = append(chords, chord(53, 12, 0, 4, 7)...)  // F
	if a, err = a.WithLaneNotes(chordsID, chords); err != nil {
		return nil, err
	}
	return a, nil
}
