package score

import (
	"errors"
	"math/big"
	"testing"

	"github.com/wavescore/wavescore/pkg/wavescore/rhythm"
)

func quarter(measure int, beat int64, hz float64) rhythm.QuantizedNote {
	return rhythm.QuantizedNote{
		Measure:       measure,
		BeatPosition:  big.NewRat(beat, 1),
		DurationBeats: big.NewRat(1, 1),
		PitchHz:       hz,
		Velocity:      64,
	}
}

// voiceBeats sums a voice's element durations.
func voiceBeats(v Voice) *big.Rat {
	sum := new(big.Rat)
	for _, el := range v.Elements {
		sum.Add(sum, el.DurationBeats)
	}
	return sum
}

func TestBuildTwoQuarterNotes(t *testing.T) {
	notes := []rhythm.QuantizedNote{
		quarter(1, 0, 440),    // A4
		quarter(1, 1, 523.25), // C5
	}

	doc, err := Build(notes, DefaultBuildConfig())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if len(doc.Parts) != 1 {
		t.Fatalf("Expected 1 part (no bass notes), got %d", len(doc.Parts))
	}
	part := doc.Parts[0]
	if part.Clef != "treble" {
		t.Errorf("Expected treble clef, got %s", part.Clef)
	}
	if len(part.Measures) != 1 {
		t.Fatalf("Expected 1 measure, got %d", len(part.Measures))
	}

	els := part.Measures[0].Voices[0].Elements
	// A4, C5, then rests filling beats 2-4
	if len(els) < 3 {
		t.Fatalf("Expected notes plus trailing rests, got %d elements", len(els))
	}
	if els[0].Rest || els[0].Pitch.Name() != "A4" {
		t.Errorf("First element: expected A4 note, got %+v", els[0])
	}
	if els[1].Rest || els[1].Pitch.Name() != "C5" {
		t.Errorf("Second element: expected C5 note, got %+v", els[1])
	}
	for i := 2; i < len(els); i++ {
		if !els[i].Rest {
			t.Errorf("Element %d: expected rest, got %+v", i, els[i])
		}
	}

	if doc.NoteCount() != 2 {
		t.Errorf("Expected 2 notes, got %d", doc.NoteCount())
	}
}

func TestBuildMeasuresAlwaysComplete(t *testing.T) {
	// A dotted-eighth pickup and a note landing mid-measure 2
	notes := []rhythm.QuantizedNote{
		{Measure: 1, BeatPosition: big.NewRat(3, 4), DurationBeats: big.NewRat(3, 4), PitchHz: 440, Velocity: 64},
		{Measure: 2, BeatPosition: big.NewRat(3, 2), DurationBeats: big.NewRat(1, 2), PitchHz: 330, Velocity: 50},
	}

	doc, err := Build(notes, DefaultBuildConfig())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	capacity := big.NewRat(4, 1)
	for _, part := range doc.Parts {
		for _, m := range part.Measures {
			for _, v := range m.Voices {
				if got := voiceBeats(v); got.Cmp(capacity) != 0 {
					t.Errorf("Part %s measure %d sums to %s beats, want 4", part.ID, m.Number, got.RatString())
				}
			}
		}
	}
}

func TestBuildTiesAcrossMeasure(t *testing.T) {
	// A note holding from beat 3 of measure 1 into measure 2
	notes := []rhythm.QuantizedNote{
		{Measure: 1, BeatPosition: big.NewRat(3, 1), DurationBeats: big.NewRat(2, 1), PitchHz: 440, Velocity: 64},
	}

	doc, err := Build(notes, DefaultBuildConfig())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	part := doc.Parts[0]
	if len(part.Measures) != 2 {
		t.Fatalf("Expected 2 measures, got %d", len(part.Measures))
	}

	var start, stop bool
	for _, m := range part.Measures {
		for _, el := range m.Voices[0].Elements {
			if el.Rest {
				continue
			}
			if el.TieStart {
				start = true
			}
			if el.TieStop {
				stop = true
			}
		}
	}
	if !start || !stop {
		t.Errorf("Expected a tie across the barline (start=%v stop=%v)", start, stop)
	}

	// Rests never carry ties
	for _, m := range part.Measures {
		for _, el := range m.Voices[0].Elements {
			if el.Rest && (el.TieStart || el.TieStop) {
				t.Error("Rest elements must not be tied")
			}
		}
	}
}

func TestBuildBassSplit(t *testing.T) {
	notes := []rhythm.QuantizedNote{
		quarter(1, 0, 440), // A4, MIDI 69
		quarter(1, 1, 110), // A2, MIDI 45
	}

	doc, err := Build(notes, DefaultBuildConfig())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if len(doc.Parts) != 2 {
		t.Fatalf("Expected treble and bass parts, got %d", len(doc.Parts))
	}
	if doc.Parts[0].Clef != "treble" || doc.Parts[1].Clef != "bass" {
		t.Errorf("Expected treble then bass, got %s then %s", doc.Parts[0].Clef, doc.Parts[1].Clef)
	}

	// Both parts span the same number of measures
	if len(doc.Parts[0].Measures) != len(doc.Parts[1].Measures) {
		t.Errorf("Parts disagree on measure count: %d vs %d",
			len(doc.Parts[0].Measures), len(doc.Parts[1].Measures))
	}
}

func TestBuildEmptyScore(t *testing.T) {
	doc, err := Build(nil, DefaultBuildConfig())
	if err != nil {
		t.Fatalf("Build failed on empty input: %v", err)
	}

	if doc.MeasureCount() != 1 {
		t.Errorf("Expected one all-rest measure, got %d", doc.MeasureCount())
	}
	if doc.NoteCount() != 0 {
		t.Errorf("Expected no notes, got %d", doc.NoteCount())
	}
}

func TestBuildSilenceCoversDuration(t *testing.T) {
	cfg := DefaultBuildConfig()
	cfg.MinBeats = big.NewRat(10, 1) // 10 beats of recorded silence

	doc, err := Build(nil, cfg)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	// 10 beats in 4/4 rounds up to 3 measures
	if doc.MeasureCount() != 3 {
		t.Errorf("Expected 3 rest measures for 10 beats, got %d", doc.MeasureCount())
	}
	if doc.NoteCount() != 0 {
		t.Errorf("Expected all rests, got %d notes", doc.NoteCount())
	}
}

func TestBuildOverlapRejected(t *testing.T) {
	notes := []rhythm.QuantizedNote{
		{Measure: 1, BeatPosition: big.NewRat(0, 1), DurationBeats: big.NewRat(2, 1), PitchHz: 440, Velocity: 64},
		{Measure: 1, BeatPosition: big.NewRat(1, 1), DurationBeats: big.NewRat(1, 1), PitchHz: 494, Velocity: 64},
	}

	if _, err := Build(notes, DefaultBuildConfig()); !errors.Is(err, ErrInvalidScoreState) {
		t.Errorf("Expected ErrInvalidScoreState for overlapping notes, got %v", err)
	}
}

func TestBuildThreeFour(t *testing.T) {
	cfg := DefaultBuildConfig()
	cfg.TimeSig = TimeSignature{BeatsPerMeasure: 3, BeatUnit: 4}

	notes := []rhythm.QuantizedNote{quarter(1, 0, 440)}
	doc, err := Build(notes, cfg)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	capacity := big.NewRat(3, 1)
	m := doc.Parts[0].Measures[0]
	if got := voiceBeats(m.Voices[0]); got.Cmp(capacity) != 0 {
		t.Errorf("3/4 measure sums to %s beats, want 3", got.RatString())
	}
}

func TestNoteValues(t *testing.T) {
	// Grid 16 in 4/4: unitsPerBeat = 4, whole note = 16 units
	values := noteValues(16, 4)

	if values[0] != 24 { // dotted whole
		t.Errorf("Expected largest value 24 (dotted whole), got %d", values[0])
	}
	last := values[0]
	for _, v := range values[1:] {
		if v >= last {
			t.Fatalf("Values not strictly descending: %v", values)
		}
		last = v
	}
	if values[len(values)-1] != 1 {
		t.Errorf("Smallest value must be one grid unit, got %d", values[len(values)-1])
	}
}

func TestBuildRejectsUnsupportedGrid(t *testing.T) {
	cfg := DefaultBuildConfig()
	cfg.GridSubdivision = 6

	notes := []rhythm.QuantizedNote{{
		Measure:       1,
		BeatPosition:  big.NewRat(0, 1),
		DurationBeats: big.NewRat(2, 3),
		PitchHz:       440,
		Velocity:      64,
	}}
	if _, err := Build(notes, cfg); !errors.Is(err, ErrUnsupportedGrid) {
		t.Errorf("Expected ErrUnsupportedGrid for subdivision 6, got %v", err)
	}
}

func TestBuildRejectsUnsupportedBeatUnit(t *testing.T) {
	cfg := DefaultBuildConfig()
	cfg.TimeSig = TimeSignature{BeatsPerMeasure: 4, BeatUnit: 3}

	if _, err := Build(nil, cfg); !errors.Is(err, ErrUnsupportedGrid) {
		t.Errorf("Expected ErrUnsupportedGrid for beat unit 3, got %v", err)
	}
}

func TestBuildRejectsOffGridDuration(t *testing.T) {
	notes := []rhythm.QuantizedNote{{
		Measure:       1,
		BeatPosition:  big.NewRat(0, 1),
		DurationBeats: big.NewRat(2, 3), // not a multiple of 1/4 beat
		PitchHz:       440,
		Velocity:      64,
	}}

	if _, err := Build(notes, DefaultBuildConfig()); !errors.Is(err, ErrInvalidScoreState) {
		t.Errorf("Expected ErrInvalidScoreState for a 2/3-beat duration on a sixteenth grid, got %v", err)
	}
}

func TestBuildSixEight(t *testing.T) {
	cfg := DefaultBuildConfig()
	cfg.TimeSig = TimeSignature{BeatsPerMeasure: 6, BeatUnit: 8}

	notes := []rhythm.QuantizedNote{quarter(1, 0, 440)} // one eighth-note beat
	doc, err := Build(notes, cfg)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	capacity := big.NewRat(6, 1)
	m := doc.Parts[0].Measures[0]
	if got := voiceBeats(m.Voices[0]); got.Cmp(capacity) != 0 {
		t.Errorf("6/8 measure sums to %s beats, want 6", got.RatString())
	}
	if doc.NoteCount() != 1 {
		t.Errorf("Expected 1 note, got %d", doc.NoteCount())
	}
}

func TestValidateCatchesShortMeasure(t *testing.T) {
	doc := &Document{
		TimeSig: TimeSignature{BeatsPerMeasure: 4, BeatUnit: 4},
		Parts: []Part{{
			ID: "P1",
			Measures: []Measure{{
				Number: 1,
				Voices: []Voice{{Number: 1, Elements: []Element{
					{Rest: true, DurationBeats: big.NewRat(3, 1)},
				}}},
			}},
		}},
	}

	if err := Validate(doc); !errors.Is(err, ErrInvalidScoreState) {
		t.Errorf("Expected ErrInvalidScoreState for 3-beat measure, got %v", err)
	}
}
