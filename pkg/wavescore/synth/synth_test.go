package synth

import (
	"math"
	"math/big"
	"testing"

	"github.com/wavescore/wavescore/pkg/wavescore/rhythm"
	"github.com/wavescore/wavescore/pkg/wavescore/score"
)

func buildDoc(t *testing.T, notes []rhythm.QuantizedNote) *score.Document {
	t.Helper()
	doc, err := score.Build(notes, score.DefaultBuildConfig())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return doc
}

func qn(measure int, beat int64, hz float64, vel int) rhythm.QuantizedNote {
	return rhythm.QuantizedNote{
		Measure:       measure,
		BeatPosition:  big.NewRat(beat, 1),
		DurationBeats: big.NewRat(1, 1),
		PitchHz:       hz,
		Velocity:      vel,
	}
}

func TestRenderDuration(t *testing.T) {
	// One 4/4 measure at 120 BPM is 2 seconds
	doc := buildDoc(t, []rhythm.QuantizedNote{qn(1, 0, 440, 100)})

	w, err := Render(doc, 22050)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	if w.SampleRate != 22050 {
		t.Errorf("Expected sample rate 22050, got %d", w.SampleRate)
	}
	wantDur := 2.0
	if w.Duration() < wantDur || w.Duration() > wantDur+0.2 {
		t.Errorf("Expected duration ~%gs (plus release tail), got %gs", wantDur, w.Duration())
	}
}

func TestRenderPeakBounded(t *testing.T) {
	// Stack notes to force the mix over the normalization target
	doc := buildDoc(t, []rhythm.QuantizedNote{
		qn(1, 0, 440, 127),
		qn(1, 0, 110, 127), // bass part sounds simultaneously
	})

	w, err := Render(doc, 22050)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	for i, s := range w.Samples {
		if math.Abs(s) > 0.95+1e-9 {
			t.Fatalf("Sample %d exceeds normalization target: %g", i, s)
		}
	}
}

func TestRenderNoteIsAudible(t *testing.T) {
	doc := buildDoc(t, []rhythm.QuantizedNote{qn(1, 0, 440, 100)})

	w, err := Render(doc, 22050)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	// RMS over the sounding part (first 0.5s) must be clearly nonzero
	n := 11025
	var sum float64
	for _, s := range w.Samples[:n] {
		sum += s * s
	}
	rms := math.Sqrt(sum / float64(n))
	if rms < 0.05 {
		t.Errorf("Expected audible note, got RMS %g", rms)
	}

	// The trailing rest beats should be near-silent
	tail := w.Samples[len(w.Samples)-n:]
	sum = 0
	for _, s := range tail {
		sum += s * s
	}
	if rms := math.Sqrt(sum / float64(n)); rms > 0.01 {
		t.Errorf("Expected silence after the note, got RMS %g", rms)
	}
}

func TestRenderSilentScore(t *testing.T) {
	doc := buildDoc(t, nil)

	w, err := Render(doc, 22050)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	if w.Duration() < 2.0 {
		t.Errorf("A rest-only measure must still take its full time, got %gs", w.Duration())
	}
	for i, s := range w.Samples {
		if s != 0 {
			t.Fatalf("Sample %d of a silent score is nonzero: %g", i, s)
		}
	}
}

func TestRenderTiedNoteContinuous(t *testing.T) {
	// A note tied across the barline should not decay to zero at the barline
	doc := buildDoc(t, []rhythm.QuantizedNote{
		{Measure: 1, BeatPosition: big.NewRat(3, 1), DurationBeats: big.NewRat(2, 1), PitchHz: 440, Velocity: 100},
	})

	w, err := Render(doc, 22050)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	// Barline is at beat 4 = 2.0s; check RMS in a 50ms window around it
	sampleRate := 22050
	center := 2 * sampleRate
	half := sampleRate / 40
	var sum float64
	for _, s := range w.Samples[center-half : center+half] {
		sum += s * s
	}
	if rms := math.Sqrt(sum / float64(2*half)); rms < 0.05 {
		t.Errorf("Tied note went silent at the barline, RMS %g", rms)
	}
}

func TestEnvelopeShape(t *testing.T) {
	if got := envelope(-0.001, 1); got != 0 {
		t.Errorf("Envelope before note start should be 0, got %g", got)
	}
	if got := envelope(0.005, 1); got <= 0 || got >= 1 {
		t.Errorf("Mid-attack level should be in (0,1), got %g", got)
	}
	if got := envelope(0.5, 1); got != sustainLevel {
		t.Errorf("Sustain level should be %g, got %g", sustainLevel, got)
	}
	if got := envelope(1+releaseTime, 1); got != 0 {
		t.Errorf("Envelope after release should be 0, got %g", got)
	}
}
