package wavescore

import (
	"bytes"
	"context"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wavescore/wavescore/pkg/wavescore/audio"
)

func newTestService(t *testing.T, opts ...Option) Service {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test_wavescore.sqlite3")
	opts = append([]Option{WithDBPath(dbPath), WithTempDir(t.TempDir())}, opts...)
	svc, err := NewService(opts...)
	if err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}
	t.Cleanup(func() {
		svc.Close()
	})
	return svc
}

type testTone struct {
	freq    float64
	seconds float64
}

func tone(freq, seconds float64) testTone {
	return testTone{freq: freq, seconds: seconds}
}

// toneWAV builds a PCM WAV byte stream containing back-to-back sine tones.
// A zero frequency produces silence for that span.
func toneWAV(t *testing.T, amp float64, tones ...testTone) []byte {
	t.Helper()

	rate := audio.DefaultSampleRate
	var samples []float64
	for _, tn := range tones {
		n := int(tn.seconds * float64(rate))
		for i := 0; i < n; i++ {
			if tn.freq <= 0 {
				samples = append(samples, 0)
				continue
			}
			samples = append(samples, amp*math.Sin(2*math.Pi*tn.freq*float64(i)/float64(rate)))
		}
	}
	return audio.Encode(&audio.Waveform{Samples: samples, SampleRate: rate, Channels: 1})
}

func TestTranscribeSingleTone(t *testing.T) {
	svc := newTestService(t)

	data := toneWAV(t, 0.4, tone(440, 1.0))
	res, err := svc.Transcribe(context.Background(), audio.Upload{Data: data})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	if res.Document.NoteCount() == 0 {
		t.Fatal("Expected at least one note for a sustained tone")
	}
	xml := string(res.MusicXML)
	if !strings.Contains(xml, "<step>A</step>") {
		t.Error("Expected a 440 Hz tone to be written as pitch step A")
	}
	if !strings.Contains(xml, "<octave>4</octave>") {
		t.Error("Expected a 440 Hz tone to land in octave 4")
	}
	if len(res.MIDI) == 0 {
		t.Error("Expected non-empty MIDI output")
	}
	if res.AudioDuration < 0.9 || res.AudioDuration > 1.1 {
		t.Errorf("Expected ~1s of audio, got %.3fs", res.AudioDuration)
	}
}

func TestTranscribeTwoNoteMelody(t *testing.T) {
	svc := newTestService(t)

	data := toneWAV(t, 0.4, tone(440, 0.6), tone(523.25, 0.6))
	res, err := svc.Transcribe(context.Background(), audio.Upload{Data: data})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	xml := string(res.MusicXML)
	if !strings.Contains(xml, "<step>A</step>") {
		t.Error("Expected the melody to contain an A")
	}
	if !strings.Contains(xml, "<step>C</step>") {
		t.Error("Expected the melody to contain a C")
	}
}

func TestTranscribeDeterministic(t *testing.T) {
	svc := newTestService(t)

	data := toneWAV(t, 0.4, tone(440, 0.5), tone(659.25, 0.5))

	first, err := svc.Transcribe(context.Background(), audio.Upload{Data: data})
	if err != nil {
		t.Fatalf("First transcription failed: %v", err)
	}
	second, err := svc.Transcribe(context.Background(), audio.Upload{Data: data})
	if err != nil {
		t.Fatalf("Second transcription failed: %v", err)
	}

	if !bytes.Equal(first.MusicXML, second.MusicXML) {
		t.Error("Expected identical MusicXML bytes for identical input")
	}
	if !bytes.Equal(first.MIDI, second.MIDI) {
		t.Error("Expected identical MIDI bytes for identical input")
	}
}

func TestTranscribeSilence(t *testing.T) {
	svc := newTestService(t)

	data := toneWAV(t, 0, tone(0, 1.0))
	res, err := svc.Transcribe(context.Background(), audio.Upload{Data: data})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	if n := res.Document.NoteCount(); n != 0 {
		t.Errorf("Expected 0 notes for silence, got %d", n)
	}
	if res.Document.MeasureCount() < 1 {
		t.Error("Expected silence to still produce at least one measure")
	}
	if !strings.Contains(string(res.MusicXML), "<rest") {
		t.Error("Expected a silent score to be written as rests")
	}
}

func TestTranscribeMalformedInput(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Transcribe(context.Background(), audio.Upload{Data: []byte("definitely not audio")})
	if err == nil {
		t.Fatal("Expected an error for malformed input")
	}
	if !errors.Is(err, audio.ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}

	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("Expected a StageError, got %T", err)
	}
	if stageErr.Stage != StageDecode {
		t.Errorf("Expected failure in stage %q, got %q", StageDecode, stageErr.Stage)
	}
}

func TestSynthesizeRoundTrip(t *testing.T) {
	svc := newTestService(t)

	data := toneWAV(t, 0.4, tone(440, 1.0))
	res, err := svc.Transcribe(context.Background(), audio.Upload{Data: data})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	wavBytes, err := svc.Synthesize(res.Document)
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	wave, err := audio.Decode(wavBytes)
	if err != nil {
		t.Fatalf("Synthesized output is not decodable WAV: %v", err)
	}
	if wave.Duration() <= 0 {
		t.Error("Expected synthesized audio to have positive duration")
	}
}

func TestScoreLibraryCRUD(t *testing.T) {
	svc := newTestService(t)

	data := toneWAV(t, 0.4, tone(440, 1.0))
	res, err := svc.Transcribe(context.Background(), audio.Upload{Data: data})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	id, err := svc.SaveResult(res, "Tuning Fork", "upload")
	if err != nil {
		t.Fatalf("SaveResult failed: %v", err)
	}
	if id == "" {
		t.Fatal("Expected a non-empty score ID")
	}

	stored, err := svc.GetScoreByID(id)
	if err != nil {
		t.Fatalf("GetScoreByID failed: %v", err)
	}
	if stored.Title != "Tuning Fork" {
		t.Errorf("Expected title Tuning Fork, got %s", stored.Title)
	}
	if !bytes.Equal(stored.MusicXML, res.MusicXML) {
		t.Error("Stored MusicXML does not match the transcription output")
	}

	scores, err := svc.ListScores()
	if err != nil {
		t.Fatalf("ListScores failed: %v", err)
	}
	if len(scores) != 1 {
		t.Fatalf("Expected 1 stored score, got %d", len(scores))
	}

	if err := svc.DeleteScore(id); err != nil {
		t.Fatalf("DeleteScore failed: %v", err)
	}
	if _, err := svc.GetScoreByID(id); !errors.Is(err, ErrScoreNotFound) {
		t.Errorf("Expected ErrScoreNotFound after delete, got %v", err)
	}
}

func TestNewServiceRejectsInvalidConfig(t *testing.T) {
	if _, err := NewService(WithGridSubdivision(6)); err == nil {
		t.Error("Expected an error for grid subdivision 6")
	}
	if _, err := NewService(WithGridSubdivision(12)); err == nil {
		t.Error("Expected an error for grid subdivision 12")
	}
	if _, err := NewService(WithTimeSignature(4, 3)); err == nil {
		t.Error("Expected an error for beat unit 3")
	}
	if _, err := NewService(WithTimeSignature(0, 4)); err == nil {
		t.Error("Expected an error for zero beats per measure")
	}
}

func TestTranscribeRespectsOptions(t *testing.T) {
	svc := newTestService(t,
		WithTitle("Custom Title"),
		WithTempoBPM(90),
		WithTimeSignature(3, 4),
		WithSpelling(SpellFlats),
	)

	data := toneWAV(t, 0.4, tone(466.16, 1.0)) // B flat 4
	res, err := svc.Transcribe(context.Background(), audio.Upload{Data: data})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	xml := string(res.MusicXML)
	if !strings.Contains(xml, "<work-title>Custom Title</work-title>") {
		t.Error("Expected the configured title in the MusicXML output")
	}
	if !strings.Contains(xml, "<per-minute>90</per-minute>") {
		t.Error("Expected the configured tempo in the MusicXML output")
	}
	if !strings.Contains(xml, "<beats>3</beats>") {
		t.Error("Expected the configured time signature in the MusicXML output")
	}
	if !strings.Contains(xml, "<step>B</step>") || !strings.Contains(xml, "<alter>-1</alter>") {
		t.Error("Expected 466.16 Hz to be spelled as B flat")
	}
}
