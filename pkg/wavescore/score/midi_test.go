package score

import (
	"bytes"
	"math/big"
	"testing"

	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/wavescore/wavescore/pkg/wavescore/rhythm"
)

func TestSMFHeader(t *testing.T) {
	doc := buildTestDoc(t, []rhythm.QuantizedNote{quarter(1, 0, 440)})

	data, err := doc.SMF()
	if err != nil {
		t.Fatalf("SMF failed: %v", err)
	}

	if len(data) < 14 || string(data[0:4]) != "MThd" {
		t.Fatal("Missing MThd header chunk")
	}
	if !bytes.Contains(data, []byte("MTrk")) {
		t.Fatal("Missing MTrk track chunk")
	}
}

func TestSMFReadBack(t *testing.T) {
	doc := buildTestDoc(t, []rhythm.QuantizedNote{
		quarter(1, 0, 440),
		quarter(1, 1, 523.25),
	})

	data, err := doc.SMF()
	if err != nil {
		t.Fatalf("SMF failed: %v", err)
	}

	parsed, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("SMF output does not parse: %v", err)
	}

	if len(parsed.Tracks) != 1 {
		t.Fatalf("Expected 1 track for a treble-only score, got %d", len(parsed.Tracks))
	}

	var noteOns, noteOffs int
	var keys []uint8
	for _, ev := range parsed.Tracks[0] {
		var ch, key, vel uint8
		if ev.Message.GetNoteOn(&ch, &key, &vel) && vel > 0 {
			noteOns++
			keys = append(keys, key)
		}
		if ev.Message.GetNoteOff(&ch, &key, &vel) || (ev.Message.GetNoteOn(&ch, &key, &vel) && vel == 0) {
			noteOffs++
		}
	}

	if noteOns != 2 {
		t.Errorf("Expected 2 note-on events, got %d", noteOns)
	}
	if noteOns != noteOffs {
		t.Errorf("Note on/off mismatch: %d on, %d off", noteOns, noteOffs)
	}
	if len(keys) == 2 && (keys[0] != 69 || keys[1] != 72) {
		t.Errorf("Expected keys [69 72] (A4, C5), got %v", keys)
	}
}

func TestSMFTiedNotesMerge(t *testing.T) {
	// One note held across the barline: exactly one on/off pair
	doc := buildTestDoc(t, []rhythm.QuantizedNote{
		{Measure: 1, BeatPosition: big.NewRat(3, 1), DurationBeats: big.NewRat(2, 1), PitchHz: 440, Velocity: 64},
	})

	data, err := doc.SMF()
	if err != nil {
		t.Fatalf("SMF failed: %v", err)
	}

	parsed, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("SMF output does not parse: %v", err)
	}

	var noteOns int
	for _, ev := range parsed.Tracks[0] {
		var ch, key, vel uint8
		if ev.Message.GetNoteOn(&ch, &key, &vel) && vel > 0 {
			noteOns++
		}
	}
	if noteOns != 1 {
		t.Errorf("Tied fragments should merge to 1 note-on, got %d", noteOns)
	}
}

func TestSMFTwoParts(t *testing.T) {
	doc := buildTestDoc(t, []rhythm.QuantizedNote{
		quarter(1, 0, 440), // treble
		quarter(1, 1, 110), // bass
	})

	data, err := doc.SMF()
	if err != nil {
		t.Fatalf("SMF failed: %v", err)
	}

	parsed, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("SMF output does not parse: %v", err)
	}
	if len(parsed.Tracks) != 2 {
		t.Errorf("Expected 2 tracks for treble+bass, got %d", len(parsed.Tracks))
	}
}

func TestSMFSixEightTempo(t *testing.T) {
	cfg := DefaultBuildConfig()
	cfg.TimeSig = TimeSignature{BeatsPerMeasure: 6, BeatUnit: 8}

	doc, err := Build([]rhythm.QuantizedNote{quarter(1, 0, 440)}, cfg)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	data, err := doc.SMF()
	if err != nil {
		t.Fatalf("SMF failed: %v", err)
	}

	parsed, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("SMF output does not parse: %v", err)
	}

	// 120 eighth-note beats per minute is 60 quarter notes per minute.
	var tempo float64
	for _, ev := range parsed.Tracks[0] {
		if ev.Message.GetMetaTempo(&tempo) {
			break
		}
	}
	if tempo < 59.9 || tempo > 60.1 {
		t.Errorf("Expected SMF tempo of 60 quarter bpm, got %g", tempo)
	}
}

func TestSMFRejectsUnsupportedGrid(t *testing.T) {
	doc := buildTestDoc(t, []rhythm.QuantizedNote{quarter(1, 0, 440)})
	doc.GridSubdivision = 6

	if _, err := doc.SMF(); err == nil {
		t.Error("Expected an error for grid subdivision 6")
	}
}

func TestSMFDeterministic(t *testing.T) {
	doc := buildTestDoc(t, []rhythm.QuantizedNote{
		quarter(1, 0, 440),
		quarter(1, 2, 330),
	})

	a, err := doc.SMF()
	if err != nil {
		t.Fatalf("SMF failed: %v", err)
	}
	b, err := doc.SMF()
	if err != nil {
		t.Fatalf("SMF failed: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("SMF output must be byte-identical across runs")
	}
}
