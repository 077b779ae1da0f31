package wavescore

import (
	"time"

	"github.com/wavescore/wavescore/pkg/wavescore/rhythm"
	"github.com/wavescore/wavescore/pkg/wavescore/score"
	"github.com/wavescore/wavescore/pkg/wavescore/segment"
)

// Result is the full output of a transcription run: the structured score,
// both serialized forms, and the intermediate note data for callers that
// want to inspect or post-process it.
type Result struct {
	Document *score.Document
	MusicXML []byte
	MIDI     []byte

	Events        []segment.NoteEvent
	Quantized     []rhythm.QuantizedNote
	AudioDuration float64
}

// StoredScore is a previously transcribed score from the library. The
// MusicXML field is empty in listings and populated on individual fetches.
type StoredScore struct {
	ID         string
	Title      string
	Source     string
	TempoBPM   float64
	TimeSig    string
	Measures   int
	NoteCount  int
	DurationMs int
	MusicXML   []byte
	CreatedAt  time.Time
}
