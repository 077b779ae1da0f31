// Package score holds the structured score document the pipeline produces,
// plus its MusicXML and Standard MIDI File serializations.
package score

import (
	"errors"
	"math/big"
	"strconv"
)

// ErrInvalidScoreState reports a violated structural invariant (a measure
// whose contents do not sum to its beat capacity). Reaching it indicates a
// pipeline bug, not bad input.
var ErrInvalidScoreState = errors.New("invalid score state: measure capacity violated")

// ErrUnsupportedGrid reports a grid subdivision or beat unit the notation
// layer cannot write: subdivisions must be powers of two between 4 and 64,
// beat units powers of two between 1 and 16.
var ErrUnsupportedGrid = errors.New("unsupported grid subdivision or beat unit")

// TimeSignature is beats per measure over a beat unit (4/4, 3/4, 6/8...).
type TimeSignature struct {
	BeatsPerMeasure int
	BeatUnit        int
}

// Valid reports whether the signature can be notated: at least one beat per
// measure and a power-of-two beat unit between 1 and 16.
func (t TimeSignature) Valid() bool {
	if t.BeatsPerMeasure < 1 {
		return false
	}
	switch t.BeatUnit {
	case 1, 2, 4, 8, 16:
		return true
	}
	return false
}

// Spelling selects the enharmonic convention for accidentals.
type Spelling int

const (
	SpellSharps Spelling = iota // default: C#, D#, F#, G#, A#
	SpellFlats                  // Db, Eb, Gb, Ab, Bb
)

// Pitch is a spelled pitch: step letter, accidental, octave, and the
// equal-tempered MIDI number it maps to.
type Pitch struct {
	Step   string // "A".."G"
	Alter  int    // -1 flat, 0 natural, +1 sharp
	Octave int    // scientific pitch notation, C4 = middle C
	MIDI   int
}

// Name renders the pitch as e.g. "C#4" or "Bb3".
func (p Pitch) Name() string {
	accidental := ""
	switch p.Alter {
	case 1:
		accidental = "#"
	case -1:
		accidental = "b"
	}
	return p.Step + accidental + strconv.Itoa(p.Octave)
}

// Element is one entry in a voice: a pitched note or a rest. Durations are
// standard note values (whole..sixteenth, possibly dotted); longer spans are
// chains of tied elements.
type Element struct {
	Rest          bool
	Pitch         Pitch // zero value for rests
	DurationBeats *big.Rat
	Velocity      int
	TieStart      bool
	TieStop       bool
}

// Voice is an ordered monophonic sequence of notes and rests.
type Voice struct {
	Number   int
	Elements []Element
}

// Measure holds the voices sounding within one bar. Each voice's durations
// sum exactly to the measure's beat capacity.
type Measure struct {
	Number int // 1-based
	Voices []Voice
}

// Part is one staff of the score.
type Part struct {
	ID       string
	Name     string
	Clef     string // "treble" or "bass"
	Measures []Measure
}

// Document is the terminal artifact of transcription: everything an
// external renderer needs, with no other internal types leaking out.
type Document struct {
	Title           string
	TempoBPM        float64
	TimeSig         TimeSignature
	GridSubdivision int
	Spelling        Spelling
	Parts           []Part
}

// MeasureCount returns the length of the longest part in measures.
func (d *Document) MeasureCount() int {
	n := 0
	for _, p := range d.Parts {
		if len(p.Measures) > n {
			n = len(p.Measures)
		}
	}
	return n
}

// NoteCount returns the number of pitched (non-rest) elements.
func (d *Document) NoteCount() int {
	n := 0
	for _, p := range d.Parts {
		for _, m := range p.Measures {
			for _, v := range m.Voices {
				for _, e := range v.Elements {
					if !e.Rest {
						n++
					}
				}
			}
		}
	}
	return n
}
