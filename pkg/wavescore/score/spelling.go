package score

import "math"

// A4 reference for equal-tempered mapping.
const (
	referenceHz   = 440.0
	referenceMIDI = 69
)

// Chromatic spellings by pitch class, indexed 0 (C) through 11 (B).
var (
	sharpSteps = [12]struct {
		step  string
		alter int
	}{
		{"C", 0}, {"C", 1}, {"D", 0}, {"D", 1}, {"E", 0}, {"F", 0},
		{"F", 1}, {"G", 0}, {"G", 1}, {"A", 0}, {"A", 1}, {"B", 0},
	}
	flatSteps = [12]struct {
		step  string
		alter int
	}{
		{"C", 0}, {"D", -1}, {"D", 0}, {"E", -1}, {"E", 0}, {"F", 0},
		{"G", -1}, {"G", 0}, {"A", -1}, {"A", 0}, {"B", -1}, {"B", 0},
	}
)

// HzToMIDI maps a frequency to the nearest equal-tempered MIDI number.
func HzToMIDI(hz float64) int {
	return referenceMIDI + int(math.Round(12*math.Log2(hz/referenceHz)))
}

// MIDIToHz is the equal-tempered inverse of HzToMIDI.
func MIDIToHz(midi int) float64 {
	return referenceHz * math.Pow(2, float64(midi-referenceMIDI)/12)
}

// SpellMIDI names a MIDI number under the given enharmonic convention.
func SpellMIDI(midi int, convention Spelling) Pitch {
	pc := ((midi % 12) + 12) % 12
	entry := sharpSteps[pc]
	if convention == SpellFlats {
		entry = flatSteps[pc]
	}
	return Pitch{
		Step:   entry.step,
		Alter:  entry.alter,
		Octave: midi/12 - 1,
		MIDI:   midi,
	}
}

// SpellHz spells the nearest equal-tempered pitch for a frequency.
func SpellHz(hz float64, convention Spelling) Pitch {
	return SpellMIDI(HzToMIDI(hz), convention)
}
