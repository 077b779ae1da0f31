// Package rhythm maps note events from continuous seconds onto a discrete
// musical grid of measures, beats, and subdivisions.
package rhythm

import (
	"fmt"
	"math"
	"math/big"

	"github.com/wavescore/wavescore/pkg/wavescore/segment"
)

// QuantizedNote is a note aligned to the grid. BeatPosition and
// DurationBeats are exact multiples of the grid unit (4/gridSubdivision of
// a beat), expressed in beats.
type QuantizedNote struct {
	Measure       int      // 1-based
	BeatPosition  *big.Rat // offset within the measure, in beats
	DurationBeats *big.Rat // > 0
	PitchHz       float64
	Velocity      int
	Voice         int
}

// GridUnit returns the smallest representable duration in beats for a
// subdivision (16 => 1/4 beat, a sixteenth note in 4/4).
func GridUnit(gridSubdivision int) *big.Rat {
	return big.NewRat(4, int64(gridSubdivision))
}

// ValidSubdivision reports whether a grid subdivision is one the notation
// layer can represent: a power of two between 4 (quarter-note grid) and 64.
func ValidSubdivision(gridSubdivision int) bool {
	switch gridSubdivision {
	case 4, 8, 16, 32, 64:
		return true
	}
	return false
}

// UnitsOf converts a beat-valued rational into a count of grid units. Beat
// values that are not exact multiples of the grid unit are an error, never
// silently truncated.
func UnitsOf(beats *big.Rat, gridSubdivision int) (int64, error) {
	units := new(big.Rat).Quo(beats, GridUnit(gridSubdivision))
	if !units.IsInt() {
		return 0, fmt.Errorf("%s beats is not a multiple of the 4/%d grid unit",
			beats.RatString(), gridSubdivision)
	}
	return units.Num().Int64(), nil
}

// Quantize snaps each event's start and duration to the nearest grid unit
// and assigns measures. Rounding is half-up; a duration that rounds to zero
// is forced up to one grid unit rather than dropped. When rounding makes two
// notes overlap, the later start wins and the earlier note is shortened; an
// earlier note squeezed to nothing is removed. The input must be ordered by
// start time, which makes the trimming deterministic.
func Quantize(events []segment.NoteEvent, tempoBPM float64, beatsPerMeasure, gridSubdivision int) []QuantizedNote {
	if len(events) == 0 {
		return nil
	}
	if tempoBPM <= 0 {
		tempoBPM = 120
	}
	if beatsPerMeasure <= 0 {
		beatsPerMeasure = 4
	}
	if gridSubdivision <= 0 {
		gridSubdivision = 16
	}

	unitBeats := 4.0 / float64(gridSubdivision)
	unitsPerMeasure := int64(beatsPerMeasure) * int64(gridSubdivision) / 4

	type gridNote struct {
		start, dur int64 // in grid units from time zero
		pitchHz    float64
		velocity   int
	}

	notes := make([]gridNote, 0, len(events))
	for _, ev := range events {
		start := roundHalfUp(secondsToBeats(ev.StartTime, tempoBPM) / unitBeats)
		dur := roundHalfUp(secondsToBeats(ev.Duration, tempoBPM) / unitBeats)
		if dur == 0 {
			dur = 1 // documented approximation: never silently drop a note
		}
		notes = append(notes, gridNote{start: start, dur: dur, pitchHz: ev.PitchHz, velocity: ev.Velocity})
	}

	// Trim overlaps introduced by rounding. The later note keeps its start.
	trimmed := notes[:0]
	for i := 0; i < len(notes); i++ {
		n := notes[i]
		if i+1 < len(notes) {
			next := notes[i+1]
			if n.start+n.dur > next.start {
				n.dur = next.start - n.start
			}
		}
		if n.dur > 0 {
			trimmed = append(trimmed, n)
		}
	}

	unit := GridUnit(gridSubdivision)
	out := make([]QuantizedNote, 0, len(trimmed))
	for _, n := range trimmed {
		posUnits := n.start % unitsPerMeasure
		out = append(out, QuantizedNote{
			Measure:       int(n.start/unitsPerMeasure) + 1,
			BeatPosition:  new(big.Rat).Mul(big.NewRat(posUnits, 1), unit),
			DurationBeats: new(big.Rat).Mul(big.NewRat(n.dur, 1), unit),
			PitchHz:       n.pitchHz,
			Velocity:      n.velocity,
		})
	}
	return out
}

func secondsToBeats(seconds, tempoBPM float64) float64 {
	return seconds * tempoBPM / 60
}

// roundHalfUp rounds to the nearest integer with .5 going up, never down.
func roundHalfUp(v float64) int64 {
	return int64(math.Floor(v + 0.5))
}
