package score

import (
	"fmt"
	"math/big"

	"github.com/wavescore/wavescore/pkg/wavescore/rhythm"
)

// gridTiming relates the document's beat-denominated grid to quarter-note
// notation space. One grid unit is 4/grid of a beat and one beat is
// 4/beatUnit quarter notes, so one grid unit spans 16/(grid*beatUnit) of a
// quarter note. Both serializers and the builder share this mapping so a
// duration means the same thing everywhere.
type gridTiming struct {
	unitsPerBeat int64
	// MusicXML divisions: duration ticks per quarter note.
	divisions int64
	// Duration ticks per grid unit.
	ticksPerUnit int64
	// 512th notes per grid unit, the resolution note-type naming works in.
	n512PerUnit int64
}

// timingFor validates the grid/meter pair and derives the shared conversion
// factors. grid*beatUnit divides 2048 for every accepted pair, so all
// factors are exact integers.
func timingFor(grid int, sig TimeSignature) (gridTiming, error) {
	if !rhythm.ValidSubdivision(grid) {
		return gridTiming{}, fmt.Errorf("%w: subdivision %d", ErrUnsupportedGrid, grid)
	}
	if !sig.Valid() {
		return gridTiming{}, fmt.Errorf("%w: time signature %d/%d", ErrUnsupportedGrid,
			sig.BeatsPerMeasure, sig.BeatUnit)
	}

	prod := int64(grid) * int64(sig.BeatUnit)
	g := gcd(prod, 16)
	return gridTiming{
		unitsPerBeat: int64(grid) / 4,
		divisions:    prod / g,
		ticksPerUnit: 16 / g,
		n512PerUnit:  2048 / prod,
	}, nil
}

// unitsOfBeats converts an element duration to grid units, rejecting values
// off the grid.
func (tm gridTiming) unitsOfBeats(beats *big.Rat) (int64, error) {
	units := new(big.Rat).Mul(beats, big.NewRat(tm.unitsPerBeat, 1))
	if !units.IsInt() {
		return 0, fmt.Errorf("duration %s beats is not grid-representable", beats.RatString())
	}
	return units.Num().Int64(), nil
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// beatUnitName maps a time-signature denominator to its MusicXML note-value
// name.
func beatUnitName(beatUnit int) string {
	switch beatUnit {
	case 1:
		return "whole"
	case 2:
		return "half"
	case 8:
		return "eighth"
	case 16:
		return "16th"
	default:
		return "quarter"
	}
}

// quarterBPM converts a tempo denominated in beats to quarter notes per
// minute, the unit MusicXML sound tempo and SMF tempo events use.
func quarterBPM(tempoBPM float64, beatUnit int) float64 {
	return tempoBPM * 4 / float64(beatUnit)
}
