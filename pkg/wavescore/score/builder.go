package score

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/wavescore/wavescore/pkg/wavescore/rhythm"
)

// MiddleC is the default split point between treble and bass parts.
const MiddleC = 60

// BuildConfig controls score assembly.
type BuildConfig struct {
	Title           string
	TempoBPM        float64
	TimeSig         TimeSignature
	GridSubdivision int
	Spelling        Spelling
	// SplitPitch routes notes at or above this MIDI number to the treble
	// part and the rest to a bass part. Zero or negative disables the split
	// and produces a single part.
	SplitPitch int
	// MinBeats extends the score with rests to at least this many beats,
	// so silent input still yields a score covering its duration. May be nil.
	MinBeats *big.Rat
}

// DefaultBuildConfig mirrors the transcription service defaults.
func DefaultBuildConfig() BuildConfig {
	return BuildConfig{
		Title:           "Transcribed Music",
		TempoBPM:        120,
		TimeSig:         TimeSignature{BeatsPerMeasure: 4, BeatUnit: 4},
		GridSubdivision: 16,
		Spelling:        SpellSharps,
		SplitPitch:      MiddleC,
	}
}

// placed is a spelled note positioned on the absolute grid-unit timeline.
type placed struct {
	pitch    Pitch
	velocity int
	start    int64
	dur      int64
}

// span is a contiguous run on the absolute grid-unit timeline.
type span struct {
	rest     bool
	pitch    Pitch
	velocity int
	start    int64 // grid units from time zero
	dur      int64
}

// Build assembles quantized notes into a Document. Gaps become explicit
// rests, notes and rests are split into standard note values at measure
// boundaries (notes tied across them), and every measure is checked to sum
// exactly to the time signature's capacity.
func Build(notes []rhythm.QuantizedNote, cfg BuildConfig) (*Document, error) {
	if cfg.TempoBPM <= 0 {
		cfg.TempoBPM = 120
	}
	if cfg.TimeSig.BeatsPerMeasure <= 0 || cfg.TimeSig.BeatUnit <= 0 {
		cfg.TimeSig = TimeSignature{BeatsPerMeasure: 4, BeatUnit: 4}
	}
	if cfg.GridSubdivision <= 0 {
		cfg.GridSubdivision = 16
	}

	grid := cfg.GridSubdivision
	tm, err := timingFor(grid, cfg.TimeSig)
	if err != nil {
		return nil, err
	}
	unitsPerBeat := tm.unitsPerBeat
	unitsPerMeasure := int64(cfg.TimeSig.BeatsPerMeasure) * unitsPerBeat

	var treble, bass []placed
	var totalUnits int64

	for _, qn := range notes {
		posUnits, err := rhythm.UnitsOf(qn.BeatPosition, grid)
		if err != nil {
			return nil, fmt.Errorf("%w: measure %d: %v", ErrInvalidScoreState, qn.Measure, err)
		}
		dur, err := rhythm.UnitsOf(qn.DurationBeats, grid)
		if err != nil {
			return nil, fmt.Errorf("%w: measure %d: %v", ErrInvalidScoreState, qn.Measure, err)
		}
		start := int64(qn.Measure-1)*unitsPerMeasure + posUnits
		if dur <= 0 {
			return nil, fmt.Errorf("%w: non-positive duration at measure %d", ErrInvalidScoreState, qn.Measure)
		}
		p := placed{
			pitch:    SpellHz(qn.PitchHz, cfg.Spelling),
			velocity: qn.Velocity,
			start:    start,
			dur:      dur,
		}
		if start+dur > totalUnits {
			totalUnits = start + dur
		}
		if cfg.SplitPitch > 0 && p.pitch.MIDI < cfg.SplitPitch {
			bass = append(bass, p)
		} else {
			treble = append(treble, p)
		}
	}

	if cfg.MinBeats != nil {
		if mu := ceilUnits(cfg.MinBeats, unitsPerBeat); mu > totalUnits {
			totalUnits = mu
		}
	}
	// Round up to whole measures; an empty score still gets one bar of rest.
	nMeasures := (totalUnits + unitsPerMeasure - 1) / unitsPerMeasure
	if nMeasures == 0 {
		nMeasures = 1
	}
	totalUnits = nMeasures * unitsPerMeasure

	doc := &Document{
		Title:           cfg.Title,
		TempoBPM:        cfg.TempoBPM,
		TimeSig:         cfg.TimeSig,
		GridSubdivision: grid,
		Spelling:        cfg.Spelling,
	}

	values := noteValues(grid, cfg.TimeSig.BeatUnit)

	treblePart, err := buildPart("P1", "Treble", "treble", treble, totalUnits, unitsPerMeasure, unitsPerBeat, values)
	if err != nil {
		return nil, err
	}
	doc.Parts = append(doc.Parts, treblePart)

	if len(bass) > 0 {
		bassPart, err := buildPart("P2", "Bass", "bass", bass, totalUnits, unitsPerMeasure, unitsPerBeat, values)
		if err != nil {
			return nil, err
		}
		doc.Parts = append(doc.Parts, bassPart)
	}

	if err := Validate(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func buildPart(id, name, clefName string, notes []placed, totalUnits, unitsPerMeasure, unitsPerBeat int64, values []int64) (Part, error) {
	sort.SliceStable(notes, func(i, j int) bool { return notes[i].start < notes[j].start })

	// Lay out the absolute timeline: notes where they fall, rests between.
	var spans []span
	var cursor int64
	for _, n := range notes {
		if n.start < cursor {
			return Part{}, fmt.Errorf("%w: overlapping notes in part %s at unit %d", ErrInvalidScoreState, id, n.start)
		}
		if n.start > cursor {
			spans = append(spans, span{rest: true, start: cursor, dur: n.start - cursor})
		}
		spans = append(spans, span{pitch: n.pitch, velocity: n.velocity, start: n.start, dur: n.dur})
		cursor = n.start + n.dur
	}
	if cursor < totalUnits {
		spans = append(spans, span{rest: true, start: cursor, dur: totalUnits - cursor})
	}

	nMeasures := int(totalUnits / unitsPerMeasure)
	measures := make([]Measure, nMeasures)
	for i := range measures {
		measures[i] = Measure{Number: i + 1, Voices: []Voice{{Number: 1}}}
	}

	for _, sp := range spans {
		emitSpan(measures, sp, unitsPerMeasure, unitsPerBeat, values)
	}

	return Part{ID: id, Name: name, Clef: clefName, Measures: measures}, nil
}

// emitSpan cuts a span at measure boundaries and then into standard note
// values, tying note fragments together. Rests are never tied.
func emitSpan(measures []Measure, sp span, unitsPerMeasure, unitsPerBeat int64, values []int64) {
	type fragment struct {
		measure int
		dur     int64
	}
	var fragments []fragment

	remaining := sp.dur
	pos := sp.start
	for remaining > 0 {
		m := int(pos / unitsPerMeasure)
		inMeasure := unitsPerMeasure - pos%unitsPerMeasure
		chunk := remaining
		if chunk > inMeasure {
			chunk = inMeasure
		}
		// Greedy largest-first split into representable values.
		for chunk > 0 {
			v := values[0]
			for _, cand := range values {
				if cand <= chunk {
					v = cand
					break
				}
			}
			fragments = append(fragments, fragment{measure: m, dur: v})
			chunk -= v
			remaining -= v
			pos += v
		}
	}

	for i, frag := range fragments {
		el := Element{
			Rest:          sp.rest,
			Pitch:         sp.pitch,
			Velocity:      sp.velocity,
			DurationBeats: big.NewRat(frag.dur, unitsPerBeat),
		}
		if !sp.rest && len(fragments) > 1 {
			el.TieStart = i < len(fragments)-1
			el.TieStop = i > 0
		}
		voice := &measures[frag.measure].Voices[0]
		voice.Elements = append(voice.Elements, el)
	}
}

// noteValues returns the grid-unit durations that map to standard notated
// values, descending. Notated values live in quarter-note space (a beat is
// 4/beatUnit quarters), so the set depends on the meter: in 4/4 with a
// sixteenth grid it runs dotted whole, whole, dotted half, ... down to one
// unit, while in 6/8 the same grid tops out at the same units but names
// them an octave of values shorter.
func noteValues(grid, beatUnit int) []int64 {
	prod := int64(grid) * int64(beatUnit)
	var out []int64
	// Candidate notated values counted in 512th notes: whole = 512 down to
	// a 512th = 1, each with its dotted variant.
	for n512 := int64(512); n512 >= 1; n512 /= 2 {
		for _, v := range []int64{n512 + n512/2, n512} {
			if v*prod%2048 != 0 {
				continue // not on this grid
			}
			if units := v * prod / 2048; units >= 1 {
				out = append(out, units)
			}
		}
	}
	// Descending, deduplicated.
	sort.Slice(out, func(i, j int) bool { return out[i] > out[j] })
	dedup := out[:0]
	var last int64 = -1
	for _, v := range out {
		if v != last {
			dedup = append(dedup, v)
			last = v
		}
	}
	return dedup
}

// Validate checks the primary structural invariant: every voice in every
// measure sums its durations to exactly the measure's beat capacity.
func Validate(doc *Document) error {
	capacity := big.NewRat(int64(doc.TimeSig.BeatsPerMeasure), 1)
	for _, part := range doc.Parts {
		for _, m := range part.Measures {
			for _, v := range m.Voices {
				sum := new(big.Rat)
				for _, el := range v.Elements {
					if el.DurationBeats.Sign() <= 0 {
						return fmt.Errorf("%w: non-positive duration in part %s measure %d",
							ErrInvalidScoreState, part.ID, m.Number)
					}
					sum.Add(sum, el.DurationBeats)
				}
				if sum.Cmp(capacity) != 0 {
					return fmt.Errorf("%w: part %s measure %d sums to %s beats, want %s",
						ErrInvalidScoreState, part.ID, m.Number, sum.RatString(), capacity.RatString())
				}
			}
		}
	}
	return nil
}

func ceilUnits(beats *big.Rat, unitsPerBeat int64) int64 {
	units := new(big.Rat).Mul(beats, big.NewRat(unitsPerBeat, 1))
	q := new(big.Int).Quo(units.Num(), units.Denom())
	if new(big.Int).Mul(q, units.Denom()).Cmp(units.Num()) != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q.Int64()
}
