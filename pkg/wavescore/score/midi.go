package score

import (
	"bytes"
	"fmt"
	"math/big"
	"sort"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

const ticksPerQuarter = 960

// SMF serializes the document as a Standard MIDI File (format 1, one track
// per part). Tied element chains collapse back into single sustained notes.
func (d *Document) SMF() ([]byte, error) {
	tm, err := timingFor(d.GridSubdivision, d.TimeSig)
	if err != nil {
		return nil, err
	}
	// One grid unit spans ticksPerUnit/divisions of a quarter note.
	ticksPerUnit := int64(ticksPerQuarter) * tm.ticksPerUnit / tm.divisions

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(ticksPerQuarter)

	for partIdx, part := range d.Parts {
		events, err := midiEvents(part, tm.unitsPerBeat)
		if err != nil {
			return nil, err
		}

		var tr smf.Track
		tr.Add(0, smf.MetaTrackSequenceName(part.Name))
		if partIdx == 0 {
			tr.Add(0, smf.MetaMeter(uint8(d.TimeSig.BeatsPerMeasure), uint8(d.TimeSig.BeatUnit)))
			// SMF tempo events are denominated in quarter notes per minute.
			tr.Add(0, smf.MetaTempo(quarterBPM(d.TempoBPM, d.TimeSig.BeatUnit)))
		}

		var cursor int64
		for _, ev := range events {
			delta := uint32((ev.tick - cursor) * ticksPerUnit)
			cursor = ev.tick
			if ev.on {
				tr.Add(delta, midi.NoteOn(uint8(partIdx), uint8(ev.key), uint8(ev.velocity)))
			} else {
				tr.Add(delta, midi.NoteOff(uint8(partIdx), uint8(ev.key)))
			}
		}
		tr.Close(0)

		if err := s.Add(tr); err != nil {
			return nil, fmt.Errorf("adding MIDI track for part %s: %w", part.ID, err)
		}
	}

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("writing SMF: %w", err)
	}
	return buf.Bytes(), nil
}

type midiEvent struct {
	tick     int64 // in grid units; scaled to ticks by the caller
	on       bool
	key      int
	velocity int
}

// midiEvents flattens a part into note on/off pairs in grid-unit time,
// merging tied fragments into single notes.
func midiEvents(part Part, unitsPerBeat int64) ([]midiEvent, error) {
	var events []midiEvent
	var cursor int64

	type pending struct {
		key      int
		velocity int
		start    int64
	}
	var held *pending

	for _, m := range part.Measures {
		for _, v := range m.Voices {
			for _, el := range v.Elements {
				units := new(big.Rat).Mul(el.DurationBeats, big.NewRat(unitsPerBeat, 1))
				if !units.IsInt() {
					return nil, fmt.Errorf("part %s measure %d: duration %s beats is not grid-representable",
						part.ID, m.Number, el.DurationBeats.RatString())
				}
				dur := units.Num().Int64()

				if el.Rest {
					if held != nil {
						events = append(events, midiEvent{tick: cursor, key: held.key})
						held = nil
					}
					cursor += dur
					continue
				}

				if held != nil && el.TieStop && held.key == el.Pitch.MIDI {
					// Continuation of a tied note: just extend.
					cursor += dur
					if !el.TieStart {
						events = append(events, midiEvent{tick: cursor, key: held.key})
						held = nil
					}
					continue
				}

				if held != nil {
					events = append(events, midiEvent{tick: cursor, key: held.key})
					held = nil
				}
				events = append(events, midiEvent{tick: cursor, on: true, key: el.Pitch.MIDI, velocity: el.Velocity})
				cursor += dur
				if el.TieStart {
					held = &pending{key: el.Pitch.MIDI, velocity: el.Velocity, start: cursor}
				} else {
					events = append(events, midiEvent{tick: cursor, key: el.Pitch.MIDI})
				}
			}
		}
	}
	if held != nil {
		events = append(events, midiEvent{tick: cursor, key: held.key})
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].tick < events[j].tick })
	return events, nil
}
