package score

import (
	"encoding/xml"
	"fmt"
)

// MusicXML serializes the document as uncompressed MusicXML (score-partwise
// 4.0), the interchange format notation renderers consume.
func (d *Document) MusicXML() ([]byte, error) {
	tm, err := timingFor(d.GridSubdivision, d.TimeSig)
	if err != nil {
		return nil, err
	}

	x := xmlScore{
		Version: "4.0",
		Work:    xmlWork{Title: d.Title},
	}
	for _, p := range d.Parts {
		x.PartList.Parts = append(x.PartList.Parts, xmlScorePart{
			ID:       p.ID,
			PartName: p.Name,
		})

		xp := xmlPart{ID: p.ID}
		for i, m := range p.Measures {
			xm := xmlMeasure{Number: m.Number}
			if i == 0 {
				xm.Attributes = &xmlAttributes{
					Divisions: tm.divisions,
					Key:       &xmlKey{Fifths: 0},
					Time: &xmlTime{
						Beats:    d.TimeSig.BeatsPerMeasure,
						BeatType: d.TimeSig.BeatUnit,
					},
					Clef: clefFor(p.Clef),
				}
				xm.Direction = &xmlDirection{
					DirectionType: xmlDirectionType{
						Metronome: &xmlMetronome{BeatUnit: beatUnitName(d.TimeSig.BeatUnit), PerMinute: d.TempoBPM},
					},
					Sound: &xmlSound{Tempo: quarterBPM(d.TempoBPM, d.TimeSig.BeatUnit)},
				}
			}
			for _, v := range m.Voices {
				for _, el := range v.Elements {
					xn, err := xmlNoteFor(el, v.Number, tm)
					if err != nil {
						return nil, fmt.Errorf("part %s measure %d: %w", p.ID, m.Number, err)
					}
					xm.Notes = append(xm.Notes, xn)
				}
			}
			xp.Measures = append(xp.Measures, xm)
		}
		x.Parts = append(x.Parts, xp)
	}

	body, err := xml.MarshalIndent(x, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling MusicXML: %w", err)
	}

	out := append([]byte(xml.Header), []byte(musicXMLDoctype+"\n")...)
	return append(out, body...), nil
}

const musicXMLDoctype = `<!DOCTYPE score-partwise PUBLIC "-//Recordare//DTD MusicXML 4.0 Partwise//EN" "http://www.musicxml.org/dtds/partwise.dtd">`

func xmlNoteFor(el Element, voice int, tm gridTiming) (xmlNote, error) {
	durUnits, err := tm.unitsOfBeats(el.DurationBeats)
	if err != nil {
		return xmlNote{}, err
	}

	typeName, dotted, err := noteTypeFor(durUnits * tm.n512PerUnit)
	if err != nil {
		return xmlNote{}, err
	}

	xn := xmlNote{
		Duration: durUnits * tm.ticksPerUnit,
		Voice:    voice,
		Type:     typeName,
	}
	if dotted {
		xn.Dot = &xmlEmpty{}
	}
	if el.Rest {
		xn.Rest = &xmlEmpty{}
		return xn, nil
	}

	xn.Pitch = &xmlPitch{
		Step:   el.Pitch.Step,
		Octave: el.Pitch.Octave,
	}
	if el.Pitch.Alter != 0 {
		xn.Pitch.Alter = &el.Pitch.Alter
	}
	if el.TieStart || el.TieStop {
		xn.Notations = &xmlNotations{}
		// MusicXML wants "stop" before "start" when both apply.
		if el.TieStop {
			xn.Ties = append(xn.Ties, xmlTie{Type: "stop"})
			xn.Notations.Tieds = append(xn.Notations.Tieds, xmlTied{Type: "stop"})
		}
		if el.TieStart {
			xn.Ties = append(xn.Ties, xmlTie{Type: "start"})
			xn.Notations.Tieds = append(xn.Notations.Tieds, xmlTied{Type: "start"})
		}
	}
	return xn, nil
}

// noteTypeFor names a notated duration counted in 512th notes (a whole note
// is 512), with the dotted variants the builder emits.
func noteTypeFor(n512 int64) (string, bool, error) {
	base := map[int64]string{
		512: "whole",
		256: "half",
		128: "quarter",
		64:  "eighth",
		32:  "16th",
		16:  "32nd",
		8:   "64th",
		4:   "128th",
		2:   "256th",
		1:   "512th",
	}

	if name, ok := base[n512]; ok {
		return name, false, nil
	}
	for u, name := range base {
		if u%2 == 0 && n512 == u+u/2 {
			return name, true, nil
		}
	}
	return "", false, fmt.Errorf("no standard note type for %d/512 of a whole note", n512)
}

func clefFor(name string) *xmlClef {
	if name == "bass" {
		return &xmlClef{Sign: "F", Line: 4}
	}
	return &xmlClef{Sign: "G", Line: 2}
}

// MusicXML document structure (score-partwise).

type xmlScore struct {
	XMLName  xml.Name    `xml:"score-partwise"`
	Version  string      `xml:"version,attr"`
	Work     xmlWork     `xml:"work"`
	PartList xmlPartList `xml:"part-list"`
	Parts    []xmlPart   `xml:"part"`
}

type xmlWork struct {
	Title string `xml:"work-title"`
}

type xmlPartList struct {
	Parts []xmlScorePart `xml:"score-part"`
}

type xmlScorePart struct {
	ID       string `xml:"id,attr"`
	PartName string `xml:"part-name"`
}

type xmlPart struct {
	ID       string       `xml:"id,attr"`
	Measures []xmlMeasure `xml:"measure"`
}

type xmlMeasure struct {
	Number     int            `xml:"number,attr"`
	Attributes *xmlAttributes `xml:"attributes,omitempty"`
	Direction  *xmlDirection  `xml:"direction,omitempty"`
	Notes      []xmlNote      `xml:"note"`
}

type xmlAttributes struct {
	Divisions int64    `xml:"divisions"`
	Key       *xmlKey  `xml:"key,omitempty"`
	Time      *xmlTime `xml:"time,omitempty"`
	Clef      *xmlClef `xml:"clef,omitempty"`
}

type xmlKey struct {
	Fifths int `xml:"fifths"`
}

type xmlTime struct {
	Beats    int `xml:"beats"`
	BeatType int `xml:"beat-type"`
}

type xmlClef struct {
	Sign string `xml:"sign"`
	Line int    `xml:"line"`
}

type xmlDirection struct {
	DirectionType xmlDirectionType `xml:"direction-type"`
	Sound         *xmlSound        `xml:"sound,omitempty"`
}

type xmlDirectionType struct {
	Metronome *xmlMetronome `xml:"metronome,omitempty"`
}

type xmlMetronome struct {
	BeatUnit  string  `xml:"beat-unit"`
	PerMinute float64 `xml:"per-minute"`
}

type xmlSound struct {
	Tempo float64 `xml:"tempo,attr"`
}

type xmlNote struct {
	Rest      *xmlEmpty     `xml:"rest,omitempty"`
	Pitch     *xmlPitch     `xml:"pitch,omitempty"`
	Duration  int64         `xml:"duration"`
	Ties      []xmlTie      `xml:"tie"`
	Voice     int           `xml:"voice"`
	Type      string        `xml:"type"`
	Dot       *xmlEmpty     `xml:"dot,omitempty"`
	Notations *xmlNotations `xml:"notations,omitempty"`
}

type xmlNotations struct {
	Tieds []xmlTied `xml:"tied"`
}

type xmlTie struct {
	Type string `xml:"type,attr"`
}

type xmlTied struct {
	Type string `xml:"type,attr"`
}

type xmlPitch struct {
	Step   string `xml:"step"`
	Alter  *int   `xml:"alter,omitempty"`
	Octave int    `xml:"octave"`
}

type xmlEmpty struct{}
