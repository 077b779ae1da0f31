// Package synth renders a score document back into an audible waveform
// using additive sine partials with an ADSR envelope. The rendering is for
// auditioning: pitch and rhythm are faithful, timbre is not.
package synth

import (
	"math"
	"math/big"

	"github.com/wavescore/wavescore/pkg/wavescore/audio"
	"github.com/wavescore/wavescore/pkg/wavescore/score"
)

// Harmonic amplitudes of the voice, fundamental first.
var partials = [4]float64{1.0, 0.5, 0.25, 0.125}

// Envelope timings in seconds, sustain as a fraction of peak.
const (
	attackTime   = 0.010
	decayTime    = 0.040
	sustainLevel = 0.7
	releaseTime  = 0.060

	// masterPeak is the normalization target: output never exceeds it.
	masterPeak = 0.95
)

// Render synthesizes the document at the given sample rate. Parts are mixed
// additively and the result is peak-normalized to avoid clipping.
func Render(doc *score.Document, sampleRate int) (*audio.Waveform, error) {
	if sampleRate <= 0 {
		sampleRate = audio.DefaultSampleRate
	}
	secondsPerBeat := 60 / doc.TempoBPM

	notes, totalBeats, err := flatten(doc)
	if err != nil {
		return nil, err
	}

	totalSeconds := totalBeats*secondsPerBeat + releaseTime
	out := make([]float64, int(math.Ceil(totalSeconds*float64(sampleRate))))

	for _, n := range notes {
		renderNote(out, n, secondsPerBeat, sampleRate)
	}

	normalize(out)
	return &audio.Waveform{Samples: out, SampleRate: sampleRate, Channels: 1}, nil
}

// flatNote is a sustained note on the absolute beat timeline.
type flatNote struct {
	startBeats float64
	durBeats   float64
	freq       float64
	velocity   int
}

// flatten walks the document and merges tied elements into sustained notes,
// returning notes on an absolute beat timeline plus the total score length
// in beats.
func flatten(doc *score.Document) ([]flatNote, float64, error) {
	var notes []flatNote
	var totalBeats float64

	for _, part := range doc.Parts {
		var cursor float64

		var held *flatNote
		for _, m := range part.Measures {
			for _, v := range m.Voices {
				for _, el := range v.Elements {
					dur := ratFloat(el.DurationBeats)

					if el.Rest {
						if held != nil {
							notes = append(notes, *held)
							held = nil
						}
						cursor += dur
						continue
					}

					freq := score.MIDIToHz(el.Pitch.MIDI)
					if held != nil && el.TieStop && held.freq == freq {
						held.durBeats += dur
						cursor += dur
						if !el.TieStart {
							notes = append(notes, *held)
							held = nil
						}
						continue
					}
					if held != nil {
						notes = append(notes, *held)
						held = nil
					}

					n := flatNote{startBeats: cursor, durBeats: dur, freq: freq, velocity: el.Velocity}
					cursor += dur
					if el.TieStart {
						held = &n
					} else {
						notes = append(notes, n)
					}
				}
			}
		}
		if held != nil {
			notes = append(notes, *held)
		}
		if cursor > totalBeats {
			totalBeats = cursor
		}
	}
	return notes, totalBeats, nil
}

// renderNote adds one note's partials into the mix buffer.
func renderNote(out []float64, n flatNote, secondsPerBeat float64, sampleRate int) {
	startSec := n.startBeats * secondsPerBeat
	durSec := n.durBeats * secondsPerBeat
	amp := float64(n.velocity) / 127

	startSample := int(startSec * float64(sampleRate))
	nSamples := int((durSec + releaseTime) * float64(sampleRate))

	for i := 0; i < nSamples && startSample+i < len(out); i++ {
		t := float64(i) / float64(sampleRate)
		env := envelope(t, durSec)
		if env == 0 {
			continue
		}
		var s float64
		for h, pa := range partials {
			s += pa * math.Sin(2*math.Pi*n.freq*float64(h+1)*t)
		}
		out[startSample+i] += amp * env * s
	}
}

// envelope is a linear ADSR: t is time since note start, noteDur the time
// until note-off (release begins there).
func envelope(t, noteDur float64) float64 {
	if t < 0 {
		return 0
	}
	var level float64
	switch {
	case t < attackTime:
		level = t / attackTime
	case t < attackTime+decayTime:
		level = 1 - (1-sustainLevel)*(t-attackTime)/decayTime
	default:
		level = sustainLevel
	}
	if t >= noteDur {
		rel := (t - noteDur) / releaseTime
		if rel >= 1 {
			return 0
		}
		return level * (1 - rel)
	}
	return level
}

// normalize scales the mix down when its peak exceeds the master target.
func normalize(samples []float64) {
	var peak float64
	for _, s := range samples {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	if peak > masterPeak {
		scale := masterPeak / peak
		for i := range samples {
			samples[i] *= scale
		}
	}
}

func ratFloat(r *big.Rat) float64 {
	f, _ := r.Float64()
	return f
}
