// Package segment groups frame-level pitch estimates into discrete note
// events. The tracker is monophonic: polyphonic input degrades to whatever
// pitch dominates each frame.
package segment

import (
	"math"
	"sort"

	"github.com/wavescore/wavescore/pkg/wavescore/audio"
	"github.com/wavescore/wavescore/pkg/wavescore/pitch"
)

// NoteEvent is a detected note in continuous time.
type NoteEvent struct {
	StartTime float64 // seconds
	Duration  float64 // seconds, > 0
	PitchHz   float64 // > 0
	Velocity  int     // 0..127, from peak frame energy
}

// Config holds the segmentation thresholds.
type Config struct {
	// OnsetThreshold is the normalized onset strength above which a rising
	// flux edge opens a new note.
	OnsetThreshold float64
	// PitchTolerance is the distance in semitones from the candidate's
	// running median beyond which a new note starts.
	PitchTolerance float64
	// SilenceTolerance is how long frames may stay unvoiced before the
	// current note closes, in seconds.
	SilenceTolerance float64
	// MinDuration discards shorter candidates as noise, in seconds.
	MinDuration float64
}

// DefaultConfig returns the thresholds used by the transcription service.
func DefaultConfig() Config {
	return Config{
		OnsetThreshold:   0.85,
		PitchTolerance:   0.6,
		SilenceTolerance: 0.08,
		MinDuration:      0.06,
	}
}

// tracker accumulates one in-progress note candidate.
type tracker struct {
	active     bool
	startTime  float64
	lastVoiced float64 // end time of the last voiced frame
	freqs      []float64
	peakEnergy float64
}

func (c *tracker) open(t float64) {
	*c = tracker{active: true, startTime: t, lastVoiced: t}
}

func (c *tracker) observe(est pitch.FrameEstimate, frameDur float64) {
	c.freqs = append(c.freqs, est.FrequencyHz)
	c.lastVoiced = est.Time + frameDur
	if est.Energy > c.peakEnergy {
		c.peakEnergy = est.Energy
	}
}

// Notes converts a frame estimate series into note events with strictly
// increasing, non-overlapping start times.
func Notes(frames []pitch.FrameEstimate, cfg Config) []NoteEvent {
	if len(frames) == 0 {
		return nil
	}

	frameDur := hopDuration(frames)
	var (
		events    []NoteEvent
		cand      tracker
		prevOnset float64
	)

	closeCandidate := func() {
		if cand.active {
			if ev, ok := finishCandidate(&cand, cfg); ok {
				events = append(events, ev)
			}
			cand = tracker{}
		}
	}

	for _, est := range frames {
		onsetFired := est.OnsetStrength >= cfg.OnsetThreshold && est.OnsetStrength > prevOnset
		prevOnset = est.OnsetStrength

		if !est.Voiced {
			if cand.active && est.Time-cand.lastVoiced >= cfg.SilenceTolerance {
				closeCandidate()
			}
			continue
		}

		switch {
		case !cand.active:
			cand.open(est.Time)
		case onsetFired:
			closeCandidate()
			cand.open(est.Time)
		case len(cand.freqs) > 0 && semitoneDistance(est.FrequencyHz, median(cand.freqs)) > cfg.PitchTolerance:
			closeCandidate()
			cand.open(est.Time)
		}

		cand.observe(est, frameDur)
	}
	closeCandidate()

	return events
}

// finishCandidate turns a tracker into an event, or rejects it as noise.
func finishCandidate(c *tracker, cfg Config) (NoteEvent, bool) {
	if len(c.freqs) == 0 {
		return NoteEvent{}, false
	}
	duration := c.lastVoiced - c.startTime
	if duration < cfg.MinDuration {
		return NoteEvent{}, false
	}
	return NoteEvent{
		StartTime: c.startTime,
		Duration:  duration,
		// Median rather than mean: a single octave-jump outlier frame must
		// not drag the reported pitch.
		PitchHz:  median(c.freqs),
		Velocity: velocityFromEnergy(c.peakEnergy),
	}, true
}

// velocityFromEnergy maps peak frame RMS to MIDI velocity. A full-scale sine
// has RMS about 0.707, which maps to 127.
func velocityFromEnergy(peak float64) int {
	v := int(math.Round(peak / 0.707 * 127))
	if v > 127 {
		v = 127
	}
	if v < 1 {
		v = 1
	}
	return v
}

func semitoneDistance(a, b float64) float64 {
	if a <= 0 || b <= 0 {
		return math.Inf(1)
	}
	return math.Abs(12 * math.Log2(a/b))
}

func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// hopDuration infers the time per frame from the series itself.
func hopDuration(frames []pitch.FrameEstimate) float64 {
	if len(frames) > 1 {
		return frames[1].Time - frames[0].Time
	}
	return float64(pitch.DefaultHopSize) / float64(audio.DefaultSampleRate)
}
