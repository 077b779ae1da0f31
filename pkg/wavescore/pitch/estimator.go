package pitch

import (
	"math"
	"runtime"
	"sync"

	"github.com/wavescore/wavescore/pkg/wavescore/audio"
)

// Analysis tunables. Frame and hop sizes can be overridden per call; the
// rest follow the source material's piano-range defaults.
const (
	DefaultFrameSize = 2048
	DefaultHopSize   = 512

	// MinFreq/MaxFreq bound detection to A0..C8.
	MinFreq = 27.5
	MaxFreq = 4186.0

	// SilenceRMS is the frame energy below which a frame is unvoiced.
	SilenceRMS = 0.007
)

// FrameEstimate is one analysis frame's pitch and onset estimate. Estimates
// are never mutated after creation.
type FrameEstimate struct {
	Time          float64 // frame center offset in seconds
	FrequencyHz   float64 // fundamental estimate; meaningless when !Voiced
	Voiced        bool
	Confidence    float64 // [0, 1], periodicity confidence
	Energy        float64 // frame RMS, >= 0
	OnsetStrength float64 // [0, 1], normalized spectral flux
}

// Estimate analyzes the waveform in overlapping frames and returns one
// FrameEstimate per hop, in frame-index order. It is deterministic for
// identical input and never fails on a valid waveform: silent audio yields
// an all-unvoiced series.
//
// Per-frame pitch detection is independent, so frames are fanned out across
// CPUs; results land in a preallocated slice indexed by frame, which keeps
// output ordering independent of goroutine completion order.
func Estimate(w *audio.Waveform, frameSize, hopSize int) []FrameEstimate {
	if frameSize <= 0 {
		frameSize = DefaultFrameSize
	}
	if hopSize <= 0 {
		hopSize = DefaultHopSize
	}

	nFrames := frameCount(len(w.Samples), frameSize, hopSize)
	if nFrames == 0 {
		return nil
	}

	// Onset envelope comes from the windowed spectrogram; the error paths in
	// STFT are unreachable with the arguments built here.
	spec, _ := STFT(w.Samples, frameSize, hopSize, Hann(frameSize))
	onsets := OnsetStrength(spec)

	estimates := make([]FrameEstimate, nFrames)

	var wg sync.WaitGroup
	workers := runtime.NumCPU()
	if workers > nFrames {
		workers = nFrames
	}
	chunk := (nFrames + workers - 1) / workers

	for start := 0; start < nFrames; start += chunk {
		end := start + chunk
		if end > nFrames {
			end = nFrames
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			detector := NewYIN(w.SampleRate, MinFreq, MaxFreq)
			frame := make([]float64, frameSize)
			for idx := lo; idx < hi; idx++ {
				estimates[idx] = estimateFrame(w, detector, frame, idx, frameSize, hopSize, onsets[idx])
			}
		}(start, end)
	}
	wg.Wait()

	return estimates
}

func estimateFrame(w *audio.Waveform, detector *YIN, frame []float64, idx, frameSize, hopSize int, onset float64) FrameEstimate {
	start := idx * hopSize
	n := copy(frame, w.Samples[start:min(start+frameSize, len(w.Samples))])
	for i := n; i < frameSize; i++ {
		frame[i] = 0
	}

	est := FrameEstimate{
		Time:          float64(start) / float64(w.SampleRate),
		Energy:        rms(frame),
		OnsetStrength: onset,
	}

	if est.Energy < SilenceRMS {
		return est
	}

	freq, confidence := detector.Detect(frame)
	if freq >= MinFreq && freq <= MaxFreq {
		est.FrequencyHz = freq
		est.Voiced = true
		est.Confidence = confidence
	}
	return est
}

func rms(frame []float64) float64 {
	var sum float64
	for _, s := range frame {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(frame)))
}
