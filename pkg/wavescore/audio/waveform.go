package audio

// DefaultSampleRate is the rate the pipeline analyzes at. Decoded audio is
// resampled to this rate before any pitch estimation happens.
const DefaultSampleRate = 22050

// Waveform is a decoded, mono, normalized audio signal. It is treated as
// immutable once returned from Decode.
type Waveform struct {
	Samples    []float64 // normalized to [-1, 1]
	SampleRate int       // Hz, > 0
	Channels   int       // channel count of the source before downmix
}

// Duration returns the signal length in seconds.
func (w *Waveform) Duration() float64 {
	if w.SampleRate == 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}
