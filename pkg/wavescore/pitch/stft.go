package pitch

import (
	"errors"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// MagnitudeSpectrum converts a complex spectrum into a magnitude spectrum
// keeping positive frequencies only.
func MagnitudeSpectrum(spectrum []complex128) []float64 {
	half := len(spectrum) / 2
	mag := make([]float64, half)
	for i := 0; i < half; i++ {
		mag[i] = cmplx.Abs(spectrum[i])
	}
	return mag
}

// STFT computes a time-major magnitude spectrogram:
// spectrogram[frameIdx][freqBin]. Frames that would run past the end of the
// signal are zero-padded so every hop produces a frame.
func STFT(samples []float64, frameSize, hopSize int, window []float64) ([][]float64, error) {
	if len(window) != frameSize {
		return nil, errors.New("window length must equal frame size")
	}
	if frameSize <= 0 || hopSize <= 0 {
		return nil, errors.New("frame size and hop size must be positive")
	}

	nFrames := frameCount(len(samples), frameSize, hopSize)
	spectrogram := make([][]float64, 0, nFrames)
	frame := make([]float64, frameSize)
	for idx := 0; idx < nFrames; idx++ {
		start := idx * hopSize
		n := copy(frame, samples[start:min(start+frameSize, len(samples))])
		for i := n; i < frameSize; i++ {
			frame[i] = 0
		}
		for i := 0; i < frameSize; i++ {
			frame[i] *= window[i]
		}
		spectrogram = append(spectrogram, MagnitudeSpectrum(fft.FFTReal(frame)))
	}
	return spectrogram, nil
}

// frameCount returns the number of hops needed to cover the signal. A signal
// shorter than one frame still yields a single zero-padded frame.
func frameCount(nSamples, frameSize, hopSize int) int {
	if nSamples == 0 {
		return 0
	}
	if nSamples <= frameSize {
		return 1
	}
	return (nSamples-frameSize)/hopSize + 1
}
