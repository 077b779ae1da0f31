package audio

import (
	"bytes"
	"errors"
	"fmt"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	resampler "github.com/tphakala/go-audio-resampler"
)

var (
	// ErrUnsupportedFormat is returned when the input is not WAV-encoded PCM.
	ErrUnsupportedFormat = errors.New("unsupported audio format: expected PCM WAV")
	// ErrDecode is returned when a WAV byte stream is structurally malformed.
	ErrDecode = errors.New("malformed WAV byte stream")
	// ErrEmptyAudio is returned when the decoded signal has zero duration.
	ErrEmptyAudio = errors.New("audio contains no samples")
)

const wavPCMFormat = 1

// Decode parses WAV-encoded PCM bytes into a mono Waveform at
// DefaultSampleRate. Multi-channel input is downmixed by averaging; sources
// at other rates are resampled with a high-quality polyphase filter.
func Decode(data []byte) (*Waveform, error) {
	return DecodeAtRate(data, DefaultSampleRate)
}

// DecodeAtRate is Decode with an explicit target sample rate.
func DecodeAtRate(data []byte, targetRate int) (*Waveform, error) {
	if targetRate <= 0 {
		targetRate = DefaultSampleRate
	}
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, ErrUnsupportedFormat
	}

	decoder := wav.NewDecoder(bytes.NewReader(data))
	if !decoder.IsValidFile() {
		return nil, ErrUnsupportedFormat
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if decoder.WavAudioFormat != wavPCMFormat {
		return nil, fmt.Errorf("%w: audio format %d", ErrUnsupportedFormat, decoder.WavAudioFormat)
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		return nil, fmt.Errorf("%w: channel count %d", ErrDecode, channels)
	}
	sourceRate := buf.Format.SampleRate
	if sourceRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrDecode, sourceRate)
	}

	frames := len(buf.Data) / channels
	if frames == 0 {
		return nil, ErrEmptyAudio
	}

	samples := downmix(buf, frames)

	if sourceRate != targetRate {
		samples, err = resampler.ResampleMono(samples, float64(sourceRate), float64(targetRate), resampler.QualityHigh)
		if err != nil {
			return nil, fmt.Errorf("resampling %d Hz to %d Hz: %w", sourceRate, targetRate, err)
		}
		if len(samples) == 0 {
			return nil, ErrEmptyAudio
		}
	}

	return &Waveform{
		Samples:    samples,
		SampleRate: targetRate,
		Channels:   channels,
	}, nil
}

// downmix averages interleaved integer channels into mono float64 normalized
// to [-1, 1] at the source bit depth.
func downmix(buf *goaudio.IntBuffer, frames int) []float64 {
	channels := buf.Format.NumChannels
	bitDepth := buf.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := 1.0 / float64(int(1)<<(uint(bitDepth)-1))

	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(buf.Data[i*channels+c])
		}
		out[i] = sum * scale / float64(channels)
	}
	return out
}
