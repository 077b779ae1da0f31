package audio

import (
	"encoding/binary"
	"math"
)

// Encode serializes a Waveform as a 16-bit PCM mono WAV byte stream.
// Samples outside [-1, 1] are clamped.
func Encode(w *Waveform) []byte {
	const (
		channels      = 1
		bitsPerSample = 16
		bytesPerSamp  = 2
	)

	dataSize := len(w.Samples) * bytesPerSamp
	byteRate := w.SampleRate * channels * bytesPerSamp
	blockAlign := channels * bytesPerSamp

	out := make([]byte, 44+dataSize)
	copy(out[0:], []byte("RIFF"))
	binary.LittleEndian.PutUint32(out[4:], uint32(36+dataSize))
	copy(out[8:], []byte("WAVE"))
	copy(out[12:], []byte("fmt "))
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], wavPCMFormat)
	binary.LittleEndian.PutUint16(out[22:], channels)
	binary.LittleEndian.PutUint32(out[24:], uint32(w.SampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:], bitsPerSample)
	copy(out[36:], []byte("data"))
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))

	for i, s := range w.Samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int16(math.Round(s * 32767))
		binary.LittleEndian.PutUint16(out[44+i*2:], uint16(v))
	}
	return out
}
