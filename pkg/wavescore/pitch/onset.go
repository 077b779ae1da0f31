package pitch

// OnsetStrength computes a normalized spectral-flux envelope from a
// time-major magnitude spectrogram. Only positive bin-to-bin increases count
// (half-wave rectification), so note decays do not register as onsets. The
// envelope is scaled so its maximum is 1; an all-silent spectrogram yields
// all zeros.
func OnsetStrength(spectrogram [][]float64) []float64 {
	flux := make([]float64, len(spectrogram))
	var peak float64
	for t := 1; t < len(spectrogram); t++ {
		prev, cur := spectrogram[t-1], spectrogram[t]
		var sum float64
		for k := range cur {
			if d := cur[k] - prev[k]; d > 0 {
				sum += d
			}
		}
		flux[t] = sum
		if sum > peak {
			peak = sum
		}
	}
	// The very first frame is all onset by definition: anything sounding at
	// t=0 started there.
	if len(spectrogram) > 0 {
		var sum float64
		for _, m := range spectrogram[0] {
			sum += m
		}
		flux[0] = sum
		if sum > peak {
			peak = sum
		}
	}

	if peak > 0 {
		for i := range flux {
			flux[i] /= peak
		}
	}
	return flux
}
