package pitch

import "math"

// YIN implements the YIN fundamental-frequency estimator (de Cheveigné &
// Kawahara 2002): squared-difference function, cumulative mean normalized
// difference, absolute threshold, and parabolic interpolation of the lag.
type YIN struct {
	sampleRate int
	threshold  float64 // CMNDF dip threshold, typically 0.10-0.15
	minFreq    float64
	maxFreq    float64
}

// NewYIN builds a detector for the given sample rate covering
// [minFreq, maxFreq] Hz.
func NewYIN(sampleRate int, minFreq, maxFreq float64) *YIN {
	return &YIN{
		sampleRate: sampleRate,
		threshold:  0.15,
		minFreq:    minFreq,
		maxFreq:    maxFreq,
	}
}

// Detect estimates the fundamental frequency of one frame. It returns the
// frequency in Hz and a confidence in [0, 1]; a frequency of 0 means the
// frame is aperiodic (unvoiced) at the detector's threshold.
func (y *YIN) Detect(frame []float64) (freq, confidence float64) {
	tauMin := int(float64(y.sampleRate) / y.maxFreq)
	tauMax := int(float64(y.sampleRate) / y.minFreq)
	half := len(frame) / 2
	if tauMax >= half {
		tauMax = half - 1
	}
	if tauMin < 2 || tauMax <= tauMin {
		return 0, 0
	}

	diff := differenceFunction(frame, tauMax)
	cmndf := cumulativeMeanNormalized(diff)

	tau := y.absoluteThreshold(cmndf, tauMin, tauMax)
	if tau == 0 {
		return 0, 0
	}

	betterTau := parabolicInterpolation(cmndf, tau)
	return float64(y.sampleRate) / betterTau, clamp01(1 - cmndf[tau])
}

// differenceFunction computes d(tau) over half the frame.
func differenceFunction(frame []float64, tauMax int) []float64 {
	half := len(frame) / 2
	d := make([]float64, tauMax+1)
	for tau := 1; tau <= tauMax; tau++ {
		var sum float64
		for i := 0; i < half; i++ {
			delta := frame[i] - frame[i+tau]
			sum += delta * delta
		}
		d[tau] = sum
	}
	return d
}

// cumulativeMeanNormalized converts d(tau) into d'(tau) with d'(0) = 1.
func cumulativeMeanNormalized(d []float64) []float64 {
	out := make([]float64, len(d))
	out[0] = 1
	var runningSum float64
	for tau := 1; tau < len(d); tau++ {
		runningSum += d[tau]
		if runningSum == 0 {
			out[tau] = 1
			continue
		}
		out[tau] = d[tau] * float64(tau) / runningSum
	}
	return out
}

// absoluteThreshold finds the first lag whose normalized difference dips
// below the threshold, then walks downhill to the local minimum. Returns 0
// when no dip qualifies.
func (y *YIN) absoluteThreshold(cmndf []float64, tauMin, tauMax int) int {
	for tau := tauMin; tau <= tauMax; tau++ {
		if cmndf[tau] < y.threshold {
			for tau+1 <= tauMax && cmndf[tau+1] < cmndf[tau] {
				tau++
			}
			return tau
		}
	}
	return 0
}

// parabolicInterpolation refines an integer lag to a fractional one by
// fitting a parabola through the neighboring CMNDF values.
func parabolicInterpolation(cmndf []float64, tau int) float64 {
	if tau <= 0 || tau >= len(cmndf)-1 {
		return float64(tau)
	}
	s0, s1, s2 := cmndf[tau-1], cmndf[tau], cmndf[tau+1]
	denom := 2 * (2*s1 - s2 - s0)
	if denom == 0 {
		return float64(tau)
	}
	adjustment := (s2 - s0) / denom
	if math.Abs(adjustment) > 1 {
		return float64(tau)
	}
	return float64(tau) + adjustment
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
