package analytics

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// psd computes a single-sided power spectral density periodogram of xs at
// the given sample rate. Returns the frequency bins and their power.
func psd(xs []float64, sampleRateHz float64) (freqs, power []float64) {
	n := len(xs)
	if n == 0 {
		return nil, nil
	}
	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, xs)

	bins := n/2 + 1
	freqs = make([]float64, bins)
	power = make([]float64, bins)
	for i := 0; i < bins; i++ {
		freqs[i] = float64(i) * sampleRateHz / float64(n)
		c := coeffs[i]
		mag := c.Real*c.Real + c.Imag*c.Imag
		power[i] = mag / float64(n)
	}
	return freqs, power
}

// meanPowerFrequency is MPF = sum(f*P) / sum(P).
func meanPowerFrequency(freqs, power []float64) float64 {
	var num, den float64
	for i := range freqs {
		num += freqs[i] * power[i]
		den += power[i]
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// medianPowerFrequency is MDF: the frequency at which cumulative power
// reaches half of total power.
func medianPowerFrequency(freqs, power []float64) float64 {
	var total float64
	for _, p := range power {
		total += p
	}
	if total == 0 {
		return 0
	}
	half := total / 2
	var cum float64
	for i, p := range power {
		cum += p
		if cum >= half {
			return freqs[i]
		}
	}
	return freqs[len(freqs)-1]
}

// fatigueIndexFINSM5 is the Dimitrov normalized spectral moment fatigue
// index: ratio of the -1 order spectral moment to the 5th order moment.
// Rises as a muscle fatigues (spectral energy shifts to lower frequencies,
// growing the -1 order moment and shrinking the 5th), making it a standard
// EMG fatigue indicator.
func fatigueIndexFINSM5(freqs, power []float64) float64 {
	var mNeg1, m5 float64
	for i, f := range freqs {
		if f <= 0 {
			continue
		}
		mNeg1 += math.Pow(f, -1) * power[i]
		m5 += math.Pow(f, 5) * power[i]
	}
	if m5 == 0 {
		return 0
	}
	return mNeg1 / m5
}
