package analytics

import (
	"math"
	"testing"

	"github.com/clinictrack/emgcore/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sineWave(freqHz, sampleRateHz float64, n int) []float64 {
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = math.Sin(2 * math.Pi * freqHz * float64(i) / sampleRateHz)
	}
	return xs
}

func TestResolveMVCThreshold_PriorityChain(t *testing.T) {
	muscleVal := 100.0
	musclePct := 0.8
	globalPct := 0.5

	t.Run("muscle value and muscle pct wins", func(t *testing.T) {
		r := ResolveMVCThreshold(MVCInputs{MuscleMVCValue: &muscleVal, MuscleThresholdPct: &musclePct, GlobalThresholdPct: &globalPct}, nil)
		assert.Equal(t, "explicit", r.EstimationMethod)
		assert.InDelta(t, 80.0, r.Threshold, 0.001)
	})

	t.Run("falls back to backend estimation", func(t *testing.T) {
		raw := make([]float64, 100)
		for i := range raw {
			raw[i] = float64(i)
		}
		r := ResolveMVCThreshold(MVCInputs{DefaultThresholdPct: 0.75}, raw)
		assert.Equal(t, "backend_estimation", r.EstimationMethod)
		assert.Greater(t, r.Threshold, 0.0)
	})
}

func TestCompute_SpectralMetricsRunWithoutPanicking(t *testing.T) {
	fs := 1000.0
	raw := sineWave(80, fs, 4000)
	envelope := make([]float64, len(raw))
	for i, v := range raw {
		envelope[i] = math.Abs(v)
	}
	result := Compute(Defaults(), "CH1", raw, envelope, fs)
	assert.True(t, result.RMS.Valid)
	assert.GreaterOrEqual(t, result.SignalQualityScore, 0.0)
	assert.LessOrEqual(t, result.SignalQualityScore, 100.0)
}

func TestCompute_FullSignalSpectralScalarsPopulated(t *testing.T) {
	fs := 1000.0
	raw := sineWave(80, fs, 4000)
	envelope := make([]float64, len(raw))
	for i, v := range raw {
		envelope[i] = math.Abs(v)
	}
	result := Compute(Defaults(), "CH1", raw, envelope, fs)
	assert.Greater(t, result.MPFFull, 0.0)
	assert.Greater(t, result.MDFFull, 0.0)
}

func TestAggregateContractions_EmptyYieldsZeroValue(t *testing.T) {
	amp, dur := AggregateContractions(nil)
	assert.Zero(t, amp)
	assert.Zero(t, dur)
}

func TestAggregateContractions_RollsUpAmplitudeAndDuration(t *testing.T) {
	contractions := []models.Contraction{
		{DurationMS: 500, MeanAmplitude: 10, MaxAmplitude: 20},
		{DurationMS: 1500, MeanAmplitude: 30, MaxAmplitude: 50},
	}
	amp, dur := AggregateContractions(contractions)
	assert.InDelta(t, 20.0, amp.Mean, 0.001)
	assert.Equal(t, amp.Mean, amp.Avg)
	assert.InDelta(t, 50.0, amp.Max, 0.001)
	assert.InDelta(t, 500.0, dur.MinMS, 0.001)
	assert.InDelta(t, 1500.0, dur.MaxMS, 0.001)
	assert.InDelta(t, 1000.0, dur.MeanMS, 0.001)
	assert.InDelta(t, 2000.0, dur.TotalTimeUnderTensionMS, 0.001)
}

func TestSlidingWindowStat_InvalidBelowMinWindows(t *testing.T) {
	stat := slidingWindowStat(make([]float64, 10), 100, 50, rmsOf)
	require.False(t, stat.Valid)
}
