package signal

import (
	"math"
	"testing"

	"github.com/clinictrack/emgcore/internal/emgerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func syntheticEMG(n int, fs float64) []float64 {
	xs := make([]float64, n)
	for i := range xs {
		t := float64(i) / fs
		xs[i] = math.Sin(2*math.Pi*80*t) + 0.3*math.Sin(2*math.Pi*5*t)
	}
	return xs
}

func TestCondition_HappyPath(t *testing.T) {
	cfg := Defaults()
	raw := syntheticEMG(2000, 1000)
	out, err := Condition(cfg, "CH1", raw, 1000)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.True(t, out.Report.Valid)
	assert.Equal(t, len(raw), len(out.Envelope))
	for _, v := range out.Envelope {
		assert.GreaterOrEqual(t, v, 0.0)
	}
}

func TestCondition_InsufficientDuration(t *testing.T) {
	cfg := Defaults()
	raw := syntheticEMG(30, 1000)
	_, err := Condition(cfg, "CH1", raw, 1000)
	require.Error(t, err)

	e, ok := emgerrors.As(err)
	require.True(t, ok)
	assert.Equal(t, emgerrors.KindInsufficientDuration, e.Kind)
	require.NotNil(t, e.ValidationDetail)
	assert.Equal(t, 30, e.ValidationDetail.ActualSamples)
	assert.Equal(t, MinSamplesRequired(cfg, 1000), e.ValidationDetail.MinSamplesRequired)
	assert.NotEmpty(t, e.ValidationDetail.UserGuidancePrimary)
}

func TestCondition_NyquistBoundaryClamps(t *testing.T) {
	cfg := Defaults()
	raw := syntheticEMG(2000, 40)
	out, err := Condition(cfg, "CH1", raw, 40)
	require.NoError(t, err)
	assert.InDelta(t, 18.0, out.Report.EffectiveHighHz, 0.01)
}

func TestCondition_EmptySignal(t *testing.T) {
	cfg := Defaults()
	_, err := Condition(cfg, "CH1", nil, 1000)
	require.Error(t, err)
}

func TestCondition_ConstantSignalMarkedInvalid(t *testing.T) {
	cfg := Defaults()
	raw := make([]float64, 2000)
	for i := range raw {
		raw[i] = 1.0
	}
	out, err := Condition(cfg, "CH1", raw, 1000)
	require.NoError(t, err)
	assert.False(t, out.Report.Valid)
}

func TestMinSamplesRequired(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, 1000, MinSamplesRequired(cfg, 1000))
}
