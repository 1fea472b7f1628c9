package contraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pulse(total int, starts, ends []int, high, low float64) []float64 {
	xs := make([]float64, total)
	for i := range xs {
		xs[i] = low
	}
	for k := range starts {
		for i := starts[k]; i <= ends[k]; i++ {
			xs[i] = high
		}
	}
	return xs
}

func TestDetect_SingleContractionBothThresholds(t *testing.T) {
	env := pulse(1000, []int{100}, []int{300}, 1.0, 0.0)
	mvc := 0.5
	dur := 100.0
	res, err := Detect(Input{
		Envelope:            env,
		SamplingRateHz:      1000,
		MVCThreshold:        &mvc,
		DurationThresholdMS: &dur,
		Config:              Defaults(),
	})
	require.NoError(t, err)
	require.Len(t, res.Contractions, 1)
	assert.True(t, res.Contractions[0].IsGood)
	assert.Equal(t, 1, res.GoodCount)
}

func TestDetect_MergesCloseRegions(t *testing.T) {
	env := pulse(1000, []int{100, 150}, []int{120, 200}, 1.0, 0.0)
	cfg := Defaults()
	cfg.MergeThresholdMS = 200
	res, err := Detect(Input{Envelope: env, SamplingRateHz: 1000, Config: cfg})
	require.NoError(t, err)
	require.Len(t, res.Contractions, 1)
}

func TestDetect_NoRawSignal(t *testing.T) {
	_, err := Detect(Input{Envelope: nil, SamplingRateHz: 1000})
	require.Error(t, err)
}

func TestDetect_UndefinedThresholdsAlwaysBad(t *testing.T) {
	env := pulse(1000, []int{100}, []int{300}, 1.0, 0.0)
	res, err := Detect(Input{Envelope: env, SamplingRateHz: 1000, Config: Defaults()})
	require.NoError(t, err)
	require.Len(t, res.Contractions, 1)
	assert.False(t, res.Contractions[0].IsGood)
	assert.Equal(t, 0, res.GoodCount)
}

func TestDetect_RefractoryDropsCloseFollowup(t *testing.T) {
	env := pulse(1000, []int{100, 160}, []int{120, 180}, 1.0, 0.0)
	cfg := Defaults()
	cfg.MergeThresholdMS = 0
	cfg.RefractoryPeriodMS = 100
	res, err := Detect(Input{Envelope: env, SamplingRateHz: 1000, Config: cfg})
	require.NoError(t, err)
	assert.Len(t, res.Contractions, 1)
}
