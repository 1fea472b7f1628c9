package mvc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEstimate_PrefersRMSEnvelope(t *testing.T) {
	inputs := []ChannelInput{
		{ChannelName: "CH1", RMSEnvelope: []float64{1, 2, 3, 4, 5}, RawSignal: []float64{100, 200}},
	}
	out := Estimate(inputs, 0.75, time.Unix(0, 0))
	est := out["CH1"]
	assert.Equal(t, "rms_envelope", est.EstimationMethod)
	assert.InDelta(t, 5*0.75, est.ThresholdValue, 0.001)
}

func TestEstimate_FallsBackToRawSignal(t *testing.T) {
	inputs := []ChannelInput{
		{ChannelName: "CH2", RawSignal: []float64{-10, 5, 8}},
	}
	out := Estimate(inputs, 0.5, time.Unix(0, 0))
	est := out["CH2"]
	assert.Equal(t, "raw_rms_fallback", est.EstimationMethod)
	assert.Less(t, est.ConfidenceScore, 0.9)
}
