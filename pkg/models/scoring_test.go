package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultScoringConfigurationWeightsValid(t *testing.T) {
	cfg := DefaultScoringConfiguration()
	require.NoError(t, cfg.ValidateWeights())
	assert.True(t, cfg.IsDefault)
}

func TestValidateWeightsRejectsUnnormalized(t *testing.T) {
	cfg := DefaultScoringConfiguration()
	cfg.WeightCompliance = 0.9
	require.Error(t, cfg.ValidateWeights())
}

func TestDefaultRPEMappingBands(t *testing.T) {
	m := DefaultRPEMapping()
	assert.Equal(t, 100.0, m[5])
	assert.Equal(t, 80.0, m[3])
	assert.Equal(t, 60.0, m[2])
	assert.Equal(t, 20.0, m[0])
	assert.Equal(t, 20.0, m[10])
}

func TestPerformanceScoresValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		p := PerformanceScores{Overall: 50, Compliance: 50, Symmetry: 100, CompletionRateLeft: 1.0}
		require.NoError(t, p.Validate())
	})

	t.Run("rate out of bounds", func(t *testing.T) {
		p := PerformanceScores{CompletionRateLeft: 1.5}
		require.Error(t, p.Validate())
	})

	t.Run("score out of bounds", func(t *testing.T) {
		p := PerformanceScores{Overall: 150}
		require.Error(t, p.Validate())
	})
}
