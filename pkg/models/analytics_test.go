package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContractionClassify(t *testing.T) {
	mvc := 50.0
	dur := 500.0

	t.Run("both thresholds present", func(t *testing.T) {
		c := Contraction{MaxAmplitude: 60, DurationMS: 600}
		c.Classify(&mvc, &dur)
		assert.True(t, c.MeetsMVC)
		assert.True(t, c.MeetsDuration)
		assert.True(t, c.IsGood)
	})

	t.Run("only mvc meets", func(t *testing.T) {
		c := Contraction{MaxAmplitude: 60, DurationMS: 100}
		c.Classify(&mvc, &dur)
		assert.True(t, c.MeetsMVC)
		assert.False(t, c.MeetsDuration)
		assert.False(t, c.IsGood)
	})

	t.Run("only mvc threshold defined", func(t *testing.T) {
		c := Contraction{MaxAmplitude: 60, DurationMS: 100}
		c.Classify(&mvc, nil)
		assert.True(t, c.IsGood)
	})

	t.Run("only duration threshold defined", func(t *testing.T) {
		c := Contraction{MaxAmplitude: 10, DurationMS: 600}
		c.Classify(nil, &dur)
		assert.True(t, c.IsGood)
	})

	t.Run("no thresholds defined", func(t *testing.T) {
		c := Contraction{MaxAmplitude: 999, DurationMS: 999}
		c.Classify(nil, nil)
		assert.False(t, c.IsGood)
		assert.False(t, c.MeetsMVC)
		assert.False(t, c.MeetsDuration)
	})
}

func TestChannelAnalyticsValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		ca := ChannelAnalytics{TotalContractions: 10, MVCCompliantCount: 8, DurationCompliantCount: 7, GoodCount: 6}
		require.NoError(t, ca.Validate())
	})

	t.Run("good exceeds compliant", func(t *testing.T) {
		ca := ChannelAnalytics{TotalContractions: 10, MVCCompliantCount: 5, DurationCompliantCount: 7, GoodCount: 6}
		require.Error(t, ca.Validate())
	})

	t.Run("negative count", func(t *testing.T) {
		ca := ChannelAnalytics{TotalContractions: -1}
		require.Error(t, ca.Validate())
	})
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "Quadriceps", BaseName("Quadriceps Raw"))
	assert.Equal(t, "Quadriceps", BaseName("Quadriceps activated"))
	assert.Equal(t, "Quadriceps", BaseName("Quadriceps"))
}
