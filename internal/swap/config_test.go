package swap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, QualityHigh, cfg.Quality)
	assert.True(t, cfg.Enhance)
	assert.InDelta(t, 0.8, cfg.BlendStrength, 1e-9)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	assert.Error(t, Config{Quality: "medium"}.Validate())
	assert.Error(t, Config{Quality: QualityLow, BlendStrength: 1.5}.Validate())
	assert.Error(t, Config{Quality: QualityLow, BlendStrength: -0.1}.Validate())
	assert.NoError(t, Config{Quality: QualityLow, BlendStrength: 0}.Validate())
	assert.NoError(t, Config{Quality: QualityHigh, BlendStrength: 1}.Validate())
}

func TestParseQuality(t *testing.T) {
	q, err := ParseQuality(" HIGH ")
	require.NoError(t, err)
	assert.Equal(t, QualityHigh, q)

	q, err = ParseQuality("low")
	require.NoError(t, err)
	assert.Equal(t, QualityLow, q)

	_, err = ParseQuality("ultra")
	assert.Error(t, err)
}
