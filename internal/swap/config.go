package swap

import (
	"fmt"
	"strings"
)

// Quality is the requested output quality tier.
type Quality string

const (
	QualityLow  Quality = "low"
	QualityHigh Quality = "high"
)

// ParseQuality accepts "low" or "high" in any case.
func ParseQuality(s string) (Quality, error) {
	switch q := Quality(strings.ToLower(strings.TrimSpace(s))); q {
	case QualityLow, QualityHigh:
		return q, nil
	default:
		return "", fmt.Errorf("invalid quality %q: must be low or high", s)
	}
}

// Config is the per-request swap configuration. Only Enhance changes the
// request sent to the model; Quality and BlendStrength are recorded in logs.
type Config struct {
	Quality       Quality `json:"quality"`
	Enhance       bool    `json:"enhance"`
	BlendStrength float64 `json:"blendStrength"`
}

// DefaultConfig is what the workflow uses when the caller has no preference.
func DefaultConfig() Config {
	return Config{Quality: QualityHigh, Enhance: true, BlendStrength: 0.8}
}

// Validate checks the enum and range constraints.
func (c Config) Validate() error {
	if c.Quality != QualityLow && c.Quality != QualityHigh {
		return fmt.Errorf("invalid quality %q: must be low or high", c.Quality)
	}
	if c.BlendStrength < 0 || c.BlendStrength > 1 {
		return fmt.Errorf("invalid blend strength %v: must be within [0, 1]", c.BlendStrength)
	}
	return nil
}
