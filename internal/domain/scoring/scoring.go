// Package scoring maps raw channel readings to bounded scores and risk levels.
package scoring

import (
	"fmt"
	"math"
)

// Risk classification thresholds. Lower bounds are inclusive.
const (
	HighThreshold     = 0.6
	ModerateThreshold = 0.3
)

// epsilon floors the range width so a degenerate range never divides by zero.
const epsilon = 1e-9

// Risk is an ordinal risk level derived from a normalized score.
type Risk string

// Risk levels, lowest first.
const (
	RiskLow      Risk = "low"
	RiskModerate Risk = "moderate"
	RiskHigh     Risk = "high"
)

// Level returns the ordinal of r: 0 for low, 1 for moderate, 2 for high.
// Unknown values rank as low.
func (r Risk) Level() int {
	switch r {
	case RiskHigh:
		return 2
	case RiskModerate:
		return 1
	default:
		return 0
	}
}

func (r Risk) String() string { return string(r) }

// ParseRisk parses a risk level name.
func ParseRisk(s string) (Risk, error) {
	switch Risk(s) {
	case RiskLow, RiskModerate, RiskHigh:
		return Risk(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRisk, s)
}

// Range is the raw reading interval mapped onto [0, 1].
type Range struct {
	Min float64 `json:"min" koanf:"min"`
	Max float64 `json:"max" koanf:"max"`
}

// Width returns Max-Min floored at a small positive epsilon.
func (r Range) Width() float64 {
	return math.Max(epsilon, r.Max-r.Min)
}

// Normalize maps raw into [0, 1] relative to r, clamping out-of-range values.
// NaN maps to 0.
func Normalize(raw float64, r Range) float64 {
	score := (raw - r.Min) / r.Width()
	if math.IsNaN(score) {
		return 0
	}
	return clamp01(score)
}

// Classify returns the risk level for a normalized score.
func Classify(score float64) Risk {
	switch {
	case score >= HighThreshold:
		return RiskHigh
	case score >= ModerateThreshold:
		return RiskModerate
	default:
		return RiskLow
	}
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}
