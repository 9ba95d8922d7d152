package domain

import "math"

// RiskTier buckets a CRL probability.
type RiskTier string

const (
	RiskHigh     RiskTier = "HIGH"
	RiskElevated RiskTier = "ELEVATED"
	RiskModerate RiskTier = "MODERATE"
	RiskLow      RiskTier = "LOW"
)

// Tier thresholds on CRL probability.
const (
	TierHighMin     = 0.50
	TierElevatedMin = 0.30
	TierModerateMin = 0.15
)

// CRLThreshold is the CRL probability at or above which a CRL is predicted.
const CRLThreshold = 0.5

// probabilityPrecision is the resolution probabilities are compared at.
const probabilityPrecision = 1e9

// RoundProbability rounds p to 1e-9. Cap, tier and threshold comparisons
// use rounded values.
func RoundProbability(p float64) float64 {
	return math.Round(p*probabilityPrecision) / probabilityPrecision
}

// RiskTiers lists tiers from most to least severe.
func RiskTiers() []RiskTier {
	return []RiskTier{RiskHigh, RiskElevated, RiskModerate, RiskLow}
}

// TierFor returns the risk tier for a CRL probability.
func TierFor(crlProbability float64) RiskTier {
	crlProbability = RoundProbability(crlProbability)
	switch {
	case crlProbability >= TierHighMin:
		return RiskHigh
	case crlProbability >= TierElevatedMin:
		return RiskElevated
	case crlProbability >= TierModerateMin:
		return RiskModerate
	default:
		return RiskLow
	}
}

// String returns the string representation of RiskTier.
func (t RiskTier) String() string {
	return string(t)
}
