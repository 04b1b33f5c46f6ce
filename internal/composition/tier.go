package composition

import "github.com/osse101/riddlegroup/internal/domain"

type tierThreshold struct {
	min  uint64
	tier domain.Tier
}

// Ordered from highest to lowest so the first match wins
var tierThresholds = []tierThreshold{
	{min: domain.TierThresholdOracle, tier: domain.TierOracle},
	{min: domain.TierThresholdHigh, tier: domain.TierHigh},
	{min: domain.TierThresholdMid, tier: domain.TierMid},
	{min: 0, tier: domain.TierLow},
}

// TierOf classifies a reputation balance
func TierOf(balance uint64) domain.Tier {
	for _, t := range tierThresholds {
		if balance >= t.min {
			return t.tier
		}
	}
	return domain.TierLow
}

// TierCounts tallies members per tier
type TierCounts struct {
	Oracle int `json:"oracle"`
	High   int `json:"high"`
	Mid    int `json:"mid"`
	Low    int `json:"low"`
}

func (c *TierCounts) add(t domain.Tier) {
	switch t {
	case domain.TierOracle:
		c.Oracle++
	case domain.TierHigh:
		c.High++
	case domain.TierMid:
		c.Mid++
	default:
		c.Low++
	}
}

// HighOrOracle returns the size of the shared high/oracle bucket
func (c TierCounts) HighOrOracle() int {
	return c.High + c.Oracle
}
