package domain

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Tier is a reputation bucket. Tiers are ordered: comparing two tiers with < gives
// their rank.
type Tier uint8

const (
	TierLow Tier = iota
	TierMid
	TierHigh
	TierOracle
)

// Tier keys as stored and exposed over the API
const (
	TierKeyLow    = "low"
	TierKeyMid    = "mid"
	TierKeyHigh   = "high"
	TierKeyOracle = "oracle"
)

// Reputation balance thresholds. A balance belongs to the highest tier whose
// threshold it reaches.
const (
	TierThresholdMid    uint64 = 1_000
	TierThresholdHigh   uint64 = 10_000
	TierThresholdOracle uint64 = 100_000
)

var tierKeys = [...]string{
	TierLow:    TierKeyLow,
	TierMid:    TierKeyMid,
	TierHigh:   TierKeyHigh,
	TierOracle: TierKeyOracle,
}

var titleCaser = cases.Title(language.English)

// AllTiers lists every tier from lowest to highest
func AllTiers() []Tier {
	return []Tier{TierLow, TierMid, TierHigh, TierOracle}
}

func (t Tier) String() string {
	if int(t) < len(tierKeys) {
		return tierKeys[t]
	}
	return fmt.Sprintf("tier(%d)", uint8(t))
}

// DisplayName returns the tier label shown to players
func (t Tier) DisplayName() string {
	return titleCaser.String(t.String())
}

// Valid reports whether t is one of the declared tiers
func (t Tier) Valid() bool {
	return int(t) < len(tierKeys)
}

// MarshalText implements encoding.TextMarshaler so tiers serialize as their key
func (t Tier) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: unknown tier %d", ErrInvalidInput, uint8(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (t *Tier) UnmarshalText(text []byte) error {
	parsed, err := ParseTier(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseTier converts a tier key back into a Tier
func ParseTier(key string) (Tier, error) {
	normalized := strings.ToLower(strings.TrimSpace(key))
	for i, k := range tierKeys {
		if k == normalized {
			return Tier(i), nil
		}
	}
	return TierLow, fmt.Errorf("%w: unknown tier %q", ErrInvalidInput, key)
}
