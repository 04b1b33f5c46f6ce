package composition

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osse101/riddlegroup/internal/domain"
	"github.com/osse101/riddlegroup/internal/ledger"
)

const (
	lowBalance    = 500
	midBalance    = 5_000
	highBalance   = 50_000
	oracleBalance = 500_000
)

// fixtureLedger registers low1..low9, mid1..mid9, high1..high9 and oracle1..oracle9
func fixtureLedger() *ledger.MemoryReputation {
	seed := make(map[string]uint64)
	for i := 1; i <= 9; i++ {
		seed[fmt.Sprintf("low%d", i)] = lowBalance
		seed[fmt.Sprintf("mid%d", i)] = midBalance
		seed[fmt.Sprintf("high%d", i)] = highBalance
		seed[fmt.Sprintf("oracle%d", i)] = oracleBalance
	}
	return ledger.NewMemoryReputation(seed)
}

type mapDilution map[string]uint64

func (m mapDilution) ActiveGroupCount(_ context.Context, participant string) (uint64, error) {
	return m[participant], nil
}

type failingLedger struct{}

func (failingLedger) BalanceOf(context.Context, string) (uint64, error) {
	return 0, errors.New("ledger offline")
}

func TestTierOf(t *testing.T) {
	tests := []struct {
		balance uint64
		want    domain.Tier
	}{
		{0, domain.TierLow},
		{999, domain.TierLow},
		{1_000, domain.TierMid},
		{9_999, domain.TierMid},
		{10_000, domain.TierHigh},
		{18_500, domain.TierHigh},
		{99_999, domain.TierHigh},
		{100_000, domain.TierOracle},
		{^uint64(0), domain.TierOracle},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d", tt.balance), func(t *testing.T) {
			assert.Equal(t, tt.want, TierOf(tt.balance))
		})
	}
}

func TestCountTiers(t *testing.T) {
	v := NewValidator(fixtureLedger())
	counts, err := v.CountTiers(context.Background(), []string{"low1", "low2", "mid1", "high1", "oracle1", "unknown"})
	require.NoError(t, err)
	assert.Equal(t, TierCounts{Oracle: 1, High: 1, Mid: 1, Low: 3}, counts)
	assert.Equal(t, 2, counts.HighOrOracle())
}

func TestValidateComposition(t *testing.T) {
	twelve := []string{"low1", "low2", "low3", "low4", "low5", "mid1", "mid2", "mid3", "mid4", "high1", "high2", "oracle1"}

	tests := []struct {
		name    string
		members []string
		reason  string
	}{
		{"minimal valid group", []string{"low1", "mid1", "high1"}, ""},
		{"oracle satisfies high bucket", []string{"low1", "mid1", "oracle1"}, ""},
		{"largest valid group", []string{"low1", "low2", "low3", "low4", "low5", "mid1", "mid2", "mid3", "mid4", "high1", "oracle1"}, ""},
		{"duplicate member", []string{"low1", "mid1", "low1"}, ReasonDuplicateMember},
		{"duplicate wins over size", append([]string{"low1"}, twelve...), ReasonDuplicateMember},
		{"too few members", []string{"low1", "mid1"}, ReasonMinimumMembers},
		{"empty group", nil, ReasonMinimumMembers},
		{"too many members", twelve, ReasonMaximumMembers},
		{"missing low", []string{"mid1", "mid2", "high1"}, ReasonTierDiversity},
		{"missing mid", []string{"low1", "low2", "high1"}, ReasonTierDiversity},
		{"missing high or oracle", []string{"low1", "mid1", "mid2"}, ReasonTierDiversity},
		{"three high", []string{"low1", "mid1", "high1", "high2", "high3"}, ReasonTooManyHigh},
		{"high and oracle share a cap", []string{"low1", "mid1", "high1", "oracle1", "oracle2"}, ReasonTooManyHigh},
		{"five mid", []string{"low1", "mid1", "mid2", "mid3", "mid4", "mid5", "high1"}, ReasonTooManyMid},
		{"six low", []string{"low1", "low2", "low3", "low4", "low5", "low6", "mid1", "high1"}, ReasonTooManyLow},
	}

	v := NewValidator(fixtureLedger())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := v.ValidateComposition(context.Background(), tt.members)
			require.NoError(t, err)
			assert.Equal(t, tt.reason == "", result.Valid)
			assert.Equal(t, tt.reason, result.Reason)
		})
	}
}

func TestValidateComposition_PerturbingOneMemberFlipsResult(t *testing.T) {
	ctx := context.Background()
	l := fixtureLedger()
	v := NewValidator(l)
	members := []string{"low1", "mid1", "high1"}

	result, err := v.ValidateComposition(ctx, members)
	require.NoError(t, err)
	require.True(t, result.Valid)

	// Demoting the only high member breaks tier diversity.
	l.SetBalance("high1", midBalance)
	result, err = v.ValidateComposition(ctx, members)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, ReasonTierDiversity, result.Reason)
}

func TestValidateComposition_LedgerFailure(t *testing.T) {
	v := NewValidator(failingLedger{})

	_, err := v.ValidateComposition(context.Background(), []string{"a", "b", "c"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrContextFailedToReadBalance)

	// Structural checks never reach the ledger.
	result, err := v.ValidateComposition(context.Background(), []string{"a", "a", "b"})
	require.NoError(t, err)
	assert.Equal(t, ReasonDuplicateMember, result.Reason)
}

func TestCalculatePooledRON(t *testing.T) {
	ctx := context.Background()
	l := ledger.NewMemoryReputation(map[string]uint64{
		"a": 500, "b": 5_000, "c": 50_000,
		"x": 1, "y": 1, "z": 2,
		"d1": 900, "d2": 9_000, "d3": 90_000,
	})
	v := NewValidator(l)

	t.Run("mean without dilution", func(t *testing.T) {
		pooled, err := v.CalculatePooledRON(ctx, []string{"a", "b", "c"}, NoDilution{})
		require.NoError(t, err)
		assert.Equal(t, uint64(18_500), pooled)
	})

	t.Run("mean truncates toward zero", func(t *testing.T) {
		pooled, err := v.CalculatePooledRON(ctx, []string{"x", "y", "z"}, NoDilution{})
		require.NoError(t, err)
		assert.Equal(t, uint64(1), pooled) // 4 / 3
	})

	t.Run("dilution divides each balance", func(t *testing.T) {
		pooled, err := v.CalculatePooledRON(ctx, []string{"d1", "d2", "d3"}, mapDilution{"d1": 1, "d2": 2, "d3": 3})
		require.NoError(t, err)
		assert.Equal(t, uint64(11_800), pooled) // (900 + 4500 + 30000) / 3
	})

	t.Run("effective reputation truncates and zero count means one", func(t *testing.T) {
		effective, err := v.EffectiveReputations(ctx, []string{"d1", "b"}, mapDilution{"d1": 7, "b": 0})
		require.NoError(t, err)
		assert.Equal(t, []uint64{128, 5_000}, effective) // 900 / 7 = 128.57
	})

	t.Run("empty member list", func(t *testing.T) {
		_, err := v.CalculatePooledRON(ctx, nil, NoDilution{})
		assert.ErrorIs(t, err, domain.ErrMalformedDistributionInput)
	})
}

func TestGetAccessibleRiddleTier(t *testing.T) {
	ctx := context.Background()
	v := NewValidator(ledger.NewMemoryReputation(map[string]uint64{"a": 500, "b": 5_000, "c": 50_000}))

	tier, err := v.GetAccessibleRiddleTier(ctx, []string{"a", "b", "c"}, NoDilution{})
	require.NoError(t, err)
	assert.Equal(t, domain.TierHigh, tier)

	// Heavy dilution of the high member drops the pool to the mid band.
	tier, err = v.GetAccessibleRiddleTier(ctx, []string{"a", "b", "c"}, mapDilution{"c": 10})
	require.NoError(t, err)
	assert.Equal(t, domain.TierMid, tier) // (500 + 5000 + 5000) / 3 = 3500
}
