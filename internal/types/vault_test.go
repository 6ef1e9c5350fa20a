package types

import (
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/require"
)

func entry(amount, prefix int64) DepositEntry {
	return DepositEntry{Amount: math.NewInt(amount), Prefix: math.NewInt(prefix)}
}

func TestSplitAtBoundaryExact(t *testing.T) {
	pos := InvestorPosition{
		Depositor: "alice",
		Deposits:  []DepositEntry{entry(100, 100), entry(50, 150)},
	}

	tests := []struct {
		name     string
		boundary int64
		invested int64
		excess   int64
	}{
		{"boundary zero", 0, 0, 150},
		{"boundary inside first entry", 60, 60, 90},
		{"boundary between entries", 100, 100, 50},
		{"boundary inside second entry", 120, 120, 30},
		{"boundary at total", 150, 150, 0},
		{"boundary past total", 500, 150, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			invested, excess := pos.SplitAtBoundary(math.NewInt(tc.boundary))
			require.Equal(t, math.NewInt(tc.invested), invested)
			require.Equal(t, math.NewInt(tc.excess), excess)
			require.Equal(t, pos.TotalDeposited(), invested.Add(excess))
		})
	}
}

func TestSplitAtBoundaryLaterDepositor(t *testing.T) {
	// A depositor whose entries sit entirely past the boundary is all excess.
	pos := InvestorPosition{
		Depositor: "bob",
		Deposits:  []DepositEntry{entry(40, 240)},
	}
	invested, excess := pos.SplitAtBoundary(math.NewInt(200))
	require.True(t, invested.IsZero())
	require.Equal(t, math.NewInt(40), excess)
}

func TestVaultParamsIDDeterministic(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	params := VaultParams{
		SeniorAsset: "uusdc",
		JuniorAsset: "uatom",
		Strategy:    "amm-1",
		HurdleRate:  11000,
		StartAt:     start,
		InvestAt:    start.Add(time.Hour),
		RedeemAt:    start.Add(2 * time.Hour),
		Creator:     "creator",
		Strategist:  "strategist",
	}
	require.Equal(t, params.ID(), params.ID())

	other := params
	other.HurdleRate = 12000
	require.NotEqual(t, params.ID(), other.ID())

	shifted := params
	shifted.RedeemAt = params.RedeemAt.Add(time.Second)
	require.NotEqual(t, params.ID(), shifted.ID())
}

func TestRolloverParamsID(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	params := RolloverParams{
		SeniorAsset:  "uusdc",
		JuniorAsset:  "uatom",
		Strategy:     "amm-1",
		FirstStartAt: start,
		Strategist:   "strategist",
	}
	require.Equal(t, params.ID(), params.ID())

	other := params
	other.FirstStartAt = start.Add(time.Minute)
	require.NotEqual(t, params.ID(), other.ID())
}

func TestApplyBps(t *testing.T) {
	// 682 at a 1.10x total multiplier floors 750.2 down to 750.
	require.Equal(t, math.NewInt(750), ApplyBps(math.NewInt(682), 11000))
	require.Equal(t, math.NewInt(682), ApplyBps(math.NewInt(682), 10000))
	require.True(t, ApplyBps(math.NewInt(682), 0).IsZero())
}

func TestRollRatio(t *testing.T) {
	tc := TrancheCheckpoint{
		Deposited: math.NewInt(1000),
		Invested:  math.NewInt(600),
		Redeemed:  math.NewInt(660),
	}
	// (660 redeemed + 400 excess) per 1000 deposited.
	require.Equal(t, math.LegacyMustNewDecFromStr("1.06"), tc.RollRatio())

	empty := TrancheCheckpoint{Deposited: math.ZeroInt(), Invested: math.ZeroInt(), Redeemed: math.ZeroInt()}
	require.True(t, empty.RollRatio().IsZero())
}

func TestTrancheValid(t *testing.T) {
	require.True(t, TrancheSenior.Valid())
	require.True(t, TrancheJunior.Valid())
	require.False(t, Tranche(2).Valid())
	require.False(t, Tranche(-1).Valid())
}
