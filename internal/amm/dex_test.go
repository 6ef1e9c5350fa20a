package amm

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/tranche/internal/bank"
	"github.com/elys-network/tranche/internal/types"
)

const (
	denomA = "uusdc"
	denomB = "uatom"
	pool   = types.PoolID(1)
)

func newDex(t *testing.T) (*Dex, *bank.Bank, types.Address) {
	t.Helper()
	b := bank.New("uelys")
	d := NewDex(b)
	funder := types.Address("genesis")
	require.NoError(t, b.Mint(denomA, funder, sdkmath.NewInt(2_000_000)))
	require.NoError(t, b.Mint(denomB, funder, sdkmath.NewInt(2_000_000)))
	_, err := d.CreatePool(pool, denomA, denomB, 0, funder, sdkmath.NewInt(1_000_000), sdkmath.NewInt(1_000_000))
	require.NoError(t, err)
	return d, b, funder
}

func TestCreatePoolDuplicate(t *testing.T) {
	d, b, funder := newDex(t)
	require.NoError(t, b.Mint(denomA, funder, sdkmath.NewInt(10)))
	require.NoError(t, b.Mint(denomB, funder, sdkmath.NewInt(10)))
	_, err := d.CreatePool(pool, denomA, denomB, 0, funder, sdkmath.NewInt(10), sdkmath.NewInt(10))
	require.Error(t, err)
}

func TestSpotPriceBalancedPool(t *testing.T) {
	d, _, _ := newDex(t)
	price, err := d.SpotPrice(pool, denomA, denomB)
	require.NoError(t, err)
	require.Equal(t, sdkmath.LegacyOneDec(), price)
}

func TestSwapExactIn(t *testing.T) {
	d, b, funder := newDex(t)
	out, err := d.SwapExactIn(pool, funder, denomA, sdkmath.NewInt(10_000), denomB, sdkmath.ZeroInt())
	require.NoError(t, err)
	// Constant product: out slightly below in on a balanced pool.
	require.True(t, out.IsPositive())
	require.True(t, out.LT(sdkmath.NewInt(10_000)))
	require.Equal(t, out, b.Balance(denomB, funder).Sub(sdkmath.NewInt(1_000_000)))
}

func TestSwapExactInSlippageGuard(t *testing.T) {
	d, _, funder := newDex(t)
	_, err := d.SwapExactIn(pool, funder, denomA, sdkmath.NewInt(10_000), denomB, sdkmath.NewInt(10_000))
	require.ErrorIs(t, err, types.ErrTooMuchSlippage)
}

func TestQuoteExactOutCoversOutput(t *testing.T) {
	d, _, funder := newDex(t)
	want := sdkmath.NewInt(10_000)
	in, err := d.QuoteExactOut(pool, denomA, denomB, want)
	require.NoError(t, err)
	// The spot quote would be 10,000; price impact demands more.
	require.True(t, in.GT(want))

	// Swapping the quoted input emits at least the requested output.
	out, err := d.SwapExactIn(pool, funder, denomA, in, denomB, want)
	require.NoError(t, err)
	require.True(t, out.GTE(want))

	// More than the reserves can never come out.
	_, err = d.QuoteExactOut(pool, denomA, denomB, sdkmath.NewInt(1_000_000))
	require.ErrorIs(t, err, types.ErrTooMuchSlippage)
	_, err = d.QuoteExactOut(pool, denomA, denomB, sdkmath.ZeroInt())
	require.ErrorIs(t, err, types.ErrZeroAmount)
}

func TestQuoteExactOutWithFee(t *testing.T) {
	b := bank.New("uelys")
	d := NewDex(b)
	funder := types.Address("genesis")
	require.NoError(t, b.Mint(denomA, funder, sdkmath.NewInt(2_000_000)))
	require.NoError(t, b.Mint(denomB, funder, sdkmath.NewInt(2_000_000)))
	feePool := types.PoolID(7)
	_, err := d.CreatePool(feePool, denomA, denomB, 30, funder, sdkmath.NewInt(1_000_000), sdkmath.NewInt(1_000_000))
	require.NoError(t, err)

	want := sdkmath.NewInt(10_000)
	in, err := d.QuoteExactOut(feePool, denomA, denomB, want)
	require.NoError(t, err)
	out, err := d.SwapExactIn(feePool, funder, denomA, in, denomB, want)
	require.NoError(t, err)
	require.True(t, out.GTE(want))
}

func TestSwapUnknownDenoms(t *testing.T) {
	d, _, funder := newDex(t)
	_, err := d.SwapExactIn(pool, funder, "ubogus", sdkmath.NewInt(10), denomB, sdkmath.ZeroInt())
	require.ErrorIs(t, err, types.ErrAssetMismatch)
}

func TestAddRemoveLiquidityRoundTrip(t *testing.T) {
	d, _, funder := newDex(t)
	inA, inB := sdkmath.NewInt(5_000), sdkmath.NewInt(5_000)
	minted, err := d.AddLiquidity(pool, funder, inA, inB)
	require.NoError(t, err)
	require.True(t, minted.IsPositive())

	outA, outB, err := d.RemoveLiquidity(pool, funder, minted)
	require.NoError(t, err)
	require.True(t, outA.LTE(inA))
	require.True(t, outB.LTE(inB))
}

func TestRemoveLiquidityWithoutUnits(t *testing.T) {
	d, _, _ := newDex(t)
	_, _, err := d.RemoveLiquidity(pool, "stranger", sdkmath.NewInt(10))
	require.ErrorIs(t, err, types.ErrInsufficientShares)
}

func TestFarmStakeUnstakeAndRewards(t *testing.T) {
	d, b, funder := newDex(t)
	farm := NewSimFarm(d, b, "ureward")

	units, err := d.AddLiquidity(pool, funder, sdkmath.NewInt(1_000), sdkmath.NewInt(1_000))
	require.NoError(t, err)
	require.NoError(t, farm.Stake(pool, funder, units))
	require.Equal(t, units, farm.StakedBalance(pool, funder))
	require.True(t, d.LPBalance(pool, FarmAddress).GTE(units))

	farm.Accrue(pool, funder, sdkmath.NewInt(77))
	denom, claimed, err := farm.ClaimRewards(pool, funder)
	require.NoError(t, err)
	require.Equal(t, "ureward", denom)
	require.Equal(t, sdkmath.NewInt(77), claimed)
	require.Equal(t, sdkmath.NewInt(77), b.Balance("ureward", funder))

	// Second claim has nothing pending.
	_, claimed, err = farm.ClaimRewards(pool, funder)
	require.NoError(t, err)
	require.True(t, claimed.IsZero())

	require.NoError(t, farm.Unstake(pool, funder, units))
	require.True(t, farm.StakedBalance(pool, funder).IsZero())

	err = farm.Unstake(pool, funder, sdkmath.NewInt(1))
	require.ErrorIs(t, err, types.ErrInsufficientShares)
}
