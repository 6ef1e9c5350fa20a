package amm

import (
	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/tranche/internal/types"
)

// Router is the external AMM surface consumed by strategies. Price
// discovery, swap execution and LP accounting happen behind it; the engine
// only ever validates its outputs against caller-supplied minimums.
type Router interface {
	// PoolAssets returns the two asset denoms of a pool.
	PoolAssets(pool types.PoolID) (denomA, denomB string, err error)

	// SpotPrice quotes the instantaneous price of denomIn expressed in
	// denomOut. Production deployments should route this through an
	// audited oracle; the matching rule treats it as opaque.
	SpotPrice(pool types.PoolID, denomIn, denomOut string) (sdkmath.LegacyDec, error)

	// QuoteExactOut returns the denomIn input a swap needs for the pool
	// to emit at least amountOut of denomOut at current depth, fee
	// inclusive. Fails when no input can produce amountOut.
	QuoteExactOut(pool types.PoolID, denomIn, denomOut string, amountOut sdkmath.Int) (sdkmath.Int, error)

	// SwapExactIn swaps amountIn of denomIn for denomOut on behalf of
	// trader, failing when the output falls below minOut.
	SwapExactIn(pool types.PoolID, trader types.Address, denomIn string, amountIn sdkmath.Int, denomOut string, minOut sdkmath.Int) (sdkmath.Int, error)

	// AddLiquidity joins the pool with both assets and credits trader
	// with liquidity-pool units.
	AddLiquidity(pool types.PoolID, trader types.Address, amountA, amountB sdkmath.Int) (sdkmath.Int, error)

	// RemoveLiquidity burns trader's liquidity-pool units for the
	// underlying assets.
	RemoveLiquidity(pool types.PoolID, trader types.Address, lpUnits sdkmath.Int) (amountA, amountB sdkmath.Int, err error)

	// LPBalance returns trader's liquidity-pool unit balance.
	LPBalance(pool types.PoolID, trader types.Address) sdkmath.Int

	// TransferLP moves liquidity-pool units between holders without
	// touching the reserves. Strategies use it to accept already-formed
	// positions and to hand units back out.
	TransferLP(pool types.PoolID, from, to types.Address, lpUnits sdkmath.Int) error
}

// Farm is the external yield farm surface: staked LP units accrue rewards
// in the farm's reward denom.
type Farm interface {
	Stake(pool types.PoolID, staker types.Address, lpUnits sdkmath.Int) error
	Unstake(pool types.PoolID, staker types.Address, lpUnits sdkmath.Int) error
	// ClaimRewards pays out pending rewards and returns the reward denom
	// and amount (zero when nothing accrued).
	ClaimRewards(pool types.PoolID, staker types.Address) (string, sdkmath.Int, error)
	// RewardDenom returns the denom rewards are paid in.
	RewardDenom() string
}
