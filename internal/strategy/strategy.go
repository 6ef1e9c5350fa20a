package strategy

import (
	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/tranche/internal/types"
)

// Strategy abstracts one pooled-liquidity integration. Each concrete
// AMM/farm pairing implements it; the lifecycle engine only ever talks to
// this interface, so integrations are swappable per vault.
type Strategy interface {
	// Name identifies the strategy; vault parameters reference it.
	Name() string

	// Pool returns the underlying liquidity pair.
	Pool() types.PoolID

	// Assets returns the pool's asset denoms in (A, B) order.
	Assets() (string, string, error)

	// SpotPrice quotes denomIn in units of denomOut. The invest matching
	// rule samples this once per invest call.
	SpotPrice(denomIn, denomOut string) (sdkmath.LegacyDec, error)

	// QuoteExactOut returns the denomIn input required for the exchange
	// to emit at least amountOut of denomOut at current depth. The
	// waterfall uses it to size gap-covering conversions.
	QuoteExactOut(denomIn, denomOut string, amountOut sdkmath.Int) (sdkmath.Int, error)

	// Invest pulls both assets from the funding address, joins the pooled
	// position, stakes the units and credits the vault with shares.
	Invest(vault types.VaultID, from types.Address, amountA, amountB sdkmath.Int) (sdkmath.Int, error)

	// Redeem burns the vault's shares, unwinds the proportional position
	// and pushes the raw proceeds of both assets to the recipient.
	Redeem(vault types.VaultID, to types.Address, shares sdkmath.Int) (amountA, amountB sdkmath.Int, err error)

	// DepositLiquidity accepts an already-formed liquidity position
	// (raw LP units) mid-duration, stakes it and credits shares.
	DepositLiquidity(vault types.VaultID, from types.Address, units sdkmath.Int) (sdkmath.Int, error)

	// WithdrawLiquidity burns shares mid-duration and hands the
	// proportional LP units back to the recipient unstaked but intact.
	WithdrawLiquidity(vault types.VaultID, to types.Address, shares sdkmath.Int) (sdkmath.Int, error)

	// Harvest claims farm rewards, converts them to the pool's pair and
	// compounds them back into the pooled position.
	Harvest() error

	// Swap executes an exact-in swap for the trader with a minimum-output
	// guard; the waterfall uses it to rebalance redemption proceeds.
	Swap(trader types.Address, denomIn string, amountIn sdkmath.Int, denomOut string, minOut sdkmath.Int) (sdkmath.Int, error)

	// SharesOf returns the vault's current share balance.
	SharesOf(vault types.VaultID) sdkmath.Int

	// UnitsOf returns the liquidity units the vault's shares currently
	// redeem for.
	UnitsOf(vault types.VaultID) (sdkmath.Int, error)

	// Rescue moves the strategy account's full balance of denom to a safe
	// holder. Only reachable through the paused emergency path.
	Rescue(denom string, to types.Address) (sdkmath.Int, error)
}
