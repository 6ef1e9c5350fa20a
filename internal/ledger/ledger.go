/*

Pool Share Ledger. Lets many vaults co-own one pooled liquidity position
per underlying pair through internal shares, and absorbs compounded yield
by growing liquidity units against a fixed share supply.

*/

package ledger

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/elys-network/tranche/internal/logger"
	"github.com/elys-network/tranche/internal/types"
)

type poolRecord struct {
	totalUnits  sdkmath.Int
	totalShares sdkmath.Int
	byVault     map[types.VaultID]sdkmath.Int
}

// ShareLedger tracks per-pool liquidity units and issued shares, and each
// vault's share balance. Mutation happens only through the strategy binding
// of a vault; callers are serialized by the engine's operation lock.
type ShareLedger struct {
	log   zerolog.Logger
	pools map[types.PoolID]*poolRecord
}

// New creates an empty share ledger.
func New() *ShareLedger {
	return &ShareLedger{
		log:   logger.GetForComponent("share_ledger"),
		pools: make(map[types.PoolID]*poolRecord),
	}
}

// Deposit credits a vault with shares for newly added liquidity units.
// The bootstrap deposit establishes the initial 1:1 exchange rate.
func (l *ShareLedger) Deposit(pool types.PoolID, vault types.VaultID, units sdkmath.Int) (sdkmath.Int, error) {
	if !units.IsPositive() {
		return sdkmath.ZeroInt(), types.ErrZeroAmount
	}
	rec := l.pools[pool]
	if rec == nil {
		rec = &poolRecord{
			totalUnits:  sdkmath.ZeroInt(),
			totalShares: sdkmath.ZeroInt(),
			byVault:     make(map[types.VaultID]sdkmath.Int),
		}
		l.pools[pool] = rec
	}
	var shares sdkmath.Int
	if rec.totalShares.IsZero() {
		if rec.totalUnits.IsPositive() {
			// Units with no shares means a prior withdrawal drained the
			// share supply without its units. Nothing can be priced.
			return sdkmath.ZeroInt(), fmt.Errorf("%w: pool %d", types.ErrPoolDrained, pool)
		}
		shares = units
	} else {
		if rec.totalUnits.IsZero() {
			return sdkmath.ZeroInt(), fmt.Errorf("%w: pool %d", types.ErrPoolDrained, pool)
		}
		shares = units.Mul(rec.totalShares).Quo(rec.totalUnits)
	}
	if !shares.IsPositive() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: deposit too small for pool %d", types.ErrZeroAmount, pool)
	}
	rec.totalUnits = rec.totalUnits.Add(units)
	rec.totalShares = rec.totalShares.Add(shares)
	rec.byVault[vault] = l.sharesOf(rec, vault).Add(shares)

	l.log.Debug().
		Uint64("pool", uint64(pool)).
		Str("vault", string(vault)).
		Str("units", units.String()).
		Str("shares", shares.String()).
		Msg("Liquidity deposited into share ledger")
	return shares, nil
}

// Withdraw burns a vault's shares for their proportional liquidity units,
// floor-rounded in the pool's favor.
func (l *ShareLedger) Withdraw(pool types.PoolID, vault types.VaultID, shares sdkmath.Int) (sdkmath.Int, error) {
	if !shares.IsPositive() {
		return sdkmath.ZeroInt(), types.ErrZeroAmount
	}
	rec := l.pools[pool]
	if rec == nil {
		return sdkmath.ZeroInt(), types.ErrPoolNotFound
	}
	held := l.sharesOf(rec, vault)
	if held.LT(shares) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: vault %s holds %s shares, needs %s",
			types.ErrInsufficientShares, vault, held, shares)
	}
	if rec.totalShares.IsZero() || rec.totalUnits.IsZero() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: pool %d", types.ErrPoolDrained, pool)
	}
	units := shares.Mul(rec.totalUnits).Quo(rec.totalShares)
	rec.totalUnits = rec.totalUnits.Sub(units)
	rec.totalShares = rec.totalShares.Sub(shares)
	rec.byVault[vault] = held.Sub(shares)

	l.log.Debug().
		Uint64("pool", uint64(pool)).
		Str("vault", string(vault)).
		Str("shares", shares.String()).
		Str("units", units.String()).
		Msg("Liquidity withdrawn from share ledger")
	return units, nil
}

// Compound grows a pool's liquidity units with the share supply unchanged,
// raising every holder's per-share value uniformly. Called after harvested
// yield is re-deposited as liquidity.
func (l *ShareLedger) Compound(pool types.PoolID, units sdkmath.Int) error {
	if !units.IsPositive() {
		return types.ErrZeroAmount
	}
	rec := l.pools[pool]
	if rec == nil || rec.totalShares.IsZero() {
		return fmt.Errorf("%w: cannot compound pool %d with no shareholders", types.ErrPoolNotFound, pool)
	}
	rec.totalUnits = rec.totalUnits.Add(units)
	l.log.Info().
		Uint64("pool", uint64(pool)).
		Str("units", units.String()).
		Str("totalUnits", rec.totalUnits.String()).
		Msg("Yield compounded into pool")
	return nil
}

// SharesOf returns a vault's share balance in a pool.
func (l *ShareLedger) SharesOf(pool types.PoolID, vault types.VaultID) sdkmath.Int {
	rec := l.pools[pool]
	if rec == nil {
		return sdkmath.ZeroInt()
	}
	return l.sharesOf(rec, vault)
}

// UnitsFor converts a share balance to liquidity units at the pool's
// current exchange rate (floor).
func (l *ShareLedger) UnitsFor(pool types.PoolID, shares sdkmath.Int) (sdkmath.Int, error) {
	rec := l.pools[pool]
	if rec == nil {
		return sdkmath.ZeroInt(), types.ErrPoolNotFound
	}
	if rec.totalShares.IsZero() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: pool %d", types.ErrPoolDrained, pool)
	}
	return shares.Mul(rec.totalUnits).Quo(rec.totalShares), nil
}

// Totals returns a pool's total liquidity units and issued shares.
func (l *ShareLedger) Totals(pool types.PoolID) (units, shares sdkmath.Int, err error) {
	rec := l.pools[pool]
	if rec == nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), types.ErrPoolNotFound
	}
	return rec.totalUnits, rec.totalShares, nil
}

// Pools lists all pools known to the ledger.
func (l *ShareLedger) Pools() []types.PoolID {
	out := make([]types.PoolID, 0, len(l.pools))
	for id := range l.pools {
		out = append(out, id)
	}
	return out
}

func (l *ShareLedger) sharesOf(rec *poolRecord, vault types.VaultID) sdkmath.Int {
	if s, ok := rec.byVault[vault]; ok {
		return s
	}
	return sdkmath.ZeroInt()
}
