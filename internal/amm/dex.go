/*

Reference constant-product AMM. The engine treats the Router interface as
an external collaborator; this implementation exists so the strategy and
waterfall paths can run end to end against real balances.

*/

package amm

import (
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/tranche/internal/bank"
	"github.com/elys-network/tranche/internal/types"
)

// Pool is one constant-product pair. Reserves live in the bank under the
// pool's module address.
type Pool struct {
	ID         types.PoolID
	DenomA     string
	DenomB     string
	SwapFeeBps uint64
	LPSupply   sdkmath.Int
}

// Dex is an in-memory Router over a token bank.
type Dex struct {
	mu    sync.Mutex
	bank  *bank.Bank
	pools map[types.PoolID]*Pool
	// lp unit balances per pool per holder
	lp map[types.PoolID]map[types.Address]sdkmath.Int
}

var _ Router = (*Dex)(nil)

// NewDex creates an empty dex over the given bank.
func NewDex(b *bank.Bank) *Dex {
	return &Dex{
		bank:  b,
		pools: make(map[types.PoolID]*Pool),
		lp:    make(map[types.PoolID]map[types.Address]sdkmath.Int),
	}
}

// PoolAddress is the module account holding a pool's reserves.
func PoolAddress(id types.PoolID) types.Address {
	return types.Address(fmt.Sprintf("amm/pool/%d", id))
}

// CreatePool registers a new pair and seeds it from the funder's balances.
func (d *Dex) CreatePool(id types.PoolID, denomA, denomB string, swapFeeBps uint64, funder types.Address, seedA, seedB sdkmath.Int) (*Pool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.pools[id]; exists {
		return nil, fmt.Errorf("pool %d already exists", id)
	}
	if !seedA.IsPositive() || !seedB.IsPositive() {
		return nil, types.ErrZeroAmount
	}
	addr := PoolAddress(id)
	if err := d.bank.Transfer(denomA, funder, addr, seedA); err != nil {
		return nil, err
	}
	if err := d.bank.Transfer(denomB, funder, addr, seedB); err != nil {
		return nil, err
	}
	p := &Pool{ID: id, DenomA: denomA, DenomB: denomB, SwapFeeBps: swapFeeBps, LPSupply: seedA.Add(seedB)}
	d.pools[id] = p
	d.creditLP(id, funder, p.LPSupply)
	return p, nil
}

func (d *Dex) PoolAssets(pool types.PoolID) (string, string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.pools[pool]
	if !ok {
		return "", "", types.ErrPoolNotFound
	}
	return p.DenomA, p.DenomB, nil
}

func (d *Dex) SpotPrice(pool types.PoolID, denomIn, denomOut string) (sdkmath.LegacyDec, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.pools[pool]
	if !ok {
		return sdkmath.LegacyZeroDec(), types.ErrPoolNotFound
	}
	resIn, resOut, err := d.reserves(p, denomIn, denomOut)
	if err != nil {
		return sdkmath.LegacyZeroDec(), err
	}
	if resIn.IsZero() {
		return sdkmath.LegacyZeroDec(), fmt.Errorf("pool %d has no %s reserves", pool, denomIn)
	}
	return sdkmath.LegacyNewDecFromInt(resOut).QuoInt(resIn), nil
}

// QuoteExactOut inverts the constant-product output formula: the returned
// input, swapped through SwapExactIn, yields at least amountOut. Both
// divisions round against the trader.
func (d *Dex) QuoteExactOut(pool types.PoolID, denomIn, denomOut string, amountOut sdkmath.Int) (sdkmath.Int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.pools[pool]
	if !ok {
		return sdkmath.ZeroInt(), types.ErrPoolNotFound
	}
	if !amountOut.IsPositive() {
		return sdkmath.ZeroInt(), types.ErrZeroAmount
	}
	resIn, resOut, err := d.reserves(p, denomIn, denomOut)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if amountOut.GTE(resOut) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: pool %d cannot emit %s %s",
			types.ErrTooMuchSlippage, pool, amountOut, denomOut)
	}
	net := ceilQuo(resIn.Mul(amountOut), resOut.Sub(amountOut))
	return ceilQuo(net.Mul(sdkmath.NewInt(types.BpsDenominator)),
		sdkmath.NewIntFromUint64(types.BpsDenominator-p.SwapFeeBps)), nil
}

func (d *Dex) SwapExactIn(pool types.PoolID, trader types.Address, denomIn string, amountIn sdkmath.Int, denomOut string, minOut sdkmath.Int) (sdkmath.Int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.pools[pool]
	if !ok {
		return sdkmath.ZeroInt(), types.ErrPoolNotFound
	}
	if !amountIn.IsPositive() {
		return sdkmath.ZeroInt(), types.ErrZeroAmount
	}
	resIn, resOut, err := d.reserves(p, denomIn, denomOut)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	// x*y=k with fee taken on the input side
	inAfterFee := amountIn.Mul(sdkmath.NewIntFromUint64(types.BpsDenominator - p.SwapFeeBps)).
		Quo(sdkmath.NewInt(types.BpsDenominator))
	out := resOut.Mul(inAfterFee).Quo(resIn.Add(inAfterFee))
	if out.LT(minOut) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: swap output %s below minimum %s", types.ErrTooMuchSlippage, out, minOut)
	}
	addr := PoolAddress(pool)
	if err := d.bank.Transfer(denomIn, trader, addr, amountIn); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if err := d.bank.Transfer(denomOut, addr, trader, out); err != nil {
		return sdkmath.ZeroInt(), err
	}
	return out, nil
}

func (d *Dex) AddLiquidity(pool types.PoolID, trader types.Address, amountA, amountB sdkmath.Int) (sdkmath.Int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.pools[pool]
	if !ok {
		return sdkmath.ZeroInt(), types.ErrPoolNotFound
	}
	if !amountA.IsPositive() && !amountB.IsPositive() {
		return sdkmath.ZeroInt(), types.ErrZeroAmount
	}
	addr := PoolAddress(pool)
	resA := d.bank.Balance(p.DenomA, addr)
	resB := d.bank.Balance(p.DenomB, addr)
	// Minted units are the smaller pro-rata claim; any ratio dust is
	// donated to the pool, never minted from nothing.
	minted := sdkmath.ZeroInt()
	if resA.IsPositive() && amountA.IsPositive() {
		minted = amountA.Mul(p.LPSupply).Quo(resA)
	}
	if resB.IsPositive() && amountB.IsPositive() {
		byB := amountB.Mul(p.LPSupply).Quo(resB)
		if minted.IsZero() || byB.LT(minted) {
			minted = byB
		}
	}
	if !minted.IsPositive() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: join too small for pool %d", types.ErrZeroAmount, pool)
	}
	if amountA.IsPositive() {
		if err := d.bank.Transfer(p.DenomA, trader, addr, amountA); err != nil {
			return sdkmath.ZeroInt(), err
		}
	}
	if amountB.IsPositive() {
		if err := d.bank.Transfer(p.DenomB, trader, addr, amountB); err != nil {
			return sdkmath.ZeroInt(), err
		}
	}
	p.LPSupply = p.LPSupply.Add(minted)
	d.creditLP(pool, trader, minted)
	return minted, nil
}

func (d *Dex) RemoveLiquidity(pool types.PoolID, trader types.Address, lpUnits sdkmath.Int) (sdkmath.Int, sdkmath.Int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.pools[pool]
	if !ok {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), types.ErrPoolNotFound
	}
	if !lpUnits.IsPositive() {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), types.ErrZeroAmount
	}
	held := d.lpBalance(pool, trader)
	if held.LT(lpUnits) {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), fmt.Errorf("%w: lp units", types.ErrInsufficientShares)
	}
	addr := PoolAddress(pool)
	resA := d.bank.Balance(p.DenomA, addr)
	resB := d.bank.Balance(p.DenomB, addr)
	outA := resA.Mul(lpUnits).Quo(p.LPSupply)
	outB := resB.Mul(lpUnits).Quo(p.LPSupply)
	if outA.IsPositive() {
		if err := d.bank.Transfer(p.DenomA, addr, trader, outA); err != nil {
			return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
		}
	}
	if outB.IsPositive() {
		if err := d.bank.Transfer(p.DenomB, addr, trader, outB); err != nil {
			return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
		}
	}
	p.LPSupply = p.LPSupply.Sub(lpUnits)
	d.lp[pool][trader] = held.Sub(lpUnits)
	return outA, outB, nil
}

func (d *Dex) LPBalance(pool types.PoolID, trader types.Address) sdkmath.Int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lpBalance(pool, trader)
}

// TransferLP moves LP units between holders; the farm uses this to take
// custody of staked units.
func (d *Dex) TransferLP(pool types.PoolID, from, to types.Address, lpUnits sdkmath.Int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	held := d.lpBalance(pool, from)
	if held.LT(lpUnits) {
		return fmt.Errorf("%w: lp units", types.ErrInsufficientShares)
	}
	d.lp[pool][from] = held.Sub(lpUnits)
	d.creditLP(pool, to, lpUnits)
	return nil
}

func (d *Dex) reserves(p *Pool, denomIn, denomOut string) (sdkmath.Int, sdkmath.Int, error) {
	addr := PoolAddress(p.ID)
	switch {
	case denomIn == p.DenomA && denomOut == p.DenomB:
		return d.bank.Balance(p.DenomA, addr), d.bank.Balance(p.DenomB, addr), nil
	case denomIn == p.DenomB && denomOut == p.DenomA:
		return d.bank.Balance(p.DenomB, addr), d.bank.Balance(p.DenomA, addr), nil
	default:
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(),
			fmt.Errorf("%w: pool %d does not trade %s/%s", types.ErrAssetMismatch, p.ID, denomIn, denomOut)
	}
}

// ceilQuo divides rounding up; quotes must never undershoot.
func ceilQuo(a, b sdkmath.Int) sdkmath.Int {
	return a.Add(b.Sub(sdkmath.OneInt())).Quo(b)
}

func (d *Dex) lpBalance(pool types.PoolID, addr types.Address) sdkmath.Int {
	if bal, ok := d.lp[pool][addr]; ok {
		return bal
	}
	return sdkmath.ZeroInt()
}

func (d *Dex) creditLP(pool types.PoolID, addr types.Address, amount sdkmath.Int) {
	if d.lp[pool] == nil {
		d.lp[pool] = make(map[types.Address]sdkmath.Int)
	}
	if bal, ok := d.lp[pool][addr]; ok {
		d.lp[pool][addr] = bal.Add(amount)
	} else {
		d.lp[pool][addr] = amount
	}
}
