package amm

import (
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/tranche/internal/bank"
	"github.com/elys-network/tranche/internal/types"
)

// FarmAddress is the module account holding staked LP units.
const FarmAddress = types.Address("amm/farm")

// SimFarm is an in-memory Farm. Rewards accrue only when Accrue is called,
// which keeps reward timing fully deterministic for callers and tests.
type SimFarm struct {
	mu          sync.Mutex
	dex         *Dex
	bank        *bank.Bank
	rewardDenom string
	staked      map[types.PoolID]map[types.Address]sdkmath.Int
	pending     map[types.PoolID]map[types.Address]sdkmath.Int
}

var _ Farm = (*SimFarm)(nil)

// NewSimFarm creates a farm paying rewards in rewardDenom.
func NewSimFarm(d *Dex, b *bank.Bank, rewardDenom string) *SimFarm {
	return &SimFarm{
		dex:         d,
		bank:        b,
		rewardDenom: rewardDenom,
		staked:      make(map[types.PoolID]map[types.Address]sdkmath.Int),
		pending:     make(map[types.PoolID]map[types.Address]sdkmath.Int),
	}
}

func (f *SimFarm) RewardDenom() string { return f.rewardDenom }

func (f *SimFarm) Stake(pool types.PoolID, staker types.Address, lpUnits sdkmath.Int) error {
	if !lpUnits.IsPositive() {
		return types.ErrZeroAmount
	}
	if err := f.dex.TransferLP(pool, staker, FarmAddress, lpUnits); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.add(f.staked, pool, staker, lpUnits)
	return nil
}

func (f *SimFarm) Unstake(pool types.PoolID, staker types.Address, lpUnits sdkmath.Int) error {
	if !lpUnits.IsPositive() {
		return types.ErrZeroAmount
	}
	f.mu.Lock()
	held := f.balance(f.staked, pool, staker)
	if held.LT(lpUnits) {
		f.mu.Unlock()
		return fmt.Errorf("%w: staked lp units", types.ErrInsufficientShares)
	}
	f.staked[pool][staker] = held.Sub(lpUnits)
	f.mu.Unlock()
	return f.dex.TransferLP(pool, FarmAddress, staker, lpUnits)
}

func (f *SimFarm) ClaimRewards(pool types.PoolID, staker types.Address) (string, sdkmath.Int, error) {
	f.mu.Lock()
	amount := f.balance(f.pending, pool, staker)
	if amount.IsPositive() {
		f.pending[pool][staker] = sdkmath.ZeroInt()
	}
	f.mu.Unlock()
	if !amount.IsPositive() {
		return f.rewardDenom, sdkmath.ZeroInt(), nil
	}
	if err := f.bank.Mint(f.rewardDenom, staker, amount); err != nil {
		return f.rewardDenom, sdkmath.ZeroInt(), err
	}
	return f.rewardDenom, amount, nil
}

// Accrue credits pending rewards to a staker. Drives yield in simulations
// and tests.
func (f *SimFarm) Accrue(pool types.PoolID, staker types.Address, amount sdkmath.Int) {
	if !amount.IsPositive() {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.add(f.pending, pool, staker, amount)
}

// StakedBalance returns the staker's LP units held by the farm.
func (f *SimFarm) StakedBalance(pool types.PoolID, staker types.Address) sdkmath.Int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balance(f.staked, pool, staker)
}

func (f *SimFarm) add(m map[types.PoolID]map[types.Address]sdkmath.Int, pool types.PoolID, addr types.Address, amount sdkmath.Int) {
	if m[pool] == nil {
		m[pool] = make(map[types.Address]sdkmath.Int)
	}
	if bal, ok := m[pool][addr]; ok {
		m[pool][addr] = bal.Add(amount)
	} else {
		m[pool][addr] = amount
	}
}

func (f *SimFarm) balance(m map[types.PoolID]map[types.Address]sdkmath.Int, pool types.PoolID, addr types.Address) sdkmath.Int {
	if bal, ok := m[pool][addr]; ok {
		return bal
	}
	return sdkmath.ZeroInt()
}
