package engine

import (
	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/tranche/internal/types"
)

// PositionView is the derived, read-only view of an investor position.
// Invested/excess are computed lazily against the tranche's final invested
// boundary; before invest() they are zero.
type PositionView struct {
	Depositor types.Address `json:"depositor"`
	Deposited sdkmath.Int   `json:"deposited"`
	Invested  sdkmath.Int   `json:"invested"`
	Excess    sdkmath.Int   `json:"excess"`
	Claimed   bool          `json:"claimed"`
	Withdrawn bool          `json:"withdrawn"`
}

// GetVaultByID returns a copy of the vault record.
func (e *Engine) GetVaultByID(id types.VaultID) (types.Vault, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, err := e.get(id)
	if err != nil {
		return types.Vault{}, err
	}
	v := rec.vault
	e.refresh(rec, e.clock())
	v.State = rec.vault.State
	return v, nil
}

// GetVaultByReceiptToken resolves a receipt-token denom to its vault.
func (e *Engine) GetVaultByReceiptToken(denom string) (types.Vault, error) {
	e.mu.Lock()
	id, ok := e.byReceipt[denom]
	e.mu.Unlock()
	if !ok {
		return types.Vault{}, types.ErrVaultNotFound
	}
	return e.GetVaultByID(id)
}

// GetVaults pages through vaults in creation order. Out-of-range windows
// clamp to the available records.
func (e *Engine) GetVaults(offset, count int) []types.Vault {
	e.mu.Lock()
	defer e.mu.Unlock()
	if offset < 0 {
		offset = 0
	}
	if offset >= len(e.order) || count <= 0 {
		return []types.Vault{}
	}
	end := offset + count
	if end > len(e.order) {
		end = len(e.order)
	}
	now := e.clock()
	out := make([]types.Vault, 0, end-offset)
	for _, id := range e.order[offset:end] {
		rec := e.vaults[id]
		e.refresh(rec, now)
		out = append(out, rec.vault)
	}
	return out
}

// GetInvestorPosition returns the derived position of one investor in one
// tranche.
func (e *Engine) GetInvestorPosition(id types.VaultID, t types.Tranche, addr types.Address) (PositionView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !t.Valid() {
		return PositionView{}, types.ErrInvalidTranche
	}
	rec, err := e.get(id)
	if err != nil {
		return PositionView{}, err
	}
	view := PositionView{
		Depositor: addr,
		Deposited: sdkmath.ZeroInt(),
		Invested:  sdkmath.ZeroInt(),
		Excess:    sdkmath.ZeroInt(),
	}
	pos := rec.positions[t][addr]
	if pos == nil {
		return view, nil
	}
	view.Deposited = pos.TotalDeposited()
	view.Claimed = pos.Claimed
	view.Withdrawn = pos.Withdrawn
	if rec.vault.State == types.StateLive || rec.vault.State == types.StateRedeemed {
		view.Invested, view.Excess = pos.SplitAtBoundary(rec.vault.Tranches[t].OriginalInvested)
	}
	return view, nil
}

// VaultShares returns the strategy shares currently held by a vault.
func (e *Engine) VaultShares(id types.VaultID) (sdkmath.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, err := e.get(id)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return rec.shares, nil
}

// VaultUnits returns the liquidity units the vault's shares currently
// redeem for.
func (e *Engine) VaultUnits(id types.VaultID) (sdkmath.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, err := e.get(id)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	strat, err := e.strategyFor(rec)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return strat.UnitsOf(id)
}

// VaultCount returns the number of vaults ever created.
func (e *Engine) VaultCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.order)
}
