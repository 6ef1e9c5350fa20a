package engine

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"

	"github.com/elys-network/tranche/internal/state"
	"github.com/elys-network/tranche/internal/types"
)

// DepositLiquidity lets a mid-duration participant contribute an
// already-formed liquidity position to a Live vault. Receipt tokens of
// both tranches are minted in proportion to the value added, so existing
// investors' claims are undisturbed. Mints floor; the dust stays with the
// pool.
func (e *Engine) DepositLiquidity(caller types.Address, id types.VaultID, units sdkmath.Int) (minted [types.NumTranches]sdkmath.Int, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	minted[types.TrancheSenior] = sdkmath.ZeroInt()
	minted[types.TrancheJunior] = sdkmath.ZeroInt()
	if e.paused {
		return minted, types.ErrPaused
	}
	if caller == "" {
		return minted, types.ErrZeroAddress
	}
	if !units.IsPositive() {
		return minted, types.ErrZeroAmount
	}
	rec, err := e.get(id)
	if err != nil {
		return minted, err
	}
	if rec.vault.State != types.StateLive {
		return minted, fmt.Errorf("%w: vault is %s", types.ErrWrongState, rec.vault.State)
	}
	strat, err := e.strategyFor(rec)
	if err != nil {
		return minted, err
	}
	unitsBefore, err := strat.UnitsOf(id)
	if err != nil {
		return minted, err
	}
	if !unitsBefore.IsPositive() {
		return minted, fmt.Errorf("%w: vault holds no liquidity", types.ErrWrongState)
	}

	shares, err := strat.DepositLiquidity(id, caller, units)
	if err != nil {
		return minted, err
	}

	opID := uuid.New().String()
	if err := e.journal.Record(state.Operation{
		OpID: opID, Kind: "deposit_liquidity", Subject: string(id), Caller: caller, Amount: units,
	}); err != nil {
		return minted, err
	}
	for t := 0; t < types.NumTranches; t++ {
		tr := &rec.vault.Tranches[t]
		amt := tr.TotalInvested.Mul(units).Quo(unitsBefore)
		if amt.IsPositive() {
			if err := e.bank.Mint(tr.ReceiptToken, caller, amt); err != nil {
				return minted, err
			}
			tr.TotalInvested = tr.TotalInvested.Add(amt)
		}
		minted[t] = amt
		e.ensureClaimedPosition(rec, types.Tranche(t), caller)
	}
	rec.shares = rec.shares.Add(shares)

	e.log.Info().
		Str("op_id", opID).
		Str("vault", string(id)).
		Str("depositor", string(caller)).
		Str("units", units.String()).
		Str("senior_minted", minted[types.TrancheSenior].String()).
		Str("junior_minted", minted[types.TrancheJunior].String()).
		Msg("Liquidity position deposited mid-duration")
	return minted, nil
}

// WithdrawLiquidity removes part of a Live vault's position, burning the
// caller's receipt tokens of both tranches in proportion. Burns round up
// so aggregate claims can never exceed the pooled liquidity. Returns the
// liquidity units handed back and the receipt amounts burned per tranche.
func (e *Engine) WithdrawLiquidity(caller types.Address, id types.VaultID, units sdkmath.Int) (unitsOut sdkmath.Int, burned [types.NumTranches]sdkmath.Int, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	zero := sdkmath.ZeroInt()
	unitsOut = zero
	burned[types.TrancheSenior], burned[types.TrancheJunior] = zero, zero
	if e.paused {
		return zero, burned, types.ErrPaused
	}
	if caller == "" {
		return zero, burned, types.ErrZeroAddress
	}
	if !units.IsPositive() {
		return zero, burned, types.ErrZeroAmount
	}
	rec, err := e.get(id)
	if err != nil {
		return zero, burned, err
	}
	if rec.vault.State != types.StateLive {
		return zero, burned, fmt.Errorf("%w: vault is %s", types.ErrWrongState, rec.vault.State)
	}
	strat, err := e.strategyFor(rec)
	if err != nil {
		return zero, burned, err
	}
	unitsNow, err := strat.UnitsOf(id)
	if err != nil {
		return zero, burned, err
	}
	if unitsNow.LT(units) {
		return zero, burned, fmt.Errorf("%w: vault holds %s units, requested %s", types.ErrInsufficientShares, unitsNow, units)
	}

	var burns [types.NumTranches]sdkmath.Int
	for t := 0; t < types.NumTranches; t++ {
		tr := rec.vault.Tranches[t]
		burns[t] = zero
		if tr.TotalInvested.IsPositive() {
			burns[t] = ceilDiv(tr.TotalInvested.Mul(units), unitsNow)
		}
		if e.bank.Balance(tr.ReceiptToken, caller).LT(burns[t]) {
			return zero, burned, fmt.Errorf("%w: %s receipt tokens", types.ErrInsufficientFunds, types.Tranche(t))
		}
	}

	shares := rec.shares.Mul(units).Quo(unitsNow)
	if !shares.IsPositive() {
		return zero, burned, fmt.Errorf("%w: withdrawal too small", types.ErrZeroAmount)
	}

	opID := uuid.New().String()
	if err := e.journal.Record(state.Operation{
		OpID: opID, Kind: "withdraw_liquidity", Subject: string(id), Caller: caller, Amount: units,
	}); err != nil {
		return zero, burned, err
	}
	unitsOut, err = strat.WithdrawLiquidity(id, caller, shares)
	if err != nil {
		return zero, burned, err
	}
	for t := 0; t < types.NumTranches; t++ {
		tr := &rec.vault.Tranches[t]
		if burns[t].IsPositive() {
			if err := e.bank.Burn(tr.ReceiptToken, caller, burns[t]); err != nil {
				return zero, burned, err
			}
			tr.TotalInvested = tr.TotalInvested.Sub(burns[t])
		}
	}
	rec.shares = rec.shares.Sub(shares)
	burned = burns

	e.log.Info().
		Str("op_id", opID).
		Str("vault", string(id)).
		Str("depositor", string(caller)).
		Str("units_out", unitsOut.String()).
		Str("senior_burned", burns[types.TrancheSenior].String()).
		Str("junior_burned", burns[types.TrancheJunior].String()).
		Msg("Liquidity position withdrawn mid-duration")
	return unitsOut, burned, nil
}

// ensureClaimedPosition registers an LP-only participant so the
// post-redemption withdraw path can find them. Their entitlement lives
// entirely in receipt tokens, so the position starts claimed.
func (e *Engine) ensureClaimedPosition(rec *vaultRecord, t types.Tranche, addr types.Address) {
	if rec.positions[t][addr] == nil {
		rec.positions[t][addr] = &types.InvestorPosition{Depositor: addr, Claimed: true}
	}
}
