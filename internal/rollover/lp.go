package rollover

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"

	"github.com/elys-network/tranche/internal/state"
	"github.com/elys-network/tranche/internal/types"
)

// DepositLiquidity adds an already-formed liquidity position to the
// current round mid-duration. The vault-level receipts stay with the
// rollover account; the investor is credited invested-denominated stake
// and perpetual receipt tokens in both tranches.
func (e *Engine) DepositLiquidity(caller types.Address, id types.RolloverID, units sdkmath.Int) (minted [types.NumTranches]sdkmath.Int, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	minted[types.TrancheSenior] = sdkmath.ZeroInt()
	minted[types.TrancheJunior] = sdkmath.ZeroInt()
	if e.vaults.Paused() {
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
	vid, v, err := e.currentVault(rec)
	if err != nil {
		return minted, err
	}
	if v.State != types.StateLive {
		return minted, fmt.Errorf("%w: round %d is %s", types.ErrWrongState, rec.roll.Round, v.State)
	}
	var pos [types.NumTranches]*types.RolloverPosition
	for t := 0; t < types.NumTranches; t++ {
		pos[t] = e.position(rec, types.Tranche(t), caller)
		if pos[t].Stage == types.StageDeposited && pos[t].Active.IsPositive() {
			return minted, fmt.Errorf("%w: claim the enrolled stake before adding liquidity", types.ErrWrongState)
		}
	}

	acct := Account(id)
	if err := e.router.TransferLP(v.PoolID, caller, acct, units); err != nil {
		return minted, fmt.Errorf("taking custody of lp units: %w", err)
	}
	minted, err = e.vaults.DepositLiquidity(acct, vid, units)
	if err != nil {
		return minted, err
	}

	opID := uuid.New().String()
	if err := e.journal.Record(state.Operation{
		OpID: opID, Kind: "rollover_deposit_liquidity", Subject: string(id), Caller: caller, Amount: units,
	}); err != nil {
		return minted, err
	}
	for t := 0; t < types.NumTranches; t++ {
		if minted[t].IsPositive() {
			if err := e.bank.Mint(rec.roll.ReceiptTokens[t], caller, minted[t]); err != nil {
				return minted, err
			}
			pos[t].Active = pos[t].Active.Add(minted[t])
		}
		pos[t].Stage = types.StageInvested
	}

	e.log.Info().
		Str("op_id", opID).
		Str("rollover", string(id)).
		Str("depositor", string(caller)).
		Str("units", units.String()).
		Str("senior_minted", minted[types.TrancheSenior].String()).
		Str("junior_minted", minted[types.TrancheJunior].String()).
		Msg("Liquidity position deposited into rollover")
	return minted, nil
}

// WithdrawLiquidity removes part of the current round's position
// mid-duration, debiting the investor's invested stake of both tranches
// and handing the liquidity units back.
func (e *Engine) WithdrawLiquidity(caller types.Address, id types.RolloverID, units sdkmath.Int) (sdkmath.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	zero := sdkmath.ZeroInt()
	if e.vaults.Paused() {
		return zero, types.ErrPaused
	}
	if caller == "" {
		return zero, types.ErrZeroAddress
	}
	if !units.IsPositive() {
		return zero, types.ErrZeroAmount
	}
	rec, err := e.get(id)
	if err != nil {
		return zero, err
	}
	vid, v, err := e.currentVault(rec)
	if err != nil {
		return zero, err
	}
	if v.State != types.StateLive {
		return zero, fmt.Errorf("%w: round %d is %s", types.ErrWrongState, rec.roll.Round, v.State)
	}

	// The investor must cover the proportional receipt burn of both
	// tranches out of their claimed stake before anything moves.
	unitsNow, err := e.vaults.VaultUnits(vid)
	if err != nil {
		return zero, err
	}
	if !unitsNow.IsPositive() || unitsNow.LT(units) {
		return zero, fmt.Errorf("%w: round holds %s units, requested %s", types.ErrInsufficientShares, unitsNow, units)
	}
	var pos [types.NumTranches]*types.RolloverPosition
	for t := 0; t < types.NumTranches; t++ {
		pos[t] = e.position(rec, types.Tranche(t), caller)
		need := ceilDiv(v.Tranches[t].TotalInvested.Mul(units), unitsNow)
		if !need.IsPositive() {
			continue
		}
		if pos[t].Stage != types.StageInvested || pos[t].Active.LT(need) {
			return zero, fmt.Errorf("%w: %s stake does not cover the burn", types.ErrInsufficientShares, types.Tranche(t))
		}
		if e.bank.Balance(rec.roll.ReceiptTokens[t], caller).LT(need) {
			return zero, fmt.Errorf("%w: %s receipt tokens", types.ErrInsufficientFunds, types.Tranche(t))
		}
	}

	acct := Account(id)
	unitsOut, burned, err := e.vaults.WithdrawLiquidity(acct, vid, units)
	if err != nil {
		return zero, err
	}
	if err := e.router.TransferLP(v.PoolID, acct, caller, unitsOut); err != nil {
		return zero, err
	}

	opID := uuid.New().String()
	if err := e.journal.Record(state.Operation{
		OpID: opID, Kind: "rollover_withdraw_liquidity", Subject: string(id), Caller: caller, Amount: units,
	}); err != nil {
		return zero, err
	}
	for t := 0; t < types.NumTranches; t++ {
		if burned[t].IsPositive() {
			if err := e.bank.Burn(rec.roll.ReceiptTokens[t], caller, burned[t]); err != nil {
				return zero, err
			}
			pos[t].Active = pos[t].Active.Sub(burned[t])
		}
	}

	e.log.Info().
		Str("op_id", opID).
		Str("rollover", string(id)).
		Str("depositor", string(caller)).
		Str("units_out", unitsOut.String()).
		Str("senior_burned", burned[types.TrancheSenior].String()).
		Str("junior_burned", burned[types.TrancheJunior].String()).
		Msg("Liquidity position withdrawn from rollover")
	return unitsOut, nil
}

// ceilDiv divides rounding up; burns must never undershoot.
func ceilDiv(a, b sdkmath.Int) sdkmath.Int {
	return a.Add(b.Sub(sdkmath.OneInt())).Quo(b)
}
