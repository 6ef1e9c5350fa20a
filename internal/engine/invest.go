package engine

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"

	"github.com/elys-network/tranche/internal/auth"
	"github.com/elys-network/tranche/internal/state"
	"github.com/elys-network/tranche/internal/types"
)

// Invest closes enrollment, computes the proportional fill between the two
// tranches at the strategy's current exchange rate and deploys the matched
// capital into the pooled position. Callable exactly once per vault.
//
// minSenior/minJunior are the caller's lower bounds on the invested amount
// of each tranche; a manipulated price that pushes either side below its
// bound aborts the whole operation.
func (e *Engine) Invest(caller types.Address, id types.VaultID, minSenior, minJunior sdkmath.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.paused {
		return types.ErrPaused
	}
	rec, err := e.get(id)
	if err != nil {
		return err
	}
	if err := e.requireOperator(caller, rec); err != nil {
		return err
	}
	now := e.clock()
	if now.Before(rec.vault.Params.InvestAt) {
		return types.ErrNotTimeYet
	}
	e.refresh(rec, now)
	switch rec.vault.State {
	case types.StateInvestable:
	case types.StateLive, types.StateRedeemed:
		return types.ErrAlreadyInvested
	default:
		return fmt.Errorf("%w: vault is %s", types.ErrWrongState, rec.vault.State)
	}

	strat, err := e.strategyFor(rec)
	if err != nil {
		return err
	}
	senior := &rec.vault.Tranches[types.TrancheSenior]
	junior := &rec.vault.Tranches[types.TrancheJunior]

	seniorInvested, juniorInvested := sdkmath.ZeroInt(), sdkmath.ZeroInt()
	if senior.DepositedTotal.IsPositive() && junior.DepositedTotal.IsPositive() {
		// price: junior units per senior unit, sampled once per invest.
		price, err := strat.SpotPrice(senior.Asset, junior.Asset)
		if err != nil {
			return fmt.Errorf("sampling invest price: %w", err)
		}
		if !price.IsPositive() {
			return fmt.Errorf("%w: zero invest price", types.ErrAssetMismatch)
		}
		seniorValueInJunior := sdkmath.LegacyNewDecFromInt(senior.DepositedTotal).Mul(price).TruncateInt()
		if seniorValueInJunior.LTE(junior.DepositedTotal) {
			// Senior is the smaller side in value; fully invested.
			seniorInvested = senior.DepositedTotal
			juniorInvested = seniorValueInJunior
		} else {
			juniorInvested = junior.DepositedTotal
			seniorInvested = sdkmath.LegacyNewDecFromInt(junior.DepositedTotal).Quo(price).TruncateInt()
		}
	}
	if seniorInvested.LT(minSenior) || juniorInvested.LT(minJunior) {
		return fmt.Errorf("%w: matched %s senior / %s junior below minimums %s / %s",
			types.ErrTooMuchSlippage, seniorInvested, juniorInvested, minSenior, minJunior)
	}

	// The journal write is the commit point; capital deploys only after it.
	opID := uuid.New().String()
	if err := e.journal.Record(state.Operation{
		OpID: opID, Kind: "invest", Subject: string(id), Caller: caller,
		Payload: map[string]string{
			"senior_invested": seniorInvested.String(),
			"junior_invested": juniorInvested.String(),
		},
	}); err != nil {
		return err
	}

	shares := sdkmath.ZeroInt()
	if seniorInvested.IsPositive() || juniorInvested.IsPositive() {
		amountA, amountB := seniorInvested, juniorInvested
		if !rec.seniorIsA {
			amountA, amountB = juniorInvested, seniorInvested
		}
		shares, err = strat.Invest(id, VaultAccount(id), amountA, amountB)
		if err != nil {
			return fmt.Errorf("deploying matched capital: %w", err)
		}
	}
	senior.OriginalInvested, senior.TotalInvested = seniorInvested, seniorInvested
	junior.OriginalInvested, junior.TotalInvested = juniorInvested, juniorInvested
	rec.shares = shares
	rec.vault.State = types.StateLive
	rec.vault.InvestedAt = now

	e.log.Info().
		Str("op_id", opID).
		Str("vault", string(id)).
		Str("senior_invested", seniorInvested.String()).
		Str("senior_excess", senior.DepositedTotal.Sub(seniorInvested).String()).
		Str("junior_invested", juniorInvested.String()).
		Str("junior_excess", junior.DepositedTotal.Sub(juniorInvested).String()).
		Str("shares", shares.String()).
		Msg("Vault invested")
	return nil
}

// Redeem unwinds the pooled position and runs the waterfall: senior is
// made whole up to principal-plus-hurdle first, junior takes the residual.
// Callable exactly once per vault, after the redemption gate time.
//
// minSenior/minJunior are the caller's lower bounds on the final received
// amount of each tranche.
func (e *Engine) Redeem(caller types.Address, id types.VaultID, minSenior, minJunior sdkmath.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.paused {
		return types.ErrPaused
	}
	rec, err := e.get(id)
	if err != nil {
		return err
	}
	if err := e.requireOperator(caller, rec); err != nil {
		return err
	}
	now := e.clock()
	if now.Before(rec.vault.Params.RedeemAt) {
		return types.ErrNotTimeYet
	}
	switch rec.vault.State {
	case types.StateLive:
	case types.StateRedeemed:
		return types.ErrAlreadyRedeemed
	default:
		return fmt.Errorf("%w: vault is %s", types.ErrWrongState, rec.vault.State)
	}

	strat, err := e.strategyFor(rec)
	if err != nil {
		return err
	}
	senior := &rec.vault.Tranches[types.TrancheSenior]
	junior := &rec.vault.Tranches[types.TrancheJunior]

	// Pending yield folds into the position before the unwind; no
	// separate settlement step exists.
	if err := strat.Harvest(); err != nil {
		return fmt.Errorf("harvesting before redemption: %w", err)
	}

	rawSenior, rawJunior := sdkmath.ZeroInt(), sdkmath.ZeroInt()
	shares := strat.SharesOf(id)
	if shares.IsPositive() {
		outA, outB, err := strat.Redeem(id, VaultAccount(id), shares)
		if err != nil {
			return fmt.Errorf("unwinding pooled position: %w", err)
		}
		rawSenior, rawJunior = outA, outB
		if !rec.seniorIsA {
			rawSenior, rawJunior = outB, outA
		}
	}

	seniorRecv, juniorRecv, err := e.runWaterfall(rec, strat, rawSenior, rawJunior, minSenior, minJunior)
	if err != nil {
		return err
	}
	if seniorRecv.LT(minSenior) || juniorRecv.LT(minJunior) {
		return fmt.Errorf("%w: received %s senior / %s junior below minimums %s / %s",
			types.ErrTooMuchSlippage, seniorRecv, juniorRecv, minSenior, minJunior)
	}

	opID := uuid.New().String()
	if err := e.journal.Record(state.Operation{
		OpID: opID, Kind: "redeem", Subject: string(id), Caller: caller,
		Payload: map[string]string{
			"raw_senior":      rawSenior.String(),
			"raw_junior":      rawJunior.String(),
			"senior_received": seniorRecv.String(),
			"junior_received": juniorRecv.String(),
		},
	}); err != nil {
		return err
	}
	senior.Received = seniorRecv
	junior.Received = juniorRecv
	rec.shares = sdkmath.ZeroInt()
	rec.vault.State = types.StateRedeemed
	rec.vault.RedeemedAt = now

	e.log.Info().
		Str("op_id", opID).
		Str("vault", string(id)).
		Str("senior_received", seniorRecv.String()).
		Str("junior_received", juniorRecv.String()).
		Msg("Vault redeemed")
	return nil
}

// runWaterfall splits raw redemption proceeds between the tranches,
// converting through the strategy's exchange where the composition does
// not match the promised senior amount. Swap-level minimums are derived
// from the caller's thresholds so a slippage failure surfaces inside the
// swap, before any state is committed.
func (e *Engine) runWaterfall(rec *vaultRecord, strat strategyForWaterfall, rawSenior, rawJunior, minSenior, minJunior sdkmath.Int) (sdkmath.Int, sdkmath.Int, error) {
	zero := sdkmath.ZeroInt()
	senior := rec.vault.Tranches[types.TrancheSenior]
	junior := rec.vault.Tranches[types.TrancheJunior]
	acct := VaultAccount(rec.vault.ID)

	seniorExpected := types.ApplyBps(senior.TotalInvested, rec.vault.Params.HurdleRate)

	if rawSenior.GTE(seniorExpected) {
		// Case 1: senior is whole; surplus converts for junior.
		surplus := rawSenior.Sub(seniorExpected)
		converted := sdkmath.ZeroInt()
		if surplus.IsPositive() {
			minConv := minJunior.Sub(rawJunior)
			if minConv.IsNegative() {
				minConv = zero
			}
			var err error
			converted, err = strat.Swap(acct, senior.Asset, surplus, junior.Asset, minConv)
			if err != nil {
				return zero, zero, fmt.Errorf("converting senior surplus: %w", err)
			}
		}
		return seniorExpected, rawJunior.Add(converted), nil
	}

	gap := seniorExpected.Sub(rawSenior)
	if !rawJunior.IsPositive() {
		// Nothing to convert; senior takes everything there is.
		return rawSenior, zero, nil
	}

	// Size the conversion against actual exchange depth. A spot-quoted
	// input would land short of the gap once price impact applies.
	neededJunior, err := strat.QuoteExactOut(junior.Asset, senior.Asset, gap)
	unreachable := errors.Is(err, types.ErrTooMuchSlippage)
	if err != nil && !unreachable {
		return zero, zero, fmt.Errorf("sizing gap conversion: %w", err)
	}

	if unreachable || neededJunior.GTE(rawJunior) {
		// Case 2: even full conversion cannot cover the gap.
		minConv := minSenior.Sub(rawSenior)
		if minConv.IsNegative() {
			minConv = zero
		}
		got, err := strat.Swap(acct, junior.Asset, rawJunior, senior.Asset, minConv)
		if err != nil {
			return zero, zero, fmt.Errorf("converting junior proceeds: %w", err)
		}
		return rawSenior.Add(got), zero, nil
	}

	// Case 3: convert only what closes the gap; junior keeps the rest.
	got, err := strat.Swap(acct, junior.Asset, neededJunior, senior.Asset, gap)
	if err != nil {
		return zero, zero, fmt.Errorf("covering senior gap: %w", err)
	}
	return rawSenior.Add(got), rawJunior.Sub(neededJunior), nil
}

// strategyForWaterfall is the slice of the Strategy surface the waterfall
// needs; it keeps the split testable in isolation.
type strategyForWaterfall interface {
	QuoteExactOut(denomIn, denomOut string, amountOut sdkmath.Int) (sdkmath.Int, error)
	Swap(trader types.Address, denomIn string, amountIn sdkmath.Int, denomOut string, minOut sdkmath.Int) (sdkmath.Int, error)
}

// requireOperator authorizes invest/redeem callers: the vault's strategist
// or creator, or any address carrying the strategist role.
func (e *Engine) requireOperator(caller types.Address, rec *vaultRecord) error {
	if caller == "" {
		return types.ErrZeroAddress
	}
	if caller == rec.vault.Params.Strategist || caller == rec.vault.Params.Creator {
		return nil
	}
	if e.authz.HasRole(caller, auth.RoleStrategist) {
		return nil
	}
	return fmt.Errorf("%w: %s is not an operator of vault %s", types.ErrUnauthorized, caller, rec.vault.ID)
}
