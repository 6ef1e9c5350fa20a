package rollover

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"

	"github.com/elys-network/tranche/internal/state"
	"github.com/elys-network/tranche/internal/types"
)

// AddNextVault registers the vault to use for the following round. The
// candidate must trade the same tranche assets through the same strategy
// and open exactly when the current round redeems, so migration hands
// over without a gap.
func (e *Engine) AddNextVault(caller types.Address, id types.RolloverID, nextID types.VaultID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.vaults.Paused() {
		return types.ErrPaused
	}
	rec, err := e.get(id)
	if err != nil {
		return err
	}
	if err := e.requireOperator(caller, rec); err != nil {
		return err
	}
	if rec.roll.NextVault != "" {
		return fmt.Errorf("%w: round %d already chains to %s", types.ErrNextVaultSet, rec.roll.Round, rec.roll.NextVault)
	}
	vid, cur, err := e.currentVault(rec)
	if err != nil {
		return err
	}
	if nextID == vid {
		return fmt.Errorf("%w: next vault must differ from the current round's", types.ErrVaultMismatch)
	}
	next, err := e.vaults.GetVaultByID(nextID)
	if err != nil {
		return err
	}
	if next.Params.SeniorAsset != cur.Params.SeniorAsset ||
		next.Params.JuniorAsset != cur.Params.JuniorAsset ||
		next.Params.Strategy != cur.Params.Strategy {
		return fmt.Errorf("%w: next vault trades different assets or strategy", types.ErrVaultMismatch)
	}
	if !next.Params.StartAt.Equal(cur.Params.RedeemAt) {
		return fmt.Errorf("%w: next vault must open at the current round's redemption time", types.ErrVaultMismatch)
	}
	if next.State != types.StateEnrolling {
		return fmt.Errorf("%w: next vault is %s", types.ErrWrongState, next.State)
	}
	if err := e.vaultOperable(rec.roll.Params.Strategist, next); err != nil {
		return err
	}

	opID := uuid.New().String()
	if err := e.journal.Record(state.Operation{
		OpID: opID, Kind: "add_next_vault", Subject: string(id), Caller: caller,
		Payload: map[string]string{"next_vault": string(nextID)},
	}); err != nil {
		return err
	}
	rec.roll.NextVault = nextID

	e.log.Info().
		Str("op_id", opID).
		Str("rollover", string(id)).
		Str("next_vault", string(nextID)).
		Uint64("round", rec.roll.Round).
		Msg("Next round vault registered")
	return nil
}

// Migrate completes the current round and opens the next: redeems the
// round's vault if still live, settles the rollover's proceeds, records
// the round checkpoint and deposits everything carried forward into the
// next vault. Cost is independent of the investor count; positions catch
// up lazily against the checkpoint.
func (e *Engine) Migrate(caller types.Address, id types.RolloverID, minSenior, minJunior sdkmath.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.vaults.Paused() {
		return types.ErrPaused
	}
	rec, err := e.get(id)
	if err != nil {
		return err
	}
	if err := e.requireOperator(caller, rec); err != nil {
		return err
	}
	if rec.roll.NextVault == "" {
		return types.ErrNextVaultUnset
	}
	vid, v, err := e.currentVault(rec)
	if err != nil {
		return err
	}
	shares, err := e.vaults.VaultShares(vid)
	if err != nil {
		return err
	}
	switch v.State {
	case types.StateLive:
		if err := e.vaults.Redeem(caller, vid, minSenior, minJunior); err != nil {
			return fmt.Errorf("redeeming round %d: %w", rec.roll.Round, err)
		}
	case types.StateRedeemed:
	default:
		return fmt.Errorf("%w: round %d is %s", types.ErrWrongState, rec.roll.Round, v.State)
	}
	for t := 0; t < types.NumTranches; t++ {
		if err := e.ensureSettledRound(rec, vid, types.Tranche(t)); err != nil {
			return fmt.Errorf("settling round %d %s: %w", rec.roll.Round, types.Tranche(t), err)
		}
	}

	var cp types.RoundCheckpoint
	for t := 0; t < types.NumTranches; t++ {
		agg, err := e.vaults.GetInvestorPosition(vid, types.Tranche(t), Account(id))
		if err != nil {
			return err
		}
		cp.Tranches[t] = types.TrancheCheckpoint{
			Deposited:    agg.Deposited,
			Invested:     agg.Invested,
			Redeemed:     rec.book.payout[t],
			Shares:       shares,
			NewDeposited: rec.book.newFunds[t],
			NewInvested:  rec.book.newFunds[t],
		}
	}

	nextID := rec.roll.NextVault
	nextBook := newRoundBook()
	acct := Account(id)
	for t := 0; t < types.NumTranches; t++ {
		asset := rec.roll.Params.Asset(types.Tranche(t))
		carry := e.bank.Balance(asset, acct)
		if carry.IsPositive() {
			if err := e.vaults.Deposit(acct, nextID, types.Tranche(t), carry); err != nil {
				return fmt.Errorf("seeding round %d %s: %w", rec.roll.Round+1, types.Tranche(t), err)
			}
		}
		nextBook.deposited[t] = carry
	}

	opID := uuid.New().String()
	if err := e.journal.Record(state.Operation{
		OpID: opID, Kind: "migrate", Subject: string(id), Caller: caller,
		Payload: map[string]string{
			"completed_round": fmt.Sprintf("%d", rec.roll.Round),
			"next_vault":      string(nextID),
			"senior_carried":  nextBook.deposited[types.TrancheSenior].String(),
			"junior_carried":  nextBook.deposited[types.TrancheJunior].String(),
		},
	}); err != nil {
		return err
	}
	rec.roll.Checkpoints[rec.roll.Round] = cp
	rec.roll.Round++
	rec.roll.Vaults[rec.roll.Round] = nextID
	rec.roll.NextVault = ""
	rec.book = nextBook

	e.log.Info().
		Str("op_id", opID).
		Str("rollover", string(id)).
		Uint64("round", rec.roll.Round).
		Str("vault", string(nextID)).
		Str("senior_carried", nextBook.deposited[types.TrancheSenior].String()).
		Str("junior_carried", nextBook.deposited[types.TrancheJunior].String()).
		Msg("Rollover migrated to next round")
	return nil
}
