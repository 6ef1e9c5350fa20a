/*

Rollover engine. Presents an unbroken, perpetual tranche investment by
chaining vault rounds: the rollover account is the sole depositor it
controls in each underlying vault, individual investors are tracked here
and reconciled lazily against per-round checkpoints.

*/

package rollover

import (
	"errors"
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/elys-network/tranche/internal/amm"
	"github.com/elys-network/tranche/internal/auth"
	"github.com/elys-network/tranche/internal/bank"
	"github.com/elys-network/tranche/internal/engine"
	"github.com/elys-network/tranche/internal/logger"
	"github.com/elys-network/tranche/internal/state"
	"github.com/elys-network/tranche/internal/types"
)

// roundBook is the mutable bookkeeping of the round in progress. It is
// reset at every migration; completed rounds live on as checkpoints.
type roundBook struct {
	deposited [types.NumTranches]sdkmath.Int // pushed into the round's vault
	newFunds  [types.NumTranches]sdkmath.Int // held back for the next round
	claimed   [types.NumTranches]bool        // vault-level claim executed
	settled   [types.NumTranches]bool        // vault-level withdraw executed
	payout    [types.NumTranches]sdkmath.Int // invested-backed settlement proceeds
}

func newRoundBook() roundBook {
	var b roundBook
	for t := 0; t < types.NumTranches; t++ {
		b.deposited[t] = sdkmath.ZeroInt()
		b.newFunds[t] = sdkmath.ZeroInt()
		b.payout[t] = sdkmath.ZeroInt()
	}
	return b
}

type record struct {
	roll      types.Rollover
	book      roundBook
	positions [types.NumTranches]map[types.Address]*types.RolloverPosition
}

// Engine owns every rollover record and drives the round chain against
// the vault engine.
type Engine struct {
	mu sync.Mutex

	log     zerolog.Logger
	authz   auth.Authorizer
	bank    *bank.Bank
	router  amm.Router
	vaults  *engine.Engine
	journal state.Journal
	clock   func() time.Time

	rollovers map[types.RolloverID]*record
}

// Config holds the dependencies for creating a rollover Engine.
type Config struct {
	Authorizer auth.Authorizer
	Bank       *bank.Bank
	Router     amm.Router
	Vaults     *engine.Engine
	Journal    state.Journal
	Clock      func() time.Time
}

// New creates a rollover engine instance with dependency injection.
func New(cfg Config) (*Engine, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("rollover configuration validation failed: %w", err)
	}
	e := &Engine{
		log:       logger.GetForComponent("rollover"),
		authz:     cfg.Authorizer,
		bank:      cfg.Bank,
		router:    cfg.Router,
		vaults:    cfg.Vaults,
		journal:   cfg.Journal,
		clock:     cfg.Clock,
		rollovers: make(map[types.RolloverID]*record),
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	if e.journal == nil {
		e.journal = state.NopJournal{}
	}
	return e, nil
}

func validateConfig(cfg Config) error {
	if cfg.Authorizer == nil {
		return fmt.Errorf("authorizer cannot be nil")
	}
	if cfg.Bank == nil {
		return fmt.Errorf("bank cannot be nil")
	}
	if cfg.Router == nil {
		return fmt.Errorf("router cannot be nil")
	}
	if cfg.Vaults == nil {
		return fmt.Errorf("vault engine cannot be nil")
	}
	return nil
}

// Account is the module address holding a rollover's transiting funds:
// new deposits awaiting the next round and settlement proceeds awaiting
// reinvestment or withdrawal.
func Account(id types.RolloverID) types.Address {
	return types.Address("rollover/" + string(id))
}

func receiptDenom(id types.RolloverID, t types.Tranche) string {
	return fmt.Sprintf("rollover/%s/%s", id, t)
}

// NewRollover binds round 1 to an already-created vault whose start time
// has not yet passed, and creates the perpetual receipt tokens.
func (e *Engine) NewRollover(caller types.Address, vaultID types.VaultID, params types.RolloverParams) (types.RolloverID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.vaults.Paused() {
		return "", types.ErrPaused
	}
	if err := e.authz.Require(caller, auth.RoleCreator); err != nil {
		return "", err
	}
	if params.Strategist == "" {
		return "", types.ErrZeroAddress
	}
	v, err := e.vaults.GetVaultByID(vaultID)
	if err != nil {
		return "", err
	}
	if !v.Params.StartAt.After(e.clock()) {
		return "", fmt.Errorf("%w: vault %s already open", types.ErrStartElapsed, vaultID)
	}
	if params.SeniorAsset != v.Params.SeniorAsset ||
		params.JuniorAsset != v.Params.JuniorAsset ||
		params.Strategy != v.Params.Strategy ||
		!params.FirstStartAt.Equal(v.Params.StartAt) {
		return "", fmt.Errorf("%w: rollover parameters do not match vault %s", types.ErrVaultMismatch, vaultID)
	}
	if err := e.vaultOperable(params.Strategist, v); err != nil {
		return "", err
	}
	id := params.ID()
	if _, exists := e.rollovers[id]; exists {
		return "", fmt.Errorf("%w: %s", types.ErrRolloverExists, id)
	}

	rec := &record{
		roll: types.Rollover{
			ID:          id,
			Params:      params,
			Round:       1,
			Vaults:      map[uint64]types.VaultID{1: vaultID},
			Checkpoints: make(map[uint64]types.RoundCheckpoint),
		},
		book: newRoundBook(),
	}
	for t := 0; t < types.NumTranches; t++ {
		rec.roll.ReceiptTokens[t] = receiptDenom(id, types.Tranche(t))
		rec.positions[t] = make(map[types.Address]*types.RolloverPosition)
	}

	opID := uuid.New().String()
	if err := e.journal.Record(state.Operation{
		OpID: opID, Kind: "new_rollover", Subject: string(id), Caller: caller, Payload: params,
	}); err != nil {
		return "", err
	}
	e.rollovers[id] = rec

	e.log.Info().
		Str("op_id", opID).
		Str("rollover", string(id)).
		Str("vault", string(vaultID)).
		Str("strategy", params.Strategy).
		Msg("Rollover created")
	return id, nil
}

// Deposit records a contribution against the current round. While the
// round's vault is still enrolling the funds go straight in; afterwards
// they are held at the rollover account and enter at the next migration.
func (e *Engine) Deposit(caller types.Address, id types.RolloverID, t types.Tranche, amount sdkmath.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.vaults.Paused() {
		return types.ErrPaused
	}
	if caller == "" {
		return types.ErrZeroAddress
	}
	if !t.Valid() {
		return types.ErrInvalidTranche
	}
	if !amount.IsPositive() {
		return types.ErrZeroAmount
	}
	rec, err := e.get(id)
	if err != nil {
		return err
	}
	vid, v, err := e.currentVault(rec)
	if err != nil {
		return err
	}
	enrolling := v.State == types.StateEnrolling
	if enrolling && e.clock().Before(v.Params.StartAt) {
		return types.ErrNotTimeYet
	}
	// The journal write is the commit point; funds move only after it.
	opID := uuid.New().String()
	if err := e.journal.Record(state.Operation{
		OpID: opID, Kind: "rollover_deposit", Subject: string(id), Caller: caller,
		Tranche: t.String(), Amount: amount,
	}); err != nil {
		return err
	}
	asset := rec.roll.Params.Asset(t)
	if err := e.bank.Transfer(asset, caller, Account(id), amount); err != nil {
		return err
	}
	pos := e.position(rec, t, caller)
	if enrolling {
		if err := e.vaults.Deposit(Account(id), vid, t, amount); err != nil {
			return err
		}
		rec.book.deposited[t] = rec.book.deposited[t].Add(amount)
		pos.Active = pos.Active.Add(amount)
	} else {
		rec.book.newFunds[t] = rec.book.newFunds[t].Add(amount)
		pos.New = pos.New.Add(amount)
	}

	e.log.Info().
		Str("op_id", opID).
		Str("rollover", string(id)).
		Str("tranche", t.String()).
		Str("depositor", string(caller)).
		Str("amount", amount.String()).
		Uint64("round", rec.roll.Round).
		Bool("held_for_next_round", !enrolling).
		Msg("Rollover deposit recorded")
	return nil
}

// Claim finalizes an investor's fill in the current round: releases their
// share of the uninvested excess and mints perpetual receipt tokens for
// the invested remainder. The stake switches to invested denomination.
func (e *Engine) Claim(caller types.Address, id types.RolloverID, t types.Tranche) (invested, excess sdkmath.Int, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	zero := sdkmath.ZeroInt()
	if e.vaults.Paused() {
		return zero, zero, types.ErrPaused
	}
	if !t.Valid() {
		return zero, zero, types.ErrInvalidTranche
	}
	rec, err := e.get(id)
	if err != nil {
		return zero, zero, err
	}
	vid, v, err := e.currentVault(rec)
	if err != nil {
		return zero, zero, err
	}
	if v.State != types.StateLive && v.State != types.StateRedeemed {
		return zero, zero, fmt.Errorf("%w: round %d is %s", types.ErrWrongState, rec.roll.Round, v.State)
	}
	pos := e.position(rec, t, caller)
	if pos.Stage == types.StageInvested {
		return zero, zero, types.ErrAlreadyClaimed
	}
	if !pos.Active.IsPositive() {
		return zero, zero, types.ErrNothingToClaim
	}
	if err := e.ensureClaimedRound(rec, vid, t); err != nil {
		return zero, zero, err
	}
	agg, err := e.vaults.GetInvestorPosition(vid, t, Account(id))
	if err != nil {
		return zero, zero, err
	}
	invested = zero
	if agg.Deposited.IsPositive() {
		invested = pos.Active.Mul(agg.Invested).Quo(agg.Deposited)
	}
	excess = pos.Active.Sub(invested)

	opID := uuid.New().String()
	if err := e.journal.Record(state.Operation{
		OpID: opID, Kind: "rollover_claim", Subject: string(id), Caller: caller,
		Tranche: t.String(), Amount: invested,
	}); err != nil {
		return zero, zero, err
	}
	if excess.IsPositive() {
		if err := e.bank.Transfer(rec.roll.Params.Asset(t), Account(id), caller, excess); err != nil {
			return zero, zero, err
		}
	}
	// Receipts minted by earlier rounds' claims survive the fold, so the
	// balance is reconciled to the stake rather than minted on top of it.
	held := e.bank.Balance(rec.roll.ReceiptTokens[t], caller)
	switch {
	case invested.GT(held):
		if err := e.bank.Mint(rec.roll.ReceiptTokens[t], caller, invested.Sub(held)); err != nil {
			return zero, zero, err
		}
	case held.GT(invested):
		if err := e.bank.Burn(rec.roll.ReceiptTokens[t], caller, held.Sub(invested)); err != nil {
			return zero, zero, err
		}
	}
	pos.Active = invested
	pos.Stage = types.StageInvested

	e.log.Info().
		Str("op_id", opID).
		Str("rollover", string(id)).
		Str("tranche", t.String()).
		Str("depositor", string(caller)).
		Str("invested", invested.String()).
		Str("excess", excess.String()).
		Msg("Rollover position claimed")
	return invested, excess, nil
}

// Withdraw exits the rollover after the current round's vault has been
// redeemed, paying out the investor's share of the round's proceeds. The
// stake does not roll into the next round.
func (e *Engine) Withdraw(caller types.Address, id types.RolloverID, t types.Tranche) (sdkmath.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	zero := sdkmath.ZeroInt()
	if e.vaults.Paused() {
		return zero, types.ErrPaused
	}
	if !t.Valid() {
		return zero, types.ErrInvalidTranche
	}
	rec, err := e.get(id)
	if err != nil {
		return zero, err
	}
	vid, v, err := e.currentVault(rec)
	if err != nil {
		return zero, err
	}
	if v.State != types.StateRedeemed {
		return zero, fmt.Errorf("%w: round %d is %s", types.ErrWrongState, rec.roll.Round, v.State)
	}
	pos := e.position(rec, t, caller)
	if !pos.Active.IsPositive() {
		return zero, types.ErrNothingToClaim
	}
	if err := e.ensureSettledRound(rec, vid, t); err != nil {
		return zero, err
	}
	tr := v.Tranches[t]

	payout := zero
	if pos.Stage == types.StageInvested {
		if tr.TotalInvested.IsPositive() {
			payout = pos.Active.Mul(tr.Received).Quo(tr.TotalInvested)
		}
	} else {
		agg, err := e.vaults.GetInvestorPosition(vid, t, Account(id))
		if err != nil {
			return zero, err
		}
		invested := zero
		if agg.Deposited.IsPositive() {
			invested = pos.Active.Mul(agg.Invested).Quo(agg.Deposited)
		}
		if tr.TotalInvested.IsPositive() {
			payout = invested.Mul(tr.Received).Quo(tr.TotalInvested)
		}
		payout = payout.Add(pos.Active.Sub(invested))
	}
	if !payout.IsPositive() {
		return zero, types.ErrNothingToClaim
	}
	// The exit is total, so every receipt the investor still holds is
	// retired, including stale ones from a folded round's claim.
	burn := e.bank.Balance(rec.roll.ReceiptTokens[t], caller)

	opID := uuid.New().String()
	if err := e.journal.Record(state.Operation{
		OpID: opID, Kind: "rollover_withdraw", Subject: string(id), Caller: caller,
		Tranche: t.String(), Amount: payout,
	}); err != nil {
		return zero, err
	}
	if burn.IsPositive() {
		if err := e.bank.Burn(rec.roll.ReceiptTokens[t], caller, burn); err != nil {
			return zero, err
		}
	}
	if err := e.bank.Transfer(rec.roll.Params.Asset(t), Account(id), caller, payout); err != nil {
		return zero, err
	}
	pos.Active = zero

	e.log.Info().
		Str("op_id", opID).
		Str("rollover", string(id)).
		Str("tranche", t.String()).
		Str("depositor", string(caller)).
		Str("payout", payout.String()).
		Msg("Rollover withdrawal paid out")
	return payout, nil
}

// get fetches a rollover record or fails with ErrRolloverNotFound.
func (e *Engine) get(id types.RolloverID) (*record, error) {
	rec, ok := e.rollovers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrRolloverNotFound, id)
	}
	return rec, nil
}

// currentVault resolves the active round's underlying vault.
func (e *Engine) currentVault(rec *record) (types.VaultID, types.Vault, error) {
	vid, ok := rec.roll.Vaults[rec.roll.Round]
	if !ok {
		return "", types.Vault{}, types.ErrNoActiveRound
	}
	v, err := e.vaults.GetVaultByID(vid)
	if err != nil {
		return "", types.Vault{}, err
	}
	return vid, v, nil
}

// position returns the investor's stored position folded forward to the
// current round, creating an empty one on first touch.
func (e *Engine) position(rec *record, t types.Tranche, addr types.Address) *types.RolloverPosition {
	pos := rec.positions[t][addr]
	if pos == nil {
		pos = &types.RolloverPosition{
			Depositor: addr,
			Round:     rec.roll.Round,
			Active:    sdkmath.ZeroInt(),
			New:       sdkmath.ZeroInt(),
		}
		rec.positions[t][addr] = pos
	}
	fold(pos, t, rec.roll.Checkpoints, rec.roll.Round)
	return pos
}

// fold advances a position through completed-round checkpoints. A
// deposited-stage stake carries at (redeemed + excess) per unit deposited;
// a claimed stake carries at redeemed per unit invested. The new-money
// bucket joins at each round boundary.
func fold(pos *types.RolloverPosition, t types.Tranche, cps map[uint64]types.RoundCheckpoint, current uint64) {
	for pos.Round < current {
		cp, ok := cps[pos.Round]
		if !ok {
			break
		}
		tc := cp.Tranches[t]
		carried := sdkmath.ZeroInt()
		switch {
		case pos.Stage == types.StageInvested && tc.Invested.IsPositive():
			carried = pos.Active.Mul(tc.Redeemed).Quo(tc.Invested)
		case pos.Stage == types.StageDeposited && tc.Deposited.IsPositive():
			carried = pos.Active.Mul(tc.Redeemed.Add(tc.Deposited.Sub(tc.Invested))).Quo(tc.Deposited)
		}
		pos.Active = carried.Add(pos.New)
		pos.New = sdkmath.ZeroInt()
		pos.Stage = types.StageDeposited
		pos.Round++
	}
}

// ensureClaimedRound runs the vault-level claim once per round/tranche,
// pulling the tranche's excess and receipt tokens to the rollover account.
func (e *Engine) ensureClaimedRound(rec *record, vid types.VaultID, t types.Tranche) error {
	if rec.book.claimed[t] {
		return nil
	}
	if _, _, err := e.vaults.Claim(Account(rec.roll.ID), vid, t); err != nil &&
		!errors.Is(err, types.ErrNothingToClaim) && !errors.Is(err, types.ErrAlreadyClaimed) {
		return err
	}
	rec.book.claimed[t] = true
	return nil
}

// ensureSettledRound converts the rollover's receipt tokens into the
// round's final proceeds, once per round/tranche.
func (e *Engine) ensureSettledRound(rec *record, vid types.VaultID, t types.Tranche) error {
	if err := e.ensureClaimedRound(rec, vid, t); err != nil {
		return err
	}
	if rec.book.settled[t] {
		return nil
	}
	amt, err := e.vaults.Withdraw(Account(rec.roll.ID), vid, t)
	if err != nil {
		if !errors.Is(err, types.ErrNothingToClaim) {
			return err
		}
		amt = sdkmath.ZeroInt()
	}
	rec.book.payout[t] = amt
	rec.book.settled[t] = true
	return nil
}

// vaultOperable verifies the rollover's strategist can drive the vault's
// invest and redeem path, so a round never dead-ends at migration.
func (e *Engine) vaultOperable(strategist types.Address, v types.Vault) error {
	if strategist == v.Params.Strategist || strategist == v.Params.Creator {
		return nil
	}
	if e.authz.HasRole(strategist, auth.RoleStrategist) {
		return nil
	}
	return fmt.Errorf("%w: strategist %s cannot operate vault %s", types.ErrVaultMismatch, strategist, v.ID)
}

// requireOperator authorizes round-advancing callers: the rollover's
// strategist or any address carrying the strategist role.
func (e *Engine) requireOperator(caller types.Address, rec *record) error {
	if caller == "" {
		return types.ErrZeroAddress
	}
	if caller == rec.roll.Params.Strategist {
		return nil
	}
	if e.authz.HasRole(caller, auth.RoleStrategist) {
		return nil
	}
	return fmt.Errorf("%w: %s is not an operator of rollover %s", types.ErrUnauthorized, caller, rec.roll.ID)
}
