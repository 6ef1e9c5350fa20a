/*

Vault lifecycle engine. Owns every vault record, serializes all mutating
operations behind one lock (the stand-in for the host ledger's
total-order-per-transaction guarantee) and journals each committed
operation before applying it.

*/

package engine

import (
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/elys-network/tranche/internal/auth"
	"github.com/elys-network/tranche/internal/bank"
	"github.com/elys-network/tranche/internal/logger"
	"github.com/elys-network/tranche/internal/state"
	"github.com/elys-network/tranche/internal/strategy"
	"github.com/elys-network/tranche/internal/types"
)

// vaultRecord couples the public vault state with engine-internal
// bookkeeping: investor positions and the strategy share balance.
type vaultRecord struct {
	vault     types.Vault
	shares    sdkmath.Int
	seniorIsA bool // senior asset is the pool's A denom
	positions [types.NumTranches]map[types.Address]*types.InvestorPosition
}

// Engine is the vault lifecycle and waterfall engine.
type Engine struct {
	mu sync.Mutex

	log     zerolog.Logger
	authz   auth.Authorizer
	bank    *bank.Bank
	journal state.Journal
	clock   func() time.Time

	strategies map[string]strategy.Strategy
	vaults     map[types.VaultID]*vaultRecord
	order      []types.VaultID // creation order, drives pagination
	byReceipt  map[string]types.VaultID
	paused     bool
}

// Config holds the dependencies for creating an Engine.
type Config struct {
	Authorizer auth.Authorizer
	Bank       *bank.Bank
	Journal    state.Journal
	Strategies []strategy.Strategy
	Clock      func() time.Time
}

// New creates an engine instance with dependency injection.
func New(cfg Config) (*Engine, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("engine configuration validation failed: %w", err)
	}
	e := &Engine{
		log:        logger.GetForComponent("engine"),
		authz:      cfg.Authorizer,
		bank:       cfg.Bank,
		journal:    cfg.Journal,
		clock:      cfg.Clock,
		strategies: make(map[string]strategy.Strategy),
		vaults:     make(map[types.VaultID]*vaultRecord),
		byReceipt:  make(map[string]types.VaultID),
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	if e.journal == nil {
		e.journal = state.NopJournal{}
	}
	for _, s := range cfg.Strategies {
		e.strategies[s.Name()] = s
	}
	e.log.Info().Int("strategies", len(e.strategies)).Msg("Engine instance created")
	return e, nil
}

func validateConfig(cfg Config) error {
	if cfg.Authorizer == nil {
		return fmt.Errorf("authorizer cannot be nil")
	}
	if cfg.Bank == nil {
		return fmt.Errorf("bank cannot be nil")
	}
	if len(cfg.Strategies) == 0 {
		return fmt.Errorf("at least one strategy is required")
	}
	return nil
}

// VaultAccount is the module address holding a vault's undeployed funds.
func VaultAccount(id types.VaultID) types.Address {
	return types.Address("vault/" + string(id))
}

func receiptDenom(id types.VaultID, t types.Tranche) string {
	return fmt.Sprintf("tranche/%s/%s", id, t)
}

// CreateVault validates parameters, derives the deterministic identity and
// registers the vault in Enrolling state.
func (e *Engine) CreateVault(caller types.Address, params types.VaultParams) (types.VaultID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.paused {
		return "", types.ErrPaused
	}
	if err := e.authz.Require(caller, auth.RoleCreator); err != nil {
		return "", err
	}
	now := e.clock()
	if params.Creator == "" || params.Strategist == "" {
		return "", types.ErrZeroAddress
	}
	if params.SeniorAsset == "" || params.JuniorAsset == "" || params.SeniorAsset == params.JuniorAsset {
		return "", fmt.Errorf("%w: tranche assets must be distinct and non-empty", types.ErrAssetMismatch)
	}
	if params.HurdleRate > types.MaxHurdleRateBps {
		return "", fmt.Errorf("%w: %d > %d", types.ErrHurdleTooHigh, params.HurdleRate, types.MaxHurdleRateBps)
	}
	if !params.StartAt.After(now) {
		return "", fmt.Errorf("%w: start time must be in the future", types.ErrInvalidInterval)
	}
	if !params.InvestAt.After(params.StartAt) || !params.RedeemAt.After(params.InvestAt) {
		return "", types.ErrInvalidInterval
	}
	strat, ok := e.strategies[params.Strategy]
	if !ok {
		return "", fmt.Errorf("unknown strategy %q", params.Strategy)
	}
	denomA, denomB, err := strat.Assets()
	if err != nil {
		return "", err
	}
	var seniorIsA bool
	switch {
	case params.SeniorAsset == denomA && params.JuniorAsset == denomB:
		seniorIsA = true
	case params.SeniorAsset == denomB && params.JuniorAsset == denomA:
		seniorIsA = false
	default:
		return "", fmt.Errorf("%w: strategy %q trades %s/%s", types.ErrAssetMismatch, params.Strategy, denomA, denomB)
	}

	id := params.ID()
	if _, exists := e.vaults[id]; exists {
		return "", fmt.Errorf("%w: %s", types.ErrVaultExists, id)
	}

	rec := &vaultRecord{
		vault: types.Vault{
			ID:     id,
			Params: params,
			State:  types.StateEnrolling,
			PoolID: strat.Pool(),
		},
		shares:    sdkmath.ZeroInt(),
		seniorIsA: seniorIsA,
	}
	for t := 0; t < types.NumTranches; t++ {
		rec.vault.Tranches[t] = types.TrancheRecord{
			Asset:            params.Asset(types.Tranche(t)),
			DepositedTotal:   sdkmath.ZeroInt(),
			OriginalInvested: sdkmath.ZeroInt(),
			TotalInvested:    sdkmath.ZeroInt(),
			Received:         sdkmath.ZeroInt(),
			ReceiptToken:     receiptDenom(id, types.Tranche(t)),
		}
		rec.positions[t] = make(map[types.Address]*types.InvestorPosition)
		e.byReceipt[rec.vault.Tranches[t].ReceiptToken] = id
	}

	opID := uuid.New().String()
	if err := e.journal.Record(state.Operation{
		OpID: opID, Kind: "create_vault", Subject: string(id), Caller: caller, Payload: params,
	}); err != nil {
		return "", err
	}
	e.vaults[id] = rec
	e.order = append(e.order, id)

	e.log.Info().
		Str("op_id", opID).
		Str("vault", string(id)).
		Str("strategy", params.Strategy).
		Uint64("hurdle_bps", params.HurdleRate).
		Time("invest_at", params.InvestAt).
		Time("redeem_at", params.RedeemAt).
		Msg("Vault created")
	return id, nil
}

// Deposit records an enrollment-phase contribution to one tranche.
func (e *Engine) Deposit(caller types.Address, id types.VaultID, t types.Tranche, amount sdkmath.Int) error {
	return e.deposit(caller, id, t, amount, false)
}

// DepositNative wraps attached native value and deposits it; the tranche
// asset must be the wrapped native denom.
func (e *Engine) DepositNative(caller types.Address, id types.VaultID, t types.Tranche, amount sdkmath.Int) error {
	return e.deposit(caller, id, t, amount, true)
}

func (e *Engine) deposit(caller types.Address, id types.VaultID, t types.Tranche, amount sdkmath.Int, native bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.paused {
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
	now := e.clock()
	if now.Before(rec.vault.Params.StartAt) {
		return types.ErrNotTimeYet
	}
	e.refresh(rec, now)
	if rec.vault.State != types.StateEnrolling {
		return types.ErrDepositsClosed
	}
	tr := &rec.vault.Tranches[t]
	if native && tr.Asset != e.bank.NativeDenom() {
		return types.ErrNotNativeAsset
	}

	// The journal write is the commit point; funds move only after it.
	opID := uuid.New().String()
	if err := e.journal.Record(state.Operation{
		OpID: opID, Kind: "deposit", Subject: string(id), Caller: caller,
		Tranche: t.String(), Amount: amount,
	}); err != nil {
		return err
	}
	if native {
		if err := e.bank.Wrap(caller, amount); err != nil {
			return err
		}
	}
	if err := e.bank.Transfer(tr.Asset, caller, VaultAccount(id), amount); err != nil {
		return err
	}

	newTotal := tr.DepositedTotal.Add(amount)
	tr.DepositedTotal = newTotal
	pos := rec.positions[t][caller]
	if pos == nil {
		pos = &types.InvestorPosition{Depositor: caller}
		rec.positions[t][caller] = pos
	}
	pos.Deposits = append(pos.Deposits, types.DepositEntry{Amount: amount, Prefix: newTotal})

	e.log.Info().
		Str("op_id", opID).
		Str("vault", string(id)).
		Str("tranche", t.String()).
		Str("depositor", string(caller)).
		Str("amount", amount.String()).
		Str("tranche_total", newTotal.String()).
		Msg("Deposit recorded")
	return nil
}

// Claim finalizes an investor's fill: mints receipt tokens for the
// invested amount and releases the uninvested excess in the underlying
// asset. Callable any time after invest().
func (e *Engine) Claim(caller types.Address, id types.VaultID, t types.Tranche) (invested, excess sdkmath.Int, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	zero := sdkmath.ZeroInt()
	if e.paused {
		return zero, zero, types.ErrPaused
	}
	if !t.Valid() {
		return zero, zero, types.ErrInvalidTranche
	}
	rec, err := e.get(id)
	if err != nil {
		return zero, zero, err
	}
	if rec.vault.State != types.StateLive && rec.vault.State != types.StateRedeemed {
		return zero, zero, fmt.Errorf("%w: vault is %s", types.ErrWrongState, rec.vault.State)
	}
	pos := rec.positions[t][caller]
	if pos == nil || len(pos.Deposits) == 0 {
		return zero, zero, types.ErrNothingToClaim
	}
	if pos.Claimed {
		return zero, zero, types.ErrAlreadyClaimed
	}
	tr := &rec.vault.Tranches[t]
	invested, excess = pos.SplitAtBoundary(tr.OriginalInvested)

	opID := uuid.New().String()
	if err := e.journal.Record(state.Operation{
		OpID: opID, Kind: "claim", Subject: string(id), Caller: caller,
		Tranche: t.String(), Amount: invested,
	}); err != nil {
		return zero, zero, err
	}
	if invested.IsPositive() {
		if err := e.bank.Mint(tr.ReceiptToken, caller, invested); err != nil {
			return zero, zero, err
		}
	}
	if excess.IsPositive() {
		if err := e.bank.Transfer(tr.Asset, VaultAccount(id), caller, excess); err != nil {
			return zero, zero, err
		}
	}
	pos.Claimed = true

	e.log.Info().
		Str("op_id", opID).
		Str("vault", string(id)).
		Str("tranche", t.String()).
		Str("depositor", string(caller)).
		Str("invested", invested.String()).
		Str("excess", excess.String()).
		Msg("Position claimed")
	return invested, excess, nil
}

// Withdraw pays out an investor's proportional share of the tranche's
// final received amount, burning their receipt-token balance (or settling
// their pre-claim entitlement directly). Only callable after redeem().
func (e *Engine) Withdraw(caller types.Address, id types.VaultID, t types.Tranche) (sdkmath.Int, error) {
	return e.withdraw(caller, id, t, false)
}

// WithdrawNative is Withdraw plus unwrapping of the native denom.
func (e *Engine) WithdrawNative(caller types.Address, id types.VaultID, t types.Tranche) (sdkmath.Int, error) {
	return e.withdraw(caller, id, t, true)
}

func (e *Engine) withdraw(caller types.Address, id types.VaultID, t types.Tranche, native bool) (sdkmath.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	zero := sdkmath.ZeroInt()
	if e.paused {
		return zero, types.ErrPaused
	}
	if !t.Valid() {
		return zero, types.ErrInvalidTranche
	}
	rec, err := e.get(id)
	if err != nil {
		return zero, err
	}
	if rec.vault.State != types.StateRedeemed {
		return zero, fmt.Errorf("%w: vault is %s", types.ErrWrongState, rec.vault.State)
	}
	tr := &rec.vault.Tranches[t]
	if native && tr.Asset != e.bank.NativeDenom() {
		return zero, types.ErrNotNativeAsset
	}

	pos := rec.positions[t][caller]
	payout := sdkmath.ZeroInt()
	released := sdkmath.ZeroInt()
	var burned sdkmath.Int

	if pos != nil && pos.Withdrawn {
		return zero, types.ErrAlreadyWithdrawn
	}

	if pos != nil && !pos.Claimed {
		// Pre-claim settlement: entitlement and excess in one step.
		invested, excess := pos.SplitAtBoundary(tr.OriginalInvested)
		if tr.TotalInvested.IsPositive() {
			payout = invested.Mul(tr.Received).Quo(tr.TotalInvested)
		}
		released = excess
		burned = sdkmath.ZeroInt()
	} else {
		// Receipt-token path: burn the full balance.
		burned = e.bank.Balance(tr.ReceiptToken, caller)
		if !burned.IsPositive() {
			return zero, types.ErrNothingToClaim
		}
		if tr.TotalInvested.IsPositive() {
			payout = burned.Mul(tr.Received).Quo(tr.TotalInvested)
		}
	}
	if !payout.IsPositive() && !released.IsPositive() {
		return zero, types.ErrNothingToClaim
	}

	opID := uuid.New().String()
	if err := e.journal.Record(state.Operation{
		OpID: opID, Kind: "withdraw", Subject: string(id), Caller: caller,
		Tranche: t.String(), Amount: payout,
	}); err != nil {
		return zero, err
	}
	if burned.IsPositive() {
		if err := e.bank.Burn(tr.ReceiptToken, caller, burned); err != nil {
			return zero, err
		}
	}
	total := payout.Add(released)
	if total.IsPositive() {
		if err := e.bank.Transfer(tr.Asset, VaultAccount(id), caller, total); err != nil {
			return zero, err
		}
		if native {
			if err := e.bank.Unwrap(caller, total); err != nil {
				return zero, err
			}
		}
	}
	if pos == nil {
		pos = &types.InvestorPosition{Depositor: caller, Claimed: true}
		rec.positions[t][caller] = pos
	}
	pos.Claimed = true
	pos.Withdrawn = true

	e.log.Info().
		Str("op_id", opID).
		Str("vault", string(id)).
		Str("tranche", t.String()).
		Str("depositor", string(caller)).
		Str("payout", payout.String()).
		Str("excess_released", released.String()).
		Msg("Withdrawal paid out")
	return total, nil
}

// Pause freezes every mutating entry point. Deployer role only.
func (e *Engine) Pause(caller types.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.authz.Require(caller, auth.RoleDeployer); err != nil {
		return err
	}
	e.paused = true
	e.log.Warn().Str("caller", string(caller)).Msg("Engine paused")
	return nil
}

// Unpause re-enables mutating entry points. Deployer role only.
func (e *Engine) Unpause(caller types.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.authz.Require(caller, auth.RoleDeployer); err != nil {
		return err
	}
	e.paused = false
	e.log.Warn().Str("caller", string(caller)).Msg("Engine unpaused")
	return nil
}

// Paused reports the emergency-freeze flag.
func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// Rescue moves stranded tokens out of a strategy account to a safe
// holder. Only reachable while paused, deployer role only.
func (e *Engine) Rescue(caller types.Address, strategyName, denom string, to types.Address) (sdkmath.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.authz.Require(caller, auth.RoleDeployer); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if !e.paused {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: rescue requires the engine to be paused", types.ErrWrongState)
	}
	strat, ok := e.strategies[strategyName]
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("unknown strategy %q", strategyName)
	}
	return strat.Rescue(denom, to)
}

// get fetches a vault record or fails with ErrVaultNotFound.
func (e *Engine) get(id types.VaultID) (*vaultRecord, error) {
	rec, ok := e.vaults[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrVaultNotFound, id)
	}
	return rec, nil
}

// refresh applies the time-gated Enrolling -> Investable transition.
func (e *Engine) refresh(rec *vaultRecord, now time.Time) {
	if rec.vault.State == types.StateEnrolling && !now.Before(rec.vault.Params.InvestAt) {
		rec.vault.State = types.StateInvestable
	}
}

func (e *Engine) strategyFor(rec *vaultRecord) (strategy.Strategy, error) {
	strat, ok := e.strategies[rec.vault.Params.Strategy]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q", rec.vault.Params.Strategy)
	}
	return strat, nil
}

// ceilDiv divides rounding up; used where burns must never undershoot.
func ceilDiv(a, b sdkmath.Int) sdkmath.Int {
	return a.Add(b.Sub(sdkmath.OneInt())).Quo(b)
}
