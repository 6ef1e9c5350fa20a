package engine

import (
	"errors"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/tranche/internal/amm"
	"github.com/elys-network/tranche/internal/auth"
	"github.com/elys-network/tranche/internal/bank"
	"github.com/elys-network/tranche/internal/ledger"
	"github.com/elys-network/tranche/internal/state"
	"github.com/elys-network/tranche/internal/strategy"
	"github.com/elys-network/tranche/internal/types"
)

const (
	denomSenior = "uusdc"
	denomJunior = "uatom"
	testPool    = types.PoolID(1)

	creator    = types.Address("creator")
	strategist = types.Address("strategist")
	deployer   = types.Address("deployer")
	genesis    = types.Address("genesis")
)

type fixture struct {
	t      *testing.T
	now    time.Time
	bank   *bank.Bank
	dex    *amm.Dex
	farm   *amm.SimFarm
	shares *ledger.ShareLedger
	strat  *strategy.AMMStrategy
	reg    *auth.Registry
	eng    *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fx := &fixture{t: t, now: time.Unix(1_700_000_000, 0)}
	fx.bank = bank.New("uelys")
	fx.dex = amm.NewDex(fx.bank)
	// Rewards pay in the senior asset so harvests route without an extra
	// conversion pool.
	fx.farm = amm.NewSimFarm(fx.dex, fx.bank, denomSenior)
	fx.shares = ledger.New()

	require.NoError(t, fx.bank.Mint(denomSenior, genesis, sdkmath.NewInt(10_000_000)))
	require.NoError(t, fx.bank.Mint(denomJunior, genesis, sdkmath.NewInt(10_000_000)))
	_, err := fx.dex.CreatePool(testPool, denomSenior, denomJunior, 0, genesis,
		sdkmath.NewInt(1_000_000), sdkmath.NewInt(1_000_000))
	require.NoError(t, err)

	fx.strat, err = strategy.New(strategy.Config{
		Name:   "amm-1",
		Pool:   testPool,
		Router: fx.dex,
		Farm:   fx.farm,
		Shares: fx.shares,
		Bank:   fx.bank,
	})
	require.NoError(t, err)

	fx.reg = auth.NewRegistry()
	fx.reg.Grant(creator, auth.RoleCreator)
	fx.reg.Grant(deployer, auth.RoleDeployer)

	fx.eng, err = New(Config{
		Authorizer: fx.reg,
		Bank:       fx.bank,
		Strategies: []strategy.Strategy{fx.strat},
		Clock:      func() time.Time { return fx.now },
	})
	require.NoError(t, err)
	return fx
}

func (fx *fixture) advance(d time.Duration) { fx.now = fx.now.Add(d) }

func (fx *fixture) params(hurdle uint64) types.VaultParams {
	return types.VaultParams{
		SeniorAsset: denomSenior,
		JuniorAsset: denomJunior,
		Strategy:    "amm-1",
		HurdleRate:  hurdle,
		StartAt:     fx.now.Add(time.Hour),
		InvestAt:    fx.now.Add(24 * time.Hour),
		RedeemAt:    fx.now.Add(48 * time.Hour),
		Creator:     creator,
		Strategist:  strategist,
	}
}

func (fx *fixture) createVault(hurdle uint64) types.VaultID {
	fx.t.Helper()
	id, err := fx.eng.CreateVault(creator, fx.params(hurdle))
	require.NoError(fx.t, err)
	return id
}

func (fx *fixture) deposit(id types.VaultID, t types.Tranche, addr types.Address, amount int64) {
	fx.t.Helper()
	denom := denomSenior
	if t == types.TrancheJunior {
		denom = denomJunior
	}
	require.NoError(fx.t, fx.bank.Mint(denom, addr, sdkmath.NewInt(amount)))
	require.NoError(fx.t, fx.eng.Deposit(addr, id, t, sdkmath.NewInt(amount)))
}

func TestCreateVaultValidation(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.eng.CreateVault("stranger", fx.params(11000))
	require.ErrorIs(t, err, types.ErrUnauthorized)

	p := fx.params(11000)
	p.JuniorAsset = denomSenior
	_, err = fx.eng.CreateVault(creator, p)
	require.ErrorIs(t, err, types.ErrAssetMismatch)

	p = fx.params(types.MaxHurdleRateBps + 1)
	_, err = fx.eng.CreateVault(creator, p)
	require.ErrorIs(t, err, types.ErrHurdleTooHigh)

	p = fx.params(11000)
	p.StartAt = fx.now.Add(-time.Minute)
	_, err = fx.eng.CreateVault(creator, p)
	require.ErrorIs(t, err, types.ErrInvalidInterval)

	p = fx.params(11000)
	p.RedeemAt = p.InvestAt
	_, err = fx.eng.CreateVault(creator, p)
	require.ErrorIs(t, err, types.ErrInvalidInterval)

	p = fx.params(11000)
	p.Strategist = ""
	_, err = fx.eng.CreateVault(creator, p)
	require.ErrorIs(t, err, types.ErrZeroAddress)

	// Identity collision: identical parameters hash to the same vault.
	id := fx.createVault(11000)
	_, err = fx.eng.CreateVault(creator, fx.params(11000))
	require.ErrorIs(t, err, types.ErrVaultExists)

	v, err := fx.eng.GetVaultByID(id)
	require.NoError(t, err)
	require.Equal(t, types.StateEnrolling, v.State)
}

func TestDepositTimingWindows(t *testing.T) {
	fx := newFixture(t)
	id := fx.createVault(11000)
	require.NoError(t, fx.bank.Mint(denomSenior, "alice", sdkmath.NewInt(100)))

	// Before the start gate.
	err := fx.eng.Deposit("alice", id, types.TrancheSenior, sdkmath.NewInt(100))
	require.ErrorIs(t, err, types.ErrNotTimeYet)

	fx.advance(2 * time.Hour)
	require.NoError(t, fx.eng.Deposit("alice", id, types.TrancheSenior, sdkmath.NewInt(100)))

	// After the invest gate enrollment is closed.
	fx.advance(23 * time.Hour)
	require.NoError(t, fx.bank.Mint(denomSenior, "alice", sdkmath.NewInt(100)))
	err = fx.eng.Deposit("alice", id, types.TrancheSenior, sdkmath.NewInt(100))
	require.ErrorIs(t, err, types.ErrDepositsClosed)

	err = fx.eng.Deposit("alice", id, types.Tranche(5), sdkmath.NewInt(1))
	require.ErrorIs(t, err, types.ErrInvalidTranche)
	err = fx.eng.Deposit("alice", id, types.TrancheSenior, sdkmath.ZeroInt())
	require.ErrorIs(t, err, types.ErrZeroAmount)
}

func TestInvestProportionalFillExactness(t *testing.T) {
	fx := newFixture(t)
	id := fx.createVault(11000)
	fx.advance(2 * time.Hour)

	seniors := map[types.Address]int64{"s1": 500, "s2": 300, "s3": 737, "s4": 1000}
	for _, addr := range []types.Address{"s1", "s2", "s3", "s4"} {
		fx.deposit(id, types.TrancheSenior, addr, seniors[addr])
	}
	fx.deposit(id, types.TrancheJunior, "j1", 400)
	fx.deposit(id, types.TrancheJunior, "j2", 282)

	fx.advance(23 * time.Hour)
	require.NoError(t, fx.eng.Invest(strategist, id, sdkmath.ZeroInt(), sdkmath.ZeroInt()))

	v, err := fx.eng.GetVaultByID(id)
	require.NoError(t, err)
	require.Equal(t, types.StateLive, v.State)
	// Junior is the smaller side at 1:1, so it caps the match at 682.
	require.Equal(t, sdkmath.NewInt(682), v.Tranches[types.TrancheSenior].OriginalInvested)
	require.Equal(t, sdkmath.NewInt(682), v.Tranches[types.TrancheJunior].OriginalInvested)

	// Early deposits fill first; the split is exact to the unit.
	for tranche, totals := range map[types.Tranche]int64{types.TrancheSenior: 2537, types.TrancheJunior: 682} {
		sum := sdkmath.ZeroInt()
		addrs := []types.Address{"s1", "s2", "s3", "s4"}
		if tranche == types.TrancheJunior {
			addrs = []types.Address{"j1", "j2"}
		}
		for _, addr := range addrs {
			pos, err := fx.eng.GetInvestorPosition(id, tranche, addr)
			require.NoError(t, err)
			require.Equal(t, pos.Deposited, pos.Invested.Add(pos.Excess))
			sum = sum.Add(pos.Invested).Add(pos.Excess)
		}
		require.Equal(t, sdkmath.NewInt(totals), sum)
	}

	pos, err := fx.eng.GetInvestorPosition(id, types.TrancheSenior, "s1")
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(500), pos.Invested)
	pos, err = fx.eng.GetInvestorPosition(id, types.TrancheSenior, "s2")
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(182), pos.Invested)
	require.Equal(t, sdkmath.NewInt(118), pos.Excess)
	pos, err = fx.eng.GetInvestorPosition(id, types.TrancheSenior, "s3")
	require.NoError(t, err)
	require.True(t, pos.Invested.IsZero())
}

func TestInvestGuards(t *testing.T) {
	fx := newFixture(t)
	id := fx.createVault(11000)
	fx.advance(2 * time.Hour)
	fx.deposit(id, types.TrancheSenior, "s1", 2537)
	fx.deposit(id, types.TrancheJunior, "j1", 682)

	// Too early.
	err := fx.eng.Invest(strategist, id, sdkmath.ZeroInt(), sdkmath.ZeroInt())
	require.ErrorIs(t, err, types.ErrNotTimeYet)

	fx.advance(23 * time.Hour)

	// Unauthorized caller.
	err = fx.eng.Invest("stranger", id, sdkmath.ZeroInt(), sdkmath.ZeroInt())
	require.ErrorIs(t, err, types.ErrUnauthorized)

	// Minimum-fill guard.
	err = fx.eng.Invest(strategist, id, sdkmath.NewInt(700), sdkmath.ZeroInt())
	require.ErrorIs(t, err, types.ErrTooMuchSlippage)

	require.NoError(t, fx.eng.Invest(strategist, id, sdkmath.NewInt(682), sdkmath.NewInt(682)))

	// Second invest never mutates further.
	err = fx.eng.Invest(strategist, id, sdkmath.ZeroInt(), sdkmath.ZeroInt())
	require.ErrorIs(t, err, types.ErrAlreadyInvested)
}

func TestRedeemWaterfallSeniorWhole(t *testing.T) {
	fx := newFixture(t)
	id := fx.createVault(11000)
	fx.advance(2 * time.Hour)
	fx.deposit(id, types.TrancheSenior, "s1", 2537)
	fx.deposit(id, types.TrancheJunior, "j1", 682)
	fx.advance(23 * time.Hour)
	require.NoError(t, fx.eng.Invest(strategist, id, sdkmath.ZeroInt(), sdkmath.ZeroInt()))

	// Too early to redeem.
	err := fx.eng.Redeem(strategist, id, sdkmath.ZeroInt(), sdkmath.ZeroInt())
	require.ErrorIs(t, err, types.ErrNotTimeYet)

	// Accrued yield makes the senior side whole with surplus to spare.
	fx.farm.Accrue(testPool, fx.strat.Account(), sdkmath.NewInt(300))
	fx.advance(24 * time.Hour)
	require.NoError(t, fx.eng.Redeem(strategist, id, sdkmath.ZeroInt(), sdkmath.ZeroInt()))

	v, err := fx.eng.GetVaultByID(id)
	require.NoError(t, err)
	require.Equal(t, types.StateRedeemed, v.State)
	// Senior receives exactly principal times the 1.10x hurdle: 682 -> 750.
	require.Equal(t, types.ApplyBps(sdkmath.NewInt(682), 11000), v.Tranches[types.TrancheSenior].Received)
	require.Equal(t, sdkmath.NewInt(750), v.Tranches[types.TrancheSenior].Received)
	require.True(t, v.Tranches[types.TrancheJunior].Received.IsPositive())

	// Second redeem never mutates further.
	err = fx.eng.Redeem(strategist, id, sdkmath.ZeroInt(), sdkmath.ZeroInt())
	require.ErrorIs(t, err, types.ErrAlreadyRedeemed)
}

func TestRedeemWaterfallJuniorWipedOut(t *testing.T) {
	fx := newFixture(t)
	// A 100x hurdle cannot be covered even by converting all junior
	// proceeds.
	id := fx.createVault(types.MaxHurdleRateBps)
	fx.advance(2 * time.Hour)
	fx.deposit(id, types.TrancheSenior, "s1", 682)
	fx.deposit(id, types.TrancheJunior, "j1", 682)
	fx.advance(23 * time.Hour)
	require.NoError(t, fx.eng.Invest(strategist, id, sdkmath.ZeroInt(), sdkmath.ZeroInt()))
	fx.advance(24 * time.Hour)
	require.NoError(t, fx.eng.Redeem(strategist, id, sdkmath.ZeroInt(), sdkmath.ZeroInt()))

	v, err := fx.eng.GetVaultByID(id)
	require.NoError(t, err)
	expected := types.ApplyBps(v.Tranches[types.TrancheSenior].TotalInvested, types.MaxHurdleRateBps)
	require.True(t, v.Tranches[types.TrancheJunior].Received.IsZero())
	require.True(t, v.Tranches[types.TrancheSenior].Received.LT(expected))
	require.True(t, v.Tranches[types.TrancheSenior].Received.IsPositive())
}

func TestRedeemWaterfallPartialConversion(t *testing.T) {
	fx := newFixture(t)
	id := fx.createVault(11000)
	fx.advance(2 * time.Hour)
	fx.deposit(id, types.TrancheSenior, "s1", 682)
	fx.deposit(id, types.TrancheJunior, "j1", 682)
	fx.advance(23 * time.Hour)
	require.NoError(t, fx.eng.Invest(strategist, id, sdkmath.ZeroInt(), sdkmath.ZeroInt()))

	// No yield accrues, so the unwind returns 682/682 and the hurdle
	// leaves a 68 senior shortfall covered from the junior side.
	fx.advance(24 * time.Hour)
	require.NoError(t, fx.eng.Redeem(strategist, id, sdkmath.ZeroInt(), sdkmath.ZeroInt()))

	v, err := fx.eng.GetVaultByID(id)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(750), v.Tranches[types.TrancheSenior].Received)
	// The conversion is sized against pool depth: 69 junior in buys the
	// 68 senior out; the junior side keeps the remainder.
	require.Equal(t, sdkmath.NewInt(613), v.Tranches[types.TrancheJunior].Received)

	// The vault account honors both sides in full.
	out, err := fx.eng.Withdraw("s1", id, types.TrancheSenior)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(750), out)
	out, err = fx.eng.Withdraw("j1", id, types.TrancheJunior)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(613), out)
	require.True(t, fx.bank.Balance(denomSenior, VaultAccount(id)).IsZero())
	require.True(t, fx.bank.Balance(denomJunior, VaultAccount(id)).IsZero())
}

func TestClaimAndWithdraw(t *testing.T) {
	fx := newFixture(t)
	id := fx.createVault(11000)
	fx.advance(2 * time.Hour)
	fx.deposit(id, types.TrancheSenior, "s1", 2537)
	fx.deposit(id, types.TrancheJunior, "j1", 682)

	// Claim needs an invested vault.
	_, _, err := fx.eng.Claim("s1", id, types.TrancheSenior)
	require.ErrorIs(t, err, types.ErrWrongState)

	fx.advance(23 * time.Hour)
	require.NoError(t, fx.eng.Invest(strategist, id, sdkmath.ZeroInt(), sdkmath.ZeroInt()))

	invested, excess, err := fx.eng.Claim("s1", id, types.TrancheSenior)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(682), invested)
	require.Equal(t, sdkmath.NewInt(1855), excess)

	v, err := fx.eng.GetVaultByID(id)
	require.NoError(t, err)
	receipt := v.Tranches[types.TrancheSenior].ReceiptToken
	require.Equal(t, sdkmath.NewInt(682), fx.bank.Balance(receipt, "s1"))
	require.Equal(t, sdkmath.NewInt(1855), fx.bank.Balance(denomSenior, "s1"))

	_, _, err = fx.eng.Claim("s1", id, types.TrancheSenior)
	require.ErrorIs(t, err, types.ErrAlreadyClaimed)
	_, _, err = fx.eng.Claim("nobody", id, types.TrancheSenior)
	require.ErrorIs(t, err, types.ErrNothingToClaim)

	// Withdraw requires the redeemed state.
	_, err = fx.eng.Withdraw("s1", id, types.TrancheSenior)
	require.ErrorIs(t, err, types.ErrWrongState)

	fx.farm.Accrue(testPool, fx.strat.Account(), sdkmath.NewInt(300))
	fx.advance(24 * time.Hour)
	require.NoError(t, fx.eng.Redeem(strategist, id, sdkmath.ZeroInt(), sdkmath.ZeroInt()))

	// Claimed path: the receipt balance converts to the tranche's final
	// proceeds, 682 * 750 / 682.
	out, err := fx.eng.Withdraw("s1", id, types.TrancheSenior)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(750), out)
	require.True(t, fx.bank.Balance(receipt, "s1").IsZero())
	require.Equal(t, sdkmath.NewInt(2605), fx.bank.Balance(denomSenior, "s1"))

	_, err = fx.eng.Withdraw("s1", id, types.TrancheSenior)
	require.ErrorIs(t, err, types.ErrAlreadyWithdrawn)

	// Unclaimed path: entitlement and excess settle in one step.
	out, err = fx.eng.Withdraw("j1", id, types.TrancheJunior)
	require.NoError(t, err)
	require.True(t, out.IsPositive())
	require.Equal(t, out, fx.bank.Balance(denomJunior, "j1"))
}

func TestWithdrawUnclaimedMatchesClaimed(t *testing.T) {
	fx := newFixture(t)
	id := fx.createVault(11000)
	fx.advance(2 * time.Hour)
	fx.deposit(id, types.TrancheSenior, "s1", 2537)
	fx.deposit(id, types.TrancheJunior, "j1", 682)
	fx.advance(23 * time.Hour)
	require.NoError(t, fx.eng.Invest(strategist, id, sdkmath.ZeroInt(), sdkmath.ZeroInt()))
	fx.farm.Accrue(testPool, fx.strat.Account(), sdkmath.NewInt(300))
	fx.advance(24 * time.Hour)
	require.NoError(t, fx.eng.Redeem(strategist, id, sdkmath.ZeroInt(), sdkmath.ZeroInt()))

	// Withdrawing without a prior claim pays entitlement plus excess,
	// identical in total to the claim-then-withdraw path.
	out, err := fx.eng.Withdraw("s1", id, types.TrancheSenior)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(2605), out)
	require.Equal(t, sdkmath.NewInt(2605), fx.bank.Balance(denomSenior, "s1"))
}

func TestDepositWithdrawLiquidityMidDuration(t *testing.T) {
	fx := newFixture(t)
	id := fx.createVault(11000)
	fx.advance(2 * time.Hour)
	fx.deposit(id, types.TrancheSenior, "s1", 682)
	fx.deposit(id, types.TrancheJunior, "j1", 682)

	// Only a live vault accepts formed positions.
	_, err := fx.eng.DepositLiquidity(genesis, id, sdkmath.NewInt(100))
	require.ErrorIs(t, err, types.ErrWrongState)

	fx.advance(23 * time.Hour)
	require.NoError(t, fx.eng.Invest(strategist, id, sdkmath.ZeroInt(), sdkmath.ZeroInt()))

	v, err := fx.eng.GetVaultByID(id)
	require.NoError(t, err)

	minted, err := fx.eng.DepositLiquidity(genesis, id, sdkmath.NewInt(100))
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(50), minted[types.TrancheSenior])
	require.Equal(t, sdkmath.NewInt(50), minted[types.TrancheJunior])
	for tr := 0; tr < types.NumTranches; tr++ {
		require.Equal(t, minted[tr], fx.bank.Balance(v.Tranches[tr].ReceiptToken, genesis))
	}
	v, err = fx.eng.GetVaultByID(id)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(732), v.Tranches[types.TrancheSenior].TotalInvested)

	unitsOut, burned, err := fx.eng.WithdrawLiquidity(genesis, id, sdkmath.NewInt(100))
	require.NoError(t, err)
	require.True(t, unitsOut.LTE(sdkmath.NewInt(100)), "round trip must not create liquidity")
	require.Equal(t, sdkmath.NewInt(50), burned[types.TrancheSenior])
	for tr := 0; tr < types.NumTranches; tr++ {
		require.True(t, fx.bank.Balance(v.Tranches[tr].ReceiptToken, genesis).IsZero())
	}
}

func TestPauseBlocksMutations(t *testing.T) {
	fx := newFixture(t)
	id := fx.createVault(11000)
	fx.advance(2 * time.Hour)

	require.ErrorIs(t, fx.eng.Pause("stranger"), types.ErrUnauthorized)
	require.NoError(t, fx.eng.Pause(deployer))
	require.True(t, fx.eng.Paused())

	require.NoError(t, fx.bank.Mint(denomSenior, "alice", sdkmath.NewInt(10)))
	require.ErrorIs(t, fx.eng.Deposit("alice", id, types.TrancheSenior, sdkmath.NewInt(10)), types.ErrPaused)
	require.ErrorIs(t, fx.eng.Invest(strategist, id, sdkmath.ZeroInt(), sdkmath.ZeroInt()), types.ErrPaused)
	_, _, err := fx.eng.Claim("alice", id, types.TrancheSenior)
	require.ErrorIs(t, err, types.ErrPaused)

	// Rescue is only reachable while paused.
	require.NoError(t, fx.bank.Mint(denomSenior, fx.strat.Account(), sdkmath.NewInt(55)))
	moved, err := fx.eng.Rescue(deployer, "amm-1", denomSenior, "safe")
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(55), moved)

	require.NoError(t, fx.eng.Unpause(deployer))
	require.False(t, fx.eng.Paused())
	require.NoError(t, fx.eng.Deposit("alice", id, types.TrancheSenior, sdkmath.NewInt(10)))

	_, err = fx.eng.Rescue(deployer, "amm-1", denomSenior, "safe")
	require.ErrorIs(t, err, types.ErrWrongState)
}

func TestViews(t *testing.T) {
	fx := newFixture(t)
	id := fx.createVault(11000)

	_, err := fx.eng.GetVaultByID("missing")
	require.ErrorIs(t, err, types.ErrVaultNotFound)

	v, err := fx.eng.GetVaultByID(id)
	require.NoError(t, err)
	byReceipt, err := fx.eng.GetVaultByReceiptToken(v.Tranches[types.TrancheJunior].ReceiptToken)
	require.NoError(t, err)
	require.Equal(t, id, byReceipt.ID)
	_, err = fx.eng.GetVaultByReceiptToken("tranche/bogus/senior")
	require.ErrorIs(t, err, types.ErrVaultNotFound)

	// A second vault with a different hurdle is a distinct identity.
	id2, err := fx.eng.CreateVault(creator, fx.params(12000))
	require.NoError(t, err)
	require.NotEqual(t, id, id2)

	require.Len(t, fx.eng.GetVaults(0, 10), 2)
	require.Len(t, fx.eng.GetVaults(1, 10), 1)
	require.Len(t, fx.eng.GetVaults(5, 10), 0)
	require.Len(t, fx.eng.GetVaults(0, 1), 1)
	require.Equal(t, id, fx.eng.GetVaults(0, 1)[0].ID)
	require.Equal(t, 2, fx.eng.VaultCount())

	// State transitions are visible through views.
	fx.advance(25 * time.Hour)
	v, err = fx.eng.GetVaultByID(id)
	require.NoError(t, err)
	require.Equal(t, types.StateInvestable, v.State)
}

// flakyJournal fails on demand so journal-write ordering is observable.
type flakyJournal struct{ fail bool }

func (j *flakyJournal) Record(state.Operation) error {
	if j.fail {
		return errors.New("journal offline")
	}
	return nil
}

func TestJournalFailureMovesNoFunds(t *testing.T) {
	fx := newFixture(t)
	journal := &flakyJournal{}
	eng, err := New(Config{
		Authorizer: fx.reg,
		Bank:       fx.bank,
		Journal:    journal,
		Strategies: []strategy.Strategy{fx.strat},
		Clock:      func() time.Time { return fx.now },
	})
	require.NoError(t, err)
	id, err := eng.CreateVault(creator, fx.params(11000))
	require.NoError(t, err)
	fx.advance(2 * time.Hour)
	require.NoError(t, fx.bank.Mint(denomSenior, "alice", sdkmath.NewInt(100)))

	// A failed journal write aborts the deposit with the depositor's
	// funds untouched and no position recorded.
	journal.fail = true
	err = eng.Deposit("alice", id, types.TrancheSenior, sdkmath.NewInt(100))
	require.Error(t, err)
	require.Equal(t, sdkmath.NewInt(100), fx.bank.Balance(denomSenior, "alice"))
	require.True(t, fx.bank.Balance(denomSenior, VaultAccount(id)).IsZero())
	pos, err := eng.GetInvestorPosition(id, types.TrancheSenior, "alice")
	require.NoError(t, err)
	require.True(t, pos.Deposited.IsZero())

	journal.fail = false
	require.NoError(t, eng.Deposit("alice", id, types.TrancheSenior, sdkmath.NewInt(100)))
	require.NoError(t, fx.bank.Mint(denomJunior, "bob", sdkmath.NewInt(100)))
	require.NoError(t, eng.Deposit("bob", id, types.TrancheJunior, sdkmath.NewInt(100)))

	// Same boundary on invest: no capital deploys without the journal row.
	fx.advance(23 * time.Hour)
	journal.fail = true
	err = eng.Invest(strategist, id, sdkmath.ZeroInt(), sdkmath.ZeroInt())
	require.Error(t, err)
	v, err := eng.GetVaultByID(id)
	require.NoError(t, err)
	require.Equal(t, types.StateInvestable, v.State)
	require.Equal(t, sdkmath.NewInt(100), fx.bank.Balance(denomSenior, VaultAccount(id)))
	require.Equal(t, sdkmath.NewInt(100), fx.bank.Balance(denomJunior, VaultAccount(id)))

	journal.fail = false
	require.NoError(t, eng.Invest(strategist, id, sdkmath.ZeroInt(), sdkmath.ZeroInt()))
}
