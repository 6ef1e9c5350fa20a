package strategy

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/elys-network/tranche/internal/amm"
	"github.com/elys-network/tranche/internal/bank"
	"github.com/elys-network/tranche/internal/ledger"
	"github.com/elys-network/tranche/internal/logger"
	"github.com/elys-network/tranche/internal/types"
)

// AMMStrategy deploys pooled capital into one constant-product pair and
// stakes the LP units into a farm. Vault co-ownership is tracked through
// the share ledger.
type AMMStrategy struct {
	name    string
	pool    types.PoolID
	account types.Address
	router  amm.Router
	farm    amm.Farm
	shares  *ledger.ShareLedger
	bank    *bank.Bank
	// rewardSwapPool trades the farm's reward denom against the pool's A
	// asset when the reward is a third token. Zero means the reward denom
	// is already one of the pair.
	rewardSwapPool types.PoolID
	log            zerolog.Logger
}

var _ Strategy = (*AMMStrategy)(nil)

// Config holds the dependencies for an AMMStrategy.
type Config struct {
	Name           string
	Pool           types.PoolID
	Router         amm.Router
	Farm           amm.Farm
	Shares         *ledger.ShareLedger
	Bank           *bank.Bank
	RewardSwapPool types.PoolID
}

// New creates an AMM strategy with dependency injection.
func New(cfg Config) (*AMMStrategy, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("strategy configuration validation failed: %w", err)
	}
	return &AMMStrategy{
		name:           cfg.Name,
		pool:           cfg.Pool,
		account:        types.Address("strategy/" + cfg.Name),
		router:         cfg.Router,
		farm:           cfg.Farm,
		shares:         cfg.Shares,
		bank:           cfg.Bank,
		rewardSwapPool: cfg.RewardSwapPool,
		log:            logger.GetForComponent("strategy").With().Str("strategy", cfg.Name).Logger(),
	}, nil
}

func validateConfig(cfg Config) error {
	if cfg.Name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if cfg.Router == nil {
		return fmt.Errorf("router cannot be nil")
	}
	if cfg.Farm == nil {
		return fmt.Errorf("farm cannot be nil")
	}
	if cfg.Shares == nil {
		return fmt.Errorf("share ledger cannot be nil")
	}
	if cfg.Bank == nil {
		return fmt.Errorf("bank cannot be nil")
	}
	return nil
}

func (s *AMMStrategy) Name() string       { return s.name }
func (s *AMMStrategy) Pool() types.PoolID { return s.pool }

// Account is the module address holding funds while they transit the
// strategy. The rescue path drains it.
func (s *AMMStrategy) Account() types.Address { return s.account }

func (s *AMMStrategy) Assets() (string, string, error) {
	return s.router.PoolAssets(s.pool)
}

func (s *AMMStrategy) SpotPrice(denomIn, denomOut string) (sdkmath.LegacyDec, error) {
	return s.router.SpotPrice(s.pool, denomIn, denomOut)
}

func (s *AMMStrategy) QuoteExactOut(denomIn, denomOut string, amountOut sdkmath.Int) (sdkmath.Int, error) {
	return s.router.QuoteExactOut(s.pool, denomIn, denomOut, amountOut)
}

func (s *AMMStrategy) Invest(vault types.VaultID, from types.Address, amountA, amountB sdkmath.Int) (sdkmath.Int, error) {
	denomA, denomB, err := s.Assets()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if amountA.IsPositive() {
		if err := s.bank.Transfer(denomA, from, s.account, amountA); err != nil {
			return sdkmath.ZeroInt(), fmt.Errorf("funding strategy with %s: %w", denomA, err)
		}
	}
	if amountB.IsPositive() {
		if err := s.bank.Transfer(denomB, from, s.account, amountB); err != nil {
			return sdkmath.ZeroInt(), fmt.Errorf("funding strategy with %s: %w", denomB, err)
		}
	}
	units, err := s.router.AddLiquidity(s.pool, s.account, amountA, amountB)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("adding liquidity: %w", err)
	}
	if err := s.farm.Stake(s.pool, s.account, units); err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("staking lp units: %w", err)
	}
	shares, err := s.shares.Deposit(s.pool, vault, units)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	s.log.Info().
		Str("vault", string(vault)).
		Str("units", units.String()).
		Str("shares", shares.String()).
		Msg("Capital deployed into pooled position")
	return shares, nil
}

// DepositLiquidity accepts raw LP units from an investor who already holds
// a formed position, stakes them and credits the vault with shares.
func (s *AMMStrategy) DepositLiquidity(vault types.VaultID, from types.Address, units sdkmath.Int) (sdkmath.Int, error) {
	if !units.IsPositive() {
		return sdkmath.ZeroInt(), types.ErrZeroAmount
	}
	if err := s.router.TransferLP(s.pool, from, s.account, units); err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("taking custody of lp units: %w", err)
	}
	if err := s.farm.Stake(s.pool, s.account, units); err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("staking lp units: %w", err)
	}
	shares, err := s.shares.Deposit(s.pool, vault, units)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	s.log.Info().
		Str("vault", string(vault)).
		Str("units", units.String()).
		Str("shares", shares.String()).
		Msg("Formed position deposited mid-duration")
	return shares, nil
}

// WithdrawLiquidity burns shares and hands the proportional LP units back
// unstaked but intact.
func (s *AMMStrategy) WithdrawLiquidity(vault types.VaultID, to types.Address, shares sdkmath.Int) (sdkmath.Int, error) {
	units, err := s.shares.Withdraw(s.pool, vault, shares)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if err := s.farm.Unstake(s.pool, s.account, units); err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("unstaking lp units: %w", err)
	}
	if err := s.router.TransferLP(s.pool, s.account, to, units); err != nil {
		return sdkmath.ZeroInt(), err
	}
	s.log.Info().
		Str("vault", string(vault)).
		Str("shares", shares.String()).
		Str("units", units.String()).
		Msg("Position withdrawn mid-duration")
	return units, nil
}

func (s *AMMStrategy) Redeem(vault types.VaultID, to types.Address, shares sdkmath.Int) (sdkmath.Int, sdkmath.Int, error) {
	zero := sdkmath.ZeroInt()
	denomA, denomB, err := s.Assets()
	if err != nil {
		return zero, zero, err
	}
	units, err := s.shares.Withdraw(s.pool, vault, shares)
	if err != nil {
		return zero, zero, err
	}
	if err := s.farm.Unstake(s.pool, s.account, units); err != nil {
		return zero, zero, fmt.Errorf("unstaking lp units: %w", err)
	}
	outA, outB, err := s.router.RemoveLiquidity(s.pool, s.account, units)
	if err != nil {
		return zero, zero, fmt.Errorf("removing liquidity: %w", err)
	}
	if outA.IsPositive() {
		if err := s.bank.Transfer(denomA, s.account, to, outA); err != nil {
			return zero, zero, err
		}
	}
	if outB.IsPositive() {
		if err := s.bank.Transfer(denomB, s.account, to, outB); err != nil {
			return zero, zero, err
		}
	}
	s.log.Info().
		Str("vault", string(vault)).
		Str("shares", shares.String()).
		Str("amountA", outA.String()).
		Str("amountB", outB.String()).
		Msg("Pooled position unwound")
	return outA, outB, nil
}

// Harvest claims farm rewards, converts them to the pool's pair, deposits
// them back as liquidity and compounds the units into the share ledger.
// Per-share value rises uniformly; no per-vault crediting happens.
func (s *AMMStrategy) Harvest() error {
	denomA, denomB, err := s.Assets()
	if err != nil {
		return err
	}
	rewardDenom, claimed, err := s.farm.ClaimRewards(s.pool, s.account)
	if err != nil {
		return fmt.Errorf("claiming farm rewards: %w", err)
	}
	if !claimed.IsPositive() {
		return nil
	}

	haveA := claimed
	if rewardDenom != denomA {
		if rewardDenom == denomB {
			// Reward is the B asset; route it through the main pool.
			haveA, err = s.router.SwapExactIn(s.pool, s.account, denomB, claimed, denomA, sdkmath.ZeroInt())
		} else {
			haveA, err = s.router.SwapExactIn(s.rewardSwapPool, s.account, rewardDenom, claimed, denomA, sdkmath.ZeroInt())
		}
		if err != nil {
			return fmt.Errorf("converting reward denom: %w", err)
		}
	}
	if !haveA.IsPositive() {
		return nil
	}

	// Split the A proceeds so both sides of the join are funded.
	half := haveA.Quo(sdkmath.NewInt(2))
	if !half.IsPositive() {
		return nil
	}
	gotB, err := s.router.SwapExactIn(s.pool, s.account, denomA, half, denomB, sdkmath.ZeroInt())
	if err != nil {
		return fmt.Errorf("balancing harvest proceeds: %w", err)
	}
	units, err := s.router.AddLiquidity(s.pool, s.account, haveA.Sub(half), gotB)
	if err != nil {
		return fmt.Errorf("re-depositing harvest: %w", err)
	}
	if err := s.farm.Stake(s.pool, s.account, units); err != nil {
		return fmt.Errorf("re-staking harvest: %w", err)
	}
	if err := s.shares.Compound(s.pool, units); err != nil {
		return err
	}
	s.log.Info().
		Str("claimed", claimed.String()).
		Str("rewardDenom", rewardDenom).
		Str("compoundedUnits", units.String()).
		Msg("Harvest compounded into pooled position")
	return nil
}

func (s *AMMStrategy) Swap(trader types.Address, denomIn string, amountIn sdkmath.Int, denomOut string, minOut sdkmath.Int) (sdkmath.Int, error) {
	return s.router.SwapExactIn(s.pool, trader, denomIn, amountIn, denomOut, minOut)
}

func (s *AMMStrategy) SharesOf(vault types.VaultID) sdkmath.Int {
	return s.shares.SharesOf(s.pool, vault)
}

func (s *AMMStrategy) UnitsOf(vault types.VaultID) (sdkmath.Int, error) {
	held := s.shares.SharesOf(s.pool, vault)
	if held.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	return s.shares.UnitsFor(s.pool, held)
}

func (s *AMMStrategy) Rescue(denom string, to types.Address) (sdkmath.Int, error) {
	if to == "" {
		return sdkmath.ZeroInt(), types.ErrZeroAddress
	}
	stranded := s.bank.Balance(denom, s.account)
	if !stranded.IsPositive() {
		return sdkmath.ZeroInt(), nil
	}
	if err := s.bank.Transfer(denom, s.account, to, stranded); err != nil {
		return sdkmath.ZeroInt(), err
	}
	s.log.Warn().
		Str("denom", denom).
		Str("amount", stranded.String()).
		Str("to", string(to)).
		Msg("Stranded funds rescued from strategy account")
	return stranded, nil
}
