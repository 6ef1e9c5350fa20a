package config

import (
	"github.com/rs/zerolog/log"
)

// Strategy bootstrap configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// StrategyName is the registered name of the bootstrap strategy.
	StrategyName string
	// PoolID is the AMM pool the bootstrap strategy trades.
	PoolID uint64
	// PoolAssetA and PoolAssetB are the pool's pair denoms.
	PoolAssetA string
	PoolAssetB string
	// PoolSwapFeeBps is the pool's swap fee in basis points.
	PoolSwapFeeBps uint64
	// RewardDenom is the farm's reward token denom.
	RewardDenom string
)

// loadStrategyConfig loads strategy configuration from environment variables.
// This function is called by LoadConfig() in General.go.
func loadStrategyConfig() error {
	log.Info().Msg("Loading strategy configuration from environment variables...")

	var err error

	StrategyName, err = getEnv("STRATEGY_NAME")
	if err != nil {
		return err
	}

	PoolID, err = getEnvAsUint64("POOL_ID")
	if err != nil {
		return err
	}

	PoolAssetA, err = getEnv("POOL_ASSET_A")
	if err != nil {
		return err
	}

	PoolAssetB, err = getEnv("POOL_ASSET_B")
	if err != nil {
		return err
	}

	PoolSwapFeeBps, err = getEnvAsUint64("POOL_SWAP_FEE_BPS")
	if err != nil {
		return err
	}

	RewardDenom, err = getEnv("FARM_REWARD_DENOM")
	if err != nil {
		return err
	}

	log.Debug().
		Str("StrategyName", StrategyName).
		Uint64("PoolID", PoolID).
		Str("PoolAssetA", PoolAssetA).
		Str("PoolAssetB", PoolAssetB).
		Msg("Strategy configuration loaded successfully.")

	return nil
}
