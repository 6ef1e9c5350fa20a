package main

import (
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/elys-network/tranche/internal/amm"
	"github.com/elys-network/tranche/internal/auth"
	"github.com/elys-network/tranche/internal/bank"
	"github.com/elys-network/tranche/internal/config"
	"github.com/elys-network/tranche/internal/engine"
	"github.com/elys-network/tranche/internal/ledger"
	"github.com/elys-network/tranche/internal/logger"
	"github.com/elys-network/tranche/internal/rollover"
	"github.com/elys-network/tranche/internal/state"
	"github.com/elys-network/tranche/internal/strategy"
	"github.com/elys-network/tranche/internal/types"
	"github.com/elys-network/tranche/internal/web"
)

// main is the entry point for the tranched vault engine.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(config.LogLevel, config.LogDir)
	log.Info().Msg("Tranched Vault Engine Starting...")

	// Initialize Database Connection (journal and snapshots)
	var journal state.Journal = state.NopJournal{}
	if config.JournalEnabled {
		dbCfg := state.DBConfig{
			Host: config.DBHost, Port: config.DBPort,
			User: config.DBUser, Password: config.DBPassword,
			DBName: config.DBName, SSLMode: config.DBSSLMode,
		}
		if err := state.InitDB(dbCfg); err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize database")
		}
		defer state.CloseDB()
		if err := state.EnsureSchema(); err != nil {
			log.Fatal().Err(err).Msg("Failed to ensure database schema")
		}
		journal = state.PGJournal{}
	} else {
		log.Warn().Msg("Operation journal disabled; state is in-memory only.")
	}

	// --- 2. Ledger Platform Stand-ins ---
	deployer := types.Address(config.DeployerAddress)

	tokenBank := bank.New(config.NativeDenom)
	dex := amm.NewDex(tokenBank)
	farm := amm.NewSimFarm(dex, tokenBank, config.RewardDenom)

	seedA := envInt("POOL_SEED_A", sdkmath.NewInt(1_000_000))
	seedB := envInt("POOL_SEED_B", sdkmath.NewInt(1_000_000))
	if err := tokenBank.Mint(config.PoolAssetA, deployer, seedA); err != nil {
		log.Fatal().Err(err).Msg("Failed to fund pool seed")
	}
	if err := tokenBank.Mint(config.PoolAssetB, deployer, seedB); err != nil {
		log.Fatal().Err(err).Msg("Failed to fund pool seed")
	}
	poolID := types.PoolID(config.PoolID)
	if _, err := dex.CreatePool(poolID, config.PoolAssetA, config.PoolAssetB, config.PoolSwapFeeBps, deployer, seedA, seedB); err != nil {
		log.Fatal().Err(err).Msg("Failed to create bootstrap pool")
	}
	log.Info().
		Uint64("pool", config.PoolID).
		Str("assetA", config.PoolAssetA).
		Str("assetB", config.PoolAssetB).
		Msg("Bootstrap pool created")

	// --- 3. Role Registry ---
	registry := auth.NewRegistry()
	registry.Grant(deployer, auth.RoleDeployer)
	registry.Grant(deployer, auth.RoleCreator)
	registry.Grant(deployer, auth.RoleStrategist)

	// --- 4. Strategy and Engines with Dependency Injection ---
	shares := ledger.New()
	strat, err := strategy.New(strategy.Config{
		Name:   config.StrategyName,
		Pool:   poolID,
		Router: dex,
		Farm:   farm,
		Shares: shares,
		Bank:   tokenBank,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create strategy")
	}

	vaultEngine, err := engine.New(engine.Config{
		Authorizer: registry,
		Bank:       tokenBank,
		Journal:    journal,
		Strategies: []strategy.Strategy{strat},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create vault engine")
	}

	rolloverEngine, err := rollover.New(rollover.Config{
		Authorizer: registry,
		Bank:       tokenBank,
		Router:     dex,
		Vaults:     vaultEngine,
		Journal:    journal,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create rollover engine")
	}

	log.Info().Msg("Engine instances created successfully")

	// Periodic snapshots back the read views for dashboards and recovery.
	if config.JournalEnabled {
		go runSnapshotLoop(vaultEngine, rolloverEngine)
	}

	// --- 5. Start Web Server ---
	webServer := web.NewWebServer(config.WebPort, vaultEngine, rolloverEngine)
	go func() {
		log.Info().Str("port", config.WebPort).Str("url", "http://localhost:"+config.WebPort).Msg("Starting read-view API")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// --- 6. Wait for Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("Shutting down")
}

// runSnapshotLoop persists every vault and rollover record on a fixed
// interval while the database is enabled.
func runSnapshotLoop(vaults *engine.Engine, rollovers *rollover.Engine) {
	interval := 5 * time.Minute
	if v, ok := os.LookupEnv("SNAPSHOT_INTERVAL_SECONDS"); ok {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			interval = time.Duration(secs) * time.Second
		} else {
			log.Warn().Str("value", v).Msg("Invalid SNAPSHOT_INTERVAL_SECONDS, using default")
		}
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		for _, v := range vaults.GetVaults(0, vaults.VaultCount()) {
			if _, err := state.SaveVaultSnapshot(v); err != nil {
				log.Error().Err(err).Str("vault", string(v.ID)).Msg("Failed to snapshot vault")
			}
		}
		for _, r := range rollovers.GetRollovers() {
			if _, err := state.SaveRolloverSnapshot(r); err != nil {
				log.Error().Err(err).Str("rollover", string(r.ID)).Msg("Failed to snapshot rollover")
			}
		}
	}
}

// envInt reads an optional integer environment variable.
func envInt(key string, fallback sdkmath.Int) sdkmath.Int {
	if v, ok := os.LookupEnv(key); ok {
		if parsed, ok := sdkmath.NewIntFromString(v); ok {
			return parsed
		}
		log.Warn().Str("key", key).Str("value", v).Msg("Invalid integer env var, using default")
	}
	return fallback
}
