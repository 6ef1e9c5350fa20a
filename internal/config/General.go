package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
)

// Application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// NativeDenom is the wrapped-native token denom accepted by the
	// depositNative/withdrawNative variants.
	NativeDenom string

	// WebPort is the listen port of the read-view HTTP API.
	WebPort string

	// LogLevel controls zerolog verbosity ("debug", "info", ...).
	LogLevel string
	// LogDir is the directory for rotating log files; empty disables
	// file logging.
	LogDir string

	// JournalEnabled toggles the PostgreSQL write-ahead journal. When
	// false every operation commits in memory only.
	JournalEnabled bool

	// DeployerAddress is granted the deployer role (pause/rescue) at
	// startup.
	DeployerAddress string
)

// LoadConfig loads configuration from environment variables and sets the
// global config vars. All environment variables are required unless noted.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	NativeDenom, err = getEnv("NATIVE_DENOM")
	if err != nil {
		return err
	}

	WebPort, err = getEnv("WEB_PORT")
	if err != nil {
		return err
	}

	LogLevel = getEnvOr("LOG_LEVEL", "info")
	LogDir = getEnvOr("LOG_DIR", "")

	JournalEnabled, err = getEnvAsBool("JOURNAL_ENABLED")
	if err != nil {
		return err
	}

	DeployerAddress, err = getEnv("DEPLOYER_ADDRESS")
	if err != nil {
		return err
	}

	if err := loadDatabaseConfig(); err != nil {
		return err
	}

	if err := loadStrategyConfig(); err != nil {
		return err
	}

	log.Debug().
		Str("NativeDenom", NativeDenom).
		Str("WebPort", WebPort).
		Bool("JournalEnabled", JournalEnabled).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvOr retrieves a string environment variable with a fallback.
func getEnvOr(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvAsInt retrieves an environment variable as an int. Returns error if not set or invalid.
func getEnvAsInt(key string) (int, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid int, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsUint64 retrieves an environment variable as a uint64. Returns error if not set or invalid.
func getEnvAsUint64(key string) (uint64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsBool retrieves an environment variable as a bool. Returns error if not set or invalid.
func getEnvAsBool(key string) (bool, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return false, err
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return false, errors.New("environment variable " + key + " must be a valid bool, got: " + valueStr)
	}
	return value, nil
}
