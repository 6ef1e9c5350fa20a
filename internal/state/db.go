// ./internal/state/db.go
package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	var err error
	DB, err = sql.Open("postgres", psqlInfo)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		-- Write-ahead operation journal. One row per committed mutating
		-- operation; the in-memory state applies only after the row lands.
		CREATE TABLE IF NOT EXISTS operation_journal (
			journal_id BIGSERIAL PRIMARY KEY,
			op_id UUID NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			op_kind VARCHAR(50) NOT NULL,
			subject_id VARCHAR(128) NOT NULL,
			caller VARCHAR(128) NOT NULL,
			tranche VARCHAR(10),
			amount NUMERIC(78, 0),
			payload JSONB
		);
		CREATE INDEX IF NOT EXISTS idx_operation_journal_subject ON operation_journal(subject_id, journal_id);
		CREATE INDEX IF NOT EXISTS idx_operation_journal_kind ON operation_journal(op_kind);

		-- Periodic full vault snapshots for the dashboard and recovery.
		CREATE TABLE IF NOT EXISTS vault_snapshots (
			snapshot_id BIGSERIAL PRIMARY KEY,
			vault_id VARCHAR(128) NOT NULL,
			snapshot_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			state VARCHAR(20) NOT NULL,
			vault JSONB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_vault_snapshots_vault ON vault_snapshots(vault_id, snapshot_timestamp DESC);

		CREATE TABLE IF NOT EXISTS rollover_snapshots (
			snapshot_id BIGSERIAL PRIMARY KEY,
			rollover_id VARCHAR(128) NOT NULL,
			snapshot_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			round BIGINT NOT NULL,
			rollover JSONB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_rollover_snapshots_rollover ON rollover_snapshots(rollover_id, snapshot_timestamp DESC);
	`
	_, err := DB.Exec(schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Database schema ensured.")
	return nil
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database connection is nil")
	}

	// Use a short timeout context for health checks
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := DB.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}
