// ./internal/state/snapshot_store.go
package state

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/elys-network/tranche/internal/types"
)

// SaveVaultSnapshot persists a full vault record for dashboards and
// recovery tooling.
func SaveVaultSnapshot(v types.Vault) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}
	vaultJSON, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal vault: %w", err)
	}
	query := `
		INSERT INTO vault_snapshots (vault_id, state, vault)
		VALUES ($1, $2, $3)
		RETURNING snapshot_id;
	`
	var snapshotID int64
	err = DB.QueryRow(query, string(v.ID), v.State.String(), vaultJSON).Scan(&snapshotID)
	if err != nil {
		return 0, fmt.Errorf("failed to save vault snapshot: %w", err)
	}
	log.Info().
		Int64("snapshot_id", snapshotID).
		Str("vault_id", string(v.ID)).
		Str("state", v.State.String()).
		Msg("Vault snapshot saved to database")
	return snapshotID, nil
}

// SaveRolloverSnapshot persists a full rollover record.
func SaveRolloverSnapshot(r types.Rollover) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}
	rolloverJSON, err := json.Marshal(r)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal rollover: %w", err)
	}
	query := `
		INSERT INTO rollover_snapshots (rollover_id, round, rollover)
		VALUES ($1, $2, $3)
		RETURNING snapshot_id;
	`
	var snapshotID int64
	err = DB.QueryRow(query, string(r.ID), r.Round, rolloverJSON).Scan(&snapshotID)
	if err != nil {
		return 0, fmt.Errorf("failed to save rollover snapshot: %w", err)
	}
	log.Info().
		Int64("snapshot_id", snapshotID).
		Str("rollover_id", string(r.ID)).
		Uint64("round", r.Round).
		Msg("Rollover snapshot saved to database")
	return snapshotID, nil
}
