// ./internal/state/journal.go
package state

import (
	"encoding/json"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"

	"github.com/elys-network/tranche/internal/types"
)

// Operation is one committed mutating operation. The journal row is written
// before in-memory state is mutated, giving the engine its all-or-nothing
// boundary: a failed journal write aborts the operation untouched.
type Operation struct {
	OpID    string
	Kind    string
	Subject string // vault or rollover identity
	Caller  types.Address
	Tranche string
	Amount  sdkmath.Int
	Payload any
}

// Journal records committed operations. Implementations must treat Record
// as the commit point.
type Journal interface {
	Record(op Operation) error
}

// NopJournal discards operations. Used by tests and pure in-memory runs.
type NopJournal struct{}

func (NopJournal) Record(Operation) error { return nil }

// PGJournal persists operations to the operation_journal table.
type PGJournal struct{}

var _ Journal = (*PGJournal)(nil)

func (PGJournal) Record(op Operation) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	var payloadJSON []byte
	if op.Payload != nil {
		var err error
		payloadJSON, err = json.Marshal(op.Payload)
		if err != nil {
			return fmt.Errorf("failed to marshal journal payload: %w", err)
		}
	}
	var amount any
	if !op.Amount.IsNil() {
		amount = op.Amount.String()
	}
	query := `
		INSERT INTO operation_journal (op_id, op_kind, subject_id, caller, tranche, amount, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7);
	`
	if _, err := DB.Exec(query, op.OpID, op.Kind, op.Subject, string(op.Caller), op.Tranche, amount, payloadJSON); err != nil {
		return fmt.Errorf("failed to record operation: %w", err)
	}
	log.Debug().
		Str("op_id", op.OpID).
		Str("kind", op.Kind).
		Str("subject", op.Subject).
		Msg("Operation journaled")
	return nil
}
