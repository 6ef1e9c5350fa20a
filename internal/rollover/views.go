package rollover

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/tranche/internal/types"
)

// GetRollover returns a copy of the rollover record.
func (e *Engine) GetRollover(id types.RolloverID) (types.Rollover, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, err := e.get(id)
	if err != nil {
		return types.Rollover{}, err
	}
	return copyRollover(rec.roll), nil
}

// GetRollovers returns a copy of every rollover record.
func (e *Engine) GetRollovers() []types.Rollover {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]types.Rollover, 0, len(e.rollovers))
	for _, rec := range e.rollovers {
		out = append(out, copyRollover(rec.roll))
	}
	return out
}

// GetRound returns the checkpoint of a completed round.
func (e *Engine) GetRound(id types.RolloverID, round uint64) (types.RoundCheckpoint, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, err := e.get(id)
	if err != nil {
		return types.RoundCheckpoint{}, err
	}
	cp, ok := rec.roll.Checkpoints[round]
	if !ok {
		return types.RoundCheckpoint{}, fmt.Errorf("%w: round %d of rollover %s", types.ErrRoundNotFound, round, id)
	}
	return cp, nil
}

// GetUpdatedInvestor folds an investor's stored position forward through
// every completed round's checkpoint and returns the result without
// mutating the stored record.
func (e *Engine) GetUpdatedInvestor(id types.RolloverID, t types.Tranche, addr types.Address) (types.RolloverPosition, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !t.Valid() {
		return types.RolloverPosition{}, types.ErrInvalidTranche
	}
	rec, err := e.get(id)
	if err != nil {
		return types.RolloverPosition{}, err
	}
	stored := rec.positions[t][addr]
	if stored == nil {
		return types.RolloverPosition{
			Depositor: addr,
			Round:     rec.roll.Round,
			Active:    sdkmath.ZeroInt(),
			New:       sdkmath.ZeroInt(),
		}, nil
	}
	pos := *stored
	fold(&pos, t, rec.roll.Checkpoints, rec.roll.Round)
	return pos, nil
}

func copyRollover(r types.Rollover) types.Rollover {
	out := r
	out.Vaults = make(map[uint64]types.VaultID, len(r.Vaults))
	for k, v := range r.Vaults {
		out.Vaults[k] = v
	}
	out.Checkpoints = make(map[uint64]types.RoundCheckpoint, len(r.Checkpoints))
	for k, v := range r.Checkpoints {
		out.Checkpoints[k] = v
	}
	return out
}
