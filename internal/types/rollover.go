package types

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"time"

	"cosmossdk.io/math"
)

// RolloverID is the deterministic content hash of a rollover's parameters.
type RolloverID string

// RolloverParams are the immutable creation parameters of a rollover.
type RolloverParams struct {
	SeniorAsset  string    `json:"senior_asset"`
	JuniorAsset  string    `json:"junior_asset"`
	Strategy     string    `json:"strategy"`
	FirstStartAt time.Time `json:"first_start_at"`
	Strategist   Address   `json:"strategist"`
}

// Asset returns the underlying asset denom of the given tranche.
func (p RolloverParams) Asset(t Tranche) string {
	if t == TrancheSenior {
		return p.SeniorAsset
	}
	return p.JuniorAsset
}

// ID derives the rollover's deterministic identity from its parameters,
// using the same canonical encoding as vault identities.
func (p RolloverParams) ID() RolloverID {
	h := sha256.New()
	writeString := func(s string) {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], uint64(len(s)))
		h.Write(n[:])
		h.Write([]byte(s))
	}
	writeString(p.SeniorAsset)
	writeString(p.JuniorAsset)
	writeString(p.Strategy)
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(p.FirstStartAt.Unix()))
	h.Write(n[:])
	return RolloverID(hex.EncodeToString(h.Sum(nil)))
}

// Rollover chains an indefinite sequence of vaults into one continuously
// renewing facility. Round indexes start at 1.
type Rollover struct {
	ID             RolloverID                 `json:"id"`
	Params         RolloverParams             `json:"params"`
	Round          uint64                     `json:"round"`
	Vaults         map[uint64]VaultID         `json:"vaults"`
	NextVault      VaultID                    `json:"next_vault,omitempty"`
	ReceiptTokens  [NumTranches]string        `json:"receipt_tokens"`
	Checkpoints    map[uint64]RoundCheckpoint `json:"checkpoints"`
}

// TrancheCheckpoint freezes one tranche's totals for a completed round so
// later rounds can be reconciled lazily without re-scanning investors.
type TrancheCheckpoint struct {
	Deposited    math.Int `json:"deposited"`     // tranche total put into the round's vault
	Invested     math.Int `json:"invested"`      // amount actually matched into the pool
	Redeemed     math.Int `json:"redeemed"`      // invested-backed proceeds received at redemption
	Shares       math.Int `json:"shares"`        // pool shares held during the round
	NewDeposited math.Int `json:"new_deposited"` // deposits collected during the round for the next one
	NewInvested  math.Int `json:"new_invested"`  // portion of those pushed into the next vault
}

// RollRatio is the factor applied to a passive investor's stake when the
// round completes: redemption proceeds plus refunded uninvested excess,
// per unit deposited.
func (tc TrancheCheckpoint) RollRatio() math.LegacyDec {
	if tc.Deposited.IsZero() {
		return math.LegacyZeroDec()
	}
	carried := tc.Redeemed.Add(tc.Deposited.Sub(tc.Invested))
	return math.LegacyNewDecFromInt(carried).QuoInt(tc.Deposited)
}

// RoundCheckpoint is the completed-round checkpoint for both tranches.
type RoundCheckpoint struct {
	Tranches [NumTranches]TrancheCheckpoint `json:"tranches"`
}

// RolloverStage states which denominator an active stake carries within
// its round. A claim converts the stake from enrollment units to invested
// units; the round-boundary fold converts it back.
type RolloverStage uint8

const (
	// StageDeposited counts the stake in the round vault's enrollment units.
	StageDeposited RolloverStage = iota
	// StageInvested counts the stake in invested units after a claim has
	// released the uninvested excess.
	StageInvested
)

func (s RolloverStage) String() string {
	if s == StageInvested {
		return "invested"
	}
	return "deposited"
}

// RolloverPosition is the stored per-investor, per-tranche rollover state.
// Active is the stake participating in the vault of round Round; New is
// the stake collected during that round, entering at round Round+1.
// Folding forward happens lazily on read or claim.
type RolloverPosition struct {
	Depositor Address       `json:"depositor"`
	Round     uint64        `json:"round"`
	Stage     RolloverStage `json:"stage"`
	Active    math.Int      `json:"active"`
	New       math.Int      `json:"new"`
}
