/*

Core record types for the tranched vault engine. All amounts are integer
base units (sdkmath.Int); rates and prices are LegacyDec.

*/

package types

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"time"

	"cosmossdk.io/math"
)

type (
	// Address identifies a depositor, strategist or module account.
	Address string
	// VaultID is the deterministic content hash of a vault's parameters.
	VaultID string
	// PoolID identifies an underlying AMM liquidity pair.
	PoolID uint64
)

// Tranche selects one of the two capital classes of a vault.
type Tranche int

const (
	TrancheSenior Tranche = iota
	TrancheJunior
	NumTranches = 2
)

func (t Tranche) String() string {
	if t == TrancheSenior {
		return "senior"
	}
	return "junior"
}

// Valid reports whether t is one of the two defined tranches.
func (t Tranche) Valid() bool {
	return t == TrancheSenior || t == TrancheJunior
}

// VaultState is the lifecycle state of a vault.
type VaultState int

const (
	StateEnrolling VaultState = iota // deposits open, now < investAt
	StateInvestable                  // deposits closed, awaiting invest()
	StateLive                        // capital deployed into the pooled position
	StateRedeemed                    // position unwound, proceeds fixed
)

func (s VaultState) String() string {
	switch s {
	case StateEnrolling:
		return "enrolling"
	case StateInvestable:
		return "investable"
	case StateLive:
		return "live"
	case StateRedeemed:
		return "redeemed"
	default:
		return "unknown"
	}
}

const (
	// BpsDenominator is the basis-point scale for hurdle rates.
	BpsDenominator = 10_000
	// MaxHurdleRateBps caps the hurdle multiplier at 10000% of principal.
	MaxHurdleRateBps = 1_000_000
)

// VaultParams are the immutable creation parameters of a vault. They fully
// determine the vault's identity.
type VaultParams struct {
	SeniorAsset string    `json:"senior_asset"`
	JuniorAsset string    `json:"junior_asset"`
	Strategy    string    `json:"strategy"`
	HurdleRate  uint64    `json:"hurdle_rate"` // basis points, total senior multiplier
	StartAt     time.Time `json:"start_at"`
	InvestAt    time.Time `json:"invest_at"`
	RedeemAt    time.Time `json:"redeem_at"`
	Creator     Address   `json:"creator"`
	Strategist  Address   `json:"strategist"`
}

// Asset returns the underlying asset denom for the given tranche.
func (p VaultParams) Asset(t Tranche) string {
	if t == TrancheSenior {
		return p.SeniorAsset
	}
	return p.JuniorAsset
}

// ID derives the vault's deterministic identity from its parameters.
// The encoding is canonical: length-prefixed strings and fixed-width
// big-endian integers, so equal parameters always hash equally.
func (p VaultParams) ID() VaultID {
	h := sha256.New()
	writeString := func(s string) {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], uint64(len(s)))
		h.Write(n[:])
		h.Write([]byte(s))
	}
	writeUint := func(v uint64) {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], v)
		h.Write(n[:])
	}
	writeString(p.SeniorAsset)
	writeString(p.JuniorAsset)
	writeString(p.Strategy)
	writeUint(p.HurdleRate)
	writeUint(uint64(p.StartAt.Unix()))
	writeUint(uint64(p.InvestAt.Unix()))
	writeUint(uint64(p.RedeemAt.Unix()))
	return VaultID(hex.EncodeToString(h.Sum(nil)))
}

// TrancheRecord is the per-tranche accounting of a vault.
type TrancheRecord struct {
	Asset            string   `json:"asset"`
	DepositedTotal   math.Int `json:"deposited_total"`
	OriginalInvested math.Int `json:"original_invested"` // fixed at invest()
	TotalInvested    math.Int `json:"total_invested"`    // moves with depositLp/withdrawLp
	Received         math.Int `json:"received"`          // fixed at redeem()
	ReceiptToken     string   `json:"receipt_token"`
}

// Vault is the full per-vault state owned by the lifecycle engine.
// Records are never deleted; a fully withdrawn vault remains queryable.
type Vault struct {
	ID         VaultID                      `json:"id"`
	Params     VaultParams                  `json:"params"`
	State      VaultState                   `json:"state"`
	Tranches   [NumTranches]TrancheRecord   `json:"tranches"`
	PoolID     PoolID                       `json:"pool_id"`
	InvestedAt time.Time                    `json:"invested_at,omitempty"`
	RedeemedAt time.Time                    `json:"redeemed_at,omitempty"`
}

// DepositEntry is one deposit by one investor into one tranche. Prefix is
// the running total of the tranche's deposits immediately after this entry,
// so the entry covers the half-open interval (Prefix-Amount, Prefix].
type DepositEntry struct {
	Amount math.Int `json:"amount"`
	Prefix math.Int `json:"prefix"`
}

// InvestorPosition is the stored per-investor, per-tranche state.
// Invested and excess amounts are not stored; they are derived from the
// deposit entries against the tranche's final invested boundary.
type InvestorPosition struct {
	Depositor Address        `json:"depositor"`
	Deposits  []DepositEntry `json:"deposits"`
	Claimed   bool           `json:"claimed"`
	Withdrawn bool           `json:"withdrawn"`
}

// TotalDeposited sums the position's deposit entries.
func (ip InvestorPosition) TotalDeposited() math.Int {
	total := math.ZeroInt()
	for _, d := range ip.Deposits {
		total = total.Add(d.Amount)
	}
	return total
}

// SplitAtBoundary derives the invested/excess split of the position given
// the tranche's final invested boundary. Each entry's interval is clipped
// against [0, boundary); the overlap is invested, the rest is excess. The
// split is exact: invested+excess always equals the entry amount.
func (ip InvestorPosition) SplitAtBoundary(boundary math.Int) (invested, excess math.Int) {
	invested, excess = math.ZeroInt(), math.ZeroInt()
	for _, d := range ip.Deposits {
		lo := d.Prefix.Sub(d.Amount)
		in := boundary.Sub(lo)
		if in.IsNegative() {
			in = math.ZeroInt()
		} else if in.GT(d.Amount) {
			in = d.Amount
		}
		invested = invested.Add(in)
		excess = excess.Add(d.Amount.Sub(in))
	}
	return invested, excess
}

// ApplyBps multiplies an amount by a basis-point rate, flooring the result.
func ApplyBps(amount math.Int, bps uint64) math.Int {
	return amount.Mul(math.NewIntFromUint64(bps)).Quo(math.NewInt(BpsDenominator))
}
