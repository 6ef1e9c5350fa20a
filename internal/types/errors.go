package types

import "errors"

// Error definitions for zero-tolerance error handling. Every failure aborts
// the whole operation with no partial state change; nothing is retried.
var (
	// Authorization
	ErrUnauthorized = errors.New("caller lacks required role")
	ErrPaused       = errors.New("engine is paused")

	// Timing / lifecycle state
	ErrNotTimeYet      = errors.New("not time yet")
	ErrWrongState      = errors.New("operation invalid in current vault state")
	ErrAlreadyInvested = errors.New("vault already invested")
	ErrAlreadyRedeemed = errors.New("vault already redeemed")
	ErrDepositsClosed  = errors.New("deposits are closed")
	ErrStartElapsed    = errors.New("start time already elapsed")

	// Parameters / invariants
	ErrZeroAddress        = errors.New("address is empty")
	ErrZeroAmount         = errors.New("amount must be positive")
	ErrInvalidInterval    = errors.New("timestamps must be strictly increasing")
	ErrHurdleTooHigh      = errors.New("hurdle rate above maximum")
	ErrVaultExists        = errors.New("vault already exists")
	ErrVaultNotFound      = errors.New("vault not found")
	ErrInvalidTranche     = errors.New("invalid tranche")
	ErrAssetMismatch      = errors.New("asset mismatch")
	ErrNotNativeAsset     = errors.New("tranche asset is not the wrapped native token")
	ErrPoolNotFound       = errors.New("pool not found")
	ErrPoolDrained        = errors.New("pool has zero totals but recorded shares")
	ErrInsufficientShares = errors.New("insufficient share balance")
	ErrNothingToClaim     = errors.New("nothing to claim")
	ErrAlreadyClaimed     = errors.New("position already claimed")
	ErrAlreadyWithdrawn   = errors.New("position already withdrawn")

	// Slippage / thresholds
	ErrTooMuchSlippage = errors.New("too much slippage")

	// Rollover
	ErrRolloverExists   = errors.New("rollover already exists")
	ErrRolloverNotFound = errors.New("rollover not found")
	ErrNoActiveRound    = errors.New("no active round")
	ErrNextVaultSet     = errors.New("next vault already set")
	ErrNextVaultUnset   = errors.New("next vault not registered")
	ErrVaultMismatch    = errors.New("next vault parameters do not match")
	ErrRoundNotFound    = errors.New("round not found")

	// Token ledger
	ErrInsufficientFunds = errors.New("insufficient funds")
)
