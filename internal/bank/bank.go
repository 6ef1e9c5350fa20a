/*

In-memory fungible token ledger. This stands in for the platform's token
contracts at their interface boundary: underlying tranche assets, receipt
tokens and the wrapped native denom are all plain denoms here.

*/

package bank

import (
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/tranche/internal/types"
)

// Bank tracks balances and total supply per denom.
type Bank struct {
	mu          sync.RWMutex
	nativeDenom string
	balances    map[string]map[types.Address]sdkmath.Int
	supply      map[string]sdkmath.Int
}

// New creates an empty bank. nativeDenom is the wrapped-native token denom
// used by the depositNative/withdrawNative paths.
func New(nativeDenom string) *Bank {
	return &Bank{
		nativeDenom: nativeDenom,
		balances:    make(map[string]map[types.Address]sdkmath.Int),
		supply:      make(map[string]sdkmath.Int),
	}
}

// NativeDenom returns the wrapped-native token denom.
func (b *Bank) NativeDenom() string { return b.nativeDenom }

// Balance returns addr's balance of denom (zero when absent).
func (b *Bank) Balance(denom string, addr types.Address) sdkmath.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if bal, ok := b.balances[denom][addr]; ok {
		return bal
	}
	return sdkmath.ZeroInt()
}

// Supply returns the total minted supply of denom.
func (b *Bank) Supply(denom string) sdkmath.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if s, ok := b.supply[denom]; ok {
		return s
	}
	return sdkmath.ZeroInt()
}

// Mint credits addr with amount of denom.
func (b *Bank) Mint(denom string, addr types.Address, amount sdkmath.Int) error {
	if addr == "" {
		return types.ErrZeroAddress
	}
	if !amount.IsPositive() {
		return types.ErrZeroAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.credit(denom, addr, amount)
	b.supply[denom] = b.supplyLocked(denom).Add(amount)
	return nil
}

// Burn debits addr's balance of denom and reduces supply.
func (b *Bank) Burn(denom string, addr types.Address, amount sdkmath.Int) error {
	if !amount.IsPositive() {
		return types.ErrZeroAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.debit(denom, addr, amount); err != nil {
		return err
	}
	b.supply[denom] = b.supplyLocked(denom).Sub(amount)
	return nil
}

// Transfer moves amount of denom from one address to another.
func (b *Bank) Transfer(denom string, from, to types.Address, amount sdkmath.Int) error {
	if from == "" || to == "" {
		return types.ErrZeroAddress
	}
	if !amount.IsPositive() {
		return types.ErrZeroAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.debit(denom, from, amount); err != nil {
		return err
	}
	b.credit(denom, to, amount)
	return nil
}

// Wrap mints the wrapped-native denom against native value attached to a
// call. The native escrow itself lives outside this ledger.
func (b *Bank) Wrap(addr types.Address, amount sdkmath.Int) error {
	return b.Mint(b.nativeDenom, addr, amount)
}

// Unwrap burns the wrapped-native denom, releasing native value.
func (b *Bank) Unwrap(addr types.Address, amount sdkmath.Int) error {
	return b.Burn(b.nativeDenom, addr, amount)
}

func (b *Bank) credit(denom string, addr types.Address, amount sdkmath.Int) {
	if b.balances[denom] == nil {
		b.balances[denom] = make(map[types.Address]sdkmath.Int)
	}
	if bal, ok := b.balances[denom][addr]; ok {
		b.balances[denom][addr] = bal.Add(amount)
	} else {
		b.balances[denom][addr] = amount
	}
}

func (b *Bank) debit(denom string, addr types.Address, amount sdkmath.Int) error {
	bal, ok := b.balances[denom][addr]
	if !ok || bal.LT(amount) {
		return fmt.Errorf("%w: %s has %s %s, need %s",
			types.ErrInsufficientFunds, addr, b.supplyOrZero(bal, ok), denom, amount)
	}
	b.balances[denom][addr] = bal.Sub(amount)
	return nil
}

func (b *Bank) supplyLocked(denom string) sdkmath.Int {
	if s, ok := b.supply[denom]; ok {
		return s
	}
	return sdkmath.ZeroInt()
}

func (b *Bank) supplyOrZero(bal sdkmath.Int, ok bool) sdkmath.Int {
	if !ok {
		return sdkmath.ZeroInt()
	}
	return bal
}
