package bank

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/tranche/internal/types"
)

func TestMintBurnSupply(t *testing.T) {
	b := New("uelys")

	require.NoError(t, b.Mint("uusdc", "alice", sdkmath.NewInt(100)))
	require.Equal(t, sdkmath.NewInt(100), b.Balance("uusdc", "alice"))
	require.Equal(t, sdkmath.NewInt(100), b.Supply("uusdc"))

	require.NoError(t, b.Burn("uusdc", "alice", sdkmath.NewInt(40)))
	require.Equal(t, sdkmath.NewInt(60), b.Balance("uusdc", "alice"))
	require.Equal(t, sdkmath.NewInt(60), b.Supply("uusdc"))

	err := b.Burn("uusdc", "alice", sdkmath.NewInt(61))
	require.ErrorIs(t, err, types.ErrInsufficientFunds)

	require.ErrorIs(t, b.Mint("uusdc", "", sdkmath.NewInt(1)), types.ErrZeroAddress)
	require.ErrorIs(t, b.Mint("uusdc", "alice", sdkmath.ZeroInt()), types.ErrZeroAmount)
}

func TestTransfer(t *testing.T) {
	b := New("uelys")
	require.NoError(t, b.Mint("uusdc", "alice", sdkmath.NewInt(100)))

	require.NoError(t, b.Transfer("uusdc", "alice", "bob", sdkmath.NewInt(30)))
	require.Equal(t, sdkmath.NewInt(70), b.Balance("uusdc", "alice"))
	require.Equal(t, sdkmath.NewInt(30), b.Balance("uusdc", "bob"))

	err := b.Transfer("uusdc", "bob", "alice", sdkmath.NewInt(31))
	require.ErrorIs(t, err, types.ErrInsufficientFunds)
	require.ErrorIs(t, b.Transfer("uusdc", "", "bob", sdkmath.NewInt(1)), types.ErrZeroAddress)

	// Unknown denoms hold no balance.
	require.True(t, b.Balance("ubogus", "alice").IsZero())
	require.True(t, b.Supply("ubogus").IsZero())
}

func TestWrapUnwrap(t *testing.T) {
	b := New("uelys")
	require.Equal(t, "uelys", b.NativeDenom())

	require.NoError(t, b.Wrap("alice", sdkmath.NewInt(500)))
	require.Equal(t, sdkmath.NewInt(500), b.Balance("uelys", "alice"))
	require.Equal(t, sdkmath.NewInt(500), b.Supply("uelys"))

	require.NoError(t, b.Unwrap("alice", sdkmath.NewInt(500)))
	require.True(t, b.Balance("uelys", "alice").IsZero())
	require.True(t, b.Supply("uelys").IsZero())

	require.ErrorIs(t, b.Unwrap("alice", sdkmath.NewInt(1)), types.ErrInsufficientFunds)
}
