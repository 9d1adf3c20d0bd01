package types

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestDeriveTokenID(t *testing.T) {
	t.Parallel()

	a := common.HexToAddress("0x01")
	b := common.HexToAddress("0x02")

	tokenA := DeriveTokenID(a, DefaultTokenID)
	require.NotEqual(t, DefaultTokenID, tokenA)
	require.Equal(t, tokenA, DeriveTokenID(a, DefaultTokenID), "derivation must be deterministic")
	require.NotEqual(t, tokenA, DeriveTokenID(b, DefaultTokenID))
	require.NotEqual(t, tokenA, DeriveTokenID(a, tokenA), "parent token is part of the id")
}

func TestAccountID(t *testing.T) {
	t.Parallel()

	addr := common.HexToAddress("0xabcdef")
	native := NewAccountID(addr, DefaultTokenID)
	custom := NewAccountID(addr, DeriveTokenID(addr, DefaultTokenID))

	require.True(t, native.IsDefaultToken())
	require.False(t, custom.IsDefaultToken())
	require.False(t, native.Eq(custom), "same address with different token is a different account")
	require.NotEqual(t, native.Key(), custom.Key())
	require.Len(t, native.Key(), 52)
	require.Equal(t, addr.Hex(), native.String())
	require.Contains(t, custom.String(), addr.Hex()+"/")
}
