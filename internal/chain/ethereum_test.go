package chain

import (
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tokenmart/marketd/internal/domain"
)

func TestSelectors(t *testing.T) {
	// Well-known ERC-721 / ERC-20 selectors.
	tests := []struct {
		sel  []byte
		want string
	}{
		{selOwnerOf, "6352211e"},
		{selGetApproved, "081812fc"},
		{selIsApprovedForAll, "e985e9c5"},
		{selTransferFrom, "23b872dd"},
		{selBalanceOf, "70a08231"},
		{selAllowance, "dd62ed3e"},
		{selTransfer, "a9059cbb"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, hex.EncodeToString(tt.sel))
	}
}

func TestPack(t *testing.T) {
	owner := domain.Address("0x1111111111111111111111111111111111111111")
	tokenID := decimal.NewFromInt(7)

	data := pack(selOwnerOf, uintArg(tokenID))
	require.Len(t, data, 4+32)
	assert.Equal(t, "6352211e", hex.EncodeToString(data[:4]))
	assert.Equal(t, byte(7), data[len(data)-1])

	data = pack(selBalanceOf, addrArg(owner))
	require.Len(t, data, 4+32)
	assert.Equal(t, "1111111111111111111111111111111111111111", hex.EncodeToString(data[16:36]))
}

func TestCallResults(t *testing.T) {
	t.Run("address", func(t *testing.T) {
		word := make([]byte, 32)
		word[31] = 0xab
		addr, err := addressResult(word)
		require.NoError(t, err)
		assert.Equal(t, domain.Address("0x00000000000000000000000000000000000000ab"), addr)
	})

	t.Run("bool", func(t *testing.T) {
		word := make([]byte, 32)
		ok, err := boolResult(word)
		require.NoError(t, err)
		assert.False(t, ok)

		word[31] = 1
		ok, err = boolResult(word)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("uint", func(t *testing.T) {
		want := new(big.Int)
		want.SetString("1000000000000000000", 10)
		word := make([]byte, 32)
		copy(word[32-len(want.Bytes()):], want.Bytes())

		got, err := uintResult(word)
		require.NoError(t, err)
		assert.Equal(t, "1000000000000000000", got.String())
	})

	t.Run("short word", func(t *testing.T) {
		_, err := addressResult([]byte{1, 2, 3})
		assert.Error(t, err)
		_, err = boolResult(nil)
		assert.Error(t, err)
		_, err = uintResult([]byte{})
		assert.Error(t, err)
	})
}
