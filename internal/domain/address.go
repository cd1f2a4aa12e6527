package domain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Address identifies an account, an asset collection or a fungible-token
// currency. Stored lowercase 0x-prefixed.
type Address string

// NativeCurrency is the zero address, used as the sentinel for listings
// settled in the native currency rather than a fungible token.
const NativeCurrency Address = "0x0000000000000000000000000000000000000000"

// ParseAddress validates and normalizes a 20-byte hex address.
func ParseAddress(s string) (Address, error) {
	if !common.IsHexAddress(s) {
		return "", fmt.Errorf("%w: %q is not a valid address", ErrInvalidAddress, s)
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	return Address(strings.ToLower(s)), nil
}

// MustParseAddress is ParseAddress for hardcoded values; it panics on error.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// IsNative reports whether the address is the native-currency sentinel.
func (a Address) IsNative() bool {
	return a == NativeCurrency
}

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool {
	return a == "" || a == NativeCurrency
}

func (a Address) String() string {
	return string(a)
}
