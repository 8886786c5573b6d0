// Package message implements the wire envelope: construction, EIP-712-style
// signing, and the tag/length binary codec described by the agent's wire
// format.
package message

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Address is a 20-byte account address, hex-encoded on the wire and in logs.
type Address [20]byte

// ZeroAddress is the all-zero address, used as the verifying_contract value
// for payload types that do not bind a typed domain to a specific contract.
var ZeroAddress Address

// ParseAddress decodes a 0x-prefixed or bare hex address string.
func ParseAddress(s string) (Address, error) {
	var a Address
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return a, fmt.Errorf("parse address %q: %w", s, err)
	}
	if len(b) != len(a) {
		return a, fmt.Errorf("parse address %q: want %d bytes, got %d", s, len(a), len(b))
	}
	copy(a[:], b)
	return a, nil
}

// FromCommon converts a go-ethereum common.Address.
func FromCommon(c common.Address) Address {
	var a Address
	copy(a[:], c.Bytes())
	return a
}

// Common converts to a go-ethereum common.Address, for interop with
// go-ethereum's crypto.* helpers.
func (a Address) Common() common.Address {
	return common.BytesToAddress(a[:])
}

// Hex renders the address as a 0x-prefixed, EIP-55 checksummed string.
func (a Address) Hex() string {
	return a.Common().Hex()
}

func (a Address) String() string { return a.Hex() }

// IsZero reports whether a is the all-zero address.
func (a Address) IsZero() bool { return a == ZeroAddress }
