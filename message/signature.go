package message

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Signature is the raw 65-byte (r || s || v) ECDSA signature carried on the
// wire as tag 7, hex-encoded.
type Signature [65]byte

// ParseSignature decodes a 0x-prefixed or bare hex signature string.
func ParseSignature(s string) (Signature, error) {
	var sig Signature
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return sig, fmt.Errorf("parse signature: %w", err)
	}
	if len(b) != len(sig) {
		return sig, fmt.Errorf("parse signature: want %d bytes, got %d", len(sig), len(b))
	}
	copy(sig[:], b)
	return sig, nil
}

// Hex renders the signature as a 0x-prefixed hex string.
func (s Signature) Hex() string {
	return "0x" + hex.EncodeToString(s[:])
}

func (s Signature) String() string { return s.Hex() }
