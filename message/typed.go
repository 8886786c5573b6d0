package message

import (
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
)

// TypedDomain is the EIP-712-style domain separator. Name and Version are
// constants fixed per payload type; ChainID and VerifyingContract pin the
// domain to a specific network and (optionally) contract, matching spec's
// convention of chain_id=1 and a zero verifying_contract for payload types
// that are not bound to an on-chain contract.
type TypedDomain struct {
	Name              string
	Version           string
	ChainID           uint64
	VerifyingContract Address
}

// FieldKind is the wire type of a single typed struct field, per spec §6's
// "fields in declaration order, each encoded by type" rule.
type FieldKind int

const (
	FieldString FieldKind = iota
	FieldUint
	FieldBytes32
)

// TypedField is one field of a typed payload struct, in declaration order.
type TypedField struct {
	Kind    FieldKind
	Str     string
	Uint    *big.Int
	Bytes32 [32]byte
}

// StringField builds a string-kind typed field.
func StringField(s string) TypedField { return TypedField{Kind: FieldString, Str: s} }

// UintField builds a uint-kind typed field.
func UintField(v *big.Int) TypedField { return TypedField{Kind: FieldUint, Uint: v} }

// Bytes32Field builds a bytes32-kind typed field.
func Bytes32Field(b [32]byte) TypedField { return TypedField{Kind: FieldBytes32, Bytes32: b} }

// Payload is the capability set a radio's message content must satisfy to
// flow through the codec: it can describe itself as an ordered list of typed
// struct fields (for signing) and marshal/unmarshal itself to opaque bytes
// (for the wire envelope's tag-2 payload field). The core is generic over
// any type satisfying this interface.
type Payload interface {
	TypedFields() []TypedField
	MarshalBinary() ([]byte, error)
}

// encodeField renders one typed field to its 32-byte EVM word, per spec §6:
// string -> keccak256(bytes); uint -> 32-byte big-endian; bytes32 -> raw.
func encodeField(f TypedField) [32]byte {
	switch f.Kind {
	case FieldString:
		return [32]byte(crypto.Keccak256([]byte(f.Str)))
	case FieldUint:
		var out [32]byte
		v := f.Uint
		if v == nil {
			v = new(big.Int)
		}
		b := v.Bytes()
		copy(out[32-len(b):], b)
		return out
	case FieldBytes32:
		return f.Bytes32
	default:
		return [32]byte{}
	}
}

func structHash(fields []TypedField) [32]byte {
	buf := make([]byte, 0, 32*len(fields))
	for _, f := range fields {
		w := encodeField(f)
		buf = append(buf, w[:]...)
	}
	return [32]byte(crypto.Keccak256(buf))
}

func domainSeparator(d TypedDomain) [32]byte {
	chainID := new(big.Int).SetUint64(d.ChainID)
	fields := []TypedField{
		StringField(d.Name),
		StringField(d.Version),
		UintField(chainID),
		Bytes32Field(addressWord(d.VerifyingContract)),
	}
	return structHash(fields)
}

func addressWord(a Address) [32]byte {
	var w [32]byte
	copy(w[12:], a[:])
	return w
}

// TypedHash computes the final EIP-712-style digest:
// keccak256(0x1901 || keccak256(domain_separator) || keccak256(payload_struct)).
func TypedHash(domain TypedDomain, payload Payload) [32]byte {
	ds := domainSeparator(domain)
	ph := structHash(payload.TypedFields())

	buf := make([]byte, 0, 2+32+32)
	buf = append(buf, 0x19, 0x01)
	buf = append(buf, ds[:]...)
	buf = append(buf, ph[:]...)
	return [32]byte(crypto.Keccak256(buf))
}
