package message

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Wire tags, matching the envelope's tag table exactly.
const (
	tagIdentifier  protowire.Number = 1
	tagPayload     protowire.Number = 2
	tagNonce       protowire.Number = 3
	tagNetwork     protowire.Number = 4
	tagBlockNumber protowire.Number = 5
	tagBlockHash   protowire.Number = 6
	tagSignature   protowire.Number = 7
)

// ErrTruncated is returned by Decode when the input ends mid-field.
var ErrTruncated = fmt.Errorf("message: truncated wire data")

// Encode serializes env to the tag/length binary wire format: each field is
// (tag<<3|wire_type) varint followed by length-prefixed bytes (strings) or a
// varint value (ints). block_number is an unsigned varint; nonce is a
// zigzag-encoded signed varint.
func Encode[T Payload](env *Envelope[T]) ([]byte, error) {
	payload, err := env.Payload.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("message: encode payload: %w", err)
	}

	var b []byte
	b = protowire.AppendTag(b, tagIdentifier, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte(env.Identifier))

	b = protowire.AppendTag(b, tagPayload, protowire.BytesType)
	b = protowire.AppendBytes(b, payload)

	b = protowire.AppendTag(b, tagNonce, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(env.Nonce))

	b = protowire.AppendTag(b, tagNetwork, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte(env.Network))

	b = protowire.AppendTag(b, tagBlockNumber, protowire.VarintType)
	b = protowire.AppendVarint(b, env.BlockNumber)

	b = protowire.AppendTag(b, tagBlockHash, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte(env.BlockHash))

	b = protowire.AppendTag(b, tagSignature, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte(env.Signature.Hex()))

	return b, nil
}

// Decode parses the tag/length binary wire format back into an Envelope.
// unmarshalPayload reconstructs the radio's concrete payload type from the
// opaque tag-2 bytes. Unknown tags are skipped, matching spec's forward-
// compatibility rule.
func Decode[T Payload](data []byte, unmarshalPayload func([]byte) (T, error)) (*Envelope[T], error) {
	var env Envelope[T]
	var sawPayload bool

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, ErrTruncated
		}
		data = data[n:]

		switch num {
		case tagIdentifier:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, ErrTruncated
			}
			env.Identifier = string(v)
			data = data[n:]
		case tagPayload:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, ErrTruncated
			}
			p, err := unmarshalPayload(v)
			if err != nil {
				return nil, fmt.Errorf("message: decode payload: %w", err)
			}
			env.Payload = p
			sawPayload = true
			data = data[n:]
		case tagNonce:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, ErrTruncated
			}
			env.Nonce = protowire.DecodeZigZag(v)
			data = data[n:]
		case tagNetwork:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, ErrTruncated
			}
			env.Network = string(v)
			data = data[n:]
		case tagBlockNumber:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, ErrTruncated
			}
			env.BlockNumber = v
			data = data[n:]
		case tagBlockHash:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, ErrTruncated
			}
			env.BlockHash = string(v)
			data = data[n:]
		case tagSignature:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, ErrTruncated
			}
			sig, err := ParseSignature(string(v))
			if err != nil {
				return nil, fmt.Errorf("message: decode signature: %w", err)
			}
			env.Signature = sig
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, ErrTruncated
			}
			data = data[n:]
		}
	}

	if !sawPayload {
		return nil, fmt.Errorf("message: decode: %w", ErrEmptyPayload)
	}
	return &env, nil
}
