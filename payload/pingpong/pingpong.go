// Package pingpong is an example radio payload implementing a liveness
// check: even block numbers emit Ping, odd block numbers emit Pong in
// reply to Pings seen since the last odd tick.
package pingpong

import (
	"encoding/json"

	"github.com/gossipradio/agent-sdk/message"
)

// Domain is the typed-data domain for ping-pong payloads, matching the
// original reference radio's Eip712 domain name.
var Domain = message.TypedDomain{
	Name:              "Graphcast Ping-Pong Radio",
	Version:           "0",
	ChainID:           1,
	VerifyingContract: message.ZeroAddress,
}

// Message is the payload content: a table identifier and a "Ping"/"Pong"
// string, declared in the same order as the original RadioPayloadMessage.
type Message struct {
	Identifier string `json:"identifier"`
	Content    string `json:"content"`
}

// TypedFields implements message.Payload.
func (m Message) TypedFields() []message.TypedField {
	return []message.TypedField{
		message.StringField(m.Identifier),
		message.StringField(m.Content),
	}
}

// MarshalBinary implements message.Payload.
func (m Message) MarshalBinary() ([]byte, error) {
	return json.Marshal(m)
}

// Unmarshal reconstructs a Message from its wire bytes, for use as the
// decode factory passed to message.Decode.
func Unmarshal(b []byte) (Message, error) {
	var m Message
	err := json.Unmarshal(b, &m)
	return m, err
}
