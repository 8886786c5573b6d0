// Package attestation is an example radio payload for a proof-of-indexing
// cross-check between indexers.
package attestation

import (
	"encoding/json"

	"github.com/gossipradio/agent-sdk/message"
)

// Domain is the typed-data domain for POI attestation payloads.
var Domain = message.TypedDomain{
	Name:              "Graphcast POI Radio",
	Version:           "0",
	ChainID:           1,
	VerifyingContract: message.ZeroAddress,
}

// Message carries a proof-of-indexing commitment for a subgraph deployment.
type Message struct {
	NPOI string `json:"npoi"`
}

// TypedFields implements message.Payload.
func (m Message) TypedFields() []message.TypedField {
	return []message.TypedField{
		message.StringField(m.NPOI),
	}
}

// MarshalBinary implements message.Payload.
func (m Message) MarshalBinary() ([]byte, error) {
	return json.Marshal(m)
}

// Unmarshal reconstructs a Message from its wire bytes.
func Unmarshal(b []byte) (Message, error) {
	var m Message
	err := json.Unmarshal(b, &m)
	return m, err
}
