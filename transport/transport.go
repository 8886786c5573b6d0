// Package transport declares the Transport interface the agent consumes:
// content-topic-over-pubsub-topic multiplexing with filter-subscribe and an
// explicit peer-management surface. The pub/sub transport itself (a
// gossip-style peer network with relay/filter/lightpush/store/discv5
// sub-protocols) is out of scope here; this package only names the
// interface and ships two implementations: transport/mock (in-process,
// for tests) and transport/libp2p (a concrete gossipsub adapter, used by
// the example radios).
package transport

import "context"

// Signal is one inbound delivery from the transport's event loop, handed to
// the callback registered via OnSignal. The agent's signal handler filters
// on PubsubTopic/ContentTopic and MessageID before forwarding Data to the
// radio.
type Signal struct {
	MessageID    string
	PubsubTopic  string
	ContentTopic string
	From         string
	Data         []byte
}

// PeerInfo is the read-only view of a known peer exposed by Peers().
type PeerInfo struct {
	ID            string
	Address       string
	Connected     bool
	SupportsRelay bool
}

// Transport is the pub/sub transport surface the agent is built against.
// Publish, Subscribe, FilterSubscribe, Connect, and Disconnect are
// suspension points: none may be called while a lock the caller holds
// spans the call.
type Transport interface {
	// Publish sends data on contentTopic within pubsubTopic and returns the
	// transport-assigned message id.
	Publish(ctx context.Context, pubsubTopic, contentTopic string, data []byte) (messageID string, err error)

	// Subscribe opens the whole pubsubTopic (used when filter_protocol is
	// false).
	Subscribe(pubsubTopic string) error

	// FilterSubscribe opens pubsubTopic filtered to exactly contentTopics
	// (used when filter_protocol is true).
	FilterSubscribe(pubsubTopic string, contentTopics []string) error

	// OnSignal installs the callback invoked synchronously on the
	// transport's own event-loop thread for every inbound delivery. The
	// callback MUST NOT block: it is expected to do only cheap, synchronous
	// work and forward bytes over a channel.
	OnSignal(func(Signal))

	// Peers returns the currently known peer set.
	Peers() []PeerInfo

	// Connect dials peerID.
	Connect(ctx context.Context, peerID string) error

	// Disconnect closes the connection to peerID.
	Disconnect(peerID string) error

	// Close tears down the transport. Idempotent.
	Close() error
}

// Error classifies a transport failure for the agent boundary's
// WakuNodeError/WakuPortError/ConvertMultiaddrError/TransportError
// taxonomy.
type Error struct {
	Kind string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind
	}
	return e.Kind + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// TypeString returns the stable type-string for telemetry tagging.
func (e *Error) TypeString() string { return e.Kind }

// Well-known Error.Kind values.
const (
	KindWakuNode         = "WakuNodeError"
	KindWakuPort         = "WakuPortError"
	KindConvertMultiaddr = "ConvertMultiaddrError"
	KindTransport        = "TransportError"
)
