// Package mock is an in-process Transport built on a shared in-memory bus
// so that multiple Transport instances in one process — one per simulated
// peer — can exchange messages without a real libp2p network. It is used
// by the unit tests; the example radios under cmd/ build transport/libp2p.
package mock

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/gossipradio/agent-sdk/transport"
)

// Bus is the shared delivery fabric multiple Transports attach to. A nil
// Bus is valid and behaves as a transport with no peers (publishes
// succeed but are never delivered).
type Bus struct {
	mu        sync.Mutex
	members   map[*Transport]struct{}
}

// NewBus returns an empty bus.
func NewBus() *Bus { return &Bus{members: make(map[*Transport]struct{})} }

func (b *Bus) join(t *Transport) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.members[t] = struct{}{}
}

func (b *Bus) leave(t *Transport) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.members, t)
}

func (b *Bus) deliver(from *Transport, sig transport.Signal) {
	b.mu.Lock()
	recipients := make([]*Transport, 0, len(b.members))
	for t := range b.members {
		if t == from {
			continue
		}
		recipients = append(recipients, t)
	}
	b.mu.Unlock()

	for _, t := range recipients {
		t.deliver(sig)
	}
}

// Transport is one bus-attached, in-process Transport.
type Transport struct {
	bus *Bus
	id  string

	mu                sync.RWMutex
	subscribed        map[string]bool
	filterContent     map[string]map[string]bool // pubsubTopic -> contentTopic set
	peers             map[string]transport.PeerInfo

	signalMu sync.RWMutex
	onSignal func(transport.Signal)

	closeOnce sync.Once
}

// New attaches a new Transport to bus, identified by id (used as the
// Signal.From and PeerInfo.ID for this node's traffic).
func New(bus *Bus, id string) *Transport {
	t := &Transport{
		bus:           bus,
		id:            id,
		subscribed:    make(map[string]bool),
		filterContent: make(map[string]map[string]bool),
		peers:         make(map[string]transport.PeerInfo),
	}
	if bus != nil {
		bus.join(t)
	}
	return t
}

func (t *Transport) deliver(sig transport.Signal) {
	t.mu.RLock()
	open := t.subscribed[sig.PubsubTopic]
	var filterOK bool
	if contents, ok := t.filterContent[sig.PubsubTopic]; ok {
		filterOK = contents[sig.ContentTopic]
	}
	t.mu.RUnlock()

	if !open && !filterOK {
		return
	}

	t.signalMu.RLock()
	cb := t.onSignal
	t.signalMu.RUnlock()
	if cb != nil {
		cb(sig)
	}
}

// Publish implements transport.Transport.
func (t *Transport) Publish(_ context.Context, pubsubTopic, contentTopic string, data []byte) (string, error) {
	id := uuid.NewString()
	if t.bus != nil {
		t.bus.deliver(t, transport.Signal{
			MessageID:    id,
			PubsubTopic:  pubsubTopic,
			ContentTopic: contentTopic,
			From:         t.id,
			Data:         append([]byte(nil), data...),
		})
	}
	return id, nil
}

// Subscribe implements transport.Transport.
func (t *Transport) Subscribe(pubsubTopic string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subscribed[pubsubTopic] = true
	return nil
}

// FilterSubscribe implements transport.Transport.
func (t *Transport) FilterSubscribe(pubsubTopic string, contentTopics []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	set := make(map[string]bool, len(contentTopics))
	for _, c := range contentTopics {
		set[c] = true
	}
	t.filterContent[pubsubTopic] = set
	return nil
}

// OnSignal implements transport.Transport.
func (t *Transport) OnSignal(cb func(transport.Signal)) {
	t.signalMu.Lock()
	defer t.signalMu.Unlock()
	t.onSignal = cb
}

// Peers implements transport.Transport.
func (t *Transport) Peers() []transport.PeerInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]transport.PeerInfo, 0, len(t.peers))
	for _, p := range t.peers {
		out = append(out, p)
	}
	return out
}

// Connect records peerID as connected. The mock transport has no real
// dialing: any id is accepted.
func (t *Transport) Connect(_ context.Context, peerID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.peers[peerID] = transport.PeerInfo{ID: peerID, Connected: true, SupportsRelay: true}
	return nil
}

// Disconnect implements transport.Transport.
func (t *Transport) Disconnect(peerID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.peers, peerID)
	return nil
}

// Close detaches the transport from its bus. Idempotent.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		if t.bus != nil {
			t.bus.leave(t)
		}
	})
	return nil
}

var _ transport.Transport = (*Transport)(nil)
