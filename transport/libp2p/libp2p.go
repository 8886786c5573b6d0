// Package libp2p is the concrete gossipsub Transport adapter: the "boot
// node" implementation the SDK ships, built on a single flat pub/sub host
// generalized into content-topic-over-pubsub-topic multiplexing. Since
// gossipsub has no native per-content-topic filter protocol the way
// Waku's filter sub-protocol does, every message published on a pubsub
// topic carries its content topic in a small length-prefixed header ahead
// of the payload; FilterSubscribe is implemented by subscribing to the
// whole pubsub topic and discarding deliveries whose header content topic
// is not in the configured set.
package libp2p

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	golibp2p "github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/peerstore"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/multiformats/go-multiaddr"
	"github.com/sirupsen/logrus"

	"github.com/gossipradio/agent-sdk/transport"
)

var log = logrus.WithField("component", "transport/libp2p")

// relayProtocol identifies peers that support gossipsub relay, the
// criterion a network check uses to decide whether to reconnect or
// disconnect a peer. It mirrors the circuit-relay protocol id libp2p
// nodes advertise when relay is enabled.
const relayProtocol = protocol.ID("/libp2p/circuit/relay/0.2.0/hop")

// Config configures a Node. BootNodeAddresses are dialed at construction;
// Discv5ENRs is accepted for parity with the agent configuration table
// but discv5 bootstrap is out of scope for this adapter (see DESIGN.md).
type Config struct {
	ListenAddr        string
	BootNodeAddresses []string
	Discv5ENRs        []string

	// NodeKey is a hex-encoded secp256k1 private key giving the host a
	// stable peer ID across restarts. Empty generates a fresh identity.
	NodeKey string
}

// Node is a libp2p-gossipsub-backed Transport.
type Node struct {
	host   host.Host
	pubsub *pubsub.PubSub

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	topics   map[string]*pubsub.Topic
	subs     map[string]*pubsub.Subscription
	filters  map[string]map[string]bool // pubsubTopic -> content topics accepted

	signalMu sync.RWMutex
	onSignal func(transport.Signal)

	closeOnce sync.Once
}

// New creates a libp2p host, joins gossipsub, and dials cfg.BootNodeAddresses.
func New(cfg Config) (*Node, error) {
	ctx, cancel := context.WithCancel(context.Background())

	opts := []golibp2p.Option{}
	if cfg.ListenAddr != "" {
		opts = append(opts, golibp2p.ListenAddrStrings(cfg.ListenAddr))
	}
	if cfg.NodeKey != "" {
		priv, err := decodeNodeKey(cfg.NodeKey)
		if err != nil {
			cancel()
			return nil, &transport.Error{Kind: transport.KindWakuNode, Err: fmt.Errorf("decode node key: %w", err)}
		}
		opts = append(opts, golibp2p.Identity(priv))
	}
	h, err := golibp2p.New(opts...)
	if err != nil {
		cancel()
		return nil, &transport.Error{Kind: transport.KindWakuNode, Err: fmt.Errorf("create host: %w", err)}
	}

	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		h.Close()
		cancel()
		return nil, &transport.Error{Kind: transport.KindWakuNode, Err: fmt.Errorf("create pubsub: %w", err)}
	}

	n := &Node{
		host:    h,
		pubsub:  ps,
		ctx:     ctx,
		cancel:  cancel,
		topics:  make(map[string]*pubsub.Topic),
		subs:    make(map[string]*pubsub.Subscription),
		filters: make(map[string]map[string]bool),
	}

	for _, addr := range cfg.BootNodeAddresses {
		if err := n.Connect(ctx, addr); err != nil {
			log.WithError(err).Warn("boot node dial failed")
		}
	}

	return n, nil
}

// decodeNodeKey parses a hex-encoded secp256k1 private key (the same
// encoding used by identity.Build's WalletKey) into a libp2p identity.
func decodeNodeKey(hexKey string) (crypto.PrivKey, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	priv, err := crypto.UnmarshalSecp256k1PrivateKey(raw)
	if err != nil {
		return nil, err
	}
	return priv, nil
}

func encodeEnvelope(contentTopic string, data []byte) []byte {
	out := make([]byte, 2+len(contentTopic)+len(data))
	binary.BigEndian.PutUint16(out, uint16(len(contentTopic)))
	copy(out[2:], contentTopic)
	copy(out[2+len(contentTopic):], data)
	return out
}

func decodeEnvelope(raw []byte) (contentTopic string, data []byte, err error) {
	if len(raw) < 2 {
		return "", nil, fmt.Errorf("transport/libp2p: truncated envelope header")
	}
	n := int(binary.BigEndian.Uint16(raw))
	if len(raw) < 2+n {
		return "", nil, fmt.Errorf("transport/libp2p: truncated content topic")
	}
	return string(raw[2 : 2+n]), raw[2+n:], nil
}

func (n *Node) joinTopic(pubsubTopic string) (*pubsub.Topic, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if t, ok := n.topics[pubsubTopic]; ok {
		return t, nil
	}
	t, err := n.pubsub.Join(pubsubTopic)
	if err != nil {
		return nil, err
	}
	n.topics[pubsubTopic] = t
	return t, nil
}

// Publish implements transport.Transport.
func (n *Node) Publish(ctx context.Context, pubsubTopic, contentTopic string, data []byte) (string, error) {
	t, err := n.joinTopic(pubsubTopic)
	if err != nil {
		return "", &transport.Error{Kind: transport.KindTransport, Err: fmt.Errorf("join topic %s: %w", pubsubTopic, err)}
	}
	env := encodeEnvelope(contentTopic, data)
	if err := t.Publish(ctx, env); err != nil {
		return "", &transport.Error{Kind: transport.KindTransport, Err: fmt.Errorf("publish %s: %w", pubsubTopic, err)}
	}
	return fmt.Sprintf("%s-%d", n.host.ID().String(), len(env)), nil
}

func (n *Node) ensureSubscription(pubsubTopic string) (*pubsub.Subscription, error) {
	n.mu.Lock()
	sub, ok := n.subs[pubsubTopic]
	n.mu.Unlock()
	if ok {
		return sub, nil
	}

	t, err := n.joinTopic(pubsubTopic)
	if err != nil {
		return nil, err
	}
	sub, err = t.Subscribe()
	if err != nil {
		return nil, err
	}

	n.mu.Lock()
	n.subs[pubsubTopic] = sub
	n.mu.Unlock()

	go n.readLoop(pubsubTopic, sub)
	return sub, nil
}

func (n *Node) readLoop(pubsubTopic string, sub *pubsub.Subscription) {
	for {
		msg, err := sub.Next(n.ctx)
		if err != nil {
			log.WithError(err).Debug("subscription closed")
			return
		}
		// gossipsub delivers a node's own publishes to its local
		// subscriptions; drop them so a sender never receives itself.
		if msg.GetFrom() == n.host.ID() {
			continue
		}
		contentTopic, data, err := decodeEnvelope(msg.Data)
		if err != nil {
			log.WithError(err).Debug("dropping malformed envelope")
			continue
		}

		n.mu.Lock()
		filter, filtered := n.filters[pubsubTopic]
		n.mu.Unlock()
		if filtered && !filter[contentTopic] {
			continue
		}

		n.signalMu.RLock()
		cb := n.onSignal
		n.signalMu.RUnlock()
		if cb == nil {
			continue
		}
		cb(transport.Signal{
			MessageID:    fmt.Sprintf("%s-%x", msg.GetFrom().String(), msg.Seqno),
			PubsubTopic:  pubsubTopic,
			ContentTopic: contentTopic,
			From:         msg.GetFrom().String(),
			Data:         data,
		})
	}
}

// Subscribe implements transport.Transport: it opens the whole pubsub
// topic unfiltered.
func (n *Node) Subscribe(pubsubTopic string) error {
	_, err := n.ensureSubscription(pubsubTopic)
	return err
}

// FilterSubscribe implements transport.Transport: it subscribes to the
// whole pubsub topic and records contentTopics as the accepted set for
// client-side filtering in readLoop.
func (n *Node) FilterSubscribe(pubsubTopic string, contentTopics []string) error {
	if _, err := n.ensureSubscription(pubsubTopic); err != nil {
		return err
	}
	set := make(map[string]bool, len(contentTopics))
	for _, c := range contentTopics {
		set[c] = true
	}
	n.mu.Lock()
	n.filters[pubsubTopic] = set
	n.mu.Unlock()
	return nil
}

// OnSignal implements transport.Transport.
func (n *Node) OnSignal(cb func(transport.Signal)) {
	n.signalMu.Lock()
	defer n.signalMu.Unlock()
	n.onSignal = cb
}

// Peers implements transport.Transport. SupportsRelay reports whether the
// peer advertises the circuit-relay protocol, the criterion network_check
// uses to decide whether to reconnect or disconnect a peer.
func (n *Node) Peers() []transport.PeerInfo {
	ids := n.host.Network().Peers()
	out := make([]transport.PeerInfo, 0, len(ids))
	for _, id := range ids {
		protocols, _ := n.host.Peerstore().GetProtocols(id)
		supportsRelay := false
		for _, p := range protocols {
			if p == relayProtocol {
				supportsRelay = true
				break
			}
		}
		out = append(out, transport.PeerInfo{
			ID:            id.String(),
			Connected:     n.host.Network().Connectedness(id) == network.Connected,
			SupportsRelay: supportsRelay,
		})
	}
	return out
}

// Connect dials a multiaddr or peer id string.
func (n *Node) Connect(ctx context.Context, peerAddr string) error {
	info, err := peer.AddrInfoFromString(peerAddr)
	if err != nil {
		maddr, merr := multiaddr.NewMultiaddr(peerAddr)
		if merr != nil {
			return &transport.Error{Kind: transport.KindConvertMultiaddr, Err: fmt.Errorf("parse %s: %w", peerAddr, err)}
		}
		info, err = peer.AddrInfoFromP2pAddr(maddr)
		if err != nil {
			return &transport.Error{Kind: transport.KindConvertMultiaddr, Err: err}
		}
	}
	n.host.Peerstore().AddAddrs(info.ID, info.Addrs, peerstore.PermanentAddrTTL)
	if err := n.host.Connect(ctx, *info); err != nil {
		return &transport.Error{Kind: transport.KindTransport, Err: fmt.Errorf("connect %s: %w", peerAddr, err)}
	}
	return nil
}

// Disconnect implements transport.Transport.
func (n *Node) Disconnect(peerID string) error {
	id, err := peer.Decode(peerID)
	if err != nil {
		return &transport.Error{Kind: transport.KindConvertMultiaddr, Err: err}
	}
	if err := n.host.Network().ClosePeer(id); err != nil {
		return &transport.Error{Kind: transport.KindTransport, Err: err}
	}
	return nil
}

// Close tears down the host and cancels the node context. Idempotent.
func (n *Node) Close() error {
	var err error
	n.closeOnce.Do(func() {
		n.cancel()
		err = n.host.Close()
	})
	return err
}

var _ transport.Transport = (*Node)(nil)
