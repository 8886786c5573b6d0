// Package agent is the message lifecycle orchestrator: it owns Identity, the
// Call Book, the nonce/seen stores, and a handle to the transport; exposes
// Send/UpdateContentTopics/Stop/NetworkCheck; and installs the transport's
// signal handler, which filters by content topic and dedups by message id
// before forwarding raw bytes to the radio over a channel for async
// validation.
package agent

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/gossipradio/agent-sdk/callbook"
	"github.com/gossipradio/agent-sdk/identity"
	"github.com/gossipradio/agent-sdk/message"
	"github.com/gossipradio/agent-sdk/noncestore"
	"github.com/gossipradio/agent-sdk/seenstore"
	"github.com/gossipradio/agent-sdk/topic"
	"github.com/gossipradio/agent-sdk/transport"
)

var log = logrus.WithField("component", "agent")

// SetLogger overrides the package-level logger.
func SetLogger(l *logrus.Logger) { log = l.WithField("component", "agent") }

// State is one of the Agent's four lifecycle states.
type State int32

const (
	StateConstructing State = iota
	StateReady
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateConstructing:
		return "Constructing"
	case StateReady:
		return "Ready"
	case StateStopping:
		return "Stopping"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// RawMessage is one dedup'd, topic-matched inbound delivery forwarded to
// the radio. Validation is deferred to the radio's own async context: the
// agent itself never validates.
type RawMessage struct {
	ContentTopic string
	From         string
	Data         []byte
}

// Agent is the message lifecycle engine, generic over the radio's payload
// type T. One Agent owns exactly one pubsub topic and one content-topic
// set.
type Agent[T message.Payload] struct {
	cfg       Config
	domain    message.TypedDomain
	unmarshal func([]byte) (T, error)

	identity  *identity.Identity
	callBook  *callbook.CallBook
	transport transport.Transport

	nonceStore noncestore.Interface
	seenStore  seenstore.Interface

	pubsubTopic string

	topicMu       sync.RWMutex
	contentTopics map[string]bool

	state atomic.Int32

	ingress     chan RawMessage
	dropCounter prometheus.Counter

	stopOnce sync.Once
}

// New builds and starts an Agent: it constructs Identity from
// cfg.WalletKey, aborts if the secret is malformed or (when
// cfg.GraphNodeEndpoint is set) the graph-node endpoint is unreachable —
// configuration failures are fatal — runs identity self-verification
// (warn-but-continue on failure), opens the configured pubsub
// subscription, and installs the signal handler. tr is the
// already-constructed Transport, an external collaborator; nonceStore/
// seenStore may be nil to use the unbounded in-memory defaults.
func New[T message.Payload](ctx context.Context, cfg Config, domain message.TypedDomain, unmarshal func([]byte) (T, error), tr transport.Transport, nonceStore noncestore.Interface, seenStore seenstore.Interface) (*Agent[T], error) {
	id, err := identity.Build(cfg.WalletKey, cfg.GraphAccount)
	if err != nil {
		return nil, &Error{Kind: KindConfiguration, Err: err}
	}

	cb := callbook.New(cfg.RegistrySubgraph, cfg.NetworkSubgraph, cfg.GraphNodeEndpoint)
	if cfg.GraphNodeEndpoint != "" {
		if _, err := cb.IndexingStatuses(ctx); err != nil {
			return nil, &Error{Kind: KindConfiguration, Err: fmt.Errorf("graph node unreachable at startup: %w", err)}
		}
	}

	if nonceStore == nil {
		nonceStore = noncestore.NewStore()
	}
	if seenStore == nil {
		seenStore = seenstore.NewStore()
	}

	a := &Agent[T]{
		cfg:           cfg,
		domain:        domain,
		unmarshal:     unmarshal,
		identity:      id,
		callBook:      cb,
		transport:     tr,
		nonceStore:    nonceStore,
		seenStore:     seenStore,
		contentTopics: toSet(cfg.Subtopics),
		ingress:       make(chan RawMessage, cfg.ingressBufferSize()),
		dropCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gossipradio_agent_ingress_dropped_total",
			Help: "Messages dropped at the signal handler because the ingress channel was full.",
		}),
	}
	a.pubsubTopic = topic.Pubsub(cfg.pubsubPrefix(), cfg.pubsubVersion(), cfg.RadioName, cfg.sdkVersion(), cfg.GraphcastNamespace)

	if acct, err := identity.Verify(ctx, cb, cfg.IDValidation, id.Address()); err != nil {
		log.WithError(err).Warn("identity self-verification failed; continuing")
	} else {
		log.WithField("account", acct.Account).Info("identity self-verified")
	}

	if cfg.FilterProtocol {
		if err := tr.FilterSubscribe(a.pubsubTopic, cfg.Subtopics); err != nil {
			return nil, &Error{Kind: KindTransport, Err: err}
		}
	} else {
		if err := tr.Subscribe(a.pubsubTopic); err != nil {
			return nil, &Error{Kind: KindTransport, Err: err}
		}
	}

	tr.OnSignal(a.handleSignal)
	a.state.Store(int32(StateReady))
	log.WithFields(logrus.Fields{
		"pubsub_topic": a.pubsubTopic,
		"address":      id.Address().Hex(),
	}).Info("agent ready")

	return a, nil
}

func toSet(topics []string) map[string]bool {
	set := make(map[string]bool, len(topics))
	for _, t := range topics {
		set[t] = true
	}
	return set
}

// State returns the agent's current lifecycle state.
func (a *Agent[T]) State() State { return State(a.state.Load()) }

// Ingress is the single-producer channel the radio consumes to receive raw,
// dedup'd, topic-matched message bytes for async validation.
func (a *Agent[T]) Ingress() <-chan RawMessage { return a.ingress }

// Unmarshal reconstructs T from wire bytes using the factory supplied at
// construction, then decodes the full envelope. Radios call this on values
// received from Ingress() before running the validation pipeline.
func (a *Agent[T]) Unmarshal(data []byte) (*message.Envelope[T], error) {
	return message.Decode[T](data, a.unmarshal)
}

// Identity returns the agent's Identity.
func (a *Agent[T]) Identity() *identity.Identity { return a.identity }

// CallBook returns the agent's Call Book, for radios that build their own
// validation.Pipeline.
func (a *Agent[T]) CallBook() *callbook.CallBook { return a.callBook }

// NonceStore returns the agent's Nonce Store.
func (a *Agent[T]) NonceStore() noncestore.Interface { return a.nonceStore }

// Domain returns the typed-data domain the agent signs and validates under.
func (a *Agent[T]) Domain() message.TypedDomain { return a.domain }

// PubsubTopic returns the agent's single pubsub topic.
func (a *Agent[T]) PubsubTopic() string { return a.pubsubTopic }

// DropCounter exposes the ingress-channel backpressure-drop counter so a
// radio can register it with its own prometheus.Registerer. The agent
// itself never registers it, to avoid double-registration when more than
// one agent shares a process.
func (a *Agent[T]) DropCounter() prometheus.Counter { return a.dropCounter }

// handleSignal is the transport's signal callback: cheap, synchronous
// dedup and topic filtering, then a non-blocking forward to the radio.
// It MUST NOT block the transport's event-loop thread.
func (a *Agent[T]) handleSignal(sig transport.Signal) {
	if a.State() != StateReady {
		return
	}
	if sig.PubsubTopic != "" && sig.PubsubTopic != a.pubsubTopic {
		return
	}
	if !a.cfg.AllowAllContentTopics {
		a.topicMu.RLock()
		allowed := a.contentTopics[sig.ContentTopic]
		a.topicMu.RUnlock()
		if !allowed {
			log.WithField("content_topic", sig.ContentTopic).Trace("dropping message outside configured content topics")
			return
		}
	}
	if !a.seenStore.InsertIfAbsent(sig.MessageID) {
		log.WithField("message_id", sig.MessageID).Trace("dropping already-seen message")
		return
	}

	select {
	case a.ingress <- RawMessage{ContentTopic: sig.ContentTopic, From: sig.From, Data: sig.Data}:
	default:
		a.dropCounter.Inc()
		log.WithField("message_id", sig.MessageID).Warn("ingress channel full, dropping message")
	}
}

// Send matches identifier against the currently configured content-topic
// set (unless AllowAllContentTopics), heals disconnected relay peers via
// NetworkCheck, builds and signs the envelope, publishes it, and records
// the resulting message id in the Seen-Id Store so a self-relayed delivery
// is ignored at ingress. network/blockNumber/blockHash are supplied by the
// radio's own chain-head view: the agent leaves message-payload semantics
// entirely to the radio.
func (a *Agent[T]) Send(ctx context.Context, identifier string, payload T, nonce int64, network string, blockNumber uint64, blockHash string) (string, error) {
	if a.State() != StateReady {
		return "", &Error{Kind: KindState, Err: fmt.Errorf("agent: send called in state %s", a.State())}
	}

	if !a.cfg.AllowAllContentTopics {
		a.topicMu.RLock()
		allowed := a.contentTopics[identifier]
		a.topicMu.RUnlock()
		if !allowed {
			return "", &Error{Kind: KindTopicNotSubscribed, Err: fmt.Errorf("agent: %q not in configured content-topic set", identifier)}
		}
	}

	if err := a.NetworkCheck(ctx); err != nil {
		log.WithError(err).Warn("network check failed before send")
	}

	env, err := message.Build[T](a.identity, a.domain, identifier, a.cfg.GraphAccount, nonce, payload, network, blockNumber, blockHash)
	if err != nil {
		return "", &Error{Kind: KindPayloadInvalid, Err: err}
	}
	data, err := message.Encode[T](env)
	if err != nil {
		return "", &Error{Kind: KindPayloadInvalid, Err: err}
	}

	id, err := a.transport.Publish(ctx, a.pubsubTopic, identifier, data)
	if err != nil {
		return "", &Error{Kind: KindTransport, Err: err}
	}
	a.seenStore.InsertIfAbsent(id)

	log.WithFields(logrus.Fields{"identifier": identifier, "nonce": nonce, "message_id": id}).Debug("message sent")
	return id, nil
}

// UpdateContentTopics atomically replaces the content-topic set. In-flight
// signals observe either the old or new set; there is no torn state.
func (a *Agent[T]) UpdateContentTopics(ctx context.Context, subtopics []string) error {
	set := toSet(subtopics)

	if a.cfg.FilterProtocol {
		if err := a.transport.FilterSubscribe(a.pubsubTopic, subtopics); err != nil {
			return &Error{Kind: KindTransport, Err: err}
		}
	}

	a.topicMu.Lock()
	a.contentTopics = set
	a.topicMu.Unlock()
	return nil
}

// ContentTopics returns a snapshot of the currently configured content
// topic set.
func (a *Agent[T]) ContentTopics() []string {
	a.topicMu.RLock()
	defer a.topicMu.RUnlock()
	out := make([]string, 0, len(a.contentTopics))
	for t := range a.contentTopics {
		out = append(out, t)
	}
	return out
}

// NetworkCheck iterates known peers, reconnecting those that support the
// relay sub-protocol but are disconnected, and disconnecting peers that do
// not support it.
func (a *Agent[T]) NetworkCheck(ctx context.Context) error {
	var firstErr error
	for _, p := range a.transport.Peers() {
		switch {
		case p.SupportsRelay && !p.Connected:
			if err := a.transport.Connect(ctx, p.ID); err != nil && firstErr == nil {
				firstErr = &Error{Kind: KindTransport, Err: err}
			}
		case !p.SupportsRelay:
			if err := a.transport.Disconnect(p.ID); err != nil && firstErr == nil {
				firstErr = &Error{Kind: KindTransport, Err: err}
			}
		}
	}
	return firstErr
}

// PeersData returns the current peer set, for read-only observability.
func (a *Agent[T]) PeersData() []transport.PeerInfo { return a.transport.Peers() }

// ConnectedPeerCount returns the number of currently connected peers.
func (a *Agent[T]) ConnectedPeerCount() int {
	n := 0
	for _, p := range a.transport.Peers() {
		if p.Connected {
			n++
		}
	}
	return n
}

// LocalPeer returns the agent's own wallet address, the identifier other
// observability calls key off of (the concrete Transport implementation
// owns its own transport-level peer id, which is not part of the portable
// Transport interface).
func (a *Agent[T]) LocalPeer() message.Address { return a.identity.Address() }

// Stop transitions Ready -> Stopping -> Stopped: it detaches the signal
// handler, closes the transport, and closes the Ingress channel. The nonce
// and seen-id stores are not cleared; they stay reachable through the
// Agent. Stop is idempotent.
func (a *Agent[T]) Stop() error {
	var closeErr error
	a.stopOnce.Do(func() {
		a.state.Store(int32(StateStopping))
		a.transport.OnSignal(nil)
		closeErr = a.transport.Close()
		close(a.ingress)
		a.state.Store(int32(StateStopped))
		log.Info("agent stopped")
	})
	if closeErr != nil {
		return &Error{Kind: KindTransport, Err: closeErr}
	}
	return nil
}
