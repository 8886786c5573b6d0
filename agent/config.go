package agent

import (
	"github.com/gossipradio/agent-sdk/identity"
)

// Config is the single construction-time input record for an Agent; optional
// fields have explicit defaults applied by the accessor methods below. The
// core SDK never reads this from a file itself — only the example cmd/
// radios load configuration via pkg/config and translate it to this struct.
type Config struct {
	// Identity
	WalletKey    string
	GraphAccount string

	// Call Book
	RegistrySubgraph  string
	NetworkSubgraph   string
	GraphNodeEndpoint string

	// Validation
	IDValidation identity.Policy

	// Topics
	RadioName             string
	GraphcastNamespace    string
	Subtopics             []string
	FilterProtocol        bool
	AllowAllContentTopics bool

	// Pubsub topic construction ("/<prefix>/v<tp_ver>/<app>-v<sdk_ver>-<namespace>/proto").
	// Empty fields default to "waku", "2", and "0" respectively.
	PubsubPrefix  string
	PubsubVersion string
	SDKVersion    string

	// Transport (boot-node / discovery). The concrete Transport is
	// constructed and owned by the caller; BootNodeAddresses/Discv5ENRs are
	// listed here only for radios that build their Transport.Config from
	// this struct.
	BootNodeAddresses []string
	Discv5ENRs        []string

	// IngressBufferSize bounds the radio-facing channel: when full, the
	// signal handler drops the message and records a counter rather than
	// blocking. Defaults to 256.
	IngressBufferSize int
}

func (c Config) ingressBufferSize() int {
	if c.IngressBufferSize > 0 {
		return c.IngressBufferSize
	}
	return 256
}

func (c Config) pubsubPrefix() string {
	if c.PubsubPrefix != "" {
		return c.PubsubPrefix
	}
	return "waku"
}

func (c Config) pubsubVersion() string {
	if c.PubsubVersion != "" {
		return c.PubsubVersion
	}
	return "2"
}

func (c Config) sdkVersion() string {
	if c.SDKVersion != "" {
		return c.SDKVersion
	}
	return "0"
}
