package identity

// Policy is one of the six identity-authorization policies an agent is
// configured with at construction time. The policy is fixed for the
// agent's lifetime.
type Policy int

const (
	// NoCheck accepts any signature that parses.
	NoCheck Policy = iota
	// ValidAddress accepts any syntactically valid address.
	ValidAddress
	// GraphcastRegistered requires the sender to appear in the registry as
	// an operator of some account.
	GraphcastRegistered
	// GraphNetworkAccount requires the sender's address to itself be a
	// graph account.
	GraphNetworkAccount
	// RegisteredIndexer requires a registered operator whose account's
	// stake meets the minimum.
	RegisteredIndexer
	// Indexer accepts either a registered operator or a direct graph
	// account, with stake meeting the minimum either way.
	Indexer
)

func (p Policy) String() string {
	switch p {
	case NoCheck:
		return "no_check"
	case ValidAddress:
		return "valid_address"
	case GraphcastRegistered:
		return "graphcast_registered"
	case GraphNetworkAccount:
		return "graph_network_account"
	case RegisteredIndexer:
		return "registered_indexer"
	case Indexer:
		return "indexer"
	default:
		return "unknown"
	}
}

// ParsePolicy maps a configuration string (as found in agent.Config /
// pkg/config) to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "no_check":
		return NoCheck, nil
	case "valid_address":
		return ValidAddress, nil
	case "graphcast_registered":
		return GraphcastRegistered, nil
	case "graph_network_account":
		return GraphNetworkAccount, nil
	case "registered_indexer":
		return RegisteredIndexer, nil
	case "indexer":
		return Indexer, nil
	default:
		return 0, &Error{Kind: KindConfiguration, Err: errUnknownPolicy(s)}
	}
}

type errUnknownPolicy string

func (e errUnknownPolicy) Error() string { return "identity: unknown policy " + string(e) }
