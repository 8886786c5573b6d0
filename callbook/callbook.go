// Package callbook is a thin facade over four external HTTP/GraphQL-like
// queries used by the validation pipeline and agent startup checks: the
// registered-indexer lookup, the network (stake/allocation) subgraph, the
// chain-head block hash, and graph-node indexing statuses. Pure I/O, no
// local caching or retries — a plain net/http + encoding/json round trip
// that POSTs a {query, variables} GraphQL body.
package callbook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/gossipradio/agent-sdk/message"
)

var log = logrus.WithField("component", "callbook")

// CallBook holds the three subgraph/node endpoints an agent is configured
// with. RegistrySubgraph and NetworkSubgraph are optional; operations that
// need an unset endpoint fail with a Configuration-kind QueryError.
type CallBook struct {
	RegistrySubgraph  string
	NetworkSubgraph   string
	GraphNodeEndpoint string

	HTTPClient *http.Client
}

// New builds a CallBook with a default http.Client.
func New(registrySubgraph, networkSubgraph, graphNodeEndpoint string) *CallBook {
	return &CallBook{
		RegistrySubgraph:  registrySubgraph,
		NetworkSubgraph:   networkSubgraph,
		GraphNodeEndpoint: graphNodeEndpoint,
		HTTPClient:        http.DefaultClient,
	}
}

// Account is the on-chain account identity returned by RegisteredIndexer.
type Account struct {
	ID string
}

// Allocation is an on-chain record that an account is actively working on a
// given subject.
type Allocation struct {
	SubgraphDeployment string
}

// NetworkStatus is the stake/allocation view of an account returned by
// NetworkSubgraph.
type NetworkStatus struct {
	StakedTokens   string // arbitrary-precision integer, base-10 string (wei-like units)
	Allocations    []Allocation
	MinimumStake   string // arbitrary-precision integer, base-10 string, same unit as StakedTokens
}

// IndexingStatus is one entry of the indexing-statuses response.
type IndexingStatus struct {
	SubgraphDeployment string
	Synced             bool
	Health             string
}

func (c *CallBook) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

func (c *CallBook) post(ctx context.Context, endpoint string, req gqlRequest, out any) error {
	if endpoint == "" {
		return &QueryError{Kind: KindConfiguration, Err: fmt.Errorf("callbook: endpoint not configured")}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return &QueryError{Kind: KindMalformed, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return &QueryError{Kind: KindTransient, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client().Do(httpReq)
	if err != nil {
		return &QueryError{Kind: KindTransient, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return &QueryError{Kind: KindTransient, Err: fmt.Errorf("callbook: upstream status %d", resp.StatusCode)}
	}
	if resp.StatusCode >= 400 {
		return &QueryError{Kind: KindMalformed, Err: fmt.Errorf("callbook: upstream status %d", resp.StatusCode)}
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return &QueryError{Kind: KindMalformed, Err: err}
	}
	if len(envelope.Errors) > 0 {
		return &QueryError{Kind: KindIndexing, Err: fmt.Errorf("callbook: %s", envelope.Errors[0].Message)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return &QueryError{Kind: KindMalformed, Err: err}
	}
	return nil
}

// RegisteredIndexer maps an operator wallet to its on-chain account,
// failing with ErrNotRegistered if there is no mapping.
func (c *CallBook) RegisteredIndexer(ctx context.Context, wallet message.Address) (Account, error) {
	log.WithField("wallet", wallet.Hex()).Debug("querying registered indexer")

	var resp struct {
		Indexer *struct {
			ID string `json:"id"`
		} `json:"indexer"`
	}
	req := gqlRequest{
		Query:     `query($id: ID!) { indexer(id: $id) { id } }`,
		Variables: map[string]any{"id": wallet.Hex()},
	}
	if err := c.post(ctx, c.RegistrySubgraph, req, &resp); err != nil {
		return Account{}, err
	}
	if resp.Indexer == nil {
		return Account{}, &QueryError{Kind: KindNotRegistered, Err: fmt.Errorf("callbook: %s has no registered indexer", wallet)}
	}
	return Account{ID: resp.Indexer.ID}, nil
}

// NetworkSubgraph returns stake, active allocations, and the network's
// minimum-stake threshold for an account.
func (c *CallBook) NetworkSubgraph(ctx context.Context, account Account) (NetworkStatus, error) {
	log.WithField("account", account.ID).Debug("querying network subgraph")

	var resp struct {
		Indexer *struct {
			StakedTokens string `json:"stakedTokens"`
			Allocations  []struct {
				SubgraphDeployment struct {
					ID string `json:"id"`
				} `json:"subgraphDeployment"`
			} `json:"allocations"`
		} `json:"indexer"`
		GraphNetwork *struct {
			MinimumIndexerStake string `json:"minimumIndexerStake"`
		} `json:"graphNetwork"`
	}
	req := gqlRequest{
		Query: `query($id: ID!) {
			indexer(id: $id) { stakedTokens allocations(where: {status: Active}) { subgraphDeployment { id } } }
			graphNetwork(id: "1") { minimumIndexerStake }
		}`,
		Variables: map[string]any{"id": account.ID},
	}
	if err := c.post(ctx, c.NetworkSubgraph, req, &resp); err != nil {
		return NetworkStatus{}, err
	}
	if resp.Indexer == nil {
		return NetworkStatus{}, &QueryError{Kind: KindIndexing, Err: fmt.Errorf("callbook: %s not found in network subgraph", account.ID)}
	}

	out := NetworkStatus{StakedTokens: resp.Indexer.StakedTokens}
	for _, a := range resp.Indexer.Allocations {
		out.Allocations = append(out.Allocations, Allocation{SubgraphDeployment: a.SubgraphDeployment.ID})
	}
	if resp.GraphNetwork != nil {
		out.MinimumStake = resp.GraphNetwork.MinimumIndexerStake
	}
	return out, nil
}

// BlockHash is the single source of truth for the validation pipeline's
// hash-agreement check: the canonical block hash for (network, blockNumber)
// from a trusted graph-node endpoint.
func (c *CallBook) BlockHash(ctx context.Context, network string, blockNumber uint64) (string, error) {
	log.WithFields(logrus.Fields{"network": network, "block_number": blockNumber}).Debug("querying block hash")

	var resp struct {
		Block struct {
			Hash string `json:"hash"`
		} `json:"block"`
	}
	req := gqlRequest{
		Query:     `query($network: String!, $blockNumber: Int!) { block(network: $network, number: $blockNumber) { hash } }`,
		Variables: map[string]any{"network": network, "blockNumber": blockNumber},
	}
	if err := c.post(ctx, c.GraphNodeEndpoint, req, &resp); err != nil {
		return "", err
	}
	if resp.Block.Hash == "" {
		return "", &QueryError{Kind: KindIndexing, Err: fmt.Errorf("callbook: no block hash for %s@%d", network, blockNumber)}
	}
	return resp.Block.Hash, nil
}

// IndexingStatuses is used at agent startup to validate that the graph-node
// endpoint is functional.
func (c *CallBook) IndexingStatuses(ctx context.Context) ([]IndexingStatus, error) {
	log.Debug("querying indexing statuses")

	var resp struct {
		IndexingStatuses []struct {
			SubgraphDeployment string `json:"subgraphDeployment"`
			Synced             bool   `json:"synced"`
			Health             string `json:"health"`
		} `json:"indexingStatuses"`
	}
	req := gqlRequest{Query: `{ indexingStatuses { subgraphDeployment synced health } }`}
	if err := c.post(ctx, c.GraphNodeEndpoint, req, &resp); err != nil {
		return nil, err
	}

	out := make([]IndexingStatus, 0, len(resp.IndexingStatuses))
	for _, s := range resp.IndexingStatuses {
		out = append(out, IndexingStatus{SubgraphDeployment: s.SubgraphDeployment, Synced: s.Synced, Health: s.Health})
	}
	return out, nil
}
