package callbook_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gossipradio/agent-sdk/callbook"
	"github.com/gossipradio/agent-sdk/message"
)

func jsonServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRegisteredIndexerNotRegistered(t *testing.T) {
	srv := jsonServer(t, `{"data": {"indexer": null}}`)
	cb := callbook.New(srv.URL, "", "")

	addr, _ := message.ParseAddress("0x1111111111111111111111111111111111111111")
	_, err := cb.RegisteredIndexer(context.Background(), addr)
	if !callbook.IsNotRegistered(err) {
		t.Fatalf("expected NotRegistered, got %v", err)
	}
}

func TestRegisteredIndexerFound(t *testing.T) {
	srv := jsonServer(t, `{"data": {"indexer": {"id": "0xabc"}}}`)
	cb := callbook.New(srv.URL, "", "")

	addr, _ := message.ParseAddress("0x1111111111111111111111111111111111111111")
	acct, err := cb.RegisteredIndexer(context.Background(), addr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acct.ID != "0xabc" {
		t.Fatalf("got %q, want 0xabc", acct.ID)
	}
}

func TestBlockHashUpstream5xxIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	cb := callbook.New("", "", srv.URL)

	_, err := cb.BlockHash(context.Background(), "mainnet", 1)
	qe, ok := err.(*callbook.QueryError)
	if !ok {
		t.Fatalf("expected *callbook.QueryError, got %T", err)
	}
	if qe.Kind != callbook.KindTransient {
		t.Fatalf("expected transient kind, got %v", qe.Kind)
	}
}

func TestBlockHashMissingEndpointIsConfigurationError(t *testing.T) {
	cb := callbook.New("", "", "")
	_, err := cb.BlockHash(context.Background(), "mainnet", 1)
	qe, ok := err.(*callbook.QueryError)
	if !ok || qe.Kind != callbook.KindConfiguration {
		t.Fatalf("expected configuration QueryError, got %v", err)
	}
}

func TestIndexingStatuses(t *testing.T) {
	body, _ := json.Marshal(map[string]any{
		"data": map[string]any{
			"indexingStatuses": []map[string]any{
				{"subgraphDeployment": "Qm1", "synced": true, "health": "healthy"},
			},
		},
	})
	srv := jsonServer(t, string(body))
	cb := callbook.New("", "", srv.URL)

	statuses, err := cb.IndexingStatuses(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(statuses) != 1 || statuses[0].SubgraphDeployment != "Qm1" {
		t.Fatalf("unexpected statuses: %+v", statuses)
	}
}
