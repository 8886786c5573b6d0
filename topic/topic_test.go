package topic_test

import (
	"testing"

	"github.com/gossipradio/agent-sdk/topic"
)

func TestContentStringRoundTrip(t *testing.T) {
	c := topic.Content{
		ApplicationName: "graphcast",
		Version:         "0",
		TopicName:       "poi-crosschecker",
		Encoding:        topic.EncodingProto,
	}
	s := c.String()
	if s != "/graphcast/0/poi-crosschecker/proto" {
		t.Fatalf("unexpected string form: %s", s)
	}

	parsed, err := topic.ParseContent(s)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed != c {
		t.Fatalf("round trip mismatch: got %+v, want %+v", parsed, c)
	}
}

func TestParseContentRejectsMalformed(t *testing.T) {
	if _, err := topic.ParseContent("/too/few/parts"); err == nil {
		t.Fatalf("expected error for malformed content topic")
	}
}

func TestPubsubDefaultsNamespace(t *testing.T) {
	got := topic.Pubsub("waku", "2", "graphcast", "0", "")
	want := "/waku/v2/graphcast-v0-testnet/proto"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestPubsubCustomNamespace(t *testing.T) {
	got := topic.Pubsub("waku", "2", "graphcast", "0", "mainnet")
	want := "/waku/v2/graphcast-v0-mainnet/proto"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
