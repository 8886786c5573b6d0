package libp2p

import "testing"

func TestEncodeDecodeEnvelopeRoundTrip(t *testing.T) {
	raw := encodeEnvelope("ping-pong-content-topic", []byte("payload-bytes"))
	gotTopic, gotData, err := decodeEnvelope(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if gotTopic != "ping-pong-content-topic" || string(gotData) != "payload-bytes" {
		t.Fatalf("round trip mismatch: topic=%q data=%q", gotTopic, gotData)
	}
}

func TestDecodeEnvelopeRejectsTruncated(t *testing.T) {
	if _, _, err := decodeEnvelope([]byte{0x00}); err == nil {
		t.Fatalf("expected error for truncated header")
	}
	if _, _, err := decodeEnvelope([]byte{0x00, 0x05, 'a'}); err == nil {
		t.Fatalf("expected error for truncated content topic")
	}
}
