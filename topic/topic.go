// Package topic renders structured content-topic and pubsub-topic values
// to and from their canonical transport string forms.
package topic

import (
	"fmt"
	"strings"
)

// Encoding is the wire encoding named in a content topic's trailing
// segment.
type Encoding string

const (
	EncodingProto Encoding = "proto"
	EncodingRLP   Encoding = "rlp"
	EncodingRFC26 Encoding = "rfc26"
)

// DefaultNamespace is the pubsub-topic namespace used when the operator
// configures none.
const DefaultNamespace = "testnet"

// Content is the structured form of a content topic: application name,
// version, topic name, and encoding.
type Content struct {
	ApplicationName string
	Version         string
	TopicName       string
	Encoding        Encoding
}

// String renders the canonical "/<app>/<version>/<topic_name>/<encoding>"
// form used on the wire and for filter-subscribe matching.
func (c Content) String() string {
	return fmt.Sprintf("/%s/%s/%s/%s", c.ApplicationName, c.Version, c.TopicName, c.Encoding)
}

// ParseContent parses the canonical content-topic string form back into its
// structured fields.
func ParseContent(s string) (Content, error) {
	parts := strings.Split(strings.TrimPrefix(s, "/"), "/")
	if len(parts) != 4 {
		return Content{}, fmt.Errorf("topic: malformed content topic %q", s)
	}
	return Content{
		ApplicationName: parts[0],
		Version:         parts[1],
		TopicName:       parts[2],
		Encoding:        Encoding(parts[3]),
	}, nil
}

// Pubsub renders the canonical pubsub-topic string:
// "/<prefix>/v<tpVer>/<appName>-v<sdkVer>-<namespace>/proto". namespace
// defaults to DefaultNamespace when empty.
func Pubsub(prefix, tpVersion, appName, sdkVersion, namespace string) string {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return fmt.Sprintf("/%s/v%s/%s-v%s-%s/proto", prefix, tpVersion, appName, sdkVersion, namespace)
}
