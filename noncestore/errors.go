package noncestore

import "errors"

// ErrFirstSighting is returned by CheckAndUpdate for the first message seen
// from a (identifier, sender) pair. The nonce table is updated even though
// the message is rejected.
var ErrFirstSighting = errors.New("noncestore: first sighting of sender, rejecting and seeding nonce")

// ErrStaleNonce is returned when the incoming nonce does not strictly
// exceed the saved nonce for (identifier, sender).
var ErrStaleNonce = errors.New("noncestore: stale nonce")
