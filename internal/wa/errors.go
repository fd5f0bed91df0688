package wa

import "errors"

// Transport errors surfaced to the send path. Both are retryable by
// re-issuing the send; neither is resolved by the daemon on its own.
var (
	ErrNotConnected   = errors.New("session not connected")
	ErrRemoteRejected = errors.New("remote rejected message")
)
