package relay

import "errors"

// ErrSubmissionFailed indicates the send failed on both the original and the
// rebuilt transport. The submission is lost; there is no durable queue to
// recover it from.
var ErrSubmissionFailed = errors.New("relay: submission failed after retry")

// ValidationError reports a rejected submission. It is never retried and its
// message is surfaced verbatim to the client.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
