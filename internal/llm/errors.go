package llm

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an upstream failure at the service-call boundary so
// retry logic never has to inspect error strings.
type ErrorKind int

const (
	// KindPermanent failures are not worth retrying.
	KindPermanent ErrorKind = iota
	// KindTransient failures (rate limits, temporary unavailability) are
	// expected steady-state conditions and safe to retry.
	KindTransient
)

// UpstreamError wraps a failure from the text-completion service with its
// classification and, when known, the HTTP status that produced it.
type UpstreamError struct {
	Kind   ErrorKind
	Status int
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("upstream status %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("upstream: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a retryable upstream failure.
func IsTransient(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.Kind == KindTransient
}
