package llm

import "errors"

// Kind classifies a Port error for retry and disposition purposes. It
// deliberately mirrors a closed set rather than a type hierarchy: workers
// and the dispatcher switch on Kind, never on concrete error types.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindRateLimited Kind = "rate_limited"
	KindTimeout     Kind = "timeout"
	KindTransient   Kind = "transient"
	KindPermanent   Kind = "permanent"
)

// Retryable reports whether a Kind should be retried by with_retry/the
// dispatcher, per the error taxonomy.
func (k Kind) Retryable() bool {
	switch k {
	case KindRateLimited, KindTimeout, KindTransient:
		return true
	default:
		return false
	}
}

// Error is a classified Port failure. Workers and the rate limiter's retry
// helper unwrap to find it via errors.As.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether e's Kind should be retried, satisfying
// dispatcher.RetryableError.
func (e *Error) Retryable() bool { return e.Kind.Retryable() }

// NewError wraps err with the given Kind.
func NewError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// ClassifyForRetry is the ErrClassifier passed to ratelimit.Limiter.WithRetry:
// an error is retryable exactly when it is a *Error whose Kind is retryable,
// or an unclassified error from below the Port (treated as transient so a
// single flaky network call doesn't fail the job outright).
func ClassifyForRetry(err error) bool {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind.Retryable()
	}
	return true
}
