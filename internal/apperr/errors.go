// Package apperr defines the error taxonomy shared by the pipeline components.
package apperr

import (
	"errors"

	"go.temporal.io/sdk/temporal"
)

var (
	// ErrInvalidArgument marks malformed input: empty event ids, bad payloads.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnsupportedEvent marks an event type with no mapping.
	ErrUnsupportedEvent = errors.New("unsupported event")
	// ErrUpstreamUnavailable marks a failed network call to the external agent.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrUpstreamRejected marks a request the external agent refused outright.
	ErrUpstreamRejected = errors.New("upstream rejected")
	// ErrDeliveryExhausted marks an outbound delivery that ran out of attempts.
	ErrDeliveryExhausted = errors.New("delivery exhausted")
	// ErrNotFound marks a missing record.
	ErrNotFound = errors.New("not found")
)

// Application error types carried across the Temporal activity boundary.
const (
	TypeUpstreamUnavailable = "UpstreamUnavailable"
	TypeUpstreamRejected    = "UpstreamRejected"
	TypeDeliveryExhausted   = "DeliveryExhausted"
	TypeInvalidArgument     = "InvalidArgument"
)

// Error pairs a sentinel kind with a caller-facing message. Error() returns
// the message alone so it can be handed to webhook callers verbatim.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

// New builds an Error of the given kind.
func New(kind error, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// InvalidArgument builds an ErrInvalidArgument error.
func InvalidArgument(msg string) error {
	return New(ErrInvalidArgument, msg)
}

// UnsupportedEvent builds an ErrUnsupportedEvent error for eventType.
func UnsupportedEvent(eventType string) error {
	return New(ErrUnsupportedEvent, "unsupported event_type: "+eventType)
}

// ToApplicationError converts a domain error returned by an activity into a
// Temporal application error so workflow code can branch on its type.
func ToApplicationError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrUpstreamUnavailable):
		return temporal.NewApplicationErrorWithCause(err.Error(), TypeUpstreamUnavailable, err)
	case errors.Is(err, ErrUpstreamRejected):
		return temporal.NewNonRetryableApplicationError(err.Error(), TypeUpstreamRejected, err)
	case errors.Is(err, ErrInvalidArgument):
		return temporal.NewNonRetryableApplicationError(err.Error(), TypeInvalidArgument, err)
	default:
		return err
	}
}

// HasApplicationType reports whether err carries a Temporal application
// error of the given type anywhere in its chain.
func HasApplicationType(err error, errType string) bool {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Type() == errType
	}
	return false
}
