// Package apperrors defines the typed error taxonomy shared by every
// layer of the service. Background tasks never propagate these past
// their own goroutine; synchronous paths return them to callers, and
// the report orchestrator converts per-section failures into rendered
// SectionError markers instead of a top-level failure.
package apperrors

import "fmt"

// Kind classifies an Error for callers that need to branch on failure
// mode without string matching.
type Kind string

const (
	InvalidInput        Kind = "invalid_input"
	NotSubscribed        Kind = "not_subscribed"
	RateLimitExceeded     Kind = "rate_limit_exceeded"
	VenueUnavailable      Kind = "venue_unavailable"
	Stale                Kind = "stale"
	NeedsResync          Kind = "needs_resync"
	InsufficientData      Kind = "insufficient_data"
	StorageError         Kind = "storage_error"
	StorageLimitExceeded  Kind = "storage_limit_exceeded"
	Timeout              Kind = "timeout"
	FeatureNotEnabled     Kind = "feature_not_enabled"
)

// Error is the concrete error type carried through the system. Fields
// beyond Kind/Cause are optional and only populated by the Kind that
// needs them.
type Error struct {
	Kind     Kind
	Msg      string
	Cause    error
	Required int    // InsufficientData
	Got      int    // InsufficientData
	Name     string // FeatureNotEnabled
}

func (e *Error) Error() string {
	switch e.Kind {
	case InsufficientData:
		return fmt.Sprintf("insufficient_data: required=%d got=%d", e.Required, e.Got)
	case FeatureNotEnabled:
		return fmt.Sprintf("feature_not_enabled: %s", e.Name)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Cause)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Reason renders err using the §7 taxonomy's display names for the
// "[Data Unavailable: <reason>]" report placeholder text, e.g.
// "InsufficientData(required=1000, got=800)" or "RateLimitExceeded".
// Venue errors render as "DataSourceUnavailable" to match the
// taxonomy's venue-neutral naming in that context. An err that isn't
// one of ours renders as "DataSourceUnavailable" too, the safest
// default for an unclassified failure.
func Reason(err error) string {
	var e *Error
	if !As(err, &e) {
		return "DataSourceUnavailable"
	}
	switch e.Kind {
	case InsufficientData:
		return fmt.Sprintf("InsufficientData(required=%d, got=%d)", e.Required, e.Got)
	case FeatureNotEnabled:
		return fmt.Sprintf("FeatureNotEnabled(%s)", e.Name)
	}
	return kindDisplayName(e.Kind)
}

func kindDisplayName(k Kind) string {
	switch k {
	case InvalidInput:
		return "InvalidInput"
	case NotSubscribed:
		return "NotSubscribed"
	case RateLimitExceeded:
		return "RateLimitExceeded"
	case VenueUnavailable:
		return "DataSourceUnavailable"
	case Stale:
		return "Stale"
	case NeedsResync:
		return "NeedsResync"
	case InsufficientData:
		return "InsufficientData"
	case StorageError:
		return "StorageError"
	case StorageLimitExceeded:
		return "StorageLimitExceeded"
	case Timeout:
		return "Timeout"
	case FeatureNotEnabled:
		return "FeatureNotEnabled"
	}
	return string(k)
}

// GetKind reports the taxonomy Kind of err, or "" if err is not (or
// does not wrap) an *Error.
func GetKind(err error) Kind {
	var e *Error
	if As(err, &e) {
		return e.Kind
	}
	return ""
}

// As walks err's single-Unwrap chain and stores the first *Error it
// finds in target, the same lookup errors.As performs for this type,
// kept local so callers of this package don't need a second import
// for the common case.
func As(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

func NewInsufficientData(required, got int) *Error {
	return &Error{Kind: InsufficientData, Required: required, Got: got}
}

func NewFeatureNotEnabled(name string) *Error {
	return &Error{Kind: FeatureNotEnabled, Name: name}
}
