package platform

import (
	"errors"
	"fmt"

	"github.com/okian/codeboard/internal/domain/model"
)

// ErrorKind classifies adapter failures.
type ErrorKind int

// Error kinds.
const (
	// KindTransient covers timeouts, 5xx/429, malformed payloads and other
	// upstream anomalies. Only this kind is retried.
	KindTransient ErrorKind = iota
	// KindInvalidUsername is an empty or malformed username.
	KindInvalidUsername
	// KindNotFound means the profile does not exist upstream.
	KindNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindInvalidUsername:
		return "invalid_username"
	case KindNotFound:
		return "not_found"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// FetchError is returned by every adapter.
type FetchError struct {
	Kind     ErrorKind
	Platform model.Platform
	Username string
	Err      error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s fetch %q: %s", e.Platform, e.Username, e.Kind)
	}
	return fmt.Sprintf("%s fetch %q: %s: %v", e.Platform, e.Username, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Retryable reports whether the failure may succeed on a later attempt.
func (e *FetchError) Retryable() bool { return e.Kind == KindTransient }

// Sentinel causes wrapped by FetchError.
var (
	ErrEmptyUsername     = errors.New("username is empty")
	ErrMalformedUsername = errors.New("username does not match platform pattern")
	ErrProfileNotFound   = errors.New("profile not found")
	ErrUpstreamStatus    = errors.New("unexpected upstream status")
	ErrMalformedPayload  = errors.New("malformed upstream payload")
)

func transient(p model.Platform, user string, err error) *FetchError {
	return &FetchError{Kind: KindTransient, Platform: p, Username: user, Err: err}
}

func notFound(p model.Platform, user string) *FetchError {
	return &FetchError{Kind: KindNotFound, Platform: p, Username: user, Err: ErrProfileNotFound}
}

func invalidUsername(p model.Platform, user string, err error) *FetchError {
	return &FetchError{Kind: KindInvalidUsername, Platform: p, Username: user, Err: err}
}

// KindOf extracts the kind of err. Errors that are not a FetchError are
// treated as transient.
func KindOf(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindTransient
}

// IsRetryable reports whether err is a retryable adapter failure.
func IsRetryable(err error) bool { return KindOf(err) == KindTransient }
