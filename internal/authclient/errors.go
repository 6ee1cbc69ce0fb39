package authclient

import (
	"errors"
	"fmt"
)

var (
	// ErrNetworkUnavailable indicates the authentication service could
	// not be reached. Transient.
	ErrNetworkUnavailable = errors.New("authentication service unreachable")

	// ErrAuthRejected indicates the service refused the presented
	// credentials. Not retryable without new credentials.
	ErrAuthRejected = errors.New("authentication rejected")
)

// RefreshError reports a failed token refresh with the reason the
// session layer surfaces to the user. It wraps ErrAuthRejected or
// ErrNetworkUnavailable where one applies.
type RefreshError struct {
	Reason string
	Err    error
}

func (e *RefreshError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("token refresh failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("token refresh failed: %s", e.Reason)
}

func (e *RefreshError) Unwrap() error { return e.Err }
