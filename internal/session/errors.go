package session

import "errors"

var (
	// ErrNoActiveSession indicates no identity is logged in.
	ErrNoActiveSession = errors.New("no active session, please log in")

	// ErrUnknownIdentity indicates the named identity has no stored
	// record.
	ErrUnknownIdentity = errors.New("unknown identity")

	// ErrSessionExpired indicates the access token is stale and the
	// refresh token was rejected; only a new login can recover.
	ErrSessionExpired = errors.New("session expired, please log in again")
)
