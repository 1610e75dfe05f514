package domain

import "errors"

var (
	// ErrNotAuthenticated is returned when a request carries no usable session.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrStaleSession is returned when a valid session points at an account that no longer exists.
	ErrStaleSession = errors.New("stale session")
	// ErrInvalidSessionToken is returned when a session token's signature or claims are invalid or it has expired.
	ErrInvalidSessionToken = errors.New("invalid session token")
)

// SessionToken is the decoded content of a session cookie.
type SessionToken struct {
	ID        string // Random token identifier
	AccountID string // Identifier of the authenticated account
	IssuedAt  int64  // Unix timestamp when the token was created
	ExpiresAt int64  // Unix timestamp when the token expires
}
