// Package apperr holds the sentinel errors shared by the service layers and
// mapped to HTTP statuses by the api package.
package apperr

import "errors"

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("invalid state transition")

	// authentication failures
	ErrNoChallenge       = errors.New("no outstanding challenge")
	ErrNonceMismatch     = errors.New("nonce mismatch")
	ErrMessageMismatch   = errors.New("message mismatch")
	ErrChallengeExpired  = errors.New("challenge expired")
	ErrInvalidSignature  = errors.New("invalid signature")
	ErrInvalidToken      = errors.New("invalid token")
	ErrMissingCredential = errors.New("missing credential")
)

var unauthenticated = []error{
	ErrNoChallenge,
	ErrNonceMismatch,
	ErrMessageMismatch,
	ErrChallengeExpired,
	ErrInvalidSignature,
	ErrInvalidToken,
	ErrMissingCredential,
}

// IsUnauthenticated reports whether err is one of the authentication failures.
func IsUnauthenticated(err error) bool {
	for _, target := range unauthenticated {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
