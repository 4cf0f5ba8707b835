package auth

import "errors"

var (
	// ErrMissingToken is returned when a guarded request carries no
	// bearer token at all.
	ErrMissingToken = errors.New("auth: missing bearer token")
	// ErrInvalidToken is returned when a token cannot be validated.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrForbidden is returned when a valid token carries a role below
	// the one the route requires.
	ErrForbidden = errors.New("auth: insufficient role")
)
