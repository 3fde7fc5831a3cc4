package models

import "errors"

// Auth and validation failures surface directly to the caller as one of
// these sentinels. Persistence and delivery failures are logged at the
// router boundary and never propagate to the sending client.
var (
	ErrDuplicateUsername  = errors.New("username already exists")
	ErrDuplicateEmail     = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrMissingToken       = errors.New("missing token")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrUnknownUser        = errors.New("unknown user")
	ErrEmptyContent       = errors.New("message content is empty")
	ErrUserNotFound       = errors.New("user not found")
)
