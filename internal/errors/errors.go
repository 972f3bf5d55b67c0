package errors

import "errors"

// Client errors.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotSignedIn        = errors.New("no signed in user")
	ErrEmptyModel         = errors.New("model has no id")
	ErrLoopStopped        = errors.New("reconcile loop stopped")
	ErrNotLoaded          = errors.New("not in a loaded list")
)

// Server message errors. Each maps to one errorCode in the backend's
// error body.
var (
	ErrUnknown           = errors.New("unknown server error")
	ErrMaxStorage        = errors.New("maximum storage exceeded")
	ErrIllegalTeamMember = errors.New("illegal team member")
	ErrUnauthenticated   = errors.New("unauthenticated user")
	ErrInvalidObject     = errors.New("invalid object reference")
)

// Server/transport errors.
var (
	ErrAPIRequest  = errors.New("API request failed")
	ErrAPIResponse = errors.New("unexpected API response")
)
