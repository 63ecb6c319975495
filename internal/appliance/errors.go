package appliance

import (
	"errors"
	"fmt"
)

// ErrMissingCredentials means neither a usable token nor a usable
// account/password pair was supplied. It is raised before any network
// call and is never retried.
var ErrMissingCredentials = errors.New("missing appliance token/key or cloud account credentials")

// ErrUnreachable marks a device that did not answer on the wire.
var ErrUnreachable = errors.New("appliance unreachable")

// AuthError reports a failed cloud sign-in.
type AuthError struct {
	Account string
	Err     error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("cloud sign-in for %s: %v", e.Account, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}
