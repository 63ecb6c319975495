// Package control implements the credential-resolution and dispatch
// workflow: deciding how an appliance handle is obtained for a target
// address and routing it through discovery, state reads, and state
// writes. The network transports behind these contracts live in backends.
package control

import (
	"context"

	"github.com/joshp123/mideactl/internal/appliance"
)

// Session is an authenticated cloud context capable of resolving
// per-device secrets.
type Session interface {
	Appliance(ctx context.Context, address string) (appliance.Handle, error)
}

// SessionProvider exchanges account credentials for a Session.
type SessionProvider interface {
	Authenticate(ctx context.Context, account, password, appKey, appID string) (Session, error)
}

// Discoverer probes network ranges and returns the reachable appliances
// with credentials resolved. An empty networks slice means every local
// range; an empty result is a valid outcome, not a failure.
type Discoverer interface {
	Discover(ctx context.Context, session Session, networks []string) ([]appliance.Handle, error)
}

// HandleDialer builds a handle from explicit wire credentials without a
// session and without touching the network. The wire protocol validates
// the credentials lazily on first use.
type HandleDialer interface {
	Dial(address, token, key string) appliance.Handle
}

// DirectAuth carries an operator-supplied token/key pair. The zero value
// means none was supplied.
type DirectAuth struct {
	Token string
	Key   string
}

// CloudAuth carries cloud account credentials plus the application
// identity the cloud expects. The zero value means none was supplied.
type CloudAuth struct {
	Account  string
	Password string
	AppKey   string
	AppID    string
}

// Report pairs appliance metadata with the snapshot a command produced.
type Report struct {
	Info  appliance.Info
	State appliance.State
}
