package control

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/joshp123/mideactl/internal/appliance"
)

// Resolver turns a target address plus whatever credentials the operator
// supplied into a single authenticated appliance handle.
type Resolver struct {
	sessions SessionProvider
	dialer   HandleDialer
	log      zerolog.Logger
}

func NewResolver(sessions SessionProvider, dialer HandleDialer, log zerolog.Logger) *Resolver {
	return &Resolver{
		sessions: sessions,
		dialer:   dialer,
		log:      log.With().Str("component", "resolver").Logger(),
	}
}

// Resolve produces a handle for address. A non-empty token selects the
// direct path and no network traffic happens at all; a key alone is not
// enough. Otherwise account and password buy exactly one cloud session,
// which resolves the handle. When neither path is usable the request
// fails with appliance.ErrMissingCredentials before anything is dialed.
func (r *Resolver) Resolve(ctx context.Context, address string, direct DirectAuth, cloud CloudAuth) (appliance.Handle, error) {
	if address == "" {
		return nil, errors.New("appliance address is required")
	}

	if direct.Token != "" {
		r.log.Debug().Str("address", address).Msg("using supplied token/key")
		return r.dialer.Dial(address, direct.Token, direct.Key), nil
	}

	if cloud.Account == "" || cloud.Password == "" {
		return nil, appliance.ErrMissingCredentials
	}

	r.log.Debug().Str("address", address).Str("account", cloud.Account).Msg("resolving credentials via cloud")
	session, err := r.sessions.Authenticate(ctx, cloud.Account, cloud.Password, cloud.AppKey, cloud.AppID)
	if err != nil {
		return nil, &appliance.AuthError{Account: cloud.Account, Err: err}
	}

	handle, err := session.Appliance(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("resolve %s via cloud: %w", address, err)
	}
	return handle, nil
}
