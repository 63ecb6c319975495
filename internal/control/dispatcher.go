package control

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/joshp123/mideactl/internal/appliance"
)

// Dispatcher maps the three commands onto collaborator calls and
// normalizes what each returns. It keeps no state between commands; a
// cloud session never outlives the command that opened it.
type Dispatcher struct {
	resolver  *Resolver
	sessions  SessionProvider
	discovery Discoverer
	log       zerolog.Logger
}

func NewDispatcher(resolver *Resolver, sessions SessionProvider, discovery Discoverer, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		resolver:  resolver,
		sessions:  sessions,
		discovery: discovery,
		log:       log.With().Str("component", "dispatcher").Logger(),
	}
}

// Discover enumerates appliances on the given network ranges. The cloud
// session is mandatory because per-device keys come from the cloud
// catalog; an empty networks slice means every local range. Finding
// nothing is success with an empty result.
func (d *Dispatcher) Discover(ctx context.Context, cloud CloudAuth, networks []string) ([]Report, error) {
	if cloud.Account == "" || cloud.Password == "" {
		return nil, appliance.ErrMissingCredentials
	}

	session, err := d.sessions.Authenticate(ctx, cloud.Account, cloud.Password, cloud.AppKey, cloud.AppID)
	if err != nil {
		return nil, &appliance.AuthError{Account: cloud.Account, Err: err}
	}

	handles, err := d.discovery.Discover(ctx, session, networks)
	if err != nil {
		return nil, fmt.Errorf("discover appliances: %w", err)
	}

	reports := make([]Report, 0, len(handles))
	for _, handle := range handles {
		reports = append(reports, Report{Info: handle.Info(), State: handle.State()})
	}
	d.log.Debug().Int("count", len(reports)).Strs("networks", networks).Msg("discovery finished")
	return reports, nil
}

// Status resolves the appliance and returns a freshly read snapshot.
// Resolution strictly precedes any appliance I/O, and a failed read
// yields no report at all rather than a stale one.
func (d *Dispatcher) Status(ctx context.Context, address string, direct DirectAuth, cloud CloudAuth) (Report, error) {
	handle, err := d.resolver.Resolve(ctx, address, direct, cloud)
	if err != nil {
		return Report{}, err
	}

	state, err := handle.ReadState(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("read state of %s: %w", address, err)
	}
	return Report{Info: handle.Info(), State: state}, nil
}

// Set resolves the appliance, applies the partial mutation, then re-reads
// so the caller only ever sees device-confirmed state. A resolution
// failure means the mutation is never attempted; a mutation failure means
// no confirmation is read and no state is reported.
func (d *Dispatcher) Set(ctx context.Context, address string, direct DirectAuth, cloud CloudAuth, m appliance.Mutation) (Report, error) {
	handle, err := d.resolver.Resolve(ctx, address, direct, cloud)
	if err != nil {
		return Report{}, err
	}

	if err := handle.Apply(ctx, m); err != nil {
		return Report{}, fmt.Errorf("apply settings to %s: %w", address, err)
	}

	state, err := handle.ReadState(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("confirm settings of %s: %w", address, err)
	}
	return Report{Info: handle.Info(), State: state}, nil
}
