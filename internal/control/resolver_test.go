package control

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshp123/mideactl/internal/appliance"
)

type stubHandle struct {
	info     appliance.Info
	state    appliance.State
	readErr  error
	applyErr error
	reads    int
	applies  int
	ops      []string
}

func (h *stubHandle) Info() appliance.Info   { return h.info }
func (h *stubHandle) State() appliance.State { return h.state }

func (h *stubHandle) ReadState(context.Context) (appliance.State, error) {
	h.reads++
	h.ops = append(h.ops, "read")
	if h.readErr != nil {
		return appliance.State{}, h.readErr
	}
	return h.state, nil
}

func (h *stubHandle) Apply(_ context.Context, m appliance.Mutation) error {
	h.applies++
	h.ops = append(h.ops, "apply")
	if h.applyErr != nil {
		return h.applyErr
	}
	if m.TargetHumidity != nil {
		h.state.TargetHumidity = *m.TargetHumidity
	}
	if m.FanSpeed != nil {
		h.state.FanSpeed = *m.FanSpeed
	}
	if m.Mode != nil {
		h.state.Mode = *m.Mode
	}
	if m.IonMode != nil {
		h.state.IonMode = *m.IonMode
	}
	if m.Running != nil {
		h.state.Running = *m.Running
	}
	return nil
}

type stubSession struct {
	handles map[string]*stubHandle
	lookups int
}

func (s *stubSession) Appliance(_ context.Context, address string) (appliance.Handle, error) {
	s.lookups++
	handle, ok := s.handles[address]
	if !ok {
		return nil, fmt.Errorf("no appliance registered for %s", address)
	}
	return handle, nil
}

type stubCloud struct {
	session *stubSession
	authErr error
	auths   int

	account  string
	password string
	appKey   string
	appID    string
}

func (c *stubCloud) Authenticate(_ context.Context, account, password, appKey, appID string) (Session, error) {
	c.auths++
	c.account, c.password, c.appKey, c.appID = account, password, appKey, appID
	if c.authErr != nil {
		return nil, c.authErr
	}
	return c.session, nil
}

type stubDialer struct {
	dials int
	last  struct{ address, token, key string }
}

func (d *stubDialer) Dial(address, token, key string) appliance.Handle {
	d.dials++
	d.last.address, d.last.token, d.last.key = address, token, key
	return &stubHandle{info: appliance.Info{Address: address, Token: token, Key: key}}
}

type stubDiscoverer struct {
	calls    int
	session  Session
	networks []string
	handles  []appliance.Handle
	err      error
}

func (s *stubDiscoverer) Discover(_ context.Context, session Session, networks []string) ([]appliance.Handle, error) {
	s.calls++
	s.session = session
	s.networks = networks
	if s.err != nil {
		return nil, s.err
	}
	return s.handles, nil
}

func intp(v int) *int    { return &v }
func boolp(v bool) *bool { return &v }

func newResolverUnderTest(cloud *stubCloud, dialer *stubDialer) *Resolver {
	return NewResolver(cloud, dialer, zerolog.Nop())
}

func TestResolveDirectPathSkipsCloud(t *testing.T) {
	cloud := &stubCloud{session: &stubSession{}}
	dialer := &stubDialer{}
	resolver := newResolverUnderTest(cloud, dialer)

	handle, err := resolver.Resolve(context.Background(), "10.0.0.5", DirectAuth{Token: "TOK", Key: "KEY"}, CloudAuth{})
	require.NoError(t, err)

	assert.Equal(t, 0, cloud.auths, "direct auth must not touch the cloud")
	assert.Equal(t, 1, dialer.dials)
	assert.Equal(t, "10.0.0.5", dialer.last.address)
	assert.Equal(t, "TOK", dialer.last.token)
	assert.Equal(t, "KEY", dialer.last.key)
	assert.Equal(t, "10.0.0.5", handle.Info().Address)
}

func TestResolveCloudPath(t *testing.T) {
	target := &stubHandle{info: appliance.Info{Address: "10.0.0.5", Token: "cloud-token", Key: "cloud-key"}}
	session := &stubSession{handles: map[string]*stubHandle{"10.0.0.5": target}}
	cloud := &stubCloud{session: session}
	dialer := &stubDialer{}
	resolver := newResolverUnderTest(cloud, dialer)

	handle, err := resolver.Resolve(context.Background(), "10.0.0.5", DirectAuth{}, CloudAuth{
		Account:  "user@example.com",
		Password: "pw",
		AppKey:   "app-key",
		AppID:    "1017",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, cloud.auths, "exactly one cloud authentication")
	assert.Equal(t, 0, dialer.dials)
	assert.Equal(t, 1, session.lookups)
	assert.Equal(t, "user@example.com", cloud.account)
	assert.Equal(t, "app-key", cloud.appKey)
	assert.Equal(t, "1017", cloud.appID)
	assert.Equal(t, "cloud-token", handle.Info().Token)
}

func TestResolveKeyWithoutTokenFallsBackToCloud(t *testing.T) {
	target := &stubHandle{info: appliance.Info{Address: "10.0.0.5"}}
	session := &stubSession{handles: map[string]*stubHandle{"10.0.0.5": target}}
	cloud := &stubCloud{session: session}
	dialer := &stubDialer{}
	resolver := newResolverUnderTest(cloud, dialer)

	_, err := resolver.Resolve(context.Background(), "10.0.0.5", DirectAuth{Key: "KEY"}, CloudAuth{Account: "acc", Password: "pw"})
	require.NoError(t, err)

	assert.Equal(t, 0, dialer.dials, "a key alone is not direct auth")
	assert.Equal(t, 1, cloud.auths)
}

func TestResolveMissingCredentials(t *testing.T) {
	cloud := &stubCloud{session: &stubSession{}}
	dialer := &stubDialer{}
	resolver := newResolverUnderTest(cloud, dialer)

	_, err := resolver.Resolve(context.Background(), "10.0.0.5", DirectAuth{}, CloudAuth{})
	require.ErrorIs(t, err, appliance.ErrMissingCredentials)

	assert.Equal(t, 0, cloud.auths, "no network call before failing")
	assert.Equal(t, 0, dialer.dials)
}

func TestResolvePasswordAloneIsMissingCredentials(t *testing.T) {
	cloud := &stubCloud{session: &stubSession{}}
	resolver := newResolverUnderTest(cloud, &stubDialer{})

	_, err := resolver.Resolve(context.Background(), "10.0.0.5", DirectAuth{}, CloudAuth{Password: "pw"})
	require.ErrorIs(t, err, appliance.ErrMissingCredentials)
	assert.Equal(t, 0, cloud.auths)
}

func TestResolveEmptyAddress(t *testing.T) {
	cloud := &stubCloud{session: &stubSession{}}
	dialer := &stubDialer{}
	resolver := newResolverUnderTest(cloud, dialer)

	_, err := resolver.Resolve(context.Background(), "", DirectAuth{Token: "TOK"}, CloudAuth{})
	require.Error(t, err)
	assert.Equal(t, 0, dialer.dials)
	assert.Equal(t, 0, cloud.auths)
}

func TestResolveAuthFailure(t *testing.T) {
	cause := errors.New("invalid password")
	cloud := &stubCloud{authErr: cause}
	resolver := newResolverUnderTest(cloud, &stubDialer{})

	_, err := resolver.Resolve(context.Background(), "10.0.0.5", DirectAuth{}, CloudAuth{Account: "acc", Password: "bad"})
	require.Error(t, err)

	var authErr *appliance.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "acc", authErr.Account)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 1, cloud.auths, "auth is attempted once, never retried")
}

func TestResolveUnknownApplianceViaCloud(t *testing.T) {
	session := &stubSession{handles: map[string]*stubHandle{}}
	cloud := &stubCloud{session: session}
	resolver := newResolverUnderTest(cloud, &stubDialer{})

	_, err := resolver.Resolve(context.Background(), "10.9.9.9", DirectAuth{}, CloudAuth{Account: "acc", Password: "pw"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "10.9.9.9")
	assert.Equal(t, 1, session.lookups)
}
