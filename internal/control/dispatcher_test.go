package control

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshp123/mideactl/internal/appliance"
)

func newDispatcherUnderTest(cloud *stubCloud, dialer *stubDialer, discovery *stubDiscoverer) *Dispatcher {
	resolver := NewResolver(cloud, dialer, zerolog.Nop())
	return NewDispatcher(resolver, cloud, discovery, zerolog.Nop())
}

func directSession(handle *stubHandle) (*stubCloud, *stubSession) {
	session := &stubSession{handles: map[string]*stubHandle{handle.info.Address: handle}}
	return &stubCloud{session: session}, session
}

func TestStatusReadsFreshState(t *testing.T) {
	handle := &stubHandle{
		info:  appliance.Info{Address: "10.0.0.5", ID: "44", Token: "T", Key: "K"},
		state: appliance.State{Name: "Cellar", Humidity: 61, TargetHumidity: 50, FanSpeed: appliance.FanMedium},
	}
	cloud, _ := directSession(handle)
	d := newDispatcherUnderTest(cloud, &stubDialer{}, &stubDiscoverer{})

	report, err := d.Status(context.Background(), "10.0.0.5", DirectAuth{}, CloudAuth{Account: "acc", Password: "pw"})
	require.NoError(t, err)

	assert.Equal(t, 1, handle.reads)
	assert.Equal(t, 61, report.State.Humidity)
	assert.Equal(t, "44", report.Info.ID)
}

func TestStatusTwiceIssuesTwoIndependentReads(t *testing.T) {
	dialer := &stubDialer{}
	cloud := &stubCloud{}
	d := newDispatcherUnderTest(cloud, dialer, &stubDiscoverer{})

	first, err := d.Status(context.Background(), "10.0.0.5", DirectAuth{Token: "T", Key: "K"}, CloudAuth{})
	require.NoError(t, err)
	second, err := d.Status(context.Background(), "10.0.0.5", DirectAuth{Token: "T", Key: "K"}, CloudAuth{})
	require.NoError(t, err)

	assert.Equal(t, 2, dialer.dials, "no handle reuse between commands")
	assert.Equal(t, 0, cloud.auths)
	assert.Equal(t, first.State, second.State, "same snapshot when device state did not change")
}

func TestStatusMissingCredentialsAbortsBeforeIO(t *testing.T) {
	cloud := &stubCloud{}
	dialer := &stubDialer{}
	d := newDispatcherUnderTest(cloud, dialer, &stubDiscoverer{})

	_, err := d.Status(context.Background(), "10.0.0.5", DirectAuth{}, CloudAuth{})
	require.ErrorIs(t, err, appliance.ErrMissingCredentials)
	assert.Equal(t, 0, cloud.auths)
	assert.Equal(t, 0, dialer.dials)
}

func TestStatusReadFailureYieldsNoReport(t *testing.T) {
	handle := &stubHandle{
		info:    appliance.Info{Address: "10.0.0.5"},
		state:   appliance.State{Humidity: 55},
		readErr: appliance.ErrUnreachable,
	}
	cloud, _ := directSession(handle)
	d := newDispatcherUnderTest(cloud, &stubDialer{}, &stubDiscoverer{})

	report, err := d.Status(context.Background(), "10.0.0.5", DirectAuth{}, CloudAuth{Account: "acc", Password: "pw"})
	require.ErrorIs(t, err, appliance.ErrUnreachable)
	assert.Equal(t, Report{}, report, "stale state must not leak out")
}

func TestSetAppliesOnlySuppliedFields(t *testing.T) {
	handle := &stubHandle{
		info: appliance.Info{Address: "10.0.0.5"},
		state: appliance.State{
			Name:           "Cellar",
			Humidity:       58,
			TargetHumidity: 50,
			FanSpeed:       appliance.FanSilent,
			Mode:           appliance.ModeSet,
			IonMode:        true,
			Running:        true,
		},
	}
	before := handle.state
	cloud, _ := directSession(handle)
	d := newDispatcherUnderTest(cloud, &stubDialer{}, &stubDiscoverer{})

	report, err := d.Set(context.Background(), "10.0.0.5", DirectAuth{}, CloudAuth{Account: "acc", Password: "pw"},
		appliance.Mutation{FanSpeed: intp(appliance.FanMedium)})
	require.NoError(t, err)

	assert.Equal(t, appliance.FanMedium, report.State.FanSpeed)
	assert.Equal(t, before.TargetHumidity, report.State.TargetHumidity)
	assert.Equal(t, before.Mode, report.State.Mode)
	assert.Equal(t, before.IonMode, report.State.IonMode)
	assert.Equal(t, before.Running, report.State.Running)
	assert.Equal(t, before.Humidity, report.State.Humidity)
	assert.Equal(t, []string{"apply", "read"}, handle.ops, "mutation strictly precedes the confirmation read")
}

func TestSetDirectAuthSkipsCloud(t *testing.T) {
	cloud := &stubCloud{}
	dialer := &stubDialer{}
	d := newDispatcherUnderTest(cloud, dialer, &stubDiscoverer{})

	report, err := d.Set(context.Background(), "10.0.0.5", DirectAuth{Token: "TOK", Key: "KEY"}, CloudAuth{},
		appliance.Mutation{TargetHumidity: intp(55)})
	require.NoError(t, err)

	assert.Equal(t, 0, cloud.auths)
	assert.Equal(t, 1, dialer.dials)
	assert.Equal(t, 55, report.State.TargetHumidity)
}

func TestSetResolutionFailureNeverMutates(t *testing.T) {
	handle := &stubHandle{info: appliance.Info{Address: "10.0.0.5"}}
	cloud, _ := directSession(handle)
	d := newDispatcherUnderTest(cloud, &stubDialer{}, &stubDiscoverer{})

	_, err := d.Set(context.Background(), "10.0.0.5", DirectAuth{}, CloudAuth{}, appliance.Mutation{Running: boolp(false)})
	require.ErrorIs(t, err, appliance.ErrMissingCredentials)
	assert.Equal(t, 0, handle.applies)
	assert.Equal(t, 0, cloud.auths)
}

func TestSetApplyFailureSkipsConfirmationRead(t *testing.T) {
	handle := &stubHandle{
		info:     appliance.Info{Address: "10.0.0.5"},
		applyErr: errors.New("encryption handshake failed"),
	}
	cloud, _ := directSession(handle)
	d := newDispatcherUnderTest(cloud, &stubDialer{}, &stubDiscoverer{})

	_, err := d.Set(context.Background(), "10.0.0.5", DirectAuth{}, CloudAuth{Account: "acc", Password: "pw"},
		appliance.Mutation{IonMode: boolp(true)})
	require.Error(t, err)
	assert.Equal(t, []string{"apply"}, handle.ops)
	assert.Equal(t, 0, handle.reads)
}

func TestDiscoverRequiresAccountCredentials(t *testing.T) {
	cloud := &stubCloud{}
	discovery := &stubDiscoverer{}
	d := newDispatcherUnderTest(cloud, &stubDialer{}, discovery)

	_, err := d.Discover(context.Background(), CloudAuth{}, nil)
	require.ErrorIs(t, err, appliance.ErrMissingCredentials)
	assert.Equal(t, 0, cloud.auths)
	assert.Equal(t, 0, discovery.calls)
}

func TestDiscoverEmptyNetworksMeansAllRanges(t *testing.T) {
	session := &stubSession{}
	cloud := &stubCloud{session: session}
	discovery := &stubDiscoverer{}
	d := newDispatcherUnderTest(cloud, &stubDialer{}, discovery)

	reports, err := d.Discover(context.Background(), CloudAuth{Account: "acc", Password: "pw"}, nil)
	require.NoError(t, err)

	assert.Empty(t, reports, "no appliances responding is not a failure")
	assert.Equal(t, 1, cloud.auths)
	assert.Equal(t, 1, discovery.calls)
	assert.Empty(t, discovery.networks)
	assert.Equal(t, Session(session), discovery.session, "the command's one session is handed to discovery")
}

func TestDiscoverReportsFromProbeSnapshots(t *testing.T) {
	a := &stubHandle{
		info:  appliance.Info{Address: "10.0.0.5", ID: "1"},
		state: appliance.State{Humidity: 48},
	}
	b := &stubHandle{
		info:  appliance.Info{Address: "10.0.0.6", ID: "2"},
		state: appliance.State{Humidity: 71},
	}
	cloud := &stubCloud{session: &stubSession{}}
	discovery := &stubDiscoverer{handles: []appliance.Handle{a, b}}
	d := newDispatcherUnderTest(cloud, &stubDialer{}, discovery)

	reports, err := d.Discover(context.Background(), CloudAuth{Account: "acc", Password: "pw"}, []string{"10.0.0.0/24"})
	require.NoError(t, err)

	require.Len(t, reports, 2)
	assert.Equal(t, 48, reports[0].State.Humidity)
	assert.Equal(t, 71, reports[1].State.Humidity)
	assert.Equal(t, 0, a.reads, "discovery prints the probe snapshot, no extra device reads")
	assert.Equal(t, []string{"10.0.0.0/24"}, discovery.networks)
}

func TestDiscoverAuthFailure(t *testing.T) {
	cloud := &stubCloud{authErr: errors.New("throttled")}
	discovery := &stubDiscoverer{}
	d := newDispatcherUnderTest(cloud, &stubDialer{}, discovery)

	_, err := d.Discover(context.Background(), CloudAuth{Account: "acc", Password: "pw"}, nil)

	var authErr *appliance.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, 0, discovery.calls, "discovery never runs without a session")
}
