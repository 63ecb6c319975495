// Package sim runs an in-process dehumidifier fleet behind the control
// collaborator contracts. It stands in for the real discovery, cloud,
// and wire transports so the binaries run end to end and tests can count
// every collaborator call.
package sim

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"sync"

	"github.com/joshp123/mideactl/internal/appliance"
	"github.com/joshp123/mideactl/internal/control"
)

// Counters observes collaborator traffic. Tests use it to prove which
// paths a command exercised.
type Counters struct {
	CloudAuths   int
	CloudLookups int
	Discoveries  int
	Dials        int
	Reads        int
	Applies      int
}

type device struct {
	host    string
	port    int
	id      string
	serial  string
	model   string
	ssid    string
	token   string
	key     string
	offline bool
	state   appliance.State
}

func (d *device) address() string {
	return net.JoinHostPort(d.host, strconv.Itoa(d.port))
}

func (d *device) info(online bool) appliance.Info {
	return appliance.Info{
		Address:      d.address(),
		ID:           d.id,
		SerialNumber: d.serial,
		Model:        d.model,
		SSID:         d.ssid,
		Token:        d.token,
		Key:          d.key,
		Online:       online,
	}
}

// Fleet is the simulated world. It implements control.SessionProvider,
// control.Discoverer, and control.HandleDialer and is safe for
// concurrent use.
type Fleet struct {
	mu       sync.Mutex
	accounts map[string]string
	devices  map[string]*device
	counters Counters
}

// New builds a fleet from a validated fixture.
func New(fx Fixture) (*Fleet, error) {
	if err := fx.validate(); err != nil {
		return nil, err
	}

	f := &Fleet{
		accounts: make(map[string]string, len(fx.Accounts)),
		devices:  make(map[string]*device, len(fx.Appliances)),
	}
	for _, acc := range fx.Accounts {
		f.accounts[acc.Account] = acc.Password
	}
	for _, a := range fx.Appliances {
		port := a.Port
		if port == 0 {
			port = defaultPort
		}
		f.devices[a.Address] = &device{
			host:    a.Address,
			port:    port,
			id:      a.ID,
			serial:  a.SerialNumber,
			model:   a.Model,
			ssid:    a.SSID,
			token:   a.Token,
			key:     a.Key,
			offline: a.Offline,
			state:   a.State.state(),
		}
	}
	return f, nil
}

// Load builds a fleet from a fixture file.
func Load(path string) (*Fleet, error) {
	fx, err := LoadFixture(path)
	if err != nil {
		return nil, err
	}
	return New(fx)
}

// Counters returns a copy of the collaborator call counters.
func (f *Fleet) Counters() Counters {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counters
}

// SetOffline flips a device's reachability mid-run, the way a device
// drops off the LAN between polls.
func (f *Fleet) SetOffline(address string, offline bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	dev, ok := f.devices[address]
	if !ok {
		return fmt.Errorf("no appliance at %s", address)
	}
	dev.offline = offline
	return nil
}

// Authenticate implements control.SessionProvider. The application
// identity is checked the way the real cloud checks request signatures:
// an empty app key or id is rejected outright.
func (f *Fleet) Authenticate(_ context.Context, account, password, appKey, appID string) (control.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters.CloudAuths++

	if appKey == "" || appID == "" {
		return nil, errors.New("app key and app id are required")
	}
	want, ok := f.accounts[account]
	if !ok || want != password {
		return nil, errors.New("unknown account or wrong password")
	}
	return &session{fleet: f}, nil
}

type session struct {
	fleet *Fleet
}

// Appliance resolves the cloud catalog entry for an address and returns
// a fully credentialed handle. No device I/O happens here.
func (s *session) Appliance(_ context.Context, address string) (appliance.Handle, error) {
	f := s.fleet
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters.CloudLookups++

	dev, ok := f.devices[hostOf(address)]
	if !ok {
		return nil, fmt.Errorf("appliance %s is not registered to this account", address)
	}
	return &handle{
		fleet: f,
		host:  dev.host,
		token: dev.token,
		key:   dev.key,
		known: dev.info(!dev.offline),
	}, nil
}

// Discover implements control.Discoverer. Ranges are CIDR prefixes; an
// empty slice probes everything. Offline appliances simply do not
// answer. Returned handles carry the snapshot taken during the probe.
func (f *Fleet) Discover(_ context.Context, sess control.Session, networks []string) ([]appliance.Handle, error) {
	if sess == nil {
		return nil, errors.New("discovery requires a cloud session")
	}
	if own, ok := sess.(*session); !ok || own.fleet != f {
		return nil, errors.New("session does not belong to this cloud")
	}

	ranges, err := parseRanges(networks)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters.Discoveries++

	var found []*handle
	for _, dev := range f.devices {
		if dev.offline {
			continue
		}
		if len(ranges) > 0 && !ranges.contains(dev.host) {
			continue
		}
		found = append(found, &handle{
			fleet: f,
			host:  dev.host,
			token: dev.token,
			key:   dev.key,
			known: dev.info(true),
			last:  dev.state,
		})
	}
	sort.Slice(found, func(i, j int) bool {
		return found[i].known.Address < found[j].known.Address
	})

	out := make([]appliance.Handle, len(found))
	for i, h := range found {
		out[i] = h
	}
	return out, nil
}

// Dial implements control.HandleDialer. It never touches the fleet
// state: wrong credentials or a dead address only surface on first use,
// like the real wire protocol.
func (f *Fleet) Dial(address, token, key string) appliance.Handle {
	f.mu.Lock()
	f.counters.Dials++
	f.mu.Unlock()

	return &handle{
		fleet: f,
		host:  hostOf(address),
		token: token,
		key:   key,
		known: appliance.Info{Address: address, Token: token, Key: key},
	}
}

type cidrRanges []*net.IPNet

func parseRanges(networks []string) (cidrRanges, error) {
	out := make(cidrRanges, 0, len(networks))
	for _, network := range networks {
		_, ipnet, err := net.ParseCIDR(network)
		if err != nil {
			return nil, fmt.Errorf("invalid network range %q: %w", network, err)
		}
		out = append(out, ipnet)
	}
	return out, nil
}

func (r cidrRanges) contains(host string) bool {
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	for _, ipnet := range r {
		if ipnet.Contains(ip) {
			return true
		}
	}
	return false
}

func hostOf(address string) string {
	if host, _, err := net.SplitHostPort(address); err == nil {
		return host
	}
	return address
}
