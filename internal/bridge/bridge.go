// Package bridge polls a configured dehumidifier fleet and republishes
// its state for a home-automation stack: JSON snapshots and availability
// over MQTT, gauges for Prometheus. Every tick is an independent
// resolve-then-read cycle; no cloud session survives from one tick to
// the next.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/joshp123/mideactl/internal/appliance"
	"github.com/joshp123/mideactl/internal/backend"
	"github.com/joshp123/mideactl/internal/config"
	"github.com/joshp123/mideactl/internal/control"
	"github.com/joshp123/mideactl/internal/credfile"
	"github.com/joshp123/mideactl/internal/rate"
)

// Bridge runs the poll loop.
type Bridge struct {
	cfg      config.BridgeConfig
	cloud    config.CloudConfig
	backends backend.Set
	guard    *rate.Guard
	pub      Publisher
	metrics  *Metrics
	log      zerolog.Logger

	// last identity learned per address, so failed polls report on the
	// same topic and metric series as the successful ones before them.
	// Only the Run loop touches it.
	seen map[string]appliance.Info
}

func New(cfg *config.Config, set backend.Set, pub Publisher, guard *rate.Guard, metrics *Metrics, log zerolog.Logger) *Bridge {
	return &Bridge{
		cfg:      cfg.Bridge,
		cloud:    cfg.Cloud,
		backends: set,
		guard:    guard,
		pub:      pub,
		metrics:  metrics,
		log:      log.With().Str("component", "bridge").Logger(),
		seen:     make(map[string]appliance.Info),
	}
}

// Run polls until the context is cancelled, then announces the bridge
// offline and returns.
func (b *Bridge) Run(ctx context.Context) error {
	if err := b.pub.Publish(b.topic("bridge", "availability"), []byte("online"), true); err != nil {
		return fmt.Errorf("announce bridge online: %w", err)
	}

	interval := time.Duration(b.cfg.PollIntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	b.Tick(ctx, time.Now())
	for {
		select {
		case <-ctx.Done():
			if err := b.pub.Publish(b.topic("bridge", "availability"), []byte("offline"), true); err != nil {
				b.log.Warn().Err(err).Msg("announce bridge offline")
			}
			return nil
		case now := <-ticker.C:
			b.Tick(ctx, now)
		}
	}
}

// Tick runs one full poll cycle: at most one cloud sign-in, then one
// read per configured appliance, published and recorded as it lands.
func (b *Bridge) Tick(ctx context.Context, now time.Time) {
	session := b.cloudSession(ctx, now)

	success := true
	for _, a := range b.cfg.Appliances {
		if err := b.poll(ctx, a, session); err != nil {
			b.log.Warn().Err(err).Str("address", a.Address).Msg("appliance poll failed")
			b.metrics.pollsTotal.WithLabelValues("error").Inc()
			success = false
			continue
		}
		b.metrics.pollsTotal.WithLabelValues("ok").Inc()
	}
	b.metrics.pollSuccess.Set(boolGauge(success))
}

// cloudSession signs in once per tick when any configured appliance
// needs cloud-mediated resolution, honoring the rate guard. A nil
// return means those appliances sit this tick out.
func (b *Bridge) cloudSession(ctx context.Context, now time.Time) control.Session {
	if !b.needsCloud() {
		return nil
	}

	decision := b.guard.Allow(now)
	if !decision.Allowed {
		b.metrics.cloudDenied.Inc()
		b.log.Warn().Err(decision.Err("midea-cloud")).Msg("cloud sign-in denied, skipping cloud-mediated appliances")
		return nil
	}

	session, err := b.backends.Sessions.Authenticate(ctx, b.cloud.Account, b.cloud.Password, b.cloud.AppKey, b.cloud.AppID)
	if err != nil {
		b.guard.RecordFailure(now)
		b.log.Error().Err(err).Str("account", b.cloud.Account).Msg("cloud sign-in failed")
		return nil
	}
	b.guard.RecordSuccess()
	return session
}

func (b *Bridge) needsCloud() bool {
	for _, a := range b.cfg.Appliances {
		if a.Token == "" {
			return true
		}
	}
	return false
}

func (b *Bridge) poll(ctx context.Context, a config.BridgeAppliance, session control.Session) error {
	var handle appliance.Handle
	switch {
	case a.Token != "":
		handle = b.backends.Dialer.Dial(a.Address, a.Token, a.Key)
	case session != nil:
		resolved, err := session.Appliance(ctx, a.Address)
		if err != nil {
			b.markDown(b.identity(a.Address, appliance.Info{Address: a.Address}))
			return err
		}
		handle = resolved
	default:
		b.markDown(b.identity(a.Address, appliance.Info{Address: a.Address}))
		return fmt.Errorf("no cloud session for %s this tick", a.Address)
	}

	state, err := handle.ReadState(ctx)
	if err != nil {
		b.markDown(b.identity(a.Address, handle.Info()))
		return err
	}

	info := handle.Info()
	b.seen[a.Address] = info
	payload, err := json.Marshal(statePayload{
		Address:        info.Address,
		ID:             info.ID,
		Model:          info.Model,
		Name:           state.Name,
		Online:         true,
		Humidity:       state.Humidity,
		TargetHumidity: state.TargetHumidity,
		FanSpeed:       state.FanSpeed,
		TankFull:       state.TankFull,
		Mode:           state.Mode,
		ModeName:       appliance.ModeName(state.Mode),
		IonMode:        state.IonMode,
		Running:        state.Running,
	})
	if err != nil {
		return fmt.Errorf("encode state of %s: %w", info.Address, err)
	}

	id := topicID(info)
	if err := b.pub.Publish(b.topic(id, "state"), payload, true); err != nil {
		return fmt.Errorf("publish state of %s: %w", info.Address, err)
	}
	if err := b.pub.Publish(b.topic(id, "availability"), []byte("online"), true); err != nil {
		return fmt.Errorf("publish availability of %s: %w", info.Address, err)
	}
	b.metrics.observe(info, state)
	return nil
}

func (b *Bridge) publishUnavailable(info appliance.Info) {
	if err := b.pub.Publish(b.topic(topicID(info), "availability"), []byte("offline"), true); err != nil {
		b.log.Warn().Err(err).Str("address", info.Address).Msg("publish availability")
	}
}

// identity fills in what a failed poll cannot tell us: when the fresh
// handle never learned the device id, fall back to the identity seen on
// an earlier successful read, so the offline report lands on the same
// topic and metric series.
func (b *Bridge) identity(address string, fresh appliance.Info) appliance.Info {
	if fresh.ID != "" {
		return fresh
	}
	if known, ok := b.seen[address]; ok {
		known.Online = false
		return known
	}
	return fresh
}

func (b *Bridge) markDown(info appliance.Info) {
	b.publishUnavailable(info)
	if info.ID != "" {
		b.metrics.observeOffline(info)
	}
}

func (b *Bridge) topic(id, leaf string) string {
	return b.cfg.MQTT.Prefix + "/" + id + "/" + leaf
}

// topicID prefers the stable device id; before a first successful read a
// dialed handle only knows its address, which works as a fallback.
func topicID(info appliance.Info) string {
	if info.ID != "" {
		return info.ID
	}
	return hostOf(info.Address)
}

func hostOf(address string) string {
	if host, _, err := net.SplitHostPort(address); err == nil {
		return host
	}
	return address
}

// ApplyCredentials fills missing token/key pairs from a saved
// credentials file, so a discover --save run can seed the daemon with
// direct auth and keep its ticks off the cloud.
func ApplyCredentials(appliances []config.BridgeAppliance, entries []credfile.Entry) []config.BridgeAppliance {
	out := make([]config.BridgeAppliance, len(appliances))
	copy(out, appliances)
	for i, a := range out {
		if a.Token != "" {
			continue
		}
		if entry, ok := credfile.Lookup(entries, a.Address); ok {
			out[i].Token = entry.Token
			out[i].Key = entry.Key
		}
	}
	return out
}

type statePayload struct {
	Address        string `json:"address"`
	ID             string `json:"id"`
	Model          string `json:"model,omitempty"`
	Name           string `json:"name"`
	Online         bool   `json:"online"`
	Humidity       int    `json:"humidity"`
	TargetHumidity int    `json:"target_humidity"`
	FanSpeed       int    `json:"fan_speed"`
	TankFull       bool   `json:"tank_full"`
	Mode           int    `json:"mode"`
	ModeName       string `json:"mode_name"`
	IonMode        bool   `json:"ion_mode"`
	Running        bool   `json:"running"`
}
