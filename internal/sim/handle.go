package sim

import (
	"context"
	"fmt"

	"github.com/joshp123/mideactl/internal/appliance"
)

// handle is one live view onto a simulated device. The credentials it
// carries are whatever its producer supplied; they are checked against
// the fixture on every read and apply, never at construction.
type handle struct {
	fleet *Fleet
	host  string
	token string
	key   string
	known appliance.Info
	last  appliance.State
}

func (h *handle) Info() appliance.Info {
	h.fleet.mu.Lock()
	defer h.fleet.mu.Unlock()
	return h.known
}

func (h *handle) State() appliance.State {
	h.fleet.mu.Lock()
	defer h.fleet.mu.Unlock()
	return h.last
}

// ReadState refreshes the snapshot over the simulated wire. An unknown
// or offline host does not answer; wrong credentials answer but fail the
// decryption handshake.
func (h *handle) ReadState(_ context.Context) (appliance.State, error) {
	f := h.fleet
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters.Reads++

	dev, err := h.reach()
	if err != nil {
		return appliance.State{}, err
	}

	h.known = dev.info(true)
	h.last = dev.state
	return dev.state, nil
}

// Apply patches only the fields the mutation names. Everything else
// keeps its current device value.
func (h *handle) Apply(_ context.Context, m appliance.Mutation) error {
	f := h.fleet
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters.Applies++

	dev, err := h.reach()
	if err != nil {
		return err
	}

	if m.TargetHumidity != nil {
		dev.state.TargetHumidity = *m.TargetHumidity
	}
	if m.FanSpeed != nil {
		dev.state.FanSpeed = *m.FanSpeed
	}
	if m.Mode != nil {
		dev.state.Mode = *m.Mode
	}
	if m.IonMode != nil {
		dev.state.IonMode = *m.IonMode
	}
	if m.Running != nil {
		dev.state.Running = *m.Running
	}
	return nil
}

// reach is called with the fleet lock held.
func (h *handle) reach() (*device, error) {
	dev, ok := h.fleet.devices[h.host]
	if !ok || dev.offline {
		h.known.Online = false
		return nil, fmt.Errorf("%s: %w", h.host, appliance.ErrUnreachable)
	}
	if h.token != dev.token || h.key != dev.key {
		return nil, fmt.Errorf("handshake with %s: payload decryption failed (wrong token/key)", h.host)
	}
	return dev, nil
}
