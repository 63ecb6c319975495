// Package appliance defines the dehumidifier device model shared by every
// component: identity and metadata, live state snapshots, and partial
// mutations, plus the handle contract the wire backends implement.
package appliance

import "context"

// Info describes one appliance as resolved from discovery, the cloud
// catalog, or operator-supplied credentials.
type Info struct {
	Address      string
	ID           string
	SerialNumber string
	Model        string
	SSID         string
	Token        string
	Key          string
	Online       bool
}

// Credentialed reports whether the wire protocol can address the device.
func (i Info) Credentialed() bool {
	return i.Token != "" && i.Key != ""
}

// State is the snapshot of a dehumidifier's operating parameters. It is
// replaced wholesale on every read, never patched in place.
type State struct {
	Name           string
	Humidity       int
	TargetHumidity int
	FanSpeed       int
	TankFull       bool
	Mode           int
	IonMode        bool
	Running        bool
}

// Mutation is a partial update. Nil fields keep their current device value.
type Mutation struct {
	TargetHumidity *int
	FanSpeed       *int
	Mode           *int
	IonMode        *bool
	Running        *bool
}

// Handle is one reachable appliance with its wire credentials resolved.
// ReadState refreshes the snapshot against the device; State returns the
// last snapshot without touching the network.
type Handle interface {
	Info() Info
	State() State
	ReadState(ctx context.Context) (State, error)
	Apply(ctx context.Context, m Mutation) error
}
