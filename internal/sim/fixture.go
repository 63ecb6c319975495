package sim

import (
	"fmt"
	"net"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/joshp123/mideactl/internal/appliance"
)

const fixtureSchemaVersion = 1

// The wire protocol's well-known appliance port, used when a fixture
// entry does not name one.
const defaultPort = 6444

// Fixture is the YAML description of a simulated world: the cloud
// accounts that can sign in and the appliances answering on the LAN.
type Fixture struct {
	SchemaVersion int                `yaml:"schema_version"`
	Accounts      []AccountFixture   `yaml:"accounts"`
	Appliances    []ApplianceFixture `yaml:"appliances"`
}

type AccountFixture struct {
	Account  string `yaml:"account"`
	Password string `yaml:"password"`
}

type ApplianceFixture struct {
	Address      string       `yaml:"address"`
	Port         int          `yaml:"port"`
	ID           string       `yaml:"id"`
	SerialNumber string       `yaml:"serial_number"`
	Model        string       `yaml:"model"`
	SSID         string       `yaml:"ssid"`
	Token        string       `yaml:"token"`
	Key          string       `yaml:"key"`
	// Network optionally names the CIDR the appliance sits on; the
	// address must fall inside it.
	Network string       `yaml:"network"`
	Offline bool         `yaml:"offline"`
	State   StateFixture `yaml:"state"`
}

type StateFixture struct {
	Name           string `yaml:"name"`
	Humidity       int    `yaml:"humidity"`
	TargetHumidity int    `yaml:"target_humidity"`
	FanSpeed       int    `yaml:"fan_speed"`
	TankFull       bool   `yaml:"tank_full"`
	Mode           int    `yaml:"mode"`
	IonMode        bool   `yaml:"ion_mode"`
	Running        bool   `yaml:"running"`
}

// LoadFixture reads and validates a fleet fixture file.
func LoadFixture(path string) (Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("read fleet fixture: %w", err)
	}

	var fx Fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return Fixture{}, fmt.Errorf("parse fleet fixture: %w", err)
	}
	if err := fx.validate(); err != nil {
		return Fixture{}, err
	}
	return fx, nil
}

func (fx Fixture) validate() error {
	if fx.SchemaVersion != fixtureSchemaVersion {
		return fmt.Errorf("fleet fixture schema_version must be %d", fixtureSchemaVersion)
	}
	seen := make(map[string]bool)
	for i, a := range fx.Appliances {
		if a.Address == "" {
			return fmt.Errorf("fleet fixture appliance %d missing address", i)
		}
		if seen[a.Address] {
			return fmt.Errorf("fleet fixture appliance address %s appears twice", a.Address)
		}
		seen[a.Address] = true
		if a.ID == "" {
			return fmt.Errorf("fleet fixture appliance %s missing id", a.Address)
		}
		if a.Token == "" || a.Key == "" {
			return fmt.Errorf("fleet fixture appliance %s missing token/key", a.Address)
		}
		if a.Network != "" {
			_, cidr, err := net.ParseCIDR(a.Network)
			if err != nil {
				return fmt.Errorf("fleet fixture appliance %s: bad network %q: %w", a.Address, a.Network, err)
			}
			ip := net.ParseIP(a.Address)
			if ip == nil {
				return fmt.Errorf("fleet fixture appliance %s: network given but address is not an IP", a.Address)
			}
			if !cidr.Contains(ip) {
				return fmt.Errorf("fleet fixture appliance %s is outside its network %s", a.Address, a.Network)
			}
		}
	}
	for i, acc := range fx.Accounts {
		if acc.Account == "" || acc.Password == "" {
			return fmt.Errorf("fleet fixture account %d missing account/password", i)
		}
	}
	return nil
}

func (s StateFixture) state() appliance.State {
	return appliance.State{
		Name:           s.Name,
		Humidity:       s.Humidity,
		TargetHumidity: s.TargetHumidity,
		FanSpeed:       s.FanSpeed,
		TankFull:       s.TankFull,
		Mode:           s.Mode,
		IonMode:        s.IonMode,
		Running:        s.Running,
	}
}
