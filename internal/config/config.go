// Package config loads the YAML configuration shared by the CLI and the
// bridge daemon: backend selection, default cloud application identity,
// and the bridge's fleet, broker, and polling settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	SchemaVersion = 1

	DefaultPath = "/etc/mideactl/config.yaml"
	EnvPath     = "MIDEACTL_CONFIG"

	// Application identity registered with the vendor cloud. Overridable
	// per invocation; the appid must correspond to the app key.
	DefaultAppKey = "3742e9e5842d4ad59c2db887e12449f9"
	DefaultAppID  = "1017"

	DefaultBackend             = "simulated"
	DefaultBridgeHTTPAddr      = "0.0.0.0:8041"
	DefaultPollIntervalSeconds = 60
	DefaultMQTTPort            = 1883
	DefaultMQTTPrefix          = "midea"
	DefaultCloudSigninsPerMin  = 2
)

// Config is the root document.
type Config struct {
	SchemaVersion int          `yaml:"schema_version"`
	Backend       string       `yaml:"backend"`
	FleetFile     string       `yaml:"fleet_file"`
	Cloud         CloudConfig  `yaml:"cloud"`
	Bridge        BridgeConfig `yaml:"bridge"`
}

// CloudConfig carries account credentials and the app identity used when
// a command resolves device secrets through the cloud.
type CloudConfig struct {
	Account  string `yaml:"account"`
	Password string `yaml:"password"`
	AppKey   string `yaml:"app_key"`
	AppID    string `yaml:"app_id"`
}

// BridgeConfig configures the midea-bridge daemon.
type BridgeConfig struct {
	HTTPAddr              string            `yaml:"http_addr"`
	PollIntervalSeconds   int               `yaml:"poll_interval_seconds"`
	CloudSigninsPerMinute int               `yaml:"cloud_signins_per_minute"`
	CredsFile             string            `yaml:"creds_file"`
	MQTT                  MQTTConfig        `yaml:"mqtt"`
	Appliances            []BridgeAppliance `yaml:"appliances"`
}

// BridgeAppliance names one appliance the bridge polls. Token and key
// are optional; without them the bridge resolves through the cloud.
type BridgeAppliance struct {
	Address string `yaml:"address"`
	Token   string `yaml:"token"`
	Key     string `yaml:"key"`
}

type MQTTConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Prefix   string `yaml:"prefix"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{SchemaVersion: SchemaVersion}
	cfg.applyDefaults()
	return cfg
}

// Load parses the YAML config file, applies defaults, and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Resolve loads the first config file found: the explicit path when
// given, then $MIDEACTL_CONFIG, then the system and per-user locations.
// With no file anywhere, the defaults stand on their own.
func Resolve(explicit string) (*Config, error) {
	if explicit != "" {
		return Load(explicit)
	}
	if env := os.Getenv(EnvPath); env != "" {
		return Load(env)
	}
	for _, path := range searchPaths() {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return Default(), nil
}

func searchPaths() []string {
	paths := []string{DefaultPath}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		paths = append(paths, filepath.Join(home, ".config", "mideactl", "config.yaml"))
	}
	return paths
}

func (c *Config) applyDefaults() {
	if c.Backend == "" {
		c.Backend = DefaultBackend
	}
	if c.Cloud.AppKey == "" {
		c.Cloud.AppKey = DefaultAppKey
	}
	if c.Cloud.AppID == "" {
		c.Cloud.AppID = DefaultAppID
	}
	if c.Bridge.HTTPAddr == "" {
		c.Bridge.HTTPAddr = DefaultBridgeHTTPAddr
	}
	if c.Bridge.PollIntervalSeconds == 0 {
		c.Bridge.PollIntervalSeconds = DefaultPollIntervalSeconds
	}
	if c.Bridge.CloudSigninsPerMinute == 0 {
		c.Bridge.CloudSigninsPerMinute = DefaultCloudSigninsPerMin
	}
	if c.Bridge.MQTT.Port == 0 {
		c.Bridge.MQTT.Port = DefaultMQTTPort
	}
	if c.Bridge.MQTT.Prefix == "" {
		c.Bridge.MQTT.Prefix = DefaultMQTTPrefix
	}
}

// Validate enforces required invariants beyond YAML typing.
func (c *Config) Validate() error {
	if c.SchemaVersion != SchemaVersion {
		return fmt.Errorf("schema_version must be %d", SchemaVersion)
	}
	if c.Bridge.PollIntervalSeconds <= 0 {
		return fmt.Errorf("bridge.poll_interval_seconds must be positive")
	}
	if c.Bridge.CloudSigninsPerMinute <= 0 {
		return fmt.Errorf("bridge.cloud_signins_per_minute must be positive")
	}
	for i, a := range c.Bridge.Appliances {
		if a.Address == "" {
			return fmt.Errorf("bridge.appliances[%d]: address is required", i)
		}
	}
	return nil
}

// EnvOrDefault reads an environment override, used for addr-style knobs
// that deployments set outside the config file.
func EnvOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
