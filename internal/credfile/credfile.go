// Package credfile persists the token/key material discovery resolves,
// so later status/set invocations can take the direct path without
// another cloud sign-in. The file is YAML, written atomically with mode
// 0600 because the keys in it unlock the appliances.
package credfile

import (
	"fmt"
	"net"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const SchemaVersion = 1

// Entry is the persisted credential material for one appliance.
type Entry struct {
	Address string `yaml:"address"`
	ID      string `yaml:"id"`
	Token   string `yaml:"token"`
	Key     string `yaml:"key"`
}

type document struct {
	SchemaVersion int     `yaml:"schema_version"`
	Appliances    []Entry `yaml:"appliances"`
}

// Save writes the credentials file via a temp file and rename, so a
// crash never leaves a half-written key store behind.
func Save(path string, entries []Entry) error {
	data, err := yaml.Marshal(document{SchemaVersion: SchemaVersion, Appliances: entries})
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return fmt.Errorf("create credentials temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod credentials file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write credentials file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close credentials file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace credentials file: %w", err)
	}
	return nil
}

// Load reads and validates a credentials file.
func Load(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse credentials file %s: %w", path, err)
	}
	if doc.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("credentials file %s: schema_version must be %d", path, SchemaVersion)
	}
	for i, e := range doc.Appliances {
		if e.Address == "" {
			return nil, fmt.Errorf("credentials file %s: entry %d missing address", path, i)
		}
		if e.Token == "" || e.Key == "" {
			return nil, fmt.Errorf("credentials file %s: entry for %s missing token/key", path, e.Address)
		}
	}
	return doc.Appliances, nil
}

// Lookup finds the entry for an address, matching on the host so a
// stored "10.0.0.8:6444" still serves a lookup for "10.0.0.8".
func Lookup(entries []Entry, address string) (Entry, bool) {
	want := hostOf(address)
	for _, e := range entries {
		if hostOf(e.Address) == want {
			return e, true
		}
	}
	return Entry{}, false
}

func hostOf(address string) string {
	if host, _, err := net.SplitHostPort(address); err == nil {
		return host
	}
	return address
}
