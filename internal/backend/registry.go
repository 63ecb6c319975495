// Package backend maps a configured backend name onto a bound set of
// collaborator implementations. Backends are compiled in and register
// themselves by name; "simulated" is the one that ships in-tree, the
// real LAN/cloud transports plug in here when they exist.
package backend

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/joshp123/mideactl/internal/config"
	"github.com/joshp123/mideactl/internal/control"
)

// Set binds the collaborator contracts the control core consumes.
type Set struct {
	Sessions  control.SessionProvider
	Discovery control.Discoverer
	Dialer    control.HandleDialer
}

// Factory builds a backend's collaborator set from the loaded config.
type Factory func(cfg *config.Config, log zerolog.Logger) (Set, error)

var compiled = map[string]Factory{}

// Register adds a compiled-in backend factory to the registry. A
// duplicate name is a programming error.
func Register(name string, factory Factory) {
	if _, dup := compiled[name]; dup {
		panic(fmt.Sprintf("backend %q registered twice", name))
	}
	compiled[name] = factory
}

// Names returns the registered backend names, sorted.
func Names() []string {
	names := make([]string, 0, len(compiled))
	for name := range compiled {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open builds the collaborator set for the backend the config names.
func Open(cfg *config.Config, log zerolog.Logger) (Set, error) {
	factory, ok := compiled[cfg.Backend]
	if !ok {
		return Set{}, fmt.Errorf("unknown backend %q (available: %s)", cfg.Backend, strings.Join(Names(), ", "))
	}
	return factory(cfg, log)
}
