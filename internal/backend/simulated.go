package backend

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/joshp123/mideactl/internal/config"
	"github.com/joshp123/mideactl/internal/sim"
)

func init() {
	Register("simulated", openSimulated)
}

func openSimulated(cfg *config.Config, log zerolog.Logger) (Set, error) {
	if cfg.FleetFile == "" {
		return Set{}, fmt.Errorf("backend %q requires fleet_file in the config", cfg.Backend)
	}
	fleet, err := sim.Load(cfg.FleetFile)
	if err != nil {
		return Set{}, err
	}
	log.Debug().Str("fleet_file", cfg.FleetFile).Msg("simulated fleet loaded")
	return Set{Sessions: fleet, Discovery: fleet, Dialer: fleet}, nil
}
