package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load fills cfg from environment variables using its `env` struct tags.
// Defaults come from `envDefault`; see internal/config for the full set
// the gateway reads.
func Load(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse config from environment: %w", err)
	}
	return nil
}
