package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// LoaderOptions configures the configuration loader, mirroring the
// teacher's config.LoaderOptions shape.
type LoaderOptions struct {
	SkipEnvSubstitution bool
	SkipValidation       bool
}

// LoadRelayConfig reads and validates the per-process relay/PQKD config file.
func LoadRelayConfig(path string, opts ...LoaderOptions) (*RelayConfig, error) {
	options := resolveOptions(opts)

	var cfg RelayConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing relay config %s: %w", path, err)
	}

	if !options.SkipEnvSubstitution {
		substituteRelayConfig(&cfg)
	}
	applyRelayEnvOverrides(&cfg)

	if !options.SkipValidation {
		if errs := ValidateRelayConfig(&cfg); len(errs) > 0 {
			return nil, validationFailure("relay", errs)
		}
	}

	return &cfg, nil
}

// LoadTopologyConfig reads and validates the hypercube topology config file.
func LoadTopologyConfig(path string, opts ...LoaderOptions) (*TopologyConfig, error) {
	options := resolveOptions(opts)

	var cfg TopologyConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing topology config %s: %w", path, err)
	}

	if !options.SkipValidation {
		if errs := ValidateTopologyConfig(&cfg); len(errs) > 0 {
			return nil, validationFailure("topology", errs)
		}
	}

	return &cfg, nil
}

func resolveOptions(opts []LoaderOptions) LoaderOptions {
	if len(opts) > 0 {
		return opts[0]
	}
	return LoaderOptions{}
}

func validationFailure(what string, errs []ValidationError) error {
	for _, e := range errs {
		if e.Level == "error" {
			return fmt.Errorf("config: %s configuration validation failed: %s - %s", what, e.Field, e.Message)
		}
	}
	return nil
}
