package config

import (
	"fmt"
	"os"
	"regexp"
)

// envVarPattern matches ${VAR} or ${VAR:default}, same shape as the
// teacher's config.SubstituteEnvVars.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// SubstituteEnvVars replaces ${VAR} or ${VAR:default} occurrences in input
// with the named environment variable's value, or the default if unset.
func SubstituteEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultValue := ""
		if len(parts) > 2 {
			defaultValue = parts[2]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// substituteRelayConfig recursively substitutes ${VAR} occurrences across a
// RelayConfig's string fields.
func substituteRelayConfig(cfg *RelayConfig) {
	if cfg == nil {
		return
	}
	cfg.ID = SubstituteEnvVars(cfg.ID)
	for i := range cfg.PQKDs {
		p := &cfg.PQKDs[i]
		p.SAEID = SubstituteEnvVars(p.SAEID)
		p.RemoteSAEID = SubstituteEnvVars(p.RemoteSAEID)
		p.KMEAddress = SubstituteEnvVars(p.KMEAddress)
		p.RemoteProxyAddress = SubstituteEnvVars(p.RemoteProxyAddress)
		p.CACert = SubstituteEnvVars(p.CACert)
		p.ClientCert = SubstituteEnvVars(p.ClientCert)
		p.ClientKey = SubstituteEnvVars(p.ClientKey)
	}
}

// applyRelayEnvOverrides lets RELAY_PORT override the relay's inter-relay
// listen port, the highest-priority override per the teacher's loader shape.
func applyRelayEnvOverrides(cfg *RelayConfig) {
	if cfg == nil {
		return
	}
	if v := os.Getenv("RELAY_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			cfg.Port = port
		}
	}
}
