package config

import "fmt"

// ValidationError mirrors the teacher's field/message/level validation
// result shape; only "error"-level issues fail Load.
type ValidationError struct {
	Field   string
	Message string
	Level   string
}

// ValidateRelayConfig checks the per-process relay config against §3/§6's
// structural requirements.
func ValidateRelayConfig(cfg *RelayConfig) []ValidationError {
	var errs []ValidationError

	if cfg.ID == "" {
		errs = append(errs, ValidationError{Field: "id", Message: "relay id must not be empty", Level: "error"})
	}
	if cfg.Port <= 0 {
		errs = append(errs, ValidationError{Field: "port", Message: "inter-relay port must be positive", Level: "error"})
	}
	if len(cfg.PQKDs) == 0 {
		errs = append(errs, ValidationError{Field: "pqkds", Message: "relay must configure at least one pqkd", Level: "error"})
	}

	for i, p := range cfg.PQKDs {
		field := fmt.Sprintf("pqkds[%d]", i)
		if p.SAEID == "" {
			errs = append(errs, ValidationError{Field: field + ".sae_id", Message: "sae_id must not be empty", Level: "error"})
		}
		if p.RemoteSAEID == "" {
			errs = append(errs, ValidationError{Field: field + ".remote_sae_id", Message: "remote_sae_id must not be empty", Level: "error"})
		}
		if p.KMEAddress == "" {
			errs = append(errs, ValidationError{Field: field + ".kme_address", Message: "kme_address must not be empty", Level: "error"})
		}
		if p.RemoteProxyAddress == "" {
			errs = append(errs, ValidationError{Field: field + ".remote_proxy_address", Message: "remote_proxy_address must not be empty", Level: "error"})
		}
		if p.Port <= 0 {
			errs = append(errs, ValidationError{Field: field + ".port", Message: "ETSI port must be positive", Level: "error"})
		}

		// mTLS material is all-or-nothing (§4.5).
		trioSet := 0
		if p.CACert != "" {
			trioSet++
		}
		if p.ClientCert != "" {
			trioSet++
		}
		if p.ClientKey != "" {
			trioSet++
		}
		if trioSet != 0 && trioSet != 3 {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "ca_cert, client_cert and client_key must be set together or not at all",
				Level:   "error",
			})
		}
	}

	return errs
}

// ValidateTopologyConfig checks the topology file against §3/§8 invariant 6.
func ValidateTopologyConfig(cfg *TopologyConfig) []ValidationError {
	var errs []ValidationError

	if cfg.Dimension < 0 {
		errs = append(errs, ValidationError{Field: "dimension", Message: "dimension must be non-negative", Level: "error"})
	}
	want := 1 << uint(cfg.Dimension)
	if len(cfg.Relay) != want {
		errs = append(errs, ValidationError{
			Field:   "relay",
			Message: fmt.Sprintf("dimension %d requires %d relays, got %d", cfg.Dimension, want, len(cfg.Relay)),
			Level:   "error",
		})
	}
	if cfg.N <= 0 {
		errs = append(errs, ValidationError{Field: "n", Message: "fan-out n must be positive", Level: "error"})
	}

	seen := make(map[string]bool)
	for _, r := range cfg.Relay {
		if r.ID == "" {
			errs = append(errs, ValidationError{Field: "relay.id", Message: "relay id must not be empty", Level: "error"})
			continue
		}
		if seen[r.ID] {
			errs = append(errs, ValidationError{Field: "relay.id", Message: "duplicate relay id " + r.ID, Level: "error"})
		}
		seen[r.ID] = true
	}

	for _, c := range cfg.Connection {
		if c.First == "" || c.Second == "" {
			errs = append(errs, ValidationError{Field: "connection", Message: "connection endpoints must not be empty", Level: "error"})
		}
	}

	return errs
}
