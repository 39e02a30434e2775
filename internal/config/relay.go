// Package config loads the relay's two TOML configuration files (§6): the
// per-process relay/PQKD configuration and the hypercube topology.
package config

// PQKDConfig is one [[pqkds]] entry of the relay config file (§6).
type PQKDConfig struct {
	Port               int    `toml:"port"`
	SAEID              string `toml:"sae_id"`
	RemoteSAEID        string `toml:"remote_sae_id"`
	KMEAddress         string `toml:"kme_address"`
	RemoteProxyAddress string `toml:"remote_proxy_address"`
	CACert             string `toml:"ca_cert"`
	ClientCert         string `toml:"client_cert"`
	ClientKey          string `toml:"client_key"`
}

// RelayConfig is the top-level relay config file (§6).
type RelayConfig struct {
	ID    string       `toml:"id"`
	Port  int          `toml:"port"`
	PQKDs []PQKDConfig `toml:"pqkds"`
}
