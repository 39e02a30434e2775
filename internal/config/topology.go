package config

// RelayNodeConfig is one [[relay]] entry of the topology config file (§6).
type RelayNodeConfig struct {
	ID    string   `toml:"id"`
	PQKDs []string `toml:"pqkds"`
}

// ConnectionConfig is one [[connection]] entry of the topology config file (§6).
type ConnectionConfig struct {
	First  string `toml:"first"`
	Second string `toml:"second"`
}

// TopologyConfig is the top-level hypercube topology config file (§6).
type TopologyConfig struct {
	Dimension  int                `toml:"dimension"`
	N          int                `toml:"n"`
	Relay      []RelayNodeConfig  `toml:"relay"`
	Connection []ConnectionConfig `toml:"connection"`
}
