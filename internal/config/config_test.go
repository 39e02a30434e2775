package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const relayTOML = `
id = "R0"
port = 9000

[[pqkds]]
port = 8000
sae_id = "Test_1SAE"
remote_sae_id = "Test_2SAE"
kme_address = "https://kme1:443"
remote_proxy_address = "${REMOTE_PROXY:https://relay1:9000}"
`

func TestLoadRelayConfigSubstitutesEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relay.toml")
	require.NoError(t, os.WriteFile(path, []byte(relayTOML), 0o644))

	cfg, err := LoadRelayConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "R0", cfg.ID)
	assert.Equal(t, 9000, cfg.Port)
	require.Len(t, cfg.PQKDs, 1)
	assert.Equal(t, "https://relay1:9000", cfg.PQKDs[0].RemoteProxyAddress)
}

func TestLoadRelayConfigEnvOverridesPort(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relay.toml")
	require.NoError(t, os.WriteFile(path, []byte(relayTOML), 0o644))

	t.Setenv("RELAY_PORT", "9100")

	cfg, err := LoadRelayConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Port)
}

func TestValidateRelayConfigRejectsPartialMTLS(t *testing.T) {
	cfg := &RelayConfig{
		ID:   "R0",
		Port: 9000,
		PQKDs: []PQKDConfig{{
			Port: 8000, SAEID: "A", RemoteSAEID: "B",
			KMEAddress: "https://kme", RemoteProxyAddress: "https://peer",
			CACert: "ca.pem",
		}},
	}

	errs := ValidateRelayConfig(cfg)
	require.NotEmpty(t, errs)
}

func TestValidateTopologyConfigDimensionMismatch(t *testing.T) {
	cfg := &TopologyConfig{
		Dimension: 1,
		N:         1,
		Relay:     []RelayNodeConfig{{ID: "0", PQKDs: []string{"A"}}},
	}

	errs := ValidateTopologyConfig(cfg)
	require.NotEmpty(t, errs)
}

func TestSubstituteEnvVarsDefault(t *testing.T) {
	assert.Equal(t, "fallback", SubstituteEnvVars("${DOES_NOT_EXIST_XYZ:fallback}"))
}
