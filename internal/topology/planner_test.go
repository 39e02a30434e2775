package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoHopHypercube(t *testing.T) (*Hypercube, map[string]PQKD) {
	t.Helper()

	relays := []Relay{
		{ID: "0", PQKDs: []string{"Test_1SAE", "Test_2SAE"}},
		{ID: "1", PQKDs: []string{"Val_1SAE", "Val_2SAE"}},
	}
	conns := []Connection{{First: "Test_2SAE", Second: "Val_1SAE"}}

	h, err := Build(1, 1, relays, conns)
	require.NoError(t, err)

	pqkds := map[string]PQKD{
		"Test_1SAE": {SAEID: "Test_1SAE", RemoteSAEID: "Test_2SAE"},
		"Test_2SAE": {SAEID: "Test_2SAE", RemoteSAEID: "Test_1SAE"},
		"Val_1SAE":  {SAEID: "Val_1SAE", RemoteSAEID: "Val_2SAE"},
		"Val_2SAE":  {SAEID: "Val_2SAE", RemoteSAEID: "Val_1SAE"},
	}
	return h, pqkds
}

func TestPlanPathsTwoHop(t *testing.T) {
	h, pqkds := twoHopHypercube(t)

	paths, err := PlanPaths(h, pqkds, "Test_1SAE", "Val_2SAE", 2)
	require.NoError(t, err)
	require.Len(t, paths, 1)

	p := paths[0]
	assert.Equal(t, []string{"Test_1SAE", "Test_2SAE", "Val_1SAE", "Val_2SAE"}, p.Endpoints)
	assert.True(t, p.Primary)
}

func TestPlanPathsUnknownDestination(t *testing.T) {
	h, pqkds := twoHopHypercube(t)

	_, err := PlanPaths(h, pqkds, "Test_1SAE", "Nobody_SAE", 1)
	require.Error(t, err)
}

func TestBuildRejectsNonAdjacentConnection(t *testing.T) {
	relays := []Relay{
		{ID: "00", PQKDs: []string{"A"}},
		{ID: "01", PQKDs: []string{"B"}},
		{ID: "10", PQKDs: []string{"C"}},
		{ID: "11", PQKDs: []string{"D"}},
	}
	_, err := Build(2, 1, relays, []Connection{{First: "A", Second: "D"}})
	require.Error(t, err)
}
