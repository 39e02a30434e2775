// Package topology models the hypercube overlay of trusted relay nodes and
// plans multi-hop paths across it for the relay protocol engine.
package topology

import "fmt"

// PQKD describes one local Key Management Entity attachment point.
type PQKD struct {
	SAEID              string
	Port               int
	KMEAddress         string
	RemoteSAEID        string
	RemoteProxyAddress string
	CACert             string
	ClientCert         string
	ClientKey          string
}

// Relay is a logical node in the hypercube; it owns one or more PQKDs.
type Relay struct {
	ID    string
	PQKDs []string // sae_ids
}

// Connection asserts that two PQKDs are quantum-adjacent. Symmetric.
type Connection struct {
	First  string
	Second string
}

// Partner returns the other end of the connection given one of its sae_ids.
func (c Connection) Partner(saeID string) (string, bool) {
	switch saeID {
	case c.First:
		return c.Second, true
	case c.Second:
		return c.First, true
	default:
		return "", false
	}
}

// Hypercube is the loaded topology: dimension, fan-out, relays and
// quantum-adjacency connections.
type Hypercube struct {
	Dimension   int
	Fanout      int
	Relays      []Relay
	Connections []Connection

	relayByID      map[string]Relay
	relayBySAEID   map[string]Relay
	connectionsOf  map[string][]Connection
}

// Build indexes a freshly loaded Hypercube for lookup and validates its
// structural invariants against spec §3/§8 invariant 6.
func Build(dimension, fanout int, relays []Relay, connections []Connection) (*Hypercube, error) {
	want := 1 << uint(dimension)
	if len(relays) != want {
		return nil, fmt.Errorf("topology: dimension %d implies %d relays, got %d", dimension, want, len(relays))
	}

	h := &Hypercube{
		Dimension:     dimension,
		Fanout:        fanout,
		Relays:        relays,
		Connections:   connections,
		relayByID:     make(map[string]Relay, len(relays)),
		relayBySAEID:  make(map[string]Relay, len(relays)),
		connectionsOf: make(map[string][]Connection),
	}

	for _, r := range relays {
		if _, dup := h.relayByID[r.ID]; dup {
			return nil, fmt.Errorf("topology: duplicate relay id %q", r.ID)
		}
		h.relayByID[r.ID] = r
		for _, sae := range r.PQKDs {
			if _, dup := h.relayBySAEID[sae]; dup {
				return nil, fmt.Errorf("topology: sae_id %q owned by more than one relay", sae)
			}
			h.relayBySAEID[sae] = r
		}
	}

	for _, c := range connections {
		firstRelay, ok := h.relayBySAEID[c.First]
		if !ok {
			return nil, fmt.Errorf("topology: connection references unknown sae_id %q", c.First)
		}
		secondRelay, ok := h.relayBySAEID[c.Second]
		if !ok {
			return nil, fmt.Errorf("topology: connection references unknown sae_id %q", c.Second)
		}
		if hammingDistance(firstRelay.ID, secondRelay.ID) != 1 {
			return nil, fmt.Errorf("topology: connection %s<->%s does not join hypercube-adjacent relays %s/%s",
				c.First, c.Second, firstRelay.ID, secondRelay.ID)
		}
		h.connectionsOf[c.First] = append(h.connectionsOf[c.First], c)
		h.connectionsOf[c.Second] = append(h.connectionsOf[c.Second], c)
	}

	return h, nil
}

// RelayByID looks up a relay by its hypercube label.
func (h *Hypercube) RelayByID(id string) (Relay, bool) {
	r, ok := h.relayByID[id]
	return r, ok
}

// RelayOf returns the relay owning the given PQKD sae_id.
func (h *Hypercube) RelayOf(saeID string) (Relay, bool) {
	r, ok := h.relayBySAEID[saeID]
	return r, ok
}

// ConnectionsOf returns every connection touching saeID.
func (h *Hypercube) ConnectionsOf(saeID string) []Connection {
	return h.connectionsOf[saeID]
}

func hammingDistance(a, b string) int {
	if len(a) != len(b) {
		return -1
	}
	n := 0
	for i := range a {
		if a[i] != b[i] {
			n++
		}
	}
	return n
}
