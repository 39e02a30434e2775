package topology

import (
	"container/heap"
	"fmt"

	"github.com/qkd-trust/pqkd-relay/internal/relayerr"
)

// Path is a fully lifted, ordered sequence of PQKD sae_ids from origin to
// destination, as described in §3's DataKeys.path.
type Path struct {
	Endpoints []string
	Primary   bool
}

// pathCandidate is a partial hypercube-label path under best-first expansion.
type pathCandidate struct {
	labels  []string
	visited map[string]bool
}

// candidateHeap orders candidates by path length (hop count), giving the
// best-first, non-decreasing-length enumeration order §4.2 step 3 requires.
type candidateHeap []*pathCandidate

func (h candidateHeap) Len() int            { return len(h) }
func (h candidateHeap) Less(i, j int) bool  { return len(h[i].labels) < len(h[j].labels) }
func (h candidateHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x interface{}) { *h = append(*h, x.(*pathCandidate)) }
func (h *candidateHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// PlanPaths computes up to n lifted paths from the relay owning originSAE to
// the relay owning destSAE, per §4.2. pqkds provides the loaded PQKD configs
// keyed by sae_id, used only to resolve the origin's remote_sae_id for
// primary-path tie-breaking (step 5). The first path whose second endpoint
// equals that remote_sae_id is marked primary.
func PlanPaths(h *Hypercube, pqkds map[string]PQKD, originSAE, destSAE string, n int) ([]Path, error) {
	if n <= 0 {
		n = 1
	}

	originPQKD, ok := pqkds[originSAE]
	if !ok {
		return nil, relayerr.UnknownPqkd(originSAE)
	}

	originRelay, ok := h.RelayOf(originSAE)
	if !ok {
		return nil, relayerr.UnknownPqkd(originSAE)
	}
	destRelay, ok := h.RelayOf(destSAE)
	if !ok {
		return nil, relayerr.Path(fmt.Sprintf("no relay owns destination sae_id %q", destSAE))
	}

	labelPaths := enumerateSimplePaths(h, originRelay.ID, destRelay.ID, n)
	if len(labelPaths) == 0 {
		return nil, relayerr.Path(fmt.Sprintf("no path from relay %q to relay %q", originRelay.ID, destRelay.ID))
	}

	paths := make([]Path, 0, len(labelPaths))
	primaryAssigned := false
	for _, labels := range labelPaths {
		endpoints, err := liftPath(h, labels, originSAE, destSAE)
		if err != nil {
			return nil, err
		}

		p := Path{Endpoints: endpoints}
		if !primaryAssigned && len(endpoints) > 1 && endpoints[1] == originPQKD.RemoteSAEID {
			p.Primary = true
			primaryAssigned = true
		}
		paths = append(paths, p)
	}

	return paths, nil
}

// enumerateSimplePaths runs the best-first, visited-on-path search over the
// pure hypercube graph of dimension h.Dimension. Not guaranteed node-disjoint
// (§9 open question): only simple (no-repeat-relay) paths are guaranteed.
func enumerateSimplePaths(h *Hypercube, originLabel, destLabel string, n int) [][]string {
	g := buildGraph(h.Dimension)

	start := &pathCandidate{
		labels:  []string{originLabel},
		visited: map[string]bool{originLabel: true},
	}

	pq := &candidateHeap{start}
	heap.Init(pq)

	var results [][]string
	for pq.Len() > 0 && len(results) < n {
		cur := heap.Pop(pq).(*pathCandidate)
		last := cur.labels[len(cur.labels)-1]

		if last == destLabel {
			results = append(results, append([]string(nil), cur.labels...))
			continue
		}

		for _, neighbor := range g.neighbors[last] {
			if cur.visited[neighbor] {
				continue
			}
			nextVisited := make(map[string]bool, len(cur.visited)+1)
			for k := range cur.visited {
				nextVisited[k] = true
			}
			nextVisited[neighbor] = true

			heap.Push(pq, &pathCandidate{
				labels:  append(append([]string(nil), cur.labels...), neighbor),
				visited: nextVisited,
			})
		}
	}

	return results
}

// liftPath lifts a hypercube relay-label path to a PQKD-endpoint sequence,
// per §4.2 step 4: for each adjacent relay pair, pick the first PQKD pair
// whose Connection joins them, then prepend/append the origin/destination
// SAE if not already present.
func liftPath(h *Hypercube, labels []string, originSAE, destSAE string) ([]string, error) {
	if len(labels) == 0 {
		return nil, relayerr.Path("planner produced an empty hypercube path")
	}

	endpoints := make([]string, 0, len(labels)*2)

	for i := 0; i < len(labels)-1; i++ {
		riID, riOK := h.RelayByID(labels[i])
		riNextID, riNextOK := h.RelayByID(labels[i+1])
		if !riOK || !riNextOK {
			return nil, relayerr.Path(fmt.Sprintf("planner referenced unknown relay label %q or %q", labels[i], labels[i+1]))
		}

		nextPQKDs := make(map[string]bool, len(riNextID.PQKDs))
		for _, sae := range riNextID.PQKDs {
			nextPQKDs[sae] = true
		}

		found := false
		for _, sae := range riID.PQKDs {
			for _, conn := range h.ConnectionsOf(sae) {
				partner, ok := conn.Partner(sae)
				if !ok || !nextPQKDs[partner] {
					continue
				}
				endpoints = append(endpoints, sae, partner)
				found = true
				break
			}
			if found {
				break
			}
		}
		if !found {
			return nil, relayerr.Path(fmt.Sprintf("no quantum-adjacent PQKD pair links relay %q to relay %q", labels[i], labels[i+1]))
		}
	}

	if len(endpoints) == 0 || endpoints[0] != originSAE {
		endpoints = append([]string{originSAE}, endpoints...)
	}
	if endpoints[len(endpoints)-1] != destSAE {
		endpoints = append(endpoints, destSAE)
	}

	return dedupeAdjacent(endpoints), nil
}

// dedupeAdjacent collapses adjacent duplicate entries that can arise when a
// relay's own PQKD sae_id is already the origin/destination endpoint.
func dedupeAdjacent(endpoints []string) []string {
	out := make([]string, 0, len(endpoints))
	for _, e := range endpoints {
		if len(out) > 0 && out[len(out)-1] == e {
			continue
		}
		out = append(out, e)
	}
	return out
}

