// Package interrelay implements the inter-relay frontend: the single
// POST /info_keys endpoint through which relay processes exchange XOR-chain
// envelopes (§4.4), plus the outbound side of the same exchange so the ETSI
// frontend can dispatch a path's origin hop through the same machinery.
package interrelay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/qkd-trust/pqkd-relay/internal/egress"
	"github.com/qkd-trust/pqkd-relay/internal/etsiapi"
	"github.com/qkd-trust/pqkd-relay/internal/keystore"
	"github.com/qkd-trust/pqkd-relay/internal/logger"
	"github.com/qkd-trust/pqkd-relay/internal/metrics"
	"github.com/qkd-trust/pqkd-relay/internal/relayerr"
	"github.com/qkd-trust/pqkd-relay/internal/relayproto"
	"github.com/qkd-trust/pqkd-relay/internal/topology"
)

// Deps are the components one relay process's inter-relay frontend needs.
// PQKDs and Stores are keyed by sae_id and cover every PQKD this process
// hosts; Egress holds one client per such PQKD.
type Deps struct {
	PQKDs  map[string]topology.PQKD
	Stores map[string]*keystore.Store
	Egress *egress.Pool
	Logger logger.Logger
}

// Server handles inbound info_keys POSTs and dispatches outbound hops.
type Server struct {
	deps Deps
}

func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = logger.GetDefaultLogger()
	}
	return &Server{deps: deps}
}

// Handler returns the HTTP handler serving POST /info_keys.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /info_keys", s.handleInfoKeys)
	return mux
}

// SendOriginHop dispatches the hop-0 envelope for one planned path: bare key
// IDs, no material, sent by path[0] (§4.3's row for i=0).
func (s *Server) SendOriginHop(ctx context.Context, path []string, keys []etsiapi.Key) error {
	if len(path) < 2 {
		return relayerr.Path(fmt.Sprintf("path %v too short to dispatch a hop", path))
	}
	start := time.Now()
	err := s.forwardHop(ctx, path[0], path, relayproto.OriginProms(keys))
	metrics.HopLatency.WithLabelValues("origin").Observe(time.Since(start).Seconds())
	return err
}

func (s *Server) handleInfoKeys(w http.ResponseWriter, r *http.Request) {
	var payload relayproto.DataKeys
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.fail(w, relayerr.SendKeys("decoding info_keys body", err))
		return
	}

	if err := s.processInfoKeys(r.Context(), payload); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// processInfoKeys is the receiving side of §4.4: decapsulate, then either
// store (terminal) or re-encapsulate and forward (intermediate). It is
// shared by the POST /info_keys handler and forwardHop's same-process
// fast path, since a relay process hosting several PQKDs (§2) must not
// round-trip through its own HTTP listener to hand an envelope from one of
// its own PQKDs to another.
func (s *Server) processInfoKeys(ctx context.Context, payload relayproto.DataKeys) error {
	pqkd, ok := s.deps.PQKDs[payload.To]
	if !ok {
		return relayerr.UnknownPqkd(payload.To)
	}
	store, ok := s.deps.Stores[payload.To]
	if !ok {
		return relayerr.UnknownPqkd(payload.To)
	}
	client, ok := s.deps.Egress.ClientFor(payload.To)
	if !ok {
		return relayerr.UnknownPqkd(payload.To)
	}
	kme := egress.NewKMEClient(client, pqkd.KMEAddress)

	start := time.Now()
	resolved, err := s.decapsulateAll(ctx, kme, pqkd, payload.Keys)
	if err != nil {
		metrics.DecapsulationFailures.WithLabelValues(relayerrKind(err)).Inc()
		return err
	}

	terminal := len(payload.Path) > 0 && payload.Path[len(payload.Path)-1] == payload.To

	if terminal {
		source := payload.Path[0]
		for _, rk := range resolved {
			if err := store.Put(source, rk.KeyID, rk.KeyB64); err != nil {
				return err
			}
		}
		metrics.HopLatency.WithLabelValues("terminal").Observe(time.Since(start).Seconds())
		return nil
	}

	if err := s.continueChain(ctx, kme, pqkd, payload.Path, resolved); err != nil {
		return err
	}
	metrics.HopLatency.WithLabelValues("intermediate").Observe(time.Since(start).Seconds())
	return nil
}

// decapsulateAll recovers the in-flight key for every Prom in an envelope.
// Regardless of hop shape, any KME round-trip needed is always addressed to
// this PQKD's own quantum-adjacent peer (pqkd.RemoteSAEID): the topology
// invariant that connections only join quantum-adjacent PQKDs guarantees the
// sender of any hop landing here is exactly that peer.
func (s *Server) decapsulateAll(ctx context.Context, kme *egress.KMEClient, pqkd topology.PQKD, proms []relayproto.Prom) ([]relayproto.ResolvedKey, error) {
	out := make([]relayproto.ResolvedKey, len(proms))
	for i, p := range proms {
		switch {
		case p.KeyIDXor == nil && p.Key != nil:
			out[i] = relayproto.DecapsulateDirect(p)
		case p.KeyIDXor == nil && p.Key == nil:
			key, err := kme.DecKeys(ctx, pqkd.RemoteSAEID, p.KeyID)
			if err != nil {
				return nil, err
			}
			out[i] = relayproto.ResolvedKey{KeyID: p.KeyID, KeyB64: key.Key}
		default:
			xorKey, err := kme.DecKeys(ctx, pqkd.RemoteSAEID, *p.KeyIDXor)
			if err != nil {
				return nil, err
			}
			resolved, err := relayproto.DecapsulateIntermediate(p, xorKey.Key)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
	}
	return out, nil
}

// continueChain re-encapsulates the resolved keys for the next hop and
// forwards them, with this PQKD now acting as sender.
func (s *Server) continueChain(ctx context.Context, kme *egress.KMEClient, pqkd topology.PQKD, path []string, resolved []relayproto.ResolvedKey) error {
	if len(resolved) == 0 {
		return relayerr.SendKeys("no keys to continue chain with", nil)
	}

	size := relayproto.HopSizeBits(resolved[0].KeyB64)
	fresh, err := kme.EncKeys(ctx, pqkd.RemoteSAEID, len(resolved), size)
	if err != nil {
		return err
	}

	proms, err := relayproto.IntermediateProms(resolved, fresh.Keys)
	if err != nil {
		return err
	}

	return s.forwardHop(ctx, pqkd.SAEID, path, proms)
}

// forwardHop delivers an envelope to the next hop, addressed through
// senderSAE's own egress client and its remote_proxy_address (§4.3's
// "envelope destination" rule). If the next hop's PQKD is hosted by this
// same relay process (§2: one process, several PQKDs), it is handed to
// processInfoKeys directly rather than looped back through HTTP.
func (s *Server) forwardHop(ctx context.Context, senderSAE string, path []string, proms []relayproto.Prom) error {
	sender, ok := s.deps.PQKDs[senderSAE]
	if !ok {
		return relayerr.UnknownPqkd(senderSAE)
	}

	nextSAE, ok := nextHop(path, senderSAE)
	if !ok {
		return relayerr.Path(fmt.Sprintf("sender %q is not on path %v", senderSAE, path))
	}

	payload := relayproto.DataKeys{From: senderSAE, To: nextSAE, Path: path, Keys: proms}

	if _, local := s.deps.PQKDs[nextSAE]; local {
		return s.processInfoKeys(ctx, payload)
	}

	client, ok := s.deps.Egress.ClientFor(senderSAE)
	if !ok {
		return relayerr.UnknownPqkd(senderSAE)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return relayerr.SendKeys("encoding info_keys envelope", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		sender.RemoteProxyAddress+"/info_keys", bytes.NewReader(body))
	if err != nil {
		return relayerr.SendKeys("building info_keys request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return relayerr.SendKeys("posting info_keys to "+sender.RemoteProxyAddress, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return relayerr.SendKeys(fmt.Sprintf("peer relay at %s returned status %d", sender.RemoteProxyAddress, resp.StatusCode), nil)
	}
	return nil
}

func nextHop(path []string, senderSAE string) (string, bool) {
	for i, sae := range path {
		if sae == senderSAE && i+1 < len(path) {
			return path[i+1], true
		}
	}
	return "", false
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	s.deps.Logger.Error("info_keys request failed", logger.Error(err))
	http.Error(w, err.Error(), relayerr.HTTPStatus(err))
}

func relayerrKind(err error) string {
	var relayErr *relayerr.Error
	if errors.As(err, &relayErr) {
		return string(relayErr.Kind)
	}
	return "unknown"
}
