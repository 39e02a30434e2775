// Package etsifrontend implements the per-PQKD ETSI GS QKD 014 REST surface:
// direct pass-through to the local KME for the quantum-adjacent peer, and
// multi-hop enc_keys/dec_keys orchestration for every other destination SAE
// (§4.1).
package etsifrontend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/qkd-trust/pqkd-relay/internal/egress"
	"github.com/qkd-trust/pqkd-relay/internal/etsiapi"
	"github.com/qkd-trust/pqkd-relay/internal/interrelay"
	"github.com/qkd-trust/pqkd-relay/internal/keystore"
	"github.com/qkd-trust/pqkd-relay/internal/logger"
	"github.com/qkd-trust/pqkd-relay/internal/metrics"
	"github.com/qkd-trust/pqkd-relay/internal/relayerr"
	"github.com/qkd-trust/pqkd-relay/internal/topology"
)

// Deps are the components one PQKD's ETSI frontend needs.
type Deps struct {
	Local     topology.PQKD
	Hypercube *topology.Hypercube
	PQKDs     map[string]topology.PQKD
	Egress    *egress.Pool
	Store     *keystore.Store
	Relay     *interrelay.Server
	FanoutN   int
	Logger    logger.Logger
}

// Server is one PQKD's ETSI-facing HTTP server.
type Server struct {
	deps Deps
}

func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = logger.GetDefaultLogger()
	}
	return &Server{deps: deps}
}

// Handler returns the HTTP handler serving this PQKD's ETSI routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/keys/{sae_id}/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/keys/{sae_id}/enc_keys", s.handleEncKeysGet)
	mux.HandleFunc("POST /api/v1/keys/{sae_id}/enc_keys", s.handleEncKeysPost)
	mux.HandleFunc("GET /api/v1/keys/{sae_id}/dec_keys", s.handleDecKeysGet)
	mux.HandleFunc("POST /api/v1/keys/{sae_id}/dec_keys", s.handleDecKeysPost)
	return mux
}

func (s *Server) isDirectPeer(targetSAE string) bool {
	return targetSAE == s.deps.Local.RemoteSAEID
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	target := r.PathValue("sae_id")
	if s.isDirectPeer(target) {
		s.proxyToKME(w, r)
		return
	}
	s.fail(w, relayerr.UpstreamKme("status is only supported for the quantum-adjacent peer", nil))
}

func (s *Server) handleEncKeysGet(w http.ResponseWriter, r *http.Request) {
	target := r.PathValue("sae_id")
	if s.isDirectPeer(target) {
		s.proxyToKME(w, r)
		return
	}

	number := queryInt(r, "number", 1)
	size := queryInt(r, "size", 0)
	s.multiHopEncKeys(w, r.Context(), target, number, size)
}

func (s *Server) handleEncKeysPost(w http.ResponseWriter, r *http.Request) {
	target := r.PathValue("sae_id")
	if s.isDirectPeer(target) {
		s.proxyToKME(w, r)
		return
	}

	var req etsiapi.EncKeysRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, relayerr.UpstreamKme("decoding enc_keys request body", err))
		return
	}
	if req.Number == 0 {
		req.Number = 1
	}
	s.multiHopEncKeys(w, r.Context(), target, req.Number, req.Size)
}

func (s *Server) handleDecKeysGet(w http.ResponseWriter, r *http.Request) {
	target := r.PathValue("sae_id")
	if s.isDirectPeer(target) {
		s.proxyToKME(w, r)
		return
	}
	s.multiHopDecKeys(w, target, r.URL.Query()["key_ID"])
}

func (s *Server) handleDecKeysPost(w http.ResponseWriter, r *http.Request) {
	target := r.PathValue("sae_id")
	if s.isDirectPeer(target) {
		s.proxyToKME(w, r)
		return
	}

	var req etsiapi.KeyIDs
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, relayerr.UpstreamKme("decoding dec_keys request body", err))
		return
	}
	ids := make([]string, len(req.KeyIDs))
	for i, k := range req.KeyIDs {
		ids[i] = k.KeyID
	}
	s.multiHopDecKeys(w, target, ids)
}

// multiHopEncKeys implements §4.1's multi-hop enc_keys orchestration: plan
// paths, obtain the end-to-end keys from the local KME once, then dispatch
// the same keys along every path in parallel and wait for all of them.
func (s *Server) multiHopEncKeys(w http.ResponseWriter, ctx context.Context, destSAE string, number, size int) {
	metrics.EncKeysRequests.WithLabelValues(s.deps.Local.SAEID, "multi_hop").Inc()

	paths, err := topology.PlanPaths(s.deps.Hypercube, s.deps.PQKDs, s.deps.Local.SAEID, destSAE, s.deps.FanoutN)
	if err != nil {
		s.fail(w, err)
		return
	}

	client, ok := s.deps.Egress.ClientFor(s.deps.Local.SAEID)
	if !ok {
		s.fail(w, relayerr.UnknownPqkd(s.deps.Local.SAEID))
		return
	}
	kme := egress.NewKMEClient(client, s.deps.Local.KMEAddress)

	keys, raw, err := kme.EncKeysRaw(ctx, s.deps.Local.RemoteSAEID, number, size)
	if err != nil {
		s.fail(w, err)
		return
	}

	metrics.FanoutWidth.Observe(float64(len(paths)))

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range paths {
		endpoints := p.Endpoints
		g.Go(func() error {
			return s.deps.Relay.SendOriginHop(gctx, endpoints, keys.Keys)
		})
	}
	if err := g.Wait(); err != nil {
		s.fail(w, err)
		return
	}

	// §4.1.d: the SAE sees the origin KME's own enc_keys response
	// verbatim, the same invariant proxyToKME demonstrates for direct peers.
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(raw)
}

// multiHopDecKeys serves dec_keys for a non-adjacent source entirely out of
// the local Key Store (§4.1's multi-hop dec_keys branch).
func (s *Server) multiHopDecKeys(w http.ResponseWriter, sourceSAE string, keyIDs []string) {
	metrics.DecKeysRequests.WithLabelValues(s.deps.Local.SAEID, "multi_hop").Inc()

	extracted := s.deps.Store.Take(sourceSAE, keyIDs)
	resp := etsiapi.Keys{Keys: make([]etsiapi.Key, len(extracted))}
	for i, e := range extracted {
		resp.Keys[i] = etsiapi.Key{KeyID: e.KeyID, Key: e.KeyB64}
	}
	writeJSON(w, &resp)
}

// proxyToKME implements invariant 1 (proxy transparency): the response seen
// by the SAE is the local KME's response, verbatim.
func (s *Server) proxyToKME(w http.ResponseWriter, r *http.Request) {
	kmeURL, err := url.Parse(s.deps.Local.KMEAddress)
	if err != nil {
		s.fail(w, relayerr.UpstreamKme("parsing kme_address", err))
		return
	}

	client, ok := s.deps.Egress.ClientFor(s.deps.Local.SAEID)
	if !ok {
		s.fail(w, relayerr.UnknownPqkd(s.deps.Local.SAEID))
		return
	}

	proxy := httputil.NewSingleHostReverseProxy(kmeURL)
	proxy.Transport = client.Transport
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		s.fail(w, relayerr.UpstreamKme("proxying to local KME", err))
	}
	proxy.ServeHTTP(w, r)
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	s.deps.Logger.Error("etsi request failed", logger.Error(err))
	http.Error(w, err.Error(), relayerr.HTTPStatus(err))
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
