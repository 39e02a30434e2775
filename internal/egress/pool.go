// Package egress builds and holds the per-PQKD HTTP client pool used for
// outbound calls to local KMEs and peer relays (§4.5).
package egress

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/qkd-trust/pqkd-relay/internal/topology"
)

// Pool holds one *http.Client per PQKD endpoint, keyed by sae_id. This
// mirrors the reference implementation's per-sae_id client map rather than a
// single client shared by the whole relay process, since distinct PQKDs in
// one process may carry distinct mTLS identities (SPEC supplemented feature 1).
type Pool struct {
	clients map[string]*http.Client
}

// Build constructs one client per pqkd. If a pqkd configures all three of
// CACert/ClientCert/ClientKey, the client uses mTLS; otherwise it is a plain
// HTTPS client using the system root pool.
func Build(pqkds []topology.PQKD) (*Pool, error) {
	clients := make(map[string]*http.Client, len(pqkds))
	for _, p := range pqkds {
		client, err := buildClient(p)
		if err != nil {
			return nil, fmt.Errorf("egress: building client for %s: %w", p.SAEID, err)
		}
		clients[p.SAEID] = client
	}
	return &Pool{clients: clients}, nil
}

// ClientFor returns the client for the given local PQKD sae_id, and false if
// no such PQKD was configured.
func (p *Pool) ClientFor(saeID string) (*http.Client, bool) {
	c, ok := p.clients[saeID]
	return c, ok
}

func buildClient(p topology.PQKD) (*http.Client, error) {
	transport := &http.Transport{
		// HTTP/1.1 only: some KME firmware's ETSI implementation does not
		// speak h2c and net/http already canonicalizes (title-cases) header
		// keys on the wire for HTTP/1.1, which is what §4.5 requires.
		ForceAttemptHTTP2: false,
		// An empty, non-nil TLSNextProto keeps HTTP/2 off for the plain
		// HTTPS client too, where no custom TLS config would otherwise
		// disable it.
		TLSNextProto: map[string]func(string, *tls.Conn) http.RoundTripper{},
	}

	if p.CACert != "" && p.ClientCert != "" && p.ClientKey != "" {
		cert, err := tls.LoadX509KeyPair(p.ClientCert, p.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("loading client identity: %w", err)
		}

		caBytes, err := os.ReadFile(p.CACert)
		if err != nil {
			return nil, fmt.Errorf("reading CA cert: %w", err)
		}
		caPool := x509.NewCertPool()
		if !caPool.AppendCertsFromPEM(caBytes) {
			return nil, fmt.Errorf("CA cert at %s contained no usable certificates", p.CACert)
		}

		transport.TLSClientConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			RootCAs:      caPool,
			MinVersion:   tls.VersionTLS12,
		}
	}

	return &http.Client{
		Transport: transport,
		Timeout:   30 * time.Second,
	}, nil
}
