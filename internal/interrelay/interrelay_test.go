package interrelay

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/qkd-trust/pqkd-relay/internal/egress"
	"github.com/qkd-trust/pqkd-relay/internal/etsiapi"
	"github.com/qkd-trust/pqkd-relay/internal/keystore"
	"github.com/qkd-trust/pqkd-relay/internal/relayproto"
	"github.com/qkd-trust/pqkd-relay/internal/topology"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleInfoKeysTerminalStoresKey(t *testing.T) {
	kme := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/keys/Val_1SAE/dec_keys", r.URL.Path)
		assert.Equal(t, "k1", r.URL.Query().Get("key_ID"))
		_ = json.NewEncoder(w).Encode(etsiapi.Keys{Keys: []etsiapi.Key{{KeyID: "k1", Key: "aGVsbG8="}}})
	}))
	defer kme.Close()

	pqkd := topology.PQKD{SAEID: "Val_2SAE", RemoteSAEID: "Val_1SAE", KMEAddress: kme.URL}
	pool, err := egress.Build([]topology.PQKD{pqkd})
	require.NoError(t, err)

	store := keystore.New()
	srv := NewServer(Deps{
		PQKDs:  map[string]topology.PQKD{"Val_2SAE": pqkd},
		Stores: map[string]*keystore.Store{"Val_2SAE": store},
		Egress: pool,
	})

	payload := relayproto.DataKeys{
		From: "Val_1SAE",
		To:   "Val_2SAE",
		Path: []string{"Test_1SAE", "Val_1SAE", "Val_2SAE"},
		Keys: []relayproto.Prom{{KeyID: "k1"}},
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/info_keys", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	extracted := store.Take("Test_1SAE", []string{"k1"})
	require.Len(t, extracted, 1)
	assert.Equal(t, "aGVsbG8=", extracted[0].KeyB64)
}

func TestHandleInfoKeysIntermediateForwardsNextHop(t *testing.T) {
	knownB64 := "aGVsbG8gd29ybGQ="
	freshB64 := "cXdlcnR5dWlvcGFz"
	require.Equal(t, len(knownB64), len(freshB64))

	xored := make([]byte, len(knownB64))
	for i := range xored {
		xored[i] = knownB64[i] ^ freshB64[i]
	}

	kme := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/keys/Mid_2SAE/dec_keys":
			assert.Equal(t, "kx1", r.URL.Query().Get("key_ID"))
			_ = json.NewEncoder(w).Encode(etsiapi.Keys{Keys: []etsiapi.Key{{KeyID: "kx1", Key: freshB64}}})
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/keys/Mid_2SAE/enc_keys":
			_ = json.NewEncoder(w).Encode(etsiapi.Keys{Keys: []etsiapi.Key{{KeyID: "fresh2", Key: "c29tZWZyZXNoa2V5"}}})
		default:
			t.Fatalf("unexpected KME call: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer kme.Close()

	var peerBody relayproto.DataKeys
	peer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&peerBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer peer.Close()

	pqkd := topology.PQKD{
		SAEID: "Mid_1SAE", RemoteSAEID: "Mid_2SAE",
		KMEAddress: kme.URL, RemoteProxyAddress: peer.URL,
	}
	pool, err := egress.Build([]topology.PQKD{pqkd})
	require.NoError(t, err)

	srv := NewServer(Deps{
		PQKDs:  map[string]topology.PQKD{"Mid_1SAE": pqkd},
		Stores: map[string]*keystore.Store{"Mid_1SAE": keystore.New()},
		Egress: pool,
	})

	xorID := "kx1"
	payload := relayproto.DataKeys{
		From: "Test_2SAE",
		To:   "Mid_1SAE",
		Path: []string{"Test_1SAE", "Test_2SAE", "Mid_1SAE", "Mid_2SAE", "Val_1SAE", "Val_2SAE"},
		Keys: []relayproto.Prom{{KeyID: "k1", KeyIDXor: &xorID, Key: xored}},
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/info_keys", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Mid_1SAE", peerBody.From)
	assert.Equal(t, "Mid_2SAE", peerBody.To)
	require.Len(t, peerBody.Keys, 1)
	require.NotNil(t, peerBody.Keys[0].KeyIDXor)
	assert.Equal(t, "fresh2", *peerBody.Keys[0].KeyIDXor)
}

func TestHandleInfoKeysUnknownDestination(t *testing.T) {
	srv := NewServer(Deps{
		PQKDs:  map[string]topology.PQKD{},
		Stores: map[string]*keystore.Store{},
		Egress: &egress.Pool{},
	})

	payload := relayproto.DataKeys{To: "Unknown_SAE", Path: []string{"a", "Unknown_SAE"}}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/info_keys", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
