package egress

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/qkd-trust/pqkd-relay/internal/etsiapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKMEClientEncKeys(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/keys/Val_2SAE/enc_keys", r.URL.Path)
		var body etsiapi.EncKeysRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 1, body.Number)
		assert.Equal(t, 256, body.Size)

		_ = json.NewEncoder(w).Encode(etsiapi.Keys{Keys: []etsiapi.Key{{KeyID: "k1", Key: "aGVsbG8="}}})
	}))
	defer srv.Close()

	client := NewKMEClient(srv.Client(), srv.URL)
	keys, err := client.EncKeys(context.Background(), "Val_2SAE", 1, 256)
	require.NoError(t, err)
	require.Len(t, keys.Keys, 1)
	assert.Equal(t, "k1", keys.Keys[0].KeyID)
}

func TestKMEClientDecKeysRequiresExactlyOne(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(etsiapi.Keys{Keys: []etsiapi.Key{}})
	}))
	defer srv.Close()

	client := NewKMEClient(srv.Client(), srv.URL)
	_, err := client.DecKeys(context.Background(), "Test_1SAE", "missing")
	require.Error(t, err)
}

func TestKMEClientUpstreamErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewKMEClient(srv.Client(), srv.URL)
	_, err := client.Status(context.Background(), "Test_2SAE")
	require.Error(t, err)
}
