package egress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/qkd-trust/pqkd-relay/internal/etsiapi"
	"github.com/qkd-trust/pqkd-relay/internal/relayerr"
)

// KMEClient wraps one PQKD's HTTP client and KME base address with the three
// ETSI calls the relay protocol engine needs to make against its own local
// KME (§4.1 step b, §4.3's intermediate-hop key request, §4.4's decapsulation).
type KMEClient struct {
	http    *http.Client
	baseURL string
}

// NewKMEClient builds a KME client for one PQKD's kme_address.
func NewKMEClient(client *http.Client, kmeAddress string) *KMEClient {
	return &KMEClient{http: client, baseURL: kmeAddress}
}

// Status fetches the ETSI status document for the given peer SAE.
func (k *KMEClient) Status(ctx context.Context, slaveSAEID string) (*etsiapi.Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		k.baseURL+"/api/v1/keys/"+url.PathEscape(slaveSAEID)+"/status", nil)
	if err != nil {
		return nil, relayerr.UpstreamKme("building status request", err)
	}

	var status etsiapi.Status
	if err := k.doJSON(req, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// EncKeys requests number fresh keys of size bits from the local KME, to be
// shared with slaveSAEID.
func (k *KMEClient) EncKeys(ctx context.Context, slaveSAEID string, number, size int) (*etsiapi.Keys, error) {
	keys, _, err := k.EncKeysRaw(ctx, slaveSAEID, number, size)
	return keys, err
}

// EncKeysRaw is EncKeys plus the exact response body the local KME sent, so
// a caller that must hand the origin KME's own enc_keys response back to
// its SAE verbatim (§4.1.d) doesn't have to re-serialize a reconstructed
// value.
func (k *KMEClient) EncKeysRaw(ctx context.Context, slaveSAEID string, number, size int) (*etsiapi.Keys, []byte, error) {
	body, err := json.Marshal(etsiapi.EncKeysRequest{Number: number, Size: size})
	if err != nil {
		return nil, nil, relayerr.UpstreamKme("encoding enc_keys request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		k.baseURL+"/api/v1/keys/"+url.PathEscape(slaveSAEID)+"/enc_keys", bytes.NewReader(body))
	if err != nil {
		return nil, nil, relayerr.UpstreamKme("building enc_keys request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var keys etsiapi.Keys
	raw, err := k.doJSONRaw(req, &keys)
	if err != nil {
		return nil, nil, err
	}
	return &keys, raw, nil
}

// DecKeys recovers a single previously-granted key by id from the local KME,
// identifying the requesting peer as masterSAEID.
func (k *KMEClient) DecKeys(ctx context.Context, masterSAEID, keyID string) (*etsiapi.Key, error) {
	reqURL := k.baseURL + "/api/v1/keys/" + url.PathEscape(masterSAEID) + "/dec_keys?" +
		(url.Values{"key_ID": []string{keyID}}).Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, relayerr.UpstreamKme("building dec_keys request", err)
	}

	var keys etsiapi.Keys
	if err := k.doJSON(req, &keys); err != nil {
		return nil, err
	}
	if len(keys.Keys) != 1 {
		return nil, relayerr.UpstreamKme(
			fmt.Sprintf("dec_keys for key_ID=%s returned %d keys, want 1", keyID, len(keys.Keys)), nil)
	}
	return &keys.Keys[0], nil
}

func (k *KMEClient) doJSON(req *http.Request, out interface{}) error {
	_, err := k.doJSONRaw(req, out)
	return err
}

// doJSONRaw performs the request, decodes the body into out, and also
// returns the raw body bytes for callers that need to pass the response
// through unchanged.
func (k *KMEClient) doJSONRaw(req *http.Request, out interface{}) ([]byte, error) {
	resp, err := k.http.Do(req)
	if err != nil {
		return nil, relayerr.UpstreamKme("calling local KME", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, relayerr.UpstreamKme("local KME returned status "+strconv.Itoa(resp.StatusCode), nil)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, relayerr.UpstreamKme("reading local KME response", err)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return nil, relayerr.UpstreamKme("decoding local KME response", err)
	}
	return raw, nil
}
