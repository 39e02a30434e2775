// Package relayproto implements the inter-relay wire envelope and the
// XOR-chain encapsulation/decapsulation engine described in §3 and §4.3.
//
// The XOR in this package operates byte-wise over the base64-textual
// representation of keys, not their decoded bytes, bit-for-bit matching the
// reference implementation. This is flagged as a likely bug upstream (it
// doubles the hop-local key material required and couples correctness to
// the exact base64 encoding), but interoperability with the reference wins:
// see DESIGN.md's Open Question decisions.
package relayproto

import (
	"fmt"

	"github.com/qkd-trust/pqkd-relay/internal/etsiapi"
	"github.com/qkd-trust/pqkd-relay/internal/relayerr"
)

// Prom is the per-key carrier of the inter-relay envelope (§3).
type Prom struct {
	KeyID    string  `json:"key_id"`
	KeyIDXor *string `json:"key_id_xor"`
	Key      []byte  `json:"key"`
}

// DataKeys is the POST /info_keys body (§3).
type DataKeys struct {
	From string   `json:"from"`
	To   string   `json:"to"`
	Path []string `json:"path"`
	Keys []Prom   `json:"keys"`
}

// ResolvedKey is a key this relay already holds in the clear: either the
// origin's end-to-end key K, or the plaintext recovered by decapsulating a
// previous hop.
type ResolvedKey struct {
	KeyID  string
	KeyB64 string
}

// xorASCII XORs the base64-ASCII byte representations of two key strings.
// Per §4.3/§9 this is a deliberate departure from raw-byte XOR, preserved
// for interoperability.
func xorASCII(a, b string) ([]byte, error) {
	ab, bb := []byte(a), []byte(b)
	if len(ab) != len(bb) {
		return nil, fmt.Errorf("relayproto: xor operand length mismatch: %d vs %d", len(ab), len(bb))
	}
	out := make([]byte, len(ab))
	for i := range ab {
		out[i] = ab[i] ^ bb[i]
	}
	return out, nil
}

// OriginProms builds the hop-0 envelope contents: bare key IDs, no key
// material, per §4.3's row for i=0 (origin).
func OriginProms(keys []etsiapi.Key) []Prom {
	out := make([]Prom, len(keys))
	for i, k := range keys {
		out[i] = Prom{KeyID: k.KeyID}
	}
	return out
}

// IntermediateProms builds the envelope contents for an intermediate hop
// (0 < i < len-1): the in-flight key is XORed with a fresh hop-local key
// requested from the local KME toward the next hop. incoming and fresh must
// be the same length and positionally correspond to the same logical key.
func IntermediateProms(incoming []ResolvedKey, fresh []etsiapi.Key) ([]Prom, error) {
	if len(incoming) != len(fresh) {
		return nil, relayerr.SendKeys(
			fmt.Sprintf("intermediate hop key count mismatch: %d incoming vs %d fresh", len(incoming), len(fresh)), nil)
	}

	out := make([]Prom, len(incoming))
	for i := range incoming {
		xored, err := xorASCII(incoming[i].KeyB64, fresh[i].Key)
		if err != nil {
			return nil, relayerr.SendKeys("xor-encapsulating hop key", err)
		}
		xorID := fresh[i].KeyID
		out[i] = Prom{
			KeyID:    incoming[i].KeyID,
			KeyIDXor: &xorID,
			Key:      xored,
		}
	}
	return out, nil
}

// DecapsulateDirect handles the defensive row of §4.4's table:
// key_id_xor=null, key=bytes already present — treat as an already-resolved
// key, no KME round-trip needed.
func DecapsulateDirect(p Prom) ResolvedKey {
	return ResolvedKey{KeyID: p.KeyID, KeyB64: string(p.Key)}
}

// DecapsulateIntermediate recovers the in-flight key at an intermediate or
// terminal hop by XORing the envelope's ciphertext with the hop-local key
// fetched (by the caller, via the local KME) under p.KeyIDXor.
func DecapsulateIntermediate(p Prom, xorKeyB64 string) (ResolvedKey, error) {
	recovered, err := xorASCII(string(p.Key), xorKeyB64)
	if err != nil {
		return ResolvedKey{}, relayerr.GetKeys("xor-decapsulating hop key", err)
	}
	return ResolvedKey{KeyID: p.KeyID, KeyB64: string(recovered)}, nil
}

// HopSizeBits computes the size parameter for an intermediate hop's request
// for fresh KME key material: the bit length of the incoming key's base64
// text, matching §4.3's adopted resolution of the size-parameter
// inconsistency in the reference (len(base64)*8, not a hardcoded constant).
func HopSizeBits(incomingB64 string) int {
	return len(incomingB64) * 8
}
