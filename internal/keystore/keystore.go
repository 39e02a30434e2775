// Package keystore implements the destination-side buffer described in §4.6:
// an in-memory multimap of keys received via the inter-relay protocol,
// consumed exactly once by the destination SAE's dec_keys request.
package keystore

import (
	"sync"

	"github.com/qkd-trust/pqkd-relay/internal/relayerr"
)

// record is one buffered key, scoped to the owning PQKD (implicit: one Store
// per destination PQKD, per §4.6 "Per destination-PQKD").
type record struct {
	source string
	keyID  string
	keyB64 string
}

// ExtractedKey is a (key, key_id) pair returned by Take, matching the shape
// dec_keys hands back to the caller.
type ExtractedKey struct {
	KeyID  string
	KeyB64 string
}

// Store is the per-PQKD key buffer. One Store instance per local PQKD
// endpoint; guarded by a single mutex per §4.6/§5.
type Store struct {
	mu      sync.Mutex
	records []record
}

// New creates an empty key store for one PQKD endpoint.
func New() *Store {
	return &Store{}
}

// Put buffers a key received from source under key_id. If a record with the
// same (source, key_id) already exists, Put is a no-op when the key material
// matches and returns relayerr.KeysDoNotMatch otherwise (§4.6, invariant 4).
func (s *Store) Put(source, keyID, keyB64 string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.records {
		if r.source == source && r.keyID == keyID {
			if r.keyB64 == keyB64 {
				return nil
			}
			return relayerr.KeysDoNotMatch(source, keyID)
		}
	}

	s.records = append(s.records, record{source: source, keyID: keyID, keyB64: keyB64})
	return nil
}

// Take removes and returns the records matching (source, id) for each id in
// keyIDs, preserving request order. Ids with no matching record are simply
// absent from the result (§4.6: "not an error per-id").
func (s *Store) Take(source string, keyIDs []string) []ExtractedKey {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ExtractedKey, 0, len(keyIDs))
	for _, id := range keyIDs {
		if idx, ok := s.findLocked(source, id); ok {
			out = append(out, ExtractedKey{KeyID: s.records[idx].keyID, KeyB64: s.records[idx].keyB64})
			s.removeAtLocked(idx)
		}
	}
	return out
}

func (s *Store) findLocked(source, id string) (int, bool) {
	for i, r := range s.records {
		if r.source == source && r.keyID == id {
			return i, true
		}
	}
	return 0, false
}

// removeAtLocked drops index i via swap-with-last, per §4.6's explicit
// allowance that removal may reorder the underlying sequence.
func (s *Store) removeAtLocked(i int) {
	last := len(s.records) - 1
	s.records[i] = s.records[last]
	s.records = s.records[:last]
}

// Len reports the number of buffered records, for health/metrics reporting.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
