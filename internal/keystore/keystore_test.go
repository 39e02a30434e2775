package keystore

import (
	"testing"

	"github.com/qkd-trust/pqkd-relay/internal/relayerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutIdempotent(t *testing.T) {
	s := New()
	require.NoError(t, s.Put("Test_1SAE", "k1", "aGVsbG8="))
	require.NoError(t, s.Put("Test_1SAE", "k1", "aGVsbG8="))
	assert.Equal(t, 1, s.Len())
}

func TestPutConflictingKeyRejected(t *testing.T) {
	s := New()
	require.NoError(t, s.Put("Test_1SAE", "k1", "aGVsbG8="))

	err := s.Put("Test_1SAE", "k1", "d29ybGQ=")
	require.Error(t, err)

	var relayErr *relayerr.Error
	require.ErrorAs(t, err, &relayErr)
	assert.Equal(t, relayerr.KindKeysDoNotMatch, relayErr.Kind)
}

func TestTakeConsumesOnRead(t *testing.T) {
	s := New()
	require.NoError(t, s.Put("Test_1SAE", "k1", "aGVsbG8="))

	first := s.Take("Test_1SAE", []string{"k1"})
	require.Len(t, first, 1)
	assert.Equal(t, "aGVsbG8=", first[0].KeyB64)

	second := s.Take("Test_1SAE", []string{"k1"})
	assert.Empty(t, second)
}

func TestTakePreservesRequestOrder(t *testing.T) {
	s := New()
	require.NoError(t, s.Put("Test_1SAE", "k2", "Mg=="))
	require.NoError(t, s.Put("Test_1SAE", "k1", "MQ=="))

	got := s.Take("Test_1SAE", []string{"k1", "k2"})
	require.Len(t, got, 2)
	assert.Equal(t, "k1", got[0].KeyID)
	assert.Equal(t, "k2", got[1].KeyID)
}

func TestTakeMissingIDsAreAbsent(t *testing.T) {
	s := New()
	got := s.Take("Test_1SAE", []string{"missing"})
	assert.Empty(t, got)
}
