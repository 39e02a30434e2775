package relayproto

import (
	"testing"

	"github.com/qkd-trust/pqkd-relay/internal/etsiapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOriginProms(t *testing.T) {
	proms := OriginProms([]etsiapi.Key{{KeyID: "k1", Key: "aGVsbG8="}})
	require.Len(t, proms, 1)
	assert.Equal(t, "k1", proms[0].KeyID)
	assert.Nil(t, proms[0].KeyIDXor)
	assert.Nil(t, proms[0].Key)
}

func TestIntermediateEncapsulateThenDecapsulateRoundTrips(t *testing.T) {
	incoming := []ResolvedKey{{KeyID: "k1", KeyB64: "aGVsbG8gd29ybGQ="}}
	fresh := []etsiapi.Key{{KeyID: "fresh-1", Key: "cXdlcnR5dWlvcGFz"}}

	proms, err := IntermediateProms(incoming, fresh)
	require.NoError(t, err)
	require.Len(t, proms, 1)
	assert.Equal(t, "k1", proms[0].KeyID)
	require.NotNil(t, proms[0].KeyIDXor)
	assert.Equal(t, "fresh-1", *proms[0].KeyIDXor)

	recovered, err := DecapsulateIntermediate(proms[0], fresh[0].Key)
	require.NoError(t, err)
	assert.Equal(t, "k1", recovered.KeyID)
	assert.Equal(t, incoming[0].KeyB64, recovered.KeyB64)
}

func TestIntermediateProphMismatchedLengths(t *testing.T) {
	_, err := IntermediateProms(
		[]ResolvedKey{{KeyID: "k1", KeyB64: "aGVsbG8="}},
		[]etsiapi.Key{},
	)
	require.Error(t, err)
}

func TestHopSizeBits(t *testing.T) {
	assert.Equal(t, 8*8, HopSizeBits("aGVsbG8="))
}
