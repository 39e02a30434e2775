package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckCachesResult(t *testing.T) {
	h := NewHealthChecker(time.Second)
	h.SetCacheTTL(time.Minute)

	calls := 0
	h.RegisterCheck("kme", KMEHealthCheck(func(ctx context.Context) error {
		calls++
		return nil
	}))

	ctx := context.Background()
	_, err := h.Check(ctx, "kme")
	require.NoError(t, err)
	_, err = h.Check(ctx, "kme")
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
}

func TestCheckAllReportsUnhealthyOverall(t *testing.T) {
	h := NewHealthChecker(time.Second)

	h.RegisterCheck("kme", KMEHealthCheck(func(ctx context.Context) error { return nil }))
	h.RegisterCheck("peer", PeerRelayHealthCheck(func(ctx context.Context) error {
		return errors.New("unreachable")
	}))

	status := h.GetOverallStatus(context.Background())
	assert.Equal(t, StatusUnhealthy, status)
}

func TestGetOverallStatusHealthyWithNoChecks(t *testing.T) {
	h := NewHealthChecker(time.Second)
	assert.Equal(t, StatusHealthy, h.GetOverallStatus(context.Background()))
}

func TestKeyStoreHealthCheckNilChecker(t *testing.T) {
	check := KeyStoreHealthCheck(nil)
	err := check(context.Background())
	require.Error(t, err)
}

func TestUnregisterCheckClearsCache(t *testing.T) {
	h := NewHealthChecker(time.Second)
	h.RegisterCheck("kme", KMEHealthCheck(func(ctx context.Context) error { return nil }))

	_, err := h.Check(context.Background(), "kme")
	require.NoError(t, err)

	h.UnregisterCheck("kme")

	_, err = h.Check(context.Background(), "kme")
	require.Error(t, err)

	// Re-registering under the same name must run the new check rather
	// than return the healthy result cached before UnregisterCheck.
	h.RegisterCheck("kme", KMEHealthCheck(func(ctx context.Context) error { return errors.New("down") }))
	result, err := h.Check(context.Background(), "kme")
	require.NoError(t, err)
	assert.Equal(t, StatusUnhealthy, result.Status)
}
