package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRegistration(t *testing.T) {
	if EncKeysRequests == nil {
		t.Error("EncKeysRequests metric is nil")
	}
	if DecKeysRequests == nil {
		t.Error("DecKeysRequests metric is nil")
	}
	if HopLatency == nil {
		t.Error("HopLatency metric is nil")
	}
	if FanoutWidth == nil {
		t.Error("FanoutWidth metric is nil")
	}
	if KeyStoreSize == nil {
		t.Error("KeyStoreSize metric is nil")
	}
	if DecapsulationFailures == nil {
		t.Error("DecapsulationFailures metric is nil")
	}
}

func TestMetricsIncrement(t *testing.T) {
	EncKeysRequests.WithLabelValues("Test_1SAE", "multi_hop").Inc()
	DecKeysRequests.WithLabelValues("Test_1SAE", "pass_through").Inc()
	HopLatency.WithLabelValues("origin").Observe(0.01)
	FanoutWidth.Observe(2)
	KeyStoreSize.WithLabelValues("Val_2SAE").Set(3)
	DecapsulationFailures.WithLabelValues("unknown_pqkd").Inc()

	if count := testutil.CollectAndCount(EncKeysRequests); count == 0 {
		t.Error("EncKeysRequests has no metrics collected")
	}
	if count := testutil.CollectAndCount(HopLatency); count == 0 {
		t.Error("HopLatency has no metrics collected")
	}
	if count := testutil.CollectAndCount(KeyStoreSize); count == 0 {
		t.Error("KeyStoreSize has no metrics collected")
	}
}
