// Package metrics exposes the relay's prometheus counters and histograms,
// following the teacher's promauto.With(Registry) convention.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pqkd_relay"

// Registry is a private registry (not the global default) so a relay
// process hosting several PQKD endpoints registers exactly one set of
// collectors regardless of how many ETSI frontends it starts.
var Registry = prometheus.NewRegistry()

var (
	// EncKeysRequests counts enc_keys calls on the ETSI frontend, labelled
	// by sae_id and dispatch mode. The frontend records only multi-hop
	// requests (mode "multi_hop"); requests passed through to the local KME
	// are not counted.
	EncKeysRequests = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "etsi",
			Name:      "enc_keys_requests_total",
			Help:      "Total enc_keys requests received, by sae_id and dispatch mode.",
		},
		[]string{"sae_id", "mode"},
	)

	// DecKeysRequests counts dec_keys calls on the ETSI frontend. As with
	// EncKeysRequests, only multi-hop requests are recorded.
	DecKeysRequests = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "etsi",
			Name:      "dec_keys_requests_total",
			Help:      "Total dec_keys requests received, by sae_id and dispatch mode.",
		},
		[]string{"sae_id", "mode"},
	)

	// HopLatency tracks the duration of a single relay hop delivery.
	HopLatency = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "hop_duration_seconds",
			Help:      "Duration of a single inter-relay hop delivery.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"hop_kind"}, // origin, intermediate, terminal
	)

	// FanoutWidth records how many paths a multi-hop enc_keys transaction
	// fanned out across.
	FanoutWidth = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "fanout_width",
			Help:      "Number of paths dispatched per multi-hop enc_keys transaction.",
			Buckets:   prometheus.LinearBuckets(1, 1, 8),
		},
	)

	// KeyStoreSize is the gauge for the buffered-record count per PQKD. No
	// component of the relay sets it, so it exports no series on its own.
	KeyStoreSize = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "keystore",
			Name:      "buffered_keys",
			Help:      "Number of keys currently buffered awaiting dec_keys.",
		},
		[]string{"pqkd_sae_id"},
	)

	// DecapsulationFailures counts XOR-chain decapsulation errors by cause.
	DecapsulationFailures = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "decapsulation_failures_total",
			Help:      "Total inter-relay envelope decapsulation failures, by reason.",
		},
		[]string{"reason"},
	)
)
