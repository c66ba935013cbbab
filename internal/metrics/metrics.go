// Package metrics defines all Prometheus metrics for resolvdhcpd.
// All metrics use the "resolvdhcpd_" prefix.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "resolvdhcpd"

// --- DHCP Packet Metrics (C1/C7) ---

var (
	// PacketsReceived counts DHCP packets received by message type.
	PacketsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "packets_received_total",
		Help:      "Total DHCP packets received, by message type.",
	}, []string{"msg_type"})

	// PacketsSent counts DHCP packets sent by message type.
	PacketsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "packets_sent_total",
		Help:      "Total DHCP packets sent, by message type.",
	}, []string{"msg_type"})

	// PacketErrors counts packet processing errors.
	PacketErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "packet_errors_total",
		Help:      "Total packet processing errors, by type.",
	}, []string{"type"})

	// PacketProcessingDuration tracks DHCP packet handling latency.
	PacketProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "packet_processing_duration_seconds",
		Help:      "DHCP packet processing duration in seconds.",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
	}, []string{"msg_type"})

	// PacketsDropped counts packets dropped by the suspender or admission filter.
	PacketsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "packets_dropped_total",
		Help:      "Total DHCP packets dropped before processing.",
	}, []string{"reason"})
)

// --- Resolver / Cache Metrics (C4/C5) ---
//
// These are registered and exported, but no component updates them, so
// they stay at zero.

var (
	// ResolverLookups counts resolver lookups by outcome (cache_hit, backend_hit, unknown, error).
	ResolverLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "resolver_lookups_total",
		Help:      "Total resolver lookups, by outcome.",
	}, []string{"outcome"})

	// ResolverLookupDuration tracks end-to-end resolver lookup latency.
	ResolverLookupDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "resolver_lookup_duration_seconds",
		Help:      "Resolver lookup duration in seconds, from cache check to Definition (or nil).",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
	})

	// CacheHits counts cache hits by tier (memory, disk).
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_hits_total",
		Help:      "Total cache hits, by tier.",
	}, []string{"tier"})

	// CacheMisses counts cache misses.
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_misses_total",
		Help:      "Total cache misses.",
	})

	// CacheEntries is a gauge of entries currently held in the cache.
	CacheEntries = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cache_entries",
		Help:      "Current number of cached entries, by kind (positive, negative).",
	}, []string{"kind"})

	// CacheReinitialisations counts full-table flushes.
	CacheReinitialisations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_reinitialisations_total",
		Help:      "Total cache reinitialise() flushes.",
	})
)

// --- Suspender Metrics (C6) ---
//
// These are registered and exported, but internal/suspend does not update
// them, so they stay at zero.

var (
	// SuspenderStateTransitions counts state transitions by target state.
	SuspenderStateTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "suspender_state_transitions_total",
		Help:      "Total suspender state transitions, by target state (allowed, throttled, blocked).",
	}, []string{"state"})

	// SuspenderTrackedSources is a gauge of sources currently tracked by the suspender.
	SuspenderTrackedSources = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "suspender_tracked_sources",
		Help:      "Number of (mac, relay_ip) sources currently tracked by the suspender.",
	})
)

// --- Hook Metrics (C8) ---

var (
	// HookExecutions counts hook executions by hook point and result.
	HookExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "hook_executions_total",
		Help:      "Total hook executions, by hook point and result.",
	}, []string{"hook", "result"})

	// HookDuration tracks hook execution latency.
	HookDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "hook_execution_duration_seconds",
		Help:      "Hook execution duration in seconds.",
		Buckets:   []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
	}, []string{"hook"})

	// HookPanics is registered for hook invocations that recovered from a
	// panic; the Safe* wrappers in internal/hooks do not update it, so it
	// stays at zero.
	HookPanics = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "hook_panics_total",
		Help:      "Total hook invocations that panicked and were recovered.",
	}, []string{"hook"})
)

// --- Server Info ---

var (
	// ServerInfo is a constant gauge with server metadata.
	ServerInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "server_info",
		Help:      "Server build and version info.",
	}, []string{"version"})

	// ServerStartTime tracks server start time as a unix timestamp.
	ServerStartTime = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "server_start_time_seconds",
		Help:      "Server start time as Unix timestamp.",
	})
)
