package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRegistered(t *testing.T) {
	// promauto registers automatically, so we just verify they exist
	// by writing a value and collecting it.

	PacketsReceived.WithLabelValues("DHCPDISCOVER").Inc()
	PacketsSent.WithLabelValues("DHCPOFFER").Inc()
	PacketErrors.WithLabelValues("decode").Inc()
	PacketsDropped.WithLabelValues("throttled").Inc()
	ResolverLookups.WithLabelValues("cache_hit").Inc()
	CacheHits.WithLabelValues("memory").Inc()
	CacheMisses.Inc()
	CacheEntries.WithLabelValues("positive").Set(42)
	CacheReinitialisations.Inc()
	SuspenderStateTransitions.WithLabelValues("blocked").Inc()
	SuspenderTrackedSources.Set(3)
	HookExecutions.WithLabelValues("filter", "accept").Inc()
	HookPanics.WithLabelValues("load").Inc()
	ServerStartTime.SetToCurrentTime()
	ServerInfo.WithLabelValues("dev").Set(1)

	if got := testutil.ToFloat64(CacheEntries.WithLabelValues("positive")); got != 42 {
		t.Errorf("CacheEntries = %v, want 42", got)
	}
	if got := testutil.ToFloat64(CacheMisses); got != 1 {
		t.Errorf("CacheMisses = %v, want 1", got)
	}
	if got := testutil.ToFloat64(SuspenderTrackedSources); got != 3 {
		t.Errorf("SuspenderTrackedSources = %v, want 3", got)
	}
}

func TestMetricsNamespace(t *testing.T) {
	// All metrics should use the resolvdhcpd_ namespace.
	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	for _, mf := range mfs {
		name := mf.GetName()
		// Skip standard go_* and process_* and promhttp_* metrics
		if strings.HasPrefix(name, "go_") ||
			strings.HasPrefix(name, "process_") ||
			strings.HasPrefix(name, "promhttp_") {
			continue
		}
		if !strings.HasPrefix(name, "resolvdhcpd_") {
			t.Errorf("metric %q does not have resolvdhcpd_ prefix", name)
		}
	}
}
