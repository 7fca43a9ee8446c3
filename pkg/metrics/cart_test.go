package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestCartMetricsExportsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCartMetrics(reg)
	metrics.IncMutation("add")
	metrics.IncMutation("add")
	metrics.IncMutation("")
	metrics.IncLoad("hit")
	metrics.IncPersistFailure()
	metrics.SetActiveSessions(3)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "cart_mutations_total", "op", "add"); err != nil {
		t.Fatalf("fetch mutations: %v", err)
	} else if got != 2 {
		t.Fatalf("expected add=2, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "cart_mutations_total", "op", "unknown"); err != nil || got != 1 {
		t.Fatalf("expected unknown=1, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "cart_loads_total", "outcome", "hit"); err != nil || got != 1 {
		t.Fatalf("expected hit=1, got %f (%v)", got, err)
	}

	failures := findMetricFamily(mfs, "cart_persist_failures_total")
	if failures == nil || failures.GetMetric()[0].GetCounter().GetValue() != 1 {
		t.Fatalf("expected one persist failure, got %v", failures)
	}
	sessions := findMetricFamily(mfs, "cart_sessions_active")
	if sessions == nil || sessions.GetMetric()[0].GetGauge().GetValue() != 3 {
		t.Fatalf("expected 3 active sessions, got %v", sessions)
	}
}

func TestCartMetricsNilSafe(t *testing.T) {
	var metrics *CartMetrics
	metrics.IncMutation("add")
	metrics.IncLoad("hit")
	metrics.IncPersistFailure()
	metrics.SetActiveSessions(1)

	unregistered := NewCartMetrics(nil)
	unregistered.IncMutation("add")
	unregistered.SetActiveSessions(1)
}
