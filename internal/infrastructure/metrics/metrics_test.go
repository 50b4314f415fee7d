package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewWithRegistererRegistersMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()

	m := NewWithRegisterer(registry)

	if m.TransactionsPosted == nil || m.HTTPRequests == nil || m.PostRejections == nil {
		t.Fatalf("expected key metrics to be initialized: %+v", m)
	}

	m.TransactionsPosted.Inc()
	m.PostRejections.WithLabelValues("unbalanced_transaction").Inc()

	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	if len(metricFamilies) == 0 {
		t.Fatalf("expected registered metrics, got none")
	}

	if got := testutil.ToFloat64(m.TransactionsPosted); got != 1 {
		t.Fatalf("expected posted counter 1, got %v", got)
	}
}

func TestNewWithRegistererIsolatedRegistries(t *testing.T) {
	// Two registries must not collide on metric names.
	NewWithRegisterer(prometheus.NewRegistry())
	NewWithRegisterer(prometheus.NewRegistry())
}
