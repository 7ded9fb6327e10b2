package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_RegistersAndCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewWithRegistry(reg)

	c.TokensSpent.WithLabelValues("dashscope").Add(12)
	c.StreamChunks.WithLabelValues("moonshot").Inc()
	c.RateLimitHits.WithLabelValues("advice").Inc()
	c.LedgerFailures.Inc()

	if got := testutil.ToFloat64(c.TokensSpent.WithLabelValues("dashscope")); got != 12 {
		t.Errorf("tokens spent = %v, want 12", got)
	}
	if got := testutil.ToFloat64(c.LedgerFailures); got != 1 {
		t.Errorf("ledger failures = %v, want 1", got)
	}
}

func TestCollector_SeparateRegistries(t *testing.T) {
	a := NewWithRegistry(prometheus.NewRegistry())
	b := NewWithRegistry(prometheus.NewRegistry())

	a.StreamRetries.WithLabelValues("dashscope").Inc()
	if got := testutil.ToFloat64(b.StreamRetries.WithLabelValues("dashscope")); got != 0 {
		t.Errorf("registries shared state: %v", got)
	}
}
