package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	m.RecommendationsTotal.WithLabelValues(OutcomeOK).Inc()
	m.RecommendationsTotal.WithLabelValues(OutcomeOK).Inc()
	m.IndexDocuments.Set(42)

	if got := testutil.ToFloat64(m.RecommendationsTotal.WithLabelValues(OutcomeOK)); got != 2 {
		t.Errorf("recommendations ok = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.IndexDocuments); got != 42 {
		t.Errorf("index documents = %v", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	if len(families) == 0 {
		t.Error("expected registered metric families")
	}
}
