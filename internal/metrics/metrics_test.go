package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.GenerationAttempt("gemini", "error")
	m.GenerationAttempt("gemini", "error")
	m.GenerationAttempt("gemini", "success")
	m.EvidenceRequest("serpapi", "success")
	m.ClaimProcessed("completed")
	m.ObserveStage("decomposed", 150*time.Millisecond)
	m.HTTPRequest("/process-claim", "200", time.Second)

	if got := testutil.ToFloat64(m.generationAttempts.WithLabelValues("gemini", "error")); got != 2 {
		t.Errorf("Expected 2 failed attempts, got %v", got)
	}
	if got := testutil.ToFloat64(m.claims.WithLabelValues("completed")); got != 1 {
		t.Errorf("Expected 1 completed claim, got %v", got)
	}
	if got := testutil.CollectAndCount(m.stageDuration); got != 1 {
		t.Errorf("Expected 1 stage series, got %d", got)
	}
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	// Two instances must not panic on duplicate registration
	_ = New(prometheus.NewRegistry())
	_ = New(prometheus.NewRegistry())
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.GenerationAttempt("gemini", "success")
	m.EvidenceRequest("jina", "error")
	m.ObserveStage("verified", time.Second)
	m.ClaimProcessed("failed")
	m.HTTPRequest("/health", "200", time.Millisecond)
}
