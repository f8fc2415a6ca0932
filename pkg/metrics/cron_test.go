package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCronJobMetricsRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)

	m.ObserveDuration("payment-cleanup", 250*time.Millisecond)
	m.IncSuccess("payment-cleanup")
	m.IncFailure("delivery-auto-match")

	if got := testutil.ToFloat64(m.success.WithLabelValues("payment-cleanup")); got != 1 {
		t.Fatalf("success counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.failure.WithLabelValues("delivery-auto-match")); got != 1 {
		t.Fatalf("failure counter = %v, want 1", got)
	}
}

func TestCronJobMetricsNilSafe(t *testing.T) {
	var m *CronJobMetrics
	m.ObserveDuration("x", time.Second)
	m.IncSuccess("x")
	m.IncFailure("")

	noop := NewCronJobMetrics(nil)
	noop.IncSuccess("x")
}
