package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var metric dto.Metric
	if err := g.Write(&metric); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return metric.GetGauge().GetValue()
}

func TestOutboxMetrics(t *testing.T) {
	m := NewOutboxMetricsWithRegisterer(prometheus.NewRegistry())

	m.RecordPublish("sent")
	m.RecordPublish("sent")
	m.SetBacklog(3, 2*time.Second)

	if got := counterValue(t, m.publishAttempts, "sent"); got != 2 {
		t.Fatalf("sent = %v, want 2", got)
	}
	if got := gaugeValue(t, m.pendingRecords); got != 3 {
		t.Fatalf("pending = %v, want 3", got)
	}
	if got := gaugeValue(t, m.oldestPendingAge); got != 2 {
		t.Fatalf("oldest age = %v, want 2", got)
	}

	m.SetBacklog(0, -time.Second)
	if got := gaugeValue(t, m.oldestPendingAge); got != 0 {
		t.Fatalf("negative age must clamp to 0, got %v", got)
	}

	var nilMetrics *OutboxMetrics
	nilMetrics.RecordPublish("sent")
	nilMetrics.SetBacklog(1, time.Second)
}

func TestCleanupMetrics(t *testing.T) {
	m := NewCleanupMetricsWithRegisterer(prometheus.NewRegistry())

	m.AddDeleted(4)
	m.AddDeleted(0)
	m.RecordRun(ResultOK, 4)
	m.RecordRun(ResultError, 0)

	if got := counterValue(t, m.runs, ResultOK); got != 1 {
		t.Fatalf("ok runs = %v, want 1", got)
	}
	if got := gaugeValue(t, m.lastDeleted); got != 4 {
		t.Fatalf("last deleted = %v, want 4", got)
	}
}
