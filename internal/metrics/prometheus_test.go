package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func newTestSink(t *testing.T) (*PrometheusSink, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewPrometheusSink(reg), reg
}

func getCounterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == name {
			for _, m := range mf.GetMetric() {
				if m.GetCounter() != nil {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func getGaugeValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == name {
			for _, m := range mf.GetMetric() {
				if m.GetGauge() != nil {
					return m.GetGauge().GetValue()
				}
			}
		}
	}
	return 0
}

func getCounterVecValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			matched := true
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					matched = false
					break
				}
			}
			if matched && m.GetCounter() != nil {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestScanStarted(t *testing.T) {
	sink, reg := newTestSink(t)
	sink.ScanStarted()
	sink.ScanStarted()
	if got := getCounterValue(t, reg, "reminderd_scheduler_scans_total"); got != 2 {
		t.Errorf("scans_total = %v, want 2", got)
	}
}

func TestScanCompleted(t *testing.T) {
	sink, reg := newTestSink(t)
	sink.ScanCompleted(50*time.Millisecond, 3, nil)
	sink.ScanCompleted(10*time.Millisecond, 0, errors.New("store down"))

	if got := getCounterValue(t, reg, "reminderd_scheduler_reminders_processed_total"); got != 3 {
		t.Errorf("reminders_processed_total = %v, want 3", got)
	}
	if got := getCounterValue(t, reg, "reminderd_scheduler_scan_errors_total"); got != 1 {
		t.Errorf("scan_errors_total = %v, want 1", got)
	}
}

func TestScanSkipped(t *testing.T) {
	sink, reg := newTestSink(t)
	sink.ScanSkipped()
	if got := getCounterValue(t, reg, "reminderd_scheduler_scans_skipped_total"); got != 1 {
		t.Errorf("scans_skipped_total = %v, want 1", got)
	}
}

func TestDueBacklogUpdate(t *testing.T) {
	sink, reg := newTestSink(t)
	sink.DueBacklogUpdate(7)
	if got := getGaugeValue(t, reg, "reminderd_scheduler_due_backlog"); got != 7 {
		t.Errorf("due_backlog = %v, want 7", got)
	}
	sink.DueBacklogUpdate(0)
	if got := getGaugeValue(t, reg, "reminderd_scheduler_due_backlog"); got != 0 {
		t.Errorf("due_backlog = %v, want 0", got)
	}
}

func TestNotificationCompleted(t *testing.T) {
	sink, reg := newTestSink(t)
	sink.NotificationCompleted(OutcomeDelivered, 100*time.Millisecond)
	sink.NotificationCompleted(OutcomeDelivered, 200*time.Millisecond)
	sink.NotificationCompleted(OutcomeFailed, time.Second)

	if got := getCounterVecValue(t, reg, "reminderd_notifications_total", map[string]string{"outcome": OutcomeDelivered}); got != 2 {
		t.Errorf("notifications_total{delivered} = %v, want 2", got)
	}
	if got := getCounterVecValue(t, reg, "reminderd_notifications_total", map[string]string{"outcome": OutcomeFailed}); got != 1 {
		t.Errorf("notifications_total{failed} = %v, want 1", got)
	}
}

func TestConflictRetry(t *testing.T) {
	sink, reg := newTestSink(t)
	sink.ConflictRetry()
	sink.ConflictRetry()
	sink.ConflictRetry()
	if got := getCounterValue(t, reg, "reminderd_store_conflict_retries_total"); got != 3 {
		t.Errorf("conflict_retries_total = %v, want 3", got)
	}
}

func TestLeaderMetrics(t *testing.T) {
	sink, reg := newTestSink(t)

	sink.LeaderStatusChanged(true)
	sink.LeaderAcquired()
	if got := getGaugeValue(t, reg, "reminderd_leader_status"); got != 1 {
		t.Errorf("leader_status = %v, want 1", got)
	}
	if got := getCounterValue(t, reg, "reminderd_leader_acquired_total"); got != 1 {
		t.Errorf("leader_acquired_total = %v, want 1", got)
	}

	sink.LeaderStatusChanged(false)
	sink.LeaderLost("conn_lost")
	if got := getGaugeValue(t, reg, "reminderd_leader_status"); got != 0 {
		t.Errorf("leader_status = %v, want 0", got)
	}
	if got := getCounterVecValue(t, reg, "reminderd_leader_lost_total", map[string]string{"reason": "conn_lost"}); got != 1 {
		t.Errorf("leader_lost_total{conn_lost} = %v, want 1", got)
	}
}

func TestDuplicateRegistrationDoesNotPanic(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewPrometheusSink(reg)
	// Second sink on the same registry hits AlreadyRegisteredError for
	// every collector; it must log and keep going.
	NewPrometheusSink(reg)
}
