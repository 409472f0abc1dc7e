package metrics

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink using the Prometheus client library.
// All methods are non-blocking and fire-and-forget.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	// Due-scan scheduler metrics
	scansTotal         prometheus.Counter
	scanErrorsTotal    prometheus.Counter
	scansSkippedTotal  prometheus.Counter
	remindersProcessed prometheus.Counter
	scanDuration       prometheus.Histogram
	dueBacklog         prometheus.Gauge

	// Notification metrics
	notificationsTotal   *prometheus.CounterVec
	notificationDuration prometheus.Histogram

	// Store write metrics
	conflictRetriesTotal prometheus.Counter

	// Leader election metrics
	leaderStatus        prometheus.Gauge
	leaderAcquiredTotal prometheus.Counter
	leaderLostTotal     *prometheus.CounterVec
}

// NewPrometheusSink creates a new Prometheus metrics sink.
// If registration fails, it logs a warning and returns a functional sink.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}
	s.initScanMetrics(reg)
	s.initNotificationMetrics(reg)
	s.initStoreMetrics(reg)
	s.initLeaderMetrics(reg)
	return s
}

func (s *PrometheusSink) initScanMetrics(reg prometheus.Registerer) {
	s.scansTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reminderd_scheduler_scans_total",
		Help: "Total number of due-scan cycles started.",
	})
	s.scanErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reminderd_scheduler_scan_errors_total",
		Help: "Total number of due-scan cycles that failed to read the store.",
	})
	s.scansSkippedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reminderd_scheduler_scans_skipped_total",
		Help: "Total number of ticks skipped because a scan was still running.",
	})
	s.remindersProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reminderd_scheduler_reminders_processed_total",
		Help: "Total number of due reminders handed to the notifier.",
	})
	s.scanDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "reminderd_scheduler_scan_duration_seconds",
		Help:    "Duration of each due-scan cycle in seconds.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	})
	s.dueBacklog = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "reminderd_scheduler_due_backlog",
		Help: "Number of due reminders returned by the most recent scan.",
	})

	s.register(reg, s.scansTotal, "reminderd_scheduler_scans_total")
	s.register(reg, s.scanErrorsTotal, "reminderd_scheduler_scan_errors_total")
	s.register(reg, s.scansSkippedTotal, "reminderd_scheduler_scans_skipped_total")
	s.register(reg, s.remindersProcessed, "reminderd_scheduler_reminders_processed_total")
	s.register(reg, s.scanDuration, "reminderd_scheduler_scan_duration_seconds")
	s.register(reg, s.dueBacklog, "reminderd_scheduler_due_backlog")
}

func (s *PrometheusSink) initNotificationMetrics(reg prometheus.Registerer) {
	s.notificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reminderd_notifications_total",
		Help: "Total number of notification attempts by outcome.",
	}, []string{"outcome"})
	s.notificationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "reminderd_notification_duration_seconds",
		Help:    "Notification delivery latency in seconds.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	s.register(reg, s.notificationsTotal, "reminderd_notifications_total")
	s.register(reg, s.notificationDuration, "reminderd_notification_duration_seconds")
}

func (s *PrometheusSink) initStoreMetrics(reg prometheus.Registerer) {
	s.conflictRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reminderd_store_conflict_retries_total",
		Help: "Total number of optimistic-concurrency conflicts retried.",
	})

	s.register(reg, s.conflictRetriesTotal, "reminderd_store_conflict_retries_total")
}

func (s *PrometheusSink) initLeaderMetrics(reg prometheus.Registerer) {
	s.leaderStatus = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "reminderd_leader_status",
		Help: "Whether this instance currently holds the due-scan leader lock (1 = leader).",
	})
	s.leaderAcquiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reminderd_leader_acquired_total",
		Help: "Total number of times this instance acquired the leader lock.",
	})
	s.leaderLostTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reminderd_leader_lost_total",
		Help: "Total number of times this instance lost the leader lock, by reason.",
	}, []string{"reason"})

	s.register(reg, s.leaderStatus, "reminderd_leader_status")
	s.register(reg, s.leaderAcquiredTotal, "reminderd_leader_acquired_total")
	s.register(reg, s.leaderLostTotal, "reminderd_leader_lost_total")
}

// register attempts to register a collector, logging any errors without propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		log.Printf("metrics: failed to register %s: %v", name, err)
	}
}

func (s *PrometheusSink) ScanStarted() {
	s.scansTotal.Inc()
}

func (s *PrometheusSink) ScanCompleted(duration time.Duration, processed int, err error) {
	s.scanDuration.Observe(duration.Seconds())
	s.remindersProcessed.Add(float64(processed))
	if err != nil {
		s.scanErrorsTotal.Inc()
	}
}

func (s *PrometheusSink) ScanSkipped() {
	s.scansSkippedTotal.Inc()
}

func (s *PrometheusSink) DueBacklogUpdate(count int) {
	s.dueBacklog.Set(float64(count))
}

func (s *PrometheusSink) NotificationCompleted(outcome string, duration time.Duration) {
	s.notificationsTotal.WithLabelValues(outcome).Inc()
	s.notificationDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) ConflictRetry() {
	s.conflictRetriesTotal.Inc()
}

func (s *PrometheusSink) LeaderStatusChanged(isLeader bool) {
	if isLeader {
		s.leaderStatus.Set(1)
	} else {
		s.leaderStatus.Set(0)
	}
}

func (s *PrometheusSink) LeaderAcquired() {
	s.leaderAcquiredTotal.Inc()
}

func (s *PrometheusSink) LeaderLost(reason string) {
	s.leaderLostTotal.WithLabelValues(reason).Inc()
}

var _ Sink = (*PrometheusSink)(nil)
