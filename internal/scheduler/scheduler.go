// Package scheduler runs the periodic due scan.
//
// Each cycle reads a batch of due, not-yet-notified reminders and hands
// them to the notifier one at a time. A reminder is marked only after
// its notification succeeds, so a crash between delivery and marking
// re-delivers on the next cycle: notification is at-least-once, never
// silently dropped.
package scheduler

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"github.com/mayurbt12/reminder-service/internal/circuitbreaker"
	"github.com/mayurbt12/reminder-service/internal/domain"
	"github.com/mayurbt12/reminder-service/internal/lifecycle"
	"github.com/mayurbt12/reminder-service/internal/metrics"
	"github.com/mayurbt12/reminder-service/internal/notify"
	"github.com/mayurbt12/reminder-service/internal/store"
)

// Policy selects what happens to a reminder after its notification is
// delivered.
type Policy string

const (
	// PolicyMark stamps NotifiedAt and leaves the reminder pending. The
	// owner resolves it explicitly.
	PolicyMark Policy = "mark"
	// PolicyComplete transitions the reminder to completed.
	PolicyComplete Policy = "complete"
)

// markTimeout bounds the post-delivery store write. It runs detached
// from the run context so shutdown cannot strand a delivered
// notification unmarked.
const markTimeout = 5 * time.Second

// Store is the subset of the reminder store the scheduler needs.
type Store interface {
	ScanDue(ctx context.Context, asOf time.Time, limit int) ([]domain.Reminder, error)
	Update(ctx context.Context, id string, m store.Mutator) (domain.Reminder, error)
}

// Notifier delivers one due-reminder notification.
type Notifier interface {
	Notify(ctx context.Context, n notify.Notification) error
}

// AnalyticsSink records notification events. Implementations must not
// block the scan; errors are logged and dropped.
type AnalyticsSink interface {
	Record(ctx context.Context, ownerID, outcome string, at time.Time)
}

// Config holds due-scan scheduler configuration.
type Config struct {
	// Interval is how often the due scan runs. Default: 60 seconds.
	Interval time.Duration

	// BatchLimit is the maximum number of reminders processed per
	// cycle; the oldest due reminders win. Default: 100.
	BatchLimit int

	// NotifyTimeout bounds a single notification delivery. Default: 30
	// seconds.
	NotifyTimeout time.Duration

	// Policy selects the post-notification transition. Default:
	// PolicyMark.
	Policy Policy
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() Config {
	return Config{
		Interval:      60 * time.Second,
		BatchLimit:    100,
		NotifyTimeout: 30 * time.Second,
		Policy:        PolicyMark,
	}
}

type Scheduler struct {
	config    Config
	store     Store
	notifier  Notifier
	metrics   metrics.Sink
	analytics AnalyticsSink
	clock     func() time.Time

	// scanning guards against overlapping cycles: a tick that lands
	// while the previous scan is still draining its batch is skipped.
	scanning atomic.Bool
}

func New(config Config, st Store, notifier Notifier) *Scheduler {
	if config.Interval <= 0 {
		config.Interval = 60 * time.Second
	}
	if config.BatchLimit <= 0 {
		config.BatchLimit = 100
	}
	if config.NotifyTimeout <= 0 {
		config.NotifyTimeout = 30 * time.Second
	}
	if config.Policy == "" {
		config.Policy = PolicyMark
	}
	return &Scheduler{
		config:   config,
		store:    st,
		notifier: notifier,
		metrics:  metrics.NewNoopSink(),
		clock:    time.Now,
	}
}

// WithMetrics sets the metrics sink.
func (s *Scheduler) WithMetrics(sink metrics.Sink) *Scheduler {
	s.metrics = sink
	return s
}

// WithAnalytics sets the analytics sink.
func (s *Scheduler) WithAnalytics(sink AnalyticsSink) *Scheduler {
	s.analytics = sink
	return s
}

// WithClock replaces the time source. For tests.
func (s *Scheduler) WithClock(clock func() time.Time) *Scheduler {
	s.clock = clock
	return s
}

// Run starts the scan loop. The first cycle runs immediately, then one
// per interval. Run blocks until ctx is cancelled; the cycle in flight
// finishes its current reminder before stopping.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	log.Printf("scheduler: started (interval=%s, batch=%d, policy=%s)",
		s.config.Interval, s.config.BatchLimit, s.config.Policy)

	s.RunCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("scheduler: stopped")
			return
		case <-ticker.C:
			s.RunCycle(ctx)
		}
	}
}

// RunCycle executes one due-scan cycle. It is safe to call concurrently
// with the running loop; if a scan is already in flight the call is a
// no-op.
func (s *Scheduler) RunCycle(ctx context.Context) {
	if !s.scanning.CompareAndSwap(false, true) {
		s.metrics.ScanSkipped()
		log.Println("scheduler: scan still in flight, skipping tick")
		return
	}
	defer s.scanning.Store(false)

	start := s.clock().UTC()
	s.metrics.ScanStarted()

	due, err := s.store.ScanDue(ctx, start, s.config.BatchLimit)
	if err != nil {
		// Store error: log and abort cycle. Will retry next interval.
		s.metrics.ScanCompleted(s.clock().UTC().Sub(start), 0, err)
		log.Printf("scheduler: due scan failed: %v", err)
		return
	}
	s.metrics.DueBacklogUpdate(len(due))

	if len(due) == 0 {
		s.metrics.ScanCompleted(s.clock().UTC().Sub(start), 0, nil)
		return
	}

	log.Printf("scheduler: %d reminders due", len(due))

	processed := 0
	for _, r := range due {
		// Check context before each reminder so shutdown finishes the
		// item in flight and leaves the rest for the next run.
		if ctx.Err() != nil {
			log.Printf("scheduler: cycle interrupted, processed %d/%d reminders", processed, len(due))
			break
		}
		s.processReminder(ctx, r)
		processed++
	}

	s.metrics.ScanCompleted(s.clock().UTC().Sub(start), processed, nil)
}

// processReminder delivers one notification and, on success, records
// the delivery in the store. A failure in either step leaves the
// reminder due; the next scan picks it up again.
func (s *Scheduler) processReminder(ctx context.Context, r domain.Reminder) {
	notifyCtx, cancel := context.WithTimeout(ctx, s.config.NotifyTimeout)
	defer cancel()

	start := s.clock().UTC()
	err := s.notifier.Notify(notifyCtx, notify.Notification{
		ReminderID:    r.ID,
		OwnerID:       r.OwnerID,
		DestinationID: r.DestinationID,
		Title:         r.Title,
		Description:   r.Description,
		DueAt:         r.DueAt,
		Priority:      string(r.Priority),
		Context:       r.CloneContext(),
	})
	duration := s.clock().UTC().Sub(start)

	if err != nil {
		outcome := metrics.OutcomeFailed
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
			outcome = metrics.OutcomeSkipped
		}
		s.metrics.NotificationCompleted(outcome, duration)
		s.recordAnalytics(ctx, r.OwnerID, outcome, start)
		log.Printf("scheduler: notify reminder=%s owner=%s failed: %v", r.ID, r.OwnerID, err)
		return
	}

	s.metrics.NotificationCompleted(metrics.OutcomeDelivered, duration)
	s.recordAnalytics(ctx, r.OwnerID, metrics.OutcomeDelivered, start)

	// The mark must outlive a shutdown that cancels the run context
	// mid-item: the notification already went out, so the record has to
	// say so or the next run re-delivers it.
	markCtx, cancelMark := context.WithTimeout(context.WithoutCancel(ctx), markTimeout)
	defer cancelMark()

	if err := s.markNotified(markCtx, r.ID); err != nil {
		// The reminder stays eligible and the notification repeats next
		// cycle. Duplicate delivery is the accepted failure mode.
		log.Printf("scheduler: mark reminder=%s failed: %v", r.ID, err)
	}
}

func (s *Scheduler) markNotified(ctx context.Context, id string) error {
	now := s.clock().UTC()

	_, err := s.store.Update(ctx, id, func(cur domain.Reminder) (domain.Reminder, error) {
		changes := lifecycle.Changes{}
		switch s.config.Policy {
		case PolicyComplete:
			completed := domain.StatusCompleted
			changes.Status = &completed
			changes.NotifiedAt = &now
		default:
			changes.NotifiedAt = &now
		}
		return lifecycle.Apply(cur, changes, now)
	})
	if errors.Is(err, lifecycle.ErrInvalidTransition) {
		// The owner resolved the reminder between delivery and marking.
		return nil
	}
	return err
}

func (s *Scheduler) recordAnalytics(ctx context.Context, ownerID, outcome string, at time.Time) {
	if s.analytics == nil {
		return
	}
	s.analytics.Record(ctx, ownerID, outcome, at)
}
