package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/mayurbt12/reminder-service/internal/domain"
	"github.com/mayurbt12/reminder-service/internal/notify"
	"github.com/mayurbt12/reminder-service/internal/store"
	"github.com/mayurbt12/reminder-service/internal/testutil"
)

type mockStore struct {
	mu        sync.Mutex
	reminders map[string]domain.Reminder
	scanErr   error
}

func newMockStore(rs ...domain.Reminder) *mockStore {
	m := &mockStore{reminders: make(map[string]domain.Reminder)}
	for _, r := range rs {
		m.reminders[r.ID] = r
	}
	return m
}

func (m *mockStore) ScanDue(ctx context.Context, asOf time.Time, limit int) ([]domain.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.scanErr != nil {
		return nil, m.scanErr
	}
	var due []domain.Reminder
	for _, r := range m.reminders {
		if r.Status == domain.StatusPending && !r.DueAt.After(asOf) && r.NotifiedAt == nil {
			due = append(due, r)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].DueAt.Equal(due[j].DueAt) {
			return due[i].DueAt.Before(due[j].DueAt)
		}
		return due[i].ID < due[j].ID
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (m *mockStore) Update(ctx context.Context, id string, mut store.Mutator) (domain.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.reminders[id]
	if !ok {
		return domain.Reminder{}, store.ErrNotFound
	}
	next, err := mut(cur)
	if err != nil {
		return domain.Reminder{}, err
	}
	next.Version = cur.Version + 1
	m.reminders[id] = next
	return next, nil
}

func (m *mockStore) get(id string) domain.Reminder {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reminders[id]
}

type mockNotifier struct {
	mu        sync.Mutex
	delivered []notify.Notification
	failIDs   map[string]bool
	block     chan struct{}
}

func (m *mockNotifier) Notify(ctx context.Context, n notify.Notification) error {
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failIDs[n.ReminderID] {
		return errors.New("delivery refused")
	}
	m.delivered = append(m.delivered, n)
	return nil
}

func (m *mockNotifier) deliveredIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.delivered))
	for i, n := range m.delivered {
		out[i] = n.ReminderID
	}
	return out
}

func pendingReminder(id string, due time.Time) domain.Reminder {
	return domain.Reminder{
		ID:            id,
		OwnerID:       "owner-1",
		DestinationID: "owner-1",
		Title:         "water the plants",
		DueAt:         due,
		Priority:      domain.PriorityMedium,
		Status:        domain.StatusPending,
		Version:       1,
	}
}

func newTestScheduler(st Store, n Notifier, clock *testutil.FakeClock) *Scheduler {
	return New(Config{
		Interval:      time.Minute,
		BatchLimit:    100,
		NotifyTimeout: time.Second,
		Policy:        PolicyMark,
	}, st, n).WithClock(clock.Now)
}

func TestRunCycle_NotifiesAndMarksDue(t *testing.T) {
	clock := testutil.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	now := clock.Now()
	st := newMockStore(
		pendingReminder("due", now.Add(-time.Minute)),
		pendingReminder("future", now.Add(time.Hour)),
	)
	notifier := &mockNotifier{}
	s := newTestScheduler(st, notifier, clock)

	s.RunCycle(context.Background())

	if got := notifier.deliveredIDs(); len(got) != 1 || got[0] != "due" {
		t.Fatalf("delivered = %v, want [due]", got)
	}
	marked := st.get("due")
	if marked.NotifiedAt == nil {
		t.Error("due reminder not marked notified")
	}
	if marked.Status != domain.StatusPending {
		t.Errorf("status = %s, want pending under mark policy", marked.Status)
	}
	if st.get("future").NotifiedAt != nil {
		t.Error("future reminder marked notified")
	}

	// A marked reminder drops out of the next cycle.
	s.RunCycle(context.Background())
	if got := notifier.deliveredIDs(); len(got) != 1 {
		t.Errorf("delivered after second cycle = %v, want exactly one delivery", got)
	}
}

func TestRunCycle_CompletePolicy(t *testing.T) {
	clock := testutil.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	st := newMockStore(pendingReminder("due", clock.Now().Add(-time.Minute)))
	notifier := &mockNotifier{}
	s := New(Config{Policy: PolicyComplete}, st, notifier).WithClock(clock.Now)

	s.RunCycle(context.Background())

	got := st.get("due")
	if got.Status != domain.StatusCompleted {
		t.Errorf("status = %s, want completed", got.Status)
	}
	if got.NotifiedAt == nil {
		t.Error("NotifiedAt not stamped")
	}
}

func TestRunCycle_FailureIsolation(t *testing.T) {
	clock := testutil.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	now := clock.Now()
	st := newMockStore(
		pendingReminder("a", now.Add(-3*time.Minute)),
		pendingReminder("b", now.Add(-2*time.Minute)),
		pendingReminder("c", now.Add(-time.Minute)),
	)
	notifier := &mockNotifier{failIDs: map[string]bool{"b": true}}
	s := newTestScheduler(st, notifier, clock)

	s.RunCycle(context.Background())

	if got := notifier.deliveredIDs(); len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Fatalf("delivered = %v, want [a c]", got)
	}
	if st.get("b").NotifiedAt != nil {
		t.Error("failed reminder marked notified")
	}

	// The failed reminder is retried on the next cycle.
	notifier.mu.Lock()
	notifier.failIDs = nil
	notifier.mu.Unlock()
	s.RunCycle(context.Background())
	if got := notifier.deliveredIDs(); len(got) != 3 || got[2] != "b" {
		t.Errorf("delivered after retry = %v, want b last", got)
	}
	if st.get("b").NotifiedAt == nil {
		t.Error("retried reminder not marked notified")
	}
}

func TestRunCycle_BatchLimitKeepsOldest(t *testing.T) {
	clock := testutil.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	now := clock.Now()
	st := newMockStore(
		pendingReminder("oldest", now.Add(-3*time.Minute)),
		pendingReminder("middle", now.Add(-2*time.Minute)),
		pendingReminder("newest", now.Add(-time.Minute)),
	)
	notifier := &mockNotifier{}
	s := New(Config{BatchLimit: 2}, st, notifier).WithClock(clock.Now)

	s.RunCycle(context.Background())
	if got := notifier.deliveredIDs(); len(got) != 2 || got[0] != "oldest" || got[1] != "middle" {
		t.Fatalf("delivered = %v, want [oldest middle]", got)
	}

	// The overflow drains on the following cycle.
	s.RunCycle(context.Background())
	if got := notifier.deliveredIDs(); len(got) != 3 || got[2] != "newest" {
		t.Errorf("delivered = %v, want newest last", got)
	}
}

func TestRunCycle_SingleFlight(t *testing.T) {
	clock := testutil.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	st := newMockStore(pendingReminder("due", clock.Now().Add(-time.Minute)))
	release := make(chan struct{})
	notifier := &mockNotifier{block: release}
	s := newTestScheduler(st, notifier, clock)

	done := make(chan struct{})
	go func() {
		s.RunCycle(context.Background())
		close(done)
	}()

	// Wait for the first cycle to block inside the notifier, then
	// overlapping cycles must return immediately without delivering.
	deadline := time.After(2 * time.Second)
	for !s.scanning.Load() {
		select {
		case <-deadline:
			t.Fatal("first cycle never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	s.RunCycle(context.Background())
	if got := notifier.deliveredIDs(); len(got) != 0 {
		t.Fatalf("overlapping cycle delivered %v", got)
	}

	close(release)
	<-done
	if got := notifier.deliveredIDs(); len(got) != 1 {
		t.Errorf("delivered = %v, want exactly one delivery", got)
	}
}

func TestRunCycle_StopsBetweenItems(t *testing.T) {
	clock := testutil.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	now := clock.Now()
	st := newMockStore(
		pendingReminder("a", now.Add(-2*time.Minute)),
		pendingReminder("b", now.Add(-time.Minute)),
	)
	ctx, cancel := context.WithCancel(context.Background())
	notifier := &cancellingNotifier{inner: &mockNotifier{}, cancel: cancel}
	s := newTestScheduler(st, notifier, clock)

	s.RunCycle(ctx)

	// The first reminder finishes, the second waits for the next run.
	if got := notifier.inner.deliveredIDs(); len(got) != 1 || got[0] != "a" {
		t.Fatalf("delivered = %v, want [a]", got)
	}
	if st.get("a").NotifiedAt == nil {
		t.Error("in-flight reminder not marked before stop")
	}
	if st.get("b").NotifiedAt != nil {
		t.Error("remaining reminder processed after stop")
	}
}

// cancellingNotifier cancels the run context after the first delivery.
type cancellingNotifier struct {
	inner  *mockNotifier
	cancel context.CancelFunc
	once   sync.Once
}

func (c *cancellingNotifier) Notify(ctx context.Context, n notify.Notification) error {
	err := c.inner.Notify(ctx, n)
	c.once.Do(c.cancel)
	return err
}

// ctxStore honors context cancellation the way the SQL stores do:
// every call fails once the context is done.
type ctxStore struct {
	*mockStore
}

func (c *ctxStore) ScanDue(ctx context.Context, asOf time.Time, limit int) ([]domain.Reminder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.mockStore.ScanDue(ctx, asOf, limit)
}

func (c *ctxStore) Update(ctx context.Context, id string, mut store.Mutator) (domain.Reminder, error) {
	if err := ctx.Err(); err != nil {
		return domain.Reminder{}, err
	}
	return c.mockStore.Update(ctx, id, mut)
}

func TestRunCycle_MarksDeliveredItemDespiteShutdown(t *testing.T) {
	clock := testutil.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	inner := newMockStore(pendingReminder("due", clock.Now().Add(-time.Minute)))
	st := &ctxStore{mockStore: inner}
	ctx, cancel := context.WithCancel(context.Background())
	notifier := &cancellingNotifier{inner: &mockNotifier{}, cancel: cancel}
	s := newTestScheduler(st, notifier, clock)

	// Shutdown lands right after the delivery succeeds. The mark write
	// must go through anyway; the item in flight counts as finished.
	s.RunCycle(ctx)

	if got := notifier.inner.deliveredIDs(); len(got) != 1 || got[0] != "due" {
		t.Fatalf("delivered = %v, want [due]", got)
	}
	if inner.get("due").NotifiedAt == nil {
		t.Fatal("delivered reminder not marked notified after shutdown")
	}

	// A later run must not deliver the same notification again.
	s.RunCycle(context.Background())
	if got := notifier.inner.deliveredIDs(); len(got) != 1 {
		t.Errorf("delivered after restart = %v, want exactly one delivery", got)
	}
}

func TestRunCycle_ScanErrorAbortsCycle(t *testing.T) {
	clock := testutil.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	st := newMockStore(pendingReminder("due", clock.Now().Add(-time.Minute)))
	st.scanErr = errors.New("store down")
	notifier := &mockNotifier{}
	s := newTestScheduler(st, notifier, clock)

	s.RunCycle(context.Background())
	if got := notifier.deliveredIDs(); len(got) != 0 {
		t.Errorf("delivered = %v despite scan error", got)
	}

	// Recovery on the next cycle.
	st.mu.Lock()
	st.scanErr = nil
	st.mu.Unlock()
	s.RunCycle(context.Background())
	if got := notifier.deliveredIDs(); len(got) != 1 {
		t.Errorf("delivered = %v after recovery, want one delivery", got)
	}
}

func TestRunCycle_MarkSkippedWhenResolvedMeanwhile(t *testing.T) {
	clock := testutil.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	st := newMockStore(pendingReminder("due", clock.Now().Add(-time.Minute)))
	notifier := &resolvingNotifier{st: st}
	s := newTestScheduler(st, notifier, clock)

	s.RunCycle(context.Background())

	// The owner cancelled during delivery; the terminal record must
	// stay untouched instead of failing the cycle.
	got := st.get("due")
	if got.Status != domain.StatusCancelled {
		t.Errorf("status = %s, want cancelled", got.Status)
	}
	if got.NotifiedAt != nil {
		t.Error("terminal reminder stamped NotifiedAt")
	}
}

// resolvingNotifier cancels the reminder in the store while its
// notification is being delivered.
type resolvingNotifier struct {
	st *mockStore
}

func (r *resolvingNotifier) Notify(ctx context.Context, n notify.Notification) error {
	_, err := r.st.Update(ctx, n.ReminderID, func(cur domain.Reminder) (domain.Reminder, error) {
		cur.Status = domain.StatusCancelled
		return cur, nil
	})
	return err
}

func TestRun_CancellationStopsLoop(t *testing.T) {
	clock := testutil.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	st := newMockStore()
	s := New(Config{Interval: time.Hour}, st, &mockNotifier{}).WithClock(clock.Now)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}
