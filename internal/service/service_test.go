package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mayurbt12/reminder-service/internal/domain"
	"github.com/mayurbt12/reminder-service/internal/lifecycle"
	"github.com/mayurbt12/reminder-service/internal/store"
	"github.com/mayurbt12/reminder-service/internal/store/memory"
	"github.com/mayurbt12/reminder-service/internal/testutil"
)

func newTestService(t *testing.T, cfg Config) (*Service, *testutil.FakeClock) {
	t.Helper()
	clock := testutil.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	st := memory.New().WithClock(clock.Now)
	t.Cleanup(func() { st.Close() })
	return New(st, cfg).WithClock(clock.Now), clock
}

func validInput(clock *testutil.FakeClock) CreateInput {
	return CreateInput{
		OwnerID: "owner-1",
		Title:   "water the plants",
		DueAt:   clock.Now().Add(time.Hour),
	}
}

func TestCreate_Defaults(t *testing.T) {
	svc, clock := newTestService(t, Config{})

	in := validInput(clock)
	in.Title = "  water the plants  "
	r, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if r.ID == "" {
		t.Error("ID not assigned")
	}
	if r.DestinationID != "owner-1" {
		t.Errorf("DestinationID = %q, want owner fallback", r.DestinationID)
	}
	if r.Priority != domain.PriorityMedium {
		t.Errorf("Priority = %s, want medium default", r.Priority)
	}
	if r.Status != domain.StatusPending {
		t.Errorf("Status = %s, want pending", r.Status)
	}
	if r.Title != "water the plants" {
		t.Errorf("Title = %q, want trimmed", r.Title)
	}
}

func TestCreate_Validation(t *testing.T) {
	svc, clock := newTestService(t, Config{})

	tests := []struct {
		name   string
		mutate func(*CreateInput)
		field  string
	}{
		{"missing owner", func(in *CreateInput) { in.OwnerID = "" }, "owner_id"},
		{"missing title", func(in *CreateInput) { in.Title = "" }, "title"},
		{"blank title", func(in *CreateInput) { in.Title = "   " }, "title"},
		{"zero due time", func(in *CreateInput) { in.DueAt = time.Time{} }, "due_at"},
		{"bad priority", func(in *CreateInput) { in.Priority = "urgent" }, "priority"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput(clock)
			tt.mutate(&in)
			_, err := svc.Create(context.Background(), in)
			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error = %v, want ValidationError", err)
			}
			if verr.Field != tt.field {
				t.Errorf("Field = %q, want %q", verr.Field, tt.field)
			}
		})
	}
}

func TestCreate_OwnerLimit(t *testing.T) {
	svc, clock := newTestService(t, Config{MaxRemindersPerOwner: 2})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := svc.Create(ctx, validInput(clock)); err != nil {
			t.Fatalf("Create %d failed: %v", i, err)
		}
	}
	if _, err := svc.Create(ctx, validInput(clock)); !errors.Is(err, ErrOwnerLimit) {
		t.Errorf("error = %v, want ErrOwnerLimit", err)
	}

	// Another owner is unaffected by the cap.
	other := validInput(clock)
	other.OwnerID = "owner-2"
	if _, err := svc.Create(ctx, other); err != nil {
		t.Errorf("Create for other owner failed: %v", err)
	}
}

func TestGet_OwnershipMismatchIsNotFound(t *testing.T) {
	svc, clock := newTestService(t, Config{})
	ctx := context.Background()

	r, err := svc.Create(ctx, validInput(clock))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := svc.Get(ctx, "owner-2", r.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("foreign Get error = %v, want ErrNotFound", err)
	}
	if _, err := svc.Get(ctx, "owner-1", r.ID); err != nil {
		t.Errorf("owner Get failed: %v", err)
	}
}

func TestUpdate_TerminalIsInvalidTransition(t *testing.T) {
	svc, clock := newTestService(t, Config{})
	ctx := context.Background()

	r, err := svc.Create(ctx, validInput(clock))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := svc.Complete(ctx, "owner-1", r.ID); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	title := "new title"
	if _, err := svc.Update(ctx, "owner-1", r.ID, lifecycle.Changes{Title: &title}); !errors.Is(err, lifecycle.ErrInvalidTransition) {
		t.Errorf("error = %v, want ErrInvalidTransition", err)
	}

	// The stored record is unchanged.
	got, err := svc.Get(ctx, "owner-1", r.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != domain.StatusCompleted || got.Title != "water the plants" {
		t.Errorf("terminal record mutated: %+v", got)
	}
}

func TestUpdate_OwnershipMismatchIsNotFound(t *testing.T) {
	svc, clock := newTestService(t, Config{})
	ctx := context.Background()

	r, err := svc.Create(ctx, validInput(clock))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	title := "mine now"
	if _, err := svc.Update(ctx, "owner-2", r.ID, lifecycle.Changes{Title: &title}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

// flakyStore reports a conflict for the first n updates, then delegates.
type flakyStore struct {
	store.Store
	conflicts int
}

func (f *flakyStore) Update(ctx context.Context, id string, m store.Mutator) (domain.Reminder, error) {
	if f.conflicts > 0 {
		f.conflicts--
		return domain.Reminder{}, store.ErrConflict
	}
	return f.Store.Update(ctx, id, m)
}

func TestUpdate_RetriesConflictsWithinBudget(t *testing.T) {
	clock := testutil.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	mem := memory.New().WithClock(clock.Now)
	t.Cleanup(func() { mem.Close() })
	flaky := &flakyStore{Store: mem, conflicts: 2}
	svc := New(flaky, Config{ConflictRetries: 3}).WithClock(clock.Now)
	ctx := context.Background()

	r, err := svc.Create(ctx, validInput(clock))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	title := "second writer wins eventually"
	got, err := svc.Update(ctx, "owner-1", r.ID, lifecycle.Changes{Title: &title})
	if err != nil {
		t.Fatalf("Update failed after retries: %v", err)
	}
	if got.Title != title {
		t.Errorf("Title = %q, want %q", got.Title, title)
	}
}

func TestUpdate_ConflictBudgetExhausted(t *testing.T) {
	clock := testutil.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	mem := memory.New().WithClock(clock.Now)
	t.Cleanup(func() { mem.Close() })
	flaky := &flakyStore{Store: mem, conflicts: 10}
	svc := New(flaky, Config{ConflictRetries: 2}).WithClock(clock.Now)
	ctx := context.Background()

	r, err := svc.Create(ctx, validInput(clock))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	title := "never lands"
	if _, err := svc.Update(ctx, "owner-1", r.ID, lifecycle.Changes{Title: &title}); !errors.Is(err, store.ErrConflict) {
		t.Errorf("error = %v, want ErrConflict", err)
	}
}

func TestDelete_OwnershipEnforced(t *testing.T) {
	svc, clock := newTestService(t, Config{})
	ctx := context.Background()

	r, err := svc.Create(ctx, validInput(clock))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := svc.Delete(ctx, "owner-2", r.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("foreign Delete error = %v, want ErrNotFound", err)
	}
	if err := svc.Delete(ctx, "owner-1", r.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := svc.Get(ctx, "owner-1", r.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get after Delete error = %v, want ErrNotFound", err)
	}
}

func TestList_StatusFilterAndClamp(t *testing.T) {
	svc, clock := newTestService(t, Config{})
	ctx := context.Background()

	first, err := svc.Create(ctx, validInput(clock))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	later := validInput(clock)
	later.DueAt = clock.Now().Add(2 * time.Hour)
	if _, err := svc.Create(ctx, later); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := svc.Cancel(ctx, "owner-1", first.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	pending, err := svc.List(ctx, "owner-1", ListInput{Status: "pending"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(pending) != 1 || pending[0].Status != domain.StatusPending {
		t.Errorf("pending list = %+v, want one pending record", pending)
	}

	if _, err := svc.List(ctx, "owner-1", ListInput{Status: "archived"}); err == nil {
		t.Error("expected validation error for unknown status")
	}

	// An oversized page request is clamped, not rejected.
	all, err := svc.List(ctx, "owner-1", ListInput{Limit: 100000})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("list = %d records, want 2", len(all))
	}
}

func TestSearch(t *testing.T) {
	svc, clock := newTestService(t, Config{})
	ctx := context.Background()

	meeting := validInput(clock)
	meeting.Title = "Team Meeting"
	lunch := validInput(clock)
	lunch.Title = "Lunch"
	for _, in := range []CreateInput{meeting, lunch} {
		if _, err := svc.Create(ctx, in); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	got, err := svc.Search(ctx, "owner-1", "meet")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Team Meeting" {
		t.Errorf("Search = %+v, want only Team Meeting", got)
	}

	if _, err := svc.Search(ctx, "owner-1", "   "); err == nil {
		t.Error("expected validation error for blank query")
	}
}

func TestCheckDue_IdempotentAndIncludesNotified(t *testing.T) {
	svc, clock := newTestService(t, Config{})
	ctx := context.Background()

	in := validInput(clock)
	in.DueAt = clock.Now().Add(-time.Minute)
	r, err := svc.Create(ctx, in)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		due, err := svc.CheckDue(ctx, "owner-1", time.Time{})
		if err != nil {
			t.Fatalf("CheckDue %d failed: %v", i, err)
		}
		if len(due) != 1 || due[0].ID != r.ID {
			t.Fatalf("CheckDue %d = %+v, want the one due reminder", i, due)
		}
	}

	// Marking notified keeps the reminder visible to the owner.
	notifiedAt := clock.Now()
	if _, err := svc.Update(ctx, "owner-1", r.ID, lifecycle.Changes{NotifiedAt: &notifiedAt}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	due, err := svc.CheckDue(ctx, "owner-1", time.Time{})
	if err != nil {
		t.Fatalf("CheckDue failed: %v", err)
	}
	if len(due) != 1 {
		t.Errorf("CheckDue after notify = %+v, want still visible", due)
	}
}

func TestCheckDue_ExplicitAsOf(t *testing.T) {
	svc, clock := newTestService(t, Config{})
	ctx := context.Background()

	in := validInput(clock)
	in.DueAt = clock.Now().Add(10 * time.Minute)
	r, err := svc.Create(ctx, in)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Not due yet against the current clock.
	due, err := svc.CheckDue(ctx, "owner-1", time.Time{})
	if err != nil {
		t.Fatalf("CheckDue failed: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("CheckDue now = %+v, want empty", due)
	}

	// The same future asOf returns the same set every time, even as the
	// clock moves on.
	asOf := r.DueAt.Add(time.Second)
	for i := 0; i < 3; i++ {
		due, err := svc.CheckDue(ctx, "owner-1", asOf)
		if err != nil {
			t.Fatalf("CheckDue asOf %d failed: %v", i, err)
		}
		if len(due) != 1 || due[0].ID != r.ID {
			t.Fatalf("CheckDue asOf %d = %+v, want the one reminder", i, due)
		}
		clock.Advance(time.Hour)
	}

	// A past asOf excludes it again regardless of the clock.
	due, err = svc.CheckDue(ctx, "owner-1", r.DueAt.Add(-time.Second))
	if err != nil {
		t.Fatalf("CheckDue failed: %v", err)
	}
	if len(due) != 0 {
		t.Errorf("CheckDue past asOf = %+v, want empty", due)
	}
}

func TestStats(t *testing.T) {
	svc, clock := newTestService(t, Config{})
	ctx := context.Background()

	overdue := validInput(clock)
	overdue.DueAt = clock.Now().Add(-time.Minute)
	r1, err := svc.Create(ctx, overdue)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := svc.Create(ctx, validInput(clock)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := svc.Complete(ctx, "owner-1", r1.ID); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	counts, err := svc.Stats(ctx, "owner-1")
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	want := store.Counts{Total: 2, Pending: 1, Completed: 1}
	if counts != want {
		t.Errorf("Stats = %+v, want %+v", counts, want)
	}
}
