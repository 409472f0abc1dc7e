package lifecycle

import (
	"errors"
	"testing"
	"time"

	"github.com/mayurbt12/reminder-service/internal/domain"
)

var now = time.Date(2025, 10, 26, 15, 0, 0, 0, time.UTC)

func pendingReminder() domain.Reminder {
	return domain.Reminder{
		ID:       "r-1",
		OwnerID:  "+1234567890",
		Title:    "Doctor Appointment",
		DueAt:    now.Add(time.Hour),
		Priority: domain.PriorityMedium,
		Status:   domain.StatusPending,
		Context:  map[string]any{"location": "123 Main St"},
	}
}

func strPtr(s string) *string                    { return &s }
func statusPtr(s domain.Status) *domain.Status   { return &s }
func prioPtr(p domain.Priority) *domain.Priority { return &p }
func timePtr(t time.Time) *time.Time             { return &t }

func TestApply_StatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    domain.Status
		to      domain.Status
		wantErr bool
	}{
		{"pending to completed", domain.StatusPending, domain.StatusCompleted, false},
		{"pending to cancelled", domain.StatusPending, domain.StatusCancelled, false},
		{"pending to pending", domain.StatusPending, domain.StatusPending, false},
		{"completed to pending", domain.StatusCompleted, domain.StatusPending, true},
		{"completed to cancelled", domain.StatusCompleted, domain.StatusCancelled, true},
		{"completed to completed", domain.StatusCompleted, domain.StatusCompleted, true},
		{"cancelled to pending", domain.StatusCancelled, domain.StatusPending, true},
		{"cancelled to completed", domain.StatusCancelled, domain.StatusCompleted, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := pendingReminder()
			r.Status = tt.from

			next, err := Apply(r, Changes{Status: statusPtr(tt.to)}, now)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTransition) {
					t.Fatalf("err = %v, want ErrInvalidTransition", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if next.Status != tt.to {
				t.Errorf("status = %q, want %q", next.Status, tt.to)
			}
		})
	}
}

func TestApply_UnknownStatusRejected(t *testing.T) {
	_, err := Apply(pendingReminder(), Changes{Status: statusPtr("archived")}, now)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestApply_TerminalRecordIsImmutable(t *testing.T) {
	changes := []struct {
		name string
		c    Changes
	}{
		{"title", Changes{Title: strPtr("New title")}},
		{"due time", Changes{DueAt: timePtr(now.Add(2 * time.Hour))}},
		{"priority", Changes{Priority: prioPtr(domain.PriorityHigh)}},
		{"context", Changes{Context: map[string]any{"k": "v"}}},
		{"notified marker", Changes{NotifiedAt: timePtr(now)}},
	}

	for _, terminal := range []domain.Status{domain.StatusCompleted, domain.StatusCancelled} {
		for _, tt := range changes {
			t.Run(string(terminal)+"/"+tt.name, func(t *testing.T) {
				r := pendingReminder()
				r.Status = terminal

				if _, err := Apply(r, tt.c, now); !errors.Is(err, ErrInvalidTransition) {
					t.Fatalf("err = %v, want ErrInvalidTransition", err)
				}
			})
		}
	}
}

func TestApply_EmptyChangesIsNoop(t *testing.T) {
	// Empty changes succeed even on terminal records: nothing mutates.
	r := pendingReminder()
	r.Status = domain.StatusCompleted

	next, err := Apply(r, Changes{}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Status != domain.StatusCompleted {
		t.Errorf("status = %q, want completed", next.Status)
	}
}

func TestApply_FieldEdits(t *testing.T) {
	r := pendingReminder()

	next, err := Apply(r, Changes{
		Title:       strPtr("Updated Meeting"),
		Description: strPtr("with notes"),
		Priority:    prioPtr(domain.PriorityHigh),
	}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if next.Title != "Updated Meeting" {
		t.Errorf("title = %q", next.Title)
	}
	if next.Description != "with notes" {
		t.Errorf("description = %q", next.Description)
	}
	if next.Priority != domain.PriorityHigh {
		t.Errorf("priority = %q", next.Priority)
	}
	// Untouched fields survive.
	if !next.DueAt.Equal(r.DueAt) {
		t.Errorf("due time changed unexpectedly")
	}
	if next.Context["location"] != "123 Main St" {
		t.Errorf("context lost: %v", next.Context)
	}
}

func TestApply_PureFunction(t *testing.T) {
	r := pendingReminder()

	next, err := Apply(r, Changes{Context: map[string]any{"k": "v"}}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	next.Context["k"] = "mutated"

	if r.Context["location"] != "123 Main St" {
		t.Error("input record context was mutated")
	}
	if _, ok := r.Context["k"]; ok {
		t.Error("input record gained a context key")
	}
}

func TestApply_RescheduleToFutureClearsDeliveryState(t *testing.T) {
	r := pendingReminder()
	r.NotifiedAt = timePtr(now.Add(-time.Minute))

	newDue := now.Add(3 * time.Hour)
	next, err := Apply(r, Changes{DueAt: timePtr(newDue)}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !next.DueAt.Equal(newDue) {
		t.Errorf("due time = %v, want %v", next.DueAt, newDue)
	}
	if next.NotifiedAt != nil {
		t.Error("notified marker should be cleared on reschedule")
	}
	if next.Context != nil {
		t.Errorf("context should be cleared on reschedule, got %v", next.Context)
	}
}

func TestApply_RescheduleToPastKeepsDeliveryState(t *testing.T) {
	r := pendingReminder()
	r.NotifiedAt = timePtr(now.Add(-time.Minute))

	next, err := Apply(r, Changes{DueAt: timePtr(now.Add(-time.Hour))}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.NotifiedAt == nil {
		t.Error("notified marker should survive a reschedule into the past")
	}
}

func TestApply_SameDueTimeKeepsContext(t *testing.T) {
	r := pendingReminder()

	next, err := Apply(r, Changes{DueAt: timePtr(r.DueAt)}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Context["location"] != "123 Main St" {
		t.Error("context should survive when the due time is unchanged")
	}
}

func TestApply_NotifiedMarker(t *testing.T) {
	r := pendingReminder()

	at := now
	next, err := Apply(r, Changes{NotifiedAt: &at}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Status != domain.StatusPending {
		t.Errorf("status = %q, marking notified must stay pending", next.Status)
	}
	if next.NotifiedAt == nil || !next.NotifiedAt.Equal(at) {
		t.Errorf("notified marker = %v, want %v", next.NotifiedAt, at)
	}
}
