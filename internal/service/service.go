// Package service is the owner-facing entry point for reminder
// operations. It validates input, enforces ownership, applies lifecycle
// rules through the store's optimistic-concurrency loop, and hides
// storage details from the HTTP and MCP surfaces.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mayurbt12/reminder-service/internal/domain"
	"github.com/mayurbt12/reminder-service/internal/lifecycle"
	"github.com/mayurbt12/reminder-service/internal/metrics"
	"github.com/mayurbt12/reminder-service/internal/store"
)

// ErrOwnerLimit is returned when an owner is at their reminder cap.
var ErrOwnerLimit = errors.New("reminder limit reached for owner")

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

const (
	defaultListLimit = 50
	maxListLimit     = 1000
)

// Config holds service-level limits.
type Config struct {
	// MaxRemindersPerOwner caps how many reminders a single owner may
	// hold, terminal ones included. Zero disables the cap.
	MaxRemindersPerOwner int

	// ConflictRetries is how many times an update is re-applied after
	// losing an optimistic-concurrency race. Default: 3.
	ConflictRetries int
}

type Service struct {
	store   store.Store
	config  Config
	metrics metrics.Sink
	clock   func() time.Time
	newID   func() string
}

func New(st store.Store, config Config) *Service {
	if config.ConflictRetries <= 0 {
		config.ConflictRetries = 3
	}
	return &Service{
		store:   st,
		config:  config,
		metrics: metrics.NewNoopSink(),
		clock:   time.Now,
		newID:   uuid.NewString,
	}
}

// WithMetrics sets the metrics sink.
func (s *Service) WithMetrics(sink metrics.Sink) *Service {
	s.metrics = sink
	return s
}

// WithClock replaces the time source. For tests.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// CreateInput carries the caller-supplied fields for a new reminder.
type CreateInput struct {
	OwnerID       string
	DestinationID string
	Title         string
	Description   string
	DueAt         time.Time
	Priority      string
	Context       map[string]any
	Recurrence    string
}

// Create validates input and stores a new pending reminder. The
// destination defaults to the owner when omitted.
func (s *Service) Create(ctx context.Context, in CreateInput) (domain.Reminder, error) {
	if in.OwnerID == "" {
		return domain.Reminder{}, ValidationError{Field: "owner_id", Message: "required"}
	}
	if strings.TrimSpace(in.Title) == "" {
		return domain.Reminder{}, ValidationError{Field: "title", Message: "required"}
	}
	if in.DueAt.IsZero() {
		return domain.Reminder{}, ValidationError{Field: "due_at", Message: "required"}
	}

	priority := domain.PriorityMedium
	if in.Priority != "" {
		priority = domain.Priority(in.Priority)
		if !priority.Valid() {
			return domain.Reminder{}, ValidationError{Field: "priority", Message: "must be low, medium or high"}
		}
	}

	destination := in.DestinationID
	if destination == "" {
		destination = in.OwnerID
	}

	if s.config.MaxRemindersPerOwner > 0 {
		counts, err := s.store.Counts(ctx, in.OwnerID, s.clock().UTC())
		if err != nil {
			return domain.Reminder{}, fmt.Errorf("count reminders: %w", err)
		}
		if counts.Total >= s.config.MaxRemindersPerOwner {
			return domain.Reminder{}, ErrOwnerLimit
		}
	}

	r := domain.Reminder{
		ID:            s.newID(),
		OwnerID:       in.OwnerID,
		DestinationID: destination,
		Title:         strings.TrimSpace(in.Title),
		Description:   in.Description,
		DueAt:         in.DueAt,
		Priority:      priority,
		Status:        domain.StatusPending,
		Context:       in.Context,
		Recurrence:    in.Recurrence,
	}
	return s.store.Put(ctx, r)
}

// Get returns the reminder if it exists and belongs to ownerID. A
// reminder owned by someone else is reported as not found, so callers
// cannot probe for foreign IDs.
func (s *Service) Get(ctx context.Context, ownerID, id string) (domain.Reminder, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return domain.Reminder{}, err
	}
	if r.OwnerID != ownerID {
		return domain.Reminder{}, store.ErrNotFound
	}
	return r, nil
}

// Update applies changes under the lifecycle rules. A lost concurrency
// race re-reads and re-applies up to the configured retry budget before
// surfacing store.ErrConflict.
func (s *Service) Update(ctx context.Context, ownerID, id string, changes lifecycle.Changes) (domain.Reminder, error) {
	if changes.Title != nil && strings.TrimSpace(*changes.Title) == "" {
		return domain.Reminder{}, ValidationError{Field: "title", Message: "must not be empty"}
	}
	if changes.Priority != nil && !changes.Priority.Valid() {
		return domain.Reminder{}, ValidationError{Field: "priority", Message: "must be low, medium or high"}
	}

	var lastErr error
	for attempt := 0; attempt <= s.config.ConflictRetries; attempt++ {
		if attempt > 0 {
			s.metrics.ConflictRetry()
		}
		r, err := s.store.Update(ctx, id, func(cur domain.Reminder) (domain.Reminder, error) {
			if cur.OwnerID != ownerID {
				return domain.Reminder{}, store.ErrNotFound
			}
			return lifecycle.Apply(cur, changes, s.clock().UTC())
		})
		if errors.Is(err, store.ErrConflict) {
			lastErr = err
			continue
		}
		return r, err
	}
	return domain.Reminder{}, lastErr
}

// Complete marks the reminder completed.
func (s *Service) Complete(ctx context.Context, ownerID, id string) (domain.Reminder, error) {
	completed := domain.StatusCompleted
	return s.Update(ctx, ownerID, id, lifecycle.Changes{Status: &completed})
}

// Cancel marks the reminder cancelled.
func (s *Service) Cancel(ctx context.Context, ownerID, id string) (domain.Reminder, error) {
	cancelled := domain.StatusCancelled
	return s.Update(ctx, ownerID, id, lifecycle.Changes{Status: &cancelled})
}

// Delete removes the reminder after an ownership check.
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

// ListInput selects a page of an owner's reminders.
type ListInput struct {
	Status string
	Limit  int
	Offset int
}

// List returns the owner's reminders ordered by due time. The page size
// defaults to 50 and is capped at 1000.
func (s *Service) List(ctx context.Context, ownerID string, in ListInput) ([]domain.Reminder, error) {
	if ownerID == "" {
		return nil, ValidationError{Field: "owner_id", Message: "required"}
	}

	f := store.ListFilter{Limit: in.Limit, Offset: in.Offset}
	if in.Status != "" {
		status := domain.Status(in.Status)
		if !status.Valid() {
			return nil, ValidationError{Field: "status", Message: "must be pending, completed or cancelled"}
		}
		f.Status = &status
	}
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	return s.store.List(ctx, ownerID, f)
}

// Search matches the query against titles and descriptions of the
// owner's reminders, case-insensitively.
func (s *Service) Search(ctx context.Context, ownerID, query string) ([]domain.Reminder, error) {
	if ownerID == "" {
		return nil, ValidationError{Field: "owner_id", Message: "required"}
	}
	if strings.TrimSpace(query) == "" {
		return nil, ValidationError{Field: "query", Message: "required"}
	}
	return s.store.Search(ctx, ownerID, strings.TrimSpace(query))
}

// CheckDue returns the owner's pending reminders that are due as of
// asOf, already-notified ones included. A zero asOf means now. It reads
// only; repeated calls with the same asOf return the same set.
func (s *Service) CheckDue(ctx context.Context, ownerID string, asOf time.Time) ([]domain.Reminder, error) {
	if ownerID == "" {
		return nil, ValidationError{Field: "owner_id", Message: "required"}
	}
	if asOf.IsZero() {
		asOf = s.clock()
	}
	return s.store.ListDue(ctx, ownerID, asOf.UTC())
}

// Stats returns per-status counts for the owner.
func (s *Service) Stats(ctx context.Context, ownerID string) (store.Counts, error) {
	if ownerID == "" {
		return store.Counts{}, ValidationError{Field: "owner_id", Message: "required"}
	}
	return s.store.Counts(ctx, ownerID, s.clock().UTC())
}
