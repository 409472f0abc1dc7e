// Package lifecycle implements the reminder status state machine as a
// pure function, so the same rules apply to owner edits through the
// service layer and to system transitions made by the scheduler.
//
// Allowed transitions: pending -> pending (field edits, notified
// marker), pending -> completed, pending -> cancelled. Completed and
// cancelled are terminal: any further change is rejected.
package lifecycle

import (
	"errors"
	"time"

	"github.com/mayurbt12/reminder-service/internal/domain"
)

// ErrInvalidTransition is returned when a change would mutate a
// reminder in a terminal state, or request an unknown status.
var ErrInvalidTransition = errors.New("invalid transition: reminder is in a terminal state")

// Changes describes a requested mutation. Nil pointer fields are left
// unchanged; a non-nil Context replaces the whole map.
type Changes struct {
	Title         *string
	Description   *string
	DueAt         *time.Time
	DestinationID *string
	Priority      *domain.Priority
	Status        *domain.Status
	Context       map[string]any

	// NotifiedAt is set by the scheduler after a successful due
	// notification. It is a pending -> pending transition, not a
	// status change.
	NotifiedAt *time.Time
}

// Empty reports whether c requests no mutation at all.
func (c Changes) Empty() bool {
	return c.Title == nil && c.Description == nil && c.DueAt == nil &&
		c.DestinationID == nil && c.Priority == nil && c.Status == nil &&
		c.Context == nil && c.NotifiedAt == nil
}

// Apply validates c against current and returns the mutated record.
// It has no side effects: Version and UpdatedAt bookkeeping belong to
// the store. now is the reference instant used to decide whether a
// rescheduled due time lies in the future.
func Apply(current domain.Reminder, c Changes, now time.Time) (domain.Reminder, error) {
	if c.Empty() {
		return current, nil
	}

	if current.Status.Terminal() {
		return domain.Reminder{}, ErrInvalidTransition
	}

	if c.Status != nil && !c.Status.Valid() {
		return domain.Reminder{}, ErrInvalidTransition
	}

	next := current
	next.Context = current.CloneContext()

	if c.Title != nil {
		next.Title = *c.Title
	}
	if c.Description != nil {
		next.Description = *c.Description
	}
	if c.DestinationID != nil {
		next.DestinationID = *c.DestinationID
	}
	if c.Priority != nil {
		next.Priority = *c.Priority
	}
	if c.Status != nil {
		next.Status = *c.Status
	}
	if c.Context != nil {
		next.Context = c.Context
	}
	if c.NotifiedAt != nil {
		t := *c.NotifiedAt
		next.NotifiedAt = &t
	}

	if c.DueAt != nil {
		next.DueAt = *c.DueAt

		// Rescheduling to a different future instant resets the
		// delivery state: the reminder becomes newly-pending and
		// must be notified again when it next falls due.
		if !c.DueAt.Equal(current.DueAt) && c.DueAt.After(now) {
			next.Context = nil
			next.NotifiedAt = nil
		}
	}

	return next, nil
}
