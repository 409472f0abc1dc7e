// Package store defines the durable reminder collection contract
// shared by the memory, sqlite and postgres implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/mayurbt12/reminder-service/internal/domain"
)

var (
	// ErrNotFound is returned when no record exists for the given id.
	ErrNotFound = errors.New("reminder not found")

	// ErrDuplicateKey is returned by Put when the id already exists.
	// Under UUID generation this indicates an internal invariant
	// violation, not a caller mistake.
	ErrDuplicateKey = errors.New("duplicate reminder id")

	// ErrConflict is returned by Update when a concurrent writer
	// invalidated the record between read and write. Callers retry.
	ErrConflict = errors.New("reminder modified concurrently")

	// ErrUnavailable is returned when the backing store cannot be
	// reached after the implementation's own bounded retries.
	ErrUnavailable = errors.New("store unavailable")
)

// Mutator transforms the current state of a record into its next
// state. It runs outside any lock and must be side-effect free: the
// write it produces may be rejected with ErrConflict, in which case
// the caller re-reads and re-applies.
type Mutator func(domain.Reminder) (domain.Reminder, error)

// ListFilter narrows a List call. A nil Status means all statuses.
// Limit <= 0 means no limit.
type ListFilter struct {
	Status *domain.Status
	Limit  int
	Offset int
}

// Counts summarises one owner's reminders.
type Counts struct {
	Total     int
	Pending   int
	Completed int
	Cancelled int
	DueNow    int
}

// Store is a durable keyed reminder collection. Each operation is
// atomic with respect to a single record. List, ListDue, ScanDue and
// Search order results by due time ascending with ties broken by id,
// so pagination and batch draining are stable.
type Store interface {
	// Put inserts a new record, stamping CreatedAt, UpdatedAt and
	// the initial version. Fails with ErrDuplicateKey if the id
	// already exists.
	Put(ctx context.Context, r domain.Reminder) (domain.Reminder, error)

	// Get returns the record or ErrNotFound.
	Get(ctx context.Context, id string) (domain.Reminder, error)

	// Update applies m to the current record under optimistic
	// concurrency, bumps UpdatedAt and the version, and persists
	// the result. Returns ErrNotFound if absent, ErrConflict if a
	// concurrent writer won, or the mutator's error unchanged.
	Update(ctx context.Context, id string, m Mutator) (domain.Reminder, error)

	// Delete removes the record or returns ErrNotFound.
	Delete(ctx context.Context, id string) error

	// List returns one owner's records, optionally filtered by
	// status, paginated.
	List(ctx context.Context, ownerID string, f ListFilter) ([]domain.Reminder, error)

	// ScanDue returns up to limit records across all owners that
	// are pending, due at or before asOf, and not yet notified.
	// This is the scheduler's query.
	ScanDue(ctx context.Context, asOf time.Time, limit int) ([]domain.Reminder, error)

	// ListDue returns one owner's pending records due at or before
	// asOf, regardless of notification state.
	ListDue(ctx context.Context, ownerID string, asOf time.Time) ([]domain.Reminder, error)

	// Search matches query case-insensitively against title and
	// description, owner-scoped.
	Search(ctx context.Context, ownerID, query string) ([]domain.Reminder, error)

	// Counts returns per-status totals for one owner; DueNow uses asOf.
	Counts(ctx context.Context, ownerID string, asOf time.Time) (Counts, error)

	Close() error
}
