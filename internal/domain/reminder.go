package domain

import "time"

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is one of the known priority levels.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is one of the known status values.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether s admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Reminder is a single owned record pairing a due instant with
// display and context metadata. All instants are UTC.
type Reminder struct {
	ID string `json:"id"`

	// OwnerID is the identity of the creating user (mobile number).
	// All ownership checks compare against it.
	OwnerID string `json:"owner_id"`
	// DestinationID is the identity the notification targets.
	// Defaults to OwnerID at creation.
	DestinationID string `json:"destination_id"`

	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	DueAt    time.Time `json:"due_at"`
	Priority Priority  `json:"priority"`
	Status   Status    `json:"status"`

	// Context is opaque caller metadata, passed through unexamined.
	Context map[string]any `json:"context,omitempty"`
	// Recurrence is stored verbatim and never evaluated.
	Recurrence string `json:"recurrence,omitempty"`

	// NotifiedAt records a successful due notification. A pending
	// reminder with NotifiedAt set is not re-selected by the due scan.
	NotifiedAt *time.Time `json:"notified_at,omitempty"`

	// Version is the optimistic-concurrency marker, bumped by the
	// store on every write.
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DueBy reports whether r is due at instant t: pending with a due
// time at or before t. "Due" is derived, never stored.
func (r Reminder) DueBy(t time.Time) bool {
	return r.Status == StatusPending && !r.DueAt.After(t)
}

// CloneContext returns a shallow copy of the context map, so callers
// can hold records without sharing mutable state.
func (r Reminder) CloneContext() map[string]any {
	if r.Context == nil {
		return nil
	}
	c := make(map[string]any, len(r.Context))
	for k, v := range r.Context {
		c[k] = v
	}
	return c
}
