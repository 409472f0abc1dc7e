// Package notify delivers due-reminder notifications. The scheduler
// hands each due reminder to a Notifier; delivery failures are reported
// back so the reminder stays eligible for the next scan.
package notify

import (
	"context"
	"time"
)

// Notification is the payload handed to a Notifier when a reminder
// comes due.
type Notification struct {
	ReminderID    string         `json:"reminder_id"`
	OwnerID       string         `json:"owner_id"`
	DestinationID string         `json:"destination_id"`
	Title         string         `json:"title"`
	Description   string         `json:"description,omitempty"`
	DueAt         time.Time      `json:"due_at"`
	Priority      string         `json:"priority"`
	Context       map[string]any `json:"context,omitempty"`
}

// Notifier delivers a single notification. Implementations must honor
// ctx cancellation; a returned error means the delivery did not happen
// and the reminder will be picked up again by a later scan.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
