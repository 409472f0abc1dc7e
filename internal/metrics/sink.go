// Package metrics records operational metrics for the due-scan
// scheduler and the reminder store writes.
package metrics

import "time"

// Sink defines the interface for recording metrics.
// All methods are fire-and-forget: implementations MUST NOT block or propagate errors.
// If the metrics backend is unavailable, implementations log warnings and continue.
type Sink interface {
	// Due-scan scheduler metrics
	ScanStarted()
	ScanCompleted(duration time.Duration, processed int, err error)
	ScanSkipped()
	DueBacklogUpdate(count int)

	// Notification metrics
	NotificationCompleted(outcome string, duration time.Duration)

	// Store write metrics
	ConflictRetry()

	// Leader election metrics
	LeaderStatusChanged(isLeader bool)
	LeaderAcquired()
	LeaderLost(reason string)
}

// Outcome constants for NotificationCompleted.
const (
	OutcomeDelivered = "delivered"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)
