package metrics

import (
	"errors"
	"testing"
	"time"
)

func TestNoopSink_AllMethods(t *testing.T) {
	// Verify that calling all methods on NoopSink does not panic.
	s := NewNoopSink()

	s.ScanStarted()
	s.ScanCompleted(100*time.Millisecond, 5, nil)
	s.ScanCompleted(100*time.Millisecond, 0, errors.New("store down"))
	s.ScanSkipped()
	s.DueBacklogUpdate(10)

	s.NotificationCompleted(OutcomeDelivered, 200*time.Millisecond)
	s.NotificationCompleted(OutcomeFailed, time.Second)
	s.NotificationCompleted(OutcomeSkipped, 0)

	s.ConflictRetry()

	s.LeaderStatusChanged(true)
	s.LeaderAcquired()
	s.LeaderLost("shutdown")
}
