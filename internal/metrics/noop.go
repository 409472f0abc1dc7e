package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) ScanStarted()                                                   {}
func (n *NoopSink) ScanCompleted(duration time.Duration, processed int, err error) {}
func (n *NoopSink) ScanSkipped()                                                   {}
func (n *NoopSink) DueBacklogUpdate(count int)                                     {}
func (n *NoopSink) NotificationCompleted(outcome string, duration time.Duration)   {}
func (n *NoopSink) ConflictRetry()                                                 {}
func (n *NoopSink) LeaderStatusChanged(isLeader bool)                              {}
func (n *NoopSink) LeaderAcquired()                                                {}
func (n *NoopSink) LeaderLost(reason string)                                       {}

var _ Sink = (*NoopSink)(nil)
