package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// ObserveUpstreamRequest is a no-op.
func (n *NoopRecorder) ObserveUpstreamRequest(operation string, status int, duration time.Duration) {}

// ObserveCollection is a no-op.
func (n *NoopRecorder) ObserveCollection(pages int, capped bool) {}

// IncProxyForward is a no-op.
func (n *NoopRecorder) IncProxyForward(outcome string) {}

// IncScoreWriteback is a no-op.
func (n *NoopRecorder) IncScoreWriteback(outcome string) {}

// IncScoreEventPublished is a no-op.
func (n *NoopRecorder) IncScoreEventPublished(status string) {}

// SetSourceState is a no-op.
func (n *NoopRecorder) SetSourceState(state string) {}

// IncFallbackServed is a no-op.
func (n *NoopRecorder) IncFallbackServed(operation string) {}
