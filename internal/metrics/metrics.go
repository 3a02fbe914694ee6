// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Outcome labels shared by recorders.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus or keep them in memory.
type Recorder interface {
	// Upstream ticketing API calls
	ObserveUpstreamRequest(operation string, status int, duration time.Duration)
	ObserveCollection(pages int, capped bool)

	// Request proxy
	IncProxyForward(outcome string) // outcome: "success", "upstream_error", "transport_error", "bad_request"

	// CES write-back
	IncScoreWriteback(outcome string)     // outcome: "success" or "error"
	IncScoreEventPublished(status string) // status: "success" or "dropped"

	// Source selection
	SetSourceState(state string)
	IncFallbackServed(operation string)
}
