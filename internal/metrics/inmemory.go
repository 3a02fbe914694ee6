package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	UpstreamRequests        uint64
	UpstreamErrors          uint64
	UpstreamDurationTotalNs int64
	Collections             uint64
	CollectionsCapped       uint64
	PagesFetched            uint64
	ProxyForwards           map[string]uint64
	ScoreWritebacks         map[string]uint64
	ScoreEventsPublished    map[string]uint64
	FallbackServed          map[string]uint64
	SourceState             string
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	upstreamRequests        uint64
	upstreamErrors          uint64
	upstreamDurationTotalNs int64
	collections             uint64
	collectionsCapped       uint64
	pagesFetched            uint64

	mu                   sync.Mutex
	proxyForwards        map[string]uint64
	scoreWritebacks      map[string]uint64
	scoreEventsPublished map[string]uint64
	fallbackServed       map[string]uint64
	sourceState          string
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		proxyForwards:        make(map[string]uint64),
		scoreWritebacks:      make(map[string]uint64),
		scoreEventsPublished: make(map[string]uint64),
		fallbackServed:       make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		UpstreamRequests:        atomic.LoadUint64(&m.upstreamRequests),
		UpstreamErrors:          atomic.LoadUint64(&m.upstreamErrors),
		UpstreamDurationTotalNs: atomic.LoadInt64(&m.upstreamDurationTotalNs),
		Collections:             atomic.LoadUint64(&m.collections),
		CollectionsCapped:       atomic.LoadUint64(&m.collectionsCapped),
		PagesFetched:            atomic.LoadUint64(&m.pagesFetched),
		ProxyForwards:           copyCounts(m.proxyForwards),
		ScoreWritebacks:         copyCounts(m.scoreWritebacks),
		ScoreEventsPublished:    copyCounts(m.scoreEventsPublished),
		FallbackServed:          copyCounts(m.fallbackServed),
		SourceState:             m.sourceState,
	}
}

// ObserveUpstreamRequest records one upstream call.
func (m *InMemoryRecorder) ObserveUpstreamRequest(operation string, status int, duration time.Duration) {
	atomic.AddUint64(&m.upstreamRequests, 1)
	if status == 0 || status >= 400 {
		atomic.AddUint64(&m.upstreamErrors, 1)
	}
	atomic.AddInt64(&m.upstreamDurationTotalNs, duration.Nanoseconds())
}

// ObserveCollection records a paginated collection run.
func (m *InMemoryRecorder) ObserveCollection(pages int, capped bool) {
	atomic.AddUint64(&m.collections, 1)
	atomic.AddUint64(&m.pagesFetched, uint64(pages))
	if capped {
		atomic.AddUint64(&m.collectionsCapped, 1)
	}
}

// IncProxyForward increments the proxy counter for outcome.
func (m *InMemoryRecorder) IncProxyForward(outcome string) {
	m.inc(m.proxyForwards, outcome)
}

// IncScoreWriteback increments the write-back counter for outcome.
func (m *InMemoryRecorder) IncScoreWriteback(outcome string) {
	m.inc(m.scoreWritebacks, outcome)
}

// IncScoreEventPublished increments the event counter for status.
func (m *InMemoryRecorder) IncScoreEventPublished(status string) {
	m.inc(m.scoreEventsPublished, status)
}

// SetSourceState records the current source state.
func (m *InMemoryRecorder) SetSourceState(state string) {
	m.mu.Lock()
	m.sourceState = state
	m.mu.Unlock()
}

// IncFallbackServed increments the fallback counter for operation.
func (m *InMemoryRecorder) IncFallbackServed(operation string) {
	m.inc(m.fallbackServed, operation)
}

func (m *InMemoryRecorder) inc(counts map[string]uint64, label string) {
	m.mu.Lock()
	counts[label]++
	m.mu.Unlock()
}

func copyCounts(src map[string]uint64) map[string]uint64 {
	dst := make(map[string]uint64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
