package source

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cesdash/cesdash/internal/metrics"
	"github.com/cesdash/cesdash/internal/testutil"
)

// stubSource serves the demo dataset under a different name with a
// scripted probe outcome.
type stubSource struct {
	*Fallback
	name string

	mu       sync.Mutex
	failures int // probes that fail before success; < 0 fails forever
	probes   int
	gate     chan struct{}
}

func newStub(name string, failures int) *stubSource {
	return &stubSource{Fallback: newTestFallback(), name: name, failures: failures}
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Probe(ctx context.Context) error {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.probes++
	if s.failures < 0 || s.probes <= s.failures {
		return errors.New(s.name + " unreachable")
	}
	return nil
}

func (s *stubSource) probeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.probes
}

func newTestController(t *testing.T, live, direct Source, mutate func(*Options)) (*Controller, *metrics.InMemoryRecorder) {
	t.Helper()

	recorder := metrics.NewInMemory()
	opts := Options{
		Live:       live,
		Direct:     direct,
		Fallback:   newTestFallback(),
		RetryDelay: time.Millisecond,
		Logger:     testutil.DiscardLogger(),
		Metrics:    recorder,
	}
	if mutate != nil {
		mutate(&opts)
	}

	c, err := NewController(opts)
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	t.Cleanup(c.Stop)
	return c, recorder
}

// nilSource keeps an absent source a nil interface rather than a typed nil.
func nilSource(s *stubSource) Source {
	if s == nil {
		return nil
	}
	return s
}

func TestNewController_RequiresFallback(t *testing.T) {
	t.Parallel()

	if _, err := NewController(Options{}); err == nil {
		t.Error("expected error without fallback source")
	}
}

func TestController_Reprobe(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		live         *stubSource
		direct       *stubSource
		wantState    State
		wantVia      string
		wantLive     int
		wantDirect   int
		wantErrMatch string
	}{
		{
			name:       "live on first probe",
			live:       newStub("proxy", 0),
			direct:     newStub("direct", 0),
			wantState:  StateLive,
			wantVia:    "proxy",
			wantLive:   1,
			wantDirect: 0,
		},
		{
			name:       "live after one retry",
			live:       newStub("proxy", 1),
			direct:     newStub("direct", 0),
			wantState:  StateLive,
			wantVia:    "proxy",
			wantLive:   2,
			wantDirect: 0,
		},
		{
			name:       "direct when proxy fails twice",
			live:       newStub("proxy", 2),
			direct:     newStub("direct", 0),
			wantState:  StateLive,
			wantVia:    "direct",
			wantLive:   2,
			wantDirect: 1,
		},
		{
			name:         "fallback when both fail",
			live:         newStub("proxy", -1),
			direct:       newStub("direct", -1),
			wantState:    StateFallback,
			wantVia:      FallbackName,
			wantLive:     2,
			wantDirect:   1,
			wantErrMatch: "direct unreachable",
		},
		{
			name:         "direct probed without retry",
			live:         nil,
			direct:       newStub("direct", 1),
			wantState:    StateFallback,
			wantVia:      FallbackName,
			wantDirect:   1,
			wantErrMatch: "direct unreachable",
		},
		{
			name:         "no live sources",
			wantState:    StateFallback,
			wantVia:      FallbackName,
			wantErrMatch: ErrNoLiveSource.Error(),
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c, recorder := newTestController(t, nilSource(tt.live), nilSource(tt.direct), nil)

			status := c.Reprobe(context.Background())
			if status.State != tt.wantState || status.Via != tt.wantVia {
				t.Errorf("status = %s via %s, want %s via %s", status.State, status.Via, tt.wantState, tt.wantVia)
			}
			if c.IsLive() != (tt.wantState == StateLive) {
				t.Errorf("IsLive() = %v", c.IsLive())
			}
			if c.Active().Name() != tt.wantVia {
				t.Errorf("Active() = %s", c.Active().Name())
			}
			if tt.live != nil && tt.live.probeCount() != tt.wantLive {
				t.Errorf("live probes = %d, want %d", tt.live.probeCount(), tt.wantLive)
			}
			if tt.direct != nil && tt.direct.probeCount() != tt.wantDirect {
				t.Errorf("direct probes = %d, want %d", tt.direct.probeCount(), tt.wantDirect)
			}
			if tt.wantErrMatch != "" && !strings.Contains(status.LastError, tt.wantErrMatch) {
				t.Errorf("LastError = %q, want %q", status.LastError, tt.wantErrMatch)
			}
			if status.CheckedAt == nil {
				t.Error("CheckedAt not set")
			}
			if got := recorder.Snapshot().SourceState; got != string(tt.wantState) {
				t.Errorf("metrics source state = %s", got)
			}
		})
	}
}

func TestController_StartIsNonBlocking(t *testing.T) {
	t.Parallel()

	live := newStub("proxy", 0)
	live.gate = make(chan struct{})
	c, _ := newTestController(t, live, nil, nil)

	updates, unsubscribe := c.Subscribe()
	defer unsubscribe()

	c.Start(context.Background())

	if got := c.Status().State; got != StateProbing {
		t.Fatalf("state before probe completes = %s, want probing", got)
	}
	if c.IsLive() {
		t.Error("IsLive() = true while probing")
	}
	if c.Active().Name() != FallbackName {
		t.Errorf("Active() while probing = %s, want fallback", c.Active().Name())
	}

	close(live.gate)

	select {
	case status := <-updates:
		if status.State != StateLive || status.Via != "proxy" {
			t.Errorf("update = %+v", status)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no status update after probe")
	}
	if !c.IsLive() {
		t.Error("IsLive() = false after successful probe")
	}
}

func TestController_PeriodicReprobe(t *testing.T) {
	t.Parallel()

	live := newStub("proxy", 2)
	c, _ := newTestController(t, live, nil, func(o *Options) { o.Interval = 10 * time.Millisecond })

	updates, unsubscribe := c.Subscribe()
	defer unsubscribe()

	c.Start(context.Background())

	deadline := time.After(2 * time.Second)
	for !c.IsLive() {
		select {
		case <-updates:
		case <-deadline:
			t.Fatalf("controller never recovered; status = %+v", c.Status())
		}
	}

	c.Stop()
	if live.probeCount() < 3 {
		t.Errorf("probes = %d, want recovery on a later interval", live.probeCount())
	}
}

func TestController_ReprobeCancelledDuringRetry(t *testing.T) {
	t.Parallel()

	live := newStub("proxy", -1)
	c, _ := newTestController(t, live, nil, func(o *Options) { o.RetryDelay = time.Hour })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	status := c.Reprobe(ctx)
	if time.Since(start) > time.Second {
		t.Error("Reprobe did not honor cancellation")
	}
	if status.State != StateFallback {
		t.Errorf("state = %s, want fallback", status.State)
	}
	if live.probeCount() != 1 {
		t.Errorf("live probes = %d, want 1", live.probeCount())
	}
}

func TestController_Unsubscribe(t *testing.T) {
	t.Parallel()

	c, _ := newTestController(t, nil, nil, nil)

	updates, unsubscribe := c.Subscribe()
	unsubscribe()
	unsubscribe()

	c.Reprobe(context.Background())

	select {
	case s := <-updates:
		t.Errorf("received %+v after unsubscribe", s)
	default:
	}
}
