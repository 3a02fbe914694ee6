package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cesdash/cesdash/internal/metrics"
)

// DefaultRetryDelay is the pause before the single retry of the live probe.
const DefaultRetryDelay = time.Second

// Options configures a Controller.
type Options struct {
	// Live is the proxy-backed source; probed with one retry.
	Live Source
	// Direct is the direct API source; probed once when Live fails.
	Direct Source
	// Fallback serves the demo dataset. Required.
	Fallback Source

	RetryDelay time.Duration
	// Interval re-probes periodically after Start; 0 disables it.
	Interval time.Duration

	Logger  *slog.Logger
	Metrics metrics.Recorder
}

// Controller selects the active ticket source. It starts in StateProbing,
// serving the fallback dataset until a probe completes.
type Controller struct {
	live       Source
	direct     Source
	fallback   Source
	retryDelay time.Duration
	interval   time.Duration
	logger     *slog.Logger
	metrics    metrics.Recorder

	probeMu sync.Mutex

	mu     sync.RWMutex
	status Status
	active Source
	subs   map[chan Status]struct{}

	stopOnce sync.Once
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewController creates a Controller in StateProbing.
func NewController(opts Options) (*Controller, error) {
	if opts.Fallback == nil {
		return nil, errors.New("source: fallback source is required")
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNoop()
	}

	c := &Controller{
		live:       opts.Live,
		direct:     opts.Direct,
		fallback:   opts.Fallback,
		retryDelay: opts.RetryDelay,
		interval:   opts.Interval,
		logger:     opts.Logger.With("component", "source"),
		metrics:    opts.Metrics,
		status:     Status{State: StateProbing, Via: opts.Fallback.Name()},
		active:     opts.Fallback,
		subs:       make(map[chan Status]struct{}),
	}
	c.metrics.SetSourceState(string(StateProbing))
	return c, nil
}

// Start probes in the background and returns immediately. With a non-zero
// interval it keeps re-probing until ctx is done or Stop is called.
func (c *Controller) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	go func() {
		defer close(c.done)

		c.probe(ctx)
		if c.interval <= 0 {
			return
		}

		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.probe(ctx)
			}
		}
	}()
}

// Stop cancels background probing and waits for it to exit.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		if c.cancel == nil {
			return
		}
		c.cancel()
		<-c.done
	})
}

// Reprobe runs the probe sequence synchronously and returns the new status.
// The current source keeps serving until the probe completes.
func (c *Controller) Reprobe(ctx context.Context) Status {
	return c.probe(ctx)
}

// IsLive reports whether a live source is active.
func (c *Controller) IsLive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status.State == StateLive
}

// Status returns the current status.
func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Active returns the source reads and writes should use.
func (c *Controller) Active() Source {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// Fallback returns the demo dataset source.
func (c *Controller) Fallback() Source {
	return c.fallback
}

// Subscribe returns a channel receiving every status change and a function
// that unsubscribes. Slow subscribers only see the latest status.
func (c *Controller) Subscribe() (<-chan Status, func()) {
	ch := make(chan Status, 1)

	c.mu.Lock()
	c.subs[ch] = struct{}{}
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, ch)
			c.mu.Unlock()
		})
	}
}

func (c *Controller) probe(ctx context.Context) Status {
	c.probeMu.Lock()
	defer c.probeMu.Unlock()

	var errs []error

	if c.live != nil {
		err := c.live.Probe(ctx)
		if err != nil {
			c.logger.Warn("live probe failed; retrying",
				"via", c.live.Name(),
				"retry_in", c.retryDelay,
				"error", err,
			)
			select {
			case <-ctx.Done():
				err = ctx.Err()
			case <-time.After(c.retryDelay):
				err = c.live.Probe(ctx)
			}
		}
		if err == nil {
			return c.set(StateLive, c.live, nil)
		}
		errs = append(errs, fmt.Errorf("%s: %w", c.live.Name(), err))
	}

	if c.direct != nil && ctx.Err() == nil {
		err := c.direct.Probe(ctx)
		if err == nil {
			return c.set(StateLive, c.direct, nil)
		}
		errs = append(errs, fmt.Errorf("%s: %w", c.direct.Name(), err))
	}

	if len(errs) == 0 {
		errs = append(errs, ErrNoLiveSource)
	}
	return c.set(StateFallback, c.fallback, errors.Join(errs...))
}

func (c *Controller) set(state State, active Source, cause error) Status {
	now := time.Now().UTC()
	next := Status{
		State:     state,
		Via:       active.Name(),
		CheckedAt: &now,
	}
	if cause != nil {
		next.LastError = cause.Error()
	}

	c.mu.Lock()
	prev := c.status
	c.status = next
	c.active = active
	subs := make([]chan Status, 0, len(c.subs))
	for ch := range c.subs {
		subs = append(subs, ch)
	}
	c.mu.Unlock()

	c.metrics.SetSourceState(string(state))

	if prev.State != next.State || prev.Via != next.Via {
		if state == StateLive {
			c.logger.Info("ticket source is live", "via", next.Via)
		} else {
			c.logger.Warn("serving demo dataset", "reason", next.LastError)
		}
	}

	for _, ch := range subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- next:
		default:
		}
	}
	return next
}
