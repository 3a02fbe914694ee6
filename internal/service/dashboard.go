// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cesdash/cesdash/internal/analytics"
	"github.com/cesdash/cesdash/internal/metrics"
	"github.com/cesdash/cesdash/internal/model"
	"github.com/cesdash/cesdash/internal/source"
)

// Service errors.
var (
	ErrInvalidScore    = errors.New("CES score must be an integer from 0 to 7")
	ErrScoreNotSaved   = errors.New("CES score was not saved")
	ErrNotFound        = errors.New("ticket not found")
	ErrDataUnavailable = errors.New("ticket data unavailable")
	ErrQueryTooShort   = errors.New("search query is too short")
)

const (
	// MinSearchLength is the shortest accepted search query.
	MinSearchLength = 3
	// RecentTickets is the size of the dashboard's recent-ticket sample.
	RecentTickets = 100
)

// Origin tells callers whether data came from the ticketing API or the
// demo dataset.
type Origin string

const (
	OriginLive     Origin = "live"
	OriginFallback Origin = "fallback"
)

// Result pairs a value with its origin.
type Result[T any] struct {
	Data   T
	Origin Origin
}

// Selector picks the active source. *source.Controller implements it.
type Selector interface {
	Active() source.Source
	Fallback() source.Source
}

// EventPublisher emits score-update events. *analytics.Publisher implements it.
type EventPublisher interface {
	PublishAsync(event analytics.ScoreEvent)
}

// RecommendationCounter reports the number of improvement opportunities.
type RecommendationCounter interface {
	Count() int
}

// Options configures a DashboardService.
type Options struct {
	Selector        Selector
	Publisher       EventPublisher
	Recommendations RecommendationCounter
	TrendDays       int
	Now             func() time.Time
	Logger          *slog.Logger
	Metrics         metrics.Recorder
}

// DashboardService serves CES analytics and ticket operations from the
// active source, degrading reads to the demo dataset when the live source
// fails.
type DashboardService struct {
	selector  Selector
	publisher EventPublisher
	recs      RecommendationCounter
	trendDays int
	now       func() time.Time
	logger    *slog.Logger
	metrics   metrics.Recorder
}

// NewDashboardService creates a DashboardService.
func NewDashboardService(opts Options) *DashboardService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNoop()
	}
	return &DashboardService{
		selector:  opts.Selector,
		publisher: opts.Publisher,
		recs:      opts.Recommendations,
		trendDays: opts.TrendDays,
		now:       opts.Now,
		logger:    opts.Logger.With("component", "service.dashboard"),
		metrics:   opts.Metrics,
	}
}

// Analytics aggregates every ticket created at or after since (all tickets
// when nil).
func (s *DashboardService) Analytics(ctx context.Context, since *time.Time) (Result[model.Analytics], error) {
	return read(ctx, s, "analytics", func(src source.Source) (model.Analytics, error) {
		return s.aggregate(ctx, src, since)
	})
}

// Dashboard builds the headline summary from the full analytics and the
// most recent tickets, fetched concurrently from the same source.
func (s *DashboardService) Dashboard(ctx context.Context) (Result[model.DashboardSummary], error) {
	return read(ctx, s, "dashboard", func(src source.Source) (model.DashboardSummary, error) {
		var (
			stats  model.Analytics
			recent model.TicketPage
		)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			stats, err = s.aggregate(gctx, src, nil)
			return err
		})
		g.Go(func() error {
			var err error
			recent, err = src.FetchTickets(gctx, model.TicketQuery{Page: 1, PerPage: RecentTickets})
			if err != nil {
				return fmt.Errorf("fetch recent tickets: %w", err)
			}
			return nil
		})
		if err := g.Wait(); err != nil {
			return model.DashboardSummary{}, err
		}

		return analytics.Summarize(stats, recent.Tickets, s.opportunities()), nil
	})
}

// Tickets returns one page of tickets.
func (s *DashboardService) Tickets(ctx context.Context, q model.TicketQuery) (Result[model.TicketPage], error) {
	return read(ctx, s, "tickets", func(src source.Source) (model.TicketPage, error) {
		return src.FetchTickets(ctx, q)
	})
}

// Ticket returns one ticket or ErrNotFound.
func (s *DashboardService) Ticket(ctx context.Context, id string) (Result[model.Ticket], error) {
	res, err := read(ctx, s, "ticket", func(src source.Source) (*model.Ticket, error) {
		return src.GetTicket(ctx, id)
	})
	if err != nil {
		return Result[model.Ticket]{}, err
	}
	if res.Data == nil {
		return Result[model.Ticket]{Origin: res.Origin}, ErrNotFound
	}
	return Result[model.Ticket]{Data: *res.Data, Origin: res.Origin}, nil
}

// Search runs a full-text ticket search.
func (s *DashboardService) Search(ctx context.Context, query string) (Result[[]model.Ticket], error) {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < MinSearchLength {
		return Result[[]model.Ticket]{}, ErrQueryTooShort
	}
	return read(ctx, s, "search", func(src source.Source) ([]model.Ticket, error) {
		return src.SearchTickets(ctx, query)
	})
}

// UpdateScore writes a CES score to a ticket on the active source. Writes
// never fall back: a failed live write is ErrScoreNotSaved. Successful live
// writes publish a score event.
func (s *DashboardService) UpdateScore(ctx context.Context, id string, score int) (Origin, error) {
	if !model.ValidCESScore(score) {
		return "", ErrInvalidScore
	}

	src := s.selector.Active()
	origin := s.originOf(src)

	if !src.UpdateCESScore(ctx, id, score) {
		return origin, fmt.Errorf("%w: ticket %s via %s", ErrScoreNotSaved, id, src.Name())
	}

	if origin == OriginLive && s.publisher != nil {
		s.publisher.PublishAsync(analytics.NewScoreEvent(id, score, src.Name(), s.now()))
	}
	return origin, nil
}

func (s *DashboardService) aggregate(ctx context.Context, src source.Source, since *time.Time) (model.Analytics, error) {
	tickets, err := src.CollectTickets(ctx, since)
	if err != nil {
		return model.Analytics{}, fmt.Errorf("collect tickets: %w", err)
	}
	return analytics.Aggregate(tickets, analytics.Options{
		Today:     s.now(),
		TrendDays: s.trendDays,
	}), nil
}

func (s *DashboardService) opportunities() int {
	if s.recs == nil {
		return 0
	}
	return s.recs.Count()
}

func (s *DashboardService) originOf(src source.Source) Origin {
	if src == s.selector.Fallback() {
		return OriginFallback
	}
	return OriginLive
}

// read runs op on the active source and, when a live source fails, once
// more on the fallback dataset.
func read[T any](ctx context.Context, s *DashboardService, op string, fn func(source.Source) (T, error)) (Result[T], error) {
	src := s.selector.Active()
	origin := s.originOf(src)

	v, err := fn(src)
	if err == nil {
		return Result[T]{Data: v, Origin: origin}, nil
	}

	var zero Result[T]
	if ctxErr := ctx.Err(); ctxErr != nil {
		return zero, ctxErr
	}
	if origin == OriginFallback {
		return zero, fmt.Errorf("%w: %w", ErrDataUnavailable, err)
	}

	s.logger.Warn("live read failed; serving demo dataset",
		"operation", op,
		"via", src.Name(),
		"error", err,
	)
	s.metrics.IncFallbackServed(op)

	v, err = fn(s.selector.Fallback())
	if err != nil {
		return zero, fmt.Errorf("%w: %w", ErrDataUnavailable, err)
	}
	return Result[T]{Data: v, Origin: OriginFallback}, nil
}
