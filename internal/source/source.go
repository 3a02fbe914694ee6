// Package source decides where ticket data comes from: the live ticketing
// API (through the request proxy or directly) or the built-in demo dataset.
package source

import (
	"context"
	"errors"
	"time"

	"github.com/cesdash/cesdash/internal/model"
)

// State is the controller's source selection state.
type State string

const (
	StateProbing  State = "probing"
	StateLive     State = "live"
	StateFallback State = "fallback"
)

// ErrNoLiveSource is reported when neither live route is configured.
var ErrNoLiveSource = errors.New("no live ticket source configured")

// Source is a ticket source. *zendesk.Client and *Fallback implement it.
type Source interface {
	Name() string
	Probe(ctx context.Context) error
	FetchTickets(ctx context.Context, q model.TicketQuery) (model.TicketPage, error)
	GetTicket(ctx context.Context, id string) (*model.Ticket, error)
	SearchTickets(ctx context.Context, query string) ([]model.Ticket, error)
	UpdateCESScore(ctx context.Context, id string, score int) bool
	CollectTickets(ctx context.Context, since *time.Time) ([]model.Ticket, error)
	CollectAllScoredTickets(ctx context.Context, since *time.Time) ([]model.Ticket, error)
}

// Status is a snapshot of the controller.
type Status struct {
	State State `json:"state"`
	// Via names the active source: "proxy", "direct" or "fallback".
	Via       string     `json:"via"`
	LastError string     `json:"last_error,omitempty"`
	CheckedAt *time.Time `json:"checked_at,omitempty"`
}

// IsLive reports whether the status selects a live source.
func (s Status) IsLive() bool {
	return s.State == StateLive
}
