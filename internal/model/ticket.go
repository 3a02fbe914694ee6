// Package model defines domain entities for the application.
package model

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// CES score bounds (inclusive).
const (
	MinCESScore = 0
	MaxCESScore = 7
)

// TicketStatus is the lifecycle state reported by the ticketing system.
type TicketStatus string

const (
	StatusNew     TicketStatus = "new"
	StatusOpen    TicketStatus = "open"
	StatusPending TicketStatus = "pending"
	StatusHold    TicketStatus = "hold"
	StatusSolved  TicketStatus = "solved"
	StatusClosed  TicketStatus = "closed"
)

// IsValid checks if the status is one the ticketing system defines.
func (s TicketStatus) IsValid() bool {
	switch s {
	case StatusNew, StatusOpen, StatusPending, StatusHold, StatusSolved, StatusClosed:
		return true
	}
	return false
}

// Priority is the ticket urgency.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Channel is the medium a ticket was submitted through.
type Channel string

const (
	ChannelWeb   Channel = "web"
	ChannelEmail Channel = "email"
	ChannelChat  Channel = "chat"
	ChannelPhone Channel = "phone"
	ChannelAPI   Channel = "api"
)

// Channels returns the canonical channel order used in reports.
func Channels() []Channel {
	return []Channel{ChannelEmail, ChannelWeb, ChannelChat, ChannelPhone, ChannelAPI}
}

// Priorities returns the canonical priority order used in reports.
func Priorities() []Priority {
	return []Priority{PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent}
}

// NormalizeChannel maps an upstream channel name onto Channel.
// Missing values default to web; "voice" is reported as phone.
// Other values pass through unchanged and are not counted in channel reports.
func NormalizeChannel(raw string) Channel {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return ChannelWeb
	case "voice":
		return ChannelPhone
	default:
		return Channel(strings.ToLower(strings.TrimSpace(raw)))
	}
}

// Requester identifies the customer who opened a ticket.
type Requester struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Assignee identifies the agent working a ticket.
type Assignee struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Placeholder identity used when a user lookup fails.
const (
	UnknownUserName  = "Unknown User"
	UnknownUserEmail = "unknown@example.com"
)

// Ticket is a normalized support ticket.
type Ticket struct {
	ID          string       `json:"id"`
	Subject     string       `json:"subject"`
	Description string       `json:"description"`
	Status      TicketStatus `json:"status"`
	Priority    Priority     `json:"priority"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	Requester   Requester    `json:"requester"`
	Assignee    *Assignee    `json:"assignee,omitempty"`
	CESScore    *int         `json:"ces_score,omitempty"`
	Tags        []string     `json:"tags"`
	Channel     Channel      `json:"channel"`
}

// HasScore reports whether the ticket carries a CES score.
func (t *Ticket) HasScore() bool {
	return t.CESScore != nil
}

// Score returns the CES score and whether it is present.
func (t *Ticket) Score() (int, bool) {
	if t.CESScore == nil {
		return 0, false
	}
	return *t.CESScore, true
}

// IsHighRisk returns true for scored tickets at or below the risk threshold.
func (t *Ticket) IsHighRisk() bool {
	score, ok := t.Score()
	return ok && score <= HighRiskThreshold
}

// HighRiskThreshold is the highest CES score counted as high risk.
const HighRiskThreshold = 3

// ValidCESScore checks the 0..7 domain.
func ValidCESScore(score int) bool {
	return score >= MinCESScore && score <= MaxCESScore
}

// ParseCESScore converts a raw custom field value into a CES score.
// Nil, empty, non-numeric, fractional and out-of-range values are absent.
func ParseCESScore(raw any) (int, bool) {
	var f float64
	switch v := raw.(type) {
	case nil:
		return 0, false
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	score := int(f)
	if !ValidCESScore(score) {
		return 0, false
	}
	return score, true
}

// IntPtr returns a pointer to n.
func IntPtr(n int) *int {
	return &n
}

// TicketQuery holds list filters and paging.
type TicketQuery struct {
	Page         int
	PerPage      int
	Status       TicketStatus
	CreatedAfter *time.Time
}

// TicketPage is one page of a ticket listing.
type TicketPage struct {
	Tickets []Ticket `json:"tickets"`
	HasMore bool     `json:"has_more"`
}

// FilterScored returns the tickets that carry a CES score.
func FilterScored(tickets []Ticket) []Ticket {
	scored := make([]Ticket, 0, len(tickets))
	for _, t := range tickets {
		if t.HasScore() {
			scored = append(scored, t)
		}
	}
	return scored
}
