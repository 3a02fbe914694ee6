package source

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/cesdash/cesdash/internal/model"
)

// FallbackName is the Via value of the demo dataset.
const FallbackName = "fallback"

type demoTicket struct {
	id          string
	subject     string
	description string
	status      model.TicketStatus
	priority    model.Priority
	daysAgo     int
	at          time.Duration // time of day
	handled     time.Duration // created to updated
	requester   model.Requester
	assignee    *model.Assignee
	score       *int
	tags        []string
	channel     model.Channel
}

var (
	mikeChen     = &model.Assignee{ID: "agent_01", Name: "Mike Chen"}
	lisaMartinez = &model.Assignee{ID: "agent_02", Name: "Lisa Martinez"}
	robertTaylor = &model.Assignee{ID: "agent_03", Name: "Robert Taylor"}
)

var demoTickets = []demoTicket{
	{
		id:          "1001",
		subject:     "Unable to login to account",
		description: "Customer cannot access their account after password reset",
		status:      model.StatusSolved,
		priority:    model.PriorityHigh,
		daysAgo:     0,
		at:          9*time.Hour + 30*time.Minute,
		handled:     4*time.Hour + 50*time.Minute,
		requester:   model.Requester{ID: "user_101", Name: "Sarah Johnson", Email: "sarah.johnson@example.com"},
		assignee:    mikeChen,
		score:       model.IntPtr(6),
		tags:        []string{"login", "password", "account"},
		channel:     model.ChannelEmail,
	},
	{
		id:          "1002",
		subject:     "Product return request",
		description: "Customer wants to return a defective product",
		status:      model.StatusClosed,
		priority:    model.PriorityNormal,
		daysAgo:     3,
		at:          11*time.Hour + 15*time.Minute,
		handled:     47*time.Hour + 15*time.Minute,
		requester:   model.Requester{ID: "user_102", Name: "David Wilson", Email: "david.wilson@example.com"},
		assignee:    lisaMartinez,
		score:       model.IntPtr(2),
		tags:        []string{"return", "defective", "product"},
		channel:     model.ChannelWeb,
	},
	{
		id:          "1003",
		subject:     "Billing inquiry about charges",
		description: "Customer questions unexpected charges on their account",
		status:      model.StatusOpen,
		priority:    model.PriorityNormal,
		daysAgo:     0,
		at:          16*time.Hour + 45*time.Minute,
		handled:     15 * time.Minute,
		requester:   model.Requester{ID: "user_103", Name: "Emily Brown", Email: "emily.brown@example.com"},
		assignee:    mikeChen,
		score:       model.IntPtr(4),
		tags:        []string{"billing", "charges", "inquiry"},
		channel:     model.ChannelChat,
	},
	{
		id:          "1004",
		subject:     "Feature request for mobile app",
		description: "Customer suggests adding dark mode to mobile app",
		status:      model.StatusNew,
		priority:    model.PriorityLow,
		daysAgo:     0,
		at:          8*time.Hour + 20*time.Minute,
		requester:   model.Requester{ID: "user_104", Name: "Alex Rivera", Email: "alex.rivera@example.com"},
		tags:        []string{"feature", "mobile", "enhancement"},
		channel:     model.ChannelWeb,
	},
	{
		id:          "1005",
		subject:     "Service outage report",
		description: "Customer experiencing service interruptions",
		status:      model.StatusPending,
		priority:    model.PriorityUrgent,
		daysAgo:     1,
		at:          12*time.Hour + 10*time.Minute,
		handled:     time.Hour + 35*time.Minute,
		requester:   model.Requester{ID: "user_105", Name: "Jennifer Kim", Email: "jennifer.kim@example.com"},
		assignee:    robertTaylor,
		score:       model.IntPtr(7),
		tags:        []string{"outage", "service", "urgent"},
		channel:     model.ChannelPhone,
	},
	{
		id:          "1006",
		subject:     "Account upgrade assistance",
		description: "Customer needs help upgrading to premium plan",
		status:      model.StatusSolved,
		priority:    model.PriorityNormal,
		daysAgo:     4,
		at:          14*time.Hour + 30*time.Minute,
		handled:     18*time.Hour + 45*time.Minute,
		requester:   model.Requester{ID: "user_106", Name: "Mark Thompson", Email: "mark.thompson@example.com"},
		assignee:    lisaMartinez,
		score:       model.IntPtr(1),
		tags:        []string{"upgrade", "premium", "assistance"},
		channel:     model.ChannelEmail,
	},
}

// Fallback is the read-only demo dataset. Its creation dates are anchored on
// the current UTC day so the trend window always covers them. Score writes
// are accepted and discarded.
type Fallback struct {
	now    func() time.Time
	logger *slog.Logger
}

// NewFallback creates the demo source. now defaults to time.Now.
func NewFallback(now func() time.Time, logger *slog.Logger) *Fallback {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{now: now, logger: logger.With("component", "fallback")}
}

// Tickets returns the demo tickets, newest first.
func (f *Fallback) Tickets() []model.Ticket {
	today := f.now().UTC().Truncate(24 * time.Hour)

	tickets := make([]model.Ticket, 0, len(demoTickets))
	for _, d := range demoTickets {
		created := today.AddDate(0, 0, -d.daysAgo).Add(d.at)
		t := model.Ticket{
			ID:          d.id,
			Subject:     d.subject,
			Description: d.description,
			Status:      d.status,
			Priority:    d.priority,
			CreatedAt:   created,
			UpdatedAt:   created.Add(d.handled),
			Requester:   d.requester,
			Tags:        append([]string(nil), d.tags...),
			Channel:     d.channel,
		}
		if d.assignee != nil {
			a := *d.assignee
			t.Assignee = &a
		}
		if d.score != nil {
			t.CESScore = model.IntPtr(*d.score)
		}
		tickets = append(tickets, t)
	}

	sort.SliceStable(tickets, func(i, j int) bool {
		return tickets[i].CreatedAt.After(tickets[j].CreatedAt)
	})
	return tickets
}

// Name implements Source.
func (f *Fallback) Name() string {
	return FallbackName
}

// Probe always succeeds.
func (f *Fallback) Probe(ctx context.Context) error {
	return nil
}

// FetchTickets pages through the demo tickets.
func (f *Fallback) FetchTickets(ctx context.Context, q model.TicketQuery) (model.TicketPage, error) {
	if err := ctx.Err(); err != nil {
		return model.TicketPage{}, err
	}

	var matched []model.Ticket
	for _, t := range f.Tickets() {
		if q.Status != "" && t.Status != q.Status {
			continue
		}
		if q.CreatedAfter != nil && t.CreatedAt.Before(*q.CreatedAfter) {
			continue
		}
		matched = append(matched, t)
	}

	page := q.Page
	if page < 1 {
		page = 1
	}
	perPage := q.PerPage
	if perPage <= 0 || perPage > 100 {
		perPage = 100
	}

	start := (page - 1) * perPage
	if start > len(matched) {
		start = len(matched)
	}
	end := start + perPage
	if end > len(matched) {
		end = len(matched)
	}

	out := make([]model.Ticket, end-start)
	copy(out, matched[start:end])
	return model.TicketPage{Tickets: out, HasMore: end < len(matched)}, nil
}

// GetTicket returns a demo ticket or nil.
func (f *Fallback) GetTicket(ctx context.Context, id string) (*model.Ticket, error) {
	for _, t := range f.Tickets() {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, nil
}

// SearchTickets matches query case-insensitively against subject,
// description, requester name and tags.
func (f *Fallback) SearchTickets(ctx context.Context, query string) ([]model.Ticket, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]model.Ticket, 0)
	if q == "" {
		return out, nil
	}

	for _, t := range f.Tickets() {
		if matches(t, q) {
			out = append(out, t)
		}
	}
	return out, nil
}

func matches(t model.Ticket, q string) bool {
	fields := []string{t.Subject, t.Description, t.Requester.Name}
	fields = append(fields, t.Tags...)
	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

// UpdateCESScore discards the write and reports success.
func (f *Fallback) UpdateCESScore(ctx context.Context, id string, score int) bool {
	f.logger.Info("demo mode: CES score not persisted", "ticket_id", id, "score", score)
	return true
}

// CollectTickets returns every demo ticket created at or after since.
func (f *Fallback) CollectTickets(ctx context.Context, since *time.Time) ([]model.Ticket, error) {
	page, err := f.FetchTickets(ctx, model.TicketQuery{CreatedAfter: since})
	if err != nil {
		return nil, err
	}
	return page.Tickets, nil
}

// CollectAllScoredTickets is CollectTickets filtered to scored tickets.
func (f *Fallback) CollectAllScoredTickets(ctx context.Context, since *time.Time) ([]model.Ticket, error) {
	all, err := f.CollectTickets(ctx, since)
	if err != nil {
		return nil, err
	}
	return model.FilterScored(all), nil
}
