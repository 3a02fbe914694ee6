package source

import (
	"context"
	"testing"
	"time"

	"github.com/cesdash/cesdash/internal/analytics"
	"github.com/cesdash/cesdash/internal/model"
	"github.com/cesdash/cesdash/internal/testutil"
)

var fixedNow = time.Date(2026, 3, 20, 18, 0, 0, 0, time.UTC)

func newTestFallback() *Fallback {
	return NewFallback(func() time.Time { return fixedNow }, testutil.DiscardLogger())
}

func TestFallback_Tickets(t *testing.T) {
	t.Parallel()

	tickets := newTestFallback().Tickets()
	if len(tickets) != 6 {
		t.Fatalf("tickets = %d, want 6", len(tickets))
	}

	wantScores := map[string]*int{
		"1001": model.IntPtr(6),
		"1002": model.IntPtr(2),
		"1003": model.IntPtr(4),
		"1004": nil,
		"1005": model.IntPtr(7),
		"1006": model.IntPtr(1),
	}

	today := 0
	for i, tk := range tickets {
		want, ok := wantScores[tk.ID]
		if !ok {
			t.Errorf("unexpected ticket %s", tk.ID)
			continue
		}
		switch {
		case want == nil && tk.CESScore != nil:
			t.Errorf("ticket %s score = %d, want none", tk.ID, *tk.CESScore)
		case want != nil && (tk.CESScore == nil || *tk.CESScore != *want):
			t.Errorf("ticket %s score = %v, want %d", tk.ID, tk.CESScore, *want)
		}
		if tk.CreatedAt.Format("2006-01-02") == "2026-03-20" {
			today++
		}
		if i > 0 && tk.CreatedAt.After(tickets[i-1].CreatedAt) {
			t.Errorf("tickets not newest first at %d", i)
		}
	}
	if today != 3 {
		t.Errorf("tickets created today = %d, want 3", today)
	}
}

func TestFallback_TicketsAreCopies(t *testing.T) {
	t.Parallel()

	f := newTestFallback()
	first := f.Tickets()
	*first[0].CESScore = 0
	first[0].Tags[0] = "mutated"

	second := f.Tickets()
	if *second[0].CESScore == 0 || second[0].Tags[0] == "mutated" {
		t.Error("mutating returned tickets changed the dataset")
	}
}

func TestFallback_Aggregates(t *testing.T) {
	t.Parallel()

	f := newTestFallback()
	all, err := f.CollectTickets(context.Background(), nil)
	if err != nil {
		t.Fatalf("CollectTickets() error = %v", err)
	}

	a := analytics.Aggregate(all, analytics.Options{Today: fixedNow})
	if a.TotalTickets != 6 || a.TicketsWithCES != 5 {
		t.Errorf("totals = %d/%d, want 6/5", a.TotalTickets, a.TicketsWithCES)
	}
	if a.AverageCES != 4.0 {
		t.Errorf("average = %v, want 4.0", a.AverageCES)
	}

	last := a.Trends[len(a.Trends)-1]
	if last.Date != "2026-03-20" || last.TicketCount != 2 || last.AverageCES != 5.0 {
		t.Errorf("today's trend point = %+v", last)
	}
}

func TestFallback_FetchTickets(t *testing.T) {
	t.Parallel()

	f := newTestFallback()
	ctx := context.Background()

	page, err := f.FetchTickets(ctx, model.TicketQuery{Page: 1, PerPage: 4})
	if err != nil {
		t.Fatalf("FetchTickets() error = %v", err)
	}
	if len(page.Tickets) != 4 || !page.HasMore {
		t.Errorf("page 1 = %d tickets, has_more=%v", len(page.Tickets), page.HasMore)
	}

	page, _ = f.FetchTickets(ctx, model.TicketQuery{Page: 2, PerPage: 4})
	if len(page.Tickets) != 2 || page.HasMore {
		t.Errorf("page 2 = %d tickets, has_more=%v", len(page.Tickets), page.HasMore)
	}

	page, _ = f.FetchTickets(ctx, model.TicketQuery{Status: model.StatusSolved})
	if len(page.Tickets) != 2 {
		t.Errorf("solved tickets = %d, want 2", len(page.Tickets))
	}

	since := time.Date(2026, 3, 19, 0, 0, 0, 0, time.UTC)
	recent, _ := f.CollectAllScoredTickets(ctx, &since)
	if len(recent) != 3 {
		t.Errorf("scored tickets since %s = %d, want 3", since, len(recent))
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := f.FetchTickets(cancelled, model.TicketQuery{}); err == nil {
		t.Error("expected cancelled context to fail")
	}
}

func TestFallback_GetAndSearch(t *testing.T) {
	t.Parallel()

	f := newTestFallback()
	ctx := context.Background()

	ticket, err := f.GetTicket(ctx, "1005")
	if err != nil || ticket == nil || ticket.Subject != "Service outage report" {
		t.Fatalf("GetTicket() = %+v, %v", ticket, err)
	}
	if ticket.Assignee == nil || ticket.Assignee.Name != "Robert Taylor" {
		t.Errorf("assignee = %+v", ticket.Assignee)
	}

	missing, err := f.GetTicket(ctx, "9999")
	if err != nil || missing != nil {
		t.Errorf("GetTicket(missing) = %+v, %v", missing, err)
	}

	tests := []struct {
		query string
		want  []string
	}{
		{"password", []string{"1001"}},
		{"BILLING", []string{"1003"}},
		{"jennifer", []string{"1005"}},
		{"account", []string{"1001", "1003", "1006"}},
		{"nothing", nil},
	}
	for _, tt := range tests {
		got, err := f.SearchTickets(ctx, tt.query)
		if err != nil {
			t.Fatalf("SearchTickets(%q) error = %v", tt.query, err)
		}
		ids := make(map[string]bool, len(got))
		for _, tk := range got {
			ids[tk.ID] = true
		}
		if len(got) != len(tt.want) {
			t.Errorf("SearchTickets(%q) = %d results, want %d", tt.query, len(got), len(tt.want))
		}
		for _, id := range tt.want {
			if !ids[id] {
				t.Errorf("SearchTickets(%q) missing %s", tt.query, id)
			}
		}
	}
}

func TestFallback_WriteIsNoop(t *testing.T) {
	t.Parallel()

	f := newTestFallback()
	ctx := context.Background()

	if !f.UpdateCESScore(ctx, "1004", 5) {
		t.Fatal("UpdateCESScore() = false, want true")
	}
	ticket, _ := f.GetTicket(ctx, "1004")
	if ticket.HasScore() {
		t.Error("demo write changed the dataset")
	}
}
