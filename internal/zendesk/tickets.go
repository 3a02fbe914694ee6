package zendesk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cesdash/cesdash/internal/metrics"
	"github.com/cesdash/cesdash/internal/model"
)

// FetchTickets returns one page of tickets, newest first.
func (c *Client) FetchTickets(ctx context.Context, q model.TicketQuery) (model.TicketPage, error) {
	page := q.Page
	if page < 1 {
		page = 1
	}
	perPage := q.PerPage
	if perPage <= 0 || perPage > MaxPageSize {
		perPage = MaxPageSize
	}

	query := url.Values{}
	query.Set("per_page", strconv.Itoa(perPage))
	query.Set("page", strconv.Itoa(page))
	query.Set("include", "users")
	query.Set("sort_by", "created_at")
	query.Set("sort_order", "desc")
	if q.Status != "" {
		query.Set("status", string(q.Status))
	}
	if q.CreatedAfter != nil {
		query.Set("created_after", q.CreatedAfter.UTC().Format(time.RFC3339))
	}

	var resp ticketsResponse
	if err := c.do(ctx, "fetch_tickets", http.MethodGet, "tickets.json", query, nil, &resp); err != nil {
		return model.TicketPage{}, err
	}

	fieldID, err := c.CESFieldID(ctx)
	if err != nil {
		return model.TicketPage{}, fmt.Errorf("resolve CES field: %w", err)
	}
	users := c.resolveUsers(ctx, resp.Tickets, resp.Users)

	tickets := make([]model.Ticket, 0, len(resp.Tickets))
	for _, raw := range resp.Tickets {
		if q.CreatedAfter != nil && raw.CreatedAt.Before(*q.CreatedAfter) {
			continue
		}
		if q.Status != "" && raw.Status != string(q.Status) {
			continue
		}
		tickets = append(tickets, normalize(raw, users, fieldID))
	}

	return model.TicketPage{
		Tickets: tickets,
		HasMore: resp.NextPage != nil,
	}, nil
}

// GetTicket returns a single ticket, or nil when the API reports 404.
func (c *Client) GetTicket(ctx context.Context, id string) (*model.Ticket, error) {
	query := url.Values{}
	query.Set("include", "users")

	var resp ticketResponse
	err := c.do(ctx, "get_ticket", http.MethodGet, "tickets/"+url.PathEscape(id)+".json", query, nil, &resp)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	fieldID, err := c.CESFieldID(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve CES field: %w", err)
	}
	raws := []rawTicket{resp.Ticket}
	users := c.resolveUsers(ctx, raws, resp.Users)
	ticket := normalize(resp.Ticket, users, fieldID)
	return &ticket, nil
}

// SearchTickets runs a full-text search and keeps ticket results only.
func (c *Client) SearchTickets(ctx context.Context, q string) ([]model.Ticket, error) {
	query := url.Values{}
	query.Set("query", q)

	var resp searchResponse
	if err := c.do(ctx, "search", http.MethodGet, "search.json", query, nil, &resp); err != nil {
		return nil, err
	}

	raws := make([]rawTicket, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.ResultType == "ticket" {
			raws = append(raws, r.rawTicket)
		}
	}
	if len(raws) == 0 {
		return []model.Ticket{}, nil
	}

	fieldID, err := c.CESFieldID(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve CES field: %w", err)
	}
	users := c.resolveUsers(ctx, raws, nil)

	tickets := make([]model.Ticket, 0, len(raws))
	for _, raw := range raws {
		tickets = append(tickets, normalize(raw, users, fieldID))
	}
	return tickets, nil
}

// UpdateCESScore writes score to the ticket's CES field.
// It reports false on any failure; the cause is logged.
func (c *Client) UpdateCESScore(ctx context.Context, id string, score int) bool {
	logger := c.logger.With("ticket_id", id, "score", score)

	if !model.ValidCESScore(score) {
		logger.Warn("rejecting CES score outside 0-7")
		c.metrics.IncScoreWriteback(metrics.OutcomeError)
		return false
	}

	fieldID, err := c.CESFieldID(ctx)
	if err != nil {
		logger.Warn("cannot write CES score: field lookup failed", "error", err)
		c.metrics.IncScoreWriteback(metrics.OutcomeError)
		return false
	}
	if fieldID == 0 {
		logger.Warn("cannot write CES score: no CES field configured")
		c.metrics.IncScoreWriteback(metrics.OutcomeError)
		return false
	}

	body := cesUpdate{Ticket: cesUpdateTicket{
		CustomFields: []customField{{ID: fieldID, Value: score}},
	}}
	if err := c.do(ctx, "update_ces", http.MethodPut, "tickets/"+url.PathEscape(id)+".json", nil, body, nil); err != nil {
		logger.Warn("CES score write-back failed", "error", err)
		c.metrics.IncScoreWriteback(metrics.OutcomeError)
		return false
	}

	logger.Info("CES score written back")
	c.metrics.IncScoreWriteback(metrics.OutcomeSuccess)
	return true
}

// CollectTickets pages through the ticket listing, one page at a time, until
// the last page or the page cap. since, when set, is an inclusive lower bound
// on creation time. Cancelling ctx stops the loop and discards partial results.
func (c *Client) CollectTickets(ctx context.Context, since *time.Time) ([]model.Ticket, error) {
	var all []model.Ticket
	pages := 0
	hasMore := true

	for pages < c.maxPages && hasMore {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := c.FetchTickets(ctx, model.TicketQuery{
			Page:         pages + 1,
			PerPage:      c.pageSize,
			CreatedAfter: since,
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return nil, ctxErr
			}
			return nil, err
		}

		pages++
		all = append(all, page.Tickets...)
		hasMore = page.HasMore
	}

	capped := hasMore && pages >= c.maxPages
	if capped {
		c.logger.Warn("ticket collection stopped at page cap",
			"pages", pages,
			"tickets", len(all),
		)
	}
	c.metrics.ObserveCollection(pages, capped)

	if all == nil {
		all = []model.Ticket{}
	}
	return all, nil
}

// CollectAllScoredTickets is CollectTickets filtered to scored tickets.
func (c *Client) CollectAllScoredTickets(ctx context.Context, since *time.Time) ([]model.Ticket, error) {
	all, err := c.CollectTickets(ctx, since)
	if err != nil {
		return nil, err
	}
	return model.FilterScored(all), nil
}
