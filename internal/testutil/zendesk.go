package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

// DefaultCESFieldID is the custom field FakeZendesk stores scores in.
const DefaultCESFieldID int64 = 31797439524887

// FakeTicket is a ticket held by FakeZendesk.
type FakeTicket struct {
	ID          int64
	Subject     string
	Status      string
	Priority    string
	Channel     string
	CreatedAt   time.Time
	RequesterID int64
	AssigneeID  int64
	// CESValue is the raw custom field value; nil leaves the field unset.
	CESValue any
	Tags     []string
}

// FakeUser is a user held by FakeZendesk.
type FakeUser struct {
	ID    int64
	Name  string
	Email string
}

// FakeField is an entry of the fake ticket field catalog.
type FakeField struct {
	ID    int64
	Title string
}

// RecordedRequest is a request FakeZendesk received.
type RecordedRequest struct {
	Method        string
	Path          string
	Query         string
	Authorization string
	UserAgent     string
	Body          string
}

// FakeZendesk is an in-memory stand-in for the Zendesk REST API under /api/v2.
type FakeZendesk struct {
	Server     *httptest.Server
	CESFieldID int64

	mu            sync.Mutex
	tickets       []FakeTicket
	users         map[int64]FakeUser
	fields        []FakeField
	sideload      bool
	infinitePages bool
	failStatus    int
	fieldsStatus  int
	fieldsDelay   time.Duration
	requests      []RecordedRequest
}

// NewFakeZendesk starts a fake API server that is closed with the test.
func NewFakeZendesk(t testing.TB) *FakeZendesk {
	t.Helper()

	f := &FakeZendesk{
		CESFieldID: DefaultCESFieldID,
		users:      make(map[int64]FakeUser),
		sideload:   true,
	}

	r := chi.NewRouter()
	r.Use(f.record)
	r.Route("/api/v2", func(r chi.Router) {
		r.Get("/tickets.json", f.listTickets)
		r.Get("/tickets/{file}", f.getTicket)
		r.Put("/tickets/{file}", f.updateTicket)
		r.Get("/search.json", f.search)
		r.Get("/users/show_many.json", f.showUsers)
		r.Get("/ticket_fields.json", f.listFields)
	})

	f.Server = httptest.NewServer(r)
	t.Cleanup(f.Server.Close)
	return f
}

// URL returns the API root, e.g. http://127.0.0.1:1234/api/v2.
func (f *FakeZendesk) URL() string {
	return f.Server.URL + "/api/v2"
}

// AddTickets appends tickets in listing order (newest first).
func (f *FakeZendesk) AddTickets(tickets ...FakeTicket) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tickets = append(f.tickets, tickets...)
}

// AddUsers registers users for sideloading and lookup.
func (f *FakeZendesk) AddUsers(users ...FakeUser) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range users {
		f.users[u.ID] = u
	}
}

// SetFields replaces the ticket field catalog.
func (f *FakeZendesk) SetFields(fields ...FakeField) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fields = fields
}

// SetSideload toggles include=users sideloading on listings.
func (f *FakeZendesk) SetSideload(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sideload = enabled
}

// SetInfinitePages makes every listing page report a next page.
func (f *FakeZendesk) SetInfinitePages(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.infinitePages = enabled
}

// FailWith makes every request return status; 0 restores normal behavior.
func (f *FakeZendesk) FailWith(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failStatus = status
}

// FailFieldsWith makes the ticket field catalog alone return status.
func (f *FakeZendesk) FailFieldsWith(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fieldsStatus = status
}

// SetFieldsDelay holds every ticket field catalog response for d.
func (f *FakeZendesk) SetFieldsDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fieldsDelay = d
}

// Requests returns a copy of the recorded requests.
func (f *FakeZendesk) Requests() []RecordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]RecordedRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

// CountRequests returns how many requests hit path.
func (f *FakeZendesk) CountRequests(path string) int {
	n := 0
	for _, r := range f.Requests() {
		if r.Path == path {
			n++
		}
	}
	return n
}

// CESValue returns the stored CES value of a ticket.
func (f *FakeZendesk) CESValue(id int64) any {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tickets {
		if t.ID == id {
			return t.CESValue
		}
	}
	return nil
}

func (f *FakeZendesk) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(strings.NewReader(string(body)))

		f.mu.Lock()
		f.requests = append(f.requests, RecordedRequest{
			Method:        r.Method,
			Path:          r.URL.Path,
			Query:         r.URL.RawQuery,
			Authorization: r.Header.Get("Authorization"),
			UserAgent:     r.Header.Get("User-Agent"),
			Body:          string(body),
		})
		status := f.failStatus
		f.mu.Unlock()

		if status != 0 {
			writeFakeJSON(w, status, map[string]any{
				"error":       "Unavailable",
				"description": http.StatusText(status),
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *FakeZendesk) listTickets(w http.ResponseWriter, r *http.Request) {
	perPage := queryInt(r, "per_page", 100)
	page := queryInt(r, "page", 1)

	f.mu.Lock()
	defer f.mu.Unlock()

	start := (page - 1) * perPage
	if start > len(f.tickets) {
		start = len(f.tickets)
	}
	end := start + perPage
	if end > len(f.tickets) {
		end = len(f.tickets)
	}
	pageTickets := f.tickets[start:end]

	var next any
	if end < len(f.tickets) || f.infinitePages {
		next = fmt.Sprintf("%s/api/v2/tickets.json?page=%d&per_page=%d", f.Server.URL, page+1, perPage)
	}

	resp := map[string]any{
		"tickets":   f.ticketsJSON(pageTickets),
		"next_page": next,
		"count":     len(f.tickets),
	}
	if f.sideload && r.URL.Query().Get("include") == "users" {
		resp["users"] = f.usersFor(pageTickets)
	}
	writeFakeJSON(w, http.StatusOK, resp)
}

func (f *FakeZendesk) getTicket(w http.ResponseWriter, r *http.Request) {
	id, ok := ticketIDParam(r)

	f.mu.Lock()
	defer f.mu.Unlock()

	idx := f.indexOf(id)
	if !ok || idx < 0 {
		writeFakeJSON(w, http.StatusNotFound, map[string]any{"error": "RecordNotFound"})
		return
	}

	resp := map[string]any{"ticket": f.ticketJSON(f.tickets[idx])}
	if f.sideload && r.URL.Query().Get("include") == "users" {
		resp["users"] = f.usersFor(f.tickets[idx : idx+1])
	}
	writeFakeJSON(w, http.StatusOK, resp)
}

func (f *FakeZendesk) updateTicket(w http.ResponseWriter, r *http.Request) {
	id, ok := ticketIDParam(r)

	var body struct {
		Ticket struct {
			CustomFields []struct {
				ID    int64 `json:"id"`
				Value any   `json:"value"`
			} `json:"custom_fields"`
		} `json:"ticket"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeFakeJSON(w, http.StatusBadRequest, map[string]any{"error": "InvalidJSON"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	idx := f.indexOf(id)
	if !ok || idx < 0 {
		writeFakeJSON(w, http.StatusNotFound, map[string]any{"error": "RecordNotFound"})
		return
	}
	for _, cf := range body.Ticket.CustomFields {
		if cf.ID == f.CESFieldID {
			f.tickets[idx].CESValue = cf.Value
		}
	}
	writeFakeJSON(w, http.StatusOK, map[string]any{"ticket": f.ticketJSON(f.tickets[idx])})
}

func (f *FakeZendesk) search(w http.ResponseWriter, r *http.Request) {
	q := strings.ToLower(r.URL.Query().Get("query"))

	f.mu.Lock()
	defer f.mu.Unlock()

	results := make([]map[string]any, 0)
	for _, t := range f.tickets {
		if strings.Contains(strings.ToLower(t.Subject), q) {
			item := f.ticketJSON(t)
			item["result_type"] = "ticket"
			results = append(results, item)
		}
	}
	for _, u := range f.users {
		if strings.Contains(strings.ToLower(u.Name), q) {
			results = append(results, map[string]any{
				"result_type": "user",
				"id":          u.ID,
				"name":        u.Name,
			})
		}
	}
	writeFakeJSON(w, http.StatusOK, map[string]any{
		"results":   results,
		"next_page": nil,
		"count":     len(results),
	})
}

func (f *FakeZendesk) showUsers(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	users := make([]map[string]any, 0)
	for _, part := range strings.Split(r.URL.Query().Get("ids"), ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			continue
		}
		if u, ok := f.users[id]; ok {
			users = append(users, userJSON(u))
		}
	}
	writeFakeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (f *FakeZendesk) listFields(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	delay, status := f.fieldsDelay, f.fieldsStatus
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}
	if status != 0 {
		writeFakeJSON(w, status, map[string]any{
			"error":       "Unavailable",
			"description": http.StatusText(status),
		})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	fields := f.fields
	if fields == nil {
		fields = []FakeField{
			{ID: 360000001, Title: "Subject"},
			{ID: f.CESFieldID, Title: "Customer Effort Score"},
		}
	}

	out := make([]map[string]any, 0, len(fields))
	for _, fld := range fields {
		out = append(out, map[string]any{
			"id":     fld.ID,
			"title":  fld.Title,
			"type":   "integer",
			"active": true,
		})
	}
	writeFakeJSON(w, http.StatusOK, map[string]any{"ticket_fields": out})
}

func (f *FakeZendesk) indexOf(id int64) int {
	for i, t := range f.tickets {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (f *FakeZendesk) ticketsJSON(tickets []FakeTicket) []map[string]any {
	out := make([]map[string]any, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, f.ticketJSON(t))
	}
	return out
}

func (f *FakeZendesk) ticketJSON(t FakeTicket) map[string]any {
	fields := []map[string]any{{"id": 360000001, "value": "misc"}}
	if t.CESValue != nil {
		fields = append(fields, map[string]any{"id": f.CESFieldID, "value": t.CESValue})
	}

	var assignee any
	if t.AssigneeID != 0 {
		assignee = t.AssigneeID
	}
	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}

	var channel any
	if t.Channel != "" {
		channel = t.Channel
	}

	return map[string]any{
		"id":            t.ID,
		"subject":       t.Subject,
		"description":   "Description of " + t.Subject,
		"status":        t.Status,
		"priority":      t.Priority,
		"created_at":    t.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at":    t.CreatedAt.UTC().Format(time.RFC3339),
		"requester_id":  t.RequesterID,
		"assignee_id":   assignee,
		"tags":          tags,
		"via":           map[string]any{"channel": channel},
		"custom_fields": fields,
	}
}

func (f *FakeZendesk) usersFor(tickets []FakeTicket) []map[string]any {
	seen := make(map[int64]bool)
	out := make([]map[string]any, 0)
	add := func(id int64) {
		if id == 0 || seen[id] {
			return
		}
		seen[id] = true
		if u, ok := f.users[id]; ok {
			out = append(out, userJSON(u))
		}
	}
	for _, t := range tickets {
		add(t.RequesterID)
		add(t.AssigneeID)
	}
	return out
}

func userJSON(u FakeUser) map[string]any {
	return map[string]any{"id": u.ID, "name": u.Name, "email": u.Email}
}

func ticketIDParam(r *http.Request) (int64, bool) {
	raw := strings.TrimSuffix(chi.URLParam(r, "file"), ".json")
	id, err := strconv.ParseInt(raw, 10, 64)
	return id, err == nil
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func writeFakeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
