package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cesdash/cesdash/internal/handler/dto"
	"github.com/cesdash/cesdash/internal/model"
	"github.com/cesdash/cesdash/internal/recommend"
	"github.com/cesdash/cesdash/internal/service"
	"github.com/cesdash/cesdash/internal/source"
	"github.com/cesdash/cesdash/internal/testutil"
	"github.com/cesdash/cesdash/internal/zendesk"
)

var fixedNow = time.Date(2026, 3, 20, 18, 0, 0, 0, time.UTC)

type selector struct {
	active   source.Source
	fallback source.Source
}

func (s selector) Active() source.Source   { return s.active }
func (s selector) Fallback() source.Source { return s.fallback }

// unavailableSource fails every read.
type unavailableSource struct{ *source.Fallback }

func (unavailableSource) Name() string { return "unavailable" }
func (unavailableSource) FetchTickets(ctx context.Context, q model.TicketQuery) (model.TicketPage, error) {
	return model.TicketPage{}, errors.New("unavailable")
}
func (unavailableSource) CollectTickets(ctx context.Context, since *time.Time) ([]model.Ticket, error) {
	return nil, errors.New("unavailable")
}

func demoSource() *source.Fallback {
	return source.NewFallback(func() time.Time { return fixedNow }, testutil.DiscardLogger())
}

func newRouter(sel service.Selector) http.Handler {
	svc := service.NewDashboardService(service.Options{
		Selector:        sel,
		Recommendations: recommend.Default(),
		Now:             func() time.Time { return fixedNow },
		Logger:          testutil.DiscardLogger(),
	})
	h := NewDashboardHandler(svc, testutil.DiscardLogger())

	r := chi.NewRouter()
	r.Get("/analytics", h.Analytics)
	r.Get("/dashboard", h.Dashboard)
	r.Route("/tickets", func(r chi.Router) {
		r.Get("/", h.ListTickets)
		r.Get("/search", h.SearchTickets)
		r.Get("/{id}", h.GetTicket)
		r.Put("/{id}/ces", h.UpdateScore)
	})
	return r
}

func demoRouter() http.Handler {
	fb := demoSource()
	return newRouter(selector{active: fb, fallback: fb})
}

// liveRouter serves from a client backed by a fake ticketing API.
func liveRouter(t *testing.T) (http.Handler, *testutil.FakeZendesk) {
	t.Helper()

	fz := testutil.NewFakeZendesk(t)
	fz.AddTickets(
		testutil.FakeTicket{ID: 7, Subject: "Cannot log in", Status: "open", Priority: "high", Channel: "web", CreatedAt: fixedNow.Add(-time.Hour), CESValue: float64(3)},
	)
	client, err := zendesk.New(zendesk.Options{
		BaseURL:     fz.URL(),
		Credentials: zendesk.Credentials{Email: "agent@acme.test", Token: "secret"},
		CESFieldID:  fz.CESFieldID,
		Timeout:     2 * time.Second,
		Logger:      testutil.DiscardLogger(),
	})
	if err != nil {
		t.Fatalf("zendesk.New() error = %v", err)
	}
	return newRouter(selector{active: client, fallback: demoSource()}), fz
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return v
}

func TestDashboardHandler_Dashboard(t *testing.T) {
	t.Parallel()

	rec := do(t, demoRouter(), http.MethodGet, "/dashboard", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get(DataSourceHeader); got != "fallback" {
		t.Errorf("%s = %q, want fallback", DataSourceHeader, got)
	}

	resp := decode[dto.Response[model.DashboardSummary]](t, rec)
	if resp.Source != "fallback" {
		t.Errorf("source = %q", resp.Source)
	}
	if resp.Data.TotalTickets != 6 || resp.Data.ImprovementOpportunities != 4 {
		t.Errorf("summary = %+v", resp.Data)
	}
}

func TestDashboardHandler_Analytics(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		target    string
		wantCode  int
		wantTotal int
	}{
		{"all tickets", "/analytics", http.StatusOK, 6},
		{"since date", "/analytics?start=2026-03-19", http.StatusOK, 4},
		{"bad date", "/analytics?start=19-03-2026", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := do(t, demoRouter(), http.MethodGet, tt.target, "")
			if rec.Code != tt.wantCode {
				t.Fatalf("expected status %d, got %d", tt.wantCode, rec.Code)
			}
			if tt.wantCode != http.StatusOK {
				if resp := decode[dto.ErrorResponse](t, rec); resp.Error.Code != "INVALID_DATE" {
					t.Errorf("error code = %s", resp.Error.Code)
				}
				return
			}
			resp := decode[dto.Response[model.Analytics]](t, rec)
			if resp.Data.TotalTickets != tt.wantTotal {
				t.Errorf("total = %d, want %d", resp.Data.TotalTickets, tt.wantTotal)
			}
			if len(resp.Data.Distribution) != 8 {
				t.Errorf("distribution buckets = %d, want 8", len(resp.Data.Distribution))
			}
		})
	}
}

func TestDashboardHandler_ListTickets(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		target    string
		wantCode  int
		wantCount int
		wantMore  bool
	}{
		{"default page", "/tickets", http.StatusOK, 6, false},
		{"paged", "/tickets?page=1&per_page=4", http.StatusOK, 4, true},
		{"second page", "/tickets?page=2&per_page=4", http.StatusOK, 2, false},
		{"status filter", "/tickets?status=solved", http.StatusOK, 2, false},
		{"created after", "/tickets?created_after=2026-03-20T00:00:00Z", http.StatusOK, 3, false},
		{"bad status", "/tickets?status=archived", http.StatusBadRequest, 0, false},
		{"bad date", "/tickets?created_after=yesterday", http.StatusBadRequest, 0, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := do(t, demoRouter(), http.MethodGet, tt.target, "")
			if rec.Code != tt.wantCode {
				t.Fatalf("expected status %d, got %d", tt.wantCode, rec.Code)
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			resp := decode[dto.TicketListResponse](t, rec)
			if len(resp.Data) != tt.wantCount {
				t.Errorf("tickets = %d, want %d", len(resp.Data), tt.wantCount)
			}
			if resp.Pagination.HasMore != tt.wantMore {
				t.Errorf("has_more = %v, want %v", resp.Pagination.HasMore, tt.wantMore)
			}
		})
	}
}

func TestDashboardHandler_GetTicket(t *testing.T) {
	t.Parallel()

	h := demoRouter()

	rec := do(t, h, http.MethodGet, "/tickets/1001", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	resp := decode[dto.Response[model.Ticket]](t, rec)
	if resp.Data.ID != "1001" {
		t.Errorf("ticket id = %s", resp.Data.ID)
	}

	rec = do(t, h, http.MethodGet, "/tickets/9999", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}
}

func TestDashboardHandler_SearchTickets(t *testing.T) {
	t.Parallel()

	h := demoRouter()

	rec := do(t, h, http.MethodGet, "/tickets/search?q=ab", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if resp := decode[dto.ErrorResponse](t, rec); resp.Error.Code != "QUERY_TOO_SHORT" {
		t.Errorf("error code = %s", resp.Error.Code)
	}

	rec = do(t, h, http.MethodGet, "/tickets/search?q=zzzzzz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"data":[]`) {
		t.Errorf("expected empty data array, got %s", rec.Body.String())
	}
}

func TestDashboardHandler_UpdateScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
	}{
		{"valid", `{"score":6}`, http.StatusOK, ""},
		{"zero", `{"score":0}`, http.StatusOK, ""},
		{"out of range", `{"score":8}`, http.StatusBadRequest, "INVALID_SCORE"},
		{"missing score", `{}`, http.StatusBadRequest, "INVALID_SCORE"},
		{"not json", `score=6`, http.StatusBadRequest, "INVALID_JSON"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := do(t, demoRouter(), http.MethodPut, "/tickets/1004/ces", tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("expected status %d, got %d", tt.wantCode, rec.Code)
			}
			if tt.wantErr != "" {
				if resp := decode[dto.ErrorResponse](t, rec); resp.Error.Code != tt.wantErr {
					t.Errorf("error code = %s, want %s", resp.Error.Code, tt.wantErr)
				}
				return
			}
			resp := decode[dto.Response[dto.UpdateScoreResponse]](t, rec)
			if !resp.Data.Saved || resp.Data.TicketID != "1004" || resp.Source != "fallback" {
				t.Errorf("response = %+v", resp)
			}
		})
	}
}

func TestDashboardHandler_LiveWriteFailure(t *testing.T) {
	t.Parallel()

	h, fz := liveRouter(t)

	rec := do(t, h, http.MethodPut, "/tickets/7/ces", `{"score":5}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got, _ := fz.CESValue(7).(float64); got != 5 {
		t.Errorf("stored score = %v, want 5", fz.CESValue(7))
	}

	rec = do(t, h, http.MethodPut, "/tickets/404/ces", `{"score":5}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", rec.Code)
	}
	if resp := decode[dto.ErrorResponse](t, rec); resp.Error.Code != "SCORE_NOT_SAVED" {
		t.Errorf("error code = %s", resp.Error.Code)
	}
}

func TestDashboardHandler_LiveReadFailureServesDemo(t *testing.T) {
	t.Parallel()

	h, fz := liveRouter(t)

	rec := do(t, h, http.MethodGet, "/tickets", "")
	if got := rec.Header().Get(DataSourceHeader); got != "live" {
		t.Errorf("%s = %q, want live", DataSourceHeader, got)
	}

	fz.FailWith(http.StatusServiceUnavailable)

	rec = do(t, h, http.MethodGet, "/tickets", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if got := rec.Header().Get(DataSourceHeader); got != "fallback" {
		t.Errorf("%s = %q, want fallback", DataSourceHeader, got)
	}
}

func TestDashboardHandler_DataUnavailable(t *testing.T) {
	t.Parallel()

	broken := unavailableSource{demoSource()}
	h := newRouter(selector{active: broken, fallback: broken})

	rec := do(t, h, http.MethodGet, "/dashboard", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rec.Code)
	}
	if resp := decode[dto.ErrorResponse](t, rec); resp.Error.Code != "DATA_UNAVAILABLE" {
		t.Errorf("error code = %s", resp.Error.Code)
	}
}
