package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cesdash/cesdash/internal/handler/dto"
	"github.com/cesdash/cesdash/internal/model"
	"github.com/cesdash/cesdash/internal/service"
)

// DataSourceHeader reports whether a response came from the live API or the
// demo dataset.
const DataSourceHeader = "X-Data-Source"

const (
	defaultPerPage = 25
	maxPerPage     = 100
	dateLayout     = "2006-01-02"
)

// DashboardHandler handles analytics and ticket requests.
type DashboardHandler struct {
	svc    *service.DashboardService
	logger *slog.Logger
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(svc *service.DashboardService, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{
		svc:    svc,
		logger: logger,
	}
}

// Analytics handles GET /api/v1/analytics.
// The optional start query parameter (YYYY-MM-DD, UTC) limits the ticket set.
func (h *DashboardHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	var since *time.Time
	if start := r.URL.Query().Get("start"); start != "" {
		t, err := time.Parse(dateLayout, start)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_DATE", "start must be a YYYY-MM-DD date")
			return
		}
		since = &t
	}

	res, err := h.svc.Analytics(r.Context(), since)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	writeData(w, res)
}

// Dashboard handles GET /api/v1/dashboard.
func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Dashboard(r.Context())
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	writeData(w, res)
}

// ListTickets handles GET /api/v1/tickets.
func (h *DashboardHandler) ListTickets(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	q := model.TicketQuery{Page: 1, PerPage: defaultPerPage}
	if p := query.Get("page"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil && parsed > 0 {
			q.Page = parsed
		}
	}
	if pp := query.Get("per_page"); pp != "" {
		if parsed, err := strconv.Atoi(pp); err == nil && parsed > 0 && parsed <= maxPerPage {
			q.PerPage = parsed
		}
	}
	if status := query.Get("status"); status != "" {
		q.Status = model.TicketStatus(status)
		if !q.Status.IsValid() {
			writeError(w, http.StatusBadRequest, "INVALID_STATUS", "Unknown ticket status")
			return
		}
	}
	if after := query.Get("created_after"); after != "" {
		t, err := parseTime(after)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_DATE", "created_after must be RFC 3339 or YYYY-MM-DD")
			return
		}
		q.CreatedAfter = &t
	}

	res, err := h.svc.Tickets(r.Context(), q)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	tickets := res.Data.Tickets
	if tickets == nil {
		tickets = []model.Ticket{}
	}
	w.Header().Set(DataSourceHeader, string(res.Origin))
	writeJSON(w, http.StatusOK, dto.TicketListResponse{
		Data: tickets,
		Pagination: dto.Pagination{
			Page:    q.Page,
			PerPage: q.PerPage,
			HasMore: res.Data.HasMore,
		},
		Source: string(res.Origin),
	})
}

// GetTicket handles GET /api/v1/tickets/{id}.
func (h *DashboardHandler) GetTicket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "MISSING_ID", "Ticket ID is required")
		return
	}

	res, err := h.svc.Ticket(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	writeData(w, res)
}

// SearchTickets handles GET /api/v1/tickets/search?q=.
func (h *DashboardHandler) SearchTickets(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	if res.Data == nil {
		res.Data = []model.Ticket{}
	}
	writeData(w, res)
}

// UpdateScore handles PUT /api/v1/tickets/{id}/ces.
func (h *DashboardHandler) UpdateScore(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "MISSING_ID", "Ticket ID is required")
		return
	}

	var req dto.UpdateScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if req.Score == nil {
		writeError(w, http.StatusBadRequest, "INVALID_SCORE", "score is required")
		return
	}

	origin, err := h.svc.UpdateScore(r.Context(), id, *req.Score)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("ces_score_saved",
		"ticket_id", id,
		"score", *req.Score,
		"source", origin,
	)

	writeData(w, service.Result[dto.UpdateScoreResponse]{
		Data:   dto.UpdateScoreResponse{TicketID: id, Score: *req.Score, Saved: true},
		Origin: origin,
	})
}

// handleServiceError maps service errors to HTTP responses.
func (h *DashboardHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Ticket not found")
	case errors.Is(err, service.ErrInvalidScore):
		writeError(w, http.StatusBadRequest, "INVALID_SCORE", "Score must be an integer from 0 to 7")
	case errors.Is(err, service.ErrQueryTooShort):
		writeError(w, http.StatusBadRequest, "QUERY_TOO_SHORT", "Search query must be at least 3 characters")
	case errors.Is(err, service.ErrScoreNotSaved):
		h.logger.Warn("ces_score_not_saved", "error", err)
		writeError(w, http.StatusBadGateway, "SCORE_NOT_SAVED", "The ticketing system did not accept the score")
	case errors.Is(err, service.ErrDataUnavailable):
		h.logger.Error("data_unavailable", "error", err)
		writeError(w, http.StatusServiceUnavailable, "DATA_UNAVAILABLE", "Ticket data is unavailable")
	default:
		h.logger.Error("internal_error", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}

// writeData writes a sourced payload and mirrors the origin in a header.
func writeData[T any](w http.ResponseWriter, res service.Result[T]) {
	w.Header().Set(DataSourceHeader, string(res.Origin))
	writeJSON(w, http.StatusOK, dto.Response[T]{
		Data:   res.Data,
		Source: string(res.Origin),
	})
}

func parseTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse(dateLayout, raw)
}
