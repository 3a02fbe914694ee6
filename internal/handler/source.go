package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/cesdash/cesdash/internal/source"
)

// SourceController reports and refreshes the source selection.
// *source.Controller implements it.
type SourceController interface {
	Status() source.Status
	Reprobe(ctx context.Context) source.Status
}

// SourceHandler exposes the source controller.
type SourceHandler struct {
	ctrl   SourceController
	logger *slog.Logger
}

// NewSourceHandler creates a new SourceHandler.
func NewSourceHandler(ctrl SourceController, logger *slog.Logger) *SourceHandler {
	return &SourceHandler{ctrl: ctrl, logger: logger}
}

// SourceResponse describes the current selection.
type SourceResponse struct {
	source.Status
	Live bool `json:"live"`
}

// Status handles GET /api/v1/source.
func (h *SourceHandler) Status(w http.ResponseWriter, r *http.Request) {
	st := h.ctrl.Status()
	writeJSON(w, http.StatusOK, SourceResponse{Status: st, Live: st.IsLive()})
}

// Probe handles POST /api/v1/source/probe. It blocks until the probe settles.
func (h *SourceHandler) Probe(w http.ResponseWriter, r *http.Request) {
	st := h.ctrl.Reprobe(r.Context())
	h.logger.Info("source_reprobed", "state", st.State, "via", st.Via)
	writeJSON(w, http.StatusOK, SourceResponse{Status: st, Live: st.IsLive()})
}
