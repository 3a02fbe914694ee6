package handler

import (
	"net/http"

	"github.com/cesdash/cesdash/internal/handler/dto"
	"github.com/cesdash/cesdash/internal/model"
)

// RecommendationLister provides the improvement catalog.
type RecommendationLister interface {
	Items() []model.Recommendation
}

// RecommendationHandler serves the recommendation catalog.
type RecommendationHandler struct {
	catalog RecommendationLister
}

// NewRecommendationHandler creates a new RecommendationHandler.
func NewRecommendationHandler(catalog RecommendationLister) *RecommendationHandler {
	return &RecommendationHandler{catalog: catalog}
}

// List handles GET /api/v1/recommendations.
func (h *RecommendationHandler) List(w http.ResponseWriter, r *http.Request) {
	items := h.catalog.Items()
	if items == nil {
		items = []model.Recommendation{}
	}
	writeJSON(w, http.StatusOK, dto.RecommendationListResponse{
		Data:  items,
		Count: len(items),
	})
}
