// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"github.com/cesdash/cesdash/internal/model"
)

// Response wraps a payload with the origin of its data.
type Response[T any] struct {
	Data   T      `json:"data"`
	Source string `json:"source"`
}

// UpdateScoreRequest represents the request body for a CES write-back.
type UpdateScoreRequest struct {
	Score *int `json:"score"`
}

// UpdateScoreResponse reports a saved CES score.
type UpdateScoreResponse struct {
	TicketID string `json:"ticket_id"`
	Score    int    `json:"score"`
	Saved    bool   `json:"saved"`
}

// TicketListResponse represents one page of tickets.
type TicketListResponse struct {
	Data       []model.Ticket `json:"data"`
	Pagination Pagination     `json:"pagination"`
	Source     string         `json:"source"`
}

// Pagination provides page-number pagination info.
type Pagination struct {
	Page    int  `json:"page"`
	PerPage int  `json:"per_page"`
	HasMore bool `json:"has_more"`
}

// RecommendationListResponse lists the improvement catalog.
type RecommendationListResponse struct {
	Data  []model.Recommendation `json:"data"`
	Count int                    `json:"count"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody carries a machine-readable code and a message.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
