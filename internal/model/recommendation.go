package model

// Recommendation is an improvement item from the recommendation catalog.
type Recommendation struct {
	ID                      string  `json:"id" yaml:"id"`
	Title                   string  `json:"title" yaml:"title"`
	Description             string  `json:"description" yaml:"description"`
	Impact                  string  `json:"impact" yaml:"impact"`
	Effort                  string  `json:"effort" yaml:"effort"`
	Category                string  `json:"category" yaml:"category"`
	EstimatedCESImprovement float64 `json:"estimated_ces_improvement" yaml:"estimated_ces_improvement"`
	AffectedTickets         int     `json:"affected_tickets" yaml:"affected_tickets"`
}
