package model

// TrendDirection summarizes how the daily average moved.
type TrendDirection string

const (
	TrendUp     TrendDirection = "up"
	TrendDown   TrendDirection = "down"
	TrendStable TrendDirection = "stable"
)

// ScoreBucket is one entry of the 0..7 score distribution.
type ScoreBucket struct {
	Score      int     `json:"score"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// TrendPoint is the scored-ticket average for one UTC day.
type TrendPoint struct {
	Date        string  `json:"date"`
	AverageCES  float64 `json:"average_ces"`
	TicketCount int     `json:"ticket_count"`
}

// ChannelStat aggregates scored tickets for one channel.
type ChannelStat struct {
	Channel    Channel `json:"channel"`
	AverageCES float64 `json:"average_ces"`
	Count      int     `json:"count"`
}

// PriorityStat aggregates scored tickets for one priority.
type PriorityStat struct {
	Priority   Priority `json:"priority"`
	AverageCES float64  `json:"average_ces"`
	Count      int      `json:"count"`
}

// Analytics is derived from a single ticket set.
type Analytics struct {
	TotalTickets   int            `json:"total_tickets"`
	TicketsWithCES int            `json:"tickets_with_ces"`
	AverageCES     float64        `json:"average_ces"`
	Distribution   []ScoreBucket  `json:"ces_distribution"`
	Trends         []TrendPoint   `json:"trends"`
	ByChannel      []ChannelStat  `json:"by_channel"`
	ByPriority     []PriorityStat `json:"by_priority"`
}

// DashboardSummary is the headline view built from Analytics and recent tickets.
type DashboardSummary struct {
	TotalTickets             int            `json:"total_tickets"`
	PendingPredictions       int            `json:"pending_predictions"`
	AverageCES               float64        `json:"average_ces"`
	Trend                    TrendDirection `json:"ces_trend"`
	HighRiskTickets          int            `json:"high_risk_tickets"`
	ImprovementOpportunities int            `json:"improvement_opportunities"`
}
