// Package analytics aggregates CES statistics over ticket sets and
// publishes score change events.
package analytics

import (
	"math"
	"time"

	"github.com/cesdash/cesdash/internal/model"
)

const (
	// DefaultTrendDays is the length of the trailing trend window.
	DefaultTrendDays = 30

	// dateLayout is the UTC day key used for trend buckets.
	dateLayout = "2006-01-02"

	// trendLookback is how many trend entries back the direction compares against.
	trendLookback = 7
)

// Options controls time-dependent aggregation policy.
type Options struct {
	// Today is the last day of the trend window. Only its UTC date is used.
	Today time.Time
	// TrendDays is the window length; values <= 0 use DefaultTrendDays.
	TrendDays int
}

// Aggregate builds Analytics from a ticket set.
// The result depends only on the inputs.
func Aggregate(tickets []model.Ticket, opts Options) model.Analytics {
	scored := model.FilterScored(tickets)

	return model.Analytics{
		TotalTickets:   len(tickets),
		TicketsWithCES: len(scored),
		AverageCES:     round1(meanScore(scored)),
		Distribution:   Distribution(scored),
		Trends:         Trends(scored, opts),
		ByChannel:      ByChannel(scored),
		ByPriority:     ByPriority(scored),
	}
}

// Distribution counts scored tickets for every score 0..7.
func Distribution(tickets []model.Ticket) []model.ScoreBucket {
	counts := make([]int, model.MaxCESScore+1)
	total := 0
	for i := range tickets {
		score, ok := tickets[i].Score()
		if !ok {
			continue
		}
		counts[score]++
		total++
	}

	buckets := make([]model.ScoreBucket, 0, len(counts))
	for score, count := range counts {
		pct := 0.0
		if total > 0 {
			pct = 100 * float64(count) / float64(total)
		}
		buckets = append(buckets, model.ScoreBucket{
			Score:      score,
			Count:      count,
			Percentage: pct,
		})
	}
	return buckets
}

// Trends returns one point per UTC day of the window, oldest first.
// Days without scored tickets are zero-filled.
func Trends(tickets []model.Ticket, opts Options) []model.TrendPoint {
	days := opts.TrendDays
	if days <= 0 {
		days = DefaultTrendDays
	}

	type dayAcc struct {
		sum   int
		count int
	}
	byDay := make(map[string]*dayAcc)
	for i := range tickets {
		score, ok := tickets[i].Score()
		if !ok {
			continue
		}
		key := tickets[i].CreatedAt.UTC().Format(dateLayout)
		acc, exists := byDay[key]
		if !exists {
			acc = &dayAcc{}
			byDay[key] = acc
		}
		acc.sum += score
		acc.count++
	}

	today := opts.Today.UTC()
	end := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)

	points := make([]model.TrendPoint, 0, days)
	for offset := days - 1; offset >= 0; offset-- {
		key := end.AddDate(0, 0, -offset).Format(dateLayout)
		point := model.TrendPoint{Date: key}
		if acc, ok := byDay[key]; ok && acc.count > 0 {
			point.AverageCES = round1(float64(acc.sum) / float64(acc.count))
			point.TicketCount = acc.count
		}
		points = append(points, point)
	}
	return points
}

// ByChannel averages scored tickets per channel in canonical order.
// Channels without scored tickets are omitted.
func ByChannel(tickets []model.Ticket) []model.ChannelStat {
	stats := make([]model.ChannelStat, 0, len(model.Channels()))
	for _, channel := range model.Channels() {
		sum, count := 0, 0
		for i := range tickets {
			score, ok := tickets[i].Score()
			if !ok || tickets[i].Channel != channel {
				continue
			}
			sum += score
			count++
		}
		if count == 0 {
			continue
		}
		stats = append(stats, model.ChannelStat{
			Channel:    channel,
			AverageCES: round1(float64(sum) / float64(count)),
			Count:      count,
		})
	}
	return stats
}

// ByPriority averages scored tickets per priority in canonical order.
// Priorities without scored tickets are omitted.
func ByPriority(tickets []model.Ticket) []model.PriorityStat {
	stats := make([]model.PriorityStat, 0, len(model.Priorities()))
	for _, priority := range model.Priorities() {
		sum, count := 0, 0
		for i := range tickets {
			score, ok := tickets[i].Score()
			if !ok || tickets[i].Priority != priority {
				continue
			}
			sum += score
			count++
		}
		if count == 0 {
			continue
		}
		stats = append(stats, model.PriorityStat{
			Priority:   priority,
			AverageCES: round1(float64(sum) / float64(count)),
			Count:      count,
		})
	}
	return stats
}

// Summarize derives the dashboard headline from analytics and the most
// recent tickets. improvementOpportunities is passed through unchanged.
func Summarize(a model.Analytics, recent []model.Ticket, improvementOpportunities int) model.DashboardSummary {
	pending, highRisk := 0, 0
	for i := range recent {
		if !recent[i].HasScore() {
			pending++
			continue
		}
		if recent[i].IsHighRisk() {
			highRisk++
		}
	}

	return model.DashboardSummary{
		TotalTickets:             a.TotalTickets,
		PendingPredictions:       pending,
		AverageCES:               a.AverageCES,
		Trend:                    Direction(a.Trends),
		HighRiskTickets:          highRisk,
		ImprovementOpportunities: improvementOpportunities,
	}
}

// Direction compares the day seven entries from the end with the last day.
// Shorter series compare against their first entry.
func Direction(trends []model.TrendPoint) model.TrendDirection {
	if len(trends) == 0 {
		return model.TrendStable
	}

	start := len(trends) - trendLookback
	if start < 0 {
		start = 0
	}
	earliest := trends[start].AverageCES
	latest := trends[len(trends)-1].AverageCES

	switch {
	case latest > earliest:
		return model.TrendUp
	case latest < earliest:
		return model.TrendDown
	default:
		return model.TrendStable
	}
}

func meanScore(tickets []model.Ticket) float64 {
	if len(tickets) == 0 {
		return 0
	}
	sum := 0
	for i := range tickets {
		score, _ := tickets[i].Score()
		sum += score
	}
	return float64(sum) / float64(len(tickets))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
