package analytics

import (
	"fmt"

	"github.com/oklog/ulid/v2"

	"github.com/cesdash/cesdash/internal/model"
)

// ValidateScoreEvent validates score event fields.
func ValidateScoreEvent(event ScoreEvent) error {
	if event.ID == "" {
		return fmt.Errorf("id is required")
	}
	if _, err := ulid.ParseStrict(event.ID); err != nil {
		return fmt.Errorf("id must be a ULID: %w", err)
	}
	if event.TicketID == "" {
		return fmt.Errorf("ticket id is required")
	}
	if !model.ValidCESScore(event.Score) {
		return fmt.Errorf("score %d out of range", event.Score)
	}
	if event.UpdatedAt <= 0 {
		return fmt.Errorf("updated_at must be set")
	}
	return nil
}
