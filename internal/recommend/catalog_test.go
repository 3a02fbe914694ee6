package recommend

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cesdash/cesdash/internal/testutil"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	c := Default()
	if c.Count() != 4 {
		t.Fatalf("Count() = %d, want 4", c.Count())
	}

	items := c.Items()
	first := items[0]
	if first.ID != "rec_001" || first.Title != "Implement Self-Service Password Reset" {
		t.Errorf("first = %+v", first)
	}
	if first.Impact != "high" || first.Effort != "medium" || first.Category != "technology" {
		t.Errorf("first attributes = %+v", first)
	}
	if first.EstimatedCESImprovement != -1.2 || first.AffectedTickets != 156 {
		t.Errorf("first estimates = %+v", first)
	}

	items[0].Title = "mutated"
	if c.Items()[0].Title == "mutated" {
		t.Error("Items() exposed internal slice")
	}
}

func TestParse_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"malformed", "recommendations: [", "parse"},
		{"missing id", "recommendations:\n  - title: x\n    impact: low\n    effort: low\n", "id is required"},
		{"duplicate id", "recommendations:\n  - {id: a, title: x, impact: low, effort: low}\n  - {id: a, title: y, impact: low, effort: low}\n", "duplicate"},
		{"bad impact", "recommendations:\n  - {id: a, title: x, impact: huge, effort: low}\n", "invalid impact"},
		{"negative tickets", "recommendations:\n  - {id: a, title: x, impact: low, effort: low, affected_tickets: -1}\n", "negative"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Parse() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	c, err := Load("", nil)
	if err != nil || c.Count() != 4 {
		t.Fatalf("Load(\"\") = %v, %v", c, err)
	}

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	data := "recommendations:\n  - {id: rec_x, title: Callback scheduling, impact: medium, effort: low, category: process, estimated_ces_improvement: -0.4, affected_tickets: 12}\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	c, err = Load(path, testutil.DiscardLogger())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.Count() != 1 || c.Items()[0].ID != "rec_x" {
		t.Errorf("items = %+v", c.Items())
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("missing file error = %v", err)
	}
}
