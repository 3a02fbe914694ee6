// Package recommend loads the improvement recommendation catalog.
package recommend

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cesdash/cesdash/internal/model"
)

//go:embed default.yaml
var defaultCatalog []byte

var (
	validImpact = map[string]bool{"low": true, "medium": true, "high": true}
	validEffort = validImpact
)

// Catalog is an immutable list of recommendations.
type Catalog struct {
	items []model.Recommendation
}

type catalogFile struct {
	Recommendations []model.Recommendation `yaml:"recommendations"`
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("recommend: built-in catalog: %v", err))
	}
	return c
}

// Load reads a catalog from path; an empty path returns the built-in one.
func Load(path string, logger *slog.Logger) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("recommendation catalog %s not found: %w", path, err)
		}
		return nil, fmt.Errorf("read recommendation catalog: %w", err)
	}

	c, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if logger != nil {
		logger.Info("loaded recommendation catalog", "path", path, "items", c.Count())
	}
	return c, nil
}

// Parse decodes and validates catalog YAML.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse recommendation catalog: %w", err)
	}

	seen := make(map[string]bool, len(file.Recommendations))
	for i, r := range file.Recommendations {
		switch {
		case r.ID == "":
			return nil, fmt.Errorf("recommendation %d: id is required", i)
		case seen[r.ID]:
			return nil, fmt.Errorf("recommendation %s: duplicate id", r.ID)
		case r.Title == "":
			return nil, fmt.Errorf("recommendation %s: title is required", r.ID)
		case !validImpact[r.Impact]:
			return nil, fmt.Errorf("recommendation %s: invalid impact %q", r.ID, r.Impact)
		case !validEffort[r.Effort]:
			return nil, fmt.Errorf("recommendation %s: invalid effort %q", r.ID, r.Effort)
		case r.AffectedTickets < 0:
			return nil, fmt.Errorf("recommendation %s: affected_tickets must not be negative", r.ID)
		}
		seen[r.ID] = true
	}

	return &Catalog{items: file.Recommendations}, nil
}

// Items returns a copy of the recommendations in catalog order.
func (c *Catalog) Items() []model.Recommendation {
	out := make([]model.Recommendation, len(c.items))
	copy(out, c.items)
	return out
}

// Count is the number of improvement opportunities.
func (c *Catalog) Count() int {
	return len(c.items)
}
