package badge

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

type catalogFile struct {
	Badges []catalogEntry `yaml:"badges"`
}

type catalogEntry struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Icon        string `yaml:"icon"`
	Category    string `yaml:"category"`
	Rarity      string `yaml:"rarity"`
	Points      int    `yaml:"points"`
	Criteria    struct {
		Type   string  `yaml:"type"`
		Metric string  `yaml:"metric"`
		Target float64 `yaml:"target"`
	} `yaml:"criteria"`
}

// ParseCatalogYAML decodes and validates a catalog document.
func ParseCatalogYAML(data []byte) ([]*Badge, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse badge catalog: %w", err)
	}

	badges := make([]*Badge, 0, len(file.Badges))
	for i, e := range file.Badges {
		metric, err := ParseMetric(e.Criteria.Metric)
		if err != nil {
			return nil, fmt.Errorf("badge #%d %q: %w", i, e.Name, err)
		}
		b := &Badge{
			ID:          IDForName(e.Name),
			Name:        e.Name,
			Description: e.Description,
			Icon:        e.Icon,
			Category:    Category(e.Category),
			Rarity:      Rarity(e.Rarity),
			Points:      e.Points,
			Criteria: Criteria{
				Type:   CriteriaType(e.Criteria.Type),
				Target: e.Criteria.Target,
				Metric: metric,
			},
		}
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("badge #%d: %w", i, err)
		}
		badges = append(badges, b)
	}
	return badges, nil
}

// DefaultBadges returns the embedded catalog.
func DefaultBadges() []*Badge {
	badges, err := ParseCatalogYAML(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded badge catalog is invalid: %v", err))
	}
	return badges
}

// DefaultCatalog returns the embedded catalog indexed.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultBadges())
	if err != nil {
		panic(fmt.Sprintf("embedded badge catalog is invalid: %v", err))
	}
	return c
}
