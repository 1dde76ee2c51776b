package badge

import (
	"context"
	"sort"

	"github.com/campus-connect/campus-core/internal/domain/shared"
	"github.com/campus-connect/campus-core/internal/domain/stats"
	"github.com/campus-connect/campus-core/internal/domain/user"
)

// Catalog is an immutable, metric-indexed view of all badges.
type Catalog struct {
	badges   []*Badge
	byID     map[string]*Badge
	byName   map[string]*Badge
	byMetric map[Metric][]*Badge
}

// NewCatalog validates badges and builds the indexes. Names must be unique.
func NewCatalog(badges []*Badge) (*Catalog, error) {
	c := &Catalog{
		badges:   make([]*Badge, 0, len(badges)),
		byID:     make(map[string]*Badge, len(badges)),
		byName:   make(map[string]*Badge, len(badges)),
		byMetric: make(map[Metric][]*Badge),
	}
	for _, b := range badges {
		if err := b.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byName[b.Name]; dup {
			return nil, shared.ValidationError("badge", "NewCatalog", "duplicate badge name %q", b.Name)
		}
		if b.ID == "" {
			b.ID = IDForName(b.Name)
		}
		c.badges = append(c.badges, b)
		c.byID[b.ID] = b
		c.byName[b.Name] = b
		c.byMetric[b.Criteria.Metric] = append(c.byMetric[b.Criteria.Metric], b)
	}
	sort.SliceStable(c.badges, func(i, j int) bool {
		return lessBadge(c.badges[i], c.badges[j])
	})
	for m := range c.byMetric {
		list := c.byMetric[m]
		sort.SliceStable(list, func(i, j int) bool { return lessBadge(list[i], list[j]) })
	}
	return c, nil
}

// lessBadge orders by target then name so lower tiers are awarded first.
func lessBadge(a, b *Badge) bool {
	if a.Criteria.Target != b.Criteria.Target {
		return a.Criteria.Target < b.Criteria.Target
	}
	return a.Name < b.Name
}

// All returns every badge.
func (c *Catalog) All() []*Badge {
	return append([]*Badge(nil), c.badges...)
}

// Len returns the number of badges.
func (c *Catalog) Len() int { return len(c.badges) }

// ByID returns the badge with id.
func (c *Catalog) ByID(id string) (*Badge, bool) {
	b, ok := c.byID[id]
	return b, ok
}

// ByName returns the badge called name.
func (c *Catalog) ByName(name string) (*Badge, bool) {
	b, ok := c.byName[name]
	return b, ok
}

// ForMetrics returns the badges depending on any of metrics, deduplicated,
// in catalog order. A nil slice means the whole catalog.
func (c *Catalog) ForMetrics(metrics []Metric) []*Badge {
	if metrics == nil {
		return c.All()
	}
	seen := make(map[string]struct{})
	var out []*Badge
	for _, m := range metrics {
		for _, b := range c.byMetric[m] {
			if _, ok := seen[b.ID]; ok {
				continue
			}
			seen[b.ID] = struct{}{}
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return lessBadge(out[i], out[j]) })
	return out
}

// Eligible returns the candidates not in earned whose criteria are met.
func Eligible(candidates []*Badge, earned map[string]struct{}, s *stats.UserStats, u *user.User) []*Badge {
	var out []*Badge
	for _, b := range candidates {
		if _, ok := earned[b.ID]; ok {
			continue
		}
		if b.Criteria.Met(b.Criteria.Metric.Value(s, u)) {
			out = append(out, b)
		}
	}
	return out
}

// Repository persists catalog entries.
type Repository interface {
	// Upsert inserts badges by name and leaves existing rows untouched.
	// Returns how many were inserted.
	Upsert(ctx context.Context, badges []*Badge) (int, error)

	// List returns every badge.
	List(ctx context.Context) ([]*Badge, error)
}
