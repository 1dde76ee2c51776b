// Package badge defines the badge catalog: definitions, criteria and the
// enumerated metrics criteria are evaluated against.
package badge

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/campus-connect/campus-core/internal/domain/shared"
)

// Category groups badges and decides which score column awards credit.
type Category string

const (
	CategoryMentorship    Category = "mentorship"
	CategoryProject       Category = "project"
	CategoryEvent         Category = "event"
	CategorySkill         Category = "skill"
	CategoryCollaboration Category = "collaboration"
	CategoryAchievement   Category = "achievement"
)

// IsValid reports whether c is a known category.
func (c Category) IsValid() bool {
	switch c {
	case CategoryMentorship, CategoryProject, CategoryEvent,
		CategorySkill, CategoryCollaboration, CategoryAchievement:
		return true
	}
	return false
}

// Rarity is cosmetic.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// IsValid reports whether r is a known rarity.
func (r Rarity) IsValid() bool {
	switch r {
	case RarityCommon, RarityRare, RarityEpic, RarityLegendary:
		return true
	}
	return false
}

// CriteriaType documents intent only; every type is evaluated as
// currentValue >= target.
type CriteriaType string

const (
	CriteriaCount      CriteriaType = "count"
	CriteriaRating     CriteriaType = "rating"
	CriteriaCompletion CriteriaType = "completion"
	CriteriaStreak     CriteriaType = "streak"
	CriteriaMilestone  CriteriaType = "milestone"
)

// IsValid reports whether t is a known criteria type.
func (t CriteriaType) IsValid() bool {
	switch t {
	case CriteriaCount, CriteriaRating, CriteriaCompletion, CriteriaStreak, CriteriaMilestone:
		return true
	}
	return false
}

// Criteria is the award condition.
type Criteria struct {
	Type   CriteriaType `json:"type" yaml:"type"`
	Target float64      `json:"target" yaml:"target"`
	Metric Metric       `json:"metric" yaml:"metric"`
}

// Met reports whether value satisfies the criteria.
func (c Criteria) Met(value float64) bool {
	return value >= c.Target
}

// Badge is an immutable catalog entry.
type Badge struct {
	ID          string   `json:"id" yaml:"-"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Icon        string   `json:"icon,omitempty" yaml:"icon"`
	Category    Category `json:"category" yaml:"category"`
	Criteria    Criteria `json:"criteria" yaml:"criteria"`
	Rarity      Rarity   `json:"rarity" yaml:"rarity"`
	Points      int      `json:"points" yaml:"points"`
}

// badgeNamespace derives stable badge ids from names so that reseeding
// never changes an id.
var badgeNamespace = uuid.MustParse("6f1c3c1e-3e47-4b52-9d0c-2a8a4b7c1d55")

// IDForName returns the deterministic id of the badge called name.
func IDForName(name string) string {
	return uuid.NewSHA1(badgeNamespace, []byte(strings.ToLower(strings.TrimSpace(name)))).String()
}

// Validate checks every field of a catalog entry.
func (b *Badge) Validate() error {
	switch {
	case strings.TrimSpace(b.Name) == "":
		return shared.ValidationError("badge", "Validate", "name is required")
	case !b.Category.IsValid():
		return shared.ValidationError("badge", "Validate", "badge %q: unknown category %q", b.Name, b.Category)
	case !b.Rarity.IsValid():
		return shared.ValidationError("badge", "Validate", "badge %q: unknown rarity %q", b.Name, b.Rarity)
	case !b.Criteria.Type.IsValid():
		return shared.ValidationError("badge", "Validate", "badge %q: unknown criteria type %q", b.Name, b.Criteria.Type)
	case !b.Criteria.Metric.IsValid():
		return shared.ValidationError("badge", "Validate", "badge %q: unknown metric %q", b.Name, b.Criteria.Metric)
	case b.Criteria.Target <= 0:
		return shared.ValidationError("badge", "Validate", "badge %q: target must be positive", b.Name)
	case b.Points < 0:
		return shared.ValidationError("badge", "Validate", "badge %q: points must not be negative", b.Name)
	}
	return nil
}

// String implements fmt.Stringer.
func (b *Badge) String() string {
	return fmt.Sprintf("%s (%s %s >= %g)", b.Name, b.Criteria.Type, b.Criteria.Metric, b.Criteria.Target)
}

// ErrAlreadyEarned is the conflict outcome of awarding a badge twice.
var ErrAlreadyEarned = shared.NewDomainError("badge", "Award", shared.ErrConflict, "badge already earned")
