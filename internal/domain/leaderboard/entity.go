// Package leaderboard contains the ranking model: board types, periods,
// scoring and the deterministic ordering used to build snapshots.
package leaderboard

import (
	"sort"
	"time"

	"github.com/campus-connect/campus-core/internal/domain/shared"
	"github.com/campus-connect/campus-core/internal/domain/stats"
	"github.com/campus-connect/campus-core/internal/domain/user"
	"github.com/campus-connect/campus-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// TYPES & PERIODS
// ══════════════════════════════════════════════════════════════════════════════

// Type selects the scoring formula.
type Type string

const (
	TypeProjects      Type = "projects"
	TypeContributions Type = "contributions"
	TypeMentorship    Type = "mentorship"
	TypeOverall       Type = "overall"
)

// AllTypes lists every board type.
var AllTypes = []Type{TypeProjects, TypeContributions, TypeMentorship, TypeOverall}

// ParseType validates s.
func ParseType(s string) (Type, error) {
	for _, t := range AllTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", shared.ValidationError("leaderboard", "ParseType", "unknown leaderboard type %q", s)
}

// Period selects which users are ranked.
type Period string

const (
	PeriodAllTime Period = "all-time"
	PeriodMonthly Period = "monthly"
	PeriodWeekly  Period = "weekly"
)

// AllPeriods lists every period.
var AllPeriods = []Period{PeriodAllTime, PeriodMonthly, PeriodWeekly}

// ParsePeriod validates s.
func ParsePeriod(s string) (Period, error) {
	for _, p := range AllPeriods {
		if string(p) == s {
			return p, nil
		}
	}
	return "", shared.ValidationError("leaderboard", "ParsePeriod", "unknown leaderboard period %q", s)
}

// Since returns the earliest last-activity a user needs to be ranked in p.
// All-time returns the zero time.
func (p Period) Since(now time.Time) time.Time {
	switch p {
	case PeriodMonthly:
		return timeutil.StartOfMonth(now)
	case PeriodWeekly:
		return now.UTC().Add(-7 * 24 * time.Hour)
	default:
		return time.Time{}
	}
}

// Key identifies one board.
type Key struct {
	Type   Type
	Period Period
}

// String returns "type:period".
func (k Key) String() string { return string(k.Type) + ":" + string(k.Period) }

// AllKeys returns every (type, period) pair.
func AllKeys() []Key {
	keys := make([]Key, 0, len(AllTypes)*len(AllPeriods))
	for _, t := range AllTypes {
		for _, p := range AllPeriods {
			keys = append(keys, Key{Type: t, Period: p})
		}
	}
	return keys
}

// ══════════════════════════════════════════════════════════════════════════════
// SCORING
// ══════════════════════════════════════════════════════════════════════════════

// Score computes the board score for one user.
//
//	projects      = projectsCreated + 2*projectsCompleted
//	contributions = contributionScore
//	mentorship    = mentorshipSessions * mentorRating
//	overall       = totalPoints
func Score(t Type, s *stats.UserStats, u *user.User) float64 {
	if s == nil {
		return 0
	}
	switch t {
	case TypeProjects:
		return float64(s.ProjectsCreated + 2*s.ProjectsCompleted)
	case TypeContributions:
		return float64(s.ContributionScore)
	case TypeMentorship:
		return float64(s.MentorshipSessions) * u.Rating()
	case TypeOverall:
		return float64(s.TotalPoints)
	}
	return 0
}

// ══════════════════════════════════════════════════════════════════════════════
// RANKING
// ══════════════════════════════════════════════════════════════════════════════

// Entry is one ranked user.
type Entry struct {
	UserID   string         `json:"user"`
	Score    float64        `json:"score"`
	Rank     int            `json:"rank"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Rank sorts entries by score descending then user id ascending, keeps the
// first max and assigns 1-based ranks. The input slice is reordered.
func Rank(entries []Entry, max int) []Entry {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].UserID < entries[j].UserID
	})
	if max > 0 && len(entries) > max {
		entries = entries[:max]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// Compute scores every stats row for t, drops zero scores and ranks the rest.
func Compute(t Type, rows []*stats.UserStats, users map[string]*user.User, max int) []Entry {
	entries := make([]Entry, 0, len(rows))
	for _, s := range rows {
		u := users[s.UserID]
		score := Score(t, s, u)
		if score <= 0 {
			continue
		}
		meta := map[string]any{
			"level":       s.Level,
			"totalPoints": s.TotalPoints,
		}
		if u != nil && u.Name != "" {
			meta["name"] = u.Name
		}
		entries = append(entries, Entry{UserID: s.UserID, Score: score, Metadata: meta})
	}
	return Rank(entries, max)
}
