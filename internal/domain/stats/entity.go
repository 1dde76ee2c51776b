// Package stats contains the per-user counters that drive badges and
// leaderboards. UserStats is created lazily on the first activity, mutated
// only through Repository.ApplyActivity and Repository.CreditPoints, and never
// deleted.
package stats

import (
	"sort"
	"time"

	"github.com/campus-connect/campus-core/internal/domain/shared"
	"github.com/campus-connect/campus-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVITY KINDS
// ══════════════════════════════════════════════════════════════════════════════

// ActivityKind is the fixed set of trackable activities.
type ActivityKind string

const (
	ActivityProjectCreated    ActivityKind = "project_created"
	ActivityProjectCompleted  ActivityKind = "project_completed"
	ActivityEventAttended     ActivityKind = "event_attended"
	ActivityMentorshipSession ActivityKind = "mentorship_session"
	ActivitySkillEndorsed     ActivityKind = "skill_endorsed"
	ActivityTeamJoined        ActivityKind = "team_joined"
	ActivityTeamLed           ActivityKind = "team_led"
	ActivityHackathonWon      ActivityKind = "hackathon_won"
	ActivityCompetitionWon    ActivityKind = "competition_won"
)

// AllActivityKinds lists every known kind in declaration order.
var AllActivityKinds = []ActivityKind{
	ActivityProjectCreated,
	ActivityProjectCompleted,
	ActivityEventAttended,
	ActivityMentorshipSession,
	ActivitySkillEndorsed,
	ActivityTeamJoined,
	ActivityTeamLed,
	ActivityHackathonWon,
	ActivityCompetitionWon,
}

// ErrUnknownActivity is returned by ParseActivityKind.
var ErrUnknownActivity = shared.NewDomainError("stats", "ParseActivityKind", shared.ErrValidation, "unknown activity kind")

// ParseActivityKind validates s.
func ParseActivityKind(s string) (ActivityKind, error) {
	k := ActivityKind(s)
	if k.IsValid() {
		return k, nil
	}
	return "", ErrUnknownActivity
}

// IsValid reports whether k is one of the known kinds.
func (k ActivityKind) IsValid() bool {
	_, ok := activityEffects[k]
	return ok
}

// String returns the wire name.
func (k ActivityKind) String() string { return string(k) }

// Counter names a UserStats integer column.
type Counter string

const (
	CounterProjectsCreated    Counter = "projects_created"
	CounterProjectsCompleted  Counter = "projects_completed"
	CounterEventsAttended     Counter = "events_attended"
	CounterMentorshipSessions Counter = "mentorship_sessions"
	CounterSkillEndorsements  Counter = "skill_endorsements"
	CounterContributionScore  Counter = "contribution_score"
	CounterProjectScore       Counter = "project_score"
	CounterMentorshipScore    Counter = "mentorship_score"
	CounterTeamsJoined        Counter = "teams_joined"
	CounterTeamsLed           Counter = "teams_led"
	CounterHackathonsWon      Counter = "hackathons_won"
	CounterCompetitionsWon    Counter = "competitions_won"
)

// MonthlyField names a monthly bucket column.
type MonthlyField string

const (
	MonthlyNone        MonthlyField = ""
	MonthlyProjects    MonthlyField = "projects"
	MonthlyEvents      MonthlyField = "events"
	MonthlyMentorships MonthlyField = "mentorships"
)

// Effect describes what one activity does to UserStats. Every counter is
// incremented by exactly one.
type Effect struct {
	Counters []Counter
	Monthly  MonthlyField
}

var activityEffects = map[ActivityKind]Effect{
	ActivityProjectCreated:    {Counters: []Counter{CounterProjectsCreated}, Monthly: MonthlyProjects},
	ActivityProjectCompleted:  {Counters: []Counter{CounterProjectsCompleted}, Monthly: MonthlyProjects},
	ActivityEventAttended:     {Counters: []Counter{CounterEventsAttended}, Monthly: MonthlyEvents},
	ActivityMentorshipSession: {Counters: []Counter{CounterMentorshipSessions}, Monthly: MonthlyMentorships},
	ActivitySkillEndorsed:     {Counters: []Counter{CounterSkillEndorsements}},
	ActivityTeamJoined:        {Counters: []Counter{CounterTeamsJoined, CounterContributionScore}},
	ActivityTeamLed:           {Counters: []Counter{CounterTeamsLed, CounterContributionScore}},
	ActivityHackathonWon:      {Counters: []Counter{CounterHackathonsWon, CounterProjectScore}},
	ActivityCompetitionWon:    {Counters: []Counter{CounterCompetitionsWon, CounterProjectScore}},
}

// EffectOf returns the effect of k; ok is false for unknown kinds.
func EffectOf(k ActivityKind) (Effect, bool) {
	e, ok := activityEffects[k]
	return e, ok
}

// ══════════════════════════════════════════════════════════════════════════════
// USER STATS
// ══════════════════════════════════════════════════════════════════════════════

// Streaks tracks consecutive active days.
type Streaks struct {
	Current      int       `json:"current"`
	Longest      int       `json:"longest"`
	LastActivity time.Time `json:"lastActivity"`
}

// MonthlyStat is one calendar-month bucket.
type MonthlyStat struct {
	Month       string `json:"month"` // YYYY-MM
	Points      int    `json:"points"`
	Projects    int    `json:"projects"`
	Events      int    `json:"events"`
	Mentorships int    `json:"mentorships"`
}

// UserStats holds all counters for one user.
type UserStats struct {
	UserID string `json:"userId"`

	ProjectsCreated    int `json:"projectsCreated"`
	ProjectsCompleted  int `json:"projectsCompleted"`
	EventsAttended     int `json:"eventsAttended"`
	MentorshipSessions int `json:"mentorshipSessions"`
	SkillEndorsements  int `json:"skillEndorsements"`
	ContributionScore  int `json:"contributionScore"`
	ProjectScore       int `json:"projectScore"`
	MentorshipScore    int `json:"mentorshipScore"`
	TeamsJoined        int `json:"teamsJoined"`
	TeamsLed           int `json:"teamsLed"`
	HackathonsWon      int `json:"hackathonsWon"`
	CompetitionsWon    int `json:"competitionsWon"`

	TotalPoints int `json:"totalPoints"`
	Level       int `json:"level"`

	Streaks      Streaks       `json:"streaks"`
	MonthlyStats []MonthlyStat `json:"monthlyStats"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewUserStats returns zeroed stats at level 1.
func NewUserStats(userID string, now time.Time) *UserStats {
	return &UserStats{
		UserID:    userID,
		Level:     1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// LevelFor returns floor(totalPoints/100)+1.
func LevelFor(totalPoints int) int {
	if totalPoints < 0 {
		return 1
	}
	return totalPoints/100 + 1
}

// CounterValue reads the named counter.
func (s *UserStats) CounterValue(c Counter) int {
	if p := s.counterPtr(c); p != nil {
		return *p
	}
	return 0
}

func (s *UserStats) counterPtr(c Counter) *int {
	switch c {
	case CounterProjectsCreated:
		return &s.ProjectsCreated
	case CounterProjectsCompleted:
		return &s.ProjectsCompleted
	case CounterEventsAttended:
		return &s.EventsAttended
	case CounterMentorshipSessions:
		return &s.MentorshipSessions
	case CounterSkillEndorsements:
		return &s.SkillEndorsements
	case CounterContributionScore:
		return &s.ContributionScore
	case CounterProjectScore:
		return &s.ProjectScore
	case CounterMentorshipScore:
		return &s.MentorshipScore
	case CounterTeamsJoined:
		return &s.TeamsJoined
	case CounterTeamsLed:
		return &s.TeamsLed
	case CounterHackathonsWon:
		return &s.HackathonsWon
	case CounterCompetitionsWon:
		return &s.CompetitionsWon
	}
	return nil
}

// Apply mutates s in memory for one activity at time at. Storage backends
// that cannot express the update as atomic SQL operators use it under a lock.
func (s *UserStats) Apply(k ActivityKind, at time.Time) bool {
	effect, ok := activityEffects[k]
	if !ok {
		return false
	}
	for _, c := range effect.Counters {
		if p := s.counterPtr(c); p != nil {
			*p++
		}
	}
	bucket := s.monthBucket(timeutil.MonthKey(at))
	switch effect.Monthly {
	case MonthlyProjects:
		bucket.Projects++
	case MonthlyEvents:
		bucket.Events++
	case MonthlyMentorships:
		bucket.Mentorships++
	}
	s.Streaks = NextStreak(s.Streaks, at)
	s.Level = LevelFor(s.TotalPoints)
	s.UpdatedAt = at
	return true
}

// Credit adds badge points to the total, the category score and the
// month bucket, then recomputes the level.
func (s *UserStats) Credit(points int, category Counter, at time.Time) {
	s.TotalPoints += points
	if p := s.counterPtr(category); p != nil {
		*p += points
	}
	s.monthBucket(timeutil.MonthKey(at)).Points += points
	s.Level = LevelFor(s.TotalPoints)
	s.UpdatedAt = at
}

// monthBucket returns the bucket for month, creating it in sorted position.
func (s *UserStats) monthBucket(month string) *MonthlyStat {
	for i := range s.MonthlyStats {
		if s.MonthlyStats[i].Month == month {
			return &s.MonthlyStats[i]
		}
	}
	s.MonthlyStats = append(s.MonthlyStats, MonthlyStat{Month: month})
	sort.Slice(s.MonthlyStats, func(i, j int) bool {
		return s.MonthlyStats[i].Month < s.MonthlyStats[j].Month
	})
	for i := range s.MonthlyStats {
		if s.MonthlyStats[i].Month == month {
			return &s.MonthlyStats[i]
		}
	}
	return nil
}

// Month returns the bucket for month, or a zero bucket.
func (s *UserStats) Month(month string) MonthlyStat {
	for _, m := range s.MonthlyStats {
		if m.Month == month {
			return m
		}
	}
	return MonthlyStat{Month: month}
}

// Clone returns a deep copy.
func (s *UserStats) Clone() *UserStats {
	if s == nil {
		return nil
	}
	c := *s
	c.MonthlyStats = append([]MonthlyStat(nil), s.MonthlyStats...)
	return &c
}

// ══════════════════════════════════════════════════════════════════════════════
// STREAKS
// ══════════════════════════════════════════════════════════════════════════════

// NextStreak applies one activity at time at.
// Same UTC day: unchanged. Next day: +1. Any larger gap: reset to 1.
func NextStreak(s Streaks, at time.Time) Streaks {
	if s.LastActivity.IsZero() || s.Current == 0 {
		s.Current = 1
	} else {
		switch days := timeutil.DaysBetween(s.LastActivity, at); {
		case days <= 0:
			// same day, or an out-of-order timestamp
		case days == 1:
			s.Current++
		default:
			s.Current = 1
		}
	}
	if s.Current > s.Longest {
		s.Longest = s.Current
	}
	if at.After(s.LastActivity) {
		s.LastActivity = at
	}
	return s
}

// CategoryCounter maps a badge category to the score column it credits.
// Categories without a score column return "".
func CategoryCounter(category string) Counter {
	switch category {
	case "project":
		return CounterProjectScore
	case "mentorship":
		return CounterMentorshipScore
	case "collaboration":
		return CounterContributionScore
	default:
		return ""
	}
}
