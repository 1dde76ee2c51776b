package badge

import (
	"github.com/campus-connect/campus-core/internal/domain/shared"
	"github.com/campus-connect/campus-core/internal/domain/stats"
	"github.com/campus-connect/campus-core/internal/domain/user"
)

// Metric names a value a badge criterion is compared against. The set is
// closed: Value resolves every member with a single switch and ParseMetric
// rejects anything else, so a typo in the catalog fails at load time.
type Metric string

const (
	MetricMentorshipSessions Metric = "mentorshipSessions"
	MetricMentorRating       Metric = "mentorRating"
	MetricProjectsCreated    Metric = "projectsCreated"
	MetricProjectsCompleted  Metric = "projectsCompleted"
	MetricEventsAttended     Metric = "eventsAttended"
	MetricSkillEndorsements  Metric = "skillEndorsements"
	MetricContributionScore  Metric = "contributionScore"
	MetricProjectScore       Metric = "projectScore"
	MetricMentorshipScore    Metric = "mentorshipScore"
	MetricTeamsJoined        Metric = "teamsJoined"
	MetricTeamsLed           Metric = "teamsLed"
	MetricHackathonsWon      Metric = "hackathonsWon"
	MetricCompetitionsWon    Metric = "competitionsWon"
	MetricTotalPoints        Metric = "totalPoints"
	MetricLevel              Metric = "level"
	MetricCurrentStreak      Metric = "currentStreak"
	MetricLongestStreak      Metric = "longestStreak"
	MetricSkillsCount        Metric = "skillsCount"
)

// AllMetrics lists every metric.
var AllMetrics = []Metric{
	MetricMentorshipSessions,
	MetricMentorRating,
	MetricProjectsCreated,
	MetricProjectsCompleted,
	MetricEventsAttended,
	MetricSkillEndorsements,
	MetricContributionScore,
	MetricProjectScore,
	MetricMentorshipScore,
	MetricTeamsJoined,
	MetricTeamsLed,
	MetricHackathonsWon,
	MetricCompetitionsWon,
	MetricTotalPoints,
	MetricLevel,
	MetricCurrentStreak,
	MetricLongestStreak,
	MetricSkillsCount,
}

// ParseMetric validates s.
func ParseMetric(s string) (Metric, error) {
	m := Metric(s)
	if !m.IsValid() {
		return "", shared.ValidationError("badge", "ParseMetric", "unknown metric %q", s)
	}
	return m, nil
}

// IsValid reports whether m is a member of the set.
func (m Metric) IsValid() bool {
	_, ok := m.resolve(nil, nil)
	return ok
}

// UnmarshalText rejects unknown metrics during JSON decoding.
func (m *Metric) UnmarshalText(text []byte) error {
	parsed, err := ParseMetric(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Value returns the current value of m for the given stats and user. Nil
// stats or user read as zero.
func (m Metric) Value(s *stats.UserStats, u *user.User) float64 {
	v, _ := m.resolve(s, u)
	return v
}

func (m Metric) resolve(s *stats.UserStats, u *user.User) (float64, bool) {
	if s == nil {
		s = &stats.UserStats{}
	}
	switch m {
	case MetricMentorshipSessions:
		return float64(s.MentorshipSessions), true
	case MetricMentorRating:
		return u.Rating(), true
	case MetricProjectsCreated:
		return float64(s.ProjectsCreated), true
	case MetricProjectsCompleted:
		return float64(s.ProjectsCompleted), true
	case MetricEventsAttended:
		return float64(s.EventsAttended), true
	case MetricSkillEndorsements:
		return float64(s.SkillEndorsements), true
	case MetricContributionScore:
		return float64(s.ContributionScore), true
	case MetricProjectScore:
		return float64(s.ProjectScore), true
	case MetricMentorshipScore:
		return float64(s.MentorshipScore), true
	case MetricTeamsJoined:
		return float64(s.TeamsJoined), true
	case MetricTeamsLed:
		return float64(s.TeamsLed), true
	case MetricHackathonsWon:
		return float64(s.HackathonsWon), true
	case MetricCompetitionsWon:
		return float64(s.CompetitionsWon), true
	case MetricTotalPoints:
		return float64(s.TotalPoints), true
	case MetricLevel:
		return float64(s.Level), true
	case MetricCurrentStreak:
		return float64(s.Streaks.Current), true
	case MetricLongestStreak:
		return float64(s.Streaks.Longest), true
	case MetricSkillsCount:
		return float64(u.SkillsCount()), true
	}
	return 0, false
}

// counterMetric maps stat counters to the metric that reads them.
var counterMetric = map[stats.Counter]Metric{
	stats.CounterProjectsCreated:    MetricProjectsCreated,
	stats.CounterProjectsCompleted:  MetricProjectsCompleted,
	stats.CounterEventsAttended:     MetricEventsAttended,
	stats.CounterMentorshipSessions: MetricMentorshipSessions,
	stats.CounterSkillEndorsements:  MetricSkillEndorsements,
	stats.CounterContributionScore:  MetricContributionScore,
	stats.CounterProjectScore:       MetricProjectScore,
	stats.CounterMentorshipScore:    MetricMentorshipScore,
	stats.CounterTeamsJoined:        MetricTeamsJoined,
	stats.CounterTeamsLed:           MetricTeamsLed,
	stats.CounterHackathonsWon:      MetricHackathonsWon,
	stats.CounterCompetitionsWon:    MetricCompetitionsWon,
}

// PointMetrics change whenever an award credits points.
var PointMetrics = []Metric{MetricTotalPoints, MetricLevel}

// MetricsTouchedBy returns the metrics whose value may have changed after
// one activity of kind k. Streak metrics change on every activity; user
// profile metrics are included because they change outside this core and
// are only picked up on the next activity.
func MetricsTouchedBy(k stats.ActivityKind) []Metric {
	effect, ok := stats.EffectOf(k)
	if !ok {
		return nil
	}
	out := make([]Metric, 0, len(effect.Counters)+4)
	for _, c := range effect.Counters {
		if m, ok := counterMetric[c]; ok {
			out = append(out, m)
		}
	}
	return append(out, MetricCurrentStreak, MetricLongestStreak, MetricMentorRating, MetricSkillsCount)
}

// MetricsForCategory returns the metrics credited when a badge of category
// c is awarded, including the point metrics.
func MetricsForCategory(c Category) []Metric {
	out := append([]Metric(nil), PointMetrics...)
	if counter := stats.CategoryCounter(string(c)); counter != "" {
		out = append(out, counterMetric[counter])
	}
	return out
}
