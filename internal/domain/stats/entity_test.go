package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int, hour int) time.Time {
	return time.Date(2026, time.March, d, hour, 0, 0, 0, time.UTC)
}

func TestNextStreak(t *testing.T) {
	tests := []struct {
		name        string
		prev        Streaks
		at          time.Time
		wantCurrent int
		wantLongest int
	}{
		{
			name:        "first activity starts at one",
			prev:        Streaks{},
			at:          day(1, 9),
			wantCurrent: 1,
			wantLongest: 1,
		},
		{
			name:        "same day unchanged",
			prev:        Streaks{Current: 3, Longest: 5, LastActivity: day(10, 8)},
			at:          day(10, 23),
			wantCurrent: 3,
			wantLongest: 5,
		},
		{
			name:        "next day increments",
			prev:        Streaks{Current: 3, Longest: 3, LastActivity: day(10, 23)},
			at:          day(11, 0),
			wantCurrent: 4,
			wantLongest: 4,
		},
		{
			name:        "two day gap resets",
			prev:        Streaks{Current: 7, Longest: 7, LastActivity: day(10, 12)},
			at:          day(12, 12),
			wantCurrent: 1,
			wantLongest: 7,
		},
		{
			name:        "older timestamp leaves streak alone",
			prev:        Streaks{Current: 2, Longest: 2, LastActivity: day(10, 12)},
			at:          day(9, 12),
			wantCurrent: 2,
			wantLongest: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextStreak(tt.prev, tt.at)
			assert.Equal(t, tt.wantCurrent, got.Current)
			assert.Equal(t, tt.wantLongest, got.Longest)
			assert.False(t, got.LastActivity.Before(tt.prev.LastActivity))
		})
	}
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, 1, LevelFor(0))
	assert.Equal(t, 1, LevelFor(99))
	assert.Equal(t, 2, LevelFor(100))
	assert.Equal(t, 4, LevelFor(350))
	assert.Equal(t, 1, LevelFor(-10))
}

func TestApply_CountsEveryKindExactlyN(t *testing.T) {
	const n = 7
	for _, kind := range AllActivityKinds {
		t.Run(kind.String(), func(t *testing.T) {
			s := NewUserStats("u1", day(1, 0))
			for i := 0; i < n; i++ {
				require.True(t, s.Apply(kind, day(1, i)))
			}
			effect, ok := EffectOf(kind)
			require.True(t, ok)
			for _, c := range effect.Counters {
				assert.Equal(t, n, s.CounterValue(c), "counter %s", c)
			}
			assert.Len(t, s.MonthlyStats, 1)
		})
	}
}

func TestApply_UnknownKindIsNoop(t *testing.T) {
	s := NewUserStats("u1", day(1, 0))
	before := s.Clone()

	assert.False(t, s.Apply(ActivityKind("poem_written"), day(2, 0)))
	assert.Equal(t, before, s)
}

func TestApply_OneBucketPerMonth(t *testing.T) {
	s := NewUserStats("u1", day(1, 0))
	s.Apply(ActivityProjectCreated, day(1, 0))
	s.Apply(ActivityEventAttended, day(20, 0))
	s.Apply(ActivityMentorshipSession, time.Date(2026, time.April, 2, 0, 0, 0, 0, time.UTC))
	s.Apply(ActivityMentorshipSession, time.Date(2026, time.February, 2, 0, 0, 0, 0, time.UTC))

	require.Len(t, s.MonthlyStats, 3)
	assert.Equal(t, "2026-02", s.MonthlyStats[0].Month)
	assert.Equal(t, "2026-03", s.MonthlyStats[1].Month)
	assert.Equal(t, "2026-04", s.MonthlyStats[2].Month)
	assert.Equal(t, 1, s.Month("2026-03").Projects)
	assert.Equal(t, 1, s.Month("2026-03").Events)
}

func TestCredit(t *testing.T) {
	s := NewUserStats("u1", day(1, 0))
	s.Credit(50, CounterMentorshipScore, day(1, 0))
	s.Credit(75, CategoryCounter("project"), day(1, 0))
	s.Credit(10, CategoryCounter("achievement"), day(1, 0))

	assert.Equal(t, 135, s.TotalPoints)
	assert.Equal(t, 50, s.MentorshipScore)
	assert.Equal(t, 75, s.ProjectScore)
	assert.Equal(t, 2, s.Level)
	assert.Equal(t, 135, s.Month("2026-03").Points)
}

func TestParseActivityKind(t *testing.T) {
	k, err := ParseActivityKind("team_led")
	require.NoError(t, err)
	assert.Equal(t, ActivityTeamLed, k)

	_, err = ParseActivityKind("nap_taken")
	assert.ErrorIs(t, err, ErrUnknownActivity)
}
