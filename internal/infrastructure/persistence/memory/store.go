// Package memory provides process-local repositories. They back the
// "memory" storage driver and the application tests, and honour the same
// atomicity contracts as the Postgres implementations by serializing
// mutations under a mutex.
package memory

import (
	"time"

	"github.com/campus-connect/campus-core/pkg/timeutil"
)

// Store bundles one instance of every repository.
type Store struct {
	Stats         *StatsRepo
	Users         *UserRepo
	Badges        *BadgeRepo
	Achievements  *AchievementRepo
	Leaderboards  *LeaderboardRepo
	Notifications *NotificationRepo
	Mentorship    *MentorshipRepo
}

// NewStore creates empty repositories. clock stamps rows that are created
// implicitly; nil uses the system clock.
func NewStore(clock timeutil.Clock) *Store {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &Store{
		Stats:         NewStatsRepo(),
		Users:         NewUserRepo(clock),
		Badges:        NewBadgeRepo(),
		Achievements:  NewAchievementRepo(),
		Leaderboards:  NewLeaderboardRepo(),
		Notifications: NewNotificationRepo(),
		Mentorship:    NewMentorshipRepo(),
	}
}

func nowOr(clock timeutil.Clock, t time.Time) time.Time {
	if !t.IsZero() {
		return t
	}
	return clock.Now()
}
