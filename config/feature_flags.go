package config

import (
	"hash/fnv"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// FeatureFlags manages gamification toggles with optional percentage
// rollout keyed by user id.
type FeatureFlags struct {
	mu       sync.RWMutex
	features map[string]*Feature
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// RolloutPercent (0-100); users are bucketed by a hash of their id.
	RolloutPercent int
}

// Predefined feature flag names.
const (
	// FeatureBadges runs badge evaluation after each tracked activity.
	FeatureBadges = "gamification.badges"

	// FeatureBadgeMetricIndex evaluates only badges whose metric the
	// activity touched instead of the whole catalog.
	FeatureBadgeMetricIndex = "gamification.badge_metric_index"

	// FeatureAwardRefresh requests a leaderboard rebuild after an award.
	FeatureAwardRefresh = "leaderboard.award_refresh"

	// FeatureScheduledRebuild enables the worker's periodic rebuild job.
	FeatureScheduledRebuild = "leaderboard.scheduled_rebuild"

	// FeatureNotifyAchievement writes achievement notifications.
	FeatureNotifyAchievement = "notify.achievement"

	// FeatureNotifySession writes session booking notifications.
	FeatureNotifySession = "notify.session"

	// FeatureNotifyLeaderboard notifies users entering the top of a board.
	FeatureNotifyLeaderboard = "notify.leaderboard"
)

var defaultFeatures = []Feature{
	{Name: FeatureBadges, Description: "Award badges on activity", Enabled: true, RolloutPercent: 100},
	{Name: FeatureBadgeMetricIndex, Description: "Evaluate only badges touched by the activity", Enabled: true, RolloutPercent: 100},
	{Name: FeatureAwardRefresh, Description: "Rebuild leaderboards after awards", Enabled: true, RolloutPercent: 100},
	{Name: FeatureScheduledRebuild, Description: "Periodic leaderboard rebuild", Enabled: true, RolloutPercent: 100},
	{Name: FeatureNotifyAchievement, Description: "Achievement notifications", Enabled: true, RolloutPercent: 100},
	{Name: FeatureNotifySession, Description: "Session booking notifications", Enabled: true, RolloutPercent: 100},
	{Name: FeatureNotifyLeaderboard, Description: "Top-of-board notifications", Enabled: true, RolloutPercent: 100},
}

// featureNameToEnvKey maps "leaderboard.award_refresh" to
// FEATURE_LEADERBOARD_AWARD_REFRESH.
func featureNameToEnvKey(name string) string {
	return "FEATURE_" + strings.ToUpper(strings.NewReplacer(".", "_").Replace(name))
}

func setFeatureDefaults(v *viper.Viper) {
	for _, f := range defaultFeatures {
		v.SetDefault(featureNameToEnvKey(f.Name), f.Enabled)
		v.SetDefault(featureNameToEnvKey(f.Name)+"_ROLLOUT", f.RolloutPercent)
	}
}

// LoadFeatureFlags builds flags from viper; a nil viper yields defaults.
func LoadFeatureFlags(v *viper.Viper) *FeatureFlags {
	ff := &FeatureFlags{features: make(map[string]*Feature, len(defaultFeatures))}
	for _, d := range defaultFeatures {
		f := d
		if v != nil {
			key := featureNameToEnvKey(f.Name)
			f.Enabled = v.GetBool(key)
			f.RolloutPercent = clampPercent(v.GetInt(key + "_ROLLOUT"))
		}
		ff.features[f.Name] = &f
	}
	return ff
}

// DefaultFeatureFlags returns every default flag enabled.
func DefaultFeatureFlags() *FeatureFlags {
	return LoadFeatureFlags(nil)
}

// IsEnabled reports whether a feature is on globally.
func (ff *FeatureFlags) IsEnabled(name string) bool {
	return ff.IsEnabledFor(name, "")
}

// IsEnabledFor reports whether a feature is on for userID. An empty userID
// only checks the global switch and a non-zero rollout.
func (ff *FeatureFlags) IsEnabledFor(name, userID string) bool {
	if ff == nil {
		return true
	}
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	f, ok := ff.features[name]
	if !ok || !f.Enabled {
		return false
	}
	if f.RolloutPercent >= 100 {
		return true
	}
	if userID == "" {
		return f.RolloutPercent > 0
	}
	return inRollout(name, userID, f.RolloutPercent)
}

// SetEnabled toggles a feature at runtime.
func (ff *FeatureFlags) SetEnabled(name string, enabled bool) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	f, ok := ff.features[name]
	if !ok {
		return &FeatureFlagError{Feature: name, Message: "unknown feature"}
	}
	f.Enabled = enabled
	return nil
}

// SetRolloutPercent updates the rollout for a feature.
func (ff *FeatureFlags) SetRolloutPercent(name string, percent int) error {
	if percent < 0 || percent > 100 {
		return &FeatureFlagError{Feature: name, Message: "rollout percent must be 0-100"}
	}
	ff.mu.Lock()
	defer ff.mu.Unlock()

	f, ok := ff.features[name]
	if !ok {
		return &FeatureFlagError{Feature: name, Message: "unknown feature"}
	}
	f.RolloutPercent = percent
	return nil
}

// Names returns all feature names sorted.
func (ff *FeatureFlags) Names() []string {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	names := make([]string, 0, len(ff.features))
	for n := range ff.features {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func inRollout(feature, userID string, percent int) bool {
	h := fnv.New32a()
	h.Write([]byte(feature))
	h.Write([]byte(userID))
	return int(h.Sum32()%100) < percent
}

func clampPercent(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}

// FeatureFlagError is returned for invalid flag operations.
type FeatureFlagError struct {
	Feature string
	Message string
}

func (e *FeatureFlagError) Error() string {
	return "feature flag " + e.Feature + ": " + e.Message
}
