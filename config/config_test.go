package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViper_Defaults(t *testing.T) {
	cfg, err := FromViper(NewViper())
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.App.StorageDriver)
	assert.Equal(t, 100, cfg.Leaderboard.MaxEntries)
	assert.Equal(t, 10, cfg.Leaderboard.DefaultLimit)
	assert.Equal(t, 5*time.Minute, cfg.Cache.StatsTTL)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTPAddr())
	assert.True(t, cfg.Features.IsEnabled(FeatureBadges))
}

func TestFromViper_Overrides(t *testing.T) {
	v := NewViper()
	v.Set("STORAGE_DRIVER", "memory")
	v.Set("LEADERBOARD_DEFAULT_LIMIT", 25)
	v.Set("FEATURE_LEADERBOARD_AWARD_REFRESH", false)

	cfg, err := FromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.App.StorageDriver)
	assert.Equal(t, 25, cfg.Leaderboard.DefaultLimit)
	assert.False(t, cfg.Features.IsEnabled(FeatureAwardRefresh))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(v map[string]any)
		wantErr string
	}{
		{
			name:    "unknown storage driver",
			mutate:  func(m map[string]any) { m["STORAGE_DRIVER"] = "mongo" },
			wantErr: "STORAGE_DRIVER",
		},
		{
			name: "memory in production",
			mutate: func(m map[string]any) {
				m["STORAGE_DRIVER"] = "memory"
				m["APP_ENV"] = "production"
			},
			wantErr: "not allowed in production",
		},
		{
			name:    "limit above max entries",
			mutate:  func(m map[string]any) { m["LEADERBOARD_DEFAULT_LIMIT"] = 500 },
			wantErr: "LEADERBOARD_DEFAULT_LIMIT",
		},
		{
			name:    "zero cache size",
			mutate:  func(m map[string]any) { m["CACHE_STATS_SIZE"] = 0 },
			wantErr: "CACHE_STATS_SIZE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			overrides := map[string]any{}
			tt.mutate(overrides)

			v := NewViper()
			for k, val := range overrides {
				v.Set(k, val)
			}
			_, err := FromViper(v)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFeatureFlags_Rollout(t *testing.T) {
	ff := DefaultFeatureFlags()
	require.NoError(t, ff.SetRolloutPercent(FeatureBadgeMetricIndex, 0))
	assert.False(t, ff.IsEnabledFor(FeatureBadgeMetricIndex, "user-1"))

	require.NoError(t, ff.SetRolloutPercent(FeatureBadgeMetricIndex, 100))
	assert.True(t, ff.IsEnabledFor(FeatureBadgeMetricIndex, "user-1"))

	require.NoError(t, ff.SetRolloutPercent(FeatureBadgeMetricIndex, 50))
	first := ff.IsEnabledFor(FeatureBadgeMetricIndex, "user-42")
	assert.Equal(t, first, ff.IsEnabledFor(FeatureBadgeMetricIndex, "user-42"))

	assert.Error(t, ff.SetEnabled("nope", true))
	assert.Error(t, ff.SetRolloutPercent(FeatureBadges, 101))
}
