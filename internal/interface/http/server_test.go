package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-connect/campus-core/internal/app"
	"github.com/campus-connect/campus-core/internal/domain/shared"
	"github.com/campus-connect/campus-core/internal/domain/user"
	"github.com/campus-connect/campus-core/internal/infrastructure/persistence/memory"
	"github.com/campus-connect/campus-core/internal/interface/http/handlers"
	"github.com/campus-connect/campus-core/pkg/timeutil"
)

// now is a Monday; nextMonday is the day sessions are booked on.
var (
	now        = time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)
	nextMonday = time.Date(2026, time.October, 26, 9, 0, 0, 0, time.UTC)
)

type testEnv struct {
	server *Server
	store  *memory.Store
	health *handlers.HealthChecker
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	clock := timeutil.FixedClock{T: now}
	store := memory.NewStore(clock)
	core := app.NewCore(app.MemoryRepositories(store), app.Options{Clock: clock})
	health := handlers.NewHealthChecker("test")

	cfg.Mode = gin.TestMode
	srv := NewServer(cfg, Dependencies{
		TrackActivity:     core.Track,
		RebuildBoards:     core.Rebuild,
		SetAvailability:   core.SetAvailability,
		ScheduleSession:   core.ScheduleSession,
		UpdateSession:     core.UpdateSession,
		RescheduleSession: core.RescheduleSession,
		Leaderboard:       core.Leaderboard,
		UserRank:          core.UserRank,
		AvailableSlots:    core.AvailableSlots,
		UserReads:         core.UserReads,
		Health:            health,
	})

	for _, u := range []struct{ id, role string }{{"mentor-1", "mentor"}, {"student-1", "student"}, {"student-2", "student"}} {
		require.NoError(t, store.Users.Upsert(context.Background(), &user.User{ID: u.id, Name: u.id, Role: u.role, CreatedAt: now}))
	}
	return &testEnv{server: srv, store: store, health: health}
}

type response struct {
	Success bool               `json:"success"`
	Data    json.RawMessage    `json:"data"`
	Error   *handlers.ErrorBody `json:"error"`
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)

	var out response
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
	}
	return rec, out
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

// ══════════════════════════════════════════════════════════════════════════════
// PROBES & MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

func TestProbes(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())

	rec, _ := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	env.health.AddCheck("redis", func(context.Context) error { return errors.New("down") }, false)
	rec, _ = env.do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	status := decode[handlers.HealthStatus](t, rec.Body.Bytes())
	assert.True(t, status.Ready)
	assert.True(t, status.Degraded)

	env.health.AddCheck("postgres", func(context.Context) error { return errors.New("down") }, true)
	rec, _ = env.do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequestIDIsEchoed(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(handlers.HeaderRequestID, "req-42")
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Header().Get(handlers.HeaderRequestID))

	rec, _ = env.do(t, http.MethodGet, "/health", nil)
	assert.NotEmpty(t, rec.Header().Get(handlers.HeaderRequestID))
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	rec, body := env.do(t, http.MethodGet, "/api/v1/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, "route_not_found", body.Error.Code)
}

func TestRateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimitRPS = 0.001
	cfg.RateLimitBurst = 1
	env := newTestEnv(t, cfg)

	rec, _ := env.do(t, http.MethodGet, "/api/v1/badges", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, body := env.do(t, http.MethodGet, "/api/v1/badges", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	require.NotNil(t, body.Error)
	assert.Equal(t, "rate_limited", body.Error.Code)
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{shared.NewDomainError("user", "Get", shared.ErrNotFound, "missing"), http.StatusNotFound, "not_found"},
		{shared.NewDomainError("mentorship", "Book", shared.ErrConflict, "taken"), http.StatusConflict, "conflict"},
		{shared.ValidationError("stats", "Track", "bad"), http.StatusBadRequest, "validation_failed"},
		{shared.StorageError("stats", "Get", errors.New("conn reset")), http.StatusInternalServerError, "internal_error"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			status, code := errorStatus(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVITIES & BADGES
// ══════════════════════════════════════════════════════════════════════════════

func TestTrackActivity(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())

	rec, body := env.do(t, http.MethodPost, "/api/v1/users/mentor-1/activities", map[string]any{"kind": "mentorship_session"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, body.Success)

	res := decode[struct {
		Tracked      bool `json:"tracked"`
		UpdatedStats struct {
			TotalPoints int `json:"totalPoints"`
		} `json:"updatedStats"`
		NewlyAwardedBadges []struct {
			Name string `json:"name"`
		} `json:"newlyAwardedBadges"`
	}](t, body.Data)
	assert.True(t, res.Tracked)
	assert.Equal(t, 50, res.UpdatedStats.TotalPoints)
	require.Len(t, res.NewlyAwardedBadges, 1)
	assert.Equal(t, "First Mentor", res.NewlyAwardedBadges[0].Name)

	rec, body = env.do(t, http.MethodGet, "/api/v1/users/mentor-1/achievements", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]json.RawMessage](t, body.Data), 1)

	rec, body = env.do(t, http.MethodGet, "/api/v1/users/mentor-1/notifications?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]json.RawMessage](t, body.Data), 1)
}

func TestTrackActivity_Errors(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())

	rec, body := env.do(t, http.MethodPost, "/api/v1/users/ghost/activities", map[string]any{"kind": "project_created"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, "not_found", body.Error.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/student-1/activities", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_body")

	rec, _ = env.do(t, http.MethodGet, "/api/v1/users/student-1/notifications?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListBadges(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	rec, body := env.do(t, http.MethodGet, "/api/v1/badges", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode[[]json.RawMessage](t, body.Data))
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARDS
// ══════════════════════════════════════════════════════════════════════════════

type boardView struct {
	Rankings []struct {
		User  string  `json:"user"`
		Score float64 `json:"score"`
		Rank  int     `json:"rank"`
	} `json:"rankings"`
}

func TestLeaderboard_NeverBuiltIsEmpty(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	rec, body := env.do(t, http.MethodGet, "/api/v1/leaderboards/overall/weekly", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[boardView](t, body.Data).Rankings)
}

func TestLeaderboard_RebuildAndRead(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())

	for _, id := range []string{"student-2", "student-1"} {
		rec, _ := env.do(t, http.MethodPost, "/api/v1/users/"+id+"/activities", map[string]any{"kind": "project_created"})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec, _ := env.do(t, http.MethodPost, "/api/v1/admin/leaderboards/projects/all-time/rebuild", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := env.do(t, http.MethodGet, "/api/v1/leaderboards/projects/all-time?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[boardView](t, body.Data)
	require.Len(t, view.Rankings, 1)
	assert.Equal(t, "student-1", view.Rankings[0].User, "ties break by user id")
	assert.Equal(t, float64(1), view.Rankings[0].Score)

	rec, body = env.do(t, http.MethodGet, "/api/v1/leaderboards/projects/all-time/users/student-2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rank := decode[userRankResponse](t, body.Data)
	assert.True(t, rank.Ranked)
	assert.Equal(t, 2, rank.Rank)

	rec, body = env.do(t, http.MethodGet, "/api/v1/leaderboards/projects/all-time/users/mentor-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[userRankResponse](t, body.Data).Ranked)

	rec, _ = env.do(t, http.MethodPost, "/api/v1/admin/leaderboards/rebuild", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestLeaderboard_InvalidBoard(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	rec, body := env.do(t, http.MethodGet, "/api/v1/leaderboards/karma/all-time", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, "validation_failed", body.Error.Code)
}

// ══════════════════════════════════════════════════════════════════════════════
// MENTORSHIP
// ══════════════════════════════════════════════════════════════════════════════

func TestMentorship_BookingFlow(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())

	rec, _ := env.do(t, http.MethodPut, "/api/v1/mentors/mentor-1/availability", map[string]any{
		"weeklySchedule": []map[string]any{{
			"day": "monday",
			"timeSlots": []map[string]any{
				{"startTime": "09:00", "endTime": "10:00", "isAvailable": true},
				{"startTime": "10:00", "endTime": "11:00", "isAvailable": true},
			},
		}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, body := env.do(t, http.MethodGet, "/api/v1/mentors/mentor-1/slots?date=2026-10-26", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]json.RawMessage](t, body.Data), 2)

	booking := map[string]any{"mentorId": "mentor-1", "menteeId": "student-1", "scheduledDate": nextMonday, "topic": "Go"}
	rec, body = env.do(t, http.MethodPost, "/api/v1/sessions", booking)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	session := decode[struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}](t, body.Data)
	assert.Equal(t, "scheduled", session.Status)

	booking["menteeId"] = "student-2"
	rec, body = env.do(t, http.MethodPost, "/api/v1/sessions", booking)
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, "conflict", body.Error.Code)

	rec, body = env.do(t, http.MethodGet, "/api/v1/mentors/mentor-1/slots?date=2026-10-26", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]json.RawMessage](t, body.Data), 1)

	rec, _ = env.do(t, http.MethodPost, "/api/v1/sessions/"+session.ID+"/status", map[string]any{"status": "completed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, body = env.do(t, http.MethodGet, "/api/v1/users/mentor-1/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[struct {
		MentorshipSessions int `json:"mentorshipSessions"`
	}](t, body.Data).MentorshipSessions)
}

func TestMentorship_PastDateRejected(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	rec, _ := env.do(t, http.MethodPost, "/api/v1/sessions", map[string]any{
		"mentorId": "mentor-1", "menteeId": "student-1", "scheduledDate": now.Add(-48 * time.Hour),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
