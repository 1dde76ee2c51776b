package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campus-connect/campus-core/internal/application/command"
	"github.com/campus-connect/campus-core/internal/application/query"
	"github.com/campus-connect/campus-core/internal/domain/badge"
	"github.com/campus-connect/campus-core/internal/domain/leaderboard"
	"github.com/campus-connect/campus-core/internal/domain/mentorship"
	"github.com/campus-connect/campus-core/internal/domain/shared"
	"github.com/campus-connect/campus-core/internal/domain/stats"
	"github.com/campus-connect/campus-core/internal/interface/http/handlers"
	"github.com/campus-connect/campus-core/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROBES
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"uptime":  s.deps.Health.Uptime().Round(time.Second).String(),
		"version": s.deps.Health.Version(),
	})
}

func (s *Server) handleReady(c *gin.Context) {
	status := s.deps.Health.Check(c.Request.Context())
	code := http.StatusOK
	if !status.Ready {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}

// ══════════════════════════════════════════════════════════════════════════════
// USERS & BADGES
// ══════════════════════════════════════════════════════════════════════════════

type trackActivityRequest struct {
	Kind       string         `json:"kind"`
	Metadata   map[string]any `json:"metadata"`
	OccurredAt *time.Time     `json:"occurredAt"`
}

type trackActivityResponse struct {
	Tracked            bool             `json:"tracked"`
	UpdatedStats       *stats.UserStats `json:"updatedStats"`
	NewlyAwardedBadges []*badge.Badge   `json:"newlyAwardedBadges"`
}

func (s *Server) handleTrackActivity(c *gin.Context) {
	var req trackActivityRequest
	if !bindJSON(c, &req) {
		return
	}
	cmd := command.TrackActivityCommand{
		UserID:        c.Param("id"),
		Kind:          req.Kind,
		Metadata:      req.Metadata,
		CorrelationID: handlers.GetRequestID(c),
	}
	if req.OccurredAt != nil {
		cmd.OccurredAt = *req.OccurredAt
	}

	res, err := s.deps.TrackActivity.Handle(c.Request.Context(), cmd)
	if err != nil {
		s.writeError(c, err)
		return
	}
	out := trackActivityResponse{
		Tracked:            res.Tracked,
		UpdatedStats:       res.Stats,
		NewlyAwardedBadges: res.NewBadges,
	}
	if out.NewlyAwardedBadges == nil {
		out.NewlyAwardedBadges = []*badge.Badge{}
	}
	writeData(c, http.StatusOK, out)
}

func (s *Server) handleGetStats(c *gin.Context) {
	st, err := s.deps.UserReads.Stats(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	writeData(c, http.StatusOK, st)
}

func (s *Server) handleGetAchievements(c *gin.Context) {
	list, err := s.deps.UserReads.Achievements(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	writeData(c, http.StatusOK, list)
}

func (s *Server) handleGetNotifications(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	list, err := s.deps.UserReads.Notifications(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	writeData(c, http.StatusOK, list)
}

func (s *Server) handleListBadges(c *gin.Context) {
	writeData(c, http.StatusOK, s.deps.UserReads.Badges())
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARDS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleGetLeaderboard(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	view, err := s.deps.Leaderboard.Handle(c.Request.Context(), query.GetLeaderboardQuery{
		Type:   c.Param("type"),
		Period: c.Param("period"),
		Limit:  limit,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	writeData(c, http.StatusOK, view)
}

type userRankResponse struct {
	UserID string  `json:"userId"`
	Ranked bool    `json:"ranked"`
	Rank   int     `json:"rank,omitempty"`
	Score  float64 `json:"score,omitempty"`
}

func (s *Server) handleGetUserRank(c *gin.Context) {
	userID := c.Param("id")
	rank, err := s.deps.UserRank.Handle(c.Request.Context(), query.GetUserRankQuery{
		UserID: userID,
		Type:   c.Param("type"),
		Period: c.Param("period"),
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	out := userRankResponse{UserID: userID}
	if rank != nil {
		out.Ranked, out.Rank, out.Score = true, rank.Rank, rank.Score
	}
	writeData(c, http.StatusOK, out)
}

type rebuildSummary struct {
	Type        leaderboard.Type   `json:"type"`
	Period      leaderboard.Period `json:"period"`
	Entries     int                `json:"entries"`
	LastUpdated time.Time          `json:"lastUpdated"`
}

func summarize(s *leaderboard.Snapshot) rebuildSummary {
	return rebuildSummary{Type: s.Type, Period: s.Period, Entries: len(s.Rankings), LastUpdated: s.LastUpdated}
}

func (s *Server) handleRebuildAll(c *gin.Context) {
	snaps, err := s.deps.RebuildBoards.RebuildAll(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	out := make([]rebuildSummary, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, summarize(snap))
	}
	writeData(c, http.StatusOK, out)
}

func (s *Server) handleRebuild(c *gin.Context) {
	snap, err := s.deps.RebuildBoards.Handle(c.Request.Context(), command.RebuildLeaderboardCommand{
		Type:   c.Param("type"),
		Period: c.Param("period"),
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	writeData(c, http.StatusOK, summarize(snap))
}

// ══════════════════════════════════════════════════════════════════════════════
// MENTORSHIP
// ══════════════════════════════════════════════════════════════════════════════

type availabilityRequest struct {
	WeeklySchedule    []mentorship.DaySchedule `json:"weeklySchedule"`
	Exceptions        []mentorship.Exception   `json:"exceptions"`
	Timezone          string                   `json:"timezone"`
	MaxSessionsPerDay int                      `json:"maxSessionsPerDay"`
	SessionDuration   int                      `json:"sessionDuration"`
}

func (s *Server) handleSetAvailability(c *gin.Context) {
	var req availabilityRequest
	if !bindJSON(c, &req) {
		return
	}
	av, err := s.deps.SetAvailability.Handle(c.Request.Context(), command.SetAvailabilityCommand{
		MentorID:          c.Param("id"),
		WeeklySchedule:    req.WeeklySchedule,
		Exceptions:        req.Exceptions,
		Timezone:          req.Timezone,
		MaxSessionsPerDay: req.MaxSessionsPerDay,
		SessionDuration:   req.SessionDuration,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	writeData(c, http.StatusOK, av)
}

func (s *Server) handleGetSlots(c *gin.Context) {
	slots, err := s.deps.AvailableSlots.Handle(c.Request.Context(), query.GetAvailableSlotsQuery{
		MentorID: c.Param("id"),
		Date:     c.Query("date"),
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	if slots == nil {
		slots = []mentorship.TimeSlot{}
	}
	writeData(c, http.StatusOK, slots)
}

type scheduleSessionRequest struct {
	MentorID      string    `json:"mentorId"`
	MenteeID      string    `json:"menteeId"`
	ScheduledDate time.Time `json:"scheduledDate"`
	Duration      int       `json:"duration"`
	Topic         string    `json:"topic"`
}

func (s *Server) handleScheduleSession(c *gin.Context) {
	var req scheduleSessionRequest
	if !bindJSON(c, &req) {
		return
	}
	session, err := s.deps.ScheduleSession.Handle(c.Request.Context(), command.ScheduleSessionCommand{
		MentorID:      req.MentorID,
		MenteeID:      req.MenteeID,
		ScheduledDate: req.ScheduledDate,
		Duration:      req.Duration,
		Topic:         req.Topic,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	writeData(c, http.StatusCreated, session)
}

type sessionStatusRequest struct {
	Status string `json:"status"`
}

type sessionStatusResponse struct {
	Session            *mentorship.Session `json:"session"`
	NewlyAwardedBadges []*badge.Badge      `json:"newlyAwardedBadges,omitempty"`
}

func (s *Server) handleUpdateSessionStatus(c *gin.Context) {
	var req sessionStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := s.deps.UpdateSession.Handle(c.Request.Context(), command.UpdateSessionStatusCommand{
		SessionID: c.Param("id"),
		Status:    req.Status,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	out := sessionStatusResponse{Session: res.Session}
	if res.Activity != nil {
		out.NewlyAwardedBadges = res.Activity.NewBadges
	}
	writeData(c, http.StatusOK, out)
}

type rescheduleRequest struct {
	NewDate time.Time `json:"newDate"`
	Reason  string    `json:"reason"`
}

func (s *Server) handleRescheduleSession(c *gin.Context) {
	var req rescheduleRequest
	if !bindJSON(c, &req) {
		return
	}
	session, err := s.deps.RescheduleSession.Handle(c.Request.Context(), command.RescheduleSessionCommand{
		SessionID: c.Param("id"),
		NewDate:   req.NewDate,
		Reason:    req.Reason,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	writeData(c, http.StatusOK, session)
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func writeData(c *gin.Context, status int, data any) {
	c.JSON(status, handlers.Envelope{Success: true, Data: data})
}

// bindJSON decodes the body, answering 400 on malformed input.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		handlers.AbortWithError(c, http.StatusBadRequest, "invalid_body", "request body is not valid JSON: "+err.Error())
		return false
	}
	return true
}

// queryInt parses an optional integer query parameter; absent means zero.
func queryInt(c *gin.Context, key string) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		handlers.AbortWithError(c, http.StatusBadRequest, "validation_failed", key+" must be an integer")
		return 0, false
	}
	return v, true
}

// errorStatus maps an error kind to its HTTP status and code.
func errorStatus(err error) (int, string) {
	switch {
	case shared.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case shared.IsConflict(err):
		return http.StatusConflict, "conflict"
	case shared.IsValidation(err):
		return http.StatusBadRequest, "validation_failed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeError answers with the mapped status. Domain messages are shown for
// client errors; server errors are logged and answered generically.
func (s *Server) writeError(c *gin.Context, err error) {
	status, code := errorStatus(err)
	_ = c.Error(err)

	message := "an internal error occurred"
	if status < http.StatusInternalServerError {
		message = err.Error()
		var de *shared.DomainError
		if errors.As(err, &de) {
			message = de.Message
		}
	} else {
		logger.FromContext(c.Request.Context()).Error("request failed",
			logger.String("path", c.FullPath()),
			logger.Err(err),
		)
	}
	handlers.AbortWithError(c, status, code, message)
}
