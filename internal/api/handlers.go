// Package api exposes HTTP handlers for the exercise tracker.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"example.com/exercisetracker/internal/auth"
	"example.com/exercisetracker/internal/domain"
	"example.com/exercisetracker/internal/scoring"
)

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service       *domain.Service
	auth          auth.Config
	secureCookies bool
	logger        *zap.Logger
	now           func() time.Time
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, authCfg auth.Config, secureCookies bool, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		service:       service,
		auth:          authCfg,
		secureCookies: secureCookies,
		logger:        logger,
		now:           time.Now,
	}
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	usernames, err := h.service.ListUsernames(r.Context())
	if err != nil {
		h.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UsersResponse{Users: usernames})
}

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	user, err := h.service.Signup(r.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidUsername):
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		case errors.Is(err, domain.ErrUserExists):
			writeError(w, http.StatusConflict, "conflict", err.Error())
		default:
			h.serverError(w, err)
		}
		return
	}
	writeJSON(w, http.StatusCreated, UserView{Username: user.Username, CreatedAt: user.CreatedAt})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid username or password")
			return
		}
		h.serverError(w, err)
		return
	}

	token, expiresAt, err := auth.Issue(user.Username, h.auth, h.now())
	if err != nil {
		h.serverError(w, err)
		return
	}

	http.SetCookie(w, auth.SessionCookie(token, expiresAt, h.secureCookies))
	writeJSON(w, http.StatusOK, SessionResponse{Username: user.Username, Token: token, ExpiresAt: expiresAt})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, auth.ExpiredCookie(h.secureCookies))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	username, ok := requireScope(w, r, auth.ScopeExercisesRead)
	if !ok {
		return
	}

	dashboard, err := h.service.Dashboard(r.Context(), username)
	if err != nil {
		h.serverError(w, err)
		return
	}

	resp := DashboardResponse{
		Username:  dashboard.Username,
		Points:    dashboard.Points,
		Exercises: make([]DashboardEntryView, 0, len(dashboard.Exercises)),
	}
	for _, entry := range dashboard.Exercises {
		resp.Exercises = append(resp.Exercises, DashboardEntryView{
			ExerciseView: toExerciseView(entry.Exercise),
			DailyPoint:   entry.DailyPoint,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) addExercise(w http.ResponseWriter, r *http.Request) {
	username, ok := requireScope(w, r, auth.ScopeExercisesWrite)
	if !ok {
		return
	}

	var req AddExerciseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	exercise, err := h.service.AddExercise(r.Context(), username, domain.AddExerciseInput{
		ActivityType: req.ActivityType,
		Note:         req.Note,
		TimeMin:      req.TimeMin,
		Calorie:      req.Calorie,
		Steps:        req.Steps,
		Date:         req.Date,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrHikeStepsTooLow):
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		case errors.Is(err, domain.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "not_found", err.Error())
		default:
			h.serverError(w, err)
		}
		return
	}
	writeJSON(w, http.StatusCreated, toExerciseView(*exercise))
}

func (h *Handler) deleteExercise(w http.ResponseWriter, r *http.Request) {
	username, ok := requireScope(w, r, auth.ScopeExercisesWrite)
	if !ok {
		return
	}

	id := chi.URLParam(r, "exerciseID")
	if err := h.service.DeleteExercise(r.Context(), username, id); err != nil {
		if errors.Is(err, domain.ErrExerciseNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "exercise not found")
			return
		}
		h.serverError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) scoreboard(w http.ResponseWriter, r *http.Request) {
	standings, err := h.service.Scoreboard(r.Context())
	if err != nil {
		h.serverError(w, err)
		return
	}

	resp := ScoreboardResponse{Standings: make([]StandingView, 0, len(standings))}
	for i, standing := range standings {
		resp.Standings = append(resp.Standings, StandingView{
			Rank:     i + 1,
			Username: standing.Username,
			Points:   standing.Points,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) userExercises(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireScope(w, r, auth.ScopeExercisesRead); !ok {
		return
	}

	username := chi.URLParam(r, "username")
	exercises, err := h.service.History(r.Context(), username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "user not found")
			return
		}
		h.serverError(w, err)
		return
	}

	resp := HistoryResponse{Username: username, Exercises: make([]ExerciseView, 0, len(exercises))}
	for _, exercise := range exercises {
		resp.Exercises = append(resp.Exercises, toExerciseView(exercise))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) userWeeks(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireScope(w, r, auth.ScopeExercisesRead); !ok {
		return
	}

	username := chi.URLParam(r, "username")
	weeks, err := h.service.WeeklyBreakdown(r.Context(), username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "user not found")
			return
		}
		h.serverError(w, err)
		return
	}

	resp := WeeksResponse{Username: username, Weeks: make([]WeekView, 0, len(weeks))}
	for _, week := range weeks {
		resp.Weeks = append(resp.Weeks, toWeekView(week))
		resp.Points += week.Points
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) serverError(w http.ResponseWriter, err error) {
	h.logger.Error("request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "server_error", err.Error())
}

// requireScope resolves the session's username, writing 401 or 403 when it cannot act with scope.
func requireScope(w http.ResponseWriter, r *http.Request, scope string) (string, bool) {
	username, err := auth.Participant(r.Context(), scope)
	switch {
	case errors.Is(err, auth.ErrScopeDenied):
		writeError(w, http.StatusForbidden, "forbidden", "scope "+scope+" required")
		return "", false
	case err != nil:
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing session")
		return "", false
	}
	return username, true
}

// CredentialsRequest is the payload for signup and login.
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AddExerciseRequest is the payload for POST /v1/exercises.
type AddExerciseRequest struct {
	ActivityType string `json:"activity_type"`
	Note         string `json:"note"`
	TimeMin      int    `json:"time"`
	Calorie      int    `json:"calorie"`
	Steps        int    `json:"steps"`
	Date         string `json:"date"`
}

// UsersResponse lists every participant.
type UsersResponse struct {
	Users []string `json:"users"`
}

// UserView describes a freshly created account.
type UserView struct {
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionResponse is returned on login alongside the session cookie.
type SessionResponse struct {
	Username  string    `json:"username"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ExerciseView exposes one logged exercise.
type ExerciseView struct {
	ExerciseID   string    `json:"exercise_id"`
	Username     string    `json:"username"`
	ActivityType string    `json:"activity_type"`
	Note         string    `json:"note"`
	TimeMin      int       `json:"time"`
	Calorie      int       `json:"calorie"`
	Steps        int       `json:"steps"`
	Date         string    `json:"date"`
	CreatedAt    time.Time `json:"created_at"`
}

// DashboardEntryView marks whether the exercise's day earned a point.
type DashboardEntryView struct {
	ExerciseView
	DailyPoint int `json:"daily_point"`
}

// DashboardResponse is the signed-in user's own log.
type DashboardResponse struct {
	Username  string               `json:"username"`
	Points    int                  `json:"points"`
	Exercises []DashboardEntryView `json:"exercises"`
}

// StandingView is one scoreboard row.
type StandingView struct {
	Rank     int    `json:"rank"`
	Username string `json:"username"`
	Points   int    `json:"points"`
}

// ScoreboardResponse ranks every participant.
type ScoreboardResponse struct {
	Standings []StandingView `json:"standings"`
}

// HistoryResponse is another user's log.
type HistoryResponse struct {
	Username  string         `json:"username"`
	Exercises []ExerciseView `json:"exercises"`
}

// WeekView is the scoring detail for one Sunday-to-Saturday week.
type WeekView struct {
	Start          string `json:"start"`
	End            string `json:"end"`
	QualifyingDays int    `json:"qualifying_days"`
	Points         int    `json:"points"`
}

// WeeksResponse breaks a user's total down by week.
type WeeksResponse struct {
	Username string     `json:"username"`
	Points   int        `json:"points"`
	Weeks    []WeekView `json:"weeks"`
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func toExerciseView(exercise domain.Exercise) ExerciseView {
	return ExerciseView{
		ExerciseID:   exercise.ID,
		Username:     exercise.Username,
		ActivityType: exercise.ActivityType,
		Note:         exercise.Note,
		TimeMin:      exercise.TimeMin,
		Calorie:      exercise.Calorie,
		Steps:        exercise.Steps,
		Date:         exercise.Date,
		CreatedAt:    exercise.CreatedAt,
	}
}

func toWeekView(week scoring.WeekScore) WeekView {
	return WeekView{
		Start:          week.Start.Format(scoring.DateLayout),
		End:            week.End.Format(scoring.DateLayout),
		QualifyingDays: week.QualifyingDays,
		Points:         week.Points,
	}
}
