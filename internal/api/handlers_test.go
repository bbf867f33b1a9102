package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"example.com/exercisetracker/internal/auth"
	"example.com/exercisetracker/internal/domain"
	"example.com/exercisetracker/internal/persistence/memory"
	httptransport "example.com/exercisetracker/internal/transport/http"
)

var testAuth = auth.Config{Secret: "test-secret", Issuer: "exercise-tracker-test", TTL: time.Hour}

type testServer struct {
	t       *testing.T
	handler http.Handler
	service *domain.Service
}

func newTestServer(t *testing.T, limiter func(http.Handler) http.Handler) *testServer {
	t.Helper()
	service := domain.NewService(memory.NewRepository(), domain.WithHashCost(bcrypt.MinCost))
	handler := NewHandler(service, testAuth, false, zaptest.NewLogger(t))
	router := NewRouter(handler, RouterConfig{
		AllowedOrigins: []string{"http://localhost:5173"},
		Session:        auth.NewMiddleware(testAuth),
		AuthLimiter:    limiter,
		Logger:         zaptest.NewLogger(t),
	})
	return &testServer{t: t, handler: router, service: service}
}

func (s *testServer) do(method, path string, body interface{}, cookie *http.Cookie) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func (s *testServer) signupAndLogin(username string) *http.Cookie {
	s.t.Helper()
	rr := s.do(http.MethodPost, "/v1/signup", CredentialsRequest{Username: username, Password: "pw"}, nil)
	require.Equal(s.t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = s.do(http.MethodPost, "/v1/login", CredentialsRequest{Username: username, Password: "pw"}, nil)
	require.Equal(s.t, http.StatusOK, rr.Code, rr.Body.String())

	for _, cookie := range rr.Result().Cookies() {
		if cookie.Name == auth.CookieName {
			return cookie
		}
	}
	s.t.Fatalf("login did not set %s cookie", auth.CookieName)
	return nil
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, nil)
	rr := srv.do(http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
}

func TestSignupValidationAndConflict(t *testing.T) {
	srv := newTestServer(t, nil)

	rr := srv.do(http.MethodPost, "/v1/signup", CredentialsRequest{Username: " ", Password: "pw"}, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = srv.do(http.MethodPost, "/v1/signup", CredentialsRequest{Username: "alice", Password: "pw"}, nil)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = srv.do(http.MethodPost, "/v1/signup", CredentialsRequest{Username: "alice", Password: "pw"}, nil)
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Equal(t, "conflict", decode[map[string]string](t, rr)["type"])

	rr = srv.do(http.MethodGet, "/v1/users", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, []string{"alice"}, decode[UsersResponse](t, rr).Users)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.signupAndLogin("bob")

	rr := srv.do(http.MethodPost, "/v1/login", CredentialsRequest{Username: "bob", Password: "nope"}, nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Empty(t, rr.Result().Cookies())
}

func TestSessionRequiredForDashboard(t *testing.T) {
	srv := newTestServer(t, nil)

	rr := srv.do(http.MethodGet, "/v1/dashboard", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = srv.do(http.MethodPost, "/v1/exercises", AddExerciseRequest{TimeMin: 30, Date: "2025-03-03"}, nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = srv.do(http.MethodGet, "/v1/users/alice/exercises", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = srv.do(http.MethodGet, "/v1/users/alice/weeks", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestDashboardFlow(t *testing.T) {
	srv := newTestServer(t, nil)
	cookie := srv.signupAndLogin("carol")

	rr := srv.do(http.MethodPost, "/v1/exercises", AddExerciseRequest{ActivityType: "hike", Steps: 12000, Date: "2025-03-03"}, cookie)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	hike := decode[ExerciseView](t, rr)
	require.NotEmpty(t, hike.ExerciseID)
	require.Equal(t, "carol", hike.Username)

	rr = srv.do(http.MethodPost, "/v1/exercises", AddExerciseRequest{ActivityType: "run", TimeMin: 45, Date: "2025-03-03"}, cookie)
	require.Equal(t, http.StatusCreated, rr.Code)
	rr = srv.do(http.MethodPost, "/v1/exercises", AddExerciseRequest{ActivityType: "run", TimeMin: 10, Date: "2025-03-04"}, cookie)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = srv.do(http.MethodGet, "/v1/dashboard", nil, cookie)
	require.Equal(t, http.StatusOK, rr.Code)
	dashboard := decode[DashboardResponse](t, rr)
	require.Equal(t, 1, dashboard.Points)
	require.Len(t, dashboard.Exercises, 3)
	require.Equal(t, "2025-03-04", dashboard.Exercises[0].Date)
	require.Equal(t, 0, dashboard.Exercises[0].DailyPoint)
	require.Equal(t, 1, dashboard.Exercises[1].DailyPoint)
	require.Equal(t, 1, dashboard.Exercises[2].DailyPoint)
}

func TestAddExerciseRejectsShortHike(t *testing.T) {
	srv := newTestServer(t, nil)
	cookie := srv.signupAndLogin("dave")

	rr := srv.do(http.MethodPost, "/v1/exercises", AddExerciseRequest{ActivityType: "hike", Steps: 500, Date: "2025-03-03"}, cookie)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "validation_failed", decode[map[string]string](t, rr)["type"])
}

func TestDeleteExerciseOnlyTouchesOwnLog(t *testing.T) {
	srv := newTestServer(t, nil)
	erin := srv.signupAndLogin("erin")
	frank := srv.signupAndLogin("frank")

	rr := srv.do(http.MethodPost, "/v1/exercises", AddExerciseRequest{TimeMin: 30, Date: "2025-03-05"}, erin)
	require.Equal(t, http.StatusCreated, rr.Code)
	exercise := decode[ExerciseView](t, rr)

	rr = srv.do(http.MethodDelete, "/v1/exercises/"+exercise.ExerciseID, nil, frank)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = srv.do(http.MethodDelete, "/v1/exercises/"+exercise.ExerciseID, nil, erin)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = srv.do(http.MethodDelete, "/v1/exercises/"+exercise.ExerciseID, nil, erin)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestScoreboardAndHistory(t *testing.T) {
	srv := newTestServer(t, nil)
	gina := srv.signupAndLogin("gina")
	hank := srv.signupAndLogin("hank")

	for _, date := range []string{"2025-03-03", "2025-03-04"} {
		rr := srv.do(http.MethodPost, "/v1/exercises", AddExerciseRequest{TimeMin: 30, Date: date}, hank)
		require.Equal(t, http.StatusCreated, rr.Code)
	}
	rr := srv.do(http.MethodPost, "/v1/exercises", AddExerciseRequest{TimeMin: 30, Date: "2025-03-03"}, gina)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = srv.do(http.MethodGet, "/v1/scoreboard", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, []StandingView{
		{Rank: 1, Username: "hank", Points: 2},
		{Rank: 2, Username: "gina", Points: 1},
	}, decode[ScoreboardResponse](t, rr).Standings)

	rr = srv.do(http.MethodGet, "/v1/users/hank/exercises", nil, gina)
	require.Equal(t, http.StatusOK, rr.Code)
	history := decode[HistoryResponse](t, rr)
	require.Len(t, history.Exercises, 2)
	require.Equal(t, "2025-03-04", history.Exercises[0].Date)

	rr = srv.do(http.MethodGet, "/v1/users/nobody/exercises", nil, gina)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = srv.do(http.MethodGet, "/v1/users/hank/weeks", nil, gina)
	require.Equal(t, http.StatusOK, rr.Code)
	weeks := decode[WeeksResponse](t, rr)
	require.Equal(t, 2, weeks.Points)
	require.Len(t, weeks.Weeks, 1)
	require.Equal(t, "2025-03-02", weeks.Weeks[0].Start)
	require.Equal(t, "2025-03-08", weeks.Weeks[0].End)
}

func TestLogoutClearsCookie(t *testing.T) {
	srv := newTestServer(t, nil)
	rr := srv.do(http.MethodPost, "/v1/logout", nil, nil)
	require.Equal(t, http.StatusNoContent, rr.Code)

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, auth.CookieName, cookies[0].Name)
	require.Empty(t, cookies[0].Value)
	require.Negative(t, cookies[0].MaxAge)
}

func TestLoginIsRateLimited(t *testing.T) {
	limiter := httptransport.NewRateLimiter(httptransport.RateLimit{RequestsPerMinute: 1, Burst: 2})
	srv := newTestServer(t, limiter.Middleware)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rr := srv.do(http.MethodPost, "/v1/login", CredentialsRequest{Username: "x", Password: "y"}, nil)
		codes = append(codes, rr.Code)
	}
	require.Equal(t, []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusTooManyRequests}, codes)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/v1/exercises", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	srv.handler.ServeHTTP(rr, req)

	require.Equal(t, "http://localhost:5173", rr.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))
}
