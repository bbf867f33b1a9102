package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"example.com/exercisetracker/internal/auth"
)

// RouterConfig collects the middleware the router wires around the handlers.
type RouterConfig struct {
	AllowedOrigins []string
	Session        auth.Middleware
	// AuthLimiter throttles signup and login; nil disables throttling.
	AuthLimiter func(http.Handler) http.Handler
	Logger      *zap.Logger
}

// NewRouter builds the chi router serving every endpoint.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(requestLogger(cfg.Logger))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/healthz", healthz)
	router.Handle("/metrics", promhttp.Handler())

	limited := cfg.AuthLimiter
	if limited == nil {
		limited = func(next http.Handler) http.Handler { return next }
	}

	router.Route("/v1", func(r chi.Router) {
		r.Get("/users", h.listUsers)
		r.Get("/scoreboard", h.scoreboard)
		r.With(limited).Post("/signup", h.signup)
		r.With(limited).Post("/login", h.login)
		r.Post("/logout", h.logout)

		r.Group(func(r chi.Router) {
			r.Use(cfg.Session.Require)
			r.Get("/dashboard", h.dashboard)
			r.Post("/exercises", h.addExercise)
			r.Delete("/exercises/{exerciseID}", h.deleteExercise)
			r.Get("/users/{username}/exercises", h.userExercises)
			r.Get("/users/{username}/weeks", h.userWeeks)
		})
	})

	return router
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
