package auth

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// CookieName is the session cookie set at login.
const CookieName = "session"

// Middleware attaches session claims to requests that carry a valid token.
type Middleware struct {
	Config Config
}

// NewMiddleware constructs a Middleware with validation config.
func NewMiddleware(cfg Config) Middleware {
	return Middleware{Config: cfg}
}

// Require rejects requests without a valid session.
func (m Middleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.parseRequest(r)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"type": "unauthorized", "detail": err.Error()})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

func (m Middleware) parseRequest(r *http.Request) (*Claims, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			return nil, ErrInvalidToken
		}
		return Parse(header[len("Bearer "):], m.Config)
	}
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return nil, ErrMissingToken
	}
	return Parse(cookie.Value, m.Config)
}

// SessionCookie builds the cookie carrying a freshly issued token.
func SessionCookie(token string, expiresAt time.Time, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ExpiredCookie clears the session cookie.
func ExpiredCookie(secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}
