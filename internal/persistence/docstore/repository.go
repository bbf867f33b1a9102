// Package docstore persists users and exercise logs in a JSON document tree served over REST,
// laid out as /users/{username}/exercises/{id}.
package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"example.com/exercisetracker/internal/domain"
)

// Repository talks to a Firebase Realtime Database style REST endpoint.
type Repository struct {
	endpoint   string
	authToken  string
	httpClient *http.Client
}

// NewRepository constructs the repository. authToken is sent as the auth query parameter when set.
func NewRepository(endpoint, authToken string, timeout time.Duration) *Repository {
	return &Repository{
		endpoint:  strings.TrimRight(endpoint, "/"),
		authToken: authToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type userDocument struct {
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

type exerciseDocument struct {
	ActivityType string    `json:"activity_type"`
	Note         string    `json:"note"`
	TimeMin      int       `json:"time"`
	Calorie      int       `json:"calorie"`
	Steps        int       `json:"steps"`
	Date         string    `json:"date"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreateUser writes the user document only if the key is still empty.
func (r *Repository) CreateUser(ctx context.Context, user domain.User) error {
	path := userPath(user.Username)

	req, err := r.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Firebase-ETag", "true")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return err
	}
	body, err := readBody(resp)
	if err != nil {
		return fmt.Errorf("docstore user lookup: %w", err)
	}
	if !isNull(body) {
		return domain.ErrUserExists
	}
	etag := resp.Header.Get("ETag")

	payload, err := json.Marshal(userDocument{PasswordHash: user.PasswordHash, CreatedAt: user.CreatedAt})
	if err != nil {
		return err
	}
	req, err = r.newRequest(ctx, http.MethodPut, path, payload)
	if err != nil {
		return err
	}
	if etag != "" {
		req.Header.Set("if-match", etag)
	}

	resp, err = r.httpClient.Do(req)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusPreconditionFailed {
		resp.Body.Close()
		return domain.ErrUserExists
	}
	if _, err := readBody(resp); err != nil {
		return fmt.Errorf("docstore user write: %w", err)
	}
	return nil
}

// GetUser returns the user or nil when absent.
func (r *Repository) GetUser(ctx context.Context, username string) (*domain.User, error) {
	var doc *userDocument
	if err := r.get(ctx, userPath(username), &doc); err != nil {
		return nil, fmt.Errorf("docstore user get: %w", err)
	}
	if doc == nil {
		return nil, nil
	}
	return &domain.User{Username: username, PasswordHash: doc.PasswordHash, CreatedAt: doc.CreatedAt}, nil
}

// ListUsers returns users ordered by signup time.
func (r *Repository) ListUsers(ctx context.Context) ([]domain.User, error) {
	var docs map[string]userDocument
	if err := r.get(ctx, "users", &docs); err != nil {
		return nil, fmt.Errorf("docstore user list: %w", err)
	}

	users := make([]domain.User, 0, len(docs))
	for username, doc := range docs {
		users = append(users, domain.User{Username: username, PasswordHash: doc.PasswordHash, CreatedAt: doc.CreatedAt})
	}
	sort.Slice(users, func(i, j int) bool {
		if !users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].CreatedAt.Before(users[j].CreatedAt)
		}
		return users[i].Username < users[j].Username
	})
	return users, nil
}

// ListExercises returns the user's log in insertion order.
func (r *Repository) ListExercises(ctx context.Context, username string) ([]domain.Exercise, error) {
	var docs map[string]exerciseDocument
	if err := r.get(ctx, exercisesPath(username), &docs); err != nil {
		return nil, fmt.Errorf("docstore exercise list: %w", err)
	}

	exercises := make([]domain.Exercise, 0, len(docs))
	for id, doc := range docs {
		exercises = append(exercises, domain.Exercise{
			ID:           id,
			Username:     username,
			ActivityType: doc.ActivityType,
			Note:         doc.Note,
			TimeMin:      doc.TimeMin,
			Calorie:      doc.Calorie,
			Steps:        doc.Steps,
			Date:         doc.Date,
			CreatedAt:    doc.CreatedAt,
		})
	}
	sort.Slice(exercises, func(i, j int) bool {
		if !exercises[i].CreatedAt.Equal(exercises[j].CreatedAt) {
			return exercises[i].CreatedAt.Before(exercises[j].CreatedAt)
		}
		return exercises[i].ID < exercises[j].ID
	})
	return exercises, nil
}

// AddExercise writes one exercise document under the user's log.
func (r *Repository) AddExercise(ctx context.Context, exercise domain.Exercise) error {
	user, err := r.GetUser(ctx, exercise.Username)
	if err != nil {
		return err
	}
	if user == nil {
		return domain.ErrUserNotFound
	}

	payload, err := json.Marshal(exerciseDocument{
		ActivityType: exercise.ActivityType,
		Note:         exercise.Note,
		TimeMin:      exercise.TimeMin,
		Calorie:      exercise.Calorie,
		Steps:        exercise.Steps,
		Date:         exercise.Date,
		CreatedAt:    exercise.CreatedAt,
	})
	if err != nil {
		return err
	}
	if err := r.send(ctx, http.MethodPut, exercisePath(exercise.Username, exercise.ID), payload); err != nil {
		return fmt.Errorf("docstore exercise write: %w", err)
	}
	return nil
}

// DeleteExercise removes the exercise document, reporting whether it existed.
func (r *Repository) DeleteExercise(ctx context.Context, username, exerciseID string) (bool, error) {
	path := exercisePath(username, exerciseID)

	var doc *exerciseDocument
	if err := r.get(ctx, path, &doc); err != nil {
		return false, fmt.Errorf("docstore exercise get: %w", err)
	}
	if doc == nil {
		return false, nil
	}
	if err := r.send(ctx, http.MethodDelete, path, nil); err != nil {
		return false, fmt.Errorf("docstore exercise delete: %w", err)
	}
	return true, nil
}

func (r *Repository) get(ctx context.Context, path string, out interface{}) error {
	req, err := r.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return err
	}
	body, err := readBody(resp)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

func (r *Repository) send(ctx context.Context, method, path string, payload []byte) error {
	req, err := r.newRequest(ctx, method, path, payload)
	if err != nil {
		return err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return err
	}
	_, err = readBody(resp)
	return err
}

func (r *Repository) newRequest(ctx context.Context, method, path string, payload []byte) (*http.Request, error) {
	target := r.endpoint + "/" + path + ".json"
	if r.authToken != "" {
		target += "?auth=" + url.QueryEscape(r.authToken)
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// StatusError reports a non-successful docstore response.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("docstore responded %d: %s", e.Status, e.Body)
}

func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}

func isNull(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, status int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Status == status
}

func userPath(username string) string {
	return "users/" + url.PathEscape(username)
}

func exercisesPath(username string) string {
	return userPath(username) + "/exercises"
}

func exercisePath(username, exerciseID string) string {
	return exercisesPath(username) + "/" + url.PathEscape(exerciseID)
}
