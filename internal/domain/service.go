// Package domain defines the business logic for the exercise tracker.
package domain

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"example.com/exercisetracker/internal/observability"
	"example.com/exercisetracker/internal/scoring"
)

var (
	// ErrUserExists is returned when signing up with a taken username.
	ErrUserExists = errors.New("username already exists")
	// ErrUserNotFound is returned when a user cannot be located.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials is returned when a username/password pair does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidUsername is returned when signup input is blank.
	ErrInvalidUsername = errors.New("username and password are required")
	// ErrExerciseNotFound is returned when an exercise cannot be located in the user's log.
	ErrExerciseNotFound = errors.New("exercise not found")
	// ErrHikeStepsTooLow rejects hikes logged below the step threshold.
	ErrHikeStepsTooLow = errors.New("a hike must have at least 10,000 steps")
)

// Repository captures per-user persistence operations.
type Repository interface {
	CreateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, username string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	ListExercises(ctx context.Context, username string) ([]Exercise, error)
	AddExercise(ctx context.Context, exercise Exercise) error
	DeleteExercise(ctx context.Context, username, exerciseID string) (bool, error)
}

// Option configures optional behaviour for the Service.
type Option func(*Service)

// WithLogger overrides the logger used by the service.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithHashCost overrides the bcrypt cost used for new passwords.
func WithHashCost(cost int) Option {
	return func(s *Service) {
		s.hashCost = cost
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service orchestrates account, logging, and scoring workflows.
type Service struct {
	repo     Repository
	logger   *zap.Logger
	hashCost int
	now      func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		logger:   zap.NewNop(),
		hashCost: bcrypt.DefaultCost,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Signup registers a new user with a hashed password.
func (s *Service) Signup(ctx context.Context, username, password string) (*User, error) {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)
	if username == "" || password == "" {
		return nil, ErrInvalidUsername
	}
	return s.createUser(ctx, username, password)
}

// ImportUser registers a user carried over from an exported log. Unlike Signup it
// accepts an empty password, since exported accounts may have been created without one.
func (s *Service) ImportUser(ctx context.Context, username, password string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrInvalidUsername
	}
	return s.createUser(ctx, username, strings.TrimSpace(password))
}

func (s *Service) createUser(ctx context.Context, username, password string) (*User, error) {
	existing, err := s.repo.GetUser(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return nil, err
	}

	user := User{
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("user created", zap.String("username", username))
	return &user, nil
}

// Authenticate verifies a username/password pair.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)

	user, err := s.repo.GetUser(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// ListUsernames returns every username in signup order.
func (s *Service) ListUsernames(ctx context.Context) ([]string, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(users))
	for _, user := range users {
		out = append(out, user.Username)
	}
	return out, nil
}

// AddExerciseInput captures the payload from the API layer.
type AddExerciseInput struct {
	ActivityType string
	Note         string
	TimeMin      int
	Calorie      int
	Steps        int
	Date         string
}

// AddExercise appends an exercise to the user's log. The date is stored verbatim.
func (s *Service) AddExercise(ctx context.Context, username string, input AddExerciseInput) (*Exercise, error) {
	activityType := input.ActivityType
	if activityType == "" {
		activityType = DefaultActivityType
	}
	if scoring.KindOf(activityType) == scoring.KindHike && input.Steps < scoring.HikeStepThreshold {
		return nil, ErrHikeStepsTooLow
	}

	user, err := s.repo.GetUser(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	exercise := Exercise{
		ID:           uuid.NewString(),
		Username:     username,
		ActivityType: activityType,
		Note:         strings.TrimSpace(input.Note),
		TimeMin:      input.TimeMin,
		Calorie:      input.Calorie,
		Steps:        input.Steps,
		Date:         input.Date,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.AddExercise(ctx, exercise); err != nil {
		return nil, err
	}

	if _, ok := scoring.ParseDate(exercise.Date); !ok {
		s.logger.Debug("stored exercise with unparseable date", zap.String("username", username), zap.String("date", exercise.Date))
	}
	observability.RecordExerciseLogged(exercise.CreatedAt)
	return &exercise, nil
}

// DeleteExercise removes one exercise from the user's log.
func (s *Service) DeleteExercise(ctx context.Context, username, exerciseID string) error {
	deleted, err := s.repo.DeleteExercise(ctx, username, exerciseID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrExerciseNotFound
	}
	return nil
}

// Dashboard returns the user's log, newest date first, with per-day point markers.
// Day totals here span every parseable date, not just the competition window.
func (s *Service) Dashboard(ctx context.Context, username string) (*Dashboard, error) {
	exercises, err := s.repo.ListExercises(ctx, username)
	if err != nil {
		return nil, err
	}

	records := Records(exercises)
	totals := scoring.DailyMinutes(records)

	sorted := sortByDateDesc(exercises)
	entries := make([]DashboardEntry, 0, len(sorted))
	for _, exercise := range sorted {
		entries = append(entries, DashboardEntry{
			Exercise:   exercise,
			DailyPoint: scoring.DailyPoint(totals, exercise.Date),
		})
	}

	return &Dashboard{
		Username:  username,
		Points:    s.score(records),
		Exercises: entries,
	}, nil
}

// History returns another user's log, newest date first.
func (s *Service) History(ctx context.Context, username string) ([]Exercise, error) {
	user, err := s.repo.GetUser(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	exercises, err := s.repo.ListExercises(ctx, username)
	if err != nil {
		return nil, err
	}
	return sortByDateDesc(exercises), nil
}

// Points computes the user's competition total from their current log.
func (s *Service) Points(ctx context.Context, username string) (int, error) {
	exercises, err := s.repo.ListExercises(ctx, username)
	if err != nil {
		return 0, err
	}
	return s.score(Records(exercises)), nil
}

// WeeklyBreakdown returns the per-week scoring detail for a user.
func (s *Service) WeeklyBreakdown(ctx context.Context, username string) ([]scoring.WeekScore, error) {
	user, err := s.repo.GetUser(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	exercises, err := s.repo.ListExercises(ctx, username)
	if err != nil {
		return nil, err
	}
	return scoring.Breakdown(Records(exercises)), nil
}

// Scoreboard ranks every user by points, highest first. Ties keep signup order.
func (s *Service) Scoreboard(ctx context.Context) ([]Standing, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	standings := make([]Standing, 0, len(users))
	for _, user := range users {
		exercises, err := s.repo.ListExercises(ctx, user.Username)
		if err != nil {
			return nil, err
		}
		standings = append(standings, Standing{
			Username: user.Username,
			Points:   s.score(Records(exercises)),
		})
	}

	sort.SliceStable(standings, func(i, j int) bool {
		return standings[i].Points > standings[j].Points
	})
	return standings, nil
}

func (s *Service) score(records []scoring.Record) int {
	start := time.Now()
	points := scoring.ComputePoints(records)
	observability.RecordPointsComputed(points, time.Since(start))
	return points
}

func sortByDateDesc(exercises []Exercise) []Exercise {
	out := make([]Exercise, len(exercises))
	copy(out, exercises)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date > out[j].Date
	})
	return out
}
