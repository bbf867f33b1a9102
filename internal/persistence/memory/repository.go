// Package memory keeps users and exercise logs in process memory for local development and tests.
package memory

import (
	"context"
	"sync"

	"example.com/exercisetracker/internal/domain"
)

// Repository stores users and their logs behind a single lock.
type Repository struct {
	mu        sync.RWMutex
	order     []string
	users     map[string]domain.User
	exercises map[string][]domain.Exercise
}

// NewRepository constructs an empty repository.
func NewRepository() *Repository {
	return &Repository{
		users:     make(map[string]domain.User),
		exercises: make(map[string][]domain.Exercise),
	}
}

// CreateUser implements domain.Repository.
func (r *Repository) CreateUser(ctx context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.Username]; ok {
		return domain.ErrUserExists
	}
	r.users[user.Username] = user
	r.order = append(r.order, user.Username)
	return nil
}

// GetUser returns the user or nil when absent.
func (r *Repository) GetUser(ctx context.Context, username string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[username]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

// ListUsers returns users in signup order.
func (r *Repository) ListUsers(ctx context.Context) ([]domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.User, 0, len(r.order))
	for _, username := range r.order {
		out = append(out, r.users[username])
	}
	return out, nil
}

// ListExercises returns a copy of the user's log in insertion order.
func (r *Repository) ListExercises(ctx context.Context, username string) ([]domain.Exercise, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	log := r.exercises[username]
	out := make([]domain.Exercise, len(log))
	copy(out, log)
	return out, nil
}

// AddExercise appends to the owner's log.
func (r *Repository) AddExercise(ctx context.Context, exercise domain.Exercise) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[exercise.Username]; !ok {
		return domain.ErrUserNotFound
	}
	r.exercises[exercise.Username] = append(r.exercises[exercise.Username], exercise)
	return nil
}

// DeleteExercise removes the matching exercise from the user's log.
func (r *Repository) DeleteExercise(ctx context.Context, username, exerciseID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	log := r.exercises[username]
	kept := make([]domain.Exercise, 0, len(log))
	for _, exercise := range log {
		if exercise.ID != exerciseID {
			kept = append(kept, exercise)
		}
	}
	if len(kept) == len(log) {
		return false, nil
	}
	r.exercises[username] = kept
	return true, nil
}
