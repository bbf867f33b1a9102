package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/exercisetracker/internal/domain"
	"example.com/exercisetracker/internal/events"
	"example.com/exercisetracker/internal/observability"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// Repository provides Postgres-backed persistence for users, exercise logs, and outbox events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateUser inserts a user, mapping duplicate usernames to domain.ErrUserExists.
func (r *Repository) CreateUser(ctx context.Context, user domain.User) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (username, password_hash, created_at) VALUES ($1,$2,$3)`,
		user.Username, user.PasswordHash, user.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("user insert: %w", err)
	}
	return nil
}

// GetUser returns the user or nil when absent.
func (r *Repository) GetUser(ctx context.Context, username string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT username, password_hash, created_at FROM users WHERE username=$1`, username)

	var user domain.User
	if err := row.Scan(&user.Username, &user.PasswordHash, &user.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("user get: %w", err)
	}
	return &user, nil
}

// ListUsers returns users in signup order.
func (r *Repository) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT username, password_hash, created_at FROM users ORDER BY created_at, username`)
	if err != nil {
		return nil, fmt.Errorf("user list: %w", err)
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(&user.Username, &user.PasswordHash, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// ListExercises returns the user's log in insertion order.
func (r *Repository) ListExercises(ctx context.Context, username string) ([]domain.Exercise, error) {
	const query = `SELECT exercise_id::text, username, activity_type, note, time_min, calorie, steps, exercise_date, created_at
        FROM exercises WHERE username=$1 ORDER BY created_at, exercise_id`

	rows, err := r.pool.Query(ctx, query, username)
	if err != nil {
		return nil, fmt.Errorf("exercise list: %w", err)
	}
	defer rows.Close()

	exercises := make([]domain.Exercise, 0)
	for rows.Next() {
		var ex domain.Exercise
		if err := rows.Scan(&ex.ID, &ex.Username, &ex.ActivityType, &ex.Note, &ex.TimeMin, &ex.Calorie, &ex.Steps, &ex.Date, &ex.CreatedAt); err != nil {
			return nil, err
		}
		exercises = append(exercises, ex)
	}
	return exercises, rows.Err()
}

// AddExercise persists the exercise and records an outbox event inside a single transaction.
func (r *Repository) AddExercise(ctx context.Context, exercise domain.Exercise) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	insertExercise := `INSERT INTO exercises (exercise_id, username, activity_type, note, time_min, calorie, steps, exercise_date, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	_, err = tx.Exec(ctx, insertExercise,
		exercise.ID,
		exercise.Username,
		exercise.ActivityType,
		exercise.Note,
		exercise.TimeMin,
		exercise.Calorie,
		exercise.Steps,
		exercise.Date,
		exercise.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return domain.ErrUserNotFound
	}
	if err != nil {
		return err
	}

	if err = insertOutbox(ctx, tx, exercise.ID, exercise.Username, events.TypeExerciseLogged, events.ExerciseLogged{
		ExerciseID:   exercise.ID,
		Username:     exercise.Username,
		ActivityType: exercise.ActivityType,
		Date:         exercise.Date,
		TimeMin:      exercise.TimeMin,
		Steps:        exercise.Steps,
		OccurredAt:   exercise.CreatedAt,
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// DeleteExercise removes the user's exercise and records an outbox event when a row was deleted.
func (r *Repository) DeleteExercise(ctx context.Context, username, exerciseID string) (bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM exercises WHERE username=$1 AND exercise_id::text=$2`, username, exerciseID)
	if err != nil {
		return false, fmt.Errorf("exercise delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, tx.Commit(ctx)
	}

	if err := insertOutbox(ctx, tx, exerciseID, username, events.TypeExerciseDeleted, events.ExerciseDeleted{
		ExerciseID: exerciseID,
		Username:   username,
		OccurredAt: time.Now().UTC(),
	}); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// SaveScoreSnapshot upserts the latest computed total for a user.
func (r *Repository) SaveScoreSnapshot(ctx context.Context, username string, points int, computedAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO score_snapshots (username, points, computed_at) VALUES ($1,$2,$3)
         ON CONFLICT (username) DO UPDATE SET points = EXCLUDED.points, computed_at = EXCLUDED.computed_at
         WHERE score_snapshots.computed_at <= EXCLUDED.computed_at`,
		username, points, computedAt,
	)
	if err != nil {
		return fmt.Errorf("score snapshot upsert: %w", err)
	}
	observability.RecordScoreSnapshot(computedAt)
	return nil
}

func insertOutbox(ctx context.Context, tx pgx.Tx, aggregateID, username, eventType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta, ok := eventCatalog[eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	dedupeKey := fmt.Sprintf("%s:%s", aggregateID, eventType)

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err = tx.Exec(ctx, stmt,
		"exercise",
		aggregateID,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		username,
		body,
		dedupeKey,
	)
	return err
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic         string
	SchemaSubject string
}

// Both event types share a topic partitioned by username so a user's changes stay ordered.
var eventCatalog = map[string]EventMetadata{
	events.TypeExerciseLogged: {
		Topic:         "exercise_events",
		SchemaSubject: "exercise_logged-value",
	},
	events.TypeExerciseDeleted: {
		Topic:         "exercise_events",
		SchemaSubject: "exercise_deleted-value",
	},
}
