package legacy

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"example.com/exercisetracker/internal/domain"
)

// Summary counts what an import did.
type Summary struct {
	UsersCreated      int
	UsersSkipped      int
	ExercisesImported int
	ExercisesRejected int
}

// Importer replays an export through the service so passwords are hashed and IDs assigned.
type Importer struct {
	service *domain.Service
	logger  *zap.Logger
}

// NewImporter constructs an Importer.
func NewImporter(service *domain.Service, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{service: service, logger: logger}
}

// Import loads every user in export order. Existing or blank usernames are skipped with their logs.
func (i *Importer) Import(ctx context.Context, export *Export) (Summary, error) {
	var summary Summary
	for _, username := range export.Usernames {
		user := export.Users[username]

		if _, err := i.service.ImportUser(ctx, username, user.Password); err != nil {
			if errors.Is(err, domain.ErrUserExists) || errors.Is(err, domain.ErrInvalidUsername) {
				i.logger.Warn("skipping legacy user", zap.String("username", username), zap.Error(err))
				summary.UsersSkipped++
				continue
			}
			return summary, err
		}
		summary.UsersCreated++

		for _, exercise := range user.Exercises {
			_, err := i.service.AddExercise(ctx, username, domain.AddExerciseInput{
				ActivityType: exercise.ActivityType,
				Note:         exercise.Note,
				TimeMin:      exercise.TimeMin,
				Calorie:      exercise.Calorie,
				Steps:        exercise.Steps,
				Date:         exercise.Date,
			})
			if errors.Is(err, domain.ErrHikeStepsTooLow) {
				i.logger.Warn("rejecting legacy exercise", zap.String("username", username), zap.ByteString("id", exercise.ID), zap.Error(err))
				summary.ExercisesRejected++
				continue
			}
			if err != nil {
				return summary, err
			}
			summary.ExercisesImported++
		}
	}
	return summary, nil
}
