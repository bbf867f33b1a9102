package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"example.com/exercisetracker/internal/events"
)

// Scorer recomputes a user's competition total from their current log.
type Scorer interface {
	Points(ctx context.Context, username string) (int, error)
}

// SnapshotStore persists the latest computed total per user.
type SnapshotStore interface {
	SaveScoreSnapshot(ctx context.Context, username string, points int, computedAt time.Time) error
}

// ScoreProjector keeps score snapshots current as exercise events arrive.
type ScoreProjector struct {
	scorer Scorer
	store  SnapshotStore
	logger *zap.Logger
	now    func() time.Time
}

// NewScoreProjector constructs a ScoreProjector.
func NewScoreProjector(scorer Scorer, store SnapshotStore, logger *zap.Logger) *ScoreProjector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScoreProjector{scorer: scorer, store: store, logger: logger, now: time.Now}
}

// Handle recomputes the affected user's total. Unknown event types are acknowledged and skipped.
func (h *ScoreProjector) Handle(ctx context.Context, msg Message) error {
	switch msg.EventType {
	case events.TypeExerciseLogged, events.TypeExerciseDeleted:
	default:
		h.logger.Debug("skipping event", zap.String("event_type", msg.EventType))
		return nil
	}

	var ref events.UserRef
	if err := json.Unmarshal(msg.Payload, &ref); err != nil {
		return fmt.Errorf("decode %s payload: %w", msg.EventType, err)
	}
	if ref.Username == "" {
		ref.Username = msg.Username
	}
	if ref.Username == "" {
		return errors.New("event carries no username")
	}

	points, err := h.scorer.Points(ctx, ref.Username)
	if err != nil {
		return fmt.Errorf("score %s: %w", ref.Username, err)
	}

	if err := h.store.SaveScoreSnapshot(ctx, ref.Username, points, h.now().UTC()); err != nil {
		return err
	}
	h.logger.Debug("score projected", zap.String("username", ref.Username), zap.Int("points", points))
	return nil
}
