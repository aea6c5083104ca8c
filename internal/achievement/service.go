package achievement

import (
	"context"
	"fmt"

	"lakbay-kasaysayan/internal/db"
	"lakbay-kasaysayan/internal/events"
	"lakbay-kasaysayan/internal/observability"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Service struct {
	db        db.TxQuerier
	publisher events.Publisher
	logger    *zap.Logger
}

func NewService(db db.TxQuerier, publisher events.Publisher, logger *zap.Logger) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, publisher: publisher, logger: logger}
}

func (s *Service) List(ctx context.Context, userID string) ([]Achievement, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, type, title, description, icon, points, earned_at
		FROM user_achievements WHERE user_id=$1
		ORDER BY earned_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Achievement{}
	for rows.Next() {
		var a Achievement
		if err := rows.Scan(&a.ID, &a.UserID, &a.Type, &a.Title, &a.Description, &a.Icon, &a.Points, &a.EarnedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Check evaluates trigger against the user's earned set and stores whatever is new.
// Replays of the same trigger insert nothing and award no points.
func (s *Service) Check(ctx context.Context, userID string, trigger Trigger) (CheckResult, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return CheckResult{}, err
	}

	result, err := s.checkTx(ctx, tx, userID, trigger)
	if err != nil {
		_ = tx.Rollback(ctx)
		return CheckResult{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return CheckResult{}, err
	}

	for _, id := range result.NewAchievements {
		observability.RecordAchievementGranted(id)
		if err := s.publisher.Publish(ctx, events.KindAchievementGranted, userID, map[string]string{"userId": userID, "type": id}); err != nil {
			s.logger.Warn("publish achievement event", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return result, nil
}

func (s *Service) checkTx(ctx context.Context, tx db.Querier, userID string, trigger Trigger) (CheckResult, error) {
	rows, err := tx.Query(ctx, `SELECT type FROM user_achievements WHERE user_id=$1`, userID)
	if err != nil {
		return CheckResult{}, err
	}
	granted := Set{}
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			rows.Close()
			return CheckResult{}, err
		}
		granted[t] = struct{}{}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return CheckResult{}, err
	}

	result := CheckResult{NewAchievements: []string{}}
	for _, id := range Evaluate(trigger, granted) {
		def, _ := Lookup(id)
		tag, err := tx.Exec(ctx, `
			INSERT INTO user_achievements (id, user_id, type, title, description, icon, points)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			ON CONFLICT (user_id, type) DO NOTHING
		`, uuid.NewString(), userID, def.ID, def.Title, def.Description, def.Icon, def.Points)
		if err != nil {
			return CheckResult{}, fmt.Errorf("grant %s: %w", id, err)
		}
		if tag.RowsAffected() == 0 {
			continue
		}
		result.NewAchievements = append(result.NewAchievements, id)
		result.TotalPoints += def.Points
	}

	if result.TotalPoints > 0 {
		if _, err := tx.Exec(ctx, `
			UPDATE users SET total_points = total_points + $2 WHERE id=$1
		`, userID, result.TotalPoints); err != nil {
			return CheckResult{}, err
		}
	}
	return result, nil
}
