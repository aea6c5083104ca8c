// Package artifact serves the artifact catalogue and records per-user collections.
package artifact

import (
	"context"
	"errors"
	"time"

	"lakbay-kasaysayan/internal/db"
	"lakbay-kasaysayan/internal/events"
	"lakbay-kasaysayan/internal/history"
	"lakbay-kasaysayan/internal/observability"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

var ErrNotFound = errors.New("artifact not found")

// Collection is the outcome of a collect call.
type Collection struct {
	UserID         string    `json:"userId"`
	ArtifactID     string    `json:"artifactId"`
	Newly          bool      `json:"newlyCollected"`
	CollectedCount int       `json:"collectedCount"`
	CollectedAt    time.Time `json:"collectedAt"`
}

type Service struct {
	db        db.Querier
	publisher events.Publisher
	logger    *zap.Logger
}

func NewService(db db.Querier, publisher events.Publisher, logger *zap.Logger) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, publisher: publisher, logger: logger}
}

func (s *Service) List(ctx context.Context) ([]history.Artifact, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, event_id, name, description, model_url
		FROM artifacts ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []history.Artifact{}
	for rows.Next() {
		var a history.Artifact
		if err := rows.Scan(&a.ID, &a.EventID, &a.Name, &a.Description, &a.ModelURL); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Service) Get(ctx context.Context, id string) (history.Artifact, error) {
	var a history.Artifact
	err := s.db.QueryRow(ctx, `
		SELECT id, event_id, name, description, model_url
		FROM artifacts WHERE id=$1
	`, id).Scan(&a.ID, &a.EventID, &a.Name, &a.Description, &a.ModelURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return history.Artifact{}, ErrNotFound
	}
	return a, err
}

// Collect records that userID owns artifactID. Collecting twice is a no-op.
func (s *Service) Collect(ctx context.Context, userID, artifactID string) (Collection, error) {
	if _, err := s.Get(ctx, artifactID); err != nil {
		return Collection{}, err
	}

	c := Collection{UserID: userID, ArtifactID: artifactID}
	tag, err := s.db.Exec(ctx, `
		INSERT INTO user_artifacts (user_id, artifact_id)
		VALUES ($1,$2)
		ON CONFLICT (user_id, artifact_id) DO NOTHING
	`, userID, artifactID)
	if err != nil {
		return Collection{}, err
	}
	c.Newly = tag.RowsAffected() > 0

	err = s.db.QueryRow(ctx, `
		SELECT COUNT(*), MAX(collected_at) FILTER (WHERE artifact_id=$2)
		FROM user_artifacts WHERE user_id=$1
	`, userID, artifactID).Scan(&c.CollectedCount, &c.CollectedAt)
	if err != nil {
		return Collection{}, err
	}

	if c.Newly {
		observability.RecordArtifactCollected()
		if err := s.publisher.Publish(ctx, events.KindArtifactCollected, userID, c); err != nil {
			s.logger.Warn("publish artifact event", zap.String("artifact_id", artifactID), zap.Error(err))
		}
	}
	return c, nil
}
