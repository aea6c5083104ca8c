// Package runs stores finished runs and announces them to live watchers and Kafka.
package runs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"lakbay-kasaysayan/internal/db"
	"lakbay-kasaysayan/internal/events"
	"lakbay-kasaysayan/internal/observability"
	"lakbay-kasaysayan/internal/runstats"
	"lakbay-kasaysayan/internal/shared/geo"
	"lakbay-kasaysayan/internal/stream"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const runColumns = `id, user_id, start_time, end_time, route, distance_m, elapsed_seconds, pace_min_per_km, calories, created_at, updated_at`

type Service struct {
	db        db.Querier
	hub       *stream.Hub
	publisher events.Publisher
	logger    *zap.Logger
}

func NewService(db db.Querier, hub *stream.Hub, publisher events.Publisher, logger *zap.Logger) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, hub: hub, publisher: publisher, logger: logger}
}

// Create stores a run. Device-minted IDs are kept, so a retried upload overwrites
// the same row instead of duplicating it.
func (s *Service) Create(ctx context.Context, run Run) (Run, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Route == nil {
		run.Route = []geo.Fix{}
	}
	if run.DistanceMeters == 0 && len(run.Route) > 1 {
		run.DistanceMeters = runstats.TotalDistance(run.Route)
	}
	if run.PaceMinPerKm == 0 {
		run.PaceMinPerKm = runstats.Pace(run.DistanceMeters, float64(run.ElapsedSeconds))
	}

	route, err := json.Marshal(run.Route)
	if err != nil {
		return Run{}, fmt.Errorf("encode route: %w", err)
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO runs (id, user_id, start_time, end_time, route, distance_m, elapsed_seconds, pace_min_per_km, calories)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO UPDATE
		SET end_time=EXCLUDED.end_time, route=EXCLUDED.route, distance_m=EXCLUDED.distance_m,
		    elapsed_seconds=EXCLUDED.elapsed_seconds, pace_min_per_km=EXCLUDED.pace_min_per_km,
		    calories=EXCLUDED.calories, updated_at=NOW()
		WHERE runs.user_id=EXCLUDED.user_id
		RETURNING created_at, updated_at
	`, run.ID, run.UserID, run.StartTime, run.EndTime, route, run.DistanceMeters, run.ElapsedSeconds, run.PaceMinPerKm, run.Calories)
	if err := row.Scan(&run.CreatedAt, &run.UpdatedAt); err != nil {
		// the conflict target belongs to someone else
		if errors.Is(err, pgx.ErrNoRows) {
			return Run{}, ErrNotFound
		}
		return Run{}, err
	}

	s.announce(ctx, "run.saved", events.KindRunSaved, run)
	observability.RecordRunPersisted("create")
	return run, nil
}

// List returns userID's runs, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]Run, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+runColumns+`
		FROM runs WHERE user_id=$1
		ORDER BY start_time DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (s *Service) Get(ctx context.Context, id string) (Run, error) {
	run, err := scanRun(s.db.QueryRow(ctx, `
		SELECT `+runColumns+`
		FROM runs WHERE id=$1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	return run, err
}

func (s *Service) Update(ctx context.Context, id string, patch Update) (Run, error) {
	run, err := s.Get(ctx, id)
	if err != nil {
		return Run{}, err
	}
	if patch.EndTime != nil {
		run.EndTime = patch.EndTime
	}
	if patch.Route != nil {
		run.Route = patch.Route
	}
	if patch.DistanceMeters != nil {
		run.DistanceMeters = *patch.DistanceMeters
	}
	if patch.ElapsedSeconds != nil {
		run.ElapsedSeconds = *patch.ElapsedSeconds
	}
	if patch.PaceMinPerKm != nil {
		run.PaceMinPerKm = *patch.PaceMinPerKm
	}
	if patch.Calories != nil {
		run.Calories = patch.Calories
	}

	route, err := json.Marshal(run.Route)
	if err != nil {
		return Run{}, fmt.Errorf("encode route: %w", err)
	}
	err = s.db.QueryRow(ctx, `
		UPDATE runs
		SET end_time=$2, route=$3, distance_m=$4, elapsed_seconds=$5, pace_min_per_km=$6, calories=$7, updated_at=NOW()
		WHERE id=$1
		RETURNING updated_at
	`, run.ID, run.EndTime, route, run.DistanceMeters, run.ElapsedSeconds, run.PaceMinPerKm, run.Calories).Scan(&run.UpdatedAt)
	if err != nil {
		return Run{}, err
	}

	s.announce(ctx, "run.updated", events.KindRunSaved, run)
	observability.RecordRunPersisted("update")
	return run, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	var userID string
	err := s.db.QueryRow(ctx, `DELETE FROM runs WHERE id=$1 RETURNING user_id`, id).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	if err := s.publisher.Publish(ctx, events.KindRunDeleted, id, map[string]string{"id": id, "userId": userID}); err != nil {
		s.logger.Warn("publish run deletion", zap.String("run_id", id), zap.Error(err))
	}
	observability.RecordRunPersisted("delete")
	return nil
}

func (s *Service) announce(ctx context.Context, live, kind string, run Run) {
	if s.hub != nil {
		payload, _ := json.Marshal(LiveUpdate{
			Event:          live,
			RunID:          run.ID,
			DistanceMeters: run.DistanceMeters,
			ElapsedSeconds: run.ElapsedSeconds,
			PaceMinPerKm:   run.PaceMinPerKm,
		})
		s.hub.Broadcast(run.UserID, payload)
	}
	if err := s.publisher.Publish(ctx, kind, run.ID, run); err != nil {
		s.logger.Warn("publish run event", zap.String("run_id", run.ID), zap.Error(err))
	}
}

func scanRun(row pgx.Row) (Run, error) {
	var (
		run   Run
		route []byte
	)
	if err := row.Scan(&run.ID, &run.UserID, &run.StartTime, &run.EndTime, &route, &run.DistanceMeters,
		&run.ElapsedSeconds, &run.PaceMinPerKm, &run.Calories, &run.CreatedAt, &run.UpdatedAt); err != nil {
		return Run{}, err
	}
	run.Route = []geo.Fix{}
	if len(route) > 0 {
		if err := json.Unmarshal(route, &run.Route); err != nil {
			return Run{}, fmt.Errorf("decode route of run %s: %w", run.ID, err)
		}
	}
	return run, nil
}

// Live relays in-progress stats of an unfinished run to watchers without storing them.
func (s *Service) Live(userID string, update LiveUpdate) {
	if s.hub == nil {
		return
	}
	update.Event = "run.progress"
	payload, _ := json.Marshal(update)
	s.hub.Broadcast(userID, payload)
}
