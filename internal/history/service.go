package history

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"lakbay-kasaysayan/internal/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const eventColumns = `id, title, description, event_date, latitude, longitude, location_name,
		       category, verified, verification_notes, created_by, created_at, updated_at`

// Service is the Postgres-backed catalogue. It is also the live Source.
type Service struct {
	db db.TxQuerier
}

func NewService(db db.TxQuerier) *Service {
	return &Service{db: db}
}

func (s *Service) List(ctx context.Context, f Filter) (Page, error) {
	f = f.normalized()

	var (
		where []string
		args  []any
	)
	if f.Category != "" {
		args = append(args, f.Category)
		where = append(where, fmt.Sprintf("category=$%d", len(args)))
	}
	if f.Verified != nil {
		args = append(args, *f.Verified)
		where = append(where, fmt.Sprintf("verified=$%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		where = append(where, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM historical_events`+clause, args...).Scan(&total); err != nil {
		return Page{}, err
	}

	pageArgs := append(args, f.Limit, f.offset())
	events, err := s.queryEvents(ctx, `
		SELECT `+eventColumns+`
		FROM historical_events`+clause+fmt.Sprintf(`
		ORDER BY event_date DESC
		LIMIT $%d OFFSET $%d`, len(pageArgs)-1, len(pageArgs)), pageArgs...)
	if err != nil {
		return Page{}, err
	}

	return Page{
		Events:      events,
		Total:       total,
		TotalPages:  totalPages(total, f.Limit),
		CurrentPage: f.Page,
	}, nil
}

// Nearby narrows by a bounding box in SQL and then by great-circle distance.
func (s *Service) Nearby(ctx context.Context, lat, lng, radiusKm float64) ([]Event, error) {
	deg := radiusKm / 111.0
	candidates, err := s.queryEvents(ctx, `
		SELECT `+eventColumns+`
		FROM historical_events
		WHERE latitude BETWEEN $1 AND $2 AND longitude BETWEEN $3 AND $4
	`, lat-deg, lat+deg, lng-deg*2, lng+deg*2)
	if err != nil {
		return nil, err
	}
	return Nearby(candidates, lat, lng, radiusKm), nil
}

func (s *Service) Get(ctx context.Context, id string) (Event, error) {
	events, err := s.queryEvents(ctx, `
		SELECT `+eventColumns+`
		FROM historical_events WHERE id=$1
	`, id)
	if err != nil {
		return Event{}, err
	}
	if len(events) == 0 {
		return Event{}, ErrNotFound
	}
	return events[0], nil
}

func (s *Service) Create(ctx context.Context, ev Event) (Event, error) {
	ev.ID = uuid.NewString()
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return Event{}, err
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO historical_events (id, title, description, event_date, latitude, longitude, location_name, category, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at
	`, ev.ID, ev.Title, ev.Description, ev.Date, ev.Location.Latitude, ev.Location.Longitude, ev.Location.Name, ev.Category, ev.CreatedBy)
	if err := row.Scan(&ev.CreatedAt, &ev.UpdatedAt); err != nil {
		_ = tx.Rollback(ctx)
		return Event{}, err
	}

	for i := range ev.Artifacts {
		a := &ev.Artifacts[i]
		a.ID = uuid.NewString()
		a.EventID = ev.ID
		if _, err := tx.Exec(ctx, `
			INSERT INTO artifacts (id, event_id, name, description, model_url)
			VALUES ($1,$2,$3,$4,$5)
		`, a.ID, a.EventID, a.Name, a.Description, a.ModelURL); err != nil {
			_ = tx.Rollback(ctx)
			return Event{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Event{}, err
	}
	if ev.Artifacts == nil {
		ev.Artifacts = []Artifact{}
	}
	return ev, nil
}

func (s *Service) Update(ctx context.Context, id string, patch Event) (Event, error) {
	ev, err := s.Get(ctx, id)
	if err != nil {
		return Event{}, err
	}
	if patch.Title != "" {
		ev.Title = patch.Title
	}
	if patch.Description != "" {
		ev.Description = patch.Description
	}
	if patch.Date != "" {
		ev.Date = patch.Date
	}
	if patch.Category != "" {
		ev.Category = patch.Category
	}
	if patch.Location.Name != "" {
		ev.Location.Name = patch.Location.Name
	}
	if patch.Location.Latitude != 0 || patch.Location.Longitude != 0 {
		ev.Location.Latitude = patch.Location.Latitude
		ev.Location.Longitude = patch.Location.Longitude
	}

	err = s.db.QueryRow(ctx, `
		UPDATE historical_events
		SET title=$2, description=$3, event_date=$4, latitude=$5, longitude=$6, location_name=$7, category=$8, updated_at=NOW()
		WHERE id=$1
		RETURNING updated_at
	`, ev.ID, ev.Title, ev.Description, ev.Date, ev.Location.Latitude, ev.Location.Longitude, ev.Location.Name, ev.Category).Scan(&ev.UpdatedAt)
	if err != nil {
		return Event{}, notFound(err)
	}
	return ev, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM historical_events WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) Verify(ctx context.Context, id, notes string) (Event, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE historical_events
		SET verified=TRUE, verification_notes=$2, updated_at=NOW()
		WHERE id=$1
	`, id, notes)
	if err != nil {
		return Event{}, err
	}
	if tag.RowsAffected() == 0 {
		return Event{}, ErrNotFound
	}
	return s.Get(ctx, id)
}

func (s *Service) queryEvents(ctx context.Context, sql string, args ...any) ([]Event, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []Event{}
	index := map[string]int{}
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.ID, &ev.Title, &ev.Description, &ev.Date, &ev.Location.Latitude, &ev.Location.Longitude,
			&ev.Location.Name, &ev.Category, &ev.Verified, &ev.VerificationNotes, &ev.CreatedBy, &ev.CreatedAt, &ev.UpdatedAt); err != nil {
			return nil, err
		}
		ev.Artifacts = []Artifact{}
		index[ev.ID] = len(events)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	if len(events) == 0 {
		return events, nil
	}
	if err := s.attachArtifacts(ctx, events, index); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *Service) attachArtifacts(ctx context.Context, events []Event, index map[string]int) error {
	ids := make([]string, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.ID)
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, event_id, name, description, model_url
		FROM artifacts WHERE event_id = ANY($1)
		ORDER BY created_at
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var a Artifact
		if err := rows.Scan(&a.ID, &a.EventID, &a.Name, &a.Description, &a.ModelURL); err != nil {
			return err
		}
		if i, ok := index[a.EventID]; ok {
			events[i].Artifacts = append(events[i].Artifacts, a)
		}
	}
	return rows.Err()
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
